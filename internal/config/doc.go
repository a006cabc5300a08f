// Loads the release configuration for a build run.
//
// Configuration lives in an HCL file (release.hcl) with a single release
// block describing the build image, the interpreter variants to build, the
// native packages the build needs, and the smoke-test entry point. Every
// field has a built-in default so a project without a release.hcl still
// builds with the stock manylinux setup.
//
// The file is located by searching, in order: an explicit path given on the
// command line, <project>/release.hcl, and the user-level XDG config path.
// When none exists the defaults apply unchanged.
package config
