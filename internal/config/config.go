package config

import (
	"os"
	"path/filepath"

	"github.com/google/shlex"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/opencontainers/go-digest"
	"github.com/pkg/errors"

	"github.com/wheelsmith/wheelsmith/internal/paths"
)

// Filename searched for in the project root.
const fileName = "release.hcl"

// Describes one release build run: which image to build in, which
// interpreter variants to build for, and how to smoke-test the result.
type Release struct {
	Image       string            `hcl:"image,optional"`        // Build image reference.
	Digest      string            `hcl:"digest,optional"`       // Optional content pin for the build image.
	PlatformTag string            `hcl:"platform_tag,optional"` // Platform tag passed to the wheel repair tool.
	Variants    []string          `hcl:"variants,optional"`     // Interpreter tag globs, resolved against the interpreter root.
	Packages    []string          `hcl:"packages,optional"`     // Native packages installed in the container before building.
	WheelGlob   string            `hcl:"wheel_glob,optional"`   // Filename pattern selecting the project's wheels in a dist directory.
	TestCommand string            `hcl:"test_command,optional"` // Module entry point and arguments for "python -m".
	Extras      string            `hcl:"extras,optional"`       // Pip extras installed alongside the wheel before testing.
	Env         map[string]string `hcl:"env,optional"`          // Extra environment for every build subprocess.
}

// Top-level structure of a release.hcl file for decoding.
type releaseFile struct {
	Release *Release `hcl:"release,block"`
}

// Returns the built-in release configuration.
//
// The defaults target the stock manylinux2014 x86_64 image and the CPython
// versions it ships.
func Default() *Release {
	return &Release{
		Image:       "quay.io/pypa/manylinux2014_x86_64",
		PlatformTag: "manylinux2014_x86_64",
		Variants: []string{
			"cp39-cp39",
			"cp310-cp310",
			"cp311-cp311",
			"cp312-cp312",
			"cp313-cp313",
		},
		Packages:    []string{"libffi-devel"},
		WheelGlob:   "*.whl",
		TestCommand: "unittest discover -v",
		Extras:      "test",
	}
}

// Parses and validates the release configuration at path.
//
// An empty path yields the built-in defaults. Image, platform tag, variants,
// and test command fall back to their defaults when unset; packages and env
// are taken verbatim, so a file that omits them opts out of native package
// installation and extra environment.
func Load(path string) (*Release, error) {
	if path == "" {
		return Default(), nil
	}

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, errors.Wrapf(ErrConfig, "parsing %s: %s", path, diags.Error())
	}

	var parsed releaseFile
	if diags := gohcl.DecodeBody(file.Body, nil, &parsed); diags.HasErrors() {
		return nil, errors.Wrapf(ErrConfig, "decoding %s: %s", path, diags.Error())
	}

	rel := parsed.Release
	if rel == nil {
		return nil, errors.Wrapf(ErrConfig, "%s: missing release block", path)
	}

	applyDefaults(rel)

	if err := rel.Validate(); err != nil {
		return nil, errors.Wrapf(err, "%s", path)
	}

	return rel, nil
}

// Locates the configuration file for a run.
//
// An explicit path always wins, even when the file does not exist (the
// subsequent Load reports the error). Otherwise the project root is checked,
// then the user-level config path. Returns "" when no file exists anywhere,
// which makes Load fall back to the defaults.
func Locate(explicit, project string) string {
	if explicit != "" {
		return explicit
	}

	candidate := filepath.Join(project, fileName)
	if fileExists(candidate) {
		return candidate
	}

	if user := paths.UserConfig(); fileExists(user) {
		return user
	}

	return ""
}

// Checks the configuration for values the pipeline cannot work with.
func (r *Release) Validate() error {
	if r.Image == "" {
		return errors.Wrap(ErrConfig, "image must not be empty")
	}
	if r.PlatformTag == "" {
		return errors.Wrap(ErrConfig, "platform_tag must not be empty")
	}
	if len(r.Variants) == 0 {
		return errors.Wrap(ErrConfig, "variants must name at least one interpreter tag")
	}
	for _, v := range r.Variants {
		if v == "" {
			return errors.Wrap(ErrConfig, "variants must not contain empty tags")
		}
	}

	if _, err := filepath.Match(r.WheelGlob, ""); err != nil {
		return errors.Wrapf(ErrConfig, "wheel_glob %q: %v", r.WheelGlob, err)
	}

	if r.Digest != "" {
		if _, err := digest.Parse(r.Digest); err != nil {
			return errors.Wrapf(ErrConfig, "digest %q: %v", r.Digest, err)
		}
	}

	args, err := shlex.Split(r.TestCommand)
	if err != nil {
		return errors.Wrapf(ErrConfig, "test_command %q: %v", r.TestCommand, err)
	}
	if len(args) == 0 {
		return errors.Wrap(ErrConfig, "test_command must not be empty")
	}

	return nil
}

// Returns the test command split into arguments for "python -m".
//
// Validate has already established that the command splits cleanly.
func (r *Release) TestArgs() []string {
	args, err := shlex.Split(r.TestCommand)
	if err != nil {
		return nil
	}
	return args
}

// Fills unset fields with their built-in defaults.
//
// Packages and env are left alone: an explicitly empty list is a valid way
// to opt out of native package installation.
func applyDefaults(rel *Release) {
	def := Default()

	if rel.Image == "" {
		rel.Image = def.Image
	}
	if rel.PlatformTag == "" {
		rel.PlatformTag = def.PlatformTag
	}
	if len(rel.Variants) == 0 {
		rel.Variants = def.Variants
	}
	if rel.WheelGlob == "" {
		rel.WheelGlob = def.WheelGlob
	}
	if rel.TestCommand == "" {
		rel.TestCommand = def.TestCommand
	}
}

// Whether path exists and is a regular file.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
