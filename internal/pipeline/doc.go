// Package pipeline drives the container-side release build.
//
// A run installs the native packages the build needs, resets the shared
// output directory, and then builds each configured interpreter variant in
// turn: the project is cloned into a fresh build directory, built into a
// wheel, repaired for the target platform tag, collected into the output
// directory, installed with its test extras, and smoke-tested through the
// interpreter's module entry point. The first failing step aborts the whole
// run; later variants are not attempted and no compensating cleanup runs.
//
// External tools are invoked through the shell.Executor interface. The
// pipeline itself performs only filesystem bookkeeping (temp directories,
// artifact collection, metadata cleanup).
//
// Example usage:
//
//	err := pipeline.Run(ctx, &shell.Local{}, pipeline.Options{
//	    Release: release,
//	    Project: "/project",
//	    Output:  "/wheelhouse",
//	})
package pipeline
