package pipeline

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/pkg/errors"

	"github.com/wheelsmith/wheelsmith/internal/config"
	"github.com/wheelsmith/wheelsmith/internal/paths"
	"github.com/wheelsmith/wheelsmith/internal/shell"
)

// Controls a container-side build run.
type Options struct {
	Release         *config.Release // Release configuration to build.
	Project         string          // Project root holding the source tree.
	Output          string          // Shared output directory for repaired wheels.
	InterpreterRoot string          // Installed-interpreters directory. Defaults to the manylinux location.
	BuildRoot       string          // Parent for per-variant build directories. Empty uses the system temp dir.
}

// Executes the release build against the local system.
//
// Variants are built sequentially in declaration order. Each variant's
// failure aborts the run immediately, leaving the output and build
// directories in their partial state.
func Run(ctx context.Context, exec shell.Executor, opts Options) error {
	if opts.InterpreterRoot == "" {
		opts.InterpreterRoot = paths.InterpreterRoot
	}

	env := newBuildEnv(opts.Release.Env)

	slog.Info("building release",
		"variants", len(opts.Release.Variants),
		"platform", opts.Release.PlatformTag,
		"output", opts.Output,
	)

	if err := installPackages(ctx, exec, env, opts.Release.Packages); err != nil {
		return err
	}

	if err := resetOutput(opts.Output); err != nil {
		return err
	}

	for _, tag := range opts.Release.Variants {
		variants, err := resolveVariants(opts.InterpreterRoot, tag)
		if err != nil {
			return err
		}
		for _, v := range variants {
			if err := buildVariant(ctx, exec, env, opts, v); err != nil {
				return errors.Wrapf(err, "variant %s", v.name())
			}
		}
	}

	if err := cleanupMetadata(opts.Project); err != nil {
		return err
	}

	slog.Info("release built", "output", opts.Output)
	return nil
}

// Installs the configured native packages via the container's package
// manager. A run without native dependencies skips this step.
func installPackages(ctx context.Context, exec shell.Executor, env *buildEnv, packages []string) error {
	if len(packages) == 0 {
		return nil
	}

	slog.Info("installing native packages", "packages", packages)

	args := append([]string{"yum", "install", "-y"}, packages...)
	return exec.Run(ctx, shell.Command{Args: args, Env: env.environ()})
}

// Empties the shared output directory, creating it when absent.
//
// Entries are removed individually rather than removing the directory
// itself, which may be a bind mount point. After reset the directory exists
// and contains exactly the artifacts of the current run, never a union with
// a previous one.
func resetOutput(dir string) error {
	if err := os.MkdirAll(dir, paths.DefaultDirMode); err != nil {
		return errors.Wrap(ErrFileSystemOperation, err.Error())
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return errors.Wrap(ErrFileSystemOperation, err.Error())
	}

	for _, entry := range entries {
		if err := os.RemoveAll(filepath.Join(dir, entry.Name())); err != nil {
			return errors.Wrap(ErrFileSystemOperation, err.Error())
		}
	}

	return nil
}

// Resolves an interpreter tag glob against the installed-interpreters
// directory.
//
// Returns one variant per matching directory, sorted by path. A tag that
// matches nothing is an error: building zero wheels for a configured variant
// would silently break the run's completeness contract.
func resolveVariants(root, tag string) ([]variant, error) {
	matches, err := filepath.Glob(filepath.Join(root, tag+"*"))
	if err != nil {
		return nil, errors.Wrapf(ErrNoInterpreters, "tag %q: %v", tag, err)
	}

	sort.Strings(matches)

	variants := make([]variant, 0, len(matches))
	for _, match := range matches {
		info, err := os.Stat(match)
		if err != nil || !info.IsDir() {
			continue
		}
		variants = append(variants, variant{root: match})
	}

	if len(variants) == 0 {
		return nil, errors.Wrapf(ErrNoInterpreters, "tag %q under %s", tag, root)
	}

	return variants, nil
}

// Removes distribution metadata left in the project root by the build.
func cleanupMetadata(project string) error {
	leftovers := []string{
		filepath.Join(project, "dist"),
		filepath.Join(project, "build"),
	}

	eggInfo, err := filepath.Glob(filepath.Join(project, "*.egg-info"))
	if err == nil {
		leftovers = append(leftovers, eggInfo...)
	}

	for _, path := range leftovers {
		if err := os.RemoveAll(path); err != nil {
			return errors.Wrap(ErrFileSystemOperation, err.Error())
		}
	}

	return nil
}
