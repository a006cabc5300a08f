package pipeline

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/wheelsmith/wheelsmith/internal/paths"
	"github.com/wheelsmith/wheelsmith/internal/shell"
)

// One targeted interpreter installation inside the build image.
type variant struct {
	root string // Installation directory, e.g. /opt/python/cp311-cp311.
}

// Returns the variant's tag, e.g. "cp311-cp311".
func (v variant) name() string {
	return filepath.Base(v.root)
}

func (v variant) pip() string {
	return filepath.Join(v.root, "bin", "pip")
}

func (v variant) python() string {
	return filepath.Join(v.root, "bin", "python")
}

// Builds, repairs, installs, and smoke-tests the project for one variant.
//
// The project is cloned into a fresh build directory so each variant builds
// from a pristine tree. Repaired wheels are copied into the shared output
// directory before the install and test steps, and the build directory is
// removed only after the variant succeeds end to end.
func buildVariant(ctx context.Context, exec shell.Executor, env *buildEnv, opts Options, v variant) error {
	slog.Info("building variant", "variant", v.name())

	buildDir, err := os.MkdirTemp(opts.BuildRoot, "wheelsmith-"+v.name()+"-")
	if err != nil {
		return errors.Wrap(ErrFileSystemOperation, err.Error())
	}

	src := filepath.Join(buildDir, "src")
	environ := env.environ()

	// Local clone, not a network fetch. Keeps the mounted checkout pristine.
	if err := exec.Run(ctx, shell.Command{
		Args: []string{"git", "clone", "--quiet", opts.Project, src},
		Env:  environ,
	}); err != nil {
		return err
	}

	// --no-deps keeps dependency wheels out of dist: the repair and collect
	// steps must only ever see the project's own wheel.
	if err := exec.Run(ctx, shell.Command{
		Args: []string{v.pip(), "wheel", ".", "--no-deps", "-w", "dist"},
		Dir:  src,
		Env:  environ,
	}); err != nil {
		return err
	}

	built, err := wheels(filepath.Join(src, "dist"), opts.Release.WheelGlob)
	if err != nil {
		return err
	}

	for _, wheel := range built {
		if err := exec.Run(ctx, shell.Command{
			Args: []string{"auditwheel", "repair", wheel, "--plat", opts.Release.PlatformTag, "-w", "wheelhouse"},
			Dir:  src,
			Env:  environ,
		}); err != nil {
			return err
		}
	}

	repaired, err := wheels(filepath.Join(src, "wheelhouse"), opts.Release.WheelGlob)
	if err != nil {
		return err
	}

	for _, wheel := range repaired {
		dest := filepath.Join(opts.Output, filepath.Base(wheel))
		if err := copyFile(wheel, dest); err != nil {
			return err
		}
		slog.Info("wheel collected", "wheel", filepath.Base(wheel))
	}

	for _, wheel := range repaired {
		if err := exec.Run(ctx, shell.Command{
			Args: []string{v.pip(), "install", "--no-compile", withExtras(wheel, opts.Release.Extras)},
			Dir:  src,
			Env:  environ,
		}); err != nil {
			return err
		}
	}

	testArgs := append([]string{v.python(), "-m"}, opts.Release.TestArgs()...)
	if err := exec.Run(ctx, shell.Command{
		Args: testArgs,
		Dir:  src,
		Env:  environ,
	}); err != nil {
		return err
	}

	if err := os.RemoveAll(buildDir); err != nil {
		return errors.Wrap(ErrFileSystemOperation, err.Error())
	}

	return nil
}

// Lists the wheels in dir matching the configured filename pattern.
//
// An empty result is an error: every build and repair step is expected to
// produce at least one wheel.
func wheels(dir, pattern string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return nil, errors.Wrapf(ErrNoArtifacts, "pattern %q: %v", pattern, err)
	}
	if len(matches) == 0 {
		return nil, errors.Wrapf(ErrNoArtifacts, "%s matched nothing in %s", pattern, dir)
	}
	return matches, nil
}

// Appends a pip extras suffix to an install target.
func withExtras(target, extras string) string {
	if extras == "" {
		return target
	}
	return target + "[" + extras + "]"
}

// Copies a single file, preserving nothing but the contents.
func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return errors.Wrap(ErrFileSystemOperation, err.Error())
	}
	defer in.Close()

	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, paths.DefaultFileMode)
	if err != nil {
		return errors.Wrap(ErrFileSystemOperation, err.Error())
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return errors.Wrap(ErrFileSystemOperation, err.Error())
	}

	if err := out.Close(); err != nil {
		return errors.Wrap(ErrFileSystemOperation, err.Error())
	}

	return nil
}
