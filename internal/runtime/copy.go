package runtime

import (
	"archive/tar"
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/pkg/errors"
)

// Copies a tar stream into the container's filesystem.
//
// The contents of r are extracted into destDir by piping them to "tar xf - -C
// destDir" inside the container.
func (c *Container) CopyTo(ctx context.Context, r io.Reader, destDir string) error {
	return c.mustExec(ctx, "tar extract", r, "tar", "xf", "-", "-C", destDir)
}

// Injects a single executable file from the host into the container.
//
// The file is streamed as a one-entry tar archive and extracted into destDir
// under the given name with an executable mode. Used to place the
// orchestrator's own binary inside the build container before the
// container-side run.
func (c *Container) InjectExecutable(ctx context.Context, hostPath, destDir, name string) error {
	f, err := os.Open(hostPath)
	if err != nil {
		return errors.Wrap(ErrRuntime, err.Error())
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return errors.Wrap(ErrRuntime, err.Error())
	}

	slog.Debug("injecting executable", "src", hostPath, "dest", destDir, "name", name)

	pr, pw := io.Pipe()

	go func() {
		tw := tar.NewWriter(pw)
		writeErr := writeExecutableEntry(tw, f, info.Size(), name)
		tw.Close()
		pw.CloseWithError(writeErr)
	}()

	return c.CopyTo(ctx, pr, destDir)
}

// Writes a single executable tar entry from the given reader.
func writeExecutableEntry(tw *tar.Writer, r io.Reader, size int64, name string) error {
	header := &tar.Header{
		Name: name,
		Mode: 0755,
		Size: size,
	}

	if err := tw.WriteHeader(header); err != nil {
		return err
	}

	_, err := io.Copy(tw, r)
	return err
}

// Helper method that runs a command inside the container, returning an error
// that includes desc if the process exits with a non-zero code.
func (c *Container) mustExec(ctx context.Context, desc string, stdin io.Reader, args ...string) error {
	pspec, err := c.buildProcessSpec(ctx, nil, "", args...)
	if err != nil {
		return errors.Wrap(ErrRuntime, err.Error())
	}

	exitCode, err := c.execProcess(ctx, pspec, stdin, nil, nil)
	if err != nil {
		return err
	}
	if exitCode != 0 {
		return errors.Wrapf(ErrRuntime, "%s failed with exit code %d", desc, exitCode)
	}
	return nil
}
