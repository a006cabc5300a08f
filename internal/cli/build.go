package cli

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	specs "github.com/opencontainers/runtime-spec/specs-go"
	"github.com/pkg/errors"

	"github.com/wheelsmith/wheelsmith/internal"
	"github.com/wheelsmith/wheelsmith/internal/config"
	"github.com/wheelsmith/wheelsmith/internal/paths"
	"github.com/wheelsmith/wheelsmith/internal/pipeline"
	"github.com/wheelsmith/wheelsmith/internal/runtime"
	"github.com/wheelsmith/wheelsmith/internal/shell"
)

// Represents the 'wheelsmith build' command.
type BuildCmd struct {
	Project    string `short:"p" default:"." help:"Project directory containing the source tree."`
	Output     string `short:"o" help:"Output directory for repaired wheels. Defaults to <project>/wheelhouse." placeholder:"DIR"`
	Image      string `help:"Override the configured build image reference." placeholder:"REF"`
	Containerd string `default:"/run/containerd/containerd.sock" help:"Containerd socket address." placeholder:"PATH"`
	Namespace  string `default:"wheelsmith" help:"Containerd namespace."`
	Local      bool   `help:"Run the build pipeline directly instead of launching the build container."`
}

// Executes the build command.
//
// The mode is selected exactly once at startup: inside the build container
// (or with --local) the per-variant pipeline runs directly; otherwise the
// build container is launched and the orchestrator re-invokes itself inside
// it (the host-side path).
func (c *BuildCmd) Run(ctx context.Context) error {
	project, err := filepath.Abs(c.Project)
	if err != nil {
		return errors.Wrap(err, "resolving project directory")
	}

	rel, err := config.Load(config.Locate(RootCmd.Config, project))
	if err != nil {
		return err
	}
	if c.Image != "" {
		rel.Image = c.Image
		rel.Digest = ""
	}

	output := c.Output
	if output == "" {
		output = filepath.Join(project, paths.OutputDirName)
	}
	output, err = filepath.Abs(output)
	if err != nil {
		return errors.Wrap(err, "resolving output directory")
	}

	if c.Local || paths.InsideBuildContainer() {
		return pipeline.Run(ctx, &shell.Local{}, pipeline.Options{
			Release: rel,
			Project: project,
			Output:  output,
		})
	}

	return c.launch(ctx, rel, project, output)
}

// Launches the build container and re-invokes the orchestrator inside it.
//
// The project directory and output directory are bind-mounted, the current
// executable is injected, and the container-side invocation's output is
// streamed to the operator. The container is removed when the run completes,
// successful or not.
func (c *BuildCmd) launch(ctx context.Context, rel *config.Release, project, output string) error {
	rt, err := runtime.New(c.Containerd, c.Namespace)
	if err != nil {
		return err
	}
	defer rt.Close()

	image, err := rt.Pull(ctx, rel.Image, rel.Digest)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(output, paths.DefaultDirMode); err != nil {
		return errors.Wrap(err, "creating output directory")
	}

	mounts := []specs.Mount{
		runtime.BindMount(project, paths.ProjectMount, false),
		runtime.BindMount(output, paths.OutputMount, false),
	}

	ctr, err := rt.StartContainer(ctx, image, runtime.ContainerID(internal.Name), mounts)
	if err != nil {
		return err
	}
	defer ctr.Destroy(ctx)

	self, err := os.Executable()
	if err != nil {
		return errors.Wrap(err, "locating orchestrator binary")
	}

	if err := ctr.InjectExecutable(ctx, self, paths.ContainerBinaryDir(), internal.Name); err != nil {
		return err
	}

	slog.Info("starting container-side build", "image", rel.Image)

	code, err := ctr.ExecStream(ctx, c.containerArgs(), nil, paths.ProjectMount, os.Stdout, os.Stderr)
	if err != nil {
		return err
	}
	if code != 0 {
		return errors.Errorf("container-side build exited with code %d", code)
	}

	return listWheelhouse(output)
}

// Command line for the container-side invocation.
//
// The release configuration is re-read inside the container from the mounted
// project directory, so only flags are forwarded.
func (c *BuildCmd) containerArgs() []string {
	args := []string{paths.ContainerBinary()}

	if RootCmd.Quiet {
		args = append(args, "--quiet")
	}
	if RootCmd.Verbose {
		args = append(args, "--verbose")
	}
	if RootCmd.Debug {
		args = append(args, "--debug")
	}

	args = append(args, "build",
		"--local",
		"--project", paths.ProjectMount,
		"--output", paths.OutputMount,
	)

	if c.Image != "" {
		args = append(args, "--image", c.Image)
	}

	return args
}

// Logs the collected artifacts of a successful run.
func listWheelhouse(output string) error {
	entries, err := os.ReadDir(output)
	if err != nil {
		return errors.Wrap(err, "listing wheelhouse")
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.Name())
	}

	slog.Info("wheelhouse populated", "dir", output, "artifacts", names)
	return nil
}
