package runtime

import (
	"context"
	"log/slog"
	"syscall"
	"time"

	containerd "github.com/containerd/containerd/v2/client"
	"github.com/containerd/containerd/v2/pkg/cio"
	"github.com/containerd/containerd/v2/pkg/oci"
	"github.com/containerd/errdefs"
	specs "github.com/opencontainers/runtime-spec/specs-go"
	"github.com/pkg/errors"
)

// A running build container backed by containerd.
type Container struct {
	client *containerd.Client // Containerd client for managing the container.
	id     string             // Unique identifier for the container, used as the containerd container ID.
}

// Starts a build container from a pulled image.
//
// The container gets a fresh snapshot, host networking (the build needs
// registry access for dependency downloads), the given bind mounts, and a
// long-running task (sleep infinity) so that subsequent ExecStream calls
// have a running process to attach to. Any stale container with the same ID
// is removed first.
func (rt *Runtime) StartContainer(ctx context.Context, image containerd.Image, id string, mounts []specs.Mount) (*Container, error) {
	c := &Container{
		client: rt.client,
		id:     id,
	}

	// Remove any stale container from a previous run with the same ID.
	c.remove(ctx)

	ctr, err := c.create(ctx, image, mounts)
	if err != nil {
		return nil, errors.Wrap(ErrRuntime, err.Error())
	}

	if err := c.startTask(ctx, ctr); err != nil {
		ctr.Delete(ctx, containerd.WithSnapshotCleanup)
		return nil, errors.Wrap(ErrRuntime, err.Error())
	}

	slog.Debug("container started", "id", id, "image", image.Name())

	return c, nil
}

// Builds an OCI bind mount.
func BindMount(source, destination string, readonly bool) specs.Mount {
	options := []string{"rbind", "rw"}
	if readonly {
		options = []string{"rbind", "ro"}
	}
	return specs.Mount{
		Type:        "bind",
		Source:      source,
		Destination: destination,
		Options:     options,
	}
}

// Upper bound on container destruction, detached from the run's context.
const destroyTimeout = 30 * time.Second

// Removes the container and its resources.
//
// The task is killed and the container is removed from containerd along
// with its snapshot. After destruction the handle is invalid. Destruction
// proceeds even when the run's context has been canceled (operator
// interrupt); otherwise the transient container would leak.
func (c *Container) Destroy(ctx context.Context) {
	ctx, cancel := destroyContext(ctx)
	defer cancel()

	ctr, err := c.client.LoadContainer(ctx, c.id)
	if err != nil {
		if !errdefs.IsNotFound(err) {
			slog.Warn("failed to load container for destruction", "id", c.id, "error", err)
		}
		return
	}

	if task, err := ctr.Task(ctx, nil); err == nil {
		task.Kill(ctx, syscall.SIGKILL)
		task.Delete(ctx, containerd.WithProcessKill)
	}

	if err := ctr.Delete(ctx, containerd.WithSnapshotCleanup); err != nil && !errdefs.IsNotFound(err) {
		slog.Warn("failed to delete container during destruction", "id", c.id, "error", err)
	}
}

// Creates the containerd container with the standard build configuration.
func (c *Container) create(ctx context.Context, image containerd.Image, mounts []specs.Mount) (containerd.Container, error) {
	return c.client.NewContainer(ctx, c.id,
		containerd.WithImage(image),
		containerd.WithSnapshotter(snapshotter),
		containerd.WithNewSnapshot(c.id, image),
		containerd.WithRuntime(ociRuntime, nil),
		containerd.WithNewSpec(
			oci.WithDefaultSpecForPlatform(hostPlatform()),
			oci.WithImageConfig(image),
			oci.WithHostNamespace(specs.NetworkNamespace),
			oci.WithHostResolvconf,
			oci.WithMounts(mounts),
			oci.WithProcessArgs("sleep", "infinity"),
		),
	)
}

// Starts the container's long-running task with no attached IO.
func (c *Container) startTask(ctx context.Context, ctr containerd.Container) error {
	task, err := ctr.NewTask(ctx, cio.NullIO)
	if err != nil {
		return err
	}
	if err := task.Start(ctx); err != nil {
		task.Delete(ctx)
		return err
	}
	return nil
}

// Derives a destruction context that survives cancellation of the run's
// context but still carries its values, bounded by destroyTimeout.
func destroyContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), destroyTimeout)
}

// Removes an existing container with this ID, if one exists.
//
// Any running task is killed and the container is deleted along with its
// snapshot. This is a no-op when no container with the ID is found.
func (c *Container) remove(ctx context.Context) {
	existing, err := c.client.LoadContainer(ctx, c.id)
	if err != nil {
		return
	}
	if task, err := existing.Task(ctx, nil); err == nil {
		task.Kill(ctx, syscall.SIGKILL)
		task.Delete(ctx, containerd.WithProcessKill)
	}
	existing.Delete(ctx, containerd.WithSnapshotCleanup)
}
