package runtime

import (
	"context"
	"fmt"
	"log/slog"
	goruntime "runtime"

	containerd "github.com/containerd/containerd/v2/client"
	"github.com/containerd/platforms"
	"github.com/google/uuid"
	"github.com/opencontainers/go-digest"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/pkg/errors"
)

const (

	// Snapshotter used for container filesystems. fuse-overlayfs provides
	// overlay semantics without requiring root privileges (no mount(2)),
	// allowing wheelsmith to run as a regular user.
	snapshotter = "fuse-overlayfs"

	// OCI runtime shim for running containers.
	ociRuntime = "io.containerd.runc.v2"

	// Default containerd socket address.
	DefaultAddress = "/run/containerd/containerd.sock"

	// Default containerd namespace for images and containers.
	DefaultNamespace = "wheelsmith"
)

// Manages the containerd client and provides image and container operations.
type Runtime struct {
	client *containerd.Client // Containerd client for managing containers and images.
}

// Creates a runtime connected to the containerd socket at the given address.
//
// The namespace scopes all containerd operations. The runtime must be closed
// when no longer needed.
func New(address, namespace string) (*Runtime, error) {
	client, err := containerd.New(address, containerd.WithDefaultNamespace(namespace))
	if err != nil {
		return nil, errors.Wrap(ErrRuntime, err.Error())
	}
	return &Runtime{client: client}, nil
}

// Closes the containerd client connection.
func (rt *Runtime) Close() error {
	return rt.client.Close()
}

// Pulls the build image for the host platform and unpacks it into the
// snapshotter.
//
// When pin is non-empty, the pulled image's target digest must match it or
// the pull fails. Pinning guards release builds against a retagged upstream
// image.
func (rt *Runtime) Pull(ctx context.Context, ref, pin string) (containerd.Image, error) {
	p := platforms.DefaultSpec()

	slog.Info("pulling build image", "image", ref)

	image, err := rt.client.Pull(ctx, ref,
		containerd.WithPlatformMatcher(platforms.Only(p)),
		containerd.WithPullUnpack,
		containerd.WithPullSnapshotter(snapshotter),
	)
	if err != nil {
		return nil, errors.Wrapf(ErrRuntime, "pulling %s: %v", ref, err)
	}

	if err := verifyPin(image.Target(), pin); err != nil {
		return nil, err
	}

	slog.Debug("image pulled", "image", ref, "digest", image.Target().Digest.String())
	return image, nil
}

// Checks a pulled image's target descriptor against a configured digest pin.
//
// An empty pin accepts any image.
func verifyPin(target ocispec.Descriptor, pin string) error {
	if pin == "" {
		return nil
	}

	want, err := digest.Parse(pin)
	if err != nil {
		return errors.Wrapf(ErrImagePin, "parsing pin %q: %v", pin, err)
	}

	if target.Digest != want {
		return errors.Wrapf(ErrImagePin, "image digest %s does not match pin %s", target.Digest, want)
	}

	return nil
}

// Returns the default OCI platform for the host architecture.
func hostPlatform() string {
	return "linux/" + goruntime.GOARCH
}

// Returns a container ID with a random suffix.
//
// The suffix keeps concurrent runs on one host from colliding on container
// names.
func ContainerID(name string) string {
	return fmt.Sprintf("%s-%s", name, uuid.NewString()[:8])
}
