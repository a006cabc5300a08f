// Package runtime manages the transient build container via containerd.
//
// A [Runtime] connects to a containerd daemon, pulls the configured build
// image (optionally verifying a content digest pin), and starts a container
// with the project directory and output directory bind-mounted. The
// orchestrator binary is injected into the container as a tar stream, the
// container-side build is executed with its output streamed back to the
// operator, and the container is destroyed when the run completes.
//
// Example usage:
//
//	rt, err := runtime.New(runtime.DefaultAddress, runtime.DefaultNamespace)
//	if err != nil {
//	    return err
//	}
//	defer rt.Close()
//
//	image, err := rt.Pull(ctx, "quay.io/pypa/manylinux2014_x86_64", "")
//	if err != nil {
//	    return err
//	}
//
//	ctr, err := rt.StartContainer(ctx, image, runtime.ContainerID("build"), mounts)
//	if err != nil {
//	    return err
//	}
//	defer ctr.Destroy(ctx)
//
//	code, err := ctr.ExecStream(ctx, args, nil, "", os.Stdout, os.Stderr)
package runtime
