// Provides well-known filesystem locations for the wheelsmith CLI.
//
// Host-side paths (the user configuration file) follow XDG conventions via
// the xdg package. Container-side paths describe the fixed layout of the
// manylinux build image: the installed-interpreters directory, the marker
// directory that identifies the image, and the mount points used when the
// host launches a build container.
package paths
