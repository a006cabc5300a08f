package paths

import (
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
)

const (

	// Name used for directory and file naming.
	toolName = "wheelsmith"

	// Default permission mode for directories.
	DefaultDirMode os.FileMode = 0755

	// Default permission mode for files.
	DefaultFileMode os.FileMode = 0644

	// Directory holding the installed interpreter variants inside the
	// build image. Variant tag globs are resolved against this directory.
	InterpreterRoot = "/opt/python"

	// Support directory shipped by manylinux images. Present together with
	// InterpreterRoot only inside the build container.
	internalRoot = "/opt/_internal"

	// Mount point for the project source tree inside the build container.
	ProjectMount = "/project"

	// Mount point for the shared output directory inside the build container.
	OutputMount = "/wheelhouse"

	// Directory inside the build container where the orchestrator binary is
	// injected before the container-side run.
	binaryDir = "/usr/local/bin"
)

// Name of the shared output directory created under the project root when no
// explicit output directory is given.
const OutputDirName = "wheelhouse"

// Path of the orchestrator binary inside the build container.
func ContainerBinary() string {
	return filepath.Join(binaryDir, toolName)
}

// Directory that receives the injected orchestrator binary.
func ContainerBinaryDir() string {
	return binaryDir
}

// Reports whether the process is running inside the build container.
//
// The build image is identified by the presence of both the installed
// interpreters directory and the manylinux support directory.
func InsideBuildContainer() bool {
	return isDir(InterpreterRoot) && isDir(internalRoot)
}

// Path to the user-level configuration file.
//
//	Linux:   $XDG_CONFIG_HOME/wheelsmith/release.hcl
//	macOS:   ~/Library/Application Support/wheelsmith/release.hcl
func UserConfig() string {
	return filepath.Join(xdg.ConfigHome, toolName, "release.hcl")
}

// Whether path exists and is a directory.
func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
