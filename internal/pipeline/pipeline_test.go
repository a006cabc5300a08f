package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/wheelsmith/wheelsmith/internal/config"
	"github.com/wheelsmith/wheelsmith/internal/shell"
)

// Simulates the external build tools.
//
// Commands are recorded in order. The tools that produce files (git clone,
// pip wheel, auditwheel repair) create plausible filesystem effects so the
// pipeline's globbing and collection logic runs against real paths. Setting
// failOn makes the matching tool exit with an error, everything before it
// having succeeded.
type fakeExecutor struct {
	t        *testing.T
	commands []shell.Command
	failOn   string
}

func (f *fakeExecutor) Run(ctx context.Context, cmd shell.Command) error {
	f.t.Helper()
	f.commands = append(f.commands, cmd)

	tool := f.tool(cmd)
	if f.failOn != "" && tool == f.failOn {
		return errors.New(tool + " failed")
	}

	switch tool {
	case "git":
		// git clone <project> <dest>
		dest := cmd.Args[len(cmd.Args)-1]
		if err := os.MkdirAll(dest, 0755); err != nil {
			f.t.Fatal(err)
		}
	case "pip wheel":
		dist := filepath.Join(cmd.Dir, "dist")
		if err := os.MkdirAll(dist, 0755); err != nil {
			f.t.Fatal(err)
		}
		name := "demo-1.0-" + f.variantOf(cmd) + "-linux_x86_64.whl"
		f.touch(filepath.Join(dist, name))
		// Without --no-deps, pip also builds a wheel for every dependency.
		if !slices.Contains(cmd.Args, "--no-deps") {
			f.touch(filepath.Join(dist, "greenlet-3.1-"+f.variantOf(cmd)+"-linux_x86_64.whl"))
		}
	case "auditwheel":
		// auditwheel repair <wheel> --plat <tag> -w wheelhouse
		wheel := cmd.Args[2]
		house := filepath.Join(cmd.Dir, "wheelhouse")
		if err := os.MkdirAll(house, 0755); err != nil {
			f.t.Fatal(err)
		}
		repaired := strings.Replace(filepath.Base(wheel), "linux_x86_64", "manylinux2014_x86_64", 1)
		f.touch(filepath.Join(house, repaired))
	}

	return nil
}

// Classifies a command by the tool it invokes.
func (f *fakeExecutor) tool(cmd shell.Command) string {
	base := filepath.Base(cmd.Args[0])
	switch base {
	case "pip":
		return "pip " + cmd.Args[1]
	case "git", "yum", "auditwheel", "python":
		return base
	}
	return cmd.Args[0]
}

// Derives the variant tag from an interpreter binary path like
// <root>/cp311-cp311/bin/pip.
func (f *fakeExecutor) variantOf(cmd shell.Command) string {
	return filepath.Base(filepath.Dir(filepath.Dir(cmd.Args[0])))
}

func (f *fakeExecutor) touch(path string) {
	f.t.Helper()
	if err := os.WriteFile(path, []byte("wheel"), 0644); err != nil {
		f.t.Fatal(err)
	}
}

// Counts recorded commands by tool name.
func (f *fakeExecutor) count(tool string) int {
	n := 0
	for _, cmd := range f.commands {
		if f.tool(cmd) == tool {
			n++
		}
	}
	return n
}

// Creates a test fixture: an interpreter root with the given variant
// directories, plus empty project, output, and build root directories.
func fixture(t *testing.T, variants ...string) Options {
	t.Helper()

	interpRoot := t.TempDir()
	for _, v := range variants {
		if err := os.MkdirAll(filepath.Join(interpRoot, v, "bin"), 0755); err != nil {
			t.Fatal(err)
		}
	}

	rel := config.Default()
	rel.Variants = variants
	rel.Packages = nil

	return Options{
		Release:         rel,
		Project:         t.TempDir(),
		Output:          filepath.Join(t.TempDir(), "wheelhouse"),
		InterpreterRoot: interpRoot,
		BuildRoot:       t.TempDir(),
	}
}

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestRunCompleteness(t *testing.T) {
	opts := fixture(t, "cp311-cp311", "cp312-cp312")
	exec := &fakeExecutor{t: t}

	if err := Run(context.Background(), exec, opts); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	wheels := listDir(t, opts.Output)
	if len(wheels) != 2 {
		t.Fatalf("wheels = %v, want one per variant", wheels)
	}
	for _, variant := range []string{"cp311-cp311", "cp312-cp312"} {
		found := false
		for _, w := range wheels {
			if strings.Contains(w, variant) {
				found = true
			}
		}
		if !found {
			t.Errorf("no wheel attributable to %s in %v", variant, wheels)
		}
	}

	// Each variant runs its own install and smoke test.
	if got := exec.count("pip install"); got != 2 {
		t.Errorf("pip install count = %d, want 2", got)
	}
	if got := exec.count("python"); got != 2 {
		t.Errorf("test run count = %d, want 2", got)
	}
}

func TestRunRemovesBuildDirectories(t *testing.T) {
	opts := fixture(t, "cp311-cp311")
	exec := &fakeExecutor{t: t}

	if err := Run(context.Background(), exec, opts); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if leftovers := listDir(t, opts.BuildRoot); len(leftovers) != 0 {
		t.Errorf("build directories left behind: %v", leftovers)
	}
}

func TestRunFailFast(t *testing.T) {
	opts := fixture(t, "cp311-cp311", "cp312-cp312")
	exec := &fakeExecutor{t: t, failOn: "auditwheel"}

	err := Run(context.Background(), exec, opts)
	if err == nil {
		t.Fatal("expected error, got nil")
	}

	// The failing variant's wheel never reaches the output directory.
	if wheels := listDir(t, opts.Output); len(wheels) != 0 {
		t.Errorf("output not empty after failure: %v", wheels)
	}

	// The second variant is never attempted.
	if got := exec.count("git"); got != 1 {
		t.Errorf("clone count = %d, want 1 (no variant after the failing one)", got)
	}

	// No install or test step runs after the failing repair.
	if got := exec.count("pip install"); got != 0 {
		t.Errorf("pip install count = %d, want 0", got)
	}
}

func TestRunOutputReset(t *testing.T) {
	opts := fixture(t, "cp311-cp311")
	exec := &fakeExecutor{t: t}

	// Stale artifact from a previous run.
	if err := os.MkdirAll(opts.Output, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(opts.Output, "stale.whl"), []byte("old"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := Run(context.Background(), exec, opts); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	wheels := listDir(t, opts.Output)
	if slices.Contains(wheels, "stale.whl") {
		t.Errorf("stale artifact survived the reset: %v", wheels)
	}
	if len(wheels) != 1 {
		t.Errorf("wheels = %v, want exactly the current run's artifact", wheels)
	}
}

func TestRunEnvPropagation(t *testing.T) {
	opts := fixture(t, "cp311-cp311")
	opts.Release.Env = map[string]string{"DEMOTEST_USE_RESOURCES": "-network"}
	exec := &fakeExecutor{t: t}

	if err := Run(context.Background(), exec, opts); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, cmd := range exec.commands {
		for _, want := range []string{"PYTHONHASHSEED=8675309", "DEMOTEST_USE_RESOURCES=-network"} {
			if !slices.Contains(cmd.Env, want) {
				t.Errorf("command %v missing env %s", cmd.Args, want)
			}
		}
	}
}

func TestRunDisablesNetworkResources(t *testing.T) {
	opts := fixture(t, "cp311-cp311")
	exec := &fakeExecutor{t: t}

	if err := Run(context.Background(), exec, opts); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// The test runner must see the resource restriction even when the
	// configuration carries no extra environment.
	ran := false
	for _, cmd := range exec.commands {
		if exec.tool(cmd) != "python" {
			continue
		}
		ran = true
		if !slices.Contains(cmd.Env, "GEVENTTEST_USE_RESOURCES=-network") {
			t.Errorf("test runner env lacks resource restriction: %v", cmd.Env)
		}
	}
	if !ran {
		t.Fatal("no test runner invocation recorded")
	}
}

func TestRunExcludesDependencyWheels(t *testing.T) {
	opts := fixture(t, "cp311-cp311")
	exec := &fakeExecutor{t: t}

	if err := Run(context.Background(), exec, opts); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	wheels := listDir(t, opts.Output)
	if len(wheels) != 1 {
		t.Fatalf("wheels = %v, want exactly the project's own wheel", wheels)
	}
	if !strings.HasPrefix(wheels[0], "demo-") {
		t.Errorf("collected wheel %q is not the project's", wheels[0])
	}
}

func TestRunInstallsNativePackages(t *testing.T) {
	opts := fixture(t, "cp311-cp311")
	opts.Release.Packages = []string{"libffi-devel"}
	exec := &fakeExecutor{t: t}

	if err := Run(context.Background(), exec, opts); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := exec.count("yum"); got != 1 {
		t.Fatalf("yum count = %d, want 1", got)
	}
	first := exec.commands[0]
	if first.Args[0] != "yum" || !slices.Contains(first.Args, "libffi-devel") {
		t.Errorf("first command = %v, want yum install of libffi-devel", first.Args)
	}
}

func TestRunNoMatchingInterpreter(t *testing.T) {
	opts := fixture(t, "cp311-cp311")
	opts.Release.Variants = []string{"cp399-cp399"}
	exec := &fakeExecutor{t: t}

	err := Run(context.Background(), exec, opts)
	if !errors.Is(err, ErrNoInterpreters) {
		t.Fatalf("err = %v, want ErrNoInterpreters", err)
	}
}

func TestRunCleansProjectMetadata(t *testing.T) {
	opts := fixture(t, "cp311-cp311")
	exec := &fakeExecutor{t: t}

	for _, dir := range []string{"dist", "build", "demo.egg-info"} {
		if err := os.MkdirAll(filepath.Join(opts.Project, dir), 0755); err != nil {
			t.Fatal(err)
		}
	}

	if err := Run(context.Background(), exec, opts); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, dir := range []string{"dist", "build", "demo.egg-info"} {
		if _, err := os.Stat(filepath.Join(opts.Project, dir)); !os.IsNotExist(err) {
			t.Errorf("%s still present in project root", dir)
		}
	}
}

func TestResolveVariantsGlob(t *testing.T) {
	root := t.TempDir()
	for _, dir := range []string{"cp311-cp311", "cp311-cp311d", "cp312-cp312"} {
		if err := os.MkdirAll(filepath.Join(root, dir), 0755); err != nil {
			t.Fatal(err)
		}
	}
	// A stray file must not become a variant.
	if err := os.WriteFile(filepath.Join(root, "cp311-notes.txt"), nil, 0644); err != nil {
		t.Fatal(err)
	}

	variants, err := resolveVariants(root, "cp311-cp311")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := make([]string, 0, len(variants))
	for _, v := range variants {
		got = append(got, v.name())
	}
	want := []string{"cp311-cp311", "cp311-cp311d"}
	if !slices.Equal(got, want) {
		t.Errorf("variants = %v, want %v", got, want)
	}
}

func TestWithExtras(t *testing.T) {
	tests := []struct {
		name   string
		target string
		extras string
		want   string
	}{
		{
			name:   "with extras",
			target: "demo.whl",
			extras: "test",
			want:   "demo.whl[test]",
		},
		{
			name:   "without extras",
			target: "demo.whl",
			want:   "demo.whl",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := withExtras(tt.target, tt.extras); got != tt.want {
				t.Errorf("withExtras = %q, want %q", got, tt.want)
			}
		})
	}
}
