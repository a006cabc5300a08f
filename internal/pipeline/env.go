package pipeline

import (
	"maps"
	"slices"
)

// Fixed environment applied to every build subprocess.
//
// The hash seed pins interpreter string hashing so test outcomes do not vary
// between runs. Bytecode writing is off because the build directories are
// deleted anyway. CI marks the run as a continuous-integration context for
// tools that change behavior under CI. The resource variable tells the test
// suite to skip network-dependent tests, which cannot run inside the build
// container.
var baseEnv = map[string]string{
	"PYTHONUNBUFFERED":         "1",
	"PYTHONDONTWRITEBYTECODE":  "1",
	"PYTHONHASHSEED":           "8675309",
	"CI":                       "1",
	"GEVENTTEST_USE_RESOURCES": "-network",
}

// The environment shared by all subprocess invocations of a run.
//
// Holds the fixed reproducibility variables with the configuration's extra
// variables merged on top. The environment is immutable for the duration of
// the run; it is merged over the parent process environment per invocation
// rather than mutating process-global state.
type buildEnv struct {
	vars map[string]string
}

// Creates the run environment from the configured extra variables.
//
// Extra variables override the fixed set on key collision.
func newBuildEnv(extra map[string]string) *buildEnv {
	vars := make(map[string]string, len(baseEnv)+len(extra))
	maps.Copy(vars, baseEnv)
	maps.Copy(vars, extra)
	return &buildEnv{vars: vars}
}

// Formats the environment as a sorted list of "key=value" strings suitable
// for subprocess invocation.
func (e *buildEnv) environ() []string {
	env := make([]string, 0, len(e.vars))
	for k, v := range e.vars {
		env = append(env, k+"="+v)
	}
	slices.Sort(env)
	return env
}
