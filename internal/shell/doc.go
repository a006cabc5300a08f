// Runs external commands for the container-side build pipeline.
//
// The pipeline never shells out directly; it goes through the [Executor]
// interface so tests can substitute a fake. The [Local] implementation runs
// commands on the local system with the build environment merged over the
// parent environment and output streamed to the operator.
package shell
