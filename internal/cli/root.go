package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/wheelsmith/wheelsmith/internal"
)

// Represents the root command for the wheelsmith CLI.
var RootCmd struct {
	Quiet   bool       `short:"q" help:"Suppress informational output."`
	Verbose bool       `short:"v" help:"Enable verbose output."`
	Debug   bool       `short:"d" help:"Enable debug output."`
	Config  string     `short:"c" help:"Path to the release configuration file." placeholder:"PATH"`
	Build   BuildCmd   `cmd:"" help:"Build release wheels for every configured interpreter variant."`
	Version VersionCmd `cmd:"" help:"Show version information."`
}

// Parses arguments, configures logging, and runs the selected subcommand.
func Execute() error {

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	kongCtx := kong.Parse(&RootCmd,
		kong.Name(internal.Name),
		kong.Description("Builds portable binary wheels for a Python project.\n\nRuns the build inside a manylinux container, repairs each wheel for the target platform tag, smoke-tests it, and collects the results into a wheelhouse directory."),
		kong.UsageOnError(),
		kong.Vars{
			"version": internal.VersionString(),
		},
		kong.BindTo(ctx, (*context.Context)(nil)),
	)

	configureLogger()

	return kongCtx.Run()
}

// Configures the global logger based on CLI flags.
func configureLogger() {
	debug := RootCmd.Debug || internal.IsDebug()
	quiet := RootCmd.Quiet || internal.IsQuiet()
	verbose := RootCmd.Verbose || internal.IsVerbose()

	switch {
	case debug:
		internal.LogLevel.Set(slog.LevelDebug)
	case quiet:
		internal.LogLevel.Set(slog.LevelWarn)
	default:
		internal.LogLevel.Set(slog.LevelInfo)
	}

	// Verbose adds source locations, which requires a fresh handler.
	if verbose {
		handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level:     internal.LogLevel,
			AddSource: true,
		})
		slog.SetDefault(slog.New(handler).WithGroup(internal.Name))
	}
}
