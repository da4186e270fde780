package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	flag "github.com/spf13/pflag"
	"go.uber.org/automaxprocs/maxprocs"
)

// Version is set at build time via ldflags.
var Version = "dev"

func main() {
	// A missing .env is normal; secrets may come from the real environment.
	_ = godotenv.Load()

	// Error ignored: maxprocs.Set only fails if GOMAXPROCS env is invalid,
	// in which case Go runtime defaults apply.
	_, _ = maxprocs.Set(maxprocs.Logger(func(string, ...interface{}) {}))

	os.Exit(runMain(os.Args, DefaultEnv()))
}

// runMain dispatches to a command and returns the process exit code.
func runMain(args []string, env *Environment) int {
	warnUnknownEnvVars(env.Stderr, env.Environ())

	if len(args) < 2 {
		printUsage(env.Stderr)
		return ExitUsage
	}

	ctx, stop := notifyContext(context.Background())
	defer stop()

	var err error
	switch cmd, rest := args[1], args[2:]; cmd {
	case "serve":
		err = runServe(ctx, rest, env)
	case "render":
		err = runRender(ctx, rest, env)
	case "doctor":
		return runDoctorCmd(rest, env)
	case "completion":
		err = runCompletion(rest, env)
	case "version", "--version":
		fmt.Fprintf(env.Stdout, "texbot %s\n", Version)
		return ExitSuccess
	case "help", "--help", "-h":
		runHelp(rest, env)
		return ExitSuccess
	default:
		fmt.Fprintf(env.Stderr, "Unknown command: %s\n", cmd)
		printUsage(env.Stderr)
		return ExitUsage
	}

	if errors.Is(err, flag.ErrHelp) {
		return ExitSuccess
	}
	if err != nil {
		fmt.Fprintf(env.Stderr, "error: %v\n", err)
		return exitCodeFor(err)
	}
	return ExitSuccess
}
