package main

import (
	"fmt"
	"io"
)

// printUsage prints the main usage message.
func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: texbot <command> [flags] [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  serve      Run the chat bot and HTTP server")
	fmt.Fprintln(w, "  render     Render one expression to PNG")
	fmt.Fprintln(w, "  doctor     Check the toolchain and environment")
	fmt.Fprintln(w, "  completion Generate a shell completion script")
	fmt.Fprintln(w, "  version    Show version information")
	fmt.Fprintln(w, "  help       Show help for a command")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Run 'texbot help <command>' for details on a specific command.")
}

// printRenderUsage prints usage for the render command.
func printRenderUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: texbot render [flags] <latex | ->")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Render one expression and print the image path.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	fmt.Fprintln(w, "  -m, --mode <s>            inline (default) or displayed")
	fmt.Fprintln(w, "  -o, --output <path>       Copy the image to path")
	fmt.Fprintln(w, "  -c, --config <name>       Config file name or path")
	fmt.Fprintln(w, "      --renderer <s>        local, remote, browser")
	fmt.Fprintln(w, "      --work-dir <path>     Artifact directory")
	fmt.Fprintln(w, "  -t, --timeout <d>         Per-stage timeout (e.g., 30s)")
	fmt.Fprintln(w, "  -q, --quiet               Only show errors")
	fmt.Fprintln(w, "  -v, --verbose             Debug logging")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Exit codes: 0 ok, 1 general, 2 usage, 3 I/O, 4 toolchain, 5 compile error")
}

// printServeUsage prints usage for the serve command.
func printServeUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: texbot serve [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Run the chat bot and the HTTP server until interrupted.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	fmt.Fprintln(w, "  -c, --config <name>       Config file name or path")
	fmt.Fprintln(w, "      --addr <host:port>    HTTP listen address")
	fmt.Fprintln(w, "      --no-chat             Do not connect to chat")
	fmt.Fprintln(w, "      --no-http             Do not start the HTTP server")
	fmt.Fprintln(w, "  -q, --quiet               Only show errors")
	fmt.Fprintln(w, "  -v, --verbose             Debug logging")
}

// printDoctorUsage prints usage for the doctor command.
func printDoctorUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: texbot doctor [--json] [-c config]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Check that the configured renderer can run on this machine.")
}

// runHelp prints help for a specific command.
func runHelp(args []string, env *Environment) {
	if len(args) == 0 {
		printUsage(env.Stdout)
		return
	}

	switch args[0] {
	case "render":
		printRenderUsage(env.Stdout)
	case "serve":
		printServeUsage(env.Stdout)
	case "doctor":
		printDoctorUsage(env.Stdout)
	case "completion":
		printCompletionUsage(env.Stdout)
	case "version":
		fmt.Fprintln(env.Stdout, "Usage: texbot version")
		fmt.Fprintln(env.Stdout)
		fmt.Fprintln(env.Stdout, "Show version information.")
	case "help":
		fmt.Fprintln(env.Stdout, "Usage: texbot help [command]")
		fmt.Fprintln(env.Stdout)
		fmt.Fprintln(env.Stdout, "Show help for a command.")
	default:
		fmt.Fprintf(env.Stderr, "Unknown command: %s\n", args[0])
		printUsage(env.Stderr)
	}
}
