package main

import (
	"fmt"
	"io"
	"os"
)

// Output sinks, swapped out in tests.
var (
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
)

func main() {
	os.Exit(dispatch(os.Args[1:]))
}

func dispatch(args []string) int {
	if len(args) < 1 {
		printUsage(stderr)
		return 1
	}

	switch args[0] {
	case "run":
		return runCmd(args[1:])
	case "show", "status":
		return showCmd(args[1:])
	case "runs":
		return runsCmd(args[1:])
	case "approve":
		return approveCmd(args[1:])
	case "kill":
		return killCmd(args[1:])
	case "unkill":
		return unkillCmd(args[1:])
	case "init":
		return initCmd(args[1:])
	case "version", "--version":
		fmt.Fprintln(stdout, versionLine())
		return 0
	case "help", "-h", "--help":
		printUsage(stdout)
		return 0
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n", args[0])
		printUsage(stderr)
		return 1
	}
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `pipegate

Finds a problem worth solving, defines a small product for it, and packages
the product as a bundle once a human has approved it.

Usage:
  pipegate <command> [flags]

Commands:
  run          Run the pipeline once
  show         Show the state of a run (default: current run)
  runs         List runs, newest first
  approve      Approve a run blocked at the gate
  kill         Engage the kill switch
  unkill       Release the kill switch
  init         Write a starter pipegate.yaml
  version      Show version
  help         Show this message

Exit codes:
  0 ok, 1 failed, 2 blocked awaiting approval, 3 killed

Examples:
  pipegate init
  pipegate run
  pipegate approve -by alice 20260101-120000
  pipegate run

Run 'pipegate <command> -h' for details.
`)
}
