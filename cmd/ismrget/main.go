package main

import (
	"fmt"
	"os"
)

// Exit codes
const (
	ExitSuccess        = 0
	ExitGeneralError   = 1
	ExitInvalidArgs    = 2
	ExitAuthFailed     = 3
	ExitMaintenance    = 4
	ExitPartialFailure = 5
	ExitStorageError   = 6
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		printUsage()
		return ExitInvalidArgs
	}

	command := args[0]
	cmdArgs := args[1:]

	switch command {
	case "fetch":
		return runFetch(cmdArgs)
	case "login":
		return runLogin(cmdArgs)
	case "logout":
		return runLogout(cmdArgs)
	case "help", "-h", "--help":
		printUsage()
		return ExitSuccess
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		return ExitInvalidArgs
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `Usage: ismrget <command> [options]

Commands:
  fetch   Download station data over a time range into local or object storage
  login   Exchange ISMR_EMAIL/ISMR_PASSWORD for a token and cache it
  logout  Remove the cached token

Run 'ismrget <command> -h' for command-specific help.`)
}
