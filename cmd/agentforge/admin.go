package main

import (
	"flag"
	"fmt"
	"os"
	"syscall"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/term"
)

// runAdmin dispatches admin subcommands.
func runAdmin(args []string) error {
	if len(args) == 0 || args[0] == "help" || args[0] == "--help" {
		printAdminHelp()
		return nil
	}

	switch args[0] {
	case "hash-key":
		return runAdminHashKey(args[1:])
	default:
		printAdminHelp()
		return fmt.Errorf("unknown admin command: %s", args[0])
	}
}

func printAdminHelp() {
	fmt.Fprintf(os.Stderr, `Usage: agentforge admin <command> [options]

Commands:
  hash-key   Hash an API key for the auth.api_key_hash config field
  help       Show this help message

Examples:
  agentforge admin hash-key
  agentforge admin hash-key --cost 12
`)
}

func runAdminHashKey(args []string) error {
	fs := flag.NewFlagSet("hash-key", flag.ContinueOnError)
	cost := fs.Int("cost", bcrypt.DefaultCost, "bcrypt cost factor")
	if err := fs.Parse(args); err != nil {
		return err
	}

	key, err := promptSecret("API key: ")
	if err != nil {
		return fmt.Errorf("read key: %w", err)
	}
	confirm, err := promptSecret("Confirm API key: ")
	if err != nil {
		return fmt.Errorf("read key: %w", err)
	}
	if key != confirm {
		return fmt.Errorf("keys do not match")
	}
	if key == "" {
		return fmt.Errorf("key must not be empty")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(key), *cost)
	if err != nil {
		return fmt.Errorf("hash key: %w", err)
	}

	fmt.Fprintln(os.Stderr, "Set this as auth.api_key_hash (or AGENTFORGE_API_KEY_HASH):")
	fmt.Println(string(hash))
	return nil
}

// promptSecret reads a line from the terminal without echoing.
func promptSecret(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(int(syscall.Stdin)) //nolint:unconvert // int conversion needed on some platforms
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
