package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "codeassist-auth",
	Short: "Token lifecycle and session authorization service",
	Long: `codeassist-auth issues and validates the auth, session and project tokens
that scope every request to a user, a live session and an open project.`,
	SilenceUsage: true,
}

func main() {
	rootCmd.AddCommand(serveCmd, pruneCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
