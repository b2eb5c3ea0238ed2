package main

import (
	"context"
	"fmt"

	"github.com/jrsteele09/codeassist-auth/internal/config"
	"github.com/spf13/cobra"
)

var pruneCmd = &cobra.Command{
	Use:   "prune-projects",
	Short: "Delete project tokens whose session no longer exists",
	Long: `
Usage: codeassist-auth prune-projects [options]

  Project tokens never expire on their own. When a session expires or is
  replaced its projects stay in the store; this command scans the project
  namespace once and removes them:

      $ codeassist-auth prune-projects --env-file=.env
  `,
	RunE: func(cmd *cobra.Command, args []string) error {
		return prune(cmd.Context())
	},
}

func init() {
	pruneCmd.Flags().StringVar(&envFile, "env-file", "", "Path to a .env file loaded before reading configuration")
}

func prune(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := loadEnv(envFile); err != nil {
		return err
	}

	c := config.New()
	logger, logCloser, err := newLogger(c)
	if err != nil {
		return err
	}
	defer logCloser.Close()

	store, err := dialStore(ctx, c, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	manager, err := buildManager(c, store, logger)
	if err != nil {
		return err
	}
	pruned, err := manager.PruneProjects(ctx)
	if err != nil {
		return fmt.Errorf("pruning projects: %w", err)
	}
	fmt.Printf("pruned %d orphaned project tokens\n", pruned)
	return nil
}
