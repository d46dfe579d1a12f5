package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"careercompass/internal/app"
	"careercompass/internal/bootstrap"
	"careercompass/internal/config"
	"careercompass/internal/model"
)

func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "compassctl",
		Short:         "Maintenance commands for the embedding store",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("config", "", "path to config.toml (defaults to $CONFIG_FILE or configs/config.toml)")

	root.AddCommand(newCleanupCmd(), newSweepCmd(), newMarkOutdatedCmd())
	return root
}

// openStore opens the database (and Redis, for cache invalidation) without
// starting any workers.
func openStore(cmd *cobra.Command) (*bootstrap.App, error) {
	path, _ := cmd.Flags().GetString("config")
	var (
		cfg *config.Config
		err error
	)
	if path != "" {
		cfg, err = config.LoadFile(path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("load config failed: %w", err)
	}
	return bootstrap.Open(cmd.Context(), cfg, bootstrap.Options{})
}

func newCleanupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete stale embeddings by status and age",
		Long:  "Delete embeddings whose status matches and whose last update is older than the retention window. Use --dry-run to only count them.",
		RunE:  runCleanup,
	}
	cmd.Flags().Int("older-than-days", -1, "retention window in days (default from config)")
	cmd.Flags().String("status", "", "status to clean up (default from config)")
	cmd.Flags().Uint("user", 0, "only clean up records owned by this user id")
	cmd.Flags().Bool("dry-run", false, "count matching records without deleting")
	return cmd
}

func runCleanup(cmd *cobra.Command, _ []string) error {
	a, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	opts := app.CleanupOptions{
		OlderThanDays: a.Config.Embedding.CleanupOlderThanDays,
		Status:        model.Status(a.Config.Embedding.CleanupStatus),
	}
	if cmd.Flags().Changed("older-than-days") {
		opts.OlderThanDays, _ = cmd.Flags().GetInt("older-than-days")
	}
	if status, _ := cmd.Flags().GetString("status"); status != "" {
		opts.Status = model.Status(status)
	}
	opts.UserID, _ = cmd.Flags().GetUint("user")
	opts.DryRun, _ = cmd.Flags().GetBool("dry-run")

	result, err := a.Embeddings.Cleanup(cmd.Context(), opts)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if result.DryRun {
		_, _ = fmt.Fprintf(out, "dry run: %d %s embeddings updated before %s would be deleted\n",
			result.Matched, opts.Status, result.Cutoff.Format("2006-01-02T15:04:05Z07:00"))
		return nil
	}
	_, _ = fmt.Fprintf(out, "deleted %d %s embeddings\n", result.Deleted, opts.Status)
	return nil
}

func newSweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Delete embeddings past their expires_at",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			deleted, err := a.Embeddings.SweepExpired(cmd.Context())
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "removed %d expired embeddings\n", deleted)
			return nil
		},
	}
}

func newMarkOutdatedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mark-outdated ID",
		Short: "Mark one embedding as outdated",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil || id == 0 {
				return fmt.Errorf("invalid embedding id %q", args[0])
			}
			a, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.Embeddings.MarkOutdated(cmd.Context(), uint(id)); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "embedding %d marked outdated\n", id)
			return nil
		},
	}
}
