package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"oktel-timekeeper/internal/seed"
)

var seedDryRun bool

func init() {
	rootCmd.AddCommand(seedCmd)
	seedCmd.Flags().BoolVar(&seedDryRun, "dry-run", false, "validate the file without writing to the store")
}

var seedCmd = &cobra.Command{
	Use:   "seed [policies.yaml]",
	Short: "Load shifts and break policies into the store",
	Long:  "Load shifts and break policies into the store. Without an argument the POLICIES_FILE setting is used.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		path := cfg.PoliciesFile
		if len(args) == 1 {
			path = args[0]
		}
		if path == "" {
			return errors.New("no policies file given")
		}

		f, err := seed.Load(path)
		if err != nil {
			return err
		}
		if seedDryRun {
			fmt.Fprintf(os.Stdout, "%s: %d shifts, %d policies OK\n", path, len(f.Shifts), len(f.Policies))
			return nil
		}

		ctx := cmd.Context()
		st, err := openStore(ctx, cfg)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer st.Close(context.Background())

		if err := seed.Apply(ctx, st, f); err != nil {
			return fmt.Errorf("seed policies: %w", err)
		}
		fmt.Fprintf(os.Stdout, "seeded %d shifts, %d policies\n", len(f.Shifts), len(f.Policies))
		return nil
	},
}
