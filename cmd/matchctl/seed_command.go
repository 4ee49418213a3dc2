package main

import (
	"fmt"
	"os"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/okian/coachmatch/internal/loadgen"
)

const seedFilePermission = 0o600

func newSeedCommand() *cobra.Command {
	seedCmd := &cobra.Command{
		Use:   "seed",
		Short: "Work with profile fixtures",
	}
	seedCmd.AddCommand(newSeedGenerateCommand())
	return seedCmd
}

func newSeedGenerateCommand() *cobra.Command {
	var (
		clients int
		coaches int
		seed    uint64
		output  string
	)
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Write a synthetic fixture usable as seed_path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if clients < 0 || coaches < 0 {
				return fmt.Errorf("clients and coaches must not be negative")
			}
			fixture := loadgen.GenerateSeed(clients, coaches, seed)
			raw, err := json.MarshalIndent(fixture, "", "  ")
			if err != nil {
				return fmt.Errorf("encode fixture: %w", err)
			}
			if output == "" || output == "-" {
				_, err = fmt.Fprintln(cmd.OutOrStdout(), string(raw))
				return err
			}
			if err := os.WriteFile(output, append(raw, '\n'), seedFilePermission); err != nil {
				return fmt.Errorf("write fixture: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d clients and %d coaches to %s\n", clients, coaches, output)
			return nil
		},
	}
	cmd.Flags().IntVar(&clients, "clients", 50, "Number of clients")
	cmd.Flags().IntVar(&coaches, "coaches", 200, "Number of coaches")
	cmd.Flags().Uint64Var(&seed, "seed", 1, "Random seed; equal seeds give equal fixtures")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default stdout)")
	return cmd
}
