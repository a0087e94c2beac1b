package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/r2blaze/r2blaze-backend/internal/payments"
)

const maxReferences = 1000

func referenceCmd() *cobra.Command {
	var (
		prefix string
		count  int
	)
	cmd := &cobra.Command{
		Use:   "reference",
		Short: "Generate payment references",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if count < 1 || count > maxReferences {
				return fmt.Errorf("-n must be between 1 and %d", maxReferences)
			}
			out := cmd.OutOrStdout()
			for range count {
				fmt.Fprintln(out, payments.GenerateReference(prefix))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&prefix, "prefix", "r2b", "reference prefix")
	cmd.Flags().IntVarP(&count, "count", "n", 1, "how many references to print")
	return cmd
}
