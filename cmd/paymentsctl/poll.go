package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/r2blaze/r2blaze-backend/pkg/checkoutclient"
)

func pollCmd() *cobra.Command {
	var (
		apiURL     string
		reference  string
		interval   time.Duration
		attempts   int
		supportURL string
	)
	cmd := &cobra.Command{
		Use:   "poll",
		Short: "Poll the verify endpoint until a reference settles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := checkoutclient.NewClient(apiURL, nil)
			if err != nil {
				return err
			}
			poller := checkoutclient.Poller{
				Checker:     client,
				Interval:    interval,
				MaxAttempts: attempts,
				SupportURL:  supportURL,
			}
			result, err := poller.Poll(cmd.Context(), reference)
			if err != nil {
				return err
			}
			return report(cmd, result)
		},
	}
	cmd.Flags().StringVar(&apiURL, "api", "", "payments API base url")
	cmd.Flags().StringVar(&reference, "reference", "", "payment reference")
	cmd.Flags().DurationVar(&interval, "interval", checkoutclient.DefaultInterval, "wait between checks")
	cmd.Flags().IntVar(&attempts, "attempts", checkoutclient.DefaultMaxAttempts, "maximum checks")
	cmd.Flags().StringVar(&supportURL, "support-url", checkoutclient.DefaultSupportURL, "support link shown when polling gives up")
	_ = cmd.MarkFlagRequired("api")
	_ = cmd.MarkFlagRequired("reference")
	return cmd
}

func report(cmd *cobra.Command, result *checkoutclient.PollResult) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "reference: %s\nstatus:    %s\nattempts:  %d\n", result.Reference, result.Status, result.Attempts)
	if result.LastError != nil {
		fmt.Fprintf(out, "last error: %v\n", result.LastError)
	}
	switch {
	case result.Exhausted:
		fmt.Fprintln(out, result.Fallback())
		return errors.New("payment not confirmed")
	case result.Status == checkoutclient.StatusFailed:
		return errors.New("payment failed")
	}
	return nil
}
