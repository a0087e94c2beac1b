package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/r2blaze/r2blaze-backend/pkg/paystack"
)

const secretEnv = "R2BLAZE_PAYSTACK_SECRET_KEY"

// signCmd prints the x-paystack-signature for a payload, for replaying a
// webhook against a local or staging API.
func signCmd() *cobra.Command {
	var (
		secret string
		file   string
	)
	cmd := &cobra.Command{
		Use:   "sign",
		Short: "Compute the Paystack signature of a notification body",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				secret = os.Getenv(secretEnv)
			}
			if secret == "" {
				return fmt.Errorf("--secret or %s is required", secretEnv)
			}
			body, err := readPayload(cmd.InOrStdin(), file)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), paystack.Sign(body, []byte(secret)))
			return nil
		},
	}
	cmd.Flags().StringVar(&secret, "secret", "", "Paystack secret key (defaults to $"+secretEnv+")")
	cmd.Flags().StringVar(&file, "file", "-", "payload file, - for stdin")
	return cmd
}

// readPayload returns the exact bytes; a trailing newline changes the signature.
func readPayload(stdin io.Reader, file string) ([]byte, error) {
	var (
		body []byte
		err  error
	)
	if file == "" || file == "-" {
		body, err = io.ReadAll(stdin)
	} else {
		body, err = os.ReadFile(file)
	}
	if err != nil {
		return nil, fmt.Errorf("read payload: %w", err)
	}
	if len(body) == 0 {
		return nil, errors.New("payload is empty")
	}
	return body, nil
}
