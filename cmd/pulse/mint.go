package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/digiy/pulse/internal/auth"
	"github.com/digiy/pulse/internal/config"
)

func newMintCmd() *cobra.Command {
	var merchantID string

	cmd := &cobra.Command{
		Use:   "mint",
		Short: "Issue a merchant credential with the configured secret",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			return runMint(cmd.OutOrStdout(), cfg.Auth, merchantID)
		},
	}
	cmd.Flags().StringVarP(&merchantID, "merchant", "m", "", "merchant id (defaults to auth.defaultMerchant)")
	return cmd
}

func runMint(out io.Writer, cfg config.AuthConfig, merchantID string) error {
	if merchantID == "" {
		merchantID = cfg.DefaultMerchant
	}

	verifier, err := auth.NewVerifier(auth.VerifierConfig{SecretKey: cfg.JWTSecret, TokenTTL: cfg.TokenTTL})
	if err != nil {
		return fmt.Errorf("failed to create verifier: %w", err)
	}

	token, _, err := verifier.Mint(merchantID)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, token)
	return err
}
