package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mappingforchange/geokey-airquality/internal/auth"
	"github.com/mappingforchange/geokey-airquality/internal/model"
)

var (
	tokenUserID    int64
	tokenName      string
	tokenEmail     string
	tokenSuperuser bool
	tokenTTL       time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a bearer token for a host user",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("token"); err != nil {
			return err
		}

		ttl := tokenTTL
		if ttl == 0 {
			ttl = cfg.Auth.TTL()
		}
		tokens, err := auth.NewTokens(cfg.Auth.Secret, cfg.Auth.Issuer, ttl)
		if err != nil {
			return err
		}

		token, err := tokens.Issue(model.User{
			ID:          tokenUserID,
			DisplayName: tokenName,
			Email:       tokenEmail,
			IsSuperuser: tokenSuperuser,
		})
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().Int64Var(&tokenUserID, "user-id", 0, "host user id (required)")
	tokenCmd.Flags().StringVar(&tokenName, "name", "", "display name")
	tokenCmd.Flags().StringVar(&tokenEmail, "email", "", "email address")
	tokenCmd.Flags().BoolVar(&tokenSuperuser, "superuser", false, "grant superuser rights")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 0, "token lifetime (default from config)")
	_ = tokenCmd.MarkFlagRequired("user-id")
	rootCmd.AddCommand(tokenCmd)
}
