package main

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Generate a service token and its bcrypt hash",
	Long: `Generate a random service bearer token and the bcrypt hash to put
in the configuration:

  auth:
    token_hash: "<hash>"

The plain token is shown once; give it to calling services.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		raw := make([]byte, 24)
		if _, err := rand.Read(raw); err != nil {
			return fmt.Errorf("generate token: %w", err)
		}
		token := base64.RawURLEncoding.EncodeToString(raw)

		hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("hash token: %w", err)
		}

		fmt.Printf("Token:      %s\n", token)
		fmt.Printf("token_hash: %s\n", string(hash))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(tokenCmd)
}
