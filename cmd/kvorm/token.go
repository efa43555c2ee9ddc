package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	"github.com/artpar/kvorm/adapters/hasher"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Manage the API bearer token",
	Long: `Work with the bearer token that guards the document API.

The configuration stores a bcrypt hash of the token, never the token
itself. Note that a hash pasted straight into the config file is eaten
by environment expansion, so export it instead.

Examples:
  kvorm token hash my-secret-token
  kvorm token verify "$KVORM_AUTH_TOKEN_HASH" my-secret-token`,
}

var tokenHashCmd = &cobra.Command{
	Use:   "hash <token>",
	Short: "Print the bcrypt hash of a token",
	Args:  cobra.ExactArgs(1),
	RunE:  runTokenHash,
}

var tokenVerifyCmd = &cobra.Command{
	Use:   "verify <hash> <token>",
	Short: "Check a token against a stored hash",
	Args:  cobra.ExactArgs(2),
	RunE:  runTokenVerify,
}

var tokenCost int

func init() {
	rootCmd.AddCommand(tokenCmd)

	tokenCmd.AddCommand(tokenHashCmd)
	tokenCmd.AddCommand(tokenVerifyCmd)

	tokenHashCmd.Flags().IntVar(&tokenCost, "cost", bcrypt.DefaultCost, "bcrypt cost (4-31)")
}

func runTokenHash(cmd *cobra.Command, args []string) error {
	hash, err := hasher.NewBcrypt(tokenCost).Hash(args[0])
	if err != nil {
		return fmt.Errorf("hash token: %w", err)
	}

	fmt.Println(string(hash))
	fmt.Println()
	fmt.Println("Enable auth with:")
	fmt.Printf("  export KVORM_AUTH_TOKEN_HASH='%s'\n", hash)
	fmt.Println()
	fmt.Println("  auth:")
	fmt.Println("    enabled: true")
	fmt.Println("    token_hash: ${KVORM_AUTH_TOKEN_HASH}")

	return nil
}

func runTokenVerify(cmd *cobra.Command, args []string) error {
	hash, token := args[0], args[1]

	if !hasher.NewBcrypt(0).Compare([]byte(hash), token) {
		return fmt.Errorf("token does not match hash")
	}

	fmt.Printf("%s Token matches.\n", checkMark)
	return nil
}
