package commands

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/condgate/condgate/internal/auth"
)

var (
	keygenName string
	keygenRole string
)

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate an API key for the server's key file",
	Long: `Generate a new API key and print a YAML entry for the server's
API_KEYS_FILE. The plaintext key is shown exactly once; only its bcrypt
hash goes into the file.

Examples:
  condgate keygen --name ci-deploy --role admin
  condgate keygen --name dashboard --role readonly`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !auth.ValidateRole(keygenRole) {
			return fmt.Errorf("invalid role %q, valid roles: readonly, admin, superadmin", keygenRole)
		}

		key, err := auth.GenerateAPIKey()
		if err != nil {
			return fmt.Errorf("failed to generate key: %w", err)
		}

		hash, err := auth.HashAPIKey(key)
		if err != nil {
			return fmt.Errorf("failed to hash key: %w", err)
		}

		fmt.Printf("API key (store it now, it is not shown again):\n\n  %s\n\n", key)
		fmt.Println("Add this entry to the server's API_KEYS_FILE:")
		fmt.Println()
		fmt.Println("keys:")
		fmt.Printf("  - id: %s\n", uuid.NewString())
		fmt.Printf("    name: %s\n", keygenName)
		fmt.Printf("    role: %s\n", keygenRole)
		fmt.Printf("    hash: %q\n", hash)
		fmt.Println("    enabled: true")

		return nil
	},
}

func init() {
	rootCmd.AddCommand(keygenCmd)

	keygenCmd.Flags().StringVar(&keygenName, "name", "", "Human-readable name for the key")
	keygenCmd.Flags().StringVar(&keygenRole, "role", "admin", "Role for the key (readonly, admin, superadmin)")

	if err := keygenCmd.MarkFlagRequired("name"); err != nil {
		panic(err)
	}
}
