package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/boltkit/pkg/auth"
)

var hashPasswordCmd = &cobra.Command{
	Use:   "hash-password <password>",
	Short: "Generate a bcrypt hash for the static user table",
	Long: `Generate a bcrypt password hash suitable for the auth.users table.

Example:
  boltkitd hash-password s3cret

Then add the hash to your configuration:
  auth:
    mode: static
    users:
      neo4j: "<hash>"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		hash, err := auth.HashPassword(args[0])
		if err != nil {
			return fmt.Errorf("failed to hash password: %w", err)
		}
		fmt.Println(hash)
		return nil
	},
}
