package cmd

import (
	"fmt"
	"log"
	"strings"

	"github.com/spf13/cobra"

	"github.com/frahmantamala/document-request/internal/auth"
)

var tokenCmd = &cobra.Command{
	Use:   "token [user-id] [name]",
	Short: "Mint an access token",
	Long:  `Mint a signed access token for a student or admin, for local testing and service accounts.`,
	Args:  cobra.RangeArgs(1, 2),
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(configPath)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}

		role, err := auth.ParseRole(tokenRole)
		if err != nil {
			log.Fatalf("invalid role: %v", err)
		}

		name := ""
		if len(args) > 1 {
			name = strings.TrimSpace(args[1])
		}

		tokens := auth.NewJWTTokenGenerator(cfg.Security.JWTSecret, cfg.Security.JWTIssuer, cfg.Security.AccessTokenDuration)
		token, err := tokens.GenerateAccessToken(args[0], name, role)
		if err != nil {
			log.Fatalf("failed to generate token: %v", err)
		}
		fmt.Println(token)
	},
}

var tokenRole string

func init() {
	tokenCmd.Flags().StringVar(&tokenRole, "role", string(auth.RoleStudent), "token role (student or admin)")

	rootCmd.AddCommand(tokenCmd)
}
