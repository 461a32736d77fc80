package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/aevrHQ/ui/internal/auth"
	"github.com/aevrHQ/ui/utils"
)

var (
	tokenSubject string
	tokenRole    string
	tokenTTL     time.Duration
)

// tokenCmd 使用配置的密钥签发 API 访问令牌
var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue an API access token",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}

		ttl := cfg.AuthTokenTTL
		if tokenTTL > 0 {
			ttl = tokenTTL
		}
		svc, err := auth.NewJWTService(cfg.AuthJWTSecret, ttl)
		if err != nil {
			return err
		}

		token, expiresAt, err := svc.GenerateAccessToken(tokenSubject, tokenRole)
		if err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), token)
		fmt.Fprintf(cmd.ErrOrStderr(), "expires at %s\n", expiresAt.Format(time.RFC3339))
		return nil
	},
}

// tokenSecretCmd 生成可用作 auth_jwt_secret 的随机密钥
var tokenSecretCmd = &cobra.Command{
	Use:   "secret",
	Short: "Generate a random secret for auth_jwt_secret",
	RunE: func(cmd *cobra.Command, args []string) error {
		secret, err := utils.GenerateRandomToken(auth.MinSecretLength)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), secret)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVarP(&tokenSubject, "subject", "s", "", "token subject, e.g. a client or user name (required)")
	tokenCmd.Flags().StringVar(&tokenRole, "role", "", "token role (default \"uploader\")")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 0, "token lifetime (default auth_token_ttl)")
	_ = tokenCmd.MarkFlagRequired("subject")
	tokenCmd.AddCommand(tokenSecretCmd)
	rootCmd.AddCommand(tokenCmd)
}
