package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"dcvisitor/internal/auth"
)

func newTokenCmd() *cobra.Command {
	var (
		subject string
		role    string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an access token",
		Long:  "Mint a signed access token for an operator or kiosk, using JWT_ISSUER and JWT_SIGNING_KEY.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if role != auth.RoleAdmin && role != auth.RoleKiosk {
				return fmt.Errorf("invalid role %q (want %s or %s)", role, auth.RoleAdmin, auth.RoleKiosk)
			}
			if ttl <= 0 {
				return fmt.Errorf("--ttl must be positive")
			}
			cfg := loadConfig()
			iss := auth.NewIssuer(cfg.JWTIssuer, cfg.JWTSigningKey, cfg.AccessTTL, cfg.RefreshTTL)
			tok, exp, err := iss.IssueAccess(subject, role, ttl)
			if err != nil {
				return err
			}
			if isJSON() {
				return printJSON(cmd, map[string]interface{}{"access_token": tok, "expires_at": exp.Unix(), "role": role})
			}
			printf(cmd, "%s\n", tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "operator", "token subject")
	cmd.Flags().StringVar(&role, "role", auth.RoleAdmin, "token role (admin|kiosk)")
	cmd.Flags().DurationVar(&ttl, "ttl", 12*time.Hour, "token lifetime")
	return cmd
}
