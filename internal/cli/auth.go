package cli

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"redemption-server/internal/infrastructure/auth"
)

func authCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Dashboard bearer token utilities",
	}

	var (
		secret     string
		issuer     string
		userID     string
		role       string
		merchantID string
		ttl        time.Duration
	)
	token := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for a customer or staff member",
		Long: `Issue a bearer token signed with the dashboard secret.

Staff membership is not checked here. Use the admin API
when the staff directory should be consulted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				return errors.New("--secret or JWT_SECRET is required")
			}
			if userID == "" {
				return errors.New("--user is required")
			}
			p := auth.Principal{UserID: userID, Role: auth.Role(role), MerchantID: merchantID}
			switch p.Role {
			case auth.RoleCustomer:
				p.MerchantID = ""
			case auth.RoleStaff:
				if p.MerchantID == "" {
					return errors.New("--merchant is required for staff")
				}
			default:
				return fmt.Errorf("unknown role: %s", role)
			}

			signed, err := auth.NewAuthenticator(secret, issuer).Issue(p, time.Now(), ttl)
			if err != nil {
				return fmt.Errorf("failed to issue token: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), signed)
			return nil
		},
	}
	token.Flags().StringVar(&secret, "secret", os.Getenv("JWT_SECRET"), "dashboard signing secret")
	token.Flags().StringVar(&issuer, "issuer", envOr("JWT_ISSUER", "merchant-dashboard"), "token issuer")
	token.Flags().StringVar(&userID, "user", "", "user id")
	token.Flags().StringVar(&role, "role", string(auth.RoleCustomer), "customer or staff")
	token.Flags().StringVar(&merchantID, "merchant", "", "merchant id (staff only)")
	token.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	cmd.AddCommand(token)

	return cmd
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
