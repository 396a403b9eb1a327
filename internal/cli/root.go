// Package cli 運用コマンド redemptionctl
package cli

import (
	"github.com/spf13/cobra"

	otelinfra "redemption-server/internal/infrastructure/observability/otel"
)

// NewRootCommand ルートコマンドを作成
func NewRootCommand(version string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "redemptionctl",
		Short: "Operational tool for the coupon redemption server",
		Long: `redemptionctl manages the coupon redemption server out of band.

It applies schema migrations, maintains the signing key file,
runs the expiry sweep once and issues dashboard bearer tokens.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(keysCmd())
	rootCmd.AddCommand(sweepCmd())
	rootCmd.AddCommand(authCmd())

	return rootCmd
}

func newLogger() *otelinfra.Logger {
	return otelinfra.NewLogger(otelinfra.Tracer("redemptionctl"))
}
