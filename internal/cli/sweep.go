package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"redemption-server/internal/application/expiry"
	"redemption-server/internal/infrastructure/config"
	otelinfra "redemption-server/internal/infrastructure/observability/otel"
	"redemption-server/internal/infrastructure/persistence/mysql"
)

func sweepCmd() *cobra.Command {
	var batch int

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Expire active coupons past their business deadline once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if batch <= 0 {
				return errors.New("--batch must be positive")
			}
			dbCfg, err := config.LoadDatabase()
			if err != nil {
				return err
			}
			db, err := mysql.NewDB(dbCfg)
			if err != nil {
				return err
			}
			defer db.Close()

			metrics, err := otelinfra.NewMetrics("redemptionctl")
			if err != nil {
				return err
			}
			sweeper := expiry.NewSweeper(mysql.NewCouponRepository(db), 0, batch, newLogger(), metrics)
			n, err := sweeper.SweepOnce(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "expired %d coupons\n", n)
			return nil
		},
	}
	cmd.Flags().IntVar(&batch, "batch", 100, "coupons loaded per batch")

	return cmd
}
