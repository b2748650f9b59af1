package commands

import (
	"fmt"

	"clubops-backend/lib/osutil"
	"clubops-backend/services/subscriptions"

	"github.com/spf13/cobra"
)

var reportSendEmail *bool

func init() {
	reportSendEmail = reportCancellationsCmd.Flags().Bool("email", false, "Mail the report using the configured SMTP server.")
	reportCmd.AddCommand(reportCancellationsCmd)
	rootCmd.AddCommand(reportCmd)
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Render reports from the mirrored data.",
}

var reportCancellationsCmd = &cobra.Command{
	Use:   "cancellations [--email]",
	Short: "Who cancelled, why, and which club member it was.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := readConfig()
		store, db := openStore(cfg)
		defer db.Close()

		service := subscriptions.NewService(store, billingClient(cfg, db))
		cancellations, err := service.Cancellations(cmd.Context())
		if err != nil {
			osutil.Fatal("failed to load cancellations", err)
		}

		if *reportSendEmail {
			if err := subscriptions.SendCancellationsDigest(cfg.Smtp, cancellations); err != nil {
				osutil.Fatal("failed to send the digest", err)
			}
			return
		}
		fmt.Println(subscriptions.RenderCancellationsReport(cancellations))
	},
}
