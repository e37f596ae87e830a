package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"classlog/internal/verification/temporal"
)

func newReconcileCmd() *cobra.Command {
	var exif, date, clock string
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Compare a photo capture time to the declared class date and time",
		Example: `  classlogctl reconcile --exif 2025-03-12T09:15:00 --date 2025-03-12 --time "9:00 AM"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			declared, err := time.Parse(time.DateOnly, date)
			if err != nil {
				return fmt.Errorf("--date must be YYYY-MM-DD: %w", err)
			}
			return writeJSON(cmd.OutOrStdout(), temporal.Reconcile(exif, declared, clock))
		},
	}
	cmd.Flags().StringVar(&exif, "exif", "", "photo capture time (ISO-8601 or EXIF format); empty means absent")
	cmd.Flags().StringVar(&date, "date", "", "declared class date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&clock, "time", "", "declared class time, e.g. 10:00 AM")
	_ = cmd.MarkFlagRequired("date")
	return cmd
}
