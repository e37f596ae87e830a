package cli

import (
	"io"

	"github.com/spf13/cobra"

	"classlog/internal/verification/store"
)

func newSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the SQL schema the postgres recorder expects",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := io.WriteString(cmd.OutOrStdout(), store.Schema)
			return err
		},
	}
}
