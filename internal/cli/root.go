package cli

import (
	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rechnungen",
		Short: "Invoice dashboard backed by a hosted records service",
		Long: "rechnungen serves a dashboard for invoices stored in a hosted records service, " +
			"mirrors them into a Google Sheet and offers a local records service for development.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			LoadEnvFile()
		},
	}
	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newWorkerCmd())
	cmd.AddCommand(newRecordsDevCmd())
	cmd.AddCommand(newListCmd())
	cmd.AddCommand(newSummaryCmd())
	cmd.AddCommand(newExtractCmd())
	return cmd
}

// NewRootCmdForTest returns the root command for testing.
func NewRootCmdForTest() *cobra.Command {
	return newRootCmd()
}

func Execute() error {
	return newRootCmd().Execute()
}
