package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"rechnungen/internal/core"
)

type listedInvoice struct {
	ID        string `json:"id"`
	CreatedAt string `json:"created_date,omitempty"`
	core.Fields
}

func newListCmd() *cobra.Command {
	var (
		jsonOutput bool
		unpaidOnly bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List all invoices",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, list, err := loadInvoices(cmd)
			if err != nil {
				return err
			}
			if unpaidOnly {
				open := list[:0]
				for _, r := range list {
					if !r.IsPaid() {
						open = append(open, r)
					}
				}
				list = open
			}

			if jsonOutput {
				out := make([]listedInvoice, 0, len(list))
				for _, r := range list {
					item := listedInvoice{ID: r.ID, Fields: r.Fields}
					if !r.CreatedAt.IsZero() {
						item.CreatedAt = r.CreatedAt.Format("2006-01-02T15:04:05Z07:00")
					}
					out = append(out, item)
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(out)
			}
			fmt.Fprint(cmd.OutOrStdout(), RenderInvoices(list))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	cmd.Flags().BoolVar(&unpaidOnly, "offen", false, "only unpaid invoices")
	return cmd
}
