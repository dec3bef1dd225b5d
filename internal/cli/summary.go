package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"rechnungen/internal/config"
	"rechnungen/internal/core"
	"rechnungen/internal/loader"
)

type summaryJSON struct {
	Count       int              `json:"count"`
	Total       core.Money       `json:"total"`
	Paid        core.Money       `json:"paid"`
	Unpaid      core.Money       `json:"unpaid"`
	PaidCount   int              `json:"paid_count"`
	UnpaidCount int              `json:"unpaid_count"`
	ByCategory  map[string]int64 `json:"by_category_cents"`
}

func newSummaryCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Show invoice totals and the category breakdown",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, list, err := loadInvoices(cmd)
			if err != nil {
				return err
			}
			s := core.Summarize(list)

			if jsonOutput {
				out := summaryJSON{
					Count:       s.Count,
					Total:       s.Total,
					Paid:        s.Paid,
					Unpaid:      s.Unpaid,
					PaidCount:   s.PaidCount,
					UnpaidCount: s.UnpaidCount,
					ByCategory:  make(map[string]int64, len(s.ByCategory)),
				}
				for _, c := range s.ByCategory {
					out.ByCategory[string(c.Category)] = c.Amount.Cents
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(out)
			}
			fmt.Fprint(cmd.OutOrStdout(), RenderSummary(s))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}

// loadInvoices loads the collection the same way the dashboard does.
// Logs go to stderr so stdout stays clean for the rendered output.
func loadInvoices(cmd *cobra.Command) (*config.Config, []core.Record, error) {
	cfg, logger, err := bootstrap(cmd.ErrOrStderr(), validateApp)
	if err != nil {
		return nil, nil, err
	}
	client, err := NewRecordsClient(cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	list, err := loader.New(client, logger).Load(cmd.Context())
	if err != nil {
		return nil, nil, fmt.Errorf("load invoices: %w", err)
	}
	return cfg, list, nil
}
