package cli

import (
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"rechnungen/internal/extract"
)

const maxImageBytes = 10 << 20

func newExtractCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "extract <image>",
		Short: "Read invoice fields from a photo or scan",
		Long: "extract sends the image to the configured extraction backend and prints the " +
			"outcome for every field. Nothing is stored.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := bootstrap(cmd.ErrOrStderr(), validateApp)
			if err != nil {
				return err
			}
			extractor, err := NewExtractor(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			if extractor == nil {
				return extract.ErrDisabled
			}

			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read image: %w", err)
			}
			if len(data) > maxImageBytes {
				return fmt.Errorf("image %s is larger than %d bytes", args[0], maxImageBytes)
			}
			mime := http.DetectContentType(data)
			if !strings.HasPrefix(mime, "image/") && mime != "application/pdf" {
				return fmt.Errorf("unsupported file type %s", mime)
			}

			schema := extract.InvoiceSchema()
			res, err := extractor.Extract(cmd.Context(), extract.EncodeDataURI(mime, data), schema)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), RenderExtraction(schema, res))
			return nil
		},
	}
}
