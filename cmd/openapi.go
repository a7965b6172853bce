package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/todo-progress/internal/openapi"
)

func newOpenAPICmd() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "openapi",
		Short: "Print the OpenAPI document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			doc, err := openapi.Build()
			if err != nil {
				return fmt.Errorf("build openapi document: %w", err)
			}
			var out []byte
			switch format {
			case "json":
				out, err = doc.JSON()
			case "yaml":
				out, err = doc.YAML()
			default:
				return fmt.Errorf("unknown format %q (want json or yaml)", format)
			}
			if err != nil {
				return fmt.Errorf("encode openapi document: %w", err)
			}
			if _, err := cmd.OutOrStdout().Write(out); err != nil {
				return fmt.Errorf("write openapi document: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "json", "output format: json or yaml")
	return cmd
}
