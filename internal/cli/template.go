package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/JonMunkholm/catalogimport/internal/core"
	"github.com/JonMunkholm/catalogimport/internal/store"
	"github.com/spf13/cobra"
)

func newTemplateCmd() *cobra.Command {
	var kind, out string

	cmd := &cobra.Command{
		Use:   "template",
		Short: "Print a CSV template with every accepted column",
		RunE: func(cmd *cobra.Command, args []string) error {
			def, err := core.DefinitionFor(store.Collection(kind))
			if err != nil {
				return err
			}
			text, err := def.Template()
			if err != nil {
				return err
			}

			if out == "" || out == "-" {
				_, err = io.WriteString(cmd.OutOrStdout(), text)
				return err
			}
			if err := os.WriteFile(out, []byte(text), 0o644); err != nil {
				return fmt.Errorf("write template: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&kind, "kind", "", "Collection (venues or products)")
	_ = cmd.MarkFlagRequired("kind")
	cmd.Flags().StringVar(&out, "out", "", "Write to this file instead of standard output")
	return cmd
}
