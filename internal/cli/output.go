package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/JonMunkholm/catalogimport/internal/core"
	"gopkg.in/yaml.v3"
)

func writeResult(w io.Writer, format string, result core.ImportResult) error {
	switch format {
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(result); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			return fmt.Errorf("encode json: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("unsupported output format: %s", format)
	}
}
