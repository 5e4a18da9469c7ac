package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/JonMunkholm/catalogimport/internal/core"
	"github.com/JonMunkholm/catalogimport/internal/logging"
	"github.com/JonMunkholm/catalogimport/internal/store"
	"github.com/spf13/cobra"
)

// ErrImportFailed is returned after the report is printed when the run had
// critical issues, so the process exits non-zero.
var ErrImportFailed = errors.New("import failed")

type importFlags struct {
	kind           string
	updateExisting bool
	skipDuplicates bool
	validateOnly   bool
	batchSize      int
	maxFileSize    int64
	output         string
}

func (f *importFlags) register(cmd *cobra.Command, withPolicy bool) {
	cmd.Flags().StringVar(&f.kind, "kind", "", "Collection to import into (venues or products)")
	_ = cmd.MarkFlagRequired("kind")
	cmd.Flags().Int64Var(&f.maxFileSize, "max-file-size", 10<<20, "Largest accepted input in bytes")
	cmd.Flags().StringVarP(&f.output, "output", "o", "json", "Report format (json or yaml)")
	if withPolicy {
		cmd.Flags().BoolVar(&f.updateExisting, "update-existing", false, "Update records whose name already exists")
		cmd.Flags().BoolVar(&f.skipDuplicates, "skip-duplicates", true, "Skip records whose name already exists")
		cmd.Flags().BoolVar(&f.validateOnly, "validate-only", false, "Check the file without writing")
		cmd.Flags().IntVar(&f.batchSize, "batch-size", core.DefaultBatchSize, "Rows per store write")
	}
}

func newImportCmd(g *globalFlags) *cobra.Command {
	var f importFlags

	cmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Import a CSV file",
		Example: `  # Import venues into the local SQLite file, updating existing names
  importer import venues.csv --kind venues --update-existing

  # Dry run products against PostgreSQL and print YAML
  importer import beans.csv --kind products --validate-only --store postgres -o yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd, g, &f, args[0])
		},
	}
	f.register(cmd, true)
	return cmd
}

func newValidateCmd(g *globalFlags) *cobra.Command {
	var f importFlags

	cmd := &cobra.Command{
		Use:   "validate FILE",
		Short: "Validate a CSV file without writing",
		Long: `Validate runs every check an import would, including duplicate detection
against the store, and prints the report. Nothing is written.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f.validateOnly = true
			f.skipDuplicates = true
			return runImport(cmd, g, &f, args[0])
		},
	}
	f.register(cmd, false)
	return cmd
}

func runImport(cmd *cobra.Command, g *globalFlags, f *importFlags, path string) error {
	kind := store.Collection(f.kind)
	if !kind.Valid() {
		return fmt.Errorf("--kind %q: %w", f.kind, store.ErrUnknownCollection)
	}
	if f.output != "json" && f.output != "yaml" {
		return fmt.Errorf("unsupported output format: %s", f.output)
	}

	file, err := readFile(cmd.InOrStdin(), path, f.maxFileSize)
	if errors.Is(err, core.ErrFileTooLarge) {
		return errors.New(core.FormatUserError(err))
	} else if err != nil {
		return err
	}

	ctx := cmd.Context()
	st, err := openStore(ctx, g.store, g.dsn)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	opts := []core.ImporterOption{
		core.WithLogger(logging.New(cmd.ErrOrStderr(), g.logLevel, g.logFormat)),
	}
	if f.batchSize > 0 {
		opts = append(opts, core.WithBatchSize(f.batchSize))
	}
	importer := core.NewImporter(st, opts...)

	result := importer.ImportWithValidation(ctx, file, core.Options{
		Kind:           kind,
		UpdateExisting: f.updateExisting,
		SkipDuplicates: f.skipDuplicates,
		ValidateOnly:   f.validateOnly,
	})

	if err := writeResult(cmd.OutOrStdout(), f.output, result); err != nil {
		return err
	}
	if !result.Success {
		return ErrImportFailed
	}
	return nil
}

// readFile reads path, or standard input when path is "-".
func readFile(stdin io.Reader, path string, maxBytes int64) (core.File, error) {
	var (
		src  io.Reader
		name string
	)
	if path == "-" {
		src, name = stdin, "stdin.csv"
	} else {
		fh, err := os.Open(path)
		if err != nil {
			return core.File{}, fmt.Errorf("open input: %w", err)
		}
		defer fh.Close()
		src, name = fh, filepath.Base(path)
	}

	text, err := core.ReadInput(src, maxBytes)
	if err != nil {
		return core.File{}, err
	}
	return core.File{Name: name, Content: text}, nil
}
