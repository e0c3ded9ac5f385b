package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/odyssey-erp/stockcount/internal/catalog"
	"github.com/odyssey-erp/stockcount/internal/counting"
	"github.com/odyssey-erp/stockcount/internal/export"
	"github.com/odyssey-erp/stockcount/internal/session"
)

// Exit codes shared by the offline commands.
const (
	ExitOK       = 0
	ExitFailure  = 1
	ExitRejected = 10
)

// CountsCLI runs catalog imports and ledger exports against the persisted
// session without starting the HTTP server.
type CountsCLI struct {
	service *session.Service
}

// NewCountsCLI wraps a loaded session service.
func NewCountsCLI(service *session.Service) (*CountsCLI, error) {
	if service == nil {
		return nil, errors.New("counts cli: service required")
	}
	return &CountsCLI{service: service}, nil
}

// ImportOptions defines the flags of the import command.
type ImportOptions struct {
	Path       string
	JSONOutput bool
	Stdout     io.Writer
	Stderr     io.Writer
}

// ImportSummary is the JSON output of the import command.
type ImportSummary struct {
	OK       bool     `json:"ok"`
	Imported int      `json:"imported"`
	Products int      `json:"products"`
	Errors   []string `json:"errors"`
}

// ImportCommand imports one catalog file. It exits with ExitRejected when the
// file carried row diagnostics and nothing was committed.
func (c *CountsCLI) ImportCommand(ctx context.Context, opts ImportOptions) int {
	stdout, stderr := writers(opts.Stdout, opts.Stderr)
	if opts.Path == "" {
		_, _ = fmt.Fprintln(stderr, "import: file path is required")
		return ExitFailure
	}
	f, err := os.Open(opts.Path)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "import: %v\n", err)
		return ExitFailure
	}
	defer f.Close()

	result, err := c.service.Import(ctx, f)
	if err != nil && !errors.Is(err, catalog.ErrImportRejected) {
		_, _ = fmt.Fprintf(stderr, "import: %v\n", err)
		return ExitFailure
	}
	summary := ImportSummary{
		OK:       result.OK(),
		Imported: result.Imported,
		Products: len(c.service.Products(ctx)),
		Errors:   result.Messages(),
	}
	if opts.JSONOutput {
		if err := json.NewEncoder(stdout).Encode(summary); err != nil {
			_, _ = fmt.Fprintf(stderr, "import: encode json: %v\n", err)
			return ExitFailure
		}
	} else if summary.OK {
		_, _ = fmt.Fprintf(stdout, "%d produto(s) importado(s), %d no catálogo\n", summary.Imported, summary.Products)
	} else {
		_, _ = fmt.Fprintf(stdout, "Importação rejeitada, %d erro(s):\n", len(summary.Errors))
		for _, msg := range summary.Errors {
			_, _ = fmt.Fprintf(stdout, "  %s\n", msg)
		}
	}
	if !summary.OK {
		return ExitRejected
	}
	return ExitOK
}

// ExportOptions defines the flags of the export command.
type ExportOptions struct {
	Dir      string
	Format   string
	Location string
	Stdout   io.Writer
	Stderr   io.Writer
}

// ExportCommand writes the ledger to Dir using the export naming scheme and
// prints the resulting path.
func (c *CountsCLI) ExportCommand(ctx context.Context, opts ExportOptions) int {
	stdout, stderr := writers(opts.Stdout, opts.Stderr)
	format, err := export.ParseFormat(opts.Format)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "export: %v\n", err)
		return ExitFailure
	}
	if opts.Location != "" {
		if err := c.service.SetLocation(ctx, counting.Location(opts.Location)); err != nil {
			_, _ = fmt.Fprintf(stderr, "export: %v\n", err)
			return ExitFailure
		}
	}
	file, err := c.service.Export(ctx, format)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "export: %v\n", err)
		if errors.Is(err, export.ErrEmptyExport) {
			return ExitRejected
		}
		return ExitFailure
	}
	dir := opts.Dir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		_, _ = fmt.Fprintf(stderr, "export: %v\n", err)
		return ExitFailure
	}
	path := filepath.Join(dir, file.Name)
	if err := os.WriteFile(path, file.Body, 0o644); err != nil {
		_, _ = fmt.Fprintf(stderr, "export: %v\n", err)
		return ExitFailure
	}
	_, _ = fmt.Fprintf(stdout, "%s (%d linha(s))\n", path, file.Rows)
	return ExitOK
}

func writers(stdout, stderr io.Writer) (io.Writer, io.Writer) {
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}
	return stdout, stderr
}
