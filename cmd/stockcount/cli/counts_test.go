package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/stockcount/internal/catalog"
	"github.com/odyssey-erp/stockcount/internal/session"
	"github.com/odyssey-erp/stockcount/internal/storage"
	"github.com/odyssey-erp/stockcount/jobs"
)

func newCountsCLI(t *testing.T) (*CountsCLI, *session.Service) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := session.NewService(storage.NewMirror(storage.NewMemoryStore(), "", logger), logger, session.Config{
		IDs: &catalog.SequenceSource{},
		Now: func() time.Time { return time.Date(2025, 3, 14, 8, 0, 0, 0, time.UTC) },
	})
	c, err := NewCountsCLI(svc)
	require.NoError(t, err)
	return c, svc
}

func writeCatalog(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalogo.csv")
	require.NoError(t, os.WriteFile(path, []byte("codigo_de_barras;codigo_produto;descricao;saldo_estoque\n"+body), 0o600))
	return path
}

func TestImportCommandJSONSuccess(t *testing.T) {
	c, _ := newCountsCLI(t)
	stdout, stderr := new(bytes.Buffer), new(bytes.Buffer)

	code := c.ImportCommand(context.Background(), ImportOptions{
		Path:       writeCatalog(t, "789;P1;Arroz;10\n790;P2;Feijão;5\n"),
		JSONOutput: true,
		Stdout:     stdout,
		Stderr:     stderr,
	})
	require.Equal(t, ExitOK, code)
	require.Empty(t, stderr.String())

	var summary ImportSummary
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &summary))
	require.True(t, summary.OK)
	require.Equal(t, 2, summary.Imported)
	require.Empty(t, summary.Errors)
}

func TestImportCommandRejected(t *testing.T) {
	c, _ := newCountsCLI(t)
	stdout, stderr := new(bytes.Buffer), new(bytes.Buffer)

	code := c.ImportCommand(context.Background(), ImportOptions{
		Path:   writeCatalog(t, "789;P1;Arroz;dez\n"),
		Stdout: stdout,
		Stderr: stderr,
	})
	require.Equal(t, ExitRejected, code)
	require.Contains(t, stdout.String(), "Linha 2: Saldo de estoque deve ser um número")
}

func TestImportCommandMissingFile(t *testing.T) {
	c, _ := newCountsCLI(t)
	stderr := new(bytes.Buffer)
	code := c.ImportCommand(context.Background(), ImportOptions{Path: filepath.Join(t.TempDir(), "nope.csv"), Stderr: stderr})
	require.Equal(t, ExitFailure, code)
	require.Contains(t, stderr.String(), "import:")

	code = c.ImportCommand(context.Background(), ImportOptions{Stderr: stderr})
	require.Equal(t, ExitFailure, code)
}

func TestExportCommand(t *testing.T) {
	ctx := context.Background()
	c, svc := newCountsCLI(t)
	dir := t.TempDir()
	stdout, stderr := new(bytes.Buffer), new(bytes.Buffer)

	require.Equal(t, ExitRejected, c.ExportCommand(ctx, ExportOptions{Dir: dir, Stdout: stdout, Stderr: stderr}))

	require.Equal(t, ExitOK, c.ImportCommand(ctx, ImportOptions{Path: writeCatalog(t, "789;P1;Arroz;10\n"), Stdout: io.Discard}))
	_, err := svc.Scan(ctx, "789")
	require.NoError(t, err)
	svc.SetQuantity(ctx, "12")
	_, err = svc.AddCount(ctx)
	require.NoError(t, err)

	code := c.ExportCommand(ctx, ExportOptions{Dir: dir, Location: "loja-2", Stdout: stdout, Stderr: stderr})
	require.Equal(t, ExitOK, code, stderr.String())
	body, err := os.ReadFile(filepath.Join(dir, "contagem_loja-2_2025-03-14.csv"))
	require.NoError(t, err)
	require.Contains(t, string(body), `"789";"P1";"Arroz";"10";"12";"0";"2"`)

	require.Equal(t, ExitFailure, c.ExportCommand(ctx, ExportOptions{Dir: dir, Format: "pdf", Stderr: stderr}))
	require.Equal(t, ExitFailure, c.ExportCommand(ctx, ExportOptions{Dir: dir, Location: "loja-9", Stderr: stderr}))
}

func TestJobsCLIRequiresRedis(t *testing.T) {
	_, err := NewJobsCLI(asynq.RedisClientOpt{})
	require.Error(t, err)

	var c *JobsCLI
	_, err = c.Trigger(context.Background(), jobs.TaskCountBackup, "")
	require.Error(t, err)
	_, err = c.InspectQueue(context.Background())
	require.Error(t, err)
}
