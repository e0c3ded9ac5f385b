package session_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/stockcount/internal/catalog"
	"github.com/odyssey-erp/stockcount/internal/counting"
	"github.com/odyssey-erp/stockcount/internal/platform/httpx"
	"github.com/odyssey-erp/stockcount/internal/session"
	"github.com/odyssey-erp/stockcount/internal/storage"
	_ "github.com/odyssey-erp/stockcount/testing"
)

const csvFile = "codigo_de_barras;codigo_produto;descricao;saldo_estoque\n789;P1;Arroz;10\n790;P2;Feijão;5\n"

func newRouter(t *testing.T, maxBytes int64) http.Handler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mirror := storage.NewMirror(storage.NewMemoryStore(), storage.DefaultKey, logger)
	svc := session.NewService(mirror, logger, session.Config{
		IDs: &catalog.SequenceSource{},
		Now: func() time.Time { return time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC) },
	})
	r := chi.NewRouter()
	r.Route("/api", session.NewHandler(logger, svc, maxBytes).MountRoutes)
	return r
}

func do(t *testing.T, h http.Handler, method, path, contentType string, body io.Reader) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	res := httptest.NewRecorder()
	h.ServeHTTP(res, req)
	return res
}

func doJSON(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	return do(t, h, method, path, "application/json", r)
}

func decodeProblem(t *testing.T, res *httptest.ResponseRecorder) httpx.ProblemDetail {
	t.Helper()
	var p httpx.ProblemDetail
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &p))
	return p
}

func TestImportMultipartAndScanFlow(t *testing.T) {
	h := newRouter(t, 0)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "catalogo.csv")
	require.NoError(t, err)
	_, err = part.Write([]byte(csvFile))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	res := do(t, h, http.MethodPost, "/api/catalog/import", mw.FormDataContentType(), &buf)
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	var result catalog.ImportResult
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &result))
	require.Equal(t, 2, result.Imported)

	res = doJSON(t, h, http.MethodPost, "/api/scan", `{"barcode":"789"}`)
	require.Equal(t, http.StatusOK, res.Code)

	res = doJSON(t, h, http.MethodPost, "/api/counts", `{"quantity":"4"}`)
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	var rec counting.ProductCount
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &rec))
	require.Equal(t, 4, rec.StoreQuantity)
	require.Equal(t, -6, rec.Total)

	res = doJSON(t, h, http.MethodPatch, "/api/counts/"+rec.ID, `{"field":"quant_estoque","value":6}`)
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &rec))
	require.Equal(t, 0, rec.Total)

	res = doJSON(t, h, http.MethodGet, "/api/counts/summary", "")
	require.Equal(t, http.StatusOK, res.Code)
	var summary counting.Summary
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &summary))
	require.Equal(t, 1, summary.Items)
	require.Equal(t, 1, summary.Matched)
}

func TestImportRejectedReturnsDiagnostics(t *testing.T) {
	h := newRouter(t, 0)
	body := "codigo_de_barras;codigo_produto;descricao;saldo_estoque\n789;P1;A;x\n;P2;B;2\n"
	res := do(t, h, http.MethodPost, "/api/catalog/import", "text/csv", strings.NewReader(body))
	require.Equal(t, http.StatusUnprocessableEntity, res.Code)

	p := decodeProblem(t, res)
	require.Equal(t, []string{
		"Linha 2: Saldo de estoque deve ser um número",
		"Linha 3: Dados incompletos",
	}, p.Errors)

	res = doJSON(t, h, http.MethodGet, "/api/state", "")
	var state session.StateView
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &state))
	require.Zero(t, state.Products)
	require.Len(t, state.LastImportErrors, 2)
}

func TestImportTooLarge(t *testing.T) {
	h := newRouter(t, 16)
	res := do(t, h, http.MethodPost, "/api/catalog/import", "text/csv", strings.NewReader(csvFile))
	require.Equal(t, http.StatusRequestEntityTooLarge, res.Code)
}

func TestScanMissAndQuickRegister(t *testing.T) {
	h := newRouter(t, 0)

	res := doJSON(t, h, http.MethodPost, "/api/scan", `{"barcode":"555"}`)
	require.Equal(t, http.StatusNotFound, res.Code)
	var scan session.ScanResult
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &scan))
	require.False(t, scan.Found)
	require.Equal(t, "555", scan.Barcode)

	res = doJSON(t, h, http.MethodPost, "/api/catalog/quick-register", `{"barcode":"555","description":"Novo"}`)
	require.Equal(t, http.StatusBadRequest, res.Code)
	require.Equal(t, "required", decodeProblem(t, res).Fields["Quantity"])

	res = doJSON(t, h, http.MethodPost, "/api/catalog/quick-register", `{"barcode":"555","description":"Novo","quantity":"3"}`)
	require.Equal(t, http.StatusCreated, res.Code, res.Body.String())

	res = doJSON(t, h, http.MethodPost, "/api/counts", "")
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())

	res = doJSON(t, h, http.MethodPost, "/api/catalog/quick-register", `{"barcode":"555","description":"Outro","quantity":"1"}`)
	require.Equal(t, http.StatusConflict, res.Code)
}

func TestAddCountWithoutSelection(t *testing.T) {
	h := newRouter(t, 0)
	res := doJSON(t, h, http.MethodPost, "/api/counts", `{"quantity":"2"}`)
	require.Equal(t, http.StatusUnprocessableEntity, res.Code)
}

func TestModeAndLocationValidation(t *testing.T) {
	h := newRouter(t, 0)

	res := doJSON(t, h, http.MethodPut, "/api/session/mode", `{"mode":"vitrine"}`)
	require.Equal(t, http.StatusBadRequest, res.Code)

	res = doJSON(t, h, http.MethodPut, "/api/session/mode", `{"mode":"estoque"}`)
	require.Equal(t, http.StatusOK, res.Code)
	res = doJSON(t, h, http.MethodPut, "/api/session/location", `{"location":"deposito"}`)
	require.Equal(t, http.StatusOK, res.Code)

	var state session.StateView
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &state))
	require.Equal(t, counting.ModeWarehouse, state.Mode)
	require.Equal(t, "Depósito", state.LocationLabel)

	res = doJSON(t, h, http.MethodPut, "/api/session/quantity", `{"quantity":"7","extra":1}`)
	require.Equal(t, http.StatusBadRequest, res.Code, "unknown fields are rejected")

	res = doJSON(t, h, http.MethodGet, "/api/locations", "")
	var opts []counting.LocationOption
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &opts))
	require.Len(t, opts, 4)
}

func TestEditAndRemoveUnknownCount(t *testing.T) {
	h := newRouter(t, 0)
	res := doJSON(t, h, http.MethodPatch, "/api/counts/nope", `{"field":"quant_loja","value":1}`)
	require.Equal(t, http.StatusNotFound, res.Code)

	res = doJSON(t, h, http.MethodPatch, "/api/counts/nope", `{"field":"total","value":1}`)
	require.Equal(t, http.StatusBadRequest, res.Code)

	res = doJSON(t, h, http.MethodPatch, "/api/counts/nope", `{"field":"quant_loja","value":-1}`)
	require.Equal(t, http.StatusBadRequest, res.Code)

	res = doJSON(t, h, http.MethodDelete, "/api/counts/nope", "")
	require.Equal(t, http.StatusNotFound, res.Code)
}

func TestExportDownload(t *testing.T) {
	h := newRouter(t, 0)

	res := doJSON(t, h, http.MethodGet, "/api/export", "")
	require.Equal(t, http.StatusUnprocessableEntity, res.Code)

	res = do(t, h, http.MethodPost, "/api/catalog/import", "text/csv", strings.NewReader(csvFile))
	require.Equal(t, http.StatusOK, res.Code)
	doJSON(t, h, http.MethodPost, "/api/scan", `{"barcode":"790"}`)
	res = doJSON(t, h, http.MethodPost, "/api/counts", `{"quantity":"5"}`)
	require.Equal(t, http.StatusOK, res.Code)

	res = doJSON(t, h, http.MethodGet, "/api/export?format=csv", "")
	require.Equal(t, http.StatusOK, res.Code)
	require.Equal(t, `attachment; filename="contagem_loja-1_2025-03-14.csv"`, res.Header().Get("Content-Disposition"))
	require.Equal(t, "1", res.Header().Get("X-Export-Rows"))
	require.Contains(t, res.Body.String(), `"790";"P2";"Feijão";"5";"5";"0";"0"`)

	res = doJSON(t, h, http.MethodGet, "/api/export?format=xlsx", "")
	require.Equal(t, http.StatusOK, res.Code)
	require.True(t, bytes.HasPrefix(res.Body.Bytes(), []byte("PK")))

	res = doJSON(t, h, http.MethodGet, "/api/export?format=pdf", "")
	require.Equal(t, http.StatusBadRequest, res.Code)
}

func TestClearAll(t *testing.T) {
	h := newRouter(t, 0)
	do(t, h, http.MethodPost, "/api/catalog/import", "text/csv", strings.NewReader(csvFile))

	res := doJSON(t, h, http.MethodDelete, "/api/session", "")
	require.Equal(t, http.StatusNoContent, res.Code)

	res = doJSON(t, h, http.MethodGet, "/api/catalog/products", "")
	require.Equal(t, http.StatusOK, res.Code)
	require.JSONEq(t, `{"products":[],"barCodes":[]}`, res.Body.String())
}
