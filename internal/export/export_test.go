package export

import (
	"bytes"
	"encoding/csv"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/stockcount/internal/counting"
)

func sampleCounts() []counting.ProductCount {
	return []counting.ProductCount{
		{ID: "1", Barcode: "789", ProductCode: "P1", Description: `Arroz "tipo 1"`, StockBalance: 10, StoreQuantity: 4, WarehouseQuantity: 3, Total: -3},
		{ID: "2", Barcode: "790", ProductCode: "P2", Description: "Feijão; preto", StockBalance: 0, StoreQuantity: 2, Total: 2},
		{ID: "3", Barcode: "791", ProductCode: "TEMP-1", Description: "Novo", StockBalance: 0, Total: 0},
	}
}

func TestWriteCSVQuotesEveryField(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sampleCounts()[:1]))
	require.Equal(t,
		`"codigo_de_barras";"codigo_produto";"descricao";"saldo_estoque";"quant_loja";"quant_estoque";"total"`+"\r\n"+
			`"789";"P1";"Arroz ""tipo 1""";"10";"4";"3";"-3"`,
		buf.String())
}

func TestWriteCSVSeparatesRowsWithoutTrailingNewline(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sampleCounts()))
	out := buf.String()
	require.False(t, strings.HasSuffix(out, "\r\n"))
	require.Equal(t, len(sampleCounts()), strings.Count(out, "\r\n"))
}

func TestWriteCSVCompleteness(t *testing.T) {
	counts := sampleCounts()
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, counts))

	reader := csv.NewReader(&buf)
	reader.Comma = ';'
	records, err := reader.ReadAll()
	require.NoError(t, err)
	require.Len(t, records, len(counts)+1)
	require.Equal(t, Header, records[0])
	for i, c := range counts {
		rec := records[i+1]
		require.Equal(t, c.Barcode, rec[0])
		require.Equal(t, c.Description, rec[2])
		require.Equal(t, strconv.Itoa(c.Total), rec[6])
	}
}

func TestBuild(t *testing.T) {
	now := time.Date(2025, 6, 1, 23, 0, 0, 0, time.UTC)
	file, err := Build(sampleCounts(), counting.LocationWarehouse, FormatCSV, now)
	require.NoError(t, err)
	require.Equal(t, "contagem_deposito_2025-06-01.csv", file.Name)
	require.Equal(t, 3, file.Rows)
	require.Equal(t, "text/csv;charset=utf-8", file.ContentType)

	_, err = Build(nil, counting.LocationStore1, FormatCSV, now)
	require.ErrorIs(t, err, ErrEmptyExport)

	_, err = Build(sampleCounts(), counting.LocationStore1, Format("pdf"), now)
	require.ErrorIs(t, err, ErrUnknownFormat)
}

func TestBuildXLSX(t *testing.T) {
	file, err := Build(sampleCounts(), counting.LocationStore2, FormatXLSX, time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Equal(t, "contagem_loja-2_2025-01-02.xlsx", file.Name)
	require.True(t, bytes.HasPrefix(file.Body, []byte("PK")), "xlsx is a zip container")
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("")
	require.NoError(t, err)
	require.Equal(t, FormatCSV, f)
	f, err = ParseFormat("XLSX")
	require.NoError(t, err)
	require.Equal(t, FormatXLSX, f)
	_, err = ParseFormat("ods")
	require.ErrorIs(t, err, ErrUnknownFormat)
}
