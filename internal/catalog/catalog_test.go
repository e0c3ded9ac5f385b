package catalog

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func row(barcode, code, desc, balance string) Row {
	return Row{
		ColumnBarcode:      barcode,
		ColumnProductCode:  code,
		ColumnDescription:  desc,
		ColumnStockBalance: balance,
	}
}

func TestImportCommitsValidBatch(t *testing.T) {
	c := New(&SequenceSource{})
	res := c.Import([]Row{
		row("789001", "P1", "Arroz 5kg", "10"),
		row("789002", "P2", "Feijão 1kg", "4"),
		row("789003", "P3", "Café 500g", "0"),
	})
	require.True(t, res.OK())
	require.Equal(t, 3, res.Imported)
	require.Empty(t, res.Errors)
	require.Len(t, c.Products(), 3)
	require.Len(t, c.BarCodes(), 3)

	p, ok := c.Lookup("789002")
	require.True(t, ok)
	require.Equal(t, "P2", p.Code)
	require.Equal(t, 4, p.StockBalance)

	res = c.Import([]Row{row("789004", "P4", "Açúcar", "7")})
	require.Equal(t, 1, res.Imported)
	require.Equal(t, 4, c.Len())
}

func TestImportDuplicateInBatchRejectsAll(t *testing.T) {
	c := New(&SequenceSource{})
	res := c.Import([]Row{
		row("111", "P1", "A", "1"),
		row("111", "P2", "B", "2"),
	})
	require.False(t, res.OK())
	require.Zero(t, res.Imported)
	require.Len(t, res.Errors, 1)
	require.Equal(t, KindDuplicateBarcode, res.Errors[0].Kind)
	require.Equal(t, 3, res.Errors[0].Line)
	require.Equal(t, "Linha 3: Código de barras 111 duplicado", res.Errors[0].Error())
	require.True(t, errors.Is(res.Errors[0], ErrDuplicateBarcode))
	require.Zero(t, c.Len())
}

func TestImportDuplicateAgainstExistingCatalog(t *testing.T) {
	c := New(&SequenceSource{})
	require.True(t, c.Import([]Row{row("111", "P1", "A", "1")}).OK())

	res := c.Import([]Row{row("222", "P2", "B", "2"), row("111", "P3", "C", "3")})
	require.Len(t, res.Errors, 1)
	require.Equal(t, 3, res.Errors[0].Line)
	require.Equal(t, 1, c.Len())
}

func TestImportCollectsEveryDiagnostic(t *testing.T) {
	c := New(&SequenceSource{})
	incomplete := Row{ColumnBarcode: "1", ColumnProductCode: "P", ColumnDescription: "D"}
	res := c.Import([]Row{
		incomplete,
		row("", "P", "D", "1"),
		row("2", "P", "D", "abc"),
		row("3", "P", "D", ""),
		row("4", "P", "D", "5"),
	})
	require.Zero(t, res.Imported)
	require.Equal(t, []string{
		"Linha 2: Dados incompletos",
		"Linha 3: Dados incompletos",
		"Linha 4: Saldo de estoque deve ser um número",
		"Linha 5: Saldo de estoque deve ser um número",
	}, res.Messages())
	require.Zero(t, c.Len())
}

func TestImportEmptyBatchCommitsNothing(t *testing.T) {
	c := New(&SequenceSource{})
	res := c.Import(nil)
	require.False(t, res.OK())
	require.Empty(t, res.Errors)
}

func TestImportIDsUniqueAgainstExisting(t *testing.T) {
	src := &SequenceSource{}
	c := New(src)
	c.Restore([]Product{{ID: 1, Code: "X"}, {ID: 2, Code: "Y"}}, []BarCode{{Barcode: "a", ProductID: 1}, {Barcode: "b", ProductID: 2}})

	res := c.Import([]Row{row("c", "Z", "z", "1")})
	require.True(t, res.OK())
	p, ok := c.Lookup("c")
	require.True(t, ok)
	require.Equal(t, int64(3), p.ID)
}

func TestRegisterAssignsPlaceholder(t *testing.T) {
	c := New(&SequenceSource{From: 41})
	p := c.Register("999", "Produto novo")
	require.Equal(t, int64(42), p.ID)
	require.Equal(t, "TEMP-42", p.Code)
	require.Zero(t, p.StockBalance)

	found, ok := c.Lookup("999")
	require.True(t, ok)
	require.Equal(t, p, found)
}

func TestLookupMiss(t *testing.T) {
	c := New(nil)
	_, ok := c.Lookup("nope")
	require.False(t, ok)
	require.Zero(t, c.Len())
}

func TestRestoreDropsDanglingBarcodes(t *testing.T) {
	c := New(&SequenceSource{})
	dropped := c.Restore(
		[]Product{{ID: 10, Code: "A"}},
		[]BarCode{{Barcode: "x", ProductID: 10}, {Barcode: "y", ProductID: 11}},
	)
	require.Equal(t, 1, dropped)
	require.Len(t, c.BarCodes(), 1)
}

func TestParseInt(t *testing.T) {
	cases := []struct {
		in   string
		want int
		ok   bool
	}{
		{"10", 10, true},
		{"  7", 7, true},
		{"-3", -3, true},
		{"+4", 4, true},
		{"12abc", 12, true},
		{"1.9", 1, true},
		{"", 0, false},
		{"   ", 0, false},
		{"abc", 0, false},
		{"-", 0, false},
	}
	for _, tc := range cases {
		got, ok := ParseInt(tc.in)
		require.Equal(t, tc.ok, ok, tc.in)
		require.Equal(t, tc.want, got, tc.in)
	}
}

func TestReadRows(t *testing.T) {
	input := "\ufeffcodigo_de_barras;codigo_produto;descricao;saldo_estoque\r\n" +
		"789;P1;Arroz;10\r\n" +
		"\r\n" +
		"790;P2;Feijão\r\n"
	rows, err := ReadRows(strings.NewReader(input), ReadOptions{})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, "789", rows[0][ColumnBarcode])
	require.Equal(t, "10", rows[0][ColumnStockBalance])
	_, present := rows[1][ColumnStockBalance]
	require.False(t, present)

	c := New(&SequenceSource{})
	res := c.Import(rows)
	require.Equal(t, []string{"Linha 3: Dados incompletos"}, res.Messages())
}

func TestReadRowsWindows1252(t *testing.T) {
	// "Feijão" with ã encoded as 0xE3.
	input := "codigo_de_barras;codigo_produto;descricao;saldo_estoque\n1;P;Feij\xe3o;2\n"
	rows, err := ReadRows(strings.NewReader(input), ReadOptions{Charset: CharsetWindows1252})
	require.NoError(t, err)
	require.Equal(t, "Feijão", rows[0][ColumnDescription])
}

func TestReadRowsErrors(t *testing.T) {
	_, err := ReadRows(strings.NewReader(""), ReadOptions{})
	require.ErrorIs(t, err, ErrMissingHeader)

	_, err = ReadRows(strings.NewReader("a;b\n"), ReadOptions{Charset: "ebcdic"})
	require.ErrorIs(t, err, ErrUnknownCharset)
}

func TestSnowflakeSource(t *testing.T) {
	_, err := NewSnowflakeSource(2048)
	require.Error(t, err)

	ids, err := NewSnowflakeSource(7)
	require.NoError(t, err)
	c := New(ids)
	first := c.Register("111", "A")
	second := c.Register("222", "B")
	require.NotEqual(t, first.ID, second.ID)
	code, ok := c.BarcodeFor(first.ID)
	require.True(t, ok)
	require.Equal(t, "111", code)
}
