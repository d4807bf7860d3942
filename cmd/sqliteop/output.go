package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/nerrad567/sqliteop/internal/infrastructure/database"
)

// rowPrinter renders query results.
type rowPrinter interface {
	header(columns []string)
	row(r database.Row) error
	flush() error
}

// tablePrinter writes aligned columns. NULL prints as NULL and BLOBs as
// x'..' literals.
type tablePrinter struct {
	tw *tabwriter.Writer
}

func newTablePrinter(w io.Writer) *tablePrinter {
	return &tablePrinter{tw: tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)}
}

func (p *tablePrinter) header(columns []string) {
	fmt.Fprintln(p.tw, strings.Join(columns, "\t"))
}

func (p *tablePrinter) row(r database.Row) error {
	cells := make([]string, len(r.Values))
	for i, v := range r.Values {
		cells[i] = formatValue(v)
	}
	_, err := fmt.Fprintln(p.tw, strings.Join(cells, "\t"))
	return err
}

func (p *tablePrinter) flush() error {
	return p.tw.Flush()
}

func formatValue(v any) string {
	switch v := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return "x'" + hex.EncodeToString(v) + "'"
	default:
		return fmt.Sprint(v)
	}
}

// jsonPrinter writes one JSON object per row, keyed by column name.
type jsonPrinter struct {
	enc     *json.Encoder
	columns []string
}

func newJSONPrinter(w io.Writer) *jsonPrinter {
	return &jsonPrinter{enc: json.NewEncoder(w)}
}

func (p *jsonPrinter) header(columns []string) {
	p.columns = columns
}

func (p *jsonPrinter) row(r database.Row) error {
	if r.Record != nil {
		return p.enc.Encode(r.Record)
	}
	rec := make(map[string]any, len(r.Values))
	for i, v := range r.Values {
		if i < len(p.columns) {
			rec[p.columns[i]] = v
		}
	}
	return p.enc.Encode(rec)
}

func (p *jsonPrinter) flush() error {
	return nil
}
