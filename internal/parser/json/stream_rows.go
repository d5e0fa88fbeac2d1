// Package json reads newline-delimited JSON into schema-typed rows.
//
// Every non-blank line is one record:
//
//	{"song_id":"S1","title":"Halo","duration":200}
//	{"song_id":"S2","title":"Hello","duration":241.3}
//
// Parsing is permissive. A line that is not a JSON object still produces a
// row, with every field null, and is reported through onParseErr. Fields are
// typed by a transformer.Plan, which nulls anything it cannot type.
package json

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"sparkify/internal/transformer"
)

// StreamRows reads r line by line and sends one *transformer.Row per record
// to out. It does not close out.
//
// The only errors returned are read errors from r and ctx cancellation.
func StreamRows(
	ctx context.Context,
	r io.Reader,
	plan *transformer.Plan,
	out chan<- *transformer.Row,
	onParseErr func(line int, err error),
) error {
	br := bufio.NewReaderSize(r, 64*1024)
	line := 0

	for {
		raw, readErr := br.ReadBytes('\n')
		if len(raw) > 0 {
			line++
			trimmed := bytes.TrimSpace(raw)
			if len(trimmed) > 0 {
				obj, err := decodeObject(trimmed)
				if err != nil && onParseErr != nil {
					onParseErr(line, err)
				}
				row := &transformer.Row{Line: line, V: plan.Apply(obj)}
				select {
				case out <- row:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		}
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				return nil
			}
			return fmt.Errorf("json: read line %d: %w", line+1, readErr)
		}
	}
}

// decodeObject decodes one line. Numbers are kept as json.Number so integer
// and decimal fields do not lose precision through float64.
func decodeObject(b []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("json: decode: %w", err)
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("json: record is %T, want object", v)
	}
	return obj, nil
}

// DecodeAll reads every record of r and returns the rows with the number of
// lines that failed to parse. onParseErr, when non-nil, sees each failure.
func DecodeAll(
	ctx context.Context,
	r io.Reader,
	plan *transformer.Plan,
	onParseErr func(line int, err error),
) ([][]any, int, error) {
	out := make(chan *transformer.Row, 256)
	var (
		rows      [][]any
		parseErrs int
	)
	errc := make(chan error, 1)
	go func() {
		defer close(out)
		errc <- StreamRows(ctx, r, plan, out, func(line int, err error) {
			parseErrs++
			if onParseErr != nil {
				onParseErr(line, err)
			}
		})
	}()
	for row := range out {
		rows = append(rows, row.V)
	}
	err := <-errc
	return rows, parseErrs, err
}
