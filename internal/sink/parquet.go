package sink

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"

	"sparkify/internal/schema"
	"sparkify/internal/table"
)

// Codec is a Parquet compression codec plus the infix used in file names
// ("part-00000-<run>.snappy.parquet").
type Codec struct {
	Name  string
	codec parquet.CompressionCodec
}

// ParseCodec maps a configured compression name to a Codec. "" means snappy.
func ParseCodec(name string) (Codec, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "snappy":
		return Codec{Name: "snappy", codec: parquet.CompressionCodec_SNAPPY}, nil
	case "gzip":
		return Codec{Name: "gz", codec: parquet.CompressionCodec_GZIP}, nil
	case "zstd":
		return Codec{Name: "zstd", codec: parquet.CompressionCodec_ZSTD}, nil
	case "uncompressed", "none":
		return Codec{codec: parquet.CompressionCodec_UNCOMPRESSED}, nil
	default:
		return Codec{}, fmt.Errorf("sink: unknown compression %q", name)
	}
}

// fileName returns "part-00003-<run>.snappy.parquet".
func (c Codec) fileName(part int, runID string) string {
	if c.Name == "" {
		return fmt.Sprintf("part-%05d-%s.parquet", part, runID)
	}
	return fmt.Sprintf("part-%05d-%s.%s.parquet", part, runID, c.Name)
}

// columnTag renders the parquet-go metadata tag of one column. Every column
// is OPTIONAL so nulls round-trip.
func columnTag(c table.Column) string {
	var typ string
	switch c.Type {
	case schema.Integer:
		typ = "type=INT32"
	case schema.Long:
		typ = "type=INT64"
	case schema.Double:
		typ = "type=DOUBLE"
	case schema.Boolean:
		typ = "type=BOOLEAN"
	case schema.Decimal:
		typ = fmt.Sprintf("type=INT64, convertedtype=DECIMAL, scale=%d, precision=%d",
			schema.DecimalScale, schema.DecimalPrecision)
	default:
		typ = "type=BYTE_ARRAY, convertedtype=UTF8"
	}
	return fmt.Sprintf("name=%s, %s, repetitiontype=OPTIONAL", c.Name, typ)
}

// parquetValue converts a table value to the physical value parquet-go
// expects for its column. Decimals become their unscaled int64.
func parquetValue(v any) any {
	if d, ok := v.(decimal.Decimal); ok {
		return d.Shift(int32(schema.DecimalScale)).IntPart()
	}
	return v
}

// fileOptions tune one Parquet file.
type fileOptions struct {
	codec        Codec
	rowGroupSize int64 // bytes
}

// writeParquet writes rows to a new file at path.
func writeParquet(path string, cols []table.Column, rows [][]any, o fileOptions) (err error) {
	md := make([]string, len(cols))
	for i, c := range cols {
		md[i] = columnTag(c)
	}

	fw, err := local.NewLocalFileWriter(path)
	if err != nil {
		return fmt.Errorf("sink: create %s: %w", path, err)
	}
	defer func() {
		if cerr := fw.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("sink: close %s: %w", path, cerr)
		}
	}()

	pw, err := writer.NewCSVWriter(md, fw, 1)
	if err != nil {
		return fmt.Errorf("sink: parquet writer: %w", err)
	}
	pw.CompressionType = o.codec.codec
	if o.rowGroupSize > 0 {
		pw.RowGroupSize = o.rowGroupSize
	}

	for _, row := range rows {
		rec := make([]interface{}, len(row))
		for i, v := range row {
			rec[i] = parquetValue(v)
		}
		if err := pw.Write(rec); err != nil {
			return fmt.Errorf("sink: write %s: %w", path, err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		return fmt.Errorf("sink: finish %s: %w", path, err)
	}
	return nil
}
