// Package exports dumps projected entities for offline analysis. Every export
// is returned with the hex SHA-256 checksum of its payload.
package exports

import (
	"bytes"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xitongsys/parquet-go-source/writerfile"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"

	"logbook/storage/entitystore"
)

// Format names an export encoding.
type Format string

const (
	FormatCSV     Format = "csv"
	FormatJSONL   Format = "jsonl"
	FormatParquet Format = "parquet"
)

// ParseFormat accepts a format name case-insensitively.
func ParseFormat(raw string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(raw))); f {
	case FormatCSV, FormatJSONL, FormatParquet:
		return f, nil
	default:
		return "", fmt.Errorf("exports: unknown format %q", raw)
	}
}

// Result describes a written export.
type Result struct {
	Kind     string
	Format   Format
	Path     string
	Rows     int
	Checksum string
}

// CSV renders every entity of kind with a header row.
func CSV(store *entitystore.Store, kind string) ([]byte, int, string, error) {
	t, err := lookup(kind)
	if err != nil {
		return nil, 0, "", err
	}
	buffer := &bytes.Buffer{}
	w := csv.NewWriter(buffer)
	if err := w.Write(t.columns); err != nil {
		return nil, 0, "", err
	}
	rows := 0
	err = store.Each(kind, func(id string, raw json.RawMessage) error {
		r, err := t.decode(raw)
		if err != nil {
			return fmt.Errorf("decode %s %s: %w", kind, id, err)
		}
		rows++
		return w.Write(r.fields)
	})
	if err != nil {
		return nil, 0, "", err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, 0, "", err
	}
	data := buffer.Bytes()
	return data, rows, checksum(data), nil
}

// JSONL renders every entity of kind as its stored JSON document, one per line.
func JSONL(store *entitystore.Store, kind string) ([]byte, int, string, error) {
	if _, err := lookup(kind); err != nil {
		return nil, 0, "", err
	}
	buffer := &bytes.Buffer{}
	rows := 0
	err := store.Each(kind, func(id string, raw json.RawMessage) error {
		if err := json.Compact(buffer, raw); err != nil {
			return fmt.Errorf("compact %s %s: %w", kind, id, err)
		}
		rows++
		return buffer.WriteByte('\n')
	})
	if err != nil {
		return nil, 0, "", err
	}
	data := buffer.Bytes()
	return data, rows, checksum(data), nil
}

// Parquet renders every entity of kind as a snappy-compressed Parquet file.
func Parquet(store *entitystore.Store, kind string) ([]byte, int, string, error) {
	t, err := lookup(kind)
	if err != nil {
		return nil, 0, "", err
	}
	buffer := &bytes.Buffer{}
	pw, err := writer.NewParquetWriter(writerfile.NewWriterFile(buffer), t.proto, 1)
	if err != nil {
		return nil, 0, "", fmt.Errorf("exports: parquet schema: %w", err)
	}
	pw.RowGroupSize = 128 * 1024 * 1024
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	rows := 0
	err = store.Each(kind, func(id string, raw json.RawMessage) error {
		r, err := t.decode(raw)
		if err != nil {
			return fmt.Errorf("decode %s %s: %w", kind, id, err)
		}
		rows++
		return pw.Write(r.parquet)
	})
	if err != nil {
		pw.WriteStop()
		return nil, 0, "", err
	}
	if err := pw.WriteStop(); err != nil {
		return nil, 0, "", fmt.Errorf("exports: finalize parquet: %w", err)
	}
	data := buffer.Bytes()
	return data, rows, checksum(data), nil
}

// WriteFile renders kind in format and writes it to path.
func WriteFile(store *entitystore.Store, kind string, format Format, path string) (Result, error) {
	var (
		data []byte
		rows int
		sum  string
		err  error
	)
	switch format {
	case FormatCSV:
		data, rows, sum, err = CSV(store, kind)
	case FormatJSONL:
		data, rows, sum, err = JSONL(store, kind)
	case FormatParquet:
		data, rows, sum, err = Parquet(store, kind)
	default:
		return Result{}, fmt.Errorf("exports: unknown format %q", format)
	}
	if err != nil {
		return Result{}, err
	}
	clean := filepath.Clean(path)
	if dir := filepath.Dir(clean); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return Result{}, err
		}
	}
	if err := os.WriteFile(clean, data, 0o644); err != nil {
		return Result{}, fmt.Errorf("exports: write %s: %w", clean, err)
	}
	return Result{Kind: kind, Format: format, Path: clean, Rows: rows, Checksum: sum}, nil
}

func checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
