// Package corpus reads source records and persists enriched batches as JSON files.
package corpus

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/kailas-cloud/vecbot/internal/domain"
	"github.com/kailas-cloud/vecbot/internal/domain/record"
)

// Load reads a JSON array of records. Numbers are kept as json.Number so integer fields keep their type.
func Load(path string) ([]record.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open corpus %s: %w", path, err)
	}
	defer f.Close()

	records, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("corpus %s: %w", path, err)
	}
	return records, nil
}

// Decode reads a JSON array of records from r.
func Decode(r io.Reader) ([]record.Record, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var records []record.Record
	if err := dec.Decode(&records); err != nil {
		return nil, fmt.Errorf("decode records: %v: %w", err, domain.ErrInvalidInput)
	}
	if dec.More() {
		return nil, fmt.Errorf("trailing data after records array: %w", domain.ErrInvalidInput)
	}
	for i, rec := range records {
		if rec == nil {
			return nil, fmt.Errorf("record %d is null: %w", i, domain.ErrInvalidInput)
		}
	}
	if records == nil {
		records = []record.Record{}
	}
	return records, nil
}

// Persist writes records as an indented JSON array. See WriteJSON.
func Persist(path string, records []record.Record) error {
	if records == nil {
		records = []record.Record{}
	}
	return WriteJSON(path, records)
}

// WriteJSON writes v to path atomically: the data goes to a temp file in the same
// directory which is then renamed over path. Parent directories are created.
func WriteJSON(path string, v any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create dir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	_, werr := tmp.Write(buf.Bytes())
	serr := tmp.Sync()
	cerr := tmp.Close()
	if err := errors.Join(werr, serr, cerr); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", path, err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}
