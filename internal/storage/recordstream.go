package storage

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/valter-silva-au/tinkybink/pkg/models"
)

const maxLineBytes = 4 * 1024 * 1024

// WriteRecords encodes one record per line. Keys follow struct field order
// and HTML characters are written as-is.
func WriteRecords(w io.Writer, records []models.Record) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	for i := range records {
		if err := enc.Encode(&records[i]); err != nil {
			return fmt.Errorf("encoding record %s: %w", records[i].ID, err)
		}
	}
	return nil
}

// ReadRecords decodes an NDJSON record stream. Blank lines are skipped.
func ReadRecords(r io.Reader) ([]models.Record, error) {
	var out []models.Record
	err := scanLines(r, func(line int, data []byte) error {
		var rec models.Record
		if err := json.Unmarshal(data, &rec); err != nil {
			return fmt.Errorf("decoding record on line %d: %w", line, err)
		}
		out = append(out, rec)
		return nil
	})
	return out, err
}

// ReadRawRecords decodes each line into generic JSON values, the form
// expected by jq queries.
func ReadRawRecords(r io.Reader) ([]map[string]any, error) {
	var out []map[string]any
	err := scanLines(r, func(line int, data []byte) error {
		var rec map[string]any
		if err := json.Unmarshal(data, &rec); err != nil {
			return fmt.Errorf("decoding record on line %d: %w", line, err)
		}
		out = append(out, rec)
		return nil
	})
	return out, err
}

func scanLines(r io.Reader, fn func(line int, data []byte) error) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	line := 0
	for sc.Scan() {
		line++
		data := bytes.TrimSpace(sc.Bytes())
		if len(data) == 0 {
			continue
		}
		if err := fn(line, data); err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("reading record stream: %w", err)
	}
	return nil
}
