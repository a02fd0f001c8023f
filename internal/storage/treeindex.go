package storage

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/valter-silva-au/tinkybink/pkg/models"
)

// WriteTreeIndex writes the tree index as indented JSON.
func WriteTreeIndex(w io.Writer, idx *models.TreeIndex) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(idx); err != nil {
		return fmt.Errorf("encoding tree index: %w", err)
	}
	return nil
}

// ReadTreeIndex decodes a tree index document.
func ReadTreeIndex(r io.Reader) (*models.TreeIndex, error) {
	var idx models.TreeIndex
	if err := json.NewDecoder(r).Decode(&idx); err != nil {
		return nil, fmt.Errorf("decoding tree index: %w", err)
	}
	return &idx, nil
}
