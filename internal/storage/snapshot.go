package storage

import (
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/valter-silva-au/tinkybink/pkg/models"
)

// SnapshotVersion is bumped when the snapshot layout changes.
const SnapshotVersion = 1

// Snapshot is the compact binary copy of a build's records.
type Snapshot struct {
	Version int             `msgpack:"version"`
	BuildID string          `msgpack:"build_id"`
	Records []models.Record `msgpack:"records"`
}

// WriteSnapshot encodes the records with msgpack.
func WriteSnapshot(w io.Writer, buildID string, records []models.Record) error {
	enc := msgpack.NewEncoder(w)
	enc.SetSortMapKeys(true)
	snap := Snapshot{Version: SnapshotVersion, BuildID: buildID, Records: records}
	if err := enc.Encode(&snap); err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	return nil
}

// ReadSnapshot decodes a snapshot and checks its version.
func ReadSnapshot(r io.Reader) (*Snapshot, error) {
	var snap Snapshot
	if err := msgpack.NewDecoder(r).Decode(&snap); err != nil {
		return nil, fmt.Errorf("decoding snapshot: %w", err)
	}
	if snap.Version != SnapshotVersion {
		return nil, fmt.Errorf("decoding snapshot: unsupported version %d", snap.Version)
	}
	return &snap, nil
}
