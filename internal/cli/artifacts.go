package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/valter-silva-au/tinkybink/internal/storage"
	"github.com/valter-silva-au/tinkybink/pkg/models"
)

func recordsPath() string {
	return filepath.Join(Config.Build.OutputDir, Config.Artifacts.Records)
}

func treesPath() string {
	return filepath.Join(Config.Build.OutputDir, Config.Artifacts.Trees)
}

func orDefault(path string, def func() string) string {
	if path != "" {
		return path
	}
	return def()
}

func readRecordsFile(path string) ([]models.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening record stream: %w", err)
	}
	defer func() { _ = f.Close() }()
	return storage.ReadRecords(f)
}

func readRawRecordsFile(path string) ([]map[string]any, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening record stream: %w", err)
	}
	defer func() { _ = f.Close() }()
	return storage.ReadRawRecords(f)
}

func readTreeIndexFile(path string) (*models.TreeIndex, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening tree index: %w", err)
	}
	defer func() { _ = f.Close() }()
	return storage.ReadTreeIndex(f)
}

// fileArtifacts reads the artifacts of the last build from disk on every call,
// so a long-running server sees rebuilds.
type fileArtifacts struct {
	records string
	trees   string
}

func (a fileArtifacts) ReadRawRecords() ([]map[string]any, error) {
	return readRawRecordsFile(a.records)
}

func (a fileArtifacts) ReadTreeIndex() (*models.TreeIndex, error) {
	return readTreeIndexFile(a.trees)
}
