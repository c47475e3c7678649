package encoder

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// SchemaVersion is the version of the saved codebook document.
const SchemaVersion = 1

// codebookFile is the on-disk form of a codebook. Codes are valid only for
// the run identified by RunID.
type codebookFile struct {
	SchemaVersion int                 `json:"schema_version"`
	RunID         uuid.UUID           `json:"run_id"`
	CreatedAt     time.Time           `json:"created_at"`
	Columns       map[string][]string `json:"columns"`
}

// SaveCodebook writes the codebook of a run as JSON.
func SaveCodebook(path string, runID uuid.UUID, cb *Codebook) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create codebook directory: %w", err)
	}

	doc := codebookFile{
		SchemaVersion: SchemaVersion,
		RunID:         runID,
		CreatedAt:     time.Now().UTC(),
		Columns:       cb.Categories(),
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode codebook: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write codebook: %w", err)
	}
	return os.Rename(tmp, path)
}

// LoadCodebook reads a codebook written by SaveCodebook and returns it with
// the id of the run it belongs to.
func LoadCodebook(path string) (*Codebook, uuid.UUID, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, uuid.Nil, fmt.Errorf("failed to read codebook: %w", err)
	}

	var doc codebookFile
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, uuid.Nil, fmt.Errorf("failed to decode codebook: %w", err)
	}
	if doc.SchemaVersion != SchemaVersion {
		return nil, uuid.Nil, fmt.Errorf("unsupported codebook schema version %d", doc.SchemaVersion)
	}

	cb, err := FromCategories(doc.Columns)
	if err != nil {
		return nil, uuid.Nil, err
	}
	return cb, doc.RunID, nil
}
