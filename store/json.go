// Package store persists harvested records.
package store

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/use-agent/bibharvest/models"
)

// WriteJSON encodes acc to path as indented UTF-8 JSON, replacing any file
// already there. Non-ASCII text and <, >, & are written unescaped.
//
// The file is truncated and written in place: a crash mid-write can leave it
// truncated.
func WriteJSON(path string, acc *models.Accumulator) error {
	f, err := os.Create(path)
	if err != nil {
		return models.NewHarvestError(models.ErrCodePersist, "failed to create output file", err)
	}

	enc := json.NewEncoder(f)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(acc); err != nil {
		f.Close()
		return models.NewHarvestError(models.ErrCodePersist, "failed to encode records", err)
	}
	if err := f.Close(); err != nil {
		return models.NewHarvestError(models.ErrCodePersist, fmt.Sprintf("failed to close %s", path), err)
	}
	return nil
}

// ReadJSON loads a file written by WriteJSON.
func ReadJSON(path string) (*models.Accumulator, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	acc := models.NewAccumulator()
	if err := json.Unmarshal(data, acc); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return acc, nil
}
