// Package batch iterates a checkpointed entity list through the discovery
// orchestrator with bounded concurrency and failure isolation.
package batch

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Checkpoint is the resumable batch state, written atomically after every
// entity.
type Checkpoint struct {
	LastProcessedIndex int             `json:"last_processed_index"`
	ProcessedEntityIDs []string        `json:"processed_entity_ids"`
	Timestamp          time.Time       `json:"timestamp"`
	FailedEntities     []FailedEntity  `json:"failed_entities"`
	ResultsSummary     []EntitySummary `json:"discovery_results_summary"`
}

// FailedEntity records one isolated failure.
type FailedEntity struct {
	EntityID string `json:"entity_id"`
	Error    string `json:"error"`
}

// EntitySummary is the per-entity digest kept in the checkpoint.
type EntitySummary struct {
	EntityID        string  `json:"entity_id"`
	FinalConfidence float64 `json:"final_confidence"`
	ConfidenceBand  string  `json:"confidence_band"`
	SignalCount     int     `json:"signal_count"`
	StoppingReason  string  `json:"stopping_reason"`
}

// Processed reports whether an entity id is already in the checkpoint.
func (c *Checkpoint) Processed(entityID string) bool {
	for _, id := range c.ProcessedEntityIDs {
		if id == entityID {
			return true
		}
	}

	return false
}

// LoadCheckpoint reads a checkpoint file. A missing file yields a fresh
// checkpoint with LastProcessedIndex -1.
func LoadCheckpoint(path string) (*Checkpoint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Checkpoint{LastProcessedIndex: -1}, nil
		}

		return nil, fmt.Errorf("read checkpoint: %w", err)
	}

	var c Checkpoint
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse checkpoint %s: %w", path, err)
	}

	return &c, nil
}

// Save writes the checkpoint atomically: a temp file in the same directory,
// then a rename over the target.
func (c *Checkpoint) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}

	dir := filepath.Dir(path)

	tmp, err := os.CreateTemp(dir, ".checkpoint-*.json")
	if err != nil {
		return fmt.Errorf("create temp checkpoint: %w", err)
	}

	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)

		return fmt.Errorf("write temp checkpoint: %w", err)
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)

		return fmt.Errorf("close temp checkpoint: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)

		return fmt.Errorf("rename checkpoint: %w", err)
	}

	return nil
}
