// Package checkpoints persists and restores model and optimizer state.
//
// A run owns two logical checkpoint slots: "latest", overwritten at every
// epoch boundary and carrying optimizer state for resumption, and "best",
// overwritten only on metric improvement and carrying model state only.
package checkpoints

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

var (
	// ErrNotFound is returned by Load when the checkpoint file does not exist.
	ErrNotFound = errors.New("checkpoints: checkpoint not found")

	// ErrBadFormat is returned by Load when the file decodes but lacks
	// required fields (model state at minimum).
	ErrBadFormat = errors.New("checkpoints: malformed checkpoint")
)

// StateDict is a flat named-parameter snapshot. Keys are parameter names,
// values the raw parameter data. The trainer treats the contents as opaque.
type StateDict map[string][]float32

// Metadata carries bookkeeping for a saved checkpoint.
type Metadata struct {
	RunID       string    `json:"run_id,omitempty"`
	Framework   string    `json:"framework"`
	CreatedAt   time.Time `json:"created_at"`
	Description string    `json:"description,omitempty"`
}

// Checkpoint is the persisted training snapshot. OptimizerState is absent
// in "best" checkpoints, which exist purely for later inference.
type Checkpoint struct {
	Epoch          int       `json:"epoch"`
	ModelState     StateDict `json:"model_state"`
	OptimizerState StateDict `json:"optimizer_state,omitempty"`
	Metadata       Metadata  `json:"metadata"`
}

const checkpointFile = "checkpoint.json"

// Manager writes and reads checkpoints for one run.
//
// Only the coordinator worker may write: Save on a non-coordinator Manager
// is a no-op. This is a protocol contract, not a convenience — concurrent
// writes from other workers would race on the shared files.
type Manager struct {
	latestDir   string
	bestDir     string
	runID       string
	coordinator bool
}

// NewManager creates a checkpoint manager. coordinator must be true for
// exactly one worker in the run (rank 0, or the sole process).
func NewManager(latestDir, bestDir, runID string, coordinator bool) *Manager {
	return &Manager{
		latestDir:   latestDir,
		bestDir:     bestDir,
		runID:       runID,
		coordinator: coordinator,
	}
}

// LatestPath returns the path of the "latest" slot.
func (m *Manager) LatestPath() string {
	return filepath.Join(m.latestDir, checkpointFile)
}

// BestPath returns the path of the "best" slot.
func (m *Manager) BestPath() string {
	return filepath.Join(m.bestDir, checkpointFile)
}

// SaveLatest overwrites the "latest" slot with model and optimizer state.
func (m *Manager) SaveLatest(modelState, optimizerState StateDict, epoch int) error {
	ckpt := &Checkpoint{
		Epoch:          epoch,
		ModelState:     modelState,
		OptimizerState: optimizerState,
		Metadata: Metadata{
			RunID:       m.runID,
			Framework:   "asrtune",
			CreatedAt:   time.Now().UTC(),
			Description: fmt.Sprintf("epoch %d", epoch),
		},
	}
	return m.Save(ckpt, m.LatestPath())
}

// SaveBest overwrites the "best" slot. Optimizer state is deliberately
// omitted: best checkpoints exist for inference, not resumption.
func (m *Manager) SaveBest(modelState StateDict, epoch int) error {
	ckpt := &Checkpoint{
		Epoch:      epoch,
		ModelState: modelState,
		Metadata: Metadata{
			RunID:       m.runID,
			Framework:   "asrtune",
			CreatedAt:   time.Now().UTC(),
			Description: fmt.Sprintf("best at epoch %d", epoch),
		},
	}
	return m.Save(ckpt, m.BestPath())
}

// Save writes a checkpoint to path, creating the parent directory if absent
// and overwriting any existing file at that identity. Non-coordinator
// managers skip the write.
func (m *Manager) Save(ckpt *Checkpoint, path string) error {
	if !m.coordinator {
		return nil
	}
	if len(ckpt.ModelState) == 0 {
		return fmt.Errorf("%w: empty model state", ErrBadFormat)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create checkpoint directory: %w", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create checkpoint file: %w", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(ckpt); err != nil {
		return fmt.Errorf("encode checkpoint: %w", err)
	}
	return nil
}

// Load reads a checkpoint from path. Missing files yield ErrNotFound;
// files without model state yield ErrBadFormat.
func Load(path string) (*Checkpoint, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("open checkpoint file: %w", err)
	}
	defer file.Close()

	var ckpt Checkpoint
	if err := json.NewDecoder(file).Decode(&ckpt); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadFormat, err)
	}
	if len(ckpt.ModelState) == 0 {
		return nil, fmt.Errorf("%w: missing model state", ErrBadFormat)
	}
	return &ckpt, nil
}
