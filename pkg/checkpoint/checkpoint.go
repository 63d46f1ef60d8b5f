package checkpoint

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"conflictmap/pkg/logger"
	"conflictmap/pkg/storage"
)

// Version is the current checkpoint file format
const Version = 1

// Checkpoint represents the state of a frame rendering run
type Checkpoint struct {
	RunID           string            `json:"run_id"`
	Country         string            `json:"country"`
	DatasetPath     string            `json:"dataset_path"`
	From            string            `json:"from"`
	Until           string            `json:"until"`
	CompletedFrames map[string]string `json:"completed_frames"` // month label -> frame path
	TotalMonths     int               `json:"total_months"`
	TotalCompleted  int               `json:"total_completed"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
	Version         int               `json:"version"`
}

// Run identifies the inputs a checkpoint belongs to
type Run struct {
	Country     string
	DatasetPath string
	From        string
	Until       string
	TotalMonths int
}

// Matches reports whether cp was written for the same inputs as run
func (cp *Checkpoint) Matches(run Run) bool {
	return cp != nil &&
		cp.Version == Version &&
		strings.EqualFold(cp.Country, run.Country) &&
		cp.DatasetPath == run.DatasetPath &&
		cp.From == run.From &&
		cp.Until == run.Until
}

// IsFrameCompleted checks if a month frame was already captured
func (cp *Checkpoint) IsFrameCompleted(label string) bool {
	_, exists := cp.CompletedFrames[label]
	return exists
}

// Manager handles checkpoint operations
type Manager struct {
	checkpointPath string
	logger         logger.Logger
	mu             sync.Mutex
}

// NewManager creates a checkpoint manager keyed by country in the user data directory
func NewManager(country string) (*Manager, error) {
	dataDir, err := getDataDirectory()
	if err != nil {
		return nil, fmt.Errorf("failed to get data directory: %w", err)
	}

	checkpointsDir := filepath.Join(dataDir, "checkpoints")
	if err := os.MkdirAll(checkpointsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create checkpoints directory: %w", err)
	}

	name := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(country), " ", "_"))
	return NewManagerAt(filepath.Join(checkpointsDir, fmt.Sprintf("%s.checkpoint.json", name))), nil
}

// NewManagerAt creates a checkpoint manager for an explicit file
func NewManagerAt(path string) *Manager {
	return &Manager{
		checkpointPath: path,
		logger:         logger.GetLogger(),
	}
}

// Path returns the checkpoint file location
func (m *Manager) Path() string {
	return m.checkpointPath
}

// Create creates and saves a fresh checkpoint with a new run ID
func (m *Manager) Create(run Run) (*Checkpoint, error) {
	now := time.Now()
	checkpoint := &Checkpoint{
		RunID:           uuid.NewString(),
		Country:         run.Country,
		DatasetPath:     run.DatasetPath,
		From:            run.From,
		Until:           run.Until,
		CompletedFrames: make(map[string]string),
		TotalMonths:     run.TotalMonths,
		CreatedAt:       now,
		UpdatedAt:       now,
		Version:         Version,
	}

	if err := m.Save(checkpoint); err != nil {
		return nil, fmt.Errorf("failed to save initial checkpoint: %w", err)
	}

	m.logger.InfoWithFields("Checkpoint created", map[string]interface{}{
		"run_id": checkpoint.RunID,
		"path":   m.checkpointPath,
	})

	return checkpoint, nil
}

// Load loads an existing checkpoint. It returns nil when none exists.
func (m *Manager) Load() (*Checkpoint, error) {
	file, err := os.Open(m.checkpointPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open checkpoint file: %w", err)
	}
	defer file.Close()

	var checkpoint Checkpoint
	if err := json.NewDecoder(file).Decode(&checkpoint); err != nil {
		return nil, fmt.Errorf("failed to decode checkpoint: %w", err)
	}
	if checkpoint.CompletedFrames == nil {
		checkpoint.CompletedFrames = make(map[string]string)
	}

	m.logger.InfoWithFields("Checkpoint loaded", map[string]interface{}{
		"run_id":          checkpoint.RunID,
		"total_completed": checkpoint.TotalCompleted,
		"updated_at":      checkpoint.UpdatedAt,
	})

	return &checkpoint, nil
}

// Resume returns the stored checkpoint when it matches run, or a fresh one otherwise
func (m *Manager) Resume(run Run) (*Checkpoint, bool, error) {
	existing, err := m.Load()
	if err != nil {
		m.logger.WithError(err).Warn("Ignoring unreadable checkpoint")
	}
	if existing.Matches(run) {
		existing.TotalMonths = run.TotalMonths
		return existing, true, nil
	}
	if existing != nil {
		m.logger.InfoWithFields("Checkpoint belongs to a different run, starting over", map[string]interface{}{
			"run_id": existing.RunID,
		})
	}
	cp, err := m.Create(run)
	return cp, false, err
}

// Save writes the checkpoint to disk atomically
func (m *Manager) Save(checkpoint *Checkpoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveLocked(checkpoint)
}

func (m *Manager) saveLocked(checkpoint *Checkpoint) error {
	checkpoint.UpdatedAt = time.Now()

	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(checkpoint); err != nil {
		return fmt.Errorf("failed to encode checkpoint: %w", err)
	}

	if _, err := storage.WriteFileAtomic(m.checkpointPath, &buf); err != nil {
		return fmt.Errorf("failed to write checkpoint: %w", err)
	}

	m.logger.DebugWithFields("Checkpoint saved", map[string]interface{}{
		"run_id":          checkpoint.RunID,
		"total_completed": checkpoint.TotalCompleted,
	})

	return nil
}

// RecordFrame records a captured month frame. Safe for concurrent use.
func (m *Manager) RecordFrame(checkpoint *Checkpoint, label, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := checkpoint.CompletedFrames[label]; !exists {
		checkpoint.TotalCompleted++
	}
	checkpoint.CompletedFrames[label] = path
	return m.saveLocked(checkpoint)
}

// Delete removes the checkpoint file
func (m *Manager) Delete() error {
	if err := os.Remove(m.checkpointPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}

	m.logger.Debug("Checkpoint deleted")
	return nil
}

// Exists checks if a checkpoint file exists
func (m *Manager) Exists() bool {
	_, err := os.Stat(m.checkpointPath)
	return err == nil
}

// GetCheckpointInfo returns a summary of the checkpoint
func (m *Manager) GetCheckpointInfo() (map[string]interface{}, error) {
	checkpoint, err := m.Load()
	if err != nil {
		return nil, err
	}
	if checkpoint == nil {
		return nil, nil
	}

	return map[string]interface{}{
		"run_id":          checkpoint.RunID,
		"country":         checkpoint.Country,
		"dataset_path":    checkpoint.DatasetPath,
		"total_completed": checkpoint.TotalCompleted,
		"total_months":    checkpoint.TotalMonths,
		"created_at":      checkpoint.CreatedAt,
		"updated_at":      checkpoint.UpdatedAt,
		"age":             time.Since(checkpoint.UpdatedAt),
	}, nil
}

// BackupCheckpoint copies the current checkpoint next to itself
func (m *Manager) BackupCheckpoint() error {
	if !m.Exists() {
		return nil
	}

	src, err := os.Open(m.checkpointPath)
	if err != nil {
		return fmt.Errorf("failed to open checkpoint for backup: %w", err)
	}
	defer src.Close()

	if _, err := storage.WriteFileAtomic(m.checkpointPath+".backup", src); err != nil {
		return fmt.Errorf("failed to copy checkpoint to backup: %w", err)
	}

	m.logger.Debug("Checkpoint backed up")
	return nil
}

// getDataDirectory returns the appropriate data directory for the current OS
func getDataDirectory() (string, error) {
	var dataDir string

	switch runtime.GOOS {
	case "linux":
		// Use XDG_DATA_HOME if set, otherwise ~/.local/share
		if xdgDataHome := os.Getenv("XDG_DATA_HOME"); xdgDataHome != "" {
			dataDir = filepath.Join(xdgDataHome, "conflictmap")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			dataDir = filepath.Join(home, ".local", "share", "conflictmap")
		}
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dataDir = filepath.Join(home, "Library", "Application Support", "conflictmap")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			return "", fmt.Errorf("APPDATA environment variable not set")
		}
		dataDir = filepath.Join(appData, "conflictmap")
	default:
		return "", fmt.Errorf("unsupported operating system: %s", runtime.GOOS)
	}

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create data directory: %w", err)
	}

	return dataDir, nil
}
