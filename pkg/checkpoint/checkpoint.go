package checkpoint

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"redditetl/pkg/logger"
)

// Stage names recorded in a checkpoint, in pipeline order
const (
	StageExtract = "extract"
	StageUpload  = "upload"
	StageLoad    = "load"
)

// Stages lists the pipeline stages in execution order
var Stages = []string{StageExtract, StageUpload, StageLoad}

const version = 1

// StageRecord is the outcome of one completed stage
type StageRecord struct {
	CompletedAt time.Time `json:"completed_at"`
	Rows        int64     `json:"rows"`
	// Location is the local dataset path after extract and the object URI
	// after upload
	Location string `json:"location,omitempty"`
}

// Checkpoint represents the state of the pipeline for one run date
type Checkpoint struct {
	Date      string                 `json:"date"`
	Stages    map[string]StageRecord `json:"stages"`
	CreatedAt time.Time              `json:"created_at"`
	UpdatedAt time.Time              `json:"updated_at"`
	Version   int                    `json:"version"`
}

// Done reports whether a stage has completed
func (c *Checkpoint) Done(stage string) bool {
	_, ok := c.Stages[stage]
	return ok
}

// Record returns the stored outcome of a stage
func (c *Checkpoint) Record(stage string) (StageRecord, bool) {
	rec, ok := c.Stages[stage]
	return rec, ok
}

// Complete reports whether every stage has finished
func (c *Checkpoint) Complete() bool {
	for _, s := range Stages {
		if !c.Done(s) {
			return false
		}
	}
	return true
}

// Manager handles checkpoint files for run dates
type Manager struct {
	dir    string
	logger logger.Logger
	now    func() time.Time
}

// NewManager creates a checkpoint manager storing files in dir. An empty
// dir selects the platform data directory.
func NewManager(dir string, log logger.Logger) (*Manager, error) {
	if dir == "" {
		dataDir, err := getDataDirectory()
		if err != nil {
			return nil, fmt.Errorf("failed to get data directory: %w", err)
		}
		dir = filepath.Join(dataDir, "checkpoints")
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create checkpoints directory: %w", err)
	}

	return &Manager{dir: dir, logger: log, now: time.Now}, nil
}

// Path returns the checkpoint file for a run date
func (m *Manager) Path(date string) string {
	return filepath.Join(m.dir, fmt.Sprintf("%s.checkpoint.json", date))
}

// Create starts a fresh checkpoint for a run date
func (m *Manager) Create(date string) (*Checkpoint, error) {
	now := m.now()
	checkpoint := &Checkpoint{
		Date:      date,
		Stages:    make(map[string]StageRecord),
		CreatedAt: now,
		UpdatedAt: now,
		Version:   version,
	}

	if err := m.Save(checkpoint); err != nil {
		return nil, fmt.Errorf("failed to save initial checkpoint: %w", err)
	}

	m.logger.InfoWithFields("Checkpoint created", map[string]interface{}{
		"date": date,
		"path": m.Path(date),
	})

	return checkpoint, nil
}

// Load reads the checkpoint of a run date, returning nil when none exists
func (m *Manager) Load(date string) (*Checkpoint, error) {
	file, err := os.Open(m.Path(date))
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
	if checkpoint.Version > version {
		return nil, fmt.Errorf("checkpoint version %d is newer than supported version %d", checkpoint.Version, version)
	}
	if checkpoint.Stages == nil {
		checkpoint.Stages = make(map[string]StageRecord)
	}

	m.logger.InfoWithFields("Checkpoint loaded", map[string]interface{}{
		"date":       checkpoint.Date,
		"stages":     len(checkpoint.Stages),
		"updated_at": checkpoint.UpdatedAt,
	})

	return &checkpoint, nil
}

// LoadOrCreate returns the existing checkpoint of a date or a new one
func (m *Manager) LoadOrCreate(date string) (*Checkpoint, error) {
	checkpoint, err := m.Load(date)
	if err != nil || checkpoint != nil {
		return checkpoint, err
	}
	return m.Create(date)
}

// Save writes the checkpoint to disk atomically
func (m *Manager) Save(checkpoint *Checkpoint) error {
	checkpoint.UpdatedAt = m.now()
	path := m.Path(checkpoint.Date)

	tempPath := path + ".tmp"
	file, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("failed to create temporary checkpoint file: %w", err)
	}

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(checkpoint); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to encode checkpoint: %w", err)
	}

	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to sync checkpoint file: %w", err)
	}

	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close checkpoint file: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace checkpoint file: %w", err)
	}

	m.logger.DebugWithFields("Checkpoint saved", map[string]interface{}{
		"date":   checkpoint.Date,
		"stages": len(checkpoint.Stages),
	})

	return nil
}

// RecordStage marks a stage as completed and persists the checkpoint
func (m *Manager) RecordStage(checkpoint *Checkpoint, stage string, rows int64, location string) error {
	checkpoint.Stages[stage] = StageRecord{
		CompletedAt: m.now(),
		Rows:        rows,
		Location:    location,
	}
	return m.Save(checkpoint)
}

// Delete removes the checkpoint of a run date
func (m *Manager) Delete(date string) error {
	if err := os.Remove(m.Path(date)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}

	m.logger.WithField("date", date).Info("Checkpoint deleted")
	return nil
}

// Exists checks if a checkpoint file exists for a run date
func (m *Manager) Exists(date string) bool {
	_, err := os.Stat(m.Path(date))
	return err == nil
}

// Info returns a summary of the checkpoint of a run date, nil if none
func (m *Manager) Info(date string) (map[string]interface{}, error) {
	checkpoint, err := m.Load(date)
	if err != nil || checkpoint == nil {
		return nil, err
	}

	completed := make([]string, 0, len(Stages))
	for _, s := range Stages {
		if checkpoint.Done(s) {
			completed = append(completed, s)
		}
	}

	return map[string]interface{}{
		"date":       checkpoint.Date,
		"completed":  completed,
		"created_at": checkpoint.CreatedAt,
		"updated_at": checkpoint.UpdatedAt,
		"age":        m.now().Sub(checkpoint.UpdatedAt),
	}, nil
}

// Backup copies the checkpoint of a run date next to it
func (m *Manager) Backup(date string) error {
	if !m.Exists(date) {
		return nil
	}

	path := m.Path(date)
	src, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open checkpoint for backup: %w", err)
	}
	defer src.Close()

	dst, err := os.Create(path + ".backup")
	if err != nil {
		return fmt.Errorf("failed to create backup file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
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
		if xdgDataHome := os.Getenv("XDG_DATA_HOME"); xdgDataHome != "" {
			dataDir = filepath.Join(xdgDataHome, "redditetl")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			dataDir = filepath.Join(home, ".local", "share", "redditetl")
		}
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dataDir = filepath.Join(home, "Library", "Application Support", "redditetl")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			return "", fmt.Errorf("APPDATA environment variable not set")
		}
		dataDir = filepath.Join(appData, "redditetl")
	default:
		return "", fmt.Errorf("unsupported operating system: %s", runtime.GOOS)
	}

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create data directory: %w", err)
	}

	return dataDir, nil
}
