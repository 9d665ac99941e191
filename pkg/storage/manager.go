package storage

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"redditetl/pkg/models"
)

// Manager owns the local directory holding one CSV dataset per run date
type Manager struct {
	outputDir string
	mu        sync.Mutex
}

// NewManager creates a new storage manager, creating dir if needed
func NewManager(outputDir string) (*Manager, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	return &Manager{outputDir: outputDir}, nil
}

// Dir returns the output directory path
func (m *Manager) Dir() string {
	return m.outputDir
}

// Path returns the dataset path for a run date
func (m *Manager) Path(date string) string {
	return filepath.Join(m.outputDir, models.DatasetFile(date))
}

// Exists reports whether the dataset for date has been written
func (m *Manager) Exists(date string) bool {
	_, err := os.Stat(m.Path(date))
	return err == nil
}

// SaveDataset renders posts as CSV and writes them atomically. The dataset
// is fully rendered before anything touches disk, so a failure never leaves
// a partial file behind.
func (m *Manager) SaveDataset(date string, posts []models.Post) (string, error) {
	var buf bytes.Buffer
	if err := models.WriteCSV(&buf, posts); err != nil {
		return "", fmt.Errorf("failed to render dataset: %w", err)
	}

	path := m.Path(date)
	if err := m.writeAtomic(path, &buf); err != nil {
		return "", err
	}
	return path, nil
}

// WriteFile atomically writes an auxiliary file next to the datasets
func (m *Manager) WriteFile(name string, data []byte) (string, error) {
	path := filepath.Join(m.outputDir, name)
	if err := m.writeAtomic(path, bytes.NewReader(data)); err != nil {
		return "", err
	}
	return path, nil
}

func (m *Manager) writeAtomic(path string, r io.Reader) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tmp, err := os.CreateTemp(m.outputDir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	tempFile := tmp.Name()

	_, err = io.Copy(tmp, r)
	closeErr := tmp.Close()
	if err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to write data: %w", err)
	}
	if closeErr != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to close file: %w", closeErr)
	}

	if err := os.Chmod(tempFile, 0644); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to set file mode: %w", err)
	}
	if err := os.Rename(tempFile, path); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to rename temporary file: %w", err)
	}

	return nil
}

// Open opens the dataset for date for reading
func (m *Manager) Open(date string) (*os.File, error) {
	f, err := os.Open(m.Path(date))
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset for %s: %w", date, err)
	}
	return f, nil
}

// List returns the run dates that have a dataset, oldest first
func (m *Manager) List() ([]string, error) {
	entries, err := os.ReadDir(m.outputDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}

	var dates []string
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".csv" {
			continue
		}
		date := strings.TrimSuffix(entry.Name(), ".csv")
		if _, err := models.ParseRunDate(date, time.Time{}); err == nil {
			dates = append(dates, date)
		}
	}
	sort.Strings(dates)
	return dates, nil
}
