package storage

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Manager handles frame files in the output directory and tracks which
// frames already exist
type Manager struct {
	outputDir string
	frames    map[string]bool
	mu        sync.RWMutex
}

// NewManager creates a new storage manager
func NewManager(outputDir string) (*Manager, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	manager := &Manager{
		outputDir: outputDir,
		frames:    make(map[string]bool),
	}

	if err := manager.scanExistingFiles(); err != nil {
		return nil, fmt.Errorf("failed to scan existing files: %w", err)
	}

	return manager, nil
}

// scanExistingFiles records the PNG frames already present in the output directory
func (m *Manager) scanExistingFiles() error {
	entries, err := os.ReadDir(m.outputDir)
	if err != nil {
		return fmt.Errorf("failed to read directory: %w", err)
	}

	for _, entry := range entries {
		if !entry.IsDir() && strings.EqualFold(filepath.Ext(entry.Name()), ".png") {
			m.frames[entry.Name()] = true
		}
	}

	return nil
}

// Reset deletes the output directory and recreates it empty
func (m *Manager) Reset() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := os.RemoveAll(m.outputDir); err != nil {
		return fmt.Errorf("failed to remove output directory: %w", err)
	}
	if err := os.MkdirAll(m.outputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	m.frames = make(map[string]bool)
	return nil
}

// HasFrame checks if a frame with the given file name exists
func (m *Manager) HasFrame(name string) bool {
	m.mu.RLock()
	known := m.frames[name]
	m.mu.RUnlock()
	if known {
		return true
	}

	if _, err := os.Stat(filepath.Join(m.outputDir, name)); err != nil {
		return false
	}
	m.mu.Lock()
	m.frames[name] = true
	m.mu.Unlock()
	return true
}

// SaveFrame encodes img as PNG under name in the output directory
func (m *Manager) SaveFrame(name string, img image.Image) (string, error) {
	path := filepath.Join(m.outputDir, name)
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("failed to encode frame %s: %w", name, err)
	}

	if _, err := WriteFileAtomic(path, &buf); err != nil {
		return "", fmt.Errorf("failed to save frame %s: %w", name, err)
	}

	m.mu.Lock()
	m.frames[name] = true
	m.mu.Unlock()
	return path, nil
}

// Frames returns the known frame names in lexical order
func (m *Manager) Frames() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.frames))
	for name := range m.frames {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetOutputDir returns the output directory path
func (m *Manager) GetOutputDir() string {
	return m.outputDir
}

// FrameCount returns the number of frames on disk
func (m *Manager) FrameCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.frames)
}

// WriteFileAtomic copies r into path through a temporary file in the same
// directory followed by a rename, so readers never observe a partial file.
func WriteFileAtomic(path string, r io.Reader) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return 0, fmt.Errorf("failed to create directory: %w", err)
	}

	tempFile := path + ".tmp"
	out, err := os.Create(tempFile)
	if err != nil {
		return 0, fmt.Errorf("failed to create temporary file: %w", err)
	}

	n, err := io.Copy(out, r)
	closeErr := out.Close()

	if err != nil {
		os.Remove(tempFile)
		return n, fmt.Errorf("failed to write data: %w", err)
	}
	if closeErr != nil {
		os.Remove(tempFile)
		return n, fmt.Errorf("failed to close file: %w", closeErr)
	}

	if err := os.Rename(tempFile, path); err != nil {
		os.Remove(tempFile)
		return n, fmt.Errorf("failed to rename temporary file: %w", err)
	}
	return n, nil
}
