// Package state persists scan checkpoints, one JSON document per scanned
// directory.
package state

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"sourcescan/internal/models"
)

// Sentinel errors for checkpoint loading.
var (
	ErrNotFound     = errors.New("no checkpoint")
	ErrCorrupt      = errors.New("corrupt checkpoint")
	ErrRootMismatch = errors.New("checkpoint belongs to another directory")
)

const (
	dirPerm  = 0o750
	filePerm = 0o600
	indent   = "  "
)

// Key derives the checkpoint name from an absolute directory path.
func Key(rootPath string) string {
	h := sha256.Sum256([]byte(filepath.Clean(rootPath)))

	return hex.EncodeToString(h[:8]) // First 8 bytes = 16 hex chars.
}

// Store reads and writes checkpoints under a base directory.
type Store struct {
	baseDir string
}

// NewStore creates a store rooted at baseDir. The directory is created on
// the first save.
func NewStore(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

// Dir returns the base directory.
func (s *Store) Dir() string {
	return s.baseDir
}

// Path returns the checkpoint file for rootPath.
func (s *Store) Path(rootPath string) string {
	return filepath.Join(s.baseDir, Key(rootPath)+".json")
}

// Exists reports whether a checkpoint file exists for rootPath.
func (s *Store) Exists(rootPath string) bool {
	info, err := os.Stat(s.Path(rootPath))

	return err == nil && info.Mode().IsRegular()
}

// Load reads the checkpoint for rootPath. It returns ErrNotFound when there
// is none and ErrCorrupt when the file cannot be decoded or violates the
// record invariants.
func (s *Store) Load(rootPath string) (*models.ScanState, error) {
	path := s.Path(rootPath)

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w for %s", ErrNotFound, rootPath)
		}
		return nil, fmt.Errorf("read checkpoint %s: %w", path, err)
	}

	var st models.ScanState
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("%w %s: %v", ErrCorrupt, path, err)
	}

	if st.RootPath != filepath.Clean(rootPath) {
		return nil, fmt.Errorf("%w: checkpoint has %q, got %q", ErrRootMismatch, st.RootPath, rootPath)
	}

	if err := st.Reindex(); err != nil {
		return nil, fmt.Errorf("%w %s: %v", ErrCorrupt, path, err)
	}

	return &st, nil
}

// Save writes st atomically: the document goes to a temporary file in the
// same directory which then replaces the checkpoint, so an interrupted save
// leaves the previous checkpoint intact.
func (s *Store) Save(st *models.ScanState) error {
	if err := os.MkdirAll(s.baseDir, dirPerm); err != nil {
		return fmt.Errorf("create checkpoint dir: %w", err)
	}

	data, err := json.MarshalIndent(st, "", indent)
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}

	target := s.Path(st.RootPath)

	tmp, err := os.CreateTemp(s.baseDir, "."+Key(st.RootPath)+"-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp checkpoint: %w", err)
	}
	tmpPath := tmp.Name()

	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}

	if _, err := tmp.Write(data); err != nil {
		cleanup()
		return fmt.Errorf("write temp checkpoint: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return fmt.Errorf("sync temp checkpoint: %w", err)
	}
	if err := tmp.Chmod(filePerm); err != nil {
		cleanup()
		return fmt.Errorf("chmod temp checkpoint: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close temp checkpoint: %w", err)
	}

	if err := os.Rename(tmpPath, target); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("replace checkpoint: %w", err)
	}

	logrus.Debugf("Checkpoint saved to %s (%d records)", target, len(st.Records))

	return nil
}

// Clear removes the checkpoint for rootPath. Clearing a missing checkpoint
// is not an error.
func (s *Store) Clear(rootPath string) error {
	err := os.Remove(s.Path(rootPath))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove checkpoint: %w", err)
	}

	return nil
}
