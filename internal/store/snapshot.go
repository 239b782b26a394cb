package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/bytedance/sonic"

	"github.com/vk/beacongrid/internal/beacon"
	"github.com/vk/beacongrid/internal/ctxlog"
)

// Snapshot is a Memory store that writes the full history map to a JSON
// file after every append. Loading tolerates a missing or corrupt file so a
// damaged snapshot never prevents the service from starting.
type Snapshot struct {
	*Memory
	path string

	// persistMu serializes snapshot-write-rename sequences so a slow
	// writer cannot rename stale state over a newer file.
	persistMu sync.Mutex
}

// NewSnapshot creates the backend and loads any existing snapshot file.
func NewSnapshot(ctx context.Context, path string) (*Snapshot, error) {
	logger := ctxlog.FromContext(ctx)
	s := &Snapshot{Memory: NewMemory(), path: path}

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		logger.Info("Snapshot file does not exist, starting empty.", "path", path)
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("failed to read snapshot %s: %w", path, err)
	}

	var histories map[string][]beacon.Record
	if err := sonic.Unmarshal(data, &histories); err != nil {
		logger.Warn("Snapshot file is corrupt, starting empty.", "path", path, "error", err)
		return s, nil
	}

	s.seed(histories)
	logger.Info("Snapshot loaded.", "path", path, "devices", len(histories))
	return s, nil
}

// Append implements Store. The snapshot file is rewritten after each
// accepted message, via a temp file and rename so readers never observe a
// partial write.
func (s *Snapshot) Append(ctx context.Context, id string, rec beacon.Record) error {
	if err := s.Memory.Append(ctx, id, rec); err != nil {
		return err
	}
	return s.persist()
}

func (s *Snapshot) persist() error {
	// The map snapshot must be taken inside the same critical section as
	// the rename, so the file on disk always reflects the latest
	// acknowledged append once persist returns.
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	data, err := sonic.MarshalIndent(s.snapshot(), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".snapshot-*")
	if err != nil {
		return fmt.Errorf("failed to create snapshot temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to close snapshot temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to replace snapshot %s: %w", s.path, err)
	}
	return nil
}
