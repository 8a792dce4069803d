package inventory

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/quirkauto/inventory-crawler/internal/metrics"
)

// SnapshotManager owns the persisted inventory file. It diffs each new
// result set against the prior snapshot and replaces the file atomically,
// and only when the serialized bytes actually changed.
type SnapshotManager struct {
	path   string
	logger *zap.Logger
}

// WriteDecision reports what Reconcile did.
type WriteDecision struct {
	Wrote       bool
	Total       int
	AddedVINs   []string
	RemovedVINs []string
}

// NewSnapshotManager returns a manager for the snapshot at path.
func NewSnapshotManager(path string, logger *zap.Logger) *SnapshotManager {
	return &SnapshotManager{
		path:   path,
		logger: logger,
	}
}

// Reconcile serializes vehicles deterministically, compares against the
// prior file byte-for-byte, and writes only on change. A missing or
// unparsable prior file is treated as empty, never as an error.
func (m *SnapshotManager) Reconcile(vehicles []Vehicle) (WriteDecision, error) {
	priorRaw, prior := m.loadPrior()

	decision := WriteDecision{
		Total:       len(vehicles),
		AddedVINs:   diffVINs(vehicles, prior),
		RemovedVINs: diffVINs(prior, vehicles),
	}

	body, err := Encode(vehicles)
	if err != nil {
		return WriteDecision{}, fmt.Errorf("encode snapshot: %w", err)
	}
	if bytes.Equal(body, priorRaw) {
		return decision, nil
	}

	if err := m.writeAtomic(body); err != nil {
		return WriteDecision{}, err
	}
	metrics.SnapshotWrites.Inc()
	decision.Wrote = true
	return decision, nil
}

// Encode renders the snapshot in its external form: a JSON array with
// 2-space indentation and a trailing newline, UTF-8, stable key order.
func Encode(vehicles []Vehicle) ([]byte, error) {
	if vehicles == nil {
		vehicles = []Vehicle{}
	}
	body, err := json.MarshalIndent(vehicles, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(body, '\n'), nil
}

func (m *SnapshotManager) loadPrior() ([]byte, []Vehicle) {
	raw, err := os.ReadFile(m.path)
	if err != nil {
		if !os.IsNotExist(err) {
			m.logger.Warn("Failed to read prior snapshot; treating as empty",
				zap.String("path", m.path), zap.Error(err))
		}
		return nil, nil
	}
	var prior []Vehicle
	if err := json.Unmarshal(raw, &prior); err != nil {
		m.logger.Warn("Prior snapshot is unparsable; treating as empty",
			zap.String("path", m.path), zap.Error(err))
		return raw, nil
	}
	return raw, prior
}

// writeAtomic replaces the snapshot via a temp file and rename so a
// concurrent reader never observes a partial write.
func (m *SnapshotManager) writeAtomic(body []byte) error {
	dir := filepath.Dir(m.path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create snapshot dir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".inventory-*")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(body); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write temp snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close temp snapshot: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("chmod temp snapshot: %w", err)
	}
	if err := os.Rename(tmpName, m.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace snapshot %s: %w", m.path, err)
	}
	return nil
}

func diffVINs(have, against []Vehicle) []string {
	seen := make(map[string]struct{}, len(against))
	for _, v := range against {
		seen[v.VIN] = struct{}{}
	}
	var out []string
	for _, v := range have {
		if _, ok := seen[v.VIN]; !ok {
			out = append(out, v.VIN)
		}
	}
	return out
}
