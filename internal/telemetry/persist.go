package telemetry

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// snapshotFile is the sidecar written alongside the persisted index so
// summarizer telemetry survives across the CLI's per-invocation process
// lifetime: `search` accumulates metrics in-process and flushes them
// here; `stats` reads them back without needing a long-lived process.
const snapshotFile = "summarizer_telemetry.json"

// SaveSnapshot writes snap to dir via write-temp-then-rename, mirroring
// internal/persist's atomic artifact writes.
func SaveSnapshot(dir string, snap SummarizerSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	path := filepath.Join(dir, snapshotFile)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

// LoadSnapshot reads a previously saved snapshot. A missing file is not
// an error: it reports a zero-value snapshot, since no summarizer call
// has happened yet against this index.
func LoadSnapshot(dir string) (SummarizerSnapshot, error) {
	data, err := os.ReadFile(filepath.Join(dir, snapshotFile))
	if os.IsNotExist(err) {
		return SummarizerSnapshot{}, nil
	}
	if err != nil {
		return SummarizerSnapshot{}, err
	}
	var snap SummarizerSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return SummarizerSnapshot{}, err
	}
	return snap, nil
}
