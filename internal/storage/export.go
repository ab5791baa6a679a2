package storage

import (
	"encoding/json"
	"io"

	"github.com/san-kum/gravtree/internal/sim"
)

type ExportData struct {
	Run       RunMetadata    `json:"run"`
	Snapshots []sim.Snapshot `json:"snapshots"`
}

// ExportJSON writes a run and its snapshots as one indented document.
func ExportJSON(w io.Writer, meta *RunMetadata, snaps []sim.Snapshot) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(ExportData{Run: *meta, Snapshots: snaps})
}

// Final returns the last snapshot, or false when there is none.
func Final(snaps []sim.Snapshot) (sim.Snapshot, bool) {
	if len(snaps) == 0 {
		return sim.Snapshot{}, false
	}
	return snaps[len(snaps)-1], true
}
