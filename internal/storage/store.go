// Package storage keeps finished runs on disk: one directory per run
// holding metadata.json and snapshots.csv.
package storage

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/san-kum/gravtree/internal/config"
	"github.com/san-kum/gravtree/internal/sim"
)

var ErrNotFound = errors.New("storage: run not found")

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

type RunMetadata struct {
	ID           string             `json:"id"`
	Name         string             `json:"name"`
	Timestamp    time.Time          `json:"timestamp"`
	Config       config.Config      `json:"config"`
	Steps        int                `json:"steps"`
	Snapshots    int                `json:"snapshots"`
	Direct       int                `json:"direct_interactions"`
	Approx       int                `json:"approx_interactions"`
	WallSeconds  float64            `json:"wall_seconds"`
	ForceSeconds float64            `json:"force_seconds"`
	EnergyDrift  float64            `json:"energy_drift"`
	Metrics      map[string]float64 `json:"metrics"`
}

var snapshotHeader = []string{"step", "time", "id", "x", "y", "vx", "vy", "mass"}

// Save writes a run under a fresh ID derived from name.
func (s *Store) Save(name string, cfg *config.Config, result *sim.Result) (string, error) {
	now := time.Now()
	runID := fmt.Sprintf("%s_%d", name, now.UnixMilli())
	runDir := filepath.Join(s.baseDir, runID)

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	meta := RunMetadata{
		ID:           runID,
		Name:         name,
		Timestamp:    now,
		Config:       *cfg,
		Steps:        result.StepsTaken,
		Snapshots:    len(result.Snapshots),
		Direct:       result.Interactions.Direct,
		Approx:       result.Interactions.Approx,
		WallSeconds:  result.WallTime.Seconds(),
		ForceSeconds: result.ForceTime.Seconds(),
		EnergyDrift:  result.EnergyDrift,
		Metrics:      result.Metrics,
	}

	if err := writeJSON(filepath.Join(runDir, "metadata.json"), meta); err != nil {
		return "", err
	}

	csvFile, err := os.Create(filepath.Join(runDir, "snapshots.csv"))
	if err != nil {
		return "", err
	}
	defer csvFile.Close()

	if err := WriteSnapshotsCSV(csvFile, result.Snapshots); err != nil {
		return "", err
	}
	return runID, csvFile.Close()
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return err
	}
	return f.Close()
}

// WriteSnapshotsCSV writes one row per body per snapshot.
func WriteSnapshotsCSV(w io.Writer, snaps []sim.Snapshot) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(snapshotHeader); err != nil {
		return err
	}

	row := make([]string, len(snapshotHeader))
	for _, snap := range snaps {
		for _, b := range snap.Bodies {
			row[0] = strconv.Itoa(snap.Step)
			row[1] = formatFloat(snap.Time)
			row[2] = strconv.Itoa(b.ID)
			row[3] = formatFloat(b.X)
			row[4] = formatFloat(b.Y)
			row[5] = formatFloat(b.VX)
			row[6] = formatFloat(b.VY)
			row[7] = formatFloat(b.Mass)
			if err := cw.Write(row); err != nil {
				return err
			}
		}
	}

	cw.Flush()
	return cw.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// List returns every readable run, newest first.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}

	sort.Slice(runs, func(i, j int) bool {
		return runs[i].Timestamp.After(runs[j].Timestamp)
	})
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, "metadata.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, runID)
		}
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// LoadSnapshots reads snapshots.csv back, grouped by step.
func (s *Store) LoadSnapshots(runID string) ([]sim.Snapshot, error) {
	file, err := os.Open(filepath.Join(s.baseDir, runID, "snapshots.csv"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, runID)
		}
		return nil, err
	}
	defer file.Close()
	return ReadSnapshotsCSV(file)
}

func ReadSnapshotsCSV(r io.Reader) ([]sim.Snapshot, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(snapshotHeader)

	records, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) < 2 {
		return []sim.Snapshot{}, nil
	}

	snaps := make([]sim.Snapshot, 0)
	for i, record := range records[1:] {
		step, err := strconv.Atoi(record[0])
		if err != nil {
			return nil, fmt.Errorf("row %d: step: %w", i+2, err)
		}
		id, err := strconv.Atoi(record[2])
		if err != nil {
			return nil, fmt.Errorf("row %d: id: %w", i+2, err)
		}
		var vals [6]float64
		for j, col := range []int{1, 3, 4, 5, 6, 7} {
			vals[j], err = strconv.ParseFloat(record[col], 64)
			if err != nil {
				return nil, fmt.Errorf("row %d: %s: %w", i+2, snapshotHeader[col], err)
			}
		}

		if len(snaps) == 0 || snaps[len(snaps)-1].Step != step {
			snaps = append(snaps, sim.Snapshot{Step: step, Time: vals[0]})
		}
		last := &snaps[len(snaps)-1]
		last.Bodies = append(last.Bodies, sim.BodyState{
			ID: id, X: vals[1], Y: vals[2], VX: vals[3], VY: vals[4], Mass: vals[5],
		})
	}
	return snaps, nil
}
