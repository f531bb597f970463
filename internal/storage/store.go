package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/san-kum/seird/internal/config"
	"github.com/san-kum/seird/internal/dynamo"
)

const (
	metadataFile    = "metadata.json"
	convergenceFile = "convergence.csv"
)

// Store keeps one directory per run under baseDir. A run holds its
// configuration, the converged state and one row per convergence attempt.
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
	ID        string             `json:"id"`
	Name      string             `json:"name"`
	Timestamp time.Time          `json:"timestamp"`
	Config    *config.Config     `json:"config"`
	Final     dynamo.State       `json:"final"`
	Step      float64            `json:"step"`
	Converged bool               `json:"converged"`
	Halvings  int                `json:"halvings"`
	Metrics   map[string]float64 `json:"metrics"`
}

func (s *Store) Save(cfg *config.Config, result *dynamo.Result) (string, error) {
	now := time.Now()
	runID := fmt.Sprintf("%s_%d", safeName(cfg.Name), now.UnixNano())
	runDir := filepath.Join(s.baseDir, runID)

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	meta := RunMetadata{
		ID:        runID,
		Name:      cfg.Name,
		Timestamp: now,
		Config:    cfg,
		Final:     result.Final,
		Step:      result.Step,
		Converged: result.Converged,
		Halvings:  result.Halvings(),
		Metrics:   result.Metrics,
	}

	metaFile, err := os.Create(filepath.Join(runDir, metadataFile))
	if err != nil {
		return "", err
	}
	defer metaFile.Close()

	enc := json.NewEncoder(metaFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		return "", err
	}

	csvFile, err := os.Create(filepath.Join(runDir, convergenceFile))
	if err != nil {
		return "", err
	}
	defer csvFile.Close()

	w := csv.NewWriter(csvFile)
	if err := w.Write([]string{"attempt", "step", "delta", "deceased", "steps", "evaluations"}); err != nil {
		return "", err
	}

	for _, a := range result.Attempts {
		row := []string{
			strconv.Itoa(a.Index),
			strconv.FormatFloat(a.Step, 'g', -1, 64),
			strconv.FormatFloat(a.Delta, 'g', -1, 64),
			strconv.FormatFloat(a.Deceased, 'g', -1, 64),
			strconv.Itoa(a.Stats.Steps),
			strconv.Itoa(a.Stats.Evaluations),
		}
		if err := w.Write(row); err != nil {
			return "", err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}

	return runID, nil
}

// List returns every readable run, oldest first.
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

	sort.SliceStable(runs, func(i, j int) bool {
		return runs[i].Timestamp.Before(runs[j].Timestamp)
	})

	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	if err := checkRunID(runID); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, metadataFile))
	if err != nil {
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}

	return &meta, nil
}

func (s *Store) LoadAttempts(runID string) ([]dynamo.Attempt, error) {
	if err := checkRunID(runID); err != nil {
		return nil, err
	}

	file, err := os.Open(filepath.Join(s.baseDir, runID, convergenceFile))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return nil, err
	}

	if len(records) < 2 {
		return []dynamo.Attempt{}, nil
	}

	attempts := make([]dynamo.Attempt, 0, len(records)-1)
	for i, record := range records[1:] {
		a, err := parseAttempt(record)
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", convergenceFile, i+2, err)
		}
		attempts = append(attempts, a)
	}

	return attempts, nil
}

func parseAttempt(record []string) (dynamo.Attempt, error) {
	var a dynamo.Attempt
	var err error

	if a.Index, err = strconv.Atoi(record[0]); err != nil {
		return a, err
	}
	if a.Step, err = strconv.ParseFloat(record[1], 64); err != nil {
		return a, err
	}
	if a.Delta, err = strconv.ParseFloat(record[2], 64); err != nil {
		return a, err
	}
	if a.Deceased, err = strconv.ParseFloat(record[3], 64); err != nil {
		return a, err
	}
	if a.Stats.Steps, err = strconv.Atoi(record[4]); err != nil {
		return a, err
	}
	if a.Stats.Evaluations, err = strconv.Atoi(record[5]); err != nil {
		return a, err
	}
	return a, nil
}

// safeName maps a run name onto a single directory component. Anything
// outside [A-Za-z0-9._-] becomes '_'.
func safeName(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}

	out := strings.Trim(b.String(), ".")
	if out == "" {
		return "run"
	}
	return out
}

func checkRunID(runID string) error {
	if runID == "" || runID == "." || runID == ".." || strings.ContainsAny(runID, `/\`) {
		return fmt.Errorf("invalid run id %q", runID)
	}
	return nil
}
