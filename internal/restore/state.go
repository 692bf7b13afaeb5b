package restore

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// Sentinel errors of the stage runner.
var (
	// ErrNoMaskAvailable is returned by stages that need a foreground mask
	// when no segmentation has been recorded for the run.
	ErrNoMaskAvailable = errors.New("no mask available")

	// ErrUnknownRun is returned when a run id or directory cannot be resolved.
	ErrUnknownRun = errors.New("unknown run")
)

// Run status values.
const (
	StatusRunning  = "running"
	StatusComplete = "complete"
	StatusFailed   = "failed"
)

// DefaultMaxRounds is the round budget recorded in a new run's manifest.
// It is informational; stages do not stop when Round exceeds it.
const DefaultMaxRounds = 8

// StateFile is the manifest file name inside every run directory.
const StateFile = "state.json"

// MaskRecord is one entry of the mask history.
type MaskRecord struct {
	Path       string  `json:"path"`
	Confidence float64 `json:"confidence"`
}

// CandidateRecord is one restored image produced by a stage.
type CandidateRecord struct {
	Path  string         `json:"path"`
	Stage string         `json:"stage"`
	Meta  map[string]any `json:"meta,omitempty"`
}

// RunState is the manifest of one restoration run. Mask and candidate
// histories only ever grow; LatestMask and CurrentImage read their tails.
type RunState struct {
	JobID          string            `json:"job_id"`
	CreatedUTC     string            `json:"created_utc"`
	InputPath      string            `json:"input_path"`
	InputCopy      string            `json:"input_copy"`
	InputSHA256    string            `json:"input_sha256"`
	WorkDir        string            `json:"work_dir"`
	Round          int               `json:"round"`
	MaxRounds      int               `json:"max_rounds"`
	DamageMapPath  string            `json:"damage_map_path,omitempty"`
	NormalizedPath string            `json:"normalized_path,omitempty"`
	Masks          []MaskRecord      `json:"masks"`
	Candidates     []CandidateRecord `json:"candidates"`
	Status         string            `json:"status"`
	Constraints    map[string]any    `json:"constraints"`
}

// NewRun creates a run directory under runsDir named after a fresh job id,
// copies the input scan into <run>/input/, and writes the initial manifest,
// README.txt and report.json. The original input is never modified.
func NewRun(inputPath, runsDir string) (*RunState, error) {
	abs, err := filepath.Abs(inputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve input path: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to open input: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("input %s is a directory", abs)
	}
	root, err := filepath.Abs(runsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve runs directory: %w", err)
	}

	id := uuid.NewString()
	work := filepath.Join(root, id)
	copyPath := filepath.Join(work, "input", filepath.Base(abs))
	sum, err := copyAndHash(abs, copyPath)
	if err != nil {
		return nil, err
	}

	st := &RunState{
		JobID:       id,
		CreatedUTC:  time.Now().UTC().Format(time.RFC3339),
		InputPath:   abs,
		InputCopy:   copyPath,
		InputSHA256: sum,
		WorkDir:     work,
		MaxRounds:   DefaultMaxRounds,
		Masks:       []MaskRecord{},
		Candidates:  []CandidateRecord{},
		Status:      StatusRunning,
		Constraints: map[string]any{},
	}
	if err := st.Save(); err != nil {
		return nil, err
	}
	readme := "Restoration run " + id + ".\n" +
		"input/       copy of the original scan\n" +
		"preprocess/  normalized image and damage map\n" +
		"segment/     foreground masks and previews\n" +
		"restore/     restored candidates\n" +
		"state.json   run manifest\n"
	if err := os.WriteFile(filepath.Join(work, "README.txt"), []byte(readme), 0o644); err != nil {
		return nil, fmt.Errorf("failed to write README: %w", err)
	}
	if err := WriteReport(st); err != nil {
		return nil, err
	}
	return st, nil
}

// OpenRun loads the manifest of an existing run directory.
func OpenRun(workDir string) (*RunState, error) {
	data, err := os.ReadFile(filepath.Join(workDir, StateFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownRun, workDir)
		}
		return nil, fmt.Errorf("failed to read run state: %w", err)
	}
	var st RunState
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("failed to parse run state: %w", err)
	}
	return &st, nil
}

// Save rewrites state.json.
func (s *RunState) Save() error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode run state: %w", err)
	}
	if err := os.MkdirAll(s.WorkDir, 0o755); err != nil {
		return fmt.Errorf("failed to create run directory: %w", err)
	}
	if err := os.WriteFile(filepath.Join(s.WorkDir, StateFile), data, 0o644); err != nil {
		return fmt.Errorf("failed to write run state: %w", err)
	}
	return nil
}

// Path resolves a path relative to the run directory.
func (s *RunState) Path(elem ...string) string {
	return filepath.Join(append([]string{s.WorkDir}, elem...)...)
}

// LatestMask returns the most recent mask record.
func (s *RunState) LatestMask() (MaskRecord, error) {
	if len(s.Masks) == 0 {
		return MaskRecord{}, ErrNoMaskAvailable
	}
	return s.Masks[len(s.Masks)-1], nil
}

// CurrentImage returns the image later stages should start from: the newest
// candidate, else the normalized image, else the copied input.
func (s *RunState) CurrentImage() string {
	if n := len(s.Candidates); n > 0 {
		return s.Candidates[n-1].Path
	}
	if s.NormalizedPath != "" {
		return s.NormalizedPath
	}
	return s.InputCopy
}

// AddMask appends to the mask history and bumps the round counter.
func (s *RunState) AddMask(path string, confidence float64) {
	s.Masks = append(s.Masks, MaskRecord{Path: path, Confidence: confidence})
	s.Round++
}

// AddCandidate appends to the candidate history and bumps the round counter.
func (s *RunState) AddCandidate(path, stage string, meta map[string]any) {
	s.Candidates = append(s.Candidates, CandidateRecord{Path: path, Stage: stage, Meta: meta})
	s.Round++
}

func copyAndHash(src, dst string) (string, error) {
	in, err := os.Open(src)
	if err != nil {
		return "", fmt.Errorf("failed to open input: %w", err)
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", fmt.Errorf("failed to create input directory: %w", err)
	}
	out, err := os.Create(dst)
	if err != nil {
		return "", fmt.Errorf("failed to create input copy: %w", err)
	}
	h := sha256.New()
	if _, err := io.Copy(io.MultiWriter(out, h), in); err != nil {
		out.Close()
		return "", fmt.Errorf("failed to copy input: %w", err)
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("failed to copy input: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
