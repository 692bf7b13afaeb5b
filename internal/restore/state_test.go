package restore

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/ironsheep/restoration-studio/internal/imaging"
)

// writeScan saves a small synthetic scan and returns its path.
func writeScan(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := imaging.Save(createScan(160, 120, yellowed, 40), path); err != nil {
		t.Fatalf("failed to write scan: %v", err)
	}
	return path
}

func TestNewRun(t *testing.T) {
	dir := t.TempDir()
	input := writeScan(t, dir, "scan.png")
	runs := filepath.Join(dir, "runs")

	st, err := NewRun(input, runs)
	if err != nil {
		t.Fatalf("NewRun failed: %v", err)
	}

	data, err := os.ReadFile(input)
	if err != nil {
		t.Fatal(err)
	}
	sum := sha256.Sum256(data)
	if st.InputSHA256 != hex.EncodeToString(sum[:]) {
		t.Errorf("sha256 = %s, want %x", st.InputSHA256, sum)
	}
	if st.WorkDir != filepath.Join(runs, st.JobID) {
		t.Errorf("work dir = %s", st.WorkDir)
	}
	if st.Status != StatusRunning || st.MaxRounds != DefaultMaxRounds || st.Round != 0 {
		t.Errorf("unexpected initial state: %+v", st)
	}

	for _, name := range []string{StateFile, "README.txt", ReportFile, filepath.Join("input", "scan.png")} {
		if _, err := os.Stat(st.Path(name)); err != nil {
			t.Errorf("missing %s: %v", name, err)
		}
	}
	copied, err := os.ReadFile(st.InputCopy)
	if err != nil {
		t.Fatal(err)
	}
	if string(copied) != string(data) {
		t.Error("input copy differs from original")
	}

	var report Report
	raw, err := os.ReadFile(st.Path(ReportFile))
	if err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal(raw, &report); err != nil {
		t.Fatalf("report.json: %v", err)
	}
	if report.JobID != st.JobID || report.InputSHA256 != st.InputSHA256 {
		t.Errorf("report = %+v", report)
	}
}

func TestNewRun_MissingInput(t *testing.T) {
	dir := t.TempDir()
	if _, err := NewRun(filepath.Join(dir, "missing.png"), dir); err == nil {
		t.Error("expected error for missing input")
	}
	if _, err := NewRun(dir, dir); err == nil {
		t.Error("expected error for directory input")
	}
}

func TestOpenRun(t *testing.T) {
	dir := t.TempDir()
	st, err := NewRun(writeScan(t, dir, "scan.png"), dir)
	if err != nil {
		t.Fatalf("NewRun failed: %v", err)
	}
	st.AddMask(st.Path("segment", "mask_01.png"), 0.6)
	st.AddCandidate(st.Path("restore", "border_fill.png"), "border_fill", map[string]any{"width": 10})
	if err := st.Save(); err != nil {
		t.Fatal(err)
	}

	got, err := OpenRun(st.WorkDir)
	if err != nil {
		t.Fatalf("OpenRun failed: %v", err)
	}
	if got.JobID != st.JobID || got.Round != 2 || len(got.Masks) != 1 || len(got.Candidates) != 1 {
		t.Errorf("reloaded state = %+v", got)
	}

	if _, err := OpenRun(filepath.Join(dir, "nope")); !errors.Is(err, ErrUnknownRun) {
		t.Errorf("err = %v, want ErrUnknownRun", err)
	}
}

func TestRunState_LatestMask(t *testing.T) {
	st := &RunState{}
	if _, err := st.LatestMask(); !errors.Is(err, ErrNoMaskAvailable) {
		t.Errorf("err = %v, want ErrNoMaskAvailable", err)
	}
	st.AddMask("a.png", 0.5)
	st.AddMask("b.png", 0.6)
	m, err := st.LatestMask()
	if err != nil {
		t.Fatal(err)
	}
	if m.Path != "b.png" || m.Confidence != 0.6 {
		t.Errorf("latest = %+v, want b.png", m)
	}
}

func TestRunState_CurrentImage(t *testing.T) {
	st := &RunState{InputCopy: "input.png"}
	if got := st.CurrentImage(); got != "input.png" {
		t.Errorf("got %s, want input copy", got)
	}
	st.NormalizedPath = "normalized.png"
	if got := st.CurrentImage(); got != "normalized.png" {
		t.Errorf("got %s, want normalized", got)
	}
	st.AddCandidate("clean.png", "background_clean", nil)
	st.AddCandidate("fill.png", "border_fill", nil)
	if got := st.CurrentImage(); got != "fill.png" {
		t.Errorf("got %s, want newest candidate", got)
	}
}

func TestRunState_RoundsPastBudget(t *testing.T) {
	st := &RunState{MaxRounds: 2}
	for i := 0; i < 3; i++ {
		st.AddCandidate(fmt.Sprintf("c%d.png", i), "border_crop", nil)
	}
	st.AddMask("mask.png", 0.6)
	if st.Round != 4 || len(st.Candidates) != 3 || len(st.Masks) != 1 {
		t.Errorf("round = %d, candidates = %d, masks = %d; want 4, 3, 1", st.Round, len(st.Candidates), len(st.Masks))
	}
	if st.MaxRounds != 2 {
		t.Errorf("max rounds changed to %d", st.MaxRounds)
	}
}
