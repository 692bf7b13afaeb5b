package restore

import (
	"bytes"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/ironsheep/restoration-studio/internal/imaging"
)

func TestScanChart(t *testing.T) {
	trace := imaging.ScanTrace{
		imaging.Top:    {{Offset: 0, Distance: 60}, {Offset: 8, Distance: 35}, {Offset: 16, Distance: 4}},
		imaging.Bottom: {{Offset: 0, Distance: 2}},
		imaging.Left:   {{Offset: 0, Distance: 45}, {Offset: 8, Distance: 9}},
	}
	var buf bytes.Buffer
	if err := ScanChart(trace, 10, &buf); err != nil {
		t.Fatalf("ScanChart failed: %v", err)
	}
	img, err := png.Decode(&buf)
	if err != nil {
		t.Fatalf("chart is not a PNG: %v", err)
	}
	if img.Bounds().Dx() != 1280 || img.Bounds().Dy() != 720 {
		t.Errorf("chart size = %v, want 1280x720", img.Bounds().Size())
	}
}

func TestScanChart_NotEnoughSamples(t *testing.T) {
	trace := imaging.ScanTrace{imaging.Top: {{Offset: 0, Distance: 1}}}
	var buf bytes.Buffer
	if err := ScanChart(trace, 10, &buf); err == nil {
		t.Error("expected error when no side has two samples")
	}
}

func TestContactSheet(t *testing.T) {
	dir := t.TempDir()
	st, err := NewRun(writeScan(t, dir, "scan.png"), dir)
	if err != nil {
		t.Fatalf("NewRun failed: %v", err)
	}
	mask := createMask(160, 120, image.Rect(60, 40, 100, 80))
	if err := imaging.SaveMask(mask, st.Path("segment", "mask_01.png")); err != nil {
		t.Fatal(err)
	}
	st.AddMask(st.Path("segment", "mask_01.png"), 0.6)
	st.AddCandidate(st.Path("restore", "scan.tiff"), "border_crop", nil)

	entries := contactSheetEntries(st)
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want input and mask (TIFF skipped)", len(entries))
	}

	out := filepath.Join(dir, "sheet.pdf")
	if err := ContactSheet(st, out); err != nil {
		t.Fatalf("ContactSheet failed: %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(data, []byte("%PDF")) {
		t.Error("output is not a PDF")
	}
}

func TestContactSheet_NoArtifacts(t *testing.T) {
	st := &RunState{WorkDir: t.TempDir()}
	if err := ContactSheet(st, filepath.Join(st.WorkDir, "sheet.pdf")); err == nil {
		t.Error("expected error with nothing to place")
	}
}
