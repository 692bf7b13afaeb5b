package restore

import (
	"encoding/json"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/jung-kurt/gofpdf"
	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/ironsheep/restoration-studio/internal/imaging"
)

// Report file names inside a run directory.
const (
	ReportFile       = "report.json"
	ContactSheetFile = "contact_sheet.pdf"
)

// Report summarises a run for humans and downstream tools.
type Report struct {
	JobID        string            `json:"job_id"`
	CreatedUTC   string            `json:"created_utc"`
	Input        string            `json:"input"`
	InputSHA256  string            `json:"input_sha256"`
	Status       string            `json:"status"`
	Round        int               `json:"round"`
	DamageMap    string            `json:"damage_map,omitempty"`
	Normalized   string            `json:"normalized,omitempty"`
	Masks        []MaskRecord      `json:"masks"`
	Candidates   []CandidateRecord `json:"candidates"`
	CurrentImage string            `json:"current_image"`
}

// WriteReport writes report.json for the run.
func WriteReport(st *RunState) error {
	r := Report{
		JobID:        st.JobID,
		CreatedUTC:   st.CreatedUTC,
		Input:        st.InputPath,
		InputSHA256:  st.InputSHA256,
		Status:       st.Status,
		Round:        st.Round,
		DamageMap:    st.DamageMapPath,
		Normalized:   st.NormalizedPath,
		Masks:        st.Masks,
		Candidates:   st.Candidates,
		CurrentImage: st.CurrentImage(),
	}
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	if err := os.WriteFile(st.Path(ReportFile), data, 0o644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

// pageMargin is the contact sheet margin in points.
const pageMargin = 36

// sheetEntry is one image placed on the contact sheet.
type sheetEntry struct {
	caption string
	path    string
}

// contactSheetEntries lists the run artifacts in pipeline order.
func contactSheetEntries(st *RunState) []sheetEntry {
	var entries []sheetEntry
	add := func(caption, path string) {
		if path == "" {
			return
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".png", ".jpg", ".jpeg":
			entries = append(entries, sheetEntry{caption: caption, path: path})
		}
	}
	add("input", st.InputCopy)
	add("normalized", st.NormalizedPath)
	add("damage map", st.DamageMapPath)
	for i, m := range st.Masks {
		add(fmt.Sprintf("mask %d (confidence %.2f)", i+1, m.Confidence), m.Path)
	}
	for _, c := range st.Candidates {
		add(c.Stage, c.Path)
	}
	return entries
}

// ContactSheet writes a PDF with one A4 page per run artifact, each scaled to
// fit the page and captioned with the stage that produced it. Artifacts in
// formats the PDF writer cannot embed are skipped.
func ContactSheet(st *RunState, path string) error {
	entries := contactSheetEntries(st)
	if len(entries) == 0 {
		return errors.New("no artifacts to place on contact sheet")
	}

	pdf := gofpdf.New("P", "pt", "A4", "")
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetFont("Helvetica", "", 11)
	pageW, pageH := pdf.GetPageSize()

	for _, e := range entries {
		w, h, err := imageSize(e.path)
		if err != nil {
			return err
		}
		pdf.AddPage()
		pdf.SetXY(pageMargin, pageMargin/2)
		pdf.CellFormat(pageW-2*pageMargin, pageMargin/2, e.caption, "", 0, "L", false, 0, "")

		boxW, boxH := pageW-2*pageMargin, pageH-2*pageMargin
		scale := min(boxW/float64(w), boxH/float64(h))
		drawW, drawH := float64(w)*scale, float64(h)*scale
		x := pageMargin + (boxW-drawW)/2
		y := pageMargin + (boxH-drawH)/2

		_ = pdf.RegisterImageOptions(e.path, gofpdf.ImageOptions{})
		pdf.ImageOptions(e.path, x, y, drawW, drawH, false, gofpdf.ImageOptions{}, 0, "")
		if err := pdf.Error(); err != nil {
			return fmt.Errorf("failed to add %s to contact sheet: %w", e.path, err)
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	return pdf.OutputFileAndClose(path)
}

func imageSize(path string) (int, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()
	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %s: %v", imaging.ErrImageDecode, path, err)
	}
	return cfg.Width, cfg.Height, nil
}

var sideColors = map[imaging.Side]drawing.Color{
	imaging.Top:    chart.ColorBlue,
	imaging.Bottom: chart.ColorRed,
	imaging.Left:   chart.ColorOrange,
	imaging.Right:  chart.ColorAlternateGreen,
}

// ScanChart plots the band-to-paper distance of every examined offset, one
// line per side, against a dashed line at the stop threshold. Sides with
// fewer than two samples are left out; at least one side must qualify.
func ScanChart(trace imaging.ScanTrace, threshold float64, w io.Writer) error {
	var series []chart.Series
	maxX, maxY := 1.0, max(threshold, 1.0)
	for _, side := range imaging.Sides {
		samples := trace[side]
		if len(samples) < 2 {
			continue
		}
		var xvalues, yvalues []float64
		for _, s := range samples {
			xvalues = append(xvalues, float64(s.Offset))
			yvalues = append(yvalues, s.Distance)
			maxX = max(maxX, float64(s.Offset))
			maxY = max(maxY, s.Distance)
		}
		series = append(series, chart.ContinuousSeries{
			Name:    side.String(),
			XValues: xvalues,
			YValues: yvalues,
			Style:   chart.Style{StrokeColor: sideColors[side]},
		})
	}
	if len(series) == 0 {
		return errors.New("not enough scan samples to chart")
	}
	series = append(series, chart.ContinuousSeries{
		Name:    "threshold",
		XValues: []float64{0, maxX},
		YValues: []float64{threshold, threshold},
		Style: chart.Style{
			StrokeColor:     chart.ColorAlternateGray,
			StrokeDashArray: []float64{5.0, 5.0},
		},
	})

	graph := chart.Chart{
		Title:  "Edge tone scan",
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			Name:  "Offset (px)",
			Range: &chart.ContinuousRange{Min: 0, Max: maxX},
		},
		YAxis: chart.YAxis{
			Name:  "Distance to paper tone",
			Range: &chart.ContinuousRange{Min: 0, Max: maxY * 1.1},
		},
		Series: series,
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}
	return graph.Render(chart.PNG, w)
}
