package restore

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"io"
	"log"
	"os"

	"github.com/ironsheep/restoration-studio/internal/detection"
	"github.com/ironsheep/restoration-studio/internal/imaging"
)

// Publisher uploads the files of a finished run and reports how many were
// sent.
type Publisher interface {
	PublishRun(ctx context.Context, workDir, prefix string) (int, error)
}

// Runner executes restoration stages against a run directory. Each stage
// reads its input from disk, writes its artifacts into the run, appends to
// the run history and rewrites state.json.
type Runner struct {
	Config Config
	Logger *log.Logger

	cache *imaging.ImageCache
}

// NewRunner returns a Runner. A nil logger discards output.
func NewRunner(cfg Config, logger *log.Logger) *Runner {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Runner{Config: cfg, Logger: logger, cache: imaging.NewImageCache()}
}

// Cache returns the decoded-image cache the runner reads through. Stages
// evict every file they rewrite, so readers sharing it never see a stale
// decode of a stage output.
func (r *Runner) Cache() *imaging.ImageCache {
	return r.cache
}

// save writes img and drops any stale cached decode of the same path.
func (r *Runner) save(img image.Image, path string) error {
	if err := imaging.Save(img, path); err != nil {
		return err
	}
	r.cache.Evict(path)
	return nil
}

func (r *Runner) saveMask(m imaging.Mask, path string) error {
	if err := imaging.SaveMask(m, path); err != nil {
		return err
	}
	r.cache.Evict(path)
	return nil
}

func (r *Runner) latestMask(st *RunState) (imaging.Mask, error) {
	rec, err := st.LatestMask()
	if err != nil {
		return imaging.Mask{}, err
	}
	img, err := r.cache.Load(rec.Path)
	if err != nil {
		return imaging.Mask{}, fmt.Errorf("failed to load mask: %w", err)
	}
	return imaging.MaskFromImage(img), nil
}

// input resolves the image a stage starts from. An empty path selects the
// run's current image.
func (r *Runner) input(st *RunState, path string) (string, *image.NRGBA, error) {
	if path == "" {
		path = st.CurrentImage()
	}
	img, err := r.cache.Load(path)
	if err != nil {
		return "", nil, err
	}
	return path, img, nil
}

// Ingest normalizes the copied input and writes the damage map.
func (r *Runner) Ingest(st *RunState) (*IngestResult, error) {
	_, img, err := r.input(st, st.InputCopy)
	if err != nil {
		return nil, err
	}
	res := Ingest(img, r.Config.Damage)

	normPath := st.Path("preprocess", "normalized.png")
	dmgPath := st.Path("preprocess", "damage_map.png")
	if err := r.save(res.Normalized, normPath); err != nil {
		return nil, err
	}
	if err := r.save(res.DamageMap, dmgPath); err != nil {
		return nil, err
	}
	st.NormalizedPath = normPath
	st.DamageMapPath = dmgPath
	r.Logger.Printf("ingest: %s -> %s, %s", st.InputCopy, normPath, dmgPath)
	return res, st.Save()
}

// Segment computes a foreground mask of the image at input (empty selects
// the current image), writes it with a tinted preview, and records it in the
// mask history.
func (r *Runner) Segment(st *RunState, input string, opts detection.SegmentOptions) (*detection.Segmentation, string, error) {
	_, img, err := r.input(st, input)
	if err != nil {
		return nil, "", err
	}
	seg := detection.Analyze(img, opts)

	n := len(st.Masks) + 1
	maskPath := st.Path("segment", fmt.Sprintf("mask_%02d.png", n))
	previewPath := st.Path("segment", fmt.Sprintf("mask_preview_%02d.png", n))
	if err := r.saveMask(seg.Mask, maskPath); err != nil {
		return nil, "", err
	}

	tint, err := imaging.ParseHexRGB(r.Config.Overlay.TintHex)
	if err != nil {
		return nil, "", err
	}
	preview, err := detection.Overlay(img, seg.Mask, tintColor(tint), r.Config.Overlay.Alpha)
	if err != nil {
		return nil, "", err
	}
	if err := r.save(preview, previewPath); err != nil {
		return nil, "", err
	}

	st.AddMask(maskPath, seg.Confidence)
	r.Logger.Printf("segment: mask %d, %d regions, %.1f%% foreground", n, seg.Regions, seg.ForegroundFraction*100)
	return seg, maskPath, st.Save()
}

// BackgroundClean cleans the paper around the latest mask.
func (r *Runner) BackgroundClean(st *RunState, input string, opts BackgroundOptions) (*BackgroundResult, string, error) {
	mask, err := r.latestMask(st)
	if err != nil {
		return nil, "", err
	}
	_, img, err := r.input(st, input)
	if err != nil {
		return nil, "", err
	}
	res, err := BackgroundClean(img, mask, opts)
	if err != nil {
		return nil, "", err
	}

	outPath := st.Path("restore", "background_clean.png")
	if err := r.save(res.Image, outPath); err != nil {
		return nil, "", err
	}
	if err := r.save(res.Delta, st.Path("restore", "background_delta.png")); err != nil {
		return nil, "", err
	}
	st.AddCandidate(outPath, "background_clean", map[string]any{
		"strength":       opts.Strength,
		"feather_radius": opts.FeatherRadius,
		"paper_b":        res.PaperB,
	})
	r.Logger.Printf("background_clean: paper b %.1f over %d pixels", res.PaperB, res.BackgroundPixels)
	return res, outPath, st.Save()
}

// RepairBorder applies a border repair. Repairs that need a mask receive the
// latest one and fail with ErrNoMaskAvailable when none exists.
func (r *Runner) RepairBorder(st *RunState, input string, repair BorderRepair) (string, error) {
	var mask imaging.Mask
	if repair.NeedsMask() {
		m, err := r.latestMask(st)
		if err != nil {
			return "", err
		}
		mask = m
	}
	_, img, err := r.input(st, input)
	if err != nil {
		return "", err
	}
	out, err := repair.Repair(img, mask)
	if err != nil {
		return "", err
	}

	outPath := st.Path("restore", repair.Name()+".png")
	if err := r.save(out, outPath); err != nil {
		return "", err
	}
	st.AddCandidate(outPath, repair.Name(), map[string]any{
		"width":  out.Bounds().Dx(),
		"height": out.Bounds().Dy(),
	})
	r.Logger.Printf("%s: %dx%d", repair.Name(), out.Bounds().Dx(), out.Bounds().Dy())
	return outPath, st.Save()
}

// NewBorderRepair builds the configured repair for mode "fill" or "crop".
func (r *Runner) NewBorderRepair(mode string) (BorderRepair, error) {
	b := r.Config.Border
	switch mode {
	case "fill", "":
		return FillBorder{FillHex: b.FillHex, BorderFraction: b.BorderFraction, FeatherRadius: b.FeatherRadius}, nil
	case "crop":
		return CropBorder{CropFraction: b.CropFraction}, nil
	default:
		return nil, fmt.Errorf("%w: unknown border mode %q", imaging.ErrInvalidParameter, mode)
	}
}

// AutoCrop trims paper margins by tone and charts the scan. A chart that
// cannot be drawn is logged and does not fail the stage.
func (r *Runner) AutoCrop(st *RunState, input string, opts AutoCropOptions) (*AutoCropResult, string, error) {
	_, img, err := r.input(st, input)
	if err != nil {
		return nil, "", err
	}
	res, err := AutoCropPaper(img, opts)
	if err != nil {
		return nil, "", err
	}

	outPath := st.Path("restore", "auto_crop.png")
	if err := r.save(res.Image, outPath); err != nil {
		return nil, "", err
	}
	var chartBuf bytes.Buffer
	if err := ScanChart(res.Trace, opts.Threshold, &chartBuf); err != nil {
		r.Logger.Printf("auto_crop: scan chart skipped: %v", err)
	} else if err := os.WriteFile(st.Path("restore", "auto_crop_scan.png"), chartBuf.Bytes(), 0o644); err != nil {
		return nil, "", fmt.Errorf("failed to write scan chart: %w", err)
	}

	st.AddCandidate(outPath, "auto_crop_paper", map[string]any{
		"target_hex":       opts.TargetHex,
		"offsets":          res.Offsets,
		"safety_margin_px": opts.SafetyMarginPx,
		"crop_box":         []int{res.Rect.Min.X, res.Rect.Min.Y, res.Rect.Max.X, res.Rect.Max.Y},
	})
	r.Logger.Printf("auto_crop: offsets %+v, kept %v", res.Offsets, res.Rect)
	return res, outPath, st.Save()
}

// Report rewrites report.json and the PDF contact sheet. It returns the path
// of the contact sheet.
func (r *Runner) Report(st *RunState) (string, error) {
	if err := WriteReport(st); err != nil {
		return "", err
	}
	sheet := st.Path(ContactSheetFile)
	if err := ContactSheet(st, sheet); err != nil {
		return "", err
	}
	return sheet, nil
}

// RunAll runs the whole pipeline on one scan: ingest, segment, background
// clean, border fill, auto crop and report. When pub is non-nil the finished
// run is published under the configured prefix. A stage failure marks the run
// as failed before returning.
func (r *Runner) RunAll(ctx context.Context, inputPath string, pub Publisher) (*RunState, error) {
	st, err := NewRun(inputPath, r.Config.RunsDir)
	if err != nil {
		return nil, err
	}
	r.Logger.Printf("run %s: created in %s", st.JobID, st.WorkDir)

	fill, err := r.NewBorderRepair("fill")
	if err != nil {
		return st, err
	}
	steps := []struct {
		name string
		fn   func() error
	}{
		{"ingest", func() error { _, err := r.Ingest(st); return err }},
		{"segment", func() error { _, _, err := r.Segment(st, st.NormalizedPath, r.Config.Segment); return err }},
		{"background_clean", func() error { _, _, err := r.BackgroundClean(st, "", r.Config.Background); return err }},
		{"border_fill", func() error { _, err := r.RepairBorder(st, "", fill); return err }},
		{"auto_crop", func() error { _, _, err := r.AutoCrop(st, "", r.Config.AutoCrop); return err }},
	}
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return st, r.fail(st, step.name, err)
		}
		if err := step.fn(); err != nil {
			return st, r.fail(st, step.name, err)
		}
	}

	st.Status = StatusComplete
	if err := st.Save(); err != nil {
		return st, err
	}
	if _, err := r.Report(st); err != nil {
		return st, err
	}
	if pub != nil {
		n, err := pub.PublishRun(ctx, st.WorkDir, r.Config.Publish.Prefix)
		if err != nil {
			return st, fmt.Errorf("failed to publish run: %w", err)
		}
		r.Logger.Printf("run %s: published %d files", st.JobID, n)
	}
	return st, nil
}

func (r *Runner) fail(st *RunState, stage string, err error) error {
	st.Status = StatusFailed
	if serr := st.Save(); serr != nil {
		r.Logger.Printf("run %s: failed to record failure: %v", st.JobID, serr)
	}
	return fmt.Errorf("stage %s failed: %w", stage, err)
}

func tintColor(c imaging.RGBColor) color.NRGBA {
	return color.NRGBA{R: c.R, G: c.G, B: c.B, A: 255}
}
