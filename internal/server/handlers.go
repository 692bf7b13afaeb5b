package server

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/ironsheep/restoration-studio/internal/imaging"
	"github.com/ironsheep/restoration-studio/internal/restore"
	"github.com/ironsheep/restoration-studio/internal/store"
)

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "restore_new_run", "restore_segment").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`
}

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// Tool execution errors return a JSON-RPC error response with code -32000.
func (s *Server) handleToolsCall(req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}

	result, err := s.executeTool(params.Name, params.Arguments)
	if err != nil {
		s.logger.Printf("tool %s failed: %v", params.Name, err)
		return s.errorResponse(req.ID, -32000, "Tool execution failed", err.Error())
	}

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"content": []map[string]interface{}{
				{
					"type": "text",
					"text": mustMarshalJSON(result),
				},
			},
		},
	}
}

// executeTool dispatches tool execution to the appropriate handler function.
//
// Each stage handler:
//  1. Unmarshals arguments from JSON
//  2. Fills unset (zero) parameters from the server configuration
//  3. Resolves the run, loading it from the runs folder if needed
//  4. Calls the matching restore.Runner stage
//  5. Returns the written paths and stage statistics
func (s *Server) executeTool(name string, args json.RawMessage) (interface{}, error) {
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}
	switch name {
	// Run Management
	case "restore_new_run":
		return s.handleNewRun(args)
	case "restore_status":
		return s.handleStatus(args)

	// Stages
	case "restore_ingest":
		return s.handleIngest(args)
	case "restore_segment":
		return s.handleSegment(args)
	case "restore_background_clean":
		return s.handleBackgroundClean(args)
	case "restore_border_fill":
		return s.handleBorderFill(args)
	case "restore_border_crop":
		return s.handleBorderCrop(args)
	case "restore_auto_crop":
		return s.handleAutoCrop(args)

	// Output
	case "restore_report":
		return s.handleReport(args)
	case "restore_publish":
		return s.handlePublish(args)

	// Inspection
	case "image_load":
		return s.handleImageLoad(args)
	case "image_sample_tone":
		return s.handleSampleTone(args)

	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

// errorResponse creates a JSON-RPC error response with the given details.
func (s *Server) errorResponse(id interface{}, code int, message, data string) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &MCPError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// Panics are suppressed; on marshal failure, returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

// withRun resolves a run id and calls fn while holding the run table lock.
// Runs not yet seen by this process are loaded from the runs folder. Only
// canonical UUIDs are accepted, so an id can never name a path outside it.
func (s *Server) withRun(id string, fn func(st *restore.RunState) (interface{}, error)) (interface{}, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: run_id is required", restore.ErrUnknownRun)
	}
	if u, err := uuid.Parse(id); err != nil || u.String() != id {
		return nil, fmt.Errorf("%w: malformed run_id %q", restore.ErrUnknownRun, id)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.runs[id]
	if !ok {
		var err error
		st, err = restore.OpenRun(filepath.Join(s.runner.Config.RunsDir, id))
		if err != nil {
			return nil, err
		}
		s.runs[id] = st
	}
	return fn(st)
}

// === Run Management Handlers ===

type newRunArgs struct {
	Input   string `json:"input"`
	RunsDir string `json:"runs_dir"`
}

func (s *Server) handleNewRun(args json.RawMessage) (interface{}, error) {
	var a newRunArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.RunsDir == "" {
		a.RunsDir = s.runner.Config.RunsDir
	}
	st, err := restore.NewRun(a.Input, a.RunsDir)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.runs[st.JobID] = st
	s.mu.Unlock()
	s.logger.Printf("run %s: created in %s", st.JobID, st.WorkDir)
	return st, nil
}

type runArgs struct {
	RunID string `json:"run_id"`
	Input string `json:"input"`
}

func (s *Server) handleStatus(args json.RawMessage) (interface{}, error) {
	var a runArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	return s.withRun(a.RunID, func(st *restore.RunState) (interface{}, error) {
		return struct {
			*restore.RunState
			CurrentImage string `json:"current_image"`
		}{st, st.CurrentImage()}, nil
	})
}

// === Stage Handlers ===

// StageResult reports the file a stage wrote and what it measured.
type StageResult struct {
	RunID  string      `json:"run_id"`
	Output string      `json:"output"`
	Round  int         `json:"round"`
	Stats  interface{} `json:"stats,omitempty"`
}

func (s *Server) handleIngest(args json.RawMessage) (interface{}, error) {
	var a runArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	return s.withRun(a.RunID, func(st *restore.RunState) (interface{}, error) {
		if _, err := s.runner.Ingest(st); err != nil {
			return nil, err
		}
		return map[string]interface{}{
			"run_id":          st.JobID,
			"normalized_path": st.NormalizedPath,
			"damage_map_path": st.DamageMapPath,
		}, nil
	})
}

type segmentArgs struct {
	runArgs
	Window          int     `json:"window"`
	Margin          float64 `json:"margin"`
	MinAreaFraction float64 `json:"min_area_fraction"`
	BorderFraction  float64 `json:"border_fraction"`
}

func (s *Server) handleSegment(args json.RawMessage) (interface{}, error) {
	var a segmentArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	opts := s.runner.Config.Segment
	if a.Window != 0 {
		opts.Window = a.Window
	}
	if a.Margin != 0 {
		opts.Margin = a.Margin
	}
	if a.MinAreaFraction != 0 {
		opts.MinAreaFraction = a.MinAreaFraction
	}
	if a.BorderFraction != 0 {
		opts.BorderFraction = a.BorderFraction
	}
	return s.withRun(a.RunID, func(st *restore.RunState) (interface{}, error) {
		seg, path, err := s.runner.Segment(st, a.Input, opts)
		if err != nil {
			return nil, err
		}
		return StageResult{RunID: st.JobID, Output: path, Round: st.Round, Stats: seg}, nil
	})
}

type backgroundCleanArgs struct {
	runArgs
	Strength      float64 `json:"strength"`
	FeatherRadius int     `json:"feather_radius"`
}

func (s *Server) handleBackgroundClean(args json.RawMessage) (interface{}, error) {
	var a backgroundCleanArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	opts := s.runner.Config.Background
	if a.Strength != 0 {
		opts.Strength = a.Strength
	}
	if a.FeatherRadius != 0 {
		opts.FeatherRadius = a.FeatherRadius
	}
	return s.withRun(a.RunID, func(st *restore.RunState) (interface{}, error) {
		res, path, err := s.runner.BackgroundClean(st, a.Input, opts)
		if err != nil {
			return nil, err
		}
		return StageResult{RunID: st.JobID, Output: path, Round: st.Round, Stats: res}, nil
	})
}

type borderFillArgs struct {
	runArgs
	FillHex        string  `json:"fill_hex"`
	BorderFraction float64 `json:"border_fraction"`
	FeatherRadius  int     `json:"feather_radius"`
}

func (s *Server) handleBorderFill(args json.RawMessage) (interface{}, error) {
	var a borderFillArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	cfg := s.runner.Config.Border
	repair := restore.FillBorder{FillHex: cfg.FillHex, BorderFraction: cfg.BorderFraction, FeatherRadius: cfg.FeatherRadius}
	if a.FillHex != "" {
		repair.FillHex = a.FillHex
	}
	if a.BorderFraction != 0 {
		repair.BorderFraction = a.BorderFraction
	}
	if a.FeatherRadius != 0 {
		repair.FeatherRadius = a.FeatherRadius
	}
	return s.repairBorder(a.RunID, a.Input, repair)
}

type borderCropArgs struct {
	runArgs
	CropFraction float64 `json:"crop_fraction"`
}

func (s *Server) handleBorderCrop(args json.RawMessage) (interface{}, error) {
	var a borderCropArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	repair := restore.CropBorder{CropFraction: s.runner.Config.Border.CropFraction}
	if a.CropFraction != 0 {
		repair.CropFraction = a.CropFraction
	}
	return s.repairBorder(a.RunID, a.Input, repair)
}

func (s *Server) repairBorder(runID, input string, repair restore.BorderRepair) (interface{}, error) {
	return s.withRun(runID, func(st *restore.RunState) (interface{}, error) {
		path, err := s.runner.RepairBorder(st, input, repair)
		if err != nil {
			return nil, err
		}
		return StageResult{RunID: st.JobID, Output: path, Round: st.Round}, nil
	})
}

type autoCropArgs struct {
	runArgs
	TargetHex       string  `json:"target_hex"`
	BandPx          int     `json:"band_px"`
	StepPx          int     `json:"step_px"`
	Threshold       float64 `json:"threshold"`
	SafetyMarginPx  int     `json:"safety_margin_px"`
	MaxCropFraction float64 `json:"max_crop_fraction"`
	Distance        string  `json:"distance"`
}

func (s *Server) handleAutoCrop(args json.RawMessage) (interface{}, error) {
	var a autoCropArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	opts := s.runner.Config.AutoCrop
	if a.TargetHex != "" {
		opts.TargetHex = a.TargetHex
	}
	if a.BandPx != 0 {
		opts.BandPx = a.BandPx
	}
	if a.StepPx != 0 {
		opts.StepPx = a.StepPx
	}
	if a.Threshold != 0 {
		opts.Threshold = a.Threshold
	}
	if a.SafetyMarginPx != 0 {
		opts.SafetyMarginPx = a.SafetyMarginPx
	}
	if a.MaxCropFraction != 0 {
		opts.MaxCropFraction = a.MaxCropFraction
	}
	if a.Distance != "" {
		opts.Distance = a.Distance
	}
	return s.withRun(a.RunID, func(st *restore.RunState) (interface{}, error) {
		res, path, err := s.runner.AutoCrop(st, a.Input, opts)
		if err != nil {
			return nil, err
		}
		return StageResult{RunID: st.JobID, Output: path, Round: st.Round, Stats: res}, nil
	})
}

// === Output Handlers ===

func (s *Server) handleReport(args json.RawMessage) (interface{}, error) {
	var a runArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	return s.withRun(a.RunID, func(st *restore.RunState) (interface{}, error) {
		sheet, err := s.runner.Report(st)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{
			"run_id":        st.JobID,
			"report":        st.Path(restore.ReportFile),
			"contact_sheet": sheet,
		}, nil
	})
}

type publishArgs struct {
	RunID  string `json:"run_id"`
	Prefix string `json:"prefix"`
}

func (s *Server) handlePublish(args json.RawMessage) (interface{}, error) {
	var a publishArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	cfg := s.runner.Config.Publish
	if a.Prefix == "" {
		a.Prefix = cfg.Prefix
	}
	dest, err := store.Open(cfg.Bucket, cfg.Region, cfg.Dir, s.logger)
	if err != nil {
		return nil, err
	}
	return s.withRun(a.RunID, func(st *restore.RunState) (interface{}, error) {
		n, err := store.Publish(context.Background(), dest, st.WorkDir, a.Prefix, cfg.Concurrency)
		if err != nil {
			return nil, err
		}
		destination := cfg.Dir
		if cfg.Bucket != "" {
			destination = "s3://" + cfg.Bucket
		}
		return map[string]interface{}{
			"run_id":      st.JobID,
			"files":       n,
			"destination": destination,
		}, nil
	})
}

// === Inspection Handlers ===

type imageLoadArgs struct {
	Path string `json:"path"`
}

func (s *Server) handleImageLoad(args json.RawMessage) (interface{}, error) {
	var a imageLoadArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	return imaging.LoadImageInfo(s.cache, a.Path)
}

type sampleToneArgs struct {
	Path string `json:"path"`
	X    int    `json:"x"`
	Y    int    `json:"y"`
	X2   int    `json:"x2"`
	Y2   int    `json:"y2"`
}

func (s *Server) handleSampleTone(args json.RawMessage) (interface{}, error) {
	var a sampleToneArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}
	if a.X2 != 0 || a.Y2 != 0 {
		return imaging.RegionTone(img, imaging.Region{X1: a.X, Y1: a.Y, X2: a.X2, Y2: a.Y2})
	}
	return imaging.SampleTone(img, a.X, a.Y)
}
