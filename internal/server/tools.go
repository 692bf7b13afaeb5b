package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

// runIDProperty and inputProperty appear in every stage tool.
var (
	runIDProperty = map[string]interface{}{
		"type":        "string",
		"description": "Run id returned by restore_new_run",
	}
	inputProperty = map[string]interface{}{
		"type":        "string",
		"description": "Optional image to start from. Default: the run's current image (latest candidate, else normalized, else input)",
	}
)

func numberProperty(description string, def float64) map[string]interface{} {
	return map[string]interface{}{
		"type":        "number",
		"description": description,
		"default":     def,
	}
}

func integerProperty(description string, def int) map[string]interface{} {
	return map[string]interface{}{
		"type":        "integer",
		"description": description,
		"default":     def,
	}
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		// Run Management
		{
			Name:        "restore_new_run",
			Description: "Start a restoration run for a scan. The scan is copied into a new run folder and hashed; the original is never modified.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"input": map[string]interface{}{
						"type":        "string",
						"description": "Absolute path to the input scan",
					},
					"runs_dir": map[string]interface{}{
						"type":        "string",
						"description": "Optional folder that holds run folders. Default from configuration",
					},
				},
				"required": []string{"input"},
			},
		},
		{
			Name:        "restore_status",
			Description: "Return the run manifest: masks, candidates, current image and status.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"run_id": runIDProperty,
				},
				"required": []string{"run_id"},
			},
		},

		// Stages
		{
			Name:        "restore_ingest",
			Description: "Normalize exposure (lightness histogram equalization) and write a damage map highlighting stains and scratches.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"run_id": runIDProperty,
				},
				"required": []string{"run_id"},
			},
		},
		{
			Name:        "restore_segment",
			Description: "Separate the subject (ink, paint) from the paper. Writes a binary mask and a tinted preview and records the mask for later stages.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"run_id":            runIDProperty,
					"input":             inputProperty,
					"window":            integerProperty("Adaptive threshold window (odd)", 51),
					"margin":            numberProperty("How much darker than its neighbourhood a pixel must be to count as subject", 7),
					"min_area_fraction": numberProperty("Regions smaller than this fraction of the image are dropped", 0.0005),
					"border_fraction":   numberProperty("Band along each edge, as a fraction of the shorter side, that is never subject", 0.02),
				},
				"required": []string{"run_id"},
			},
		},
		{
			Name:        "restore_background_clean",
			Description: "Reduce paper yellowing and grain outside the latest mask while keeping the subject untouched.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"run_id":         runIDProperty,
					"input":          inputProperty,
					"strength":       numberProperty("How far (0-1) to pull the paper toward neutral", 0.55),
					"feather_radius": integerProperty("Softness of the subject boundary in pixels", 13),
				},
				"required": []string{"run_id"},
			},
		},
		{
			Name:        "restore_border_fill",
			Description: "Paint the damaged border band with the paper tone, feathered inward, without covering subject pixels.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"run_id": runIDProperty,
					"input":  inputProperty,
					"fill_hex": map[string]interface{}{
						"type":        "string",
						"description": "Paper tone as six hex digits",
						"default":     "f2eee4",
					},
					"border_fraction": numberProperty("Band width as a fraction of the shorter side", 0.06),
					"feather_radius":  integerProperty("Feather radius of the band in pixels", 31),
				},
				"required": []string{"run_id"},
			},
		},
		{
			Name:        "restore_border_crop",
			Description: "Trim a fixed fraction from every edge.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"run_id":        runIDProperty,
					"input":         inputProperty,
					"crop_fraction": numberProperty("Fraction of width (left/right) and height (top/bottom) to trim", 0.04),
				},
				"required": []string{"run_id"},
			},
		},
		{
			Name:        "restore_auto_crop",
			Description: "Crop each edge inward until it matches the reference paper tone, then keep a safety margin. Also writes a chart of the scan.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"run_id": runIDProperty,
					"input":  inputProperty,
					"target_hex": map[string]interface{}{
						"type":        "string",
						"description": "Reference paper tone as six hex digits. Use image_sample_tone to measure one",
						"default":     "f2eee4",
					},
					"band_px":           integerProperty("Band thickness measured at each step", 24),
					"step_px":           integerProperty("Inward step after a miss", 8),
					"threshold":         numberProperty("Largest distance to the paper tone that still matches", 10),
					"safety_margin_px":  integerProperty("Extra pixels trimmed on every side", 12),
					"max_crop_fraction": numberProperty("Cap on the trim per side as a fraction of the dimension", 0.18),
					"distance": map[string]interface{}{
						"type":        "string",
						"enum":        []string{"euclidean", "ciede2000"},
						"description": "Color difference metric",
						"default":     "euclidean",
					},
				},
				"required": []string{"run_id"},
			},
		},

		// Output
		{
			Name:        "restore_report",
			Description: "Write report.json and a PDF contact sheet with every artifact of the run.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"run_id": runIDProperty,
				},
				"required": []string{"run_id"},
			},
		},
		{
			Name:        "restore_publish",
			Description: "Copy every file of the run to the configured destination (S3 bucket or local folder).",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"run_id": runIDProperty,
					"prefix": map[string]interface{}{
						"type":        "string",
						"description": "Optional key prefix. Default from configuration",
					},
				},
				"required": []string{"run_id"},
			},
		},

		// Inspection
		{
			Name:        "image_load",
			Description: "Load an image file and return its dimensions and format.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": map[string]interface{}{
						"type":        "string",
						"description": "Absolute path to the image file",
					},
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "image_sample_tone",
			Description: "Measure a paper tone: the color at a pixel, or the median color of a region when x2/y2 are given. Returns hex, RGB and Lab.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": map[string]interface{}{
						"type":        "string",
						"description": "Absolute path to the image file",
					},
					"x": map[string]interface{}{
						"type":        "integer",
						"description": "X coordinate (0-based, from left)",
					},
					"y": map[string]interface{}{
						"type":        "integer",
						"description": "Y coordinate (0-based, from top)",
					},
					"x2": map[string]interface{}{
						"type":        "integer",
						"description": "Optional exclusive right edge of a region starting at x",
					},
					"y2": map[string]interface{}{
						"type":        "integer",
						"description": "Optional exclusive bottom edge of a region starting at y",
					},
				},
				"required": []string{"path", "x", "y"},
			},
		},
	}
}

// handleToolsList returns the list of available tools
func (s *Server) handleToolsList(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"tools": GetToolDefinitions(),
		},
	}
}
