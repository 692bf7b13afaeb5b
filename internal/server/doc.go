// Package server implements the MCP (Model Context Protocol) server for the
// restoration studio.
//
// This package provides a JSON-RPC 2.0 server that exposes the restoration
// stages through the MCP protocol, so an assistant or any other MCP client
// can drive a run one stage at a time and inspect the files in between.
//
// # Protocol
//
// The server communicates over stdio using JSON-RPC 2.0:
//   - Input: JSON-RPC requests on stdin (one per line)
//   - Output: JSON-RPC responses on stdout
//
// Supported MCP methods:
//   - initialize: Protocol handshake
//   - tools/list: Enumerate available tools
//   - tools/call: Execute a tool with arguments
//   - ping: Health check
//
// # Available Tools
//
// Run Management:
//   - restore_new_run: Copy a scan into a new run folder
//   - restore_status: Read the run manifest
//
// Stages:
//   - restore_ingest: Normalize exposure, write the damage map
//   - restore_segment: Foreground mask and preview
//   - restore_background_clean: Neutralize paper outside the mask
//   - restore_border_fill: Paint the border band with the paper tone
//   - restore_border_crop: Trim a fixed fraction from every edge
//   - restore_auto_crop: Trim edges by paper tone
//
// Output:
//   - restore_report: report.json and PDF contact sheet
//   - restore_publish: Copy the run to S3 or a local folder
//
// Inspection:
//   - image_load: Dimensions and format
//   - image_sample_tone: Pixel or region tone for use as a reference
//
// Stage parameters left unset (zero) take their value from the server
// configuration. Runs are kept in memory once seen; a run id the server has
// not seen is loaded from the configured runs folder.
//
// # Error Handling
//
// Tool execution errors are returned as JSON-RPC error responses with:
//   - code: -32000 (tool execution failure) or standard JSON-RPC codes
//   - message: Human-readable error description
//   - data: The Go error string
package server
