// Package server exposes the coin counting pipeline as an MCP (Model Context
// Protocol) server, so still images can be inspected without a camera.
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
//   - coins_count_image: Full pipeline, detections and total
//   - coins_edge_mask: Pre-processed edge mask as PNG
//   - coins_candidates: Candidate regions before classification
//   - coins_registry: Known denominations and values
//
// Images are normalised to the pipeline frame size before processing, so the
// results match what the live counter would report for the same scene.
//
// # Image Caching
//
// The server maintains an in-memory cache of loaded images. Images are cached
// by path and reused across multiple tool calls, avoiding redundant disk I/O.
// The cache persists for the lifetime of the server process.
//
// # Error Handling
//
// Tool execution errors are returned as JSON-RPC error responses with:
//   - code: -32000 (tool execution failure) or standard JSON-RPC codes
//   - message: Human-readable error description
//   - data: Additional error details (typically the Go error string)
//
// Logging goes to stderr through logrus; stdout carries only protocol
// messages.
package server
