package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"image"

	"github.com/sirupsen/logrus"

	"github.com/ironsheep/coin-counter/internal/coins"
	"github.com/ironsheep/coin-counter/internal/detection"
	"github.com/ironsheep/coin-counter/internal/imaging"
	"github.com/ironsheep/coin-counter/internal/pipeline"
	"github.com/ironsheep/coin-counter/internal/render"
)

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "coins_count_image").
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
	if err := codec.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}

	result, err := s.executeTool(params.Name, params.Arguments)
	if err != nil {
		s.log.WithError(err).WithField("tool", params.Name).Warn("tool failed")
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
func (s *Server) executeTool(name string, args json.RawMessage) (interface{}, error) {
	switch name {
	case "coins_count_image":
		return s.handleCountImage(args)
	case "coins_edge_mask":
		return s.handleEdgeMask(args)
	case "coins_candidates":
		return s.handleCandidates(args)
	case "coins_registry":
		return s.handleRegistry(args)
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
// On marshal failure it returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := codec.MarshalIndent(v, "", "  ")
	return string(b)
}

type pathArgs struct {
	Path string `json:"path"`
}

func decodeArgs(args json.RawMessage, dst interface{}) error {
	if len(args) == 0 {
		return nil
	}
	if err := codec.Unmarshal(args, dst); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

func (a pathArgs) validate() error {
	if a.Path == "" {
		return errors.New("path is required")
	}
	return nil
}

// loadImage reads path through the shared cache.
func (s *Server) loadImage(path string) (image.Image, error) {
	img, err := s.cache.Load(path)
	if err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{
		"path":   path,
		"cached": s.cache.Len(),
	}).Debug("image loaded")
	return img, nil
}

// === Counting ===

// CountResult is the outcome of running the full pipeline on one image.
type CountResult struct {
	Path       string               `json:"path"`
	Width      int                  `json:"width"`
	Height     int                  `json:"height"`
	Total      float64              `json:"total"`
	Formatted  string               `json:"formatted"`
	Accepted   int                  `json:"accepted"`
	Detections []pipeline.Detection `json:"detections"`
}

func (s *Server) handleCountImage(args json.RawMessage) (interface{}, error) {
	var a pathArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if err := a.validate(); err != nil {
		return nil, err
	}

	img, err := s.loadImage(a.Path)
	if err != nil {
		return nil, err
	}

	result, err := s.opts.Counter.Process(img)
	if err != nil {
		return nil, fmt.Errorf("failed to count coins: %w", err)
	}

	b := result.Frame.Bounds()
	return &CountResult{
		Path:       a.Path,
		Width:      b.Dx(),
		Height:     b.Dy(),
		Total:      result.Total,
		Formatted:  render.FormatTotal(s.opts.Currency, result.Total),
		Accepted:   len(result.Accepted()),
		Detections: result.Detections,
	}, nil
}

// === Pipeline stages ===

func (s *Server) handleEdgeMask(args json.RawMessage) (interface{}, error) {
	var a pathArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if err := a.validate(); err != nil {
		return nil, err
	}

	img, err := s.loadImage(a.Path)
	if err != nil {
		return nil, err
	}

	mask, err := s.opts.Preprocessor.Process(s.opts.Counter.Normalise(img))
	if err != nil {
		return nil, fmt.Errorf("failed to preprocess image: %w", err)
	}
	return imaging.EncodeMask(mask)
}

type candidatesArgs struct {
	pathArgs
	MinArea *int `json:"min_area"`
}

// CandidatesResult lists the regions that would be sent to the classifier.
type CandidatesResult struct {
	Path       string                `json:"path"`
	MinArea    int                   `json:"min_area"`
	Count      int                   `json:"count"`
	Candidates []detection.Candidate `json:"candidates"`
}

func (s *Server) handleCandidates(args json.RawMessage) (interface{}, error) {
	var a candidatesArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if err := a.validate(); err != nil {
		return nil, err
	}

	minArea := s.opts.MinArea
	if a.MinArea != nil {
		if *a.MinArea < 0 {
			return nil, fmt.Errorf("min_area must be >= 0, got %d", *a.MinArea)
		}
		minArea = *a.MinArea
	}

	img, err := s.loadImage(a.Path)
	if err != nil {
		return nil, err
	}

	mask, err := s.opts.Preprocessor.Process(s.opts.Counter.Normalise(img))
	if err != nil {
		return nil, fmt.Errorf("failed to preprocess image: %w", err)
	}

	candidates := detection.NewExtractor(minArea).Extract(mask)
	if candidates == nil {
		candidates = []detection.Candidate{}
	}

	return &CandidatesResult{
		Path:       a.Path,
		MinArea:    minArea,
		Count:      len(candidates),
		Candidates: candidates,
	}, nil
}

// === Registry ===

// RegistryResult lists the denominations in classifier output order.
type RegistryResult struct {
	Currency      string               `json:"currency"`
	Denominations []coins.Denomination `json:"denominations"`
}

type registryArgs struct {
	Class string `json:"class"`
}

func (s *Server) handleRegistry(args json.RawMessage) (interface{}, error) {
	var a registryArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}

	denominations := s.opts.Registry.All()
	if a.Class != "" {
		d, err := s.opts.Registry.Lookup(a.Class)
		if err != nil {
			return nil, err
		}
		denominations = []coins.Denomination{d}
	}

	return &RegistryResult{
		Currency:      s.opts.Currency,
		Denominations: denominations,
	}, nil
}
