package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

func pathProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": "Absolute path to the image file",
	}
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		{
			Name:        "coins_count_image",
			Description: "Run the coin counting pipeline on an image file. Returns every candidate region with its denomination and confidence, whether it passed the confidence threshold, and the total value of the accepted coins.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty(),
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "coins_edge_mask",
			Description: "Return the binary edge mask the pipeline derives from an image (blur, Canny, dilation and erosion) as a base64-encoded PNG. Use this to check whether coin outlines are closed.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty(),
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "coins_candidates",
			Description: "List the candidate coin regions found in an image before classification: bounding boxes and filled areas.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty(),
					"min_area": map[string]interface{}{
						"type":        "integer",
						"description": "Minimum filled area in pixels a region must exceed (default: configured MIN_AREA, 2000)",
					},
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "coins_registry",
			Description: "List the denominations the classifier can recognise, in model output order, with their values. Pass a class identifier to look up a single denomination.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"class": map[string]interface{}{
						"type":        "string",
						"description": "Class identifier to look up, e.g. 50_cents (default: all denominations)",
					},
				},
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
