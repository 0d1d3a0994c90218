package server

import (
	"encoding/json"
	"fmt"
	"image"
	"math"
	"path/filepath"
	"testing"

	"github.com/ironsheep/coin-counter/internal/classifier"
	"github.com/ironsheep/coin-counter/internal/coins"
	"github.com/ironsheep/coin-counter/internal/imaging"
)

// callTool runs a tools/call request and decodes the text content into dst.
func callTool(t *testing.T, s *Server, name string, args map[string]interface{}, dst interface{}) *MCPResponse {
	t.Helper()

	params := map[string]interface{}{"name": name, "arguments": args}
	paramsJSON, _ := json.Marshal(params)

	resp := s.handleRequest(&MCPRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "tools/call",
		Params:  paramsJSON,
	})
	if resp == nil {
		t.Fatal("handleRequest returned nil")
	}
	if resp.Error != nil || dst == nil {
		return resp
	}

	result := resp.Result.(map[string]interface{})
	content := result["content"].([]map[string]interface{})
	text := content[0]["text"].(string)
	if err := json.Unmarshal([]byte(text), dst); err != nil {
		t.Fatalf("tool result is not JSON: %v\n%s", err, text)
	}
	return resp
}

func TestHandleToolsCall_CountImage(t *testing.T) {
	s := newTestServer(t, nil)
	path := createCoinImageFile(t, image.Pt(160, 240), image.Pt(480, 240))

	var result CountResult
	resp := callTool(t, s, "coins_count_image", map[string]interface{}{"path": path}, &result)
	if resp.Error != nil {
		t.Fatalf("Unexpected error: %v", resp.Error)
	}

	if len(result.Detections) != 2 || result.Accepted != 2 {
		t.Fatalf("detections: got %d (accepted %d), want 2", len(result.Detections), result.Accepted)
	}
	if math.Abs(result.Total-2.0) > 1e-9 {
		t.Errorf("total: got %v, want 2", result.Total)
	}
	if result.Formatted != "R$ 2.00" {
		t.Errorf("formatted: got %q", result.Formatted)
	}
	if result.Width != 640 || result.Height != 480 {
		t.Errorf("size: got %dx%d", result.Width, result.Height)
	}
	if result.Detections[0].Denomination.Class != "1_real" {
		t.Errorf("class: got %q", result.Detections[0].Denomination.Class)
	}
}

func TestHandleToolsCall_CountImage_BelowThreshold(t *testing.T) {
	d, _ := coins.DefaultRegistry().Lookup("25_cents")
	s := newTestServer(t, constantClassifier{prediction: classifierPrediction(d, 0.5)})
	path := createCoinImageFile(t, image.Pt(320, 240))

	var result CountResult
	callTool(t, s, "coins_count_image", map[string]interface{}{"path": path}, &result)

	if len(result.Detections) != 1 || result.Detections[0].Accepted {
		t.Fatalf("detections: got %+v, want one rejected", result.Detections)
	}
	if result.Total != 0 || result.Formatted != "R$ 0.00" {
		t.Errorf("total: got %v %q", result.Total, result.Formatted)
	}
}

func TestHandleToolsCall_CountImage_ClassifierError(t *testing.T) {
	s := newTestServer(t, constantClassifier{err: fmt.Errorf("index 9: %w", coins.ErrUnknownDenomination)})
	path := createCoinImageFile(t, image.Pt(320, 240))

	resp := callTool(t, s, "coins_count_image", map[string]interface{}{"path": path}, nil)
	if resp.Error == nil {
		t.Fatal("expected error response")
	}
	if resp.Error.Code != -32000 {
		t.Errorf("Error code: got %d, want -32000", resp.Error.Code)
	}
}

func TestHandleToolsCall_NonExistentFile(t *testing.T) {
	s := newTestServer(t, nil)
	missing := filepath.Join(t.TempDir(), "missing.png")

	for _, tool := range []string{"coins_count_image", "coins_edge_mask", "coins_candidates"} {
		t.Run(tool, func(t *testing.T) {
			resp := callTool(t, s, tool, map[string]interface{}{"path": missing}, nil)
			if resp.Error == nil {
				t.Fatal("Expected error for non-existent file")
			}
			if resp.Error.Code != -32000 {
				t.Errorf("Error code: got %d, want -32000", resp.Error.Code)
			}
		})
	}
}

func TestHandleToolsCall_MissingPath(t *testing.T) {
	s := newTestServer(t, nil)

	for _, tool := range []string{"coins_count_image", "coins_edge_mask", "coins_candidates"} {
		t.Run(tool, func(t *testing.T) {
			if resp := callTool(t, s, tool, map[string]interface{}{}, nil); resp.Error == nil {
				t.Error("Expected error for missing path")
			}
		})
	}
}

func TestHandleToolsCall_EdgeMask(t *testing.T) {
	s := newTestServer(t, nil)
	path := createCoinImageFile(t, image.Pt(320, 240))

	var result imaging.MaskResult
	resp := callTool(t, s, "coins_edge_mask", map[string]interface{}{"path": path}, &result)
	if resp.Error != nil {
		t.Fatalf("Unexpected error: %v", resp.Error)
	}

	if result.Width != 640 || result.Height != 480 {
		t.Errorf("mask size: got %dx%d", result.Width, result.Height)
	}
	if result.OnPixels == 0 {
		t.Error("mask should contain the coin outline")
	}
	if result.MimeType != "image/png" || result.ImageBase64 == "" {
		t.Error("mask should be a base64 PNG")
	}
}

func TestHandleToolsCall_Candidates(t *testing.T) {
	s := newTestServer(t, nil)
	path := createCoinImageFile(t, image.Pt(160, 240), image.Pt(480, 240))

	tests := []struct {
		name      string
		args      map[string]interface{}
		wantArea  int
		wantCount int
	}{
		{"default min area", map[string]interface{}{"path": path}, 2000, 2},
		{"min area above coins", map[string]interface{}{"path": path, "min_area": 100000}, 100000, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var result CandidatesResult
			resp := callTool(t, s, "coins_candidates", tt.args, &result)
			if resp.Error != nil {
				t.Fatalf("Unexpected error: %v", resp.Error)
			}
			if result.MinArea != tt.wantArea {
				t.Errorf("min_area: got %d, want %d", result.MinArea, tt.wantArea)
			}
			if result.Count != tt.wantCount || len(result.Candidates) != tt.wantCount {
				t.Errorf("count: got %d (%d listed), want %d", result.Count, len(result.Candidates), tt.wantCount)
			}
		})
	}
}

func TestHandleToolsCall_Candidates_NegativeMinArea(t *testing.T) {
	s := newTestServer(t, nil)
	path := createCoinImageFile(t)

	resp := callTool(t, s, "coins_candidates", map[string]interface{}{"path": path, "min_area": -1}, nil)
	if resp.Error == nil {
		t.Error("Expected error for negative min_area")
	}
}

func TestHandleToolsCall_Registry(t *testing.T) {
	s := newTestServer(t, nil)

	var result RegistryResult
	resp := callTool(t, s, "coins_registry", map[string]interface{}{}, &result)
	if resp.Error != nil {
		t.Fatalf("Unexpected error: %v", resp.Error)
	}

	if result.Currency != "R$" {
		t.Errorf("currency: got %q", result.Currency)
	}
	want := []string{"1_real", "50_cents", "25_cents", "10_cents", "5_cents"}
	if len(result.Denominations) != len(want) {
		t.Fatalf("denominations: got %d, want %d", len(result.Denominations), len(want))
	}
	for i, class := range want {
		if result.Denominations[i].Class != class {
			t.Errorf("denomination %d: got %q, want %q", i, result.Denominations[i].Class, class)
		}
	}
}

func TestHandleToolsCall_RegistryLookup(t *testing.T) {
	s := newTestServer(t, nil)

	var result RegistryResult
	resp := callTool(t, s, "coins_registry", map[string]interface{}{"class": "50_cents"}, &result)
	if resp.Error != nil {
		t.Fatalf("Unexpected error: %v", resp.Error)
	}
	if len(result.Denominations) != 1 {
		t.Fatalf("denominations: got %d, want 1", len(result.Denominations))
	}
	if d := result.Denominations[0]; d.Class != "50_cents" || d.Value != 0.5 {
		t.Errorf("lookup: got %+v", d)
	}

	resp = callTool(t, s, "coins_registry", map[string]interface{}{"class": "2_euro"}, nil)
	if resp.Error == nil || resp.Error.Code != -32000 {
		t.Errorf("unknown class: got %+v, want -32000", resp.Error)
	}
}

func TestHandleToolsCall_InvalidParams(t *testing.T) {
	s := newTestServer(t, nil)
	resp := s.handleRequest(&MCPRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "tools/call",
		Params:  json.RawMessage(`{invalid`),
	})

	if resp.Error == nil || resp.Error.Code != -32602 {
		t.Errorf("Error: got %+v, want -32602", resp.Error)
	}
}

func TestExecuteTool_UnknownTool(t *testing.T) {
	s := newTestServer(t, nil)

	if _, err := s.executeTool("image_load", json.RawMessage(`{}`)); err == nil {
		t.Error("executeTool should fail for unknown tool")
	}
}

func TestExecuteTool_InvalidJSON(t *testing.T) {
	s := newTestServer(t, nil)

	_, err := s.executeTool("coins_count_image", json.RawMessage(`{invalid`))
	if err == nil {
		t.Error("executeTool should fail for invalid JSON")
	}
}

func TestExecuteTool_CachesImages(t *testing.T) {
	s := newTestServer(t, nil)
	path := createCoinImageFile(t, image.Pt(320, 240))
	args, _ := json.Marshal(map[string]interface{}{"path": path})

	for _, tool := range []string{"coins_count_image", "coins_edge_mask", "coins_candidates"} {
		if _, err := s.executeTool(tool, args); err != nil {
			t.Fatalf("%s failed: %v", tool, err)
		}
	}
	if s.cache.Len() != 1 {
		t.Errorf("cache size: got %d, want 1", s.cache.Len())
	}
}

func TestDecodeArgs_Empty(t *testing.T) {
	var a pathArgs
	if err := decodeArgs(nil, &a); err != nil {
		t.Errorf("decodeArgs(nil): %v", err)
	}
	if err := a.validate(); err == nil {
		t.Error("empty path should not validate")
	}
}

func classifierPrediction(d coins.Denomination, confidence float64) classifier.Prediction {
	return classifier.Prediction{Denomination: d, Confidence: confidence}
}
