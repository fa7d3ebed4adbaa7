package sdsextract

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/chemfetch/sdspipe/kit"
)

// RegisterMCP registers extraction tools on an MCP server.
func (e *Engine) RegisterMCP(srv *mcp.Server) {
	e.registerExtractTool(srv)
}

type extractReq struct {
	Path string `json:"path"`
}

func (e *Engine) registerExtractTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "sds_extract",
		Description: "Extract safety data sheet fields (product name, vendor, issue date, dangerous goods classification) from a local PDF file.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"path": map[string]any{"type": "string", "description": "PDF file path to extract"},
			},
			"required": []string{"path"},
		},
	}

	var endpoint kit.Endpoint = func(ctx context.Context, req any) (any, error) {
		r := req.(*extractReq)
		data, err := os.ReadFile(r.Path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", r.Path, err)
		}
		return e.Extract(ctx, data)
	}
	endpoint = kit.Chain(kit.Logged(e.cfg.Logger, "sds_extract"))(endpoint)

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var r extractReq
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &r}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}
