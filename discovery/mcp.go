package discovery

import (
	"context"
	"encoding/json"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/chemfetch/sdspipe/kit"
)

// RegisterMCP registers discovery tools on an MCP server.
func (e *Engine) RegisterMCP(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "sds_discover",
		Description: "Search the web for a product's safety data sheet URL by name, size and barcode.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"name":    map[string]any{"type": "string", "description": "Product name"},
				"size":    map[string]any{"type": "string", "description": "Pack size, e.g. 500ml"},
				"barcode": map[string]any{"type": "string", "description": "EAN/UPC barcode"},
			},
			"required": []string{"name"},
		},
	}

	type discoverReq struct {
		Name    string `json:"name"`
		Size    string `json:"size"`
		Barcode string `json:"barcode"`
	}

	var endpoint kit.Endpoint = func(ctx context.Context, req any) (any, error) {
		r := req.(*discoverReq)
		return e.FindSdsURL(ctx, r.Name, r.Size, r.Barcode)
	}
	endpoint = kit.Chain(kit.Logged(e.cfg.Logger, "sds_discover"))(endpoint)

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var r discoverReq
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &r}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}
