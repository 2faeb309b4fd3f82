package api

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hazyhaar/docudata/pkg/compliance"
	"github.com/hazyhaar/docudata/pkg/kit"
	"github.com/hazyhaar/docudata/pkg/units"
)

type mcpTool struct {
	tool     mcp.Tool
	endpoint kit.Endpoint
	decode   func(mcp.CallToolRequest) (*kit.MCPDecodeResult, error)
}

// RegisterMCPTools registers the docudata MCP tools on the server. A default
// session is opened for clients that never pass session_id; its id is
// returned.
func RegisterMCPTools(srv *server.MCPServer, svc Services) string {
	tools, def := mcpTools(svc)
	for _, t := range tools {
		kit.RegisterMCPTool(srv, t.tool, t.endpoint, t.decode)
	}
	return def
}

func mcpTools(svc Services) ([]mcpTool, string) {
	if svc.Logger == nil {
		svc.Logger = slog.Default()
	}
	eps := newEndpoints(svc)
	def := svc.Sessions.Create().ID
	svc.Sessions.Pin(def)
	sessionOf := func(args map[string]any) string {
		if v, _ := args["session_id"].(string); v != "" {
			return v
		}
		return def
	}
	enrich := func(id string) func(context.Context) context.Context {
		return func(ctx context.Context) context.Context { return kit.WithSessionID(ctx, id) }
	}
	sessionArg := mcp.WithString("session_id", mcp.Description("Session to use; defaults to the server's own session"))

	var tools []mcpTool

	tools = append(tools, mcpTool{mcp.NewTool("load_dataset",
		mcp.WithDescription("Load building data into the session, replacing what was loaded before. Pass exactly one of dataset, path or content."),
		mcp.WithString("dataset", mcp.Description("Library dataset id (see list_datasets)")),
		mcp.WithString("path", mcp.Description("Local JSON, YAML or IFC file")),
		mcp.WithString("content", mcp.Description("Inline JSON or YAML document")),
		mcp.WithString("name", mcp.Description("File name for inline content; its extension selects the parser")),
		mcp.WithString("encoding", mcp.Description("Character encoding of the file (e.g. windows-1252)")),
		mcp.WithString("jurisdiction", mcp.Description("Jurisdiction for records that carry none")),
		sessionArg,
	), eps.load, func(req mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		args := req.GetArguments()
		r := &loadReq{SessionID: sessionOf(args)}
		r.Dataset, _ = args["dataset"].(string)
		r.Name, _ = args["name"].(string)
		r.Encoding, _ = args["encoding"].(string)
		r.Jurisdiction, _ = args["jurisdiction"].(string)
		if p, _ := args["path"].(string); p != "" {
			data, err := os.ReadFile(p)
			if err != nil {
				return nil, err
			}
			r.Data = data
			if r.Name == "" {
				r.Name = filepath.Base(p)
			}
		} else if c, _ := args["content"].(string); c != "" {
			r.Data = []byte(c)
		}
		return &kit.MCPDecodeResult{Request: r, EnrichCtx: enrich(r.SessionID)}, nil
	}})

	tools = append(tools, mcpTool{mcp.NewTool("search_components",
		mcp.WithDescription("Search the loaded building components and code requirements with a natural-language query, e.g. \"walls greater than 3m height in California\"."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Free-text query")),
		mcp.WithString("jurisdiction", mcp.Description("Jurisdiction filter (e.g. california, ny); all for none")),
		mcp.WithString("system", mcp.Description("Display units: metric or imperial")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of results")),
		sessionArg,
	), eps.search, func(req mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		args := req.GetArguments()
		text, _ := args["query"].(string)
		r := &searchReq{SessionID: sessionOf(args), Query: text}
		r.Opts.Jurisdiction, _ = args["jurisdiction"].(string)
		system, _ := args["system"].(string)
		r.Opts.System = units.ParseSystem(system)
		if n, ok := args["limit"].(float64); ok {
			if n < 0 {
				return nil, fmt.Errorf("limit must not be negative")
			}
			r.Opts.Limit = int(n)
		}
		return &kit.MCPDecodeResult{Request: r, EnrichCtx: enrich(r.SessionID)}, nil
	}})

	tools = append(tools, mcpTool{mcp.NewTool("check_compliance",
		mcp.WithDescription("Check the loaded components against code requirements: the session's own, a library dataset, or the built-in reference codes."),
		mcp.WithString("against", mcp.Description("Library dataset id holding the requirements")),
		mcp.WithString("jurisdiction", mcp.Description("Only apply requirements of this jurisdiction")),
		mcp.WithString("system", mcp.Description("Units used in messages: metric or imperial")),
		sessionArg,
	), eps.compliance, func(req mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		args := req.GetArguments()
		r := &complianceReq{SessionID: sessionOf(args)}
		r.Against, _ = args["against"].(string)
		jurisdiction, _ := args["jurisdiction"].(string)
		system, _ := args["system"].(string)
		r.Opts = compliance.Options{Jurisdiction: jurisdiction, System: units.ParseSystem(system)}
		return &kit.MCPDecodeResult{Request: r, EnrichCtx: enrich(r.SessionID)}, nil
	}})

	tools = append(tools, mcpTool{mcp.NewTool("dataset_stats",
		mcp.WithDescription("Count the records of the loaded dataset by kind and component type."),
		sessionArg,
	), eps.stats, func(req mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		id := sessionOf(req.GetArguments())
		return &kit.MCPDecodeResult{Request: &sessionReq{SessionID: id}, EnrichCtx: enrich(id)}, nil
	}})

	tools = append(tools, mcpTool{mcp.NewTool("list_datasets",
		mcp.WithDescription("List the library datasets that load_dataset and check_compliance accept."),
	), eps.listDatasets, noArgs})

	tools = append(tools, mcpTool{mcp.NewTool("list_jurisdictions",
		mcp.WithDescription("List the known jurisdictions with their building code edition and authority."),
	), eps.listJurisdictions, noArgs})

	tools = append(tools, mcpTool{mcp.NewTool("component_template",
		mcp.WithDescription("Expected properties and units for an IFC entity type (IfcWall, IfcBeam, IfcColumn, IfcSlab); all templates when type is empty."),
		mcp.WithString("type", mcp.Description("Entity or component type, e.g. IfcWall or wall")),
	), eps.template, func(req mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		t, _ := req.GetArguments()["type"].(string)
		return &kit.MCPDecodeResult{Request: &templateReq{Type: t}}, nil
	}})

	return tools, def
}

func noArgs(mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
	return &kit.MCPDecodeResult{Request: nil}, nil
}

// NewMCPServer builds an MCP server exposing the docudata tools.
func NewMCPServer(version string, svc Services) *server.MCPServer {
	srv := server.NewMCPServer("docudata", version, server.WithToolCapabilities(false))
	RegisterMCPTools(srv, svc)
	return srv
}
