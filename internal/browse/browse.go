// Package browse serves a stored graph as MCP tools.
package browse

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/agentic-research/ranger/internal/graph"
	"github.com/agentic-research/ranger/internal/schema"
	"github.com/agentic-research/ranger/internal/store"
)

const defaultLimit = 50

// Graph is the read side of a stored graph. *store.Reader implements it.
type Graph interface {
	Node(ctx context.Context, id string) (*graph.Node, error)
	Out(ctx context.Context, id string) ([]graph.Edge, error)
	In(ctx context.Context, id string) ([]graph.Edge, error)
	Labels(ctx context.Context) ([]store.LabelCount, error)
	NodesByLabel(ctx context.Context, label string, limit int) ([]*graph.Node, error)
	Search(ctx context.Context, text string, limit int) ([]*graph.Node, error)
	Classes(ctx context.Context) ([]*schema.Class, error)
}

var _ Graph = (*store.Reader)(nil)

// NewServer returns an MCP server exposing g.
func NewServer(g Graph, version string) *server.MCPServer {
	s := server.NewMCPServer("ranger", version, server.WithToolCapabilities(true))
	Register(s, g)
	return s
}

// Register adds the browse tools to s.
func Register(s *server.MCPServer, g Graph) {
	s.AddTool(labelsTool(), labelsHandler(g))
	s.AddTool(getNodeTool(), getNodeHandler(g))
	s.AddTool(neighborsTool(), neighborsHandler(g))
	s.AddTool(nodesByLabelTool(), nodesByLabelHandler(g))
	s.AddTool(searchTool(), searchHandler(g))
	s.AddTool(classesTool(), classesHandler(g))
}

// nodeView is the JSON shape of a node in tool results.
type nodeView struct {
	ID         string         `json:"id"`
	Label      string         `json:"label"`
	Attributes map[string]any `json:"attributes"`
}

type edgeView struct {
	Source       string `json:"source"`
	Target       string `json:"target"`
	Relationship string `json:"relationship"`
}

type classView struct {
	Name          string            `json:"name"`
	Base          string            `json:"base,omitempty"`
	Properties    []string          `json:"properties"`
	Relationships map[string]string `json:"relationships,omitempty"`
}

func viewNodes(nodes []*graph.Node) []nodeView {
	out := make([]nodeView, len(nodes))
	for i, n := range nodes {
		out[i] = nodeView{ID: n.ID, Label: n.Label, Attributes: n.Attributes}
	}
	return out
}

func viewEdges(edges []graph.Edge) []edgeView {
	out := make([]edgeView, len(edges))
	for i, e := range edges {
		out[i] = edgeView{Source: e.Source, Target: e.Target, Relationship: string(e.Relationship)}
	}
	return out
}

// --- labels ---

func labelsTool() mcp.Tool {
	return mcp.NewTool("labels",
		mcp.WithDescription("List node labels with their node counts."),
	)
}

func labelsHandler(g Graph) server.ToolHandlerFunc {
	return func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		labels, err := g.Labels(ctx)
		if err != nil {
			return toolError(err)
		}
		return jsonResult(labels)
	}
}

// --- get_node ---

func getNodeTool() mcp.Tool {
	return mcp.NewTool("get_node",
		mcp.WithDescription("Fetch one node with its attributes."),
		mcp.WithString("id",
			mcp.Description("Node id, e.g. scan_/data/A or folder_/data"),
			mcp.Required(),
		),
	)
}

func getNodeHandler(g Graph) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id := req.GetString("id", "")
		if id == "" {
			return toolError(fmt.Errorf("id is required"))
		}
		n, err := g.Node(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("no node %q", id)), nil
		}
		if err != nil {
			return toolError(err)
		}
		return jsonResult(nodeView{ID: n.ID, Label: n.Label, Attributes: n.Attributes})
	}
}

// --- neighbors ---

func neighborsTool() mcp.Tool {
	return mcp.NewTool("neighbors",
		mcp.WithDescription("List the edges of a node."),
		mcp.WithString("id",
			mcp.Description("Node id"),
			mcp.Required(),
		),
		mcp.WithString("direction",
			mcp.Description("out, in or both (default both)"),
			mcp.Enum("out", "in", "both"),
		),
	)
}

func neighborsHandler(g Graph) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id := req.GetString("id", "")
		if id == "" {
			return toolError(fmt.Errorf("id is required"))
		}
		dir := req.GetString("direction", "both")
		if dir != "out" && dir != "in" && dir != "both" {
			return toolError(fmt.Errorf("invalid direction %q", dir))
		}

		var edges []graph.Edge
		if dir == "out" || dir == "both" {
			out, err := g.Out(ctx, id)
			if err != nil {
				return toolError(err)
			}
			edges = append(edges, out...)
		}
		if dir == "in" || dir == "both" {
			in, err := g.In(ctx, id)
			if err != nil {
				return toolError(err)
			}
			edges = append(edges, in...)
		}
		return jsonResult(viewEdges(edges))
	}
}

// --- nodes_by_label ---

func nodesByLabelTool() mcp.Tool {
	return mcp.NewTool("nodes_by_label",
		mcp.WithDescription("List nodes carrying a label, ordered by id."),
		mcp.WithString("label",
			mcp.Description("Label, e.g. Scan, Folder or a metadata section such as Acquisition"),
			mcp.Required(),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of nodes (default 50)"),
		),
	)
}

func nodesByLabelHandler(g Graph) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		label := req.GetString("label", "")
		if label == "" {
			return toolError(fmt.Errorf("label is required"))
		}
		nodes, err := g.NodesByLabel(ctx, label, req.GetInt("limit", defaultLimit))
		if err != nil {
			return toolError(err)
		}
		return jsonResult(viewNodes(nodes))
	}
}

// --- search ---

func searchTool() mcp.Tool {
	return mcp.NewTool("search",
		mcp.WithDescription("Find nodes whose id or attribute values contain a text."),
		mcp.WithString("text",
			mcp.Description("Text to look for"),
			mcp.Required(),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of nodes (default 50)"),
		),
	)
}

func searchHandler(g Graph) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		text := req.GetString("text", "")
		if text == "" {
			return toolError(fmt.Errorf("text is required"))
		}
		nodes, err := g.Search(ctx, text, req.GetInt("limit", defaultLimit))
		if err != nil {
			return toolError(err)
		}
		if len(nodes) == 0 {
			return mcp.NewToolResultText("No results found."), nil
		}
		return jsonResult(viewNodes(nodes))
	}
}

// --- classes ---

func classesTool() mcp.Tool {
	return mcp.NewTool("classes",
		mcp.WithDescription("List node classes with their properties and allowed relationships."),
	)
}

func classesHandler(g Graph) server.ToolHandlerFunc {
	return func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		classes, err := g.Classes(ctx)
		if err != nil {
			return toolError(err)
		}
		out := make([]classView, len(classes))
		for i, c := range classes {
			v := classView{Name: c.Name, Base: c.Base, Properties: c.Properties}
			if v.Properties == nil {
				v.Properties = []string{}
			}
			if len(c.Relationships) > 0 {
				v.Relationships = make(map[string]string, len(c.Relationships))
				for rel, target := range c.Relationships {
					v.Relationships[string(rel)] = target
				}
			}
			out[i] = v
		}
		return jsonResult(out)
	}
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return toolError(err)
	}
	return mcp.NewToolResultText(string(data)), nil
}

func toolError(err error) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultError(err.Error()), nil
}
