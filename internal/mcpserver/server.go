// Package mcpserver provides an MCP (Model Context Protocol) server that
// exposes backlink queries and pipeline runs over stdio.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/backlinker/internal/apperr"
	"github.com/starford/backlinker/internal/noteservice"
)

// MentionSyntaxURI is the resource describing the tagged-link contract.
const MentionSyntaxURI = "backlinker://mention-syntax"

// Server wraps the MCP server with backlink tools.
type Server struct {
	mcp      *server.MCPServer
	svc      *noteservice.Service
	contract string
}

// New creates a new MCP server with all tools registered. contract is the
// text served by the mention-syntax resource.
func New(svc *noteservice.Service, version, contract string) *Server {
	s := &Server{svc: svc, contract: contract}

	s.mcp = server.NewMCPServer(
		"Backlinker",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("get_backlinks",
		mcp.WithDescription("List the documents that mention the document with the given permalink, "+
			"with the labels they use."),
		mcp.WithString("permalink", mcp.Required(), mcp.Description("Permalink of the target document (e.g. /dsa/heap/)")),
	), s.getBacklinks)

	s.mcp.AddTool(mcp.NewTool("list_documents",
		mcp.WithDescription("List every document of the latest run with its permalink and title."),
		mcp.WithString("query", mcp.Description("Optional filter on title, permalink or path")),
	), s.listDocuments)

	s.mcp.AddTool(mcp.NewTool("list_conflicts",
		mcp.WithDescription("List permalinks claimed by more than one document."),
	), s.listConflicts)

	s.mcp.AddTool(mcp.NewTool("run_update",
		mcp.WithDescription("Recompute backlinks for the whole corpus and rewrite changed mention blocks. "+
			"Read the contract first via the "+MentionSyntaxURI+" resource."),
		mcp.WithBoolean("dry_run", mcp.Description("Report the documents that would change without writing them")),
	), s.runUpdate)

	s.mcp.AddResource(
		mcp.NewResource(MentionSyntaxURI, "Mention Syntax Contract",
			mcp.WithResourceDescription("Front matter, tagged-link and marker syntax the backlink tool understands."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readMentionSyntax,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) *mcp.CallToolResult {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultText(string(out))
}

func (s *Server) getBacklinks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	p, err := req.RequireString("permalink")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	detail, err := s.svc.Backlinks(ctx, p)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("no document with permalink %s", p)), nil
		}
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(detail.Backlinks) == 0 {
		return mcp.NewToolResultText("no backlinks found"), nil
	}
	var b strings.Builder
	for _, e := range detail.Backlinks {
		fmt.Fprintf(&b, "%s\t%s", e.SourcePermalink, e.DisplayTitle())
		if len(e.Labels) > 0 {
			fmt.Fprintf(&b, "\t%s", strings.Join(e.Labels, ", "))
		}
		b.WriteByte('\n')
	}
	return mcp.NewToolResultText(strings.TrimSuffix(b.String(), "\n")), nil
}

func (s *Server) listDocuments(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query := strings.TrimSpace(req.GetString("query", ""))

	var (
		result any
		err    error
	)
	if query == "" {
		result, err = s.svc.Documents(ctx)
	} else {
		result, err = s.svc.Search(ctx, query, 50)
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(result), nil
}

func (s *Server) listConflicts(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	conflicts, err := s.svc.Conflicts(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(conflicts) == 0 {
		return mcp.NewToolResultText("no conflicts"), nil
	}
	return jsonResult(conflicts), nil
}

func (s *Server) runUpdate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	summary, err := s.svc.Update(ctx, req.GetBool("dry_run", false))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(summary), nil
}

func (s *Server) readMentionSyntax(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      MentionSyntaxURI,
			MIMEType: "text/markdown",
			Text:     s.contract,
		},
	}, nil
}
