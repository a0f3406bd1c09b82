// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes automaton actions for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/automaton/internal/action"
	"github.com/starford/automaton/internal/actionservice"
	"github.com/starford/automaton/internal/apperr"
)

const (
	schemesURI = "automaton://schemes"
	formatURI  = "automaton://action-format"
)

// Server wraps the MCP server with action tools.
type Server struct {
	mcp *server.MCPServer
	svc *actionservice.Service
}

// New creates a new MCP server with all action tools registered.
func New(svc *actionservice.Service, version string) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"Automaton",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_actions",
		mcp.WithDescription("List all actions with their URL and whether they can be followed."),
	), s.listActions)

	s.mcp.AddTool(mcp.NewTool("add_action",
		mcp.WithDescription("Add a new action. Keys must be unique and non-empty. "+
			"Read the automaton://action-format resource for URL rules."),
		mcp.WithString("key", mcp.Required(), mcp.Description("Unique action key (e.g. phone)")),
		mcp.WithString("url", mcp.Description("URL to open (e.g. tel:12345); may be empty")),
	), s.addAction)

	s.mcp.AddTool(mcp.NewTool("set_action_url",
		mcp.WithDescription("Change the URL of an existing action."),
		mcp.WithString("key", mcp.Required(), mcp.Description("Action key")),
		mcp.WithString("url", mcp.Required(), mcp.Description("New URL")),
	), s.setActionURL)

	s.mcp.AddTool(mcp.NewTool("delete_action",
		mcp.WithDescription("Delete an action by key."),
		mcp.WithString("key", mcp.Required(), mcp.Description("Action key")),
	), s.deleteAction)

	s.mcp.AddTool(mcp.NewTool("check_action",
		mcp.WithDescription("Report whether an action's URL can be followed without opening it."),
		mcp.WithString("key", mcp.Required(), mcp.Description("Action key")),
	), s.checkAction)

	s.mcp.AddTool(mcp.NewTool("follow_action",
		mcp.WithDescription("Open an action's URL through the operating system."),
		mcp.WithString("key", mcp.Required(), mcp.Description("Action key")),
	), s.followAction)

	s.mcp.AddResource(
		mcp.NewResource(schemesURI, "URL Scheme Whitelist",
			mcp.WithResourceDescription("Schemes an action URL may use to be followable."),
			mcp.WithMIMEType("text/plain"),
		),
		s.readSchemesResource,
	)

	s.mcp.AddResource(
		mcp.NewResource(formatURI, "Action Format",
			mcp.WithResourceDescription("Rules for action keys, URLs and import documents."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readFormatResource,
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

func toolError(key string, err error) *mcp.CallToolResult {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", key))
	case errors.Is(err, apperr.ErrAlreadyExists):
		return mcp.NewToolResultError(fmt.Sprintf("action already exists: %s", key))
	case errors.Is(err, action.ErrInvalidURL), errors.Is(err, action.ErrUnfollowable):
		return mcp.NewToolResultError(action.Message(err))
	default:
		return mcp.NewToolResultError(err.Error())
	}
}

func jsonResult(v any) *mcp.CallToolResult {
	out, _ := json.MarshalIndent(v, "", "  ")
	return mcp.NewToolResultText(string(out))
}

func (s *Server) listActions(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.svc.ListActions(ctx)), nil
}

func (s *Server) addAction(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	key, err := req.RequireString("key")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	d, err := s.svc.CreateAction(ctx, key, req.GetString("url", ""))
	if err != nil {
		return toolError(key, err), nil
	}
	return jsonResult(d), nil
}

func (s *Server) setActionURL(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	key, err := req.RequireString("key")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	rawURL, err := req.RequireString("url")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	d, err := s.svc.UpdateAction(ctx, key, rawURL)
	if err != nil {
		return toolError(key, err), nil
	}
	return jsonResult(d), nil
}

func (s *Server) deleteAction(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	key, err := req.RequireString("key")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.svc.DeleteAction(ctx, key); err != nil {
		return toolError(key, err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("deleted: %s", key)), nil
}

func (s *Server) checkAction(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	key, err := req.RequireString("key")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	u, err := s.svc.CheckAction(ctx, key)
	if err != nil {
		return toolError(key, err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("followable: %s", u)), nil
}

func (s *Server) followAction(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	key, err := req.RequireString("key")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	u, err := s.svc.FollowAction(ctx, key)
	if err != nil {
		return toolError(key, err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("opened: %s", u)), nil
}

func (s *Server) readSchemesResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      schemesURI,
			MIMEType: "text/plain",
			Text:     strings.Join(s.svc.Schemes().List(), "\n"),
		},
	}, nil
}

func (s *Server) readFormatResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      formatURI,
			MIMEType: "text/markdown",
			Text:     ActionFormatContract,
		},
	}, nil
}
