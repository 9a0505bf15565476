// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes cheatsheet tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/cheatsheet/internal/apperr"
	"github.com/starford/cheatsheet/internal/orchestrator"
	"github.com/starford/cheatsheet/internal/topicservice"
)

const topicFormatURI = "cheatsheet://topic-format"

// Server wraps the MCP server with cheatsheet tools.
type Server struct {
	mcp *server.MCPServer
	svc *topicservice.Service
}

// New creates a new MCP server with all cheatsheet tools registered.
func New(svc *topicservice.Service) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"Cheatsheet",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_courses",
		mcp.WithDescription("List the configured courses with their cached version, topic count and number of updated topics."),
	), s.listCourses)

	s.mcp.AddTool(mcp.NewTool("list_topics",
		mcp.WithDescription("Sync a course against the published version and list its topics. "+
			"Without version_name the version is read from the content repository's gradle file."),
		mcp.WithString("course", mcp.Required(), mcp.Description("Course name (e.g. kotlin, coroutine)")),
		mcp.WithString("version_name", mcp.Description("Published version, e.g. 1.2.5")),
		mcp.WithString("version_suffix", mcp.Description("Changed topic IDs, e.g. -ids:[4,7]")),
	), s.listTopics)

	s.mcp.AddTool(mcp.NewTool("read_points",
		mcp.WithDescription("Read the parsed points of one topic. Reading clears the topic's update flag. "+
			"See get_topic_format for how points are extracted."),
		mcp.WithString("course", mcp.Required(), mcp.Description("Course name")),
		mcp.WithNumber("id", mcp.Required(), mcp.Description("Topic ID")),
	), s.readPoints)

	s.mcp.AddTool(mcp.NewTool("get_app_info",
		mcp.WithDescription("Read versionCode, versionName and versionNameSuffix from the content repository."),
	), s.getAppInfo)

	s.mcp.AddTool(mcp.NewTool("search_topics",
		mcp.WithDescription("Search cached topic titles across all courses."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
		mcp.WithNumber("limit", mcp.Description("Max results (default 20)")),
	), s.searchTopics)

	s.mcp.AddTool(mcp.NewTool("get_topic_format",
		mcp.WithDescription("Returns how topic files are named and how points are laid out in them."),
	), s.getTopicFormat)

	s.mcp.AddResource(
		mcp.NewResource(topicFormatURI, "Topic Format",
			mcp.WithResourceDescription("Topic file naming, point layout and version conventions."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readTopicFormatResource,
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

func (s *Server) listCourses(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	courses, err := s.svc.Courses(ctx)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(courses), nil
}

func (s *Server) listTopics(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	course, err := req.RequireString("course")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	in := orchestrator.Input{
		VersionName:   strings.TrimSpace(req.GetString("version_name", "")),
		VersionSuffix: strings.TrimSpace(req.GetString("version_suffix", "")),
	}
	res, err := s.svc.Topics(ctx, course, in)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(res), nil
}

func (s *Server) readPoints(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	course, err := req.RequireString("course")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	id, err := req.RequireInt("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	tp, err := s.svc.Points(ctx, course, id)
	if err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText(renderPoints(tp)), nil
}

func (s *Server) getAppInfo(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	info, err := s.svc.AppInfo(ctx)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(info), nil
}

func (s *Server) searchTopics(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.svc.Search(ctx, query, req.GetInt("limit", 20))
	if err != nil {
		return toolError(err), nil
	}
	if len(results) == 0 {
		return mcp.NewToolResultText("no topics found"), nil
	}
	return jsonResult(results), nil
}

func (s *Server) getTopicFormat(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(TopicFormatContract), nil
}

func (s *Server) readTopicFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      topicFormatURI,
			MIMEType: "text/markdown",
			Text:     TopicFormatContract,
		},
	}, nil
}

// renderPoints formats a topic as Markdown: one numbered heading per point,
// sub points as a list and snippets as Kotlin code fences.
func renderPoints(tp *topicservice.TopicPoints) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", tp.Topic.Title)
	for _, p := range tp.Points {
		fmt.Fprintf(&b, "%d. %s\n", p.Number, p.Heading)
		for _, sp := range p.SubPoints {
			fmt.Fprintf(&b, "   - %s\n", sp)
		}
		for _, sn := range p.Snippets {
			fmt.Fprintf(&b, "\n```kotlin\n%s\n```\n", sn)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func jsonResult(v any) *mcp.CallToolResult {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultText(string(out))
}

// toolError reports a failure's user-facing message and code to the model.
func toolError(err error) *mcp.CallToolResult {
	var f *apperr.Failure
	switch {
	case errors.As(err, &f):
		return mcp.NewToolResultError(fmt.Sprintf("%s (code %d)", f.Message, f.Code))
	case errors.Is(err, apperr.ErrNotFound):
		return mcp.NewToolResultError("not found")
	default:
		return mcp.NewToolResultError(err.Error())
	}
}
