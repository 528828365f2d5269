// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes the Ariadna editing session for LLM integration via stdio.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/ariadna/internal/index"
	"github.com/starford/ariadna/internal/session"
)

// ContractURI is the resource holding the thread format contract.
const ContractURI = "ariadna://thread-format"

// Server wraps the MCP server with Ariadna tools.
type Server struct {
	mcp  *server.MCPServer
	sess *session.Session
	db   index.ThreadIndex
}

// New creates a new MCP server with all Ariadna tools registered.
func New(sess *session.Session, db index.ThreadIndex, version string) *Server {
	s := &Server{sess: sess, db: db}

	s.mcp = server.NewMCPServer(
		"Ariadna",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	nodeID := mcp.WithNumber("node_id", mcp.Required(), mcp.Description("Id of the node"))
	discard := mcp.WithBoolean("discard", mcp.Description("Drop unsaved changes of the open thread"))
	position := mcp.WithString("position", mcp.Enum("before", "after"), mcp.Description("Placement next to the anchor (default after)"))
	linkPath := mcp.WithString("path", mcp.Description("Source file, relative to the thread root_path unless absolute"))
	linkLine := mcp.WithNumber("line_num", mcp.Description("1-based line number, 0 for none"))
	linkText := mcp.WithString("line_content", mcp.Description("Text of the line, kept as a snapshot"))
	caption := mcp.WithString("caption", mcp.Description("Short node title"))
	newCaption := mcp.WithString("caption", mcp.Required(), mcp.Description("Short node title, not empty"))
	comments := mcp.WithArray("comments", mcp.Description("Comments, at most 255 characters each"), mcp.Items(map[string]any{"type": "string"}))

	s.mcp.AddTool(mcp.NewTool("get_thread",
		mcp.WithDescription("Return the open thread as a JSON document together with the session status."),
	), s.getThread)

	s.mcp.AddTool(mcp.NewTool("list_threads",
		mcp.WithDescription("List thread documents in the workspace."),
	), s.listThreads)

	s.mcp.AddTool(mcp.NewTool("new_thread",
		mcp.WithDescription("Start a new, empty thread. It has no file until save_thread is called with a location."),
		mcp.WithString("title", mcp.Required(), mcp.Description("Thread title")),
		mcp.WithString("root_path", mcp.Description("Directory that relative link paths resolve against")),
		mcp.WithString("description", mcp.Description("Optional description, at most 255 characters")),
		discard,
	), s.newThread)

	s.mcp.AddTool(mcp.NewTool("load_thread",
		mcp.WithDescription("Open a thread document from the workspace."),
		mcp.WithString("location", mcp.Required(), mcp.Description("Workspace path of the document (e.g. cache/lru.json)")),
		discard,
	), s.loadThread)

	s.mcp.AddTool(mcp.NewTool("save_thread",
		mcp.WithDescription("Write the open thread. Without location it goes where it was loaded from or last saved."),
		mcp.WithString("location", mcp.Description("Workspace path to save to")),
	), s.saveThread)

	s.mcp.AddTool(mcp.NewTool("move_thread_file",
		mcp.WithDescription("Rename a thread document in the workspace. The target must not exist. An open thread follows its file."),
		mcp.WithString("from", mcp.Required(), mcp.Description("Current workspace path")),
		mcp.WithString("to", mcp.Required(), mcp.Description("New workspace path")),
	), s.moveThreadFile)

	s.mcp.AddTool(mcp.NewTool("delete_thread_file",
		mcp.WithDescription("Delete a thread document from the workspace. If it is the open thread, the thread stays open with unsaved changes."),
		mcp.WithString("location", mcp.Required(), mcp.Description("Workspace path of the document")),
	), s.deleteThreadFile)

	s.mcp.AddTool(mcp.NewTool("add_node",
		mcp.WithDescription("Append a node under parent_id, or at the top level when parent_id is omitted. Returns the new id."),
		mcp.WithNumber("parent_id", mcp.Description("Id of the parent node")),
		newCaption, linkPath, linkLine, linkText, comments,
	), s.addNode)

	s.mcp.AddTool(mcp.NewTool("insert_node",
		mcp.WithDescription("Insert a node before or after an existing node, as its sibling. Returns the new id."),
		mcp.WithNumber("anchor_id", mcp.Required(), mcp.Description("Id of the sibling to insert next to")),
		position, newCaption, linkPath, linkLine, linkText, comments,
	), s.insertNode)

	s.mcp.AddTool(mcp.NewTool("move_node",
		mcp.WithDescription("Move a node with its subtree. With anchor_id it is placed next to the anchor; "+
			"otherwise it is appended under parent_id, or at the top level when parent_id is omitted. "+
			"A node cannot be moved into its own subtree."),
		nodeID,
		mcp.WithNumber("parent_id", mcp.Description("New parent id")),
		mcp.WithNumber("anchor_id", mcp.Description("Sibling to move next to")),
		position,
	), s.moveNode)

	s.mcp.AddTool(mcp.NewTool("delete_node",
		mcp.WithDescription("Delete a node together with its whole subtree."),
		nodeID,
	), s.deleteNode)

	s.mcp.AddTool(mcp.NewTool("update_node",
		mcp.WithDescription("Change a node's caption or source link. Omitted fields are kept."),
		nodeID, caption, linkPath, linkLine, linkText,
		mcp.WithBoolean("clear_src_link", mcp.Description("Remove the source link")),
	), s.updateNode)

	s.mcp.AddTool(mcp.NewTool("add_comment",
		mcp.WithDescription("Append a comment to a node."),
		nodeID,
		mcp.WithString("text", mcp.Required(), mcp.Description("Comment, at most 255 characters")),
	), s.addComment)

	s.mcp.AddTool(mcp.NewTool("toggle_mark",
		mcp.WithDescription("Toggle a visual mark on a node. Built-in names: attention, question, bug, idea, done."),
		nodeID,
		mcp.WithString("name", mcp.Required(), mcp.Description("Mark name")),
		mcp.WithString("char", mcp.Description("Glyph for a custom mark, 1-4 characters")),
	), s.toggleMark)

	s.mcp.AddTool(mcp.NewTool("search_nodes",
		mcp.WithDescription("Full-text search through node captions and comments of saved threads."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of hits (default 20)")),
	), s.searchNodes)

	s.mcp.AddTool(mcp.NewTool("locate_node",
		mcp.WithDescription("Resolve a node's source link to an absolute path and a 0-based line."),
		nodeID,
	), s.locateNode)

	s.mcp.AddTool(mcp.NewTool("check_drift",
		mcp.WithDescription("Compare each link's line snapshot with the file on disk and report moved, changed or missing lines."),
	), s.checkDrift)

	s.mcp.AddTool(mcp.NewTool("get_thread_contract",
		mcp.WithDescription("Returns the Ariadna thread format contract. "+
			"Call this before editing thread files or building nodes."),
	), s.getThreadContract)

	// Resource: thread format contract.
	s.mcp.AddResource(
		mcp.NewResource(ContractURI, "Thread Format Contract",
			mcp.WithResourceDescription("Thread document format and editing rules."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readThreadFormatResource,
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

func (s *Server) getThreadContract(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(ThreadFormatContract), nil
}

func (s *Server) readThreadFormatResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      ContractURI,
			MIMEType: "text/markdown",
			Text:     ThreadFormatContract,
		},
	}, nil
}

// decode unmarshals tool arguments into a typed struct.
func decode[T any](req mcp.CallToolRequest) (T, error) {
	var result T
	b, err := json.Marshal(req.GetArguments())
	if err != nil {
		return result, fmt.Errorf("marshal args: %w", err)
	}
	if err := json.Unmarshal(b, &result); err != nil {
		return result, fmt.Errorf("invalid arguments: %w", err)
	}
	return result, nil
}

// jsonResult renders v as indented JSON text.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}
