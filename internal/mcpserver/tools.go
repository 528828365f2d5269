package mcpserver

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/ariadna/internal/drift"
	"github.com/starford/ariadna/internal/models"
	"github.com/starford/ariadna/internal/session"
	"github.com/starford/ariadna/internal/thread"
)

type linkArgs struct {
	Path        *string `json:"path"`
	LineNum     int     `json:"line_num"`
	LineContent string  `json:"line_content"`
}

// link returns nil when no path was given.
func (a linkArgs) link() *thread.SrcLink {
	if a.Path == nil {
		return nil
	}
	return &thread.SrcLink{Path: *a.Path, LineNum: a.LineNum, LineContent: a.LineContent}
}

type nodeArgs struct {
	linkArgs
	ParentID *int     `json:"parent_id"`
	AnchorID int      `json:"anchor_id"`
	Position string   `json:"position"`
	Caption  string   `json:"caption"`
	Comments []string `json:"comments"`
}

func (a nodeArgs) input() session.NodeInput {
	return session.NodeInput{Caption: a.Caption, SrcLink: a.link(), Comments: a.Comments}
}

type threadResult struct {
	Status session.Status    `json:"status"`
	Thread *thread.Document `json:"thread,omitempty"`
}

func (s *Server) getThread(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.threadResult()
}

func (s *Server) threadResult() (*mcp.CallToolResult, error) {
	res := threadResult{Status: s.sess.Status()}
	if res.Status.Open {
		doc, err := s.sess.Snapshot()
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		res.Thread = doc
	}
	return jsonResult(res)
}

func (s *Server) listThreads(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	threads, err := s.db.ListThreads()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if threads == nil {
		threads = []models.ThreadSummary{}
	}
	return jsonResult(threads)
}

func (s *Server) newThread(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := decode[struct {
		Title       string  `json:"title"`
		RootPath    string  `json:"root_path"`
		Description *string `json:"description"`
		Discard     bool    `json:"discard"`
	}](req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.sess.Guard(args.Discard); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	err = s.sess.NewThread(ctx, session.NewThreadInput{
		Title:       args.Title,
		RootPath:    args.RootPath,
		Description: args.Description,
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return s.threadResult()
}

func (s *Server) loadThread(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := decode[struct {
		Location string `json:"location"`
		Discard  bool   `json:"discard"`
	}](req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if args.Location == "" {
		return mcp.NewToolResultError("location is required"), nil
	}
	if err := s.sess.Guard(args.Discard); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.sess.Load(ctx, args.Location); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return s.threadResult()
}

func (s *Server) saveThread(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	location := req.GetString("location", "")
	saved, err := s.sess.Save(ctx, location)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]string{"location": saved})
}

func (s *Server) moveThreadFile(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	from, err := req.RequireString("from")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	to, err := req.RequireString("to")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	moved, err := s.sess.MoveFile(ctx, from, to)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]string{"location": moved})
}

func (s *Server) deleteThreadFile(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	location, err := req.RequireString("location")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.sess.DeleteFile(ctx, location); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText("deleted " + location), nil
}

func (s *Server) addNode(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := decode[nodeArgs](req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	id, err := s.sess.AddNode(args.ParentID, args.input())
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]int{"id": id})
}

func (s *Server) insertNode(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := decode[nodeArgs](req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	id, err := s.sess.InsertNode(args.AnchorID, args.Position != "before", args.input())
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]int{"id": id})
}

func (s *Server) moveNode(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := decode[struct {
		NodeID   int    `json:"node_id"`
		ParentID *int   `json:"parent_id"`
		AnchorID *int   `json:"anchor_id"`
		Position string `json:"position"`
	}](req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if args.AnchorID != nil {
		err = s.sess.MoveNodeRelative(args.NodeID, *args.AnchorID, args.Position != "before")
	} else {
		err = s.sess.MoveNode(args.NodeID, args.ParentID)
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText("moved"), nil
}

func (s *Server) deleteNode(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireInt("node_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.sess.DeleteNode(id); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText("deleted"), nil
}

func (s *Server) updateNode(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := decode[struct {
		linkArgs
		NodeID       int     `json:"node_id"`
		Caption      *string `json:"caption"`
		ClearSrcLink bool    `json:"clear_src_link"`
	}](req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	err = s.sess.UpdateNode(args.NodeID, session.NodePatch{
		Caption:      args.Caption,
		SrcLink:      args.link(),
		ClearSrcLink: args.ClearSrcLink,
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText("updated"), nil
}

func (s *Server) addComment(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireInt("node_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	text, err := req.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	idx, err := s.sess.AddComment(id, text)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]int{"index": idx})
}

func (s *Server) toggleMark(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireInt("node_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	on, err := s.sess.ToggleMark(id, thread.VisualMark{Char: req.GetString("char", ""), Name: name})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]bool{"on": on})
}

func (s *Server) searchNodes(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.db.Search(query, req.GetInt("limit", 20))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if results == nil {
		results = []models.NodeRef{}
	}
	return jsonResult(results)
}

func (s *Server) locateNode(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireInt("node_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	loc, err := s.sess.Locate(id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(loc)
}

func (s *Server) checkDrift(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	reports, err := s.sess.Drift()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	drifted := drift.Drifted(reports)
	if drifted == nil {
		drifted = []drift.Report{}
	}
	return jsonResult(map[string]any{"checked": len(reports), "drifted": drifted})
}
