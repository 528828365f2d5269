package mcpserver

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/ariadna/internal/session"
	"github.com/starford/ariadna/internal/storage"
	"github.com/starford/ariadna/internal/testutil"
)

func testServer(t *testing.T) (*Server, storage.Provider) {
	t.Helper()
	_, store := testutil.TestWorkspace(t)
	db := testutil.TestDB(t)
	sess := session.New(store, db, session.WithIndex(db))
	return New(sess, db, "test"), store
}

func callTool(t *testing.T, srv *Server, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	// mcp-go has no in-process call helper, so handlers are invoked directly.
	handlers := map[string]func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error){
		"get_thread":          srv.getThread,
		"list_threads":        srv.listThreads,
		"new_thread":          srv.newThread,
		"load_thread":         srv.loadThread,
		"save_thread":         srv.saveThread,
		"move_thread_file":    srv.moveThreadFile,
		"delete_thread_file":  srv.deleteThreadFile,
		"add_node":            srv.addNode,
		"insert_node":         srv.insertNode,
		"move_node":           srv.moveNode,
		"delete_node":         srv.deleteNode,
		"update_node":         srv.updateNode,
		"add_comment":         srv.addComment,
		"toggle_mark":         srv.toggleMark,
		"search_nodes":        srv.searchNodes,
		"locate_node":         srv.locateNode,
		"check_drift":         srv.checkDrift,
		"get_thread_contract": srv.getThreadContract,
	}
	h, ok := handlers[name]
	if !ok {
		t.Fatalf("unknown tool: %s", name)
	}
	result, err := h(ctx, req)
	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func mustOK(t *testing.T, r *mcp.CallToolResult) string {
	t.Helper()
	if r.IsError {
		t.Fatalf("unexpected tool error: %s", resultText(r))
	}
	return resultText(r)
}

func nodeID(t *testing.T, r *mcp.CallToolResult) int {
	t.Helper()
	var out struct {
		ID int `json:"id"`
	}
	if err := json.Unmarshal([]byte(mustOK(t, r)), &out); err != nil {
		t.Fatalf("decode id: %v", err)
	}
	return out.ID
}

func TestNewThreadAndSave(t *testing.T) {
	srv, store := testServer(t)

	mustOK(t, callTool(t, srv, "new_thread", map[string]any{"title": "walk", "root_path": "/src"}))
	id := nodeID(t, callTool(t, srv, "add_node", map[string]any{
		"caption":      "entry",
		"path":         "main.go",
		"line_num":     float64(3),
		"line_content": "func main() {",
		"comments":     []any{"starts here"},
	}))
	if id != 1 {
		t.Errorf("first id = %d, want 1", id)
	}

	r := callTool(t, srv, "save_thread", map[string]any{})
	if !r.IsError {
		t.Error("expected error saving a thread without location")
	}

	text := mustOK(t, callTool(t, srv, "save_thread", map[string]any{"location": "walk"}))
	if !strings.Contains(text, "walk.json") {
		t.Errorf("save result = %q", text)
	}
	data, err := store.Read("walk.json")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"line_num": 3`) {
		t.Errorf("saved document missing link:\n%s", data)
	}

	list := mustOK(t, callTool(t, srv, "list_threads", map[string]any{}))
	if !strings.Contains(list, "walk.json") {
		t.Errorf("list_threads = %q", list)
	}
}

func TestLoadThreadGuardsUnsavedChanges(t *testing.T) {
	srv, store := testServer(t)
	testutil.WriteThread(t, store, "sample.json", testutil.SampleThread("/src"))

	mustOK(t, callTool(t, srv, "load_thread", map[string]any{"location": "sample.json"}))
	mustOK(t, callTool(t, srv, "add_comment", map[string]any{"node_id": float64(3), "text": "done"}))

	r := callTool(t, srv, "load_thread", map[string]any{"location": "sample.json"})
	if !r.IsError {
		t.Fatal("expected unsaved changes error")
	}
	mustOK(t, callTool(t, srv, "load_thread", map[string]any{"location": "sample.json", "discard": true}))

	text := mustOK(t, callTool(t, srv, "get_thread", map[string]any{}))
	if !strings.Contains(text, `"dirty": false`) || !strings.Contains(text, "sample walk") {
		t.Errorf("get_thread = %s", text)
	}
}

func TestLoadThreadMissing(t *testing.T) {
	srv, _ := testServer(t)
	if r := callTool(t, srv, "load_thread", map[string]any{"location": "nope.json"}); !r.IsError {
		t.Error("expected error for missing thread")
	}
	if r := callTool(t, srv, "load_thread", map[string]any{}); !r.IsError {
		t.Error("expected error without location")
	}
}

func TestStructureTools(t *testing.T) {
	srv, store := testServer(t)
	testutil.WriteThread(t, store, "sample.json", testutil.SampleThread("/src"))
	mustOK(t, callTool(t, srv, "load_thread", map[string]any{"location": "sample.json"}))

	id := nodeID(t, callTool(t, srv, "insert_node", map[string]any{
		"anchor_id": float64(1), "position": "before", "caption": "setup",
	}))
	if id != 4 {
		t.Errorf("inserted id = %d, want 4", id)
	}

	// Moving a node under its own child is rejected.
	if r := callTool(t, srv, "move_node", map[string]any{"node_id": float64(1), "parent_id": float64(2)}); !r.IsError {
		t.Error("expected cycle rejection")
	}
	mustOK(t, callTool(t, srv, "move_node", map[string]any{"node_id": float64(3), "parent_id": float64(1)}))
	mustOK(t, callTool(t, srv, "move_node", map[string]any{
		"node_id": float64(2), "anchor_id": float64(4), "position": "after",
	}))

	mustOK(t, callTool(t, srv, "update_node", map[string]any{"node_id": float64(4), "caption": "prepare"}))
	mustOK(t, callTool(t, srv, "delete_node", map[string]any{"node_id": float64(1)}))
	if r := callTool(t, srv, "delete_node", map[string]any{"node_id": float64(3)}); !r.IsError {
		t.Error("expected not found for node deleted with its parent")
	}

	text := mustOK(t, callTool(t, srv, "get_thread", map[string]any{}))
	var got struct {
		Thread struct {
			Childs []struct {
				ID      int    `json:"id"`
				Caption string `json:"caption"`
			} `json:"childs"`
		} `json:"thread"`
	}
	if err := json.Unmarshal([]byte(text), &got); err != nil {
		t.Fatal(err)
	}
	if len(got.Thread.Childs) != 2 || got.Thread.Childs[0].Caption != "prepare" || got.Thread.Childs[1].ID != 2 {
		t.Errorf("top level = %+v", got.Thread.Childs)
	}
}

func TestToggleMarkAndLocate(t *testing.T) {
	srv, store := testServer(t)
	testutil.WriteThread(t, store, "sample.json", testutil.SampleThread("/src"))
	mustOK(t, callTool(t, srv, "load_thread", map[string]any{"location": "sample.json"}))

	if text := mustOK(t, callTool(t, srv, "toggle_mark", map[string]any{"node_id": float64(1), "name": "bug"})); !strings.Contains(text, "true") {
		t.Errorf("toggle on = %s", text)
	}
	if text := mustOK(t, callTool(t, srv, "toggle_mark", map[string]any{"node_id": float64(1), "name": "bug"})); !strings.Contains(text, "false") {
		t.Errorf("toggle off = %s", text)
	}
	if r := callTool(t, srv, "toggle_mark", map[string]any{"node_id": float64(1), "name": "nope"}); !r.IsError {
		t.Error("expected error for unknown mark without char")
	}

	text := mustOK(t, callTool(t, srv, "locate_node", map[string]any{"node_id": float64(1)}))
	if !strings.Contains(text, `"path": "/src/main.go"`) || !strings.Contains(text, `"line": 2`) {
		t.Errorf("locate = %s", text)
	}
	if r := callTool(t, srv, "locate_node", map[string]any{"node_id": float64(2)}); !r.IsError {
		t.Error("expected error for node without link")
	}
}

func TestSearchNodes(t *testing.T) {
	srv, store := testServer(t)
	testutil.WriteThread(t, store, "sample.json", testutil.SampleThread("/src"))
	mustOK(t, callTool(t, srv, "load_thread", map[string]any{"location": "sample.json"}))
	mustOK(t, callTool(t, srv, "save_thread", map[string]any{}))

	text := mustOK(t, callTool(t, srv, "search_nodes", map[string]any{"query": "parse"}))
	if !strings.Contains(text, `"node_id": 2`) {
		t.Errorf("search = %s", text)
	}
	if r := callTool(t, srv, "search_nodes", map[string]any{}); !r.IsError {
		t.Error("expected error without query")
	}
}

func TestCheckDrift(t *testing.T) {
	srv, _ := testServer(t)
	src := t.TempDir()

	mustOK(t, callTool(t, srv, "new_thread", map[string]any{"title": "walk", "root_path": src}))
	mustOK(t, callTool(t, srv, "add_node", map[string]any{
		"caption": "gone", "path": "missing.go", "line_num": float64(1), "line_content": "x",
	}))

	text := mustOK(t, callTool(t, srv, "check_drift", map[string]any{}))
	if !strings.Contains(text, `"checked": 1`) || !strings.Contains(text, "missing") {
		t.Errorf("drift = %s", text)
	}
}

func TestNewNodeNeedsCaption(t *testing.T) {
	srv, _ := testServer(t)
	mustOK(t, callTool(t, srv, "new_thread", map[string]any{"title": "walk"}))
	mustOK(t, callTool(t, srv, "add_node", map[string]any{"caption": "entry"}))

	for _, c := range []struct {
		tool string
		args map[string]any
	}{
		{"add_node", map[string]any{"comments": []any{"untitled"}}},
		{"insert_node", map[string]any{"anchor_id": float64(1), "caption": ""}},
	} {
		r := callTool(t, srv, c.tool, c.args)
		if !r.IsError {
			t.Errorf("%s without caption succeeded", c.tool)
		}
	}
	if srv.sess.Status().NodeCount != 1 {
		t.Errorf("node count = %d, want 1", srv.sess.Status().NodeCount)
	}
}

func TestNoThreadErrors(t *testing.T) {
	srv, _ := testServer(t)

	text := mustOK(t, callTool(t, srv, "get_thread", map[string]any{}))
	if !strings.Contains(text, `"open": false`) {
		t.Errorf("get_thread = %s", text)
	}
	for _, name := range []string{"add_node", "check_drift", "save_thread"} {
		if r := callTool(t, srv, name, map[string]any{}); !r.IsError {
			t.Errorf("%s: expected error without open thread", name)
		}
	}
}

func TestGetThreadContract(t *testing.T) {
	srv, _ := testServer(t)
	text := mustOK(t, callTool(t, srv, "get_thread_contract", map[string]any{}))
	if !strings.Contains(text, "Thread Format Contract") {
		t.Error("contract text missing title")
	}
}

func TestThreadFileTools(t *testing.T) {
	srv, store := testServer(t)
	mustOK(t, callTool(t, srv, "new_thread", map[string]any{"title": "walk"}))
	mustOK(t, callTool(t, srv, "save_thread", map[string]any{"location": "walk"}))

	out := mustOK(t, callTool(t, srv, "move_thread_file", map[string]any{"from": "walk.json", "to": "old/walk"}))
	if !strings.Contains(out, `"location": "old/walk.json"`) {
		t.Errorf("move result = %s", out)
	}
	if _, err := store.Read("old/walk.json"); err != nil {
		t.Errorf("moved file: %v", err)
	}
	if r := callTool(t, srv, "move_thread_file", map[string]any{"from": "old/walk.json"}); !r.IsError {
		t.Error("expected error without to")
	}

	mustOK(t, callTool(t, srv, "delete_thread_file", map[string]any{"location": "old/walk.json"}))
	if _, err := store.Read("old/walk.json"); err == nil {
		t.Error("file still on disk")
	}
	if r := callTool(t, srv, "delete_thread_file", map[string]any{"location": "old/walk.json"}); !r.IsError {
		t.Error("expected error deleting a missing file")
	}
	out = mustOK(t, callTool(t, srv, "list_threads", nil))
	if strings.Contains(out, "walk") {
		t.Errorf("list after delete = %s", out)
	}
}
