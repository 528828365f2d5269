//go:build !sqlite_fts5

package index

import "testing"

func TestFallbackSearchTreatsWildcardsLiterally(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertThread(ThreadRow{Path: "w.json", Checksum: "1"}, []NodeRow{
		{NodeID: 1, Caption: "100% hit rate"},
		{NodeID: 2, Caption: "cold_start path"},
		{NodeID: 3, Caption: "plain node"},
	})

	for query, want := range map[string]int{"%": 1, "_": 2, "100%": 1} {
		results, err := db.Search(query, 10)
		if err != nil {
			t.Fatalf("Search(%q): %v", query, err)
		}
		if len(results) != 1 || results[0].NodeID != want {
			t.Errorf("Search(%q) = %+v, want only node %d", query, results, want)
		}
	}
}

func TestFallbackSnippet(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertThread(ThreadRow{Path: "s.json", Checksum: "1"}, []NodeRow{
		{NodeID: 1, Caption: "entry", Comments: "the hot loop lives here"},
	})
	results, err := db.Search("hot", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].Snippet != "the hot loop lives here" {
		t.Errorf("results = %+v", results)
	}
}
