package mcpserver

// ThreadFormatContract describes the thread document format that LLM
// consumers should follow when reading or writing thread files.
const ThreadFormatContract = `# Ariadna Thread Format Contract

A thread is an annotated outline of a walk through a source tree. Every
thread document stored in the workspace is a UTF-8 JSON file ending in
` + "`" + `.json` + "`" + `.

## Structure

` + "```" + `json
{
  "title": "lru_cache walk",           // REQUIRED, non-empty
  "root_path": "/usr/lib/python3.14",  // base for relative link paths, default "/"
  "description": null,                 // optional, at most 255 characters
  "childs": [
    {
      "id": 1,                         // REQUIRED integer, unique in the thread
      "parent_id": null,               // id of the containing node, null at top level
      "src_link": {                    // or null
        "path": "functools.py",        // relative to root_path unless absolute
        "line_num": 479,               // 1-based, 0 means no line
        "line_content": "def lru_cache(maxsize=128, typed=False):"
      },
      "caption": "entry point",
      "comments": ["each at most 255 characters"],
      "visual_marks": [{"char": "⚠️", "name": "attention"}],
      "childs": []
    }
  ],
  "vcs_rev": null,                     // revision of root_path when recorded
  "current_node_id": null              // last selected node
}
` + "```" + `

## Rules

1. **Nesting is the truth.** A node belongs to the ` + "`" + `childs` + "`" + ` list it sits in;
   ` + "`" + `parent_id` + "`" + ` mirrors that placement and is rewritten on every move.
2. **Ids** are integers, unique across the whole thread, and never reused.
   Let the tools allocate them.
3. **Comments** and the description are at most 255 characters each.
4. **Visual marks** have a ` + "`" + `char` + "`" + ` of 1-4 characters and a ` + "`" + `name` + "`" + ` of 1-20
   characters. Built-in marks: attention ⚠️, question ❓, bug 🐞, idea 💡, done ✅.
5. **Line snapshots.** ` + "`" + `line_content` + "`" + ` is the text of the line when the link was
   made. ` + "`" + `check_drift` + "`" + ` compares it with the file on disk.
6. **Key spelling.** Files are written in snake_case. camelCase keys
   (` + "`" + `rootPath` + "`" + `, ` + "`" + `srcLink` + "`" + `, ` + "`" + `lineNum` + "`" + `, ...) are accepted when reading.

## Editing through tools

- Open a thread with ` + "`" + `load_thread` + "`" + ` or start one with ` + "`" + `new_thread` + "`" + `.
- Structure changes go through ` + "`" + `add_node` + "`" + `, ` + "`" + `insert_node` + "`" + `, ` + "`" + `move_node` + "`" + ` and
  ` + "`" + `delete_node` + "`" + `. A node cannot be moved into its own subtree.
- Changes stay in memory until ` + "`" + `save_thread` + "`" + `. Opening another thread while
  changes are unsaved fails unless ` + "`" + `discard` + "`" + ` is true.
`
