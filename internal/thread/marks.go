package thread

var catalog = []VisualMark{
	{Char: "⚠️", Name: "attention"},
	{Char: "❓", Name: "question"},
	{Char: "🐞", Name: "bug"},
	{Char: "💡", Name: "idea"},
	{Char: "✅", Name: "done"},
}

// Catalog returns the built-in marks. The slice is a copy.
func Catalog() []VisualMark {
	out := make([]VisualMark, len(catalog))
	copy(out, catalog)
	return out
}

// LookupMark returns the built-in mark with the given name.
func LookupMark(name string) (VisualMark, bool) {
	for _, m := range catalog {
		if m.Name == name {
			return m, true
		}
	}
	return VisualMark{}, false
}
