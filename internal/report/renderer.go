package report

// Renderer turns a Markdown document into the bytes written to disk.
type Renderer interface {
	Render(markdown string) ([]byte, error)

	// Extension is the file extension of rendered output, including the dot.
	Extension() string
}

// MarkdownRenderer stores Markdown as is.
type MarkdownRenderer struct{}

// Render returns markdown unchanged.
func (MarkdownRenderer) Render(markdown string) ([]byte, error) {
	return []byte(markdown), nil
}

// Extension returns ".md".
func (MarkdownRenderer) Extension() string { return ".md" }
