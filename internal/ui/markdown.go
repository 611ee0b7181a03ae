package ui

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/glamour"
)

// RenderMarkdown renders decorated markdown to stderr alongside the other
// status output. Used for the first-run welcome.
func RenderMarkdown(md string) {
	renderMarkdown(os.Stderr, md)
}

// RenderMarkdownReport renders to stdout, for commands whose markdown is
// the output itself (the stats report).
func RenderMarkdownReport(md string) {
	renderMarkdown(os.Stdout, md)
}

func renderMarkdown(w io.Writer, md string) {
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		// Fallback: print raw
		fmt.Fprintln(w, md)
		return
	}

	out, err := renderer.Render(md)
	if err != nil {
		fmt.Fprintln(w, md)
		return
	}

	fmt.Fprint(w, out)
}
