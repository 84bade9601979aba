package tools

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/yuin/goldmark"
)

type Format string

const (
	FormatMarkdown Format = "md"
	FormatHTML     Format = "html"
)

// ParseFormat accepts "", "md", "markdown" and "html".
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "md", "markdown":
		return FormatMarkdown, nil
	case "html":
		return FormatHTML, nil
	}
	return "", fmt.Errorf("unsupported export format %q (use md or html)", s)
}

// Section is one titled block of the exported plan. Present is false for a
// stage that has not run yet.
type Section struct {
	Title   string
	Body    string
	Present bool
}

// Exporter writes plans into a workspace directory.
type Exporter struct {
	Root string
	Now  func() time.Time
}

func NewExporter(root string) *Exporter {
	absRoot, _ := filepath.Abs(root)
	return &Exporter{Root: absRoot, Now: time.Now}
}

// RenderMarkdown lays the sections out as a single Markdown document.
func RenderMarkdown(title string, sections []Section) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n", title)
	for i, s := range sections {
		fmt.Fprintf(&sb, "## Step %d: %s\n\n", i+1, s.Title)
		if s.Present {
			sb.WriteString(strings.TrimSpace(s.Body))
		} else {
			sb.WriteString("_(not yet generated)_")
		}
		sb.WriteString("\n\n")
	}
	return sb.String()
}

// Write renders sections in format and returns the path of the new file.
func (e *Exporter) Write(title string, sections []Section, format Format) (string, error) {
	md := RenderMarkdown(title, sections)

	var data []byte
	switch format {
	case FormatMarkdown:
		data = []byte(md)
	case FormatHTML:
		var body bytes.Buffer
		if err := goldmark.Convert([]byte(md), &body); err != nil {
			return "", fmt.Errorf("failed to render html: %w", err)
		}
		var buf bytes.Buffer
		fmt.Fprintf(&buf, "<!DOCTYPE html>\n<html>\n<head><meta charset=\"utf-8\"><title>%s</title></head>\n<body>\n", title)
		buf.Write(body.Bytes())
		buf.WriteString("</body>\n</html>\n")
		data = buf.Bytes()
	default:
		return "", fmt.Errorf("unsupported export format %q", format)
	}

	if err := os.MkdirAll(e.Root, 0755); err != nil {
		return "", fmt.Errorf("failed to create workspace: %w", err)
	}

	name := fmt.Sprintf("strategy-%s.%s", e.Now().Format("20060102-150405"), format)
	targetPath := filepath.Join(e.Root, name)

	rel, err := filepath.Rel(e.Root, targetPath)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("unsafe path attempt: %s", name)
	}

	if err := os.WriteFile(targetPath, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	return targetPath, nil
}
