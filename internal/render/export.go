package render

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"chat-widget/internal/chat"
)

// Exporter writes a session's history in one format.
type Exporter interface {
	Export(messages []chat.Message, w io.Writer) error
	Extension() string
}

// NewExporter creates an exporter for format.
func NewExporter(format string) (Exporter, error) {
	switch format {
	case "text", "txt":
		return &TextExporter{}, nil
	case "html":
		return &HTMLExporter{}, nil
	case "json":
		return &JSONExporter{}, nil
	case "yaml", "yml":
		return &YAMLExporter{}, nil
	default:
		return nil, fmt.Errorf("unsupported format: %s (supported: text, html, json, yaml)", format)
	}
}

type TextExporter struct{}

func (e *TextExporter) Export(messages []chat.Message, w io.Writer) error {
	for _, m := range messages {
		ts := ""
		if !m.CreatedAt.IsZero() {
			ts = m.CreatedAt.Local().Format("2006-01-02 15:04:05") + " "
		}
		if _, err := fmt.Fprintf(w, "%s[%s] %s\n", ts, m.Sender, m.Content); err != nil {
			return err
		}
	}
	return nil
}

func (e *TextExporter) Extension() string {
	return "txt"
}

// HTMLExporter writes one chat-message div per row, formatted like the
// embedded widget renders them.
type HTMLExporter struct{}

func (e *HTMLExporter) Export(messages []chat.Message, w io.Writer) error {
	var b strings.Builder
	b.WriteString("<div class=\"chat-messages\">\n")
	for _, m := range messages {
		class := "bot"
		if m.Sender == chat.SenderUser {
			class = "user"
		}
		fmt.Fprintf(&b, "  <div class=\"chat-message %s\">%s</div>\n", class, FormatHTML(m.Content))
	}
	b.WriteString("</div>\n")
	_, err := io.WriteString(w, b.String())
	return err
}

func (e *HTMLExporter) Extension() string {
	return "html"
}

type JSONExporter struct{}

func (e *JSONExporter) Export(messages []chat.Message, w io.Writer) error {
	if messages == nil {
		messages = []chat.Message{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(messages)
}

func (e *JSONExporter) Extension() string {
	return "json"
}

type YAMLExporter struct{}

func (e *YAMLExporter) Export(messages []chat.Message, w io.Writer) error {
	enc := yaml.NewEncoder(w)
	defer func() { _ = enc.Close() }()

	return enc.Encode(messages)
}

func (e *YAMLExporter) Extension() string {
	return "yaml"
}
