package ingest

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// Extractor converts raw content to plain text.
type Extractor interface {
	Extract(content []byte) (string, error)
}

// ContentType identifies the content kind for extraction.
type ContentType string

const (
	TypePlainText ContentType = "text/plain"
	TypeMarkdown  ContentType = "text/markdown"
	TypeHTML      ContentType = "text/html"
	TypeCSV       ContentType = "text/csv"
	TypePDF       ContentType = "application/pdf"
)

// ContentTypeFromExtension maps file extensions to content types.
func ContentTypeFromExtension(ext string) ContentType {
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "md", "mdx", "markdown":
		return TypeMarkdown
	case "html", "htm":
		return TypeHTML
	case "csv":
		return TypeCSV
	case "pdf":
		return TypePDF
	default:
		return TypePlainText
	}
}

// DecodeText returns content as a string, falling back to a lossy Latin-1
// decode when the bytes are not valid UTF-8. Undecodable input never fails
// ingestion; at worst some characters are transliterated.
func DecodeText(content []byte) string {
	if utf8.Valid(content) {
		return string(content)
	}
	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(content)
	if err != nil {
		// Latin-1 decoding cannot actually fail; keep the valid prefix
		// if it somehow does.
		return strings.ToValidUTF8(string(content), "")
	}
	return string(decoded)
}

// PlainTextExtractor returns content as-is after encoding fallback.
type PlainTextExtractor struct{}

var _ Extractor = PlainTextExtractor{}

func (PlainTextExtractor) Extract(content []byte) (string, error) {
	return DecodeText(content), nil
}

// HTMLExtractor strips tags, scripts, and styles, keeping block structure as
// blank lines so the paragraph splitter sees boundaries.
type HTMLExtractor struct{}

var _ Extractor = HTMLExtractor{}

func (HTMLExtractor) Extract(content []byte) (string, error) {
	return StripHTML(DecodeText(content)), nil
}

// StripHTML removes HTML tags and the contents of script/style elements.
func StripHTML(content string) string {
	var b strings.Builder
	b.Grow(len(content))

	inTag := false
	skipDepth := 0 // inside <script> or <style>
	var tag strings.Builder

	for i := 0; i < len(content); {
		r, size := utf8.DecodeRuneInString(content[i:])
		switch {
		case r == '<':
			inTag = true
			tag.Reset()
		case inTag:
			if r == '>' {
				inTag = false
				var name string
				if f := strings.Fields(tag.String()); len(f) > 0 {
					name = strings.ToLower(f[0])
				}
				name = strings.TrimSuffix(name, "/")
				switch name {
				case "script", "style":
					skipDepth++
				case "/script", "/style":
					if skipDepth > 0 {
						skipDepth--
					}
				}
				if isBlockTag(strings.TrimPrefix(name, "/")) {
					b.WriteString("\n\n")
				}
			} else {
				tag.WriteRune(r)
			}
		case skipDepth == 0:
			b.WriteRune(r)
		}
		i += size
	}
	return strings.TrimSpace(b.String())
}

func isBlockTag(tag string) bool {
	switch tag {
	case "p", "div", "br", "hr", "h1", "h2", "h3", "h4", "h5", "h6",
		"li", "ul", "ol", "table", "tr", "blockquote", "pre",
		"section", "article", "header", "footer", "nav", "main":
		return true
	}
	return false
}
