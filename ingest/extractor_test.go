package ingest

import (
	"strings"
	"testing"
)

func TestContentTypeFromExtension(t *testing.T) {
	cases := []struct {
		ext  string
		want ContentType
	}{
		{".md", TypeMarkdown},
		{".MDX", TypeMarkdown},
		{".html", TypeHTML},
		{".htm", TypeHTML},
		{".csv", TypeCSV},
		{".pdf", TypePDF},
		{".txt", TypePlainText},
		{".log", TypePlainText},
		{"", TypePlainText},
	}
	for _, c := range cases {
		if got := ContentTypeFromExtension(c.ext); got != c.want {
			t.Errorf("ContentTypeFromExtension(%q) = %q, want %q", c.ext, got, c.want)
		}
	}
}

func TestDecodeTextUTF8Passthrough(t *testing.T) {
	in := "héllo wörld"
	if got := DecodeText([]byte(in)); got != in {
		t.Errorf("got %q, want %q", got, in)
	}
}

func TestDecodeTextLatin1Fallback(t *testing.T) {
	// 0xE9 is é in Latin-1 and invalid UTF-8 on its own.
	in := []byte{'c', 'a', 'f', 0xE9}
	got := DecodeText(in)
	if got != "caf\u00e9" {
		t.Errorf("got %q, want %q", got, "caf\u00e9")
	}
}

func TestStripHTML(t *testing.T) {
	html := `<html><head>
		<style>body { color: red; }</style>
		<script>var x = "<p>not text</p>";</script>
	</head><body>
		<h1>Title</h1>
		<p>First <b>paragraph</b>.</p>
		<p>Second paragraph.</p>
	</body></html>`

	got := StripHTML(html)
	if strings.Contains(got, "color: red") || strings.Contains(got, "var x") {
		t.Errorf("script/style content kept:\n%s", got)
	}
	if strings.Contains(got, "<") {
		t.Errorf("tags kept:\n%s", got)
	}
	for _, want := range []string{"Title", "First paragraph.", "Second paragraph."} {
		if !strings.Contains(got, want) {
			t.Errorf("missing %q:\n%s", want, got)
		}
	}
	// Block tags become paragraph boundaries.
	if len(SplitParagraphs(got)) < 3 {
		t.Errorf("block structure lost: %q", got)
	}
}

func TestStripHTMLSelfClosingAndEmptyTags(t *testing.T) {
	got := StripHTML("a<br/>b<>c")
	if !strings.Contains(got, "a") || !strings.Contains(got, "b") || !strings.Contains(got, "c") {
		t.Errorf("got %q", got)
	}
}

func TestMarkdownExtractor(t *testing.T) {
	md := "# Heading\n\nBody with [a link](https://example.com) and `code`.\n\n" +
		"| col |\n|-----|\n| val |\n"
	text, err := MarkdownExtractor{}.Extract([]byte(md))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	for _, want := range []string{"Heading", "Body with", "a link", "code"} {
		if !strings.Contains(text, want) {
			t.Errorf("missing %q:\n%s", want, text)
		}
	}
	for _, markup := range []string{"# ", "](", "`"} {
		if strings.Contains(text, markup) {
			t.Errorf("markup %q kept:\n%s", markup, text)
		}
	}
	// Heading and body land in separate paragraphs.
	if len(SplitParagraphs(text)) < 2 {
		t.Errorf("block structure lost: %q", text)
	}
}

func TestPlainTextExtractor(t *testing.T) {
	text, err := PlainTextExtractor{}.Extract([]byte("as is"))
	if err != nil || text != "as is" {
		t.Errorf("got %q, %v", text, err)
	}
}
