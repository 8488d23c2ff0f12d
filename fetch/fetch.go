// Package fetch pulls web pages and API responses into a local corpus
// directory so they can be indexed alongside file sources.
//
// Each fetch saves the raw body under a slugified name, a sidecar
// ".meta.json" with provenance (URL, timestamp, status, content type,
// sha256), and for HTML a readable-text ".txt" extracted with
// go-readability so the plain-text indexing path picks it up.
package fetch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/go-shiori/go-readability"
)

const userAgent = "groundrag-fetch/1.0"

// Result describes one saved fetch; it is also the sidecar metadata shape.
type Result struct {
	URL         string `json:"url"`
	SavedAt     string `json:"saved_at"`
	Status      int    `json:"status"`
	ContentType string `json:"content_type"`
	Path        string `json:"path"`
	TextPath    string `json:"text_path,omitempty"`
	SHA256      string `json:"sha256"`
}

// Fetcher downloads URLs into a corpus directory.
type Fetcher struct {
	dir    string
	client *http.Client
}

// New creates a Fetcher that saves under dir (created on demand).
func New(dir string) *Fetcher {
	return &Fetcher{
		dir:    dir,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

// Fetch downloads rawURL and saves body, sidecar metadata, and (for HTML) a
// readable-text extraction. name overrides the derived base filename when
// non-empty. A response status ≥ 400 is still saved but returned as an error.
func (f *Fetcher) Fetch(ctx context.Context, rawURL, name string) (Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "*/*")

	resp, err := f.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, fmt.Errorf("read %s: %w", rawURL, err)
	}

	contentType := resp.Header.Get("Content-Type")
	base := name
	if base == "" {
		base = Slugify(rawURL)
	}
	path := filepath.Join(f.dir, base+guessExtension(contentType, rawURL))

	if err := os.MkdirAll(f.dir, 0o755); err != nil {
		return Result{}, err
	}
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return Result{}, err
	}

	sum := sha256.Sum256(body)
	res := Result{
		URL:         rawURL,
		SavedAt:     time.Now().UTC().Format(time.RFC3339),
		Status:      resp.StatusCode,
		ContentType: contentType,
		Path:        path,
		SHA256:      hex.EncodeToString(sum[:]),
	}

	if isHTML(contentType) {
		if text := f.readableText(rawURL, body); text != "" {
			textPath := filepath.Join(f.dir, base+".txt")
			if err := os.WriteFile(textPath, []byte(text), 0o644); err == nil {
				res.TextPath = textPath
			}
		}
	}

	meta, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return res, err
	}
	if err := os.WriteFile(path+".meta.json", append(meta, '\n'), 0o644); err != nil {
		return res, err
	}

	if resp.StatusCode >= 400 {
		return res, fmt.Errorf("fetch %s: status %d", rawURL, resp.StatusCode)
	}
	return res, nil
}

// readableText extracts article text from HTML. Extraction failure is not an
// error; the raw file remains.
func (f *Fetcher) readableText(rawURL string, body []byte) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	article, err := readability.FromReader(strings.NewReader(string(body)), u)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(article.TextContent)
}

var slugUnsafe = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// Slugify derives a filesystem-safe base name from a URL: scheme and query
// dropped, path segments joined with "__", unsafe runes hyphenated.
func Slugify(rawURL string) string {
	s := strings.TrimSpace(rawURL)
	s = strings.TrimPrefix(s, "https://")
	s = strings.TrimPrefix(s, "http://")
	if i := strings.IndexByte(s, '?'); i >= 0 {
		s = s[:i]
	}
	var parts []string
	for _, p := range strings.FieldsFunc(s, func(r rune) bool { return r == '/' || r == '#' }) {
		p = strings.Trim(slugUnsafe.ReplaceAllString(p, "-"), "-_")
		if p != "" {
			parts = append(parts, p)
		}
	}
	base := strings.Join(parts, "__")
	if base == "" {
		base = "download"
	}
	if len(base) > 200 {
		base = base[:200]
	}
	return base
}

// guessExtension picks a file extension from the content type, falling back
// to the URL's own extension, then ".html".
func guessExtension(contentType, rawURL string) string {
	ct := strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
	switch ct {
	case "application/json", "text/json":
		return ".json"
	case "text/html", "application/xhtml+xml":
		return ".html"
	case "text/plain":
		return ".txt"
	case "text/csv":
		return ".csv"
	case "application/pdf":
		return ".pdf"
	case "text/markdown":
		return ".md"
	}
	if ext := filepath.Ext(strings.SplitN(rawURL, "?", 2)[0]); ext != "" {
		return ext
	}
	return ".html"
}

func isHTML(contentType string) bool {
	ct := strings.ToLower(contentType)
	return strings.Contains(ct, "text/html") || strings.Contains(ct, "xhtml")
}
