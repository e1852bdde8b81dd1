package output

import (
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"siteclone/internal/clone"
)

const (
	DefaultRoot     = "output"
	DefaultHTMLFile = "index.html"
	DefaultMetaFile = "clone.json"
)

type WriteOptions struct {
	OutputDir string
	HTMLFile  string
	MetaFile  string
}

// Meta is written next to the clone so a run can be traced back to its source.
type Meta struct {
	TargetURL   string    `json:"target_url"`
	Message     string    `json:"message"`
	Strategy    string    `json:"strategy"`
	Truncated   bool      `json:"truncated"`
	Empty       bool      `json:"empty"`
	GeneratedAt time.Time `json:"generated_at"`
}

var unsafeHostChars = regexp.MustCompile(`[^a-zA-Z0-9_-]`)

// HostDir returns root/<host> for the target URL, with dots turned into
// underscores. Unparseable URLs land in root/default.
func HostDir(root, targetURL string) string {
	if root == "" {
		root = DefaultRoot
	}
	host := hostFromURL(targetURL)
	if host == "" {
		host = "default"
	}
	return filepath.Join(root, host)
}

func hostFromURL(urlStr string) string {
	if !strings.Contains(urlStr, "://") {
		urlStr = "https://" + urlStr
	}
	u, err := url.Parse(urlStr)
	if err != nil {
		return ""
	}
	host := strings.ReplaceAll(u.Hostname(), ".", "_")
	return unsafeHostChars.ReplaceAllString(host, "")
}

func WriteHTML(outputDir, filename, html string) (string, error) {
	if outputDir == "" {
		outputDir = DefaultRoot
	}
	if filename == "" {
		filename = DefaultHTMLFile
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", err
	}
	path := filepath.Join(outputDir, filename)
	if err := os.WriteFile(path, []byte(html), 0644); err != nil {
		return "", err
	}
	return path, nil
}

func WriteMeta(outputDir, filename string, meta Meta) (string, error) {
	if outputDir == "" {
		outputDir = DefaultRoot
	}
	if filename == "" {
		filename = DefaultMetaFile
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", err
	}
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return "", err
	}
	path := filepath.Join(outputDir, filename)
	if err := os.WriteFile(path, data, 0600); err != nil {
		return "", err
	}
	return path, nil
}

// WriteClone writes the cloned document and its metadata, returning both paths.
func WriteClone(targetURL string, out clone.Outcome, opts WriteOptions) (string, string, error) {
	htmlPath, err := WriteHTML(opts.OutputDir, opts.HTMLFile, out.ClonedHTML)
	if err != nil {
		return "", "", err
	}
	metaPath, err := WriteMeta(opts.OutputDir, opts.MetaFile, Meta{
		TargetURL:   targetURL,
		Message:     out.Message,
		Strategy:    string(out.Strategy),
		Truncated:   out.Truncated,
		Empty:       out.Empty,
		GeneratedAt: time.Now().UTC(),
	})
	if err != nil {
		return "", "", err
	}
	return htmlPath, metaPath, nil
}

// PrintSummary reports a finished clone the way the CLI shows it.
func PrintSummary(w io.Writer, out clone.Outcome, htmlPath string) {
	fmt.Fprintln(w, out.Message)
	if out.Truncated {
		fmt.Fprintln(w, "Note: the page was truncated to fit the prompt budget.")
	}
	if out.Empty {
		fmt.Fprintln(w, "Warning: the model returned an empty document.")
	}
	if htmlPath != "" {
		fmt.Fprintf(w, "Wrote %s\n", htmlPath)
	}
}
