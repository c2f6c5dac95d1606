package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"github.com/conneroisu/winforge/internal/config"
	"github.com/conneroisu/winforge/internal/types"
)

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Host: "localhost",
			Port: 8080,
		},
	}
}

func renderIndex(t *testing.T, s *PreviewServer) *html.Node {
	t.Helper()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	s.handleIndex(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Header().Get("Content-Type"), "text/html")

	doc, err := html.Parse(strings.NewReader(rec.Body.String()))
	require.NoError(t, err)

	return doc
}

func findAll(n *html.Node, tag string) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.ElementNode && node.Data == tag {
			out = append(out, node)
		}
		for child := node.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(n)

	return out
}

func nodeText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.TextNode {
			sb.WriteString(node.Data)
		}
		for child := node.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(n)

	return sb.String()
}

func attrValue(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val
		}
	}

	return ""
}

func findByClass(n *html.Node, tag, class string) []*html.Node {
	var out []*html.Node
	for _, node := range findAll(n, tag) {
		if strings.Contains(attrValue(node, "class"), class) {
			out = append(out, node)
		}
	}

	return out
}

func successfulResult() *types.BuildResult {
	validation := types.NewValidationResult()
	validation.AddWarning("missing recommended component: Microsoft-Windows-International-Core")
	validation.AddSuggestion("Consider disabling Windows Error Reporting for unattended installs")

	return &types.BuildResult{
		Success:    true,
		OutputPath: "build/autounattend.xml",
		Valid:      true,
		Warnings:   []string{"missing fragment for pass auditUser: config/passes/audituser.xml"},
		Validation: validation,
		Stats: &types.BuildStats{
			Duration:        125 * time.Millisecond,
			PassesProcessed: 6,
			FileSize:        4096,
		},
	}
}

func TestHandleIndexBeforeFirstBuild(t *testing.T) {
	s := NewPreviewServer(testConfig(), nil)

	doc := renderIndex(t, s)

	headings := findAll(doc, "h1")
	require.Len(t, headings, 1)
	assert.Equal(t, "WinForge Build Report", nodeText(headings[0]))

	badges := findByClass(doc, "span", "idle")
	require.Len(t, badges, 1)
	assert.Equal(t, "WAITING", nodeText(badges[0]))
}

func TestHandleIndexValidBuild(t *testing.T) {
	s := NewPreviewServer(testConfig(), nil)
	s.Update(successfulResult(), "<unattend/>")

	doc := renderIndex(t, s)

	badges := findByClass(doc, "span", "valid")
	require.Len(t, badges, 1)
	assert.Equal(t, "VALID", nodeText(badges[0]))

	warnings := findByClass(doc, "li", "warning")
	require.Len(t, warnings, 1)
	assert.Contains(t, nodeText(warnings[0]), "auditUser")

	suggestions := findByClass(doc, "li", "suggestion")
	require.Len(t, suggestions, 1)
	assert.Contains(t, nodeText(suggestions[0]), "Windows Error Reporting")

	body := nodeText(doc)
	assert.Contains(t, body, "build/autounattend.xml")
	assert.Contains(t, body, "6")
}

func TestHandleIndexInvalidBuild(t *testing.T) {
	validation := types.NewValidationResult()
	validation.AddError("missing root element: <unattend xmlns=\"urn:schemas-microsoft-com:unattend\">")

	s := NewPreviewServer(testConfig(), nil)
	s.Update(&types.BuildResult{
		Success:    true,
		OutputPath: "build/autounattend.xml",
		Valid:      false,
		Validation: validation,
		Stats:      &types.BuildStats{},
	}, "<oops/>")

	doc := renderIndex(t, s)

	badges := findByClass(doc, "span", "invalid")
	require.Len(t, badges, 1)
	assert.Equal(t, "INVALID", nodeText(badges[0]))

	errItems := findByClass(doc, "li", "error")
	require.Len(t, errItems, 1)
	assert.Contains(t, nodeText(errItems[0]), "missing root element")
}

func TestHandleIndexFailedBuild(t *testing.T) {
	s := NewPreviewServer(testConfig(), nil)
	s.Update(&types.BuildResult{
		Success: false,
		Error:   "template file not found: config/autounattend.template.xml",
	}, "")

	doc := renderIndex(t, s)

	badges := findByClass(doc, "span", "failed")
	require.Len(t, badges, 1)
	assert.Equal(t, "BUILD FAILED", nodeText(badges[0]))
	assert.Contains(t, nodeText(doc), "template file not found")
}

func TestHandleIndexEscapesDocument(t *testing.T) {
	document := `<unattend><!-- sneaky --><script>alert("xss")</script></unattend>`

	s := NewPreviewServer(testConfig(), nil)
	s.Update(successfulResult(), document)

	rec := httptest.NewRecorder()
	s.handleIndex(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.NotContains(t, rec.Body.String(), `<script>alert`)

	doc, err := html.Parse(strings.NewReader(rec.Body.String()))
	require.NoError(t, err)

	pres := findByClass(doc, "pre", "document")
	require.Len(t, pres, 1)
	assert.Equal(t, document, nodeText(pres[0]), "escaping must round-trip the document exactly")
}

func TestHandleIndexSessionStats(t *testing.T) {
	s := NewPreviewServer(testConfig(), nil)
	s.Update(successfulResult(), "<unattend/>")
	s.Update(&types.BuildResult{Success: false, Error: "boom"}, "")

	snapshot := s.Metrics().Snapshot()
	assert.Equal(t, int64(2), snapshot.TotalBuilds)
	assert.Equal(t, int64(1), snapshot.SuccessfulBuilds)
	assert.Equal(t, int64(1), snapshot.FailedBuilds)

	body := nodeText(renderIndex(t, s))
	assert.Contains(t, body, "Total builds")
}

func TestHandleIndexMethodNotAllowed(t *testing.T) {
	s := NewPreviewServer(testConfig(), nil)

	rec := httptest.NewRecorder()
	s.handleIndex(rec, httptest.NewRequest(http.MethodPost, "/", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHandleIndexUnknownPath(t *testing.T) {
	s := NewPreviewServer(testConfig(), nil)

	rec := httptest.NewRecorder()
	s.handleIndex(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAddr(t *testing.T) {
	s := NewPreviewServer(testConfig(), nil)
	assert.Equal(t, "localhost:8080", s.Addr())
}
