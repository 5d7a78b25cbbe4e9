package converter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleHTML = `<!DOCTYPE html>
<html>
<head><title>Техническое задание</title><style>h2 { color: red; }</style></head>
<body>
<script>alert("x")</script>
<h2>Security</h2>
<p>All data is encrypted with <strong>AES-256</strong>.</p>
<ul><li>first</li><li>second</li></ul>
</body>
</html>`

func TestHTMLConverter_Convert(t *testing.T) {
	c := NewHTMLConverter()
	out, err := c.Convert(context.Background(), []byte(sampleHTML), "spec.html")
	require.NoError(t, err)

	assert.Contains(t, out, "# Техническое задание")
	assert.Contains(t, out, "## Security")
	assert.Contains(t, out, "**AES-256**")
	assert.Contains(t, out, "- first")
	assert.NotContains(t, out, "alert")
	assert.NotContains(t, out, "color: red")
}

func TestHTMLConverter_KeepsExistingH1(t *testing.T) {
	c := NewHTMLConverter()
	out, err := c.Convert(context.Background(), []byte(`<html><head><title>T</title></head><body><h1>Body title</h1><p>x</p></body></html>`), "a.html")
	require.NoError(t, err)

	assert.Contains(t, out, "# Body title")
	assert.NotContains(t, out, "# T\n")
}

func TestTitle(t *testing.T) {
	assert.Equal(t, "Техническое задание", Title([]byte(sampleHTML)))
	assert.Empty(t, Title([]byte("<p>no title</p>")))
}

func TestCleanMarkdown(t *testing.T) {
	assert.Equal(t, "a\n\n\nb", cleanMarkdown("a   \n\n\n\n\n\nb\t"))
}

func writeScript(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts are not executable on windows")
	}
	path := filepath.Join(t.TempDir(), "fake-pandoc")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0755))
	return path
}

func TestPandocConverter_PipesThroughBinary(t *testing.T) {
	// echoes its arguments, then stdin
	bin := writeScript(t, `echo "$@"; cat`)
	c := NewPandocConverter(bin)
	require.True(t, c.Available())

	out, err := c.Convert(context.Background(), []byte("# Body"), "Spec.DOCX")
	require.NoError(t, err)
	assert.Equal(t, "--from docx --to gfm --wrap none\n# Body", out)
}

func TestPandocConverter_Failure(t *testing.T) {
	bin := writeScript(t, `echo "unknown reader" >&2; exit 3`)
	c := NewPandocConverter(bin)

	_, err := c.Convert(context.Background(), []byte("x"), "a.docx")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown reader")
}

func TestPandocConverter_Missing(t *testing.T) {
	c := NewPandocConverter(filepath.Join(t.TempDir(), "no-such-pandoc"))
	assert.False(t, c.Available())

	_, err := c.Convert(context.Background(), []byte("x"), "a.docx")
	assert.ErrorIs(t, err, ErrPandocMissing)
}

func TestPythonPDFConverter_Convert(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/parse", r.URL.Path)
		assert.Equal(t, "application/octet-stream", r.Header.Get("Content-Type"))
		json.NewEncoder(w).Encode(map[string]interface{}{
			"text":  "Hello from PDF",
			"pages": 1,
		})
	}))
	defer server.Close()

	c := NewPythonPDFConverter(server.URL)
	text, err := c.Convert(context.Background(), []byte("fake pdf"), "test.pdf")
	require.NoError(t, err)
	assert.Equal(t, "Hello from PDF", text)
}

func TestPythonPDFConverter_ServiceError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"error": "parsing failed",
			"text":  "",
		})
	}))
	defer server.Close()

	c := NewPythonPDFConverter(server.URL)
	_, err := c.Convert(context.Background(), []byte("bad"), "test.pdf")
	assert.ErrorContains(t, err, "parsing failed")
}

func TestPythonPDFConverter_Defaults(t *testing.T) {
	c := NewPythonPDFConverter("")
	assert.Equal(t, "http://localhost:8081", c.serviceURL)
	assert.Equal(t, []string{".pdf"}, c.SupportedExtensions())
}

func TestPythonPDFConverter_IsServiceHealthy(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	assert.True(t, NewPythonPDFConverter(server.URL).IsServiceHealthy(context.Background()))
	assert.False(t, NewPythonPDFConverter("http://127.0.0.1:1").IsServiceHealthy(context.Background()))
}
