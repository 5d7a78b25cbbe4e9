package converter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
)

// ErrPandocMissing is returned when the pandoc binary cannot be found.
var ErrPandocMissing = errors.New("pandoc not found")

// PandocConverter converts office documents to GitHub-flavored markdown with pandoc.
type PandocConverter struct {
	binary string
}

// NewPandocConverter creates a converter running binary (default "pandoc" from PATH).
func NewPandocConverter(binary string) *PandocConverter {
	if binary == "" {
		binary = "pandoc"
	}
	return &PandocConverter{binary: binary}
}

// Available reports whether the pandoc binary can be found.
func (p *PandocConverter) Available() bool {
	_, err := exec.LookPath(p.binary)
	return err == nil
}

// Convert pipes data through pandoc and returns the markdown.
func (p *PandocConverter) Convert(ctx context.Context, data []byte, filename string) (string, error) {
	path, err := exec.LookPath(p.binary)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrPandocMissing, err)
	}

	from := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	cmd := exec.CommandContext(ctx, path, "--from", from, "--to", "gfm", "--wrap", "none")
	cmd.Stdin = bytes.NewReader(data)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return "", fmt.Errorf("pandoc failed on %s: %s", filename, msg)
	}
	return stdout.String(), nil
}

// SupportedExtensions returns formats this converter handles.
func (p *PandocConverter) SupportedExtensions() []string {
	return []string{".docx", ".odt", ".rtf"}
}
