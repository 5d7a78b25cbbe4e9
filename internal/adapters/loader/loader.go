// Package loader turns uploaded files into documents.
// Text formats are read as UTF-8; other formats go through a DocumentConverter.
package loader

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/0xcro3dile/reqcheck/internal/domain/entities"
	"github.com/0xcro3dile/reqcheck/internal/domain/ports"
)

var (
	// ErrUnsupportedFormat is returned for file extensions no loader handles.
	ErrUnsupportedFormat = errors.New("unsupported document format")

	// ErrUndecodable is returned when document text is not valid UTF-8.
	ErrUndecodable = errors.New("document is not valid UTF-8 text")
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// textExtensions are read as-is.
var textExtensions = []string{".txt", ".md", ".markdown"}

// MultiLoader dispatches by extension to the text reader or a converter.
type MultiLoader struct {
	converters map[string]ports.DocumentConverter
}

// NewMultiLoader creates a loader for the text formats plus every extension the converters support.
func NewMultiLoader(converters ...ports.DocumentConverter) *MultiLoader {
	m := &MultiLoader{converters: make(map[string]ports.DocumentConverter)}
	for _, c := range converters {
		for _, ext := range c.SupportedExtensions() {
			m.converters[strings.ToLower(ext)] = c
		}
	}
	return m
}

// Supports reports whether the file name has a loadable extension.
func (m *MultiLoader) Supports(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	if isText(ext) {
		return true
	}
	_, ok := m.converters[ext]
	return ok
}

// SupportedExtensions returns all supported extensions, sorted.
func (m *MultiLoader) SupportedExtensions() []string {
	exts := append([]string(nil), textExtensions...)
	for ext := range m.converters {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// Load reads and decodes the document at path.
func (m *MultiLoader) Load(ctx context.Context, path string) (*entities.Document, error) {
	if !m.Supports(path) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	doc, err := m.LoadBytes(ctx, filepath.Base(path), data)
	if err != nil {
		return nil, err
	}
	doc.Path = path
	if info, err := os.Stat(path); err == nil {
		doc.CreatedAt = info.ModTime()
	}
	return doc, nil
}

// LoadBytes decodes an uploaded document. The ID is derived from the text,
// so the same document uploaded twice gets the same ID.
func (m *MultiLoader) LoadBytes(ctx context.Context, name string, data []byte) (*entities.Document, error) {
	ext := strings.ToLower(filepath.Ext(name))

	var content string
	switch {
	case isText(ext):
		text, err := decodeText(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		content = text
	case m.converters[ext] != nil:
		text, err := m.converters[ext].Convert(ctx, data, name)
		if err != nil {
			return nil, err
		}
		if !utf8.ValidString(text) {
			return nil, fmt.Errorf("%s: %w", name, ErrUndecodable)
		}
		content = text
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}

	now := time.Now()
	return &entities.Document{
		ID:        generateDocID(content),
		Name:      name,
		Content:   content,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func isText(ext string) bool {
	for _, e := range textExtensions {
		if e == ext {
			return true
		}
	}
	return false
}

func decodeText(data []byte) (string, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	if !utf8.Valid(data) {
		return "", ErrUndecodable
	}
	return strings.ReplaceAll(string(data), "\r\n", "\n"), nil
}

// generateDocID creates a deterministic ID for document content.
func generateDocID(content string) string {
	hash := sha256.Sum256([]byte(content))
	return hex.EncodeToString(hash[:16])
}
