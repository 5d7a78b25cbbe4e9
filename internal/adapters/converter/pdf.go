package converter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/0xcro3dile/reqcheck/internal/adapters/transport"
)

// PythonPDFConverter implements ports.DocumentConverter by calling the PDF extraction sidecar service.
type PythonPDFConverter struct {
	serviceURL string
	client     *transport.Client
	health     *http.Client
}

// NewPythonPDFConverter creates a converter that calls the sidecar at serviceURL.
func NewPythonPDFConverter(serviceURL string, opts ...transport.Option) *PythonPDFConverter {
	if serviceURL == "" {
		serviceURL = "http://localhost:8081"
	}
	opts = append([]transport.Option{transport.WithTimeout(60 * time.Second)}, opts...)
	return &PythonPDFConverter{
		serviceURL: strings.TrimSuffix(serviceURL, "/"),
		client:     transport.New("pdf-service", opts...),
		health:     &http.Client{Timeout: 5 * time.Second},
	}
}

// parseResponse is the sidecar response format.
type parseResponse struct {
	Text    string `json:"text"`
	Pages   int    `json:"pages"`
	Library string `json:"library,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Convert extracts text from PDF bytes.
func (p *PythonPDFConverter) Convert(ctx context.Context, data []byte, filename string) (string, error) {
	body, err := p.client.Post(ctx, p.serviceURL+"/parse", "application/octet-stream", data)
	if err != nil {
		return "", fmt.Errorf("converting %s: %w", filename, err)
	}

	var result parseResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("decoding PDF service response: %w", err)
	}
	if result.Error != "" {
		return "", fmt.Errorf("PDF parse error: %s", result.Error)
	}

	return result.Text, nil
}

// SupportedExtensions returns formats this converter handles.
func (p *PythonPDFConverter) SupportedExtensions() []string {
	return []string{".pdf"}
}

// IsServiceHealthy checks if the sidecar service is running.
func (p *PythonPDFConverter) IsServiceHealthy(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.serviceURL+"/health", nil)
	if err != nil {
		return false
	}

	resp, err := p.health.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK
}
