// Package converter turns uploaded binary documents into markdown.
// Clean Architecture: Adapters implementing ports.DocumentConverter.
package converter

import (
	"context"
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
	"golang.org/x/net/html"
)

var excessiveLinesRe = regexp.MustCompile(`\n{4,}`)

// HTMLConverter converts HTML documents to markdown, keeping tables and headings.
type HTMLConverter struct {
	converter *md.Converter
}

// NewHTMLConverter creates a new HTML to markdown converter.
func NewHTMLConverter() *HTMLConverter {
	converter := md.NewConverter("", true, nil)
	converter.Use(plugin.GitHubFlavored())
	return &HTMLConverter{converter: converter}
}

// Convert transforms HTML to markdown. The page title becomes the H1 when the body has none.
func (c *HTMLConverter) Convert(ctx context.Context, data []byte, filename string) (string, error) {
	doc, err := html.Parse(strings.NewReader(string(data)))
	if err != nil {
		return "", err
	}

	title := findTitle(doc)
	removeElements(doc, "script", "style", "noscript", "iframe", "object", "embed", "template")

	body := doc
	if b := findElement(doc, "body"); b != nil {
		body = b
	}
	var sb strings.Builder
	if err := html.Render(&sb, body); err != nil {
		return "", err
	}

	markdown, err := c.converter.ConvertString(sb.String())
	if err != nil {
		return "", err
	}
	markdown = cleanMarkdown(markdown)

	if title != "" && !hasH1(markdown) {
		markdown = "# " + title + "\n\n" + markdown
	}
	return markdown, nil
}

// SupportedExtensions returns formats this converter handles.
func (c *HTMLConverter) SupportedExtensions() []string {
	return []string{".html", ".htm"}
}

// Title extracts the <title> of an HTML document.
func Title(data []byte) string {
	doc, err := html.Parse(strings.NewReader(string(data)))
	if err != nil {
		return ""
	}
	return findTitle(doc)
}

func findTitle(doc *html.Node) string {
	n := findElement(doc, "title")
	if n == nil || n.FirstChild == nil {
		return ""
	}
	return strings.TrimSpace(n.FirstChild.Data)
}

// findElement finds the first element with the given tag name.
func findElement(n *html.Node, tag string) *html.Node {
	if n.Type == html.ElementNode && n.Data == tag {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, tag); found != nil {
			return found
		}
	}
	return nil
}

// removeElements removes all elements with the given tag names.
func removeElements(n *html.Node, tags ...string) {
	tagSet := make(map[string]bool, len(tags))
	for _, tag := range tags {
		tagSet[tag] = true
	}

	var toRemove []*html.Node
	var collect func(*html.Node)
	collect = func(node *html.Node) {
		if node.Type == html.ElementNode && tagSet[node.Data] {
			toRemove = append(toRemove, node)
			return
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			collect(c)
		}
	}
	collect(n)

	for _, node := range toRemove {
		if node.Parent != nil {
			node.Parent.RemoveChild(node)
		}
	}
}

// cleanMarkdown trims trailing spaces and collapses runs of blank lines.
func cleanMarkdown(content string) string {
	content = excessiveLinesRe.ReplaceAllString(content, "\n\n\n")

	lines := strings.Split(content, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func hasH1(markdown string) bool {
	for _, line := range strings.Split(markdown, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "# ") {
			return true
		}
	}
	return false
}
