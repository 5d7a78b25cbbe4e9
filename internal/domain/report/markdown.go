// Package report renders checklists and document analysis results as markdown.
package report

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/0xcro3dile/reqcheck/internal/domain/entities"
	"github.com/0xcro3dile/reqcheck/internal/prompts"
)

// Markdown renders one "## aspect" section with a question/answer table per aspect result.
func Markdown(results []entities.AspectResult, labels prompts.Labels) string {
	var sb strings.Builder
	for _, r := range results {
		fmt.Fprintf(&sb, "## %s\n\n", r.Aspect)
		fmt.Fprintf(&sb, "| %s | %s |\n", labels.Question, labels.Answer)
		sb.WriteString("|---|---|\n")
		for _, qa := range r.QAPairs {
			fmt.Fprintf(&sb, "| %s | %s |\n", escapeCell(qa.Question), answerCell(qa, labels))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// ChecklistMarkdown renders a checklist as headed, numbered question lists.
func ChecklistMarkdown(c entities.Checklist, labels prompts.Labels) string {
	var sb strings.Builder
	if labels.ChecklistTitle != "" {
		fmt.Fprintf(&sb, "# %s\n\n", labels.ChecklistTitle)
	}
	for _, r := range c {
		fmt.Fprintf(&sb, "## %s\n\n", r.Aspect)
		for i, q := range r.Questions {
			fmt.Fprintf(&sb, "%d. %s\n", i+1, strings.ReplaceAll(q, "\n", " "))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// Document prefixes the results table with the report title and the analysed document name.
func Document(name string, results []entities.AspectResult, labels prompts.Labels) string {
	var sb strings.Builder
	title := labels.ReportTitle
	if name != "" {
		title = fmt.Sprintf("%s: %s", title, name)
	}
	fmt.Fprintf(&sb, "# %s\n\n", title)
	sb.WriteString(Markdown(results, labels))
	return sb.String()
}

func answerCell(qa entities.QAPair, labels prompts.Labels) string {
	switch qa.Status {
	case entities.AnswerNotFound:
		return span("red", firstNonEmpty(labels.NotFound, qa.Answer))
	case entities.AnswerError:
		return span("orange", labels.Error)
	default:
		return escapeCell(qa.Answer)
	}
}

func span(color, text string) string {
	return fmt.Sprintf("<span style='color:%s;'>%s</span>", color, escapeCell(text))
}

// escapeCell keeps text inside one table cell.
func escapeCell(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", "<br>")
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// FileName is the report name for an analyzed document: report_<stem>.md.
func FileName(document string) string {
	base := filepath.Base(document)
	return "report_" + strings.TrimSuffix(base, filepath.Ext(base)) + ".md"
}
