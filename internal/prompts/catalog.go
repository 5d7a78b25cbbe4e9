// Package prompts holds the prompt texts for every agent and the grounded QA step.
// Texts are text/template files embedded per locale; code only fills in the variables.
package prompts

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"

	"github.com/0xcro3dile/reqcheck/internal/domain/entities"
)

//go:embed templates
var templatesFS embed.FS

// DefaultLocale is used when no locale is configured.
const DefaultLocale = "ru"

// Labels are the user-visible strings of a locale.
type Labels struct {
	ReportTitle    string             `yaml:"report_title"`
	ChecklistTitle string             `yaml:"checklist_title"`
	Question       string             `yaml:"question"`
	Answer         string             `yaml:"answer"`
	NotFound       string             `yaml:"not_found"`
	Error          string             `yaml:"error"`
	Example        entities.Checklist `yaml:"example"`
}

// Catalog renders prompts for one locale.
type Catalog struct {
	locale string
	tmpl   *template.Template
	labels Labels
}

// Locales returns the locales with embedded templates.
func Locales() []string {
	entries, err := templatesFS.ReadDir("templates")
	if err != nil {
		return nil
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			out = append(out, e.Name())
		}
	}
	return out
}

// New loads the catalog for a locale. An empty locale means DefaultLocale.
func New(locale string) (*Catalog, error) {
	if locale == "" {
		locale = DefaultLocale
	}
	dir := "templates/" + locale

	tmpl, err := template.New(locale).Funcs(template.FuncMap{
		"literal": literal,
		"inc":     func(i int) int { return i + 1 },
	}).ParseFS(templatesFS, dir+"/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("unknown locale %q: %w", locale, err)
	}

	raw, err := templatesFS.ReadFile(dir + "/labels.yaml")
	if err != nil {
		return nil, fmt.Errorf("reading labels for %q: %w", locale, err)
	}
	var labels Labels
	if err := yaml.Unmarshal(raw, &labels); err != nil {
		return nil, fmt.Errorf("parsing labels for %q: %w", locale, err)
	}

	return &Catalog{locale: locale, tmpl: tmpl, labels: labels}, nil
}

// MustNew is New for known-good locales.
func MustNew(locale string) *Catalog {
	c, err := New(locale)
	if err != nil {
		panic(err)
	}
	return c
}

// Locale returns the catalog's locale.
func (c *Catalog) Locale() string { return c.locale }

// Labels returns the locale's user-visible strings.
func (c *Catalog) Labels() Labels { return c.labels }

// Methodologist returns the persona and task that propose the initial aspects.
func (c *Catalog) Methodologist(domain string) (entities.Persona, entities.AgentTask, error) {
	data := struct {
		Domain  string
		Example string
	}{Domain: domain, Example: ExampleList(c.labels.Example)}
	return c.agent("methodologist", data)
}

// Expert returns the persona and task that expand one aspect.
func (c *Catalog) Expert(record entities.AspectRecord, domain string) (entities.Persona, entities.AgentTask, error) {
	data := struct {
		Aspect    string
		Questions []string
		Domain    string
	}{Aspect: record.Aspect, Questions: record.Questions, Domain: domain}
	if data.Questions == nil {
		data.Questions = []string{}
	}
	return c.agent("expert", data)
}

// Builder returns the persona and task that merge expert outputs.
// The outputs are attached as explicit, ordered task context.
func (c *Catalog) Builder(outputs []string) (entities.Persona, entities.AgentTask, error) {
	data := struct {
		Count   int
		Example string
	}{Count: len(outputs), Example: ExampleList(c.labels.Example)}
	persona, task, err := c.agent("builder", data)
	if err != nil {
		return persona, task, err
	}
	task.Context = append([]string(nil), outputs...)
	task.SearchQuery = ""
	return persona, task, nil
}

// GroundedQA renders the retrieval prompt for one question.
func (c *Catalog) GroundedQA(question string, context []string) (string, error) {
	return c.render("qa.prompt", struct {
		NotFound string
		Question string
		Context  []string
	}{NotFound: c.labels.NotFound, Question: question, Context: context})
}

// AgentMessages renders the chat messages for one agent run.
func (c *Catalog) AgentMessages(p entities.Persona, t entities.AgentTask, search []entities.SearchResult) ([]entities.ChatMessage, error) {
	system, err := c.render("agent.system", p)
	if err != nil {
		return nil, err
	}
	user, err := c.render("agent.user", struct {
		Description    string
		ExpectedOutput string
		Context        []string
		Search         []entities.SearchResult
	}{t.Description, t.ExpectedOutput, t.Context, search})
	if err != nil {
		return nil, err
	}
	return []entities.ChatMessage{
		{Role: "system", Content: system},
		{Role: "user", Content: user},
	}, nil
}

func (c *Catalog) agent(name string, data any) (entities.Persona, entities.AgentTask, error) {
	var (
		p   entities.Persona
		t   entities.AgentTask
		err error
	)
	fields := []struct {
		tmpl string
		dst  *string
	}{
		{name + ".role", &p.Role},
		{name + ".goal", &p.Goal},
		{name + ".backstory", &p.Backstory},
		{name + ".task", &t.Description},
		{name + ".expected", &t.ExpectedOutput},
	}
	for _, f := range fields {
		if *f.dst, err = c.render(f.tmpl, data); err != nil {
			return p, t, err
		}
	}
	if c.tmpl.Lookup(name+".search") != nil {
		if t.SearchQuery, err = c.render(name+".search", data); err != nil {
			return p, t, err
		}
	}
	return p, t, nil
}

func (c *Catalog) render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := c.tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("rendering prompt %s/%s: %w", c.locale, name, err)
	}
	return strings.TrimSpace(buf.String()), nil
}

// ExampleList renders a checklist as a JSON list with one record per line.
func ExampleList(c entities.Checklist) string {
	var sb strings.Builder
	sb.WriteString("[\n")
	for i, r := range c {
		sb.WriteString(literal(r))
		if i < len(c)-1 {
			sb.WriteString(",")
		}
		sb.WriteString("\n")
	}
	sb.WriteString("]")
	return sb.String()
}

// literal renders v as compact JSON without HTML escaping.
func literal(v any) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Sprintf("%q", fmt.Sprint(v))
	}
	return strings.TrimSpace(buf.String())
}
