// Package checklist decodes, validates and renders checklists.
//
// Generation backends are asked for a literal list of {aspect, questions} records but nothing
// guarantees they comply, so every backend output passes through this package before it is
// trusted. Decoding is data-only: JSON goes through encoding/json and yaml.v3 flow syntax covers
// Python-style literals (single-quoted strings, True/None) without evaluating anything.
package checklist

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/0xcro3dile/reqcheck/internal/domain/entities"
)

// ErrMalformed is returned when text is not a valid checklist literal.
var ErrMalformed = errors.New("malformed checklist")

// fencePattern matches the body of a markdown code block.
var fencePattern = regexp.MustCompile("(?s)```[a-zA-Z]*\\s*\\n?(.*?)```")

// Parser turns backend output into a checklist, falling back to a fixed default.
type Parser struct {
	logger     *slog.Logger
	fallback   entities.Checklist
	onFallback func(error)
}

// Option configures a Parser.
type Option func(*Parser)

// WithLogger sets the logger used for fallback diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Parser) { p.logger = logger }
}

// WithFallback replaces the default fallback checklist.
func WithFallback(c entities.Checklist) Option {
	return func(p *Parser) { p.fallback = c.Clone() }
}

// WithFallbackHook registers a function called every time the fallback is used.
func WithFallbackHook(fn func(error)) Option {
	return func(p *Parser) { p.onFallback = fn }
}

// NewParser creates a Parser.
func NewParser(opts ...Option) *Parser {
	p := &Parser{fallback: Fallback()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse decodes raw into a checklist. It never fails: on any decode or validation
// error it logs the reason and returns a copy of the fallback checklist.
func (p *Parser) Parse(raw string) entities.Checklist {
	c, err := ParseStrict(raw)
	if err == nil {
		return c
	}

	logger := p.logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Warn("Using fallback checklist",
		"error", err,
		"raw_len", len(raw),
		"raw_head", head(raw, 120))
	if p.onFallback != nil {
		p.onFallback(err)
	}
	return p.fallback.Clone()
}

var defaultParser = NewParser()

// Parse decodes raw with the default parser and fallback.
func Parse(raw string) entities.Checklist {
	return defaultParser.Parse(raw)
}

// ParseStrict decodes raw into a checklist or returns an error wrapping ErrMalformed.
// There is no partial recovery: one bad record rejects the whole input.
func ParseStrict(raw string) (entities.Checklist, error) {
	body, ok := extractLiteral(raw, '[', ']')
	if !ok {
		return nil, fmt.Errorf("%w: no list literal found", ErrMalformed)
	}
	value, err := decodeLiteral(body)
	if err != nil {
		return nil, err
	}
	return validate(value)
}

// ParseRecord decodes a single {aspect, questions} mapping, as emitted by one aspect expert.
// A list holding exactly one mapping is accepted too.
func ParseRecord(raw string) (entities.AspectRecord, error) {
	text := stripFences(raw)
	open := strings.IndexAny(text, "{[")
	if open < 0 {
		return entities.AspectRecord{}, fmt.Errorf("%w: no mapping literal found", ErrMalformed)
	}

	var value any
	var err error
	if text[open] == '[' {
		body, _ := extractLiteral(text, '[', ']')
		value, err = decodeLiteral(body)
		if list, ok := value.([]any); ok && len(list) == 1 {
			value = list[0]
		}
	} else {
		body, ok := extractLiteral(text, '{', '}')
		if !ok {
			return entities.AspectRecord{}, fmt.Errorf("%w: unterminated mapping literal", ErrMalformed)
		}
		value, err = decodeLiteral(body)
	}
	if err != nil {
		return entities.AspectRecord{}, err
	}
	return validateRecord(value, 0)
}

// Validate checks an in-memory checklist against the same rules the parser applies.
func Validate(c entities.Checklist) error {
	for i, r := range c {
		if strings.TrimSpace(r.Aspect) == "" {
			return fmt.Errorf("%w: record %d: empty aspect", ErrMalformed, i)
		}
		if r.Questions == nil {
			return fmt.Errorf("%w: record %d: questions missing", ErrMalformed, i)
		}
		for j, q := range r.Questions {
			if strings.TrimSpace(q) == "" {
				return fmt.Errorf("%w: record %d: question %d is empty", ErrMalformed, i, j)
			}
		}
	}
	return nil
}

func stripFences(raw string) string {
	if m := fencePattern.FindStringSubmatch(raw); len(m) > 1 {
		return m[1]
	}
	return raw
}

// extractLiteral returns the text from the first open delimiter to the last close delimiter.
func extractLiteral(raw string, open, close byte) (string, bool) {
	text := stripFences(raw)
	start := strings.IndexByte(text, open)
	end := strings.LastIndexByte(text, close)
	if start < 0 || end <= start {
		return "", false
	}
	return text[start : end+1], true
}

// decodeLiteral prefers strict JSON. YAML rejects raw control characters such as
// U+0085 and U+007F that JSON strings may carry, so it only sees non-JSON literals.
func decodeLiteral(body string) (any, error) {
	if value, ok := decodeJSON([]byte(body)); ok {
		return value, nil
	}
	var value any
	if err := yaml.Unmarshal([]byte(normalizeLiteral(body)), &value); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return value, nil
}

func decodeJSON(data []byte) (any, bool) {
	if !json.Valid(data) {
		return nil, false
	}
	var value any
	if err := json.Unmarshal(data, &value); err != nil {
		return nil, false
	}
	return value, true
}

func validate(value any) (entities.Checklist, error) {
	list, ok := value.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: top level is %T, want a list", ErrMalformed, value)
	}
	if len(list) == 0 {
		return nil, fmt.Errorf("%w: empty list", ErrMalformed)
	}
	out := make(entities.Checklist, 0, len(list))
	for i, item := range list {
		rec, err := validateRecord(item, i)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func validateRecord(item any, i int) (entities.AspectRecord, error) {
	m, ok := item.(map[string]any)
	if !ok {
		return entities.AspectRecord{}, fmt.Errorf("%w: record %d is %T, want a mapping", ErrMalformed, i, item)
	}
	aspect, ok := m["aspect"].(string)
	if !ok || strings.TrimSpace(aspect) == "" {
		return entities.AspectRecord{}, fmt.Errorf("%w: record %d: aspect must be a non-empty string", ErrMalformed, i)
	}
	rawQuestions, ok := m["questions"].([]any)
	if !ok {
		return entities.AspectRecord{}, fmt.Errorf("%w: record %d (%s): questions must be a list", ErrMalformed, i, aspect)
	}
	questions := make([]string, 0, len(rawQuestions))
	for j, q := range rawQuestions {
		s, ok := q.(string)
		if !ok || strings.TrimSpace(s) == "" {
			return entities.AspectRecord{}, fmt.Errorf("%w: record %d (%s): question %d must be a non-empty string", ErrMalformed, i, aspect, j)
		}
		questions = append(questions, s)
	}
	return entities.AspectRecord{Aspect: aspect, Questions: questions}, nil
}

// normalizeLiteral rewrites Python escapes inside single-quoted strings into YAML
// single-quoted form and turns tabs outside strings into spaces, which YAML rejects.
// JSON escapes in double-quoted strings are valid YAML and pass through.
func normalizeLiteral(s string) string {
	if !strings.ContainsAny(s, "\\\t") {
		return s
	}
	var sb strings.Builder
	sb.Grow(len(s))
	const (
		plain = iota
		single
		double
	)
	state := plain
	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch state {
		case plain:
			switch ch {
			case '\'':
				state = single
			case '"':
				state = double
			case '\t':
				ch = ' '
			}
			sb.WriteByte(ch)
		case double:
			if ch == '\\' && i+1 < len(s) && s[i+1] == '\'' {
				i++
				sb.WriteByte('\'')
				continue
			}
			sb.WriteByte(ch)
			if ch == '\\' && i+1 < len(s) {
				i++
				sb.WriteByte(s[i])
			} else if ch == '"' {
				state = plain
			}
		case single:
			if ch == '\\' && i+1 < len(s) {
				i++
				switch s[i] {
				case '\'':
					sb.WriteString("''")
				case 'n':
					sb.WriteByte('\n')
				case 't':
					sb.WriteByte('\t')
				default:
					sb.WriteByte(s[i])
				}
				continue
			}
			sb.WriteByte(ch)
			if ch == '\'' {
				state = plain
			}
		}
	}
	return sb.String()
}

func head(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
