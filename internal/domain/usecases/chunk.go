package usecases

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// headingPattern matches ATX headings of levels 1-4.
var headingPattern = regexp.MustCompile(`^(#{1,4})[ \t]+(.+?)[ \t]*#*[ \t]*$`)

// section is a run of markdown text under one heading path.
type section struct {
	path string
	body string
}

// splitSections splits markdown by H1-H4 headings outside code fences.
// ok is false when the text has no headings at all.
func splitSections(text string) (sections []section, ok bool) {
	var (
		stack   [4]string
		body    []string
		inFence bool
		fence   string
		path    string
	)

	flush := func() {
		b := strings.TrimSpace(strings.Join(body, "\n"))
		if b != "" {
			sections = append(sections, section{path: path, body: b})
		}
		body = body[:0]
	}

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if marker := fenceMarker(trimmed); marker != "" {
			switch {
			case !inFence:
				inFence, fence = true, marker
			case strings.HasPrefix(trimmed, fence):
				inFence = false
			}
			body = append(body, line)
			continue
		}

		if !inFence {
			if m := headingPattern.FindStringSubmatch(trimmed); m != nil {
				flush()
				ok = true
				level := len(m[1])
				stack[level-1] = m[2]
				for i := level; i < len(stack); i++ {
					stack[i] = ""
				}
				path = headingPath(stack[:level])
				continue
			}
		}
		body = append(body, line)
	}
	flush()
	return sections, ok
}

func fenceMarker(line string) string {
	switch {
	case strings.HasPrefix(line, "```"):
		return "```"
	case strings.HasPrefix(line, "~~~"):
		return "~~~"
	}
	return ""
}

func headingPath(levels []string) string {
	parts := make([]string, 0, len(levels))
	for _, h := range levels {
		if h != "" {
			parts = append(parts, h)
		}
	}
	return strings.Join(parts, " > ")
}

// splitWindows splits text into chunks of at most size runes, overlapping by up to overlap runes.
// Paragraphs are kept whole when they fit; longer ones are cut at whitespace.
func splitWindows(text string, size, overlap int) []string {
	var pieces []string
	for _, p := range strings.Split(text, "\n\n") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if utf8.RuneCountInString(p) > size {
			pieces = append(pieces, hardSplit(p, size, overlap)...)
		} else {
			pieces = append(pieces, p)
		}
	}
	return mergePieces(pieces, size, overlap, "\n\n")
}

// mergePieces packs pieces into chunks up to size runes. After each chunk the
// trailing pieces totalling at most overlap runes start the next one.
func mergePieces(pieces []string, size, overlap int, sep string) []string {
	var (
		chunks []string
		cur    []string
		total  int
	)
	sepLen := utf8.RuneCountInString(sep)

	for _, p := range pieces {
		l := utf8.RuneCountInString(p)
		extra := l
		if len(cur) > 0 {
			extra += sepLen
		}

		if total+extra > size && len(cur) > 0 {
			chunks = append(chunks, strings.Join(cur, sep))
			for len(cur) > 0 && (total > overlap || total+sepLen+l > size) {
				total -= utf8.RuneCountInString(cur[0])
				if len(cur) > 1 {
					total -= sepLen
				}
				cur = cur[1:]
			}
		}

		if len(cur) > 0 {
			total += sepLen
		}
		cur = append(cur, p)
		total += l
	}
	if len(cur) > 0 {
		chunks = append(chunks, strings.Join(cur, sep))
	}
	return chunks
}

// hardSplit cuts a single long paragraph into overlapping windows, preferring whitespace breaks.
func hardSplit(text string, size, overlap int) []string {
	runes := []rune(text)
	n := len(runes)
	var out []string

	start := 0
	for start < n {
		for start < n && unicode.IsSpace(runes[start]) {
			start++
		}
		if start >= n {
			break
		}

		end := start + size
		if end >= n {
			end = n
		} else {
			for i := end; i > start+size/2; i-- {
				if unicode.IsSpace(runes[i]) {
					end = i
					break
				}
			}
		}

		if chunk := strings.TrimSpace(string(runes[start:end])); chunk != "" {
			out = append(out, chunk)
		}
		if end == n {
			break
		}

		next := end - overlap
		if next <= start {
			next = end
		}
		start = next
	}
	return out
}
