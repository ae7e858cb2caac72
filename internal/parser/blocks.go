package parser

import "strings"

// block is a contiguous run of lines belonging to one transaction, starting
// at a short-date line.
type block struct {
	lines []string
}

// blockScanner segments the post-anchor line stream into blocks. It replaces
// the original's closure-over-mutable-state flush logic with an explicit
// Feed/Finish state machine; each parse call owns its own scanner, so
// concurrent parses of independent statements need no coordination.
type blockScanner struct {
	pats    *PatternTable
	current []string
	section string
}

func newBlockScanner(pats *PatternTable) *blockScanner {
	return &blockScanner{pats: pats}
}

// Feed consumes one line and returns a completed block when the line starts
// a new one. Section-header lines update the current section label and never
// belong to a block; other non-blank lines extend the open block and are
// ignored when none is open.
func (s *blockScanner) Feed(line string) (*block, bool) {
	t := strings.TrimSpace(line)
	if t == "" {
		return nil, false
	}

	if !s.pats.ShortDate.MatchString(t) && s.pats.Section.MatchString(t) {
		s.section = normalizeSection(t)
		return nil, false
	}

	if s.pats.ShortDate.MatchString(t) {
		done := s.take()
		s.current = []string{t}
		return done, done != nil
	}

	if s.current != nil {
		s.current = append(s.current, t)
	}
	return nil, false
}

// Finish flushes the last open block at end of stream.
func (s *blockScanner) Finish() (*block, bool) {
	done := s.take()
	return done, done != nil
}

// Section is the label attached to transactions flushed from this point on.
func (s *blockScanner) Section() string {
	return s.section
}

func (s *blockScanner) take() *block {
	if len(s.current) == 0 {
		return nil
	}
	b := &block{lines: s.current}
	s.current = nil
	return b
}

// linesAfterAnchor returns the line stream starting after the anchor, or all
// lines when the anchor is absent.
func linesAfterAnchor(pats *PatternTable, text string) []string {
	lines := strings.Split(text, "\n")
	for i, raw := range lines {
		if pats.Anchor.MatchString(raw) {
			return lines[i+1:]
		}
	}
	return lines
}

// normalizeSection maps a raw section-header line to its display label,
// falling back to title case.
func normalizeSection(s string) string {
	base := Normalize(s)
	for _, entry := range sectionLabels {
		if entry.re.MatchString(base) {
			return entry.label
		}
	}
	words := strings.Fields(strings.ToLower(base))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
