package carriers

import (
	"regexp"
	"strings"
)

// PageContent is the captured content of a loaded tracking page. Extraction
// strategies are pure functions over it, which keeps site-specific heuristics
// out of control flow and makes each one testable in isolation.
type PageContent struct {
	// Text is the visible text of the page body.
	Text string
	// Title is the document title.
	Title string
}

// Strategy attempts to pull a status string out of page content. It returns
// "" when it finds nothing; the caller tries the next strategy in priority
// order.
type Strategy func(page PageContent) string

var (
	statusLabelPattern = regexp.MustCompile(`(?i)^(?:current\s+|last\s+|delivery\s+|tracking\s+)?status:?$`)
	statusLinePattern  = regexp.MustCompile(`(?i)(?:tracking\s+|current\s+|last\s+|delivery\s+)?status[:\s]\s*(.+)$`)
	cellSplitPattern   = regexp.MustCompile(`\t+|\s{2,}`)
)

// pageLines splits page text into trimmed, non-empty lines.
func pageLines(text string) []string {
	raw := strings.Split(text, "\n")
	lines := make([]string, 0, len(raw))
	for _, line := range raw {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			lines = append(lines, trimmed)
		}
	}
	return lines
}

// LabelAdjacent finds a line that is exactly a status label (e.g. "Status" or
// "Last Status:") and returns the next non-empty line. This is the
// most-specific strategy: carrier pages commonly render the label and value
// as adjacent elements.
func LabelAdjacent(labels ...string) Strategy {
	return func(page PageContent) string {
		lines := pageLines(page.Text)
		for i, line := range lines {
			if !matchesLabel(line, labels) {
				continue
			}
			if i+1 < len(lines) {
				return firstLine(lines[i+1])
			}
		}
		return ""
	}
}

func matchesLabel(line string, labels []string) bool {
	if len(labels) == 0 {
		return statusLabelPattern.MatchString(line)
	}
	stripped := strings.TrimSuffix(line, ":")
	for _, label := range labels {
		if strings.EqualFold(stripped, label) {
			return true
		}
	}
	return false
}

// TableRowScan walks lines that look like table rows (tab- or gap-separated
// cells), looking for a cell labeled "status" and returning the cell after it.
func TableRowScan() Strategy {
	return func(page PageContent) string {
		for _, line := range pageLines(page.Text) {
			cells := cellSplitPattern.Split(line, -1)
			if len(cells) < 2 {
				continue
			}
			for i := 0; i < len(cells)-1; i++ {
				if statusLabelPattern.MatchString(strings.TrimSpace(cells[i])) {
					if value := strings.TrimSpace(cells[i+1]); value != "" {
						return value
					}
				}
			}
		}
		return ""
	}
}

// StatusLine scans for free-form "Status: <value>" lines.
func StatusLine() Strategy {
	return func(page PageContent) string {
		for _, line := range pageLines(page.Text) {
			if match := statusLinePattern.FindStringSubmatch(line); match != nil {
				if value := strings.TrimSpace(match[1]); value != "" {
					return value
				}
			}
		}
		return ""
	}
}

// KeywordScan scans every line for the first known status keyword, matched on
// word boundaries, and returns the keyword in its canonical casing.
func KeywordScan(keywords []string) Strategy {
	patterns := compileKeywordPatterns(keywords)
	return func(page PageContent) string {
		for _, line := range pageLines(page.Text) {
			for i, pattern := range patterns {
				if pattern.MatchString(line) {
					return keywords[i]
				}
			}
		}
		return ""
	}
}

// LinePrefix returns the first keyword that an entire line equals or starts
// with. Some trackers render the current status as a standalone line.
func LinePrefix(keywords []string) Strategy {
	return func(page PageContent) string {
		for _, line := range pageLines(page.Text) {
			for _, kw := range keywords {
				if strings.EqualFold(line, kw) || hasFoldPrefix(line, kw) {
					return kw
				}
			}
		}
		return ""
	}
}

// MarkerOffset locates a line containing marker and returns the line `offset`
// below it when that line starts with one of the keywords. Aggregator sites
// render the carrier name as a heading with the status a fixed number of
// lines beneath.
func MarkerOffset(marker string, offset int, keywords []string) Strategy {
	return func(page PageContent) string {
		lines := pageLines(page.Text)
		for i, line := range lines {
			if !strings.Contains(line, marker) {
				continue
			}
			if i+offset >= len(lines) {
				continue
			}
			candidate := lines[i+offset]
			for _, kw := range keywords {
				if hasFoldPrefix(candidate, kw) {
					return candidate
				}
			}
		}
		return ""
	}
}

// TitleKeyword is the last-resort strategy: it returns a known keyword found
// in the page title.
func TitleKeyword(keywords []string) Strategy {
	patterns := compileKeywordPatterns(keywords)
	return func(page PageContent) string {
		for i, pattern := range patterns {
			if pattern.MatchString(page.Title) {
				return keywords[i]
			}
		}
		return ""
	}
}

// extractStatus runs strategies in priority order and returns the first hit.
func extractStatus(page PageContent, strategies []Strategy) string {
	for _, strategy := range strategies {
		if status := strategy(page); status != "" {
			return status
		}
	}
	return ""
}

func compileKeywordPatterns(keywords []string) []*regexp.Regexp {
	patterns := make([]*regexp.Regexp, len(keywords))
	for i, kw := range keywords {
		patterns[i] = regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(kw) + `\b`)
	}
	return patterns
}

func hasFoldPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}
