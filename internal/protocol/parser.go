package protocol

import (
	"regexp"
	"strings"
)

// phaseHeaderRe matches a level-2 (or deeper) heading introducing a phase:
// "## Phase 3: Title", with or without ** emphasis around the text and with
// ":", "." or "-" separating the ordinal from the title. The word "Phase" is
// matched case-insensitively.
var phaseHeaderRe = regexp.MustCompile(`(?i)^#{2,}\s*\**\s*phase\s+(\d+)\s*[:.\-]\s*(.+?)\s*\**\s*$`)

// bulletRe matches a step bullet, optionally a "- [ ]" checklist item.
var bulletRe = regexp.MustCompile(`^\s*[-*]\s+(?:\[[ xX]\]\s*)?(.+?)\s*$`)

// titleRe matches the document's H1 title.
var titleRe = regexp.MustCompile(`^#\s+(.+?)\s*$`)

// headingRe matches any markdown heading line.
var headingRe = regexp.MustCompile(`^#{1,6}\s`)

// metadataKeys are the "Key: value" document lines lifted into Protocol.Metadata.
var metadataKeys = map[string]string{
	"duration":       "estimated_duration",
	"complexity":     "complexity",
	"required roles": "required_roles",
	"required role":  "required_roles",
}

var metadataLineRe = regexp.MustCompile(`(?i)^\**\s*(duration|complexity|required roles?)\s*\**\s*:\s*(.+?)\s*$`)

// ParsePhases turns raw document text into an ordered sequence of phases.
// It is a pure function: line-oriented, no side effects.
//
// All lines between one phase header and the next belong to that phase;
// bullet lines become steps, prose lines are skipped. Text before the first
// header is not a phase. Zero recognized headers is not an error and yields
// an empty (non-nil) slice. Phase indexes are assigned 1..N in document
// order; the ordinal written in the heading is not trusted to be contiguous.
func ParsePhases(content string) []Phase {
	phases := []Phase{}
	lines := strings.Split(content, "\n")

	var current *Phase
	for _, line := range lines {
		if m := phaseHeaderRe.FindStringSubmatch(line); m != nil {
			if current != nil {
				phases = append(phases, *current)
			}
			current = &Phase{
				Index: len(phases) + 1,
				Title: strings.TrimSpace(m[2]),
				Steps: []string{},
			}
			continue
		}

		if current == nil {
			continue // preamble before the first phase header
		}
		if headingRe.MatchString(line) {
			continue // sub-headings within a phase are not steps
		}
		if m := bulletRe.FindStringSubmatch(line); m != nil {
			current.Steps = append(current.Steps, m[1])
		}
	}
	if current != nil {
		phases = append(phases, *current)
	}

	return phases
}

// CountPhaseHeaders returns the number of recognizable phase headers without
// building the full phase structure. Used for cheap listing before a protocol
// has been resolved.
func CountPhaseHeaders(content string) int {
	n := 0
	for _, line := range strings.Split(content, "\n") {
		if phaseHeaderRe.MatchString(line) {
			n++
		}
	}
	return n
}

// DocumentTitle returns the H1 title of the document, or "" if none exists.
func DocumentTitle(content string) string {
	for _, line := range strings.Split(content, "\n") {
		if m := titleRe.FindStringSubmatch(line); m != nil {
			return strings.TrimSpace(strings.Trim(m[1], "*"))
		}
		// Only scan the preamble; a phase header ends the search.
		if phaseHeaderRe.MatchString(line) {
			break
		}
	}
	return ""
}

// DocumentDescription returns the first non-empty prose line appearing before
// the first phase header, truncated to limit runes. Headings and bullets do
// not count as prose. Returns "" when no such line exists.
func DocumentDescription(content string, limit int) string {
	for _, line := range strings.Split(content, "\n") {
		if phaseHeaderRe.MatchString(line) {
			break
		}
		if headingRe.MatchString(line) || bulletRe.MatchString(line) {
			continue
		}
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		return truncateRunes(trimmed, limit)
	}
	return ""
}

// ExtractMetadata lifts well-known "Key: value" lines out of the document.
func ExtractMetadata(content string) map[string]string {
	meta := make(map[string]string)
	for _, line := range strings.Split(content, "\n") {
		m := metadataLineRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		key, ok := metadataKeys[strings.ToLower(m[1])]
		if !ok {
			continue
		}
		if _, seen := meta[key]; !seen {
			meta[key] = strings.TrimSpace(m[2])
		}
	}
	return meta
}

func truncateRunes(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
