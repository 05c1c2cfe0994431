package protocol

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

const sampleProtocol = `# Deployment Checklist

Walks a release from a green build to production.

Duration: 2 hours
Complexity: Medium

## **Phase 1: Setup**
- Check out the release tag
- Verify CI is green

## **Phase 2: Execute**
- [ ] Build artifacts
- [ ] Push to staging

## **Phase 3: Cleanup**
Some prose that is not a step.
- Remove temp artifacts
- Close the release ticket
`

func TestParsePhases_WellFormed(t *testing.T) {
	phases := ParsePhases(sampleProtocol)

	want := []Phase{
		{Index: 1, Title: "Setup", Steps: []string{"Check out the release tag", "Verify CI is green"}},
		{Index: 2, Title: "Execute", Steps: []string{"Build artifacts", "Push to staging"}},
		{Index: 3, Title: "Cleanup", Steps: []string{"Remove temp artifacts", "Close the release ticket"}},
	}

	if diff := cmp.Diff(want, phases); diff != "" {
		t.Errorf("ParsePhases mismatch (-want +got):\n%s", diff)
	}
}

func TestParsePhases_ZeroHeadersIsValid(t *testing.T) {
	phases := ParsePhases("# Just A Document\n\nNo phases here.\n- a stray bullet\n")
	if phases == nil {
		t.Fatal("expected empty slice, got nil")
	}
	if len(phases) != 0 {
		t.Errorf("expected 0 phases, got %d", len(phases))
	}
}

func TestParsePhases_EmptyInput(t *testing.T) {
	if got := ParsePhases(""); len(got) != 0 {
		t.Errorf("expected 0 phases for empty input, got %d", len(got))
	}
}

func TestParsePhases_IndexesContiguousRegardlessOfOrdinals(t *testing.T) {
	content := "## Phase 3: First\n- a\n\n## Phase 9: Second\n- b\n\n## Phase 9: Third\n- c\n"
	phases := ParsePhases(content)

	if len(phases) != 3 {
		t.Fatalf("expected 3 phases, got %d", len(phases))
	}
	for i, p := range phases {
		if p.Index != i+1 {
			t.Errorf("phase %d: expected index %d, got %d", i, i+1, p.Index)
		}
	}
	if phases[0].Title != "First" || phases[2].Title != "Third" {
		t.Errorf("titles not preserved in document order: %+v", phases)
	}
}

func TestParsePhases_HeaderVariants(t *testing.T) {
	tests := []struct {
		name   string
		line   string
		match  bool
		title  string
	}{
		{"plain", "## Phase 1: Setup", true, "Setup"},
		{"bold", "## **Phase 1: Setup**", true, "Setup"},
		{"lowercase", "## phase 2: review", true, "review"},
		{"uppercase", "## PHASE 4: SHIP IT", true, "SHIP IT"},
		{"deeper heading", "### Phase 1: Nested", true, "Nested"},
		{"dash separator", "## Phase 1 - Setup", true, "Setup"},
		{"dot separator", "## Phase 2. Review", true, "Review"},
		{"h1 is not a phase", "# Phase 1: Title", false, ""},
		{"no ordinal", "## Phase: Setup", false, ""},
		{"phase mid-sentence", "the next phase 1: begins", false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			phases := ParsePhases(tt.line + "\n- step\n")
			if tt.match {
				if len(phases) != 1 {
					t.Fatalf("expected header to match, got %d phases", len(phases))
				}
				if phases[0].Title != tt.title {
					t.Errorf("expected title %q, got %q", tt.title, phases[0].Title)
				}
			} else if len(phases) != 0 {
				t.Errorf("expected no match, got %+v", phases)
			}
		})
	}
}

func TestParsePhases_ProseAndSubheadingsIgnored(t *testing.T) {
	content := `## Phase 1: Mixed
Intro prose for the phase.
### Notes
- real step one
more prose
* real step two
`
	phases := ParsePhases(content)
	if len(phases) != 1 {
		t.Fatalf("expected 1 phase, got %d", len(phases))
	}
	want := []string{"real step one", "real step two"}
	if diff := cmp.Diff(want, phases[0].Steps); diff != "" {
		t.Errorf("steps mismatch (-want +got):\n%s", diff)
	}
}

func TestCountPhaseHeaders(t *testing.T) {
	if n := CountPhaseHeaders(sampleProtocol); n != 3 {
		t.Errorf("expected 3 headers, got %d", n)
	}
	if n := CountPhaseHeaders("no phases at all"); n != 0 {
		t.Errorf("expected 0 headers, got %d", n)
	}
}

func TestDocumentTitle(t *testing.T) {
	if got := DocumentTitle(sampleProtocol); got != "Deployment Checklist" {
		t.Errorf("expected title from H1, got %q", got)
	}
	if got := DocumentTitle("no title here\n## Phase 1: X\n# Late Title\n"); got != "" {
		t.Errorf("expected no title past the first phase header, got %q", got)
	}
}

func TestDocumentDescription(t *testing.T) {
	if got := DocumentDescription(sampleProtocol, 200); got != "Walks a release from a green build to production." {
		t.Errorf("unexpected description: %q", got)
	}

	// Truncated to the rune limit
	if got := DocumentDescription(sampleProtocol, 10); got != "Walks a re" {
		t.Errorf("expected truncated description, got %q", got)
	}

	// No prose before the first header
	if got := DocumentDescription("# Title\n## Phase 1: X\nprose after\n", 200); got != "" {
		t.Errorf("expected empty description, got %q", got)
	}
}

func TestExtractMetadata(t *testing.T) {
	meta := ExtractMetadata(sampleProtocol)
	if meta["estimated_duration"] != "2 hours" {
		t.Errorf("expected estimated_duration, got %v", meta)
	}
	if meta["complexity"] != "Medium" {
		t.Errorf("expected complexity, got %v", meta)
	}
	if _, ok := meta["required_roles"]; ok {
		t.Error("did not expect required_roles")
	}
}
