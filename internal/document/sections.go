package document

import (
	"regexp"
	"strings"

	"github.com/Jmiracle76/orchestrator-agent-sub000/internal/markers"
)

// ContentType is the inferred shape of a subsection's content.
type ContentType string

const (
	ContentProse   ContentType = "prose"
	ContentBullets ContentType = "bullets"
	ContentTable   ContentType = "table"
)

// Section is a contiguous region introduced by a section marker. It ends at
// the next section marker, the workflow order block, a review gate result
// marker, or the end of the document.
type Section struct {
	ID    string
	Start int // line of the section marker
	End   int // exclusive

	// Body is [BodyStart, BodyEnd): after the marker and heading block, up to
	// the trailing divider.
	BodyStart int
	BodyEnd   int

	Locked   bool
	LockLine int // -1 when no valid lock marker applies

	Placeholders []int
	Subsections  []Subsection
}

// Subsection is a region inside a section body introduced by a subsection
// marker, running to the next subsection marker or the end of the body.
type Subsection struct {
	ID          string
	Line        int
	BodyStart   int
	End         int
	ContentType ContentType
}

// HasPlaceholder reports whether the section span contains a placeholder.
func (s Section) HasPlaceholder() bool {
	return len(s.Placeholders) > 0
}

// Subsection finds a subsection by id.
func (s Section) Subsection(id string) (Subsection, bool) {
	for _, sub := range s.Subsections {
		if sub.ID == id {
			return sub, true
		}
	}
	return Subsection{}, false
}

func sections(lines []string, res *markers.Result) []Section {
	secMarkers := res.Of(markers.KindSection)
	if len(secMarkers) == 0 {
		return nil
	}

	// Lines that terminate a section span without starting a new one.
	var stops []int
	for _, m := range secMarkers {
		stops = append(stops, m.Line)
	}
	for _, o := range res.Orders {
		stops = append(stops, o.Start)
	}
	for _, m := range res.Of(markers.KindGateResult) {
		stops = append(stops, m.Line)
	}
	for _, mf := range res.Malformed {
		if mf.Kind == markers.KindSection {
			stops = append(stops, mf.Line)
		}
	}

	lockLines := make(map[int]bool)
	for _, m := range res.Of(markers.KindLock) {
		lockLines[m.Line] = true
	}

	out := make([]Section, 0, len(secMarkers))
	for _, m := range secMarkers {
		end := len(lines)
		for _, s := range stops {
			if s > m.Line && s < end {
				end = s
			}
		}
		sec := Section{ID: m.ID, Start: m.Line, End: end, LockLine: -1}

		// Last valid lock marker for this section before the span end wins.
		for _, lk := range res.Of(markers.KindLock) {
			if lk.ID == sec.ID && lk.LockValid && lk.Line < end {
				sec.Locked = lk.Lock
				sec.LockLine = lk.Line
			}
		}

		bodyStart := m.Line + 1
		for bodyStart < end && (markers.IsHeading(lines[bodyStart]) || lockLines[bodyStart]) {
			bodyStart++
		}
		sec.BodyStart = bodyStart
		sec.BodyEnd = lastDivider(lines, bodyStart, end)

		for _, p := range res.Placeholders {
			if p >= sec.Start && p < sec.End {
				sec.Placeholders = append(sec.Placeholders, p)
			}
		}

		var subs []markers.Marker
		for _, sm := range res.Of(markers.KindSubsection) {
			if sm.Line >= sec.BodyStart && sm.Line < sec.BodyEnd {
				subs = append(subs, sm)
			}
		}
		for i, sm := range subs {
			subEnd := sec.BodyEnd
			if i+1 < len(subs) {
				subEnd = subs[i+1].Line
			}
			subBody := sm.Line + 1
			for subBody < subEnd && markers.IsHeading(lines[subBody]) {
				subBody++
			}
			sec.Subsections = append(sec.Subsections, Subsection{
				ID:          sm.ID,
				Line:        sm.Line,
				BodyStart:   subBody,
				End:         subEnd,
				ContentType: InferContentType(lines[subBody:subEnd]),
			})
		}
		out = append(out, sec)
	}
	return out
}

// lastDivider returns the index of the last "---" line in [start, end)
// outside fenced code, or end when there is none.
func lastDivider(lines []string, start, end int) int {
	found := end
	inFence := false
	for i := start; i < end; i++ {
		if markers.IsFence(lines[i]) {
			inFence = !inFence
			continue
		}
		if !inFence && markers.IsDivider(lines[i]) {
			found = i
		}
	}
	return found
}

var bulletRe = regexp.MustCompile(`^([-*+]|\d+[.)])\s`)

// InferContentType guesses whether content is a table, a bullet list or prose.
func InferContentType(lines []string) ContentType {
	nonBlank, bullets := 0, 0
	for _, l := range lines {
		t := strings.TrimSpace(markers.StripPlaceholder(l))
		if t == "" || markers.IsHeading(t) {
			continue
		}
		if strings.HasPrefix(t, "|") || strings.HasPrefix(t, "<!-- table:") {
			return ContentTable
		}
		nonBlank++
		if bulletRe.MatchString(t) {
			bullets++
		}
	}
	if nonBlank > 0 && bullets*2 > nonBlank {
		return ContentBullets
	}
	return ContentProse
}
