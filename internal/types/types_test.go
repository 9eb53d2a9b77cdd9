package types

import (
	"testing"
)

func TestQuestionStatusIsValid(t *testing.T) {
	tests := []struct {
		status QuestionStatus
		valid  bool
	}{
		{StatusOpen, true},
		{StatusDeferred, true},
		{StatusResolved, true},
		{QuestionStatus("open"), false},
		{QuestionStatus(""), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if got := tt.status.IsValid(); got != tt.valid {
				t.Errorf("QuestionStatus(%q).IsValid() = %v, want %v", tt.status, got, tt.valid)
			}
		})
	}
}

func TestParseQuestionStatus(t *testing.T) {
	tests := []struct {
		in      string
		want    QuestionStatus
		wantErr bool
	}{
		{"Open", StatusOpen, false},
		{"  resolved ", StatusResolved, false},
		{"DEFERRED", StatusDeferred, false},
		{"", StatusOpen, false},
		{"Closed", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseQuestionStatus(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseQuestionStatus(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseQuestionStatus(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestIsAnswerSentinel(t *testing.T) {
	for _, s := range []string{"", "  ", "-", "–", "—", "Pending", "TBD", " tbd "} {
		if !IsAnswerSentinel(s) {
			t.Errorf("IsAnswerSentinel(%q) = false, want true", s)
		}
	}
	for _, s := range []string{"no", "0", "pending review", "N/A"} {
		if IsAnswerSentinel(s) {
			t.Errorf("IsAnswerSentinel(%q) = true, want false", s)
		}
	}
}

func TestQuestionAnsweredState(t *testing.T) {
	tests := []struct {
		name       string
		q          Question
		answered   bool
		unanswered bool
	}{
		{"open without answer", Question{Status: StatusOpen, Answer: "-"}, false, true},
		{"open with answer", Question{Status: StatusOpen, Answer: "Yes"}, true, false},
		{"deferred with answer", Question{Status: StatusDeferred, Answer: "Later"}, true, false},
		{"deferred without answer", Question{Status: StatusDeferred}, false, true},
		{"resolved", Question{Status: StatusResolved, Answer: "Done"}, false, false},
		{"resolved without answer", Question{Status: StatusResolved}, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.q.IsAnswered(); got != tt.answered {
				t.Errorf("IsAnswered() = %v, want %v", got, tt.answered)
			}
			if got := tt.q.IsUnanswered(); got != tt.unanswered {
				t.Errorf("IsUnanswered() = %v, want %v", got, tt.unanswered)
			}
		})
	}
}

func TestDedupKey(t *testing.T) {
	a := Question{Text: "Who  are the USERS?", Target: "goals"}
	b := Question{Text: " who are the users? ", Target: "goals"}
	c := Question{Text: "Who are the users?", Target: "scope"}

	if a.DedupKey() != b.DedupKey() {
		t.Errorf("expected %q and %q to share a key", a.Text, b.Text)
	}
	if a.DedupKey() == c.DedupKey() {
		t.Error("questions for different sections must not share a key")
	}
}

func TestQuestionNumber(t *testing.T) {
	tests := []struct {
		id   string
		want int
		ok   bool
	}{
		{"Q-001", 1, true},
		{"Q-042", 42, true},
		{"Q-1000", 1000, true},
		{"q12", 12, true},
		{"Q-", 0, false},
		{"", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			got, ok := QuestionNumber(tt.id)
			if got != tt.want || ok != tt.ok {
				t.Errorf("QuestionNumber(%q) = (%d, %v), want (%d, %v)", tt.id, got, ok, tt.want, tt.ok)
			}
		})
	}

	if got := FormatQuestionID(7); got != "Q-007" {
		t.Errorf("FormatQuestionID(7) = %q, want Q-007", got)
	}
	if got := FormatQuestionID(1234); got != "Q-1234" {
		t.Errorf("FormatQuestionID(1234) = %q, want Q-1234", got)
	}
}

func TestGateTargets(t *testing.T) {
	if !IsReviewGate("review_gate:coherence") {
		t.Error("expected review_gate:coherence to be a gate")
	}
	if IsReviewGate("goals") {
		t.Error("goals is not a gate")
	}
	if got := GateName("review_gate:coherence"); got != "coherence" {
		t.Errorf("GateName() = %q, want coherence", got)
	}
	for _, in := range []string{"coherence", "review_gate:coherence"} {
		if got := GateTarget(in); got != "review_gate:coherence" {
			t.Errorf("GateTarget(%q) = %q, want review_gate:coherence", in, got)
		}
	}
}

func TestParseMode(t *testing.T) {
	for _, s := range []string{"integrate_then_questions", "questions_then_integrate", " review_gate "} {
		if _, err := ParseMode(s); err != nil {
			t.Errorf("ParseMode(%q) unexpected error: %v", s, err)
		}
	}
	if _, err := ParseMode("freeform"); err == nil {
		t.Error("ParseMode(freeform) expected error")
	}
	if !ModeIntegrateThenQuestions.FollowUpQuestions() {
		t.Error("integrate_then_questions should allow follow-up questions")
	}
	if ModeQuestionsThenIntegrate.FollowUpQuestions() {
		t.Error("questions_then_integrate should not allow follow-up questions")
	}
}

func TestParseScope(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"current_section", "current_section", false},
		{"all_prior_sections", "all_prior_sections", false},
		{"entire_document", "entire_document", false},
		{"sections:goals, scope,,", "sections:goals,scope", false},
		{"sections:", "", true},
		{"everything", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseScope(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseScope(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if !tt.wantErr && got.String() != tt.want {
				t.Errorf("ParseScope(%q) = %q, want %q", tt.in, got.String(), tt.want)
			}
		})
	}
}

func TestParseRegistryEnums(t *testing.T) {
	if _, err := ParseOutputFormat("bullets"); err != nil {
		t.Errorf("ParseOutputFormat(bullets): %v", err)
	}
	if _, err := ParseOutputFormat("table"); err == nil {
		t.Error("ParseOutputFormat(table) expected error")
	}
	if _, err := ParseApplyPolicy("if_validation_passes"); err != nil {
		t.Errorf("ParseApplyPolicy(if_validation_passes): %v", err)
	}
	if _, err := ParseApplyPolicy("sometimes"); err == nil {
		t.Error("ParseApplyPolicy(sometimes) expected error")
	}
}

func TestDefaultConfigs(t *testing.T) {
	h := DefaultHandlerConfig()
	if h.Mode != ModeIntegrateThenQuestions || h.Scope.Kind != ScopeCurrentSection || h.AutoApplyPatches != ApplyNever {
		t.Errorf("unexpected default handler config %+v", h)
	}
	g := DefaultGateConfig()
	if g.Mode != ModeReviewGate || g.Scope.Kind != ScopeAllPriorSections {
		t.Errorf("unexpected default gate config %+v", g)
	}
}

func TestNormalizeSeverity(t *testing.T) {
	tests := map[string]Severity{
		"blocker":    SeverityBlocker,
		"CRITICAL":   SeverityBlocker,
		"error":      SeverityBlocker,
		"warning":    SeverityWarning,
		"minor":      SeverityWarning,
		"":           SeverityWarning,
		"suggestion": SeverityInfo,
		" Info ":     SeverityInfo,
	}
	for in, want := range tests {
		if got := NormalizeSeverity(in); got != want {
			t.Errorf("NormalizeSeverity(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestReviewGateResultRecord(t *testing.T) {
	r := &ReviewGateResult{
		GateID: "coherence",
		Passed: false,
		Issues: []Issue{
			{Severity: SeverityBlocker, Description: "contradiction"},
			{Severity: SeverityWarning, Description: "vague"},
			{Severity: SeverityWarning, Description: "long"},
			{Severity: SeverityInfo, Description: "typo"},
		},
	}
	rec := r.Record()
	if rec.Status != GateFailed || rec.Issues != 1 || rec.Warnings != 2 || rec.GateID != "coherence" {
		t.Errorf("unexpected record %+v", rec)
	}

	r.Passed = true
	if r.Record().Status != GatePassed {
		t.Error("expected passed status")
	}
}
