package chat

import (
	"errors"
	"reflect"
	"testing"
)

func TestParseModelJSONStrict(t *testing.T) {
	parsed, err := ParseModelJSON(`{"summary":"ok","urgency_level":"high"}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if parsed["summary"] != "ok" || parsed["urgency_level"] != "high" {
		t.Fatalf("unexpected object: %v", parsed)
	}
}

func TestParseModelJSONCodeFence(t *testing.T) {
	parsed, err := ParseModelJSON("```json\n{\"summary\":\"ok\"}\n```")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if parsed["summary"] != "ok" {
		t.Fatalf("expected fenced JSON to be recovered, got %v", parsed)
	}

	// Fence without a language tag.
	parsed, err = ParseModelJSON("```\n{\"summary\":\"ok\"}\n```")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if parsed["summary"] != "ok" {
		t.Fatalf("expected fenced JSON to be recovered, got %v", parsed)
	}
}

func TestParseModelJSONBraceSpan(t *testing.T) {
	parsed, err := ParseModelJSON(`Here is my assessment: {"summary":"ok"} hope that helps!`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if parsed["summary"] != "ok" {
		t.Fatalf("expected brace-span recovery, got %v", parsed)
	}
}

func TestParseModelJSONSynthesizesFromFreeText(t *testing.T) {
	parsed, err := ParseModelJSON("I think you have a cold")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if parsed["assistant_message"] != "I think you have a cold" {
		t.Fatalf("expected raw text as assistant_message, got %v", parsed)
	}
	if parsed["summary"] != "I think you have a cold" {
		t.Fatalf("expected raw text as summary, got %v", parsed)
	}
}

func TestParseModelJSONEmpty(t *testing.T) {
	for _, raw := range []string{"", "   ", "```\n```"} {
		if _, err := ParseModelJSON(raw); !errors.Is(err, ErrEmptyResponse) {
			t.Fatalf("input %q: expected ErrEmptyResponse, got %v", raw, err)
		}
	}
}

func TestNormalizeUrgency(t *testing.T) {
	cases := []struct {
		in   any
		want UrgencyLevel
	}{
		{"low", UrgencyLow},
		{" HIGH ", UrgencyHigh},
		{"emergency", UrgencyEmergency},
		{"critical", UrgencyMedium}, // unrecognized token defaults conservatively
		{float64(9), UrgencyEmergency},
		{float64(8), UrgencyEmergency},
		{float64(6), UrgencyHigh},
		{float64(3), UrgencyMedium},
		{float64(1), UrgencyLow},
		{nil, UrgencyMedium},
		{true, UrgencyMedium},
	}
	for _, tc := range cases {
		if got := normalizeUrgency(tc.in); got != tc.want {
			t.Errorf("normalizeUrgency(%v) = %s, want %s", tc.in, got, tc.want)
		}
	}
}

func TestNormalizeAssessmentRoundTrip(t *testing.T) {
	parsed := map[string]any{
		"assistant_message":   "You likely have a tension headache.",
		"summary":             "Tension-type headache suspected.",
		"follow_up_questions": []any{"How long has it lasted?"},
		"possible_conditions": "Tension headache", // bare string wraps into a list
		"possible_remedies":   []any{"Rest in a quiet room."},
		"urgency_level":       "low",
		"urgency_reason":      "Mild, common presentation.",
		"seek_care_within":    "Routine care if persistent.",
		"red_flags":           []any{"Sudden worst-ever headache"},
		"specialist_types":    []any{"Neurology"},
		"safety_disclaimer":   "Not a diagnosis.",
	}

	a := normalizeAssessment(parsed, true)

	if a.AssistantMessage != "You likely have a tension headache." {
		t.Fatalf("assistant_message changed: %q", a.AssistantMessage)
	}
	if a.UrgencyLevel != UrgencyLow {
		t.Fatalf("expected low urgency, got %s", a.UrgencyLevel)
	}
	if !reflect.DeepEqual(a.PossibleConditions, []string{"Tension headache"}) {
		t.Fatalf("expected wrapped condition list, got %v", a.PossibleConditions)
	}
	if !a.ShowStructuredOutput {
		t.Fatal("health-related turn must show structured output")
	}
}

func TestNormalizeAssessmentDefaults(t *testing.T) {
	a := normalizeAssessment(map[string]any{"summary": "Short reply."}, true)

	if a.AssistantMessage != "Short reply." {
		t.Fatalf("assistant_message should fall back to summary, got %q", a.AssistantMessage)
	}
	if a.UrgencyLevel != UrgencyMedium {
		t.Fatalf("missing urgency defaults to medium, got %s", a.UrgencyLevel)
	}
	if a.SafetyDisclaimer == "" {
		t.Fatal("safety disclaimer must always be populated")
	}
	if len(a.FollowUpQuestions) != 4 {
		t.Fatalf("expected the default 4 follow-up questions, got %d", len(a.FollowUpQuestions))
	}
}

func TestNormalizeAssessmentNonHealthReducedMode(t *testing.T) {
	parsed := map[string]any{
		"assistant_message":   "Nice weather indeed!",
		"summary":             "Weather chat.",
		"urgency_level":       "high",
		"possible_conditions": []any{"Should be cleared"},
		"follow_up_questions": []any{"Should be cleared too"},
	}

	a := normalizeAssessment(parsed, false)

	if a.ShowStructuredOutput {
		t.Fatal("non-health turn must hide structured output")
	}
	if a.UrgencyLevel != UrgencyLow {
		t.Fatalf("non-health urgency must be forced to low, got %s", a.UrgencyLevel)
	}
	if len(a.PossibleConditions) != 0 || len(a.FollowUpQuestions) != 0 ||
		len(a.PossibleRemedies) != 0 || len(a.RedFlags) != 0 || len(a.SpecialistTypes) != 0 {
		t.Fatalf("clinical lists must be cleared for non-health turns: %+v", a)
	}
}

func TestEnforceSecondPerson(t *testing.T) {
	parsed := map[string]any{
		"assistant_message": "The user is experiencing chest discomfort.",
		"summary":           "The patient reports dizziness. user has nausea.",
		"urgency_level":     "medium",
		"red_flags":         []any{"Call 911 if the patient is unresponsive"},
	}

	a := normalizeAssessment(parsed, true)

	if a.AssistantMessage != "You is experiencing chest discomfort." {
		t.Fatalf("scalar rewrite failed: %q", a.AssistantMessage)
	}
	if a.Summary != "You reports dizziness. you have nausea." {
		t.Fatalf("summary rewrite mismatch: %q", a.Summary)
	}
	if a.RedFlags[0] != "Call 911 if you is unresponsive" {
		t.Fatalf("list rewrite failed: %q", a.RedFlags[0])
	}
}
