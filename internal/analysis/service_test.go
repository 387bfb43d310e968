package analysis

import (
	"context"
	"errors"
	"testing"

	"healthbud-backend/internal/chat"
	"healthbud-backend/internal/llm"
)

type stubClient struct {
	enabled bool
	text    string
	err     error
}

func (s *stubClient) Provider() llm.Provider { return llm.ProviderGemini }
func (s *stubClient) Enabled() bool          { return s.enabled }

func (s *stubClient) Generate(ctx context.Context, systemPrompt string, userPayload any, temperature float64) (string, error) {
	return s.text, s.err
}

type stubSearcher struct {
	evidence []chat.EvidenceSource
}

func (s *stubSearcher) MedicalEvidence(ctx context.Context, query string) []chat.EvidenceSource {
	return s.evidence
}

func sampleEvidence(n int) []chat.EvidenceSource {
	evidence := make([]chat.EvidenceSource, n)
	for i := range evidence {
		evidence[i] = chat.EvidenceSource{
			Title:   "Source",
			URL:     "https://mayoclinic.org/a",
			Snippet: "snippet",
		}
	}
	return evidence
}

func recordWithSymptoms(symptoms ...chat.SymptomInput) *chat.Record {
	return &chat.Record{
		ChatNumber: 7,
		SessionID:  "session-1",
		Message:    "stored message",
		Symptoms:   symptoms,
	}
}

func TestFallbackSeverityBuckets(t *testing.T) {
	svc := NewService(&stubClient{enabled: false}, &stubSearcher{})

	cases := []struct {
		severity int
		want     chat.UrgencyLevel
	}{
		{9, chat.UrgencyEmergency},
		{7, chat.UrgencyHigh},
		{4, chat.UrgencyMedium},
		{2, chat.UrgencyLow},
	}
	for _, tc := range cases {
		record := recordWithSymptoms(chat.SymptomInput{Name: "fatigue", Severity: tc.severity})
		result := svc.AnalyzeStoredChat(context.Background(), record)
		if result.UrgencyLevel != tc.want {
			t.Errorf("severity %d: got %s, want %s", tc.severity, result.UrgencyLevel, tc.want)
		}
	}
}

func TestFallbackKeywordBeatsLowSeverity(t *testing.T) {
	svc := NewService(&stubClient{enabled: false}, &stubSearcher{})

	record := recordWithSymptoms(chat.SymptomInput{Name: "Chest Pain", Severity: 2})
	result := svc.AnalyzeStoredChat(context.Background(), record)

	if result.UrgencyLevel != chat.UrgencyEmergency {
		t.Fatalf("emergency symptom name must win regardless of severity, got %s", result.UrgencyLevel)
	}
}

func TestFallbackAttachesTopThreeEvidence(t *testing.T) {
	svc := NewService(&stubClient{enabled: false}, &stubSearcher{evidence: sampleEvidence(5)})

	record := recordWithSymptoms(chat.SymptomInput{Name: "cough", Severity: 5})
	result := svc.AnalyzeStoredChat(context.Background(), record)

	if len(result.Conditions) != 1 {
		t.Fatalf("expected one generic condition, got %d", len(result.Conditions))
	}
	if len(result.Conditions[0].Evidence) != 3 {
		t.Fatalf("expected top 3 evidence items, got %d", len(result.Conditions[0].Evidence))
	}
}

func TestFallbackOmitsConditionsWithoutEvidence(t *testing.T) {
	svc := NewService(&stubClient{enabled: false}, &stubSearcher{})

	record := recordWithSymptoms(chat.SymptomInput{Name: "cough", Severity: 5})
	result := svc.AnalyzeStoredChat(context.Background(), record)

	if len(result.Conditions) != 0 {
		t.Fatalf("no evidence must mean no conditions, got %d", len(result.Conditions))
	}
}

func TestGroundedAnalysisFiltersUnsupportedConditions(t *testing.T) {
	client := &stubClient{
		enabled: true,
		text: `{
			"urgency_level": "high",
			"urgency_reason": "Symptoms match acute infection patterns.",
			"seek_care_within": "Within 12 hours.",
			"conditions": [
				{"condition": "Bronchitis", "confidence": 0.7, "rationale": "Evidence 1 matches.", "evidence_ids": [1, 99]},
				{"condition": "Unsupported", "confidence": 0.9, "rationale": "No evidence.", "evidence_ids": [42]},
				{"condition": "NoIDs", "confidence": 0.5, "rationale": "Missing ids."}
			],
			"recommended_remedies": ["Rest"],
			"red_flags": ["Worsening cough"],
			"disclaimer": "Not a diagnosis."
		}`,
	}
	svc := NewService(client, &stubSearcher{evidence: sampleEvidence(2)})

	record := recordWithSymptoms(chat.SymptomInput{Name: "cough", Severity: 5})
	result := svc.AnalyzeStoredChat(context.Background(), record)

	if result.UrgencyLevel != chat.UrgencyHigh {
		t.Fatalf("expected high urgency from model, got %s", result.UrgencyLevel)
	}
	if len(result.Conditions) != 1 {
		t.Fatalf("conditions without resolvable evidence must be dropped, got %d", len(result.Conditions))
	}
	if result.Conditions[0].Condition != "Bronchitis" {
		t.Fatalf("unexpected condition kept: %q", result.Conditions[0].Condition)
	}
	if len(result.Conditions[0].Evidence) != 1 {
		t.Fatalf("only valid evidence ids must map, got %d", len(result.Conditions[0].Evidence))
	}
}

func TestGroundedAnalysisClampsConfidence(t *testing.T) {
	client := &stubClient{
		enabled: true,
		text: `{"urgency_level":"low","conditions":[
			{"condition":"A","confidence":3.5,"evidence_ids":[1]},
			{"condition":"B","confidence":"not a number","evidence_ids":[1]}
		]}`,
	}
	svc := NewService(client, &stubSearcher{evidence: sampleEvidence(1)})

	result := svc.AnalyzeStoredChat(context.Background(), recordWithSymptoms(chat.SymptomInput{Name: "cough", Severity: 3}))

	if result.Conditions[0].Confidence != 1 {
		t.Fatalf("confidence must clamp to 1, got %v", result.Conditions[0].Confidence)
	}
	if result.Conditions[1].Confidence != 0.2 {
		t.Fatalf("unparseable confidence must default to 0.2, got %v", result.Conditions[1].Confidence)
	}
}

func TestGroundedAnalysisFailureFallsBack(t *testing.T) {
	client := &stubClient{enabled: true, err: errors.New("boom")}
	svc := NewService(client, &stubSearcher{evidence: sampleEvidence(1)})

	record := recordWithSymptoms(chat.SymptomInput{Name: "fatigue", Severity: 8})
	result := svc.AnalyzeStoredChat(context.Background(), record)

	if result.UrgencyLevel != chat.UrgencyHigh {
		t.Fatalf("model failure must fall back to severity buckets, got %s", result.UrgencyLevel)
	}
	if result.Disclaimer == "" {
		t.Fatal("fallback must attach a disclaimer")
	}
}

func TestAnalyzeSkipsModelWithoutEvidence(t *testing.T) {
	// Enabled client but no symptoms means no evidence query and no model
	// call; the fallback answers directly.
	client := &stubClient{enabled: true, text: `{"urgency_level":"emergency"}`}
	svc := NewService(client, &stubSearcher{evidence: sampleEvidence(3)})

	result := svc.AnalyzeStoredChat(context.Background(), recordWithSymptoms())

	if result.UrgencyLevel != chat.UrgencyLow {
		t.Fatalf("no symptoms means mild fallback, got %s", result.UrgencyLevel)
	}
}
