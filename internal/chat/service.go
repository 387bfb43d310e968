package chat

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"healthbud-backend/internal/llm"
)

const systemPrompt = `You are HealthBud, a healthcare intake and triage assistant for web users.
- Reply naturally and conversationally in assistant_message.
- Start with empathy and reassurance in a warm, friendly tone.
- Address the person directly as "you"; never refer to them as "the user", "this user", "the patient", or in third person.
- You can reply to ANY user message (health or non-health).
- If message is not health-related, respond conversationally and gently steer to health check-in.
- For health-related messages, provide practical triage guidance with calm tone.
- Use conversation_history to keep continuity with prior user and assistant turns.
- For health-related messages, include 3 to 6 concise diagnostic follow-up questions in follow_up_questions.
- Prefer targeted questions that clarify onset, duration, severity, associated symptoms, red flags, and relevant medical history.
- You are not a doctor and must not provide final diagnosis.
Return only valid JSON with the following keys exactly:
assistant_message, summary, follow_up_questions, possible_conditions, possible_remedies,
urgency_level, urgency_reason, seek_care_within, red_flags, specialist_types, safety_disclaimer.
urgency_level must be one of: low, medium, high, emergency.`

// healthTerms gates whether a turn is treated as health-related when no
// structured symptoms are attached.
var healthTerms = []string{
	"pain", "fever", "cough", "vomit", "nausea", "headache", "dizzy",
	"breath", "chest", "doctor", "symptom", "sick", "ill",
}

// Service orchestrates one assessment turn: it decides health-relatedness,
// calls the LLM client, normalizes the reply, and masks every failure behind
// the deterministic fallback. Assess never returns an error.
type Service struct {
	client        llm.Client
	historyWindow int
}

func NewService(client llm.Client, historyWindow int) *Service {
	return &Service{
		client:        client,
		historyWindow: historyWindow,
	}
}

// Assess produces a triage assessment for one conversational turn. Both the
// model path and the fallback path return the same shape; callers cannot and
// must not distinguish which one ran.
func (s *Service) Assess(ctx context.Context, req AssessmentRequest, history []HistoryTurn) Assessment {
	if !s.client.Enabled() {
		return s.fallbackForAnyMessage(req)
	}

	history = s.boundHistory(history)
	healthRelated := looksLikeHealthMessage(req, history)

	userPayload := map[string]any{
		"message":              req.Message,
		"symptoms":             req.Symptoms,
		"patient_context":      req.PatientContext,
		"locale":               req.Locale,
		"conversation_history": history,
	}

	raw, err := s.client.Generate(ctx, systemPrompt, userPayload, 0.2)
	if err != nil {
		s.logModelFailure(err)
		return s.fallbackForAnyMessage(req)
	}

	parsed, err := ParseModelJSON(raw)
	if err != nil {
		s.logModelFailure(err)
		return s.fallbackForAnyMessage(req)
	}

	assessment := normalizeAssessment(parsed, healthRelated)
	if err := validateAssessment(assessment); err != nil {
		s.logModelFailure(err)
		return s.fallbackForAnyMessage(req)
	}
	return assessment
}

func (s *Service) fallbackForAnyMessage(req AssessmentRequest) Assessment {
	if looksLikeHealthMessage(req, nil) {
		return fallbackAssessment(req)
	}
	return fallbackGeneralReply(req)
}

func (s *Service) boundHistory(history []HistoryTurn) []HistoryTurn {
	if s.historyWindow > 0 && len(history) > s.historyWindow {
		return history[len(history)-s.historyWindow:]
	}
	return history
}

func (s *Service) logModelFailure(err error) {
	detail := err.Error()
	if len(detail) > 300 {
		detail = detail[:300]
	}
	log.Printf("LLM request failed (%s); using fallback assessment: %s", s.client.Provider(), detail)
}

// looksLikeHealthMessage is true when symptoms are attached, or when the
// message or recent history mentions a known health term.
func looksLikeHealthMessage(req AssessmentRequest, history []HistoryTurn) bool {
	if len(req.Symptoms) > 0 {
		return true
	}

	parts := []string{strings.ToLower(req.Message)}
	for _, turn := range history {
		parts = append(parts, strings.ToLower(turn.UserMessage))
	}
	combined := strings.Join(parts, " ")

	return containsAny(combined, healthTerms)
}

// validateAssessment checks the strict output contract after normalization. A
// violation here means the normalizer produced something the schema forbids,
// which gets masked by the fallback like any other model-path failure.
func validateAssessment(a Assessment) error {
	if !a.UrgencyLevel.Valid() {
		return fmt.Errorf("invalid urgency level %q", a.UrgencyLevel)
	}
	if a.AssistantMessage == "" {
		return errors.New("assistant_message is empty")
	}
	if a.Summary == "" {
		return errors.New("summary is empty")
	}
	if a.SafetyDisclaimer == "" {
		return errors.New("safety_disclaimer is empty")
	}
	return nil
}
