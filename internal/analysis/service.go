package analysis

import (
	"context"
	"log"
	"strconv"
	"strings"
	"time"

	"healthbud-backend/internal/chat"
	"healthbud-backend/internal/llm"
)

const analysisPrompt = `You are a conservative medical triage assistant.
You must ONLY use facts present in the provided evidence list.
If evidence is weak, state uncertainty.
Never claim a diagnosis.
Return valid JSON with keys:
urgency_level, urgency_reason, seek_care_within, conditions, recommended_remedies, red_flags, disclaimer.
Each entry in conditions must include:
condition, confidence (0-1), rationale, related_symptoms, recommended_remedies, doctor_specialties, evidence_ids.
Rules:
- Use only evidence_ids that exist in the provided list.
- If no evidence exists for a condition, do not include that condition.
- Keep remedies low-risk and general.
- urgency_level must be one of: low, medium, high, emergency.`

// Searcher retrieves supporting evidence for a symptom query. A failing or
// disabled search returns an empty slice, never an error.
type Searcher interface {
	MedicalEvidence(ctx context.Context, query string) []chat.EvidenceSource
}

// Service re-analyzes a stored chat against retrieved evidence. Like the live
// assessment path, it always returns a value: any model failure falls back to
// the severity-threshold engine.
type Service struct {
	client llm.Client
	search Searcher
}

func NewService(client llm.Client, search Searcher) *Service {
	return &Service{
		client: client,
		search: search,
	}
}

func (s *Service) AnalyzeStoredChat(ctx context.Context, record *chat.Record) chat.StoredChatAnalysis {
	evidence := s.buildEvidence(ctx, record)

	if s.client.Enabled() && len(evidence) > 0 {
		result, err := s.groundedAnalysis(ctx, record, evidence)
		if err == nil {
			return result
		}
		log.Printf("grounded analysis failed (%s); using fallback: %v", s.client.Provider(), err)
	}

	return s.fallbackAnalysis(record, evidence)
}

func (s *Service) buildEvidence(ctx context.Context, record *chat.Record) []chat.EvidenceSource {
	if len(record.Symptoms) == 0 {
		return nil
	}

	names := make([]string, 0, 4)
	for _, symptom := range record.Symptoms {
		names = append(names, symptom.Name)
		if len(names) == 4 {
			break
		}
	}
	query := strings.Join(names, " ") + " possible causes triage severity"
	return s.search.MedicalEvidence(ctx, query)
}

func (s *Service) groundedAnalysis(ctx context.Context, record *chat.Record, evidence []chat.EvidenceSource) (chat.StoredChatAnalysis, error) {
	evidencePayload := make([]map[string]any, len(evidence))
	for i, item := range evidence {
		evidencePayload[i] = map[string]any{
			"id":      i + 1,
			"title":   item.Title,
			"url":     item.URL,
			"snippet": item.Snippet,
		}
	}

	userPayload := map[string]any{
		"chat_number": record.ChatNumber,
		"message":     record.Message,
		"patient":     record.Patient,
		"symptoms":    record.Symptoms,
		"evidence":    evidencePayload,
	}

	raw, err := s.client.Generate(ctx, analysisPrompt, userPayload, 0.1)
	if err != nil {
		return chat.StoredChatAnalysis{}, err
	}

	parsed, err := chat.ParseModelJSON(raw)
	if err != nil {
		return chat.StoredChatAnalysis{}, err
	}

	return chat.StoredChatAnalysis{
		ChatNumber:          record.ChatNumber,
		SessionID:           record.SessionID,
		AnalyzedAt:          time.Now().UTC(),
		UrgencyLevel:        normalizeUrgencyToken(parsed["urgency_level"]),
		UrgencyReason:       stringOr(parsed["urgency_reason"], "Urgency estimated from symptom pattern and severity."),
		SeekCareWithin:      stringOr(parsed["seek_care_within"], "Within 24 hours if symptoms persist or worsen."),
		Conditions:          mapConditions(parsed["conditions"], evidence),
		RecommendedRemedies: stringList(parsed["recommended_remedies"]),
		RedFlags: stringListOr(parsed["red_flags"],
			[]string{"Worsening breathing", "Chest pain", "Fainting", "Confusion"}),
		Disclaimer: stringOr(parsed["disclaimer"],
			"AI-assisted triage is not a diagnosis. Seek in-person care for severe or worsening symptoms."),
	}, nil
}

// mapConditions keeps only conditions whose evidence_ids resolve to real
// entries; an unsupported condition is dropped rather than presented without
// sources.
func mapConditions(value any, evidence []chat.EvidenceSource) []chat.ConditionAnalysis {
	items, ok := value.([]any)
	if !ok {
		return nil
	}

	var conditions []chat.ConditionAnalysis
	for _, raw := range items {
		item, ok := raw.(map[string]any)
		if !ok {
			continue
		}

		var mapped []chat.EvidenceSource
		if ids, ok := item["evidence_ids"].([]any); ok {
			for _, rawID := range ids {
				id, ok := rawID.(float64)
				if !ok {
					continue
				}
				index := int(id)
				if index >= 1 && index <= len(evidence) {
					mapped = append(mapped, evidence[index-1])
				}
			}
		}
		if len(mapped) == 0 {
			continue
		}

		conditions = append(conditions, chat.ConditionAnalysis{
			Condition:           stringOr(item["condition"], "Unknown condition"),
			Confidence:          parseConfidence(item["confidence"]),
			Rationale:           stringOr(item["rationale"], "Evidence suggests this may be related."),
			RelatedSymptoms:     stringList(item["related_symptoms"]),
			RecommendedRemedies: stringList(item["recommended_remedies"]),
			DoctorSpecialties:   stringList(item["doctor_specialties"]),
			Evidence:            mapped,
		})
	}
	return conditions
}

func parseConfidence(value any) float64 {
	var score float64
	switch v := value.(type) {
	case float64:
		score = v
	case string:
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0.2
		}
		score = parsed
	default:
		return 0.2
	}

	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// Keyword sets for the severity fallback; matched against symptom names.
var (
	emergencySymptoms = []string{"chest pain", "shortness of breath", "difficulty breathing", "seizure", "stroke"}
	highRiskSymptoms  = []string{"high fever", "persistent vomiting", "blood in stool", "severe headache"}
)

// fallbackAnalysis buckets on explicit severity thresholds combined with
// symptom-name keywords. With no evidence at hand the conditions list is
// omitted entirely rather than fabricating unsupported claims.
func (s *Service) fallbackAnalysis(record *chat.Record, evidence []chat.EvidenceSource) chat.StoredChatAnalysis {
	maxSeverity := 0
	var names []string
	for _, symptom := range record.Symptoms {
		names = append(names, strings.ToLower(symptom.Name))
		if symptom.Severity > maxSeverity {
			maxSeverity = symptom.Severity
		}
	}

	var (
		urgency  chat.UrgencyLevel
		reason   string
		seekCare string
	)
	switch {
	case matchesAny(names, emergencySymptoms) || maxSeverity >= 9:
		urgency = chat.UrgencyEmergency
		reason = "Emergency-pattern symptoms or very high severity are present."
		seekCare = "Immediately. Seek emergency care now."
	case matchesAny(names, highRiskSymptoms) || maxSeverity >= 7:
		urgency = chat.UrgencyHigh
		reason = "High-risk symptom pattern or high severity suggests urgent in-person care."
		seekCare = "Within 4-12 hours."
	case maxSeverity >= 4:
		urgency = chat.UrgencyMedium
		reason = "Symptoms appear moderate and should be reviewed soon."
		seekCare = "Within 24-48 hours if not improving."
	default:
		urgency = chat.UrgencyLow
		reason = "Symptoms currently appear mild."
		seekCare = "Routine care if persistent or worsening."
	}

	var conditions []chat.ConditionAnalysis
	if top := topEvidence(evidence, 3); len(top) > 0 {
		related := make([]string, 0, 5)
		for _, symptom := range record.Symptoms {
			related = append(related, symptom.Name)
			if len(related) == 5 {
				break
			}
		}
		conditions = []chat.ConditionAnalysis{{
			Condition:       "Possible symptom-related condition",
			Confidence:      0.3,
			Rationale:       "Based on stored symptom profile; evidence is limited.",
			RelatedSymptoms: related,
			RecommendedRemedies: []string{
				"Rest and hydration.",
				"Monitor symptom progression and severity.",
				"Use only clinician- or pharmacist-approved medication.",
			},
			DoctorSpecialties: []string{"General Practice", "Internal Medicine"},
			Evidence:          top,
		}}
	}

	return chat.StoredChatAnalysis{
		ChatNumber:     record.ChatNumber,
		SessionID:      record.SessionID,
		AnalyzedAt:     time.Now().UTC(),
		UrgencyLevel:   urgency,
		UrgencyReason:  reason,
		SeekCareWithin: seekCare,
		Conditions:     conditions,
		RecommendedRemedies: []string{
			"Rest, fluids, and avoid known triggers.",
			"Track symptoms over time for clinician review.",
			"Seek urgent care if red flags appear.",
		},
		RedFlags: []string{
			"Severe chest pain",
			"Difficulty breathing",
			"Fainting or confusion",
			"Uncontrolled bleeding",
		},
		Disclaimer: "This output is decision support, not a diagnosis. It may be incomplete without clinical examination.",
	}
}

func topEvidence(evidence []chat.EvidenceSource, n int) []chat.EvidenceSource {
	if len(evidence) <= n {
		return evidence
	}
	return evidence[:n]
}

func matchesAny(names []string, keywords []string) bool {
	for _, name := range names {
		for _, keyword := range keywords {
			if name == keyword {
				return true
			}
		}
	}
	return false
}

func normalizeUrgencyToken(value any) chat.UrgencyLevel {
	if s, ok := value.(string); ok {
		candidate := chat.UrgencyLevel(strings.ToLower(strings.TrimSpace(s)))
		if candidate.Valid() {
			return candidate
		}
	}
	return chat.UrgencyMedium
}

func stringOr(value any, fallback string) string {
	if s, ok := value.(string); ok && s != "" {
		return s
	}
	return fallback
}

func stringList(value any) []string {
	switch v := value.(type) {
	case []any:
		items := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				items = append(items, s)
			}
		}
		return items
	case string:
		return []string{v}
	}
	return []string{}
}

func stringListOr(value any, fallback []string) []string {
	if items := stringList(value); len(items) > 0 {
		return items
	}
	return fallback
}
