package chat

import (
	"fmt"
	"strings"
)

// Keyword tiers for the rule-based fallback, checked most severe first.
var (
	emergencyTerms = []string{
		"chest pain",
		"difficulty breathing",
		"can't breathe",
		"stroke",
		"seizure",
		"fainted",
		"passed out",
		"bleeding heavily",
	}

	highRiskTerms = []string{
		"high fever",
		"persistent vomiting",
		"severe headache",
		"blood pressure",
	}
)

const fallbackDisclaimer = "This is not a medical diagnosis. If symptoms are severe, worsening, or you feel unsafe, seek urgent in-person medical care immediately."

// fallbackAssessment is the deterministic triage path used whenever the model
// path is unavailable or fails. Pure function of the request: no I/O, no
// randomness, identical input always yields the identical assessment.
func fallbackAssessment(req AssessmentRequest) Assessment {
	parts := []string{strings.ToLower(req.Message)}
	for _, symptom := range req.Symptoms {
		parts = append(parts, strings.ToLower(symptom.Name))
	}
	combined := strings.Join(parts, " ")

	var (
		urgency     UrgencyLevel
		seekCare    string
		reason      string
		conditions  []string
		specialists []string
	)

	switch {
	case containsAny(combined, emergencyTerms):
		urgency = UrgencyEmergency
		seekCare = "Immediately (call emergency services now)."
		reason = "Possible emergency warning signs were detected in your symptoms."
		conditions = []string{"Cardiovascular emergency", "Respiratory emergency", "Neurological emergency"}
		specialists = []string{"Emergency Medicine", "Cardiology", "Neurology"}
	case containsAny(combined, highRiskTerms):
		urgency = UrgencyHigh
		seekCare = "Within 4-12 hours, preferably urgent care or ER if worsening."
		reason = "Potentially serious symptoms may need rapid in-person evaluation."
		conditions = []string{"Acute infection", "Migraine or neurological issue", "Metabolic issue"}
		specialists = []string{"Internal Medicine", "Emergency Medicine", "Neurology"}
	default:
		urgency = UrgencyMedium
		seekCare = "Within 24-48 hours if symptoms persist or worsen."
		reason = "Symptoms appear non-emergency but should still be reviewed clinically."
		conditions = []string{"Viral illness", "Mild gastrointestinal issue", "Stress-related symptoms"}
		specialists = []string{"General Practitioner", "Internal Medicine"}
	}

	return Assessment{
		AssistantMessage: "Thanks for sharing that. From what you described, here's what I'm thinking right now. " +
			"I'll keep it simple, and if your symptoms get worse I'll tell you when to escalate care.",
		ShowStructuredOutput: true,
		Summary:              "Preliminary triage generated from your message and symptom details.",
		FollowUpQuestions: []string{
			"When did each symptom start, and has it changed over time?",
			"Do you have fever, chest pain, shortness of breath, or fainting?",
			"What medications have you taken for this and did they help?",
		},
		PossibleConditions: conditions,
		PossibleRemedies: []string{
			"Rest, hydration, and symptom monitoring.",
			"Use only previously prescribed or pharmacist-recommended over-the-counter medicine.",
			"Avoid strenuous activity until assessed if symptoms are worsening.",
		},
		UrgencyLevel:   urgency,
		UrgencyReason:  reason,
		SeekCareWithin: seekCare,
		RedFlags: []string{
			"Severe chest pain",
			"Difficulty breathing",
			"Confusion, fainting, or seizures",
			"Uncontrolled bleeding",
		},
		SpecialistTypes:  specialists,
		SafetyDisclaimer: fallbackDisclaimer,
	}
}

// fallbackGeneralReply answers non-health chit-chat without any clinical
// content. Structured triage output stays hidden on this path.
func fallbackGeneralReply(req AssessmentRequest) Assessment {
	excerpt := strings.TrimSpace(req.Message)
	if runes := []rune(excerpt); len(runes) > 180 {
		excerpt = string(runes[:180])
	}

	return Assessment{
		AssistantMessage: fmt.Sprintf("I hear you — you said: '%s'. I can chat about that. "+
			"Whenever you want, share how your body feels today and I can help with a health check-in.", excerpt),
		ShowStructuredOutput: false,
		Summary:              fmt.Sprintf("General conversational message received: '%s'.", excerpt),
		FollowUpQuestions:    []string{},
		PossibleConditions:   []string{},
		PossibleRemedies:     []string{},
		UrgencyLevel:         UrgencyLow,
		UrgencyReason:        "No clear health-risk indicators were detected from this non-health message.",
		SeekCareWithin:       "Not applicable unless you have symptoms.",
		RedFlags:             []string{},
		SpecialistTypes:      []string{},
		SafetyDisclaimer:     "For urgent or severe symptoms, seek immediate in-person medical care.",
	}
}

func containsAny(haystack string, terms []string) bool {
	for _, term := range terms {
		if strings.Contains(haystack, term) {
			return true
		}
	}
	return false
}
