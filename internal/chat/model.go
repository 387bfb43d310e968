package chat

import (
	"time"
)

// UrgencyLevel is the primary triage output driving recommended time-to-care.
type UrgencyLevel string

const (
	UrgencyLow       UrgencyLevel = "low"
	UrgencyMedium    UrgencyLevel = "medium"
	UrgencyHigh      UrgencyLevel = "high"
	UrgencyEmergency UrgencyLevel = "emergency"
)

func (u UrgencyLevel) Valid() bool {
	switch u {
	case UrgencyLow, UrgencyMedium, UrgencyHigh, UrgencyEmergency:
		return true
	}
	return false
}

// SymptomInput is one structured symptom entry attached to a message.
type SymptomInput struct {
	Name               string     `json:"name"`
	Severity           int        `json:"severity"` // 0-10
	SymptomStartedAt   *time.Time `json:"symptom_started_at,omitempty"`
	BodyLocation       string     `json:"body_location,omitempty"`
	Character          string     `json:"character,omitempty"`
	AggravatingFactors []string   `json:"aggravating_factors,omitempty"`
	Radiation          string     `json:"radiation,omitempty"`
	DurationPattern    string     `json:"duration_pattern,omitempty"`
	TimingPattern      string     `json:"timing_pattern,omitempty"`
	RelievingFactors   []string   `json:"relieving_factors,omitempty"`
	AssociatedSymptoms []string   `json:"associated_symptoms,omitempty"`
	Progression        string     `json:"progression,omitempty"`
	IsConstant         *bool      `json:"is_constant,omitempty"`
	DurationHours      *int       `json:"duration_hours,omitempty"`
	Notes              string     `json:"notes,omitempty"`
}

type PatientContext struct {
	Age                *int     `json:"age,omitempty"`
	BiologicalSex      string   `json:"biological_sex,omitempty"`
	ChronicConditions  []string `json:"chronic_conditions,omitempty"`
	CurrentMedications []string `json:"current_medications,omitempty"`
	Allergies          []string `json:"allergies,omitempty"`
}

// AssessmentRequest is one inbound conversational turn. Immutable once
// constructed; the service never mutates it.
type AssessmentRequest struct {
	Message        string          `json:"message"`
	Symptoms       []SymptomInput  `json:"symptoms"`
	PatientContext *PatientContext `json:"patient_context,omitempty"`
	Locale         string          `json:"locale"`
	SessionID      string          `json:"session_id,omitempty"`
}

// HistoryTurn is one prior exchange within the same session, oldest first.
type HistoryTurn struct {
	UserMessage      string `json:"user_message"`
	AssistantMessage string `json:"assistant_message"`
}

// Assessment is the single output shape of both the LLM path and the fallback
// path. Callers must not be able to tell which path produced it.
type Assessment struct {
	AssistantMessage     string       `json:"assistant_message"`
	ShowStructuredOutput bool         `json:"show_structured_output"`
	Summary              string       `json:"summary"`
	FollowUpQuestions    []string     `json:"follow_up_questions"`
	PossibleConditions   []string     `json:"possible_conditions"`
	PossibleRemedies     []string     `json:"possible_remedies"`
	UrgencyLevel         UrgencyLevel `json:"urgency_level"`
	UrgencyReason        string       `json:"urgency_reason"`
	SeekCareWithin       string       `json:"seek_care_within"`
	RedFlags             []string     `json:"red_flags"`
	SpecialistTypes      []string     `json:"specialist_types"`
	SafetyDisclaimer     string       `json:"safety_disclaimer"`
}

// Record is a persisted chat turn with its symptoms and assessment.
type Record struct {
	ChatNumber int            `json:"chat_number"`
	ChatID     string         `json:"chat_id"`
	SessionID  string         `json:"session_id"`
	Message    string         `json:"message"`
	Locale     string         `json:"locale"`
	RecordedAt time.Time      `json:"recorded_at"`
	Patient    PatientContext `json:"patient"`
	Symptoms   []SymptomInput `json:"symptoms"`
	Assessment Assessment     `json:"assessment"`
}

// EvidenceSource is one retrieved reference used by the stored-chat analysis.
type EvidenceSource struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// ConditionAnalysis is one candidate condition backed by evidence.
type ConditionAnalysis struct {
	Condition           string           `json:"condition"`
	Confidence          float64          `json:"confidence"` // 0-1
	Rationale           string           `json:"rationale"`
	RelatedSymptoms     []string         `json:"related_symptoms"`
	RecommendedRemedies []string         `json:"recommended_remedies"`
	DoctorSpecialties   []string         `json:"doctor_specialties"`
	Evidence            []EvidenceSource `json:"evidence"`
}

// StoredChatAnalysis is the output of re-analyzing a persisted chat.
type StoredChatAnalysis struct {
	ChatNumber          int                 `json:"chat_number"`
	SessionID           string              `json:"session_id"`
	AnalyzedAt          time.Time           `json:"analyzed_at"`
	UrgencyLevel        UrgencyLevel        `json:"urgency_level"`
	UrgencyReason       string              `json:"urgency_reason"`
	SeekCareWithin      string              `json:"seek_care_within"`
	Conditions          []ConditionAnalysis `json:"conditions"`
	RecommendedRemedies []string            `json:"recommended_remedies"`
	RedFlags            []string            `json:"red_flags"`
	Disclaimer          string              `json:"disclaimer"`
}
