package chat

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrEmptyResponse is the only hard parse failure: the model returned nothing
// usable at all. Any non-empty reply degrades gracefully instead.
var ErrEmptyResponse = errors.New("model response is empty")

// ParseModelJSON turns the raw text of an LLM reply into a JSON object. The
// pipeline is a sequence of explicit recovery steps: strip a surrounding code
// fence, try a strict parse, try the first-{ to last-} substring, and finally
// synthesize a minimal object from the raw text so a non-empty reply is never
// discarded outright.
func ParseModelJSON(raw string) (map[string]any, error) {
	cleaned := stripCodeFence(raw)
	if cleaned == "" {
		return nil, ErrEmptyResponse
	}

	if parsed, ok := parseStrict(cleaned); ok {
		return parsed, nil
	}
	if parsed, ok := parseBraceSpan(cleaned); ok {
		return parsed, nil
	}
	return synthesizeMinimal(cleaned), nil
}

// stripCodeFence removes a leading/trailing markdown fence, optionally
// prefixed by a language tag ("```json").
func stripCodeFence(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}

	text = strings.TrimPrefix(text, "```")
	// Drop the language tag on the opening line, if any.
	if idx := strings.IndexByte(text, '\n'); idx >= 0 && !strings.ContainsAny(text[:idx], "{}") {
		text = text[idx+1:]
	}
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}

func parseStrict(text string) (map[string]any, bool) {
	var parsed map[string]any
	if err := json.Unmarshal([]byte(text), &parsed); err != nil {
		return nil, false
	}
	return parsed, true
}

// parseBraceSpan retries the parse on the substring between the first "{" and
// the last "}", recovering objects wrapped in prose.
func parseBraceSpan(text string) (map[string]any, bool) {
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end <= start {
		return nil, false
	}
	return parseStrict(text[start : end+1])
}

// synthesizeMinimal wraps free text that never parsed as JSON into the two
// fields the schema cannot do without.
func synthesizeMinimal(text string) map[string]any {
	return map[string]any{
		"assistant_message": text,
		"summary":           text,
	}
}

// normalizeAssessment coerces a loosely-typed parsed object into the strict
// Assessment schema: string-or-list fields are wrapped, urgency values are
// interpreted leniently, missing text fields receive safe defaults, and
// everything is rewritten into second-person voice. Non-health turns are
// forced into reduced-output mode with no clinical content.
func normalizeAssessment(parsed map[string]any, healthRelated bool) Assessment {
	a := Assessment{
		AssistantMessage: textOrDefault(parsed, "I am here to help. Tell me what you are feeling today.",
			"assistant_message", "summary"),
		ShowStructuredOutput: true,
		Summary:              textOrDefault(parsed, "AI triage assessment generated.", "summary"),
		FollowUpQuestions:    toStringList(parsed["follow_up_questions"]),
		PossibleConditions:   toStringList(parsed["possible_conditions"]),
		PossibleRemedies:     toStringList(parsed["possible_remedies"]),
		UrgencyLevel:         normalizeUrgency(parsed["urgency_level"]),
		UrgencyReason:        textOrDefault(parsed, "Estimated from symptoms and available context.", "urgency_reason"),
		SeekCareWithin:       textOrDefault(parsed, "Within 24-48 hours if symptoms persist or worsen.", "seek_care_within"),
		RedFlags:             toStringList(parsed["red_flags"]),
		SpecialistTypes:      toStringList(parsed["specialist_types"]),
		SafetyDisclaimer: textOrDefault(parsed, "This is not a medical diagnosis. Seek urgent care for severe or worsening symptoms.",
			"safety_disclaimer"),
	}

	if !healthRelated {
		a.ShowStructuredOutput = false
		a.UrgencyLevel = UrgencyLow
		a.UrgencyReason = "No health symptoms were provided in this message."
		a.SeekCareWithin = "Not applicable unless you develop symptoms."
		a.PossibleConditions = []string{}
		a.PossibleRemedies = []string{}
		a.FollowUpQuestions = []string{}
		a.RedFlags = []string{}
		a.SpecialistTypes = []string{}
	} else if len(a.FollowUpQuestions) == 0 {
		// The UI never shows an empty question list on a symptomatic turn.
		a.FollowUpQuestions = []string{
			"When did this start, and has it been getting better, worse, or staying the same?",
			"How severe is it right now on a scale of 0 to 10?",
			"Do you have any other symptoms like fever, shortness of breath, vomiting, or dizziness?",
			"What makes it better or worse, and have you tried any treatment so far?",
		}
	}

	return enforceSecondPerson(a)
}

// normalizeUrgency accepts a recognized string token verbatim, buckets numeric
// scores by thresholds, and conservatively defaults anything else to medium.
func normalizeUrgency(value any) UrgencyLevel {
	switch v := value.(type) {
	case string:
		candidate := UrgencyLevel(strings.ToLower(strings.TrimSpace(v)))
		if candidate.Valid() {
			return candidate
		}
	case float64:
		switch {
		case v >= 8:
			return UrgencyEmergency
		case v >= 6:
			return UrgencyHigh
		case v >= 3:
			return UrgencyMedium
		default:
			return UrgencyLow
		}
	}
	return UrgencyMedium
}

// toStringList accepts a list of anything or a bare string; a bare string
// becomes a one-element list.
func toStringList(value any) []string {
	switch v := value.(type) {
	case string:
		return []string{v}
	case []any:
		items := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				items = append(items, s)
			} else {
				items = append(items, fmt.Sprint(item))
			}
		}
		return items
	case []string:
		return v
	}
	return []string{}
}

// textOrDefault returns the first non-empty string among the named keys, else
// the fallback.
func textOrDefault(parsed map[string]any, fallback string, keys ...string) string {
	for _, key := range keys {
		if s, ok := parsed[key].(string); ok && s != "" {
			return s
		}
	}
	return fallback
}

// secondPersonReplacements rewrites third-person referring phrases into direct
// address. Fixed lookup table, applied in order.
var secondPersonReplacements = []struct {
	from, to string
}{
	{"The user", "You"},
	{"the user", "you"},
	{"This user", "You"},
	{"this user", "you"},
	{"The patient", "You"},
	{"the patient", "you"},
	{"User reports", "You report"},
	{"user reports", "you report"},
	{"User is", "You are"},
	{"user is", "you are"},
	{"User has", "You have"},
	{"user has", "you have"},
	{"Patient reports", "You report"},
	{"patient reports", "you report"},
	{"Patient is", "You are"},
	{"patient is", "you are"},
	{"Patient has", "You have"},
	{"patient has", "you have"},
}

func rewriteSecondPerson(text string) string {
	for _, r := range secondPersonReplacements {
		text = strings.ReplaceAll(text, r.from, r.to)
	}
	return text
}

func enforceSecondPerson(a Assessment) Assessment {
	a.AssistantMessage = rewriteSecondPerson(a.AssistantMessage)
	a.Summary = rewriteSecondPerson(a.Summary)
	a.UrgencyReason = rewriteSecondPerson(a.UrgencyReason)
	a.SeekCareWithin = rewriteSecondPerson(a.SeekCareWithin)
	a.SafetyDisclaimer = rewriteSecondPerson(a.SafetyDisclaimer)

	for _, list := range [][]string{
		a.FollowUpQuestions,
		a.PossibleConditions,
		a.PossibleRemedies,
		a.RedFlags,
		a.SpecialistTypes,
	} {
		for i, item := range list {
			list[i] = rewriteSecondPerson(item)
		}
	}
	return a
}
