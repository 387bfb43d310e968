package chat

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"healthbud-backend/internal/ratelimit"
)

// Escalator forwards emergency-level assessments to the on-call channel.
type Escalator interface {
	EscalateEmergency(rec *Record)
}

type Handler struct {
	svc           *Service
	repo          Repository
	limiter       *ratelimit.Limiter
	escalator     Escalator
	assessLimit   int
	historyWindow int
}

func NewHandler(svc *Service, repo Repository, limiter *ratelimit.Limiter, escalator Escalator, assessLimit, historyWindow int) *Handler {
	return &Handler{
		svc:           svc,
		repo:          repo,
		limiter:       limiter,
		escalator:     escalator,
		assessLimit:   assessLimit,
		historyWindow: historyWindow,
	}
}

type AssessmentResponse struct {
	ChatNumber int        `json:"chat_number"`
	SessionID  string     `json:"session_id"`
	Timestamp  time.Time  `json:"timestamp"`
	Assessment Assessment `json:"assessment"`
}

func (h *Handler) HandleAssess(w http.ResponseWriter, r *http.Request) {
	if !h.limiter.Admit("chat_assess", ratelimit.ClientKey(r), h.assessLimit, time.Minute) {
		http.Error(w, "Too many requests. Please wait and try again.", http.StatusTooManyRequests)
		return
	}

	var req AssessmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}
	if err := validateRequest(req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.New().String()
	}

	history, err := h.repo.History(r.Context(), sessionID, h.historyWindow)
	if err != nil {
		// Continuity is best-effort; an unreadable history never blocks a turn.
		log.Printf("failed to load conversation history for session %s: %v", sessionID, err)
	}

	assessment := h.svc.Assess(r.Context(), req, history)

	record := &Record{
		ChatID:     uuid.New().String(),
		SessionID:  sessionID,
		Message:    req.Message,
		Locale:     req.Locale,
		RecordedAt: time.Now().UTC(),
		Symptoms:   req.Symptoms,
		Assessment: assessment,
	}
	if req.PatientContext != nil {
		record.Patient = *req.PatientContext
	}
	if err := h.repo.SaveChat(r.Context(), record); err != nil {
		// The user still gets their assessment even when persistence fails.
		log.Printf("failed to persist chat for session %s: %v", sessionID, err)
	}

	if h.escalator != nil && assessment.UrgencyLevel == UrgencyEmergency {
		go h.escalator.EscalateEmergency(record)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(AssessmentResponse{
		ChatNumber: record.ChatNumber,
		SessionID:  sessionID,
		Timestamp:  record.RecordedAt,
		Assessment: assessment,
	})
}

func (h *Handler) HandleGetChat(w http.ResponseWriter, r *http.Request) {
	chatNumber, err := strconv.Atoi(chi.URLParam(r, "chatNumber"))
	if err != nil {
		http.Error(w, "Invalid chat number", http.StatusBadRequest)
		return
	}

	record, err := h.repo.GetByNumber(r.Context(), chatNumber)
	if err != nil {
		http.Error(w, "Chat not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(record)
}

func validateRequest(req AssessmentRequest) error {
	if n := len(req.Message); n < 5 || n > 3000 {
		return errMessageLength
	}
	for _, symptom := range req.Symptoms {
		if symptom.Name == "" || len(symptom.Name) > 80 {
			return errSymptomName
		}
		if symptom.Severity < 0 || symptom.Severity > 10 {
			return errSymptomSeverity
		}
	}
	if len(req.Locale) > 15 {
		return errLocaleLength
	}
	return nil
}

var (
	errMessageLength   = validationError("message must be between 5 and 3000 characters")
	errSymptomName     = validationError("symptom name must be between 1 and 80 characters")
	errSymptomSeverity = validationError("symptom severity must be between 0 and 10")
	errLocaleLength    = validationError("locale must be at most 15 characters")
)

type validationError string

func (e validationError) Error() string { return string(e) }

func RegisterRoutes(r chi.Router, h *Handler) {
	r.Post("/chat/assess", h.HandleAssess)
	r.Get("/chat/{chatNumber}", h.HandleGetChat)
}
