package analysis

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"healthbud-backend/internal/chat"
	"healthbud-backend/internal/ratelimit"
)

type Handler struct {
	svc          *Service
	repo         chat.Repository
	limiter      *ratelimit.Limiter
	analyzeLimit int
}

func NewHandler(svc *Service, repo chat.Repository, limiter *ratelimit.Limiter, analyzeLimit int) *Handler {
	return &Handler{
		svc:          svc,
		repo:         repo,
		limiter:      limiter,
		analyzeLimit: analyzeLimit,
	}
}

func (h *Handler) HandleAnalyze(w http.ResponseWriter, r *http.Request) {
	if !h.limiter.Admit("chat_analyze", ratelimit.ClientKey(r), h.analyzeLimit, time.Minute) {
		http.Error(w, "Too many requests. Please wait and try again.", http.StatusTooManyRequests)
		return
	}

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

	result := h.svc.AnalyzeStoredChat(r.Context(), record)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

func RegisterRoutes(r chi.Router, h *Handler) {
	r.Post("/chat/{chatNumber}/analyze", h.HandleAnalyze)
}
