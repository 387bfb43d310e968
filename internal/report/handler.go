package report

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"healthbud-backend/internal/chat"
	"healthbud-backend/internal/ratelimit"
)

type Handler struct {
	svc         *Service
	repo        chat.Repository
	limiter     *ratelimit.Limiter
	reportLimit int
}

func NewHandler(svc *Service, repo chat.Repository, limiter *ratelimit.Limiter, reportLimit int) *Handler {
	return &Handler{
		svc:         svc,
		repo:        repo,
		limiter:     limiter,
		reportLimit: reportLimit,
	}
}

func (h *Handler) HandleGetReport(w http.ResponseWriter, r *http.Request) {
	if !h.limiter.Admit("chat_report", ratelimit.ClientKey(r), h.reportLimit, time.Minute) {
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

	data, err := h.svc.Render(record)
	if err != nil {
		http.Error(w, "Failed to generate report", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=triage_report_%d.pdf", chatNumber))
	w.Write(data)
}

func RegisterRoutes(r chi.Router, h *Handler) {
	r.Get("/chat/{chatNumber}/report", h.HandleGetReport)
}
