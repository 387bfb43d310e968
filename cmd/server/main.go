package main

import (
	"database/sql"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"

	"healthbud-backend/internal/analysis"
	"healthbud-backend/internal/chat"
	"healthbud-backend/internal/config"
	"healthbud-backend/internal/llm"
	"healthbud-backend/internal/platform/telegram"
	"healthbud-backend/internal/ratelimit"
	"healthbud-backend/internal/report"
	"healthbud-backend/internal/search"
)

func main() {
	cfg := config.Load()

	db := connectDB(cfg.DatabaseURL)
	runMigrations(cfg.DatabaseURL)

	client, err := llm.New(llmConfig(cfg))
	if err != nil {
		log.Fatalf("LLM client init failed: %v", err)
	}
	if client.Enabled() {
		log.Printf("LLM provider: %s", client.Provider())
	} else {
		log.Println("LLM provider disabled, serving rule-based assessments only.")
	}

	var notifier report.Notifier
	if cfg.TelegramBotToken != "" {
		notifier = telegram.NewClient(cfg.TelegramBotToken)
	}
	if cfg.OnCallChatID == 0 {
		log.Println("Warning: ONCALL_CHAT_ID is not set. Emergency escalation is disabled.")
	}

	limiter := ratelimit.New()
	repo := chat.NewRepository(db)
	searchSvc := search.NewService(cfg.EnableWebSearch, cfg.WebSearchMaxResults, cfg.TrustedMedicalDomains)
	reportSvc := report.NewService(notifier, cfg.OnCallChatID)

	chatSvc := chat.NewService(client, cfg.ChatHistoryWindow)
	chatHandler := chat.NewHandler(chatSvc, repo, limiter, reportSvc, cfg.ChatAssessRateLimitPerMin, cfg.ChatHistoryWindow)

	analysisSvc := analysis.NewService(client, searchSvc)
	analysisHandler := analysis.NewHandler(analysisSvc, repo, limiter, cfg.ChatAnalyzeRateLimitPerMin)

	reportHandler := report.NewHandler(reportSvc, repo, limiter, cfg.ChatReportRateLimitPerMin)

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware(cfg.CORSOrigins))
	r.Use(securityHeaders)

	r.Route("/api", func(r chi.Router) {
		chat.RegisterRoutes(r, chatHandler)
		analysis.RegisterRoutes(r, analysisHandler)
		report.RegisterRoutes(r, reportHandler)
	})

	log.Printf("Server starting on port %s...", cfg.Port)
	if err := http.ListenAndServe(":"+cfg.Port, r); err != nil {
		log.Fatal(err)
	}
}

func llmConfig(cfg *config.Config) llm.Config {
	switch llm.Provider(cfg.LLMProvider) {
	case llm.ProviderOpenRouter:
		return llm.Config{
			Provider: llm.ProviderOpenRouter,
			APIKey:   cfg.OpenRouterAPIKey,
			Model:    cfg.OpenRouterModel,
			AppName:  cfg.OpenRouterAppName,
			SiteURL:  cfg.OpenRouterSiteURL,
		}
	case llm.ProviderGemini:
		return llm.Config{
			Provider: llm.ProviderGemini,
			APIKey:   cfg.GeminiAPIKey,
			Model:    cfg.GeminiModel,
		}
	default:
		return llm.Config{Provider: llm.Provider(cfg.LLMProvider)}
	}
}

func connectDB(connStr string) *sql.DB {
	var db *sql.DB
	var err error
	for i := 0; i < 10; i++ {
		db, err = sql.Open("postgres", connStr)
		if err == nil {
			err = db.Ping()
		}
		if err == nil {
			log.Println("Connected to database.")
			return db
		}
		log.Printf("Waiting for database... (%d/10): %v", i+1, err)
		time.Sleep(2 * time.Second)
	}
	log.Fatalf("Could not connect to database: %v", err)
	return nil
}

func runMigrations(connStr string) {
	m, err := migrate.New("file://migrations", connStr)
	if err != nil {
		log.Printf("Migration init failed: %v", err)
		return
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		log.Printf("Migration up failed: %v", err)
		return
	}
	log.Println("Migrations applied.")
}

func corsMiddleware(origins []string) func(http.Handler) http.Handler {
	allowed := make(map[string]bool, len(origins))
	for _, origin := range origins {
		allowed[origin] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" && allowed[origin] {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Vary", "Origin")
				w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, Authorization")
			}
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")
		h.Set("Permissions-Policy", "geolocation=(), microphone=(), camera=()")
		h.Set("Cache-Control", "no-store")
		h.Set("Pragma", "no-cache")
		h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
			h.Set("Strict-Transport-Security", "max-age=63072000; includeSubDomains")
		}
		next.ServeHTTP(w, r)
	})
}
