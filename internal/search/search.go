package search

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"healthbud-backend/internal/chat"
)

const duckDuckGoURL = "https://api.duckduckgo.com/"

// Service retrieves medical evidence snippets from the DuckDuckGo Instant
// Answer API, keeping only results from a configured set of trusted medical
// domains. Every failure mode returns an empty slice; evidence retrieval is
// strictly best-effort and the analysis layer degrades without it.
type Service struct {
	enabled    bool
	maxResults int
	trusted    []string
	baseURL    string
	httpClient *http.Client
}

func NewService(enabled bool, maxResults int, trustedDomains []string) *Service {
	trusted := make([]string, len(trustedDomains))
	for i, domain := range trustedDomains {
		trusted[i] = strings.ToLower(domain)
	}
	return &Service{
		enabled:    enabled,
		maxResults: maxResults,
		trusted:    trusted,
		baseURL:    duckDuckGoURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type relatedTopic struct {
	FirstURL string         `json:"FirstURL"`
	Text     string         `json:"Text"`
	Topics   []relatedTopic `json:"Topics"`
}

type instantAnswer struct {
	Heading       string         `json:"Heading"`
	AbstractText  string         `json:"AbstractText"`
	AbstractURL   string         `json:"AbstractURL"`
	RelatedTopics []relatedTopic `json:"RelatedTopics"`
}

func (s *Service) MedicalEvidence(ctx context.Context, query string) []chat.EvidenceSource {
	if !s.enabled || s.maxResults <= 0 {
		return nil
	}

	endpoint := s.baseURL + "?q=" + url.QueryEscape(query) + "&format=json&no_html=1&no_redirect=1"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil
	}

	var answer instantAnswer
	if err := json.NewDecoder(resp.Body).Decode(&answer); err != nil {
		return nil
	}

	var evidence []chat.EvidenceSource
	appendResult := func(title, resultURL, snippet string) {
		title = strings.TrimSpace(title)
		if title == "" || resultURL == "" || !s.isTrusted(resultURL) {
			return
		}
		if len(evidence) < s.maxResults {
			evidence = append(evidence, chat.EvidenceSource{
				Title:   title,
				URL:     resultURL,
				Snippet: strings.TrimSpace(snippet),
			})
		}
	}

	appendResult(answer.Heading, answer.AbstractURL, answer.AbstractText)
	for _, topic := range flattenTopics(answer.RelatedTopics) {
		title, snippet := splitTopicText(topic.Text)
		appendResult(title, topic.FirstURL, snippet)
	}

	return evidence
}

func flattenTopics(topics []relatedTopic) []relatedTopic {
	var flat []relatedTopic
	for _, topic := range topics {
		if len(topic.Topics) > 0 {
			flat = append(flat, flattenTopics(topic.Topics)...)
			continue
		}
		flat = append(flat, topic)
	}
	return flat
}

// splitTopicText divides an instant-answer topic line into a title and a
// snippet; the API packs both into one "Title - description" string.
func splitTopicText(text string) (string, string) {
	if title, snippet, found := strings.Cut(text, " - "); found {
		return title, snippet
	}
	return text, ""
}

func (s *Service) isTrusted(resultURL string) bool {
	parsed, err := url.Parse(resultURL)
	if err != nil {
		return false
	}
	host := strings.TrimPrefix(strings.ToLower(parsed.Hostname()), "www.")
	for _, domain := range s.trusted {
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return true
		}
	}
	return false
}
