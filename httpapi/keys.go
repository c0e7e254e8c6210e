package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"

	"pkt.systems/hipposync/internal/validate"
	"pkt.systems/hipposync/schema"
	"pkt.systems/pslog"
)

const (
	historyLimit   = 20
	historyExcerpt = 200
)

func (s *Server) handleUpdateAPIKeys(w http.ResponseWriter, r *http.Request) {
	var keys schema.APIKeys
	if err := decodeJSON(r, &keys); err != nil {
		writeValidation(w, "Invalid JSON body")
		return
	}
	s.storeKeys(w, r, keys)
}

// handleUpdateOpenAIKey is the older single-key route; the key arrives as a
// query parameter.
func (s *Server) handleUpdateOpenAIKey(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("openai_api_key")
	if key == "" {
		writeValidation(w, "openai_api_key is required")
		return
	}
	s.storeKeys(w, r, schema.APIKeys{OpenAI: key})
}

func (s *Server) storeKeys(w http.ResponseWriter, r *http.Request, keys schema.APIKeys) {
	if err := validate.ValidateAPIKeys(keys); err != nil {
		detail := validate.KeyMessage(err)
		if errors.Is(err, schema.ErrNoAPIKeys) {
			detail = "No valid API keys provided to update"
		}
		writeDetail(w, http.StatusBadRequest, detail)
		return
	}
	account, err := s.accounts.SetAPIKeys(mustAccount(r).ID, keys)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, account.User())
}

func (s *Server) handleDeleteAPIKey(w http.ResponseWriter, r *http.Request) {
	provider, err := schema.ParseProvider(chi.URLParam(r, "provider"))
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid provider")
		return
	}
	if _, err := s.accounts.DeleteAPIKey(mustAccount(r).ID, provider); err != nil {
		writeError(w, r, err)
		return
	}
	pslog.Ctx(r.Context()).Info("api key removed", "provider", provider)
	writeJSON(w, http.StatusOK, schema.KeyRemoved{Status: titleCase(string(provider)) + " API key removed"})
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// handleHistory stands in for the memory service: recent text messages from
// the caller's personal threads are reported as episodic items.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	items := s.data.recentPersonal(mustAccount(r).ID, historyLimit)
	out := schema.History{Items: make([]schema.HistoryItem, 0, len(items))}
	for i, msg := range items {
		out.Items = append(out.Items, schema.HistoryItem{
			Type:    "episodic",
			Content: excerpt(deref(msg.Content), historyExcerpt),
			Metadata: map[string]any{
				"thread_id": msg.ThreadID,
				"sender":    msg.Sender,
			},
			Score: 1 - float64(i)/float64(historyLimit),
		})
	}
	out.Total = len(out.Items)
	out.EpisodicCount = out.Total
	writeJSON(w, http.StatusOK, out)
}

func excerpt(text string, limit int) string {
	if utf8.RuneCountInString(text) <= limit {
		return text
	}
	return string([]rune(text)[:limit])
}
