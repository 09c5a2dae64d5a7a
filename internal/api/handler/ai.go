package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iconidentify/mediagrab/internal/domain"
	"github.com/iconidentify/mediagrab/internal/resolver"
	"github.com/iconidentify/mediagrab/pkg/ai"
)

const maxPromptBody = 1 << 20

// AIHandler serves the chat and image routes.
type AIHandler struct {
	engine resolver.Resolver
	logger *slog.Logger
}

// NewAIHandler creates a new AI handler.
func NewAIHandler(engine resolver.Resolver, logger *slog.Logger) *AIHandler {
	return &AIHandler{
		engine: engine,
		logger: logger.With("component", "ai-handler"),
	}
}

// PromptRequest is the JSON body of the AI routes.
type PromptRequest struct {
	Prompt string `json:"prompt"`
	System string `json:"system"`
}

// ChatResponse is the JSON response of a chat route.
type ChatResponse struct {
	Success  bool   `json:"success"`
	Provider string `json:"provider"`
	Model    string `json:"model"`
	Response string `json:"response"`
}

// Chat handles POST /api/ai/{persona}.
func (h *AIHandler) Chat(w http.ResponseWriter, r *http.Request) {
	body, ok := decodePrompt(w, r)
	if !ok {
		return
	}

	req := resolver.Request{Capability: domain.CapAIChat, Input: body.Prompt}
	req.SetOption(ai.OptionPersona, chi.URLParam(r, "persona"))
	if body.System != "" {
		req.SetOption(ai.OptionSystem, body.System)
	}

	res, err := h.engine.Resolve(r.Context(), req)
	if err != nil {
		writeResolveError(w, r, h.logger, domain.CapAIChat, err)
		return
	}
	writeJSON(w, http.StatusOK, ChatResponse{
		Success:  true,
		Provider: res.Provider,
		Model:    res.Model,
		Response: res.Text,
	})
}

// Image handles POST /api/ai/image/dall-e.
func (h *AIHandler) Image(w http.ResponseWriter, r *http.Request) {
	body, ok := decodePrompt(w, r)
	if !ok {
		return
	}
	resolveAndWrite(w, r, h.engine, h.logger, resolver.Request{
		Capability: domain.CapAIImage,
		Input:      body.Prompt,
	})
}

func decodePrompt(w http.ResponseWriter, r *http.Request) (PromptRequest, bool) {
	var body PromptRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxPromptBody)).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return body, false
	}
	return body, true
}
