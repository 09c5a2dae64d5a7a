// Package ai proxies chat prompts and image prompts to public AI
// frontends and, when configured, an OpenAI compatible API.
package ai

import (
	"sort"
	"strings"

	"github.com/iconidentify/mediagrab/internal/domain"
	"github.com/iconidentify/mediagrab/internal/resolver"
)

// Messages returned for rejected input.
const (
	EmptyPromptMessage    = "Parameter 'prompt' is required."
	UnknownPersonaMessage = "Unknown AI persona."
)

// Request options read by the chat providers.
const (
	OptionPersona = "persona"
	OptionSystem  = "system"
)

const defaultSystemPrompt = "You are a helpful AI assistant. Respond clearly and accurately."

var personas = map[string]string{
	"gpt":      "You are a helpful assistant.",
	"claude":   "You are Claude, a helpful AI assistant made by Anthropic. Respond thoughtfully and accurately.",
	"mistral":  defaultSystemPrompt,
	"gemini":   defaultSystemPrompt,
	"deepseek": defaultSystemPrompt,
	"venice":   defaultSystemPrompt,
	"groq":     defaultSystemPrompt,
	"cohere":   defaultSystemPrompt,
}

// Personas returns the known persona names, sorted.
func Personas() []string {
	names := make([]string, 0, len(personas))
	for name := range personas {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ValidateChat rejects empty prompts and unknown personas. The persona's
// default system prompt is filled in when the caller sent none.
func ValidateChat(req *resolver.Request) error {
	prompt := strings.TrimSpace(req.Input)
	if prompt == "" {
		return domain.NewInputError(req.Capability, EmptyPromptMessage)
	}
	req.Input = prompt

	persona := strings.ToLower(strings.TrimSpace(req.Option(OptionPersona)))
	if persona == "" {
		persona = "gpt"
	}
	system, ok := personas[persona]
	if !ok {
		return domain.NewInputError(req.Capability, UnknownPersonaMessage)
	}
	req.SetOption(OptionPersona, persona)
	if strings.TrimSpace(req.Option(OptionSystem)) == "" {
		req.SetOption(OptionSystem, system)
	}
	return nil
}

// ValidateImage rejects empty image prompts.
func ValidateImage(req *resolver.Request) error {
	prompt := strings.TrimSpace(req.Input)
	if prompt == "" {
		return domain.NewInputError(req.Capability, EmptyPromptMessage)
	}
	req.Input = prompt
	return nil
}

func systemPrompt(req resolver.Request) string {
	if s := strings.TrimSpace(req.Option(OptionSystem)); s != "" {
		return s
	}
	return defaultSystemPrompt
}
