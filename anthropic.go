/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	anthropicEndpoint = "https://api.anthropic.com/v1/messages"
	anthropicVersion  = "2023-06-01"
	anthropicModel    = "claude-3-5-haiku-latest"
	apiKeyPrefix      = "sk-ant-"
)

// anthropicSource asks the Messages API for prompt batches. It is always
// wrapped by a fallbackSource, so its errors never reach the game engine.
type anthropicSource struct {
	keys   *keyStore
	client *http.Client
}

func newAnthropicSource(keys *keyStore) *anthropicSource {
	return &anthropicSource{
		keys:   keys,
		client: &http.Client{Timeout: 20 * time.Second},
	}
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Content []struct {
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (s *anthropicSource) complete(ctx context.Context, apiKey, prompt string, maxTokens int) (string, error) {
	body, err := json.Marshal(anthropicRequest{
		Model:     anthropicModel,
		MaxTokens: maxTokens,
		Messages:  []anthropicMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, anthropicEndpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Api-Key", apiKey)
	req.Header.Set("Anthropic-Version", anthropicVersion)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", err
	}

	var parsed anthropicResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", err
	}

	if resp.StatusCode != http.StatusOK {
		if parsed.Error != nil {
			return "", fmt.Errorf("anthropic: %s", parsed.Error.Message)
		}
		return "", fmt.Errorf("anthropic: status %d", resp.StatusCode)
	}

	if len(parsed.Content) == 0 {
		return "", fmt.Errorf("anthropic: empty response")
	}

	return parsed.Content[0].Text, nil
}

func (s *anthropicSource) GeneratePrompts(ctx context.Context, count int, seen map[string]bool, theme string) ([]string, error) {
	apiKey := s.keys.APIKey()
	if apiKey == "" {
		return nil, fmt.Errorf("anthropic: no api key configured")
	}

	ask := fmt.Sprintf("Write %d short, funny fill-in-the-blank party game prompts, one per line, no numbering.", count)
	if theme != "" {
		ask += fmt.Sprintf(" Theme: %s.", theme)
	}

	text, err := s.complete(ctx, apiKey, ask, 1024)
	if err != nil {
		return nil, err
	}

	out := make([]string, 0, count)
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || seen[line] {
			continue
		}
		seen[line] = true
		out = append(out, line)
		if len(out) == count {
			break
		}
	}

	if len(out) < count {
		return out, fmt.Errorf("anthropic: short batch (%d of %d)", len(out), count)
	}

	return out, nil
}

func (s *anthropicSource) GenerateLastLash(ctx context.Context, seen map[string]bool, theme string) (lastLashPrompt, error) {
	apiKey := s.keys.APIKey()
	if apiKey == "" {
		return lastLashPrompt{}, fmt.Errorf("anthropic: no api key configured")
	}

	ask := "Write one short story setup for a party game, two sentences, ending on a cliffhanger with an ellipsis."
	if theme != "" {
		ask += fmt.Sprintf(" Theme: %s.", theme)
	}

	text, err := s.complete(ctx, apiKey, ask, 256)
	if err != nil {
		return lastLashPrompt{}, err
	}

	prompt := strings.TrimSpace(text)
	if prompt == "" || seen[prompt] {
		return lastLashPrompt{}, fmt.Errorf("anthropic: unusable finale prompt")
	}
	seen[prompt] = true

	return lastLashPrompt{
		Prompt:       prompt,
		Mode:         modeFlashback,
		Instructions: modeInstructions[modeFlashback],
	}, nil
}

// validateAPIKey confirms a key works with a minimal live call.
func (s *anthropicSource) validateAPIKey(ctx context.Context, apiKey string) error {
	if !strings.HasPrefix(apiKey, apiKeyPrefix) {
		return fmt.Errorf("api key must start with %q", apiKeyPrefix)
	}

	_, err := s.complete(ctx, apiKey, "Reply with the word ok.", 8)
	return err
}
