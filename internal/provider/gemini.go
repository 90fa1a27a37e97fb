// Package provider implements the generative-AI backends. Calls are raw HTTP
// against the Gemini REST API; each call is a single attempt, the pipeline
// turns failures into user-facing messages instead of retrying.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const (
	defaultAPIBase     = "https://generativelanguage.googleapis.com/v1beta"
	defaultTextModel   = "gemini-2.5-flash"
	defaultImageModel  = "gemini-2.0-flash-exp"
	defaultHTTPTimeout = 120 * time.Second
)

// Gemini talks to the Gemini generateContent endpoint for both the text and
// the image model.
type Gemini struct {
	apiKey     string
	apiBase    string
	textModel  string
	imageModel string
	client     *http.Client
	logger     *slog.Logger
}

type GeminiConfig struct {
	APIKey     string
	APIBase    string
	TextModel  string
	ImageModel string
	Timeout    time.Duration
	Logger     *slog.Logger
}

func NewGemini(cfg GeminiConfig) *Gemini {
	if cfg.APIBase == "" {
		cfg.APIBase = defaultAPIBase
	}
	if cfg.TextModel == "" {
		cfg.TextModel = defaultTextModel
	}
	if cfg.ImageModel == "" {
		cfg.ImageModel = defaultImageModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultHTTPTimeout
	}
	return &Gemini{
		apiKey:     cfg.APIKey,
		apiBase:    cfg.APIBase,
		textModel:  cfg.TextModel,
		imageModel: cfg.ImageModel,
		client:     &http.Client{Timeout: cfg.Timeout},
		logger:     cfg.Logger,
	}
}

func (g *Gemini) Name() string { return "gemini" }

// Healthy probes the models listing endpoint.
func (g *Gemini) Healthy(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "GET", g.apiBase+"/models", nil)
	if err != nil {
		return err
	}
	req.Header.Set("x-goog-api-key", g.apiKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("gemini not reachable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return fmt.Errorf("gemini: invalid API key")
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("gemini returned %d", resp.StatusCode)
	}
	return nil
}

type genRequest struct {
	Contents         []genContent  `json:"contents"`
	GenerationConfig *genGenConfig `json:"generationConfig,omitempty"`
}

type genContent struct {
	Role  string    `json:"role"`
	Parts []genPart `json:"parts"`
}

type genPart struct {
	Text       string         `json:"text,omitempty"`
	InlineData *genInlineData `json:"inlineData,omitempty"`
}

type genInlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type genGenConfig struct {
	ResponseModalities []string `json:"responseModalities,omitempty"`
}

type genResponse struct {
	Candidates []struct {
		Content struct {
			Parts []genPart `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
}

// GenerateText implements domain.TextBackend.
func (g *Gemini) GenerateText(ctx context.Context, prompt string) (string, error) {
	resp, err := g.generate(ctx, g.textModel, genRequest{
		Contents: []genContent{{Role: "user", Parts: []genPart{{Text: prompt}}}},
	})
	if err != nil {
		return "", err
	}

	var text string
	for _, p := range resp.Candidates[0].Content.Parts {
		text += p.Text
	}
	return text, nil
}

// GenerateImage implements domain.ImageBackend. It reports whether the model
// returned any inline image data; the binary itself goes no further because
// there is no storage to host it.
func (g *Gemini) GenerateImage(ctx context.Context, instruction string) (bool, error) {
	resp, err := g.generate(ctx, g.imageModel, genRequest{
		Contents:         []genContent{{Role: "user", Parts: []genPart{{Text: instruction}}}},
		GenerationConfig: &genGenConfig{ResponseModalities: []string{"TEXT", "IMAGE"}},
	})
	if err != nil {
		return false, err
	}

	for _, p := range resp.Candidates[0].Content.Parts {
		if p.InlineData != nil && p.InlineData.Data != "" {
			return true, nil
		}
	}
	return false, fmt.Errorf("no image data in response")
}

func (g *Gemini) generate(ctx context.Context, model string, body genRequest) (*genResponse, error) {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", g.apiBase, model)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", g.apiKey)

	start := time.Now()
	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gemini request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("gemini %d: %s", resp.StatusCode, string(respBody))
	}

	var out genResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if len(out.Candidates) == 0 {
		return nil, fmt.Errorf("no candidates in response")
	}

	g.logger.Debug("gemini call completed",
		"model", model,
		"latency_ms", time.Since(start).Milliseconds(),
	)
	return &out, nil
}
