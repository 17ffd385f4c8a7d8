// Package ollama implements provider.Provider on a local Ollama server.
package ollama

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"chatwindow/internal/provider"
	"chatwindow/pkg/logger"

	"github.com/ollama/ollama/api"
	"github.com/rs/zerolog"
)

const providerName = "ollama"

// OllamaProvider talks to Ollama through its Go API client.
type OllamaProvider struct {
	client    *api.Client
	endpoint  string
	model     string
	keepAlive *api.Duration
	logger    zerolog.Logger
}

// NewOllamaProvider creates a provider for cfg. Empty fields take defaults.
func NewOllamaProvider(cfg Config) (*OllamaProvider, error) {
	cfg = cfg.withDefaults()

	base, err := url.Parse(cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse ollama endpoint %q: %w", cfg.Endpoint, err)
	}

	p := &OllamaProvider{
		client:   api.NewClient(base, &http.Client{Timeout: cfg.Timeout}),
		endpoint: cfg.Endpoint,
		model:    cfg.Model,
		logger:   logger.Component("ollama"),
	}

	if d, err := time.ParseDuration(cfg.KeepAlive); err == nil {
		p.keepAlive = &api.Duration{Duration: d}
	} else {
		p.logger.Warn().Str("keep_alive", cfg.KeepAlive).Msg("invalid keep_alive, using server default")
	}

	return p, nil
}

// Name returns the provider name.
func (p *OllamaProvider) Name() string {
	return providerName
}

// DefaultModel returns the model used when a request names none.
func (p *OllamaProvider) DefaultModel() string {
	return p.model
}

// Models lists the models pulled on the server.
func (p *OllamaProvider) Models(ctx context.Context) ([]string, error) {
	resp, err := p.client.List(ctx)
	if err != nil {
		return nil, p.classifyError(err)
	}
	models := make([]string, 0, len(resp.Models))
	for _, m := range resp.Models {
		models = append(models, m.Name)
	}
	return models, nil
}

// Ping checks that the server is reachable.
func (p *OllamaProvider) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := p.client.Heartbeat(ctx); err != nil {
		return p.classifyError(err)
	}
	return nil
}

// Chat sends a non-streaming chat request.
func (p *OllamaProvider) Chat(ctx context.Context, req provider.ChatRequest) (*provider.ChatResponse, error) {
	chatReq := p.buildRequest(req, false)
	p.logger.Debug().Str("model", chatReq.Model).Int("messages", len(chatReq.Messages)).Msg("chat request")

	var (
		content strings.Builder
		final   api.ChatResponse
	)
	err := p.client.Chat(ctx, chatReq, func(resp api.ChatResponse) error {
		content.WriteString(resp.Message.Content)
		if resp.Done {
			final = resp
		}
		return nil
	})
	if err != nil {
		p.logger.Error().Err(err).Str("model", chatReq.Model).Msg("chat request failed")
		return nil, p.classifyError(err)
	}

	return &provider.ChatResponse{
		Content:      content.String(),
		Usage:        usageOf(&final),
		FinishReason: finishReason(&final),
	}, nil
}

// Stream sends a streaming chat request. Events are produced until the
// response completes, fails, or ctx is cancelled; consumers that stop reading
// early must cancel ctx so the request is abandoned.
func (p *OllamaProvider) Stream(ctx context.Context, req provider.ChatRequest) (<-chan provider.ChatEvent, error) {
	chatReq := p.buildRequest(req, true)
	events := make(chan provider.ChatEvent)

	send := func(ev provider.ChatEvent) bool {
		select {
		case events <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}

	go func() {
		defer close(events)

		err := p.client.Chat(ctx, chatReq, func(resp api.ChatResponse) error {
			if resp.Message.Content != "" {
				if !send(provider.ChatEvent{Type: provider.EventTypeContent, Delta: resp.Message.Content}) {
					return ctx.Err()
				}
			}
			if resp.Done {
				send(provider.ChatEvent{
					Type:         provider.EventTypeDone,
					Usage:        usageOf(&resp),
					FinishReason: finishReason(&resp),
				})
			}
			return nil
		})
		if err == nil || ctx.Err() != nil {
			return
		}

		p.logger.Error().Err(err).Str("model", chatReq.Model).Msg("stream request failed")
		send(provider.ChatEvent{Type: provider.EventTypeError, Error: p.classifyError(err)})
	}()

	return events, nil
}

// buildRequest converts a provider request into an Ollama chat request.
func (p *OllamaProvider) buildRequest(req provider.ChatRequest, stream bool) *api.ChatRequest {
	model := strings.TrimPrefix(req.Model, "ollama:")
	if model == "" {
		model = p.model
	}

	messages := make([]api.Message, len(req.Messages))
	for i, m := range req.Messages {
		messages[i] = api.Message{Role: m.Role, Content: m.Content}
	}

	chatReq := &api.ChatRequest{
		Model:     model,
		Messages:  messages,
		Stream:    &stream,
		KeepAlive: p.keepAlive,
	}

	if req.Temperature > 0 || req.MaxTokens > 0 {
		chatReq.Options = map[string]any{}
		if req.Temperature > 0 {
			chatReq.Options["temperature"] = req.Temperature
		}
		if req.MaxTokens > 0 {
			chatReq.Options["num_predict"] = req.MaxTokens
		}
	}

	return chatReq
}

func usageOf(resp *api.ChatResponse) *provider.Usage {
	prompt, completion := resp.Metrics.PromptEvalCount, resp.Metrics.EvalCount
	if prompt == 0 && completion == 0 {
		return nil
	}
	return &provider.Usage{
		PromptTokens:     prompt,
		CompletionTokens: completion,
		TotalTokens:      prompt + completion,
	}
}

func finishReason(resp *api.ChatResponse) string {
	if resp.DoneReason == provider.FinishReasonLength {
		return provider.FinishReasonLength
	}
	return provider.FinishReasonStop
}

// classifyError converts client errors into provider errors.
func (p *OllamaProvider) classifyError(err error) *provider.ProviderError {
	pe := &provider.ProviderError{Provider: providerName, Message: err.Error(), Err: err}

	var statusErr api.StatusError
	switch {
	case errors.Is(err, context.Canceled):
		pe.Code = provider.ErrCodeCanceled
		pe.Message = "request canceled"
	case errors.Is(err, context.DeadlineExceeded):
		pe.Code = provider.ErrCodeTimeout
		pe.Message = "request timed out"
		pe.Retryable = true
	case errors.As(err, &statusErr):
		pe.Message = statusErr.ErrorMessage
		switch {
		case statusErr.StatusCode == http.StatusNotFound:
			pe.Code = provider.ErrCodeModelNotFound
			pe.Message = statusErr.ErrorMessage + " (pull it with `ollama pull`)"
		case statusErr.StatusCode >= http.StatusInternalServerError:
			pe.Code = provider.ErrCodeServiceUnavailable
			pe.Retryable = true
		case provider.IsContextWindowExceeded(err):
			pe.Code = provider.ErrCodeContextWindowExceeded
		default:
			pe.Code = provider.ErrCodeInvalidRequest
		}
	case strings.Contains(err.Error(), "connection refused"):
		pe.Code = provider.ErrCodeNetworkError
		pe.Message = fmt.Sprintf("ollama not reachable at %s, is `ollama serve` running?", p.endpoint)
		pe.Retryable = true
	case provider.IsContextWindowExceeded(err):
		pe.Code = provider.ErrCodeContextWindowExceeded
	default:
		pe.Code = provider.ErrCodeUnknown
	}
	return pe
}
