package analytics

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"RiskPulse/internal/domain/errs"
	domsvc "RiskPulse/internal/domain/service"
	xhttp "RiskPulse/pkg/http"
	applogger "RiskPulse/pkg/logger"
)

// ErrNoAPIKey is returned by Complete when no key is configured.
var ErrNoAPIKey = errs.E(errs.KindUnavailable, "llm", "api key not configured", nil)

type LLMConfig struct {
	BaseURL    string
	Model      string
	APIKey     string
	MaxTokens  int
	Timeout    time.Duration
	RetryMax   int
	RetryDelay time.Duration
}

// HTTPLLM talks to a chat-completions endpoint.
type HTTPLLM struct {
	base *HTTPServiceBase
	cfg  LLMConfig
	l    *applogger.Logger
}

func NewHTTPLLM(cfg LLMConfig, l *applogger.Logger) *HTTPLLM {
	if l == nil {
		l = applogger.Nop()
	}
	if cfg.RetryMax < 1 {
		cfg.RetryMax = 1
	}
	return &HTTPLLM{
		base: NewHTTPServiceBase(cfg.BaseURL, cfg.Timeout, map[string]string{"Authorization": "Bearer " + cfg.APIKey}),
		cfg:  cfg,
		l:    l,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Complete sends a single user prompt. A 429 is retried; after RetryMax
// attempts the error has kind rate_limit so callers can pick their fallback text.
func (c *HTTPLLM) Complete(ctx context.Context, prompt string) (string, error) {
	if c.cfg.APIKey == "" {
		return "", ErrNoAPIKey
	}

	var cr chatResponse
	err := c.base.PostJSONWithRetry(ctx, "/chat/completions", chatRequest{
		Model:     c.cfg.Model,
		Messages:  []chatMessage{{Role: "user", Content: prompt}},
		MaxTokens: c.cfg.MaxTokens,
	}, &cr, c.cfg.RetryMax, c.cfg.RetryDelay, c.retryable)
	if err != nil {
		if xhttp.IsStatus(err, http.StatusTooManyRequests) {
			c.l.Warn("llm rate limited after retries", applogger.Int("attempts", c.cfg.RetryMax))
			return "", errs.E(errs.KindRateLimit, "llm", "rate limited", err)
		}
		return "", errs.E(errs.KindExternalService, "llm", "", err)
	}
	if len(cr.Choices) == 0 {
		return "", errs.E(errs.KindExternalService, "llm", "empty completion", nil)
	}
	return strings.TrimSpace(cr.Choices[0].Message.Content), nil
}

// retryable covers 429s and transport failures. Other HTTP statuses are final.
func (c *HTTPLLM) retryable(err error) bool {
	if xhttp.IsStatus(err, http.StatusTooManyRequests) {
		c.l.Debug("llm rate limited, retrying", applogger.Duration("delay", c.cfg.RetryDelay))
		return true
	}
	var se *xhttp.StatusError
	return !errors.As(err, &se)
}

var _ domsvc.LLM = (*HTTPLLM)(nil)
