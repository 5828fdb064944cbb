package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Analyzer sends a chart prompt with attached frames to an OpenAI-compatible
// endpoint and parses the trading decision from the reply. Candidate models
// are tried in order until one answers.
type Analyzer struct {
	config       *Config
	openaiClient *openai.Client
	logger       Logger
	retryHandler *RetryHandler
	httpClient   *http.Client
}

// Option configures optional analyzer behaviour.
type Option func(*options)

type options struct {
	logger       Logger
	retry        *RetryHandler
	httpClient   *http.Client
	openaiClient *openai.Client
}

// WithLogger injects a custom logger implementation.
func WithLogger(logger Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithRetryHandler injects a custom retry handler.
func WithRetryHandler(handler *RetryHandler) Option {
	return func(o *options) {
		o.retry = handler
	}
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) {
		o.httpClient = client
	}
}

// WithOpenAIClient injects a pre-configured OpenAI client.
func WithOpenAIClient(client *openai.Client) Option {
	return func(o *options) {
		o.openaiClient = client
	}
}

// NewAnalyzer validates cfg and builds an analyzer. It returns ErrNoAPIKey
// when cfg carries no key.
func NewAnalyzer(cfg *Config, opts ...Option) (*Analyzer, error) {
	if cfg == nil {
		return nil, errors.New("llm: config cannot be nil")
	}
	cfg = cfg.Clone()
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrNoAPIKey
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = NewLogger(cfg.LogLevel)
	}
	if o.retry == nil {
		o.retry = NewRetryHandler(RetryConfig{MaxRetries: cfg.MaxRetries})
	}
	if o.openaiClient == nil {
		reqOpts := []option.RequestOption{
			option.WithAPIKey(cfg.APIKey),
			option.WithBaseURL(cfg.BaseURL),
			// Retries are owned by RetryHandler.
			option.WithMaxRetries(0),
			option.WithRequestTimeout(cfg.Timeout),
		}
		if o.httpClient != nil {
			reqOpts = append(reqOpts, option.WithHTTPClient(o.httpClient))
		}
		client := openai.NewClient(reqOpts...)
		o.openaiClient = &client
	}

	return &Analyzer{
		config:       cfg,
		openaiClient: o.openaiClient,
		logger:       o.logger,
		retryHandler: o.retry,
		httpClient:   o.httpClient,
	}, nil
}

// Config returns a copy of the analyzer configuration.
func (a *Analyzer) Config() *Config {
	return a.config.Clone()
}

// Models returns the candidate list for the next request. With discovery
// enabled the endpoint's model list wins; the configured list is the fallback.
func (a *Analyzer) Models(ctx context.Context) []string {
	if !a.config.DiscoverModels {
		return a.config.Models()
	}
	discovered, err := a.DiscoverModels(ctx)
	if err != nil || len(discovered) == 0 {
		a.logger.Warn(ctx, "llm model discovery unusable, using configured candidates", Fields{
			"err":        err,
			"candidates": strings.Join(a.config.Models(), ","),
		})
		return a.config.Models()
	}
	return discovered
}

// DiscoverModels lists the endpoint's Gemini models, drops experimental,
// deprecated and non-generative ones, and orders flash models first with
// newer names ahead of older.
func (a *Analyzer) DiscoverModels(ctx context.Context) ([]string, error) {
	pager := a.openaiClient.Models.ListAutoPaging(ctx)
	seen := make(map[string]struct{})
	var models []string
	for pager.Next() {
		id := normalizeModelID(pager.Current().ID)
		if !usableModel(id) {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		models = append(models, id)
	}
	if err := pager.Err(); err != nil {
		return nil, fmt.Errorf("llm: list models: %w", err)
	}

	sort.SliceStable(models, func(i, j int) bool {
		fi, fj := strings.Contains(models[i], "flash"), strings.Contains(models[j], "flash")
		if fi != fj {
			return fi
		}
		return models[i] > models[j]
	})
	a.logger.Debug(ctx, "llm models discovered", Fields{"models": strings.Join(models, ",")})
	return models, nil
}

func usableModel(id string) bool {
	if !strings.Contains(id, "gemini") {
		return false
	}
	for _, skip := range []string{"learnlm", "experimental", "deprecated", "embedding"} {
		if strings.Contains(id, skip) {
			return false
		}
	}
	return true
}

// Analyze asks each candidate model in turn until one replies, then parses
// the reply into a Decision.
func (a *Analyzer) Analyze(ctx context.Context, prompt string, media []Media) (*Decision, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, errors.New("llm: prompt is empty")
	}
	parts, err := contentParts(prompt, media)
	if err != nil {
		return nil, err
	}
	models := a.Models(ctx)
	if len(models) == 0 {
		return nil, ErrNoModels
	}

	for _, model := range models {
		start := time.Now()
		text, err := a.complete(ctx, model, parts)
		if err == nil {
			a.logger.Info(ctx, "llm analysis reply", Fields{
				"model":       model,
				"duration_ms": time.Since(start).Milliseconds(),
				"frames":      len(media),
			})
			decision, perr := ParseDecision(text)
			if perr != nil {
				return nil, fmt.Errorf("llm: failed to parse analysis from %s: %w", model, perr)
			}
			decision.Model = model
			return decision, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if unavailableModel(err) {
			a.logger.Warn(ctx, "llm model unavailable, skipping", Fields{"model": model, "err": errorText(err)})
			continue
		}
		a.logger.Error(ctx, fmt.Errorf("llm model failed: %s", errorText(err)), Fields{"model": model})
	}
	return nil, fmt.Errorf("llm: %w. Tried: %s", ErrAllModelsFailed, strings.Join(models, ", "))
}

func (a *Analyzer) complete(ctx context.Context, model string, parts []openai.ChatCompletionContentPartUnionParam) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(model),
		Messages: []openai.ChatCompletionMessageParamUnion{openai.UserMessage(parts)},
	}
	if a.config.Temperature != nil {
		params.Temperature = openai.Float(*a.config.Temperature)
	}
	if a.config.MaxTokens != nil {
		params.MaxTokens = openai.Int(int64(*a.config.MaxTokens))
	}

	var completion *openai.ChatCompletion
	err := a.retryHandler.Do(ctx, func() error {
		resp, callErr := a.openaiClient.Chat.Completions.New(ctx, params)
		if callErr != nil {
			return callErr
		}
		completion = resp
		return nil
	})
	if err != nil {
		return "", err
	}
	if len(completion.Choices) == 0 {
		return "", errors.New("llm: empty completion")
	}
	text := strings.TrimSpace(completion.Choices[0].Message.Content)
	if text == "" {
		return "", errors.New("llm: empty completion content")
	}
	return text, nil
}

func contentParts(prompt string, media []Media) ([]openai.ChatCompletionContentPartUnionParam, error) {
	parts := make([]openai.ChatCompletionContentPartUnionParam, 0, len(media)+1)
	parts = append(parts, openai.TextContentPart(prompt))
	for i, m := range media {
		if !m.IsImage() {
			return nil, fmt.Errorf("%w: frame %d is %q", ErrUnsupportedMedia, i, m.MIMEType)
		}
		if len(m.Data) == 0 {
			return nil, fmt.Errorf("llm: frame %d is empty", i)
		}
		parts = append(parts, openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
			URL: m.DataURL(),
		}))
	}
	return parts, nil
}

// unavailableModel reports errors meaning the model itself is gone, as
// opposed to a failure of this particular request.
func unavailableModel(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
		return true
	}
	text := strings.ToLower(errorText(err))
	for _, marker := range []string{"not found", "no longer available", "deprecated", "not supported"} {
		if strings.Contains(text, marker) {
			return true
		}
	}
	return false
}

// errorText avoids openai.Error.Error, which dereferences the request and
// response and panics when they are missing.
func errorText(err error) string {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		if apiErr.Request != nil && apiErr.Response != nil {
			return apiErr.Error()
		}
		return fmt.Sprintf("http %d: %s", apiErr.StatusCode, apiErr.Message)
	}
	return err.Error()
}

// Close releases idle connections held by the HTTP client.
func (a *Analyzer) Close() error {
	if a.httpClient != nil {
		a.httpClient.CloseIdleConnections()
	}
	return nil
}
