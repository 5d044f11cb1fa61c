// Package direct implements ai.AIProvider by calling the OpenAI REST API
// through github.com/sashabaranov/go-openai. It is an alternative to the
// langchaingo-backed provider for deployments that need request-level
// metrics and API error details.
package direct

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/poiesic/insight/ai"
	"github.com/poiesic/insight/metrics"
	openai "github.com/sashabaranov/go-openai"
)

const providerName = "direct"

// Embedder is an ai.Embedder using the OpenAI embeddings endpoint.
type Embedder struct {
	client *openai.Client
	model  openai.EmbeddingModel
	logger *slog.Logger
}

// Generator is an ai.Generator using the OpenAI chat completions endpoint.
type Generator struct {
	client      *openai.Client
	model       string
	preamble    string
	temperature float32
	logger      *slog.Logger
}

// Provider bundles an Embedder and Generator that share one configuration.
type Provider struct {
	embedder  *Embedder
	generator *Generator
}

func newClient(host, apiKey string) *openai.Client {
	clientCfg := openai.DefaultConfig(apiKey)
	clientCfg.BaseURL = host
	return openai.NewClientWithConfig(clientCfg)
}

// NewProvider validates config and creates both services.
func NewProvider(config *ai.Config) (ai.AIProvider, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Provider{
		embedder: &Embedder{
			client: newClient(config.EmbeddingHost, config.APIKey),
			model:  openai.EmbeddingModel(config.EmbeddingModel),
			logger: slog.Default().With("component", "direct-embedder"),
		},
		generator: &Generator{
			client:      newClient(config.GeneratorHost, config.APIKey),
			model:       config.GeneratorModel,
			preamble:    config.Preamble,
			temperature: float32(config.Temperature),
			logger:      slog.Default().With("component", "direct-generator"),
		},
	}, nil
}

func (p *Provider) Embedder() ai.Embedder   { return p.embedder }
func (p *Provider) Generator() ai.Generator { return p.generator }
func (p *Provider) Close() error            { return nil }

// EmbedText embeds a single text.
func (e *Embedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedTexts embeds texts with one request. The response is reordered by
// index so vector i always belongs to texts[i].
func (e *Embedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	req := openai.EmbeddingRequest{
		Input:          texts,
		Model:          e.model,
		EncodingFormat: openai.EmbeddingEncodingFormatFloat,
	}

	start := time.Now()
	resp, err := e.client.CreateEmbeddings(ctx, req)
	duration := time.Since(start)

	if err != nil {
		observe("embed", "error", duration)
		e.logger.Error("embedding request failed", "count", len(texts), "err", err)
		return nil, parseAPIError("embedding", err)
	}
	if len(resp.Data) != len(texts) {
		observe("embed", "error", duration)
		return nil, fmt.Errorf("embedding response has %d vectors for %d texts", len(resp.Data), len(texts))
	}
	observe("embed", "success", duration)

	sort.Slice(resp.Data, func(i, j int) bool { return resp.Data[i].Index < resp.Data[j].Index })
	vectors := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		vectors[i] = d.Embedding
	}
	return vectors, nil
}

// Generate sends the preamble and prompt as a two-message chat and returns
// the first choice unmodified.
func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if g.preamble != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: g.preamble,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: prompt,
	})

	start := time.Now()
	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       g.model,
		Messages:    messages,
		Temperature: g.temperature,
	})
	duration := time.Since(start)

	if err != nil {
		observe("generate", "error", duration)
		g.logger.Error("chat completion failed", "err", err)
		return "", parseAPIError("chat", err)
	}
	if len(resp.Choices) == 0 {
		observe("generate", "error", duration)
		return "", errors.New("chat completion returned no choices")
	}
	observe("generate", "success", duration)

	return resp.Choices[0].Message.Content, nil
}

func observe(operation, status string, d time.Duration) {
	metrics.ProviderRequestsTotal.WithLabelValues(providerName, operation, status).Inc()
	metrics.ProviderRequestDuration.WithLabelValues(providerName, operation).Observe(d.Seconds())
}

// parseAPIError extracts a human-readable error from the API response.
func parseAPIError(op string, err error) error {
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		if detail := extractDetail(reqErr.Body); detail != "" {
			return fmt.Errorf("%s API error %d: %s: %w", op, reqErr.HTTPStatusCode, detail, err)
		}
		return fmt.Errorf("%s API error %d: %w", op, reqErr.HTTPStatusCode, err)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%s API error %d: %s: %w", op, apiErr.HTTPStatusCode, apiErr.Message, err)
	}

	return fmt.Errorf("%s request failed: %w", op, err)
}

// extractDetail reads the "detail" field some OpenAI-compatible servers use
// instead of the standard error envelope.
func extractDetail(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.Detail != "" {
		return parsed.Detail
	}
	return ""
}
