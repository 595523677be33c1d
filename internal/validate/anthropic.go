package validate

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/vulnscout/vulnscout/internal/config"
	scouterr "github.com/vulnscout/vulnscout/internal/errors"
)

// AnthropicProvider validates candidates through the Anthropic messages
// API. The model answers with a single JSON object; markdown fences around
// it are tolerated.
type AnthropicProvider struct {
	client    *anthropic.Client
	model     string
	maxTokens int64
	retry     scouterr.RetryConfig
}

var _ Provider = (*AnthropicProvider)(nil)

// NewAnthropicProvider reads the API key from the configured environment
// variable. A missing key is a permanent input error.
func NewAnthropicProvider(cfg config.ValidationConfig) (*AnthropicProvider, error) {
	keyEnv := cfg.APIKeyEnv
	if keyEnv == "" {
		keyEnv = "ANTHROPIC_API_KEY"
	}
	apiKey := os.Getenv(keyEnv)
	if apiKey == "" {
		return nil, scouterr.New(scouterr.ErrCodeAuthRequired,
			fmt.Sprintf("%s not set", keyEnv), nil)
	}

	maxTokens := int64(cfg.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &AnthropicProvider{
		client:    &client,
		model:     cfg.Model,
		maxTokens: maxTokens,
		retry:     scouterr.DefaultRetryConfig(),
	}, nil
}

const validatePrompt = `You are a security reviewer. Given a vulnerability description and a code snippet, decide whether the snippet actually exhibits the described weakness.

Vulnerability:
%s

Code:
%s

Respond with exactly one JSON object, no other text:
{"confirmed": true|false, "severity": "critical|high|medium|low|info", "confidence": 0.0-1.0, "rationale": "one or two sentences"}`

func (p *AnthropicProvider) Validate(ctx context.Context, candidateDesc, snippet string) (Verdict, error) {
	prompt := fmt.Sprintf(validatePrompt, candidateDesc, snippet)

	response, err := scouterr.RetryWithResult(ctx, p.retry, func() (*anthropic.Message, error) {
		resp, apiErr := p.client.Messages.New(ctx, anthropic.MessageNewParams{
			Model:     anthropic.Model(p.model),
			MaxTokens: p.maxTokens,
			Messages: []anthropic.MessageParam{
				anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
			},
		})
		if apiErr != nil {
			return nil, scouterr.New(scouterr.ErrCodeProviderUnavailable, "validation call failed", apiErr)
		}
		return resp, nil
	})
	if err != nil {
		return Verdict{}, err
	}

	var text strings.Builder
	for _, block := range response.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	return parseVerdict(text.String())
}

// parseVerdict extracts the verdict JSON from the model output, stripping
// markdown fences and surrounding prose when present.
func parseVerdict(text string) (Verdict, error) {
	cleaned := strings.TrimSpace(text)
	if strings.HasPrefix(cleaned, "```") {
		cleaned = strings.TrimPrefix(cleaned, "```json")
		cleaned = strings.TrimPrefix(cleaned, "```")
		if idx := strings.LastIndex(cleaned, "```"); idx >= 0 {
			cleaned = cleaned[:idx]
		}
		cleaned = strings.TrimSpace(cleaned)
	}

	var v Verdict
	if err := json.Unmarshal([]byte(cleaned), &v); err == nil {
		return v, nil
	}

	// Fall back to the outermost braces in mixed content.
	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start >= 0 && end > start {
		if err := json.Unmarshal([]byte(cleaned[start:end+1]), &v); err == nil {
			return v, nil
		}
	}
	return Verdict{}, scouterr.New(scouterr.ErrCodeInvalidInput,
		"validation response is not a verdict object", nil).WithDetail("response", truncate(text, 500))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
