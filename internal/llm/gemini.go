package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

// GeminiClient implements Client on top of the official GenAI SDK.
type GeminiClient struct {
	client *genai.Client
	model  string
	log    *zap.Logger
}

// GeminiConfig holds configuration for the Gemini client.
type GeminiConfig struct {
	APIKey  string
	Model   string
	Timeout time.Duration
	Logger  *zap.Logger
}

// NewGeminiClient creates a Gemini client. Construction fails without an
// API key because the SDK dials during setup.
func NewGeminiClient(ctx context.Context, config GeminiConfig) (*GeminiClient, error) {
	if config.APIKey == "" {
		return nil, ErrNotConfigured
	}
	if config.Model == "" {
		config.Model = "gemini-2.5-flash"
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: config.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	return &GeminiClient{
		client: client,
		model:  config.Model,
		log:    config.Logger,
	}, nil
}

// Complete sends a prompt and returns the completion.
func (c *GeminiClient) Complete(ctx context.Context, prompt string) (string, error) {
	return c.CompleteWithSystem(ctx, "", prompt)
}

// CompleteWithSystem sends a prompt with a system instruction.
func (c *GeminiClient) CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	contents := []*genai.Content{
		genai.NewContentFromText(userPrompt, genai.RoleUser),
	}

	genConfig := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(0.2)),
	}
	if systemPrompt != "" {
		genConfig.SystemInstruction = genai.NewContentFromText(systemPrompt, genai.RoleUser)
	}

	start := time.Now()
	result, err := c.client.Models.GenerateContent(ctx, c.model, contents, genConfig)
	if err != nil {
		return "", fmt.Errorf("generation failed: %w", err)
	}

	text := result.Text()
	if text == "" {
		return "", fmt.Errorf("no completion returned")
	}

	c.log.Debug("completion received",
		zap.String("model", c.model),
		zap.Duration("elapsed", time.Since(start)))

	return strings.TrimSpace(text), nil
}

// SetModel changes the model used for completions.
func (c *GeminiClient) SetModel(model string) {
	c.model = model
}

// GetModel returns the current model.
func (c *GeminiClient) GetModel() string {
	return c.model
}
