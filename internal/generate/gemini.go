package generate

import (
	"context"

	"google.golang.org/genai"
)

const componentSystemPrompt = `You are a world-class front-end developer and UI/UX designer.
Generate ONLY a single React component inside an App.js file.
Include all styles inside a single <style> tag, or TailwindCSS classes when asked.
The component must be modern, fully responsive, and interactive.
Output ONLY JSX code; no explanations, comments, or markdown outside the code.`

// GeminiClient generates component code with the Gemini API.
type GeminiClient struct {
	client *genai.Client
	model  string
}

func NewGeminiClient(ctx context.Context, apiKey, model string) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, &ProviderError{
			Provider: "gemini",
			Code:     ErrCodeAPIKey,
			Message:  "failed to create Gemini client",
			Err:      err,
		}
	}
	return &GeminiClient{client: client, model: model}, nil
}

func (c *GeminiClient) ProviderName() string { return "gemini" }

func (c *GeminiClient) GenerateComponent(ctx context.Context, prompt string) (string, error) {
	if prompt == "" {
		return "", &ProviderError{
			Provider: "gemini",
			Code:     ErrCodeInvalidInput,
			Message:  "prompt is required",
		}
	}

	result, err := c.client.Models.GenerateContent(
		ctx,
		c.model,
		genai.Text(componentSystemPrompt+"\n\nUser request:\n"+prompt),
		nil,
	)
	if err != nil {
		return "", &ProviderError{
			Provider: "gemini",
			Code:     ErrCodeServiceDown,
			Message:  "failed to generate component",
			Err:      err,
		}
	}
	if result == nil {
		return "", &ProviderError{
			Provider: "gemini",
			Code:     ErrCodeInvalidInput,
			Message:  "no response generated",
		}
	}

	text, err := result.Text()
	if err != nil {
		return "", &ProviderError{
			Provider: "gemini",
			Code:     ErrCodeInvalidInput,
			Message:  "failed to extract response text",
			Err:      err,
		}
	}
	if text == "" {
		return "", &ProviderError{
			Provider: "gemini",
			Code:     ErrCodeInvalidInput,
			Message:  "empty response generated",
		}
	}
	return StripCodeFence(text), nil
}
