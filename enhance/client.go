// Package enhance talks to the OpenAI chat completions API to improve
// prompts and generate categorized smart responses, and runs those calls
// through a single-flight background worker.
package enhance

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const apiURL = "https://api.openai.com/v1/chat/completions"

// Input length caps, matching the limits the dashboard enforces.
const (
	maxEnhanceInputLength  = 3000
	maxResponseInputLength = 5000
)

// ErrorKind classifies an enhancement failure so the UI can give an
// actionable message. None of these are fatal to the process.
type ErrorKind int

const (
	KindAuthenticationMissing ErrorKind = iota
	KindTimeout
	KindRateLimited
	KindNetworkError
	KindServiceError
)

func (k ErrorKind) String() string {
	switch k {
	case KindAuthenticationMissing:
		return "authentication_missing"
	case KindTimeout:
		return "timeout"
	case KindRateLimited:
		return "rate_limited"
	case KindNetworkError:
		return "network_error"
	default:
		return "service_error"
	}
}

// Error is a classified enhancement failure.
type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func classified(kind ErrorKind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

// ResponseType selects the system prompt for a smart response.
type ResponseType string

const (
	ResponseGeneral     ResponseType = "general"
	ResponseEducational ResponseType = "educational"
	ResponseCode        ResponseType = "code"
	ResponseCreative    ResponseType = "creative"
	ResponseAnalytical  ResponseType = "analytical"
	ResponseStepByStep  ResponseType = "step_by_step"
	ResponseFun         ResponseType = "fun"
)

const enhanceSystemPrompt = "You are a prompt enhancement expert. Your job is to improve user prompts " +
	"to make them more effective, clear, and detailed for AI models. Preserve the user's intent while " +
	"adding structure, context, and specificity. Return only the enhanced prompt."

var responseSystemPrompts = map[ResponseType]string{
	ResponseGeneral: "You are a helpful AI assistant. Provide clear, accurate, and helpful responses " +
		"to user questions and requests. Focus on being informative, concise, and relevant to the user's input.",
	ResponseEducational: "You are an educational expert. Provide detailed, well-structured explanations " +
		"that help users learn and understand concepts. Break down complex topics into digestible parts " +
		"and use examples when helpful.",
	ResponseCode: "You are a programming expert and code reviewer. Analyze code snippets, identify issues, " +
		"suggest improvements, and provide explanations. Consider code quality, performance, readability, " +
		"security, and error handling. Provide specific, actionable feedback.",
	ResponseCreative: "You are a creative writing assistant. Help users with creative writing tasks, " +
		"brainstorming, and artistic expression. Provide imaginative, engaging, and original content " +
		"while maintaining coherence and structure.",
	ResponseAnalytical: "You are an analytical expert. Break down complex problems, analyze data, and " +
		"provide logical, evidence-based insights. Use structured thinking and present clear conclusions.",
	ResponseStepByStep: "You are a step-by-step problem solver. Break down complex tasks and problems " +
		"into clear, manageable steps with explanations for each step.",
	ResponseFun: "You are a fun and engaging conversationalist. Respond with humor, creativity, and " +
		"enthusiasm while still being helpful. Balance entertainment with usefulness.",
}

func systemPromptFor(rt ResponseType) string {
	if p, ok := responseSystemPrompts[rt]; ok {
		return p
	}
	return responseSystemPrompts[ResponseGeneral]
}

// Client calls the OpenAI chat completions API.
type Client struct {
	apiKey      string
	model       string
	maxTokens   int
	temperature float64
	baseURL     string
	client      *http.Client
}

// NewClient creates an OpenAI client. An empty apiKey is allowed at
// construction time; calls then fail with KindAuthenticationMissing.
func NewClient(apiKey, model string, maxTokens int, temperature float64) *Client {
	if model == "" {
		model = "gpt-4"
	}
	return &Client{
		apiKey:      apiKey,
		model:       model,
		maxTokens:   maxTokens,
		temperature: temperature,
		baseURL:     apiURL,
		client:      &http.Client{},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Enhance rewrites prompt into a more effective one.
func (c *Client) Enhance(ctx context.Context, prompt string) (string, *Error) {
	if strings.TrimSpace(prompt) == "" {
		return "", classified(KindServiceError, fmt.Errorf("empty prompt"))
	}
	if len(prompt) > maxEnhanceInputLength {
		return "", classified(KindServiceError, fmt.Errorf("prompt exceeds %d characters", maxEnhanceInputLength))
	}
	return c.complete(ctx, enhanceSystemPrompt, "Please enhance this prompt: "+prompt)
}

// SmartResponse answers input in the style selected by rt.
func (c *Client) SmartResponse(ctx context.Context, input string, rt ResponseType) (string, *Error) {
	if strings.TrimSpace(input) == "" {
		return "", classified(KindServiceError, fmt.Errorf("empty input"))
	}
	if len(input) > maxResponseInputLength {
		return "", classified(KindServiceError, fmt.Errorf("input exceeds %d characters", maxResponseInputLength))
	}
	return c.complete(ctx, systemPromptFor(rt), input)
}

func (c *Client) complete(ctx context.Context, system, user string) (string, *Error) {
	if c.apiKey == "" {
		return "", classified(KindAuthenticationMissing, fmt.Errorf("no OpenAI API key configured"))
	}

	payload := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", classified(KindServiceError, fmt.Errorf("failed to marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL, bytes.NewReader(body))
	if err != nil {
		return "", classified(KindServiceError, fmt.Errorf("failed to create request: %w", err))
	}

	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		if isTimeout(ctx, err) {
			return "", classified(KindTimeout, err)
		}
		return "", classified(KindNetworkError, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		if isTimeout(ctx, err) {
			return "", classified(KindTimeout, err)
		}
		return "", classified(KindNetworkError, fmt.Errorf("failed to read response: %w", err))
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return "", classified(KindRateLimited, fmt.Errorf("API rate limited: %s", strings.TrimSpace(string(respBody))))
	case resp.StatusCode == http.StatusUnauthorized:
		return "", classified(KindAuthenticationMissing, fmt.Errorf("API rejected credentials: %s", strings.TrimSpace(string(respBody))))
	case resp.StatusCode != http.StatusOK:
		return "", classified(KindServiceError, fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody))))
	}

	var result chatResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", classified(KindServiceError, fmt.Errorf("failed to parse response: %w", err))
	}
	if len(result.Choices) == 0 {
		return "", classified(KindServiceError, fmt.Errorf("no choices returned"))
	}

	output := strings.TrimSpace(result.Choices[0].Message.Content)
	if output == "" {
		return "", classified(KindServiceError, fmt.Errorf("empty completion returned"))
	}

	return output, nil
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	var ne interface{ Timeout() bool }
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	return false
}
