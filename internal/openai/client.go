package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/codebuildervaibhav/lecture-notebook/internal/apperr"
	"github.com/codebuildervaibhav/lecture-notebook/internal/config"
	"github.com/codebuildervaibhav/lecture-notebook/internal/types"
)

const transcribePrompt = "This recording is of a teacher from a high-school class, in Israel, in Hebrew. There might be Hebrew names, verses from bible and Gemarah, etc."

const summarizePrompt = `You are a precise JSON generator and expert note-taker using the Cornell Method. Your task is to create a structured summary of a lecture transcript in Hebrew, formatted as a valid, parseable JSON object.

OUTPUT CONSTRAINTS:
1. Return ONLY a single-line JSON object
2. NO text before or after the JSON object
3. ALL strings must be properly escaped
4. NO line breaks, tabs, or control characters in strings
5. ALL HTML tags must be properly closed
6. Use ONLY double quotes for JSON properties and values

JSON STRUCTURE:
{"title": "Brief descriptive title", "notes": "Main content with HTML formatting", "cues": "Key points with HTML formatting", "summary": "Concise summary with HTML formatting"}

CONTENT GUIDELINES:
- Title: concise, informative, plain text
- Notes: comprehensive lecture content using <p>, <ul>, <li>, <strong>, <em>
- Cues: key terms with definitions, study questions, important concepts
- Summary: concise overview, key takeaways, single paragraph with <p> tags

HEBREW LANGUAGE RULES:
- All content must be in Hebrew
- Correct any obvious transcription errors in quotes/verses/names
- Maintain proper Hebrew text direction and punctuation

HTML FORMATTING:
- Valid tags: <p>, <ul>, <li>, <ol>, <strong>, <em>, <br>
- All tags must be properly closed, no attributes, no nested lists

Process the following transcript according to these specifications, ensuring the output is a valid, parseable JSON string.`

// Transcripts beyond this are truncated before summarization rather than
// rejected. Rough estimate: 1 token is about 4 characters, 100k token budget.
const maxTranscriptChars = 100_000 * 4

// Client calls the OpenAI speech-to-text and chat-completion APIs. Failures
// are mapped to the small pipeline taxonomy instead of leaking raw provider
// errors upward.
type Client struct {
	httpClient      *http.Client
	baseURL         string
	apiKey          string
	transcribeModel string
	summarizeModel  string
	language        string
}

// NewClient builds a client from configuration. The API key must be present
// (config falls back to OPENAI_API_KEY).
func NewClient(cfg config.OpenAIConfig) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("missing OpenAI API key")
	}

	return &Client{
		httpClient:      &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second},
		baseURL:         strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:          cfg.APIKey,
		transcribeModel: cfg.TranscribeModel,
		summarizeModel:  cfg.SummarizeModel,
		language:        cfg.Language,
	}, nil
}

// Transcribe sends raw audio to the transcription endpoint and returns plain
// text. An empty or whitespace-only result is a failure, never passed on.
func (c *Client) Transcribe(ctx context.Context, filename string, audio []byte) (string, error) {
	if len(audio) == 0 {
		return "", apperr.TranscriptionFailed(apperr.KindInvalidFormat, errors.New("empty audio payload"))
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return "", apperr.TranscriptionFailed(apperr.KindUnknown, err)
	}
	if _, err := part.Write(audio); err != nil {
		return "", apperr.TranscriptionFailed(apperr.KindUnknown, err)
	}

	fields := map[string]string{
		"model":           c.transcribeModel,
		"language":        c.language,
		"prompt":          transcribePrompt,
		"response_format": "text",
	}
	for k, v := range fields {
		if err := writer.WriteField(k, v); err != nil {
			return "", apperr.TranscriptionFailed(apperr.KindUnknown, err)
		}
	}
	if err := writer.Close(); err != nil {
		return "", apperr.TranscriptionFailed(apperr.KindUnknown, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v1/audio/transcriptions", &body)
	if err != nil {
		return "", apperr.TranscriptionFailed(apperr.KindUnknown, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", apperr.TranscriptionFailed(classifyTransport(err), err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", apperr.TranscriptionFailed(apperr.KindUnknown, err)
	}

	if resp.StatusCode != http.StatusOK {
		kind, err := classifyStatus(resp.StatusCode, raw)
		return "", apperr.TranscriptionFailed(kind, err)
	}

	text := strings.TrimSpace(string(raw))
	if text == "" {
		return "", apperr.TranscriptionFailed(apperr.KindEmptyResult, errors.New("transcription returned empty result"))
	}
	return text, nil
}

type chatRequest struct {
	Model          string         `json:"model"`
	Messages       []chatMessage  `json:"messages"`
	Stream         bool           `json:"stream"`
	ResponseFormat responseFormat `json:"response_format"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Summarize turns a transcript into the Cornell note-page JSON. Overlong
// transcripts are truncated to the token budget instead of failing. The
// returned string is guaranteed to parse as a SummaryDocument.
func (c *Client) Summarize(ctx context.Context, transcript string) (string, error) {
	if strings.TrimSpace(transcript) == "" {
		return "", apperr.SummarizationFailed(apperr.KindEmptyResult, errors.New("no transcription provided"))
	}

	if len(transcript) > maxTranscriptChars {
		transcript = transcript[:maxTranscriptChars]
	}

	payload := chatRequest{
		Model: c.summarizeModel,
		Messages: []chatMessage{
			{Role: "system", Content: summarizePrompt},
			{Role: "user", Content: "THIS IS THE TRANSCRIPTION: " + transcript},
		},
		Stream:         false,
		ResponseFormat: responseFormat{Type: "json_object"},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", apperr.SummarizationFailed(apperr.KindUnknown, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", apperr.SummarizationFailed(apperr.KindUnknown, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", apperr.SummarizationFailed(classifyTransport(err), err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", apperr.SummarizationFailed(apperr.KindUnknown, err)
	}

	if resp.StatusCode != http.StatusOK {
		kind, err := classifyStatus(resp.StatusCode, raw)
		return "", apperr.SummarizationFailed(kind, err)
	}

	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", apperr.SummarizationFailed(apperr.KindUnknown, err)
	}
	if len(parsed.Choices) == 0 || parsed.Choices[0].Message.Content == "" {
		return "", apperr.SummarizationFailed(apperr.KindEmptyResult, errors.New("no content returned"))
	}

	summary := parsed.Choices[0].Message.Content
	if _, err := types.ParseSummaryDocument(summary); err != nil {
		return "", apperr.SummarizationFailed(apperr.KindInvalidJSON, err)
	}
	return summary, nil
}

func classifyTransport(err error) apperr.FailureKind {
	if errors.Is(err, context.DeadlineExceeded) || os.IsTimeout(err) ||
		strings.Contains(err.Error(), "Client.Timeout") {
		return apperr.KindTimeout
	}
	return apperr.KindUnknown
}

func classifyStatus(status int, body []byte) (apperr.FailureKind, error) {
	err := fmt.Errorf("status %d: %s", status, truncateBody(body))

	switch {
	case status == http.StatusTooManyRequests:
		if bytes.Contains(body, []byte("insufficient_quota")) {
			return apperr.KindQuotaExhausted, err
		}
		return apperr.KindRateLimited, err
	case status == http.StatusBadRequest:
		return apperr.KindInvalidFormat, err
	case status == http.StatusRequestTimeout, status == http.StatusGatewayTimeout:
		return apperr.KindTimeout, err
	default:
		return apperr.KindUnknown, err
	}
}

func truncateBody(body []byte) string {
	const limit = 512
	if len(body) > limit {
		return string(body[:limit]) + "..."
	}
	return string(body)
}
