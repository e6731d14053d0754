package upstream

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// TurnMessage is one element of the conversation history sent upstream.
type TurnMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// StreamRequest is the message-send contract of the inference service.
type StreamRequest struct {
	DocID          string        `json:"doc_id"`
	ForceWebSearch bool          `json:"force_web_search"`
	SessionID      *string       `json:"session_id"`
	Messages       []TurnMessage `json:"messages"`
}

// streamFrame is one decoded data frame of the event stream.
type streamFrame struct {
	Content string `json:"content"`
	Error   string `json:"error"`
}

// InferenceClient bridges to the chat inference service's event-stream
// endpoint.
type InferenceClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewInferenceClient(baseURL string) *InferenceClient {
	return &InferenceClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 90 * time.Second},
	}
}

// StreamChat posts the request and consumes the resulting event stream,
// invoking onChunk for every content increment. It returns the accumulated
// assistant text. Stopping is driven by ctx: cancelling it tears down the
// upstream connection.
func (c *InferenceClient) StreamChat(
	ctx context.Context,
	request StreamRequest,
	onChunk func(chunk string) error,
) (string, error) {
	bodyBytes, err := json.Marshal(request)
	if err != nil {
		return "", fmt.Errorf("marshal stream request failed: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/stream", bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("build stream request failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		return "", &APIError{Status: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 2*1024*1024)

	var full strings.Builder
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "[DONE]" {
			break
		}

		var frame streamFrame
		if err := json.Unmarshal([]byte(payload), &frame); err != nil {
			// Some backends emit bare text frames.
			frame.Content = payload
		}
		if frame.Error != "" {
			return "", fmt.Errorf("%w: %s", ErrBadResponse, frame.Error)
		}
		if frame.Content == "" {
			continue
		}

		full.WriteString(frame.Content)
		if err := onChunk(frame.Content); err != nil {
			return "", err
		}
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("scan event stream failed: %w", err)
	}
	return full.String(), nil
}
