package kimi

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

	"github.com/anonthink/modrelay/src/webclient"
	"github.com/google/uuid"
)

const DefaultBaseURL = "https://www.kimi.com/api"

const (
	parsePollAttempts = 5
	parsePollDelay    = 2 * time.Second
)

// ErrNotParsed means the provider accepted the upload but never finished
// processing it within the bounded polling window.
var ErrNotParsed = fmt.Errorf("file not parsed after %d attempts", parsePollAttempts)

// Client talks to the Kimi API: staged file uploads, chat creation and
// streamed completions. It is created once and reused.
type Client struct {
	baseURL    string
	authToken  string
	httpClient *http.Client

	// Per-process identifiers the web API expects on every request.
	deviceID  string
	sessionID string
	trafficID string

	parseAttempts int
	parseDelay    time.Duration
}

func NewClient(baseURL, authToken string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:       strings.TrimRight(baseURL, "/"),
		authToken:     authToken,
		httpClient:    webclient.NewDefault(45 * time.Second),
		deviceID:      uuid.NewString(),
		sessionID:     uuid.NewString(),
		trafficID:     strings.ReplaceAll(uuid.NewString(), "-", "")[:20],
		parseAttempts: parsePollAttempts,
		parseDelay:    parsePollDelay,
	}
}

func (c *Client) newRequest(ctx context.Context, method, url string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json, text/plain, */*")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.authToken)
	req.Header.Set("X-Msh-Platform", "web")
	req.Header.Set("X-Msh-Device-Id", c.deviceID)
	req.Header.Set("X-Msh-Session-Id", c.sessionID)
	req.Header.Set("X-Traffic-Id", c.trafficID)
	return req, nil
}

func (c *Client) postJSON(ctx context.Context, path string, payload, out interface{}) error {
	jsonBody, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := c.newRequest(ctx, "POST", c.baseURL+path, bytes.NewBuffer(jsonBody))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errorResp struct {
			Message string `json:"message"`
			Error   struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		if err := json.Unmarshal(body, &errorResp); err == nil {
			if errorResp.Error.Message != "" {
				return fmt.Errorf("kimi API error: %s (status %d)", errorResp.Error.Message, resp.StatusCode)
			}
			if errorResp.Message != "" {
				return fmt.Errorf("kimi API error: %s (status %d)", errorResp.Message, resp.StatusCode)
			}
		}
		return fmt.Errorf("kimi API returned status %d", resp.StatusCode)
	}

	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// File is a successfully uploaded and registered provider file.
type File struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	ObjectName string `json:"object_name"`
	Type       string `json:"type"`
}

// Upload pushes raw bytes through the provider's staged upload: pre-signed
// URL, content PUT, registration, then bounded parse polling. It returns
// ErrNotParsed when the provider never reports the file as parsed.
func (c *Client) Upload(ctx context.Context, name string, data []byte) (*File, error) {
	var preSign struct {
		URL        string `json:"url"`
		ObjectName string `json:"object_name"`
		FileID     string `json:"file_id"`
	}
	err := c.postJSON(ctx, "/pre-sign-url", map[string]string{
		"name":   name,
		"action": "file",
	}, &preSign)
	if err != nil {
		return nil, fmt.Errorf("pre-sign: %w", err)
	}

	putReq, err := http.NewRequestWithContext(ctx, "PUT", preSign.URL, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create upload request: %w", err)
	}
	putResp, err := c.httpClient.Do(putReq)
	if err != nil {
		return nil, fmt.Errorf("upload content: %w", err)
	}
	io.Copy(io.Discard, putResp.Body)
	putResp.Body.Close()
	if putResp.StatusCode < 200 || putResp.StatusCode > 299 {
		return nil, fmt.Errorf("upload content: status %d", putResp.StatusCode)
	}

	var file File
	err = c.postJSON(ctx, "/file", map[string]string{
		"name":        name,
		"object_name": preSign.ObjectName,
		"type":        "file",
		"file_id":     preSign.FileID,
	}, &file)
	if err != nil {
		return nil, fmt.Errorf("register file: %w", err)
	}

	if err := c.waitParsed(ctx, file.ID); err != nil {
		return nil, err
	}
	return &file, nil
}

// waitParsed polls the parse endpoint with a fixed backoff until the file is
// parsed or the attempt budget runs out.
func (c *Client) waitParsed(ctx context.Context, fileID string) error {
	for i := 0; i < c.parseAttempts; i++ {
		var parse struct {
			Status string `json:"status"`
		}
		err := c.postJSON(ctx, "/file/parse_process", map[string][]string{
			"ids": {fileID},
		}, &parse)
		if err == nil && parse.Status == "parsed" {
			return nil
		}
		if i == c.parseAttempts-1 {
			break
		}

		t := time.NewTimer(c.parseDelay)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
	return ErrNotParsed
}

// CreateChat opens a new chat session and returns its ID.
func (c *Client) CreateChat(ctx context.Context, name string) (string, error) {
	var chat struct {
		ID string `json:"id"`
	}
	err := c.postJSON(ctx, "/chat", map[string]interface{}{
		"name":        name,
		"born_from":   "home",
		"kimiplus_id": "kimi",
		"is_example":  false,
		"source":      "web",
		"tags":        []string{},
	}, &chat)
	if err != nil {
		return "", fmt.Errorf("create chat: %w", err)
	}
	if chat.ID == "" {
		return "", fmt.Errorf("create chat: empty chat id")
	}
	return chat.ID, nil
}

// Completion sends a prompt (optionally referencing uploaded files) and
// collects the streamed answer. The stream is server-sent events; only cmpl
// chunks contribute to the result.
func (c *Client) Completion(ctx context.Context, chatID, prompt string, fileIDs []string) (string, error) {
	if fileIDs == nil {
		fileIDs = []string{}
	}
	payload := map[string]interface{}{
		"messages":    []map[string]string{{"role": "user", "content": prompt}},
		"history":     []map[string]string{},
		"kimiplus_id": "kimi",
		"model":       "k2",
		"use_search":  false,
		"refs":        fileIDs,
	}
	jsonBody, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/chat/%s/completion/stream", c.baseURL, chatID)
	req, err := c.newRequest(ctx, "POST", url, bytes.NewBuffer(jsonBody))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("stream request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("stream request returned status %d", resp.StatusCode)
	}

	var out strings.Builder
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(line[5:])
		if data == "" {
			continue
		}

		var event struct {
			Event string `json:"event"`
			Text  string `json:"text"`
		}
		if err := json.Unmarshal([]byte(data), &event); err != nil {
			continue
		}
		if event.Event == "cmpl" {
			out.WriteString(event.Text)
		}
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("read stream: %w", err)
	}
	return strings.TrimSpace(out.String()), nil
}
