package kimi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"path"
	"time"

	"github.com/anonthink/modrelay/src/webclient"
)

// Sentinel transcripts. Transcription never fails the moderation flow; a
// submission that could not be transcribed still reaches the moderator, with
// one of these markers in place of the text.
const (
	TranscriptFailed        = "(transcription failed)"
	TranscriptNotRecognized = "(speech not recognized)"
)

const (
	fetchAttempts = 3
	fetchDelay    = 2 * time.Second

	transcribePrompt = "Transcribe the attached audio verbatim. Reply with the transcription only, no commentary."
)

// Transcriber resolves a voice resource to text via the Kimi API.
type Transcriber struct {
	client     *Client
	httpClient *http.Client

	fetchAttempts int
	fetchDelay    time.Duration
}

func NewTranscriber(client *Client) *Transcriber {
	return &Transcriber{
		client:        client,
		httpClient:    webclient.NewDefault(30 * time.Second),
		fetchAttempts: fetchAttempts,
		fetchDelay:    fetchDelay,
	}
}

// Transcribe downloads the audio at audioURL, runs it through the provider
// and returns the transcription. It never returns an error: any failure
// resolves to a sentinel transcript, and exhausted provider polling resolves
// to TranscriptNotRecognized.
func (t *Transcriber) Transcribe(ctx context.Context, audioURL string) string {
	data, err := t.fetch(ctx, audioURL)
	if err != nil {
		log.Printf("fetch audio: %v", err)
		return TranscriptFailed
	}

	file, err := t.client.Upload(ctx, audioName(audioURL), data)
	if err != nil {
		if errors.Is(err, ErrNotParsed) {
			log.Printf("audio upload never parsed: %v", err)
			return TranscriptNotRecognized
		}
		log.Printf("upload audio: %v", err)
		return TranscriptFailed
	}

	chatID, err := t.client.CreateChat(ctx, "voice transcription")
	if err != nil {
		log.Printf("create transcription chat: %v", err)
		return TranscriptFailed
	}

	text, err := t.client.Completion(ctx, chatID, transcribePrompt, []string{file.ID})
	if err != nil {
		log.Printf("transcription completion: %v", err)
		return TranscriptFailed
	}
	if text == "" {
		return TranscriptNotRecognized
	}
	return text
}

func (t *Transcriber) fetch(ctx context.Context, audioURL string) ([]byte, error) {
	status, body, err := webclient.DoWithRetry(ctx, t.fetchAttempts, t.fetchDelay, func() (int, []byte, error) {
		req, err := http.NewRequestWithContext(ctx, "GET", audioURL, nil)
		if err != nil {
			return 0, nil, err
		}
		resp, err := t.httpClient.Do(req)
		if err != nil {
			return 0, nil, err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return resp.StatusCode, nil, err
		}
		return resp.StatusCode, data, nil
	})
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("audio fetch returned status %d", status)
	}
	return body, nil
}

func audioName(audioURL string) string {
	u, err := url.Parse(audioURL)
	if err != nil {
		return "voice-message.ogg"
	}
	name := path.Base(u.Path)
	if name == "/" || name == "." {
		return "voice-message.ogg"
	}
	return name
}
