//go:generate mockery --name=WordGenerator --output=./mocks
package bot

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

var ErrNoContent = errors.New("generator returned no content")

// Prompt is what the bot knows when it has to answer.
type Prompt struct {
	// History is the comma-joined list of completed rounds, or "empty".
	History string
	// Word is the opponent's pending word.
	Word string
}

func (p Prompt) String() string {
	return fmt.Sprintf(
		"We are playing Saym: each round both players say a word and we try to say the same word. "+
			"Rounds so far: %s. My word this round is %q. Answer with a single word that connects our words.",
		p.History, p.Word)
}

type WordGenerator interface {
	NextWord(ctx context.Context, prompt Prompt) (string, error)
}

// HTTPGenerator asks a text-generation endpoint for the next word. The
// endpoint receives {"prompt": "..."} and answers {"text": "..."}.
type HTTPGenerator struct {
	URL    string
	Client *http.Client
}

func NewHTTPGenerator(url string, timeout time.Duration) *HTTPGenerator {
	return &HTTPGenerator{URL: url, Client: &http.Client{Timeout: timeout}}
}

type generateRequest struct {
	Prompt string `json:"prompt"`
}

type generateResponse struct {
	Text string `json:"text"`
}

func (g *HTTPGenerator) NextWord(ctx context.Context, prompt Prompt) (string, error) {
	body, err := json.Marshal(generateRequest{Prompt: prompt.String()})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.URL, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := g.Client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("generator answered %d", resp.StatusCode)
	}
	out := generateResponse{}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	if out.Text == "" {
		return "", ErrNoContent
	}
	return out.Text, nil
}

// FallbackGenerator always answers FallbackWord; used when no endpoint is
// configured.
type FallbackGenerator struct{}

func (FallbackGenerator) NextWord(context.Context, Prompt) (string, error) {
	return FallbackWord, nil
}
