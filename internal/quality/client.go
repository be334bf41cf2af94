package quality

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Scorer asks a remote model for one revision's quality class.
type Scorer interface {
	Score(ctx context.Context, revID int64) (string, error)
}

// Client scores article revisions against a LiftWing article quality model.
type Client struct {
	apiURL    string
	model     string
	userAgent string
	token     string
	client    *http.Client
}

// NewClient creates a quality client. Token may be empty for anonymous use.
func NewClient(apiURL, model, userAgent, token string) *Client {
	return &Client{
		apiURL:    strings.TrimRight(apiURL, "/"),
		model:     model,
		userAgent: userAgent,
		token:     token,
		client:    &http.Client{Timeout: 60 * time.Second},
	}
}

// Score returns the predicted quality class for a revision, one of the
// assessment labels the model was trained on (FA, GA, B, C, Start, Stub).
func (c *Client) Score(ctx context.Context, revID int64) (string, error) {
	data, err := json.Marshal(map[string]any{"rev_id": revID})
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/%s:predict", c.apiURL, c.model)
	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("quality API error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("quality API returned %d: %s", resp.StatusCode, string(respBody))
	}

	// The response nests the score under the wiki database name and the
	// model's short name, e.g. {"enwiki": {"scores": {"<rev>":
	// {"articlequality": {"score": {"prediction": "GA"}}}}}}.
	var result map[string]struct {
		Scores map[string]map[string]struct {
			Score struct {
				Prediction string `json:"prediction"`
			} `json:"score"`
		} `json:"scores"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}

	rev := strconv.FormatInt(revID, 10)
	for _, wiki := range result {
		models, ok := wiki.Scores[rev]
		if !ok {
			continue
		}
		for _, m := range models {
			if m.Score.Prediction != "" {
				return m.Score.Prediction, nil
			}
		}
	}
	return "", fmt.Errorf("no prediction for revision %d in response", revID)
}
