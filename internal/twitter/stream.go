// Package twitter consumes the v2 filtered stream: rules are replaced at
// startup from the tracked-accounts list, then the stream is read as
// newline-delimited JSON with reconnect-on-failure.
package twitter

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
)

const reconnectDelay = 5 * time.Second

// PostHandler receives the raw text of each matching post.
type PostHandler func(text string)

type Client struct {
	apiClient    *http.Client // bounded timeout, rules endpoints
	streamClient *http.Client // no global timeout: the stream stays open
	baseURL      string
	bearer       string
}

func NewClient(baseURL, bearerToken string, timeout time.Duration) *Client {
	return &Client{
		apiClient:    &http.Client{Timeout: timeout},
		streamClient: &http.Client{},
		baseURL:      strings.TrimRight(baseURL, "/"),
		bearer:       bearerToken,
	}
}

type streamRule struct {
	ID    string `json:"id,omitempty"`
	Value string `json:"value"`
	Tag   string `json:"tag,omitempty"`
}

// SyncRules replaces whatever rules the token currently has with a single
// rule matching posts from the tracked accounts.
func (c *Client) SyncRules(ctx context.Context, accounts []string) error {
	existing, err := c.fetchRules(ctx)
	if err != nil {
		return err
	}

	if len(existing) > 0 {
		ids := make([]string, 0, len(existing))
		for _, r := range existing {
			ids = append(ids, r.ID)
		}
		if err := c.postRules(ctx, map[string]interface{}{
			"delete": map[string][]string{"ids": ids},
		}); err != nil {
			return fmt.Errorf("delete stream rules: %w", err)
		}
	}

	clauses := make([]string, 0, len(accounts))
	for _, a := range accounts {
		clauses = append(clauses, "from:"+a)
	}
	rule := streamRule{Value: strings.Join(clauses, " OR "), Tag: "tracked-accounts"}

	if err := c.postRules(ctx, map[string]interface{}{
		"add": []streamRule{rule},
	}); err != nil {
		return fmt.Errorf("add stream rule: %w", err)
	}

	log.Printf("Stream rule installed: %s", rule.Value)
	return nil
}

func (c *Client) fetchRules(ctx context.Context) ([]streamRule, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/2/tweets/search/stream/rules", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.bearer)

	resp, err := c.apiClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch stream rules: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch stream rules: status %s", resp.Status)
	}

	var body struct {
		Data []streamRule `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode stream rules: %w", err)
	}
	return body.Data, nil
}

func (c *Client) postRules(ctx context.Context, payload interface{}) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/2/tweets/search/stream/rules", bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.bearer)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.apiClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("status %s: %s", resp.Status, msg)
	}
	return nil
}

// Listen consumes the filtered stream until ctx is cancelled, invoking
// handler with each post's text. It runs blocking, so it should be called
// in a goroutine. Connection failures and disconnects are logged and
// retried after a delay — the stream must outlive flaky networks.
func (c *Client) Listen(ctx context.Context, handler PostHandler) {
	log.Println("Twitter Listener: Started")

	for {
		if ctx.Err() != nil {
			return
		}

		if err := c.consumeOnce(ctx, handler); err != nil && ctx.Err() == nil {
			log.Printf("Twitter Listener Error: %v", err)
		}
		if ctx.Err() != nil {
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(reconnectDelay):
		}
	}
}

func (c *Client) consumeOnce(ctx context.Context, handler PostHandler) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/2/tweets/search/stream", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.bearer)

	resp, err := c.streamClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 512))
		return fmt.Errorf("stream status %s", resp.Status)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue // keep-alive heartbeat
		}

		var event struct {
			Data struct {
				Text string `json:"text"`
			} `json:"data"`
		}
		if err := json.Unmarshal(line, &event); err != nil {
			log.Printf("Twitter Decode Error: %v", err)
			continue
		}
		if event.Data.Text == "" {
			continue
		}
		handler(event.Data.Text)
	}
	return scanner.Err()
}
