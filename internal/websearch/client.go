// Package websearch queries an external search provider when local corpus
// evidence is insufficient.
package websearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/olivoe/kb-legal-assistant-ui-sub000/internal/retry"
	"github.com/rs/zerolog/log"
)

// authoritativeSites constrains the second, narrower query formulation.
var authoritativeSites = []string{
	"extranjeria.inclusion.gob.es",
	"sede.administracionespublicas.gob.es",
	"boe.es",
}

type Result struct {
	Title   string `json:"title"`
	URL     string `json:"link"`
	Snippet string `json:"snippet"`
}

type Config struct {
	Endpoint            string
	APIKey              string
	Timeout             time.Duration
	MaxIdleConns        int
	MaxIdleConnsPerHost int
}

type Client struct {
	config     Config
	httpClient *http.Client
	policy     retry.Policy
}

func NewClient(config Config, policy retry.Policy) *Client {
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Second
	}
	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        config.MaxIdleConns,
				MaxIdleConnsPerHost: config.MaxIdleConnsPerHost,
			},
		},
		policy: policy,
	}
}

// Search tries one query formulation and, when it comes back empty, retries
// once with a formulation restricted to authoritative domains. An empty
// slice means "no usable fallback evidence"; Search never surfaces a
// provider failure to the caller.
func (c *Client) Search(ctx context.Context, query string, maxResults int) []Result {
	results, err := c.query(ctx, query, maxResults)
	if err != nil {
		log.Warn().Err(err).Msg("Web search failed, continuing without fallback")
		return nil
	}
	if len(results) > 0 {
		return results
	}

	constrained := constrain(query)
	results, err = c.query(ctx, constrained, maxResults)
	if err != nil {
		log.Warn().Err(err).Str("query", constrained).Msg("Constrained web search failed")
		return nil
	}
	return results
}

func (c *Client) query(ctx context.Context, query string, maxResults int) ([]Result, error) {
	payload, err := json.Marshal(map[string]any{
		"q":   query,
		"num": maxResults,
	})
	if err != nil {
		return nil, err
	}

	var out struct {
		Organic []Result `json:"organic"`
	}

	err = c.policy.Do(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.Endpoint, bytes.NewReader(payload))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-API-KEY", c.config.APIKey)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("web search request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("web search returned status %d", resp.StatusCode)
		}

		return json.NewDecoder(resp.Body).Decode(&out)
	})
	if err != nil {
		return nil, err
	}

	return out.Organic, nil
}

func constrain(query string) string {
	sites := make([]string, len(authoritativeSites))
	for i, s := range authoritativeSites {
		sites[i] = "site:" + s
	}
	return query + " (" + strings.Join(sites, " OR ") + ")"
}
