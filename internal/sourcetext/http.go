package sourcetext

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/olivoe/kb-legal-assistant-ui-sub000/internal/retry"
)

// HTTPResolver fetches source text from a static file host.
type HTTPResolver struct {
	baseURL    string
	httpClient *http.Client
	policy     retry.Policy
}

func NewHTTPResolver(baseURL string, policy retry.Policy) *HTTPResolver {
	return &HTTPResolver{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		policy: policy,
	}
}

func (r *HTTPResolver) Resolve(ctx context.Context, sourceFile string) (string, error) {
	target := r.baseURL + "/" + url.PathEscape(sourceFile)

	var text string
	err := r.policy.Do(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return err
		}

		resp, err := r.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("fetching source text: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("source text fetch for %s returned status %d", sourceFile, resp.StatusCode)
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		text = string(body)
		return nil
	})
	if err != nil {
		return "", err
	}

	return text, nil
}
