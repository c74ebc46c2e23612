package documents

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/abekarar/openimis-claimslens/pkg/poller"
)

// Client reads document status over the HTTP API.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient creates a client for the API mounted at baseURL, e.g.
// "http://localhost:8080/api". A nil httpClient uses http.DefaultClient.
// A non-empty token is sent as a bearer token.
func NewClient(baseURL, token string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		token:   token,
		http:    httpClient,
	}
}

// Get fetches a document.
func (c *Client) Get(ctx context.Context, id uuid.UUID) (*Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/documents/"+id.String(), nil)
	if err != nil {
		return nil, err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("get document %s: %s: %s", id, resp.Status, strings.TrimSpace(string(body)))
	}

	var d Document
	if err := json.NewDecoder(resp.Body).Decode(&d); err != nil {
		return nil, fmt.Errorf("decode document %s: %w", id, err)
	}
	return &d, nil
}

// WaitForTerminal polls the document on the schedule in cfg until its
// status is terminal. It returns poller.ErrMaxAttempts, wrapped, when
// the attempt bound is reached first.
func (c *Client) WaitForTerminal(ctx context.Context, id uuid.UUID, cfg poller.Config) (*Document, error) {
	return poller.Run(
		ctx,
		poller.New(cfg),
		func(ctx context.Context) (*Document, error) {
			return c.Get(ctx, id)
		},
		func(d *Document) bool {
			return Terminal(d.Status)
		},
	)
}
