package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/seekwell/seekwell-backend/internal/pkg/httpx"
	"github.com/seekwell/seekwell-backend/internal/pkg/logger"
)

// DefaultAlpha is the hybrid lexical/vector mix used when no per-user
// personalization overrides it.
const DefaultAlpha = 0.5

// Options tune a search call. Zero values mean backend defaults.
type Options struct {
	Limit          int              `json:"limit,omitempty"`
	Offset         int              `json:"offset,omitempty"`
	Alpha          float64          `json:"alpha,omitempty"`
	RankProfile    RankProfile      `json:"rankProfile,omitempty"`
	Timestamp      TimestampRange   `json:"timestampRange,omitempty"`
	ExcludedIDs    []string         `json:"excludedIds,omitempty"`
	NotInMailLabels []string        `json:"notInMailLabels,omitempty"`
	Participants   MailParticipants `json:"mailParticipants,omitempty"`
	Collections    []string         `json:"collectionSelections,omitempty"`
}

// AgentScope restricts retrieval to an agent's selection.
type AgentScope struct {
	Apps          []string `json:"apps,omitempty"`
	DataSourceIDs []string `json:"dataSourceIds,omitempty"`
	ChannelIDs    []string `json:"channelIds,omitempty"`
	DocIDs        []string `json:"docIds,omitempty"`
}

// GetItemsQuery is the exact-fetch path: "give me N items matching filters".
type GetItemsQuery struct {
	Schemas      []string         `json:"schemas"`
	Apps         []string         `json:"apps,omitempty"`
	Entities     []string         `json:"entities,omitempty"`
	Timestamp    TimestampRange   `json:"timestampRange,omitempty"`
	Limit        int              `json:"limit"`
	Offset       int              `json:"offset"`
	Asc          bool             `json:"asc"`
	Participants MailParticipants `json:"mailParticipants,omitempty"`
}

// Client abstracts the hybrid BM25+vector search backend.
type Client interface {
	Search(ctx context.Context, query, email string, apps, entities []string, opts Options) ([]Hit, error)
	SearchAgent(ctx context.Context, query, email string, scope AgentScope, opts Options) ([]Hit, error)
	GetItems(ctx context.Context, q GetItemsQuery, email string) ([]Hit, error)
	SearchInFiles(ctx context.Context, query, email string, fileIDs []string, opts Options) ([]Hit, error)
	SearchKbCollection(ctx context.Context, query string, fileIDs, folderIDs []string, limit int) ([]Hit, error)
	SearchEmailThreads(ctx context.Context, threadIDs []string, email string) ([]Hit, error)
	SearchChannel(ctx context.Context, query, email string, channelIDs []string, limit int) ([]Hit, error)
	SearchThreads(ctx context.Context, threadIDs []string) ([]Hit, error)
	GetDocument(ctx context.Context, schema, docID string) (Hit, error)
	GetDocumentOrNull(ctx context.Context, schema, docID string) (Hit, error)
	FetchImage(ctx context.Context, imagePath string) ([]byte, error)
}

type client struct {
	log        *logger.Logger
	baseURL    string
	apiKey     string
	httpClient *http.Client
	maxRetries int
}

func NewClient(log *logger.Logger) (Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	baseURL := strings.TrimSpace(os.Getenv("SEARCH_BACKEND_URL"))
	if baseURL == "" {
		return nil, fmt.Errorf("missing SEARCH_BACKEND_URL")
	}
	baseURL = strings.TrimRight(baseURL, "/")

	timeoutSec := 30
	if v := strings.TrimSpace(os.Getenv("SEARCH_TIMEOUT_SECONDS")); v != "" {
		if parsed, err := time.ParseDuration(v + "s"); err == nil && parsed > 0 {
			timeoutSec = int(parsed.Seconds())
		}
	}

	return &client{
		log:        log.With("service", "SearchClient"),
		baseURL:    baseURL,
		apiKey:     strings.TrimSpace(os.Getenv("SEARCH_BACKEND_API_KEY")),
		httpClient: &http.Client{Timeout: time.Duration(timeoutSec) * time.Second},
		maxRetries: 3,
	}, nil
}

type searchHTTPError struct {
	StatusCode int
	Body       string
}

func (e *searchHTTPError) Error() string {
	return fmt.Sprintf("search http %d: %s", e.StatusCode, e.Body)
}

func (e *searchHTTPError) HTTPStatusCode() int {
	if e == nil {
		return 0
	}
	return e.StatusCode
}

func (c *client) doOnce(ctx context.Context, method, path string, body any) (*http.Response, []byte, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, nil, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, &buf)
	if err != nil {
		return nil, nil, err
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, err
	}
	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return resp, nil, readErr
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp, raw, &searchHTTPError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	return resp, raw, nil
}

func (c *client) do(ctx context.Context, method, path string, body any, out any) error {
	backoff := 500 * time.Millisecond
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		resp, raw, err := c.doOnce(ctx, method, path, body)
		if err == nil {
			if out == nil {
				return nil
			}
			if uErr := json.Unmarshal(raw, out); uErr != nil {
				return fmt.Errorf("search decode error: %w", uErr)
			}
			return nil
		}
		if !httpx.IsRetryableError(err) || attempt == c.maxRetries {
			return err
		}
		sleepFor := httpx.JitterSleep(httpx.RetryAfterDuration(resp, backoff, 5*time.Second))
		c.log.Warn("Search request retrying",
			"path", path,
			"attempt", attempt+1,
			"sleep", sleepFor.String(),
			"error", err.Error(),
		)
		time.Sleep(sleepFor)
		backoff *= 2
	}
	return fmt.Errorf("unreachable retry loop")
}

func (c *client) query(ctx context.Context, path string, body any) ([]Hit, error) {
	var resp searchResponse
	if err := c.do(ctx, "POST", path, body, &resp); err != nil {
		return nil, err
	}
	hits := make([]Hit, 0, len(resp.Root.Children))
	for _, env := range resp.Root.Children {
		hit, err := decodeHit(env)
		if err != nil {
			c.log.Warn("Dropping undecodable hit", "error", err.Error())
			continue
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

type searchRequest struct {
	Query    string   `json:"query"`
	Email    string   `json:"email"`
	Apps     []string `json:"apps,omitempty"`
	Entities []string `json:"entities,omitempty"`
	Options
	FileIDs   []string `json:"fileIds,omitempty"`
	FolderIDs []string `json:"folderIds,omitempty"`
	ThreadIDs []string `json:"threadIds,omitempty"`
	ChannelIDs []string `json:"channelIds,omitempty"`
	Scope     *AgentScope `json:"agentScope,omitempty"`
}

func (c *client) Search(ctx context.Context, query, email string, apps, entities []string, opts Options) ([]Hit, error) {
	if opts.Alpha == 0 {
		opts.Alpha = DefaultAlpha
	}
	return c.query(ctx, "/search", searchRequest{
		Query: query, Email: email, Apps: apps, Entities: entities, Options: opts,
	})
}

func (c *client) SearchAgent(ctx context.Context, query, email string, scope AgentScope, opts Options) ([]Hit, error) {
	if opts.Alpha == 0 {
		opts.Alpha = DefaultAlpha
	}
	return c.query(ctx, "/search", searchRequest{
		Query: query, Email: email, Options: opts, Scope: &scope,
	})
}

func (c *client) GetItems(ctx context.Context, q GetItemsQuery, email string) ([]Hit, error) {
	type getItemsRequest struct {
		GetItemsQuery
		Email string `json:"email"`
	}
	return c.query(ctx, "/items", getItemsRequest{GetItemsQuery: q, Email: email})
}

func (c *client) SearchInFiles(ctx context.Context, query, email string, fileIDs []string, opts Options) ([]Hit, error) {
	if len(fileIDs) == 0 {
		return []Hit{}, nil
	}
	if opts.Alpha == 0 {
		opts.Alpha = DefaultAlpha
	}
	return c.query(ctx, "/search/files", searchRequest{
		Query: query, Email: email, Options: opts, FileIDs: fileIDs,
	})
}

func (c *client) SearchKbCollection(ctx context.Context, query string, fileIDs, folderIDs []string, limit int) ([]Hit, error) {
	return c.query(ctx, "/search/kb", searchRequest{
		Query: query, FileIDs: fileIDs, FolderIDs: folderIDs,
		Options: Options{Limit: limit},
	})
}

func (c *client) SearchEmailThreads(ctx context.Context, threadIDs []string, email string) ([]Hit, error) {
	if len(threadIDs) == 0 {
		return []Hit{}, nil
	}
	return c.query(ctx, "/threads/mail", searchRequest{Email: email, ThreadIDs: threadIDs})
}

func (c *client) SearchChannel(ctx context.Context, query, email string, channelIDs []string, limit int) ([]Hit, error) {
	if len(channelIDs) == 0 {
		return []Hit{}, nil
	}
	return c.query(ctx, "/search/channels", searchRequest{
		Query: query, Email: email, ChannelIDs: channelIDs,
		Options: Options{Limit: limit},
	})
}

func (c *client) SearchThreads(ctx context.Context, threadIDs []string) ([]Hit, error) {
	if len(threadIDs) == 0 {
		return []Hit{}, nil
	}
	return c.query(ctx, "/threads/chat", searchRequest{ThreadIDs: threadIDs})
}

func (c *client) GetDocument(ctx context.Context, schema, docID string) (Hit, error) {
	var env hitEnvelope
	path := fmt.Sprintf("/document/%s/%s", url.PathEscape(schema), url.PathEscape(docID))
	if err := c.do(ctx, "GET", path, nil, &env); err != nil {
		return nil, err
	}
	return decodeHit(env)
}

func (c *client) GetDocumentOrNull(ctx context.Context, schema, docID string) (Hit, error) {
	hit, err := c.GetDocument(ctx, schema, docID)
	if err != nil {
		var httpErr *searchHTTPError
		if ok := asSearchHTTPError(err, &httpErr); ok && httpErr.StatusCode == http.StatusNotFound {
			return nil, nil
		}
		return nil, err
	}
	return hit, nil
}

func (c *client) FetchImage(ctx context.Context, imagePath string) ([]byte, error) {
	imagePath = strings.TrimSpace(imagePath)
	if imagePath == "" {
		return nil, fmt.Errorf("image path required")
	}
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/image/"+url.PathEscape(imagePath), nil)
	if err != nil {
		return nil, err
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return nil, readErr
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &searchHTTPError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	return raw, nil
}

func asSearchHTTPError(err error, target **searchHTTPError) bool {
	for err != nil {
		if e, ok := err.(*searchHTTPError); ok {
			*target = e
			return true
		}
		unwrapper, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = unwrapper.Unwrap()
	}
	return false
}
