// Package virtus provides the Go client for the Virtus AI platform API:
// marketplace models, chat completions (blocking and streaming), retrieval
// data sources, and stored conversations.
package virtus

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// DefaultBaseURL is the production endpoint used when Config.BaseURL is empty.
const DefaultBaseURL = "https://api.virtus.ai"

const apiPrefix = "/api/v1"

// Config holds the settings for constructing a Client.
type Config struct {
	// APIKey authenticates every request via the X-API-Key header.
	APIKey string
	// BaseURL overrides the production endpoint. Trailing slashes are ignored.
	BaseURL string
	// HTTPClient is used for all requests. Defaults to http.DefaultClient.
	// The Client imposes no timeout of its own; set one here or cancel the
	// per-call context to bound a request.
	HTTPClient *http.Client
}

// Client talks to the Virtus AI platform. It is safe for concurrent use,
// and multiple clients with different keys may coexist in one process.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a Client from cfg.
func NewClient(cfg Config) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/") + apiPrefix,
		apiKey:     cfg.APIKey,
		httpClient: httpClient,
	}
}

// Chat sends a blocking chat completion request and returns the full reply.
func (c *Client) Chat(ctx context.Context, opts ChatOptions) (*ChatResponse, error) {
	var out ChatResponse
	if err := c.doJSON(ctx, http.MethodPost, "/chat/completions", newChatRequest(opts, false), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ChatStream opens a streaming chat completion. The returned stream yields
// the reply incrementally; the caller must Close it when done, including
// when abandoning it early.
func (c *Client) ChatStream(ctx context.Context, opts ChatOptions) (*ChatStream, error) {
	body, err := json.Marshal(newChatRequest(opts, true))
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := c.newRequest(ctx, http.MethodPost, "/chat/completions/stream", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err := apiError(resp)
		resp.Body.Close()
		return nil, err
	}
	return newChatStream(resp.Body), nil
}

// ListModels returns the marketplace models, optionally filtered by
// category. An empty category returns everything.
func (c *Client) ListModels(ctx context.Context, category string) ([]Model, error) {
	path := "/models"
	if category != "" {
		path += "?category=" + url.QueryEscape(category)
	}
	var out []Model
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetModel fetches a single model by id.
func (c *Client) GetModel(ctx context.Context, modelID string) (*Model, error) {
	var out Model
	if err := c.doJSON(ctx, http.MethodGet, "/models/"+modelID, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetModelBySlug fetches a single model by its marketplace slug.
func (c *Client) GetModelBySlug(ctx context.Context, slug string) (*Model, error) {
	var out Model
	if err := c.doJSON(ctx, http.MethodGet, "/models/slug/"+slug, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListDataSources returns all data sources in the organization.
func (c *Client) ListDataSources(ctx context.Context) ([]DataSource, error) {
	var out []DataSource
	if err := c.doJSON(ctx, http.MethodGet, "/data-sources", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateDataSource creates a new data source.
func (c *Client) CreateDataSource(ctx context.Context, req CreateDataSourceRequest) (*DataSource, error) {
	if req.Type == "" {
		req.Type = "document"
	}
	var out DataSource
	if err := c.doJSON(ctx, http.MethodPost, "/data-sources", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetDataSource fetches a single data source by id.
func (c *Client) GetDataSource(ctx context.Context, dataSourceID string) (*DataSource, error) {
	var out DataSource
	if err := c.doJSON(ctx, http.MethodGet, "/data-sources/"+dataSourceID, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteDataSource removes a data source and its documents.
func (c *Client) DeleteDataSource(ctx context.Context, dataSourceID string) error {
	return c.doJSON(ctx, http.MethodDelete, "/data-sources/"+dataSourceID, nil, nil)
}

// ListDocuments returns the documents uploaded to a data source.
func (c *Client) ListDocuments(ctx context.Context, dataSourceID string) ([]Document, error) {
	var out []Document
	if err := c.doJSON(ctx, http.MethodGet, "/data-sources/"+dataSourceID+"/documents", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// UploadDocument sends a file to a data source for ingestion. The content
// is posted as the multipart form field "file".
func (c *Client) UploadDocument(ctx context.Context, dataSourceID, filename string, content io.Reader) (*Document, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, content); err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/data-sources/"+dataSourceID+"/documents", &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, apiError(resp)
	}
	var doc Document
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	// The upload response omits the parent source id.
	if doc.DataSourceID == "" {
		doc.DataSourceID = dataSourceID
	}
	return &doc, nil
}

// DeleteDocument removes a single document from a data source.
func (c *Client) DeleteDocument(ctx context.Context, dataSourceID, documentID string) error {
	return c.doJSON(ctx, http.MethodDelete, "/data-sources/"+dataSourceID+"/documents/"+documentID, nil, nil)
}

// QueryRAG runs a retrieval query against the indexed documents without
// involving a model.
func (c *Client) QueryRAG(ctx context.Context, req RAGQueryRequest) (*RAGQueryResponse, error) {
	if req.TopK == 0 {
		req.TopK = 5
	}
	var out RAGQueryResponse
	if err := c.doJSON(ctx, http.MethodPost, "/data-sources/query", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListConversations returns stored conversations, newest first. Zero limit
// and offset leave paging to the backend defaults.
func (c *Client) ListConversations(ctx context.Context, limit, offset int) ([]Conversation, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if offset > 0 {
		q.Set("offset", strconv.Itoa(offset))
	}
	path := "/chat/conversations"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var out []Conversation
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetConversation fetches a conversation with its full transcript.
func (c *Client) GetConversation(ctx context.Context, conversationID string) (*ConversationDetail, error) {
	var out ConversationDetail
	if err := c.doJSON(ctx, http.MethodGet, "/chat/conversations/"+conversationID, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteConversation removes a stored conversation.
func (c *Client) DeleteConversation(ctx context.Context, conversationID string) error {
	return c.doJSON(ctx, http.MethodDelete, "/chat/conversations/"+conversationID, nil, nil)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("X-API-Key", c.apiKey)
	return req, nil
}

// doJSON sends a request with an optional JSON payload and decodes the JSON
// response into out when out is non-nil.
func (c *Client) doJSON(ctx context.Context, method, path string, payload, out interface{}) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return apiError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// apiError turns a non-2xx response into an *APIError, preferring the
// backend's detail message when the error body carries one.
func apiError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)
	var payload struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Detail != "" {
		return &APIError{StatusCode: resp.StatusCode, Detail: payload.Detail}
	}
	return &APIError{StatusCode: resp.StatusCode}
}
