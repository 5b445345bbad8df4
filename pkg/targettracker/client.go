// Package targettracker models the jira-style target tracker: the typed
// mutation client the step library drives to create and update issues.
package targettracker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	trackererrors "github.com/tombee/trackerbridge/pkg/errors"
	"github.com/tombee/trackerbridge/pkg/httpclient"
)

// CreateResult is the response envelope from creating an issue. A non-empty
// Errors or ErrorMessages means the create failed despite a 2xx status.
type CreateResult struct {
	Key           string
	Errors        map[string]string
	ErrorMessages []string
}

// Failed reports whether the tracker's response envelope carries any error.
func (r CreateResult) Failed() bool {
	return len(r.Errors) > 0 || len(r.ErrorMessages) > 0
}

// User is a target-tracker account, as returned by FindUser.
type User struct {
	AccountID   string
	DisplayName string
	Email       string
}

// Client is the typed wrapper over the target tracker's REST API.
type Client interface {
	CreateIssue(ctx context.Context, fields map[string]any) (CreateResult, error)
	UpdateIssueFields(ctx context.Context, issueKey string, fields map[string]any) error
	AddComment(ctx context.Context, issueKey, body string) error
	SetStatus(ctx context.Context, issueKey, status string) error
	SetResolution(ctx context.Context, issueKey, resolution string) error
	AssignUser(ctx context.Context, issueKey, accountID string) error
	FindUser(ctx context.Context, query string) ([]User, error)
	AddRemoteLink(ctx context.Context, issueKey, linkURL, iconURL string) error
	DeleteIssue(ctx context.Context, issueKey string) error

	// GetIssue returns (found=false, nil) on a 404, matching the "404 on
	// GetIssue -> absent, don't fail" disposition.
	GetIssue(ctx context.Context, issueKey string) (found bool, err error)

	// IssueURL builds the browser URL for an issue, used by add_link_to_jira.
	IssueURL(issueKey string) string
}

// Config configures the HTTP-backed target tracker client.
type Config struct {
	BaseURL  string
	Username string
	APIKey   string
	HTTP     httpclient.Config
}

// HTTPClient is the concrete Client backed by net/http.
type HTTPClient struct {
	baseURL  string
	username string
	apiKey   string
	client   *http.Client
}

// NewHTTPClient builds an HTTPClient from cfg.
func NewHTTPClient(cfg Config) (*HTTPClient, error) {
	httpCfg := cfg.HTTP
	if httpCfg.UserAgent == "" {
		httpCfg = httpclient.DefaultConfig()
		httpCfg.UserAgent = "trackerbridge-targettracker/1.0"
	}
	client, err := httpclient.New(httpCfg)
	if err != nil {
		return nil, trackererrors.Wrap(err, "building target tracker http client")
	}
	return &HTTPClient{baseURL: cfg.BaseURL, username: cfg.Username, apiKey: cfg.APIKey, client: client}, nil
}

func (c *HTTPClient) IssueURL(issueKey string) string {
	return fmt.Sprintf("%s/browse/%s", c.baseURL, issueKey)
}

type createIssuePayload struct {
	Fields map[string]any `json:"fields"`
}

type createIssueResponse struct {
	Key           string            `json:"key"`
	Errors        map[string]string `json:"errors"`
	ErrorMessages []string          `json:"errorMessages"`
}

func (c *HTTPClient) CreateIssue(ctx context.Context, fields map[string]any) (CreateResult, error) {
	var resp createIssueResponse
	if err := c.do(ctx, http.MethodPost, "/rest/api/2/issue", createIssuePayload{Fields: fields}, &resp); err != nil {
		return CreateResult{}, err
	}
	return CreateResult{Key: resp.Key, Errors: resp.Errors, ErrorMessages: resp.ErrorMessages}, nil
}

func (c *HTTPClient) UpdateIssueFields(ctx context.Context, issueKey string, fields map[string]any) error {
	return c.do(ctx, http.MethodPut, "/rest/api/2/issue/"+issueKey, createIssuePayload{Fields: fields}, nil)
}

type commentPayload struct {
	Body string `json:"body"`
}

func (c *HTTPClient) AddComment(ctx context.Context, issueKey, body string) error {
	return c.do(ctx, http.MethodPost, "/rest/api/2/issue/"+issueKey+"/comment", commentPayload{Body: body}, nil)
}

func (c *HTTPClient) SetStatus(ctx context.Context, issueKey, status string) error {
	return c.UpdateIssueFields(ctx, issueKey, map[string]any{"status": map[string]string{"name": status}})
}

func (c *HTTPClient) SetResolution(ctx context.Context, issueKey, resolution string) error {
	return c.UpdateIssueFields(ctx, issueKey, map[string]any{"resolution": map[string]string{"name": resolution}})
}

func (c *HTTPClient) AssignUser(ctx context.Context, issueKey, accountID string) error {
	payload := map[string]any{"accountId": accountID}
	return c.do(ctx, http.MethodPut, "/rest/api/2/issue/"+issueKey+"/assignee", payload, nil)
}

func (c *HTTPClient) FindUser(ctx context.Context, query string) ([]User, error) {
	var users []User
	path := "/rest/api/2/user/search?query=" + url.QueryEscape(query)
	if err := c.do(ctx, http.MethodGet, path, nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

type remoteLinkPayload struct {
	Object struct {
		URL  string `json:"url"`
		Icon struct {
			URL16x16 string `json:"url16x16"`
		} `json:"icon"`
	} `json:"object"`
}

func (c *HTTPClient) AddRemoteLink(ctx context.Context, issueKey, linkURL, iconURL string) error {
	var payload remoteLinkPayload
	payload.Object.URL = linkURL
	payload.Object.Icon.URL16x16 = iconURL
	return c.do(ctx, http.MethodPost, "/rest/api/2/issue/"+issueKey+"/remotelink", payload, nil)
}

func (c *HTTPClient) DeleteIssue(ctx context.Context, issueKey string) error {
	return c.do(ctx, http.MethodDelete, "/rest/api/2/issue/"+issueKey, nil, nil)
}

func (c *HTTPClient) GetIssue(ctx context.Context, issueKey string) (bool, error) {
	err := c.do(ctx, http.MethodGet, "/rest/api/2/issue/"+issueKey, nil, nil)
	var notFound *trackererrors.NotFoundError
	if trackererrors.As(err, &notFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (c *HTTPClient) do(ctx context.Context, method, path string, reqBody, respBody any) error {
	u := c.baseURL + path

	var reader *bytes.Reader
	if reqBody != nil {
		b, err := json.Marshal(reqBody)
		if err != nil {
			return trackererrors.Wrap(err, "encoding target tracker request body")
		}
		reader = bytes.NewReader(b)
	}

	var req *http.Request
	var err error
	if reader != nil {
		req, err = http.NewRequestWithContext(ctx, method, u, reader)
	} else {
		req, err = http.NewRequestWithContext(ctx, method, u, nil)
	}
	if err != nil {
		return trackererrors.Wrap(err, "building target tracker request")
	}
	req.Header.Set("Content-Type", "application/json")
	if c.username != "" && c.apiKey != "" {
		req.SetBasicAuth(c.username, c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return &trackererrors.TimeoutError{Operation: "target tracker " + method + " " + path, Duration: c.client.Timeout, Cause: err}
		}
		return &trackererrors.TransientTrackerError{Tracker: "target", Operation: method + " " + path, Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return &trackererrors.TransientTrackerError{Tracker: "target", Operation: method + " " + path, StatusCode: resp.StatusCode, Cause: fmt.Errorf("unexpected status")}
	}
	if resp.StatusCode == http.StatusNotFound {
		return &trackererrors.NotFoundError{Resource: "issue", ID: path}
	}
	if resp.StatusCode >= 400 {
		return &trackererrors.ProviderError{Provider: "jira", StatusCode: resp.StatusCode, Message: "request rejected"}
	}

	if respBody == nil {
		return nil
	}
	if resp.ContentLength == 0 {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(respBody); err != nil {
		return trackererrors.Wrap(err, "decoding target tracker response")
	}
	return nil
}
