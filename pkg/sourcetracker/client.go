package sourcetracker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	trackererrors "github.com/tombee/trackerbridge/pkg/errors"
	"github.com/tombee/trackerbridge/pkg/httpclient"
)

// BugUpdate describes a mutation to apply via Client.UpdateBug. Only the
// fields the step library actually needs are modeled; see_also_add is the
// only mutation the engine performs against the source tracker.
type BugUpdate struct {
	SeeAlsoAdd string
}

// Client is the typed wrapper over the source tracker's REST API that the
// step library and runner depend on.
type Client interface {
	GetBug(ctx context.Context, id int) (Bug, error)
	GetComments(ctx context.Context, id int) ([]Comment, error)
	UpdateBug(ctx context.Context, id int, update BugUpdate) error

	// BaseURL returns the tracker's base URL, used to build bug show-links
	// for AddRemoteLink.
	BaseURL() string
}

// Config configures the HTTP-backed source tracker client.
type Config struct {
	BaseURL string
	APIKey  string
	HTTP    httpclient.Config
}

// HTTPClient is the concrete Client backed by net/http.
type HTTPClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewHTTPClient builds an HTTPClient from cfg.
func NewHTTPClient(cfg Config) (*HTTPClient, error) {
	httpCfg := cfg.HTTP
	if httpCfg.UserAgent == "" {
		httpCfg = httpclient.DefaultConfig()
		httpCfg.UserAgent = "trackerbridge-sourcetracker/1.0"
	}
	client, err := httpclient.New(httpCfg)
	if err != nil {
		return nil, trackererrors.Wrap(err, "building source tracker http client")
	}
	return &HTTPClient{baseURL: cfg.BaseURL, apiKey: cfg.APIKey, client: client}, nil
}

func (c *HTTPClient) BaseURL() string {
	return c.baseURL
}

type bugResponse struct {
	Bugs []wireBug `json:"bugs"`
}

type wireBug struct {
	ID         int      `json:"id"`
	Summary    string   `json:"summary"`
	Status     string   `json:"status"`
	Resolution string   `json:"resolution"`
	AssignedTo string   `json:"assigned_to"`
	Whiteboard string   `json:"whiteboard"`
	SeeAlso    []string `json:"see_also"`
	IsPrivate  bool     `json:"is_private"`
	Component  string   `json:"component"`
	Product    string   `json:"product"`
	Priority   string   `json:"priority"`
	Severity   string   `json:"severity"`
}

func (c *HTTPClient) GetBug(ctx context.Context, id int) (Bug, error) {
	var body bugResponse
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/rest/bug/%d", id), nil, &body); err != nil {
		return Bug{}, err
	}
	if len(body.Bugs) == 0 {
		return Bug{}, &trackererrors.NotFoundError{Resource: "bug", ID: strconv.Itoa(id)}
	}
	w := body.Bugs[0]
	return Bug{
		ID:         w.ID,
		Summary:    w.Summary,
		Status:     w.Status,
		Resolution: w.Resolution,
		AssignedTo: w.AssignedTo,
		Whiteboard: w.Whiteboard,
		SeeAlso:    w.SeeAlso,
		IsPrivate:  w.IsPrivate,
		Component:  w.Component,
		Product:    w.Product,
		Priority:   w.Priority,
		Severity:   w.Severity,
	}, nil
}

type commentResponse struct {
	Bugs map[string]struct {
		Comments []wireComment `json:"comments"`
	} `json:"bugs"`
}

type wireComment struct {
	ID        int    `json:"id"`
	Text      string `json:"text"`
	Creator   string `json:"creator"`
	IsPrivate bool   `json:"is_private"`
}

func (c *HTTPClient) GetComments(ctx context.Context, id int) ([]Comment, error) {
	var body commentResponse
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/rest/bug/%d/comment", id), nil, &body); err != nil {
		return nil, err
	}
	wire, ok := body.Bugs[strconv.Itoa(id)]
	if !ok {
		return nil, nil
	}
	comments := make([]Comment, 0, len(wire.Comments))
	for _, wc := range wire.Comments {
		comments = append(comments, Comment{ID: wc.ID, Text: wc.Text, Author: wc.Creator, IsPrivate: wc.IsPrivate})
	}
	return comments, nil
}

type seeAlsoUpdate struct {
	SeeAlso struct {
		Add []string `json:"add"`
	} `json:"see_also"`
}

func (c *HTTPClient) UpdateBug(ctx context.Context, id int, update BugUpdate) error {
	var payload seeAlsoUpdate
	if update.SeeAlsoAdd != "" {
		payload.SeeAlso.Add = []string{update.SeeAlsoAdd}
	}
	return c.do(ctx, http.MethodPut, fmt.Sprintf("/rest/bug/%d", id), payload, nil)
}

func (c *HTTPClient) do(ctx context.Context, method, path string, reqBody, respBody any) error {
	u, err := url.JoinPath(c.baseURL, path)
	if err != nil {
		return trackererrors.Wrap(err, "building source tracker request url")
	}

	var reader io.Reader
	if reqBody != nil {
		b, err := json.Marshal(reqBody)
		if err != nil {
			return trackererrors.Wrap(err, "encoding source tracker request body")
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return trackererrors.Wrap(err, "building source tracker request")
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-BUGZILLA-API-KEY", c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return &trackererrors.TimeoutError{Operation: "source tracker " + method + " " + path, Duration: c.client.Timeout, Cause: err}
		}
		return &trackererrors.TransientTrackerError{Tracker: "source", Operation: method + " " + path, Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return &trackererrors.TransientTrackerError{Tracker: "source", Operation: method + " " + path, StatusCode: resp.StatusCode, Cause: fmt.Errorf("unexpected status")}
	}
	if resp.StatusCode == http.StatusNotFound {
		return &trackererrors.NotFoundError{Resource: "bug", ID: path}
	}
	if resp.StatusCode >= 400 {
		return &trackererrors.ProviderError{Provider: "bugzilla", StatusCode: resp.StatusCode, Message: "request rejected"}
	}

	if respBody == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(respBody); err != nil {
		return trackererrors.Wrap(err, "decoding source tracker response")
	}
	return nil
}

// BugURL builds the browser URL for a bug. It is not part of Client; the
// add_link_to_bugzilla step builds the same URL from BaseURL.
func (c *HTTPClient) BugURL(id int) string {
	return fmt.Sprintf("%s/show_bug.cgi?id=%d", c.baseURL, id)
}
