// Package yadisk is a minimal client of the Yandex Disk REST API.
package yadisk

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const (
	defaultBaseURL = "https://cloud-api.yandex.net/v1/disk"
	httpTimeout    = 60 * time.Second
)

var (
	// ErrPathNotFound is returned when the remote resource does not exist
	ErrPathNotFound = errors.New("yadisk: path not found")
	// ErrPathExists is returned by Upload without overwrite when the resource already exists
	ErrPathExists = errors.New("yadisk: path already exists")
)

type link struct {
	Href   string `json:"href"`
	Method string `json:"method"`
}

type apiError struct {
	Code        string `json:"error"`
	Description string `json:"description"`
}

// Client talks to Yandex Disk on behalf of one OAuth token.
type Client struct {
	token   string
	client  *http.Client
	baseURL string
}

// New creates a client.
func New(token string) *Client {
	return &Client{
		token:   token,
		client:  &http.Client{Timeout: httpTimeout},
		baseURL: defaultBaseURL,
	}
}

// WithBaseURL overrides the API base URL (for testing).
func (c *Client) WithBaseURL(url string) *Client {
	c.baseURL = url
	return c
}

// Download returns the content of the remote file at path.
func (c *Client) Download(ctx context.Context, path string) ([]byte, error) {
	href, err := c.link(ctx, "/resources/download", url.Values{"path": {path}})
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, href.Href, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download %s: unexpected status %d", path, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// Upload stores data at path. Without overwrite an existing file yields ErrPathExists.
func (c *Client) Upload(ctx context.Context, path string, data []byte, overwrite bool) error {
	href, err := c.link(ctx, "/resources/upload", url.Values{
		"path":      {path},
		"overwrite": {strconv.FormatBool(overwrite)},
	})
	if err != nil {
		return fmt.Errorf("upload %s: %w", path, err)
	}

	method := href.Method
	if method == "" {
		method = http.MethodPut
	}
	req, err := http.NewRequestWithContext(ctx, method, href.Href, bytes.NewReader(data))
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("upload %s: %w", path, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusCreated, http.StatusAccepted, http.StatusOK:
		return nil
	default:
		return fmt.Errorf("upload %s: unexpected status %d", path, resp.StatusCode)
	}
}

// Remove deletes the resource at path, into the trash unless permanently is set.
func (c *Client) Remove(ctx context.Context, path string, permanently bool) error {
	query := url.Values{
		"path":        {path},
		"permanently": {strconv.FormatBool(permanently)},
	}
	resp, err := c.do(ctx, http.MethodDelete, "/resources", query)
	if err != nil {
		return fmt.Errorf("remove %s: %w", path, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusNoContent, http.StatusAccepted:
		return nil
	default:
		return fmt.Errorf("remove %s: %w", path, decodeError(resp))
	}
}

// link requests an operation URL from the API
func (c *Client) link(ctx context.Context, endpoint string, query url.Values) (link, error) {
	resp, err := c.do(ctx, http.MethodGet, endpoint, query)
	if err != nil {
		return link{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return link{}, decodeError(resp)
	}

	var l link
	if err := json.NewDecoder(resp.Body).Decode(&l); err != nil {
		return link{}, fmt.Errorf("decode link: %w", err)
	}
	if l.Href == "" {
		return link{}, errors.New("empty link")
	}
	return l, nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, query url.Values) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint+"?"+query.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "OAuth "+c.token)
	req.Header.Set("Accept", "application/json")
	return c.client.Do(req)
}

func decodeError(resp *http.Response) error {
	switch resp.StatusCode {
	case http.StatusNotFound:
		return ErrPathNotFound
	case http.StatusConflict:
		return ErrPathExists
	}

	var apiErr apiError
	if err := json.NewDecoder(resp.Body).Decode(&apiErr); err != nil || apiErr.Code == "" {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return fmt.Errorf("%s: %s (status %d)", apiErr.Code, apiErr.Description, resp.StatusCode)
}
