package rendezvous

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Client talks to the rendezvous HTTP API.
type Client struct {
	baseURL string
	client  *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Register claims id for url and returns the lease token needed to release it.
func (c *Client) Register(ctx context.Context, id, peerURL string) (string, error) {
	var reg Registration
	err := c.do(ctx, http.MethodPost, "/api/v1/peers", nil, map[string]string{"id": id, "url": peerURL}, &reg)
	if err != nil {
		return "", err
	}
	return reg.Token, nil
}

func (c *Client) Resolve(ctx context.Context, id string) (string, error) {
	var reg Registration
	if err := c.do(ctx, http.MethodGet, "/api/v1/peers/"+url.PathEscape(id), nil, nil, &reg); err != nil {
		return "", err
	}
	return reg.URL, nil
}

func (c *Client) Release(ctx context.Context, id, token string) error {
	header := http.Header{}
	header.Set("X-Peer-Token", token)
	return c.do(ctx, http.MethodDelete, "/api/v1/peers/"+url.PathEscape(id), header, nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, header http.Header, body, target any) error {
	var reader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	for k, v := range header {
		req.Header[k] = v
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("rendezvous %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	switch resp.StatusCode {
	case http.StatusConflict:
		return ErrIDTaken
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusForbidden:
		return ErrTokenMismatch
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("rendezvous %s %s: HTTP %d: %s", method, path, resp.StatusCode, string(respBody))
	}

	if target != nil && len(respBody) > 0 {
		return json.Unmarshal(respBody, target)
	}
	return nil
}
