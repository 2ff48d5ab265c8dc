// Package reddwarfclient is a minimal net/http client for the subset of
// the HTTP surface (spec.md §6) the node agent and CLI need: posting and
// heartbeating a Node. It deliberately does not pull in client-go's
// generated clientset, since Reddwarf's types aren't registered with a
// real API server's discovery/scheme machinery.
package reddwarfclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	corev1 "k8s.io/api/core/v1"

	"github.com/CloudNebulaProject/reddwarf/pkg/apierrors"
)

// Client talks to a running Reddwarf API server.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// New returns a Client against baseURL (e.g. "https://127.0.0.1:6443"),
// with the given *http.Client (carrying any TLS trust configuration the
// caller needs).
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{BaseURL: baseURL, HTTPClient: httpClient}
}

// CreateNode POSTs a new Node.
func (c *Client) CreateNode(ctx context.Context, node *corev1.Node) (*corev1.Node, error) {
	var out corev1.Node
	err := c.do(ctx, http.MethodPost, "/api/v1/nodes", node, &out)
	return &out, err
}

// GetNode fetches a Node by name.
func (c *Client) GetNode(ctx context.Context, name string) (*corev1.Node, error) {
	var out corev1.Node
	err := c.do(ctx, http.MethodGet, "/api/v1/nodes/"+name, nil, &out)
	return &out, err
}

// UpdateNodeStatus PUTs the status subresource for node.Name.
func (c *Client) UpdateNodeStatus(ctx context.Context, node *corev1.Node) (*corev1.Node, error) {
	var out corev1.Node
	err := c.do(ctx, http.MethodPut, "/api/v1/nodes/"+node.Name+"/status", node, &out)
	return &out, err
}

// do issues one request and decodes the JSON response, translating
// Kubernetes-Status-shaped error bodies into apierrors.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return apierrors.Internalf("marshal request: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return apierrors.Internalf("build request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return apierrors.Internalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return apierrors.Internalf("read response: %v", err)
	}

	if resp.StatusCode >= 400 {
		return statusError(resp.StatusCode, data)
	}
	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return apierrors.Internalf("decode response: %v", err)
		}
	}
	return nil
}

// statusDoc mirrors the Kubernetes Status error body shape (spec.md §6).
type statusDoc struct {
	Message string `json:"message"`
	Code    int    `json:"code"`
}

func statusError(httpStatus int, body []byte) error {
	var doc statusDoc
	_ = json.Unmarshal(body, &doc)
	msg := doc.Message
	if msg == "" {
		msg = fmt.Sprintf("request failed with status %d", httpStatus)
	}

	switch httpStatus {
	case http.StatusNotFound:
		return apierrors.NotFound(msg)
	case http.StatusConflict:
		return apierrors.AlreadyExists(msg)
	case http.StatusBadRequest:
		return apierrors.BadRequest(msg)
	case http.StatusUnprocessableEntity:
		return apierrors.ValidationFailed(msg)
	case http.StatusUnsupportedMediaType:
		return apierrors.UnsupportedMediaType(msg)
	case http.StatusMethodNotAllowed:
		return apierrors.MethodNotAllowed(msg)
	default:
		return apierrors.Internal(msg)
	}
}
