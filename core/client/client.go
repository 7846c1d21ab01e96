/*
Package client provides easy and fast in-process access to a REST api

Instead of marshalling HTTP, the client talks directly to the handler. The client
is the tool of choice for unit tests. With NewWithURL the same calls go over the
network, which is what the integration tests do.
*/
package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// Client provides easy access to the REST API.
type Client struct {
	handler    http.Handler
	httpClient *http.Client
	url        string
	token      string
	ctx        context.Context

	defaultHeaders map[string]string
}

// NewWithRouter creates a client to make pseudo-REST requests to the backend,
// through the handler, typically the mux router
//
// WithToken() adds a bearer token to the request header.
// WithContext() specifies a different base context all together.
func NewWithRouter(handler http.Handler) Client {
	return Client{
		handler:        handler,
		defaultHeaders: map[string]string{},
	}
}

// NewWithURL creates a client to make REST requests to the backend
//
// WithToken adds an authorization token to the request header.
func NewWithURL(url string) Client {
	return Client{
		url:            strings.TrimSuffix(url, "/"),
		httpClient:     &http.Client{Timeout: 20 * time.Second},
		defaultHeaders: map[string]string{},
	}
}

// WithHeader returns a new client with a default header added
func (c Client) WithHeader(key string, value string) Client {
	headers := make(map[string]string, len(c.defaultHeaders)+1)
	for k, v := range c.defaultHeaders {
		headers[k] = v
	}
	headers[key] = value
	c.defaultHeaders = headers
	return c
}

// WithToken returns a new client which authenticates with the bearer token
func (c Client) WithToken(token string) Client {
	c.token = token
	return c
}

// WithContext returns a new client with specific request context
func (c Client) WithContext(ctx context.Context) Client {
	c.ctx = ctx
	return c
}

// Context returns the request context
func (c Client) Context() context.Context {
	if c.ctx == nil {
		return context.Background()
	}
	return c.ctx
}

// Do sends a request with method to path and returns the status code and the response
// header. body is marshalled to JSON unless it is a []byte; a nil body sends no body.
// The response is unmarshalled into result regardless of the status code, result can
// be a raw *[]byte or nil.
func (c Client) Do(method, path string, body interface{}, result interface{}) (int, http.Header, error) {
	status, header, resBody, err := c.do(method, path, body)
	if err != nil {
		return status, header, err
	}
	return status, header, unmarshal(resBody, result)
}

func (c Client) do(method, path string, body interface{}) (int, http.Header, []byte, error) {
	var reader io.Reader
	if body != nil {
		j, ok := body.([]byte)
		if !ok {
			var err error
			j, err = json.Marshal(body)
			if err != nil {
				return http.StatusBadRequest, nil, nil, fmt.Errorf("%s to %s: %w", method, path, err)
			}
		}
		reader = bytes.NewReader(j)
	}

	r, err := http.NewRequestWithContext(c.Context(), method, c.url+path, reader)
	if err != nil {
		return http.StatusBadRequest, nil, nil, err
	}
	if body != nil {
		r.Header.Set("Content-Type", "application/json")
	}
	for key, value := range c.defaultHeaders {
		r.Header.Add(key, value)
	}
	if c.token != "" {
		r.Header.Set("Authorization", "Bearer "+c.token)
	}

	if c.handler != nil {
		rec := httptest.NewRecorder()
		c.handler.ServeHTTP(rec, r)
		res := rec.Result()
		return res.StatusCode, res.Header, rec.Body.Bytes(), nil
	}

	res, err := c.httpClient.Do(r)
	if err != nil {
		return http.StatusInternalServerError, nil, nil, err
	}
	defer res.Body.Close()
	resBody, err := io.ReadAll(res.Body)
	return res.StatusCode, res.Header, resBody, err
}

func unmarshal(data []byte, result interface{}) error {
	if len(data) == 0 || result == nil {
		return nil
	}
	if raw, ok := result.(*[]byte); ok {
		*raw = data
		return nil
	}
	return json.Unmarshal(data, result)
}

// expect returns an error if status is not one of the wanted codes
func expect(method, path string, status int, resBody []byte, want ...int) error {
	for _, w := range want {
		if status == w {
			return nil
		}
	}
	return fmt.Errorf("%s %s returned wrong status code: got %v want %v. Error: %s",
		method, path, status, want[0], strings.TrimSpace(string(resBody)))
}

// RawGet gets the resource from path. Expects http.StatusOK as response, otherwise it will
// flag an error. Returns the actual http status code.
//
// The path can be extend with query strings.
//
// result can be a raw *[]byte.
// result can be nil.
func (c Client) RawGet(path string, result interface{}) (int, error) {
	status, _, resBody, err := c.do(http.MethodGet, path, nil)
	if err != nil {
		return status, err
	}
	if err := expect(http.MethodGet, path, status, resBody, http.StatusOK); err != nil {
		return status, err
	}
	return status, unmarshal(resBody, result)
}

// RawPost posts a resource to path. Expects http.StatusCreated or http.StatusOK as response,
// otherwise it will flag an error. Returns the actual http status code.
//
// body can also be a []byte, result can also be raw *[]byte.
// result can be nil.
func (c Client) RawPost(path string, body interface{}, result interface{}) (int, error) {
	status, _, resBody, err := c.do(http.MethodPost, path, body)
	if err != nil {
		return status, err
	}
	if err := expect(http.MethodPost, path, status, resBody, http.StatusCreated, http.StatusOK); err != nil {
		return status, err
	}
	return status, unmarshal(resBody, result)
}

// RawDelete deletes the resource at path. Expects http.StatusOK or http.StatusNoContent
// as response.
func (c Client) RawDelete(path string) (int, error) {
	status, _, resBody, err := c.do(http.MethodDelete, path, nil)
	if err != nil {
		return status, err
	}
	return status, expect(http.MethodDelete, path, status, resBody, http.StatusOK, http.StatusNoContent)
}
