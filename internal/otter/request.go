package otter

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
)

// callOpts shapes one request through the generic resource layer.
type callOpts struct {
	op     string     // operation name used when wrapping transport errors
	method string     // http.MethodGet / http.MethodPost
	params url.Values // query parameters
	body   any        // JSON-encoded request body, nil for none
	gated  bool       // requires an authenticated identity + userid param
	csrf   bool       // send the csrftoken cookie back as a header
}

// call performs one authenticated request against the remote API and wraps
// the answer in the uniform envelope. Identity gating happens before any
// network I/O. Transport failures are wrapped into an *APIError named for
// the operation; remote non-2xx statuses are returned in the envelope,
// untouched and uninspected.
func (c *Client) call(ctx context.Context, endpoint string, opts callOpts) (*Response, error) {
	metrics.APIRequests.Add(1)

	snap, err := c.snapshot(opts.gated)
	if err != nil {
		return nil, err
	}

	req, err := c.newRequest(ctx, snap, endpoint, opts)
	if err != nil {
		return nil, &APIError{Op: opts.op, Err: err}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		metrics.APIErrors.Add(1)
		return nil, &APIError{Op: opts.op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.APIErrors.Add(1)
		return nil, &APIError{Op: opts.op, Err: err}
	}
	return &Response{StatusCode: resp.StatusCode, Body: body}, nil
}

// newRequest builds an API request carrying the snapshot's cookies, the
// userid parameter for gated operations, and the CSRF header when asked for.
// A missing csrftoken cookie is not an error: the request proceeds and the
// remote service stays the source of truth for CSRF enforcement.
func (c *Client) newRequest(ctx context.Context, snap authSnapshot, endpoint string, opts callOpts) (*http.Request, error) {
	u, err := url.Parse(c.cfg.BaseURL + endpoint)
	if err != nil {
		return nil, err
	}
	q := u.Query()
	for key, vals := range opts.params {
		for _, v := range vals {
			q.Add(key, v)
		}
	}
	if opts.gated {
		q.Set("userid", snap.userID)
	}
	u.RawQuery = q.Encode()

	var body io.Reader
	if opts.body != nil {
		data, err := json.Marshal(opts.body)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, opts.method, u.String(), body)
	if err != nil {
		return nil, err
	}
	if opts.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if snap.cookieHeader != "" {
		req.Header.Set("Cookie", snap.cookieHeader)
	}
	if opts.csrf && snap.csrfToken != "" {
		req.Header.Set("x-csrftoken", snap.csrfToken)
	}
	return req, nil
}
