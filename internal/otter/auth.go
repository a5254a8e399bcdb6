package otter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

// Login exchanges credentials for a session. The remote contract wants the
// username twice: as HTTP Basic auth and again as a query parameter.
//
// On 200 the user id is extracted from the body and the cookie jar is
// rebuilt from the response cookies; every later request on this instance
// carries them. On any other status the envelope is returned unchanged and
// no state is touched — the client stays unauthenticated and callers tell
// "wrong credentials" from "service down" by the status code. Only
// transport-level failures become an error (*AuthError).
func (c *Client) Login(ctx context.Context, username, password string) (*Response, error) {
	metrics.LoginRequests.Add(1)

	u, err := url.Parse(c.cfg.BaseURL + "login")
	if err != nil {
		return nil, &AuthError{Err: err}
	}
	q := u.Query()
	q.Set("username", username)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, &AuthError{Err: err}
	}
	req.SetBasicAuth(username, password)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &AuthError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &AuthError{Err: err}
	}
	envelope := &Response{StatusCode: resp.StatusCode, Body: body}

	if resp.StatusCode != http.StatusOK {
		return envelope, nil
	}

	var payload struct {
		UserID flexID `json:"userid"`
	}
	if err := envelope.DecodeJSON(&payload); err != nil {
		return nil, &AuthError{Err: fmt.Errorf("decode login response: %w", err)}
	}
	if payload.UserID == "" {
		return nil, &AuthError{Err: errors.New("login response has no userid")}
	}

	jar := newCookieJar()
	jar.setAll(resp.Cookies())
	c.setAuth(string(payload.UserID), jar)
	return envelope, nil
}
