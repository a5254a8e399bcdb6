package otter

import (
	"net/http"
	"sync"
	"time"
)

const (
	// DefaultBaseURL is the remote transcription service API root.
	DefaultBaseURL = "https://otter.ai/forward/api/v1/"
	// DefaultS3URL is the object store endpoint speech files are uploaded to.
	DefaultS3URL = "https://s3.us-west-2.amazonaws.com/speech-upload-prod/"
	// DefaultTimeout is the fixed per-request network timeout. There is no
	// per-operation override.
	DefaultTimeout = 30 * time.Second
)

// Config holds all client configuration, injected from main.
type Config struct {
	BaseURL     string        // API root, DefaultBaseURL when empty
	S3URL       string        // object store endpoint, DefaultS3URL when empty
	Timeout     time.Duration // per-request timeout, DefaultTimeout when zero
	DownloadDir string        // destination for exported speech files
	HTTPClient  *http.Client  // nil = a fresh client with Timeout
}

// Client is a stateful API client for the transcription service. One
// instance carries one authenticated identity: Login populates the user id
// and cookie jar, and every identity-gated operation afterwards rides on
// them. Independent instances share nothing.
//
// Auth state is guarded by a mutex so a Login cannot race an in-flight
// request on the same instance; operations snapshot the state once at entry
// and use that snapshot for the whole call chain.
type Client struct {
	cfg  Config
	http *http.Client

	mu   sync.Mutex
	auth authState
}

// authState is the identity owned by one client: the user id plus the
// cookies from the login that produced it. Replaced as a whole on each
// successful login.
type authState struct {
	userID string
	jar    *cookieJar
}

// authSnapshot is an immutable copy of the auth state taken at the start of
// an operation.
type authSnapshot struct {
	userID       string
	cookieHeader string
	csrfToken    string
}

// New creates a client with the given configuration, filling defaults for
// any zero field.
func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.S3URL == "" {
		cfg.S3URL = DefaultS3URL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{
		cfg:  cfg,
		http: httpClient,
		auth: authState{jar: newCookieJar()},
	}
}

// UserID returns the authenticated user id, or "" before a successful login.
func (c *Client) UserID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.auth.userID
}

// Authenticated reports whether a login has succeeded on this instance.
func (c *Client) Authenticated() bool { return c.UserID() != "" }

// snapshot copies the auth state under the lock. When gated is true and no
// identity is present it fails with ErrNotAuthenticated before any network
// traffic happens.
func (c *Client) snapshot(gated bool) (authSnapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gated && c.auth.userID == "" {
		return authSnapshot{}, ErrNotAuthenticated
	}
	return authSnapshot{
		userID:       c.auth.userID,
		cookieHeader: c.auth.jar.header(),
		csrfToken:    c.auth.jar.get("csrftoken"),
	}, nil
}

// setAuth replaces the whole auth state. Cookies from earlier logins never
// survive into the new state.
func (c *Client) setAuth(userID string, jar *cookieJar) {
	c.mu.Lock()
	c.auth = authState{userID: userID, jar: jar}
	c.mu.Unlock()
}
