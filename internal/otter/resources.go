package otter

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
)

// GetUser fetches the profile of the remote account.
func (c *Client) GetUser(ctx context.Context) (*Response, error) {
	return c.call(ctx, "user", callOpts{op: "get user", method: http.MethodGet})
}

// GetSpeakers lists the speakers known to the authenticated account.
func (c *Client) GetSpeakers(ctx context.Context) (*Response, error) {
	return c.call(ctx, "speakers", callOpts{op: "get speakers", method: http.MethodGet, gated: true})
}

// GetSpeeches fetches one page of speeches from a folder and source.
// The remote API has no offset or cursor; page_size is the only lever.
func (c *Client) GetSpeeches(ctx context.Context, folder int, pageSize int, source string) (*Response, error) {
	return c.call(ctx, "speeches", callOpts{
		op:     "get speeches",
		method: http.MethodGet,
		gated:  true,
		params: url.Values{
			"folder":    {strconv.Itoa(folder)},
			"page_size": {strconv.Itoa(pageSize)},
			"source":    {source},
		},
	})
}

// GetSpeech fetches a single speech by otid.
func (c *Client) GetSpeech(ctx context.Context, otid string) (*Response, error) {
	return c.call(ctx, "speech", callOpts{
		op:     "get speech",
		method: http.MethodGet,
		gated:  true,
		params: url.Values{"otid": {otid}},
	})
}

// QuerySpeech runs a full-text search within a speech.
func (c *Client) QuerySpeech(ctx context.Context, query, otid string, size int) (*Response, error) {
	if size <= 0 {
		size = 500
	}
	return c.call(ctx, "advanced_search", callOpts{
		op:     "query speech",
		method: http.MethodGet,
		params: url.Values{
			"query": {query},
			"size":  {strconv.Itoa(size)},
			"otid":  {otid},
		},
	})
}

// CreateSpeaker registers a new speaker name on the account.
func (c *Client) CreateSpeaker(ctx context.Context, speakerName string) (*Response, error) {
	return c.call(ctx, "create_speaker", callOpts{
		op:     "create speaker",
		method: http.MethodPost,
		gated:  true,
		csrf:   true,
		body:   map[string]string{"speaker_name": speakerName},
	})
}

// GetNotificationSettings fetches the account's notification preferences.
func (c *Client) GetNotificationSettings(ctx context.Context) (*Response, error) {
	return c.call(ctx, "get_notification_settings", callOpts{op: "get notification settings", method: http.MethodGet})
}

// ListGroups lists the groups a speech is shared with.
func (c *Client) ListGroups(ctx context.Context, speechOtid string) (*Response, error) {
	return c.call(ctx, "list_groups", callOpts{
		op:     "list groups",
		method: http.MethodGet,
		gated:  true,
		params: url.Values{"speech_otid": {speechOtid}},
	})
}

// GetFolders lists the account's folders.
func (c *Client) GetFolders(ctx context.Context) (*Response, error) {
	return c.call(ctx, "folders", callOpts{op: "get folders", method: http.MethodGet, gated: true})
}

// MoveToTrashBin moves a speech to the trash.
func (c *Client) MoveToTrashBin(ctx context.Context, otid string) (*Response, error) {
	return c.call(ctx, "move_to_trash_bin", callOpts{
		op:     "move to trash bin",
		method: http.MethodPost,
		gated:  true,
		csrf:   true,
		body:   map[string]string{"otid": otid},
	})
}

// StartSpeech would begin a realtime transcription session. That needs a
// persistent bidirectional stream to a separate endpoint and is not
// implemented.
func (c *Client) StartSpeech(ctx context.Context) (*Response, error) {
	return nil, ErrNotImplemented
}

// StopSpeech would end a realtime transcription session; see StartSpeech.
func (c *Client) StopSpeech(ctx context.Context) (*Response, error) {
	return nil, ErrNotImplemented
}
