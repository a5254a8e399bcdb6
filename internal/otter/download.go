package otter

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// DefaultExportFormats is the format list used when a download does not
// specify one.
const DefaultExportFormats = "txt,pdf,mp3,docx,srt"

// DownloadResult reports where an export landed. Filename is empty when the
// remote refused the export; Response then carries the remote's error
// payload. On success the body has been streamed to disk and is not kept in
// the envelope.
type DownloadResult struct {
	Filename string    `json:"filename,omitempty"`
	Response *Response `json:"response"`
}

// DownloadSpeech exports a speech through bulk_export and writes the
// received bytes under DownloadDir. The local name derives from the
// explicit name (falling back to the otid) plus the format — or .zip when
// more than one format was requested, because multi-format exports arrive
// as a single archive.
func (c *Client) DownloadSpeech(ctx context.Context, otid, name, formats string) (*DownloadResult, error) {
	metrics.DownloadRequests.Add(1)
	const op = "download speech"

	snap, err := c.snapshot(true)
	if err != nil {
		return nil, err
	}
	if formats == "" {
		formats = DefaultExportFormats
	}

	req, err := c.newRequest(ctx, snap, "bulk_export", callOpts{
		op:     op,
		method: http.MethodPost,
		gated:  true,
		csrf:   true,
		body: map[string]any{
			"formats":          formats,
			"speech_otid_list": []string{otid},
		},
	})
	if err != nil {
		return nil, &APIError{Op: op, Err: err}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		metrics.APIErrors.Add(1)
		return nil, &APIError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, &APIError{Op: op, Err: err}
		}
		return &DownloadResult{Response: &Response{StatusCode: resp.StatusCode, Body: body}}, nil
	}

	filename := downloadFilename(otid, name, formats)
	dest := filepath.Join(c.cfg.DownloadDir, filename)
	out, err := os.Create(dest)
	if err != nil {
		return nil, &APIError{Op: op, Err: err}
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		return nil, &APIError{Op: op, Err: err}
	}
	if err := out.Close(); err != nil {
		return nil, &APIError{Op: op, Err: err}
	}
	return &DownloadResult{
		Filename: filename,
		Response: &Response{StatusCode: resp.StatusCode},
	}, nil
}

// downloadFilename derives the local file name for an export.
func downloadFilename(otid, name, formats string) string {
	base := name
	if base == "" {
		base = otid
	}
	ext := formats
	if strings.Contains(formats, ",") {
		ext = "zip"
	}
	return base + "." + ext
}
