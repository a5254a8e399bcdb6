package otter

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
)

// Speech sources, iterated in this fixed order when aggregating.
const (
	SourceOwned  = "owned"
	SourceShared = "shared"
)

var speechSources = []string{SourceOwned, SourceShared}

// pageCeiling is the largest page the remote API is assumed to serve.
const pageCeiling = 200

// SpeechPage is one best-effort page of speeches from a single source.
//
// MaybeTruncated is set when the remote returned exactly the requested page
// size. The API exposes no cursor, so a full page may or may not mean more
// items exist — the flag can false-positive when the true count equals the
// page size. Consumers decide whether to warn or re-query.
type SpeechPage struct {
	Source         string   `json:"source"`
	Speeches       []Speech `json:"speeches"`
	MaybeTruncated bool     `json:"maybe_truncated"`
}

// GetAllSpeeches approximates "get everything" for one source by requesting
// a single page of min(maxSpeeches, 200) items. Item order is whatever the
// remote returned.
func (c *Client) GetAllSpeeches(ctx context.Context, folder int, source string, maxSpeeches int) (*SpeechPage, error) {
	pageSize := maxSpeeches
	if pageSize <= 0 || pageSize > pageCeiling {
		pageSize = pageCeiling
	}

	resp, err := c.GetSpeeches(ctx, folder, pageSize, source)
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, &APIError{Op: "get speeches", Err: fmt.Errorf("remote status %d", resp.StatusCode)}
	}

	var payload speechesPayload
	if err := resp.DecodeJSON(&payload); err != nil {
		return nil, &APIError{Op: "get speeches", Err: err}
	}

	page := &SpeechPage{Source: source, Speeches: make([]Speech, 0, len(payload.Speeches))}
	for _, rec := range payload.Speeches {
		page.Speeches = append(page.Speeches, Speech{
			ID:              rec.OTID,
			Title:           rec.Title,
			CreatedAt:       rec.CreatedAt,
			DurationSeconds: rec.Duration,
			Source:          source,
		})
	}
	page.MaybeTruncated = len(page.Speeches) == pageSize
	return page, nil
}

// AllSpeeches is the aggregate over every source. Merged preserves
// per-source arrival order, owned before shared regardless of timestamps,
// so TotalCount == OwnedCount + SharedCount == len(Merged).
type AllSpeeches struct {
	BySource    map[string][]Speech `json:"by_source"`
	Merged      []Speech            `json:"merged"`
	OwnedCount  int                 `json:"owned_count"`
	SharedCount int                 `json:"shared_count"`
	TotalCount  int                 `json:"total_count"`
	Notes       []string            `json:"notes,omitempty"`
}

// GetAllSpeechesFromAllSources fetches owned and shared speeches
// sequentially and merges them. A failure on one source degrades that
// source to an empty result instead of failing the aggregate; the error
// detail does not travel past the log line. Only a missing identity —
// checked once, before any network call — fails the whole operation.
func (c *Client) GetAllSpeechesFromAllSources(ctx context.Context, folder, maxPerSource int) (*AllSpeeches, error) {
	if _, err := c.snapshot(true); err != nil {
		return nil, err
	}

	out := &AllSpeeches{BySource: make(map[string][]Speech, len(speechSources))}
	for _, source := range speechSources {
		page, err := c.GetAllSpeeches(ctx, folder, source, maxPerSource)
		if err != nil {
			slog.Warn("speeches: source fetch failed",
				slog.String("source", source),
				slog.Any("error", err))
			out.BySource[source] = nil
			continue
		}
		out.BySource[source] = page.Speeches
		out.Merged = append(out.Merged, page.Speeches...)
		if page.MaybeTruncated {
			out.Notes = append(out.Notes,
				"source "+source+" may be truncated at "+strconv.Itoa(len(page.Speeches))+" items")
		}
	}
	out.OwnedCount = len(out.BySource[SourceOwned])
	out.SharedCount = len(out.BySource[SourceShared])
	out.TotalCount = out.OwnedCount + out.SharedCount
	return out, nil
}
