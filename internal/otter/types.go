package otter

import (
	"encoding/json"
)

// Response is the uniform envelope for every remote call that succeeded at
// the transport level: the HTTP status plus the raw body bytes. Non-2xx
// statuses travel up through every layer as data, never as errors.
type Response struct {
	StatusCode int    `json:"status_code"`
	Body       []byte `json:"data,omitempty"`
}

// OK reports whether the remote answered with a 2xx status.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// DecodeJSON unmarshals the body into v.
func (r *Response) DecodeJSON(v any) error {
	return json.Unmarshal(r.Body, v)
}

// Speech is the normalized projection of a remote speech record.
type Speech struct {
	ID              string `json:"id"`
	Title           string `json:"title"`
	CreatedAt       int64  `json:"created_at"`
	DurationSeconds int    `json:"duration_seconds"`
	Source          string `json:"source"`
}

// speechRecord is the wire shape of one speech in the remote speeches list.
type speechRecord struct {
	OTID      string `json:"otid"`
	Title     string `json:"title"`
	CreatedAt int64  `json:"created_at"`
	Duration  int    `json:"duration"`
}

type speechesPayload struct {
	Speeches []speechRecord `json:"speeches"`
}

// flexID accepts both string and numeric JSON identifiers; the remote API is
// not consistent about which it sends.
type flexID string

func (f *flexID) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexID(n.String())
	return nil
}
