package otter

import (
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"os"
	"path/filepath"
	"sort"
)

const uploadOp = "upload speech"

// UploadStep identifies one stage of the four-step upload handshake.
type UploadStep int

const (
	StepParams UploadStep = iota + 1
	StepPreflight
	StepStore
	StepFinish
)

func (s UploadStep) String() string {
	switch s {
	case StepParams:
		return "params"
	case StepPreflight:
		return "preflight"
	case StepStore:
		return "store"
	case StepFinish:
		return "finish"
	}
	return "unknown"
}

// UploadResult reports how far the handshake progressed and the envelope
// produced by the last step that ran. Step < StepFinish means the pipeline
// halted there and later steps were never attempted.
type UploadResult struct {
	Step     UploadStep `json:"step"`
	Response *Response  `json:"response"`
}

// storeReceipt is the XML body the object store returns on a 201.
type storeReceipt struct {
	XMLName  xml.Name `xml:"PostResponse"`
	Location string   `xml:"Location"`
	Bucket   string   `xml:"Bucket"`
	Key      string   `xml:"Key"`
}

// UploadSpeech uploads a local media file through the four-step handshake:
// fetch presigned-POST parameters, preflight the store, stream the multipart
// form to the store, then register the stored object with the service.
//
// Each step hard-depends on the one before it; no step is retried, and the
// steps never overlap. A non-success status at any step halts the pipeline
// and hands back that step's envelope verbatim. A transport failure at any
// step wraps into an *APIError for the upload operation. An object that
// reaches the store but never reaches the finish call is left in place —
// this client performs no cleanup.
func (c *Client) UploadSpeech(ctx context.Context, path, contentType string) (*UploadResult, error) {
	metrics.UploadRequests.Add(1)

	// Step 1: presigned-POST parameters.
	resp, err := c.call(ctx, "speech_upload_params", callOpts{op: uploadOp, method: http.MethodGet, gated: true})
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return &UploadResult{Step: StepParams, Response: resp}, nil
	}
	fields, err := parseUploadParams(resp.Body)
	if err != nil {
		return nil, &APIError{Op: uploadOp, Err: err}
	}

	// Step 2: browser-style CORS preflight against the store.
	pre, err := c.preflightStore(ctx)
	if err != nil {
		return nil, err
	}
	if pre.StatusCode != http.StatusOK {
		return &UploadResult{Step: StepPreflight, Response: pre}, nil
	}

	// Step 3: streamed multipart POST. The store answers 201 on success;
	// anything else, 200 included, is a failure.
	stored, err := c.postToStore(ctx, fields, path, contentType)
	if err != nil {
		return nil, err
	}
	if stored.StatusCode != http.StatusCreated {
		return &UploadResult{Step: StepStore, Response: stored}, nil
	}

	// Step 4: parse the store receipt and register the upload.
	var receipt storeReceipt
	if err := xml.Unmarshal(stored.Body, &receipt); err != nil {
		return nil, &APIError{Op: uploadOp, Err: fmt.Errorf("parse store receipt: %w", err)}
	}
	fin, err := c.call(ctx, "finish_speech_upload", callOpts{
		op:     uploadOp,
		method: http.MethodGet,
		gated:  true,
		params: url.Values{
			"bucket":   {receipt.Bucket},
			"key":      {receipt.Key},
			"language": {"en"},
			"country":  {"us"},
		},
	})
	if err != nil {
		return nil, err
	}
	return &UploadResult{Step: StepFinish, Response: fin}, nil
}

// parseUploadParams extracts the presigned-POST form fields from the params
// response. form_action is the POST target, not a form field, and is
// dropped. success_action_status arrives as a JSON number and must be a
// string by the time it is form-encoded, so every value is normalized
// through json.Number to keep the digits exact.
func parseUploadParams(body []byte) (map[string]string, error) {
	var payload struct {
		Data map[string]any `json:"data"`
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode upload params: %w", err)
	}
	if payload.Data == nil {
		return nil, errors.New("upload params response has no data")
	}
	delete(payload.Data, "form_action")

	fields := make(map[string]string, len(payload.Data))
	for name, value := range payload.Data {
		switch v := value.(type) {
		case string:
			fields[name] = v
		case json.Number:
			fields[name] = v.String()
		default:
			fields[name] = fmt.Sprint(v)
		}
	}
	return fields, nil
}

// preflightStore issues the OPTIONS request a browser would send before the
// cross-origin POST. The answer is returned as a plain envelope; the caller
// decides whether it halts the pipeline.
func (c *Client) preflightStore(ctx context.Context) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodOptions, c.cfg.S3URL, nil)
	if err != nil {
		return nil, &APIError{Op: uploadOp, Err: err}
	}
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	if u, err := url.Parse(c.cfg.BaseURL); err == nil {
		req.Header.Set("Origin", u.Scheme+"://"+u.Host)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &APIError{Op: uploadOp, Err: err}
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &APIError{Op: uploadOp, Err: err}
	}
	return &Response{StatusCode: resp.StatusCode, Body: body}, nil
}

// postToStore streams the multipart form to the object store. The file is
// piped through the multipart writer rather than buffered, so memory use
// stays flat for large media files. No authentication cookies are sent: the
// signed policy in the form fields is the store's only credential.
func (c *Client) postToStore(ctx context.Context, fields map[string]string, path, contentType string) (*Response, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, &APIError{Op: uploadOp, Err: err}
	}

	pr, pw := io.Pipe()
	form := multipart.NewWriter(pw)

	go func() {
		defer file.Close()
		names := make([]string, 0, len(fields))
		for name := range fields {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			if err := form.WriteField(name, fields[name]); err != nil {
				pw.CloseWithError(err)
				return
			}
		}
		part, err := newFilePart(form, filepath.Base(path), contentType)
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(part, file); err != nil {
			pw.CloseWithError(err)
			return
		}
		pw.CloseWithError(form.Close())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.S3URL, pr)
	if err != nil {
		return nil, &APIError{Op: uploadOp, Err: err}
	}
	req.Header.Set("Content-Type", form.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &APIError{Op: uploadOp, Err: err}
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &APIError{Op: uploadOp, Err: err}
	}
	return &Response{StatusCode: resp.StatusCode, Body: body}, nil
}

// newFilePart adds the file part with an explicit content type;
// multipart.Writer.CreateFormFile would hardcode application/octet-stream.
func newFilePart(form *multipart.Writer, filename, contentType string) (io.Writer, error) {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, filename))
	h.Set("Content-Type", contentType)
	return form.CreatePart(h)
}
