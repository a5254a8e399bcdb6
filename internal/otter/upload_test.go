package otter

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// uploadEnv wires a fake API plus object store behind one test server and
// tracks how far the handshake got.
type uploadEnv struct {
	client *Client

	preflightStatus int
	storeStatus     int

	preflights  atomic.Int64
	storePosts  atomic.Int64
	finishCalls atomic.Int64

	storeFields map[string]string
	fileBody    []byte
	finishQuery map[string]string
}

func newUploadEnv(t *testing.T) *uploadEnv {
	t.Helper()
	env := &uploadEnv{
		preflightStatus: http.StatusOK,
		storeStatus:     http.StatusCreated,
		storeFields:     make(map[string]string),
		finishQuery:     make(map[string]string),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/speech_upload_params", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status":"OK","data":{
			"form_action":"https://example.invalid/ignored",
			"key":"speech/${filename}",
			"policy":"cG9saWN5",
			"signature":"c2ln",
			"AWSAccessKeyId":"AKTEST",
			"acl":"private",
			"success_action_status":201
		}}`)
	})
	mux.HandleFunc("/store/", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodOptions:
			env.preflights.Add(1)
			w.WriteHeader(env.preflightStatus)
		case http.MethodPost:
			env.storePosts.Add(1)
			require.NoError(t, r.ParseMultipartForm(1<<20))
			for name, vals := range r.MultipartForm.Value {
				env.storeFields[name] = vals[0]
			}
			file, _, err := r.FormFile("file")
			require.NoError(t, err)
			env.fileBody, err = io.ReadAll(file)
			require.NoError(t, err)
			w.WriteHeader(env.storeStatus)
			if env.storeStatus == http.StatusCreated {
				fmt.Fprint(w, `<PostResponse><Location>https://store/speech/audio.mp3</Location><Bucket>speech-upload-prod</Bucket><Key>speech/audio.mp3</Key><ETag>"abc"</ETag></PostResponse>`)
			}
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	})
	mux.HandleFunc("/finish_speech_upload", func(w http.ResponseWriter, r *http.Request) {
		env.finishCalls.Add(1)
		for _, param := range []string{"bucket", "key", "language", "country", "userid"} {
			env.finishQuery[param] = r.URL.Query().Get(param)
		}
		fmt.Fprint(w, `{"status":"OK"}`)
	})

	client, _ := loginTestClient(t, mux)
	env.client = client
	return env
}

func writeTempAudio(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "audio.mp3")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestUploadSpeech(t *testing.T) {
	env := newUploadEnv(t)
	path := writeTempAudio(t, "mp3-bytes")

	result, err := env.client.UploadSpeech(context.Background(), path, "audio/mp4")
	require.NoError(t, err)
	require.Equal(t, StepFinish, result.Step)
	assert.True(t, result.Response.OK())

	assert.EqualValues(t, 1, env.preflights.Load())
	assert.EqualValues(t, 1, env.storePosts.Load())
	assert.EqualValues(t, 1, env.finishCalls.Load())

	// The number from the params response must be form-encoded as a string.
	assert.Equal(t, "201", env.storeFields["success_action_status"])
	assert.NotContains(t, env.storeFields, "form_action")
	assert.Equal(t, "AKTEST", env.storeFields["AWSAccessKeyId"])
	assert.Equal(t, []byte("mp3-bytes"), env.fileBody)

	assert.Equal(t, "speech-upload-prod", env.finishQuery["bucket"])
	assert.Equal(t, "speech/audio.mp3", env.finishQuery["key"])
	assert.Equal(t, "en", env.finishQuery["language"])
	assert.Equal(t, "us", env.finishQuery["country"])
	assert.Equal(t, "u1", env.finishQuery["userid"])
}

func TestUploadHaltsOnPreflightFailure(t *testing.T) {
	env := newUploadEnv(t)
	env.preflightStatus = http.StatusForbidden
	path := writeTempAudio(t, "x")

	result, err := env.client.UploadSpeech(context.Background(), path, "audio/mp4")
	require.NoError(t, err)
	assert.Equal(t, StepPreflight, result.Step)
	assert.Equal(t, http.StatusForbidden, result.Response.StatusCode)

	// Steps 3 and 4 must never run.
	assert.EqualValues(t, 0, env.storePosts.Load())
	assert.EqualValues(t, 0, env.finishCalls.Load())
}

func TestUploadRejectsNon201FromStore(t *testing.T) {
	env := newUploadEnv(t)
	env.storeStatus = http.StatusOK // 200 is not success for the store POST
	path := writeTempAudio(t, "x")

	result, err := env.client.UploadSpeech(context.Background(), path, "audio/mp4")
	require.NoError(t, err)
	assert.Equal(t, StepStore, result.Step)
	assert.Equal(t, http.StatusOK, result.Response.StatusCode)
	assert.EqualValues(t, 0, env.finishCalls.Load())
}

func TestUploadHaltsOnParamsFailure(t *testing.T) {
	mux := http.NewServeMux()
	var preflights atomic.Int64
	mux.HandleFunc("/speech_upload_params", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	mux.HandleFunc("/store/", func(w http.ResponseWriter, r *http.Request) {
		preflights.Add(1)
	})
	c, _ := loginTestClient(t, mux)

	result, err := c.UploadSpeech(context.Background(), writeTempAudio(t, "x"), "audio/mp4")
	require.NoError(t, err)
	assert.Equal(t, StepParams, result.Step)
	assert.Equal(t, http.StatusServiceUnavailable, result.Response.StatusCode)
	assert.EqualValues(t, 0, preflights.Load())
}

func TestUploadMissingFileFailsAfterPreflight(t *testing.T) {
	env := newUploadEnv(t)

	_, err := env.client.UploadSpeech(context.Background(), filepath.Join(t.TempDir(), "missing.mp3"), "audio/mp4")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, uploadOp, apiErr.Op)
}

func TestParseUploadParams(t *testing.T) {
	t.Run("coerces and drops", func(t *testing.T) {
		fields, err := parseUploadParams([]byte(`{"data":{"form_action":"x","success_action_status":201,"key":"k"}}`))
		require.NoError(t, err)
		assert.Equal(t, map[string]string{"success_action_status": "201", "key": "k"}, fields)
	})

	t.Run("string status stays a string", func(t *testing.T) {
		fields, err := parseUploadParams([]byte(`{"data":{"success_action_status":"201"}}`))
		require.NoError(t, err)
		assert.Equal(t, "201", fields["success_action_status"])
	})

	t.Run("missing data", func(t *testing.T) {
		_, err := parseUploadParams([]byte(`{"status":"OK"}`))
		assert.Error(t, err)
	})
}
