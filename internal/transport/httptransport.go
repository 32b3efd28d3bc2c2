// Package transport provides the concrete TransportAdapter that speaks the
// backend's four-call blob upload protocol over HTTP.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	nethttp "net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog/log"

	"github.com/rescale/blobup/internal/config"
	"github.com/rescale/blobup/internal/http"
	"github.com/rescale/blobup/internal/uploadengine"
)

// retryLogger adapts retryablehttp's LeveledLogger to zerolog.
type retryLogger struct{}

func fields(kv []interface{}) map[string]interface{} {
	m := make(map[string]interface{}, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		if k, ok := kv[i].(string); ok {
			m[k] = kv[i+1]
		}
	}
	return m
}

func (l *retryLogger) Error(msg string, kv ...interface{}) {
	if strings.Contains(fmt.Sprint(kv), "context canceled") {
		return
	}
	log.Error().Fields(fields(kv)).Msg(msg)
}
func (l *retryLogger) Info(msg string, kv ...interface{})  { log.Debug().Fields(fields(kv)).Msg(msg) }
func (l *retryLogger) Debug(msg string, kv ...interface{}) { log.Debug().Fields(fields(kv)).Msg(msg) }
func (l *retryLogger) Warn(msg string, kv ...interface{})  { log.Warn().Fields(fields(kv)).Msg(msg) }

// HTTPTransport implements uploadengine.TransportAdapter against the
// backend's /blob/upload endpoints.
//
// Create, Finalize and Cancel run over a retryablehttp client configured
// with idempotentRetryMax: all three are safe to retry silently since
// replaying them cannot double-charge or corrupt state. UploadPart runs
// over a client with RetryMax pinned to zero — the engine's own part
// scheduler, not a hidden transport layer, must decide whether a failed
// part is retried, or its state-machine transitions (failed/paused) stop
// reflecting what's actually happening on the wire.
type HTTPTransport struct {
	baseURL       string
	apiKey        string
	minCreateSize int64

	idempotentClient *nethttp.Client
	partClient       *nethttp.Client
}

// NewHTTPTransport builds a transport against cfg.APIBaseURL.
// idempotentRetryMax configures retry attempts for Create/Finalize/Cancel;
// 0 disables retries for those calls too.
func NewHTTPTransport(cfg *config.Config, idempotentRetryMax int) (*HTTPTransport, error) {
	if cfg.APIBaseURL == "" {
		return nil, fmt.Errorf("transport: API base URL is empty")
	}

	base, err := http.CreateOptimizedClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("transport: configure http client: %w", err)
	}

	idempotent := retryablehttp.NewClient()
	idempotent.HTTPClient = base
	idempotent.RetryMax = idempotentRetryMax
	idempotent.RetryWaitMin = 1 * time.Second
	idempotent.RetryWaitMax = 30 * time.Second
	idempotent.Logger = &retryLogger{}

	partOnly := retryablehttp.NewClient()
	partOnly.HTTPClient = base
	partOnly.RetryMax = 0
	partOnly.Logger = &retryLogger{}

	return &HTTPTransport{
		baseURL:          strings.TrimSuffix(cfg.APIBaseURL, "/"),
		apiKey:           cfg.APIKey,
		minCreateSize:    cfg.MinCreateSize,
		idempotentClient: idempotent.StandardClient(),
		partClient:       partOnly.StandardClient(),
	}, nil
}

type errorBody struct {
	Detail string `json:"detail"`
}

func readError(resp *nethttp.Response) string {
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Sprintf("(failed to read response body: %v)", err)
	}
	var eb errorBody
	if json.Unmarshal(data, &eb) == nil && eb.Detail != "" {
		return eb.Detail
	}
	return string(data)
}

func (t *HTTPTransport) authorize(req *nethttp.Request) {
	req.Header.Set("Authorization", "Token "+t.apiKey)
}

func asAbortOrFailure(op string, err error, ctx context.Context) error {
	if ctx.Err() != nil {
		return uploadengine.ErrAborted
	}
	return uploadengine.NewTransportFailure(op, err)
}

// Create registers file with the backend and returns an upload ID to be
// used for every subsequent part, finalize or cancel call. Rejects files
// below the configured minimum size before making any network call. The
// 201 body is the upload ID as a JSON string; a JSON object with an
// uploadId field is accepted as well.
func (t *HTTPTransport) Create(ctx context.Context, file uploadengine.UploadFile) (string, error) {
	if t.minCreateSize > 0 && file.Size < t.minCreateSize {
		return "", uploadengine.NewTransportFailure("create", fmt.Errorf("file size %d is below the minimum of %d bytes", file.Size, t.minCreateSize))
	}

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if _, err := w.CreateFormFile("file", file.Name); err != nil {
		return "", uploadengine.NewTransportFailure("create", err)
	}
	if err := w.Close(); err != nil {
		return "", uploadengine.NewTransportFailure("create", err)
	}

	req, err := nethttp.NewRequestWithContext(ctx, nethttp.MethodPost, t.baseURL+"/blob/upload", &body)
	if err != nil {
		return "", uploadengine.NewTransportFailure("create", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	t.authorize(req)

	resp, err := t.idempotentClient.Do(req)
	if err != nil {
		return "", asAbortOrFailure("create", err, ctx)
	}
	defer resp.Body.Close()

	if resp.StatusCode != nethttp.StatusCreated {
		return "", uploadengine.NewTransportFailure("create", fmt.Errorf("status %d: %s", resp.StatusCode, readError(resp)))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", uploadengine.NewTransportFailure("create", err)
	}
	var uploadID string
	if json.Unmarshal(data, &uploadID) != nil {
		var result struct {
			UploadID string `json:"uploadId"`
		}
		if err := json.Unmarshal(data, &result); err != nil {
			return "", uploadengine.NewTransportFailure("create", err)
		}
		uploadID = result.UploadID
	}
	if uploadID == "" {
		return "", uploadengine.NewTransportFailure("create", fmt.Errorf("backend returned an empty upload id"))
	}
	return uploadID, nil
}

// UploadPart sends one part's bytes. A well-formed 4xx rejection is
// reported as (false, nil): the scheduler may retry that part later. A
// network error or 5xx is reported as a *TransportFailure.
func (t *HTTPTransport) UploadPart(ctx context.Context, part *uploadengine.Part, uploadID string, body []byte) (bool, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.WriteField("upload_id", uploadID); err != nil {
		return false, uploadengine.NewTransportFailure("uploadPart", err)
	}
	fw, err := w.CreateFormFile("file", fmt.Sprintf("part-%d", part.Index))
	if err != nil {
		return false, uploadengine.NewTransportFailure("uploadPart", err)
	}
	if _, err := fw.Write(body); err != nil {
		return false, uploadengine.NewTransportFailure("uploadPart", err)
	}
	if err := w.Close(); err != nil {
		return false, uploadengine.NewTransportFailure("uploadPart", err)
	}

	path := fmt.Sprintf("%s/blob/upload/%d", t.baseURL, part.Index)
	req, err := nethttp.NewRequestWithContext(ctx, nethttp.MethodPatch, path, &buf)
	if err != nil {
		return false, uploadengine.NewTransportFailure("uploadPart", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	t.authorize(req)

	resp, err := t.partClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return false, uploadengine.ErrAborted
		}
		return false, uploadengine.NewTransportFailure("uploadPart", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == nethttp.StatusOK:
		io.Copy(io.Discard, resp.Body)
		return true, nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		detail := readError(resp)
		log.Debug().Int("part", part.Index).Int("status", resp.StatusCode).Str("detail", detail).Msg("uploadPart rejected")
		return false, nil
	default:
		return false, uploadengine.NewTransportFailure("uploadPart", fmt.Errorf("status %d: %s", resp.StatusCode, readError(resp)))
	}
}

// Finalize tells the backend every part has landed and asks it to
// assemble the persisted artifact.
func (t *HTTPTransport) Finalize(ctx context.Context, fileName, uploadID string) (uploadengine.PersistedArtifact, error) {
	form := url.Values{}
	form.Set("file_name", fileName)
	form.Set("upload_id", uploadID)

	req, err := nethttp.NewRequestWithContext(ctx, nethttp.MethodPut, t.baseURL+"/blob/upload", strings.NewReader(form.Encode()))
	if err != nil {
		return uploadengine.PersistedArtifact{}, uploadengine.NewTransportFailure("finalize", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	t.authorize(req)

	resp, err := t.idempotentClient.Do(req)
	if err != nil {
		return uploadengine.PersistedArtifact{}, asAbortOrFailure("finalize", err, ctx)
	}
	defer resp.Body.Close()

	if resp.StatusCode != nethttp.StatusOK {
		return uploadengine.PersistedArtifact{}, uploadengine.NewTransportFailure("finalize",
			fmt.Errorf("status %d: %s", resp.StatusCode, readError(resp)))
	}

	var artifact uploadengine.PersistedArtifact
	if err := json.NewDecoder(resp.Body).Decode(&artifact); err != nil {
		return uploadengine.PersistedArtifact{}, uploadengine.NewTransportFailure("finalize", err)
	}
	return artifact, nil
}

// Cancel tells the backend to discard a partial upload. Best-effort: the
// caller (UploadController.Abort) does not fail the abort if this errors.
func (t *HTTPTransport) Cancel(ctx context.Context, uploadID string) error {
	u := t.baseURL + "/blob/upload?" + url.Values{"upload_id": {uploadID}}.Encode()
	req, err := nethttp.NewRequestWithContext(ctx, nethttp.MethodDelete, u, nil)
	if err != nil {
		return uploadengine.NewTransportFailure("cancel", err)
	}
	t.authorize(req)

	resp, err := t.idempotentClient.Do(req)
	if err != nil {
		return asAbortOrFailure("cancel", err, ctx)
	}
	defer resp.Body.Close()

	if resp.StatusCode != nethttp.StatusNoContent {
		return uploadengine.NewTransportFailure("cancel", fmt.Errorf("status %d: %s", resp.StatusCode, readError(resp)))
	}
	return nil
}
