package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"path/filepath"

	"github.com/vcf-annotator/annotator/internal/job"
	"github.com/vcf-annotator/annotator/internal/results"
	"github.com/vcf-annotator/annotator/pkg/requestid"
)

const (
	// DefaultFileField is the multipart field the file is sent under.
	DefaultFileField = "input_file"

	annotationTypeField = "annotation_type"
	directoryField      = "dbnsfp_dir"
)

// Annotator is the client interface of the annotation server.
type Annotator interface {
	// Upload submits a file and starts an annotation job.
	Upload(ctx context.Context, req UploadRequest) (*job.Job, error)
	// ProcessStatus reads /process_status/{processKey}.
	ProcessStatus(ctx context.Context, processKey string) (job.Status, error)
	// TimestampStatus reads /status/{timestamp}, the older status endpoint.
	TimestampStatus(ctx context.Context, timestamp string) (job.Status, error)
	// Results fetches the result table of a completed job.
	Results(ctx context.Context, timestamp, annotationType string) (*results.ResultSet, error)
	// Download streams the result file of a completed job into w.
	Download(ctx context.Context, timestamp, annotationType string, w io.Writer) (int64, error)
	// Cancel asks the server to stop a job.
	Cancel(ctx context.Context, processKey string) error
}

type UploadRequest struct {
	Filename       string
	File           io.Reader
	AnnotationType string
	Directory      string
}

type uploadResponse struct {
	Timestamp      string `json:"timestamp"`
	ProcessKey     string `json:"process_key"`
	PID            int    `json:"pid"`
	AnnotationType string `json:"annotation_type"`
}

type statusResponse struct {
	Status string `json:"status"`
}

type errorResponse struct {
	Error string `json:"error"`
}

var _ Annotator = (*annotator)(nil)

type Option func(*annotator)

// WithFileField sets the multipart field name of the uploaded file.
func WithFileField(name string) Option {
	return func(a *annotator) {
		a.fileField = name
	}
}

// WithHTTPClient replaces the HTTP client built from the config.
func WithHTTPClient(c *http.Client) Option {
	return func(a *annotator) {
		a.httpClient = c
	}
}

// NewFromConfig returns an annotation server client from the given config.
func NewFromConfig(config *Config, opts ...Option) (Annotator, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	httpClient, err := NewHTTPClientFromConfig(config)
	if err != nil {
		return nil, fmt.Errorf("NewFromConfig: creating HTTP client %w", err)
	}
	return NewAnnotator(config.Service.Server, append([]Option{WithHTTPClient(httpClient)}, opts...)...)
}

func NewAnnotator(server string, opts ...Option) (Annotator, error) {
	base, err := url.Parse(server)
	if err != nil {
		return nil, fmt.Errorf("parsing server url: %w", err)
	}
	a := &annotator{
		baseURL:    base,
		httpClient: &http.Client{},
		fileField:  DefaultFileField,
	}
	for _, o := range opts {
		o(a)
	}
	return a, nil
}

type annotator struct {
	baseURL    *url.URL
	httpClient *http.Client
	fileField  string
}

func (a *annotator) Upload(ctx context.Context, req UploadRequest) (*job.Job, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile(a.fileField, filepath.Base(req.Filename))
	if err != nil {
		return nil, fmt.Errorf("creating form file: %w", err)
	}
	if _, err := io.Copy(part, req.File); err != nil {
		return nil, fmt.Errorf("copying file content: %w", err)
	}
	if err := writer.WriteField(annotationTypeField, req.AnnotationType); err != nil {
		return nil, fmt.Errorf("writing annotation type field: %w", err)
	}
	if err := writer.WriteField(directoryField, req.Directory); err != nil {
		return nil, fmt.Errorf("writing directory field: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("closing multipart writer: %w", err)
	}

	httpReq, err := a.newRequest(ctx, http.MethodPost, []string{"upload"}, nil, body)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", writer.FormDataContentType())

	var resp uploadResponse
	if err := a.doJSON(httpReq, "Failed to process file", &resp); err != nil {
		return nil, err
	}
	if resp.ProcessKey == "" || resp.Timestamp == "" {
		return nil, fmt.Errorf("upload response is missing process_key or timestamp: %w", ErrEmptyResponse)
	}

	annotationType := resp.AnnotationType
	if annotationType == "" {
		annotationType = req.AnnotationType
	}
	return &job.Job{
		ProcessKey:     resp.ProcessKey,
		Timestamp:      resp.Timestamp,
		PID:            resp.PID,
		AnnotationType: annotationType,
		Status:         job.StatusRunning,
	}, nil
}

func (a *annotator) ProcessStatus(ctx context.Context, processKey string) (job.Status, error) {
	return a.status(ctx, "process_status", processKey)
}

func (a *annotator) TimestampStatus(ctx context.Context, timestamp string) (job.Status, error) {
	return a.status(ctx, "status", timestamp)
}

func (a *annotator) status(ctx context.Context, endpoint, id string) (job.Status, error) {
	httpReq, err := a.newRequest(ctx, http.MethodGet, []string{endpoint, id}, nil, nil)
	if err != nil {
		return "", err
	}
	var resp statusResponse
	if err := a.doJSON(httpReq, "Failed to check status", &resp); err != nil {
		return "", err
	}
	return job.ParseStatus(resp.Status), nil
}

func (a *annotator) Results(ctx context.Context, timestamp, annotationType string) (*results.ResultSet, error) {
	httpReq, err := a.newRequest(ctx, http.MethodGet, []string{"get_results", timestamp}, typeQuery(annotationType), nil)
	if err != nil {
		return nil, err
	}
	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to call annotation server: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if !isSuccess(resp.StatusCode) {
		return nil, serverError(resp.StatusCode, bodyBytes, "Failed to fetch results")
	}
	return results.Decode(bodyBytes)
}

func (a *annotator) Download(ctx context.Context, timestamp, annotationType string, w io.Writer) (int64, error) {
	httpReq, err := a.newRequest(ctx, http.MethodGet, []string{"download_results", timestamp}, typeQuery(annotationType), nil)
	if err != nil {
		return 0, err
	}
	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return 0, fmt.Errorf("failed to call annotation server: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if !isSuccess(resp.StatusCode) {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return 0, serverError(resp.StatusCode, bodyBytes, "Download failed")
	}

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, fmt.Errorf("failed to read download body: %w", err)
	}
	return n, nil
}

func (a *annotator) Cancel(ctx context.Context, processKey string) error {
	httpReq, err := a.newRequest(ctx, http.MethodPost, []string{"cancel_process", processKey}, nil, nil)
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to call annotation server: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	if !isSuccess(resp.StatusCode) {
		return serverError(resp.StatusCode, bodyBytes, "Failed to cancel process")
	}
	return nil
}

func (a *annotator) newRequest(ctx context.Context, method string, segments []string, query url.Values, body io.Reader) (*http.Request, error) {
	escaped := make([]string, len(segments))
	for i, s := range segments {
		escaped[i] = url.PathEscape(s)
	}
	u := a.baseURL.JoinPath(escaped...)
	if query != nil {
		u.RawQuery = query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	requestid.Set(req)
	return req, nil
}

// doJSON runs req and decodes a 2xx JSON body into out.
func (a *annotator) doJSON(req *http.Request, fallback string, out any) error {
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call annotation server: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	if !isSuccess(resp.StatusCode) {
		return serverError(resp.StatusCode, bodyBytes, fallback)
	}
	if len(bytes.TrimSpace(bodyBytes)) == 0 {
		return ErrEmptyResponse
	}
	if err := json.Unmarshal(bodyBytes, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func serverError(statusCode int, body []byte, fallback string) *ErrServer {
	var e errorResponse
	_ = json.Unmarshal(body, &e)
	return NewErrServer(statusCode, e.Error, fallback)
}

func typeQuery(annotationType string) url.Values {
	return url.Values{"type": []string{annotationType}}
}

func isSuccess(code int) bool {
	return code >= 200 && code < 300
}
