package notify

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/simplesurance/depmerger/internal/dmerr"
	"github.com/simplesurance/depmerger/internal/logfields"
)

const DefaultHTTPClientTimeout = time.Minute

// Runner executes a http request.
type Runner struct {
	*Config
	client *http.Client
	logger *zap.Logger
}

// NewRunner returns a new Runner struct.
// The HTTPClient of the runner uses a timeout of DefaultHttpClientTimeout.
func NewRunner(cfg *Config) *Runner {
	return &Runner{
		Config: cfg,
		client: &http.Client{
			Timeout: DefaultHTTPClientTimeout,
		},
		logger: zap.L().Named(loggerName),
	}
}

// Run sends the http request.
// It returns an ErrorHTTPRequest if the server responds with a non-2xx
// status code. Network errors and 5xx responses are wrapped in a
// dmerr.RetryableError.
func (h *Runner) Run(ctx context.Context) error {
	logger := h.logger.With(h.LogFields()...)

	var body io.Reader
	if h.Data != "" {
		body = bytes.NewBufferString(h.Data)
	}

	req, err := http.NewRequestWithContext(ctx, h.Method, h.URL, body)
	if err != nil {
		return err
	}

	if h.User != "" || h.Password != "" {
		req.SetBasicAuth(h.User, h.Password)
	}

	for k, v := range h.Headers {
		req.Header.Add(k, v)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return dmerr.NewRetryableAnytimeError(err)
	}

	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		logger.Warn(
			"reading http response body failed",
			logfields.Event("http_request_reading_response_body_failed"),
			zap.Int("http_response_code", resp.StatusCode),
		)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err := &ErrorHTTPRequest{
			Body:   respBody,
			Status: resp.StatusCode,
		}

		if resp.StatusCode >= 500 {
			return dmerr.NewRetryableAnytimeError(err)
		}

		return err
	}

	logger.Debug(
		fmt.Sprintf("http response: %s", string(respBody)),
		logfields.Event("http_request_sent"),
	)

	return nil
}

// LogFields returns fields that should be used when logging messages related
// to the request.
func (h *Runner) LogFields() []zap.Field {
	return []zap.Field{
		zap.String("notification", "httprequest"),
		zap.String("http_url", h.URL),
		zap.String("http_method", h.Method),
	}
}
