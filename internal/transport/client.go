package transport

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/DanielPopoola/openapi-testflow/internal/config"
	"github.com/DanielPopoola/openapi-testflow/internal/domain"
)

type scenarioKey struct{}

// WithScenario tags ctx with the scenario name used for transaction recording.
func WithScenario(ctx context.Context, scenario string) context.Context {
	return context.WithValue(ctx, scenarioKey{}, scenario)
}

func scenarioFrom(ctx context.Context) string {
	s, _ := ctx.Value(scenarioKey{}).(string)
	return s
}

// Client sends RequestSpecs over HTTP. Any received response, whatever its
// status, is a result; only exchanges that produce no response are errors.
type Client struct {
	httpClient *http.Client
	recorder   *Recorder
	logger     *slog.Logger
}

type Option func(*Client)

// WithRecorder appends every exchange to a transaction CSV.
func WithRecorder(r *Recorder) Option {
	return func(c *Client) {
		c.recorder = r
	}
}

// WithHTTPClient replaces the underlying client. Certificate settings of the
// configuration are not applied to it.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// NewClient builds a client from cfg. Unreadable certificate material is an
// error.
func NewClient(cfg config.TransportConfig, logger *slog.Logger, opts ...Option) (*Client, error) {
	hc := &http.Client{Timeout: cfg.Timeout}

	if cfg.MutualTLS() || cfg.CAFile != "" {
		tlsConfig, err := loadTLSConfig(cfg)
		if err != nil {
			return nil, domain.NewTransportError("LOAD", "client certificate", err)
		}
		hc.Transport = &http.Transport{
			Proxy:           http.ProxyFromEnvironment,
			TLSClientConfig: tlsConfig,
		}
	}

	c := &Client{httpClient: hc, logger: logger}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func loadTLSConfig(cfg config.TransportConfig) (*tls.Config, error) {
	tlsConfig := &tls.Config{MinVersion: tls.VersionTLS12}

	if cfg.MutualTLS() {
		cert, err := tls.LoadX509KeyPair(cfg.ClientCertFile, cfg.ClientKeyFile)
		if err != nil {
			return nil, fmt.Errorf("load client certificate: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}

	if cfg.CAFile != "" {
		caPEM, err := os.ReadFile(cfg.CAFile)
		if err != nil {
			return nil, fmt.Errorf("read CA file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caPEM) {
			return nil, fmt.Errorf("no certificates found in %s", cfg.CAFile)
		}
		tlsConfig.RootCAs = pool
	}

	return tlsConfig, nil
}

// Send performs the request described by spec. Params become the query
// string and Data the JSON body.
func (c *Client) Send(ctx context.Context, spec domain.RequestSpec) (domain.ResponseSpec, error) {
	target, err := withQuery(spec.URL, spec.Params)
	if err != nil {
		return domain.ResponseSpec{}, &domain.FlowError{Code: domain.ErrCodeUsage, Message: "invalid request url", Err: err}
	}

	var bodyReader io.Reader
	if hasBody(spec) {
		jsonData, err := json.Marshal(spec.Data)
		if err != nil {
			return domain.ResponseSpec{}, fmt.Errorf("error marshalling json: %w", err)
		}
		bodyReader = bytes.NewReader(jsonData)
	}

	httpReq, err := http.NewRequestWithContext(ctx, spec.Method, target, bodyReader)
	if err != nil {
		return domain.ResponseSpec{}, fmt.Errorf("error creating request: %w", err)
	}
	if bodyReader != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	for k, v := range spec.Headers {
		httpReq.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return domain.ResponseSpec{}, domain.NewTransportError(spec.Method, target, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.ResponseSpec{}, domain.NewTransportError(spec.Method, target, err)
	}

	result := domain.ResponseSpec{
		Status:  resp.StatusCode,
		Headers: flattenHeaders(resp.Header),
		Data:    decodeData(raw),
		Raw:     raw,
	}

	c.logger.Debug("open api exchange",
		"method", spec.Method,
		"url", target,
		"status", result.Status,
		"duration", time.Since(start),
	)

	if c.recorder != nil {
		c.recorder.Record(scenarioFrom(ctx), spec, result)
	}
	return result, nil
}

func hasBody(spec domain.RequestSpec) bool {
	switch spec.Method {
	case http.MethodGet, http.MethodHead:
		return len(spec.Data) > 0
	}
	return spec.Data != nil
}

func withQuery(raw string, params map[string]any) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if len(params) == 0 {
		return u.String(), nil
	}
	q := u.Query()
	for k, v := range params {
		switch t := v.(type) {
		case []any:
			for _, item := range t {
				q.Add(k, queryValue(item))
			}
		default:
			q.Set(k, queryValue(t))
		}
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func queryValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return ""
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	}
}

// decodeData returns the body as a JSON object, or nil when it is not one.
func decodeData(raw []byte) map[string]any {
	if len(bytes.TrimSpace(raw)) == 0 {
		return map[string]any{}
	}
	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil
	}
	return data
}

func flattenHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k := range h {
		out[k] = h.Get(k)
	}
	return out
}
