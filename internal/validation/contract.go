package validation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/DanielPopoola/openapi-testflow/internal/domain"
	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/legacy"
)

// ContractValidator checks exchanges against an OpenAPI 3 document.
type ContractValidator struct {
	router routers.Router
}

// NewContractValidator loads and validates the document at path.
func NewContractValidator(ctx context.Context, path string) (*ContractValidator, error) {
	loader := openapi3.NewLoader()
	loader.Context = ctx

	doc, err := loader.LoadFromFile(path)
	if err != nil {
		return nil, fmt.Errorf("load openapi document %s: %w", path, err)
	}
	return newContractValidator(ctx, doc)
}

// NewContractValidatorFromData builds a validator from an in-memory document.
func NewContractValidatorFromData(ctx context.Context, data []byte) (*ContractValidator, error) {
	loader := openapi3.NewLoader()
	loader.Context = ctx

	doc, err := loader.LoadFromData(data)
	if err != nil {
		return nil, fmt.Errorf("load openapi document: %w", err)
	}
	return newContractValidator(ctx, doc)
}

func newContractValidator(ctx context.Context, doc *openapi3.T) (*ContractValidator, error) {
	if err := doc.Validate(ctx); err != nil {
		return nil, fmt.Errorf("invalid openapi document: %w", err)
	}
	router, err := legacy.NewRouter(doc)
	if err != nil {
		return nil, fmt.Errorf("build openapi router: %w", err)
	}
	return &ContractValidator{router: router}, nil
}

// Check validates req and, when the route documents it, resp. Security
// requirements are not enforced.
func (c *ContractValidator) Check(ctx context.Context, req domain.RequestSpec, resp domain.ResponseSpec) error {
	httpReq, err := toHTTPRequest(ctx, req)
	if err != nil {
		return err
	}

	route, pathParams, err := c.router.FindRoute(httpReq)
	if err != nil {
		return contractError(req, "route", err)
	}

	reqInput := &openapi3filter.RequestValidationInput{
		Request:    httpReq,
		PathParams: pathParams,
		Route:      route,
		Options: &openapi3filter.Options{
			AuthenticationFunc: openapi3filter.NoopAuthenticationFunc,
			MultiError:         true,
		},
	}
	if err := openapi3filter.ValidateRequest(ctx, reqInput); err != nil {
		return contractError(req, "request", err)
	}

	header := http.Header{}
	for k, v := range resp.Headers {
		header.Set(k, v)
	}
	if header.Get("Content-Type") == "" {
		header.Set("Content-Type", "application/json")
	}
	body := resp.Raw
	if len(body) == 0 && resp.Data != nil {
		if body, err = json.Marshal(resp.Data); err != nil {
			return fmt.Errorf("encode response body: %w", err)
		}
	}

	respInput := &openapi3filter.ResponseValidationInput{
		RequestValidationInput: reqInput,
		Status:                 resp.Status,
		Header:                 header,
		Body:                   io.NopCloser(bytes.NewReader(body)),
		Options:                reqInput.Options,
	}
	if err := openapi3filter.ValidateResponse(ctx, respInput); err != nil {
		return contractError(req, "response", err)
	}
	return nil
}

func toHTTPRequest(ctx context.Context, req domain.RequestSpec) (*http.Request, error) {
	u, err := url.Parse(req.URL)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}
	if len(req.Params) > 0 {
		q := u.Query()
		for k, v := range req.Params {
			q.Set(k, fmt.Sprint(v))
		}
		u.RawQuery = q.Encode()
	}

	var body io.Reader
	if len(req.Data) > 0 {
		raw, err := json.Marshal(req.Data)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	return httpReq, nil
}

func contractError(req domain.RequestSpec, part string, err error) error {
	return &domain.FlowError{
		Code:    domain.ErrCodeContractViolation,
		Message: fmt.Sprintf("%s %s violates the OpenAPI contract (%s)", req.Method, req.URL, part),
		Err:     err,
	}
}
