package flow

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/DanielPopoola/openapi-testflow/internal/domain"
	"github.com/DanielPopoola/openapi-testflow/internal/testdata"
	"github.com/go-playground/validator"
)

// BearerTokenPlaceholder is substituted with the application's session token.
const BearerTokenPlaceholder = "bearerToken"

// TokenSource supplies bearer tokens for an application.
type TokenSource interface {
	BearerToken(ctx context.Context, application string) (string, error)
}

// Builder produces concrete request specs and expected responses for named
// flows from the layered fixtures of a Context.
type Builder struct {
	fc       *Context
	tokens   TokenSource
	validate *validator.Validate
	logger   *slog.Logger
}

func NewBuilder(fc *Context, tokens TokenSource, logger *slog.Logger) *Builder {
	return &Builder{
		fc:       fc,
		tokens:   tokens,
		validate: validator.New(),
		logger:   logger,
	}
}

// BuildSync returns the request and the expected synchronous response of a
// flow, optionally deviated by a side effect.
func (b *Builder) BuildSync(ctx context.Context, flowType, application, sideEffect string) (domain.RequestSpec, domain.ResponseSpec, error) {
	req, resp, _, err := b.build(ctx, flowType, application, sideEffect, domain.SectionSyncResponse, false)
	return req, resp, err
}

// BuildAsync returns the request, the expected acknowledgement and the
// expected downstream request. The downstream expectation is nil when the
// acknowledgement is a 4xx, since the downstream system is never invoked.
func (b *Builder) BuildAsync(ctx context.Context, flowType, application, sideEffect string) (domain.RequestSpec, domain.ResponseSpec, *domain.ResponseSpec, error) {
	return b.build(ctx, flowType, application, sideEffect, domain.SectionAsyncResponse, true)
}

func (b *Builder) build(
	ctx context.Context,
	flowType, application, sideEffect, responseSection string,
	async bool,
) (domain.RequestSpec, domain.ResponseSpec, *domain.ResponseSpec, error) {
	if !b.fc.CommonFixture.HasFlow(flowType) {
		return domain.RequestSpec{}, domain.ResponseSpec{}, nil, domain.NewFlowTypeNotFoundError(flowType)
	}

	resolver := NewLayerResolver(b.fc.CommonFixture, b.fc.scenarioFixture())
	withSideEffect := sideEffect != ""

	req, reqFound, err := MergeRequest(resolver.Layers(flowType, domain.SectionRequest, sideEffect), withSideEffect)
	if err != nil {
		return domain.RequestSpec{}, domain.ResponseSpec{}, nil, domain.NewInvalidFixtureError(flowType+" request", err)
	}
	resp, respFound, err := MergeResponse(resolver.Layers(flowType, responseSection, sideEffect), withSideEffect)
	if err != nil {
		return domain.RequestSpec{}, domain.ResponseSpec{}, nil, domain.NewInvalidFixtureError(flowType+" "+responseSection, err)
	}

	if withSideEffect && !reqFound && !respFound {
		return domain.RequestSpec{}, domain.ResponseSpec{}, nil, domain.NewSideEffectNotFoundError(flowType, sideEffect, "request or "+responseSection)
	}

	b.logger.Debug("merged flow layers",
		"flow_type", flowType,
		"side_effect", sideEffect,
		"request_side_effect_found", reqFound,
		"response_side_effect_found", respFound,
	)

	ph, err := b.placeholders(ctx, application, req)
	if err != nil {
		return domain.RequestSpec{}, domain.ResponseSpec{}, nil, err
	}

	if req, err = b.resolveRequest(req, ph); err != nil {
		return domain.RequestSpec{}, domain.ResponseSpec{}, nil, err
	}
	if resp, err = resolveResponse(resp, ph); err != nil {
		return domain.RequestSpec{}, domain.ResponseSpec{}, nil, err
	}

	if !async || resp.IsClientError() {
		return req, resp, nil, nil
	}

	downstream, _, err := MergeResponse(resolver.Layers(flowType, domain.SectionAsyncOpenAPIRequest, sideEffect), withSideEffect)
	if err != nil {
		return domain.RequestSpec{}, domain.ResponseSpec{}, nil, domain.NewInvalidFixtureError(flowType+" "+domain.SectionAsyncOpenAPIRequest, err)
	}
	if downstream, err = resolveResponse(downstream, ph); err != nil {
		return domain.RequestSpec{}, domain.ResponseSpec{}, nil, err
	}
	return req, resp, &downstream, nil
}

func (b *Builder) placeholders(ctx context.Context, application string, req domain.RequestSpec) (*Placeholders, error) {
	builtins := map[string]any{
		UUIDToken:     b.fc.nextUUID(),
		"environment": b.fc.Environment,
		"market":      b.fc.Market,
		"site":        b.siteFor(req),
		"application": application,
	}

	if needsBearerToken(req.Headers) {
		if b.tokens == nil {
			return nil, &domain.FlowError{Code: domain.ErrCodeUsage, Message: "request needs a bearer token but no session store is configured"}
		}
		token, err := b.tokens.BearerToken(ctx, application)
		if err != nil {
			return nil, err
		}
		builtins[BearerTokenPlaceholder] = token
	}

	return NewPlaceholders(b.fc.TestData.Presets(), builtins), nil
}

func (b *Builder) resolveRequest(req domain.RequestSpec, ph *Placeholders) (domain.RequestSpec, error) {
	var err error
	if req.Headers, err = ph.ResolveStrings(req.Headers); err != nil {
		return req, fmt.Errorf("resolve headers: %w", err)
	}
	if req.Params, err = ph.ResolveMap(req.Params); err != nil {
		return req, fmt.Errorf("resolve params: %w", err)
	}
	if req.Data, err = ph.ResolveMap(req.Data); err != nil {
		return req, fmt.Errorf("resolve data: %w", err)
	}
	if req.Data == nil {
		req.Data = map[string]any{}
	}
	req.Method = strings.ToUpper(req.Method)

	if req.URL, err = b.resolveURL(req, ph); err != nil {
		return req, err
	}

	if err := b.validate.Struct(req); err != nil {
		return req, &domain.FlowError{Code: domain.ErrCodeInvalidFixture, Message: "merged request is incomplete", Err: err}
	}
	return req, nil
}

func resolveResponse(resp domain.ResponseSpec, ph *Placeholders) (domain.ResponseSpec, error) {
	data, err := ph.ResolveMap(resp.Data)
	if err != nil {
		return resp, fmt.Errorf("resolve expected data: %w", err)
	}
	if data == nil {
		data = map[string]any{}
	}
	resp.Data = data
	return resp, nil
}

// resolveURL keeps absolute URLs and composes relative ones with the
// environment base URL template.
func (b *Builder) resolveURL(req domain.RequestSpec, ph *Placeholders) (string, error) {
	raw, err := ph.ResolveString(req.URL)
	if err != nil {
		return "", fmt.Errorf("resolve url: %w", err)
	}
	if isAbsoluteURL(raw) {
		return raw, nil
	}

	base, err := b.fc.TestData.String(testdata.KeyBaseURL)
	if err != nil {
		return "", err
	}
	base, err = ph.ResolveString(base)
	if err != nil {
		return "", fmt.Errorf("resolve base url: %w", err)
	}
	if raw == "" {
		return base, nil
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(raw, "/"), nil
}

// ListenerRequest builds the request polling the listener for the downstream
// request that carries correlationID.
func (b *Builder) ListenerRequest(correlationID string) (domain.RequestSpec, error) {
	base, err := b.fc.TestData.String(testdata.KeyListenerURL)
	if err != nil {
		return domain.RequestSpec{}, err
	}
	return domain.RequestSpec{
		Method:  "GET",
		URL:     strings.TrimRight(base, "/") + "/" + url.PathEscape(correlationID),
		Headers: map[string]string{"Accept": "application/json"},
		Data:    map[string]any{},
	}, nil
}

func (b *Builder) siteFor(req domain.RequestSpec) string {
	if req.Site != "" {
		return req.Site
	}
	return b.fc.Site
}

func needsBearerToken(headers map[string]string) bool {
	for _, v := range headers {
		for _, m := range placeholderPattern.FindAllStringSubmatch(v, -1) {
			if m[1] == BearerTokenPlaceholder {
				return true
			}
		}
	}
	return false
}

func isAbsoluteURL(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && u.IsAbs() && u.Host != ""
}
