package services

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/DanielPopoola/openapi-testflow/internal/application"
	"github.com/DanielPopoola/openapi-testflow/internal/domain"
)

// RunOptions selects the flow to run and what to do with its outcome.
type RunOptions struct {
	FlowType    string
	Application string
	SideEffect  string
	Feature     string
	Scenario    string
	Strict      bool
	Cache       bool
	StoreAs     string
}

// FlowResult holds the request sent and both sides of every comparison.
type FlowResult struct {
	Request            domain.RequestSpec
	Expected           domain.ResponseSpec
	Actual             domain.ResponseSpec
	CorrelationID      string
	ExpectedDownstream *domain.ResponseSpec
	ActualDownstream   *domain.ResponseSpec
}

type FlowService struct {
	builder     application.FlowBuilder
	sender      application.Sender
	correlator  application.Correlator
	validator   application.ResponseValidator
	contract    application.ContractChecker
	cache       application.FlowCache
	store       application.FlowStore
	reporter    application.Reporter
	idField     string
	environment string
	market      string
	logger      *slog.Logger
}

// FlowServiceDeps are the collaborators of a FlowService. Contract, Cache,
// Store and Reporter are optional.
type FlowServiceDeps struct {
	Builder     application.FlowBuilder
	Sender      application.Sender
	Correlator  application.Correlator
	Validator   application.ResponseValidator
	Contract    application.ContractChecker
	Cache       application.FlowCache
	Store       application.FlowStore
	Reporter    application.Reporter
	IDField     string
	Environment string
	Market      string
}

func NewFlowService(deps FlowServiceDeps, logger *slog.Logger) *FlowService {
	return &FlowService{
		builder:     deps.Builder,
		sender:      deps.Sender,
		correlator:  deps.Correlator,
		validator:   deps.Validator,
		contract:    deps.Contract,
		cache:       deps.Cache,
		store:       deps.Store,
		reporter:    deps.Reporter,
		idField:     deps.IDField,
		environment: deps.Environment,
		market:      deps.Market,
		logger:      logger,
	}
}

// RunSync builds, sends and validates a synchronous flow.
func (s *FlowService) RunSync(ctx context.Context, opts RunOptions) (*FlowResult, error) {
	req, expected, err := s.builder.BuildSync(ctx, opts.FlowType, opts.Application, opts.SideEffect)
	if err != nil {
		return nil, err
	}

	result, err := s.exchange(ctx, opts, req, expected)
	if err != nil {
		return result, err
	}

	if err := s.persist(ctx, opts, result); err != nil {
		return result, err
	}
	return result, nil
}

// RunAsync additionally waits for the downstream request carrying the
// acknowledgement's correlation id and validates it. Nothing is correlated
// when the expected acknowledgement is a 4xx.
func (s *FlowService) RunAsync(ctx context.Context, opts RunOptions) (*FlowResult, error) {
	req, expected, expectedDownstream, err := s.builder.BuildAsync(ctx, opts.FlowType, opts.Application, opts.SideEffect)
	if err != nil {
		return nil, err
	}

	result, err := s.exchange(ctx, opts, req, expected)
	if err != nil {
		return result, err
	}

	if expectedDownstream != nil {
		if err := s.correlate(ctx, result, *expectedDownstream); err != nil {
			return result, err
		}
	}

	if err := s.persist(ctx, opts, result); err != nil {
		return result, err
	}
	return result, nil
}

func (s *FlowService) exchange(ctx context.Context, opts RunOptions, req domain.RequestSpec, expected domain.ResponseSpec) (*FlowResult, error) {
	s.logger.Info("running flow",
		"flow_type", opts.FlowType,
		"application", opts.Application,
		"side_effect", opts.SideEffect,
		"method", req.Method,
		"url", req.URL,
	)

	actual, err := s.sender.Send(ctx, req)
	if err != nil {
		s.report("request %s %s failed: %v", req.Method, req.URL, err)
		return nil, err
	}

	result := &FlowResult{Request: req, Expected: expected, Actual: actual}

	if s.contract != nil {
		if err := s.contract.Check(ctx, req, actual); err != nil {
			s.report("contract check failed: %v", err)
			return result, err
		}
	}

	if err := s.validator.Validate(actual, expected, opts.Strict); err != nil {
		s.report("%v", err)
		return result, err
	}
	return result, nil
}

func (s *FlowService) correlate(ctx context.Context, result *FlowResult, expected domain.ResponseSpec) error {
	id := result.Actual.Field(s.idField)
	if id == "" {
		err := &domain.FlowError{
			Code:    domain.ErrCodeValidationFailed,
			Message: fmt.Sprintf("acknowledgement has no %s: %s", s.idField, result.Actual.DataJSON()),
		}
		s.report("%v", err)
		return err
	}
	result.CorrelationID = id

	listenerReq, err := s.builder.ListenerRequest(id)
	if err != nil {
		return err
	}

	downstream, err := s.correlator.Poll(ctx, listenerReq, id)
	if err != nil {
		s.report("%v", err)
		return err
	}
	result.ActualDownstream = &downstream

	if expected.Status == 0 {
		expected.Status = http.StatusOK
	}
	result.ExpectedDownstream = &expected

	if err := s.validator.Validate(downstream, expected, false); err != nil {
		s.report("downstream request: %v", err)
		return err
	}
	return nil
}

func (s *FlowService) persist(ctx context.Context, opts RunOptions, result *FlowResult) error {
	snap := domain.Snapshot{
		Request:           result.Request,
		Response:          result.Actual,
		DownstreamRequest: result.ActualDownstream,
		Feature:           opts.Feature,
		Scenario:          opts.Scenario,
		TestEnvironment:   s.environment,
		TestMarket:        s.market,
	}

	if opts.Cache && s.cache != nil {
		if err := s.cache.Save(ctx, snap); err != nil {
			return fmt.Errorf("cache flow: %w", err)
		}
	}
	if opts.StoreAs != "" {
		if s.store == nil {
			return &domain.FlowError{Code: domain.ErrCodeUsage, Message: "no flow store configured"}
		}
		if err := s.store.Save(ctx, opts.StoreAs, snap); err != nil {
			return fmt.Errorf("store flow %s: %w", opts.StoreAs, err)
		}
	}
	return nil
}

func (s *FlowService) report(format string, args ...any) {
	if s.reporter == nil {
		return
	}
	s.reporter.Report(fmt.Sprintf(format, args...))
}
