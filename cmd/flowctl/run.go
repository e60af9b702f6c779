package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/DanielPopoola/openapi-testflow/internal/application"
	"github.com/DanielPopoola/openapi-testflow/internal/application/services"
	"github.com/DanielPopoola/openapi-testflow/internal/correlator"
	"github.com/DanielPopoola/openapi-testflow/internal/flow"
	"github.com/DanielPopoola/openapi-testflow/internal/persistence"
	"github.com/DanielPopoola/openapi-testflow/internal/testdata"
	"github.com/DanielPopoola/openapi-testflow/internal/transport"
	"github.com/DanielPopoola/openapi-testflow/internal/validation"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

type runOptions struct {
	services.RunOptions
	async           bool
	scenarioFixture string
	keepUUID        bool
	contract        string
	site            string
}

func newRunCmd(root *rootOptions) *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run FLOW_TYPE",
		Short: "Run one flow and validate its response",
		Example: `  flowctl run "create customer" --app wallet
  flowctl run "c2b payment" --app wallet --async --side-effect "insufficient balance" --store-as payment`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.FlowType = args[0]
			a, err := newApp(cmd.Context(), root, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			defer a.Close()
			return runFlow(cmd.Context(), a, opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.Application, "app", "", "application whose credentials sign the request")
	f.StringVar(&opts.SideEffect, "side-effect", "", "fixture layer applied on top of the common layer")
	f.BoolVar(&opts.async, "async", false, "correlate the downstream request through the listener")
	f.BoolVar(&opts.Strict, "strict", true, "fail on response keys the fixture does not expect (--strict=false tolerates them)")
	f.BoolVar(&opts.Cache, "cache", false, "cache the flow for the next step")
	f.StringVar(&opts.StoreAs, "store-as", "", "store the flow under this name")
	f.StringVar(&opts.Feature, "feature", "", "feature name recorded with the flow")
	f.StringVar(&opts.Scenario, "scenario", "", "scenario name recorded with the flow")
	f.StringVar(&opts.scenarioFixture, "scenario-fixture", "", "scenario fixture overriding the common fixture")
	f.BoolVar(&opts.keepUUID, "keep-uuid", false, "reuse the uuid of the previous run")
	f.StringVar(&opts.contract, "contract", "", "OpenAPI document to check the exchange against (defaults to paths.openapi_spec)")
	f.StringVar(&opts.site, "site", "", "override the configured site")
	_ = cmd.MarkFlagRequired("app")

	return cmd
}

func runFlow(ctx context.Context, a *app, opts *runOptions) error {
	common, err := testdata.LoadFixture(a.cfg.Paths.CommonFixtures)
	if err != nil {
		return err
	}
	var scenario testdata.Fixture
	if opts.scenarioFixture != "" {
		if scenario, err = testdata.LoadFixture(opts.scenarioFixture); err != nil {
			return err
		}
	}

	state, err := a.runState.Load(ctx)
	if err != nil {
		return err
	}

	site := a.cfg.Primary.Site
	if opts.site != "" {
		site = opts.site
	}
	fc := &flow.Context{
		Environment:      a.cfg.Primary.Env,
		Market:           a.cfg.Primary.Market,
		Site:             site,
		Feature:          opts.Feature,
		Scenario:         opts.Scenario,
		CommonFixture:    common,
		ScenarioFixture:  scenario,
		TestData:         a.data,
		KeepPreviousUUID: opts.keepUUID,
		PreviousUUID:     state.LastUUID,
	}

	rep := consoleReporter{out: a.out}
	deps := services.FlowServiceDeps{
		Builder:     flow.NewBuilder(fc, a.sessions, a.logger),
		Sender:      a.client,
		Correlator:  correlator.NewPoller(a.client, a.cfg.Correlator, a.logger),
		Validator:   validation.NewValidator(),
		Cache:       a.cache,
		Store:       a.store,
		Reporter:    rep,
		IDField:     a.cfg.Correlator.IDField,
		Environment: a.cfg.Primary.Env,
		Market:      a.cfg.Primary.Market,
	}

	contractPath := opts.contract
	if contractPath == "" {
		contractPath = a.cfg.Paths.OpenAPISpec
	}
	if contractPath != "" {
		cv, err := validation.NewContractValidator(ctx, contractPath)
		if err != nil {
			return err
		}
		deps.Contract = cv
	}

	svc := services.NewFlowService(deps, a.logger)
	ctx = transport.WithScenario(ctx, opts.Scenario)

	var result *services.FlowResult
	if opts.async {
		result, err = svc.RunAsync(ctx, opts.RunOptions)
	} else {
		result, err = svc.RunSync(ctx, opts.RunOptions)
	}
	if id := fc.LastUUID(); id != "" && id != state.LastUUID {
		if serr := a.runState.Save(ctx, persistence.RunState{LastUUID: id, UpdatedAt: time.Now().UTC()}); serr != nil {
			a.logger.Warn("could not save run state", "path", a.cfg.Paths.RunState, "error", serr)
		}
	}
	if result != nil {
		renderResult(a.out, result)
	}
	if err != nil {
		return errors.Join(rep.Fail(fmt.Sprintf("%s (%s)", opts.FlowType, application.ToErrorCode(err))), err)
	}

	rep.Pass(fmt.Sprintf("%s %s -> %d", result.Request.Method, result.Request.URL, result.Actual.Status))
	return nil
}

func renderResult(out io.Writer, result *services.FlowResult) {
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"", "Expected", "Actual"})
	t.AppendRow(table.Row{"Status", result.Expected.Status, result.Actual.Status})
	t.AppendRow(table.Row{"Data", result.Expected.DataJSON(), result.Actual.DataJSON()})
	if result.CorrelationID != "" {
		t.AppendSeparator()
		t.AppendRow(table.Row{"Correlation ID", result.CorrelationID, result.CorrelationID})
	}
	if result.ExpectedDownstream != nil && result.ActualDownstream != nil {
		t.AppendRow(table.Row{"Downstream status", strconv.Itoa(result.ExpectedDownstream.Status), strconv.Itoa(result.ActualDownstream.Status)})
		t.AppendRow(table.Row{"Downstream data", result.ExpectedDownstream.DataJSON(), result.ActualDownstream.DataJSON()})
	}
	t.SetTitle("%s %s", result.Request.Method, result.Request.URL)
	t.Render()
}
