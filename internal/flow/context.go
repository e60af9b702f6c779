package flow

import (
	"github.com/DanielPopoola/openapi-testflow/internal/testdata"
	"github.com/google/uuid"
)

// Context is the per-run state a Builder works from. It is constructed once
// per test run and injected; nothing in this package caches test data.
type Context struct {
	Environment     string
	Market          string
	Site            string
	Feature         string
	Scenario        string
	CommonFixture   testdata.Fixture
	ScenarioFixture testdata.Fixture
	TestData        *testdata.Store

	// KeepPreviousUUID makes {{ uuid }} resolve to the value used by the
	// previous build instead of a fresh one.
	KeepPreviousUUID bool
	// PreviousUUID seeds the previous build's uuid when the context is fresh,
	// typically with the uuid a prior process used.
	PreviousUUID string

	lastUUID string
}

// nextUUID returns the uuid for the current build.
func (c *Context) nextUUID() string {
	if c.KeepPreviousUUID {
		if c.lastUUID == "" {
			c.lastUUID = c.PreviousUUID
		}
		if c.lastUUID != "" {
			return c.lastUUID
		}
	}
	c.lastUUID = uuid.NewString()
	return c.lastUUID
}

// LastUUID returns the uuid used by the most recent build.
func (c *Context) LastUUID() string {
	return c.lastUUID
}

func (c *Context) scenarioFixture() testdata.Fixture {
	if c.ScenarioFixture == nil {
		return testdata.Fixture{}
	}
	return c.ScenarioFixture
}
