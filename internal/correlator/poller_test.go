package correlator

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/DanielPopoola/openapi-testflow/internal/config"
	"github.com/DanielPopoola/openapi-testflow/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockSender struct {
	mock.Mock
}

func (m *mockSender) Send(ctx context.Context, spec domain.RequestSpec) (domain.ResponseSpec, error) {
	args := m.Called(ctx, spec)
	return args.Get(0).(domain.ResponseSpec), args.Error(1)
}

var testConfig = config.CorrelatorConfig{
	Attempts:   15,
	Interval:   5 * time.Second,
	MatchField: "input_OriginalConversationID",
	IDField:    "output_ConversationID",
}

var listenerSpec = domain.RequestSpec{Method: "GET", URL: "http://listener/callbacks/conv-1"}

func newTestPoller(sender Sender, waits *[]time.Duration) *Poller {
	return NewPoller(sender, testConfig, slog.New(slog.NewTextHandler(io.Discard, nil)),
		WithWait(func(ctx context.Context, d time.Duration) error {
			*waits = append(*waits, d)
			return ctx.Err()
		}),
	)
}

func pending() domain.ResponseSpec {
	return domain.ResponseSpec{Status: 404, Data: map[string]any{"error": "not found"}}
}

func matched(id string) domain.ResponseSpec {
	return domain.ResponseSpec{Status: 200, Data: map[string]any{"input_OriginalConversationID": id, "input_ResultCode": "0"}}
}

func TestPoller_NeverMatches(t *testing.T) {
	sender := &mockSender{}
	sender.On("Send", mock.Anything, listenerSpec).Return(pending(), nil).Times(15)

	var waits []time.Duration
	_, err := newTestPoller(sender, &waits).Poll(context.Background(), listenerSpec, "conv-1")

	require.Error(t, err)
	var timeoutErr *domain.CorrelationTimeoutError
	require.True(t, errors.As(err, &timeoutErr))
	assert.Equal(t, 15, timeoutErr.Attempts)
	require.NotNil(t, timeoutErr.LastObserved)
	assert.Equal(t, 404, timeoutErr.LastObserved.Status)
	assert.True(t, domain.IsErrorCode(err, domain.ErrCodeCorrelationTimeout))

	sender.AssertNumberOfCalls(t, "Send", 15)
	require.Len(t, waits, 14)
	for _, w := range waits {
		assert.GreaterOrEqual(t, w, 5*time.Second)
	}
}

func TestPoller_MatchesOnAttemptK(t *testing.T) {
	for _, k := range []int{1, 4, 15} {
		sender := &mockSender{}
		if k > 1 {
			sender.On("Send", mock.Anything, listenerSpec).Return(pending(), nil).Times(k - 1)
		}
		sender.On("Send", mock.Anything, listenerSpec).Return(matched("conv-1"), nil).Once()

		var waits []time.Duration
		resp, err := newTestPoller(sender, &waits).Poll(context.Background(), listenerSpec, "conv-1")

		require.NoError(t, err)
		assert.Equal(t, "0", resp.Data["input_ResultCode"])
		sender.AssertNumberOfCalls(t, "Send", k)
		assert.Len(t, waits, k-1)
	}
}

func TestPoller_AttemptErrorsDoNotAbort(t *testing.T) {
	sender := &mockSender{}
	sender.On("Send", mock.Anything, listenerSpec).
		Return(domain.ResponseSpec{}, domain.NewTransportError("GET", listenerSpec.URL, errors.New("connection refused"))).Twice()
	sender.On("Send", mock.Anything, listenerSpec).Return(matched("conv-1"), nil).Once()

	var waits []time.Duration
	_, err := newTestPoller(sender, &waits).Poll(context.Background(), listenerSpec, "conv-1")

	require.NoError(t, err)
	sender.AssertNumberOfCalls(t, "Send", 3)
}

func TestPoller_OtherCorrelationIDIsNotAMatch(t *testing.T) {
	sender := &mockSender{}
	sender.On("Send", mock.Anything, listenerSpec).Return(matched("conv-2"), nil)

	var waits []time.Duration
	_, err := newTestPoller(sender, &waits).Poll(context.Background(), listenerSpec, "conv-1")

	require.Error(t, err)
	sender.AssertNumberOfCalls(t, "Send", 15)
}

func TestPoller_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	sender := &mockSender{}
	sender.On("Send", mock.Anything, listenerSpec).Return(pending(), nil)

	calls := 0
	p := NewPoller(sender, testConfig, slog.New(slog.NewTextHandler(io.Discard, nil)),
		WithWait(func(ctx context.Context, d time.Duration) error {
			calls++
			if calls == 3 {
				cancel()
			}
			return ctx.Err()
		}),
	)

	_, err := p.Poll(ctx, listenerSpec, "conv-1")

	require.ErrorIs(t, err, context.Canceled)
	sender.AssertNumberOfCalls(t, "Send", 3)
}

func TestSleep_HonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err := sleep(ctx, time.Minute)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
	assert.NoError(t, sleep(context.Background(), time.Millisecond))
}
