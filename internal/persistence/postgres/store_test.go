package postgres

import (
	"context"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/DanielPopoola/openapi-testflow/internal/clock"
	"github.com/DanielPopoola/openapi-testflow/internal/config"
	"github.com/DanielPopoola/openapi-testflow/internal/domain"
	"github.com/DanielPopoola/openapi-testflow/internal/persistence"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

type BackendTestSuite struct {
	suite.Suite
	container testcontainers.Container
	db        *DB
	store     *persistence.Store
}

func TestBackendSuite(t *testing.T) {
	if os.Getenv("RUN_INTEGRATION_TESTS") != "true" {
		t.Skip("Skipping integration tests (set RUN_INTEGRATION_TESTS=true to run)")
	}

	suite.Run(t, new(BackendTestSuite))
}

func (s *BackendTestSuite) SetupSuite() {
	ctx := context.Background()
	t := s.T()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "testuser",
			"POSTGRES_PASSWORD": "testpass",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	s.container = container

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.db, err = Connect(ctx, &config.DatabaseConfig{
		Host:            host,
		Port:            port.Int(),
		User:            "testuser",
		Password:        "testpass",
		Name:            "testdb",
		SSLMode:         "disable",
		MaxOpenConns:    4,
		MaxIdleConns:    1,
		ConnMaxLifetime: time.Hour,
		ConnMaxIdleTime: 30 * time.Minute,
	}, logger)
	require.NoError(t, err)
	require.NoError(t, s.db.Migrate(ctx))

	s.store = persistence.NewStore(NewBackend(s.db), clock.NewMock(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)), logger)
}

func (s *BackendTestSuite) TearDownSuite() {
	if s.db != nil {
		s.db.Close()
	}
	if s.container != nil {
		s.Require().NoError(s.container.Terminate(context.Background()))
	}
}

func (s *BackendTestSuite) SetupTest() {
	_, err := s.db.Pool.Exec(context.Background(), "TRUNCATE TABLE flow_records, callbacks")
	s.Require().NoError(err)
}

func (s *BackendTestSuite) TestRoundTrip() {
	ctx := context.Background()
	snap := domain.Snapshot{
		Request:  domain.RequestSpec{Method: "POST", URL: "https://openapi/customers", Data: map[string]any{"input_Amount": "10"}},
		Response: domain.ResponseSpec{Status: 201, Data: map[string]any{"output_TransactionID": "tx-1"}},
		Scenario: "create customer",
	}

	s.Require().NoError(s.store.Save(ctx, "customer", snap))

	got, err := s.store.ReadField(ctx, domain.SectionSyncResponse, map[string]string{"tx": "output_TransactionID"}, "customer")
	s.Require().NoError(err)
	s.Equal(map[string]any{"tx": "tx-1"}, got)

	names, _, err := s.store.Entries(ctx)
	s.Require().NoError(err)
	s.Equal([]string{"customer sync"}, names)
}

func (s *BackendTestSuite) TestOverwriteAndMiss() {
	ctx := context.Background()
	first := domain.Snapshot{Response: domain.ResponseSpec{Status: 201, Data: map[string]any{"v": "1"}}}
	second := domain.Snapshot{Response: domain.ResponseSpec{Status: 201, Data: map[string]any{"v": "2"}}}

	s.Require().NoError(s.store.Save(ctx, "entry", first))
	s.Require().NoError(s.store.Save(ctx, "entry", second))

	got, err := s.store.ReadField(ctx, domain.SectionSyncResponse, map[string]string{"v": "v"}, "entry")
	s.Require().NoError(err)
	s.Equal("2", got["v"])

	_, err = s.store.ReadField(ctx, domain.SectionSyncResponse, map[string]string{"v": "v"}, "missing")
	s.True(domain.IsErrorCode(err, domain.ErrCodePersistenceReadMiss))
}

func (s *BackendTestSuite) TestCallbacks() {
	ctx := context.Background()
	repo := NewCallbackRepository(s.db)
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	cb := &domain.Callback{
		ID:             uuid.NewString(),
		ConversationID: "conv-1",
		Payload:        map[string]any{"input_OriginalConversationID": "conv-1", "input_ResultCode": "INS-0"},
		ReceivedAt:     base,
	}
	s.Require().NoError(repo.Save(ctx, cb))

	got, err := repo.FindByConversationID(ctx, "conv-1")
	s.Require().NoError(err)
	s.Equal(cb.ID, got.ID)
	s.Equal("INS-0", got.Payload["input_ResultCode"])

	_, err = repo.FindByConversationID(ctx, "conv-2")
	s.ErrorIs(err, domain.ErrCallbackNotFound)

	n, err := repo.DeleteReceivedBefore(ctx, base.Add(time.Minute))
	s.Require().NoError(err)
	s.Equal(1, n)
}
