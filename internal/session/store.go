// Package session keeps per-application bearer credentials in a session-key
// file shared by every test process, regenerating them through the session
// endpoint when they are missing or close to expiry.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/DanielPopoola/openapi-testflow/internal/clock"
	"github.com/DanielPopoola/openapi-testflow/internal/config"
	"github.com/DanielPopoola/openapi-testflow/internal/domain"
	"github.com/DanielPopoola/openapi-testflow/internal/persistence"
	"github.com/DanielPopoola/openapi-testflow/internal/testdata"
)

// Sender performs the session exchange request.
type Sender interface {
	Send(ctx context.Context, spec domain.RequestSpec) (domain.ResponseSpec, error)
}

type Store struct {
	file   *persistence.JSONFile
	data   *testdata.Store
	sender Sender
	cfg    config.SessionConfig
	clock  clock.Clock
	logger *slog.Logger
}

type Option func(*Store)

func WithClock(c clock.Clock) Option {
	return func(s *Store) {
		s.clock = c
	}
}

func NewStore(path string, cfg config.SessionConfig, data *testdata.Store, sender Sender, logger *slog.Logger, opts ...Option) *Store {
	s := &Store{
		file:   persistence.NewJSONFile(path),
		data:   data,
		sender: sender,
		cfg:    cfg,
		clock:  clock.Real{},
		logger: logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Records returns every stored session record keyed by application.
func (s *Store) Records(ctx context.Context) (map[string]domain.SessionKeyRecord, error) {
	records := map[string]domain.SessionKeyRecord{}
	if _, err := s.file.Read(ctx, &records); err != nil {
		return nil, err
	}
	for app, rec := range records {
		rec.Application = app
		records[app] = rec
	}
	return records, nil
}

// Record returns the stored record of an application, or nil.
func (s *Store) Record(ctx context.Context, application string) (*domain.SessionKeyRecord, error) {
	records, err := s.Records(ctx)
	if err != nil {
		return nil, err
	}
	rec, ok := records[application]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

// IsValid reports whether the stored record matches the configured API key
// and does not expire within the allowance.
func (s *Store) IsValid(ctx context.Context, application string) (bool, error) {
	apiKey, err := s.data.APIKey(application)
	if err != nil {
		return false, err
	}
	rec, err := s.Record(ctx, application)
	if err != nil {
		return false, err
	}
	return rec.IsValid(apiKey, s.clock.Now(), s.cfg.Allowance), nil
}

// BearerToken returns a usable encrypted session key, regenerating and
// persisting a new one when the stored record is invalid.
func (s *Store) BearerToken(ctx context.Context, application string) (string, error) {
	apiKey, err := s.data.APIKey(application)
	if err != nil {
		return "", err
	}
	rec, err := s.Record(ctx, application)
	if err != nil {
		return "", err
	}
	if rec.IsValid(apiKey, s.clock.Now(), s.cfg.Allowance) {
		return rec.EncryptedSessionKey, nil
	}

	s.logger.Debug("session key invalid", "application", application, "has_record", rec != nil)
	rec, err = s.Regenerate(ctx, application, true)
	if err != nil {
		return "", err
	}
	return rec.EncryptedSessionKey, nil
}

// Regenerate exchanges the encrypted API key for a new session id. When
// persist is set, only this application's entry of the session file is
// replaced.
func (s *Store) Regenerate(ctx context.Context, application string, persist bool) (*domain.SessionKeyRecord, error) {
	apiKey, err := s.data.APIKey(application)
	if err != nil {
		return nil, err
	}
	sessionURL, err := s.data.String(testdata.KeySessionURL)
	if err != nil {
		return nil, err
	}
	rawKey, err := s.data.String(testdata.KeyPublicKey)
	if err != nil {
		return nil, err
	}
	pub, err := ParsePublicKey(rawKey)
	if err != nil {
		return nil, domain.NewSessionRegenerationError(application, err.Error())
	}

	encryptedAPIKey, err := Encrypt(pub, apiKey)
	if err != nil {
		return nil, domain.NewSessionRegenerationError(application, err.Error())
	}

	resp, err := s.sender.Send(ctx, domain.RequestSpec{
		Method: http.MethodGet,
		URL:    sessionURL,
		Headers: map[string]string{
			"Authorization": "Bearer " + encryptedAPIKey,
			"Origin":        "*",
		},
		Data: map[string]any{},
	})
	if err != nil {
		return nil, err
	}

	if resp.Status != s.cfg.ExpectedStatus {
		return nil, domain.NewSessionRegenerationError(application,
			fmt.Sprintf("expected status %d, got %d: %s", s.cfg.ExpectedStatus, resp.Status, resp.DataJSON()))
	}
	sessionID := resp.Field(s.cfg.SessionField)
	if sessionID == "" {
		return nil, domain.NewSessionRegenerationError(application,
			fmt.Sprintf("response has no %s: %s", s.cfg.SessionField, resp.DataJSON()))
	}

	encryptedSession, err := Encrypt(pub, sessionID)
	if err != nil {
		return nil, domain.NewSessionRegenerationError(application, err.Error())
	}

	rec := &domain.SessionKeyRecord{
		Application:         application,
		APIKey:              apiKey,
		EncryptedSessionKey: encryptedSession,
		ExpiresAt:           s.clock.Now().Add(s.cfg.Lifetime),
	}

	if persist {
		if err := s.save(ctx, rec); err != nil {
			return nil, err
		}
	}

	s.logger.Info("session key regenerated",
		"application", application,
		"expires_at", rec.ExpiresAt,
		"persisted", persist,
	)
	return rec, nil
}

func (s *Store) save(ctx context.Context, rec *domain.SessionKeyRecord) error {
	records := map[string]domain.SessionKeyRecord{}
	return s.file.Update(ctx, &records, func(bool) error {
		records[rec.Application] = *rec
		return nil
	})
}
