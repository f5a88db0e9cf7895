package service

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/openclaw/tg-relay-go/internal/model"
	"github.com/openclaw/tg-relay-go/internal/tgclient"
)

type mockSessionRepo struct {
	mock.Mock
}

func (m *mockSessionRepo) FindByUserID(ctx context.Context, userID string) (*model.TelegramSession, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.TelegramSession), args.Error(1)
}

func (m *mockSessionRepo) Save(ctx context.Context, userID, sessionString string) error {
	args := m.Called(ctx, userID, sessionString)
	return args.Error(0)
}

// memorySessionRepo is a map-backed SessionRepository for flows that read
// back what they wrote.
type memorySessionRepo struct {
	mu   sync.Mutex
	rows map[string]string
}

func newMemorySessionRepo() *memorySessionRepo {
	return &memorySessionRepo{rows: map[string]string{}}
}

func (r *memorySessionRepo) FindByUserID(_ context.Context, userID string) (*model.TelegramSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.rows[userID]
	if !ok {
		return nil, nil
	}
	return &model.TelegramSession{UserID: userID, SessionString: s}, nil
}

func (r *memorySessionRepo) Save(_ context.Context, userID, sessionString string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.rows[userID] = sessionString
	return nil
}

type mockConn struct {
	mock.Mock
}

func (m *mockConn) SendCode(ctx context.Context, phone string) (string, error) {
	args := m.Called(ctx, phone)
	return args.String(0), args.Error(1)
}

func (m *mockConn) SignIn(ctx context.Context, phone, phoneCodeHash, code string) error {
	args := m.Called(ctx, phone, phoneCodeHash, code)
	return args.Error(0)
}

func (m *mockConn) CheckPassword(ctx context.Context, password string) error {
	args := m.Called(ctx, password)
	return args.Error(0)
}

func (m *mockConn) IsAuthorized(ctx context.Context) (bool, error) {
	args := m.Called(ctx)
	return args.Bool(0), args.Error(1)
}

func (m *mockConn) Self(ctx context.Context) (*model.AccountIdentity, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.AccountIdentity), args.Error(1)
}

func (m *mockConn) ExportToken() (string, error) {
	args := m.Called()
	return args.String(0), args.Error(1)
}

func (m *mockConn) Dialogs(ctx context.Context) ([]tgclient.Dialog, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]tgclient.Dialog), args.Error(1)
}

func (m *mockConn) Participants(ctx context.Context, dialog tgclient.Dialog, limit int) (*tgclient.ParticipantPage, error) {
	args := m.Called(ctx, dialog, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*tgclient.ParticipantPage), args.Error(1)
}

// fakeOpener hands the same connection to every unit of work and records
// the session strings it was asked to resume.
type fakeOpener struct {
	conn    tgclient.Conn
	openErr error
	tokens  []string
}

func (f *fakeOpener) Open(ctx context.Context, _ tgclient.Credentials, token string, fn func(ctx context.Context, conn tgclient.Conn) error) error {
	f.tokens = append(f.tokens, token)
	if f.openErr != nil {
		return f.openErr
	}
	return fn(ctx, f.conn)
}
