package repository

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/supabase-community/postgrest-go"

	"github.com/openclaw/tg-relay-go/internal/config"
	"github.com/openclaw/tg-relay-go/internal/model"
)

// restSessionRepo talks to the Supabase REST API (PostgREST) in front of the
// same telegram_sessions table.
type restSessionRepo struct {
	restURL    string
	serviceKey string
	transport  http.RoundTripper
}

type restSessionRow struct {
	UserID        string `json:"user_id"`
	SessionString string `json:"session_string"`
}

// NewRESTSessionRepository takes the Supabase project URL. A nil transport
// uses http.DefaultTransport.
func NewRESTSessionRepository(projectURL, serviceKey string, transport http.RoundTripper) SessionRepository {
	if transport == nil {
		transport = http.DefaultTransport
	}
	return &restSessionRepo{
		restURL:    strings.TrimRight(projectURL, "/") + "/rest/v1",
		serviceKey: serviceKey,
		transport:  transport,
	}
}

// contextTransport binds requests issued by postgrest-go, which takes no
// context, to the caller's.
type contextTransport struct {
	ctx  context.Context
	next http.RoundTripper
}

func (t contextTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	return t.next.RoundTrip(req.WithContext(t.ctx))
}

func (r *restSessionRepo) client(ctx context.Context) *postgrest.Client {
	client := postgrest.NewClient(r.restURL, "public", nil)
	if client.ClientError != nil {
		return client
	}
	client.SetApiKey(r.serviceKey).SetAuthToken(r.serviceKey)
	client.Transport.Parent = contextTransport{ctx: ctx, next: r.transport}
	return client
}

func (r *restSessionRepo) FindByUserID(ctx context.Context, userID string) (*model.TelegramSession, error) {
	ctx, cancel := context.WithTimeout(ctx, config.RESTStoreTimeout)
	defer cancel()

	var rows []restSessionRow
	_, err := r.client(ctx).
		From(config.SessionTable).
		Select("user_id,session_string", "", false).
		Eq("user_id", userID).
		Limit(1, "").
		ExecuteTo(&rows)
	if err != nil {
		return nil, fmt.Errorf("session store lookup failed: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	return &model.TelegramSession{
		UserID:        rows[0].UserID,
		SessionString: rows[0].SessionString,
	}, nil
}

func (r *restSessionRepo) Save(ctx context.Context, userID, sessionString string) error {
	ctx, cancel := context.WithTimeout(ctx, config.RESTStoreTimeout)
	defer cancel()

	row := []restSessionRow{{UserID: userID, SessionString: sessionString}}
	_, _, err := r.client(ctx).
		From(config.SessionTable).
		Upsert(row, "user_id", "minimal", "").
		Execute()
	if err != nil {
		return fmt.Errorf("session store upsert failed: %w", err)
	}
	return nil
}
