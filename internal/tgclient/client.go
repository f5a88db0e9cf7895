// Package tgclient opens short-lived MTProto connections to Telegram and
// exposes the handful of account operations the relay needs.
package tgclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gotd/td/session"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/tg"
	"github.com/rs/zerolog/log"

	"github.com/openclaw/tg-relay-go/internal/model"
)

const deviceModel = "tg-relay-go"

// Credentials identify the third-party application registered with Telegram.
type Credentials struct {
	AppID   int
	AppHash string
}

// Conn is an open connection. It is only valid inside the callback passed
// to Opener.Open.
type Conn interface {
	SendCode(ctx context.Context, phone string) (string, error)
	SignIn(ctx context.Context, phone, phoneCodeHash, code string) error
	CheckPassword(ctx context.Context, password string) error
	IsAuthorized(ctx context.Context) (bool, error)
	Self(ctx context.Context) (*model.AccountIdentity, error)
	ExportToken() (string, error)
	Dialogs(ctx context.Context) ([]Dialog, error)
	Participants(ctx context.Context, dialog Dialog, limit int) (*ParticipantPage, error)
}

// Opener runs fn against a connection built from creds and token. An empty
// token starts an anonymous session. The connection is closed when Open
// returns, whatever fn did.
type Opener interface {
	Open(ctx context.Context, creds Credentials, token string, fn func(ctx context.Context, conn Conn) error) error
}

type Factory struct {
	maxDialogs int
}

func NewFactory(maxDialogs int) *Factory {
	return &Factory{maxDialogs: maxDialogs}
}

var _ Opener = (*Factory)(nil)

func (f *Factory) Open(ctx context.Context, creds Credentials, token string, fn func(ctx context.Context, conn Conn) error) error {
	storage, err := newTokenStorage(token)
	if err != nil {
		return err
	}

	client := telegram.NewClient(creds.AppID, creds.AppHash, telegram.Options{
		SessionStorage: storage,
		Device: telegram.DeviceConfig{
			DeviceModel:   deviceModel,
			SystemVersion: "linux",
			AppVersion:    "1.0",
		},
	})

	start := time.Now()
	err = client.Run(ctx, func(ctx context.Context) error {
		return fn(ctx, &conn{
			client:     client,
			api:        client.API(),
			storage:    storage,
			maxDialogs: f.maxDialogs,
		})
	})

	log.Debug().
		Int("appId", creds.AppID).
		Bool("resumed", token != "").
		Dur("elapsed", time.Since(start)).
		Err(err).
		Msg("telegram connection closed")

	return err
}

type conn struct {
	client     *telegram.Client
	api        *tg.Client
	storage    *session.StorageMemory
	maxDialogs int
}

func (c *conn) SendCode(ctx context.Context, phone string) (string, error) {
	sent, err := c.client.Auth().SendCode(ctx, phone, auth.SendCodeOptions{})
	if err != nil {
		return "", err
	}

	switch s := sent.(type) {
	case *tg.AuthSentCode:
		return s.PhoneCodeHash, nil
	default:
		return "", fmt.Errorf("%w: send code returned %T", ErrUnexpectedResponse, sent)
	}
}

func (c *conn) SignIn(ctx context.Context, phone, phoneCodeHash, code string) error {
	_, err := c.client.Auth().SignIn(ctx, phone, code, phoneCodeHash)
	if errors.Is(err, auth.ErrPasswordAuthNeeded) {
		return ErrPasswordRequired
	}
	return err
}

func (c *conn) CheckPassword(ctx context.Context, password string) error {
	_, err := c.client.Auth().Password(ctx, password)
	return err
}

func (c *conn) IsAuthorized(ctx context.Context) (bool, error) {
	status, err := c.client.Auth().Status(ctx)
	if err != nil {
		return false, err
	}
	return status.Authorized, nil
}

func (c *conn) Self(ctx context.Context) (*model.AccountIdentity, error) {
	user, err := c.client.Self(ctx)
	if err != nil {
		return nil, err
	}

	identity := &model.AccountIdentity{UserID: user.ID}
	if user.Username != "" {
		username := user.Username
		identity.Username = &username
	}
	return identity, nil
}

func (c *conn) ExportToken() (string, error) {
	token, err := exportToken(c.storage)
	if err != nil {
		return "", err
	}
	if token == "" {
		return "", fmt.Errorf("%w: no session data yet", ErrUnexpectedResponse)
	}
	return token, nil
}
