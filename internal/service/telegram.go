package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/openclaw/tg-relay-go/internal/audit"
	apperrors "github.com/openclaw/tg-relay-go/internal/errors"
	"github.com/openclaw/tg-relay-go/internal/metrics"
	"github.com/openclaw/tg-relay-go/internal/model"
	"github.com/openclaw/tg-relay-go/internal/repository"
	"github.com/openclaw/tg-relay-go/internal/tgclient"
	"github.com/openclaw/tg-relay-go/internal/util"
)

// Flow names label logs and metrics.
const (
	FlowSendCode = "send_code"
	FlowSignIn   = "sign_in"
	FlowResume   = "resume"
	FlowConnect  = "connect"
)

type SendCodeParams struct {
	Credentials tgclient.Credentials
	Phone       string
	UserID      string
}

type SendCodeResult struct {
	PhoneCodeHash string `json:"phone_code_hash"`
	Session       string `json:"session"`
}

type SignInParams struct {
	Credentials   tgclient.Credentials
	Phone         string
	Code          string
	PhoneCodeHash string
	UserID        string
	Password      string
}

type ResumeParams struct {
	Credentials tgclient.Credentials
	Session     string
}

type ResumeResult struct {
	Session  string  `json:"session"`
	Username *string `json:"username"`
	UserID   int64   `json:"user_id"`
}

// ConnectParams may carry a code login. Phone, Code and PhoneCodeHash are
// either all set or all empty.
type ConnectParams struct {
	Credentials   tgclient.Credentials
	UserID        string
	Phone         string
	Code          string
	PhoneCodeHash string
	Password      string
}

func (p ConnectParams) hasLogin() bool {
	return p.Phone != "" && p.Code != "" && p.PhoneCodeHash != ""
}

func (p ConnectParams) login() SignInParams {
	return SignInParams{
		Credentials:   p.Credentials,
		Phone:         p.Phone,
		Code:          p.Code,
		PhoneCodeHash: p.PhoneCodeHash,
		UserID:        p.UserID,
		Password:      p.Password,
	}
}

// TelegramService runs the session lifecycle flows. Every flow opens exactly
// one platform connection and releases it before returning.
type TelegramService struct {
	sessions   repository.SessionRepository
	opener     tgclient.Opener
	aggregator *ConversationAggregator
	sealer     *util.TokenSealer
	metrics    *metrics.Metrics
}

func NewTelegramService(
	sessions repository.SessionRepository,
	opener tgclient.Opener,
	aggregator *ConversationAggregator,
	sealer *util.TokenSealer,
	m *metrics.Metrics,
) *TelegramService {
	return &TelegramService{
		sessions:   sessions,
		opener:     opener,
		aggregator: aggregator,
		sealer:     sealer,
		metrics:    m,
	}
}

// RequestCode dispatches a login code from an anonymous session and stores
// that pre-auth session under the user id for the sign-in step.
func (s *TelegramService) RequestCode(ctx context.Context, p SendCodeParams) (*SendCodeResult, error) {
	var result SendCodeResult

	err := s.open(ctx, FlowSendCode, p.Credentials, "", func(ctx context.Context, conn tgclient.Conn) error {
		hash, err := conn.SendCode(ctx, p.Phone)
		if err != nil {
			return err
		}

		token, err := conn.ExportToken()
		if err != nil {
			return err
		}
		if err := s.saveSession(ctx, FlowSendCode, p.UserID, token); err != nil {
			return err
		}

		result = SendCodeResult{PhoneCodeHash: hash, Session: token}
		return nil
	})
	if err != nil {
		return nil, err
	}

	audit.Log(ctx, audit.Event{
		Type:   audit.EventCodeSent,
		UserID: p.UserID,
		Phone:  p.Phone,
		AppID:  p.Credentials.AppID,
	})

	return &result, nil
}

// CompleteSignIn resumes the pre-auth session stored by RequestCode, signs
// in, and lists conversations. The stored session is only replaced once the
// account is authorized.
func (s *TelegramService) CompleteSignIn(ctx context.Context, p SignInParams) ([]model.ConversationSummary, error) {
	stored, err := s.loadSession(ctx, p.UserID)
	if err != nil {
		return nil, err
	}
	if stored == "" {
		return nil, apperrors.SessionNotFound(p.UserID)
	}

	var chats []model.ConversationSummary
	err = s.open(ctx, FlowSignIn, p.Credentials, stored, func(ctx context.Context, conn tgclient.Conn) error {
		if err := s.signIn(ctx, conn, p); err != nil {
			return err
		}

		authorized, err := conn.IsAuthorized(ctx)
		if err != nil {
			return err
		}
		if !authorized {
			return apperrors.NotAuthorized("Sign-in did not authorize the session")
		}

		token, err := conn.ExportToken()
		if err != nil {
			return err
		}
		if err := s.saveSession(ctx, FlowSignIn, p.UserID, token); err != nil {
			return err
		}

		chats, err = s.aggregator.List(ctx, conn)
		return err
	})
	if err != nil {
		audit.Log(ctx, audit.Event{
			Type:    audit.EventSignInFailure,
			UserID:  p.UserID,
			Phone:   p.Phone,
			AppID:   p.Credentials.AppID,
			Details: map[string]interface{}{"code": string(apperrors.GetCode(err))},
		})
		return nil, err
	}

	audit.Log(ctx, audit.Event{
		Type:    audit.EventSignInSuccess,
		UserID:  p.UserID,
		Phone:   p.Phone,
		AppID:   p.Credentials.AppID,
		Details: map[string]interface{}{"conversations": len(chats)},
	})

	return chats, nil
}

func (s *TelegramService) signIn(ctx context.Context, conn tgclient.Conn, p SignInParams) error {
	err := conn.SignIn(ctx, p.Phone, p.PhoneCodeHash, p.Code)
	if !errors.Is(err, tgclient.ErrPasswordRequired) {
		return err
	}
	if p.Password == "" {
		return apperrors.PasswordRequired()
	}
	return conn.CheckPassword(ctx, p.Password)
}

// ResumeSession checks a caller-supplied session string and reports which
// account it belongs to. Nothing is read from or written to the store.
func (s *TelegramService) ResumeSession(ctx context.Context, p ResumeParams) (*ResumeResult, error) {
	var result ResumeResult

	err := s.open(ctx, FlowResume, p.Credentials, p.Session, func(ctx context.Context, conn tgclient.Conn) error {
		authorized, err := conn.IsAuthorized(ctx)
		if err != nil {
			return err
		}
		if !authorized {
			return apperrors.NotAuthorized("Session is not authorized")
		}

		self, err := conn.Self(ctx)
		if err != nil {
			return err
		}

		token, err := conn.ExportToken()
		if err != nil {
			return err
		}

		result = ResumeResult{Session: token, Username: self.Username, UserID: self.UserID}
		return nil
	})
	if err != nil {
		if apperrors.GetCode(err) == apperrors.ErrCodeNotAuthorized {
			audit.Log(ctx, audit.Event{Type: audit.EventSessionNotAuthorized, AppID: p.Credentials.AppID})
		}
		return nil, err
	}

	audit.Log(ctx, audit.Event{
		Type:    audit.EventSessionResumed,
		AppID:   p.Credentials.AppID,
		Details: map[string]interface{}{"account_id": result.UserID},
	})

	return &result, nil
}

// Connect resumes the user's stored session and lists conversations. When
// the session is missing or not yet authorized, the code login in p (if any)
// completes it on the same connection. The session is written back only when
// it was authorized here, and only after the listing succeeded.
func (s *TelegramService) Connect(ctx context.Context, p ConnectParams) ([]model.ConversationSummary, error) {
	stored, err := s.loadSession(ctx, p.UserID)
	if err != nil {
		return nil, err
	}
	if stored == "" && !p.hasLogin() {
		return nil, apperrors.NotAuthorized("No stored session for user; sign in with /send-code and /sign-in first")
	}

	var (
		chats   []model.ConversationSummary
		created bool
	)
	err = s.open(ctx, FlowConnect, p.Credentials, stored, func(ctx context.Context, conn tgclient.Conn) error {
		authorized := false
		if stored != "" {
			ok, err := conn.IsAuthorized(ctx)
			if err != nil {
				return err
			}
			authorized = ok
		}

		if !authorized {
			if !p.hasLogin() {
				return apperrors.NotAuthorized("Stored session is not authorized; complete sign-in first")
			}
			if err := s.signIn(ctx, conn, p.login()); err != nil {
				return err
			}
			ok, err := conn.IsAuthorized(ctx)
			if err != nil {
				return err
			}
			if !ok {
				return apperrors.NotAuthorized("Sign-in did not authorize the session")
			}
			created = true
		}

		list, err := s.aggregator.List(ctx, conn)
		if err != nil {
			return err
		}
		chats = list

		if !created {
			return nil
		}
		token, err := conn.ExportToken()
		if err != nil {
			return err
		}
		return s.saveSession(ctx, FlowConnect, p.UserID, token)
	})
	if err != nil {
		if apperrors.GetCode(err) == apperrors.ErrCodeNotAuthorized {
			audit.Log(ctx, audit.Event{Type: audit.EventSessionNotAuthorized, UserID: p.UserID, AppID: p.Credentials.AppID})
		}
		return nil, err
	}

	eventType := audit.EventSessionResumed
	if created {
		eventType = audit.EventSessionCreated
	}
	audit.Log(ctx, audit.Event{
		Type:    eventType,
		UserID:  p.UserID,
		Phone:   p.Phone,
		AppID:   p.Credentials.AppID,
		Details: map[string]interface{}{"conversations": len(chats)},
	})

	return chats, nil
}

// open runs fn on a scoped connection and translates whatever fails into an
// AppError.
func (s *TelegramService) open(
	ctx context.Context,
	flow string,
	creds tgclient.Credentials,
	token string,
	fn func(ctx context.Context, conn tgclient.Conn) error,
) error {
	timer := s.metrics.PlatformTimer(flow)
	err := s.opener.Open(ctx, creds, token, fn)
	timer.ObserveDuration()

	if err == nil {
		return nil
	}

	appErr := platformError(err)
	s.metrics.PlatformErrorInc(flow, string(appErr.Code))
	log.Warn().
		Err(err).
		Str("flow", flow).
		Int("appId", creds.AppID).
		Str("code", string(appErr.Code)).
		Msg("telegram unit of work failed")

	return appErr
}

func platformError(err error) *apperrors.AppError {
	if appErr, ok := apperrors.AsAppError(err); ok {
		return appErr
	}

	switch {
	case errors.Is(err, tgclient.ErrInvalidToken):
		return apperrors.InvalidSession(err)
	case errors.Is(err, tgclient.ErrPasswordRequired):
		return apperrors.PasswordRequired()
	default:
		return apperrors.External(err)
	}
}

// loadSession returns the user's stored session string, or "" when none is
// stored.
func (s *TelegramService) loadSession(ctx context.Context, userID string) (string, error) {
	record, err := s.sessions.FindByUserID(ctx, userID)
	if err != nil {
		return "", apperrors.Database(fmt.Errorf("find session: %w", err))
	}
	if record == nil {
		return "", nil
	}

	token, err := s.sealer.Open(record.SessionString)
	if err != nil {
		return "", apperrors.Wrap(apperrors.ErrCodeInternal, "Stored session could not be decrypted", err)
	}
	return token, nil
}

func (s *TelegramService) saveSession(ctx context.Context, flow, userID, token string) error {
	stored, err := s.sealer.Seal(token)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrCodeInternal, "Session could not be encrypted", err)
	}

	if err := s.sessions.Save(ctx, userID, stored); err != nil {
		return apperrors.Database(fmt.Errorf("save session: %w", err))
	}

	s.metrics.SessionSavedInc(flow)
	log.Debug().
		Str("userId", userID).
		Str("flow", flow).
		Str("fingerprint", util.Fingerprint(token)).
		Msg("session stored")

	return nil
}
