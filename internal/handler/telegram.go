package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/openclaw/tg-relay-go/internal/errors"
	"github.com/openclaw/tg-relay-go/internal/httputil"
	"github.com/openclaw/tg-relay-go/internal/model"
	"github.com/openclaw/tg-relay-go/internal/service"
	"github.com/openclaw/tg-relay-go/internal/tgclient"
)

const LivenessMessage = "Telegram relay API is running!"

// SessionFlows is implemented by service.TelegramService.
type SessionFlows interface {
	RequestCode(ctx context.Context, p service.SendCodeParams) (*service.SendCodeResult, error)
	CompleteSignIn(ctx context.Context, p service.SignInParams) ([]model.ConversationSummary, error)
	ResumeSession(ctx context.Context, p service.ResumeParams) (*service.ResumeResult, error)
	Connect(ctx context.Context, p service.ConnectParams) ([]model.ConversationSummary, error)
}

type TelegramHandler struct {
	flows SessionFlows

	// loginLimit wraps the routes that dispatch or consume login codes.
	loginLimit func(route string) func(http.Handler) http.Handler
}

func NewTelegramHandler(flows SessionFlows, loginLimit func(route string) func(http.Handler) http.Handler) *TelegramHandler {
	if loginLimit == nil {
		loginLimit = func(string) func(http.Handler) http.Handler {
			return func(next http.Handler) http.Handler { return next }
		}
	}
	return &TelegramHandler{flows: flows, loginLimit: loginLimit}
}

// RegisterRoutes adds the relay routes to r directly, so middleware applied
// to r only runs for these paths.
func (h *TelegramHandler) RegisterRoutes(r chi.Router) {
	r.With(h.loginLimit("send-code")).Post("/send-code", h.SendCode)
	r.With(h.loginLimit("sign-in")).Post("/sign-in", h.SignIn)
	r.Post("/auto-login", h.AutoLogin)
	r.Post("/connect", h.Connect)
	r.Post("/api/telegram/connect", h.Connect)
}

type chatsResponse struct {
	Chats []model.ConversationSummary `json:"chats"`
}

type sendCodeRequest struct {
	APIID   apiID `json:"api_id" validate:"required,gt=0"`
	APIHash text  `json:"api_hash" validate:"required"`
	Phone   text  `json:"phone" validate:"required"`
	UserID  text  `json:"user_id" validate:"required"`
}

// POST /send-code
func (h *TelegramHandler) SendCode(w http.ResponseWriter, r *http.Request) {
	var req sendCodeRequest
	if err := decodeRequest(r, "send-code", &req); err != nil {
		writeError(w, r, err)
		return
	}

	result, err := h.flows.RequestCode(r.Context(), service.SendCodeParams{
		Credentials: credentials(req.APIID, req.APIHash),
		Phone:       string(req.Phone),
		UserID:      string(req.UserID),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

type signInRequest struct {
	APIID         apiID  `json:"api_id" validate:"required,gt=0"`
	APIHash       text   `json:"api_hash" validate:"required"`
	Phone         text   `json:"phone" validate:"required"`
	Code          text   `json:"code" validate:"required"`
	PhoneCodeHash text   `json:"phone_code_hash" validate:"required"`
	UserID        text   `json:"user_id" validate:"required"`
	Password      string `json:"password"`
}

// POST /sign-in
func (h *TelegramHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if err := decodeRequest(r, "sign-in", &req); err != nil {
		writeError(w, r, err)
		return
	}

	chats, err := h.flows.CompleteSignIn(r.Context(), service.SignInParams{
		Credentials:   credentials(req.APIID, req.APIHash),
		Phone:         string(req.Phone),
		Code:          string(req.Code),
		PhoneCodeHash: string(req.PhoneCodeHash),
		UserID:        string(req.UserID),
		Password:      req.Password,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, chatsResponse{Chats: chats})
}

type autoLoginRequest struct {
	SessionString text  `json:"session_string" validate:"required"`
	APIID         apiID `json:"api_id" validate:"required,gt=0"`
	APIHash       text  `json:"api_hash" validate:"required"`
}

// POST /auto-login
func (h *TelegramHandler) AutoLogin(w http.ResponseWriter, r *http.Request) {
	var req autoLoginRequest
	if err := decodeRequest(r, "auto-login", &req); err != nil {
		writeError(w, r, err)
		return
	}

	result, err := h.flows.ResumeSession(r.Context(), service.ResumeParams{
		Credentials: credentials(req.APIID, req.APIHash),
		Session:     string(req.SessionString),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// connectRequest optionally carries a code login for a user whose stored
// session is missing or not yet authorized.
type connectRequest struct {
	APIID         apiID  `json:"api_id" validate:"required,gt=0"`
	APIHash       text   `json:"api_hash" validate:"required"`
	UserID        text   `json:"user_id" validate:"required"`
	Phone         text   `json:"phone" validate:"required_with=Code PhoneCodeHash"`
	Code          text   `json:"code" validate:"required_with=Phone PhoneCodeHash"`
	PhoneCodeHash text   `json:"phone_code_hash" validate:"required_with=Phone Code"`
	Password      string `json:"password"`
}

// POST /connect, POST /api/telegram/connect
func (h *TelegramHandler) Connect(w http.ResponseWriter, r *http.Request) {
	var req connectRequest
	if err := decodeRequest(r, "connect", &req); err != nil {
		writeError(w, r, err)
		return
	}

	chats, err := h.flows.Connect(r.Context(), service.ConnectParams{
		Credentials:   credentials(req.APIID, req.APIHash),
		UserID:        string(req.UserID),
		Phone:         string(req.Phone),
		Code:          string(req.Code),
		PhoneCodeHash: string(req.PhoneCodeHash),
		Password:      req.Password,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, chatsResponse{Chats: chats})
}

func credentials(id apiID, hash text) tgclient.Credentials {
	return tgclient.Credentials{AppID: int(id), AppHash: string(hash)}
}

// GET /
func Liveness(w http.ResponseWriter, r *http.Request) {
	httputil.WriteText(w, http.StatusOK, LivenessMessage)
}

func NotFound(w http.ResponseWriter, r *http.Request) {
	httputil.WriteError(w, apperrors.NotFound("Route"))
}

// GET /health
func Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UnixMilli(),
	})
}
