package auth

import (
	"regexp"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/atmin009/tutor-frontend/internal/models"
	"github.com/atmin009/tutor-frontend/internal/upstream"
	"github.com/atmin009/tutor-frontend/pkg/response"
)

// SessionCookie carries the gateway JWT for browser navigations that cannot
// set an Authorization header (gateway-return landing pages).
const SessionCookie = "tf_session"

var nonDigits = regexp.MustCompile(`\D`)

// LoginRequest is the body for POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// RegisterRequest is the body for POST /auth/register.
type RegisterRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Phone    string `json:"phone"`
	Password string `json:"password" binding:"required,min=6"`
}

// TokenResponse is the auth response with the gateway JWT.
type TokenResponse struct {
	Token string      `json:"token"`
	User  models.User `json:"user"`
}

// Handler handles auth HTTP endpoints by proxying the upstream auth API and
// exchanging its token for a gateway session.
type Handler struct {
	api      *upstream.Client
	store    *TokenStore
	jwt      *JWTService
	onLogout func(userID string)
	logger   *zap.Logger
}

// NewHandler creates an auth handler. onLogout, when non-nil, is invoked
// after a session is invalidated so dependent state (active checkouts) can
// be torn down.
func NewHandler(api *upstream.Client, store *TokenStore, jwt *JWTService, onLogout func(userID string), logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{api: api, store: store, jwt: jwt, onLogout: onLogout, logger: logger}
}

// Login handles POST /auth/login.
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	res, err := h.api.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		response.Unauthorized(c, upstream.Message(err, "เข้าสู่ระบบไม่สำเร็จ กรุณาลองอีกครั้ง"))
		return
	}

	h.issueSession(c, res)
}

// Register handles POST /auth/register. Phone is normalized to digits only.
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	params := upstream.RegisterParams{
		Name:     req.Name,
		Email:    req.Email,
		Phone:    nonDigits.ReplaceAllString(req.Phone, ""),
		Password: req.Password,
	}
	res, err := h.api.Register(c.Request.Context(), params)
	if err != nil {
		response.BadRequest(c, upstream.Message(err, "สมัครสมาชิกไม่สำเร็จ กรุณาลองอีกครั้ง"))
		return
	}

	h.issueSession(c, res)
}

func (h *Handler) issueSession(c *gin.Context, res *upstream.AuthResult) {
	sessionID := uuid.New()
	if err := h.store.Save(c.Request.Context(), sessionID.String(), res.Token); err != nil {
		h.logger.Error("save session failed", zap.Error(err))
		response.Internal(c, "failed to create session")
		return
	}
	token, err := h.jwt.Generate(res.User.ID, sessionID, res.User.Name)
	if err != nil {
		h.logger.Error("generate session token failed", zap.Error(err))
		response.Internal(c, "failed to create session")
		return
	}

	c.SetCookie(SessionCookie, token, 0, "/", "", false, true)
	response.OK(c, TokenResponse{Token: token, User: res.User}, "login successful")
}

// Logout handles POST /auth/logout. Invalidates the session and tears down
// the user's active checkouts.
func (h *Handler) Logout(c *gin.Context) {
	s, ok := SessionFrom(c.Request.Context())
	if !ok {
		response.Unauthorized(c, "no active session")
		return
	}
	h.store.Delete(c.Request.Context(), s.ID)
	if h.onLogout != nil {
		h.onLogout(s.UserID)
	}
	c.SetCookie(SessionCookie, "", -1, "/", "", false, true)
	response.OK(c, nil, "logged out")
}
