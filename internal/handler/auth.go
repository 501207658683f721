package handler

import (
	"context"
	"net/http"
	"net/mail"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/labstack/echo/v4"

	"github.com/slimmermetai/auth-core/internal/middleware"
	"github.com/slimmermetai/auth-core/internal/service"
)

// requestTimeout bounds the service and DB work of one request.
const requestTimeout = 5 * time.Second

// AuthHandler exposes AuthService over HTTP.
type AuthHandler struct {
	Auth *service.AuthService
}

func NewAuthHandler(a *service.AuthService) *AuthHandler {
	return &AuthHandler{Auth: a}
}

// ----- DTOs -----

type registerReq struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
	Name     string `json:"name" form:"name"`
}
type loginReq struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}
type refreshReq struct {
	RefreshToken string `json:"refresh_token" form:"refresh_token"`
}
type emailReq struct {
	Email string `json:"email" form:"email"`
}
type resetReq struct {
	Token    string `json:"token" form:"token"`
	Password string `json:"password" form:"password"`
}
type tokenReq struct {
	Token string `json:"token" form:"token"`
}

type loginAttemptView struct {
	Success   bool      `json:"success"`
	IPAddress string    `json:"ip_address"`
	UserAgent string    `json:"user_agent"`
	Reason    string    `json:"reason,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// fieldErrors collects validation messages keyed by field name.
type fieldErrors map[string]string

func (f fieldErrors) email(v string) {
	v = strings.TrimSpace(v)
	if v == "" {
		f["email"] = "Email is required"
		return
	}
	if a, err := mail.ParseAddress(v); err != nil || a.Address != v || len(v) > 255 {
		f["email"] = "Email is invalid"
	}
}

func (f fieldErrors) required(field, v, msg string) {
	if strings.TrimSpace(v) == "" {
		f[field] = msg
	}
}

func validationFailed(c echo.Context, errs fieldErrors) error {
	return c.JSON(http.StatusUnprocessableEntity, echo.Map{
		"success": false,
		"message": "Validation failed",
		"errors":  errs,
	})
}

// bind decodes the request into dst. A missing or unreadable body leaves
// dst zero so the field checks report what is missing.
func bind(c echo.Context, dst any) {
	_ = c.Bind(dst)
}

func reqCtx(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), requestTimeout)
}

// respond maps a service Result onto the JSON envelope. failStatus is used
// when the outcome has no fixed status of its own.
func respond(c echo.Context, res service.Result, failStatus int) error {
	if !res.Success {
		switch res.Outcome {
		case service.OutcomeWeakPassword:
			return validationFailed(c, fieldErrors{"password": res.Message})
		case service.OutcomeLocked:
			return c.JSON(http.StatusTooManyRequests, echo.Map{"success": false, "message": res.Message})
		case service.OutcomeEmailExists:
			failStatus = http.StatusConflict
		}
		return c.JSON(failStatus, echo.Map{"success": false, "message": res.Message})
	}
	body := echo.Map{"success": true, "message": res.Message}
	if res.Tokens != nil {
		body["tokens"] = res.Tokens
	}
	if res.User != nil {
		body["user"] = res.User
	}
	return c.JSON(http.StatusOK, body)
}

// Register: POST /api/auth/register
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	bind(c, &req)
	errs := fieldErrors{}
	errs.email(req.Email)
	// Strength (length included) is judged by the service so the message
	// is the same for register and reset.
	if req.Password == "" {
		errs["password"] = "Password is required"
	}
	if utf8.RuneCountInString(req.Name) > 100 {
		errs["name"] = "Name is too long"
	}
	if len(errs) > 0 {
		return validationFailed(c, errs)
	}

	ctx, cancel := reqCtx(c)
	defer cancel()
	res, err := h.Auth.Register(ctx, req.Email, req.Password, strings.TrimSpace(req.Name))
	if err != nil {
		return err
	}
	if res.Success {
		return respondCreated(c, res)
	}
	return respond(c, res, http.StatusBadRequest)
}

func respondCreated(c echo.Context, res service.Result) error {
	return c.JSON(http.StatusCreated, echo.Map{
		"success": true,
		"message": res.Message,
		"tokens":  res.Tokens,
		"user":    res.User,
	})
}

// Login: POST /api/auth/login
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	bind(c, &req)
	errs := fieldErrors{}
	errs.required("email", req.Email, "Email is required")
	errs.required("password", req.Password, "Password is required")
	if len(errs) > 0 {
		return validationFailed(c, errs)
	}

	ctx, cancel := reqCtx(c)
	defer cancel()
	res, err := h.Auth.Login(ctx, req.Email, req.Password, service.ClientInfo{
		IP:        c.RealIP(),
		UserAgent: c.Request().UserAgent(),
	})
	if err != nil {
		return err
	}
	return respond(c, res, http.StatusUnauthorized)
}

// Refresh: POST /api/auth/refresh. Issues a new access token; the refresh
// token stays as it is.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	bind(c, &req)
	if strings.TrimSpace(req.RefreshToken) == "" {
		return validationFailed(c, fieldErrors{"refresh_token": "Refresh token is required"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()
	res, err := h.Auth.Refresh(ctx, req.RefreshToken)
	if err != nil {
		return err
	}
	return respond(c, res, http.StatusUnauthorized)
}

// Logout: POST /api/auth/logout. Revokes the bearer token when present and
// the refresh token from the body when given. Always answers 200.
func (h *AuthHandler) Logout(c echo.Context) error {
	var req refreshReq
	bind(c, &req)
	access, _ := c.Get(middleware.CtxToken).(string)
	if access == "" {
		access = middleware.BearerToken(c)
	}

	ctx, cancel := reqCtx(c)
	defer cancel()
	return respond(c, h.Auth.Logout(ctx, access, req.RefreshToken), http.StatusOK)
}

// Me: GET /api/auth/me (protected).
func (h *AuthHandler) Me(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	user, err := h.Auth.CurrentUser(ctx, middleware.CurrentClaims(c))
	if err != nil {
		return err
	}
	if user == nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"success": false, "message": "Unauthorized"})
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "user": user})
}

// ForgotPassword: POST /api/auth/forgot-password. Answers the same whether
// or not the address is registered.
func (h *AuthHandler) ForgotPassword(c echo.Context) error {
	var req emailReq
	bind(c, &req)
	errs := fieldErrors{}
	errs.email(req.Email)
	if len(errs) > 0 {
		return validationFailed(c, errs)
	}

	ctx, cancel := reqCtx(c)
	defer cancel()
	res, err := h.Auth.ForgotPassword(ctx, req.Email)
	if err != nil {
		return err
	}
	return respond(c, res, http.StatusBadRequest)
}

// ResetPassword: POST /api/auth/reset-password
func (h *AuthHandler) ResetPassword(c echo.Context) error {
	var req resetReq
	bind(c, &req)
	errs := fieldErrors{}
	errs.required("token", req.Token, "Token is required")
	errs.required("password", req.Password, "Password is required")
	if len(errs) > 0 {
		return validationFailed(c, errs)
	}

	ctx, cancel := reqCtx(c)
	defer cancel()
	res, err := h.Auth.ResetPassword(ctx, strings.TrimSpace(req.Token), req.Password)
	if err != nil {
		return err
	}
	return respond(c, res, http.StatusBadRequest)
}

// VerifyEmail: POST /api/auth/verify-email. The token may also come as a
// query parameter so the mailed link can be posted as is.
func (h *AuthHandler) VerifyEmail(c echo.Context) error {
	var req tokenReq
	bind(c, &req)
	if req.Token == "" {
		req.Token = c.QueryParam("token")
	}
	if strings.TrimSpace(req.Token) == "" {
		return validationFailed(c, fieldErrors{"token": "Token is required"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()
	res, err := h.Auth.VerifyEmail(ctx, req.Token)
	if err != nil {
		return err
	}
	return respond(c, res, http.StatusBadRequest)
}

// LoginHistory: GET /api/auth/login-history?limit=N (protected).
func (h *AuthHandler) LoginHistory(c echo.Context) error {
	uid, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"success": false, "message": "Unauthorized"})
	}
	limit, _ := strconv.Atoi(c.QueryParam("limit"))

	ctx, cancel := reqCtx(c)
	defer cancel()
	attempts, err := h.Auth.LoginHistory(ctx, uid, limit)
	if err != nil {
		return err
	}
	out := make([]loginAttemptView, 0, len(attempts))
	for _, a := range attempts {
		out = append(out, loginAttemptView{
			Success:   a.Success,
			IPAddress: a.IPAddress,
			UserAgent: a.UserAgent,
			Reason:    a.Reason,
			CreatedAt: a.CreatedAt,
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "history": out})
}
