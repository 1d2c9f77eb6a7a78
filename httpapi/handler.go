package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	siteAuth "github.com/MrEthical07/siteAuth"
	"github.com/MrEthical07/siteAuth/cookie"
	"github.com/labstack/echo/v4"
)

// Handler serves the auth endpoints on top of an engine.
type Handler struct {
	engine      *siteAuth.Engine
	cookies     cookie.Config
	refreshPath string
	logger      *slog.Logger
	now         func() time.Time
}

// NewHandler reads cookie scoping and the refresh path from the engine config.
func NewHandler(engine *siteAuth.Engine, logger *slog.Logger) *Handler {
	cfg := engine.Config()
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		engine: engine,
		cookies: cookie.Config{
			DomainOverride:  cfg.Cookie.DomainOverride,
			CanonicalDomain: cfg.Cookie.CanonicalDomain,
		},
		refreshPath: cfg.Cookie.RefreshPath,
		logger:      logger,
		now:         time.Now,
	}
}

// ----- DTOs -----

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type verifyReq struct {
	Email          string `json:"email"`
	Code           string `json:"code"`
	RememberDevice bool   `json:"rememberDevice"`
}

type emailReq struct {
	Email string `json:"email"`
}

type registerReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenReq struct {
	Token string `json:"token"`
}

type resetReq struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

type changePasswordReq struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

type revokeReq struct {
	All bool     `json:"all"`
	IDs []string `json:"ids"`
}

type loginResp struct {
	Requires2FA bool           `json:"requires2FA"`
	AccessToken string         `json:"accessToken,omitempty"`
	ExpiresIn   int64          `json:"expiresIn,omitempty"`
	User        *siteAuth.User `json:"user,omitempty"`
	DevCode     string         `json:"devCode,omitempty"`
}

type refreshResp struct {
	AccessToken string `json:"accessToken"`
	ExpiresIn   int64  `json:"expiresIn"`
}

type okResp struct {
	OK      bool   `json:"ok"`
	DevCode string `json:"devCode,omitempty"`
	DevLink string `json:"devLink,omitempty"`
}

// ----- second factor & sessions -----

// Login: password step; a recognized trust cookie skips the code.
func (h *Handler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return writeError(c, siteAuth.ErrInvalidInput)
	}

	res, err := h.engine.Login(c.Request().Context(), req.Email, req.Password, readCookie(c, cookie.TrustName))
	if err != nil {
		return writeError(c, err)
	}
	if res.RequiresSecondFactor {
		return c.JSON(http.StatusOK, loginResp{Requires2FA: true, DevCode: res.DevCode})
	}
	h.setSessionCookies(c, res)
	return c.JSON(http.StatusOK, loginResp{
		AccessToken: res.Tokens.AccessToken,
		ExpiresIn:   res.Tokens.ExpiresIn,
		User:        res.User,
	})
}

// VerifySecondFactor: code step; sets the trust cookie only when remembering.
func (h *Handler) VerifySecondFactor(c echo.Context) error {
	var req verifyReq
	if err := c.Bind(&req); err != nil {
		return writeError(c, siteAuth.ErrInvalidInput)
	}

	res, err := h.engine.VerifySecondFactor(c.Request().Context(), req.Email, req.Code, req.RememberDevice)
	if err != nil {
		return writeError(c, err)
	}
	h.setSessionCookies(c, res)
	return c.JSON(http.StatusOK, loginResp{
		AccessToken: res.Tokens.AccessToken,
		ExpiresIn:   res.Tokens.ExpiresIn,
		User:        res.User,
	})
}

func (h *Handler) ResendCode(c echo.Context) error {
	var req emailReq
	if err := c.Bind(&req); err != nil {
		return writeError(c, siteAuth.ErrInvalidInput)
	}
	res, err := h.engine.ResendCode(c.Request().Context(), req.Email)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, okResp{OK: true, DevCode: res.DevCode})
}

// Refresh reads only the refresh cookie and rotates it.
func (h *Handler) Refresh(c echo.Context) error {
	attrs := h.attrs(c)
	token := readCookie(c, cookie.RefreshName)
	if token == "" {
		return writeError(c, siteAuth.ErrUnauthorized)
	}

	pair, err := h.engine.Refresh(c.Request().Context(), token)
	if err != nil {
		switch siteAuth.ErrorCodeOf(err) {
		case siteAuth.CodeRefreshRevoked, siteAuth.CodeTokenInvalid:
			c.SetCookie(cookie.ClearRefresh(attrs, h.refreshPath))
		}
		return writeError(c, err)
	}

	c.SetCookie(cookie.Refresh(attrs, h.refreshPath, pair.RefreshToken, pair.RefreshExpiresAt, h.now()))
	return c.JSON(http.StatusOK, refreshResp{AccessToken: pair.AccessToken, ExpiresIn: pair.ExpiresIn})
}

// Logout always answers ok and clears the refresh cookie.
func (h *Handler) Logout(c echo.Context) error {
	h.engine.Logout(c.Request().Context(), readCookie(c, cookie.RefreshName))
	c.SetCookie(cookie.ClearRefresh(h.attrs(c), h.refreshPath))
	return c.JSON(http.StatusOK, okResp{OK: true})
}

// LogoutAll revokes every refresh token of the caller.
func (h *Handler) LogoutAll(c echo.Context) error {
	id, ok := siteAuth.IdentityFromContext(c.Request().Context())
	if !ok {
		return writeError(c, siteAuth.ErrUnauthorized)
	}
	if err := h.engine.RevokeSessions(c.Request().Context(), id.UserID); err != nil {
		return writeError(c, err)
	}
	c.SetCookie(cookie.ClearRefresh(h.attrs(c), h.refreshPath))
	return c.JSON(http.StatusOK, okResp{OK: true})
}

// Me returns the identity proven by the access token.
func (h *Handler) Me(c echo.Context) error {
	id, ok := siteAuth.IdentityFromContext(c.Request().Context())
	if !ok {
		return writeError(c, siteAuth.ErrUnauthorized)
	}
	return c.JSON(http.StatusOK, echo.Map{"id": id.UserID, "role": id.Role})
}

// ----- trusted devices -----

func (h *Handler) ListTrustedDevices(c echo.Context) error {
	id, ok := siteAuth.IdentityFromContext(c.Request().Context())
	if !ok {
		return writeError(c, siteAuth.ErrUnauthorized)
	}
	devices, err := h.engine.ListTrustedDevices(c.Request().Context(), id.UserID, readCookie(c, cookie.TrustName))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"devices": devices})
}

func (h *Handler) RevokeTrustedDevices(c echo.Context) error {
	id, ok := siteAuth.IdentityFromContext(c.Request().Context())
	if !ok {
		return writeError(c, siteAuth.ErrUnauthorized)
	}
	var req revokeReq
	if err := c.Bind(&req); err != nil {
		return writeError(c, siteAuth.ErrInvalidInput)
	}

	res, err := h.engine.RevokeTrustedDevices(c.Request().Context(), id.UserID, siteAuth.RevokeDevicesRequest{
		All:               req.All,
		IDs:               req.IDs,
		CurrentTrustToken: readCookie(c, cookie.TrustName),
	})
	if err != nil {
		return writeError(c, err)
	}
	if res.ClearTrustCookie {
		c.SetCookie(cookie.ClearTrust(h.attrs(c)))
	}
	return c.JSON(http.StatusOK, echo.Map{"ok": true, "revoked": res.Revoked})
}

// ----- accounts -----

func (h *Handler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return writeError(c, siteAuth.ErrInvalidInput)
	}
	res, err := h.engine.CreateAccount(c.Request().Context(), siteAuth.CreateAccountRequest{Email: req.Email, Password: req.Password})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"user": res.User, "devLink": res.DevLink})
}

func (h *Handler) Activate(c echo.Context) error {
	var req tokenReq
	if err := c.Bind(&req); err != nil {
		return writeError(c, siteAuth.ErrInvalidInput)
	}
	if err := h.engine.ActivateAccount(c.Request().Context(), req.Token); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, okResp{OK: true})
}

func (h *Handler) ForgotPassword(c echo.Context) error {
	var req emailReq
	if err := c.Bind(&req); err != nil {
		return writeError(c, siteAuth.ErrInvalidInput)
	}
	res, err := h.engine.RequestPasswordReset(c.Request().Context(), req.Email)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, okResp{OK: true, DevLink: res.DevLink})
}

// ResetPassword also clears both cookies; the reset revoked them server-side.
func (h *Handler) ResetPassword(c echo.Context) error {
	var req resetReq
	if err := c.Bind(&req); err != nil {
		return writeError(c, siteAuth.ErrInvalidInput)
	}
	if err := h.engine.ConfirmPasswordReset(c.Request().Context(), req.Token, req.Password); err != nil {
		return writeError(c, err)
	}
	attrs := h.attrs(c)
	c.SetCookie(cookie.ClearRefresh(attrs, h.refreshPath))
	c.SetCookie(cookie.ClearTrust(attrs))
	return c.JSON(http.StatusOK, okResp{OK: true})
}

func (h *Handler) ChangePassword(c echo.Context) error {
	id, ok := siteAuth.IdentityFromContext(c.Request().Context())
	if !ok {
		return writeError(c, siteAuth.ErrUnauthorized)
	}
	var req changePasswordReq
	if err := c.Bind(&req); err != nil {
		return writeError(c, siteAuth.ErrInvalidInput)
	}
	if err := h.engine.ChangePassword(c.Request().Context(), id.UserID, req.CurrentPassword, req.NewPassword); err != nil {
		return writeError(c, err)
	}
	c.SetCookie(cookie.ClearRefresh(h.attrs(c), h.refreshPath))
	return c.JSON(http.StatusOK, okResp{OK: true})
}

// ----- helpers -----

func (h *Handler) attrs(c echo.Context) cookie.Attributes {
	return cookie.Compute(cookie.FromHTTP(c.Request()), h.cookies)
}

func (h *Handler) setSessionCookies(c echo.Context, res *siteAuth.LoginResult) {
	attrs := h.attrs(c)
	now := h.now()
	c.SetCookie(cookie.Refresh(attrs, h.refreshPath, res.Tokens.RefreshToken, res.Tokens.RefreshExpiresAt, now))
	if res.TrustToken != "" {
		c.SetCookie(cookie.Trust(attrs, res.TrustToken, res.TrustExpiresAt, now))
	}
}

func readCookie(c echo.Context, name string) string {
	ck, err := c.Cookie(name)
	if err != nil {
		return ""
	}
	return ck.Value
}
