package httpapi

import (
	"github.com/MrEthical07/siteAuth/middleware"
	"github.com/labstack/echo/v4"
)

// Register mounts the auth routes under prefix (normally "/api/auth").
// Cookie.RefreshPath must equal prefix + "/refresh-token" for the browser to
// send the refresh cookie.
func Register(e *echo.Echo, prefix string, h *Handler) {
	g := e.Group(prefix, h.clientContext)

	guard := echo.WrapMiddleware(middleware.Guard(h.engine))
	optional := echo.WrapMiddleware(middleware.Optional(h.engine))

	// second factor & sessions
	g.POST("/login", h.Login)
	g.POST("/verify-second-factor", h.VerifySecondFactor)
	g.POST("/resend-code", h.ResendCode)
	g.POST("/refresh-token", h.Refresh)
	g.POST("/logout", h.Logout, optional)
	g.POST("/logout-all", h.LogoutAll, guard)
	g.GET("/me", h.Me, guard)

	// trusted devices
	g.GET("/trusted-devices", h.ListTrustedDevices, guard)
	g.POST("/trusted-devices/revoke", h.RevokeTrustedDevices, guard)

	// accounts
	g.POST("/register", h.Register)
	g.POST("/activate", h.Activate)
	g.POST("/password/forgot", h.ForgotPassword)
	g.POST("/password/reset", h.ResetPassword)
	g.POST("/password/change", h.ChangePassword, guard)
}
