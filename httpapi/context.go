package httpapi

import (
	siteAuth "github.com/MrEthical07/siteAuth"
	"github.com/labstack/echo/v4"
)

// clientContext copies the caller's IP and user agent into the request
// context, where the engine reads them for device trust, throttling and audit.
// The IP comes from echo's RealIP, so configure e.IPExtractor behind a proxy.
func (h *Handler) clientContext(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := c.Request()
		ctx := siteAuth.WithClientIP(req.Context(), c.RealIP())
		ctx = siteAuth.WithUserAgent(ctx, req.UserAgent())
		c.SetRequest(req.WithContext(ctx))
		return next(c)
	}
}
