package transport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"stockcast/internal/modules/stream/domain"
	"stockcast/internal/modules/stream/infrastructure"
	"stockcast/internal/shared/auth"
)

// NewStreamHandler exposes GET /stream: a long-lived text/event-stream
// scoped to the resolved seller. The connection stays open until the client
// disconnects or the subscription is retired by the registry; both paths
// unregister exactly once.
func NewStreamHandler(registry *infrastructure.Registry, validator auth.TokenValidator) echo.HandlerFunc {
	return func(c echo.Context) error {
		sellerID, err := auth.ResolveSellerID(c.Request(), validator)
		if err != nil {
			return sellerError(err)
		}

		resp := c.Response()

		// Probe flusher support before committing the header, otherwise the
		// failure status could never reach the client.
		streamTransport, err := infrastructure.NewSSETransport(resp.Writer)
		if err != nil {
			slog.Error("stream transport setup failed", slog.String("sellerId", sellerID), slog.Any("error", err))
			return echo.NewHTTPError(http.StatusInternalServerError, "streaming unsupported")
		}

		header := resp.Header()
		header.Set(echo.HeaderContentType, "text/event-stream")
		header.Set("Cache-Control", "no-cache")
		header.Set("Connection", "keep-alive")
		header.Set("X-Accel-Buffering", "no")
		resp.WriteHeader(http.StatusOK)

		sub := registry.Register(sellerID, streamTransport)
		defer registry.Unregister(sub)

		if err := sub.Send(domain.ConnectedFrame(sellerID, time.Now())); err != nil {
			slog.Warn("stream ack write failed", slog.String("sellerId", sellerID), slog.Any("error", err))
			return nil
		}

		slog.Info("stream connected",
			slog.Int64("subscriptionId", sub.ID()),
			slog.String("sellerId", sellerID),
			slog.String("ip", c.RealIP()))

		select {
		case <-c.Request().Context().Done():
		case <-sub.Done():
		}
		return nil
	}
}

func sellerError(err error) error {
	switch {
	case err == nil:
		return nil
	case isAuthError(err):
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid or missing token")
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "missing seller id")
	}
}
