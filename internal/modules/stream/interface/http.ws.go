package transport

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"stockcast/internal/modules/stream/domain"
	"stockcast/internal/modules/stream/infrastructure"
	"stockcast/internal/shared/auth"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// NewNotificationsWSHandler exposes GET /ws/notifications, the websocket
// variant of the stream endpoint. Frames carry the same bodies as the event
// stream, wrapped in a JSON object.
func NewNotificationsWSHandler(registry *infrastructure.Registry, validator auth.TokenValidator) echo.HandlerFunc {
	return func(c echo.Context) error {
		sellerID, err := auth.ResolveSellerID(c.Request(), validator)
		if err != nil {
			return sellerError(err)
		}

		conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
		if err != nil {
			slog.Error("ws upgrade failed", slog.String("sellerId", sellerID), slog.Any("error", err))
			return err
		}

		sub := registry.Register(sellerID, infrastructure.NewWSTransport(conn))
		if err := sub.Send(domain.ConnectedFrame(sellerID, time.Now())); err != nil {
			slog.Warn("ws ack write failed", slog.String("sellerId", sellerID), slog.Any("error", err))
			registry.Unregister(sub)
			return nil
		}

		slog.Info("ws connected",
			slog.Int64("subscriptionId", sub.ID()),
			slog.String("sellerId", sellerID),
			slog.String("ip", c.RealIP()))

		// Inbound messages are discarded; the read loop only detects
		// disconnects.
		go func() {
			conn.SetReadLimit(1 << 16)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
						slog.Debug("ws read ended", slog.String("sellerId", sellerID), slog.Any("error", err))
					}
					registry.Unregister(sub)
					return
				}
			}
		}()
		return nil
	}
}

func isAuthError(err error) bool {
	return errors.Is(err, auth.ErrInvalidToken) || errors.Is(err, auth.ErrMissingToken)
}
