package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"talentlink/internal/observability/logging"
	"talentlink/internal/realtime"
)

// serveWS upgrades first and checks the ticket second, so a bad ticket is
// reported with a dedicated close code rather than an HTTP error.
func (h *Handler) serveWS(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Debug("ws upgrade failed", slog.Any("err", err))
		return
	}

	pathID, perr := pathUserID(chi.URLParam(r, "user_id"))
	userID, ok := h.tickets.Redeem(r.Context(), r.URL.Query().Get("ticket"))
	if perr != nil || !ok || userID != pathID {
		log.Info("ws ticket rejected")
		realtime.Reject(conn, realtime.CloseInvalidTicket, "invalid ticket")
		return
	}

	realtime.NewClient(h.registry, conn, userID).Run(r.Context())
}
