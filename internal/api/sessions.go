package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/asistentevial/eta-worker/internal/calculator"
	"github.com/asistentevial/eta-worker/internal/simulator"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type startSessionRequest struct {
	Origin      point `json:"origin"`
	Destination point `json:"destination"`
}

type listSessionsQuery struct {
	Status string `json:"status" validate:"omitempty,oneof=en_route arrived"`
}

// streamUpdate is one websocket frame. Only the first frame carries the
// route polyline.
type streamUpdate struct {
	SessionID         string                  `json:"session_id"`
	Unit              simulator.Unit          `json:"unit"`
	ETA               string                  `json:"eta"`
	RemainingDistance string                  `json:"remaining_distance"`
	Polyline          []calculator.Coordinate `json:"polyline,omitempty"`
}

func (h *Handler) handleStartSession(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	if !decode(w, r, &req) {
		return
	}

	snap, err := h.sessions.StartSession(r.Context(), req.Origin.coordinate(), req.Destination.coordinate())
	if err != nil {
		h.respondWithDomainError(w, err)
		return
	}

	respondWithSuccess(w, http.StatusCreated, "Unidad en camino", snap)
}

func (h *Handler) handleListSessions(w http.ResponseWriter, r *http.Request) {
	limit, offset, errs := pagination(r)

	q := listSessionsQuery{Status: r.URL.Query().Get("status")}
	if err := validate.Struct(q); err != nil {
		errs = append(errs, validationErrors(err)...)
	}
	if len(errs) > 0 {
		respondWithError(w, http.StatusBadRequest, "Validation failed", errs)
		return
	}

	sessions := h.sessions.ListSessions(simulator.Status(q.Status), limit, offset)
	respondWithSuccess(w, http.StatusOK, "Sesiones de asistencia", sessions)
}

func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	snap, err := h.sessions.GetSession(r.PathValue("id"))
	if err != nil {
		h.respondWithDomainError(w, err)
		return
	}
	respondWithSuccess(w, http.StatusOK, "Sesión de asistencia", snap)
}

func (h *Handler) handleCancelSession(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.CancelSession(r.PathValue("id")); err != nil {
		h.respondWithDomainError(w, err)
		return
	}
	respondWithSuccess(w, http.StatusOK, "Asistencia cancelada", nil)
}

// handleStream pushes the unit's snapshot on connect and after every tick.
// The socket closes normally once the unit arrives or the session ends.
func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	updates, unsubscribe, err := h.sessions.Subscribe(id)
	if err != nil {
		h.respondWithDomainError(w, err)
		return
	}
	defer unsubscribe()

	snap, err := h.sessions.GetSession(id)
	if err != nil {
		h.respondWithDomainError(w, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Str("session_id", id).Msg("Websocket upgrade failed")
		return
	}
	defer conn.Close()

	logger := h.logger.With().Str("session_id", id).Logger()
	logger.Debug().Msg("Stream opened")

	// the client never sends; reading only drives pongs and close detection
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	send := func(update streamUpdate) error {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteJSON(update)
	}

	first := newStreamUpdate(id, snap.Unit)
	first.Polyline = snap.Polyline
	if err := send(first); err != nil {
		return
	}
	if snap.Unit.Status == simulator.StatusArrived {
		closeNormally(conn, "arrived")
		return
	}

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		select {
		case u, ok := <-updates:
			if !ok {
				reason := "session ended"
				if last, err := h.sessions.GetSession(id); err == nil && last.Unit.Status == simulator.StatusArrived {
					reason = "arrived"
				}
				closeNormally(conn, reason)
				logger.Debug().Str("reason", reason).Msg("Stream closed")
				return
			}
			if err := send(newStreamUpdate(id, u)); err != nil {
				logger.Debug().Err(err).Msg("Stream write failed")
				return
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-closed:
			logger.Debug().Msg("Stream client disconnected")
			return
		case <-r.Context().Done():
			return
		}
	}
}

func newStreamUpdate(id string, u simulator.Unit) streamUpdate {
	return streamUpdate{
		SessionID:         id,
		Unit:              u,
		ETA:               calculator.FormatDuration(u.RemainingETASeconds),
		RemainingDistance: calculator.FormatDistanceKM(u.RemainingDistanceKM),
	}
}

func closeNormally(conn *websocket.Conn, reason string) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
}
