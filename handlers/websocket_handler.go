package handlers

import (
	"net/http"

	"github.com/Dosada05/chess-clubs/brackets"
	"github.com/Dosada05/chess-clubs/services"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type WebSocketHandler struct {
	hub               *brackets.Hub
	tournamentService services.TournamentService
	upgrader          websocket.Upgrader
	logger            *zap.Logger
}

// NewWebSocketHandler accepts connections from the listed origins; "*" allows any.
func NewWebSocketHandler(hub *brackets.Hub, ts services.TournamentService, allowedOrigins []string, logger *zap.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		hub:               hub,
		tournamentService: ts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		logger: logger,
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, o := range allowed {
			if o == "*" || o == origin {
				return true
			}
		}
		return false
	}
}

// ServeWs подписывает клиента на события турнира: /ws/tournaments/{tournamentID}.
// Подписаться могут только участники клуба (не заявители).
func (h *WebSocketHandler) ServeWs(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	ids, ok := urlIDs(w, r, "tournamentID")
	if !ok {
		return
	}
	tournamentID := ids[0]

	actor, err := h.tournamentService.ActorFor(r.Context(), userID, tournamentID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if actor.IsApplicant() {
		forbiddenResponse(w, r, services.ErrForbiddenOperation.Error())
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade сам отправляет HTTP-ошибку клиенту.
		h.logger.Warn("websocket upgrade failed", zap.Int("tournament_id", tournamentID), zap.Error(err))
		return
	}

	client := brackets.NewClient(h.hub, conn, brackets.RoomForTournament(tournamentID))
	h.hub.Register(client)

	go client.WritePump()
	go client.ReadPump()

	h.logger.Debug("websocket client subscribed",
		zap.Int("tournament_id", tournamentID), zap.Int("user_id", userID))
}
