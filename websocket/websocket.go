package websocket

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dropfour/connect_four/arena"
	"github.com/dropfour/connect_four/events"
	"github.com/dropfour/connect_four/utils"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true }, // Allow connections from any origin
}

// client adapts one gorilla connection to the arena.Conn interface.
// gorilla allows a single concurrent writer, so writes are serialized here;
// broadcasts from the arena and error replies from the read loop can both
// land on the same connection.
type client struct {
	id   string
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) ID() string {
	return c.id
}

func (c *client) Send(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v)
}

// Handler upgrades HTTP requests and pumps decoded frames into the arena.
type Handler struct {
	arena *arena.Arena
}

func NewHandler(a *arena.Arena) *Handler {
	return &Handler{arena: a}
}

func (h *Handler) Serve(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("WebSocket upgrade error")
		return
	}

	c := &client{id: utils.GenerateUUIDString(), conn: conn}
	log.Info().Str("connID", c.id).Str("remote", conn.RemoteAddr().String()).Msg("Client connected")

	defer func() {
		h.arena.HandleDisconnect(c)
		conn.Close()
		log.Info().Str("connID", c.id).Msg("Client disconnected")
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Error().Err(err).Str("connID", c.id).Msg("WebSocket closed unexpectedly")
			}
			return
		}

		msg, err := events.Decode(data)
		if err != nil {
			if sendErr := c.Send(events.NewError(err.Error())); sendErr != nil {
				return
			}
			continue
		}

		switch m := msg.(type) {
		case events.Join:
			h.arena.HandleJoin(c, m.Username, m.Identity)
		case events.MakeMove:
			h.arena.HandleMove(c, *m.Column)
		case events.Rejoin:
			h.arena.HandleRejoin(c, m.GameID, m.Identity)
		}
	}
}
