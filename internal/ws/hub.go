package ws

import (
	"encoding/json"
	"strconv"
	"sync"

	"github.com/gofiber/contrib/websocket"

	"github.com/docmindlabs/docmind/internal/telemetry"
)

var (
	mu    sync.RWMutex
	rooms = map[string]map[*websocket.Conn]struct{}{}
)

type Action string

const (
	ActionJoin  Action = "join"
	ActionLeave Action = "leave"
)

const RoomDoc = "doc.room"

type Event string

const (
	EventDocCreated    Event = "doc.event.created"
	EventDocClassified Event = "doc.event.classified"
	EventDocRunAdded   Event = "doc.event.run_added"
	EventDocCompleted  Event = "doc.event.completed"
	EventDocError      Event = "doc.event.error"
)

type PayloadEvent struct {
	Event    Event  `json:"event"`
	Provider string `json:"provider,omitempty"`
	Data     any    `json:"data,omitempty"`
}

type ClientMessage struct {
	Action Action `json:"action"`
	Room   string `json:"room"`
}

func HandleWS(c *websocket.Conn) {
	tlog := telemetry.L().With().Str("module", "ws").Logger()
	tlog.Info().Msg("ws_connected")
	defer func() {
		// cleanup on disconnect
		mu.Lock()
		for room := range rooms {
			delete(rooms[room], c)
		}
		mu.Unlock()
		_ = c.Close()
	}()

	for {
		_, msg, err := c.ReadMessage()
		if err != nil {
			break
		}

		var cm ClientMessage
		if err := json.Unmarshal(msg, &cm); err != nil {
			continue
		}

		switch cm.Action {
		case ActionJoin:
			joinRoom(c, cm.Room)
		case ActionLeave:
			leaveRoom(c, cm.Room)
		}
	}
}

func docRoom(docID int64) string {
	return RoomDoc + "." + strconv.FormatInt(docID, 10)
}

func joinRoom(c *websocket.Conn, room string) {
	if room == "" {
		return
	}
	mu.Lock()
	if rooms[room] == nil {
		rooms[room] = map[*websocket.Conn]struct{}{}
	}
	rooms[room][c] = struct{}{}
	mu.Unlock()
}

func leaveRoom(c *websocket.Conn, room string) {
	if room == "" {
		return
	}
	mu.Lock()
	delete(rooms[room], c)
	mu.Unlock()
}

func HasSubscribers(docID int64) bool {
	mu.RLock()
	defer mu.RUnlock()
	return len(rooms[docRoom(docID)]) > 0
}

// Broadcast sends one document event to every subscriber of its room.
func Broadcast(docID int64, event Event, provider string, data any) {
	pl := PayloadEvent{Event: event, Provider: provider, Data: data}

	mu.RLock()
	conns := rooms[docRoom(docID)]
	mu.RUnlock()

	for c := range conns {
		_ = c.WriteJSON(pl)
	}
}
