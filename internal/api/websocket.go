package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/bbernstein/dmxnet-go/internal/services/node"
	"github.com/bbernstein/dmxnet-go/internal/services/pubsub"
	"github.com/bbernstein/dmxnet-go/pkg/artnet"
)

const (
	wsWriteWait    = 5 * time.Second
	wsPongWait     = 30 * time.Second
	wsPingInterval = 10 * time.Second
	wsQueueSize    = 64
)

type dmxMessage struct {
	Universe string `json:"universe"`
	Sequence int    `json:"sequence"`
	Source   string `json:"source"`
	Data     []int  `json:"data"`
}

// handleDMXStream streams every inbound ArtDMX frame as JSON. The optional
// ?universe=net:subnet:universe query restricts the stream to one address.
func (s *Server) handleDMXStream(w http.ResponseWriter, r *http.Request) {
	var filter *artnet.PortAddress
	if u := r.URL.Query().Get("universe"); u != "" {
		addr, err := artnet.ParsePortAddress(u)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		filter = &addr
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error
		return
	}
	defer func() { _ = conn.Close() }()

	bus := s.engine.Events()
	sub := bus.Subscribe(pubsub.TopicArtDMX, "", wsQueueSize)
	defer bus.Unsubscribe(sub)

	closed := make(chan struct{})
	go readPump(conn, closed)

	ping := time.NewTicker(wsPingInterval)
	defer ping.Stop()

	for {
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case msg, ok := <-sub.Channel:
			if !ok {
				return
			}
			ev, isDMX := msg.(node.DMXEvent)
			if !isDMX || (filter != nil && ev.PortAddress != *filter) {
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(dmxMessage{
				Universe: ev.Universe,
				Sequence: int(ev.Sequence),
				Source:   ev.Source,
				Data:     toInts(ev.Data),
			}); err != nil {
				s.logger.Printf("WebSocket write failed: %v", err)
				return
			}
		}
	}
}

// readPump discards client messages and signals when the peer goes away.
func readPump(conn *websocket.Conn, closed chan<- struct{}) {
	defer close(closed)

	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
