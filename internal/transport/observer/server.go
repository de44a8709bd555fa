package observer

import (
	"context"
	"encoding/json"
	"log"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"voxelight.ai/internal/events"
	"voxelight.ai/internal/observerproto"
	"voxelight.ai/internal/voxel"
)

type Info struct {
	Dims    voxel.Dims
	Palette []string
}

type session struct {
	id  string
	out chan []byte

	mu  sync.Mutex
	sub observerproto.SubscribeMsg
}

func (s *session) subscription() observerproto.SubscribeMsg {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sub
}

func (s *session) watches(k voxel.ChunkKey) (bool, bool) {
	sub := s.subscription()
	dx := int(k.CX) - int(sub.Center[0])
	dz := int(k.CZ) - int(sub.Center[1])
	r := sub.ChunkRadius
	return dx >= -r && dx <= r && dz >= -r && dz <= r, sub.Lights
}

// Server streams chunk lifecycle events to loopback websocket observers.
type Server struct {
	info Info
	log  *log.Logger

	upgrader websocket.Upgrader

	mu       sync.RWMutex
	sessions map[string]*session
}

func NewServer(info Info, logger *log.Logger) *Server {
	return &Server{
		info: info,
		log:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
		sessions: map[string]*session{},
	}
}

// Attach forwards every chunk event on bus to the sessions watching it.
func (s *Server) Attach(bus *events.Bus) {
	bus.ListenAll(s.Publish)
}

// Publish runs on the storage owner's goroutine: the chunk is read here and
// only encoded bytes cross to the writers. Slow sessions drop messages.
func (s *Server) Publish(k events.Kind, ch *voxel.Chunk) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.sessions) == 0 {
		return
	}
	var lights []byte
	for _, sess := range s.sessions {
		ok, withLights := sess.watches(ch.Key)
		if !ok {
			continue
		}
		msg := observerproto.ChunkEventMsg{
			Type:            "CHUNK_EVENT",
			ProtocolVersion: observerproto.Version,
			SessionID:       sess.id,
			Event:           k.String(),
			CX:              ch.Key.CX,
			CZ:              ch.Key.CZ,
			Ready:           ch.Ready(),
		}
		if withLights && k == events.ChunkLoaded {
			if lights == nil {
				lights = ch.Lightmap.Encode()
			}
			msg.Lights = lights
		}
		b, err := json.Marshal(msg)
		if err != nil {
			continue
		}
		select {
		case sess.out <- b:
		default:
		}
	}
}

func (s *Server) Sessions() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/observer/bootstrap", s.BootstrapHandler())
	mux.HandleFunc("/v1/observer/ws", s.WSHandler())
	return mux
}

func (s *Server) BootstrapHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		d := s.info.Dims
		resp := observerproto.BootstrapResponse{
			ProtocolVersion: observerproto.Version,
			ChunkSize:       [3]int{d.W, d.H, d.D},
			BlockPalette:    s.info.Palette,
		}
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(resp)
	}
}

func (s *Server) WSHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}

		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		// Handshake: must send SUBSCRIBE first.
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		sub, ok := parseSubscribe(msg)
		if !ok {
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected SUBSCRIBE"), time.Now().Add(time.Second))
			return
		}

		sess := &session{id: uuid.NewString(), out: make(chan []byte, 1024), sub: sub}
		s.mu.Lock()
		s.sessions[sess.id] = sess
		s.mu.Unlock()
		if s.log != nil {
			s.log.Printf("observer %s joined from %s", sess.id, r.RemoteAddr)
		}
		defer func() {
			s.mu.Lock()
			delete(s.sessions, sess.id)
			s.mu.Unlock()
		}()

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		// Writer goroutine.
		writeErr := make(chan error, 1)
		go func() {
			for {
				select {
				case <-ctx.Done():
					writeErr <- ctx.Err()
					return
				case b := <-sess.out:
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						writeErr <- err
						return
					}
				}
			}
		}()

		// Reader loop: allow SUBSCRIBE updates.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			if sub, ok := parseSubscribe(msg); ok {
				sess.mu.Lock()
				sess.sub = sub
				sess.mu.Unlock()
			}
		}

		cancel()
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))

		// Best-effort wait for the writer to stop so it doesn't outlive conn.
		select {
		case <-writeErr:
		case <-time.After(500 * time.Millisecond):
		}
	}
}

func parseSubscribe(msg []byte) (observerproto.SubscribeMsg, bool) {
	var sub observerproto.SubscribeMsg
	if err := json.Unmarshal(msg, &sub); err != nil {
		return sub, false
	}
	if sub.Type != "SUBSCRIBE" || sub.ProtocolVersion != observerproto.Version {
		return sub, false
	}
	normalizeSubscribe(&sub)
	return sub, true
}

func normalizeSubscribe(sub *observerproto.SubscribeMsg) {
	if sub.ChunkRadius <= 0 {
		sub.ChunkRadius = 6
	}
	if sub.ChunkRadius > 32 {
		sub.ChunkRadius = 32
	}
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
