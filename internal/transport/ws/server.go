package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"pixellobby.dev/internal/protocol"
	"pixellobby.dev/internal/sim/room"
)

type Options struct {
	// FramesPerSec caps raw inbound frames per connection before they are
	// decoded. Zero disables the guard; the room still rate limits messages.
	FramesPerSec int
	// OutQueue is the per-session STATE buffer; the room evicts the oldest.
	OutQueue int
	// ChatQueue is the per-session CHAT buffer; the room never evicts it.
	ChatQueue int
}

type Server struct {
	room *room.Room
	log  *log.Logger
	opts Options

	upgrader websocket.Upgrader
}

func NewServer(r *room.Room, logger *log.Logger, opts Options) *Server {
	if opts.OutQueue <= 0 {
		opts.OutQueue = 16
	}
	if opts.ChatQueue <= 0 {
		opts.ChatQueue = 64
	}
	s := &Server{
		room: r,
		log:  logger,
		opts: opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
	return s
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		sessionID, out, chat := s.handshake(conn)
		if sessionID == "" {
			return
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Writer goroutine.
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case <-s.room.Done():
					_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "room closed"), time.Now().Add(time.Second))
					_ = conn.Close()
					return
				case b := <-chat:
					if !writeFrame(conn, b) {
						cancel()
						return
					}
				case b := <-out:
					if !writeFrame(conn, b) {
						cancel()
						return
					}
				}
			}
		}()

		var frames *rate.Limiter
		if s.opts.FramesPerSec > 0 {
			frames = rate.NewLimiter(rate.Limit(s.opts.FramesPerSec), s.opts.FramesPerSec)
		}
		dropped := 0

		// Reader loop.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				cancel()
				break
			}
			if frames != nil && !frames.Allow() {
				if dropped == 0 && s.log != nil {
					s.log.Printf("session=%s frame flood, dropping", sessionID)
				}
				dropped++
				continue
			}
			if !s.dispatch(ctx, sessionID, msg, out) {
				break
			}
		}

		// Cleanup.
		select {
		case s.room.Leave() <- sessionID:
		case <-s.room.Done():
		}
	}
}

// dispatch routes one client frame. It returns false once the room is gone.
func (s *Server) dispatch(ctx context.Context, sessionID string, msg []byte, out chan []byte) bool {
	base, err := protocol.DecodeBase(msg)
	if err != nil {
		return true
	}
	env := room.Envelope{SessionID: sessionID}
	switch base.Type {
	case protocol.TypeInput:
		var in protocol.InputMsg
		if err := json.Unmarshal(msg, &in); err != nil {
			return true
		}
		env.Input = &in
	case protocol.TypeChat:
		var chat protocol.ChatMsg
		if err := json.Unmarshal(msg, &chat); err != nil {
			return true
		}
		env.Chat = &chat
	case protocol.TypePing:
		var ping protocol.PingMsg
		if err := json.Unmarshal(msg, &ping); err != nil {
			return true
		}
		b, err := json.Marshal(protocol.PongMsg{Type: protocol.TypePong, Seq: ping.Seq})
		if err != nil {
			return true
		}
		select {
		case out <- b:
		default:
		}
		return true
	default:
		return true
	}
	select {
	case s.room.Inbox() <- env:
		return true
	case <-s.room.Done():
		return false
	case <-ctx.Done():
		return false
	}
}

func writeFrame(conn *websocket.Conn, b []byte) bool {
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
		_ = conn.Close()
		return false
	}
	return true
}

func (s *Server) handshake(conn *websocket.Conn) (sessionID string, out, chat chan []byte) {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return "", nil, nil
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeJoin {
		_ = writeError(conn, protocol.ErrProtoBadRequest, "expected JOIN")
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected JOIN"), time.Now().Add(time.Second))
		return "", nil, nil
	}
	var join protocol.JoinMsg
	if err := json.Unmarshal(msg, &join); err != nil {
		_ = writeError(conn, protocol.ErrProtoBadRequest, "bad JOIN")
		return "", nil, nil
	}

	out = make(chan []byte, s.opts.OutQueue)
	chat = make(chan []byte, s.opts.ChatQueue)
	respCh := make(chan room.JoinResponse, 1)
	select {
	case s.room.Join() <- room.JoinRequest{Name: join.Name, Avatar: join.Avatar, Out: out, Chat: chat, Resp: respCh}:
	case <-s.room.Done():
		_ = writeError(conn, protocol.ErrRoomClosed, "room closed")
		return "", nil, nil
	}
	var resp room.JoinResponse
	select {
	case resp = <-respCh:
	case <-s.room.Done():
		_ = writeError(conn, protocol.ErrRoomClosed, "room closed")
		return "", nil, nil
	}
	if resp.Err != "" {
		_ = writeError(conn, resp.Err, "join refused")
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseTryAgainLater, resp.Err), time.Now().Add(time.Second))
		return "", nil, nil
	}

	if err := writeJSON(conn, resp.Welcome); err != nil {
		select {
		case s.room.Leave() <- resp.SessionID:
		case <-s.room.Done():
		}
		return "", nil, nil
	}
	if s.log != nil {
		s.log.Printf("session=%s joined from %s", resp.SessionID, conn.RemoteAddr())
	}
	return resp.SessionID, out, chat
}

func writeError(conn *websocket.Conn, code, message string) error {
	return writeJSON(conn, protocol.ErrorMsg{Type: protocol.TypeError, Code: code, Message: message})
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}
