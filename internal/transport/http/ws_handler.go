package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	stdhttp "net/http"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/loopchat/loopchat-server/internal/auth"
	"github.com/loopchat/loopchat-server/internal/config"
	"github.com/loopchat/loopchat-server/internal/presence"
	"github.com/loopchat/loopchat-server/internal/proto"
	"github.com/loopchat/loopchat-server/internal/utils"
)

// errSessionBusy is returned by Push when a session's event buffer is
// full or the session has closed. Delivery to other sessions is not
// affected.
var errSessionBusy = errors.New("session buffer full or closed")

// wsSession is one live websocket connection registered with the
// presence registry. Push never blocks: events beyond the buffer
// capacity are dropped for this session only.
type wsSession struct {
	id     string
	userID int64

	events chan presence.Event

	closed    chan struct{}
	closeOnce sync.Once
}

func newWSSession(userID int64, buffer int) *wsSession {
	if buffer <= 0 {
		buffer = 1
	}
	return &wsSession{
		id:     utils.NewID(),
		userID: userID,
		events: make(chan presence.Event, buffer),
		closed: make(chan struct{}),
	}
}

func (s *wsSession) ID() string    { return s.id }
func (s *wsSession) UserID() int64 { return s.userID }

func (s *wsSession) Push(e presence.Event) error {
	select {
	case <-s.closed:
		return errSessionBusy
	default:
	}
	select {
	case s.events <- e:
		return nil
	default:
		return errSessionBusy
	}
}

func (s *wsSession) close() {
	s.closeOnce.Do(func() {
		close(s.closed)
	})
}

// WSHandler upgrades HTTP connections, authenticates them via the
// hello frame, and bridges them to the presence registry.
type WSHandler struct {
	auth     *auth.Service
	registry *presence.Registry
	cfg      config.Config
	log      *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(authService *auth.Service, registry *presence.Registry, cfg config.Config, logger *zerolog.Logger) stdhttp.Handler {
	return &WSHandler{
		auth:     authService,
		registry: registry,
		cfg:      cfg,
		log:      logger,
	}
}

func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	ctx := r.Context()

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "internal error")

	claims, err := h.handshake(ctx, conn)
	if err != nil {
		h.log.Warn().Err(err).Msg("ws handshake failed")
		conn.Close(websocket.StatusPolicyViolation, "handshake failed")
		return
	}

	session := newWSSession(claims.UserID, h.cfg.SessionBuffer)
	h.registry.Register(session)
	defer func() {
		session.close()
		h.registry.Deregister(session)
		h.broadcastOnlineUsers()
	}()

	// The ready event is the first frame after a successful handshake;
	// the presence broadcast follows it.
	if err := session.Push(presence.Event{Name: proto.EventReady, Data: map[string]any{
		"sessionId": session.ID(),
		"protocol":  proto.ProtocolVersion,
	}}); err != nil {
		h.log.Error().Err(err).Str("session_id", session.ID()).Msg("push ready event")
		return
	}
	h.broadcastOnlineUsers()

	h.log.Info().
		Str("session_id", session.ID()).
		Int64("user_id", session.UserID()).
		Str("username", claims.Username).
		Msg("ws session opened")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	limiter := newRateLimiter(h.cfg.WSRateLimit)
	limiter.startReset(session.closed)

	errCh := make(chan error, 2)
	go func() {
		errCh <- h.readLoop(ctx, conn, session, limiter)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, conn, session)
	}()

	err = <-errCh
	cancel() // stop the other goroutine
	<-errCh

	h.log.Info().
		Str("session_id", session.ID()).
		Int64("user_id", session.UserID()).
		Msg("ws session closed")

	status := websocket.StatusNormalClosure
	reason := "closing"
	if err != nil && !errors.Is(err, context.Canceled) {
		if errors.Is(err, io.EOF) {
			err = nil
		}
		if s := websocket.CloseStatus(err); s != 0 {
			status = s
		}
		if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
			err = nil
		}
		if err != nil {
			if status == websocket.StatusNormalClosure {
				status = websocket.StatusInternalError
			}
			reason = err.Error()
			h.log.Warn().Err(err).Str("session_id", session.ID()).Msg("ws connection closed with error")
		}
	}

	conn.Close(status, reason)
}

// handshake reads the hello frame and validates its token. The whole
// exchange must complete within the handshake timeout.
func (h *WSHandler) handshake(ctx context.Context, conn *websocket.Conn) (*auth.Claims, error) {
	ctx, cancel := context.WithTimeout(ctx, h.cfg.HandshakeTimeout)
	defer cancel()

	var inbound proto.Inbound
	if err := wsjson.Read(ctx, conn, &inbound); err != nil {
		return nil, fmt.Errorf("read hello frame: %w", err)
	}
	if inbound.Type != proto.InboundTypeHello {
		return nil, fmt.Errorf("expected hello frame, got %q", inbound.Type)
	}

	var hello proto.HelloData
	if err := json.Unmarshal(inbound.Data, &hello); err != nil {
		return nil, fmt.Errorf("decode hello data: %w", err)
	}
	if hello.Protocol != 0 && hello.Protocol != proto.ProtocolVersion {
		return nil, fmt.Errorf("unsupported protocol version %d", hello.Protocol)
	}

	claims, err := h.auth.ValidateToken(hello.Token)
	if err != nil {
		return nil, fmt.Errorf("validate token: %w", err)
	}
	return claims, nil
}

func (h *WSHandler) broadcastOnlineUsers() {
	payload := proto.OnlineUsersPayload{UserIDs: h.registry.Users()}
	if payload.UserIDs == nil {
		payload.UserIDs = []int64{}
	}
	event := presence.Event{Name: proto.EventOnlineUsers, Data: payload}
	for _, session := range h.registry.AllSessions() {
		if err := session.Push(event); err != nil {
			h.log.Warn().
				Str("session_id", session.ID()).
				Int64("user_id", session.UserID()).
				Msg("dropped online users event")
		}
	}
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, session *wsSession, limiter *rateLimiter) error {
	for {
		var inbound proto.Inbound
		if err := wsjson.Read(ctx, conn, &inbound); err != nil {
			return err
		}

		if !limiter.allow() {
			return writeProtoError(ctx, conn, "rate_limited", "too many frames")
		}

		switch inbound.Type {
		case proto.InboundTypePing:
			if err := session.Push(presence.Event{Name: proto.EventPong}); err != nil {
				h.log.Warn().Str("session_id", session.ID()).Msg("dropped pong")
			}
		case proto.InboundTypeHello:
			// Already authenticated.
			if err := wsjson.Write(ctx, conn, proto.Outbound{
				Type:  proto.OutboundTypeError,
				Error: &proto.Error{Code: "already_authenticated", Msg: "hello accepted once"},
			}); err != nil {
				return err
			}
		default:
			if err := wsjson.Write(ctx, conn, proto.Outbound{
				Type:  proto.OutboundTypeError,
				Error: &proto.Error{Code: "unknown_type", Msg: "unknown inbound frame type"},
			}); err != nil {
				return err
			}
		}
	}
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, session *wsSession) error {
	for {
		select {
		case event := <-session.events:
			out := proto.Outbound{
				Type:  proto.OutboundTypeEvent,
				Event: event.Name,
				Data:  event.Data,
			}
			if err := wsjson.Write(ctx, conn, out); err != nil {
				h.log.Error().Err(err).Str("session_id", session.ID()).Msg("write ws event")
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func writeProtoError(ctx context.Context, conn *websocket.Conn, code, msg string) error {
	if err := wsjson.Write(ctx, conn, proto.Outbound{
		Type:  proto.OutboundTypeError,
		Error: &proto.Error{Code: code, Msg: msg},
	}); err != nil {
		return err
	}
	return fmt.Errorf("protocol error: %s", code)
}
