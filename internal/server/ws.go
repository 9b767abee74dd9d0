package server

import (
	"context"
	"sync"
	"time"

	"github.com/amoylab/skirmish/internal/common/cnst"
	"github.com/amoylab/skirmish/internal/common/config"
	"github.com/amoylab/skirmish/internal/common/errorx"
	"github.com/amoylab/skirmish/internal/registry"
	"github.com/amoylab/skirmish/pkg/trace"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// wsConn is one upgraded client socket. The handler goroutine reads, a
// second goroutine drains the outbox, a third sends pings.
type wsConn struct {
	id     string
	conn   *websocket.Conn
	outbox *registry.Outbox
	cfg    config.WebSocketConfig
	logger *zap.Logger
	once   sync.Once
}

func (s *Server) handleWebSocket(c *gin.Context) {
	if !s.admitConn() {
		s.errs.HandleError(c, errorx.ErrServiceUnavailable)
		return
	}
	defer s.conns.Done()

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// the upgrader has already written the error response
		s.logger.Warn("failed to upgrade connection",
			zap.String("remote_addr", c.Request.RemoteAddr),
			zap.Error(err))
		return
	}

	id := uuid.NewString()
	ws := &wsConn{
		id:     id,
		conn:   conn,
		outbox: registry.NewOutbox(),
		cfg:    s.cfg.WebSocket,
		logger: s.logger.With(zap.String("connection_id", id)),
	}

	// the socket outlives the request context once hijacked
	ctx := context.WithoutCancel(c.Request.Context())
	scope := trace.Tracer(cnst.TraceServer).Start(ctx, cnst.SpanWSConnect).
		WithAttrs(
			attribute.String(cnst.AttrConnectionID, id),
			attribute.String(cnst.AttrClientAddr, c.Request.RemoteAddr),
		)
	defer scope.End()

	// the connection id is always the first frame
	ws.outbox.Push([]byte(id))
	s.deps.Registry.Register(id, ws.outbox)
	if s.deps.Metrics != nil {
		s.deps.Metrics.ConnOpened()
	}
	ws.logger.Info("client connected", zap.String("remote_addr", c.Request.RemoteAddr))

	writeCtx, cancel := context.WithCancel(scope.Ctx)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		ws.writeLoop(writeCtx)
	}()
	go ws.pingLoop(writeCtx)

	ws.readLoop()

	ws.once.Do(func() {
		if err := s.deps.Sessions.OnDisconnect(scope.Ctx, id); err != nil {
			ws.logger.Warn("disconnect cleanup failed", zap.Error(err))
		}
		s.deps.Registry.Unregister(id)
		if s.deps.Metrics != nil {
			s.deps.Metrics.ConnClosed()
		}
	})

	// Unregister closed the outbox, so the writer drains what is left and exits
	select {
	case <-writerDone:
	case <-time.After(ws.cfg.WriteTimeout):
	}
	cancel()
	_ = conn.Close()
	ws.logger.Info("client disconnected")
}

// readLoop returns once the peer closes or the connection fails
func (w *wsConn) readLoop() {
	w.conn.SetReadLimit(w.cfg.ReadLimit)
	_ = w.conn.SetReadDeadline(time.Now().Add(w.cfg.PongTimeout))
	w.conn.SetPongHandler(func(string) error {
		return w.conn.SetReadDeadline(time.Now().Add(w.cfg.PongTimeout))
	})

	for {
		mt, msg, err := w.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				w.logger.Warn("unexpected close", zap.Error(err))
			}
			return
		}
		_ = w.conn.SetReadDeadline(time.Now().Add(w.cfg.PongTimeout))
		if mt == websocket.TextMessage {
			w.logger.Debug("ignoring inbound message", zap.Int("size", len(msg)))
		}
	}
}

// writeLoop sends outbox messages in order until the outbox is closed and
// drained or a write fails
func (w *wsConn) writeLoop(ctx context.Context) {
	for {
		msg, ok := w.outbox.Pop(ctx)
		if !ok {
			deadline := time.Now().Add(w.cfg.WriteTimeout)
			_ = w.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
			return
		}
		_ = w.conn.SetWriteDeadline(time.Now().Add(w.cfg.WriteTimeout))
		if err := w.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			w.logger.Debug("write failed", zap.Error(err))
			// unblocks the reader so cleanup runs
			_ = w.conn.Close()
			return
		}
	}
}

func (w *wsConn) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deadline := time.Now().Add(w.cfg.WriteTimeout)
			if err := w.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				w.logger.Debug("ping failed", zap.Error(err))
				return
			}
		}
	}
}
