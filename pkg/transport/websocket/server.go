package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"boardcast/internal/auth"
	"boardcast/internal/logging"
	"boardcast/pkg/domain"
	"boardcast/pkg/hub"
	"boardcast/pkg/protocol"

	"github.com/gorilla/websocket"
	"github.com/rs/xid"
)

// ServerOptions represents websocket server options
type ServerOptions struct {
	ReadBufferSize  int
	WriteBufferSize int
	CheckOrigin     func(r *http.Request) bool
	Connection      ConnectionOptions
}

// DefaultServerOptions returns default server options
func DefaultServerOptions() ServerOptions {
	return ServerOptions{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return true // cross-origin allowed by default; restrict in production
		},
		Connection: DefaultConnectionOptions(),
	}
}

// Server upgrades authenticated HTTP requests to hub connections and runs
// them until the transport drops.
type Server struct {
	upgrader      websocket.Upgrader
	hub           *hub.Hub
	router        *protocol.Router
	authenticator auth.Authenticator
	logger        *logging.Logger
	options       ServerOptions
}

// NewServer creates a new websocket server
func NewServer(h *hub.Hub, router *protocol.Router, authenticator auth.Authenticator, logger *logging.Logger, options ServerOptions) *Server {
	return &Server{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  options.ReadBufferSize,
			WriteBufferSize: options.WriteBufferSize,
			CheckOrigin:     options.CheckOrigin,
		},
		hub:           h,
		router:        router,
		authenticator: authenticator,
		logger:        logger,
		options:       options,
	}
}

// ServeHTTP implements http.Handler. The bearer credential comes from the
// Authorization header or, for browser clients, the access_token query
// parameter; a connection without a resolvable identity is rejected before
// the upgrade.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := auth.BearerToken(r.Header.Get("Authorization"), r.URL.Query().Get("access_token"))

	identity, err := s.authenticator.Authenticate(r.Context(), token)
	if err != nil {
		s.logger.Warn("handshake rejected", "remote_addr", r.RemoteAddr, "error", err)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	wsConn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade error",
			"error", err,
			"remote_addr", r.RemoteAddr,
		)
		return
	}

	connID := xid.New().String()
	conn := NewConnection(connID, identity, wsConn, s.logger, s.options.Connection)

	conn.Receive(func(message []byte) error {
		return s.handleMessage(conn, message)
	})

	if err := s.hub.Register(conn); err != nil {
		conn.Close()
		return
	}

	conn.Start()

	s.logger.Info("client connected",
		"connection_id", connID,
		"user_id", identity.UserID,
		"remote_addr", r.RemoteAddr,
	)

	// Hold the handler until the transport drops, then clean up every
	// group membership the connection acquired.
	<-conn.Context().Done()
	conn.Wait()

	s.hub.OnDisconnect(connID)
}

// handleMessage parses one inbound frame and routes the invoke. Invoke
// failures are pushed back to the caller as Error events; they never tear
// the connection down.
func (s *Server) handleMessage(conn *Connection, message []byte) error {
	var msg domain.Message
	if err := json.Unmarshal(message, &msg); err != nil {
		s.logger.Warn("failed to unmarshal message",
			"connection_id", conn.ID(),
			"error", err,
		)
		s.pushError(conn, domain.NewDomainError(domain.ErrCodeInvalid, "malformed message", err))
		return nil
	}

	ctx, cancel := context.WithTimeout(conn.Context(), 30*time.Second)
	defer cancel()

	if err := s.router.Handle(ctx, conn, &msg); err != nil {
		s.pushError(conn, err)
	}
	return nil
}

func (s *Server) pushError(conn *Connection, err error) {
	event := domain.ErrorEvent{
		Code:    domain.ErrCodeInternal,
		Message: err.Error(),
	}

	var de *domain.DomainError
	if errors.As(err, &de) {
		event.Code = de.Code
		event.Message = de.Message
	}

	data, merr := json.Marshal(event)
	if merr != nil {
		return
	}
	raw, merr := json.Marshal(domain.Message{
		ID:        xid.New().String(),
		Type:      domain.MessageTypeError,
		Timestamp: time.Now(),
		Data:      data,
	})
	if merr != nil {
		return
	}

	ctx, cancel := context.WithTimeout(conn.Context(), 5*time.Second)
	defer cancel()

	if serr := conn.Send(ctx, raw); serr != nil {
		s.logger.Debug("failed to push error event", "connection_id", conn.ID(), "error", serr)
	}
}
