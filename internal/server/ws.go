package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"mattr/internal/session"
)

const (
	wsWriteWait = 10 * time.Second
	wsPongWait  = 60 * time.Second
	wsPingEvery = (wsPongWait * 9) / 10
)

// Rejection reasons sent to clients.
const (
	ReasonPending         = "pending"
	ReasonEmpty           = "empty"
	ReasonNoClarification = "no_clarification"
	ReasonUnknownTurn     = "unknown_turn"
	ReasonUnsupported     = "unsupported"
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     sameHost,
}

// wsInbound is a client message.
type wsInbound struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
	ID   string `json:"id,omitempty"`
}

// wsOutbound is a server message.
type wsOutbound struct {
	Type         string            `json:"type"`
	Conversation *session.Snapshot `json:"conversation,omitempty"`
	Reason       string            `json:"reason,omitempty"`
	Message      string            `json:"message,omitempty"`
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	if !s.admitClient() {
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return
	}
	defer s.clients.Done()

	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	remote := r.RemoteAddr
	s.audit.ClientConnect(remote)
	s.logger.Info("client connected", zap.String("remote", remote))

	ctx, cancel := context.WithCancel(s.ctx)
	defer cancel()

	// Closing the conn unblocks the read loop on shutdown
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	if err := conn.SetReadDeadline(time.Now().Add(wsPongWait)); err != nil {
		s.logger.Warn("websocket set read deadline failed", zap.Error(err))
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	writeCh := make(chan wsOutbound, 32)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		ticker := time.NewTicker(wsPingEvery)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case out := <-writeCh:
				if err := conn.SetWriteDeadline(time.Now().Add(wsWriteWait)); err != nil {
					return
				}
				if err := conn.WriteJSON(out); err != nil {
					return
				}
			case <-ticker.C:
				if err := conn.SetWriteDeadline(time.Now().Add(wsWriteWait)); err != nil {
					return
				}
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	// Register before the initial snapshot so no change falls in between
	stop := s.conv.Observe(func(snap session.Snapshot) {
		pushWS(writeCh, snapshotMsg(snap))
	})
	defer stop()
	pushWS(writeCh, snapshotMsg(s.conv.Snapshot()))

	readErr := s.readLoop(conn, writeCh)
	cancel()
	<-writerDone

	if isNormalClose(readErr) {
		readErr = nil
	}
	s.audit.ClientDisconnect(remote, readErr)
	s.logger.Info("client disconnected", zap.String("remote", remote), zap.Error(readErr))
}

// readLoop dispatches client messages until the connection fails.
func (s *Server) readLoop(conn *websocket.Conn, writeCh chan wsOutbound) error {
	for {
		var in wsInbound
		if err := conn.ReadJSON(&in); err != nil {
			return err
		}

		switch strings.ToLower(strings.TrimSpace(in.Type)) {
		case "ping":
			pushWS(writeCh, wsOutbound{Type: "pong"})

		case "send":
			if err := s.Submit(in.Text); err != nil {
				pushWS(writeCh, rejected(rejectionReason(err), err))
			}

		case "skip":
			if _, ok := s.conv.LastClarification(); !ok {
				pushWS(writeCh, wsOutbound{Type: "rejected", Reason: ReasonNoClarification})
				continue
			}
			if err := s.Submit(session.SkipClarificationText); err != nil {
				pushWS(writeCh, rejected(rejectionReason(err), err))
			}

		case "toggle":
			if !s.conv.ToggleExpand(in.ID) {
				pushWS(writeCh, wsOutbound{Type: "rejected", Reason: ReasonUnknownTurn, Message: in.ID})
			}

		default:
			pushWS(writeCh, wsOutbound{
				Type:    "rejected",
				Reason:  ReasonUnsupported,
				Message: "unsupported type: " + in.Type,
			})
		}
	}
}

func snapshotMsg(snap session.Snapshot) wsOutbound {
	return wsOutbound{Type: "snapshot", Conversation: &snap}
}

func rejected(reason string, err error) wsOutbound {
	return wsOutbound{Type: "rejected", Reason: reason, Message: err.Error()}
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, session.ErrPending):
		return ReasonPending
	case errors.Is(err, session.ErrEmptyInput):
		return ReasonEmpty
	default:
		return ReasonUnsupported
	}
}

// pushWS enqueues out without blocking, dropping the oldest queued message
// when the client is slow.
func pushWS(writeCh chan wsOutbound, out wsOutbound) {
	select {
	case writeCh <- out:
		return
	default:
	}
	select {
	case <-writeCh:
	default:
	}
	select {
	case writeCh <- out:
	default:
	}
}

func isNormalClose(err error) bool {
	return err == nil ||
		websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) ||
		errors.Is(err, net.ErrClosed)
}

// sameHost accepts browsers served by this server and non-browser clients.
func sameHost(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Host, r.Host)
}
