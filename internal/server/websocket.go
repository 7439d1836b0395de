package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/soundbridge/soundbridge/internal/logging"
	"github.com/soundbridge/soundbridge/internal/proxy"
	"go.uber.org/zap"
)

const (
	// notifyPort is the SoundTouch WebSocket notification port
	notifyPort = 8080

	// notifySubprotocol is required by the device's notification
	// endpoint; the handshake is rejected without it
	notifySubprotocol = "gabbo"

	// writeWait bounds a single relay write to the browser
	writeWait = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// Same policy as the HTTP surface: the relay is open to any origin.
	CheckOrigin: func(r *http.Request) bool { return true },
}

var notifyDialer = &websocket.Dialer{
	HandshakeTimeout: 10 * time.Second,
	Subprotocols:     []string{notifySubprotocol},
}

// handleEvents relays the device's push notification feed (volume,
// now-playing, preset changes) to a browser client, replacing
// /api/now_playing polling. Target resolution matches the proxy: an
// explicit ?device= query wins, otherwise the current selection.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	target := r.URL.Query().Get("device")
	if target == "" {
		target = s.state.CurrentIP()
	}
	if target == "" {
		proxy.WriteError(w, proxy.NewNoTargetError())
		return
	}

	deviceURL := fmt.Sprintf("ws://%s:%d/", target, notifyPort)
	deviceConn, _, err := notifyDialer.Dial(deviceURL, nil)
	if err != nil {
		proxy.SetCORSHeaders(w)
		http.Error(w, fmt.Sprintf("error connecting to SoundTouch notifications at %s", target), http.StatusBadGateway)
		return
	}
	defer func() { _ = deviceConn.Close() }()

	clientConn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		logging.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer func() { _ = clientConn.Close() }()

	logging.Info("notification relay open",
		zap.String("target", target),
		zap.String("client", r.RemoteAddr),
	)

	// The browser sends nothing meaningful; read it only to notice a
	// close and tear down the device side.
	clientClosed := make(chan struct{})
	go func() {
		defer close(clientClosed)
		for {
			if _, _, err := clientConn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	go func() {
		<-clientClosed
		_ = deviceConn.Close()
	}()

	for {
		msgType, message, err := deviceConn.ReadMessage()
		if err != nil {
			logging.Info("notification feed closed",
				zap.String("target", target),
				zap.Error(err),
			)
			_ = clientConn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "device feed closed"),
				time.Now().Add(writeWait))
			return
		}

		_ = clientConn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := clientConn.WriteMessage(msgType, message); err != nil {
			logging.Debug("relay client write failed", zap.Error(err))
			return
		}
	}
}
