package events

import (
	"net/http"
	"sync"
	"time"

	"github.com/Voltaic314/GameLedger/code/notify"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// HandleWS streams change events as JSON text messages. The optional table
// query parameter limits the feed to one table. Clients only need to answer
// pings; anything they send is ignored.
func HandleWS(w http.ResponseWriter, r *http.Request, s Server) {
	logger := s.Logger().Named("ws")
	table := r.URL.Query().Get("table")

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("failed to upgrade", zap.Error(err))
		return
	}
	defer conn.Close()

	feed, unsubscribe := s.Hub().Subscribe(notify.DefaultBuffer)
	defer unsubscribe()
	logger.Debug("client connected", zap.String("remote", r.RemoteAddr), zap.String("table", table))

	var wg sync.WaitGroup
	gone := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(gone)
		readLoop(conn)
	}()

	writeLoop(conn, feed, gone, table, logger)
	// unblocks the reader
	conn.Close()
	wg.Wait()
	logger.Debug("client disconnected", zap.String("remote", r.RemoteAddr))
}

func readLoop(conn *websocket.Conn) {
	conn.SetReadLimit(4096)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func writeLoop(conn *websocket.Conn, feed <-chan notify.Event, gone <-chan struct{}, table string, logger *zap.Logger) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-gone:
			return
		case ev, ok := <-feed:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// hub closed, the server is shutting down
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
				return
			}
			if table != "" && ev.Table != table {
				continue
			}
			if err := conn.WriteJSON(ev); err != nil {
				logger.Debug("failed to write event", zap.Error(err))
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
