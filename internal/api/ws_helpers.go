package api

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"marknote/internal/logging"

	"github.com/gorilla/websocket"
)

const (
	wsBufferSize   = 1024
	wsWriteTimeout = 10 * time.Second
)

// wsStream copies Output to Conn as JSON.
type wsStream[T any] struct {
	Conn   *websocket.Conn
	Output <-chan T
}

// wsRejection is an HTTP error answered before the websocket upgrade.
type wsRejection struct {
	Status  int
	Message string
	Err     error
}

type wsWriter struct {
	stopOnce sync.Once
	done     chan struct{}
	exited   chan struct{}
}

// Stop ends the writer and waits for it to return.
func (writer *wsWriter) Stop() {
	writer.stopOnce.Do(func() {
		close(writer.done)
	})
	<-writer.exited
}

func requireWSToken(w http.ResponseWriter, r *http.Request, token string, logger *logging.Logger) bool {
	if validateToken(r, token) {
		return true
	}
	rejectWS(w, r, logger, wsRejection{Status: http.StatusUnauthorized, Message: "unauthorized"})
	return false
}

func upgradeWebSocket(w http.ResponseWriter, r *http.Request, allowedOrigins []string) (*websocket.Conn, error) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  wsBufferSize,
		WriteBufferSize: wsBufferSize,
		CheckOrigin: func(r *http.Request) bool {
			return isOriginAllowed(r, allowedOrigins)
		},
	}
	return upgrader.Upgrade(w, r, nil)
}

func startWSWriter[T any](stream wsStream[T]) *wsWriter {
	writer := &wsWriter{
		done:   make(chan struct{}),
		exited: make(chan struct{}),
	}
	go func() {
		defer close(writer.exited)
		for {
			select {
			case value, ok := <-stream.Output:
				if !ok {
					return
				}
				if err := stream.Conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout)); err != nil {
					return
				}
				if err := stream.Conn.WriteJSON(value); err != nil {
					return
				}
			case <-writer.done:
				return
			}
		}
	}()
	return writer
}

// drainWSReads blocks until the client goes away.
func drainWSReads(conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func rejectWS(w http.ResponseWriter, r *http.Request, logger *logging.Logger, rejection wsRejection) {
	logWSRejection(logger, r, rejection)
	http.Error(w, rejection.Message, rejection.Status)
}

func logWSRejection(logger *logging.Logger, r *http.Request, rejection wsRejection) {
	fields := map[string]string{
		logging.FieldCategory: "api",
		logging.FieldSource:   "backend",
		"path":                r.URL.Path,
		"status":              strconv.Itoa(rejection.Status),
		"remote_addr":         r.RemoteAddr,
	}
	if rejection.Err != nil {
		fields["error"] = rejection.Err.Error()
	}
	if rejection.Status >= http.StatusInternalServerError {
		logger.Error(rejection.Message, fields)
		return
	}
	logger.Warn(rejection.Message, fields)
}
