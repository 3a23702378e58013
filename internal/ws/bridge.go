package ws

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/imageforge/internal/model"
)

const (
	// idleTimeout closes connections with no client traffic. The
	// dashboard client heartbeats every 15s, so this allows several
	// missed beats.
	idleTimeout = 90 * time.Second

	// tokenTTL is how long a reconnect token stays valid after its
	// connection dropped.
	tokenTTL = 2 * time.Minute

	writeTimeout = 10 * time.Second
)

// broadcaster attaches to the progress stream of one job.
type broadcaster interface {
	Subscribe(jobID uuid.UUID) (<-chan model.ProgressEvent, func())
}

// Bridge upgrades dashboard connections and forwards per-job broadcast
// events over the live subscription protocol. It mints one reconnect
// token per session; a dropped client may present it to resume without
// re-announcing.
type Bridge struct {
	upgrader    websocket.Upgrader
	broadcaster broadcaster

	mu     sync.Mutex
	tokens map[string]tokenEntry
}

type tokenEntry struct {
	jobID   uuid.UUID
	expires time.Time
}

// NewBridge creates a Bridge over the given broadcaster.
func NewBridge(b broadcaster) *Bridge {
	return &Bridge{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// the dashboard is served from a different origin
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		broadcaster: b,
		tokens:      make(map[string]tokenEntry),
	}
}

// Serve upgrades the request and runs the session until the client
// disconnects or the job's stream is retired.
func (b *Bridge) Serve(w http.ResponseWriter, r *http.Request, jobID uuid.UUID) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		zlog.Logger.Err(err).Msg("websocket upgrade failed")
		return
	}

	s := &session{conn: conn}
	defer conn.Close()

	token := uuid.NewString()
	b.storeToken(token, jobID)

	if err := s.send(model.LiveMessage{
		Type:  model.LiveConnected,
		Token: token,
		JobID: jobID.String(),
	}); err != nil {
		return
	}

	events, cancel := b.broadcaster.Subscribe(jobID)
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		b.readLoop(s, jobID)
	}()

	for {
		select {
		case evt, ok := <-events:
			if !ok {
				// stream retired
				return
			}
			if err := s.send(eventMessage(evt)); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

// readLoop consumes client messages: heartbeats and reconnect requests.
func (b *Bridge) readLoop(s *session, jobID uuid.UUID) {
	for {
		_ = s.conn.SetReadDeadline(time.Now().Add(idleTimeout))

		var msg model.LiveMessage
		if err := s.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				zlog.Logger.Err(err).Msg("websocket read failed")
			}
			return
		}

		switch msg.Type {
		case model.LivePing:
			if err := s.send(model.LiveMessage{Type: model.LivePong}); err != nil {
				return
			}
		case model.LiveReconnect:
			reply := model.LiveMessage{Type: model.LiveError, Error: "unknown reconnect token"}
			if b.resumeToken(msg.Token, jobID) {
				reply = model.LiveMessage{Type: model.LiveReconnected, Token: msg.Token, JobID: jobID.String()}
			}
			if err := s.send(reply); err != nil {
				return
			}
		default:
			zlog.Logger.Warn().Str("type", msg.Type).Msg("unrecognized live message")
		}
	}
}

func (b *Bridge) storeToken(token string, jobID uuid.UUID) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.tokens[token] = tokenEntry{jobID: jobID, expires: time.Now().Add(tokenTTL)}

	for t, entry := range b.tokens {
		if time.Now().After(entry.expires) {
			delete(b.tokens, t)
		}
	}
}

// resumeToken validates a presented token against the session's job and
// extends its lifetime.
func (b *Bridge) resumeToken(token string, jobID uuid.UUID) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	entry, ok := b.tokens[token]
	if !ok || entry.jobID != jobID || time.Now().After(entry.expires) {
		return false
	}

	entry.expires = time.Now().Add(tokenTTL)
	b.tokens[token] = entry
	return true
}

// eventMessage maps a broadcast event onto the wire format. Completions
// always carry the explicit download kind: archive production is the
// download pipeline from the dashboard's point of view.
func eventMessage(evt model.ProgressEvent) model.LiveMessage {
	switch {
	case evt.Error != "":
		return model.LiveMessage{
			Type:  model.LiveError,
			JobID: evt.JobID.String(),
			Error: evt.Error,
		}
	case evt.Complete:
		return model.LiveMessage{
			Type:       model.LiveComplete,
			JobID:      evt.JobID.String(),
			Kind:       model.CompletionDownload,
			Progress:   evt.Progress,
			OutputPath: evt.OutputPath,
		}
	default:
		return model.LiveMessage{
			Type:     model.LiveProgress,
			JobID:    evt.JobID.String(),
			Progress: evt.Progress,
			Message:  evt.Message,
		}
	}
}

// session serializes writes to one websocket connection.
type session struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *session) send(msg model.LiveMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_ = s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return s.conn.WriteJSON(msg)
}
