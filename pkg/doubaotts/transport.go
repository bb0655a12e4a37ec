package doubaotts

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Conn is the message-oriented connection the client drives. *websocket.Conn
// satisfies it.
//
// WriteMessage is only called with sendMu held and ReadMessage only from the
// receive goroutine; Close may be called concurrently with ReadMessage and
// must unblock it.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	ReadMessage() (messageType int, p []byte, err error)
	Close() error
}

// Dialer opens a connection to the service.
type Dialer func(ctx context.Context) (Conn, error)

// Message types as used by Conn, matching RFC 6455 opcodes.
const (
	TextMessage   = websocket.TextMessage
	BinaryMessage = websocket.BinaryMessage
)

// WebSocketDialer returns the Dialer NewClient uses by default. Only the
// endpoint, credential and read-limit options apply. Each dial sends the
// X-Api-* authentication headers and a fresh X-Api-Connect-Id.
//
// It lets a WithDialer implementation wrap the default:
//
//	base := doubaotts.WebSocketDialer(appID, doubaotts.WithAccessKey(token))
//	client := doubaotts.NewClient(appID,
//	    doubaotts.WithAccessKey(token),
//	    doubaotts.WithDialer(func(ctx context.Context) (doubaotts.Conn, error) {
//	        log.Println("dialing")
//	        return base(ctx)
//	    }),
//	)
func WebSocketDialer(appID string, opts ...Option) Dialer {
	return newClientConfig(appID, opts).websocketDialer()
}

func (cfg *clientConfig) websocketDialer() Dialer {
	return func(ctx context.Context) (Conn, error) {
		dialer := *websocket.DefaultDialer
		conn, resp, err := dialer.DialContext(ctx, cfg.url, cfg.headers(uuid.NewString()))
		if err != nil {
			if resp != nil {
				body, _ := io.ReadAll(resp.Body)
				resp.Body.Close()
				return nil, fmt.Errorf("websocket connect failed: %w, status=%s, body=%s", err, resp.Status, string(body))
			}
			return nil, fmt.Errorf("websocket connect failed: %w", err)
		}
		if cfg.readLimit > 0 {
			conn.SetReadLimit(cfg.readLimit)
		}
		return conn, nil
	}
}

// headers returns the V3 authentication headers.
//
//   - X-Api-App-Key: AppID
//   - X-Api-Access-Key: access token
//   - X-Api-Resource-Id: resource id (e.g. volc.service_type.10029)
//   - X-Api-Connect-Id: connection id
func (c *clientConfig) headers(connectID string) http.Header {
	h := http.Header{}
	if c.appID != "" {
		h.Set("X-Api-App-Key", c.appID)
	}
	if c.accessKey != "" {
		h.Set("X-Api-Access-Key", c.accessKey)
	}
	if c.resourceID != "" {
		h.Set("X-Api-Resource-Id", c.resourceID)
	}
	if connectID != "" {
		h.Set("X-Api-Connect-Id", connectID)
	}
	return h
}
