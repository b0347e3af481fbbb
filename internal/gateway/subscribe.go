package gateway

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"

	"media-translator/internal/domain"
)

// Update is one message received on a push channel.
type Update struct {
	Snapshot domain.StatusSnapshot
	Err      error
}

// Subscribe opens the service WebSocket for jobID. The returned channel is
// closed when the service closes the socket, a terminal status arrives, or ctx ends.
func (c *Client) Subscribe(ctx context.Context, jobID string) (<-chan Update, error) {
	const op = "subscribe"

	target := *c.baseURL
	switch target.Scheme {
	case "https":
		target.Scheme = "wss"
	default:
		target.Scheme = "ws"
	}
	target.Path = strings.TrimRight(target.Path, "/") + "/ws/" + url.PathEscape(jobID)

	header := http.Header{}
	header.Set(requestIDHeader, c.newRequestID())
	if c.tokens != nil {
		token, err := c.tokens.Token()
		if err != nil {
			return nil, &Error{Op: op, Kind: KindForbidden, Detail: "issue service token", Err: err}
		}
		if token != "" {
			header.Set("Authorization", "Bearer "+token)
		}
	}

	dialCtx, cancel := context.WithTimeout(ctx, c.statusTimeout)
	defer cancel()

	conn, resp, err := websocket.DefaultDialer.DialContext(dialCtx, target.String(), header)
	if err != nil {
		if resp != nil {
			return nil, statusError(op, resp.StatusCode, "websocket handshake rejected")
		}
		return nil, transportError(op, err)
	}

	updates := make(chan Update, 4)
	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()
	go func() {
		defer close(updates)
		defer conn.Close()

		for {
			var payload statusPayload
			if err := conn.ReadJSON(&payload); err != nil {
				if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					return
				}
				var closeErr *websocket.CloseError
				if errors.As(err, &closeErr) {
					return
				}
				deliver(ctx, updates, Update{Err: transportError(op, err)})
				return
			}

			snapshot, detail, ok := payload.toSnapshot()
			if !ok {
				if !deliver(ctx, updates, Update{Err: malformed(op, detail, nil)}) {
					return
				}
				continue
			}
			if !deliver(ctx, updates, Update{Snapshot: snapshot}) {
				return
			}
			if snapshot.Status.IsTerminal() {
				return
			}
		}
	}()

	return updates, nil
}

func deliver(ctx context.Context, updates chan<- Update, update Update) bool {
	select {
	case updates <- update:
		return true
	case <-ctx.Done():
		return false
	}
}
