package session

import (
	"context"
	"encoding/json"
	"time"

	"github.com/coder/websocket"

	"github.com/gaspardpetit/wsbridge/internal/logx"
)

// connSender writes JSON frames to a websocket connection.
type connSender struct {
	conn    *websocket.Conn
	timeout time.Duration
}

func (s *connSender) Send(ctx context.Context, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	logx.Log.Debug().RawJSON("frame", b).Msg("sending")
	wctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.conn.Write(wctx, websocket.MessageText, b)
}
