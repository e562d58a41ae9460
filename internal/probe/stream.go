package probe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/websocket"

	"github.com/okian/pulsemap/internal/domain/dateseq"
	"github.com/okian/pulsemap/internal/domain/frame"
	"github.com/okian/pulsemap/internal/domain/playback"
)

// streamURL turns the HTTP base URL into the websocket endpoint.
func streamURL(baseURL string) string {
	switch {
	case strings.HasPrefix(baseURL, "https://"):
		return "wss://" + strings.TrimPrefix(baseURL, "https://") + "/stream"
	case strings.HasPrefix(baseURL, "http://"):
		return "ws://" + strings.TrimPrefix(baseURL, "http://") + "/stream"
	default:
		return baseURL + "/stream"
	}
}

// dialStream connects to /stream. The connection is established before
// playback starts so the watcher sees the whole run.
func dialStream(baseURL string) (*websocket.Conn, error) {
	ws, err := websocket.Dial(streamURL(baseURL), "", baseURL)
	if err != nil {
		return nil, fmt.Errorf("dial stream: %w", err)
	}
	return ws, nil
}

// watchStream collects frames whose snapshot version is above after until
// the final frame of a run arrives, the server hangs up or ctx ends.
// Older versions belong to an earlier run.
func watchStream(ctx context.Context, ws *websocket.Conn, after uint64, last dateseq.DateKey) streamResult {
	stop := context.AfterFunc(ctx, func() { _ = ws.Close() })
	defer stop()
	defer func() { _ = ws.Close() }()

	var res streamResult
	for {
		var f frame.Frame
		if err := websocket.JSON.Receive(ws, &f); err != nil {
			if !errors.Is(err, io.EOF) && ctx.Err() == nil {
				res.err = fmt.Errorf("receive frame: %w", err)
			}
			return res
		}
		if f.Version <= after {
			continue
		}
		res.frames = append(res.frames, f)
		if f.State == playback.Stopped && f.Date == last && f.Blend == FullBlend {
			return res
		}
	}
}
