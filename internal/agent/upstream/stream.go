package upstream

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/cmlabs-hris/hris-sync/internal/domain/conflict"
	"github.com/cmlabs-hris/hris-sync/internal/domain/offline"
)

// ErrStreamClosed is returned when the server ends the conflict stream.
var ErrStreamClosed = errors.New("conflict stream closed by server")

const maxEventSize = 1 << 20

// StreamConflicts opens the collaboration stream and calls fn for each
// conflict event until ctx is cancelled or the connection drops.
func (c *Client) StreamConflicts(ctx context.Context, fn func(conflict.StreamEvent)) error {
	token, err := c.SSEToken(ctx)
	if err != nil {
		return fmt.Errorf("get sse token: %w", err)
	}

	target := c.baseURL + "/api/v1/collab/stream?" + url.Values{"token": {token.Token}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.stream.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%w: %w", offline.ErrOffline, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &APIError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	}

	err = readEvents(resp.Body, func(name string, data []byte) {
		ev, ok, err := decodeEvent(name, data)
		if err != nil {
			c.logger.Warn("Dropping malformed stream event", "event", name, "error", err)
			return
		}
		if ok {
			fn(ev)
		}
	})
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if err != nil {
		return err
	}
	return ErrStreamClosed
}

// decodeEvent maps a wire event to a StreamEvent. Keepalives and unknown
// events are skipped.
func decodeEvent(name string, data []byte) (conflict.StreamEvent, bool, error) {
	ev := conflict.StreamEvent{Name: name}

	switch name {
	case conflict.StreamEventConflict:
		if err := json.Unmarshal(data, &ev.Record); err != nil {
			return ev, false, err
		}
		if ev.Record.ID == "" {
			return ev, false, errors.New("conflict event without id")
		}
	case conflict.StreamEventResolved, conflict.StreamEventExpired:
		if err := json.Unmarshal(data, &ev.Command); err != nil {
			return ev, false, err
		}
		if ev.Command.ConflictID == "" {
			return ev, false, fmt.Errorf("%s event without conflict id", name)
		}
	default:
		return ev, false, nil
	}
	return ev, true, nil
}

// readEvents parses text/event-stream framing and calls fn once per
// dispatched event. It returns nil at EOF.
func readEvents(r io.Reader, fn func(name string, data []byte)) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), maxEventSize)

	var (
		name string
		data strings.Builder
	)
	dispatch := func() {
		if name == "" && data.Len() == 0 {
			return
		}
		if name == "" {
			name = "message"
		}
		fn(name, []byte(data.String()))
		name = ""
		data.Reset()
	}

	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			dispatch()
		case strings.HasPrefix(line, ":"):
			// comment
		default:
			field, value, _ := strings.Cut(line, ":")
			value = strings.TrimPrefix(value, " ")
			switch field {
			case "event":
				name = value
			case "data":
				if data.Len() > 0 {
					data.WriteByte('\n')
				}
				data.WriteString(value)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read stream: %w", err)
	}
	return nil
}
