package realtime

import (
	"bufio"
	"context"
	"errors"
	"io"
	"strings"
)

const doneSentinel = "[DONE]"

// StreamResult is what a producer saw before the stream reached a terminal state.
type StreamResult struct {
	Chunks []string
	// Done is true when the stream ended cleanly ([DONE] or EOF).
	Done bool
	Err  error
}

// Pump decodes an upstream `data:` line stream and publishes it on the
// session's channel until [DONE], EOF or a read error. It never returns an
// error to the caller; failures are published as an error message and
// reported in the result.
func Pump(ctx context.Context, sessionID string, body io.Reader, pub Publisher) StreamResult {
	var res StreamResult
	fail := func(err error) StreamResult {
		res.Err = err
		pub.Publish(sessionID, Message{Type: MessageError, Error: err.Error()})
		return res
	}
	if body == nil {
		return fail(errors.New("empty upstream body"))
	}

	rd := bufio.NewReaderSize(body, 64*1024)
	for {
		if err := ctx.Err(); err != nil {
			return fail(err)
		}
		line, readErr := rd.ReadString('\n')
		if line != "" {
			payload, ok := dataPayload(line)
			if ok {
				if strings.TrimSpace(payload) == doneSentinel {
					res.Done = true
					pub.Publish(sessionID, Message{Type: MessageDone})
					return res
				}
				res.Chunks = append(res.Chunks, payload)
				pub.Publish(sessionID, Message{Type: MessageChunk, Data: payload})
			}
		}
		if readErr == nil {
			continue
		}
		if errors.Is(readErr, io.EOF) {
			if err := ctx.Err(); err != nil {
				return fail(err)
			}
			res.Done = true
			pub.Publish(sessionID, Message{Type: MessageDone})
			return res
		}
		return fail(readErr)
	}
}

// dataPayload extracts the value of a `data:` field, dropping the single
// optional space after the colon and the line terminator.
func dataPayload(line string) (string, bool) {
	line = strings.TrimRight(line, "\r\n")
	if !strings.HasPrefix(line, "data:") {
		return "", false
	}
	payload := strings.TrimPrefix(line, "data:")
	payload = strings.TrimPrefix(payload, " ")
	return payload, true
}
