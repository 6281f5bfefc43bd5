package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"

	"chatline/internal/domain"
)

// maxRecordSize bounds a single stream line.
const maxRecordSize = 1024 * 1024

const opStream = "Client.Stream"

// wireRecord is one JSON payload of the chat stream.
type wireRecord struct {
	Response   *string         `json:"response"`
	IsFinished bool            `json:"is_finished"`
	SourceType *string         `json:"source_type"`
	Sources    []string        `json:"sources"`
	Error      json.RawMessage `json:"error"`
}

// decodeRecord converts one payload into stream events. An error field wins
// over everything else in the record. A record with both text and is_finished
// yields a fragment followed by the finished event.
func decodeRecord(data []byte) []domain.StreamEvent {
	if bytes.Equal(data, []byte("[DONE]")) {
		return []domain.StreamEvent{domain.FinishedEvent(domain.SourceNone, nil)}
	}

	var rec wireRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return []domain.StreamEvent{domain.ErrorEvent(
			domain.NewProtocolError(opStream, "malformed stream record: "+err.Error(), err))}
	}

	if msg, ok := remoteMessage(rec.Error); ok {
		return []domain.StreamEvent{domain.ErrorEvent(domain.NewRemoteError(opStream, msg))}
	}

	var events []domain.StreamEvent
	if rec.Response != nil {
		events = append(events, domain.FragmentEvent(*rec.Response))
	}
	if rec.IsFinished {
		var st domain.SourceType
		if rec.SourceType != nil {
			st = domain.SourceType(*rec.SourceType)
		}
		events = append(events, domain.FinishedEvent(st, rec.Sources))
	}
	if len(events) == 0 {
		return []domain.StreamEvent{domain.ErrorEvent(
			domain.NewProtocolError(opStream, "stream record has no response, is_finished or error field", nil))}
	}
	return events
}

// remoteMessage extracts the text of an error field. Absent and null fields
// report false; non-string values are returned as raw JSON.
func remoteMessage(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", false
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s, true
	}
	return string(raw), true
}

// recordPayload extracts the JSON payload of one line. SSE "data:" lines and
// bare NDJSON objects are accepted; blank lines, comments and the other SSE
// fields are skipped.
func recordPayload(line []byte) ([]byte, bool) {
	line = bytes.TrimRight(line, "\r")
	if len(line) == 0 || line[0] == ':' {
		return nil, false
	}
	if data, ok := bytes.CutPrefix(line, []byte("data:")); ok {
		data = bytes.TrimPrefix(data, []byte(" "))
		if len(bytes.TrimSpace(data)) == 0 {
			return nil, false
		}
		return data, true
	}
	trimmed := bytes.TrimSpace(line)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		return trimmed, true
	}
	// event:, id:, retry: and unknown fields.
	return nil, false
}

// parseStream reads records from body and emits them as events. The channel
// is closed after the first terminal event, when the body ends, or when ctx
// is cancelled; the body is always closed. A body that ends without a
// terminal event yields a transport error.
func parseStream(ctx context.Context, body io.ReadCloser) <-chan domain.StreamEvent {
	ch := make(chan domain.StreamEvent, 16)
	go func() {
		defer close(ch)
		defer body.Close()

		send := func(ev domain.StreamEvent) bool {
			select {
			case ch <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		}

		scanner := bufio.NewScanner(body)
		scanner.Buffer(make([]byte, 0, 64*1024), maxRecordSize)
		for scanner.Scan() {
			if ctx.Err() != nil {
				return
			}
			data, ok := recordPayload(scanner.Bytes())
			if !ok {
				continue
			}
			for _, ev := range decodeRecord(data) {
				if !send(ev) || ev.Terminal() {
					return
				}
			}
		}

		if ctx.Err() != nil {
			return
		}
		err := scanner.Err()
		if err == nil {
			err = io.ErrUnexpectedEOF
		}
		if errors.Is(err, bufio.ErrTooLong) {
			send(domain.ErrorEvent(domain.NewProtocolError(opStream, "stream record exceeds 1 MiB", err)))
			return
		}
		send(domain.ErrorEvent(&domain.StreamingError{
			Kind:    domain.ErrTransport,
			Op:      opStream,
			Message: "stream closed before completion: " + err.Error(),
			Err:     err,
		}))
	}()
	return ch
}
