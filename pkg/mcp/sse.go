package mcp

import (
	"bufio"
	"io"
	"strings"
)

// SSEEvent is one parsed server-sent event.
type SSEEvent struct {
	Event string
	Data  string
}

// ParseSSEEvents reads server-sent events from r. Events are separated by
// blank lines; multi-line data fields are joined with "\n".
func ParseSSEEvents(r io.Reader) ([]SSEEvent, error) {
	var events []SSEEvent
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var current SSEEvent
	var dataLines []string
	flush := func() {
		if current.Event != "" || len(dataLines) > 0 {
			current.Data = strings.Join(dataLines, "\n")
			events = append(events, current)
		}
		current = SSEEvent{}
		dataLines = nil
	}

	for scanner.Scan() {
		line := strings.TrimSuffix(scanner.Text(), "\r")
		if line == "" {
			flush()
			continue
		}
		switch {
		case strings.HasPrefix(line, "event:"):
			current.Event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data := strings.TrimPrefix(line, "data:")
			dataLines = append(dataLines, strings.TrimPrefix(data, " "))
		}
		// id:, retry: and comments are ignored
	}
	if err := scanner.Err(); err != nil {
		return events, err
	}
	flush()
	return events, nil
}
