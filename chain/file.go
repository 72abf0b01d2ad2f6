package chain

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"logbook/core/events"
	"logbook/core/projection"
	"logbook/core/types"
)

const maxLineBytes = 4 << 20

// FileSource replays a JSON Lines file of event envelopes. The whole file is
// delivered as one batch.
type FileSource struct {
	events    []events.LogEvent
	delivered bool
}

// OpenFileSource parses path eagerly so malformed files fail before any event
// is applied.
func OpenFileSource(path string) (*FileSource, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, fmt.Errorf("event file path required")
	}
	f, err := os.Open(filepath.Clean(trimmed))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	evts, err := ReadEvents(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", trimmed, err)
	}
	return &FileSource{events: evts}, nil
}

// ReadEvents decodes one envelope per non-empty line.
func ReadEvents(r io.Reader) ([]events.LogEvent, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	var out []events.LogEvent
	line := 0
	for scanner.Scan() {
		line++
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" {
			continue
		}
		var envelope types.Event
		if err := json.Unmarshal([]byte(raw), &envelope); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		evt, err := events.FromWire(&envelope)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, evt)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// WriteEvents encodes evts as JSON Lines envelopes.
func WriteEvents(w io.Writer, evts []events.LogEvent) error {
	enc := json.NewEncoder(w)
	for _, evt := range evts {
		if err := enc.Encode(evt.Event()); err != nil {
			return err
		}
	}
	return nil
}

// Fetch returns every event at or after from, then reports the source drained.
func (f *FileSource) Fetch(_ context.Context, from uint64) (projection.Batch, error) {
	if f.delivered {
		return projection.Batch{}, projection.ErrSourceDrained
	}
	f.delivered = true
	batch := projection.Batch{}
	for _, evt := range f.events {
		block := evt.Metadata().BlockNumber
		if block < from {
			continue
		}
		batch.Events = append(batch.Events, evt)
		batch.Through = max(batch.Through, block)
	}
	if len(batch.Events) == 0 {
		return projection.Batch{}, projection.ErrSourceDrained
	}
	return batch, nil
}
