// Package sse decodes text/event-stream bodies into events.
package sse

import (
	"bufio"
	"errors"
	"io"
	"strings"

	"github.com/tidwall/gjson"
)

// DoneMarker terminates OpenAI-style streams.
const DoneMarker = "[DONE]"

const maxLineSize = 10 * 1024 * 1024

var ErrInvalidJSON = errors.New("sse: payload is not valid JSON")

// Event is one data line of the stream together with the name set by the
// preceding event: line, if any.
type Event struct {
	Name string
	Data string
}

// JSON parses the payload, failing when it is not a single valid JSON value.
func (e Event) JSON() (gjson.Result, error) {
	if !gjson.Valid(e.Data) {
		return gjson.Result{}, ErrInvalidJSON
	}
	return gjson.Parse(e.Data), nil
}

// Decoder reads events from an event-stream body.
type Decoder struct {
	scanner *bufio.Scanner
	name    string
	done    bool
}

// NewDecoder creates a decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return &Decoder{scanner: s}
}

// Next returns the next data event. It returns io.EOF at the end of input or
// after a [DONE] payload.
func (d *Decoder) Next() (Event, error) {
	if d.done {
		return Event{}, io.EOF
	}
	for d.scanner.Scan() {
		line := strings.TrimRight(d.scanner.Text(), "\r")
		switch {
		case line == "":
			continue
		case strings.HasPrefix(line, ":"):
			continue
		case strings.HasPrefix(line, "event:"):
			d.name = fieldValue(line, "event:")
		case strings.HasPrefix(line, "data:"):
			data := fieldValue(line, "data:")
			if data == DoneMarker {
				d.done = true
				return Event{}, io.EOF
			}
			ev := Event{Name: d.name, Data: data}
			d.name = ""
			return ev, nil
		}
	}
	d.done = true
	if err := d.scanner.Err(); err != nil {
		return Event{}, err
	}
	return Event{}, io.EOF
}

// NextData returns the payload of the next event.
func (d *Decoder) NextData() (string, error) {
	ev, err := d.Next()
	if err != nil {
		return "", err
	}
	return ev.Data, nil
}

// All drains the decoder.
func (d *Decoder) All() ([]Event, error) {
	var events []Event
	for {
		ev, err := d.Next()
		if errors.Is(err, io.EOF) {
			return events, nil
		}
		if err != nil {
			return events, err
		}
		events = append(events, ev)
	}
}

func fieldValue(line, prefix string) string {
	v := strings.TrimPrefix(line, prefix)
	return strings.TrimPrefix(v, " ")
}
