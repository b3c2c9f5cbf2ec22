package httpclient

import (
	"bufio"
	"bytes"
	"io"
)

// SSEStream reads server-sent events off a response body. Heart-beat
// comment lines are skipped; the "[DONE]" sentinel used by several
// providers ends the stream.
type SSEStream struct {
	body   io.ReadCloser
	reader *bufio.Reader
	event  string
	data   []byte
	err    error
	done   bool
}

var doneSentinel = []byte("[DONE]")

func newSSEStream(body io.ReadCloser) *SSEStream {
	return &SSEStream{
		body: body,
		// Provider frames can exceed bufio's default line length.
		reader: bufio.NewReaderSize(body, 64*1024),
	}
}

// Next advances to the next event. It returns false at end of stream or
// on error; check Err afterwards.
func (s *SSEStream) Next() bool {
	if s.done {
		return false
	}
	s.event = ""
	s.data = nil

	var data bytes.Buffer
	for {
		line, err := s.reader.ReadBytes('\n')
		if len(line) == 0 && err != nil {
			if err != io.EOF {
				s.err = err
			}
			s.done = true
			// A dangling frame without its blank-line terminator still
			// counts at EOF.
			if data.Len() > 0 {
				s.data = data.Bytes()
				return s.err == nil
			}
			return false
		}

		line = bytes.TrimRight(line, "\r\n")
		switch {
		case len(line) == 0:
			// Blank line terminates a frame; skip frames with no data
			// (heart-beats, comment-only).
			if data.Len() > 0 {
				s.data = data.Bytes()
				if bytes.Equal(bytes.TrimSpace(s.data), doneSentinel) {
					s.done = true
					return false
				}
				return true
			}
		case bytes.HasPrefix(line, []byte(":")):
			// Comment line, used as keep-alive by some providers.
		case bytes.HasPrefix(line, []byte("event:")):
			s.event = string(bytes.TrimSpace(line[len("event:"):]))
		case bytes.HasPrefix(line, []byte("data:")):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.Write(bytes.TrimSpace(line[len("data:"):]))
		}
	}
}

// Event returns the event name of the current frame, empty when the
// provider only sends data lines.
func (s *SSEStream) Event() string {
	return s.event
}

// Data returns the data payload of the current frame.
func (s *SSEStream) Data() []byte {
	return s.data
}

// Err returns the first read error, nil on clean termination.
func (s *SSEStream) Err() error {
	return s.err
}

// Close releases the underlying connection.
func (s *SSEStream) Close() error {
	s.done = true
	return s.body.Close()
}
