package virtus

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
)

// streamEvent is one decoded event from the streaming completion endpoint.
// The type field discriminates: content, usage, done, error.
type streamEvent struct {
	Type           string `json:"type"`
	Content        string `json:"content"`
	InputTokens    int    `json:"input_tokens"`
	OutputTokens   int    `json:"output_tokens"`
	ConversationID string `json:"conversation_id"`
	MessageID      string `json:"message_id"`
	Error          string `json:"error"`
}

// StreamUsage holds the token counts the server reports once a stream
// completes.
type StreamUsage struct {
	InputTokens  int
	OutputTokens int
}

// ChatStream is a pull-based reader over a streaming chat completion.
// Fragments arrive in generation order through Recv. The caller owns the
// stream's lifetime: Close releases the connection and must be called even
// when the stream is abandoned before the reply finishes.
//
// Recv is meant for a single goroutine; Close may be called from another.
type ChatStream struct {
	body   io.ReadCloser
	reader *bufio.Reader

	mu     sync.Mutex
	closed bool

	err            error // sticky; every Recv after a failure repeats it
	usage          *StreamUsage
	conversationID string
	messageID      string
}

func newChatStream(body io.ReadCloser) *ChatStream {
	return &ChatStream{
		body:   body,
		reader: bufio.NewReader(body),
	}
}

// Recv returns the next content fragment. It returns io.EOF once the server
// finishes cleanly and a *StreamError when the server reports a failure
// mid-stream; after either, the stream yields nothing further.
func (s *ChatStream) Recv() (string, error) {
	if s.isClosed() {
		return "", ErrStreamClosed
	}
	if s.err != nil {
		return "", s.err
	}

	for {
		// ReadString buffers partial lines internally, so an event split
		// across transport reads is reassembled before decoding.
		line, err := s.reader.ReadString('\n')
		if err != nil {
			if s.isClosed() {
				s.err = ErrStreamClosed
			} else if err == io.EOF {
				s.err = io.EOF
			} else {
				s.err = fmt.Errorf("read stream: %w", err)
			}
			return "", s.err
		}

		line = strings.TrimRight(line, "\r\n")
		if !strings.HasPrefix(line, "data: ") {
			continue
		}

		var ev streamEvent
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev); err != nil {
			s.err = fmt.Errorf("decode stream event: %w", err)
			return "", s.err
		}

		switch ev.Type {
		case "content":
			return ev.Content, nil
		case "usage":
			s.usage = &StreamUsage{InputTokens: ev.InputTokens, OutputTokens: ev.OutputTokens}
		case "error":
			s.err = &StreamError{Message: ev.Error}
			return "", s.err
		case "done":
			s.conversationID = ev.ConversationID
			s.messageID = ev.MessageID
		}
		// Unrecognized event types are skipped.
	}
}

// Text drains the remaining fragments, closes the stream, and returns the
// concatenated reply. For the same request it matches the Content a
// non-streaming Chat call would have produced.
func (s *ChatStream) Text() (string, error) {
	defer s.Close()
	var b strings.Builder
	for {
		chunk, err := s.Recv()
		if err == io.EOF {
			return b.String(), nil
		}
		if err != nil {
			return b.String(), err
		}
		b.WriteString(chunk)
	}
}

// Usage reports the server's token accounting, available once the stream
// has finished. Nil if the stream has not reached its usage event.
func (s *ChatStream) Usage() *StreamUsage {
	return s.usage
}

// ConversationID reports the server-assigned conversation id, available
// once the stream has finished.
func (s *ChatStream) ConversationID() string {
	return s.conversationID
}

// MessageID reports the stored assistant message id, available once the
// stream has finished.
func (s *ChatStream) MessageID() string {
	return s.messageID
}

// Close releases the underlying connection. It is safe to call twice, and
// safe to call while another goroutine is blocked in Recv; that Recv
// unblocks with ErrStreamClosed.
func (s *ChatStream) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()
	return s.body.Close()
}

func (s *ChatStream) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
