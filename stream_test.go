package virtus

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sseBody(events ...string) string {
	var b strings.Builder
	for _, ev := range events {
		b.WriteString("data: ")
		b.WriteString(ev)
		b.WriteString("\n\n")
	}
	return b.String()
}

func TestChatStream(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/chat/completions/stream", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-API-Key"))

		var req map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, true, req["stream"])
		assert.Equal(t, true, req["use_rag"])

		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, sseBody(
			`{"type":"content","content":"Hel"}`,
			`{"type":"content","content":"lo"}`,
			`{"type":"content","content":"!"}`,
		))
	})

	stream, err := client.ChatStream(context.Background(), ChatOptions{ModelID: "m"})
	require.NoError(t, err)
	defer stream.Close()

	var chunks []string
	for {
		chunk, err := stream.Recv()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		chunks = append(chunks, chunk)
	}
	assert.Equal(t, []string{"Hel", "lo", "!"}, chunks)

	// EOF repeats on further calls.
	_, err = stream.Recv()
	assert.Equal(t, io.EOF, err)
}

func TestChatStreamMatchesChatContent(t *testing.T) {
	fragments := []string{"The answer ", "is ", "42."}
	full := strings.Join(fragments, "")

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/chat/completions":
			fmt.Fprintf(w, `{"id":"m","conversation_id":"c","content":%q,"input_tokens":1,"output_tokens":1,"model_id":"x","created_at":""}`, full)
		case "/api/v1/chat/completions/stream":
			for _, f := range fragments {
				fmt.Fprintf(w, "data: {\"type\":\"content\",\"content\":%q}\n\n", f)
			}
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	})

	ctx := context.Background()
	resp, err := client.Chat(ctx, ChatOptions{ModelID: "x"})
	require.NoError(t, err)

	stream, err := client.ChatStream(ctx, ChatOptions{ModelID: "x"})
	require.NoError(t, err)
	streamed, err := stream.Text()
	require.NoError(t, err)

	assert.Equal(t, resp.Content, streamed)
}

func TestChatStreamErrorEvent(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, sseBody(
			`{"type":"content","content":"partial "}`,
			`{"type":"content","content":"reply"}`,
			`{"type":"error","error":"provider timeout"}`,
			`{"type":"content","content":"never seen"}`,
		))
	})

	stream, err := client.ChatStream(context.Background(), ChatOptions{ModelID: "m"})
	require.NoError(t, err)
	defer stream.Close()

	chunk, err := stream.Recv()
	require.NoError(t, err)
	assert.Equal(t, "partial ", chunk)
	chunk, err = stream.Recv()
	require.NoError(t, err)
	assert.Equal(t, "reply", chunk)

	_, err = stream.Recv()
	var streamErr *StreamError
	require.ErrorAs(t, err, &streamErr)
	assert.Equal(t, "provider timeout", streamErr.Message)

	// The failure is sticky; nothing after the error event is yielded.
	_, err = stream.Recv()
	require.ErrorAs(t, err, &streamErr)
}

func TestChatStreamSplitAcrossWrites(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		// One event split mid-payload over two writes.
		fmt.Fprint(w, `data: {"type":"content","con`)
		flusher.Flush()
		time.Sleep(20 * time.Millisecond)
		fmt.Fprint(w, "tent\":\"whole\"}\n\n")
		flusher.Flush()
		fmt.Fprint(w, "data: {\"type\":\"content\",\"content\":\" again\"}\n\n")
	})

	stream, err := client.ChatStream(context.Background(), ChatOptions{ModelID: "m"})
	require.NoError(t, err)
	defer stream.Close()

	chunk, err := stream.Recv()
	require.NoError(t, err)
	assert.Equal(t, "whole", chunk)
	chunk, err = stream.Recv()
	require.NoError(t, err)
	assert.Equal(t, " again", chunk)
}

func TestChatStreamHTTPError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		fmt.Fprint(w, `{"detail":"Insufficient balance"}`)
	})

	stream, err := client.ChatStream(context.Background(), ChatOptions{ModelID: "m"})
	require.Error(t, err)
	assert.Nil(t, stream)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusPaymentRequired, apiErr.StatusCode)
	assert.Equal(t, "Insufficient balance", err.Error())
}

func TestChatStreamUsageAndDone(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, sseBody(
			`{"type":"content","content":"done deal"}`,
			`{"type":"usage","input_tokens":42,"output_tokens":7}`,
			`{"type":"done","conversation_id":"conv-5","message_id":"msg-9"}`,
		))
	})

	stream, err := client.ChatStream(context.Background(), ChatOptions{ModelID: "m"})
	require.NoError(t, err)

	text, err := stream.Text()
	require.NoError(t, err)
	assert.Equal(t, "done deal", text)

	require.NotNil(t, stream.Usage())
	assert.Equal(t, 42, stream.Usage().InputTokens)
	assert.Equal(t, 7, stream.Usage().OutputTokens)
	assert.Equal(t, "conv-5", stream.ConversationID())
	assert.Equal(t, "msg-9", stream.MessageID())
}

func TestChatStreamIgnoresNonDataLines(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, ": keep-alive\n\n")
		fmt.Fprint(w, "event: message\n")
		fmt.Fprint(w, "data: {\"type\":\"content\",\"content\":\"hi\"}\n\n")
		fmt.Fprint(w, "data: {\"type\":\"ping\"}\n\n")
		fmt.Fprint(w, "data: {\"type\":\"content\",\"content\":\" there\"}\n\n")
	})

	stream, err := client.ChatStream(context.Background(), ChatOptions{ModelID: "m"})
	require.NoError(t, err)

	text, err := stream.Text()
	require.NoError(t, err)
	assert.Equal(t, "hi there", text)
}

func TestChatStreamMalformedEvent(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "data: {not json}\n\n")
	})

	stream, err := client.ChatStream(context.Background(), ChatOptions{ModelID: "m"})
	require.NoError(t, err)
	defer stream.Close()

	_, err = stream.Recv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode stream event")
}

func TestChatStreamCloseReleasesConnection(t *testing.T) {
	disconnected := make(chan struct{})
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		for i := 0; ; i++ {
			fmt.Fprintf(w, "data: {\"type\":\"content\",\"content\":\"chunk %d\"}\n\n", i)
			flusher.Flush()
			select {
			case <-r.Context().Done():
				close(disconnected)
				return
			case <-time.After(10 * time.Millisecond):
			}
		}
	})

	stream, err := client.ChatStream(context.Background(), ChatOptions{ModelID: "m"})
	require.NoError(t, err)

	_, err = stream.Recv()
	require.NoError(t, err)
	require.NoError(t, stream.Close())

	select {
	case <-disconnected:
	case <-time.After(2 * time.Second):
		t.Fatal("server never observed the disconnect")
	}

	_, err = stream.Recv()
	assert.ErrorIs(t, err, ErrStreamClosed)
	assert.NoError(t, stream.Close())
}

func TestChatStreamContextCancel(t *testing.T) {
	release := make(chan struct{})
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		fmt.Fprint(w, "data: {\"type\":\"content\",\"content\":\"first\"}\n\n")
		flusher.Flush()
		<-release
	})
	t.Cleanup(func() { close(release) })

	ctx, cancel := context.WithCancel(context.Background())
	stream, err := client.ChatStream(ctx, ChatOptions{ModelID: "m"})
	require.NoError(t, err)
	defer stream.Close()

	chunk, err := stream.Recv()
	require.NoError(t, err)
	assert.Equal(t, "first", chunk)

	cancel()
	_, err = stream.Recv()
	require.Error(t, err)
	assert.NotErrorIs(t, err, io.EOF)
}
