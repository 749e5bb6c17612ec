// Package widget embeds a Virtus chat endpoint into a host application. It
// serves the display config consumed by the platform's embed script and
// relays browser chat traffic to the streaming completion API, keeping one
// conversation per visitor session.
package widget

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"

	virtus "github.com/virtus-ai/virtus-go"
)

const sessionCookie = "virtus_widget_session"

// Options configures an embedded chat widget.
type Options struct {
	// ModelID is the marketplace model answering widget conversations.
	ModelID string
	// UseRAG toggles retrieval for widget replies; nil keeps the platform
	// default (on).
	UseRAG *bool
	// DataSourceIDs restricts retrieval to the given sources.
	DataSourceIDs []string

	// Display settings served to the embed script.
	Title          string
	WelcomeMessage string
	Placeholder    string

	// AllowedOrigins restricts which sites may talk to the widget. An entry
	// matches when it is contained in the request's Origin header; "*"
	// matches everything. An empty list allows any origin.
	AllowedOrigins []string

	// Logger receives relay errors and request logs. Defaults to
	// slog.Default().
	Logger *slog.Logger
}

// Widget relays chat traffic from embedded pages to the platform.
type Widget struct {
	client *virtus.Client
	opts   Options
	log    *slog.Logger

	mu            sync.Mutex
	conversations map[string]string // session id -> conversation id
}

// New creates a widget bound to client. Mount Handler anywhere on the
// host's mux, e.g. http.Handle("/widget/", http.StripPrefix("/widget", w.Handler())).
func New(client *virtus.Client, opts Options) *Widget {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	if opts.Title == "" {
		opts.Title = "Chat with AI"
	}
	if opts.Placeholder == "" {
		opts.Placeholder = "Type a message..."
	}
	return &Widget{
		client:        client,
		opts:          opts,
		log:           log.With(slog.String("component", "widget")),
		conversations: make(map[string]string),
	}
}

// Handler returns the widget's HTTP surface: GET /config for the embed
// script and POST /chat for the streaming relay.
func (wd *Widget) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/config", wd.handleConfig)
	mux.HandleFunc("/chat", wd.handleChat)
	return wd.allowOrigin(mux)
}

func (wd *Widget) allowOrigin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if !wd.originAllowed(origin) {
			wd.log.Warn("origin rejected", slog.String("origin", origin))
			http.Error(w, "Domain not allowed", http.StatusForbidden)
			return
		}
		if origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// originAllowed applies the embed script's domain rule: an allowed entry
// may appear anywhere in the Origin header, and "*" allows everything.
func (wd *Widget) originAllowed(origin string) bool {
	if len(wd.opts.AllowedOrigins) == 0 {
		return true
	}
	for _, domain := range wd.opts.AllowedOrigins {
		if domain == "*" || strings.Contains(origin, domain) {
			return true
		}
	}
	return false
}

type widgetConfig struct {
	ModelID        string `json:"modelId"`
	Title          string `json:"title"`
	WelcomeMessage string `json:"welcomeMessage"`
	Placeholder    string `json:"placeholder"`
}

func (wd *Widget) handleConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(widgetConfig{
		ModelID:        wd.opts.ModelID,
		Title:          wd.opts.Title,
		WelcomeMessage: wd.opts.WelcomeMessage,
		Placeholder:    wd.opts.Placeholder,
	})
}

type chatPayload struct {
	Messages []virtus.ChatMessage `json:"messages"`
}

func (wd *Widget) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	var payload chatPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}
	if len(payload.Messages) == 0 {
		http.Error(w, "Messages required", http.StatusBadRequest)
		return
	}

	session := wd.session(w, r)
	wd.log.Info("chat relay", slog.String("session", session), slog.Int("messages", len(payload.Messages)))

	stream, err := wd.client.ChatStream(r.Context(), virtus.ChatOptions{
		ModelID:        wd.opts.ModelID,
		Messages:       payload.Messages,
		ConversationID: wd.conversationFor(session),
		UseRAG:         wd.opts.UseRAG,
		DataSourceIDs:  wd.opts.DataSourceIDs,
	})
	if err != nil {
		wd.log.Error("chat stream failed", slog.Any("error", err))
		status := http.StatusBadGateway
		var apiErr *virtus.APIError
		if errors.As(err, &apiErr) {
			status = apiErr.StatusCode
		}
		http.Error(w, err.Error(), status)
		return
	}
	defer stream.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	for {
		chunk, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			wd.log.Error("relay interrupted", slog.Any("error", err))
			sendSSE(w, flusher, map[string]interface{}{"type": "error", "error": err.Error()})
			return
		}
		sendSSE(w, flusher, map[string]interface{}{"type": "content", "content": chunk})
	}

	if id := stream.ConversationID(); id != "" {
		wd.rememberConversation(session, id)
	}
	sendSSE(w, flusher, map[string]interface{}{"type": "done", "conversation_id": stream.ConversationID()})
}

// session returns the visitor's session id, minting a cookie on first
// contact.
func (wd *Widget) session(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(sessionCookie); err == nil && c.Value != "" {
		return c.Value
	}
	id := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
	})
	return id
}

func (wd *Widget) conversationFor(session string) string {
	wd.mu.Lock()
	defer wd.mu.Unlock()
	return wd.conversations[session]
}

func (wd *Widget) rememberConversation(session, conversation string) {
	wd.mu.Lock()
	defer wd.mu.Unlock()
	wd.conversations[session] = conversation
}

func sendSSE(w http.ResponseWriter, flusher http.Flusher, data map[string]interface{}) {
	jsonData, _ := json.Marshal(data)
	fmt.Fprintf(w, "data: %s\n\n", jsonData)
	flusher.Flush()
}
