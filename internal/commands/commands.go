// Package commands provides slash command handling for the chat session.
package commands

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
)

// Handler is a function that handles a slash command.
// It receives the arguments after the command name and returns output text.
type Handler func(args string) string

// Registry holds all registered slash commands.
type Registry struct {
	commands map[string]entry
	writer   io.Writer
}

type entry struct {
	handler     Handler
	description string
}

// NewRegistry creates a Registry writing output to w. If w is nil, os.Stdout is used.
func NewRegistry(w io.Writer) *Registry {
	if w == nil {
		w = os.Stdout
	}
	return &Registry{
		commands: make(map[string]entry),
		writer:   w,
	}
}

// Register adds a command to the registry.
func (r *Registry) Register(name, description string, handler Handler) {
	r.commands[name] = entry{handler: handler, description: description}
}

// Execute runs a slash command. Returns the command output and whether it was found.
func (r *Registry) Execute(input string) (string, bool) {
	input = strings.TrimSpace(input)
	if !strings.HasPrefix(input, "/") {
		return "", false
	}

	parts := strings.SplitN(input[1:], " ", 2)
	name := parts[0]
	args := ""
	if len(parts) > 1 {
		args = strings.TrimSpace(parts[1])
	}

	e, ok := r.commands[name]
	if !ok {
		return fmt.Sprintf("Unknown command: /%s. Type /help for available commands.", name), true
	}

	return e.handler(args), true
}

// IsCommand reports whether the input starts with a slash command prefix.
func IsCommand(input string) bool {
	return strings.HasPrefix(strings.TrimSpace(input), "/")
}

// RegisterDefaults registers the standard set of slash commands.
func RegisterDefaults(r *Registry, callbacks Callbacks) {
	r.Register("help", "Show available commands", func(_ string) string {
		return r.helpText()
	})
	r.Register("quit", "Exit the application", func(_ string) string {
		return "__QUIT__"
	})
	r.Register("exit", "Exit the application", func(_ string) string {
		return "__QUIT__"
	})
	r.Register("clear", "Clear chat history and start a new conversation", func(_ string) string {
		if callbacks.OnClear != nil {
			callbacks.OnClear()
		}
		return "Chat history cleared."
	})
	r.Register("model", "Switch model or show the current one", func(args string) string {
		if callbacks.OnModel != nil {
			return callbacks.OnModel(args)
		}
		return "Model switching not configured."
	})
	r.Register("models", "List marketplace models, optionally by category", func(args string) string {
		if callbacks.OnModels != nil {
			return callbacks.OnModels(args)
		}
		return "Model listing not configured."
	})
	r.Register("sources", "List data sources", func(_ string) string {
		if callbacks.OnSources != nil {
			return callbacks.OnSources()
		}
		return "Data sources not configured."
	})
	r.Register("source", "Attach a data source for retrieval", func(args string) string {
		if callbacks.OnSource != nil {
			return callbacks.OnSource(args)
		}
		return "Data sources not configured."
	})
	r.Register("drop", "Detach a data source", func(args string) string {
		if callbacks.OnDrop != nil {
			return callbacks.OnDrop(args)
		}
		return "Data sources not configured."
	})
	r.Register("upload", "Upload a document: /upload <source-id> <path>", func(args string) string {
		if callbacks.OnUpload != nil {
			return callbacks.OnUpload(args)
		}
		return "Uploads not configured."
	})
	r.Register("rag", "Run a retrieval query without the model", func(args string) string {
		if callbacks.OnRAGQuery != nil {
			return callbacks.OnRAGQuery(args)
		}
		return "Retrieval not configured."
	})
	r.Register("conversations", "List recent conversations", func(args string) string {
		if callbacks.OnConversations != nil {
			return callbacks.OnConversations(args)
		}
		return "Conversations not configured."
	})
	r.Register("stream", "Toggle streaming replies: /stream on|off", func(args string) string {
		if callbacks.OnStream != nil {
			return callbacks.OnStream(args)
		}
		return "Streaming toggle not configured."
	})
	r.Register("system", "Set or show the system prompt", func(args string) string {
		if callbacks.OnSystem != nil {
			return callbacks.OnSystem(args)
		}
		return "System prompt not configured."
	})
	r.Register("config", "Show current configuration", func(_ string) string {
		if callbacks.OnConfig != nil {
			return callbacks.OnConfig()
		}
		return "Configuration display not configured."
	})
}

// Callbacks holds optional callbacks for default commands that need session state.
type Callbacks struct {
	OnClear         func()
	OnModel         func(args string) string
	OnModels        func(args string) string
	OnSources       func() string
	OnSource        func(args string) string
	OnDrop          func(args string) string
	OnUpload        func(args string) string
	OnRAGQuery      func(args string) string
	OnConversations func(args string) string
	OnStream        func(args string) string
	OnSystem        func(args string) string
	OnConfig        func() string
}

func (r *Registry) helpText() string {
	var names []string
	for name := range r.commands {
		names = append(names, name)
	}
	sort.Strings(names)

	var sb strings.Builder
	sb.WriteString("Available commands:\n")
	for _, name := range names {
		sb.WriteString(fmt.Sprintf("  /%s - %s\n", name, r.commands[name].description))
	}
	return sb.String()
}
