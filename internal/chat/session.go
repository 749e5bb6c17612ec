// Package chat manages the interactive chat session with the platform.
package chat

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	virtus "github.com/virtus-ai/virtus-go"

	"github.com/virtus-ai/virtus-go/internal/commands"
	"github.com/virtus-ai/virtus-go/internal/config"
	"github.com/virtus-ai/virtus-go/internal/models"
	"github.com/virtus-ai/virtus-go/internal/render"
)

// InputReader reads a line of user input. Returns the line and any error (io.EOF on end).
type InputReader func(prompt string) (string, error)

// Session manages the state of a single chat conversation.
type Session struct {
	cfg      *config.Config
	client   *virtus.Client
	renderer *render.Renderer
	cmdReg   *commands.Registry
	modelMgr *models.Manager

	history        []virtus.ChatMessage
	sources        []string // attached data source ids
	systemPrompt   string
	conversationID string
	inputTokens    int
	outputTokens   int
	writer         io.Writer
}

// NewSession creates a new chat session from the given configuration.
func NewSession(cfg *config.Config, w io.Writer) (*Session, error) {
	if w == nil {
		w = os.Stdout
	}
	r, err := render.NewRenderer(w)
	if err != nil {
		return nil, fmt.Errorf("create renderer: %w", err)
	}

	client := virtus.NewClient(virtus.Config{APIKey: cfg.APIKey, BaseURL: cfg.BaseURL})
	s := &Session{
		cfg:          cfg,
		client:       client,
		renderer:     r,
		modelMgr:     models.NewManager(client),
		sources:      append([]string(nil), cfg.DataSourceIDs...),
		systemPrompt: cfg.System,
		writer:       w,
	}

	reg := commands.NewRegistry(w)
	commands.RegisterDefaults(reg, commands.Callbacks{
		OnClear:         s.clearHistory,
		OnModel:         s.switchModel,
		OnModels:        s.listModels,
		OnSources:       s.listSources,
		OnSource:        s.attachSource,
		OnDrop:          s.dropSource,
		OnUpload:        s.uploadDocument,
		OnRAGQuery:      s.ragQuery,
		OnConversations: s.listConversations,
		OnStream:        s.toggleStream,
		OnSystem:        s.setSystemPrompt,
		OnConfig:        s.showConfig,
	})
	s.cmdReg = reg

	return s, nil
}

// Run starts the main chat loop using the provided input reader.
func (s *Session) Run(readInput InputReader) error {
	for {
		input, err := readInput("virtus> ")
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		if output, isCmd := s.cmdReg.Execute(input); isCmd {
			if output == "__QUIT__" {
				return nil
			}
			fmt.Fprintln(s.writer, output)
			continue
		}

		if err := s.sendMessage(input); err != nil {
			fmt.Fprintf(s.writer, "Error: %v\n", err)
		}
	}
}

// Messages returns the current message history (read-only copy).
func (s *Session) Messages() []virtus.ChatMessage {
	out := make([]virtus.ChatMessage, len(s.history))
	copy(out, s.history)
	return out
}

// Sources returns the attached data source ids (read-only copy).
func (s *Session) Sources() []string {
	out := make([]string, len(s.sources))
	copy(out, s.sources)
	return out
}

// ConversationID returns the server-side conversation being continued, or
// empty before the first reply.
func (s *Session) ConversationID() string {
	return s.conversationID
}

// chatOptions assembles the request for the current turn. The full local
// history is sent each time; the backend only feeds the model what the
// request carries.
func (s *Session) chatOptions() virtus.ChatOptions {
	msgs := s.history
	if s.systemPrompt != "" {
		msgs = append([]virtus.ChatMessage{{Role: virtus.RoleSystem, Content: s.systemPrompt}}, s.history...)
	}
	opts := virtus.ChatOptions{
		ModelID:        s.cfg.Model,
		Messages:       msgs,
		ConversationID: s.conversationID,
		DataSourceIDs:  s.sources,
	}
	if s.cfg.NoRAG {
		opts.UseRAG = virtus.Bool(false)
	}
	if s.cfg.MaxTokens > 0 {
		opts.MaxTokens = virtus.Int(s.cfg.MaxTokens)
	}
	if s.cfg.Temperature > 0 {
		opts.Temperature = virtus.Float64(s.cfg.Temperature)
	}
	return opts
}

func (s *Session) sendMessage(userMsg string) error {
	s.history = append(s.history, virtus.ChatMessage{Role: virtus.RoleUser, Content: userMsg})
	opts := s.chatOptions()
	ctx := context.Background()

	if s.cfg.Stream {
		stream, err := s.client.ChatStream(ctx, opts)
		if err != nil {
			return err
		}
		defer stream.Close()

		var acc string
		var full strings.Builder
		for {
			chunk, err := stream.Recv()
			if err == io.EOF {
				break
			}
			if err != nil {
				return err
			}
			full.WriteString(chunk)
			var renderErr error
			acc, renderErr = s.renderer.RenderStream(acc, chunk, false)
			if renderErr != nil {
				fmt.Fprintf(s.writer, "\nRender error: %v\n", renderErr)
			}
		}
		// Flush remaining content.
		if acc != "" {
			if _, renderErr := s.renderer.RenderStream(acc, "", true); renderErr != nil {
				fmt.Fprintf(s.writer, "\nRender error: %v\n", renderErr)
			}
		}
		if id := stream.ConversationID(); id != "" {
			s.conversationID = id
		}
		if u := stream.Usage(); u != nil {
			s.inputTokens += u.InputTokens
			s.outputTokens += u.OutputTokens
		}
		s.history = append(s.history, virtus.ChatMessage{Role: virtus.RoleAssistant, Content: full.String()})
	} else {
		resp, err := s.client.Chat(ctx, opts)
		if err != nil {
			return err
		}
		s.conversationID = resp.ConversationID
		s.inputTokens += resp.InputTokens
		s.outputTokens += resp.OutputTokens
		s.history = append(s.history, virtus.ChatMessage{Role: virtus.RoleAssistant, Content: resp.Content})
		if err := s.renderer.Render(resp.Content); err != nil {
			return err
		}
	}
	return nil
}

func (s *Session) clearHistory() {
	s.history = nil
	s.conversationID = ""
}

func (s *Session) switchModel(args string) string {
	if args == "" {
		if s.cfg.Model == "" {
			return "No model selected. Use /model <id or slug>."
		}
		return fmt.Sprintf("Current model: %s", s.cfg.Model)
	}
	model, err := s.modelMgr.Find(context.Background(), args)
	if err != nil {
		return fmt.Sprintf("Error resolving model: %v", err)
	}
	if model == nil {
		return fmt.Sprintf("Unknown model: %s. Try /models.", args)
	}
	s.cfg.Model = model.ID
	return fmt.Sprintf("Switched to model: %s (%s)", model.Name, model.ID)
}

func (s *Session) listModels(args string) string {
	ctx := context.Background()
	var (
		list []virtus.Model
		err  error
	)
	if args == "" {
		list, err = s.modelMgr.List(ctx)
	} else {
		list, err = s.client.ListModels(ctx, args)
	}
	if err != nil {
		return fmt.Sprintf("Error listing models: %v", err)
	}
	return render.ModelTable(list)
}

func (s *Session) listSources() string {
	sources, err := s.client.ListDataSources(context.Background())
	if err != nil {
		return fmt.Sprintf("Error listing data sources: %v", err)
	}
	out := render.SourceTable(sources)
	if len(s.sources) > 0 {
		out += fmt.Sprintf("\nAttached: %s", strings.Join(s.sources, ", "))
	}
	return out
}

func (s *Session) attachSource(args string) string {
	if args == "" {
		return "Usage: /source <data-source-id>"
	}
	for _, id := range s.sources {
		if id == args {
			return fmt.Sprintf("Data source %s is already attached.", args)
		}
	}
	ds, err := s.client.GetDataSource(context.Background(), args)
	if err != nil {
		return fmt.Sprintf("Error fetching data source %s: %v", args, err)
	}
	s.sources = append(s.sources, ds.ID)
	return fmt.Sprintf("Attached data source: %s (%s)", ds.Name, ds.ID)
}

func (s *Session) dropSource(args string) string {
	if args == "" {
		if len(s.sources) == 0 {
			return "No data sources attached."
		}
		return fmt.Sprintf("Attached data sources: %s", strings.Join(s.sources, ", "))
	}
	for i, id := range s.sources {
		if id == args {
			s.sources = append(s.sources[:i], s.sources[i+1:]...)
			return fmt.Sprintf("Detached data source %s.", args)
		}
	}
	return fmt.Sprintf("Data source %s is not attached.", args)
}

func (s *Session) uploadDocument(args string) string {
	fields := strings.Fields(args)
	if len(fields) != 2 {
		return "Usage: /upload <data-source-id> <path>"
	}
	sourceID, path := fields[0], fields[1]

	f, err := os.Open(path)
	if err != nil {
		return fmt.Sprintf("Error opening %s: %v", path, err)
	}
	defer f.Close()

	doc, err := s.client.UploadDocument(context.Background(), sourceID, filepath.Base(path), f)
	if err != nil {
		return fmt.Sprintf("Error uploading %s: %v", path, err)
	}
	return fmt.Sprintf("Uploaded %s (%s), status: %s", doc.Filename, doc.ID, doc.Status)
}

func (s *Session) ragQuery(args string) string {
	if args == "" {
		return "Usage: /rag <query>"
	}
	resp, err := s.client.QueryRAG(context.Background(), virtus.RAGQueryRequest{
		Query:         args,
		DataSourceIDs: s.sources,
	})
	if err != nil {
		return fmt.Sprintf("Error querying: %v", err)
	}
	return render.ChunkList(resp.Chunks)
}

func (s *Session) listConversations(args string) string {
	limit := 0
	if args != "" {
		n, err := strconv.Atoi(args)
		if err != nil {
			return "Usage: /conversations [limit]"
		}
		limit = n
	}
	convs, err := s.client.ListConversations(context.Background(), limit, 0)
	if err != nil {
		return fmt.Sprintf("Error listing conversations: %v", err)
	}
	return render.ConversationTable(convs)
}

func (s *Session) setSystemPrompt(args string) string {
	if args == "" {
		if s.systemPrompt == "" {
			return "No system prompt set. Use /system <text>."
		}
		return fmt.Sprintf("System prompt: %s", s.systemPrompt)
	}
	if args == "clear" {
		s.systemPrompt = ""
		return "System prompt cleared."
	}
	s.systemPrompt = args
	return "System prompt set."
}

func (s *Session) toggleStream(args string) string {
	switch args {
	case "on":
		s.cfg.Stream = true
	case "off":
		s.cfg.Stream = false
	case "":
	default:
		return "Usage: /stream on|off"
	}
	if s.cfg.Stream {
		return "Streaming is on."
	}
	return "Streaming is off."
}

func (s *Session) showConfig() string {
	rag := "on"
	if s.cfg.NoRAG {
		rag = "off"
	}
	conv := s.conversationID
	if conv == "" {
		conv = "(new)"
	}
	system := s.systemPrompt
	if system == "" {
		system = "(none)"
	}
	return fmt.Sprintf(
		"Model: %s\nBase URL: %s\nMax Tokens: %d\nTemperature: %.1f\nStream: %v\nRAG: %s\nSystem prompt: %s\nAttached sources: %s\nConversation: %s\nSession tokens: %d in / %d out",
		s.cfg.Model, s.cfg.BaseURL, s.cfg.MaxTokens, s.cfg.Temperature, s.cfg.Stream, rag, system,
		strings.Join(s.sources, ", "), conv, s.inputTokens, s.outputTokens)
}
