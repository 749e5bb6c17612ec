// Package virtus defines the request and response types for the Virtus AI platform API.
package virtus

// Role identifies the author of a chat message.
type Role string

// Message roles accepted by the chat endpoints.
const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// ChatMessage is a single turn in a conversation transcript.
type ChatMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// ChatOptions describes a chat completion request. ModelID and Messages are
// required by the backend; the rest is optional. A nil UseRAG means true.
// Whether the reply is streamed is decided by the method called, not by an
// option.
type ChatOptions struct {
	ModelID        string
	Messages       []ChatMessage
	ConversationID string
	UseRAG         *bool
	DataSourceIDs  []string
	MaxTokens      *int
	Temperature    *float64
}

// chatRequest is the wire form shared by both completion endpoints. The
// stream flag belongs to the operation, never to the caller.
type chatRequest struct {
	ModelID        string        `json:"model_id"`
	Messages       []ChatMessage `json:"messages"`
	ConversationID string        `json:"conversation_id,omitempty"`
	UseRAG         bool          `json:"use_rag"`
	DataSourceIDs  []string      `json:"data_source_ids,omitempty"`
	Stream         bool          `json:"stream"`
	MaxTokens      *int          `json:"max_tokens,omitempty"`
	Temperature    *float64      `json:"temperature,omitempty"`
}

func newChatRequest(opts ChatOptions, stream bool) chatRequest {
	useRAG := true
	if opts.UseRAG != nil {
		useRAG = *opts.UseRAG
	}
	return chatRequest{
		ModelID:        opts.ModelID,
		Messages:       opts.Messages,
		ConversationID: opts.ConversationID,
		UseRAG:         useRAG,
		DataSourceIDs:  opts.DataSourceIDs,
		Stream:         stream,
		MaxTokens:      opts.MaxTokens,
		Temperature:    opts.Temperature,
	}
}

// ContextChunk is a snippet of retrieved document text the backend grounded
// a reply on.
type ContextChunk struct {
	Content  string `json:"content"`
	Document string `json:"document"`
}

// ChatResponse is the complete reply from a non-streaming completion.
// Timestamps are kept as the backend's ISO 8601 strings.
type ChatResponse struct {
	ID             string         `json:"id"`
	ConversationID string         `json:"conversation_id"`
	Content        string         `json:"content"`
	InputTokens    int            `json:"input_tokens"`
	OutputTokens   int            `json:"output_tokens"`
	ModelID        string         `json:"model_id"`
	CreatedAt      string         `json:"created_at"`
	ContextUsed    []ContextChunk `json:"context_used,omitempty"`
}

// ModelPricing describes how usage of a model is billed.
type ModelPricing struct {
	PricingType              string  `json:"pricing_type"`
	PricePer1KInputTokens    float64 `json:"price_per_1k_input_tokens"`
	PricePer1KOutputTokens   float64 `json:"price_per_1k_output_tokens"`
	PricePerRequest          float64 `json:"price_per_request"`
	MonthlySubscriptionPrice float64 `json:"monthly_subscription_price"`
	IncludedTokens           int     `json:"included_tokens"`
	IncludedRequests         int     `json:"included_requests"`
}

// Model is an AI model listed on the marketplace.
type Model struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Slug        string        `json:"slug"`
	Description string        `json:"description"`
	Category    string        `json:"category"`
	Provider    string        `json:"provider"`
	IsActive    bool          `json:"is_active"`
	Pricing     *ModelPricing `json:"pricing,omitempty"`
}

// DataSource is a collection of documents available for retrieval.
type DataSource struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Type          string `json:"type"`
	Status        string `json:"status"`
	DocumentCount int    `json:"document_count"`
	Description   string `json:"description"`
}

// CreateDataSourceRequest creates a new data source. Type defaults to
// "document" when empty.
type CreateDataSourceRequest struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
}

// Document is a single uploaded file within a data source.
type Document struct {
	ID           string `json:"id"`
	DataSourceID string `json:"data_source_id"`
	Filename     string `json:"filename"`
	ContentType  string `json:"content_type"`
	FileSize     int64  `json:"file_size"`
	ChunkCount   int    `json:"chunk_count"`
	Status       string `json:"status"`
}

// RAGQueryRequest searches the indexed documents directly. TopK defaults to
// 5 when zero; empty DataSourceIDs searches every source.
type RAGQueryRequest struct {
	Query         string   `json:"query"`
	TopK          int      `json:"top_k"`
	DataSourceIDs []string `json:"data_source_ids,omitempty"`
}

// RAGChunk is one retrieved passage with its relevance score.
type RAGChunk struct {
	Content      string                 `json:"content"`
	DocumentID   string                 `json:"document_id"`
	DocumentName string                 `json:"document_name"`
	Score        float64                `json:"score"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
}

// RAGQueryResponse lists the passages matched by a retrieval query.
type RAGQueryResponse struct {
	Query  string     `json:"query"`
	Chunks []RAGChunk `json:"chunks"`
}

// Conversation is a stored chat thread.
type Conversation struct {
	ID             string                 `json:"id"`
	OrganizationID string                 `json:"organization_id"`
	ModelID        string                 `json:"model_id"`
	Channel        string                 `json:"channel"`
	Title          string                 `json:"title"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt      string                 `json:"created_at"`
	UpdatedAt      string                 `json:"updated_at"`
	MessageCount   int                    `json:"message_count"`
}

// ConversationMessage is a stored message within a conversation.
type ConversationMessage struct {
	ID             string                 `json:"id"`
	ConversationID string                 `json:"conversation_id"`
	Role           Role                   `json:"role"`
	Content        string                 `json:"content"`
	InputTokens    int                    `json:"input_tokens"`
	OutputTokens   int                    `json:"output_tokens"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt      string                 `json:"created_at"`
}

// ConversationDetail is a conversation together with its transcript.
type ConversationDetail struct {
	Conversation
	Messages []ConversationMessage `json:"messages"`
}

// Bool returns a pointer to b, for optional request fields.
func Bool(b bool) *bool { return &b }

// Int returns a pointer to i, for optional request fields.
func Int(i int) *int { return &i }

// Float64 returns a pointer to f, for optional request fields.
func Float64(f float64) *float64 { return &f }
