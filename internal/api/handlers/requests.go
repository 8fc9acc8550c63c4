package handlers

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/ragstack/ragchat/internal/config"
	"github.com/ragstack/ragchat/internal/llm"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

const (
	maxChatMessages     = 40
	maxMessageChars     = 8000
	maxTotalChars       = 20000
	maxSearchQueryChars = 4000

	defaultMaxTokens   = 512
	defaultTemperature = 0.2
)

type chatMessage struct {
	Role    string `json:"role" validate:"required,oneof=system user assistant"`
	Content string `json:"content"`
}

// chatRequest is shared by the sync and streaming chat endpoints.
type chatRequest struct {
	SessionID   string        `json:"session_id"`
	Messages    []chatMessage `json:"messages" validate:"required,min=1,dive"`
	MaxTokens   *int          `json:"max_tokens" validate:"omitempty,min=16,max=4096"`
	Temperature *float64      `json:"temperature" validate:"omitempty,min=0,max=2"`
	TopK        *int          `json:"top_k"`
	DocumentIDs []string      `json:"document_ids" validate:"omitempty,dive,uuid"`
	FileTypes   []string      `json:"file_types" validate:"omitempty,dive,oneof=pdf docx txt md csv"`
}

// validateChat enforces the request limits and fills defaults. Limits that
// span fields (total content size) sit outside the struct tags.
func (req *chatRequest) validateChat(cfg config.RetrievalConfig) error {
	if err := validate.Struct(req); err != nil {
		return err
	}
	if len(req.Messages) > maxChatMessages {
		return fmt.Errorf("too many messages: %d (max %d)", len(req.Messages), maxChatMessages)
	}

	total := 0
	for i, m := range req.Messages {
		n := len([]rune(m.Content))
		if n > maxMessageChars {
			return fmt.Errorf("message %d too long: %d chars (max %d)", i, n, maxMessageChars)
		}
		total += n
	}
	if total > maxTotalChars {
		return fmt.Errorf("conversation too long: %d chars (max %d)", total, maxTotalChars)
	}

	if req.MaxTokens == nil {
		v := defaultMaxTokens
		req.MaxTokens = &v
	}
	if req.Temperature == nil {
		v := defaultTemperature
		req.Temperature = &v
	}
	if req.TopK == nil {
		v := cfg.ChatTopKDefault
		req.TopK = &v
	} else if *req.TopK < 1 || *req.TopK > cfg.ChatTopKMax {
		return fmt.Errorf("top_k out of range: %d (1-%d)", *req.TopK, cfg.ChatTopKMax)
	}
	return nil
}

func (req *chatRequest) messages() []llm.Message {
	out := make([]llm.Message, len(req.Messages))
	for i, m := range req.Messages {
		out[i] = llm.Message{Role: m.Role, Content: m.Content}
	}
	return out
}

func (req *chatRequest) documentIDs() ([]uuid.UUID, error) {
	if len(req.DocumentIDs) == 0 {
		return nil, nil
	}
	ids := make([]uuid.UUID, len(req.DocumentIDs))
	for i, s := range req.DocumentIDs {
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("invalid document_id %q", s)
		}
		ids[i] = id
	}
	return ids, nil
}

type searchRequest struct {
	Query       string   `json:"query" validate:"required"`
	TopK        *int     `json:"top_k"`
	DocumentIDs []string `json:"document_ids" validate:"omitempty,dive,uuid"`
	FileTypes   []string `json:"file_types" validate:"omitempty,dive,oneof=pdf docx txt md csv"`
}

func (req *searchRequest) validateSearch(cfg config.RetrievalConfig) error {
	if err := validate.Struct(req); err != nil {
		return err
	}
	if n := len([]rune(req.Query)); n > maxSearchQueryChars {
		return fmt.Errorf("query too long: %d chars (max %d)", n, maxSearchQueryChars)
	}
	if req.TopK == nil {
		v := cfg.SearchTopKDefault
		req.TopK = &v
	} else if *req.TopK < 1 || *req.TopK > cfg.SearchTopKMax {
		return fmt.Errorf("top_k out of range: %d (1-%d)", *req.TopK, cfg.SearchTopKMax)
	}
	return nil
}

func (req *searchRequest) documentIDs() ([]uuid.UUID, error) {
	if len(req.DocumentIDs) == 0 {
		return nil, nil
	}
	ids := make([]uuid.UUID, len(req.DocumentIDs))
	for i, s := range req.DocumentIDs {
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("invalid document_id %q", s)
		}
		ids[i] = id
	}
	return ids, nil
}

type updateChatbotRequest struct {
	Name               *string `json:"name" validate:"omitempty,min=1,max=120"`
	Tone               *string `json:"tone" validate:"omitempty,oneof=Friendly Technical Formal"`
	SystemInstructions *string `json:"system_instructions" validate:"omitempty,max=4000"`
}

type upsertProviderRequest struct {
	Provider  string `json:"provider" validate:"required,oneof=openai gemini deepseek"`
	ModelName string `json:"model_name" validate:"required,min=1,max=120"`
	APIKey    string `json:"api_key" validate:"required,min=1"`
}
