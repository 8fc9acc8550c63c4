package models

import (
	"time"

	"github.com/google/uuid"
)

// Chatbot response tones.
const (
	ToneFriendly  = "Friendly"
	ToneTechnical = "Technical"
	ToneFormal    = "Formal"
)

// Supported chat providers. The set is closed: adding a vendor means adding
// a ChatClient implementation and extending llm.New.
const (
	ProviderOpenAI   = "openai"
	ProviderGemini   = "gemini"
	ProviderDeepSeek = "deepseek"
)

func ValidTone(tone string) bool {
	switch tone {
	case ToneFriendly, ToneTechnical, ToneFormal:
		return true
	}
	return false
}

func ValidProvider(p string) bool {
	switch p {
	case ProviderOpenAI, ProviderGemini, ProviderDeepSeek:
		return true
	}
	return false
}

// Chatbot is the per-tenant chat configuration, created lazily on first
// access.
type Chatbot struct {
	ID                 uuid.UUID `json:"id" db:"id"`
	TenantID           uuid.UUID `json:"tenant_id" db:"tenant_id"`
	Name               string    `json:"name" db:"name"`
	Tone               string    `json:"tone" db:"tone"`
	SystemInstructions string    `json:"system_instructions" db:"system_instructions"`
	CreatedAt          time.Time `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time `json:"updated_at" db:"updated_at"`
}

// ChatbotProvider holds the single active provider for a chatbot. The API
// credential is encrypted at rest; use chatbot.Service to resolve it.
type ChatbotProvider struct {
	ID              uuid.UUID `json:"id" db:"id"`
	ChatbotID       uuid.UUID `json:"chatbot_id" db:"chatbot_id"`
	Provider        string    `json:"provider" db:"provider"`
	ModelName       string    `json:"model_name" db:"model_name"`
	APIKeyEncrypted string    `json:"-" db:"api_key_encrypted"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time `json:"updated_at" db:"updated_at"`
}
