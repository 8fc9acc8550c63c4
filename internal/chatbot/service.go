// Package chatbot manages each tenant's chat configuration and its encrypted
// provider credential.
package chatbot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ragstack/ragchat/internal/crypto"
	"github.com/ragstack/ragchat/internal/models"
)

var (
	ErrNoProvider  = errors.New("no provider configured for chatbot")
	ErrInvalidTone = errors.New("invalid tone")
)

const defaultTone = models.ToneFriendly

type Service struct {
	db        *pgxpool.Pool
	encryptor *crypto.Encryptor
}

func NewService(db *pgxpool.Pool, encryptor *crypto.Encryptor) *Service {
	return &Service{db: db, encryptor: encryptor}
}

// GetOrCreate returns the tenant's chatbot, creating the default one on
// first access so callers never see "chatbot not found".
func (s *Service) GetOrCreate(ctx context.Context, tenantID uuid.UUID) (*models.Chatbot, error) {
	bot, err := s.get(ctx, tenantID)
	if err == nil {
		return bot, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	now := time.Now().UTC()
	bot = &models.Chatbot{
		ID:        uuid.New(),
		TenantID:  tenantID,
		Name:      "Assistant",
		Tone:      defaultTone,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err = s.db.Exec(ctx,
		`INSERT INTO chatbots (id, tenant_id, name, tone, system_instructions, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (tenant_id) DO NOTHING`,
		bot.ID, bot.TenantID, bot.Name, bot.Tone, bot.SystemInstructions, bot.CreatedAt, bot.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("create chatbot: %w", err)
	}

	// A concurrent first access may have won the insert; re-read either way.
	bot, err = s.get(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("reload chatbot: %w", err)
	}
	return bot, nil
}

// Update applies the non-nil fields and bumps updated_at.
func (s *Service) Update(ctx context.Context, tenantID uuid.UUID, name, tone, instructions *string) (*models.Chatbot, error) {
	bot, err := s.GetOrCreate(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	if name != nil {
		bot.Name = *name
	}
	if tone != nil {
		if !models.ValidTone(*tone) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidTone, *tone)
		}
		bot.Tone = *tone
	}
	if instructions != nil {
		bot.SystemInstructions = *instructions
	}
	bot.UpdatedAt = time.Now().UTC()

	_, err = s.db.Exec(ctx,
		`UPDATE chatbots SET name = $1, tone = $2, system_instructions = $3, updated_at = $4 WHERE id = $5`,
		bot.Name, bot.Tone, bot.SystemInstructions, bot.UpdatedAt, bot.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("update chatbot: %w", err)
	}
	return bot, nil
}

// UpsertProvider sets the chatbot's single active provider, encrypting the
// credential before it touches the database.
func (s *Service) UpsertProvider(ctx context.Context, tenantID uuid.UUID, provider, modelName, apiKey string) (*models.ChatbotProvider, error) {
	if !models.ValidProvider(provider) {
		return nil, fmt.Errorf("unsupported provider %q", provider)
	}

	bot, err := s.GetOrCreate(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	sealed, err := s.encryptor.Encrypt(apiKey)
	if err != nil {
		return nil, fmt.Errorf("encrypt credential: %w", err)
	}

	now := time.Now().UTC()
	p := &models.ChatbotProvider{
		ID:              uuid.New(),
		ChatbotID:       bot.ID,
		Provider:        provider,
		ModelName:       modelName,
		APIKeyEncrypted: sealed,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	_, err = s.db.Exec(ctx,
		`INSERT INTO chatbot_providers (id, chatbot_id, provider, model_name, api_key_encrypted, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (chatbot_id) DO UPDATE
		 SET provider = $3, model_name = $4, api_key_encrypted = $5, updated_at = $7`,
		p.ID, p.ChatbotID, p.Provider, p.ModelName, p.APIKeyEncrypted, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("upsert provider: %w", err)
	}
	return p, nil
}

// ProviderConfig is a resolved, ready-to-dial provider: the credential is
// already decrypted. Never persist or log this struct.
type ProviderConfig struct {
	Chatbot  *models.Chatbot
	Provider string
	Model    string
	APIKey   string
}

// ResolveProvider loads the tenant's chatbot and decrypts its provider
// credential. ErrNoProvider means the tenant has not configured one yet.
func (s *Service) ResolveProvider(ctx context.Context, tenantID uuid.UUID) (*ProviderConfig, error) {
	bot, err := s.GetOrCreate(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	var p models.ChatbotProvider
	err = s.db.QueryRow(ctx,
		`SELECT id, chatbot_id, provider, model_name, api_key_encrypted, created_at, updated_at
		 FROM chatbot_providers WHERE chatbot_id = $1`,
		bot.ID,
	).Scan(&p.ID, &p.ChatbotID, &p.Provider, &p.ModelName, &p.APIKeyEncrypted, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNoProvider
	}
	if err != nil {
		return nil, fmt.Errorf("load provider: %w", err)
	}

	apiKey, err := s.encryptor.Decrypt(p.APIKeyEncrypted)
	if err != nil {
		return nil, fmt.Errorf("decrypt credential: %w", err)
	}
	return &ProviderConfig{Chatbot: bot, Provider: p.Provider, Model: p.ModelName, APIKey: apiKey}, nil
}

// GetProvider returns the stored provider row without the credential
// decrypted, for read endpoints.
func (s *Service) GetProvider(ctx context.Context, tenantID uuid.UUID) (*models.ChatbotProvider, error) {
	bot, err := s.GetOrCreate(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	var p models.ChatbotProvider
	err = s.db.QueryRow(ctx,
		`SELECT id, chatbot_id, provider, model_name, api_key_encrypted, created_at, updated_at
		 FROM chatbot_providers WHERE chatbot_id = $1`,
		bot.ID,
	).Scan(&p.ID, &p.ChatbotID, &p.Provider, &p.ModelName, &p.APIKeyEncrypted, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNoProvider
	}
	if err != nil {
		return nil, fmt.Errorf("load provider: %w", err)
	}
	return &p, nil
}

func (s *Service) get(ctx context.Context, tenantID uuid.UUID) (*models.Chatbot, error) {
	var bot models.Chatbot
	err := s.db.QueryRow(ctx,
		`SELECT id, tenant_id, name, tone, system_instructions, created_at, updated_at
		 FROM chatbots WHERE tenant_id = $1`,
		tenantID,
	).Scan(&bot.ID, &bot.TenantID, &bot.Name, &bot.Tone, &bot.SystemInstructions, &bot.CreatedAt, &bot.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("load chatbot: %w", err)
	}
	return &bot, nil
}
