package conversation

import (
	"context"
	"database/sql"
	"errors"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/classbridge/frontdesk-backend/internal/domain/call"
	"github.com/classbridge/frontdesk-backend/internal/domain/conversation"
	domainerrors "github.com/classbridge/frontdesk-backend/internal/domain/errors"
	"github.com/classbridge/frontdesk-backend/internal/infrastructure/cache"
)

// Repository is the durable store for conversations.
type Repository interface {
	// Save upserts a conversation keyed by call id
	Save(ctx context.Context, conv *conversation.Conversation) error
	// GetByCallID loads a conversation by call id
	GetByCallID(ctx context.Context, callID uuid.UUID) (*conversation.Conversation, error)
}

// Manager owns the active-conversation index. Lookups rehydrate lazily:
// memory, then cache, then the durable store.
type Manager struct {
	repo   Repository
	cache  cache.Cache
	logger *zap.Logger

	mu     sync.RWMutex
	active map[uuid.UUID]*conversation.Conversation
}

// NewManager creates a conversation manager.
func NewManager(repo Repository, c cache.Cache, logger *zap.Logger) *Manager {
	return &Manager{
		repo:   repo,
		cache:  c,
		logger: logger,
		active: make(map[uuid.UUID]*conversation.Conversation),
	}
}

// Start creates and indexes a conversation for a call.
func (m *Manager) Start(ctx context.Context, callID uuid.UUID, caller call.CallerInfo) (*conversation.Conversation, error) {
	conv := conversation.New(callID, caller)

	if err := m.repo.Save(ctx, conv); err != nil {
		return nil, domainerrors.NewInternalError("failed to persist conversation").WithCause(err)
	}

	m.mu.Lock()
	m.active[callID] = conv
	m.mu.Unlock()

	m.cacheSet(ctx, conv)
	return conv, nil
}

// Get returns the conversation for a call, rehydrating from the cache or the
// durable store when it is not in memory.
func (m *Manager) Get(ctx context.Context, callID uuid.UUID) (*conversation.Conversation, error) {
	m.mu.RLock()
	conv, ok := m.active[callID]
	m.mu.RUnlock()
	if ok {
		return conv, nil
	}

	var cached conversation.Conversation
	if err := m.cache.GetJSON(ctx, cache.ConversationPrefix+callID.String(), &cached); err == nil {
		m.index(&cached)
		return &cached, nil
	}

	conv, err := m.repo.GetByCallID(ctx, callID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domainerrors.ErrConversationNotFound
		}
		return nil, domainerrors.NewInternalError("failed to load conversation").WithCause(err)
	}

	m.index(conv)
	return conv, nil
}

// AddTurn appends a turn, advances the state machine, and persists the result.
func (m *Manager) AddTurn(ctx context.Context, callID uuid.UUID, turn conversation.Turn) (*conversation.Conversation, error) {
	conv, err := m.Get(ctx, callID)
	if err != nil {
		return nil, err
	}

	conv.Append(turn)

	if err := m.repo.Save(ctx, conv); err != nil {
		return nil, domainerrors.NewInternalError("failed to persist turn").WithCause(err)
	}
	m.cacheSet(ctx, conv)

	return conv, nil
}

// End completes a conversation and evicts it from the active index.
// Idempotent: ending an already ended conversation is a no-op.
func (m *Manager) End(ctx context.Context, callID uuid.UUID) error {
	conv, err := m.Get(ctx, callID)
	if err != nil {
		if errors.Is(err, domainerrors.ErrConversationNotFound) {
			return nil
		}
		return err
	}

	alreadyDone := conv.Completed
	conv.End()

	if !alreadyDone {
		if err := m.repo.Save(ctx, conv); err != nil {
			return domainerrors.NewInternalError("failed to persist conversation end").WithCause(err)
		}
	}

	m.mu.Lock()
	delete(m.active, callID)
	m.mu.Unlock()

	if err := m.cache.Delete(ctx, cache.ConversationPrefix+callID.String()); err != nil {
		m.logger.Debug("conversation cache evict failed",
			zap.String("call_id", callID.String()), zap.Error(err))
	}

	return nil
}

// ActiveCount reports how many conversations are held in memory.
func (m *Manager) ActiveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.active)
}

func (m *Manager) index(conv *conversation.Conversation) {
	m.mu.Lock()
	m.active[conv.CallID] = conv
	m.mu.Unlock()
}

func (m *Manager) cacheSet(ctx context.Context, conv *conversation.Conversation) {
	key := cache.ConversationPrefix + conv.CallID.String()
	if err := m.cache.SetJSON(ctx, key, conv, cache.ActiveEntityTTL); err != nil {
		m.logger.Debug("conversation cache write failed",
			zap.String("call_id", conv.CallID.String()), zap.Error(err))
	}
}
