package bot

import (
	"encoding/json"
	"fmt"

	"go.uber.org/zap"
)

func (b *Bot) getState(userID int64) *ConversationState {
	b.statesMu.RLock()
	defer b.statesMu.RUnlock()
	return b.states[userID]
}

func (b *Bot) setState(userID int64, state *ConversationState) {
	b.statesMu.Lock()
	b.states[userID] = state
	b.statesMu.Unlock()

	if b.stateStore == nil {
		return
	}
	data, err := json.Marshal(state)
	if err != nil {
		b.logger.Error("Failed to encode conversation state", zap.Error(err), zap.Int64("user_id", userID))
		return
	}
	if err := b.stateStore.Put(userID, data); err != nil {
		b.logger.Error("Failed to persist conversation state", zap.Error(err), zap.Int64("user_id", userID))
	}
}

func (b *Bot) clearState(userID int64) {
	b.statesMu.Lock()
	_, ok := b.states[userID]
	delete(b.states, userID)
	b.statesMu.Unlock()

	if !ok || b.stateStore == nil {
		return
	}
	if err := b.stateStore.Delete(userID); err != nil {
		b.logger.Error("Failed to delete conversation state", zap.Error(err), zap.Int64("user_id", userID))
	}
}

// loadStates restores conversation states saved by a previous run
func (b *Bot) loadStates() error {
	if b.stateStore == nil {
		return nil
	}

	b.statesMu.Lock()
	defer b.statesMu.Unlock()

	err := b.stateStore.ForEach(func(userID int64, value []byte) error {
		var state ConversationState
		if err := json.Unmarshal(value, &state); err != nil {
			b.logger.Warn("Skipping broken conversation state", zap.Int64("user_id", userID), zap.Error(err))
			return nil
		}
		b.states[userID] = &state
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to load conversation states: %w", err)
	}

	b.logger.Info("Conversation states restored", zap.Int("count", len(b.states)))
	return nil
}
