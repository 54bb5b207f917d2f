package services

import (
	"context"
	"sync"

	"codebot/internal/config"
	"codebot/internal/models"
	"codebot/internal/observability"
	contextutils "codebot/internal/utils"
)

// historyKey identifies one conversation log
type historyKey struct {
	userID int
	track  models.Track
}

// ConversationService gives chat continuity by keeping an ordered message
// log per (user, track) pair. All mutation of one key goes through a
// read-modify-write cycle under that key's mutex, so concurrent chat turns
// from the same user cannot lose messages. Distinct keys proceed in
// parallel.
type ConversationService struct {
	store       HistoryStore
	maxMessages int
	logger      *observability.Logger

	// keyLocks holds one mutex per active (user, track) key
	mu       sync.Mutex
	keyLocks map[historyKey]*sync.Mutex
}

// NewConversationService creates a new conversation service over the given
// persistence collaborator
func NewConversationService(store HistoryStore, maxMessages int, logger *observability.Logger) *ConversationService {
	if maxMessages <= 0 {
		maxMessages = config.MaxHistoryMessages
	}
	return &ConversationService{
		store:       store,
		maxMessages: maxMessages,
		logger:      logger,
		keyLocks:    make(map[historyKey]*sync.Mutex),
	}
}

func (s *ConversationService) lockForKey(key historyKey) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.keyLocks[key]
	if !ok {
		lock = &sync.Mutex{}
		s.keyLocks[key] = lock
	}
	return lock
}

// Append atomically adds messages to the history for a (user, track) pair,
// keeping only the most recent maxMessages entries. All given messages are
// written in one store call, so either all of them land or none do.
func (s *ConversationService) Append(ctx context.Context, userID int, track models.Track, newMessages ...models.ChatMessage) (err error) {
	ctx, span := observability.TraceConversationFunction(ctx, "append",
		observability.AttributeUserID(userID),
		observability.AttributeTrack(string(track)),
	)
	defer observability.FinishSpan(span, &err)

	if len(newMessages) == 0 {
		return nil
	}

	key := historyKey{userID: userID, track: track}
	lock := s.lockForKey(key)
	lock.Lock()
	defer lock.Unlock()

	history, err := s.store.LoadHistory(ctx, userID, track)
	if err != nil {
		return contextutils.WrapError(err, "failed to load history for append")
	}

	history = append(history, newMessages...)
	if len(history) > s.maxMessages {
		history = history[len(history)-s.maxMessages:]
	}

	return s.store.SaveHistory(ctx, userID, track, history)
}

// Clear atomically replaces the history for a (user, track) pair with an
// empty sequence
func (s *ConversationService) Clear(ctx context.Context, userID int, track models.Track) (err error) {
	ctx, span := observability.TraceConversationFunction(ctx, "clear",
		observability.AttributeUserID(userID),
		observability.AttributeTrack(string(track)),
	)
	defer observability.FinishSpan(span, &err)

	key := historyKey{userID: userID, track: track}
	lock := s.lockForKey(key)
	lock.Lock()
	defer lock.Unlock()

	return s.store.SaveHistory(ctx, userID, track, []models.ChatMessage{})
}

// Read returns a snapshot of the current history for a (user, track) pair
func (s *ConversationService) Read(ctx context.Context, userID int, track models.Track) (result0 []models.ChatMessage, err error) {
	ctx, span := observability.TraceConversationFunction(ctx, "read",
		observability.AttributeUserID(userID),
		observability.AttributeTrack(string(track)),
	)
	defer observability.FinishSpan(span, &err)

	key := historyKey{userID: userID, track: track}
	lock := s.lockForKey(key)
	lock.Lock()
	defer lock.Unlock()

	return s.store.LoadHistory(ctx, userID, track)
}
