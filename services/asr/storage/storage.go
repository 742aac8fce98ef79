package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Danwoltrs/wolthers-travel-app-sub001/services/asr/entity"
	"github.com/google/uuid"
)

type Storage interface {
	SaveTranscription(ctx context.Context, activityID, userID, text string) (*entity.Transcription, error)
	ListTranscriptions(ctx context.Context, activityID string) ([]*entity.Transcription, error)
}

type storage struct {
	mu             sync.RWMutex
	transcriptions map[string][]*entity.Transcription
	now            func() time.Time
}

func New() Storage {
	return &storage{
		transcriptions: make(map[string][]*entity.Transcription),
		now:            time.Now,
	}
}

func (s *storage) SaveTranscription(ctx context.Context, activityID, userID, text string) (*entity.Transcription, error) {
	transcription := &entity.Transcription{
		ID:         uuid.New().String(),
		ActivityID: activityID,
		UserID:     userID,
		Text:       text,
		CreatedAt:  s.now().UTC(),
	}

	s.mu.Lock()
	s.transcriptions[activityID] = append(s.transcriptions[activityID], transcription)
	s.mu.Unlock()

	return transcription, nil
}

// ListTranscriptions returns the activity's transcriptions, newest first.
func (s *storage) ListTranscriptions(ctx context.Context, activityID string) ([]*entity.Transcription, error) {
	s.mu.RLock()
	list := make([]*entity.Transcription, len(s.transcriptions[activityID]))
	copy(list, s.transcriptions[activityID])
	s.mu.RUnlock()

	sort.SliceStable(list, func(i, j int) bool {
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})
	return list, nil
}
