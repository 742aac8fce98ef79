package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/Danwoltrs/wolthers-travel-app-sub001/pkg/gen"
	"github.com/Danwoltrs/wolthers-travel-app-sub001/pkg/logger"
	"github.com/Danwoltrs/wolthers-travel-app-sub001/services/files/entity"
	"github.com/Danwoltrs/wolthers-travel-app-sub001/services/files/storage"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrTooLarge     = errors.New("file too large")
)

var unsafeName = regexp.MustCompile(`[^a-zA-Z0-9.-]`)

type Usecase interface {
	Upload(ctx context.Context, userID string, req *entity.UploadRequest) (*entity.UploadResponse, error)
}

type usecase struct {
	storage storage.Storage
	ids     gen.UUIDGenerator
	now     func() time.Time
}

func New(storage storage.Storage) Usecase {
	return &usecase{
		storage: storage,
		ids:     gen.UUID(),
		now:     time.Now,
	}
}

// SanitizeName replaces every character outside [a-zA-Z0-9.-] with '_'.
func SanitizeName(name string) string {
	return unsafeName.ReplaceAllString(name, "_")
}

func (u *usecase) Upload(ctx context.Context, userID string, req *entity.UploadRequest) (*entity.UploadResponse, error) {
	if req.ActivityID == "" {
		return nil, fmt.Errorf("%w: activity id is required", ErrInvalidInput)
	}
	if req.Name == "" || len(req.Data) == 0 {
		return nil, fmt.Errorf("%w: no file provided", ErrInvalidInput)
	}
	if len(req.Data) > entity.MaxUploadSize {
		return nil, fmt.Errorf("%w: maximum size is 10MB", ErrTooLarge)
	}

	key := fmt.Sprintf("%s/%d_%s", SanitizeName(req.ActivityID), u.now().UnixMilli(), SanitizeName(req.Name))
	if err := u.storage.Put(ctx, key, req.ContentType, req.Data); err != nil {
		logger.ErrorErr(ctx, "failed to store upload", err, slog.String("key", key))
		return nil, err
	}

	logger.Info(ctx, "file uploaded",
		slog.String("key", key),
		slog.Int("size", len(req.Data)),
		slog.String("user_id", userID),
		slog.String("activity_id", req.ActivityID))

	return &entity.UploadResponse{
		ID:           u.ids.String(),
		URL:          u.storage.URL(key),
		FileName:     key,
		OriginalName: req.Name,
		Size:         len(req.Data),
		Type:         req.ContentType,
		UploadedBy:   userID,
		Success:      true,
	}, nil
}
