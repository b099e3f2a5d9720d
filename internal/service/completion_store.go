package service

import (
	"context"
	"learnhub_backend/internal/model"
	"learnhub_backend/pkg/logger"

	"github.com/samber/lo"
	"go.uber.org/zap"
)

// CompletionStore 视频/文档完成状态的统一读写接口
type CompletionStore interface {
	Completed(ctx context.Context, userID uint, courseID string, kind model.ContentKind) ([]string, error)
	SetCompleted(ctx context.Context, userID uint, courseID, itemID string, kind model.ContentKind, completed bool) error
}

// ReconciledCompletionStore 以数据库为准，读取时把缓存改写成与数据库一致。
// 缓存中多出的记录可能来自写入失败的取消操作，只删除不回写数据库。
// 写入由 ProgressService 的状态机负责，这里只转发到两侧。
type ReconciledCompletionStore struct {
	Primary CompletionStore
	Mirror  CompletionStore // 可为空
}

func NewReconciledCompletionStore(primary, mirror CompletionStore) *ReconciledCompletionStore {
	return &ReconciledCompletionStore{Primary: primary, Mirror: mirror}
}

func (s *ReconciledCompletionStore) Completed(ctx context.Context, userID uint, courseID string, kind model.ContentKind) ([]string, error) {
	stored, err := s.Primary.Completed(ctx, userID, courseID, kind)
	if err != nil {
		return nil, err
	}
	if s.Mirror == nil {
		return stored, nil
	}

	cached, err := s.Mirror.Completed(ctx, userID, courseID, kind)
	if err != nil {
		logger.Log.Warn("Failed to read progress cache, using database only",
			zap.String("courseId", courseID), zap.String("kind", string(kind)), zap.Error(err))
		return stored, nil
	}

	missingInCache, staleInCache := lo.Difference(stored, cached)
	for _, id := range missingInCache {
		if err := s.Mirror.SetCompleted(ctx, userID, courseID, id, kind, true); err != nil {
			logger.Log.Warn("Failed to repair progress cache", zap.String("itemId", id), zap.Error(err))
		}
	}
	for _, id := range staleInCache {
		if err := s.Mirror.SetCompleted(ctx, userID, courseID, id, kind, false); err != nil {
			logger.Log.Warn("Failed to drop stale progress cache entry", zap.String("itemId", id), zap.Error(err))
		}
	}

	return stored, nil
}

func (s *ReconciledCompletionStore) SetCompleted(ctx context.Context, userID uint, courseID, itemID string, kind model.ContentKind, completed bool) error {
	if err := s.Primary.SetCompleted(ctx, userID, courseID, itemID, kind, completed); err != nil {
		return err
	}
	if s.Mirror != nil {
		return s.Mirror.SetCompleted(ctx, userID, courseID, itemID, kind, completed)
	}
	return nil
}
