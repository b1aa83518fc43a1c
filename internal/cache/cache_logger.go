package cache

import (
	"context"
	"fmt"
	"log/slog"
)

// SafeDelete deletes keys and logs instead of failing
func SafeDelete(ctx context.Context, helper *CacheHelper, keys ...string) {
	if err := helper.Delete(ctx, keys...); err != nil {
		slog.ErrorContext(ctx, "Failed to delete cache keys",
			"error", err,
			"keys", keys)
	}
}

func ExamKey(examID uint) string {
	return fmt.Sprintf("id:%d", examID)
}

// InvalidateExamCache drops the cached exam after any write to it
func InvalidateExamCache(ctx context.Context, cm *CacheManager, examID uint) {
	SafeDelete(ctx, cm.Exam, ExamKey(examID))
}
