package repositories

import (
	"context"

	"gorm.io/gorm"
)

// Repository groups every repository used by the attempt engine
type Repository interface {
	Exam() ExamRepository
	Question() QuestionRepository
	Attempt() AttemptRepository

	// User domain (read-only, owned by the identity provider)
	User() UserRepository

	// Transaction support. fn receives the transaction handle to pass into
	// repository calls.
	WithTransaction(ctx context.Context, fn func(tx *gorm.DB) error) error

	// Health check
	Ping(ctx context.Context) error

	// Close connections
	Close() error
}
