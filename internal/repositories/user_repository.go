package repositories

import (
	"context"

	"github.com/SAP-F-2025/exam-attempt-service/internal/models"
)

// UserRepository reads users from the identity provider. This service never
// writes user data.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByIDs(ctx context.Context, ids []string) ([]*models.User, error)
}
