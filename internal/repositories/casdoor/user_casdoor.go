package casdoor

import (
	"context"
	"fmt"
	"strings"

	"github.com/casdoor/casdoor-go-sdk/casdoorsdk"
	"github.com/redis/go-redis/v9"

	"github.com/SAP-F-2025/exam-attempt-service/internal/cache"
	"github.com/SAP-F-2025/exam-attempt-service/internal/config"
	"github.com/SAP-F-2025/exam-attempt-service/internal/models"
	"github.com/SAP-F-2025/exam-attempt-service/internal/repositories"
)

// userDirectory is the subset of the casdoor client this repository calls
type userDirectory interface {
	GetUserByUserId(userId string) (*casdoorsdk.User, error)
}

type UserCasdoor struct {
	client userDirectory
	cache  *cache.CacheHelper
}

func NewUserCasdoor(cfg config.CasdoorConfig, redisClient *redis.Client) repositories.UserRepository {
	client := casdoorsdk.NewClient(
		cfg.Endpoint,
		cfg.ClientID,
		cfg.ClientSecret,
		cfg.Cert,
		cfg.Organization,
		cfg.Application,
	)
	return newUserCasdoor(client, redisClient)
}

func newUserCasdoor(client userDirectory, redisClient *redis.Client) *UserCasdoor {
	return &UserCasdoor{
		client: client,
		cache:  cache.NewCacheManager(redisClient).User,
	}
}

// ConvertUser maps a casdoor account onto the local user model
func ConvertUser(casdoorUser *casdoorsdk.User) *models.User {
	if casdoorUser == nil {
		return nil
	}

	user := &models.User{
		ID:       casdoorUser.Id,
		FullName: casdoorUser.DisplayName,
		Email:    casdoorUser.Email,
		Role:     primaryRole(casdoorUser),
	}
	if casdoorUser.Avatar != "" {
		avatar := casdoorUser.Avatar
		user.AvatarURL = &avatar
	}
	return user
}

// primaryRole picks admin over teacher over student
func primaryRole(casdoorUser *casdoorsdk.User) models.UserRole {
	if casdoorUser.IsAdmin {
		return models.RoleAdmin
	}

	role := models.RoleStudent
	for _, r := range casdoorUser.Roles {
		if r == nil {
			continue
		}
		switch MapRole(r.Name) {
		case models.RoleAdmin:
			return models.RoleAdmin
		case models.RoleTeacher:
			role = models.RoleTeacher
		}
	}
	return role
}

// MapRole maps a casdoor role name onto a local role, defaulting to student
func MapRole(name string) models.UserRole {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "teacher", "instructor":
		return models.RoleTeacher
	case "admin", "administrator":
		return models.RoleAdmin
	default:
		return models.RoleStudent
	}
}

// GetByID retrieves a user by ID, cached
func (u *UserCasdoor) GetByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	err := u.cache.CacheOrExecute(ctx, "id:"+id, &user, cache.UserCacheConfig.TTL, func() (interface{}, error) {
		casdoorUser, err := u.client.GetUserByUserId(id)
		if err != nil {
			return nil, fmt.Errorf("failed to get user from Casdoor: %w", err)
		}
		if casdoorUser == nil {
			return nil, fmt.Errorf("user %s: %w", id, repositories.ErrNotFound)
		}
		return ConvertUser(casdoorUser), nil
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByIDs skips users that cannot be resolved
func (u *UserCasdoor) GetByIDs(ctx context.Context, ids []string) ([]*models.User, error) {
	users := make([]*models.User, 0, len(ids))
	for _, id := range ids {
		user, err := u.GetByID(ctx, id)
		if err != nil {
			continue
		}
		users = append(users, user)
	}
	return users, nil
}
