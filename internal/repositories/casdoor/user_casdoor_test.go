package casdoor

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/casdoor/casdoor-go-sdk/casdoorsdk"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SAP-F-2025/exam-attempt-service/internal/models"
)

type fakeDirectory struct {
	users map[string]*casdoorsdk.User
	calls int
}

func (f *fakeDirectory) GetUserByUserId(id string) (*casdoorsdk.User, error) {
	f.calls++
	return f.users[id], nil
}

func TestMapRole(t *testing.T) {
	assert.Equal(t, models.RoleTeacher, MapRole("Instructor"))
	assert.Equal(t, models.RoleAdmin, MapRole(" administrator "))
	assert.Equal(t, models.RoleStudent, MapRole("guest"))
}

func TestConvertUser(t *testing.T) {
	user := ConvertUser(&casdoorsdk.User{
		Id:          "u1",
		DisplayName: "Anna Schmidt",
		Email:       "anna@example.com",
		Roles:       []*casdoorsdk.Role{{Name: "student"}, {Name: "teacher"}},
	})
	require.NotNil(t, user)
	assert.Equal(t, models.RoleTeacher, user.Role)
	assert.Nil(t, user.AvatarURL)

	admin := ConvertUser(&casdoorsdk.User{Id: "u2", IsAdmin: true})
	assert.Equal(t, models.RoleAdmin, admin.Role)

	assert.Nil(t, ConvertUser(nil))
}

func TestUserCasdoor_GetByIDCaches(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	dir := &fakeDirectory{users: map[string]*casdoorsdk.User{
		"u1": {Id: "u1", DisplayName: "Anna"},
	}}
	repo := newUserCasdoor(dir, client)
	ctx := context.Background()

	user, err := repo.GetByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Anna", user.FullName)

	_, err = repo.GetByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, dir.calls)

	users, err := repo.GetByIDs(ctx, []string{"u1", "missing"})
	require.NoError(t, err)
	assert.Len(t, users, 1)
}
