package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/university-portal-api/internal/models"
	appErrors "github.com/noah-isme/university-portal-api/pkg/errors"
)

type fakeUserRepo struct {
	users       map[string]*models.User
	byEmail     map[string]*models.User
	deactivated []string
}

func (f *fakeUserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if u, ok := f.byEmail[email]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeUserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := f.users[id]; ok {
		copied := *u
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeUserRepo) List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	var out []models.User
	for _, u := range f.users {
		out = append(out, *u)
	}
	return out, len(out), nil
}

func (f *fakeUserRepo) Create(ctx context.Context, user *models.User) error {
	user.ID = "usr-new"
	f.users[user.ID] = user
	return nil
}

func (f *fakeUserRepo) Update(ctx context.Context, user *models.User) error {
	if _, ok := f.users[user.ID]; !ok {
		return sql.ErrNoRows
	}
	f.users[user.ID] = user
	return nil
}

func (f *fakeUserRepo) Deactivate(ctx context.Context, id string) error {
	if _, ok := f.users[id]; !ok {
		return sql.ErrNoRows
	}
	f.deactivated = append(f.deactivated, id)
	return nil
}

func newUserFixture() (*UserService, *fakeUserRepo) {
	repo := &fakeUserRepo{
		users: map[string]*models.User{
			"usr-1": {ID: "usr-1", Email: "student@example.edu", FullName: "Existing Student", Role: models.RoleStudent, Active: true},
		},
		byEmail: map[string]*models.User{
			"student@example.edu": {ID: "usr-1", Email: "student@example.edu"},
		},
	}
	svc := NewUserService(repo, validator.New(), zap.NewNop())
	return svc, repo
}

func TestUserServiceCreateHashesPassword(t *testing.T) {
	svc, _ := newUserFixture()

	user, err := svc.Create(context.Background(), CreateUserRequest{
		Email:    "registrar@example.edu",
		Password: "changeme",
		FullName: "New Registrar",
		Role:     models.RoleRegistrar,
	})
	require.NoError(t, err)
	assert.True(t, user.Active)
	assert.NotEqual(t, "changeme", user.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("changeme")))
}

func TestUserServiceCreateDuplicateEmail(t *testing.T) {
	svc, _ := newUserFixture()

	_, err := svc.Create(context.Background(), CreateUserRequest{
		Email:    "student@example.edu",
		Password: "changeme",
		FullName: "Duplicate",
		Role:     models.RoleStudent,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestUserServiceCreateUnknownRole(t *testing.T) {
	svc, _ := newUserFixture()

	_, err := svc.Create(context.Background(), CreateUserRequest{
		Email:    "someone@example.edu",
		Password: "changeme",
		FullName: "Someone",
		Role:     "SUPERUSER",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestUserServiceUpdatePatchesFields(t *testing.T) {
	svc, repo := newUserFixture()
	role := models.RoleAlumni
	inactive := false

	user, err := svc.Update(context.Background(), "usr-1", UpdateUserRequest{
		FullName: "Graduated Student",
		Role:     &role,
		Active:   &inactive,
	})
	require.NoError(t, err)
	assert.Equal(t, "Graduated Student", user.FullName)
	assert.Equal(t, models.RoleAlumni, user.Role)
	assert.False(t, user.Active)
	assert.Equal(t, models.RoleAlumni, repo.users["usr-1"].Role)
}

func TestUserServiceDeactivate(t *testing.T) {
	svc, repo := newUserFixture()

	require.NoError(t, svc.Deactivate(context.Background(), "usr-1"))
	assert.Contains(t, repo.deactivated, "usr-1")

	err := svc.Deactivate(context.Background(), "usr-404")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
