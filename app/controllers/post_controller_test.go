package controllers

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/marcwilhelm/echowave/app/models"
	"github.com/marcwilhelm/echowave/internal/pkg/ledger"
)

type stubUserRepo struct {
	users map[uint]*models.User
}

func (r *stubUserRepo) Create(user *models.User) error { r.users[user.ID] = user; return nil }

func (r *stubUserRepo) GetByID(id uint) (*models.User, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return u, nil
}

func (r *stubUserRepo) GetByEmail(email string) (*models.User, error) {
	for _, u := range r.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *stubUserRepo) GetByExternalIdentity(subject string) (*models.User, error) {
	for _, u := range r.users {
		if u.ExternalIdentity == subject {
			return u, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *stubUserRepo) Update(user *models.User) error { r.users[user.ID] = user; return nil }

func (r *stubUserRepo) Count() (int64, error) { return int64(len(r.users)), nil }

type stubPostRepo struct {
	mu        sync.Mutex
	posts     []*models.Post
	createErr error
}

func (r *stubPostRepo) Create(post *models.Post) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	post.ID = uint(len(r.posts) + 1)
	r.posts = append(r.posts, post)
	return nil
}

func (r *stubPostRepo) GetByUUID(uuid string) (*models.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.posts {
		if p.UUID == uuid {
			return p, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *stubPostRepo) List(offset, limit int) ([]models.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Post
	for i := offset; i < len(r.posts) && len(out) < limit; i++ {
		out = append(out, *r.posts[i])
	}
	return out, nil
}

func (r *stubPostRepo) ListByUser(userID uint, offset, limit int) ([]models.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Post
	for _, p := range r.posts {
		if p.UserID == userID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (r *stubPostRepo) Count() (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.posts)), nil
}

func (r *stubPostRepo) CountByUser(userID uint) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, p := range r.posts {
		if p.UserID == userID {
			n++
		}
	}
	return n, nil
}

func newCreatePostTestApp(users *stubUserRepo, posts *stubPostRepo, store ledger.Store, userID uint) *fiber.App {
	tokenLedger := ledger.NewService(store)
	app := fiber.New()
	app.Post("/api/v1/posts", func(c *fiber.Ctx) error {
		return handleCreatePost(c, users, posts, tokenLedger, userID)
	})
	return app
}

func postCreatePost(t *testing.T, app *fiber.App, payload interface{}) (*http.Response, map[string]interface{}) {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/posts", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var parsed map[string]interface{}
	if len(body) > 0 {
		_ = json.Unmarshal(body, &parsed)
	}
	return resp, parsed
}

func testPoster() (*stubUserRepo, *stubBalanceStore) {
	user := &models.User{
		Name:      "maria",
		Email:     "maria@example.com",
		AvatarURL: "https://example.com/maria.png",
	}
	user.ID = 9
	users := &stubUserRepo{users: map[uint]*models.User{9: user}}
	store := newStubBalanceStore()
	store.balances[9] = 2
	return users, store
}

func TestCreatePostDebitsOneToken(t *testing.T) {
	users, store := testPoster()
	posts := &stubPostRepo{}
	app := newCreatePostTestApp(users, posts, store, 9)

	resp, body := postCreatePost(t, app, createPostRequest{
		Title:          "Morning loop",
		AudioObjectKey: "audio/9/abc.mp3",
		Duration:       12.5,
	})

	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)
	assert.Equal(t, float64(1), body["new_token_balance"])
	require.Len(t, posts.posts, 1)
	assert.Equal(t, "Morning loop", posts.posts[0].Title)
	assert.Equal(t, "maria", posts.posts[0].UserName)
}

func TestCreatePostRejectedWhenBroke(t *testing.T) {
	users, store := testPoster()
	store.balances[9] = 0
	posts := &stubPostRepo{}
	app := newCreatePostTestApp(users, posts, store, 9)

	resp, body := postCreatePost(t, app, createPostRequest{
		Title:          "No tokens",
		AudioObjectKey: "audio/9/abc.mp3",
	})

	assert.Equal(t, fiber.StatusPaymentRequired, resp.StatusCode)
	assert.Equal(t, "insufficient_tokens", body["error"])
	assert.Equal(t, float64(0), body["current_tokens"])
	assert.Empty(t, posts.posts)
}

func TestCreatePostRefundsTokenWhenInsertFails(t *testing.T) {
	users, store := testPoster()
	posts := &stubPostRepo{createErr: errors.New("mysql is down")}
	app := newCreatePostTestApp(users, posts, store, 9)

	resp, _ := postCreatePost(t, app, createPostRequest{
		Title:          "Doomed",
		AudioObjectKey: "audio/9/abc.mp3",
	})

	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)

	// The debit landed before the insert failed; the compensating credit
	// must have restored the balance.
	balance, err := store.Balance(t.Context(), 9)
	require.NoError(t, err)
	assert.Equal(t, int64(2), balance)
}

func TestCreatePostValidatesInput(t *testing.T) {
	users, store := testPoster()
	posts := &stubPostRepo{}
	app := newCreatePostTestApp(users, posts, store, 9)

	tests := []struct {
		name string
		req  createPostRequest
		want string
	}{
		{"missing title", createPostRequest{AudioObjectKey: "audio/9/a.mp3"}, "title_required"},
		{"missing object key", createPostRequest{Title: "x"}, "audio_object_key_required"},
		{"negative duration", createPostRequest{Title: "x", AudioObjectKey: "audio/9/a.mp3", Duration: -1}, "invalid_duration"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resp, body := postCreatePost(t, app, tc.req)
			assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
			assert.Equal(t, tc.want, body["error"])
		})
	}

	balance, err := store.Balance(t.Context(), 9)
	require.NoError(t, err)
	assert.Equal(t, int64(2), balance, "rejected requests must not touch the balance")
}
