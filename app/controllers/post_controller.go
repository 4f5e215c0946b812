package controllers

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/marcwilhelm/echowave/app/models"
	"github.com/marcwilhelm/echowave/app/repository"
	"github.com/marcwilhelm/echowave/internal/pkg/audiostorage"
	"github.com/marcwilhelm/echowave/internal/pkg/database"
	"github.com/marcwilhelm/echowave/internal/pkg/ledger"
	"github.com/marcwilhelm/echowave/internal/pkg/usercontext"
)

const (
	postPageSize       = 20
	postTokenCost      = 1
	defaultContentType = "audio/mpeg"
)

type createPostRequest struct {
	Title          string  `json:"title"`
	AudioObjectKey string  `json:"audio_object_key"`
	Duration       float64 `json:"duration"`
}

// HandleCreateUploadSession presigns an upload slot for the user's next clip.
// It refuses outright when the balance could not cover the post, so clients
// never upload audio they cannot publish.
func HandleCreateUploadSession(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return jsonError(c, fiber.StatusUnauthorized, "not_authenticated")
	}

	tokenLedger := ledger.NewServiceFromDB(database.GetDB())
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	balance, err := tokenLedger.Balance(ctx, userCtx.UserID)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "balance_lookup_failed")
	}
	if balance < postTokenCost {
		return c.Status(fiber.StatusPaymentRequired).JSON(fiber.Map{
			"error":          "insufficient_tokens",
			"current_tokens": balance,
		})
	}

	client, err := audiostorage.NewClientFromEnv()
	if err != nil {
		log.Errorf("audio storage unavailable: %v", err)
		return jsonError(c, fiber.StatusServiceUnavailable, "storage_unavailable")
	}

	contentType := strings.TrimSpace(c.Query("content_type"))
	if contentType == "" {
		contentType = defaultContentType
	}

	objectKey := audiostorage.NewObjectKey(userCtx.UserID)
	uploadURL, err := client.PresignUpload(ctx, objectKey, contentType)
	if err != nil {
		log.Errorf("presign upload failed for user %d: %v", userCtx.UserID, err)
		return jsonError(c, fiber.StatusInternalServerError, "presign_failed")
	}

	return c.JSON(fiber.Map{
		"upload_url":     uploadURL,
		"object_key":     objectKey,
		"current_tokens": balance,
	})
}

// HandleCreatePost publishes a clip. The token debit comes first; the post
// row is only written once the debit succeeded, and a failed insert credits
// the token back.
func HandleCreatePost(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return jsonError(c, fiber.StatusUnauthorized, "not_authenticated")
	}

	repos := repository.GetGlobalFactory().GetRepositories()
	tokenLedger := ledger.NewServiceFromDB(database.GetDB())
	return handleCreatePost(c, repos.User, repos.Post, tokenLedger, userCtx.UserID)
}

func handleCreatePost(c *fiber.Ctx, users repository.UserRepository, posts repository.PostRepository, tokenLedger *ledger.Service, userID uint) error {
	var req createPostRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid_request_body")
	}
	if strings.TrimSpace(req.Title) == "" {
		return jsonError(c, fiber.StatusBadRequest, "title_required")
	}
	if strings.TrimSpace(req.AudioObjectKey) == "" {
		return jsonError(c, fiber.StatusBadRequest, "audio_object_key_required")
	}
	if req.Duration < 0 {
		return jsonError(c, fiber.StatusBadRequest, "invalid_duration")
	}

	user, err := users.GetByID(userID)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "user_lookup_failed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	remaining, err := tokenLedger.Debit(ctx, userID, postTokenCost)
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrInsufficientTokens):
			balance, balanceErr := tokenLedger.Balance(ctx, userID)
			if balanceErr != nil {
				balance = 0
			}
			return c.Status(fiber.StatusPaymentRequired).JSON(fiber.Map{
				"error":          "insufficient_tokens",
				"current_tokens": balance,
			})
		case errors.Is(err, ledger.ErrWriteConflict):
			return jsonError(c, fiber.StatusServiceUnavailable, "ledger_busy")
		default:
			return jsonError(c, fiber.StatusInternalServerError, "debit_failed")
		}
	}

	post := &models.Post{
		UserID:         userID,
		Title:          strings.TrimSpace(req.Title),
		AudioObjectKey: strings.TrimSpace(req.AudioObjectKey),
		Duration:       req.Duration,
		UserName:       user.Name,
		UserAvatarURL:  user.AvatarURL,
	}
	if err := post.Validate(); err != nil {
		if _, creditErr := tokenLedger.Credit(ctx, userID, postTokenCost); creditErr != nil {
			log.Errorf("refund after rejected post failed for user %d: %v", userID, creditErr)
		}
		return jsonError(c, fiber.StatusBadRequest, "invalid_post")
	}
	if err := posts.Create(post); err != nil {
		// Compensating credit: the debit already landed but nothing was
		// published for it.
		if _, creditErr := tokenLedger.Credit(ctx, userID, postTokenCost); creditErr != nil {
			log.Errorf("refund after failed post insert failed for user %d: %v", userID, creditErr)
		}
		log.Errorf("post insert failed for user %d: %v", userID, err)
		return jsonError(c, fiber.StatusInternalServerError, "post_create_failed")
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"post":              post,
		"new_token_balance": remaining,
	})
}

// HandleListPosts returns the public feed, newest first.
func HandleListPosts(c *fiber.Ctx) error {
	posts := repository.GetGlobalFactory().GetPostRepository()

	page := c.QueryInt("page", 1)
	if page < 1 {
		page = 1
	}
	offset := (page - 1) * postPageSize

	items, err := posts.List(offset, postPageSize)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "post_list_failed")
	}
	total, err := posts.Count()
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "post_list_failed")
	}

	return c.JSON(fiber.Map{
		"posts": items,
		"page":  page,
		"total": total,
	})
}

// HandleGetMyPosts returns the current user's posts, newest first.
func HandleGetMyPosts(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return jsonError(c, fiber.StatusUnauthorized, "not_authenticated")
	}

	posts := repository.GetGlobalFactory().GetPostRepository()

	page := c.QueryInt("page", 1)
	if page < 1 {
		page = 1
	}
	offset := (page - 1) * postPageSize

	items, err := posts.ListByUser(userCtx.UserID, offset, postPageSize)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "post_list_failed")
	}
	total, err := posts.CountByUser(userCtx.UserID)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "post_list_failed")
	}

	return c.JSON(fiber.Map{
		"posts": items,
		"page":  page,
		"total": total,
	})
}

// HandleGetPost returns a single post by its public UUID.
func HandleGetPost(c *fiber.Ctx) error {
	posts := repository.GetGlobalFactory().GetPostRepository()

	post, err := posts.GetByUUID(c.Params("uuid"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return jsonError(c, fiber.StatusNotFound, "post_not_found")
		}
		return jsonError(c, fiber.StatusInternalServerError, "post_lookup_failed")
	}
	return c.JSON(fiber.Map{"post": post})
}

// HandleGetAudioURL presigns a short-lived playback URL for a post's audio.
func HandleGetAudioURL(c *fiber.Ctx) error {
	posts := repository.GetGlobalFactory().GetPostRepository()

	post, err := posts.GetByUUID(c.Params("uuid"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return jsonError(c, fiber.StatusNotFound, "post_not_found")
		}
		return jsonError(c, fiber.StatusInternalServerError, "post_lookup_failed")
	}

	client, err := audiostorage.NewClientFromEnv()
	if err != nil {
		log.Errorf("audio storage unavailable: %v", err)
		return jsonError(c, fiber.StatusServiceUnavailable, "storage_unavailable")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	url, err := client.PresignPlayback(ctx, post.AudioObjectKey)
	if err != nil {
		log.Errorf("presign playback failed for post %s: %v", post.UUID, err)
		return jsonError(c, fiber.StatusInternalServerError, "presign_failed")
	}
	return c.JSON(fiber.Map{"url": url})
}
