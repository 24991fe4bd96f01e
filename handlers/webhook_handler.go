package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	svix "github.com/svix/svix-webhooks/go"
	"go.uber.org/zap"

	"dietTrackerAPI/internal/types/clerk"
	"dietTrackerAPI/internal/types/user"
	"dietTrackerAPI/services"
)

const maxWebhookBody = int64(1 << 20)

type WebhookHandler struct {
	userService UserService
	webhook     *svix.Webhook
	logger      *zap.Logger
}

// NewWebhookHandler verifies Clerk (svix) signatures with secret. An empty
// secret disables verification, which is only meant for local development.
func NewWebhookHandler(userService UserService, secret string, logger *zap.Logger) (*WebhookHandler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &WebhookHandler{userService: userService, logger: logger}
	if secret == "" {
		logger.Warn("CLERK_WEBHOOK_SECRET not set, skipping webhook signature verification")
		return h, nil
	}

	wh, err := svix.NewWebhook(secret)
	if err != nil {
		return nil, fmt.Errorf("invalid clerk webhook secret: %w", err)
	}
	h.webhook = wh
	return h, nil
}

func (h *WebhookHandler) HandleClerkWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.logger.Warn("webhook body too large", zap.Int64("limit", tooLarge.Limit))
			http.Error(w, "Request body too large", http.StatusRequestEntityTooLarge)
			return
		}
		h.logger.Error("error reading webhook body", zap.Error(err))
		http.Error(w, "Error reading body", http.StatusBadRequest)
		return
	}

	if h.webhook != nil {
		if err := h.webhook.Verify(body, r.Header); err != nil {
			h.logger.Warn("invalid webhook signature", zap.Error(err))
			http.Error(w, "Invalid signature", http.StatusUnauthorized)
			return
		}
	}

	var event clerk.ClerkWebhookEvent
	if err := json.NewDecoder(bytes.NewReader(body)).Decode(&event); err != nil {
		h.logger.Error("error parsing webhook", zap.Error(err))
		http.Error(w, "Error parsing webhook", http.StatusBadRequest)
		return
	}

	h.logger.Info("received webhook event", zap.String("type", event.Type))

	ctx := r.Context()
	switch event.Type {
	case "user.created":
		err = h.handleUserCreated(ctx, event.Data)
	case "user.updated":
		err = h.handleUserUpdated(ctx, event.Data)
	case "user.deleted":
		err = h.handleUserDeleted(ctx, event.Data)
	default:
		h.logger.Debug("unhandled webhook event type", zap.String("type", event.Type))
	}
	if err != nil {
		h.logger.Error("error handling webhook", zap.String("type", event.Type), zap.Error(err))
		http.Error(w, "Error processing webhook", http.StatusInternalServerError)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *WebhookHandler) handleUserCreated(ctx context.Context, data json.RawMessage) error {
	var userData clerk.ClerkUserData
	if err := json.Unmarshal(data, &userData); err != nil {
		return fmt.Errorf("failed to unmarshal user data: %w", err)
	}

	email, _ := userData.PrimaryEmail()
	created, err := h.userService.CreateUser(ctx, &user.CreateUserRequest{
		ClerkID:       userData.ID,
		Email:         email.EmailAddress,
		Username:      usernameFor(userData),
		FirstName:     userData.FirstName,
		LastName:      userData.LastName,
		ImageURL:      imageURLFor(userData),
		EmailVerified: email.Verification.Status == "verified",
	})
	if errors.Is(err, user.ErrDuplicateProfile) {
		// Clerk retries deliveries; the profile from the first one stands.
		h.logger.Info("user already exists", zap.String("clerk_id", userData.ID))
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to create user in database: %w", err)
	}

	h.logger.Info("created user", zap.String("clerk_id", created.ClerkID), zap.String("user_id", created.ID))
	return nil
}

func (h *WebhookHandler) handleUserUpdated(ctx context.Context, data json.RawMessage) error {
	var userData clerk.ClerkUserData
	if err := json.Unmarshal(data, &userData); err != nil {
		return fmt.Errorf("failed to unmarshal user data: %w", err)
	}

	_, err := h.userService.UpdateProfileByClerkID(ctx, userData.ID, &user.UpdateProfileRequest{
		Username:  usernameFor(userData),
		FirstName: userData.FirstName,
		LastName:  userData.LastName,
		ImageURL:  imageURLFor(userData),
	})
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}

	h.logger.Info("updated user", zap.String("clerk_id", userData.ID))
	return nil
}

func (h *WebhookHandler) handleUserDeleted(ctx context.Context, data json.RawMessage) error {
	var userData struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &userData); err != nil {
		return fmt.Errorf("failed to unmarshal user data: %w", err)
	}

	err := h.userService.DeleteUserByClerkID(ctx, userData.ID)
	if errors.Is(err, services.ErrUserNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	h.logger.Info("deleted user", zap.String("clerk_id", userData.ID))
	return nil
}

func usernameFor(u clerk.ClerkUserData) string {
	if u.Username != "" {
		return u.Username
	}
	return u.FirstName + u.LastName
}

func imageURLFor(u clerk.ClerkUserData) string {
	if u.ImageURL != "" {
		return u.ImageURL
	}
	return u.ProfileImageURL
}
