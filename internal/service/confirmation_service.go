package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/activity-credit-api/internal/apperr"
	"github.com/noah-isme/activity-credit-api/internal/authz"
	"github.com/noah-isme/activity-credit-api/internal/dto"
)

// Destructive actions that must be confirmed with a token.
const (
	ConfirmDelete   = "delete"
	ConfirmWithdraw = "withdraw"
)

// ConfirmationService issues and consumes single-use confirmation tokens.
type ConfirmationService interface {
	Issue(ctx context.Context, user authz.User, activityID uint, action string) (dto.ConfirmationResponse, error)
	Consume(ctx context.Context, user authz.User, activityID uint, action, token string) error
}

type confirmationService struct {
	redis  *redis.Client
	prefix string
	ttl    time.Duration
	now    func() time.Time
	logger zerolog.Logger
}

// NewConfirmationService stores tokens in Redis under prefix with the given TTL.
func NewConfirmationService(client *redis.Client, prefix string, ttl time.Duration, logger zerolog.Logger) ConfirmationService {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if prefix == "" {
		prefix = "credit"
	}
	return &confirmationService{
		redis:  client,
		prefix: prefix + ":confirm:",
		ttl:    ttl,
		now:    time.Now,
		logger: logger.With().Str("component", "confirmation_service").Logger(),
	}
}

func (s *confirmationService) Issue(ctx context.Context, user authz.User, activityID uint, action string) (dto.ConfirmationResponse, error) {
	if action != ConfirmDelete && action != ConfirmWithdraw {
		return dto.ConfirmationResponse{}, apperr.Validation("action", "must be one of delete withdraw")
	}
	if s.redis == nil {
		return dto.ConfirmationResponse{}, errors.New("confirmation store unavailable")
	}

	token := uuid.NewString()
	if err := s.redis.Set(ctx, s.prefix+token, binding(user.ID, activityID, action), s.ttl).Err(); err != nil {
		s.logger.Error().Err(err).Uint("activity_id", activityID).Msg("failed to store confirmation token")
		return dto.ConfirmationResponse{}, err
	}

	return dto.ConfirmationResponse{
		Token:      token,
		Action:     action,
		ActivityID: activityID,
		ExpiresAt:  s.now().Add(s.ttl).UTC(),
	}, nil
}

func (s *confirmationService) Consume(ctx context.Context, user authz.User, activityID uint, action, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return apperr.Validation("confirmation_token", "is required")
	}
	if s.redis == nil {
		return errors.New("confirmation store unavailable")
	}

	stored, err := s.redis.GetDel(ctx, s.prefix+token).Result()
	if errors.Is(err, redis.Nil) {
		return apperr.Validation("confirmation_token", "invalid or expired confirmation token")
	}
	if err != nil {
		return err
	}
	if stored != binding(user.ID, activityID, action) {
		return apperr.Validation("confirmation_token", "confirmation token does not match this action")
	}
	return nil
}

func binding(userID, activityID uint, action string) string {
	return fmt.Sprintf("%d:%d:%s", userID, activityID, action)
}
