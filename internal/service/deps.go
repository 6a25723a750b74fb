package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"deptdesk/internal/repository"
	"deptdesk/internal/rules"
	"deptdesk/pkg/mq"
	"deptdesk/pkg/redis"
)

// TokenBlacklist 已吊销的 Token ID
type TokenBlacklist interface {
	BlacklistToken(ctx context.Context, jti string, ttl time.Duration) error
	IsBlacklisted(ctx context.Context, jti string) (bool, error)
}

// HallLocker 跨实例短时互斥锁
type HallLocker interface {
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (*redis.Lock, bool, error)
}

// JSONCache 带过期时间的读穿缓存
type JSONCache interface {
	SetJSON(ctx context.Context, key string, v interface{}, ttl time.Duration) error
	GetJSON(ctx context.Context, key string, v interface{}) error
	Delete(ctx context.Context, keys ...string) error
}

const timeLayout = "2006-01-02T15:04:05Z"

// lookupActor 加载调用者当前的 ID 与姓名
func lookupActor(ctx context.Context, repo *repository.Repository, userID string) (rules.Actor, error) {
	user, err := repo.User.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return rules.Actor{}, ErrUserNotFound
		}
		return rules.Actor{}, err
	}
	return rules.Actor{ID: user.UserID, Name: user.Name}, nil
}

func ownerOf(ownerID *string, ownerName string) rules.Owner {
	o := rules.Owner{Name: ownerName}
	if ownerID != nil {
		o.ID = *ownerID
	}
	return o
}

// publish 发布领域事件，消息队列失败不影响请求
func publish(ctx context.Context, pub mq.Publisher, logger *zap.Logger, routingKey string, payload interface{}) {
	if err := pub.Publish(ctx, routingKey, payload); err != nil {
		logger.Warn("publish domain event failed",
			zap.String("routing_key", routingKey),
			zap.Error(err),
		)
	}
}
