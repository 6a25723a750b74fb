package service

import (
	"go.uber.org/zap"

	"deptdesk/config"
	"deptdesk/internal/repository"
	"deptdesk/pkg/jwt"
	"deptdesk/pkg/mq"
	"deptdesk/pkg/redis"
)

// Service 聚合所有 Service
type Service struct {
	Auth    AuthService
	Profile ProfileService
	Course  CourseService
	Booking BookingService
	Event   EventService
}

// NewService 组装所有 Service。rdb 可为 nil：此时 Token 吊销、礼堂锁
// 与资料缓存均降级为空操作
func NewService(
	cfg *config.Config,
	repo *repository.Repository,
	jwtMgr *jwt.Manager,
	rdb *redis.Client,
	publisher mq.Publisher,
	logger *zap.Logger,
) *Service {
	var (
		blacklist TokenBlacklist
		locker    HallLocker
		cache     JSONCache
	)
	if rdb != nil {
		blacklist, locker, cache = rdb, rdb, rdb
	}
	if publisher == nil {
		publisher = mq.NopPublisher{}
	}

	return &Service{
		Auth:    NewAuthService(cfg, repo, jwtMgr, blacklist, cache, logger),
		Profile: NewProfileService(cfg, repo, cache, logger),
		Course:  NewCourseService(repo, publisher, logger),
		Booking: NewBookingService(cfg, repo, locker, publisher, logger),
		Event:   NewEventService(repo, publisher, logger),
	}
}
