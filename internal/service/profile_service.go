package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"deptdesk/config"
	"deptdesk/internal/dto"
	"deptdesk/internal/model"
	"deptdesk/internal/repository"
	pkgerrors "deptdesk/pkg/errors"
	"deptdesk/pkg/redis"
)

var (
	ErrProfileIncomplete = errors.New("profile is missing required fields")
)

// ProfileService 本人教师资料服务
type ProfileService interface {
	Get(ctx context.Context, userID string) (*dto.ProfileResponse, error)
	Update(ctx context.Context, userID string, req *dto.UpdateProfileRequest) (*dto.ProfileResponse, error)
}

type profileService struct {
	cfg    *config.Config
	repo   *repository.Repository
	cache  JSONCache
	logger *zap.Logger
}

// NewProfileService 创建 ProfileService，cache 可为 nil
func NewProfileService(cfg *config.Config, repo *repository.Repository, cache JSONCache, logger *zap.Logger) ProfileService {
	return &profileService{cfg: cfg, repo: repo, cache: cache, logger: logger}
}

func profileCacheKey(userID string) string {
	return "cache:profile:" + userID
}

// ────────────────────── Get ──────────────────────

func (s *profileService) Get(ctx context.Context, userID string) (*dto.ProfileResponse, error) {
	if s.cache != nil {
		var cached dto.ProfileResponse
		err := s.cache.GetJSON(ctx, profileCacheKey(userID), &cached)
		if err == nil {
			return &cached, nil
		}
		if !errors.Is(err, redis.ErrCacheMiss) {
			s.logger.Warn("read profile cache failed", zap.String("user_id", userID), zap.Error(err))
		}
	}

	user, err := s.repo.Profile.GetWithUser(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		s.logger.Error("load profile failed", zap.String("user_id", userID), zap.Error(err))
		return nil, err
	}

	resp := toProfileResponse(user)
	s.store(ctx, resp)
	return resp, nil
}

// ────────────────────── Update ──────────────────────

func (s *profileService) Update(ctx context.Context, userID string, req *dto.UpdateProfileRequest) (*dto.ProfileResponse, error) {
	required := []struct {
		name  string
		value string
	}{
		{"name", req.Name},
		{"email", req.Email},
		{"title", req.Title},
		{"department", req.Department},
		{"qualification", req.Qualification},
	}
	var missing []string
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrProfileIncomplete, strings.Join(missing, ", "))
	}

	user := &model.User{
		UserID: userID,
		Name:   strings.TrimSpace(req.Name),
		Email:  strings.ToLower(strings.TrimSpace(req.Email)),
	}
	profile := &model.LecturerProfile{
		Title:         strings.TrimSpace(req.Title),
		Department:    strings.TrimSpace(req.Department),
		Qualification: strings.TrimSpace(req.Qualification),
		Phone:         strings.TrimSpace(req.Phone),
		Office:        strings.TrimSpace(req.Office),
		Research:      req.Research,
		ProfileImage:  req.ProfileImage,
	}

	if err := s.repo.Profile.Save(ctx, user, profile); err != nil {
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			return nil, ErrUserNotFound
		case errors.Is(err, pkgerrors.ErrDuplicateKey):
			return nil, ErrEmailTaken
		}
		s.logger.Error("save profile failed", zap.String("user_id", userID), zap.Error(err))
		return nil, err
	}

	s.invalidate(ctx, userID)
	s.logger.Info("profile updated", zap.String("user_id", userID))

	// 重新加载，使时间戳与角色以存储为准
	return s.Get(ctx, userID)
}

// ── 缓存 ──

func (s *profileService) store(ctx context.Context, resp *dto.ProfileResponse) {
	if s.cache == nil {
		return
	}
	if err := s.cache.SetJSON(ctx, profileCacheKey(resp.UserID), resp, s.cfg.Cache.ProfileTTL); err != nil {
		s.logger.Warn("write profile cache failed", zap.String("user_id", resp.UserID), zap.Error(err))
	}
}

func (s *profileService) invalidate(ctx context.Context, userID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, profileCacheKey(userID)); err != nil {
		s.logger.Warn("drop profile cache failed", zap.String("user_id", userID), zap.Error(err))
	}
}

func toProfileResponse(user *model.User) *dto.ProfileResponse {
	resp := &dto.ProfileResponse{
		UserID: user.UserID,
		Name:   user.Name,
		Email:  user.Email,
		Role:   user.Role,
	}
	if p := user.Profile; p != nil {
		resp.Title = p.Title
		resp.Department = p.Department
		resp.Qualification = p.Qualification
		resp.Phone = p.Phone
		resp.Office = p.Office
		resp.Research = p.Research
		resp.ProfileImage = p.ProfileImage
		resp.UpdatedAt = p.UpdatedAt.Format(timeLayout)
	}
	return resp
}
