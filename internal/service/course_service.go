package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"deptdesk/internal/dto"
	"deptdesk/internal/model"
	"deptdesk/internal/repository"
	"deptdesk/internal/rules"
	pkgerrors "deptdesk/pkg/errors"
	"deptdesk/pkg/metrics"
	"deptdesk/pkg/mq"
)

var (
	ErrCourseNotFound   = errors.New("course not found")
	ErrIncompleteCourse = errors.New("course number and name are required")
)

// CourseService 课程服务
//
// 课程编号忽略大小写与首尾空格后唯一；
// 仅创建者可编辑或删除课程
type CourseService interface {
	List(ctx context.Context) ([]dto.CourseResponse, error)
	GetByID(ctx context.Context, id string) (*dto.CourseResponse, error)
	Create(ctx context.Context, req *dto.CreateCourseRequest, callerID string) (*dto.CourseResponse, error)
	Update(ctx context.Context, id string, req *dto.UpdateCourseRequest, callerID string) (*dto.CourseResponse, error)
	Delete(ctx context.Context, id string, callerID string) error
}

type courseService struct {
	repo      *repository.Repository
	publisher mq.Publisher
	logger    *zap.Logger
}

// NewCourseService 创建 CourseService
func NewCourseService(repo *repository.Repository, publisher mq.Publisher, logger *zap.Logger) CourseService {
	return &courseService{repo: repo, publisher: publisher, logger: logger}
}

// ────────────────────── Create ──────────────────────

func (s *courseService) Create(ctx context.Context, req *dto.CreateCourseRequest, callerID string) (*dto.CourseResponse, error) {
	actor, err := lookupActor(ctx, s.repo, callerID)
	if err != nil {
		return nil, err
	}

	number := strings.TrimSpace(req.CourseNumber)
	name := strings.TrimSpace(req.CourseName)
	if number == "" || name == "" {
		return nil, ErrIncompleteCourse
	}
	if err := s.checkDuplicate(ctx, number, ""); err != nil {
		return nil, err
	}

	course := &model.Course{
		CourseNumber: number,
		CourseName:   name,
		OwnerName:    actor.Name,
		OwnerID:      &actor.ID,
	}
	if err := s.repo.Course.Create(ctx, course); err != nil {
		if errors.Is(err, pkgerrors.ErrDuplicateKey) {
			return nil, rules.ErrDuplicateCourseNumber
		}
		s.logger.Error("create course failed", zap.Error(err))
		return nil, err
	}

	resp := s.toCourseResponse(course)
	publish(ctx, s.publisher, s.logger, "course.created", resp)
	return resp, nil
}

// ────────────────────── Read ──────────────────────

func (s *courseService) GetByID(ctx context.Context, id string) (*dto.CourseResponse, error) {
	course, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.toCourseResponse(course), nil
}

func (s *courseService) List(ctx context.Context) ([]dto.CourseResponse, error) {
	courses, err := s.repo.Course.List(ctx)
	if err != nil {
		s.logger.Error("list courses failed", zap.Error(err))
		return nil, err
	}

	result := make([]dto.CourseResponse, 0, len(courses))
	for i := range courses {
		result = append(result, *s.toCourseResponse(&courses[i]))
	}
	return result, nil
}

// ────────────────────── Update ──────────────────────

func (s *courseService) Update(ctx context.Context, id string, req *dto.UpdateCourseRequest, callerID string) (*dto.CourseResponse, error) {
	course, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, course, callerID); err != nil {
		return nil, err
	}

	// 传入的字段不能为空
	if req.CourseNumber != nil {
		number := strings.TrimSpace(*req.CourseNumber)
		if number == "" {
			return nil, ErrIncompleteCourse
		}
		if err := s.checkDuplicate(ctx, number, course.CourseID); err != nil {
			return nil, err
		}
		course.CourseNumber = number
	}
	if req.CourseName != nil {
		name := strings.TrimSpace(*req.CourseName)
		if name == "" {
			return nil, ErrIncompleteCourse
		}
		course.CourseName = name
	}

	if err := s.repo.Course.Update(ctx, course); err != nil {
		switch {
		case errors.Is(err, pkgerrors.ErrDuplicateKey):
			return nil, rules.ErrDuplicateCourseNumber
		case errors.Is(err, gorm.ErrRecordNotFound):
			return nil, ErrCourseNotFound
		}
		s.logger.Error("update course failed", zap.String("id", id), zap.Error(err))
		return nil, err
	}

	resp := s.toCourseResponse(course)
	publish(ctx, s.publisher, s.logger, "course.updated", resp)
	return resp, nil
}

// ────────────────────── Delete ──────────────────────

func (s *courseService) Delete(ctx context.Context, id string, callerID string) error {
	course, err := s.get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.authorize(ctx, course, callerID); err != nil {
		return err
	}

	if err := s.repo.Course.Delete(ctx, id); err != nil {
		s.logger.Error("delete course failed", zap.String("id", id), zap.Error(err))
		return err
	}

	publish(ctx, s.publisher, s.logger, "course.deleted", map[string]string{"id": id})
	return nil
}

// ── 辅助函数 ──

func (s *courseService) get(ctx context.Context, id string) (*model.Course, error) {
	course, err := s.repo.Course.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCourseNotFound
		}
		s.logger.Error("load course failed", zap.String("id", id), zap.Error(err))
		return nil, err
	}
	return course, nil
}

func (s *courseService) authorize(ctx context.Context, course *model.Course, callerID string) error {
	actor, err := lookupActor(ctx, s.repo, callerID)
	if err != nil {
		return err
	}
	if !rules.AuthorizeOwner(actor, ownerOf(course.OwnerID, course.OwnerName)) {
		metrics.IncOwnershipDenied("course")
		return rules.ErrNotOwner
	}
	return nil
}

// checkDuplicate 提前给出友好提示，并发竞争由唯一索引兜底
func (s *courseService) checkDuplicate(ctx context.Context, number, excludeID string) error {
	courses, err := s.repo.Course.List(ctx)
	if err != nil {
		s.logger.Error("list courses failed", zap.Error(err))
		return err
	}
	existing := make([]rules.Course, 0, len(courses))
	for _, c := range courses {
		existing = append(existing, rules.Course{ID: c.CourseID, CourseNumber: c.CourseNumber})
	}
	if rules.IsDuplicateCourseNumber(number, existing, excludeID) {
		return rules.ErrDuplicateCourseNumber
	}
	return nil
}

func (s *courseService) toCourseResponse(c *model.Course) *dto.CourseResponse {
	return &dto.CourseResponse{
		ID:           c.CourseID,
		CourseNumber: c.CourseNumber,
		CourseName:   c.CourseName,
		OwnerName:    c.OwnerName,
		CreatedAt:    c.CreatedAt.Format(timeLayout),
		UpdatedAt:    c.UpdatedAt.Format(timeLayout),
	}
}
