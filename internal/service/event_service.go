package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"deptdesk/internal/dto"
	"deptdesk/internal/model"
	"deptdesk/internal/repository"
	"deptdesk/internal/rules"
	"deptdesk/pkg/metrics"
	"deptdesk/pkg/mq"
)

var (
	ErrEventNotFound    = errors.New("event not found")
	ErrInvalidEventTime = errors.New("event date or time is invalid")
)

// EventService 院系活动服务
type EventService interface {
	List(ctx context.Context, req *dto.ListEventsRequest) (*dto.PageResult[dto.EventResponse], error)
	GetByID(ctx context.Context, id string) (*dto.EventResponse, error)
	Create(ctx context.Context, req *dto.EventRequest, callerID string) (*dto.EventResponse, error)
	Update(ctx context.Context, id string, req *dto.EventRequest, callerID string) (*dto.EventResponse, error)
	Delete(ctx context.Context, id string, callerID string) error
}

type eventService struct {
	repo      *repository.Repository
	publisher mq.Publisher
	logger    *zap.Logger
}

// NewEventService 创建 EventService
func NewEventService(repo *repository.Repository, publisher mq.Publisher, logger *zap.Logger) EventService {
	return &eventService{repo: repo, publisher: publisher, logger: logger}
}

// ────────────────────── Create ──────────────────────

func (s *eventService) Create(ctx context.Context, req *dto.EventRequest, callerID string) (*dto.EventResponse, error) {
	actor, err := lookupActor(ctx, s.repo, callerID)
	if err != nil {
		return nil, err
	}

	event := &model.Event{OwnerName: actor.Name, OwnerID: &actor.ID}
	if err := applyEventRequest(event, req); err != nil {
		return nil, err
	}

	if err := s.repo.Event.Create(ctx, event); err != nil {
		s.logger.Error("create event failed", zap.Error(err))
		return nil, err
	}

	resp := toEventResponse(event)
	publish(ctx, s.publisher, s.logger, "event.created", resp)
	return resp, nil
}

// ────────────────────── Read ──────────────────────

func (s *eventService) GetByID(ctx context.Context, id string) (*dto.EventResponse, error) {
	event, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	return toEventResponse(event), nil
}

func (s *eventService) List(ctx context.Context, req *dto.ListEventsRequest) (*dto.PageResult[dto.EventResponse], error) {
	events, total, err := s.repo.Event.List(ctx, req.Query, req.GetOffset(), req.GetPageSize())
	if err != nil {
		s.logger.Error("list events failed", zap.Error(err))
		return nil, err
	}

	items := make([]dto.EventResponse, 0, len(events))
	for i := range events {
		items = append(items, *toEventResponse(&events[i]))
	}
	return &dto.PageResult[dto.EventResponse]{
		Items:    items,
		Total:    total,
		Page:     req.GetPage(),
		PageSize: req.GetPageSize(),
	}, nil
}

// ────────────────────── Update ──────────────────────

func (s *eventService) Update(ctx context.Context, id string, req *dto.EventRequest, callerID string) (*dto.EventResponse, error) {
	event, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, event, callerID); err != nil {
		return nil, err
	}
	if err := applyEventRequest(event, req); err != nil {
		return nil, err
	}

	if err := s.repo.Event.Update(ctx, event); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEventNotFound
		}
		s.logger.Error("update event failed", zap.String("id", id), zap.Error(err))
		return nil, err
	}

	resp := toEventResponse(event)
	publish(ctx, s.publisher, s.logger, "event.updated", resp)
	return resp, nil
}

// ────────────────────── Delete ──────────────────────

func (s *eventService) Delete(ctx context.Context, id string, callerID string) error {
	event, err := s.get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.authorize(ctx, event, callerID); err != nil {
		return err
	}

	if err := s.repo.Event.Delete(ctx, id); err != nil {
		s.logger.Error("delete event failed", zap.String("id", id), zap.Error(err))
		return err
	}

	publish(ctx, s.publisher, s.logger, "event.deleted", map[string]string{"id": id})
	return nil
}

// ── 辅助函数 ──

func (s *eventService) get(ctx context.Context, id string) (*model.Event, error) {
	event, err := s.repo.Event.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEventNotFound
		}
		s.logger.Error("load event failed", zap.String("id", id), zap.Error(err))
		return nil, err
	}
	return event, nil
}

func (s *eventService) authorize(ctx context.Context, event *model.Event, callerID string) error {
	actor, err := lookupActor(ctx, s.repo, callerID)
	if err != nil {
		return err
	}
	if !rules.AuthorizeOwner(actor, ownerOf(event.OwnerID, event.OwnerName)) {
		metrics.IncOwnershipDenied("event")
		return rules.ErrNotOwner
	}
	return nil
}

// applyEventRequest 将 req 写入 event 并计算不带时区的开始时间
func applyEventRequest(event *model.Event, req *dto.EventRequest) error {
	date := strings.TrimSpace(req.Date)
	clock, err := rules.NormalizeClock(req.Time)
	if err != nil {
		return ErrInvalidEventTime
	}
	startsAt, err := time.Parse("2006-01-02 15:04", date+" "+clock)
	if err != nil {
		return ErrInvalidEventTime
	}

	event.Title = strings.TrimSpace(req.Title)
	event.Date = date
	event.Time = clock
	event.Location = strings.TrimSpace(req.Location)
	event.Description = strings.TrimSpace(req.Description)
	event.StartsAt = startsAt
	return nil
}

func toEventResponse(e *model.Event) *dto.EventResponse {
	return &dto.EventResponse{
		ID:          e.EventID,
		Title:       e.Title,
		Date:        e.Date,
		Time:        e.Time,
		Location:    e.Location,
		Description: e.Description,
		OwnerName:   e.OwnerName,
		CreatedAt:   e.CreatedAt.Format(timeLayout),
		UpdatedAt:   e.UpdatedAt.Format(timeLayout),
	}
}
