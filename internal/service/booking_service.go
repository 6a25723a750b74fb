package service

import (
	"bytes"
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"deptdesk/config"
	"deptdesk/internal/dto"
	"deptdesk/internal/model"
	"deptdesk/internal/repository"
	"deptdesk/internal/rules"
	"deptdesk/pkg/metrics"
	"deptdesk/pkg/mq"
	"deptdesk/pkg/redis"
)

var (
	ErrBookingNotFound = errors.New("booking not found")
	ErrUnknownHall     = errors.New("unknown lecture hall")
	ErrInvalidDate     = errors.New("date must be formatted YYYY-MM-DD")
	ErrHallBusy        = errors.New("another booking for this hall and date is being saved, please retry")
)

const dateLayout = "2006-01-02"

const (
	lockRetryMin = 10 * time.Millisecond
	lockRetryMax = 200 * time.Millisecond
)

// BookingService 礼堂预约服务
//
// 每次写入都在仓储层加锁事务内，用 rules.ValidateBooking
// 校验同礼堂同日期的已有预约。仅创建者可编辑或删除预约
type BookingService interface {
	Halls() []dto.HallResponse
	List(ctx context.Context, req *dto.ListBookingsRequest) ([]dto.BookingResponse, error)
	GetByID(ctx context.Context, id string) (*dto.BookingResponse, error)
	// Check 只校验不写入，判断 req 当前能否保存
	Check(ctx context.Context, req *dto.BookingRequest, excludeID, callerID string) (*dto.BookingCheckResponse, error)
	Create(ctx context.Context, req *dto.BookingRequest, callerID string) (*dto.BookingResponse, error)
	Update(ctx context.Context, id string, req *dto.BookingRequest, callerID string) (*dto.BookingResponse, error)
	Delete(ctx context.Context, id string, callerID string) error
	ExportXLSX(ctx context.Context, req *dto.ExportBookingsRequest) (*bytes.Buffer, string, error)
	ExportICS(ctx context.Context, req *dto.ExportBookingsRequest) ([]byte, string, error)
}

type bookingService struct {
	halls     []string
	lockTTL   time.Duration
	repo      *repository.Repository
	locker    HallLocker
	publisher mq.Publisher
	logger    *zap.Logger
}

// NewBookingService 创建 BookingService。locker 可为 nil，
// 此时写入仅依赖数据库 advisory lock
func NewBookingService(
	cfg *config.Config,
	repo *repository.Repository,
	locker HallLocker,
	publisher mq.Publisher,
	logger *zap.Logger,
) BookingService {
	lockTTL := cfg.Booking.LockTTL
	if lockTTL <= 0 {
		lockTTL = 5 * time.Second
	}
	halls := make([]string, 0, len(cfg.Booking.Halls))
	for _, h := range cfg.Booking.Halls {
		halls = append(halls, strings.TrimSpace(h))
	}
	return &bookingService{
		halls:     halls,
		lockTTL:   lockTTL,
		repo:      repo,
		locker:    locker,
		publisher: publisher,
		logger:    logger,
	}
}

// ────────────────────── Halls ──────────────────────

func (s *bookingService) Halls() []dto.HallResponse {
	result := make([]dto.HallResponse, 0, len(s.halls))
	for _, h := range s.halls {
		result = append(result, dto.HallResponse{Name: h})
	}
	return result
}

// canonicalHall 将用户输入映射为配置中的礼堂名
func (s *bookingService) canonicalHall(hall string) (string, bool) {
	for _, h := range s.halls {
		if rules.SameName(h, hall) {
			return h, true
		}
	}
	return "", false
}

// ────────────────────── Read ──────────────────────

func (s *bookingService) List(ctx context.Context, req *dto.ListBookingsRequest) ([]dto.BookingResponse, error) {
	f := repository.BookingFilter{
		Date:     req.Date,
		DateFrom: req.DateFrom,
		DateTo:   req.DateTo,
	}
	if strings.TrimSpace(req.Hall) != "" {
		hall, ok := s.canonicalHall(req.Hall)
		if !ok {
			return nil, ErrUnknownHall
		}
		f.Hall = hall
	}

	bookings, err := s.repo.Booking.List(ctx, f)
	if err != nil {
		s.logger.Error("list bookings failed", zap.Error(err))
		return nil, err
	}

	result := make([]dto.BookingResponse, 0, len(bookings))
	for i := range bookings {
		result = append(result, *toBookingResponse(&bookings[i]))
	}
	return result, nil
}

func (s *bookingService) GetByID(ctx context.Context, id string) (*dto.BookingResponse, error) {
	b, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	return toBookingResponse(b), nil
}

// ────────────────────── Check ──────────────────────

func (s *bookingService) Check(ctx context.Context, req *dto.BookingRequest, excludeID, callerID string) (*dto.BookingCheckResponse, error) {
	actor, err := lookupActor(ctx, s.repo, callerID)
	if err != nil {
		return nil, err
	}

	cand, err := s.prepare(req, actor.Name)
	if err == nil {
		var existing []model.HallBooking
		existing, err = s.repo.Booking.ListByHallDate(ctx, cand.Hall, cand.Date)
		if err != nil {
			s.logger.Error("load hall bookings failed", zap.Error(err))
			return nil, err
		}
		err = validateAgainst(cand, existing, excludeID)
	}

	if err != nil {
		if isRejection(err) {
			return &dto.BookingCheckResponse{Available: false, Reason: err.Error()}, nil
		}
		return nil, err
	}
	return &dto.BookingCheckResponse{Available: true}, nil
}

// ────────────────────── Create ──────────────────────

func (s *bookingService) Create(ctx context.Context, req *dto.BookingRequest, callerID string) (*dto.BookingResponse, error) {
	actor, err := lookupActor(ctx, s.repo, callerID)
	if err != nil {
		return nil, err
	}

	cand, err := s.prepare(req, actor.Name)
	if err != nil {
		metrics.ObserveBookingWrite("create", outcomeOf(err))
		return nil, err
	}
	cand.OwnerID = &actor.ID

	err = s.withHallLocks(ctx, func() error {
		return s.repo.Booking.CreateChecked(ctx, cand, func(existing []model.HallBooking) error {
			return validateAgainst(cand, existing, "")
		})
	}, repository.HallDateKey(cand.Hall, cand.Date))

	metrics.ObserveBookingWrite("create", outcomeOf(err))
	if err != nil {
		if isRejection(err) {
			return nil, err
		}
		s.logger.Error("create booking failed", zap.String("hall", cand.Hall), zap.String("date", cand.Date), zap.Error(err))
		return nil, err
	}

	s.logger.Info("hall booked",
		zap.String("booking_id", cand.BookingID),
		zap.String("hall", cand.Hall),
		zap.String("date", cand.Date),
		zap.String("start", cand.StartTime),
		zap.String("end", cand.EndTime),
	)

	resp := toBookingResponse(cand)
	publish(ctx, s.publisher, s.logger, "booking.created", resp)
	return resp, nil
}

// ────────────────────── Update ──────────────────────

func (s *bookingService) Update(ctx context.Context, id string, req *dto.BookingRequest, callerID string) (*dto.BookingResponse, error) {
	current, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, current, callerID); err != nil {
		metrics.ObserveBookingWrite("update", outcomeOf(err))
		return nil, err
	}

	// 归属在创建时确定
	cand, err := s.prepare(req, current.OwnerName)
	if err != nil {
		metrics.ObserveBookingWrite("update", outcomeOf(err))
		return nil, err
	}
	cand.BookingID = current.BookingID
	cand.OwnerID = current.OwnerID
	cand.CreatedAt = current.CreatedAt

	err = s.withHallLocks(ctx, func() error {
		return s.repo.Booking.UpdateChecked(ctx, cand, current.Hall, current.Date, func(existing []model.HallBooking) error {
			return validateAgainst(cand, existing, cand.BookingID)
		})
	}, repository.HallDateKey(cand.Hall, cand.Date), repository.HallDateKey(current.Hall, current.Date))

	metrics.ObserveBookingWrite("update", outcomeOf(err))
	if err != nil {
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			return nil, ErrBookingNotFound
		case isRejection(err):
			return nil, err
		}
		s.logger.Error("update booking failed", zap.String("id", id), zap.Error(err))
		return nil, err
	}

	cand.UpdatedAt = time.Now()
	resp := toBookingResponse(cand)
	publish(ctx, s.publisher, s.logger, "booking.updated", resp)
	return resp, nil
}

// ────────────────────── Delete ──────────────────────

func (s *bookingService) Delete(ctx context.Context, id string, callerID string) error {
	current, err := s.get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.authorize(ctx, current, callerID); err != nil {
		metrics.ObserveBookingWrite("delete", outcomeOf(err))
		return err
	}

	if err := s.repo.Booking.Delete(ctx, id); err != nil {
		metrics.ObserveBookingWrite("delete", outcomeOf(err))
		s.logger.Error("delete booking failed", zap.String("id", id), zap.Error(err))
		return err
	}
	metrics.ObserveBookingWrite("delete", "ok")

	publish(ctx, s.publisher, s.logger, "booking.deleted", toBookingResponse(current))
	return nil
}

// ── 辅助函数 ──

func (s *bookingService) get(ctx context.Context, id string) (*model.HallBooking, error) {
	b, err := s.repo.Booking.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBookingNotFound
		}
		s.logger.Error("load booking failed", zap.String("id", id), zap.Error(err))
		return nil, err
	}
	return b, nil
}

func (s *bookingService) authorize(ctx context.Context, b *model.HallBooking, callerID string) error {
	actor, err := lookupActor(ctx, s.repo, callerID)
	if err != nil {
		return err
	}
	if !rules.AuthorizeOwner(actor, ownerOf(b.OwnerID, b.OwnerName)) {
		metrics.IncOwnershipDenied("booking")
		return rules.ErrNotOwner
	}
	return nil
}

// prepare 将请求转换为规范的候选记录：先校验必填字段
// 与时间先后，再校验礼堂与日期格式。时间
// 统一存为 HH:MM。
func (s *bookingService) prepare(req *dto.BookingRequest, ownerName string) (*model.HallBooking, error) {
	cand := &model.HallBooking{
		Hall:         strings.TrimSpace(req.Hall),
		Date:         strings.TrimSpace(req.Date),
		StartTime:    strings.TrimSpace(req.StartTime),
		EndTime:      strings.TrimSpace(req.EndTime),
		CourseNumber: strings.TrimSpace(req.CourseNumber),
		CourseName:   strings.TrimSpace(req.CourseName),
		OwnerName:    ownerName,
	}

	if err := rules.ValidateBooking(toRuleBooking(cand), nil, ""); err != nil {
		return nil, err
	}

	hall, ok := s.canonicalHall(cand.Hall)
	if !ok {
		return nil, ErrUnknownHall
	}
	cand.Hall = hall

	if _, err := time.Parse(dateLayout, cand.Date); err != nil {
		return nil, ErrInvalidDate
	}

	// ValidateBooking 已确认两者可解析
	cand.StartTime, _ = rules.NormalizeClock(cand.StartTime)
	cand.EndTime, _ = rules.NormalizeClock(cand.EndTime)
	return cand, nil
}

// withHallLocks 在 fn 执行期间持有 keys 对应的 Redis 锁。Redis 不可用
// 时退回数据库锁。锁被占用时最多等待
// lockTTL，超时仍被占用才返回 ErrHallBusy
func (s *bookingService) withHallLocks(ctx context.Context, fn func() error, keys ...string) error {
	if s.locker == nil {
		return fn()
	}

	sort.Strings(keys)
	var locks []*redis.Lock
	defer func() {
		for _, l := range locks {
			if err := l.Release(context.WithoutCancel(ctx)); err != nil {
				s.logger.Warn("release hall lock failed", zap.Error(err))
			}
		}
	}()

	deadline := time.Now().Add(s.lockTTL)
	for i, k := range keys {
		if i > 0 && k == keys[i-1] {
			continue
		}
		lock, err := s.acquireHallLock(ctx, "lock:"+k, deadline)
		if err != nil {
			if errors.Is(err, ErrHallBusy) || ctx.Err() != nil {
				return err
			}
			s.logger.Warn("hall lock unavailable, relying on database lock", zap.String("key", k), zap.Error(err))
			return fn()
		}
		locks = append(locks, lock)
	}

	return fn()
}

// acquireHallLock 以有上限的指数退避重试 SET NX，
// 直到 deadline
func (s *bookingService) acquireHallLock(ctx context.Context, key string, deadline time.Time) (*redis.Lock, error) {
	backoff := lockRetryMin
	for {
		lock, ok, err := s.locker.AcquireLock(ctx, key, s.lockTTL)
		if err != nil {
			return nil, err
		}
		if ok {
			return lock, nil
		}

		wait := time.Until(deadline)
		if wait <= 0 {
			metrics.IncHallLockBusy()
			return nil, ErrHallBusy
		}
		if backoff < wait {
			wait = backoff
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}

		backoff *= 2
		if backoff > lockRetryMax {
			backoff = lockRetryMax
		}
	}
}

func validateAgainst(cand *model.HallBooking, existing []model.HallBooking, excludeID string) error {
	snapshot := make([]rules.Booking, 0, len(existing))
	for i := range existing {
		snapshot = append(snapshot, toRuleBooking(&existing[i]))
	}
	return rules.ValidateBooking(toRuleBooking(cand), snapshot, excludeID)
}

func toRuleBooking(b *model.HallBooking) rules.Booking {
	return rules.Booking{
		ID:           b.BookingID,
		Hall:         b.Hall,
		Date:         b.Date,
		StartTime:    b.StartTime,
		EndTime:      b.EndTime,
		CourseNumber: b.CourseNumber,
		CourseName:   b.CourseName,
		OwnerName:    b.OwnerName,
	}
}

// isRejection 判断 err 是否为用户可修正的预期拒绝
func isRejection(err error) bool {
	return outcomeOf(err) != "error"
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, rules.ErrIncompleteBooking):
		return "incomplete"
	case errors.Is(err, rules.ErrInvalidTimeRange):
		return "invalid_time_range"
	case errors.Is(err, rules.ErrHallConflict):
		return "hall_conflict"
	case errors.Is(err, rules.ErrNotOwner):
		return "not_owner"
	case errors.Is(err, ErrUnknownHall):
		return "unknown_hall"
	case errors.Is(err, ErrInvalidDate):
		return "invalid_date"
	case errors.Is(err, ErrHallBusy):
		return "busy"
	case errors.Is(err, ErrBookingNotFound), errors.Is(err, gorm.ErrRecordNotFound):
		return "not_found"
	default:
		return "error"
	}
}

func toBookingResponse(b *model.HallBooking) *dto.BookingResponse {
	return &dto.BookingResponse{
		ID:           b.BookingID,
		Hall:         b.Hall,
		Date:         b.Date,
		StartTime:    b.StartTime,
		EndTime:      b.EndTime,
		CourseNumber: b.CourseNumber,
		CourseName:   b.CourseName,
		OwnerName:    b.OwnerName,
		CreatedAt:    b.CreatedAt.Format(timeLayout),
		UpdatedAt:    b.UpdatedAt.Format(timeLayout),
	}
}
