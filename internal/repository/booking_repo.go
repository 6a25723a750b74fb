package repository

import (
	"context"
	"sort"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"deptdesk/internal/model"
)

// BookingFilter 预约列表筛选条件，空字段不参与过滤
type BookingFilter struct {
	Hall     string
	Date     string
	DateFrom string
	DateTo   string
}

// BookingCheck 根据加锁后读到的同礼堂同日期预约
// 判断写入能否继续
type BookingCheck func(existing []model.HallBooking) error

// BookingRepository 礼堂预约数据访问
//
// CreateChecked 与 UpdateChecked 在同一事务中完成校验与写入，
// 事务持有按 (礼堂, 日期) 的 advisory lock，
// 同礼堂同日期的两个写入不会同时通过校验
type BookingRepository interface {
	GetByID(ctx context.Context, id string) (*model.HallBooking, error)
	List(ctx context.Context, f BookingFilter) ([]model.HallBooking, error)
	ListByHallDate(ctx context.Context, hall, date string) ([]model.HallBooking, error)
	CreateChecked(ctx context.Context, booking *model.HallBooking, check BookingCheck) error
	UpdateChecked(ctx context.Context, booking *model.HallBooking, prevHall, prevDate string, check BookingCheck) error
	Delete(ctx context.Context, id string) error
}

type bookingRepo struct {
	db *gorm.DB
}

// NewBookingRepo 创建 BookingRepository
func NewBookingRepo(db *gorm.DB) BookingRepository {
	return &bookingRepo{db: db}
}

// HallDateKey 标识可能互相冲突的一组预约
func HallDateKey(hall, date string) string {
	return "hall:" + hall + ":" + date
}

func (r *bookingRepo) GetByID(ctx context.Context, id string) (*model.HallBooking, error) {
	if !validID(id) {
		return nil, gorm.ErrRecordNotFound
	}
	var b model.HallBooking
	err := r.db.WithContext(ctx).
		Where("booking_id = ?", id).
		First(&b).Error
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *bookingRepo) List(ctx context.Context, f BookingFilter) ([]model.HallBooking, error) {
	var bookings []model.HallBooking
	db := r.db.WithContext(ctx)

	if f.Hall != "" {
		db = db.Where("hall = ?", f.Hall)
	}
	if f.Date != "" {
		db = db.Where("date = ?", f.Date)
	}
	if f.DateFrom != "" {
		db = db.Where("date >= ?", f.DateFrom)
	}
	if f.DateTo != "" {
		db = db.Where("date <= ?", f.DateTo)
	}

	err := db.Order("date ASC, start_time ASC, hall ASC").Find(&bookings).Error
	return bookings, err
}

func (r *bookingRepo) ListByHallDate(ctx context.Context, hall, date string) ([]model.HallBooking, error) {
	return listByHallDate(r.db.WithContext(ctx), hall, date)
}

func listByHallDate(db *gorm.DB, hall, date string) ([]model.HallBooking, error) {
	var bookings []model.HallBooking
	err := db.
		Where("hall = ? AND date = ?", hall, date).
		Order("start_time ASC").
		Find(&bookings).Error
	return bookings, err
}

// lockHallDates 按固定顺序获取事务级 advisory lock，
// 避免跨两个 key 的移动互相死锁
func lockHallDates(tx *gorm.DB, keys ...string) error {
	sort.Strings(keys)
	var prev string
	for i, k := range keys {
		if i > 0 && k == prev {
			continue
		}
		if err := tx.Exec("SELECT pg_advisory_xact_lock(hashtext(?))", k).Error; err != nil {
			return err
		}
		prev = k
	}
	return nil
}

func (r *bookingRepo) CreateChecked(ctx context.Context, booking *model.HallBooking, check BookingCheck) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockHallDates(tx, HallDateKey(booking.Hall, booking.Date)); err != nil {
			return err
		}

		existing, err := listByHallDate(tx, booking.Hall, booking.Date)
		if err != nil {
			return err
		}
		if err := check(existing); err != nil {
			return err
		}

		return tx.Create(booking).Error
	})
}

func (r *bookingRepo) UpdateChecked(ctx context.Context, booking *model.HallBooking, prevHall, prevDate string, check BookingCheck) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockHallDates(tx,
			HallDateKey(booking.Hall, booking.Date),
			HallDateKey(prevHall, prevDate),
		); err != nil {
			return err
		}

		// 等待锁期间记录可能已被删除
		var current model.HallBooking
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("booking_id = ?", booking.BookingID).
			First(&current).Error; err != nil {
			return err
		}

		existing, err := listByHallDate(tx, booking.Hall, booking.Date)
		if err != nil {
			return err
		}
		if err := check(existing); err != nil {
			return err
		}

		return tx.Model(&model.HallBooking{}).
			Where("booking_id = ?", booking.BookingID).
			Updates(map[string]interface{}{
				"hall":          booking.Hall,
				"date":          booking.Date,
				"start_time":    booking.StartTime,
				"end_time":      booking.EndTime,
				"course_number": booking.CourseNumber,
				"course_name":   booking.CourseName,
				"updated_at":    gorm.Expr("NOW()"),
			}).Error
	})
}

func (r *bookingRepo) Delete(ctx context.Context, id string) error {
	if !validID(id) {
		return gorm.ErrRecordNotFound
	}
	return r.db.WithContext(ctx).
		Where("booking_id = ?", id).
		Delete(&model.HallBooking{}).Error
}
