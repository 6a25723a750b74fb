package repository

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository 聚合所有 Repository
type Repository struct {
	User    UserRepository
	Profile ProfileRepository
	Course  CourseRepository
	Booking BookingRepository
	Event   EventRepository
}

// NewRepository 基于同一连接池创建 Repository 聚合
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		User:    NewUserRepo(db),
		Profile: NewProfileRepo(db),
		Course:  NewCourseRepo(db),
		Booking: NewBookingRepo(db),
		Event:   NewEventRepo(db),
	}
}

// validID 判断 id 能否作为 uuid 主键。
// 其他值不查询数据库，直接按不存在处理
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
