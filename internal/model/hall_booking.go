package model

// HallBooking 某日某时段的礼堂预约，表 hall_bookings
//
// 日期与时间均为不带时区的标签（"2025-11-02", "09:00"）
// 课程字段在预约时复制保存，不与课程表关联校验
type HallBooking struct {
	BookingID    string  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"booking_id"`
	Hall         string  `gorm:"type:varchar(50);not null"                      json:"hall"`
	Date         string  `gorm:"type:varchar(10);not null"                      json:"date"`
	StartTime    string  `gorm:"type:varchar(5);not null"                       json:"start_time"`
	EndTime      string  `gorm:"type:varchar(5);not null"                       json:"end_time"`
	CourseNumber string  `gorm:"type:varchar(30);not null"                      json:"course_number"`
	CourseName   string  `gorm:"type:varchar(200);not null"                     json:"course_name"`
	OwnerName    string  `gorm:"type:varchar(100);not null"                     json:"owner_name"`
	OwnerID      *string `gorm:"type:uuid"                                      json:"owner_id,omitempty"`
	Timestamps
}

// TableName 表名
func (HallBooking) TableName() string { return "hall_bookings" }
