package model

// Course 课程目录条目，表 courses
type Course struct {
	CourseID     string  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"course_id"`
	CourseNumber string  `gorm:"type:varchar(30);not null"                      json:"course_number"`
	CourseName   string  `gorm:"type:varchar(200);not null"                     json:"course_name"`
	OwnerName    string  `gorm:"type:varchar(100);not null"                     json:"owner_name"`
	OwnerID      *string `gorm:"type:uuid"                                      json:"owner_id,omitempty"`
	Timestamps
}

// TableName 表名
func (Course) TableName() string { return "courses" }
