package dto

// ── 课程模块 DTO ──

// CreateCourseRequest 创建课程
type CreateCourseRequest struct {
	CourseNumber string `json:"course_number" binding:"required,max=30"`
	CourseName   string `json:"course_name"   binding:"required,max=200"`
}

// UpdateCourseRequest 编辑课程
type UpdateCourseRequest struct {
	CourseNumber *string `json:"course_number" binding:"omitempty,max=30"`
	CourseName   *string `json:"course_name"   binding:"omitempty,max=200"`
}

// CourseResponse 课程
type CourseResponse struct {
	ID           string `json:"id"`
	CourseNumber string `json:"course_number"`
	CourseName   string `json:"course_name"`
	OwnerName    string `json:"owner_name"`
	CreatedAt    string `json:"created_at"`
	UpdatedAt    string `json:"updated_at"`
}
