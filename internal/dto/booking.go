package dto

// ── 礼堂预约模块 DTO ──

// BookingRequest 创建、更新与预检共用的请求体
// 空字段由预约校验器报告，不在绑定阶段拦截；
// 绑定只限制长度不超过数据库列
type BookingRequest struct {
	Hall         string `json:"hall"          binding:"max=50"`
	Date         string `json:"date"          binding:"max=10"`
	StartTime    string `json:"start_time"    binding:"max=8"`
	EndTime      string `json:"end_time"      binding:"max=8"`
	CourseNumber string `json:"course_number" binding:"max=30"`
	CourseName   string `json:"course_name"   binding:"max=200"`
}

// ListBookingsRequest GET /halls/bookings
type ListBookingsRequest struct {
	Hall     string `form:"hall"`
	Date     string `form:"date"      binding:"omitempty,datetime=2006-01-02"`
	DateFrom string `form:"date_from" binding:"omitempty,datetime=2006-01-02"`
	DateTo   string `form:"date_to"   binding:"omitempty,datetime=2006-01-02"`
}

// ExportBookingsRequest 表格/日历导出筛选条件
type ExportBookingsRequest struct {
	Hall     string `form:"hall"`
	DateFrom string `form:"date_from" binding:"omitempty,datetime=2006-01-02"`
	DateTo   string `form:"date_to"   binding:"omitempty,datetime=2006-01-02"`
}

// BookingResponse 预约
type BookingResponse struct {
	ID           string `json:"id"`
	Hall         string `json:"hall"`
	Date         string `json:"date"`
	StartTime    string `json:"start_time"`
	EndTime      string `json:"end_time"`
	CourseNumber string `json:"course_number"`
	CourseName   string `json:"course_name"`
	OwnerName    string `json:"owner_name"`
	CreatedAt    string `json:"created_at"`
	UpdatedAt    string `json:"updated_at"`
}

// BookingCheckResponse POST /halls/bookings/check
type BookingCheckResponse struct {
	Available bool   `json:"available"`
	Reason    string `json:"reason,omitempty"`
}

// HallResponse 已配置的礼堂
type HallResponse struct {
	Name string `json:"name"`
}
