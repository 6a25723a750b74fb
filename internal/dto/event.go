package dto

// ── 活动模块 DTO ──

// EventRequest 创建与全量更新
type EventRequest struct {
	Title       string `json:"title"       binding:"required,max=200"`
	Date        string `json:"date"        binding:"required,datetime=2006-01-02"`
	Time        string `json:"time"        binding:"required"`
	Location    string `json:"location"    binding:"max=200"`
	Description string `json:"description"`
}

// ListEventsRequest GET /events
type ListEventsRequest struct {
	PaginationRequest
	Query string `form:"q" binding:"max=100"`
}

// EventResponse 活动
type EventResponse struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Date        string `json:"date"`
	Time        string `json:"time"`
	Location    string `json:"location"`
	Description string `json:"description"`
	OwnerName   string `json:"owner_name"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}
