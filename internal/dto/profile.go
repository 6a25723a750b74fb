package dto

// ── 教师资料模块 DTO ──

// UpdateProfileRequest PATCH /staff/me
//
// 必填字段由 Service 校验，以便指明缺少哪些字段
type UpdateProfileRequest struct {
	Name          string `json:"name"          binding:"max=100"`
	Email         string `json:"email"         binding:"omitempty,email"`
	Title         string `json:"title"         binding:"max=50"`
	Department    string `json:"department"    binding:"max=150"`
	Qualification string `json:"qualification" binding:"max=200"`
	Phone         string `json:"phone"         binding:"max=30"`
	Office        string `json:"office"        binding:"max=100"`
	Research      string `json:"research"`
	ProfileImage  string `json:"profile_image"`
}

// ProfileResponse 教师资料（含账号信息）
type ProfileResponse struct {
	UserID        string `json:"user_id"`
	Name          string `json:"name"`
	Email         string `json:"email"`
	Role          string `json:"role"`
	Title         string `json:"title"`
	Department    string `json:"department"`
	Qualification string `json:"qualification"`
	Phone         string `json:"phone"`
	Office        string `json:"office"`
	Research      string `json:"research"`
	ProfileImage  string `json:"profile_image"`
	UpdatedAt     string `json:"updated_at,omitempty"`
}
