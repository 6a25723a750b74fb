package model

// 角色
const (
	RoleLecturer = "lecturer"
	RoleAdmin    = "admin"
	RoleStudent  = "student"
)

// User 账号，表 users
type User struct {
	UserID       string `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"user_id"`
	Name         string `gorm:"type:varchar(100);not null"                     json:"name"`
	Email        string `gorm:"type:varchar(255);not null"                     json:"email"`
	PasswordHash string `gorm:"type:varchar(255);not null"                     json:"-"`
	Role         string `gorm:"type:varchar(20);not null;default:'lecturer'"   json:"role"`
	Timestamps

	Profile *LecturerProfile `gorm:"foreignKey:UserID;references:UserID" json:"profile,omitempty"`
}

// TableName 表名
func (User) TableName() string { return "users" }

// LecturerProfile 教师主页展示的资料，表 lecturer_profiles
type LecturerProfile struct {
	UserID        string `gorm:"type:uuid;primaryKey"                     json:"user_id"`
	Title         string `gorm:"type:varchar(50);not null;default:''"     json:"title"`
	Department    string `gorm:"type:varchar(150);not null;default:''"    json:"department"`
	Qualification string `gorm:"type:varchar(200);not null;default:''"    json:"qualification"`
	Phone         string `gorm:"type:varchar(30);not null;default:''"     json:"phone"`
	Office        string `gorm:"type:varchar(100);not null;default:''"    json:"office"`
	Research      string `gorm:"type:text;not null;default:''"            json:"research"`
	ProfileImage  string `gorm:"type:text;not null;default:''"            json:"profile_image"`
	Timestamps
}

func (LecturerProfile) TableName() string { return "lecturer_profiles" }
