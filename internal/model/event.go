package model

import "time"

// Event 院系活动，表 events
type Event struct {
	EventID     string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"event_id"`
	Title       string    `gorm:"type:varchar(200);not null"                     json:"title"`
	Date        string    `gorm:"type:varchar(10);not null"                      json:"date"`
	Time        string    `gorm:"type:varchar(5);not null"                       json:"time"`
	Location    string    `gorm:"type:varchar(200);not null;default:''"          json:"location"`
	Description string    `gorm:"type:text;not null;default:''"                  json:"description"`
	StartsAt    time.Time `gorm:"type:timestamp;not null"                        json:"starts_at"` // naive, date+time as written
	OwnerName   string    `gorm:"type:varchar(100);not null"                     json:"owner_name"`
	OwnerID     *string   `gorm:"type:uuid"                                      json:"owner_id,omitempty"`
	Timestamps
}

// TableName 表名
func (Event) TableName() string { return "events" }
