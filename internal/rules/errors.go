// Package rules 预约、课程、活动写入前的纯业务判定：
// 礼堂冲突检测、归属校验与
// 课程编号唯一性。本包不访问存储
package rules

import (
	"errors"
	"fmt"
)

// 拒绝类型，均为用户可修正的预期结果
var (
	ErrIncompleteBooking     = errors.New("all booking fields are required")
	ErrInvalidTimeRange      = errors.New("end time must be after start time")
	ErrHallConflict          = errors.New("lecture hall is already booked for that time")
	ErrDuplicateCourseNumber = errors.New("course number already exists")
	ErrNotOwner              = errors.New("only the creator can modify this record")
)

// ConflictError 描述与候选预约冲突的已有预约
type ConflictError struct {
	Hall      string
	Date      string
	StartTime string
	EndTime   string
	BookingID string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s is already booked on %s from %s to %s", e.Hall, e.Date, e.StartTime, e.EndTime)
}

// Unwrap 使 errors.Is 能匹配 ErrHallConflict
func (e *ConflictError) Unwrap() error { return ErrHallConflict }
