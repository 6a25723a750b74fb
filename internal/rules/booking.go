package rules

import "strings"

// Booking 校验器所处理的礼堂预约快照
type Booking struct {
	ID           string
	Hall         string
	Date         string
	StartTime    string
	EndTime      string
	CourseNumber string
	CourseName   string
	OwnerName    string
}

// ValidateBooking 判断 candidate 能否与
// existing 中的预约共存。excludeID 为正在编辑的预约，不会
// 与自身比较，创建时传 ""
//
// 校验顺序：必填字段（ErrIncompleteBooking）、时间
// 先后（ErrInvalidTimeRange，含无法解析的时间与
// 跨午夜的区间），最后是冲突扫描（*ConflictError）
func ValidateBooking(candidate Booking, existing []Booking, excludeID string) error {
	if isBlank(candidate.CourseNumber, candidate.CourseName, candidate.OwnerName,
		candidate.Hall, candidate.Date, candidate.StartTime, candidate.EndTime) {
		return ErrIncompleteBooking
	}

	start, err := ParseClock(candidate.StartTime)
	if err != nil {
		return ErrInvalidTimeRange
	}
	end, err := ParseClock(candidate.EndTime)
	if err != nil {
		return ErrInvalidTimeRange
	}
	if end <= start {
		return ErrInvalidTimeRange
	}

	hall := strings.TrimSpace(candidate.Hall)
	date := strings.TrimSpace(candidate.Date)

	for _, b := range existing {
		if excludeID != "" && b.ID == excludeID {
			continue
		}
		if strings.TrimSpace(b.Hall) != hall || strings.TrimSpace(b.Date) != date {
			continue
		}
		bStart, err1 := ParseClock(b.StartTime)
		bEnd, err2 := ParseClock(b.EndTime)
		if err1 != nil || err2 != nil {
			continue
		}
		if Overlaps(start, end, bStart, bEnd) {
			return &ConflictError{
				Hall:      hall,
				Date:      date,
				StartTime: FormatClock(bStart),
				EndTime:   FormatClock(bEnd),
				BookingID: b.ID,
			}
		}
	}

	return nil
}

func isBlank(values ...string) bool {
	for _, v := range values {
		if strings.TrimSpace(v) == "" {
			return true
		}
	}
	return false
}
