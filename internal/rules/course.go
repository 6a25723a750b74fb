package rules

import "strings"

// Course 查重所需的课程字段
type Course struct {
	ID           string
	CourseNumber string
}

// NormalizeCourseNumber 课程编号比较所用的规范形式
func NormalizeCourseNumber(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// IsDuplicateCourseNumber 判断 candidate 是否与 excludeID 以外的
// 已有课程编号冲突
func IsDuplicateCourseNumber(candidate string, existing []Course, excludeID string) bool {
	key := NormalizeCourseNumber(candidate)
	for _, c := range existing {
		if excludeID != "" && c.ID == excludeID {
			continue
		}
		if NormalizeCourseNumber(c.CourseNumber) == key {
			return true
		}
	}
	return false
}
