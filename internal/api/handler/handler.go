package handler

import "deptdesk/internal/service"

// Handler 聚合所有 Handler
type Handler struct {
	Auth    *AuthHandler
	Profile *ProfileHandler
	Course  *CourseHandler
	Booking *BookingHandler
	Event   *EventHandler
}

// NewHandler 创建 Handler 聚合
func NewHandler(svc *service.Service) *Handler {
	return &Handler{
		Auth:    NewAuthHandler(svc.Auth),
		Profile: NewProfileHandler(svc.Profile),
		Course:  NewCourseHandler(svc.Course),
		Booking: NewBookingHandler(svc.Booking),
		Event:   NewEventHandler(svc.Event),
	}
}
