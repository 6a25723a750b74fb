package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"deptdesk/internal/dto"
	"deptdesk/internal/rules"
	"deptdesk/internal/service"
	"deptdesk/pkg/response"
)

// BookingHandler 礼堂预约接口
type BookingHandler struct {
	bookingSvc service.BookingService
}

// NewBookingHandler 创建 BookingHandler
func NewBookingHandler(bookingSvc service.BookingService) *BookingHandler {
	return &BookingHandler{bookingSvc: bookingSvc}
}

// ListHalls 礼堂列表
// GET /api/v1/halls
func (h *BookingHandler) ListHalls(c *gin.Context) {
	response.OK(c, gin.H{"list": h.bookingSvc.Halls()})
}

// ListBookings 预约列表，按日期、开始时间排序
// GET /api/v1/halls/bookings?hall=&date=
func (h *BookingHandler) ListBookings(c *gin.Context) {
	var req dto.ListBookingsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, 10001, "invalid query parameters")
		return
	}

	bookings, err := h.bookingSvc.List(c.Request.Context(), &req)
	if err != nil {
		h.handleBookingError(c, err)
		return
	}

	response.OK(c, gin.H{"list": bookings})
}

// GetBooking 预约详情
// GET /api/v1/halls/bookings/:id
func (h *BookingHandler) GetBooking(c *gin.Context) {
	booking, err := h.bookingSvc.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleBookingError(c, err)
		return
	}

	response.OK(c, booking)
}

// CheckBooking 预约预检，exclude_id 为正在编辑的预约
// POST /api/v1/halls/bookings/check
func (h *BookingHandler) CheckBooking(c *gin.Context) {
	var req dto.BookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "invalid request body")
		return
	}

	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	result, err := h.bookingSvc.Check(c.Request.Context(), &req, c.Query("exclude_id"), callerID)
	if err != nil {
		h.handleBookingError(c, err)
		return
	}

	response.OK(c, result)
}

// CreateBooking 创建预约
// POST /api/v1/halls/bookings
func (h *BookingHandler) CreateBooking(c *gin.Context) {
	var req dto.BookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "invalid request body")
		return
	}

	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	booking, err := h.bookingSvc.Create(c.Request.Context(), &req, callerID)
	if err != nil {
		h.handleBookingError(c, err)
		return
	}

	response.Created(c, booking)
}

// UpdateBooking 更新预约
// PUT /api/v1/halls/bookings/:id
func (h *BookingHandler) UpdateBooking(c *gin.Context) {
	var req dto.BookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "invalid request body")
		return
	}

	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	booking, err := h.bookingSvc.Update(c.Request.Context(), c.Param("id"), &req, callerID)
	if err != nil {
		h.handleBookingError(c, err)
		return
	}

	response.OK(c, booking)
}

// DeleteBooking 删除预约
// DELETE /api/v1/halls/bookings/:id
func (h *BookingHandler) DeleteBooking(c *gin.Context) {
	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	if err := h.bookingSvc.Delete(c.Request.Context(), c.Param("id"), callerID); err != nil {
		h.handleBookingError(c, err)
		return
	}

	response.OK(c, nil)
}

// ExportXLSX 导出 Excel
// GET /api/v1/halls/bookings/export.xlsx?hall=&date_from=&date_to=
func (h *BookingHandler) ExportXLSX(c *gin.Context) {
	var req dto.ExportBookingsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, 10001, "invalid query parameters")
		return
	}

	buf, filename, err := h.bookingSvc.ExportXLSX(c.Request.Context(), &req)
	if err != nil {
		h.handleBookingError(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
}

// ExportICS 导出 iCalendar 日历
// GET /api/v1/halls/bookings/export.ics?hall=&date_from=&date_to=
func (h *BookingHandler) ExportICS(c *gin.Context) {
	var req dto.ExportBookingsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, 10001, "invalid query parameters")
		return
	}

	body, filename, err := h.bookingSvc.ExportICS(c.Request.Context(), &req)
	if err != nil {
		h.handleBookingError(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, "text/calendar; charset=utf-8", body)
}

// handleBookingError 统一处理预约错误
// 礼堂冲突时 details 携带校验器给出的、包含礼堂名的提示
func (h *BookingHandler) handleBookingError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrBookingNotFound):
		response.NotFound(c, 14001, "booking not found")
	case errors.Is(err, rules.ErrIncompleteBooking):
		response.BadRequest(c, 14002, "all booking fields are required")
	case errors.Is(err, rules.ErrInvalidTimeRange):
		response.BadRequest(c, 14003, "end time must be after start time")
	case errors.Is(err, rules.ErrHallConflict):
		response.ErrorWithDetails(c, http.StatusConflict, 14004, "lecture hall is already booked for that time", err.Error())
	case errors.Is(err, rules.ErrNotOwner):
		response.Forbidden(c, 14005, "only the creator can modify this booking")
	case errors.Is(err, service.ErrUnknownHall):
		response.BadRequest(c, 14006, "unknown lecture hall")
	case errors.Is(err, service.ErrHallBusy):
		response.Conflict(c, 14007, "another booking for this hall and date is being saved, please retry")
	case errors.Is(err, service.ErrInvalidDate):
		response.BadRequest(c, 14008, "date must be formatted YYYY-MM-DD")
	case errors.Is(err, service.ErrUserNotFound):
		response.NotFound(c, 12001, "user not found")
	default:
		response.InternalError(c)
	}
}
