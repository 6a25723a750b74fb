package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"deptdesk/internal/dto"
	"deptdesk/internal/service"
	"deptdesk/pkg/response"
)

// ProfileHandler 本人教师资料接口
type ProfileHandler struct {
	profileSvc service.ProfileService
}

// NewProfileHandler 创建 ProfileHandler
func NewProfileHandler(profileSvc service.ProfileService) *ProfileHandler {
	return &ProfileHandler{profileSvc: profileSvc}
}

// GetMyProfile 获取本人资料
// GET /api/v1/staff/me
func (h *ProfileHandler) GetMyProfile(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	result, err := h.profileSvc.Get(c.Request.Context(), userID)
	if err != nil {
		h.handleProfileError(c, err)
		return
	}

	response.OK(c, result)
}

// UpdateMyProfile 同时保存账号与资料字段
// PATCH /api/v1/staff/me
func (h *ProfileHandler) UpdateMyProfile(c *gin.Context) {
	var req dto.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "invalid request body")
		return
	}

	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	result, err := h.profileSvc.Update(c.Request.Context(), userID, &req)
	if err != nil {
		h.handleProfileError(c, err)
		return
	}

	response.OK(c, result)
}

func (h *ProfileHandler) handleProfileError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrUserNotFound):
		response.NotFound(c, 12001, "user not found")
	case errors.Is(err, service.ErrProfileIncomplete):
		response.ErrorWithDetails(c, http.StatusBadRequest, 12002, "profile is missing required fields", err.Error())
	case errors.Is(err, service.ErrEmailTaken):
		response.Conflict(c, 11002, "email is already registered")
	default:
		response.InternalError(c)
	}
}
