package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/staffhub-dev/shift-roster/backend/internal/domain"
	"github.com/staffhub-dev/shift-roster/backend/internal/utils"
)

func (h *Handler) GetMyAvailabilities(w http.ResponseWriter, r *http.Request) {
	myInfo := r.Context().Value(MyInfoCtx).(*domain.User)

	availabilities, err := h.repository.GetAvailabilitiesByStaff(myInfo.ID)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	exceptions, err := h.repository.GetAvailabilityExceptionsByStaff(myInfo.ID)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "获取空闲时间成功", map[string]any{
		"availabilities": availabilities,
		"exceptions":     exceptions,
	})
}

func (h *Handler) CreateMyAvailability(w http.ResponseWriter, r *http.Request) {
	myInfo := r.Context().Value(MyInfoCtx).(*domain.User)

	var req struct {
		DayOfWeek int32  `json:"dayOfWeek" validate:"required,min=1,max=7"`
		StartTime string `json:"startTime" validate:"required"`
		EndTime   string `json:"endTime" validate:"required"`
		Timezone  string `json:"timezone" validate:"required"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := utils.ValidateClockWindow(req.StartTime, req.EndTime); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if _, err := time.LoadLocation(req.Timezone); err != nil {
		h.badRequest(w, r, errors.New("无效的时区名称"))
		return
	}

	availability := &domain.Availability{
		StaffID:   myInfo.ID,
		DayOfWeek: req.DayOfWeek,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		Timezone:  req.Timezone,
	}

	if err := h.repository.CreateAvailability(availability); err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "登记空闲时间成功", availability)
}

func (h *Handler) CreateMyAvailabilityException(w http.ResponseWriter, r *http.Request) {
	myInfo := r.Context().Value(MyInfoCtx).(*domain.User)

	var req struct {
		Date        string `json:"date" validate:"required"`
		IsAvailable bool   `json:"isAvailable"`
		StartTime   string `json:"startTime"`
		EndTime     string `json:"endTime"`
		Timezone    string `json:"timezone" validate:"required"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if _, err := time.Parse("2006-01-02", req.Date); err != nil {
		h.badRequest(w, r, errors.New("日期格式无效，应为 2006-01-02"))
		return
	}
	if _, err := time.LoadLocation(req.Timezone); err != nil {
		h.badRequest(w, r, errors.New("无效的时区名称"))
		return
	}
	// 声明当天有空时必须带上具体时间段
	if req.IsAvailable {
		if err := utils.ValidateClockWindow(req.StartTime, req.EndTime); err != nil {
			h.badRequest(w, r, err)
			return
		}
	}

	exception := &domain.AvailabilityException{
		StaffID:     myInfo.ID,
		Date:        req.Date,
		IsAvailable: req.IsAvailable,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
		Timezone:    req.Timezone,
	}

	if err := h.repository.CreateAvailabilityException(exception); err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "登记日期例外成功", exception)
}
