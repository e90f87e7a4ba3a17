package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/staffhub-dev/shift-roster/backend/internal/domain"
	"github.com/staffhub-dev/shift-roster/backend/internal/timeutil"
	"github.com/staffhub-dev/shift-roster/backend/internal/utils"
)

func (h *Handler) GetShift(w http.ResponseWriter, r *http.Request) {
	shift := r.Context().Value(ShiftCtx).(*domain.Shift)
	h.successResponse(w, r, "获取班次成功", shift)
}

func (h *Handler) GetShiftsByLocationAndWeek(w http.ResponseWriter, r *http.Request) {
	locationIDParam := r.URL.Query().Get("locationID")
	locationID, err := strconv.ParseInt(locationIDParam, 10, 64)
	if err != nil {
		h.errorResponse(w, r, "地点ID无效")
		return
	}

	week := r.URL.Query().Get("week")
	if _, err := time.Parse("2006-01-02", week); err != nil {
		h.errorResponse(w, r, "周次格式无效，应为周一的日期，例如 2026-08-24")
		return
	}

	shifts, err := h.repository.GetShiftsByLocationAndWeek(locationID, week)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "获取班次列表成功", shifts)
}

func (h *Handler) CreateShift(w http.ResponseWriter, r *http.Request) {
	var req struct {
		LocationID    int64     `json:"locationID" validate:"required"`
		RequiredSkill string    `json:"requiredSkill"`
		StartTime     time.Time `json:"startTime" validate:"required"`
		EndTime       time.Time `json:"endTime" validate:"required"`
		Headcount     int32     `json:"headcount" validate:"required,min=1"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := utils.ValidateShiftTime(req.StartTime, req.EndTime); err != nil {
		h.badRequest(w, r, err)
		return
	}

	location, err := h.repository.GetLocationByID(req.LocationID)
	if err != nil {
		h.errorResponse(w, r, "工作地点不存在")
		return
	}

	loc, err := time.LoadLocation(location.Timezone)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	shift := &domain.Shift{
		LocationID:    req.LocationID,
		RequiredSkill: req.RequiredSkill,
		StartTime:     req.StartTime,
		EndTime:       req.EndTime,
		Headcount:     req.Headcount,
		Status:        domain.ShiftStatusPublished,
		// 周归属按地点时区下的本地开始时间计算
		WeekKey:    timeutil.WeekKey(req.StartTime, loc),
		EditCutoff: req.StartTime.Add(-domain.EditCutoffLeadTime),
	}

	if err := h.repository.CreateShift(shift); err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "创建班次成功", shift)
}

type shiftPatch struct {
	RequiredSkill *string    `json:"requiredSkill"`
	StartTime     *time.Time `json:"startTime"`
	EndTime       *time.Time `json:"endTime"`
	Headcount     *int32     `json:"headcount" validate:"omitempty,min=1"`
	Status        *string    `json:"status" validate:"omitempty,oneof=DRAFT PUBLISHED CANCELLED"`
}

// shiftUpdateBlocked 判断一次班次修改是否被拒绝，返回给用户的拒绝原因，空串表示放行。
// 已取消的班次不接受任何修改；取消本身不受 48 小时锁定窗口限制，
// 但锁定后不允许夹带其它字段的修改
func shiftUpdateBlocked(shift *domain.Shift, patch *shiftPatch, now time.Time) string {
	if shift.Status == domain.ShiftStatusCancelled {
		return "班次已取消，不可再修改"
	}

	cancelling := patch.Status != nil && domain.ShiftStatus(*patch.Status) == domain.ShiftStatusCancelled
	editing := patch.RequiredSkill != nil || patch.StartTime != nil || patch.EndTime != nil ||
		patch.Headcount != nil || (patch.Status != nil && !cancelling)
	if editing && now.After(shift.EditCutoff) {
		return "距离开始不足 48 小时，班次已锁定"
	}

	return ""
}

func (h *Handler) UpdateShift(w http.ResponseWriter, r *http.Request) {
	shift := r.Context().Value(ShiftCtx).(*domain.Shift)

	var req shiftPatch
	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	if message := shiftUpdateBlocked(shift, &req, time.Now()); message != "" {
		h.errorResponse(w, r, message)
		return
	}

	if req.RequiredSkill != nil {
		shift.RequiredSkill = *req.RequiredSkill
	}
	if req.StartTime != nil {
		shift.StartTime = *req.StartTime
	}
	if req.EndTime != nil {
		shift.EndTime = *req.EndTime
	}
	if req.Status != nil {
		shift.Status = domain.ShiftStatus(*req.Status)
	}

	if err := utils.ValidateShiftTime(shift.StartTime, shift.EndTime); err != nil {
		h.badRequest(w, r, err)
		return
	}

	if req.Headcount != nil {
		// 人数不允许压到已确认分配之下
		assignments, err := h.repository.GetConfirmedAssignmentsByShift(shift.ID)
		if err != nil {
			h.internalServerError(w, r, err)
			return
		}
		if int(*req.Headcount) < len(assignments) {
			h.badRequest(w, r, errors.New("人数不能小于已确认的分配数量"))
			return
		}
		shift.Headcount = *req.Headcount
	}

	location, err := h.repository.GetLocationByID(shift.LocationID)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}
	loc, err := time.LoadLocation(location.Timezone)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}
	shift.WeekKey = timeutil.WeekKey(shift.StartTime, loc)
	shift.EditCutoff = shift.StartTime.Add(-domain.EditCutoffLeadTime)

	if err := h.repository.UpdateShift(shift); err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "更新班次成功", shift)
}
