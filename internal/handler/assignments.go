package handler

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/staffhub-dev/shift-roster/backend/internal/assignment"
	"github.com/staffhub-dev/shift-roster/backend/internal/domain"
	"github.com/staffhub-dev/shift-roster/backend/internal/repository"
	"github.com/staffhub-dev/shift-roster/backend/internal/rules"
)

func (h *Handler) GetMyAssignments(w http.ResponseWriter, r *http.Request) {
	myInfo := r.Context().Value(MyInfoCtx).(*domain.User)

	assignments, err := h.repository.GetConfirmedAssignmentsByStaff(myInfo.ID)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "获取我的排班成功", assignments)
}

func (h *Handler) GetShiftAssignments(w http.ResponseWriter, r *http.Request) {
	shift := r.Context().Value(ShiftCtx).(*domain.Shift)

	assignments, err := h.repository.GetConfirmedAssignmentsByShift(shift.ID)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "获取班次分配成功", assignments)
}

// CheckAssignment 只跑约束检查不落库，供排班界面的预检使用
func (h *Handler) CheckAssignment(w http.ResponseWriter, r *http.Request) {
	shift := r.Context().Value(ShiftCtx).(*domain.Shift)

	var req struct {
		StaffID int64 `json:"staffID" validate:"required"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	actorID, err := h.subjectID(r)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	result, err := h.engine.Check(rules.CheckInput{
		ShiftID: shift.ID,
		StaffID: req.StaffID,
		ActorID: actorID,
	})
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "约束检查完成", result)
}

func (h *Handler) CreateAssignment(w http.ResponseWriter, r *http.Request) {
	shift := r.Context().Value(ShiftCtx).(*domain.Shift)

	var req struct {
		StaffID        int64  `json:"staffID" validate:"required"`
		ForceOverride  bool   `json:"forceOverride"`
		OverrideReason string `json:"overrideReason"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	actorID, err := h.subjectID(r)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	created, result, err := h.transactor.Create(assignment.CreateInput{
		ShiftID:        shift.ID,
		StaffID:        req.StaffID,
		ActorID:        actorID,
		ForceOverride:  req.ForceOverride,
		OverrideReason: req.OverrideReason,
	})
	if err != nil {
		switch {
		case errors.Is(err, assignment.ErrBlocked):
			// 带上完整检查结果，前端据此展示违规列表和候选人建议
			h.writeJSON(w, r, http.StatusOK, Response{
				Success: false,
				Message: "存在未解决的约束阻断",
				Data:    result,
			})
		case errors.Is(err, repository.ErrShiftFull):
			h.errorResponse(w, r, "班次人数已满")
		case errors.Is(err, repository.ErrAlreadyAssigned):
			h.errorResponse(w, r, "该员工已被分配到此班次")
		case errors.Is(err, repository.ErrOverlapConflict):
			h.errorResponse(w, r, "该员工在此时段已有其他班次")
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	h.successResponse(w, r, "创建分配成功", map[string]any{
		"assignment": created,
		"check":      result,
	})
}

func (h *Handler) RemoveAssignment(w http.ResponseWriter, r *http.Request) {
	shift := r.Context().Value(ShiftCtx).(*domain.Shift)

	staffIDParam := chi.URLParam(r, "staffID")
	staffID, err := strconv.ParseInt(staffIDParam, 10, 64)
	if err != nil {
		h.errorResponse(w, r, "员工ID无效")
		return
	}

	actorID, err := h.subjectID(r)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	removed, err := h.transactor.Remove(shift.ID, staffID, actorID)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			h.errorResponse(w, r, "分配不存在")
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	h.successResponse(w, r, "移除分配成功", removed)
}
