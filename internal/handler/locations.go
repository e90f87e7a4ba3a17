package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/staffhub-dev/shift-roster/backend/internal/domain"
)

func (h *Handler) GetAllLocations(w http.ResponseWriter, r *http.Request) {
	locations, err := h.repository.GetAllLocations()
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "获取工作地点列表成功", locations)
}

func (h *Handler) CreateLocation(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string `json:"name" validate:"required"`
		Timezone string `json:"timezone" validate:"required"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	// 时区必须是合法的 IANA 名称，否则后续所有本地时间换算都会失败
	if _, err := time.LoadLocation(req.Timezone); err != nil {
		h.badRequest(w, r, errors.New("无效的时区名称"))
		return
	}

	location := &domain.Location{
		Name:     req.Name,
		Timezone: req.Timezone,
	}

	if err := h.repository.CreateLocation(location); err != nil {
		var pgErr *pgconn.PgError
		switch {
		case errors.As(err, &pgErr) && pgErr.ConstraintName == "locations_name_key":
			h.badRequest(w, r, errors.New("地点名称已存在"))
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	h.successResponse(w, r, "创建工作地点成功", location)
}

func (h *Handler) CreateCertification(w http.ResponseWriter, r *http.Request) {
	user := r.Context().Value(UserInfoCtx).(*domain.User)

	var req struct {
		LocationID int64 `json:"locationID" validate:"required"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	if _, err := h.repository.GetLocationByID(req.LocationID); err != nil {
		h.errorResponse(w, r, "工作地点不存在")
		return
	}

	cert := &domain.Certification{
		StaffID:    user.ID,
		LocationID: req.LocationID,
	}

	if err := h.repository.CreateCertification(cert); err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "颁发地点认证成功", cert)
}

func (h *Handler) AddStaffSkill(w http.ResponseWriter, r *http.Request) {
	user := r.Context().Value(UserInfoCtx).(*domain.User)

	var req struct {
		Skill string `json:"skill" validate:"required"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	if err := h.repository.AddStaffSkill(user.ID, req.Skill); err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "添加技能成功", nil)
}
