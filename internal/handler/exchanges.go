package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/staffhub-dev/shift-roster/backend/internal/domain"
	"github.com/staffhub-dev/shift-roster/backend/internal/exchange"
	"github.com/staffhub-dev/shift-roster/backend/internal/repository"
)

func (h *Handler) GetExchange(w http.ResponseWriter, r *http.Request) {
	req := r.Context().Value(SwapRequestCtx).(*domain.SwapRequest)
	h.successResponse(w, r, "获取换班请求成功", req)
}

func (h *Handler) CreateExchange(w http.ResponseWriter, r *http.Request) {
	myInfo := r.Context().Value(MyInfoCtx).(*domain.User)

	var req struct {
		Type         string `json:"type" validate:"required,oneof=SWAP DROP"`
		AssignmentID int64  `json:"assignmentID" validate:"required"`
		TargetID     *int64 `json:"targetID"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	created, err := h.machine.Create(exchange.CreateInput{
		Type:         domain.SwapRequestType(req.Type),
		AssignmentID: req.AssignmentID,
		RequesterID:  myInfo.ID,
		TargetID:     req.TargetID,
	})
	if err != nil {
		h.exchangeError(w, r, err)
		return
	}

	h.successResponse(w, r, "发起换班请求成功", created)
}

func (h *Handler) AcceptExchange(w http.ResponseWriter, r *http.Request) {
	myInfo := r.Context().Value(MyInfoCtx).(*domain.User)
	req := r.Context().Value(SwapRequestCtx).(*domain.SwapRequest)

	updated, err := h.machine.Accept(req.ID, myInfo.ID)
	if err != nil {
		h.exchangeError(w, r, err)
		return
	}

	h.successResponse(w, r, "已接受换班请求", updated)
}

func (h *Handler) RejectExchange(w http.ResponseWriter, r *http.Request) {
	myInfo := r.Context().Value(MyInfoCtx).(*domain.User)
	req := r.Context().Value(SwapRequestCtx).(*domain.SwapRequest)

	updated, err := h.machine.Reject(req.ID, myInfo.ID)
	if err != nil {
		h.exchangeError(w, r, err)
		return
	}

	h.successResponse(w, r, "已拒绝换班请求", updated)
}

func (h *Handler) CancelExchange(w http.ResponseWriter, r *http.Request) {
	myInfo := r.Context().Value(MyInfoCtx).(*domain.User)
	req := r.Context().Value(SwapRequestCtx).(*domain.SwapRequest)

	updated, err := h.machine.Cancel(req.ID, myInfo.ID)
	if err != nil {
		h.exchangeError(w, r, err)
		return
	}

	h.successResponse(w, r, "已撤回换班请求", updated)
}

func (h *Handler) PickupExchange(w http.ResponseWriter, r *http.Request) {
	myInfo := r.Context().Value(MyInfoCtx).(*domain.User)
	req := r.Context().Value(SwapRequestCtx).(*domain.SwapRequest)

	updated, result, err := h.machine.Pickup(req.ID, myInfo.ID)
	if err != nil {
		if errors.Is(err, exchange.ErrPickupBlocked) {
			// 带上完整检查结果，说明为什么不能接这个班
			h.writeJSON(w, r, http.StatusOK, Response{
				Success: false,
				Message: "接单员工未通过约束检查",
				Data:    result,
			})
			return
		}
		h.exchangeError(w, r, err)
		return
	}

	h.successResponse(w, r, "认领放班成功，等待经理审批", updated)
}

func (h *Handler) ApproveExchange(w http.ResponseWriter, r *http.Request) {
	myInfo := r.Context().Value(MyInfoCtx).(*domain.User)
	req := r.Context().Value(SwapRequestCtx).(*domain.SwapRequest)

	var body struct {
		Note string `json:"note"`
	}
	if err := h.readJSON(r, &body); err != nil {
		h.badRequest(w, r, err)
		return
	}

	updated, err := h.machine.Approve(req.ID, myInfo.ID, body.Note)
	if err != nil {
		h.exchangeError(w, r, err)
		return
	}

	h.sendExchangeMail(updated)
	h.successResponse(w, r, "已批准换班请求", updated)
}

func (h *Handler) ManagerRejectExchange(w http.ResponseWriter, r *http.Request) {
	myInfo := r.Context().Value(MyInfoCtx).(*domain.User)
	req := r.Context().Value(SwapRequestCtx).(*domain.SwapRequest)

	var body struct {
		Note string `json:"note" validate:"required"`
	}
	if err := h.readJSON(r, &body); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(body); err != nil {
		h.badRequest(w, r, err)
		return
	}

	updated, err := h.machine.ManagerReject(req.ID, myInfo.ID, body.Note)
	if err != nil {
		h.exchangeError(w, r, err)
		return
	}

	h.sendExchangeMail(updated)
	h.successResponse(w, r, "已驳回换班请求", updated)
}

// sendExchangeMail 把经理裁决的结果通过邮件告知发起者。
// 邮件只是站内事件以外的补充通知，失败不影响请求本身
func (h *Handler) sendExchangeMail(req *domain.SwapRequest) {
	requester, err := h.repository.GetUserByID(req.RequesterID)
	if err != nil {
		slog.Warn("获取换班发起者失败，跳过邮件通知", "requestID", req.ID, "error", err)
		return
	}

	mailMessage := domain.MailMessage{
		Type: "exchange_update",
		To:   requester.Email,
		Data: domain.ExchangeMailData{
			FullName:  requester.FullName,
			ShiftID:   req.ShiftID,
			RequestID: req.ID,
			Status:    string(req.Status),
		},
	}

	mailData, err := json.Marshal(mailMessage)
	if err != nil {
		slog.Warn("换班邮件序列化失败", "requestID", req.ID, "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(h.config.RabbitMQ.PublishTimeout)*time.Second)
	defer cancel()

	if err := h.mailChannel.PublishWithContext(
		ctx,
		"",
		"email_queue",
		true,
		false,
		amqp.Publishing{
			ContentType: "application/json",
			Body:        mailData,
		},
	); err != nil {
		slog.Warn("换班邮件入队失败", "requestID", req.ID, "error", err)
	}
}

// exchangeError 把状态机的哨兵错误翻译成对用户的提示
func (h *Handler) exchangeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, exchange.ErrInvalidTransition),
		errors.Is(err, exchange.ErrNotAllowed),
		errors.Is(err, exchange.ErrNoLocationAccess),
		errors.Is(err, exchange.ErrTooManyRequests),
		errors.Is(err, exchange.ErrAssignmentBusy),
		errors.Is(err, exchange.ErrTargetRequired),
		errors.Is(err, repository.ErrRequestNotOpen),
		errors.Is(err, repository.ErrAlreadyAssigned),
		errors.Is(err, repository.ErrOverlapConflict):
		h.errorResponse(w, r, err.Error())
	default:
		h.internalServerError(w, r, err)
	}
}
