package exchange

import (
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/staffhub-dev/shift-roster/backend/internal/domain"
	"github.com/staffhub-dev/shift-roster/backend/internal/notify"
	"github.com/staffhub-dev/shift-roster/backend/internal/rules"
)

var (
	ErrInvalidTransition = errors.New("当前状态不允许该操作")
	ErrNotAllowed        = errors.New("无权对该请求执行此操作")
	ErrNoLocationAccess  = errors.New("您没有该班次所在地点的管理权限")
	ErrTooManyRequests   = errors.New("非终态的换班请求数量已达上限")
	ErrAssignmentBusy    = errors.New("该分配已存在未完结的换班请求")
	ErrTargetRequired    = errors.New("换班请求必须指定目标员工")
	ErrPickupBlocked     = errors.New("接单员工未通过约束检查")
)

type Store interface {
	GetSwapRequestByID(id int64) (*domain.SwapRequest, error)
	CreateSwapRequest(req *domain.SwapRequest, audit *domain.AuditEntry) error
	UpdateSwapRequest(req *domain.SwapRequest, audit *domain.AuditEntry) error
	ApproveSwapRequest(req *domain.SwapRequest, original *domain.ShiftAssignment, replacement *domain.ShiftAssignment, audit *domain.AuditEntry) error
	ExpireSwapRequest(req *domain.SwapRequest, audit *domain.AuditEntry) error
	GetExpiredOpenDropRequests(now time.Time) ([]*domain.SwapRequest, error)
	CountActiveSwapRequestsByRequester(requesterID int64) (int32, error)
	HasActiveSwapRequestForAssignment(assignmentID int64) (bool, error)
	GetAssignmentByID(id int64) (*domain.ShiftAssignment, error)
	GetShiftByID(id int64) (*domain.Shift, error)
	HasActiveCertification(staffID int64, locationID int64) (bool, error)
}

type Checker interface {
	Check(input rules.CheckInput) (*rules.CheckResult, error)
}

type Notifier interface {
	Emit(event notify.Event)
}

// Machine 换班/放班请求的状态机。所有状态转移都经由这里，
// 不在转移表内的组合一律拒绝
type Machine struct {
	store   Store
	checker Checker
	emitter Notifier
}

func NewMachine(store Store, checker Checker, emitter Notifier) *Machine {
	return &Machine{
		store:   store,
		checker: checker,
		emitter: emitter,
	}
}

type action string

const (
	actionAccept  action = "accept"
	actionReject  action = "reject"
	actionPickup  action = "pickup"
	actionApprove action = "approve"
)

type transitionKey struct {
	status domain.SwapRequestStatus
	action action
}

// 无条件的状态转移表。cancel（任意非终态可取消）和经理驳回
// （DROP 的去向取决于驳回次数）带条件，不入表
var transitions = map[transitionKey]domain.SwapRequestStatus{
	{domain.SwapRequestStatusPendingAcceptance, actionAccept}: domain.SwapRequestStatusPendingManager,
	{domain.SwapRequestStatusPendingAcceptance, actionReject}: domain.SwapRequestStatusCancelled,
	{domain.SwapRequestStatusOpen, actionPickup}:              domain.SwapRequestStatusPendingManager,
	{domain.SwapRequestStatusPendingManager, actionApprove}:   domain.SwapRequestStatusApproved,
}

func nextStatus(status domain.SwapRequestStatus, act action) (domain.SwapRequestStatus, bool) {
	next, ok := transitions[transitionKey{status: status, action: act}]
	return next, ok
}

type CreateInput struct {
	Type         domain.SwapRequestType
	AssignmentID int64
	RequesterID  int64
	TargetID     *int64
}

// Create 发起换班（SWAP，定向一名目标员工）或放班（DROP，任何符合条件的员工可接）。
// DROP 的过期时间固定为班次开始前 24 小时
func (m *Machine) Create(input CreateInput) (*domain.SwapRequest, error) {
	assignment, err := m.store.GetAssignmentByID(input.AssignmentID)
	if err != nil {
		return nil, err
	}
	if assignment.StaffID != input.RequesterID {
		return nil, ErrNotAllowed
	}
	if assignment.Status != domain.AssignmentStatusConfirmed {
		return nil, ErrInvalidTransition
	}

	if input.Type == domain.SwapRequestTypeSwap && input.TargetID == nil {
		return nil, ErrTargetRequired
	}

	count, err := m.store.CountActiveSwapRequestsByRequester(input.RequesterID)
	if err != nil {
		return nil, err
	}
	if count >= domain.MaxActiveRequestsPerStaff {
		return nil, ErrTooManyRequests
	}

	busy, err := m.store.HasActiveSwapRequestForAssignment(input.AssignmentID)
	if err != nil {
		return nil, err
	}
	if busy {
		return nil, ErrAssignmentBusy
	}

	req := &domain.SwapRequest{
		Type:         input.Type,
		AssignmentID: assignment.ID,
		ShiftID:      assignment.ShiftID,
		RequesterID:  input.RequesterID,
	}

	switch input.Type {
	case domain.SwapRequestTypeSwap:
		req.TargetID = input.TargetID
		req.Status = domain.SwapRequestStatusPendingAcceptance
	case domain.SwapRequestTypeDrop:
		req.Status = domain.SwapRequestStatusOpen
		expiresAt := assignment.StartTime.Add(-domain.DropExpiryLeadTime)
		req.ExpiresAt = &expiresAt
	}

	audit, err := m.auditEntry(input.RequesterID, "create", nil, req)
	if err != nil {
		return nil, err
	}

	if err := m.store.CreateSwapRequest(req, audit); err != nil {
		return nil, err
	}

	switch input.Type {
	case domain.SwapRequestTypeSwap:
		m.emitter.Emit(notify.Event{
			Channel: notify.UserChannel(*req.TargetID),
			Type:    notify.EventSwapCreated,
			Payload: req,
		})
	case domain.SwapRequestTypeDrop:
		m.broadcastDropAvailable(req)
	}

	return req, nil
}

// Accept 目标员工接受定向换班请求
func (m *Machine) Accept(requestID int64, actorID int64) (*domain.SwapRequest, error) {
	req, err := m.store.GetSwapRequestByID(requestID)
	if err != nil {
		return nil, err
	}
	if req.Type != domain.SwapRequestTypeSwap || req.TargetID == nil || *req.TargetID != actorID {
		return nil, ErrNotAllowed
	}

	next, ok := nextStatus(req.Status, actionAccept)
	if !ok {
		return nil, ErrInvalidTransition
	}

	if err := m.transition(req, next, actorID, "accept"); err != nil {
		return nil, err
	}

	m.emitter.Emit(notify.Event{
		Channel: notify.UserChannel(req.RequesterID),
		Type:    notify.EventSwapAccepted,
		Payload: req,
	})

	return req, nil
}

// Reject 目标员工拒绝定向换班请求，请求直接作废
func (m *Machine) Reject(requestID int64, actorID int64) (*domain.SwapRequest, error) {
	req, err := m.store.GetSwapRequestByID(requestID)
	if err != nil {
		return nil, err
	}
	if req.Type != domain.SwapRequestTypeSwap || req.TargetID == nil || *req.TargetID != actorID {
		return nil, ErrNotAllowed
	}

	next, ok := nextStatus(req.Status, actionReject)
	if !ok {
		return nil, ErrInvalidTransition
	}

	if err := m.transition(req, next, actorID, "reject"); err != nil {
		return nil, err
	}

	m.emitter.Emit(notify.Event{
		Channel: notify.UserChannel(req.RequesterID),
		Type:    notify.EventSwapRejected,
		Payload: req,
	})

	return req, nil
}

// Cancel 发起者撤回请求。对已处于终态的请求是幂等的无操作
func (m *Machine) Cancel(requestID int64, actorID int64) (*domain.SwapRequest, error) {
	req, err := m.store.GetSwapRequestByID(requestID)
	if err != nil {
		return nil, err
	}
	if req.RequesterID != actorID {
		return nil, ErrNotAllowed
	}

	if req.Status.IsTerminal() {
		return req, nil
	}

	if err := m.transition(req, domain.SwapRequestStatusCancelled, actorID, "cancel"); err != nil {
		return nil, err
	}

	if req.TargetID != nil {
		m.emitter.Emit(notify.Event{
			Channel: notify.UserChannel(*req.TargetID),
			Type:    notify.EventSwapCancelled,
			Payload: req,
		})
	}

	return req, nil
}

// Pickup 第三方员工认领开放的放班请求。认领前必须重新通过约束检查，
// 存在阻断时返回 ErrPickupBlocked 和完整的违规结果
func (m *Machine) Pickup(requestID int64, pickerID int64) (*domain.SwapRequest, *rules.CheckResult, error) {
	req, err := m.store.GetSwapRequestByID(requestID)
	if err != nil {
		return nil, nil, err
	}
	if req.Type != domain.SwapRequestTypeDrop {
		return nil, nil, ErrInvalidTransition
	}
	if req.RequesterID == pickerID {
		return nil, nil, ErrNotAllowed
	}

	next, ok := nextStatus(req.Status, actionPickup)
	if !ok {
		return nil, nil, ErrInvalidTransition
	}

	result, err := m.checker.Check(rules.CheckInput{
		ShiftID: req.ShiftID,
		StaffID: pickerID,
		ActorID: pickerID,
	})
	if err != nil {
		return nil, nil, err
	}
	if result.HasBlocking {
		return nil, result, ErrPickupBlocked
	}

	req.TargetID = &pickerID
	if err := m.transition(req, next, pickerID, "pickup"); err != nil {
		return nil, nil, err
	}

	m.emitter.Emit(notify.Event{
		Channel: notify.UserChannel(req.RequesterID),
		Type:    notify.EventDropPicked,
		Payload: req,
	})

	return req, result, nil
}

// Approve 经理批准：原分配转入 SWAPPED 保留历史，同时为目标员工插入一条
// 新的已确认分配。经理必须持有班次所在地点的有效认证。
// 班次正在进行中时补发一对下岗/上岗事件
func (m *Machine) Approve(requestID int64, managerID int64, note string) (*domain.SwapRequest, error) {
	req, err := m.store.GetSwapRequestByID(requestID)
	if err != nil {
		return nil, err
	}

	if _, ok := nextStatus(req.Status, actionApprove); !ok {
		return nil, ErrInvalidTransition
	}
	if req.TargetID == nil {
		return nil, ErrTargetRequired
	}

	shift, err := m.store.GetShiftByID(req.ShiftID)
	if err != nil {
		return nil, err
	}
	access, err := m.store.HasActiveCertification(managerID, shift.LocationID)
	if err != nil {
		return nil, err
	}
	if !access {
		return nil, ErrNoLocationAccess
	}

	original, err := m.store.GetAssignmentByID(req.AssignmentID)
	if err != nil {
		return nil, err
	}
	replacement := &domain.ShiftAssignment{
		ShiftID:   original.ShiftID,
		StaffID:   *req.TargetID,
		StartTime: original.StartTime,
		EndTime:   original.EndTime,
	}

	before, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	req.ManagerNote = note
	req.ApproverID = &managerID
	req.Status = domain.SwapRequestStatusApproved

	after, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	audit := &domain.AuditEntry{
		ActorID:    managerID,
		EntityType: "swap_request",
		EntityID:   req.ID,
		Action:     "approve",
		Before:     before,
		After:      after,
		Reason:     note,
		ShiftID:    &req.ShiftID,
	}

	if err := m.store.ApproveSwapRequest(req, original, replacement, audit); err != nil {
		return nil, err
	}

	m.emitter.Emit(notify.Event{
		Channel: notify.UserChannel(req.RequesterID),
		Type:    notify.EventSwapApproved,
		Payload: req,
	})
	m.emitter.Emit(notify.Event{
		Channel: notify.UserChannel(*req.TargetID),
		Type:    notify.EventSwapApproved,
		Payload: req,
	})

	if shift.InProgressAt(time.Now()) {
		m.emitter.Emit(notify.Event{
			Channel: notify.LocationChannel(shift.LocationID),
			Type:    notify.EventClockOut,
			Payload: map[string]int64{"shiftID": shift.ID, "staffID": original.StaffID},
		})
		m.emitter.Emit(notify.Event{
			Channel: notify.LocationChannel(shift.LocationID),
			Type:    notify.EventClockIn,
			Payload: map[string]int64{"shiftID": shift.ID, "staffID": *req.TargetID},
		})
	}

	return req, nil
}

// ManagerReject 经理驳回，同样要求持有班次所在地点的有效认证。
// SWAP 直接作废；DROP 记一次驳回，未达上限时清空目标重新开放接单，达到上限时作废
func (m *Machine) ManagerReject(requestID int64, managerID int64, note string) (*domain.SwapRequest, error) {
	req, err := m.store.GetSwapRequestByID(requestID)
	if err != nil {
		return nil, err
	}
	if req.Status != domain.SwapRequestStatusPendingManager {
		return nil, ErrInvalidTransition
	}

	shift, err := m.store.GetShiftByID(req.ShiftID)
	if err != nil {
		return nil, err
	}
	access, err := m.store.HasActiveCertification(managerID, shift.LocationID)
	if err != nil {
		return nil, err
	}
	if !access {
		return nil, ErrNoLocationAccess
	}

	before, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	rejectedTargetID := req.TargetID
	req.ManagerNote = note
	req.ApproverID = &managerID

	var next domain.SwapRequestStatus
	switch req.Type {
	case domain.SwapRequestTypeSwap:
		next = domain.SwapRequestStatusRejected
	case domain.SwapRequestTypeDrop:
		req.PickupAttempts++
		if req.PickupAttempts >= domain.MaxPickupAttempts {
			next = domain.SwapRequestStatusCancelled
		} else {
			next = domain.SwapRequestStatusOpen
			req.TargetID = nil
		}
	}
	req.Status = next

	after, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	audit := &domain.AuditEntry{
		ActorID:    managerID,
		EntityType: "swap_request",
		EntityID:   req.ID,
		Action:     "manager_reject",
		Before:     before,
		After:      after,
		Reason:     note,
		ShiftID:    &req.ShiftID,
	}

	if err := m.store.UpdateSwapRequest(req, audit); err != nil {
		return nil, err
	}

	m.emitter.Emit(notify.Event{
		Channel: notify.UserChannel(req.RequesterID),
		Type:    notify.EventSwapManagerReject,
		Payload: req,
	})
	if rejectedTargetID != nil {
		m.emitter.Emit(notify.Event{
			Channel: notify.UserChannel(*rejectedTargetID),
			Type:    notify.EventSwapManagerReject,
			Payload: req,
		})
	}

	// 重新开放的 DROP 再次向地点广播可接单
	if req.Status == domain.SwapRequestStatusOpen {
		m.emitter.Emit(notify.Event{
			Channel: notify.LocationChannel(shift.LocationID),
			Type:    notify.EventDropAvailable,
			Payload: req,
		})
	}

	return req, nil
}

// broadcastDropAvailable 向班次所属地点广播有放班可接。
// 请求本身已经落库，广播失败只记日志
func (m *Machine) broadcastDropAvailable(req *domain.SwapRequest) {
	shift, err := m.store.GetShiftByID(req.ShiftID)
	if err != nil {
		slog.Warn("查询班次失败，放弃广播放班", "requestID", req.ID, "shiftID", req.ShiftID, "error", err)
		return
	}
	m.emitter.Emit(notify.Event{
		Channel: notify.LocationChannel(shift.LocationID),
		Type:    notify.EventDropAvailable,
		Payload: req,
	})
}

// Expire 把一个仍然 OPEN 的过期 DROP 置为 EXPIRED，审计记为系统执行者。
// 与并发接单竞争失败时返回 repository.ErrRequestNotOpen
func (m *Machine) Expire(req *domain.SwapRequest) error {
	before, err := json.Marshal(req)
	if err != nil {
		return err
	}

	expired := *req
	expired.Status = domain.SwapRequestStatusExpired
	after, err := json.Marshal(&expired)
	if err != nil {
		return err
	}

	audit := &domain.AuditEntry{
		ActorID:    domain.SystemActorID,
		EntityType: "swap_request",
		EntityID:   req.ID,
		Action:     "expire",
		Before:     before,
		After:      after,
		ShiftID:    &req.ShiftID,
	}

	if err := m.store.ExpireSwapRequest(req, audit); err != nil {
		return err
	}

	m.emitter.Emit(notify.Event{
		Channel: notify.UserChannel(req.RequesterID),
		Type:    notify.EventDropExpired,
		Payload: req,
	})

	return nil
}

// FindExpired 供清扫任务查询已过期仍开放的 DROP 请求
func (m *Machine) FindExpired(now time.Time) ([]*domain.SwapRequest, error) {
	return m.store.GetExpiredOpenDropRequests(now)
}

// transition 执行一次带前后快照审计的普通状态转移
func (m *Machine) transition(req *domain.SwapRequest, next domain.SwapRequestStatus, actorID int64, act string) error {
	before, err := json.Marshal(req)
	if err != nil {
		return err
	}

	req.Status = next

	after, err := json.Marshal(req)
	if err != nil {
		return err
	}

	audit := &domain.AuditEntry{
		ActorID:    actorID,
		EntityType: "swap_request",
		EntityID:   req.ID,
		Action:     act,
		Before:     before,
		After:      after,
		ShiftID:    &req.ShiftID,
	}

	return m.store.UpdateSwapRequest(req, audit)
}

func (m *Machine) auditEntry(actorID int64, act string, before *domain.SwapRequest, after *domain.SwapRequest) (*domain.AuditEntry, error) {
	entry := &domain.AuditEntry{
		ActorID:    actorID,
		EntityType: "swap_request",
		Action:     act,
	}

	if before != nil {
		data, err := json.Marshal(before)
		if err != nil {
			return nil, err
		}
		entry.Before = data
	}
	if after != nil {
		data, err := json.Marshal(after)
		if err != nil {
			return nil, err
		}
		entry.After = data
		entry.ShiftID = &after.ShiftID
	}

	return entry, nil
}
