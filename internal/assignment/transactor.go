package assignment

import (
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/staffhub-dev/shift-roster/backend/internal/domain"
	"github.com/staffhub-dev/shift-roster/backend/internal/locker"
	"github.com/staffhub-dev/shift-roster/backend/internal/notify"
	"github.com/staffhub-dev/shift-roster/backend/internal/rules"
)

// ErrBlocked 约束检查存在未解决的阻断，此时返回值里的 CheckResult 带有
// 完整的违规列表和候选人建议，调用方可以修正条件或提供有效覆盖后重试
var ErrBlocked = errors.New("存在未解决的约束阻断")

type Store interface {
	GetShiftByID(id int64) (*domain.Shift, error)
	GetAssignmentByShiftAndStaff(shiftID int64, staffID int64) (*domain.ShiftAssignment, error)
	CreateAssignment(assignment *domain.ShiftAssignment, overrides []*domain.ManagerOverride, audit *domain.AuditEntry) error
	DropAssignment(assignment *domain.ShiftAssignment, audit *domain.AuditEntry) (bool, error)
}

type Checker interface {
	Check(input rules.CheckInput) (*rules.CheckResult, error)
}

type Locker interface {
	Acquire(staffID int64, actorID int64) (locker.AcquireResult, error)
	Release(staffID int64, actorID int64) error
}

type Notifier interface {
	Emit(event notify.Event)
}

// Transactor 编排分配的创建与移除：咨询锁、约束检查、数据库事务、事件发布。
// 容量和唯一性只由事务保证，锁只负责提醒并发操作者
type Transactor struct {
	store   Store
	checker Checker
	locker  Locker
	emitter Notifier
}

func NewTransactor(store Store, checker Checker, locker Locker, emitter Notifier) *Transactor {
	return &Transactor{
		store:   store,
		checker: checker,
		locker:  locker,
		emitter: emitter,
	}
}

type CreateInput struct {
	ShiftID        int64
	StaffID        int64
	ActorID        int64
	ForceOverride  bool
	OverrideReason string
}

// Create 创建分配。阻断时返回 ErrBlocked 和完整检查结果；
// 容量、重复、重叠的失败分别以 repository 的哨兵错误返回，均可在重取状态后重试
func (t *Transactor) Create(input CreateInput) (*domain.ShiftAssignment, *rules.CheckResult, error) {
	// 获取咨询锁。拿不到锁不是失败：只给当前操作者发一条冲突提醒，然后照常进行
	acquire, err := t.locker.Acquire(input.StaffID, input.ActorID)
	if err != nil {
		slog.Warn("咨询锁获取失败，继续执行", "staffID", input.StaffID, "error", err)
	} else if !acquire.Acquired {
		t.emitter.Emit(notify.Event{
			Channel: notify.UserChannel(input.ActorID),
			Type:    notify.EventAssignConflict,
			Payload: map[string]int64{"staffID": input.StaffID, "holderID": acquire.HolderID},
		})
	}
	// 无论成败都按持有者身份释放，避免失败路径泄漏一个 TTL 周期的锁
	defer func() {
		if err := t.locker.Release(input.StaffID, input.ActorID); err != nil {
			slog.Warn("咨询锁释放失败，等待 TTL 过期", "staffID", input.StaffID, "error", err)
		}
	}()

	result, err := t.checker.Check(rules.CheckInput{
		ShiftID:        input.ShiftID,
		StaffID:        input.StaffID,
		ActorID:        input.ActorID,
		ForceOverride:  input.ForceOverride,
		OverrideReason: input.OverrideReason,
	})
	if err != nil {
		return nil, nil, err
	}
	if result.HasBlocking {
		return nil, result, ErrBlocked
	}

	shift, err := t.store.GetShiftByID(input.ShiftID)
	if err != nil {
		return nil, nil, err
	}

	assignment := &domain.ShiftAssignment{
		ShiftID:   shift.ID,
		StaffID:   input.StaffID,
		StartTime: shift.StartTime,
		EndTime:   shift.EndTime,
	}

	overrides := make([]*domain.ManagerOverride, 0, len(result.AppliedOverrides))
	for _, overrideType := range result.AppliedOverrides {
		overrides = append(overrides, &domain.ManagerOverride{
			ShiftID: shift.ID,
			StaffID: input.StaffID,
			ActorID: input.ActorID,
			Type:    overrideType,
			Reason:  input.OverrideReason,
		})
	}

	// After 快照由 store 在插入后补齐，这样才能带上生成的 ID 和时间戳
	audit := &domain.AuditEntry{
		ActorID:    input.ActorID,
		EntityType: "shift_assignment",
		Action:     "create",
		Reason:     input.OverrideReason,
		ShiftID:    &shift.ID,
	}

	if err := t.store.CreateAssignment(assignment, overrides, audit); err != nil {
		return nil, result, err
	}

	t.emitter.Emit(notify.Event{
		Channel: notify.UserChannel(input.StaffID),
		Type:    notify.EventAssignmentCreated,
		Payload: assignment,
	})

	// 班次正在进行中时额外向地点频道广播上岗事件
	if shift.InProgressAt(time.Now()) {
		t.emitter.Emit(notify.Event{
			Channel: notify.LocationChannel(shift.LocationID),
			Type:    notify.EventClockIn,
			Payload: map[string]int64{"shiftID": shift.ID, "staffID": input.StaffID},
		})
	}

	return assignment, result, nil
}

// Remove 把分配转移到 DROPPED。对已经 DROPPED 的分配重复调用是幂等的成功
func (t *Transactor) Remove(shiftID int64, staffID int64, actorID int64) (*domain.ShiftAssignment, error) {
	assignment, err := t.store.GetAssignmentByShiftAndStaff(shiftID, staffID)
	if err != nil {
		return nil, err
	}

	before, err := json.Marshal(assignment)
	if err != nil {
		return nil, err
	}
	audit := &domain.AuditEntry{
		ActorID:    actorID,
		EntityType: "shift_assignment",
		EntityID:   assignment.ID,
		Action:     "drop",
		Before:     before,
		ShiftID:    &shiftID,
	}

	changed, err := t.store.DropAssignment(assignment, audit)
	if err != nil {
		return nil, err
	}
	if !changed {
		return assignment, nil
	}

	t.emitter.Emit(notify.Event{
		Channel: notify.UserChannel(staffID),
		Type:    notify.EventAssignmentRemoved,
		Payload: assignment,
	})

	shift, err := t.store.GetShiftByID(shiftID)
	if err != nil {
		return nil, err
	}
	if shift.InProgressAt(time.Now()) {
		t.emitter.Emit(notify.Event{
			Channel: notify.LocationChannel(shift.LocationID),
			Type:    notify.EventClockOut,
			Payload: map[string]int64{"shiftID": shift.ID, "staffID": staffID},
		})
	}

	return assignment, nil
}
