package assignment

import (
	"database/sql"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/staffhub-dev/shift-roster/backend/internal/domain"
	"github.com/staffhub-dev/shift-roster/backend/internal/locker"
	"github.com/staffhub-dev/shift-roster/backend/internal/notify"
	"github.com/staffhub-dev/shift-roster/backend/internal/rules"
)

type fakeStore struct {
	shift       *domain.Shift
	assignments []*domain.ShiftAssignment
	createErr   error
	created     []*domain.ShiftAssignment
	overrides   []*domain.ManagerOverride
	audit       *domain.AuditEntry
	droppedID   int64
}

func (s *fakeStore) GetShiftByID(id int64) (*domain.Shift, error) {
	if s.shift == nil || s.shift.ID != id {
		return nil, sql.ErrNoRows
	}
	return s.shift, nil
}

// 与 repository 的契约一致：存在多条历史行时优先返回 CONFIRMED 的那条
func (s *fakeStore) GetAssignmentByShiftAndStaff(shiftID int64, staffID int64) (*domain.ShiftAssignment, error) {
	var found *domain.ShiftAssignment
	for _, assignment := range s.assignments {
		if assignment.ShiftID != shiftID || assignment.StaffID != staffID {
			continue
		}
		if found == nil || assignment.Status == domain.AssignmentStatusConfirmed {
			found = assignment
		}
	}
	if found == nil {
		return nil, sql.ErrNoRows
	}
	return found, nil
}

func (s *fakeStore) CreateAssignment(assignment *domain.ShiftAssignment, overrides []*domain.ManagerOverride, audit *domain.AuditEntry) error {
	if s.createErr != nil {
		return s.createErr
	}
	assignment.ID = 100
	assignment.Status = domain.AssignmentStatusConfirmed
	audit.EntityID = assignment.ID
	after, err := json.Marshal(assignment)
	if err != nil {
		return err
	}
	audit.After = after
	s.created = append(s.created, assignment)
	s.overrides = overrides
	s.audit = audit
	return nil
}

func (s *fakeStore) DropAssignment(assignment *domain.ShiftAssignment, audit *domain.AuditEntry) (bool, error) {
	s.droppedID = assignment.ID
	if assignment.Status == domain.AssignmentStatusDropped {
		return false, nil
	}
	assignment.Status = domain.AssignmentStatusDropped
	return true, nil
}

type fakeChecker struct {
	result *rules.CheckResult
	err    error
}

func (c *fakeChecker) Check(input rules.CheckInput) (*rules.CheckResult, error) {
	return c.result, c.err
}

type fakeLocker struct {
	result   locker.AcquireResult
	err      error
	released bool
}

func (l *fakeLocker) Acquire(staffID int64, actorID int64) (locker.AcquireResult, error) {
	return l.result, l.err
}

func (l *fakeLocker) Release(staffID int64, actorID int64) error {
	l.released = true
	return nil
}

type fakeEmitter struct {
	events []notify.Event
}

func (e *fakeEmitter) Emit(event notify.Event) {
	e.events = append(e.events, event)
}

func (e *fakeEmitter) typesEmitted() []string {
	types := make([]string, 0, len(e.events))
	for _, event := range e.events {
		types = append(types, event.Type)
	}
	return types
}

func passedResult() *rules.CheckResult {
	return &rules.CheckResult{
		Outcomes:         []rules.Outcome{},
		Suggestions:      []*domain.User{},
		AppliedOverrides: []domain.OverrideType{},
	}
}

func futureShift() *domain.Shift {
	return &domain.Shift{
		ID:         1,
		LocationID: 2,
		StartTime:  time.Now().Add(48 * time.Hour),
		EndTime:    time.Now().Add(56 * time.Hour),
		Headcount:  2,
		Status:     domain.ShiftStatusPublished,
	}
}

func TestCreateHappyPath(t *testing.T) {
	store := &fakeStore{shift: futureShift()}
	lock := &fakeLocker{result: locker.AcquireResult{Acquired: true}}
	emitter := &fakeEmitter{}
	transactor := NewTransactor(store, &fakeChecker{result: passedResult()}, lock, emitter)

	assignment, result, err := transactor.Create(CreateInput{ShiftID: 1, StaffID: 7, ActorID: 3})
	if err != nil {
		t.Fatal(err)
	}
	if assignment.Status != domain.AssignmentStatusConfirmed {
		t.Errorf("status = %s, want CONFIRMED", assignment.Status)
	}
	if result.HasBlocking {
		t.Error("不应有阻断")
	}
	if !lock.released {
		t.Error("锁必须被释放")
	}

	types := emitter.typesEmitted()
	if len(types) != 1 || types[0] != notify.EventAssignmentCreated {
		t.Errorf("事件 = %v, want [assignment_created]", types)
	}

	// 冗余时间必须从班次复制
	if !assignment.StartTime.Equal(store.shift.StartTime) || !assignment.EndTime.Equal(store.shift.EndTime) {
		t.Error("分配的时间副本与班次不一致")
	}
}

func TestCreateBlockedWritesNothing(t *testing.T) {
	store := &fakeStore{shift: futureShift()}
	blocked := passedResult()
	blocked.HasBlocking = true
	blocked.Outcomes = []rules.Outcome{
		{RuleID: rules.RuleNoOverlap, Severity: rules.SeverityBlocking, Passed: false},
	}
	lock := &fakeLocker{result: locker.AcquireResult{Acquired: true}}
	transactor := NewTransactor(store, &fakeChecker{result: blocked}, lock, &fakeEmitter{})

	_, result, err := transactor.Create(CreateInput{ShiftID: 1, StaffID: 7, ActorID: 3})

	if !errors.Is(err, ErrBlocked) {
		t.Fatalf("err = %v, want ErrBlocked", err)
	}
	if result == nil || !result.HasBlocking {
		t.Error("阻断时必须返回完整检查结果")
	}
	if len(store.created) != 0 {
		t.Error("阻断时不允许任何写入")
	}
	if !lock.released {
		t.Error("失败路径也必须释放锁")
	}
}

func TestCreateContendedLockProceeds(t *testing.T) {
	store := &fakeStore{shift: futureShift()}
	// 锁被 actor 9 持有：只提醒，不失败
	lock := &fakeLocker{result: locker.AcquireResult{Acquired: false, HolderID: 9}}
	emitter := &fakeEmitter{}
	transactor := NewTransactor(store, &fakeChecker{result: passedResult()}, lock, emitter)

	assignment, _, err := transactor.Create(CreateInput{ShiftID: 1, StaffID: 7, ActorID: 3})
	if err != nil {
		t.Fatal(err)
	}
	if assignment == nil {
		t.Fatal("锁竞争不应阻止分配")
	}

	types := emitter.typesEmitted()
	if len(types) != 2 || types[0] != notify.EventAssignConflict {
		t.Errorf("事件 = %v, want 先发冲突提醒", types)
	}
	// 冲突提醒发给当前操作者而不是锁持有者
	if emitter.events[0].Channel != notify.UserChannel(3) {
		t.Errorf("冲突提醒频道 = %s, want %s", emitter.events[0].Channel, notify.UserChannel(3))
	}
}

func TestCreateMapsCapacityError(t *testing.T) {
	capacityErr := errors.New("班次人数已满")
	store := &fakeStore{shift: futureShift(), createErr: capacityErr}
	lock := &fakeLocker{result: locker.AcquireResult{Acquired: true}}
	transactor := NewTransactor(store, &fakeChecker{result: passedResult()}, lock, &fakeEmitter{})

	_, _, err := transactor.Create(CreateInput{ShiftID: 1, StaffID: 7, ActorID: 3})
	if !errors.Is(err, capacityErr) {
		t.Errorf("事务错误必须原样向上传播, got %v", err)
	}
	if !lock.released {
		t.Error("事务失败后锁也必须释放")
	}
}

func TestCreateEmitsClockInWhenShiftInProgress(t *testing.T) {
	shift := futureShift()
	shift.StartTime = time.Now().Add(-time.Hour)
	shift.EndTime = time.Now().Add(time.Hour)
	store := &fakeStore{shift: shift}
	emitter := &fakeEmitter{}
	transactor := NewTransactor(store, &fakeChecker{result: passedResult()}, &fakeLocker{result: locker.AcquireResult{Acquired: true}}, emitter)

	if _, _, err := transactor.Create(CreateInput{ShiftID: 1, StaffID: 7, ActorID: 3}); err != nil {
		t.Fatal(err)
	}

	types := emitter.typesEmitted()
	if len(types) != 2 || types[1] != notify.EventClockIn {
		t.Errorf("事件 = %v, want 第二条为 clock_in", types)
	}
	if emitter.events[1].Channel != notify.LocationChannel(shift.LocationID) {
		t.Error("clock_in 应发往地点频道")
	}
}

func TestRemoveIdempotentOnDropped(t *testing.T) {
	store := &fakeStore{
		shift: futureShift(),
		assignments: []*domain.ShiftAssignment{
			{ID: 100, ShiftID: 1, StaffID: 7, Status: domain.AssignmentStatusDropped},
		},
	}
	emitter := &fakeEmitter{}
	transactor := NewTransactor(store, &fakeChecker{result: passedResult()}, &fakeLocker{}, emitter)

	assignment, err := transactor.Remove(1, 7, 3)
	if err != nil {
		t.Fatalf("对已 DROPPED 的分配重复移除应是无操作成功, got %v", err)
	}
	if assignment == nil {
		t.Fatal("应返回现有分配")
	}
	if len(emitter.events) != 0 {
		t.Errorf("无操作不应发事件, got %v", emitter.typesEmitted())
	}
}

func TestRemoveEmitsEvents(t *testing.T) {
	store := &fakeStore{
		shift: futureShift(),
		assignments: []*domain.ShiftAssignment{
			{ID: 100, ShiftID: 1, StaffID: 7, Status: domain.AssignmentStatusConfirmed},
		},
	}
	emitter := &fakeEmitter{}
	transactor := NewTransactor(store, &fakeChecker{result: passedResult()}, &fakeLocker{}, emitter)

	assignment, err := transactor.Remove(1, 7, 3)
	if err != nil {
		t.Fatal(err)
	}
	if assignment.Status != domain.AssignmentStatusDropped {
		t.Errorf("status = %s, want DROPPED", assignment.Status)
	}

	types := emitter.typesEmitted()
	if len(types) != 1 || types[0] != notify.EventAssignmentRemoved {
		t.Errorf("事件 = %v, want [assignment_removed]", types)
	}
}

func TestRemoveTargetsConfirmedRow(t *testing.T) {
	// 历史 DROPPED 行与现有 CONFIRMED 行并存时，移除的必须是 CONFIRMED 那条
	store := &fakeStore{
		shift: futureShift(),
		assignments: []*domain.ShiftAssignment{
			{ID: 100, ShiftID: 1, StaffID: 7, Status: domain.AssignmentStatusDropped},
			{ID: 101, ShiftID: 1, StaffID: 7, Status: domain.AssignmentStatusConfirmed},
		},
	}
	emitter := &fakeEmitter{}
	transactor := NewTransactor(store, &fakeChecker{result: passedResult()}, &fakeLocker{}, emitter)

	assignment, err := transactor.Remove(1, 7, 3)
	if err != nil {
		t.Fatal(err)
	}
	if assignment.ID != 101 {
		t.Errorf("移除的分配 ID = %d, want 101", assignment.ID)
	}
	if store.droppedID != 101 {
		t.Errorf("落库移除的分配 ID = %d, want 101", store.droppedID)
	}
	if assignment.Status != domain.AssignmentStatusDropped {
		t.Errorf("status = %s, want DROPPED", assignment.Status)
	}
	if len(emitter.events) != 1 {
		t.Errorf("应发出移除事件, got %v", emitter.typesEmitted())
	}
}

func TestCreateAuditSnapshotCarriesGeneratedID(t *testing.T) {
	store := &fakeStore{shift: futureShift()}
	transactor := NewTransactor(store, &fakeChecker{result: passedResult()}, &fakeLocker{result: locker.AcquireResult{Acquired: true}}, &fakeEmitter{})

	if _, _, err := transactor.Create(CreateInput{ShiftID: 1, StaffID: 7, ActorID: 3}); err != nil {
		t.Fatal(err)
	}
	if store.audit == nil {
		t.Fatal("创建分配必须写入审计记录")
	}
	if store.audit.EntityID != 100 {
		t.Errorf("审计 EntityID = %d, want 100", store.audit.EntityID)
	}

	// After 快照要包含插入后才有的字段
	var snapshot domain.ShiftAssignment
	if err := json.Unmarshal(store.audit.After, &snapshot); err != nil {
		t.Fatal(err)
	}
	if snapshot.ID != 100 {
		t.Errorf("快照 ID = %d, want 100", snapshot.ID)
	}
	if snapshot.Status != domain.AssignmentStatusConfirmed {
		t.Errorf("快照 status = %s, want CONFIRMED", snapshot.Status)
	}
}
