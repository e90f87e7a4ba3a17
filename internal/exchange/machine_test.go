package exchange

import (
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/staffhub-dev/shift-roster/backend/internal/domain"
	"github.com/staffhub-dev/shift-roster/backend/internal/notify"
	"github.com/staffhub-dev/shift-roster/backend/internal/rules"
)

type fakeStore struct {
	requests    map[int64]*domain.SwapRequest
	assignments map[int64]*domain.ShiftAssignment
	shifts      map[int64]*domain.Shift
	certs       map[[2]int64]bool
	activeCount int32
	busy        bool
	audits      []*domain.AuditEntry
	replaced    *domain.ShiftAssignment
	replacement *domain.ShiftAssignment
}

func (s *fakeStore) GetSwapRequestByID(id int64) (*domain.SwapRequest, error) {
	req, ok := s.requests[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *req
	return &copied, nil
}

func (s *fakeStore) CreateSwapRequest(req *domain.SwapRequest, audit *domain.AuditEntry) error {
	req.ID = int64(len(s.requests) + 1)
	s.requests[req.ID] = req
	s.audits = append(s.audits, audit)
	return nil
}

func (s *fakeStore) UpdateSwapRequest(req *domain.SwapRequest, audit *domain.AuditEntry) error {
	s.requests[req.ID] = req
	s.audits = append(s.audits, audit)
	return nil
}

func (s *fakeStore) ApproveSwapRequest(req *domain.SwapRequest, original *domain.ShiftAssignment, replacement *domain.ShiftAssignment, audit *domain.AuditEntry) error {
	req.Status = domain.SwapRequestStatusApproved
	s.requests[req.ID] = req
	original.Status = domain.AssignmentStatusSwapped
	s.assignments[original.ID] = original
	replacement.ID = int64(len(s.assignments) + 100)
	replacement.Status = domain.AssignmentStatusConfirmed
	s.assignments[replacement.ID] = replacement
	s.replaced = original
	s.replacement = replacement
	s.audits = append(s.audits, audit)
	return nil
}

func (s *fakeStore) ExpireSwapRequest(req *domain.SwapRequest, audit *domain.AuditEntry) error {
	req.Status = domain.SwapRequestStatusExpired
	s.requests[req.ID] = req
	s.audits = append(s.audits, audit)
	return nil
}

func (s *fakeStore) GetExpiredOpenDropRequests(now time.Time) ([]*domain.SwapRequest, error) {
	return nil, nil
}

func (s *fakeStore) CountActiveSwapRequestsByRequester(requesterID int64) (int32, error) {
	return s.activeCount, nil
}

func (s *fakeStore) HasActiveSwapRequestForAssignment(assignmentID int64) (bool, error) {
	return s.busy, nil
}

func (s *fakeStore) GetAssignmentByID(id int64) (*domain.ShiftAssignment, error) {
	assignment, ok := s.assignments[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *assignment
	return &copied, nil
}

func (s *fakeStore) GetShiftByID(id int64) (*domain.Shift, error) {
	shift, ok := s.shifts[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return shift, nil
}

func (s *fakeStore) HasActiveCertification(staffID int64, locationID int64) (bool, error) {
	return s.certs[[2]int64{staffID, locationID}], nil
}

type fakeChecker struct {
	result *rules.CheckResult
	err    error
	inputs []rules.CheckInput
}

func (c *fakeChecker) Check(input rules.CheckInput) (*rules.CheckResult, error) {
	c.inputs = append(c.inputs, input)
	return c.result, c.err
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

func newFixture() (*fakeStore, *fakeChecker, *fakeEmitter, *Machine) {
	start := time.Now().Add(72 * time.Hour)
	store := &fakeStore{
		requests: map[int64]*domain.SwapRequest{},
		assignments: map[int64]*domain.ShiftAssignment{
			10: {
				ID:        10,
				ShiftID:   20,
				StaffID:   1,
				StartTime: start,
				EndTime:   start.Add(8 * time.Hour),
				Status:    domain.AssignmentStatusConfirmed,
			},
		},
		shifts: map[int64]*domain.Shift{
			20: {
				ID:         20,
				LocationID: 5,
				StartTime:  start,
				EndTime:    start.Add(8 * time.Hour),
				Status:     domain.ShiftStatusPublished,
			},
		},
		// 经理 9 持有地点 5 的认证
		certs: map[[2]int64]bool{
			{9, 5}: true,
		},
	}
	checker := &fakeChecker{result: &rules.CheckResult{}}
	emitter := &fakeEmitter{}
	return store, checker, emitter, NewMachine(store, checker, emitter)
}

func int64Ptr(v int64) *int64 {
	return &v
}

func TestCreateSwapNotifiesTarget(t *testing.T) {
	store, _, emitter, machine := newFixture()

	req, err := machine.Create(CreateInput{
		Type:         domain.SwapRequestTypeSwap,
		AssignmentID: 10,
		RequesterID:  1,
		TargetID:     int64Ptr(2),
	})
	if err != nil {
		t.Fatalf("Create 应当成功，得到错误: %v", err)
	}
	if req.Status != domain.SwapRequestStatusPendingAcceptance {
		t.Fatalf("SWAP 初始状态应为 PENDING_ACCEPTANCE，得到 %s", req.Status)
	}
	if req.ExpiresAt != nil {
		t.Fatal("SWAP 请求不应设置过期时间")
	}
	if len(emitter.events) != 1 || emitter.events[0].Type != notify.EventSwapCreated {
		t.Fatalf("应当只向目标员工发一条 swap_created，得到 %v", emitter.typesEmitted())
	}
	if emitter.events[0].Channel != notify.UserChannel(2) {
		t.Fatalf("swap_created 应发往目标员工频道，得到 %s", emitter.events[0].Channel)
	}
	if len(store.audits) != 1 || store.audits[0].Action != "create" {
		t.Fatal("创建请求应当写入一条 create 审计记录")
	}
}

func TestCreateDropSetsExpiry(t *testing.T) {
	store, _, emitter, machine := newFixture()

	req, err := machine.Create(CreateInput{
		Type:         domain.SwapRequestTypeDrop,
		AssignmentID: 10,
		RequesterID:  1,
	})
	if err != nil {
		t.Fatalf("Create 应当成功，得到错误: %v", err)
	}
	if req.Status != domain.SwapRequestStatusOpen {
		t.Fatalf("DROP 初始状态应为 OPEN，得到 %s", req.Status)
	}
	wantExpiry := store.assignments[10].StartTime.Add(-domain.DropExpiryLeadTime)
	if req.ExpiresAt == nil || !req.ExpiresAt.Equal(wantExpiry) {
		t.Fatalf("DROP 过期时间应为班次开始前 24 小时，得到 %v", req.ExpiresAt)
	}
	if len(emitter.events) != 1 || emitter.events[0].Type != notify.EventDropAvailable {
		t.Fatalf("应当广播一条 drop_available，得到 %v", emitter.typesEmitted())
	}
	if emitter.events[0].Channel != notify.LocationChannel(5) {
		t.Fatalf("drop_available 应发往地点频道，得到 %s", emitter.events[0].Channel)
	}
}

func TestCreateGuards(t *testing.T) {
	t.Run("非分配持有者", func(t *testing.T) {
		_, _, _, machine := newFixture()
		_, err := machine.Create(CreateInput{
			Type:         domain.SwapRequestTypeDrop,
			AssignmentID: 10,
			RequesterID:  99,
		})
		if !errors.Is(err, ErrNotAllowed) {
			t.Fatalf("期望 ErrNotAllowed，得到 %v", err)
		}
	})

	t.Run("分配已不是确认状态", func(t *testing.T) {
		store, _, _, _ := newFixture()
		store.assignments[10].Status = domain.AssignmentStatusDropped
		machine := NewMachine(store, &fakeChecker{result: &rules.CheckResult{}}, &fakeEmitter{})
		_, err := machine.Create(CreateInput{
			Type:         domain.SwapRequestTypeDrop,
			AssignmentID: 10,
			RequesterID:  1,
		})
		if !errors.Is(err, ErrInvalidTransition) {
			t.Fatalf("期望 ErrInvalidTransition，得到 %v", err)
		}
	})

	t.Run("SWAP 缺少目标员工", func(t *testing.T) {
		_, _, _, machine := newFixture()
		_, err := machine.Create(CreateInput{
			Type:         domain.SwapRequestTypeSwap,
			AssignmentID: 10,
			RequesterID:  1,
		})
		if !errors.Is(err, ErrTargetRequired) {
			t.Fatalf("期望 ErrTargetRequired，得到 %v", err)
		}
	})

	t.Run("活跃请求数达到上限", func(t *testing.T) {
		store, checker, emitter, _ := newFixture()
		store.activeCount = domain.MaxActiveRequestsPerStaff
		machine := NewMachine(store, checker, emitter)
		_, err := machine.Create(CreateInput{
			Type:         domain.SwapRequestTypeDrop,
			AssignmentID: 10,
			RequesterID:  1,
		})
		if !errors.Is(err, ErrTooManyRequests) {
			t.Fatalf("期望 ErrTooManyRequests，得到 %v", err)
		}
	})

	t.Run("同一分配已有活跃请求", func(t *testing.T) {
		store, checker, emitter, _ := newFixture()
		store.busy = true
		machine := NewMachine(store, checker, emitter)
		_, err := machine.Create(CreateInput{
			Type:         domain.SwapRequestTypeDrop,
			AssignmentID: 10,
			RequesterID:  1,
		})
		if !errors.Is(err, ErrAssignmentBusy) {
			t.Fatalf("期望 ErrAssignmentBusy，得到 %v", err)
		}
	})
}

func TestSwapLifecycle(t *testing.T) {
	store, _, emitter, machine := newFixture()

	req, err := machine.Create(CreateInput{
		Type:         domain.SwapRequestTypeSwap,
		AssignmentID: 10,
		RequesterID:  1,
		TargetID:     int64Ptr(2),
	})
	if err != nil {
		t.Fatalf("Create 失败: %v", err)
	}

	accepted, err := machine.Accept(req.ID, 2)
	if err != nil {
		t.Fatalf("Accept 失败: %v", err)
	}
	if accepted.Status != domain.SwapRequestStatusPendingManager {
		t.Fatalf("接受后状态应为 PENDING_MANAGER，得到 %s", accepted.Status)
	}

	approved, err := machine.Approve(req.ID, 9, "同意")
	if err != nil {
		t.Fatalf("Approve 失败: %v", err)
	}
	if approved.Status != domain.SwapRequestStatusApproved {
		t.Fatalf("批准后状态应为 APPROVED，得到 %s", approved.Status)
	}
	if approved.ApproverID == nil || *approved.ApproverID != 9 {
		t.Fatal("批准后应记录审批人")
	}
	if store.replaced == nil || store.replaced.Status != domain.AssignmentStatusSwapped {
		t.Fatal("批准后原分配应转入 SWAPPED 保留历史")
	}
	if store.replacement == nil || store.replacement.StaffID != 2 || store.replacement.Status != domain.AssignmentStatusConfirmed {
		t.Fatal("批准后应为目标员工新建一条已确认分配")
	}
	if !store.replacement.StartTime.Equal(store.replaced.StartTime) || !store.replacement.EndTime.Equal(store.replaced.EndTime) {
		t.Fatal("新分配应复制原分配的时间副本")
	}

	types := emitter.typesEmitted()
	wantTypes := []string{notify.EventSwapCreated, notify.EventSwapAccepted, notify.EventSwapApproved, notify.EventSwapApproved}
	if len(types) != len(wantTypes) {
		t.Fatalf("事件序列不符，得到 %v", types)
	}
	for i, want := range wantTypes {
		if types[i] != want {
			t.Fatalf("第 %d 个事件应为 %s，得到 %s", i, want, types[i])
		}
	}
}

func TestAcceptRejectedForWrongActor(t *testing.T) {
	_, _, _, machine := newFixture()

	req, err := machine.Create(CreateInput{
		Type:         domain.SwapRequestTypeSwap,
		AssignmentID: 10,
		RequesterID:  1,
		TargetID:     int64Ptr(2),
	})
	if err != nil {
		t.Fatalf("Create 失败: %v", err)
	}

	if _, err := machine.Accept(req.ID, 3); !errors.Is(err, ErrNotAllowed) {
		t.Fatalf("非目标员工接受应返回 ErrNotAllowed，得到 %v", err)
	}
	if _, err := machine.Accept(req.ID, 2); err != nil {
		t.Fatalf("目标员工接受失败: %v", err)
	}
	// 已进入待审批状态，重复接受属于非法转移
	if _, err := machine.Accept(req.ID, 2); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("重复接受应返回 ErrInvalidTransition，得到 %v", err)
	}
}

func TestRejectByTarget(t *testing.T) {
	_, _, emitter, machine := newFixture()

	req, err := machine.Create(CreateInput{
		Type:         domain.SwapRequestTypeSwap,
		AssignmentID: 10,
		RequesterID:  1,
		TargetID:     int64Ptr(2),
	})
	if err != nil {
		t.Fatalf("Create 失败: %v", err)
	}

	rejected, err := machine.Reject(req.ID, 2)
	if err != nil {
		t.Fatalf("Reject 失败: %v", err)
	}
	if rejected.Status != domain.SwapRequestStatusCancelled {
		t.Fatalf("目标拒绝后状态应为 CANCELLED，得到 %s", rejected.Status)
	}
	last := emitter.events[len(emitter.events)-1]
	if last.Type != notify.EventSwapRejected || last.Channel != notify.UserChannel(1) {
		t.Fatalf("应向发起者发送 swap_rejected，得到 %s@%s", last.Type, last.Channel)
	}
}

func TestCancelIdempotentOnTerminal(t *testing.T) {
	store, _, emitter, machine := newFixture()

	req, err := machine.Create(CreateInput{
		Type:         domain.SwapRequestTypeDrop,
		AssignmentID: 10,
		RequesterID:  1,
	})
	if err != nil {
		t.Fatalf("Create 失败: %v", err)
	}

	cancelled, err := machine.Cancel(req.ID, 1)
	if err != nil {
		t.Fatalf("Cancel 失败: %v", err)
	}
	if cancelled.Status != domain.SwapRequestStatusCancelled {
		t.Fatalf("撤回后状态应为 CANCELLED，得到 %s", cancelled.Status)
	}

	auditCount := len(store.audits)
	eventCount := len(emitter.events)
	again, err := machine.Cancel(req.ID, 1)
	if err != nil {
		t.Fatalf("重复撤回不应报错: %v", err)
	}
	if again.Status != domain.SwapRequestStatusCancelled {
		t.Fatalf("重复撤回后状态应保持 CANCELLED，得到 %s", again.Status)
	}
	if len(store.audits) != auditCount || len(emitter.events) != eventCount {
		t.Fatal("对终态请求的撤回不应产生新的审计或事件")
	}
}

func TestPickupRevalidatesConstraints(t *testing.T) {
	store, checker, emitter, machine := newFixture()

	req, err := machine.Create(CreateInput{
		Type:         domain.SwapRequestTypeDrop,
		AssignmentID: 10,
		RequesterID:  1,
	})
	if err != nil {
		t.Fatalf("Create 失败: %v", err)
	}

	checker.result = &rules.CheckResult{
		HasBlocking: true,
		Outcomes: []rules.Outcome{
			{RuleID: rules.RuleNoOverlap, Severity: rules.SeverityBlocking, Passed: false},
		},
	}
	_, result, err := machine.Pickup(req.ID, 3)
	if !errors.Is(err, ErrPickupBlocked) {
		t.Fatalf("期望 ErrPickupBlocked，得到 %v", err)
	}
	if result == nil || !result.HasBlocking {
		t.Fatal("被阻断时应返回完整检查结果")
	}
	if store.requests[req.ID].Status != domain.SwapRequestStatusOpen {
		t.Fatal("被阻断的认领不应改变请求状态")
	}

	checker.result = &rules.CheckResult{}
	picked, result, err := machine.Pickup(req.ID, 3)
	if err != nil {
		t.Fatalf("Pickup 失败: %v", err)
	}
	if result.HasBlocking {
		t.Fatal("通过检查的认领不应带阻断结果")
	}
	if picked.Status != domain.SwapRequestStatusPendingManager {
		t.Fatalf("认领后状态应为 PENDING_MANAGER，得到 %s", picked.Status)
	}
	if picked.TargetID == nil || *picked.TargetID != 3 {
		t.Fatal("认领后应记录接单员工")
	}
	if len(checker.inputs) != 2 || checker.inputs[1].StaffID != 3 {
		t.Fatal("认领应以接单员工身份重跑约束检查")
	}
	last := emitter.events[len(emitter.events)-1]
	if last.Type != notify.EventDropPicked || last.Channel != notify.UserChannel(1) {
		t.Fatalf("应向发起者发送 drop_picked，得到 %s@%s", last.Type, last.Channel)
	}
}

func TestPickupByRequester(t *testing.T) {
	_, _, _, machine := newFixture()

	req, err := machine.Create(CreateInput{
		Type:         domain.SwapRequestTypeDrop,
		AssignmentID: 10,
		RequesterID:  1,
	})
	if err != nil {
		t.Fatalf("Create 失败: %v", err)
	}

	if _, _, err := machine.Pickup(req.ID, 1); !errors.Is(err, ErrNotAllowed) {
		t.Fatalf("发起者认领自己的放班应返回 ErrNotAllowed，得到 %v", err)
	}
}

func TestManagerRejectDropReopens(t *testing.T) {
	store, _, emitter, machine := newFixture()

	req, err := machine.Create(CreateInput{
		Type:         domain.SwapRequestTypeDrop,
		AssignmentID: 10,
		RequesterID:  1,
	})
	if err != nil {
		t.Fatalf("Create 失败: %v", err)
	}
	if _, _, err := machine.Pickup(req.ID, 3); err != nil {
		t.Fatalf("Pickup 失败: %v", err)
	}

	rejected, err := machine.ManagerReject(req.ID, 9, "时段不合适")
	if err != nil {
		t.Fatalf("ManagerReject 失败: %v", err)
	}
	if rejected.Status != domain.SwapRequestStatusOpen {
		t.Fatalf("未达驳回上限时应重新开放，得到 %s", rejected.Status)
	}
	if rejected.TargetID != nil {
		t.Fatal("重新开放时应清空接单员工")
	}
	if rejected.PickupAttempts != 1 {
		t.Fatalf("驳回次数应为 1，得到 %d", rejected.PickupAttempts)
	}

	types := emitter.typesEmitted()
	if types[len(types)-1] != notify.EventDropAvailable {
		t.Fatalf("重新开放后应再次广播 drop_available，得到 %v", types)
	}
	if store.requests[req.ID].Status != domain.SwapRequestStatusOpen {
		t.Fatal("重新开放的状态应当落库")
	}
}

func TestManagerRejectDropExhausts(t *testing.T) {
	_, _, emitter, machine := newFixture()

	req, err := machine.Create(CreateInput{
		Type:         domain.SwapRequestTypeDrop,
		AssignmentID: 10,
		RequesterID:  1,
	})
	if err != nil {
		t.Fatalf("Create 失败: %v", err)
	}

	for attempt := 1; attempt < domain.MaxPickupAttempts; attempt++ {
		if _, _, err := machine.Pickup(req.ID, 3); err != nil {
			t.Fatalf("第 %d 次 Pickup 失败: %v", attempt, err)
		}
		rejected, err := machine.ManagerReject(req.ID, 9, "不合适")
		if err != nil {
			t.Fatalf("第 %d 次 ManagerReject 失败: %v", attempt, err)
		}
		if rejected.Status != domain.SwapRequestStatusOpen {
			t.Fatalf("第 %d 次驳回后应仍然开放，得到 %s", attempt, rejected.Status)
		}
	}

	if _, _, err := machine.Pickup(req.ID, 3); err != nil {
		t.Fatalf("最后一次 Pickup 失败: %v", err)
	}
	final, err := machine.ManagerReject(req.ID, 9, "不合适")
	if err != nil {
		t.Fatalf("最后一次 ManagerReject 失败: %v", err)
	}
	if final.Status != domain.SwapRequestStatusCancelled {
		t.Fatalf("驳回次数达到上限后应作废，得到 %s", final.Status)
	}
	if final.PickupAttempts != domain.MaxPickupAttempts {
		t.Fatalf("驳回次数应为 %d，得到 %d", domain.MaxPickupAttempts, final.PickupAttempts)
	}
	types := emitter.typesEmitted()
	if types[len(types)-1] == notify.EventDropAvailable {
		t.Fatal("作废的请求不应再次广播可接单")
	}
}

func TestManagerRejectSwap(t *testing.T) {
	_, _, _, machine := newFixture()

	req, err := machine.Create(CreateInput{
		Type:         domain.SwapRequestTypeSwap,
		AssignmentID: 10,
		RequesterID:  1,
		TargetID:     int64Ptr(2),
	})
	if err != nil {
		t.Fatalf("Create 失败: %v", err)
	}
	if _, err := machine.Accept(req.ID, 2); err != nil {
		t.Fatalf("Accept 失败: %v", err)
	}

	rejected, err := machine.ManagerReject(req.ID, 9, "人手不够")
	if err != nil {
		t.Fatalf("ManagerReject 失败: %v", err)
	}
	if rejected.Status != domain.SwapRequestStatusRejected {
		t.Fatalf("SWAP 被经理驳回后应为 REJECTED，得到 %s", rejected.Status)
	}
	if rejected.ManagerNote != "人手不够" {
		t.Fatal("驳回意见应当保留在请求上")
	}
}

func TestManagerAdjudicationRequiresLocationAccess(t *testing.T) {
	pending := func(t *testing.T) (*fakeStore, *Machine, int64) {
		t.Helper()
		store, _, _, machine := newFixture()
		req, err := machine.Create(CreateInput{
			Type:         domain.SwapRequestTypeSwap,
			AssignmentID: 10,
			RequesterID:  1,
			TargetID:     int64Ptr(2),
		})
		if err != nil {
			t.Fatalf("Create 失败: %v", err)
		}
		if _, err := machine.Accept(req.ID, 2); err != nil {
			t.Fatalf("Accept 失败: %v", err)
		}
		return store, machine, req.ID
	}

	// 经理 8 没有地点 5 的认证
	t.Run("批准", func(t *testing.T) {
		store, machine, id := pending(t)
		if _, err := machine.Approve(id, 8, "同意"); !errors.Is(err, ErrNoLocationAccess) {
			t.Fatalf("期望 ErrNoLocationAccess，得到 %v", err)
		}
		if store.requests[id].Status != domain.SwapRequestStatusPendingManager {
			t.Fatal("无权限的批准不应改变请求状态")
		}
	})

	t.Run("驳回", func(t *testing.T) {
		store, machine, id := pending(t)
		if _, err := machine.ManagerReject(id, 8, "不合适"); !errors.Is(err, ErrNoLocationAccess) {
			t.Fatalf("期望 ErrNoLocationAccess，得到 %v", err)
		}
		if store.requests[id].Status != domain.SwapRequestStatusPendingManager {
			t.Fatal("无权限的驳回不应改变请求状态")
		}
	})
}

func TestApproveEmitsClockPairForInProgressShift(t *testing.T) {
	store, _, emitter, machine := newFixture()

	// 把班次和分配改成正在进行中
	now := time.Now()
	store.shifts[20].StartTime = now.Add(-time.Hour)
	store.shifts[20].EndTime = now.Add(7 * time.Hour)
	store.assignments[10].StartTime = store.shifts[20].StartTime
	store.assignments[10].EndTime = store.shifts[20].EndTime

	req, err := machine.Create(CreateInput{
		Type:         domain.SwapRequestTypeSwap,
		AssignmentID: 10,
		RequesterID:  1,
		TargetID:     int64Ptr(2),
	})
	if err != nil {
		t.Fatalf("Create 失败: %v", err)
	}
	if _, err := machine.Accept(req.ID, 2); err != nil {
		t.Fatalf("Accept 失败: %v", err)
	}
	if _, err := machine.Approve(req.ID, 9, "同意"); err != nil {
		t.Fatalf("Approve 失败: %v", err)
	}

	types := emitter.typesEmitted()
	if len(types) < 2 || types[len(types)-2] != notify.EventClockOut || types[len(types)-1] != notify.EventClockIn {
		t.Fatalf("批准进行中的班次应补发下岗/上岗事件对，得到 %v", types)
	}
	clockOut := emitter.events[len(emitter.events)-2]
	clockIn := emitter.events[len(emitter.events)-1]
	if clockOut.Channel != notify.LocationChannel(5) || clockIn.Channel != notify.LocationChannel(5) {
		t.Fatal("上下岗事件应发往地点频道")
	}
	if clockOut.Payload.(map[string]int64)["staffID"] != 1 || clockIn.Payload.(map[string]int64)["staffID"] != 2 {
		t.Fatal("下岗事件应指向原员工，上岗事件应指向目标员工")
	}
}

func TestExpire(t *testing.T) {
	store, _, emitter, machine := newFixture()

	req, err := machine.Create(CreateInput{
		Type:         domain.SwapRequestTypeDrop,
		AssignmentID: 10,
		RequesterID:  1,
	})
	if err != nil {
		t.Fatalf("Create 失败: %v", err)
	}

	if err := machine.Expire(req); err != nil {
		t.Fatalf("Expire 失败: %v", err)
	}
	if store.requests[req.ID].Status != domain.SwapRequestStatusExpired {
		t.Fatalf("过期后状态应为 EXPIRED，得到 %s", store.requests[req.ID].Status)
	}

	last := store.audits[len(store.audits)-1]
	if last.Action != "expire" || last.ActorID != domain.SystemActorID {
		t.Fatalf("过期审计应由系统执行者记录，得到 action=%s actor=%d", last.Action, last.ActorID)
	}
	lastEvent := emitter.events[len(emitter.events)-1]
	if lastEvent.Type != notify.EventDropExpired || lastEvent.Channel != notify.UserChannel(1) {
		t.Fatalf("应向发起者发送 drop_expired，得到 %s@%s", lastEvent.Type, lastEvent.Channel)
	}
}
