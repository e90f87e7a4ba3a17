package rules

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/staffhub-dev/shift-roster/backend/internal/domain"
)

// 候选人建议的数量上限
const maxSuggestions = 3

type CheckInput struct {
	ShiftID        int64
	StaffID        int64
	ActorID        int64
	ForceOverride  bool
	OverrideReason string
}

// DataSource 约束检查所需的只读数据访问，由 repository 实现
type DataSource interface {
	GetShiftByID(id int64) (*domain.Shift, error)
	GetLocationByID(id int64) (*domain.Location, error)
	GetUserByID(id int64) (*domain.User, error)
	HasActiveCertification(staffID int64, locationID int64) (bool, error)
	GetStaffSkills(staffID int64) ([]string, error)
	GetConfirmedAssignmentsByStaff(staffID int64) ([]*domain.ShiftAssignment, error)
	GetAvailabilitiesByStaff(staffID int64) ([]*domain.Availability, error)
	GetAvailabilityExceptionsByStaff(staffID int64) ([]*domain.AvailabilityException, error)
	FindEligibleStaff(locationID int64, skill string, excludeStaffID int64, limit int) ([]*domain.User, error)
}

type Engine struct {
	source DataSource
}

func NewEngine(source DataSource) *Engine {
	return &Engine{
		source: source,
	}
}

// snapshot 规则评估所依据的数据快照，所有规则都针对同一份快照独立评估
type snapshot struct {
	shift            *domain.Shift    // 为空时表示班次不存在
	location         *domain.Location // 班次所属地点，日/周边界一律按它的时区计算
	locationTZ       *time.Location
	staff            *domain.User // 为空时表示员工不存在
	hasCertification bool
	skills           []string
	assignments      []*domain.ShiftAssignment // 该员工全部已确认分配
	availabilities   []*domain.Availability
	exceptions       []*domain.AvailabilityException
	now              time.Time
}

// Check 评估 (shift, staff) 配对是否合法。业务规则不通过不会返回 error，
// 只有数据访问失败才作为系统错误向上传播
func (e *Engine) Check(input CheckInput) (*CheckResult, error) {
	snap, err := e.loadSnapshot(input)
	if err != nil {
		return nil, err
	}

	result := evaluate(snap, input)

	// 只有在存在未解决的阻断时才计算候选人建议：同样持证又具备技能的在职员工，
	// 这是一个廉价的同形替代查询，不做完整的约束重跑
	if result.HasBlocking && snap.shift != nil && snap.staff != nil {
		suggestions, err := e.source.FindEligibleStaff(snap.shift.LocationID, snap.shift.RequiredSkill, input.StaffID, maxSuggestions)
		if err != nil {
			return nil, err
		}
		result.Suggestions = suggestions
	}

	return result, nil
}

func (e *Engine) loadSnapshot(input CheckInput) (*snapshot, error) {
	snap := &snapshot{
		now: time.Now(),
	}

	shift, err := e.source.GetShiftByID(input.ShiftID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	snap.shift = shift

	staff, err := e.source.GetUserByID(input.StaffID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	snap.staff = staff

	// 班次或员工不存在时其余数据无从谈起，直接返回，评估阶段只会产生存在性规则的结果
	if snap.shift == nil || snap.staff == nil {
		return snap, nil
	}

	location, err := e.source.GetLocationByID(shift.LocationID)
	if err != nil {
		return nil, err
	}
	snap.location = location

	tz, err := time.LoadLocation(location.Timezone)
	if err != nil {
		return nil, fmt.Errorf("地点 %d 的时区 %q 无法加载: %w", location.ID, location.Timezone, err)
	}
	snap.locationTZ = tz

	hasCertification, err := e.source.HasActiveCertification(input.StaffID, shift.LocationID)
	if err != nil {
		return nil, err
	}
	snap.hasCertification = hasCertification

	skills, err := e.source.GetStaffSkills(input.StaffID)
	if err != nil {
		return nil, err
	}
	snap.skills = skills

	assignments, err := e.source.GetConfirmedAssignmentsByStaff(input.StaffID)
	if err != nil {
		return nil, err
	}
	snap.assignments = assignments

	availabilities, err := e.source.GetAvailabilitiesByStaff(input.StaffID)
	if err != nil {
		return nil, err
	}
	snap.availabilities = availabilities

	exceptions, err := e.source.GetAvailabilityExceptionsByStaff(input.StaffID)
	if err != nil {
		return nil, err
	}
	snap.exceptions = exceptions

	return snap, nil
}

// evaluate 按固定顺序执行所有规则并聚合结果。顺序只影响展示，不影响正确性
func evaluate(snap *snapshot, input CheckInput) *CheckResult {
	result := &CheckResult{
		Outcomes:         make([]Outcome, 0),
		Suggestions:      make([]*domain.User, 0),
		AppliedOverrides: make([]domain.OverrideType, 0),
	}

	outcomes := []Outcome{
		checkShiftExists(snap),
		checkStaffValid(snap),
	}

	// 班次或员工不存在时后续规则无法评估
	if snap.shift != nil && snap.staff != nil {
		outcomes = append(outcomes,
			checkCertification(snap),
			checkSkillMatch(snap),
			checkAvailability(snap),
			checkNoOverlap(snap),
			checkRestGap(snap),
			checkDailyHardLimit(snap),
			checkWeeklyHardLimit(snap),
			checkWeeklyWarning(snap),
			checkDailyWarning(snap),
		)
		outcomes = append(outcomes, checkConsecutiveDays(snap)...)
	}

	// 应用覆盖：必须同时给出 forceOverride 和非空理由，且仅对可覆盖规则生效。
	// 覆盖把规则置为通过，但不抹掉它的提示信息
	allowOverride := input.ForceOverride && input.OverrideReason != ""
	for i := range outcomes {
		if outcomes[i].Passed {
			continue
		}
		overrideType, overridable := overridableRules[outcomes[i].RuleID]
		if allowOverride && overridable {
			outcomes[i].Passed = true
			outcomes[i].OverrideApplied = true
			result.AppliedOverrides = append(result.AppliedOverrides, overrideType)
		}
	}

	for _, outcome := range outcomes {
		if outcome.Severity == SeverityBlocking && !outcome.Passed {
			result.HasBlocking = true
		}
	}

	result.Outcomes = outcomes
	return result
}
