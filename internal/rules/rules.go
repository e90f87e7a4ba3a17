package rules

import (
	"fmt"
	"slices"
	"time"

	"github.com/staffhub-dev/shift-roster/backend/internal/domain"
	"github.com/staffhub-dev/shift-roster/backend/internal/timeutil"
)

const (
	minRestGapHours  = 10.0
	dailyHardLimit   = 12.0
	dailyWarnFloor   = 8.0
	weeklyHardLimit  = 40.0
	weeklyWarnFloor  = 35.0
	warnConsecutive  = 6
	limitConsecutive = 7
)

func checkShiftExists(snap *snapshot) Outcome {
	outcome := Outcome{
		RuleID:   RuleShiftExists,
		Severity: SeverityBlocking,
		Passed:   snap.shift != nil,
		Message:  "班次存在",
	}
	if snap.shift == nil {
		outcome.Message = "目标班次不存在"
	}
	return outcome
}

func checkStaffValid(snap *snapshot) Outcome {
	outcome := Outcome{
		RuleID:   RuleStaffValid,
		Severity: SeverityBlocking,
		Passed:   true,
		Message:  "员工有效",
	}

	switch {
	case snap.staff == nil:
		outcome.Passed = false
		outcome.Message = "目标员工不存在"
	case !snap.staff.IsActive:
		outcome.Passed = false
		outcome.Message = "目标员工已离职"
	case snap.staff.Role != domain.RoleStaff:
		outcome.Passed = false
		outcome.Message = "目标用户不是一线员工"
	}

	return outcome
}

func checkCertification(snap *snapshot) Outcome {
	outcome := Outcome{
		RuleID:   RuleCertification,
		Severity: SeverityBlocking,
		Passed:   snap.hasCertification,
		Message:  "持有该地点的有效认证",
	}
	if !snap.hasCertification {
		outcome.Message = "员工没有该地点的有效认证"
	}
	return outcome
}

func checkSkillMatch(snap *snapshot) Outcome {
	passed := slices.Contains(snap.skills, snap.shift.RequiredSkill)
	outcome := Outcome{
		RuleID:   RuleSkillMatch,
		Severity: SeverityBlocking,
		Passed:   passed,
		Message:  "具备班次所需技能",
	}
	if !passed {
		outcome.Message = fmt.Sprintf("员工不具备班次所需技能 %q", snap.shift.RequiredSkill)
	}
	return outcome
}

// checkAvailability 空闲时间规则。每周重复记录按它自己声明的时区匹配班次的星期；
// 日期例外只覆盖已存在的星期匹配，不能替代缺失的星期匹配
func checkAvailability(snap *snapshot) Outcome {
	outcome := Outcome{
		RuleID:   RuleAvailability,
		Severity: SeverityBlocking,
		Passed:   false,
		Message:  "班次时间在员工的空闲时间内",
	}

	matched := make([]*domain.Availability, 0)
	for _, availability := range snap.availabilities {
		tz, err := time.LoadLocation(availability.Timezone)
		if err != nil {
			continue
		}
		if timeutil.ISOWeekday(snap.shift.StartTime, tz) == availability.DayOfWeek {
			matched = append(matched, availability)
		}
	}

	if len(matched) == 0 {
		outcome.Message = "员工在该班次的星期没有声明空闲时间"
		return outcome
	}

	// 检查是否存在针对该日期的例外
	for _, exception := range snap.exceptions {
		tz, err := time.LoadLocation(exception.Timezone)
		if err != nil {
			continue
		}
		if timeutil.DayKey(snap.shift.StartTime, tz) != exception.Date {
			continue
		}

		if !exception.IsAvailable {
			outcome.Message = fmt.Sprintf("员工在 %s 有标记为不可用的例外记录", exception.Date)
			return outcome
		}

		if windowContains(snap.shift, exception.StartTime, exception.EndTime, tz) {
			outcome.Passed = true
			return outcome
		}
		outcome.Message = "班次时间不在该日期例外声明的空闲时间窗口内"
		return outcome
	}

	for _, availability := range matched {
		tz, _ := time.LoadLocation(availability.Timezone)
		if windowContains(snap.shift, availability.StartTime, availability.EndTime, tz) {
			outcome.Passed = true
			return outcome
		}
	}

	outcome.Message = "班次时间超出员工声明的空闲时间窗口"
	return outcome
}

// windowContains 判断班次在时区 tz 下的本地时间段是否完整落在 [start, end] 钟点窗口内
func windowContains(shift *domain.Shift, start string, end string, tz *time.Location) bool {
	windowStart, err := timeutil.ParseClockMinutes(start)
	if err != nil {
		return false
	}
	windowEnd, err := timeutil.ParseClockMinutes(end)
	if err != nil {
		return false
	}

	shiftStart := timeutil.ClockMinutes(shift.StartTime, tz)
	shiftEnd := shiftStart + int(shift.EndTime.Sub(shift.StartTime).Minutes())

	return windowStart <= shiftStart && shiftEnd <= windowEnd
}

func checkNoOverlap(snap *snapshot) Outcome {
	outcome := Outcome{
		RuleID:   RuleNoOverlap,
		Severity: SeverityBlocking,
		Passed:   true,
		Message:  "与已确认班次无时间重叠",
	}

	for _, assignment := range snap.assignments {
		if assignment.Overlaps(snap.shift.StartTime, snap.shift.EndTime) {
			outcome.Passed = false
			outcome.Message = fmt.Sprintf("与班次 %d 的已确认分配时间重叠", assignment.ShiftID)
			return outcome
		}
	}

	return outcome
}

func checkRestGap(snap *snapshot) Outcome {
	outcome := Outcome{
		RuleID:   RuleRestGap,
		Severity: SeverityBlocking,
		Passed:   true,
		Message:  "与前后班次的休息间隔充足",
	}

	for _, assignment := range snap.assignments {
		// 重叠的情况由 NO_OVERLAP 负责
		if assignment.Overlaps(snap.shift.StartTime, snap.shift.EndTime) {
			continue
		}

		var gap float64
		if !assignment.EndTime.After(snap.shift.StartTime) {
			gap = timeutil.Hours(assignment.EndTime, snap.shift.StartTime)
		} else {
			gap = timeutil.Hours(snap.shift.EndTime, assignment.StartTime)
		}

		if gap < minRestGapHours {
			outcome.Passed = false
			outcome.Message = fmt.Sprintf("与班次 %d 的休息间隔仅 %.1f 小时，少于 %.0f 小时", assignment.ShiftID, gap, minRestGapHours)
			return outcome
		}
	}

	return outcome
}

// dailyHours 员工在班次所在本地日历日（地点时区）已确认的工时，按分配的本地开始日归属
func dailyHours(snap *snapshot) float64 {
	dayKey := timeutil.DayKey(snap.shift.StartTime, snap.locationTZ)

	total := 0.0
	for _, assignment := range snap.assignments {
		if timeutil.DayKey(assignment.StartTime, snap.locationTZ) == dayKey {
			total += timeutil.Hours(assignment.StartTime, assignment.EndTime)
		}
	}
	return total
}

func weeklyHours(snap *snapshot) float64 {
	weekKey := timeutil.WeekKey(snap.shift.StartTime, snap.locationTZ)

	total := 0.0
	for _, assignment := range snap.assignments {
		if timeutil.WeekKey(assignment.StartTime, snap.locationTZ) == weekKey {
			total += timeutil.Hours(assignment.StartTime, assignment.EndTime)
		}
	}
	return total
}

func shiftHours(snap *snapshot) float64 {
	return timeutil.Hours(snap.shift.StartTime, snap.shift.EndTime)
}

func checkDailyHardLimit(snap *snapshot) Outcome {
	projected := dailyHours(snap) + shiftHours(snap)

	outcome := Outcome{
		RuleID:   RuleDailyHardLimit,
		Severity: SeverityBlocking,
		Passed:   projected <= dailyHardLimit,
		Message:  fmt.Sprintf("当日预计工时 %.1f 小时", projected),
	}
	if !outcome.Passed {
		outcome.Message = fmt.Sprintf("当日预计工时 %.1f 小时，超过 %.0f 小时上限", projected, dailyHardLimit)
	}
	return outcome
}

func checkWeeklyHardLimit(snap *snapshot) Outcome {
	projected := weeklyHours(snap) + shiftHours(snap)

	outcome := Outcome{
		RuleID:   RuleWeeklyHardLimit,
		Severity: SeverityBlocking,
		Passed:   projected <= weeklyHardLimit,
		Message:  fmt.Sprintf("当周预计工时 %.1f 小时", projected),
	}
	if !outcome.Passed {
		outcome.Message = fmt.Sprintf("当周预计工时 %.1f 小时，超过 %.0f 小时上限", projected, weeklyHardLimit)
	}
	return outcome
}

func checkWeeklyWarning(snap *snapshot) Outcome {
	projected := weeklyHours(snap) + shiftHours(snap)
	flagged := projected >= weeklyWarnFloor && projected < weeklyHardLimit

	outcome := Outcome{
		RuleID:   RuleWeeklyWarning,
		Severity: SeverityWarning,
		Passed:   !flagged,
		Message:  fmt.Sprintf("当周预计工时 %.1f 小时", projected),
	}
	if flagged {
		outcome.Message = fmt.Sprintf("当周预计工时 %.1f 小时，已接近 %.0f 小时上限", projected, weeklyHardLimit)
	}
	return outcome
}

func checkDailyWarning(snap *snapshot) Outcome {
	projected := dailyHours(snap) + shiftHours(snap)
	flagged := projected > dailyWarnFloor && projected <= dailyHardLimit

	outcome := Outcome{
		RuleID:   RuleDailyWarning,
		Severity: SeverityWarning,
		Passed:   !flagged,
		Message:  fmt.Sprintf("当日预计工时 %.1f 小时", projected),
	}
	if flagged {
		outcome.Message = fmt.Sprintf("当日预计工时 %.1f 小时，超过 %.0f 小时", projected, dailyWarnFloor)
	}
	return outcome
}

// consecutiveDays 以候选日为第 1 天，向前逐个本地日回溯，
// 只要某天存在本地开始时间落在当天的已确认分配就算工作日
func consecutiveDays(snap *snapshot) int {
	workedDays := make(map[string]bool)
	for _, assignment := range snap.assignments {
		workedDays[timeutil.DayKey(assignment.StartTime, snap.locationTZ)] = true
	}

	count := 1
	cursor := timeutil.AddDays(snap.shift.StartTime, snap.locationTZ, -1)
	for workedDays[timeutil.DayKey(cursor, snap.locationTZ)] {
		count++
		cursor = timeutil.AddDays(cursor, snap.locationTZ, -1)
	}

	return count
}

func checkConsecutiveDays(snap *snapshot) []Outcome {
	count := consecutiveDays(snap)

	warning := Outcome{
		RuleID:   RuleConsecutiveSixthDay,
		Severity: SeverityWarning,
		Passed:   count != warnConsecutive,
		Message:  fmt.Sprintf("连续工作天数为 %d 天", count),
	}
	if !warning.Passed {
		warning.Message = fmt.Sprintf("这将是连续工作的第 %d 天", count)
	}

	blocking := Outcome{
		RuleID:   RuleConsecutiveLimit,
		Severity: SeverityBlocking,
		Passed:   count < limitConsecutive,
		Message:  fmt.Sprintf("连续工作天数为 %d 天", count),
	}
	if !blocking.Passed {
		blocking.Message = fmt.Sprintf("这将是连续工作的第 %d 天，达到连续工作天数上限", count)
	}

	return []Outcome{warning, blocking}
}
