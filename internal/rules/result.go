package rules

import "github.com/staffhub-dev/shift-roster/backend/internal/domain"

type Severity string

const (
	SeverityBlocking Severity = "BLOCKING"
	SeverityWarning  Severity = "WARNING"
)

type RuleID string

const (
	RuleShiftExists         RuleID = "SHIFT_EXISTS"
	RuleStaffValid          RuleID = "STAFF_VALID"
	RuleCertification       RuleID = "CERTIFICATION"
	RuleSkillMatch          RuleID = "SKILL_MATCH"
	RuleAvailability        RuleID = "AVAILABILITY"
	RuleNoOverlap           RuleID = "NO_OVERLAP"
	RuleRestGap             RuleID = "REST_GAP"
	RuleDailyHardLimit      RuleID = "DAILY_HARD_LIMIT"
	RuleWeeklyHardLimit     RuleID = "WEEKLY_HARD_LIMIT"
	RuleWeeklyWarning       RuleID = "WEEKLY_WARNING"
	RuleDailyWarning        RuleID = "DAILY_WARNING"
	RuleConsecutiveSixthDay RuleID = "CONSECUTIVE_6TH_DAY"
	RuleConsecutiveLimit    RuleID = "CONSECUTIVE_7TH_DAY"
)

// overridableRules 可被经理覆盖的规则与对应覆盖类型的对照表
var overridableRules = map[RuleID]domain.OverrideType{
	RuleDailyHardLimit:   domain.OverrideTypeDailyLimit,
	RuleConsecutiveLimit: domain.OverrideTypeSeventhConsecutive,
}

type Outcome struct {
	RuleID          RuleID   `json:"ruleID"`
	Severity        Severity `json:"severity"`
	Passed          bool     `json:"passed"`
	Message         string   `json:"message"`
	OverrideApplied bool     `json:"overrideApplied"`
}

type CheckResult struct {
	Outcomes         []Outcome             `json:"outcomes"`
	HasBlocking      bool                  `json:"hasBlocking"`
	Suggestions      []*domain.User        `json:"suggestions"`
	AppliedOverrides []domain.OverrideType `json:"appliedOverrides"`
}

// BlockingOutcomes 返回覆盖后仍然未通过的阻断性规则
func (r *CheckResult) BlockingOutcomes() []Outcome {
	blocking := make([]Outcome, 0)
	for _, outcome := range r.Outcomes {
		if outcome.Severity == SeverityBlocking && !outcome.Passed {
			blocking = append(blocking, outcome)
		}
	}
	return blocking
}
