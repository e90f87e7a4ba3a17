package domain

import "time"

type AssignmentStatus string

const (
	AssignmentStatusConfirmed AssignmentStatus = "CONFIRMED"
	AssignmentStatusDropped   AssignmentStatus = "DROPPED"
	AssignmentStatusSwapped   AssignmentStatus = "SWAPPED"
)

type ShiftAssignment struct {
	ID      int64 `json:"id"`
	ShiftID int64 `json:"shiftID"`
	StaffID int64 `json:"staffID"`
	// 开始和结束时间是班次时间的冗余副本，班次被编辑时同步更新
	StartTime time.Time        `json:"startTime"`
	EndTime   time.Time        `json:"endTime"`
	Status    AssignmentStatus `json:"status"`
	CreatedAt time.Time        `json:"createdAt"`
	Version   int32            `json:"-"`
}

// Overlaps 判断两个 [start, end) 区间是否相交
func (a *ShiftAssignment) Overlaps(start, end time.Time) bool {
	return a.StartTime.Before(end) && start.Before(a.EndTime)
}
