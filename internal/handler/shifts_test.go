package handler

import (
	"testing"
	"time"

	"github.com/staffhub-dev/shift-roster/backend/internal/domain"
)

func strPtr(v string) *string {
	return &v
}

func int32Ptr(v int32) *int32 {
	return &v
}

func TestShiftUpdateBlocked(t *testing.T) {
	start := time.Now().Add(72 * time.Hour)
	openShift := func() *domain.Shift {
		return &domain.Shift{
			ID:         1,
			StartTime:  start,
			EndTime:    start.Add(8 * time.Hour),
			Status:     domain.ShiftStatusPublished,
			EditCutoff: start.Add(-domain.EditCutoffLeadTime),
		}
	}
	beforeCutoff := start.Add(-domain.EditCutoffLeadTime).Add(-time.Hour)
	afterCutoff := start.Add(-domain.EditCutoffLeadTime).Add(time.Hour)

	t.Run("窗口内允许编辑", func(t *testing.T) {
		patch := &shiftPatch{Headcount: int32Ptr(3)}
		if message := shiftUpdateBlocked(openShift(), patch, beforeCutoff); message != "" {
			t.Fatalf("窗口内的编辑不应被拒绝: %s", message)
		}
	})

	t.Run("窗口外拒绝编辑", func(t *testing.T) {
		patch := &shiftPatch{Headcount: int32Ptr(3)}
		if message := shiftUpdateBlocked(openShift(), patch, afterCutoff); message == "" {
			t.Fatal("锁定后的编辑必须被拒绝")
		}
	})

	t.Run("窗口外允许取消", func(t *testing.T) {
		patch := &shiftPatch{Status: strPtr(string(domain.ShiftStatusCancelled))}
		if message := shiftUpdateBlocked(openShift(), patch, afterCutoff); message != "" {
			t.Fatalf("取消不受锁定窗口限制: %s", message)
		}
	})

	t.Run("窗口外拒绝夹带编辑的取消", func(t *testing.T) {
		patch := &shiftPatch{
			Status:    strPtr(string(domain.ShiftStatusCancelled)),
			Headcount: int32Ptr(3),
		}
		if message := shiftUpdateBlocked(openShift(), patch, afterCutoff); message == "" {
			t.Fatal("锁定后取消不允许同时修改其它字段")
		}
	})

	t.Run("已取消的班次拒绝一切修改", func(t *testing.T) {
		shift := openShift()
		shift.Status = domain.ShiftStatusCancelled

		patches := []*shiftPatch{
			{Headcount: int32Ptr(3)},
			{RequiredSkill: strPtr("收银")},
			// 取消后也不允许改回 PUBLISHED
			{Status: strPtr(string(domain.ShiftStatusPublished))},
			{Status: strPtr(string(domain.ShiftStatusCancelled))},
		}
		for _, patch := range patches {
			if message := shiftUpdateBlocked(shift, patch, beforeCutoff); message == "" {
				t.Fatalf("已取消的班次不应接受修改: %+v", patch)
			}
		}
	})
}
