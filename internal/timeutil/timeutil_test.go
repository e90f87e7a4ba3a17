package timeutil

import (
	"testing"
	"time"
)

func TestDayKeyCrossesUTCBoundary(t *testing.T) {
	shanghai, err := time.LoadLocation("Asia/Shanghai")
	if err != nil {
		t.Fatal(err)
	}

	// UTC 的 23 日 18 点在上海已经是 24 日
	instant := time.Date(2025, 3, 23, 18, 0, 0, 0, time.UTC)

	if got := DayKey(instant, time.UTC); got != "2025-03-23" {
		t.Errorf("DayKey(UTC) = %s, want 2025-03-23", got)
	}
	if got := DayKey(instant, shanghai); got != "2025-03-24" {
		t.Errorf("DayKey(Asia/Shanghai) = %s, want 2025-03-24", got)
	}
}

func TestWeekKeyStartsOnMonday(t *testing.T) {
	shanghai, _ := time.LoadLocation("Asia/Shanghai")

	cases := []struct {
		name    string
		instant time.Time
		want    string
	}{
		{
			name:    "周日归属到上一个周一",
			instant: time.Date(2025, 3, 23, 10, 0, 0, 0, shanghai), // 周日
			want:    "2025-03-17",
		},
		{
			name:    "周一归属到自身",
			instant: time.Date(2025, 3, 17, 0, 0, 0, 0, shanghai),
			want:    "2025-03-17",
		},
		{
			name:    "UTC 周日晚在上海已是下周一",
			instant: time.Date(2025, 3, 23, 18, 0, 0, 0, time.UTC),
			want:    "2025-03-24",
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := WeekKey(c.instant, shanghai); got != c.want {
				t.Errorf("WeekKey = %s, want %s", got, c.want)
			}
		})
	}
}

func TestAddDaysAcrossDSTTransition(t *testing.T) {
	newYork, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatal(err)
	}

	// 2025-03-09 是美东夏令时切换日，这一天只有 23 小时
	before := time.Date(2025, 3, 8, 12, 0, 0, 0, newYork)
	next := AddDays(before, newYork, 1)

	if got := next.Format(DayKeyLayout); got != "2025-03-09" {
		t.Errorf("AddDays(+1) = %s, want 2025-03-09", got)
	}
	if next.Hour() != 0 {
		t.Errorf("AddDays 应该返回本地零点，got hour %d", next.Hour())
	}

	prev := AddDays(time.Date(2025, 3, 10, 12, 0, 0, 0, newYork), newYork, -1)
	if got := prev.Format(DayKeyLayout); got != "2025-03-09" {
		t.Errorf("AddDays(-1) = %s, want 2025-03-09", got)
	}
}

func TestISOWeekday(t *testing.T) {
	shanghai, _ := time.LoadLocation("Asia/Shanghai")

	sunday := time.Date(2025, 3, 23, 10, 0, 0, 0, shanghai)
	if got := ISOWeekday(sunday, shanghai); got != 7 {
		t.Errorf("周日的 ISOWeekday = %d, want 7", got)
	}

	monday := time.Date(2025, 3, 24, 10, 0, 0, 0, shanghai)
	if got := ISOWeekday(monday, shanghai); got != 1 {
		t.Errorf("周一的 ISOWeekday = %d, want 1", got)
	}
}

func TestParseClockMinutes(t *testing.T) {
	got, err := ParseClockMinutes("09:30:00")
	if err != nil {
		t.Fatal(err)
	}
	if got != 9*60+30 {
		t.Errorf("ParseClockMinutes = %d, want %d", got, 9*60+30)
	}

	if _, err := ParseClockMinutes("late"); err == nil {
		t.Error("非法钟点应该返回错误")
	}
}
