package timeutil

import (
	"fmt"
	"time"
)

const (
	DayKeyLayout = "2006-01-02"
	ClockLayout  = "15:04:05"
)

// DayKey 返回时刻 t 在时区 loc 下的本地日历日
func DayKey(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(DayKeyLayout)
}

// WeekStart 返回时刻 t 所在 ISO 周的周一零点（时区 loc 下的本地时间）
func WeekStart(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	// Go 中周日的 Weekday 为 0，转换成 ISO 的 1-7
	weekday := int(local.Weekday())
	if weekday == 0 {
		weekday = 7
	}
	return time.Date(local.Year(), local.Month(), local.Day()-(weekday-1), 0, 0, 0, 0, loc)
}

// WeekKey 返回时刻 t 所在 ISO 周的周一的本地日历日
func WeekKey(t time.Time, loc *time.Location) string {
	return WeekStart(t, loc).Format(DayKeyLayout)
}

// AddDays 在时区 loc 下对本地日历日做加减，返回目标日的本地零点。
// 必须通过 time.Date 重新构造而不是加 24 小时，否则夏令时切换日会出错
func AddDays(t time.Time, loc *time.Location, days int) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day()+days, 0, 0, 0, 0, loc)
}

// ISOWeekday 返回时刻 t 在时区 loc 下的 ISO 星期（1 = 周一，7 = 周日）
func ISOWeekday(t time.Time, loc *time.Location) int32 {
	weekday := int32(t.In(loc).Weekday())
	if weekday == 0 {
		weekday = 7
	}
	return weekday
}

// ClockMinutes 返回时刻 t 在时区 loc 下距本地零点的分钟数
func ClockMinutes(t time.Time, loc *time.Location) int {
	local := t.In(loc)
	return local.Hour()*60 + local.Minute()
}

// ParseClockMinutes 将 15:04:05 格式的本地钟点解析为距零点的分钟数
func ParseClockMinutes(clock string) (int, error) {
	t, err := time.Parse(ClockLayout, clock)
	if err != nil {
		return 0, fmt.Errorf("钟点 %q 格式错误: %w", clock, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// Hours 返回 [start, end) 区间的时长（小时）
func Hours(start, end time.Time) float64 {
	return end.Sub(start).Hours()
}
