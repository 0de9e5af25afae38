package report

import (
	"sort"
	"time"

	"gm-dashboard/internal/domain"
)

const dateKeyLayout = "2006-01-02"

// Streak считает подряд идущие дни с отчётами, заканчивая днём now.
// Даты берутся в зоне now.
func Streak(reports []domain.DailyReport, now time.Time) int {
	if len(reports) == 0 {
		return 0
	}
	loc := now.Location()
	days := make(map[string]struct{}, len(reports))
	for _, r := range reports {
		days[r.SubmittedAt.In(loc).Format(dateKeyLayout)] = struct{}{}
	}

	streak := 0
	cursor := StartOfDay(now)
	for {
		if _, ok := days[cursor.Format(dateKeyLayout)]; !ok {
			return streak
		}
		streak++
		cursor = cursor.AddDate(0, 0, -1)
	}
}

// GroupByUser раскладывает отчёты по авторам, новые первыми.
func GroupByUser(reports []domain.DailyReport) map[string][]domain.DailyReport {
	grouped := make(map[string][]domain.DailyReport)
	for _, r := range reports {
		grouped[r.UserID] = append(grouped[r.UserID], r)
	}
	for _, userReports := range grouped {
		sort.SliceStable(userReports, func(i, j int) bool {
			return userReports[i].SubmittedAt.After(userReports[j].SubmittedAt)
		})
	}
	return grouped
}

// StartOfDay возвращает полночь дня t в его зоне.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// EndOfDay возвращает последнюю наносекунду дня t.
func EndOfDay(t time.Time) time.Time {
	return StartOfDay(t).AddDate(0, 0, 1).Add(-time.Nanosecond)
}

// WithinDay проверяет, что ts попадает в календарный день ref.
func WithinDay(ts, ref time.Time) bool {
	local := ts.In(ref.Location())
	return !local.Before(StartOfDay(ref)) && !local.After(EndOfDay(ref))
}
