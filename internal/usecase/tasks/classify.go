package tasks

import (
	"sort"
	"strings"
	"time"
	"unicode"

	"gm-dashboard/internal/domain"
)

const (
	// WindowDays задаёт длину скользящего окна, включая сегодняшний день.
	WindowDays = 7
	// MaxHighlights ограничивает число хайлайтов по задачам.
	MaxHighlights = 6

	fallbackProject  = "不明プロジェクト"
	fallbackAssignee = "担当未設定"
)

var completionKeywords = []string{
	"完了", "done", "complete", "completed", "finished", "終了", "closed", "achieved", "済", "済み",
	"готово", "завершено", "закрыто",
}

// Window описывает включительный интервал дат.
type Window struct {
	Start time.Time
	End   time.Time
}

// TrailingWindow возвращает окно с начала дня (now − 6 дней) до конца дня now.
func TrailingWindow(now time.Time) Window {
	y, m, d := now.Date()
	start := time.Date(y, m, d-(WindowDays-1), 0, 0, 0, 0, now.Location())
	end := time.Date(y, m, d+1, 0, 0, 0, 0, now.Location()).Add(-time.Nanosecond)
	return Window{Start: start, End: end}
}

// Contains проверяет попадание t в окно включительно.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// IsCompleted определяет, закрыта ли задача. Статус сравнивается без пробелов
// и без учёта регистра; при пустом статусе решает дата окончания.
func IsCompleted(task domain.SheetTask) bool {
	status := strings.TrimSpace(task.Status)
	if status == "" {
		return task.EndDate != nil
	}
	normalized := strings.ToLower(strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, status))
	for _, keyword := range completionKeywords {
		if strings.Contains(normalized, keyword) {
			return true
		}
	}
	return task.EndDate != nil
}

// InWindow проверяет, что опорная дата задачи попадает в окно.
func (w Window) InWindow(task domain.SheetTask) bool {
	ref := task.ReferenceDate()
	if ref == nil {
		return false
	}
	return w.Contains(*ref)
}

// CompletedInWindow отбирает завершённые задачи с датой внутри окна, сохраняя порядок строк.
func CompletedInWindow(tasks []domain.SheetTask, w Window) []domain.SheetTask {
	out := make([]domain.SheetTask, 0, len(tasks))
	for _, task := range tasks {
		if IsCompleted(task) && w.InWindow(task) {
			out = append(out, task)
		}
	}
	return out
}

// TopProject возвращает самый частый непустой проект, при равенстве побеждает встреченный первым.
func TopProject(tasks []domain.SheetTask) string {
	counts := make(map[string]int)
	order := make([]string, 0)
	for _, task := range tasks {
		project := strings.TrimSpace(task.Project)
		if project == "" {
			continue
		}
		if _, ok := counts[project]; !ok {
			order = append(order, project)
		}
		counts[project]++
	}
	best := ""
	for _, project := range order {
		if best == "" || counts[project] > counts[best] {
			best = project
		}
	}
	return best
}

// BuildHighlights группирует задачи по паре (проект, исполнитель) и возвращает
// не более MaxHighlights групп по убыванию количества задач.
func BuildHighlights(completed []domain.SheetTask) []domain.TaskHighlight {
	type groupKey struct {
		project  string
		assignee string
	}

	order := make([]groupKey, 0)
	groups := make(map[groupKey][]domain.SheetTask)
	for _, task := range completed {
		key := groupKey{
			project:  orDefault(task.Project, fallbackProject),
			assignee: orDefault(task.Assignee, fallbackAssignee),
		}
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], task)
	}

	highlights := make([]domain.TaskHighlight, 0, len(order))
	for _, key := range order {
		group := groups[key]
		sort.SliceStable(group, func(i, j int) bool {
			return sortTime(group[i]).After(sortTime(group[j]))
		})
		head := group[0]
		urls := make([]string, 0, len(group))
		for _, task := range group {
			if url := strings.TrimSpace(task.URL); url != "" {
				urls = append(urls, url)
			}
		}
		highlights = append(highlights, domain.TaskHighlight{
			Project:           key.project,
			Member:            key.assignee,
			Count:             len(group),
			SampleTask:        head.Title,
			LatestCompletedAt: head.ReferenceDate(),
			RelatedURLs:       urls,
		})
	}

	sort.SliceStable(highlights, func(i, j int) bool { return highlights[i].Count > highlights[j].Count })
	if len(highlights) > MaxHighlights {
		highlights = highlights[:MaxHighlights]
	}
	return highlights
}

func sortTime(task domain.SheetTask) time.Time {
	if ref := task.ReferenceDate(); ref != nil {
		return *ref
	}
	return time.Time{}
}

func orDefault(value, fallback string) string {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		return trimmed
	}
	return fallback
}
