package domain

import "time"

// Reaction описывает реакцию на сообщение.
type Reaction struct {
	Name  string
	Count int
}

// RawMessage представляет сообщение канала в том виде, в каком его вернул источник.
type RawMessage struct {
	UserID    string
	TS        string
	Text      string
	SubType   string
	Reactions []Reaction
}

// MemberProfile содержит отображаемое имя участника.
type MemberProfile struct {
	ID          string
	Name        string
	RealName    string
	DisplayName string
}

// SectionKey обозначает один из четырёх разделов ежедневного отчёта.
type SectionKey string

const (
	SectionDone SectionKey = "done"
	SectionGood SectionKey = "good"
	SectionMore SectionKey = "more"
	SectionNext SectionKey = "next"
)

// SectionKeys перечисляет разделы в порядке отображения.
var SectionKeys = []SectionKey{SectionDone, SectionGood, SectionMore, SectionNext}

// SectionMap хранит пункты отчёта по разделам. Все четыре ключа присутствуют всегда.
type SectionMap map[SectionKey][]string

// NewSectionMap создаёт карту с пустыми списками для всех разделов.
func NewSectionMap() SectionMap {
	sections := make(SectionMap, len(SectionKeys))
	for _, key := range SectionKeys {
		sections[key] = []string{}
	}
	return sections
}

// DailyReport описывает ежедневный отчёт участника, построенный из одного сообщения.
type DailyReport struct {
	UserID        string     `json:"user_id"`
	UserName      string     `json:"user_name"`
	SubmittedAt   time.Time  `json:"submitted_at"`
	TS            string     `json:"ts"`
	Permalink     string     `json:"permalink"`
	Sections      SectionMap `json:"sections"`
	ReactionScore int        `json:"reaction_score"`
}

// ReportState задаёт статус отчёта за сегодня.
type ReportState string

const (
	ReportSubmitted ReportState = "submitted"
	ReportMissing   ReportState = "missing"
)

// PersonStatus описывает состояние отчёта участника за текущий день.
type PersonStatus struct {
	UserID      string      `json:"user_id" yaml:"user_id"`
	Member      string      `json:"member" yaml:"member"`
	Status      ReportState `json:"status" yaml:"status"`
	SubmittedAt *time.Time  `json:"submitted_at,omitempty" yaml:"submitted_at,omitempty"`
	Streak      int         `json:"streak" yaml:"streak"`
	Permalink   string      `json:"permalink,omitempty" yaml:"permalink,omitempty"`
}

// SheetTask представляет строку таблицы задач. RowIndex совпадает с номером строки в таблице.
type SheetTask struct {
	RowIndex  int
	Project   string
	Title     string
	Assignee  string
	Status    string
	DueDate   *time.Time
	StartDate *time.Time
	EndDate   *time.Time
	URL       string
	Notes     string
	Raw       map[string]string
}

// ReferenceDate возвращает дату окончания, иначе дедлайн, иначе дату начала.
func (t SheetTask) ReferenceDate() *time.Time {
	switch {
	case t.EndDate != nil:
		return t.EndDate
	case t.DueDate != nil:
		return t.DueDate
	default:
		return t.StartDate
	}
}

// TaskHighlight агрегирует завершённые задачи пары (проект, участник).
type TaskHighlight struct {
	Project           string     `json:"project" yaml:"project"`
	Member            string     `json:"member" yaml:"member"`
	Count             int        `json:"count" yaml:"count"`
	SampleTask        string     `json:"sample_task,omitempty" yaml:"sample_task,omitempty"`
	LatestCompletedAt *time.Time `json:"latest_completed_at,omitempty" yaml:"latest_completed_at,omitempty"`
	RelatedURLs       []string   `json:"related_urls" yaml:"related_urls"`
}

// HighlightType задаёт категорию GM-хайлайта.
type HighlightType string

const (
	HighlightGood HighlightType = "Good"
	HighlightMore HighlightType = "More"
	HighlightNext HighlightType = "Next"
)

// GMHighlight хранит лучший пункт отчётов в своей категории.
type GMHighlight struct {
	Type      HighlightType `json:"type" yaml:"type"`
	Emoji     string        `json:"emoji" yaml:"emoji"`
	Member    string        `json:"member" yaml:"member"`
	Snippet   string        `json:"snippet" yaml:"snippet"`
	Reactions int           `json:"reactions" yaml:"reactions"`
	Permalink string        `json:"permalink" yaml:"permalink"`
}

// WeeklyMetrics содержит метрики за скользящее окно в семь дней.
type WeeklyMetrics struct {
	Start            time.Time `json:"start" yaml:"start"`
	End              time.Time `json:"end" yaml:"end"`
	TasksCompleted   int       `json:"tasks_completed" yaml:"tasks_completed"`
	ReportsSubmitted int       `json:"reports_submitted" yaml:"reports_submitted"`
	MembersTotal     int       `json:"members_total" yaml:"members_total"`
	TopProject       string    `json:"top_project,omitempty" yaml:"top_project,omitempty"`
	NextFocus        string    `json:"next_focus,omitempty" yaml:"next_focus,omitempty"`
}

// Snapshot хранит результат одного запуска агрегации. После возврата не изменяется.
type Snapshot struct {
	RunID             string          `json:"run_id" yaml:"run_id"`
	GeneratedAt       time.Time       `json:"generated_at" yaml:"generated_at"`
	Timezone          string          `json:"timezone" yaml:"timezone"`
	WeeklyMetrics     WeeklyMetrics   `json:"weekly_metrics" yaml:"weekly_metrics"`
	TaskHighlights    []TaskHighlight `json:"task_highlights" yaml:"task_highlights"`
	GMHighlights      []GMHighlight   `json:"gm_highlights" yaml:"gm_highlights"`
	DailyReportStatus []PersonStatus  `json:"daily_report_status" yaml:"daily_report_status"`
	Errors            []string        `json:"errors" yaml:"errors"`
	Warnings          []string        `json:"warnings" yaml:"warnings"`
	Notices           []string        `json:"notices" yaml:"notices"`
}
