package dashboard

import (
	"fmt"
	"html"
	"strings"

	"gm-dashboard/internal/domain"
)

const dateLayout = "2006-01-02"

// FormatDigest формирует HTML-сводку снимка для отправки в чат.
func FormatDigest(s domain.Snapshot) string {
	sections := []string{buildMetricsSection(s)}

	if tasks := buildTaskSection(s.TaskHighlights); tasks != "" {
		sections = append(sections, tasks)
	}
	if gm := buildGMSection(s.GMHighlights); gm != "" {
		sections = append(sections, gm)
	}
	if status := buildStatusSection(s.DailyReportStatus); status != "" {
		sections = append(sections, status)
	}
	if fault := buildFaultSection(s); fault != "" {
		sections = append(sections, fault)
	}

	return strings.TrimSpace(strings.Join(sections, "\n\n"))
}

func buildMetricsSection(s domain.Snapshot) string {
	m := s.WeeklyMetrics
	var b strings.Builder
	b.WriteString(fmt.Sprintf("📊 <b>Неделя %s — %s</b>", m.Start.Format(dateLayout), m.End.Format(dateLayout)))
	b.WriteString(fmt.Sprintf("\nЗавершено задач: %d", m.TasksCompleted))
	b.WriteString(fmt.Sprintf("\nОтчёты сегодня: %d/%d", m.ReportsSubmitted, m.MembersTotal))
	if m.TopProject != "" {
		b.WriteString("\nГлавный проект: " + escapeHTML(m.TopProject))
	}
	if m.NextFocus != "" {
		b.WriteString("\nФокус: " + escapeHTML(m.NextFocus))
	}
	return b.String()
}

func buildTaskSection(highlights []domain.TaskHighlight) string {
	if len(highlights) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("✅ <b>Завершённые задачи</b>")
	for _, h := range highlights {
		line := fmt.Sprintf("\n• <b>%s</b> / %s — %d", escapeHTML(h.Project), escapeHTML(h.Member), h.Count)
		if sample := strings.TrimSpace(h.SampleTask); sample != "" {
			title := escapeHTML(sample)
			if len(h.RelatedURLs) > 0 {
				title = link(h.RelatedURLs[0], title)
			}
			line += " (" + title + ")"
		}
		b.WriteString(line)
	}
	return b.String()
}

func buildGMSection(highlights []domain.GMHighlight) string {
	if len(highlights) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("🌅 <b>GM-хайлайты</b>")
	for _, h := range highlights {
		label := fmt.Sprintf("%s %s", h.Emoji, h.Type)
		if h.Permalink != "" {
			label = link(h.Permalink, label)
		}
		b.WriteString(fmt.Sprintf("\n%s — %s: %s (%d)", label, escapeHTML(h.Member), escapeHTML(h.Snippet), h.Reactions))
	}
	return b.String()
}

func buildStatusSection(statuses []domain.PersonStatus) string {
	if len(statuses) == 0 {
		return ""
	}
	var submitted, missing []string
	for _, st := range statuses {
		name := escapeHTML(st.Member)
		if st.Status == domain.ReportSubmitted {
			if st.Permalink != "" {
				name = link(st.Permalink, name)
			}
			submitted = append(submitted, fmt.Sprintf("%s 🔥%d", name, st.Streak))
			continue
		}
		missing = append(missing, name)
	}
	var b strings.Builder
	b.WriteString("📝 <b>Отчёты за день</b>")
	if len(submitted) > 0 {
		b.WriteString("\nСдали: " + strings.Join(submitted, ", "))
	}
	if len(missing) > 0 {
		b.WriteString("\nНе сдали: " + strings.Join(missing, ", "))
	}
	return b.String()
}

func buildFaultSection(s domain.Snapshot) string {
	var b strings.Builder
	groups := []struct {
		title string
		items []string
	}{
		{"⛔️ <b>Ошибки</b>", s.Errors},
		{"⚠️ <b>Предупреждения</b>", s.Warnings},
		{"ℹ️ <b>Уведомления</b>", s.Notices},
	}
	for _, g := range groups {
		if len(g.items) == 0 {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(g.title)
		for _, item := range g.items {
			b.WriteString("\n- " + escapeHTML(item))
		}
	}
	return b.String()
}

func link(url, label string) string {
	return fmt.Sprintf("<a href=\"%s\">%s</a>", html.EscapeString(strings.TrimSpace(url)), label)
}

func escapeHTML(s string) string {
	return html.EscapeString(s)
}
