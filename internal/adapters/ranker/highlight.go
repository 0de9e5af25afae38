package ranker

import "gm-dashboard/internal/domain"

type category struct {
	key   domain.SectionKey
	label domain.HighlightType
	emoji string
}

var categories = []category{
	{key: domain.SectionGood, label: domain.HighlightGood, emoji: "👍"},
	{key: domain.SectionMore, label: domain.HighlightMore, emoji: "🧠"},
	{key: domain.SectionNext, label: domain.HighlightNext, emoji: "📅"},
}

// HighlightRanker выбирает лучший пункт в каждой категории Good/More/Next.
type HighlightRanker struct{}

// NewHighlight создаёт ранжировщик.
func NewHighlight() *HighlightRanker {
	return &HighlightRanker{}
}

// Rank возвращает не более одного хайлайта на категорию. Побеждает отчёт
// со строго большим числом реакций; при равенстве остаётся более ранний
// в порядке reports. Категория без кандидатов пропускается.
func (r *HighlightRanker) Rank(reports []domain.DailyReport) []domain.GMHighlight {
	highlights := make([]domain.GMHighlight, 0, len(categories))
	for _, c := range categories {
		best := -1
		for i, report := range reports {
			if len(report.Sections[c.key]) == 0 {
				continue
			}
			if best < 0 || report.ReactionScore > reports[best].ReactionScore {
				best = i
			}
		}
		if best < 0 {
			continue
		}
		winner := reports[best]
		highlights = append(highlights, domain.GMHighlight{
			Type:      c.label,
			Emoji:     c.emoji,
			Member:    winner.UserName,
			Snippet:   winner.Sections[c.key][0],
			Reactions: winner.ReactionScore,
			Permalink: winner.Permalink,
		})
	}
	return highlights
}

// Find возвращает хайлайт указанной категории.
func Find(highlights []domain.GMHighlight, kind domain.HighlightType) (domain.GMHighlight, bool) {
	for _, h := range highlights {
		if h.Type == kind {
			return h, true
		}
	}
	return domain.GMHighlight{}, false
}
