package dashboard

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"gm-dashboard/internal/adapters/ranker"
	"gm-dashboard/internal/domain"
	"gm-dashboard/internal/infra/metrics"
	"gm-dashboard/internal/usecase/report"
	"gm-dashboard/internal/usecase/tasks"
)

const (
	sourceSlack  = "Slack"
	sourceSheets = "Google Sheets"

	defaultHistoryDays        = 14
	defaultProfileConcurrency = 4
)

// Options задаёт параметры построения снимка.
type Options struct {
	SlackCheck         domain.SourceCheck
	SheetCheck         domain.SourceCheck
	ChannelID          string
	ArchiveBase        string
	SheetID            string
	SheetRange         string
	Location           *time.Location
	HistoryDays        int
	ProfileConcurrency int

	// SlackInitErr и SheetInitErr хранят ошибки создания клиентов при полной конфигурации.
	SlackInitErr error
	SheetInitErr error
}

// Service собирает снимок дашборда из канала отчётов и таблицы задач.
type Service struct {
	messaging domain.MessagingSource
	sheets    domain.SpreadsheetSource
	ranker    domain.HighlightRanker
	opts      Options
	now       func() time.Time
	logger    zerolog.Logger
}

// NewService создаёт сервис. messaging и sheets могут быть nil, если источник не настроен.
func NewService(messaging domain.MessagingSource, sheets domain.SpreadsheetSource, highlightRanker domain.HighlightRanker, opts Options, logger zerolog.Logger) *Service {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.HistoryDays <= 0 {
		opts.HistoryDays = defaultHistoryDays
	}
	if opts.ProfileConcurrency <= 0 {
		opts.ProfileConcurrency = defaultProfileConcurrency
	}
	if opts.ArchiveBase == "" {
		opts.ArchiveBase = report.DefaultArchiveBase
	}
	if highlightRanker == nil {
		highlightRanker = ranker.NewHighlight()
	}
	return &Service{
		messaging: messaging,
		sheets:    sheets,
		ranker:    highlightRanker,
		opts:      opts,
		now:       time.Now,
		logger:    logger.With().Str("component", "dashboard").Logger(),
	}
}

// WithClock подменяет источник текущего времени.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

type faults struct {
	errors   []string
	warnings []string
	notices  []string
}

func (f *faults) merge(other faults) {
	f.errors = append(f.errors, other.errors...)
	f.warnings = append(f.warnings, other.warnings...)
	f.notices = append(f.notices, other.notices...)
}

type slackResult struct {
	reports  []domain.DailyReport
	statuses []domain.PersonStatus
	faults   faults
}

type sheetResult struct {
	tasks  []domain.SheetTask
	faults faults
}

// Build строит один снимок. Ошибки источников попадают в списки снимка;
// ошибка возвращается только если контекст отменён.
func (s *Service) Build(ctx context.Context) (domain.Snapshot, error) {
	started := time.Now()
	runID := uuid.NewString()
	logger := s.logger.With().Str("run_id", runID).Logger()
	now := s.now().In(s.opts.Location)

	var configFaults faults
	useSlack := s.checkSource(s.opts.SlackCheck, sourceSlack, "ежедневные отчёты", s.messaging != nil, s.opts.SlackInitErr, &configFaults)
	useSheets := s.checkSource(s.opts.SheetCheck, sourceSheets, "задачи", s.sheets != nil, s.opts.SheetInitErr, &configFaults)

	var (
		slackRes slackResult
		sheetRes sheetResult
		g        errgroup.Group
	)
	if useSlack {
		g.Go(func() error {
			slackRes = s.fetchSlack(ctx, now)
			return nil
		})
	}
	if useSheets {
		g.Go(func() error {
			sheetRes = s.fetchSheet(ctx, now)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return domain.Snapshot{}, fmt.Errorf("построение снимка: %w", err)
	}

	all := faults{errors: []string{}, warnings: []string{}, notices: []string{}}
	all.merge(configFaults)
	all.merge(slackRes.faults)
	all.merge(sheetRes.faults)

	window := tasks.TrailingWindow(now)
	completed := tasks.CompletedInWindow(sheetRes.tasks, window)
	gmHighlights := s.ranker.Rank(slackRes.reports)
	if gmHighlights == nil {
		gmHighlights = []domain.GMHighlight{}
	}
	statuses := slackRes.statuses
	if statuses == nil {
		statuses = []domain.PersonStatus{}
	}

	snapshot := domain.Snapshot{
		RunID:       runID,
		GeneratedAt: now,
		Timezone:    s.opts.Location.String(),
		WeeklyMetrics: domain.WeeklyMetrics{
			Start:            window.Start,
			End:              window.End,
			TasksCompleted:   len(completed),
			ReportsSubmitted: countSubmitted(statuses),
			MembersTotal:     len(statuses),
			TopProject:       tasks.TopProject(completed),
			NextFocus:        NextFocus(gmHighlights, slackRes.reports),
		},
		TaskHighlights:    tasks.BuildHighlights(completed),
		GMHighlights:      gmHighlights,
		DailyReportStatus: statuses,
		Errors:            all.errors,
		Warnings:          all.warnings,
		Notices:           all.notices,
	}

	metrics.ObserveBuild(started, len(all.errors), len(all.warnings), len(all.notices))
	logger.Info().
		Int("reports", len(slackRes.reports)).
		Int("tasks", len(sheetRes.tasks)).
		Int("errors", len(all.errors)).
		Int("warnings", len(all.warnings)).
		Int("notices", len(all.notices)).
		Dur("took", time.Since(started)).
		Msg("снимок построен")
	return snapshot, nil
}

func (s *Service) checkSource(check domain.SourceCheck, name, capability string, hasClient bool, initErr error, f *faults) bool {
	switch {
	case check.Absent():
		f.warnings = append(f.warnings, fmt.Sprintf("%s: переменные окружения не заданы, %s пропущены", name, capability))
		s.logger.Warn().Str("source", name).Msg("источник не настроен")
		return false
	case !check.Usable():
		f.errors = append(f.errors, fmt.Sprintf("%s: не заданы обязательные переменные окружения: %s", name, strings.Join(check.Missing, ", ")))
		s.logger.Error().Str("source", name).Strs("missing", check.Missing).Msg("конфигурация источника неполная")
		return false
	case initErr != nil || !hasClient:
		reason := "клиент не создан"
		if initErr != nil {
			reason = fmt.Sprintf("клиент не создан: %v", initErr)
		}
		f.errors = append(f.errors, fmt.Sprintf("%s: %s, %s пропущены", name, reason, capability))
		s.logger.Error().Err(initErr).Str("source", name).Msg("клиент источника не создан")
		return false
	}
	return true
}

func (s *Service) fetchSlack(ctx context.Context, now time.Time) slackResult {
	var res slackResult
	logger := s.logger.With().Str("source", sourceSlack).Logger()

	members, err := s.messaging.Members(ctx, s.opts.ChannelID)
	if err != nil {
		members = nil
		if capErr, ok := domain.IsMissingCapability(err); ok {
			res.faults.notices = append(res.faults.notices, "Slack: список участников канала недоступен, "+scopeHint(capErr, "conversations.members"))
		} else {
			res.faults.warnings = append(res.faults.warnings, fmt.Sprintf("Slack: не удалось получить участников канала: %v", err))
			logger.Warn().Err(err).Msg("участники канала")
		}
	}

	oldest := report.StartOfDay(now).AddDate(0, 0, -s.opts.HistoryDays)
	messages, err := s.messaging.History(ctx, s.opts.ChannelID, oldest)
	if err != nil {
		logger.Error().Err(err).Msg("история канала")
		return slackResult{faults: faults{errors: []string{fmt.Sprintf("Slack: ошибка получения истории канала: %v", err)}}}
	}

	candidates := report.FilterReports(messages)
	authors := distinctAuthors(candidates)
	profiles, profileFaults := s.lookupProfiles(ctx, union(members, authors))
	res.faults.merge(profileFaults)

	normalizer := report.Normalizer{
		ChannelID:   s.opts.ChannelID,
		ArchiveBase: s.opts.ArchiveBase,
		Location:    s.opts.Location,
		Profiles:    profiles,
	}
	res.reports = normalizer.Normalize(candidates)

	targets := members
	if len(targets) == 0 {
		targets = authors
		res.faults.notices = append(res.faults.notices, "Slack: список участников не получен, учитываются только авторы последних сообщений")
	}
	res.statuses = Statuses(union(targets, nil), res.reports, normalizer, now)
	return res
}

type profileLookup struct {
	profile domain.MemberProfile
	err     error
	done    bool
}

// lookupProfiles запрашивает профили параллельно, но результат совпадает
// с последовательным обходом: после первого отказа по правам остальные
// идентификаторы остаются без имени.
func (s *Service) lookupProfiles(ctx context.Context, ids []string) (map[string]domain.MemberProfile, faults) {
	results := make([]profileLookup, len(ids))
	var firstMissing atomic.Int64
	firstMissing.Store(int64(len(ids)))

	var g errgroup.Group
	g.SetLimit(s.opts.ProfileConcurrency)
	for i, id := range ids {
		g.Go(func() error {
			if int64(i) > firstMissing.Load() || ctx.Err() != nil {
				return nil
			}
			profile, err := s.messaging.Profile(ctx, id)
			results[i] = profileLookup{profile: profile, err: err, done: true}
			if _, ok := domain.IsMissingCapability(err); ok {
				for {
					current := firstMissing.Load()
					if int64(i) >= current || firstMissing.CompareAndSwap(current, int64(i)) {
						break
					}
				}
			}
			return nil
		})
	}
	_ = g.Wait()

	profiles := make(map[string]domain.MemberProfile, len(ids))
	var f faults
	notFound := make(map[string]struct{})
	for i, id := range ids {
		r := results[i]
		if !r.done {
			continue
		}
		if r.err == nil {
			profiles[id] = r.profile
			continue
		}
		if capErr, ok := domain.IsMissingCapability(r.err); ok {
			f.notices = append(f.notices, "Slack: имена участников не получены, "+scopeHint(capErr, "users.info"))
			break
		}
		if errors.Is(r.err, domain.ErrProfileNotFound) {
			if _, seen := notFound[id]; !seen {
				notFound[id] = struct{}{}
				f.notices = append(f.notices, fmt.Sprintf("Slack: участник %s не найден (user_not_found), проверьте установку бота в рабочем пространстве", id))
			}
			continue
		}
		f.warnings = append(f.warnings, fmt.Sprintf("Slack: не удалось получить профиль %s: %v", id, r.err))
	}
	return profiles, f
}

func (s *Service) fetchSheet(ctx context.Context, now time.Time) sheetResult {
	values, err := s.sheets.Values(ctx, s.opts.SheetID, s.opts.SheetRange)
	if err != nil {
		s.logger.Error().Err(err).Str("source", sourceSheets).Msg("чтение таблицы")
		return sheetResult{faults: faults{errors: []string{fmt.Sprintf("Google Sheets: ошибка чтения таблицы: %v", err)}}}
	}
	res := sheetResult{tasks: tasks.Ingest(values, now)}
	if len(res.tasks) == 0 {
		res.faults.notices = append(res.faults.notices, "Google Sheets: таблица не вернула задач, проверьте SHEET_ID и SHEET_RANGE")
	}
	return res
}

// Statuses строит статусы отчётов за день now для перечисленных участников.
// Дата и ссылка берутся из последнего отчёта за этот день.
func Statuses(targets []string, reports []domain.DailyReport, names report.Normalizer, now time.Time) []domain.PersonStatus {
	grouped := report.GroupByUser(reports)
	statuses := make([]domain.PersonStatus, 0, len(targets))
	for _, userID := range targets {
		userReports := grouped[userID]
		status := domain.PersonStatus{
			UserID: userID,
			Member: names.DisplayName(userID),
			Status: domain.ReportMissing,
			Streak: report.Streak(userReports, now),
		}
		for _, r := range userReports {
			if report.WithinDay(r.SubmittedAt, now) {
				submitted := r.SubmittedAt
				status.Status = domain.ReportSubmitted
				status.SubmittedAt = &submitted
				status.Permalink = r.Permalink
				break
			}
		}
		statuses = append(statuses, status)
	}
	return statuses
}

// NextFocus предпочитает хайлайт Next, затем первый пункт Next среди отчётов.
func NextFocus(highlights []domain.GMHighlight, reports []domain.DailyReport) string {
	if h, ok := ranker.Find(highlights, domain.HighlightNext); ok {
		return h.Member + ": " + h.Snippet
	}
	for _, r := range reports {
		if entries := r.Sections[domain.SectionNext]; len(entries) > 0 {
			return r.UserName + ": " + entries[0]
		}
	}
	return ""
}

func countSubmitted(statuses []domain.PersonStatus) int {
	count := 0
	for _, st := range statuses {
		if st.Status == domain.ReportSubmitted {
			count++
		}
	}
	return count
}

func distinctAuthors(messages []domain.RawMessage) []string {
	ids := make([]string, 0, len(messages))
	for _, msg := range messages {
		ids = append(ids, msg.UserID)
	}
	return union(ids, nil)
}

func union(first, second []string) []string {
	seen := make(map[string]struct{}, len(first)+len(second))
	out := make([]string, 0, len(first)+len(second))
	for _, list := range [][]string{first, second} {
		for _, id := range list {
			if id == "" {
				continue
			}
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}

func scopeHint(err *domain.MissingCapabilityError, method string) string {
	if len(err.Scopes) == 0 {
		return "разрешите " + method + " в настройках приложения"
	}
	scopes := append([]string(nil), err.Scopes...)
	sort.Strings(scopes)
	return "нужны права: " + strings.Join(scopes, ", ")
}
