package dashboard

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"go.uber.org/goleak"

	"gm-dashboard/internal/domain"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var jst = time.FixedZone("JST", 9*3600)

var now = time.Date(2024, 3, 10, 15, 0, 0, 0, jst)

type stubSlack struct {
	mu          sync.Mutex
	members     []string
	membersErr  error
	history     []domain.RawMessage
	historyErr  error
	profiles    map[string]domain.MemberProfile
	profileErrs map[string]error
	calls       []string
	oldest      time.Time
}

func (s *stubSlack) History(_ context.Context, _ string, oldest time.Time) ([]domain.RawMessage, error) {
	s.oldest = oldest
	return s.history, s.historyErr
}

func (s *stubSlack) Members(context.Context, string) ([]string, error) {
	return s.members, s.membersErr
}

func (s *stubSlack) Profile(_ context.Context, userID string) (domain.MemberProfile, error) {
	s.mu.Lock()
	s.calls = append(s.calls, userID)
	s.mu.Unlock()
	if err, ok := s.profileErrs[userID]; ok {
		return domain.MemberProfile{}, err
	}
	if p, ok := s.profiles[userID]; ok {
		return p, nil
	}
	return domain.MemberProfile{ID: userID, Name: userID}, nil
}

type stubSheet struct {
	values [][]string
	err    error
}

func (s *stubSheet) Values(context.Context, string, string) ([][]string, error) {
	return s.values, s.err
}

func tsAt(t time.Time) string {
	return fmt.Sprintf("%d.000000", t.Unix())
}

func slackOK() domain.SourceCheck {
	return domain.SourceCheck{Source: "slack", Present: 2}
}

func sheetOK() domain.SourceCheck {
	return domain.SourceCheck{Source: "google", Present: 4}
}

func sheetValues() [][]string {
	return [][]string{
		{"プロジェクト", "タスク", "担当者", "ステータス", "完了日"},
		{"Palette", "Slack連携", "山田", "完了", "2024/03/08"},
		{"Palette", "レビュー", "山田", "done", "2024/03/09"},
		{"New", "調査", "佐藤", "進行中", ""},
	}
}

func newService(slack domain.MessagingSource, sheet domain.SpreadsheetSource, opts Options) *Service {
	opts.Location = jst
	if opts.ChannelID == "" {
		opts.ChannelID = "C1"
	}
	return NewService(slack, sheet, nil, opts, zerolog.Nop()).WithClock(func() time.Time { return now })
}

func TestBuildEndToEnd(t *testing.T) {
	slack := &stubSlack{
		members: []string{"U1", "U2", "U3"},
		history: []domain.RawMessage{
			{UserID: "U1", TS: tsAt(now.Add(-2 * time.Hour)), Text: "Good: shipped x\nNext: ship y", Reactions: []domain.Reaction{{Name: "tada", Count: 3}, {Name: "+1", Count: 2}}},
			{UserID: "U2", TS: tsAt(now.Add(-3 * time.Hour)), Text: "Good: shipped z", Reactions: []domain.Reaction{{Name: "+1", Count: 2}}},
			{UserID: "U2", TS: tsAt(now.AddDate(0, 0, -1)), Text: "Done: вчера"},
			{UserID: "U9", TS: tsAt(now), Text: "joined", SubType: "channel_join"},
		},
		profiles: map[string]domain.MemberProfile{
			"U1": {ID: "U1", Name: "Alice"},
			"U2": {ID: "U2", Name: "Bob"},
		},
	}
	svc := newService(slack, &stubSheet{values: sheetValues()}, Options{SlackCheck: slackOK(), SheetCheck: sheetOK()})

	snap, err := svc.Build(context.Background())
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(snap.Errors)+len(snap.Warnings)+len(snap.Notices) != 0 {
		t.Fatalf("не ожидали сообщений: %v %v %v", snap.Errors, snap.Warnings, snap.Notices)
	}
	if snap.RunID == "" || snap.Timezone != "JST" {
		t.Fatalf("ожидали идентификатор запуска и зону: %+v", snap)
	}

	if len(snap.GMHighlights) != 2 {
		t.Fatalf("ожидали 2 хайлайта, получили %+v", snap.GMHighlights)
	}
	good, next := snap.GMHighlights[0], snap.GMHighlights[1]
	if good.Type != domain.HighlightGood || good.Snippet != "shipped x" || good.Reactions != 5 || good.Member != "Alice" {
		t.Fatalf("неожиданный Good: %+v", good)
	}
	if next.Type != domain.HighlightNext || next.Snippet != "ship y" {
		t.Fatalf("неожиданный Next: %+v", next)
	}
	if snap.WeeklyMetrics.NextFocus != "Alice: ship y" {
		t.Fatalf("неожиданный фокус: %q", snap.WeeklyMetrics.NextFocus)
	}

	if len(snap.DailyReportStatus) != 3 {
		t.Fatalf("ожидали статусы всех участников: %+v", snap.DailyReportStatus)
	}
	bob := snap.DailyReportStatus[1]
	if bob.Member != "Bob" || bob.Status != domain.ReportSubmitted || bob.Streak != 2 || bob.SubmittedAt == nil {
		t.Fatalf("неожиданный статус Bob: %+v", bob)
	}
	if !strings.HasPrefix(bob.Permalink, "https://slack.com/archives/C1/p") {
		t.Fatalf("неожиданная ссылка: %q", bob.Permalink)
	}
	carol := snap.DailyReportStatus[2]
	if carol.Member != "U3" || carol.Status != domain.ReportMissing || carol.Streak != 0 || carol.SubmittedAt != nil {
		t.Fatalf("неожиданный статус U3: %+v", carol)
	}
	if snap.WeeklyMetrics.ReportsSubmitted != 2 || snap.WeeklyMetrics.MembersTotal != 3 {
		t.Fatalf("неожиданные метрики отчётов: %+v", snap.WeeklyMetrics)
	}

	if snap.WeeklyMetrics.TasksCompleted != 2 || snap.WeeklyMetrics.TopProject != "Palette" {
		t.Fatalf("неожиданные метрики задач: %+v", snap.WeeklyMetrics)
	}
	if len(snap.TaskHighlights) != 1 || snap.TaskHighlights[0].SampleTask != "レビュー" {
		t.Fatalf("неожиданные хайлайты задач: %+v", snap.TaskHighlights)
	}
	if want := time.Date(2024, 2, 25, 0, 0, 0, 0, jst); !slack.oldest.Equal(want) {
		t.Fatalf("ожидали историю с %v, получили %v", want, slack.oldest)
	}
}

func TestBuildSlackAbsent(t *testing.T) {
	absent := domain.SourceCheck{Source: "slack", Missing: []string{"SLACK_BOT_TOKEN", "SLACK_CHANNEL_ID"}}
	svc := newService(nil, &stubSheet{values: sheetValues()}, Options{SlackCheck: absent, SheetCheck: sheetOK()})

	snap, err := svc.Build(context.Background())
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(snap.Warnings) != 1 || !strings.Contains(snap.Warnings[0], "Slack") {
		t.Fatalf("ожидали ровно одно предупреждение про Slack: %v", snap.Warnings)
	}
	if len(snap.Errors) != 0 {
		t.Fatalf("отсутствующая конфигурация не является ошибкой: %v", snap.Errors)
	}
	if len(snap.DailyReportStatus) != 0 || len(snap.GMHighlights) != 0 {
		t.Fatalf("ожидали пустые данные Slack: %+v", snap)
	}
	if snap.DailyReportStatus == nil || snap.GMHighlights == nil {
		t.Fatalf("пустые списки не должны быть nil")
	}
	if snap.WeeklyMetrics.TasksCompleted != 2 || len(snap.TaskHighlights) != 1 {
		t.Fatalf("данные таблицы не должны пострадать: %+v", snap.WeeklyMetrics)
	}
}

func TestBuildPartialConfigIsError(t *testing.T) {
	partial := domain.SourceCheck{Source: "google", Missing: []string{"GOOGLE_PRIVATE_KEY"}, Present: 3}
	svc := newService(&stubSlack{members: []string{"U1"}}, nil, Options{SlackCheck: slackOK(), SheetCheck: partial})

	snap, err := svc.Build(context.Background())
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(snap.Errors) != 1 || !strings.Contains(snap.Errors[0], "GOOGLE_PRIVATE_KEY") {
		t.Fatalf("ожидали ошибку с перечнем переменных: %v", snap.Errors)
	}
	if len(snap.DailyReportStatus) != 1 {
		t.Fatalf("Slack должен отработать независимо: %+v", snap.DailyReportStatus)
	}
}

func TestBuildFetchFailuresAreIsolated(t *testing.T) {
	slack := &stubSlack{members: []string{"U1"}, membersErr: nil, historyErr: errors.New("rate limited")}
	sheet := &stubSheet{err: errors.New("403")}
	svc := newService(slack, sheet, Options{SlackCheck: slackOK(), SheetCheck: sheetOK()})

	snap, err := svc.Build(context.Background())
	if err != nil {
		t.Fatalf("сбой источника не должен быть фатальным: %v", err)
	}
	if len(snap.Errors) != 2 {
		t.Fatalf("ожидали две ошибки: %v", snap.Errors)
	}
	if !strings.HasPrefix(snap.Errors[0], "Slack") || !strings.HasPrefix(snap.Errors[1], "Google Sheets") {
		t.Fatalf("ожидали фиксированный порядок источников: %v", snap.Errors)
	}
	if len(snap.DailyReportStatus) != 0 || snap.WeeklyMetrics.TasksCompleted != 0 {
		t.Fatalf("упавшие источники ничего не дают: %+v", snap)
	}
}

func TestBuildMembersFallback(t *testing.T) {
	slack := &stubSlack{
		membersErr: &domain.MissingCapabilityError{Scopes: []string{"groups:read", "channels:read"}},
		history: []domain.RawMessage{
			{UserID: "U2", TS: tsAt(now), Text: "Next: план"},
			{UserID: "U1", TS: tsAt(now.Add(-time.Hour)), Text: "Done: x"},
			{UserID: "U2", TS: tsAt(now.Add(-2 * time.Hour)), Text: "More: y"},
		},
	}
	svc := newService(slack, nil, Options{SlackCheck: slackOK(), SheetCheck: domain.SourceCheck{Missing: []string{"SHEET_ID"}}})

	snap, err := svc.Build(context.Background())
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(snap.Notices) != 2 {
		t.Fatalf("ожидали уведомления о правах и о замене списка: %v", snap.Notices)
	}
	if !strings.Contains(snap.Notices[0], "channels:read, groups:read") {
		t.Fatalf("ожидали перечень прав: %q", snap.Notices[0])
	}
	if len(snap.DailyReportStatus) != 2 || snap.DailyReportStatus[0].UserID != "U2" || snap.DailyReportStatus[1].UserID != "U1" {
		t.Fatalf("ожидали авторов в порядке появления: %+v", snap.DailyReportStatus)
	}
	if !snap.DailyReportStatus[0].SubmittedAt.Equal(now) {
		t.Fatalf("ожидали время последнего отчёта за день: %v", snap.DailyReportStatus[0].SubmittedAt)
	}
}

func TestBuildMembersOtherErrorIsWarning(t *testing.T) {
	slack := &stubSlack{membersErr: errors.New("channel_not_found")}
	svc := newService(slack, nil, Options{SlackCheck: slackOK(), SheetCheck: domain.SourceCheck{Missing: []string{"SHEET_ID"}}})

	snap, err := svc.Build(context.Background())
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(snap.Warnings) != 2 || !strings.Contains(snap.Warnings[0], "channel_not_found") {
		t.Fatalf("ожидали предупреждение об участниках и о пропуске таблицы: %v", snap.Warnings)
	}
	if len(snap.Notices) != 1 {
		t.Fatalf("ожидали уведомление о замене списка: %v", snap.Notices)
	}
}

func TestLookupProfilesStopsAfterMissingCapability(t *testing.T) {
	for _, limit := range []int{1, 4} {
		slack := &stubSlack{profileErrs: map[string]error{
			"U3": &domain.MissingCapabilityError{Scopes: []string{"users:read"}},
			"U5": &domain.MissingCapabilityError{Scopes: []string{"users:read.email"}},
		}}
		svc := newService(slack, nil, Options{ProfileConcurrency: limit})
		profiles, f := svc.lookupProfiles(context.Background(), []string{"U1", "U2", "U3", "U4", "U5", "U6"})

		if len(profiles) != 2 {
			t.Fatalf("limit=%d: ожидали только профили до отказа, получили %v", limit, profiles)
		}
		if len(f.notices) != 1 || !strings.Contains(f.notices[0], "users:read") {
			t.Fatalf("limit=%d: ожидали одно уведомление о правах: %v", limit, f.notices)
		}
		if len(f.warnings) != 0 {
			t.Fatalf("limit=%d: не ожидали предупреждений: %v", limit, f.warnings)
		}
		if limit == 1 && len(slack.calls) != 3 {
			t.Fatalf("после отказа по правам запросы прекращаются: %v", slack.calls)
		}
	}
}

func TestLookupProfilesClassifiesFailures(t *testing.T) {
	slack := &stubSlack{profileErrs: map[string]error{
		"U1": fmt.Errorf("users.info: %w", domain.ErrProfileNotFound),
		"U2": errors.New("timeout"),
	}}
	svc := newService(slack, nil, Options{})
	profiles, f := svc.lookupProfiles(context.Background(), []string{"U1", "U2", "U3"})

	if _, ok := profiles["U3"]; !ok || len(profiles) != 1 {
		t.Fatalf("ожидали один профиль: %v", profiles)
	}
	if len(f.notices) != 1 || !strings.Contains(f.notices[0], "U1") {
		t.Fatalf("ожидали уведомление о ненайденном участнике: %v", f.notices)
	}
	if len(f.warnings) != 1 || !strings.Contains(f.warnings[0], "U2") {
		t.Fatalf("ожидали предупреждение о сбое: %v", f.warnings)
	}
}

func TestBuildEmptySheetIsNotice(t *testing.T) {
	svc := newService(nil, &stubSheet{values: [][]string{{"プロジェクト"}}}, Options{
		SlackCheck: domain.SourceCheck{Missing: []string{"SLACK_BOT_TOKEN"}},
		SheetCheck: sheetOK(),
	})
	snap, err := svc.Build(context.Background())
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(snap.Notices) != 1 || !strings.HasPrefix(snap.Notices[0], "Google Sheets") {
		t.Fatalf("ожидали уведомление о пустой таблице: %v", snap.Notices)
	}
}

func TestBuildCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	svc := newService(&stubSlack{}, &stubSheet{values: sheetValues()}, Options{SlackCheck: slackOK(), SheetCheck: sheetOK()})
	if _, err := svc.Build(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("ожидали context.Canceled, получили %v", err)
	}
}

func TestNextFocusFallback(t *testing.T) {
	sections := domain.NewSectionMap()
	sections[domain.SectionNext] = []string{"релиз"}
	reports := []domain.DailyReport{
		{UserName: "Alice", Sections: domain.NewSectionMap()},
		{UserName: "Bob", Sections: sections},
	}
	if got := NextFocus(nil, reports); got != "Bob: релиз" {
		t.Fatalf("ожидали первый пункт Next, получили %q", got)
	}
	if got := NextFocus(nil, nil); got != "" {
		t.Fatalf("ожидали пустой фокус, получили %q", got)
	}
}

func TestBuildClientInitFailureIsError(t *testing.T) {
	svc := newService(&stubSlack{members: []string{"U1"}}, nil, Options{
		SlackCheck:   slackOK(),
		SheetCheck:   sheetOK(),
		SheetInitErr: errors.New("некорректный ключ"),
	})

	snap, err := svc.Build(context.Background())
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(snap.Errors) != 1 || !strings.HasPrefix(snap.Errors[0], "Google Sheets: ") || !strings.Contains(snap.Errors[0], "некорректный ключ") {
		t.Fatalf("ожидали одну ошибку создания клиента таблицы: %v", snap.Errors)
	}
	for _, w := range snap.Warnings {
		if strings.Contains(w, "Google Sheets") {
			t.Fatalf("сбой создания клиента не должен быть предупреждением: %v", snap.Warnings)
		}
	}
	if len(snap.TaskHighlights) != 0 || snap.WeeklyMetrics.TasksCompleted != 0 {
		t.Fatalf("таблица не должна давать данных: %+v", snap.WeeklyMetrics)
	}
}
