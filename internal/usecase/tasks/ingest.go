package tasks

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/width"

	"gm-dashboard/internal/domain"
)

// Field задаёт поле задачи, на которое отображается колонка таблицы.
type Field string

const (
	FieldProject   Field = "project"
	FieldTitle     Field = "title"
	FieldAssignee  Field = "assignee"
	FieldStatus    Field = "status"
	FieldDueDate   Field = "due_date"
	FieldStartDate Field = "start_date"
	FieldEndDate   Field = "end_date"
	FieldURL       Field = "url"
	FieldNotes     Field = "notes"
)

// fieldAliases перечисляет заголовки колонок для каждого поля задачи.
// Сравнение идёт после NormalizeHeader, поэтому "Due Date", "due_date" и "ＤＵＥ" равнозначны.
var fieldAliases = map[Field][]string{
	FieldProject:   {"project", "pj", "pj名", "プロジェクト", "プロジェクト名", "проект"},
	FieldTitle:     {"title", "task", "subject", "タスク", "タスク名", "задача"},
	FieldAssignee:  {"assignee", "owner", "担当", "担当者", "исполнитель"},
	FieldStatus:    {"status", "ステータス", "状態", "статус"},
	FieldDueDate:   {"due", "deadline", "due date", "期限", "締切", "締め切り", "due日", "срок"},
	FieldStartDate: {"start", "start date", "開始日"},
	FieldEndDate:   {"end", "end date", "finish", "完了日", "終了日", "終了"},
	FieldURL:       {"url", "link", "詳細url", "ссылка"},
	FieldNotes:     {"notes", "ノート", "備考", "メモ", "解説", "заметки"},
}

var headerAliases = buildHeaderAliases(fieldAliases)

func buildHeaderAliases(aliases map[Field][]string) map[string]Field {
	out := make(map[string]Field)
	for field, names := range aliases {
		for _, name := range names {
			out[NormalizeHeader(name)] = field
		}
	}
	return out
}

var headerNoise = strings.NewReplacer("_", "", "-", "", "ー", "")

// NormalizeHeader приводит заголовок к ключу таблицы алиасов:
// полноширинные символы сворачиваются в обычные (ｐｊ → pj, ＿ → _),
// затем нижний регистр, удаление пробелов и символов _ - ー.
func NormalizeHeader(header string) string {
	folded := strings.ToLower(width.Fold.String(strings.TrimSpace(header)))
	folded = strings.Join(strings.Fields(folded), "")
	return headerNoise.Replace(folded)
}

// LookupField возвращает поле для заголовка колонки.
func LookupField(header string) (Field, bool) {
	field, ok := headerAliases[NormalizeHeader(header)]
	return field, ok
}

// Ingest превращает сетку значений (первая строка содержит заголовки) в задачи.
// now задаёт зону и текущий год для дат без года.
func Ingest(values [][]string, now time.Time) []domain.SheetTask {
	if len(values) == 0 {
		return nil
	}
	headers := values[0]
	mapping := make([]Field, len(headers))
	for i, header := range headers {
		if field, ok := LookupField(header); ok {
			mapping[i] = field
		}
	}

	tasks := make([]domain.SheetTask, 0, len(values)-1)
	for rowIndex := 1; rowIndex < len(values); rowIndex++ {
		row := values[rowIndex]
		raw := make(map[string]string, len(row))
		fields := make(map[Field]string)
		for col, cell := range row {
			value := strings.TrimSpace(cell)
			rawHeader := fmt.Sprintf("Column%d", col)
			if col < len(headers) && headers[col] != "" {
				rawHeader = headers[col]
			}
			raw[rawHeader] = value
			if col < len(mapping) && mapping[col] != "" {
				fields[mapping[col]] = value
			}
		}
		tasks = append(tasks, domain.SheetTask{
			RowIndex:  rowIndex + 1,
			Project:   fields[FieldProject],
			Title:     fields[FieldTitle],
			Assignee:  fields[FieldAssignee],
			Status:    fields[FieldStatus],
			DueDate:   ParseDate(fields[FieldDueDate], now),
			StartDate: ParseDate(fields[FieldStartDate], now),
			EndDate:   ParseDate(fields[FieldEndDate], now),
			URL:       fields[FieldURL],
			Notes:     fields[FieldNotes],
			Raw:       raw,
		})
	}
	return tasks
}
