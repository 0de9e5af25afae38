package tasks

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// serialThreshold отсекает небольшие числа, которые не похожи на даты таблицы (~1968 год).
const serialThreshold = 25000

var isoLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

type textLayout struct {
	layout   string
	yearless bool
}

// textLayouts проверяются строго в этом порядке.
var textLayouts = []textLayout{
	{layout: "2006/01/02"},
	{layout: "2006-1-2"},
	{layout: "2006.1.2"},
	{layout: "1/2/2006"},
	{layout: "1/2/06"},
	{layout: "1/2", yearless: true},
	{layout: "01/02", yearless: true},
}

// ParseDate разбирает значение ячейки с датой. Порядок попыток:
//  1. серийный номер таблицы (> 25000 дней от 1899-12-30, дробная часть задаёт время суток);
//  2. ISO-8601;
//  3. текстовые форматы из textLayouts, для форматов без года берётся год now.
//
// Зона берётся из now. Нераспознанное значение даёт nil.
func ParseDate(value string, now time.Time) *time.Time {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	loc := now.Location()

	if serial, err := strconv.ParseFloat(trimmed, 64); err == nil && serial > serialThreshold && !math.IsInf(serial, 0) {
		days := math.Floor(serial)
		epoch := time.Date(1899, time.December, 30, 0, 0, 0, 0, loc)
		t := epoch.AddDate(0, 0, int(days)).Add(time.Duration((serial - days) * float64(24*time.Hour)))
		return &t
	}

	for _, layout := range isoLayouts {
		if t, err := time.ParseInLocation(layout, trimmed, loc); err == nil {
			return &t
		}
	}

	for _, candidate := range textLayouts {
		t, err := time.ParseInLocation(candidate.layout, trimmed, loc)
		if err != nil {
			continue
		}
		if candidate.yearless {
			dated := time.Date(now.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
			// 29 февраля в невисокосный год не переносится на 1 марта.
			if dated.Month() != t.Month() || dated.Day() != t.Day() {
				continue
			}
			t = dated
		}
		return &t
	}
	return nil
}
