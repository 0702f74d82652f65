// Package timeparse приводит даты из CRM к time.Time.
// Вся хрупкость форматов CRM собрана здесь.
package timeparse

import (
	"fmt"
	"strings"
	"time"
)

// Форматы "как в интерфейсе портала", без смещения: применяется переданная зона
var localLayouts = []string{
	"02.01.2006 15:04:05",
	"02.01.2006 15:04",
}

const localDateLayout = "02.01.2006"

// Форматы со смещением: зона берётся из самой строки
var offsetLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05-0700",
	"2006-01-02 15:04:05-07:00",
	"2006-01-02 15:04:05Z07:00",
}

// ParseError строка даты не подошла ни под один известный формат
type ParseError struct {
	Raw string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("unrecognized timestamp %q", e.Raw)
}

// Parse разбирает дату из CRM.
// Зона loc применяется только к локальному формату дд.мм.гггг.
func Parse(raw string, loc *time.Location) (time.Time, error) {
	t, _, err := parse(raw, loc)
	return t, err
}

// ParseInterval разбирает начало и конец события.
// Для событий "на весь день" (только дата в конце) конец сдвигается на следующую полночь.
func ParseInterval(rawFrom, rawTo string, loc *time.Location) (time.Time, time.Time, error) {
	start, _, err := parse(rawFrom, loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}

	end, dateOnly, err := parse(rawTo, loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if dateOnly {
		end = end.AddDate(0, 0, 1)
	}

	if !start.Before(end) {
		return time.Time{}, time.Time{}, fmt.Errorf("empty interval %q - %q", rawFrom, rawTo)
	}
	return start, end, nil
}

func parse(raw string, loc *time.Location) (time.Time, bool, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, false, &ParseError{Raw: raw}
	}
	if loc == nil {
		loc = time.UTC
	}

	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, false, nil
		}
	}
	if t, err := time.ParseInLocation(localDateLayout, s, loc); err == nil {
		return t, true, nil
	}

	for _, layout := range offsetLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, false, nil
		}
	}

	return time.Time{}, false, &ParseError{Raw: raw}
}
