// Пакет recurrence: вычисление дат повторяющихся сроков сдачи.
// Чистые функции без I/O: (якорная дата, правило, количество) → даты.
// Каждая вычисленная дата становится якорем для следующего шага.
package recurrence

import (
	"strings"
	"time"
)

// Unit: единица повторения.
type Unit string

// Поддерживаемые единицы повторения.
const (
	UnitDay   Unit = "day"
	UnitMonth Unit = "month"
	UnitYear  Unit = "year"
)

// unitAliases: значения, встречающиеся в исторических данных (dia, mês, ano).
var unitAliases = map[string]Unit{
	"day":   UnitDay,
	"dia":   UnitDay,
	"month": UnitMonth,
	"mês":   UnitMonth,
	"mes":   UnitMonth,
	"year":  UnitYear,
	"ano":   UnitYear,
}

// ParseUnit приводит строковое значение к Unit.
// Нераспознанное значение возвращается как есть: Generate трактует его как no-op.
func ParseUnit(s string) Unit {
	if u, ok := unitAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return u
	}
	return Unit(s)
}

// Known сообщает, является ли единица распознанной.
func (u Unit) Known() bool {
	return u == UnitDay || u == UnitMonth || u == UnitYear
}

// Rule: правило повторения: единица и множитель.
type Rule struct {
	Unit     Unit
	Interval int
}

// NewRule создаёт правило из сырых значений записи.
// interval == nil или <= 0 трактуется как 1.
func NewRule(unit string, interval *int) Rule {
	r := Rule{Unit: ParseUnit(unit), Interval: 1}
	if interval != nil {
		r.Interval = *interval
	}
	return r.normalized()
}

func (r Rule) normalized() Rule {
	if r.Interval <= 0 {
		r.Interval = 1
	}
	return r
}

// Generate возвращает ровно count дат, начиная от anchor (сам anchor не входит).
// Время суток и часовой пояс якоря сохраняются.
// Для нераспознанной единицы якорь повторяется count раз.
func Generate(anchor time.Time, rule Rule, count int) []time.Time {
	if count <= 0 {
		return []time.Time{}
	}
	rule = rule.normalized()

	dates := make([]time.Time, 0, count)
	current := anchor
	for range count {
		current = Next(current, rule)
		dates = append(dates, current)
	}
	return dates
}

// Next вычисляет одну следующую дату по правилу.
func Next(t time.Time, rule Rule) time.Time {
	rule = rule.normalized()

	switch rule.Unit {
	case UnitDay:
		return t.AddDate(0, 0, rule.Interval)
	case UnitMonth:
		return addMonths(t, rule.Interval)
	case UnitYear:
		return addYears(t, rule.Interval)
	default:
		return t
	}
}

// addMonths прибавляет n месяцев с переносом в год и
// ограничением дня последним днём результирующего месяца.
func addMonths(t time.Time, n int) time.Time {
	year := t.Year()
	month := int(t.Month()) + n
	for month > 12 {
		month -= 12
		year++
	}

	day := min(t.Day(), DaysIn(time.Month(month), year))
	return withDate(t, year, time.Month(month), day)
}

// addYears прибавляет n лет; 29 февраля в невисокосном году становится 28-м.
func addYears(t time.Time, n int) time.Time {
	year := t.Year() + n
	day := t.Day()
	if t.Month() == time.February && day == 29 && !IsLeapYear(year) {
		day = 28
	}
	return withDate(t, year, t.Month(), day)
}

func withDate(t time.Time, year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

// IsLeapYear: пролептический григорианский календарь.
func IsLeapYear(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

// DaysIn возвращает количество дней в месяце.
func DaysIn(month time.Month, year int) int {
	switch month {
	case time.February:
		if IsLeapYear(year) {
			return 29
		}
		return 28
	case time.April, time.June, time.September, time.November:
		return 30
	default:
		return 31
	}
}
