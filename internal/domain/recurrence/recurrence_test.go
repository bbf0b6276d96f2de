package recurrence

import (
	"testing"
	"time"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func intPtr(v int) *int { return &v }

// assertDates сравнивает последовательности дат поэлементно.
func assertDates(t *testing.T, got, want []time.Time) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("len = %d, ожидается %d (got %v)", len(got), len(want), got)
	}
	for i := range want {
		if !got[i].Equal(want[i]) {
			t.Errorf("[%d] = %s, ожидается %s", i, got[i].Format(time.DateOnly), want[i].Format(time.DateOnly))
		}
	}
}

func TestGenerate_MonthOverflowLeapClamp(t *testing.T) {
	got := Generate(date(2024, time.January, 31), Rule{Unit: UnitMonth, Interval: 1}, 2)
	assertDates(t, got, []time.Time{
		date(2024, time.February, 29),
		date(2024, time.March, 29),
	})
}

func TestGenerate_MonthCarryIntoYear(t *testing.T) {
	tests := []struct {
		name     string
		anchor   time.Time
		interval int
		count    int
		want     []time.Time
	}{
		{
			name:     "декабрь → январь следующего года",
			anchor:   date(2023, time.December, 15),
			interval: 1,
			count:    2,
			want:     []time.Time{date(2024, time.January, 15), date(2024, time.February, 15)},
		},
		{
			name:     "квартальный шаг через границу года",
			anchor:   date(2023, time.November, 30),
			interval: 3,
			count:    2,
			want:     []time.Time{date(2024, time.February, 29), date(2024, time.May, 29)},
		},
		{
			name:     "интервал больше 12 месяцев",
			anchor:   date(2023, time.March, 31),
			interval: 25,
			count:    1,
			want:     []time.Time{date(2025, time.April, 30)},
		},
		{
			name:     "невисокосный февраль",
			anchor:   date(2023, time.January, 30),
			interval: 1,
			count:    1,
			want:     []time.Time{date(2023, time.February, 28)},
		},
		{
			name:     "1900 не високосный",
			anchor:   date(1900, time.January, 31),
			interval: 1,
			count:    1,
			want:     []time.Time{date(1900, time.February, 28)},
		},
		{
			name:     "2000 високосный",
			anchor:   date(2000, time.January, 31),
			interval: 1,
			count:    1,
			want:     []time.Time{date(2000, time.February, 29)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Generate(tt.anchor, Rule{Unit: UnitMonth, Interval: tt.interval}, tt.count)
			assertDates(t, got, tt.want)
		})
	}
}

func TestGenerate_YearLeapClamp(t *testing.T) {
	got := Generate(date(2024, time.February, 29), Rule{Unit: UnitYear, Interval: 1}, 1)
	assertDates(t, got, []time.Time{date(2025, time.February, 28)})
}

func TestGenerate_YearKeepsLeapDay(t *testing.T) {
	got := Generate(date(2024, time.February, 29), Rule{Unit: UnitYear, Interval: 4}, 1)
	assertDates(t, got, []time.Time{date(2028, time.February, 29)})
}

func TestGenerate_YearCumulative(t *testing.T) {
	// После клампа 28 февраля остаётся 28-м и в следующем високосном году.
	got := Generate(date(2024, time.February, 29), Rule{Unit: UnitYear, Interval: 1}, 4)
	assertDates(t, got, []time.Time{
		date(2025, time.February, 28),
		date(2026, time.February, 28),
		date(2027, time.February, 28),
		date(2028, time.February, 28),
	})
}

func TestGenerate_Days(t *testing.T) {
	got := Generate(date(2024, time.February, 27), Rule{Unit: UnitDay, Interval: 2}, 3)
	assertDates(t, got, []time.Time{
		date(2024, time.February, 29),
		date(2024, time.March, 2),
		date(2024, time.March, 4),
	})
}

func TestGenerate_UnknownUnitIsNoop(t *testing.T) {
	anchor := date(2024, time.May, 10)
	got := Generate(anchor, Rule{Unit: Unit("week"), Interval: 3}, 5)
	if len(got) != 5 {
		t.Fatalf("len = %d, ожидается 5", len(got))
	}
	for i, d := range got {
		if !d.Equal(anchor) {
			t.Errorf("[%d] = %s, ожидается неизменная дата %s", i, d, anchor)
		}
	}
}

func TestGenerate_NonPositiveIntervalIsOne(t *testing.T) {
	for _, interval := range []int{0, -3} {
		got := Generate(date(2024, time.January, 1), Rule{Unit: UnitDay, Interval: interval}, 2)
		assertDates(t, got, []time.Time{date(2024, time.January, 2), date(2024, time.January, 3)})
	}
}

func TestGenerate_NonPositiveCount(t *testing.T) {
	got := Generate(date(2024, time.January, 1), Rule{Unit: UnitDay, Interval: 1}, 0)
	if got == nil || len(got) != 0 {
		t.Errorf("Generate(count=0) = %v, ожидается пустой срез", got)
	}
}

func TestGenerate_StrictlyIncreasingAndExactCount(t *testing.T) {
	anchors := []time.Time{
		date(2024, time.January, 31),
		date(2024, time.February, 29),
		date(2023, time.August, 31),
		date(1999, time.December, 31),
	}
	units := []Unit{UnitDay, UnitMonth, UnitYear}

	for _, anchor := range anchors {
		for _, unit := range units {
			for interval := 1; interval <= 13; interval++ {
				for _, count := range []int{1, 7, 40} {
					got := Generate(anchor, Rule{Unit: unit, Interval: interval}, count)
					if len(got) != count {
						t.Fatalf("%s/%s/%d: len = %d, ожидается %d", anchor.Format(time.DateOnly), unit, interval, len(got), count)
					}
					prev := anchor
					for i, d := range got {
						if !d.After(prev) {
							t.Fatalf("%s/%s/%d: [%d] = %s не больше %s",
								anchor.Format(time.DateOnly), unit, interval, i, d.Format(time.DateOnly), prev.Format(time.DateOnly))
						}
						prev = d
					}
				}
			}
		}
	}
}

func TestGenerate_Deterministic(t *testing.T) {
	anchor := date(2024, time.January, 31)
	rule := Rule{Unit: UnitMonth, Interval: 1}

	first := Generate(anchor, rule, 24)
	second := Generate(anchor, rule, 24)
	assertDates(t, second, first)
}

func TestGenerate_PreservesTimeOfDayAndLocation(t *testing.T) {
	loc := time.FixedZone("BRT", -3*60*60)
	anchor := time.Date(2024, time.January, 31, 17, 45, 0, 0, loc)

	got := Generate(anchor, Rule{Unit: UnitMonth, Interval: 1}, 1)
	want := time.Date(2024, time.February, 29, 17, 45, 0, 0, loc)
	if !got[0].Equal(want) || got[0].Location() != loc {
		t.Errorf("Generate = %s, ожидается %s", got[0], want)
	}
}

func TestParseUnit(t *testing.T) {
	tests := []struct {
		in   string
		want Unit
	}{
		{"day", UnitDay},
		{"dia", UnitDay},
		{"Month", UnitMonth},
		{"mês", UnitMonth},
		{"mes", UnitMonth},
		{"ano", UnitYear},
		{" year ", UnitYear},
		{"semana", Unit("semana")},
	}
	for _, tt := range tests {
		if got := ParseUnit(tt.in); got != tt.want {
			t.Errorf("ParseUnit(%q) = %q, ожидается %q", tt.in, got, tt.want)
		}
	}
	if Unit("semana").Known() {
		t.Error("Known() для нераспознанной единицы должен быть false")
	}
}

func TestNewRule(t *testing.T) {
	if r := NewRule("mês", nil); r.Unit != UnitMonth || r.Interval != 1 {
		t.Errorf("NewRule(mês, nil) = %+v", r)
	}
	if r := NewRule("ano", intPtr(0)); r.Interval != 1 {
		t.Errorf("NewRule(ano, 0).Interval = %d, ожидается 1", r.Interval)
	}
	if r := NewRule("dia", intPtr(15)); r.Unit != UnitDay || r.Interval != 15 {
		t.Errorf("NewRule(dia, 15) = %+v", r)
	}
}

func TestDaysIn(t *testing.T) {
	tests := []struct {
		month time.Month
		year  int
		want  int
	}{
		{time.February, 2024, 29},
		{time.February, 2023, 28},
		{time.February, 2100, 28},
		{time.February, 2400, 29},
		{time.April, 2024, 30},
		{time.December, 2024, 31},
	}
	for _, tt := range tests {
		if got := DaysIn(tt.month, tt.year); got != tt.want {
			t.Errorf("DaysIn(%s, %d) = %d, ожидается %d", tt.month, tt.year, got, tt.want)
		}
	}
}
