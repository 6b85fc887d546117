package datetime

import (
	"testing"
	"time"

	contractx "github.com/tanpawarit/Chative-Concierge/agent/contract"
)

// 2026-10-15 is a Thursday.
var fixedNow = time.Date(2026, 10, 15, 9, 30, 0, 0, time.UTC)

func newTestParser() *Parser {
	return New(WithClock(func() time.Time { return fixedNow }), WithLocation(time.UTC))
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestParseDate(t *testing.T) {
	t.Parallel()

	p := newTestParser()
	tests := []struct {
		text   string
		want   time.Time
		wantOK bool
	}{
		{text: "hoje", want: day(2026, 10, 15), wantOK: true},
		{text: "Today please", want: day(2026, 10, 15), wantOK: true},
		{text: "AMANHÃ", want: day(2026, 10, 16), wantOK: true},
		{text: "amanha de manha", want: day(2026, 10, 16), wantOK: true},
		{text: "tomorrow", want: day(2026, 10, 16), wantOK: true},
		{text: "depois de amanhã", want: day(2026, 10, 17), wantOK: true},
		{text: "day after tomorrow", want: day(2026, 10, 17), wantOK: true},
		{text: "terça-feira", want: day(2026, 10, 20), wantOK: true},
		{text: "pode ser na Sábado?", want: day(2026, 10, 17), wantOK: true},
		{text: "quinta", want: day(2026, 10, 22), wantOK: true},
		{text: "Friday", want: day(2026, 10, 16), wantOK: true},
		{text: "dia 20/10", want: day(2026, 10, 20), wantOK: true},
		{text: "15-10", want: day(2026, 10, 15), wantOK: true},
		{text: "05.01.2027", want: day(2027, 1, 5), wantOK: true},
		{text: "01/02/27", want: day(2027, 2, 1), wantOK: true},
		{text: "10/10", wantOK: false},
		{text: "14/10/2026", wantOK: false},
		{text: "31/02", wantOK: false},
		{text: "12/13", wantOK: false},
		{text: "qualquer dia", wantOK: false},
		{text: "   ", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got, ok := p.ParseDate(tt.text, nil)
			if ok != tt.wantOK {
				t.Fatalf("ParseDate(%q) ok = %v, want %v (got %v)", tt.text, ok, tt.wantOK, got)
			}
			if ok && !got.Equal(tt.want) {
				t.Fatalf("ParseDate(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestParseDateNeverReturnsPast(t *testing.T) {
	t.Parallel()

	p := newTestParser()
	today := day(2026, 10, 15)
	inputs := []string{"hoje", "ontem", "01/01", "14/10", "15/10", "16/10/2025", "domingo", "segunda", "31/12/99"}
	for d := 1; d <= 31; d++ {
		for m := 1; m <= 12; m++ {
			inputs = append(inputs, time.Date(2000, time.Month(m), d, 0, 0, 0, 0, time.UTC).Format("02/01"))
		}
	}

	for _, in := range inputs {
		got, ok := p.ParseDate(in, nil)
		if ok && got.Before(today) {
			t.Fatalf("ParseDate(%q) = %v, before today", in, got)
		}
	}
}

func TestParseDateUsesTenantDay(t *testing.T) {
	t.Parallel()

	// 01:00 UTC on Friday is still 22:00 on Thursday in São Paulo.
	clock := func() time.Time { return time.Date(2026, 10, 16, 1, 0, 0, 0, time.UTC) }
	saoPaulo := time.FixedZone("BRT", -3*60*60)
	p := New(WithClock(clock), WithLocation(time.UTC))

	tests := []struct {
		text   string
		loc    *time.Location
		want   time.Time
		wantOK bool
	}{
		{text: "hoje", loc: saoPaulo, want: time.Date(2026, 10, 15, 0, 0, 0, 0, saoPaulo), wantOK: true},
		{text: "15/10", loc: saoPaulo, want: time.Date(2026, 10, 15, 0, 0, 0, 0, saoPaulo), wantOK: true},
		{text: "amanhã", loc: saoPaulo, want: time.Date(2026, 10, 16, 0, 0, 0, 0, saoPaulo), wantOK: true},
		{text: "sexta", loc: saoPaulo, want: time.Date(2026, 10, 16, 0, 0, 0, 0, saoPaulo), wantOK: true},
		{text: "14/10", loc: saoPaulo, wantOK: false},
		{text: "hoje", loc: nil, want: day(2026, 10, 16), wantOK: true},
		{text: "15/10", loc: nil, wantOK: false},
	}

	for _, tt := range tests {
		got, ok := p.ParseDate(tt.text, tt.loc)
		if ok != tt.wantOK {
			t.Fatalf("ParseDate(%q, %v) ok = %v, want %v (got %v)", tt.text, tt.loc, ok, tt.wantOK, got)
		}
		if ok && !got.Equal(tt.want) {
			t.Fatalf("ParseDate(%q, %v) = %v, want %v", tt.text, tt.loc, got, tt.want)
		}
		if ok && got.Location() != tt.loc && tt.loc != nil {
			t.Fatalf("ParseDate(%q) location = %v, want %v", tt.text, got.Location(), tt.loc)
		}
	}
}

func TestMatchTime(t *testing.T) {
	t.Parallel()

	p := newTestParser()
	slots := []contractx.Slot{
		{Date: "2026-10-20", Label: "10:00"},
		{Date: "2026-10-20", Label: "11:00"},
		{Date: "2026-10-20", Label: "14:00"},
		{Date: "2026-10-20", Label: "15:00"},
	}

	tests := []struct {
		text      string
		wantLabel string
		wantOK    bool
	}{
		{text: "14:00", wantLabel: "14:00", wantOK: true},
		{text: " 11:00 ", wantLabel: "11:00", wantOK: true},
		{text: "às 15h", wantLabel: "15:00", wantOK: true},
		{text: "pode ser 10h00?", wantLabel: "10:00", wantOK: true},
		{text: "as 11", wantLabel: "11:00", wantOK: true},
		{text: "de manhã", wantLabel: "10:00", wantOK: true},
		{text: "Afternoon works", wantLabel: "14:00", wantOK: true},
		{text: "tarde", wantLabel: "14:00", wantOK: true},
		{text: "à noite", wantOK: false},
		{text: "16:00", wantOK: false},
		{text: "qualquer um", wantOK: false},
		{text: "", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got, ok := p.MatchTime(tt.text, slots)
			if ok != tt.wantOK {
				t.Fatalf("MatchTime(%q) ok = %v, want %v", tt.text, ok, tt.wantOK)
			}
			if ok && got.Label != tt.wantLabel {
				t.Fatalf("MatchTime(%q) = %q, want %q", tt.text, got.Label, tt.wantLabel)
			}
		})
	}
}

func TestMatchTimeNoSlots(t *testing.T) {
	t.Parallel()

	if _, ok := newTestParser().MatchTime("manhã", nil); ok {
		t.Fatal("MatchTime() with no slots ok = true, want false")
	}
}

func TestFold(t *testing.T) {
	t.Parallel()

	if got := Fold("  Terça-Feira "); got != "terca-feira" {
		t.Fatalf("Fold() = %q, want %q", got, "terca-feira")
	}
}
