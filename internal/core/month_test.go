package core

import (
	"encoding/json"
	"testing"
	"time"
)

func TestCanonicalMonth(t *testing.T) {
	in := time.Date(2024, time.March, 17, 15, 4, 5, 0, time.FixedZone("BRT", -3*3600))
	got := CanonicalMonth(in)
	if got.String() != "2024-03-01" {
		t.Fatalf("expected 2024-03-01, got %s", got)
	}
	if got.Day() != 1 || got.Hour() != 0 || got.Location() != time.UTC {
		t.Fatalf("not canonical: %v", got.Time)
	}
}

func TestAddMonths(t *testing.T) {
	cases := []struct {
		start Month
		n     int
		want  string
	}{
		{NewMonth(2024, 12), 2, "2025-02-01"},
		{NewMonth(2024, 1), 0, "2024-01-01"},
		{NewMonth(2024, 1), 12, "2025-01-01"},
		{NewMonth(2024, 1), -1, "2023-12-01"},
		{NewMonth(2024, 11), 14, "2026-01-01"},
	}
	for _, tc := range cases {
		if got := tc.start.AddMonths(tc.n).String(); got != tc.want {
			t.Fatalf("%s + %d: expected %s, got %s", tc.start, tc.n, tc.want, got)
		}
	}
}

func TestAddMonthsProperties(t *testing.T) {
	d := Month{Time: time.Date(2023, time.August, 31, 22, 0, 0, 0, time.UTC)}
	if !d.AddMonths(0).Equal(CanonicalMonth(d.Time)) {
		t.Fatalf("AddMonths(0) should canonicalize")
	}
	next := d.AddMonths(12)
	if next.Year() != 2024 || next.Time.Month() != time.August || next.Day() != 1 {
		t.Fatalf("AddMonths(12) expected 2024-08-01, got %s", next)
	}
}

func TestParseMonth(t *testing.T) {
	for in, want := range map[string]string{
		"2024-05":    "2024-05-01",
		"2024-05-01": "2024-05-01",
		"2024-05-19": "2024-05-01",
		" 2024-12 ":  "2024-12-01",
	} {
		got, err := ParseMonth(in)
		if err != nil || got.String() != want {
			t.Fatalf("%q: expected %s, got %s (err=%v)", in, want, got, err)
		}
	}
	for _, in := range []string{"", "2024", "05/2024", "2024-13"} {
		if _, err := ParseMonth(in); err == nil {
			t.Fatalf("%q: expected error", in)
		}
	}
}

func TestUpcomingMonths(t *testing.T) {
	months := UpcomingMonths(time.Date(2024, time.November, 20, 0, 0, 0, 0, time.UTC), 12)
	if len(months) != 12 {
		t.Fatalf("expected 12 months, got %d", len(months))
	}
	if months[0].String() != "2024-11-01" || months[11].String() != "2025-10-01" {
		t.Fatalf("unexpected range %s..%s", months[0], months[11])
	}
	if months[2].Label() != "01/2025" {
		t.Fatalf("unexpected label %s", months[2].Label())
	}
}

func TestMonthJSON(t *testing.T) {
	var v struct {
		M Month `json:"m"`
	}
	if err := json.Unmarshal([]byte(`{"m":"2024-02-15"}`), &v); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	b, _ := json.Marshal(v)
	if string(b) != `{"m":"2024-02-01"}` {
		t.Fatalf("unexpected json %s", b)
	}
}
