package trendreport

import (
	"testing"
	"time"
)

func TestBuildRows(t *testing.T) {
	reg := testRegistry(t, FamilyHangul)
	req := &RenderRequest{
		ID:       "r1",
		Registry: reg,
		Records: []StoryRecord{
			{Rank: 1, Title: "  ข่าว\u200Bด่วน  ", Channel: "Ch3", Views: 1_500_000},
			{Rank: 2, Title: "안녕하세요", Category: "Music"},
			{Rank: 3, Title: ""},
		},
	}
	rows := buildRows(req, testLogger())
	if len(rows) != 3 {
		t.Fatalf("got %d rows", len(rows))
	}
	if rows[0].Title != "ข่าวด่วน" {
		t.Errorf("title not sanitized: %q", rows[0].Title)
	}
	if !rows[0].Combining {
		t.Error("Thai row should flag combining padding")
	}
	if rows[1].Family != FamilyHangul {
		t.Errorf("Hangul row family = %q", rows[1].Family)
	}
	if rows[1].Combining {
		t.Error("Hangul row needs no combining padding")
	}
	if rows[2].Title != "(untitled)" {
		t.Errorf("empty title placeholder = %q", rows[2].Title)
	}
}

func TestRecordMeta(t *testing.T) {
	rec := StoryRecord{
		Channel:     "Workpoint",
		Category:    "News",
		Views:       2_400_000,
		PublishedAt: time.Date(2026, 8, 25, 9, 30, 0, 0, time.UTC),
	}
	got := recordMeta(rec)
	want := "Workpoint | News | 2.4M views | 25 Aug 09:30"
	if got != want {
		t.Errorf("recordMeta = %q, want %q", got, want)
	}
	if recordMeta(StoryRecord{}) != "" {
		t.Error("empty record should give empty meta")
	}
}

func TestFormatViews(t *testing.T) {
	cases := []struct {
		in   int64
		want string
	}{
		{999, "999"},
		{1_000, "1K"},
		{34_500, "34.5K"},
		{1_000_000, "1M"},
		{1_230_000, "1.2M"},
	}
	for _, c := range cases {
		if got := formatViews(c.in); got != c.want {
			t.Errorf("formatViews(%d) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestReportTitle(t *testing.T) {
	if got := reportTitle(time.Time{}); got != "TrendSiam Weekly Report" {
		t.Errorf("zero week: %q", got)
	}
	week := time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC)
	if got := reportTitle(week); got != "TrendSiam Weekly Report - 24 Aug 2026" {
		t.Errorf("got %q", got)
	}
}

func TestMondayOf(t *testing.T) {
	// 2026-08-30 is a Sunday; its week began Monday the 24th.
	sunday := time.Date(2026, 8, 30, 15, 0, 0, 0, time.UTC)
	if got := mondayOf(sunday); got.Day() != 24 {
		t.Errorf("mondayOf(Sunday) = %v", got)
	}
	monday := time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC)
	if got := mondayOf(monday); got.Day() != 24 {
		t.Errorf("mondayOf(Monday) = %v", got)
	}
}

func TestUnitConversions(t *testing.T) {
	if got := PointToMM(72); got < 25.39 || got > 25.41 {
		t.Errorf("PointToMM(72) = %f", got)
	}
	if got := MMToPoint(25.4); got < 71.99 || got > 72.01 {
		t.Errorf("MMToPoint(25.4) = %f", got)
	}
	if got := InchToPoint(1); got != 72 {
		t.Errorf("InchToPoint(1) = %f", got)
	}
}
