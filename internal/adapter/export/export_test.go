package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/user/loghub/internal/domain"
)

func sampleEntries() []domain.LogEntry {
	rt := 12.5
	return []domain.LogEntry{
		{
			ID:          2,
			Timestamp:   time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC),
			ServiceName: "checkout",
			LogLevel:    domain.LevelError,
			Message:     "payment declined, retrying",
		},
		{
			ID:             1,
			Timestamp:      time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC),
			ServiceName:    "search",
			LogLevel:       domain.LevelInfo,
			Message:        "query served",
			ResponseTimeMS: &rt,
		},
	}
}

func TestParseFormat(t *testing.T) {
	cases := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", FormatCSV, false},
		{"csv", FormatCSV, false},
		{"json", FormatJSON, false},
		{"xml", "", true},
	}
	for _, tc := range cases {
		got, err := ParseFormat(tc.in)
		if tc.wantErr {
			if !errors.Is(err, domain.ErrValidation) {
				t.Errorf("ParseFormat(%q): expected ErrValidation, got %v", tc.in, err)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Errorf("ParseFormat(%q) = %v, %v; want %v", tc.in, got, err, tc.want)
		}
	}
}

func TestWrite_CSV(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, FormatCSV, sampleEntries()); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("invalid csv output: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected header plus 2 rows, got %d", len(records))
	}
	if records[0][0] != "id" || records[0][2] != "service_name" {
		t.Errorf("unexpected header: %v", records[0])
	}
	if records[1][0] != "2" || records[1][2] != "checkout" {
		t.Errorf("unexpected first row: %v", records[1])
	}
	if records[2][10] != "12.5" {
		t.Errorf("expected response time 12.5, got %q", records[2][10])
	}
}

func TestWrite_JSON(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, FormatJSON, sampleEntries()); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	var out []domain.LogEntry
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("invalid json output: %v", err)
	}
	if len(out) != 2 || out[0].ID != 2 {
		t.Errorf("unexpected output: %+v", out)
	}
}
