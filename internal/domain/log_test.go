package domain

import (
	"testing"
	"time"
)

func TestParseLevel(t *testing.T) {
	cases := []struct {
		in   string
		want Level
		ok   bool
	}{
		{"", LevelInfo, true},
		{"DEBUG", LevelDebug, true},
		{"INFO", LevelInfo, true},
		{"WARNING", LevelWarning, true},
		{"WARN", LevelWarning, true},
		{"ERROR", LevelError, true},
		{"CRITICAL", LevelCritical, true},
		{"TRACE", "", false},
		{"info ", "", false},
	}
	for _, tc := range cases {
		got, ok := ParseLevel(tc.in)
		if ok != tc.ok || (ok && got != tc.want) {
			t.Errorf("ParseLevel(%q) = %q, %v; want %q, %v", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}

func TestAlertRule_Matches(t *testing.T) {
	entry := &LogEntry{
		Timestamp:   time.Now(),
		ServiceName: "checkout",
		LogLevel:    LevelError,
		Message:     "payment gateway timeout after 3 retries",
		ErrorCode:   "GW_TIMEOUT",
	}

	cases := []struct {
		name string
		rule AlertRule
		want bool
	}{
		{"No predicates matches everything", AlertRule{}, true},
		{"Service equality", AlertRule{ServiceName: "checkout"}, true},
		{"Service mismatch", AlertRule{ServiceName: "search"}, false},
		{"Level equality", AlertRule{LogLevel: LevelError}, true},
		{"Level mismatch", AlertRule{LogLevel: LevelInfo}, false},
		{"Error code equality", AlertRule{ErrorCode: "GW_TIMEOUT"}, true},
		{"Error code mismatch", AlertRule{ErrorCode: "OTHER"}, false},
		{"Keyword substring", AlertRule{KeywordMatch: "gateway timeout"}, true},
		{"Keyword absent", AlertRule{KeywordMatch: "out of memory"}, false},
		{"All predicates must hold", AlertRule{ServiceName: "checkout", LogLevel: LevelError, KeywordMatch: "retries"}, true},
		{"One failing predicate rejects", AlertRule{ServiceName: "checkout", LogLevel: LevelInfo}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.rule.Matches(entry); got != tc.want {
				t.Errorf("Matches() = %v, want %v", got, tc.want)
			}
		})
	}
}
