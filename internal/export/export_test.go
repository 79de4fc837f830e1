package export

import (
	"strings"
	"testing"
	"time"
)

func TestRenderReportHTML(t *testing.T) {
	from := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	data := TemplateData{
		BusinessName: "Ace Plumbing",
		From:         from,
		To:           to,
		Balance:      42,
		Rows: []TemplateRow{
			{Reason: "sms_send", Count: 10, Total: -10},
			{Reason: "grant", Count: 1, Total: 100},
		},
		Entries: []TemplateEntry{
			{When: from.Add(24 * time.Hour), Delta: -1, Reason: "sms_send", Ref: "msg_1"},
		},
		GeneratedAt: to,
	}

	html, err := RenderReportHTML(data)
	if err != nil {
		t.Fatalf("RenderReportHTML failed: %v", err)
	}

	for _, want := range []string{"Ace Plumbing", "sms_send", "42", "msg_1", "Feb 1, 2026"} {
		if !strings.Contains(html, want) {
			t.Errorf("expected rendered report to contain %q", want)
		}
	}
}

func TestRenderReportHTMLEmptyPeriod(t *testing.T) {
	html, err := RenderReportHTML(TemplateData{BusinessName: "Ace Plumbing"})
	if err != nil {
		t.Fatalf("RenderReportHTML failed: %v", err)
	}
	if !strings.Contains(html, "No activity in this period.") {
		t.Error("expected empty-period message")
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Ace Plumbing credit report 2026-02", "Ace-Plumbing-credit-report-2026-02"},
		{"report/with:bad*chars", "reportwithbadchars"},
		{"", "document"},
		{"!!!", "document"},
		{strings.Repeat("a", 100), strings.Repeat("a", 50)},
	}

	for _, tt := range tests {
		if got := sanitizeFilename(tt.input); got != tt.expected {
			t.Errorf("sanitizeFilename(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestPercentEncodeForDataURL(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"hello", "hello"},
		{"hello world", "hello%20world"},
		{"a+b", "a%2Bb"},
		{"<p>x</p>", "%3Cp%3Ex%3C%2Fp%3E"},
	}

	for _, tt := range tests {
		if got := percentEncodeForDataURL(tt.input); got != tt.expected {
			t.Errorf("percentEncodeForDataURL(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}
