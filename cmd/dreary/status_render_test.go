package main

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"dreary/internal/preflight"
)

func TestFormatStatusLineNoColor(t *testing.T) {
	got := formatStatusLine("PDS", statusError, "unreachable", false)
	want := fmt.Sprintf("  %-*s %s", statusLabelWidth, "PDS:", "[ERROR] unreachable")
	if got != want {
		t.Fatalf("formatStatusLine mismatch\n got: %q\nwant: %q", got, want)
	}
	if got := formatStatusLine("Last run", statusInfo, "", false); strings.HasSuffix(got, " ") {
		t.Fatalf("expected no trailing space without detail, got %q", got)
	}
}

func TestCheckKind(t *testing.T) {
	cases := []struct {
		result preflight.Result
		want   statusKind
	}{
		{preflight.Result{Passed: true}, statusOK},
		{preflight.Result{Optional: true}, statusWarn},
		{preflight.Result{}, statusError},
	}
	for _, tc := range cases {
		if got := checkKind(tc.result); got != tc.want {
			t.Fatalf("checkKind(%+v) = %d, want %d", tc.result, got, tc.want)
		}
	}
}

func TestStatusReportSections(t *testing.T) {
	var buf bytes.Buffer
	report := newStatusReport(&buf)
	report.section("Checks")
	report.check(preflight.Result{Name: "ffmpeg", Optional: true, Detail: "not found"})
	report.section("Ledger")
	report.line("Last run", statusInfo, "none")

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 7 {
		t.Fatalf("expected 7 lines, got %d:\n%s", len(lines), buf.String())
	}
	if lines[0] != "== Checks ==" || lines[1] != strings.Repeat("-", len("== Checks ==")) {
		t.Fatalf("unexpected heading %q / %q", lines[0], lines[1])
	}
	if !strings.Contains(lines[2], "[WARN] not found") {
		t.Fatalf("expected warn line, got %q", lines[2])
	}
	if lines[3] != "" {
		t.Fatalf("expected blank line between sections, got %q", lines[3])
	}
	if !strings.Contains(lines[6], "[INFO] none") {
		t.Fatalf("expected info line, got %q", lines[6])
	}
}
