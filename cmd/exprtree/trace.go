package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/thomasrohde/exprtree/pkg/evaluator"
)

// traceWriter encodes trace events as NDJSON. The first write error is
// kept and later events are dropped.
type traceWriter struct {
	w   io.WriteCloser
	enc *json.Encoder
	err error
}

func newTraceWriter(w io.WriteCloser) *traceWriter {
	return &traceWriter{w: w, enc: json.NewEncoder(w)}
}

func (t *traceWriter) Write(ev evaluator.TraceEvent) {
	if t.err != nil {
		return
	}
	t.err = t.enc.Encode(ev)
}

// Close closes the underlying writer and returns the first error seen.
func (t *traceWriter) Close() error {
	closeErr := t.w.Close()
	if t.err != nil {
		return t.err
	}
	return closeErr
}

// TraceSummary aggregates the events of one NDJSON trace file.
type TraceSummary struct {
	RunID          string         `json:"runId"`
	TotalEvents    int            `json:"totalEvents"`
	Statements     int            `json:"statements"`
	Loops          int            `json:"loops"`
	Iterations     int64          `json:"iterations"`
	Calls          int            `json:"calls"`
	CallsByName    map[string]int `json:"callsByName"`
	Prints         int            `json:"prints"`
	BudgetExceeded int            `json:"budgetExceeded"`
	StartTime      string         `json:"startTime,omitempty"`
	EndTime        string         `json:"endTime,omitempty"`
	DurationMs     float64        `json:"durationMs"`
	Error          string         `json:"error,omitempty"`
}

type traceEvent struct {
	Event string         `json:"event"`
	RunID string         `json:"runId"`
	TS    string         `json:"ts"`
	Data  map[string]any `json:"data,omitempty"`
}

func computeTraceSummary(r io.Reader) *TraceSummary {
	summary := &TraceSummary{
		CallsByName: make(map[string]int),
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var event traceEvent
		if err := json.Unmarshal([]byte(line), &event); err != nil {
			continue // skip invalid lines
		}

		summary.TotalEvents++
		if summary.RunID == "" {
			summary.RunID = event.RunID
		}

		switch event.Event {
		case "run_start":
			if summary.StartTime == "" {
				summary.StartTime = event.TS
			}
		case "run_end":
			summary.EndTime = event.TS
			if msg, ok := event.Data["error"].(string); ok {
				summary.Error = msg
			}
		case "stmt_start":
			summary.Statements++
		case "loop_end":
			summary.Loops++
			if n, ok := event.Data["iterations"].(float64); ok {
				summary.Iterations += int64(n)
			}
		case "fn_call_start":
			summary.Calls++
			if name, ok := event.Data["function"].(string); ok {
				summary.CallsByName[name]++
			}
		case "print":
			summary.Prints++
		case "budget_exceeded":
			summary.BudgetExceeded++
		}
	}

	if summary.StartTime != "" && summary.EndTime != "" {
		start, err1 := parseTime(summary.StartTime)
		end, err2 := parseTime(summary.EndTime)
		if err1 == nil && err2 == nil {
			summary.DurationMs = float64(end.Sub(start).Milliseconds())
		}
	}

	return summary
}

func printTraceSummaryText(w io.Writer, s *TraceSummary) {
	fmt.Fprintf(w, "Run: %s\n", s.RunID)
	fmt.Fprintf(w, "Events: %d\n", s.TotalEvents)
	fmt.Fprintf(w, "Statements: %d\n", s.Statements)
	fmt.Fprintf(w, "Loops: %d (%d iterations)\n", s.Loops, s.Iterations)
	fmt.Fprintf(w, "Calls: %d\n", s.Calls)
	for _, name := range sortedNames(s.CallsByName) {
		fmt.Fprintf(w, "  %s: %d\n", name, s.CallsByName[name])
	}
	fmt.Fprintf(w, "Prints: %d\n", s.Prints)
	if s.BudgetExceeded > 0 {
		fmt.Fprintf(w, "Budget exceeded: %d\n", s.BudgetExceeded)
	}
	if s.Error != "" {
		fmt.Fprintf(w, "Error: %s\n", s.Error)
	}
	if s.DurationMs > 0 {
		fmt.Fprintf(w, "Duration: %.0fms\n", s.DurationMs)
	}
}

func sortedNames[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err == nil {
		return t, nil
	}
	t, err = time.Parse(time.RFC3339, s)
	if err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("cannot parse time: %s", s)
}
