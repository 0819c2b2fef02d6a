package aggregator

import (
	"time"

	"github.com/Fantasim/vaultscan/internal/models"
	"github.com/Fantasim/vaultscan/internal/transport"
)

// SourceStatus is the coverage entry of one source.
type SourceStatus struct {
	Source     string               `json:"source"`
	Chain      string               `json:"chain"`
	Kind       models.SourceKind    `json:"kind"`
	OK         bool                 `json:"ok"`
	Skipped    bool                 `json:"skipped,omitempty"`
	Reason     models.FailureReason `json:"reason,omitempty"`
	Code       string               `json:"code,omitempty"`
	Error      string               `json:"error,omitempty"`
	Endpoint   string               `json:"endpoint,omitempty"`
	Attempts   int                  `json:"attempts"`
	Records    int                  `json:"records"`
	DurationMs int64                `json:"durationMs"`
}

// CoverageReport lists which sources answered and why the others did not.
// It is separate from the balance data and never affects it.
type CoverageReport struct {
	ID         string         `json:"id"`
	Address    string         `json:"address"`
	Sources    []SourceStatus `json:"sources"`
	Succeeded  int            `json:"succeeded"`
	Failed     int            `json:"failed"`
	Skipped    int            `json:"skipped"`
	Duration   time.Duration  `json:"-"`
	DurationMs int64          `json:"durationMs"`
}

// NewCoverageReport summarizes outcomes, keeping their order.
func NewCoverageReport(address string, outcomes []models.FetchOutcome, elapsed time.Duration) CoverageReport {
	report := CoverageReport{
		Address:    address,
		Sources:    make([]SourceStatus, 0, len(outcomes)),
		Duration:   elapsed,
		DurationMs: elapsed.Milliseconds(),
	}

	for _, o := range outcomes {
		st := SourceStatus{
			Source:     o.Source,
			Chain:      o.Chain,
			Kind:       o.Kind,
			OK:         o.OK(),
			Skipped:    o.Skipped,
			Endpoint:   o.Endpoint,
			Attempts:   o.Attempts,
			Records:    len(o.Records),
			DurationMs: o.Duration.Milliseconds(),
		}

		switch {
		case !st.OK:
			st.Reason = o.Reason
			if st.Reason == models.ReasonNone {
				st.Reason = transport.Classify(o.Err)
			}
			st.Code = transport.ErrorCode(st.Reason)
			if o.Err != nil {
				st.Error = o.Err.Error()
			}
			report.Failed++
		case o.Skipped:
			report.Skipped++
		default:
			report.Succeeded++
		}

		report.Sources = append(report.Sources, st)
	}

	return report
}

// Failures returns the failed sources.
func (r CoverageReport) Failures() []SourceStatus {
	var out []SourceStatus
	for _, s := range r.Sources {
		if !s.OK {
			out = append(out, s)
		}
	}
	return out
}

// ByReason groups failed source names by failure reason.
func (r CoverageReport) ByReason() map[models.FailureReason][]string {
	out := make(map[models.FailureReason][]string)
	for _, s := range r.Failures() {
		out[s.Reason] = append(out[s.Reason], s.Source)
	}
	return out
}

// Complete reports whether no source failed.
func (r CoverageReport) Complete() bool {
	return r.Failed == 0
}
