package notify

import (
	"time"

	"github.com/Sriram-PR/site-indexer/pkg/models"
)

// NotificationResult records one strategy attempt against one target
type NotificationResult struct {
	Channel       string                    `json:"channel"`
	Target        string                    `json:"target"`
	Strategy      string                    `json:"strategy"`
	Status        models.NotificationStatus `json:"status"`
	StatusCode    int                       `json:"statusCode,omitempty"`
	Error         string                    `json:"error,omitempty"`
	ErrorCategory string                    `json:"errorCategory,omitempty"`
	Message       string                    `json:"message,omitempty"`
	Timestamp     time.Time                 `json:"timestamp"`
}

// TargetOutcome folds the attempts against one target
type TargetOutcome struct {
	Target    string                    `json:"target"`
	Status    models.NotificationStatus `json:"status"`
	Attempts  int                       `json:"attempts"`
	Exhausted bool                      `json:"exhausted"` // Every strategy tried, none succeeded
}

// ChannelReport aggregates results for one channel. Status is the worst target status.
type ChannelReport struct {
	Channel string                    `json:"channel"`
	Status  models.NotificationStatus `json:"status"`
	Targets []TargetOutcome           `json:"targets"`
	Results []NotificationResult      `json:"results"`
}

// Exhausted reports whether any target ran out of strategies
func (c ChannelReport) Exhausted() bool {
	for _, t := range c.Targets {
		if t.Exhausted {
			return true
		}
	}
	return false
}

// Counts tallies channel statuses
type Counts struct {
	Success int `json:"success"`
	Warning int `json:"warning"`
	Error   int `json:"error"`
}

// Indexing status values for google-submission-status.json
const (
	IndexingSubmitted      = "submitted"
	IndexingPartial        = "partial"
	IndexingManualRequired = "manual_required"
)

// SubmissionReport is the full record of one notification run
type SubmissionReport struct {
	RunID          string          `json:"runId"`
	Timestamp      time.Time       `json:"timestamp"`
	SiteURL        string          `json:"siteUrl"`
	SitemapURL     string          `json:"sitemapUrl"`
	PriorityPages  []string        `json:"priorityPages"`
	Channels       []ChannelReport `json:"channels"`
	Counts         Counts          `json:"counts"`
	IndexingStatus string          `json:"indexingStatus"`
	ManualRequired bool            `json:"manualRequired"`

	Verification *SitemapVerification `json:"verification,omitempty"` // nil when not run
}

// Channel returns the report for name, or nil
func (r *SubmissionReport) Channel(name string) *ChannelReport {
	for i := range r.Channels {
		if r.Channels[i].Channel == name {
			return &r.Channels[i]
		}
	}
	return nil
}

// worst returns the most severe of a and b
func worst(a, b models.NotificationStatus) models.NotificationStatus {
	if b.Severity() > a.Severity() {
		return b
	}
	return a
}

// summarizeTarget folds one chain walk. Any success wins; otherwise the last attempt decides.
func summarizeTarget(target string, results []NotificationResult, exhausted bool) TargetOutcome {
	out := TargetOutcome{Target: target, Attempts: len(results), Exhausted: exhausted}
	for _, r := range results {
		if r.Status == models.NotificationSuccess {
			out.Status = models.NotificationSuccess
			out.Exhausted = false
			return out
		}
	}
	if len(results) > 0 {
		out.Status = results[len(results)-1].Status
	}
	return out
}

func buildChannelReport(channel string, targets []TargetOutcome, results []NotificationResult) ChannelReport {
	rep := ChannelReport{Channel: channel, Targets: targets, Results: results}
	for _, t := range targets {
		rep.Status = worst(rep.Status, t.Status)
	}
	if rep.Status == models.NotificationUnset {
		rep.Status = models.NotificationWarning
	}
	return rep
}

// finalize fills counts and the overall indexing status
func (r *SubmissionReport) finalize(googleChannel string) {
	r.Counts = Counts{}
	anySuccess := false
	for _, c := range r.Channels {
		switch c.Status {
		case models.NotificationSuccess:
			r.Counts.Success++
		case models.NotificationWarning:
			r.Counts.Warning++
		default:
			r.Counts.Error++
		}
		for _, t := range c.Targets {
			if t.Status == models.NotificationSuccess {
				anySuccess = true
			}
		}
		if c.Exhausted() {
			r.ManualRequired = true
		}
	}

	google := r.Channel(googleChannel)
	switch {
	case len(r.Channels) > 0 && r.Counts.Success == len(r.Channels):
		r.IndexingStatus = IndexingSubmitted
	case !anySuccess, google != nil && google.Status != models.NotificationSuccess:
		r.IndexingStatus = IndexingManualRequired
	default:
		r.IndexingStatus = IndexingPartial
	}
}
