package service

import (
	"time"

	"github.com/rs/zerolog"

	"pricewatch/internal/metrics"
	"pricewatch/internal/policy"
)

// SweepReport summarises one sweep. Alerted, NotifyFailed, FetchFailed and
// NoAction partition Checked. DeleteFailed counts alerted items whose removal
// failed; they are included in Alerted.
type SweepReport struct {
	Checked      int
	Alerted      int
	NotifyFailed int
	FetchFailed  int
	NoAction     int
	DeleteFailed int
	StartedAt    time.Time
	Duration     time.Duration
}

func (r *SweepReport) add(o itemOutcome) {
	r.Checked++
	switch {
	case o.decision == policy.ActionDefer:
		r.FetchFailed++
	case o.decision == policy.ActionNoAction:
		r.NoAction++
	case o.notifyFailed:
		r.NotifyFailed++
	default:
		r.Alerted++
		if o.deleteFailed {
			r.DeleteFailed++
		}
	}
}

func (r SweepReport) countsByOutcome() map[string]int {
	return map[string]int{
		metrics.OutcomeAlerted:      r.Alerted,
		metrics.OutcomeNotifyFailed: r.NotifyFailed,
		metrics.OutcomeFetchFailed:  r.FetchFailed,
		metrics.OutcomeNoAction:     r.NoAction,
	}
}

func (r SweepReport) log(e *zerolog.Event) *zerolog.Event {
	return e.Int("checked", r.Checked).
		Int("alerted", r.Alerted).
		Int("notify_failed", r.NotifyFailed).
		Int("fetch_failed", r.FetchFailed).
		Int("no_action", r.NoAction).
		Int("delete_failed", r.DeleteFailed).
		Dur("duration", r.Duration)
}
