package jobs

import (
	"context"
	"log/slog"
	"time"

	"dispatch/internal/lifecycle"
	"dispatch/internal/models"
	"dispatch/internal/notify"
	"dispatch/internal/observability"
	"dispatch/internal/repository"
)

// DefaultSweepInterval is how often expired assignments are reclaimed when
// no interval is configured.
const DefaultSweepInterval = time.Minute

// breachReason is recorded as the rejection reason on reclaimed requests.
const breachReason = "SLA breach: partner did not respond before the deadline"

// SLASweep reclaims assignments whose response deadline passed without a
// partner confirm or reject. Each expired request goes through the normal
// rejection transition, so the bounce back to unassigned, the assignment
// response and the audit log all behave exactly as a manual rejection would.
type SLASweep struct {
	requests repository.RequestRepository
	machine  *lifecycle.Machine
	events   notify.EventSink
	interval time.Duration
	log      *slog.Logger

	now func() time.Time
}

// NewSLASweep wires the sweep. events may be nil; interval <= 0 selects the
// default.
func NewSLASweep(
	requests repository.RequestRepository,
	machine *lifecycle.Machine,
	events notify.EventSink,
	interval time.Duration,
	log *slog.Logger,
) *SLASweep {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if log == nil {
		log = slog.Default()
	}
	return &SLASweep{
		requests: requests,
		machine:  machine,
		events:   events,
		interval: interval,
		log:      log,
		now:      time.Now,
	}
}

func (s *SLASweep) Name() string { return "sla_sweep" }

func (s *SLASweep) Interval() time.Duration { return s.interval }

// Run reclaims every currently expired assignment. Requests are handled
// independently: one race with a concurrent partner response does not stop
// the rest of the batch, and the loser of such a race is simply skipped.
func (s *SLASweep) Run(ctx context.Context) error {
	expired, err := s.requests.ListExpiredAssigned(ctx, s.now().UTC())
	if err != nil {
		return err
	}
	if len(expired) == 0 {
		return nil
	}

	s.log.Info("sla sweep found expired assignments", slog.Int("count", len(expired)))

	for _, request := range expired {
		s.reclaim(ctx, request)
	}
	return nil
}

func (s *SLASweep) reclaim(ctx context.Context, request models.Request) {
	_, err := s.machine.Transition(ctx, request.ID, lifecycle.TransitionInput{
		Target:          models.RequestStatusRejected,
		RejectionReason: breachReason,
		Notes:           breachReason,
	})
	if err != nil {
		// Usually a partner response raced the sweep and won the guard.
		s.log.Warn("sla sweep skipped request",
			slog.String("request_number", request.Number),
			slog.String("error", err.Error()),
		)
		return
	}

	observability.SLABreaches.Inc()
	s.log.Info("assignment reclaimed after sla breach",
		slog.String("request_number", request.Number),
	)

	if s.events != nil {
		s.events.Enqueue(notify.Event{
			Type:      notify.EventSLABreach,
			RequestID: request.ID,
		})
	}
}
