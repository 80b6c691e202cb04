// Package sla resolves the partner response-time budget and computes
// assignment deadlines.
package sla

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"dispatch/internal/models"
)

// DefaultTimeoutMinutes is the hard fallback when neither a partner override
// nor a sane global setting exists.
const DefaultTimeoutMinutes = 15

// Global settings outside this range are treated as misconfigured and
// ignored. Partner overrides only need to be positive.
const (
	minGlobalTimeoutMinutes = 1
	maxGlobalTimeoutMinutes = 60
)

// SettingReader is the narrow configuration accessor the policy depends on.
type SettingReader interface {
	Get(ctx context.Context, scope, key string) (string, error)
}

// Policy resolves SLA timeouts from runtime settings. Resolution never
// fails: every lookup or parse problem falls through to the next tier and
// ultimately to DefaultTimeoutMinutes, so a broken setting can never fail
// an assignment.
type Policy struct {
	settings SettingReader
	log      *slog.Logger
}

// NewPolicy returns a Policy reading from the given settings accessor.
func NewPolicy(settings SettingReader, log *slog.Logger) *Policy {
	if log == nil {
		log = slog.Default()
	}
	return &Policy{settings: settings, log: log}
}

// TimeoutMinutes resolves the response budget for an assignment:
// partner-scoped override, then the global setting, then the default.
func (p *Policy) TimeoutMinutes(ctx context.Context, partnerID *uint) int {
	if partnerID != nil {
		if minutes, ok := p.lookup(ctx, models.PartnerScope(*partnerID)); ok && minutes > 0 {
			return minutes
		}
	}

	if minutes, ok := p.lookup(ctx, models.SettingScopeGlobal); ok &&
		minutes >= minGlobalTimeoutMinutes && minutes <= maxGlobalTimeoutMinutes {
		return minutes
	}

	return DefaultTimeoutMinutes
}

// lookup reads one scope's timeout setting; ok is false when the key is
// unset, unreadable or not numeric.
func (p *Policy) lookup(ctx context.Context, scope string) (int, bool) {
	raw, err := p.settings.Get(ctx, scope, models.SettingKeySLATimeoutMinutes)
	if err != nil {
		p.log.WarnContext(ctx, "sla setting lookup failed, falling back",
			slog.String("scope", scope),
			slog.String("error", err.Error()),
		)
		return 0, false
	}
	if raw == "" {
		return 0, false
	}
	minutes, err := strconv.Atoi(raw)
	if err != nil {
		p.log.WarnContext(ctx, "sla setting is not numeric, falling back",
			slog.String("scope", scope),
			slog.String("value", raw),
		)
		return 0, false
	}
	return minutes, true
}

// Deadline computes the absolute partner-response deadline for an
// assignment made at assignedAt.
func Deadline(assignedAt time.Time, timeoutMinutes int) time.Time {
	return assignedAt.Add(time.Duration(timeoutMinutes) * time.Minute)
}
