package tenantauth

import (
	"github.com/crmforge/tenantauth/internal/rate"
	"github.com/crmforge/tenantauth/keystore"
	"github.com/crmforge/tenantauth/password"
	"github.com/crmforge/tenantauth/revocation"
	"github.com/crmforge/tenantauth/token"
)

// Engine is the authentication core. Construct it through [Builder.Build];
// all methods are safe for concurrent use afterwards.
type Engine struct {
	config       Config
	tokens       *token.Manager
	revocations  *revocation.Registry
	rateLimiter  *rate.Limiter
	tenantKeys   *keystore.Store
	passwordHash *password.Hasher
	totp         *totpManager
	guard        *infraGuard
	audit        *auditDispatcher
	metrics      *Metrics
	sweeper      *sweeper
	userProvider UserProvider
}

// Close stops background work and drains the audit buffer. Safe to call
// more than once.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.sweeper != nil {
		e.sweeper.Stop()
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// StartSweeper launches the background blacklist sweeper, when enabled in
// [MaintenanceConfig]. Returns false when sweeping is not configured.
func (e *Engine) StartSweeper() bool {
	if e == nil || e.sweeper == nil {
		return false
	}
	e.sweeper.Start()
	return true
}

// AuditDropped reports how many audit events were discarded due to a full
// buffer.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a point-in-time copy of the engine's counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// Metrics exposes the live metrics collector, for wiring into exporters.
func (e *Engine) Metrics() *Metrics {
	if e == nil {
		return nil
	}
	return e.metrics
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}
