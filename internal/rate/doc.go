// Package rate implements the Redis fixed-window login throttle used by the
// tenantauth engine. Counters are scoped to a tenant+principal pair so one
// tenant's abuse never consumes another tenant's budget.
package rate
