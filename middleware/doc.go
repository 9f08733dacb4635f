// Package middleware provides net/http glue for protecting routes with a
// tenantauth engine.
package middleware
