// Package readiness tells the service manager that a run has finished its work.
package readiness
