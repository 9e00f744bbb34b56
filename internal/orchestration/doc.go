// Package orchestration runs one complete audit cycle: retried attempts, report
// dispatch and the readiness notification.
package orchestration
