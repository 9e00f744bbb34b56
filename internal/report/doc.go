// Package report models the outcome of one audit attempt and renders the
// plain-text form that is delivered over every dispatch channel.
package report
