// Package dispatch delivers a rendered audit report over every configured
// channel: e-mail through an SMTP relay, a report file, and an external command
// that receives the report on standard input.
//
// Channels are independent. Dispatcher renders the report once, sends it to all
// channels concurrently, and aggregates the failures into one error.
package dispatch
