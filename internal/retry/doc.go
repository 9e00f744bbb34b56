// Package retry repeats audit attempts until one succeeds or the attempt budget
// is spent, waiting an exponentially growing delay between attempts.
package retry
