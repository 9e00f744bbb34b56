// Package jsonstream splits the output of tools that print one JSON object per
// input, back to back and without an enclosing array, into the individual
// object literals so that each can be decoded on its own.
package jsonstream
