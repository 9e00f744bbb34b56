package jsonstream

import (
	"errors"
	"fmt"
	"strings"
)

const (
	objectOpenCharacterConstant   = '{'
	objectCloseCharacterConstant  = '}'
	stringDelimiterConstant       = '"'
	escapeCharacterConstant       = '\\'
	splitErrorMessageTemplate     = "split JSON stream at offset %d: %v"
	estimatedBytesPerPartConstant = 64
)

// Sentinel errors reported by Split.
var (
	ErrTrailingBackslash  = errors.New("trailing backslash")
	ErrUnterminatedString = errors.New("unterminated string")
	ErrMismatchedBraces   = errors.New("mismatched braces")
	ErrTrailingGarbage    = errors.New("trailing garbage")
)

// SplitError reports where in the input a stream could not be split.
type SplitError struct {
	Offset int
	Err    error
}

// Error describes the failure together with its byte offset.
func (splitError *SplitError) Error() string {
	return fmt.Sprintf(splitErrorMessageTemplate, splitError.Offset, splitError.Err)
}

// Unwrap exposes the sentinel error.
func (splitError *SplitError) Unwrap() error {
	return splitError.Err
}

type scannerState struct {
	depth        int
	insideString bool
	escaping     bool
	looseStart   int
}

// Split separates a concatenation of top-level JSON object literals into the
// individual literals, in input order. Only brace and quote balance is
// checked; the parts are not decoded.
func Split(input string) ([]string, error) {
	parts := make([]string, 0, len(input)/estimatedBytesPerPartConstant+1)
	state := scannerState{}
	segmentStart := 0

	// All delimiters are ASCII and never occur inside multi-byte UTF-8
	// sequences, so scanning bytes is equivalent to scanning runes here.
	for offset := 0; offset < len(input); offset++ {
		character := input[offset]

		if state.insideString {
			switch {
			case state.escaping:
				state.escaping = false
			case character == escapeCharacterConstant:
				state.escaping = true
			case character == stringDelimiterConstant:
				state.insideString = false
				if state.depth == 0 {
					return nil, &SplitError{Offset: state.looseStart, Err: ErrTrailingGarbage}
				}
			}
			continue
		}

		switch character {
		case stringDelimiterConstant:
			// A string outside any object is garbage once it closes; an
			// unclosed one is reported by the end-of-input checks.
			if state.depth == 0 {
				state.looseStart = offset
			}
			state.insideString = true
		case objectOpenCharacterConstant:
			state.depth++
		case objectCloseCharacterConstant:
			if state.depth == 0 {
				return nil, &SplitError{Offset: offset, Err: ErrMismatchedBraces}
			}
			state.depth--
			if state.depth == 0 {
				parts = append(parts, strings.TrimSpace(input[segmentStart:offset+1]))
				segmentStart = offset + 1
			}
		default:
			if state.depth == 0 && !isWhitespace(character) {
				return nil, &SplitError{Offset: offset, Err: ErrTrailingGarbage}
			}
		}
	}

	switch {
	case state.escaping:
		return nil, &SplitError{Offset: len(input), Err: ErrTrailingBackslash}
	case state.insideString:
		return nil, &SplitError{Offset: len(input), Err: ErrUnterminatedString}
	case state.depth != 0:
		return nil, &SplitError{Offset: len(input), Err: ErrMismatchedBraces}
	}

	return parts, nil
}

func isWhitespace(character byte) bool {
	switch character {
	case ' ', '\t', '\n', '\r', '\v', '\f':
		return true
	default:
		return false
	}
}
