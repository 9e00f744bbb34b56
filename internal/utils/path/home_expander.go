package pathutils

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const (
	tildeSymbolConstant              = "~"
	forwardSlashSeparatorConstant    = "/"
	homeRelativePrefixLengthConstant = len(tildeSymbolConstant) + 1
)

// HomeDirectoryProvider resolves the current user's home directory path.
type HomeDirectoryProvider func() (string, error)

// HomeExpander converts leading `~` shortcuts to paths under the user's home
// directory. The home directory is resolved once, on first use.
type HomeExpander struct {
	homeDirectoryProvider HomeDirectoryProvider
	resolveHomeDirectory  func() (string, error)
	initializationGuard   sync.Once
}

// NewHomeExpander constructs a HomeExpander using the operating system lookup.
func NewHomeExpander() *HomeExpander {
	return NewHomeExpanderWithProvider(os.UserHomeDir)
}

// NewHomeExpanderWithProvider constructs a HomeExpander with a custom provider.
func NewHomeExpanderWithProvider(provider HomeDirectoryProvider) *HomeExpander {
	if provider == nil {
		provider = os.UserHomeDir
	}
	return &HomeExpander{homeDirectoryProvider: provider}
}

// Expand resolves `~` and `~/rest` to the user's home directory. Other paths,
// including `~user` forms, are returned unchanged, as is every path when the
// home directory cannot be determined.
func (expander *HomeExpander) Expand(candidatePath string) string {
	if expander == nil || !strings.HasPrefix(candidatePath, tildeSymbolConstant) {
		return candidatePath
	}

	isBareTilde := candidatePath == tildeSymbolConstant
	isHomeRelative := strings.HasPrefix(candidatePath, tildeSymbolConstant+forwardSlashSeparatorConstant) ||
		strings.HasPrefix(candidatePath, tildeSymbolConstant+string(os.PathSeparator))
	if !isBareTilde && !isHomeRelative {
		return candidatePath
	}

	expander.initializationGuard.Do(func() {
		homeDirectory, homeDirectoryError := expander.homeDirectoryProvider()
		expander.resolveHomeDirectory = func() (string, error) {
			return homeDirectory, homeDirectoryError
		}
	})
	homeDirectory, homeDirectoryError := expander.resolveHomeDirectory()
	if homeDirectoryError != nil || len(homeDirectory) == 0 {
		return candidatePath
	}

	if isBareTilde {
		return homeDirectory
	}
	return filepath.Join(homeDirectory, candidatePath[homeRelativePrefixLengthConstant:])
}

// ExpandAll expands every path, preserving order.
func (expander *HomeExpander) ExpandAll(candidatePaths []string) []string {
	expandedPaths := make([]string, 0, len(candidatePaths))
	for _, candidatePath := range candidatePaths {
		expandedPaths = append(expandedPaths, expander.Expand(candidatePath))
	}
	return expandedPaths
}
