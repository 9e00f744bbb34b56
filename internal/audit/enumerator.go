package audit

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/temirov/periodic-audit/internal/report"
)

const (
	missingPathMessageTemplateConstant    = "WARNING: '%s' does not exist; skipped."
	unstatablePathMessageTemplateConstant = "WARNING: Failed to stat path '%s': %v; skipped."
	readDirectoryFailureTemplateConstant  = "Error reading directory '%s': %v"
	statEntryFailureTemplateConstant      = "Error stating directory entry in '%s': %v"
	directoryErrorTemplateConstant        = "%s %s: %v"
	readDirectoryOperationConstant        = "read directory"
	statEntryOperationConstant            = "stat entry of"
	executePermissionMaskConstant         = fs.FileMode(0o111)
	estimatedBinariesPerWatchPathConstant = 2
)

// DirectoryError reports a watch directory that could not be enumerated.
type DirectoryError struct {
	Path      string
	Operation string
	Err       error
}

// Error describes the failed operation.
func (directoryError *DirectoryError) Error() string {
	return fmt.Sprintf(directoryErrorTemplateConstant, directoryError.Operation, directoryError.Path, directoryError.Err)
}

// Unwrap exposes the filesystem error.
func (directoryError *DirectoryError) Unwrap() error {
	return directoryError.Err
}

// ReportMessage renders the failure the way it appears in an audit report.
func (directoryError *DirectoryError) ReportMessage() string {
	if directoryError.Operation == statEntryOperationConstant {
		return fmt.Sprintf(statEntryFailureTemplateConstant, directoryError.Path, directoryError.Err)
	}
	return fmt.Sprintf(readDirectoryFailureTemplateConstant, directoryError.Path, directoryError.Err)
}

// BinaryEnumerator resolves watch paths into the executables to audit.
type BinaryEnumerator struct {
	fileSystem   afero.Fs
	pathExpander PathExpander
}

// NewBinaryEnumerator constructs a BinaryEnumerator. A nil file system selects
// the operating system one.
func NewBinaryEnumerator(fileSystem afero.Fs, pathExpander PathExpander) *BinaryEnumerator {
	if fileSystem == nil {
		fileSystem = afero.NewOsFs()
	}
	if pathExpander == nil {
		pathExpander = identityPathExpander{}
	}
	return &BinaryEnumerator{fileSystem: fileSystem, pathExpander: pathExpander}
}

// Enumerate returns the audit candidates for paths in configured order.
// Directories contribute their immediate entries that are regular files with an
// execute bit; any other path that exists is taken as is. Missing and
// unstatable paths are recorded as advisory messages on draft. A directory that
// cannot be listed, or whose entries cannot be inspected, yields a *DirectoryError.
func (enumerator *BinaryEnumerator) Enumerate(paths []string, draft *report.Report) ([]string, error) {
	binaries := make([]string, 0, len(paths)*estimatedBinariesPerWatchPathConstant)

	for _, configuredPath := range paths {
		candidatePath := enumerator.pathExpander.Expand(configuredPath)

		pathInfo, statError := enumerator.fileSystem.Stat(candidatePath)
		if statError != nil {
			if errors.Is(statError, fs.ErrNotExist) {
				draft.AddMessage(fmt.Sprintf(missingPathMessageTemplateConstant, candidatePath))
			} else {
				draft.AddMessage(fmt.Sprintf(unstatablePathMessageTemplateConstant, candidatePath, statError))
			}
			continue
		}

		if !pathInfo.IsDir() {
			binaries = append(binaries, candidatePath)
			continue
		}

		directoryBinaries, directoryError := enumerator.listExecutables(candidatePath)
		if directoryError != nil {
			return nil, directoryError
		}
		binaries = append(binaries, directoryBinaries...)
	}

	return binaries, nil
}

func (enumerator *BinaryEnumerator) listExecutables(directoryPath string) ([]string, error) {
	directoryEntries, readError := afero.ReadDir(enumerator.fileSystem, directoryPath)
	if readError != nil {
		return nil, &DirectoryError{Path: directoryPath, Operation: readDirectoryOperationConstant, Err: readError}
	}

	executables := make([]string, 0, len(directoryEntries))
	for _, directoryEntry := range directoryEntries {
		entryPath := filepath.Join(directoryPath, directoryEntry.Name())

		// Stat follows symbolic links, so a dangling link fails the listing.
		entryInfo, statError := enumerator.fileSystem.Stat(entryPath)
		if statError != nil {
			return nil, &DirectoryError{Path: directoryPath, Operation: statEntryOperationConstant, Err: statError}
		}

		if !entryInfo.Mode().IsRegular() || entryInfo.Mode().Perm()&executePermissionMaskConstant == 0 {
			continue
		}
		executables = append(executables, entryPath)
	}

	return executables, nil
}
