package dispatch_test

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/temirov/periodic-audit/internal/dispatch"
)

const (
	testReportFilePathConstant  = "/var/log/periodic-audit/report.txt"
	testPreviousContentConstant = "previous report\n"
)

type prefixPathExpander struct {
	prefix string
}

func (expander prefixPathExpander) Expand(candidatePath string) string {
	return strings.Replace(candidatePath, "~", expander.prefix, 1)
}

func expectedFileRecord(body string) string {
	return body + "\n\n\n" + strings.Repeat("=", 58) + "\n\n"
}

func TestFileChannelWritesReportWithSeparator(testInstance *testing.T) {
	testCases := []struct {
		name            string
		appendReports   bool
		expectedContent string
	}{
		{
			name:            "truncate_replaces_previous_report",
			appendReports:   false,
			expectedContent: expectedFileRecord(testBodyConstant),
		},
		{
			name:            "append_keeps_previous_report",
			appendReports:   true,
			expectedContent: testPreviousContentConstant + expectedFileRecord(testBodyConstant),
		},
	}

	for testCaseIndex, testCase := range testCases {
		testInstance.Run(fmt.Sprintf(testMailSubtestTemplateConstant, testCaseIndex, testCase.name), func(testInstance *testing.T) {
			fileSystem := afero.NewMemMapFs()
			require.NoError(testInstance, afero.WriteFile(fileSystem, testReportFilePathConstant, []byte(testPreviousContentConstant), 0o644))

			channel := dispatch.NewFileChannel(fileSystem, dispatch.FileConfiguration{Append: testCase.appendReports, Path: testReportFilePathConstant}, nil)
			require.Equal(testInstance, "file", channel.Name())
			require.NoError(testInstance, channel.Send(context.Background(), dispatch.Payload{Subject: testSubjectConstant, Body: testBodyConstant}))

			content, readError := afero.ReadFile(fileSystem, testReportFilePathConstant)
			require.NoError(testInstance, readError)
			require.Equal(testInstance, testCase.expectedContent, string(content))
		})
	}
}

func TestFileChannelAppendsConsecutiveReports(testInstance *testing.T) {
	fileSystem := afero.NewMemMapFs()
	channel := dispatch.NewFileChannel(fileSystem, dispatch.FileConfiguration{Append: true, Path: "~/audit.log"}, prefixPathExpander{prefix: "/home/auditor"})

	require.NoError(testInstance, channel.Send(context.Background(), dispatch.Payload{Body: "first"}))
	require.NoError(testInstance, channel.Send(context.Background(), dispatch.Payload{Body: "second"}))

	content, readError := afero.ReadFile(fileSystem, "/home/auditor/audit.log")
	require.NoError(testInstance, readError)
	require.Equal(testInstance, expectedFileRecord("first")+expectedFileRecord("second"), string(content))
}

func TestFileChannelReportsOpenFailures(testInstance *testing.T) {
	fileSystem := afero.NewReadOnlyFs(afero.NewMemMapFs())
	channel := dispatch.NewFileChannel(fileSystem, dispatch.FileConfiguration{Path: testReportFilePathConstant}, nil)

	sendError := channel.Send(context.Background(), dispatch.Payload{Body: testBodyConstant})
	require.Error(testInstance, sendError)
	require.Contains(testInstance, sendError.Error(), "open report file '"+testReportFilePathConstant+"'")
}

func TestFileChannelRequiresPath(testInstance *testing.T) {
	channel := dispatch.NewFileChannel(afero.NewMemMapFs(), dispatch.FileConfiguration{}, nil)

	require.ErrorIs(testInstance, channel.Send(context.Background(), dispatch.Payload{Body: testBodyConstant}), dispatch.ErrReportFilePathNotConfigured)
}

func TestFileChannelCreatesFileWithReadablePermissions(testInstance *testing.T) {
	fileSystem := afero.NewMemMapFs()
	channel := dispatch.NewFileChannel(fileSystem, dispatch.FileConfiguration{Path: testReportFilePathConstant}, nil)
	require.NoError(testInstance, channel.Send(context.Background(), dispatch.Payload{Body: testBodyConstant}))

	fileInfo, statError := fileSystem.Stat(testReportFilePathConstant)
	require.NoError(testInstance, statError)
	require.Equal(testInstance, os.FileMode(0o644), fileInfo.Mode().Perm())
}
