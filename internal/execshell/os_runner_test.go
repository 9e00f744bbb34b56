package execshell

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildEnvironmentRemovesAndOverridesVariables(testInstance *testing.T) {
	inheritedEnvironment := []string{"PATH=/usr/bin", "TERM=xterm-256color", "COLORTERM=truecolor", "HOME=/root", "LANG=C.UTF-8"}
	details := CommandDetails{
		EnvironmentVariables:        map[string]string{"LANG": "en_US.UTF-8"},
		RemovedEnvironmentVariables: []string{"TERM", "COLORTERM"},
	}

	environment := buildEnvironment(inheritedEnvironment, details)

	require.Equal(testInstance, []string{"PATH=/usr/bin", "HOME=/root", "LANG=en_US.UTF-8"}, environment)
}

func TestBuildEnvironmentKeepsInheritedVariablesWithoutChanges(testInstance *testing.T) {
	inheritedEnvironment := []string{"PATH=/usr/bin", "EMPTY="}

	environment := buildEnvironment(inheritedEnvironment, CommandDetails{})

	require.Equal(testInstance, inheritedEnvironment, environment)
}
