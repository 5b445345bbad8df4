package action_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tombee/trackerbridge/internal/action"
	trackererrors "github.com/tombee/trackerbridge/pkg/errors"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "actions.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	path := writeConfig(t, `
actions:
  - whiteboard_tag: devtest
    jira_project_key: JBI
    steps:
      new:
        - create_issue
        - add_link_to_bugzilla
`)

	reg, err := action.Load(path)
	require.NoError(t, err)

	tag, act, ok := reg.LookupAction([]string{"bugzilla", "devtest", "[devtest]"})
	require.True(t, ok)
	require.Equal(t, "devtest", tag)
	require.Equal(t, "JBI", act.JiraProjectKey)
	require.True(t, act.Parameters.SyncWhiteboardLabels)
}

func TestLoad_UnknownStepGroup(t *testing.T) {
	path := writeConfig(t, `
actions:
  - whiteboard_tag: devtest
    steps:
      bogus:
        - create_issue
`)

	_, err := action.Load(path)
	require.Error(t, err)
	var cfgErr *trackererrors.ConfigError
	require.True(t, trackererrors.As(err, &cfgErr))
}

func TestLoad_UnknownStepName(t *testing.T) {
	path := writeConfig(t, `
actions:
  - whiteboard_tag: devtest
    steps:
      new:
        - not_a_real_step
`)

	_, err := action.Load(path)
	require.Error(t, err)
}

func TestLookupAction_NoMatch(t *testing.T) {
	reg := action.NewRegistry([]action.Action{
		{WhiteboardTag: "other"},
	})

	_, _, ok := reg.LookupAction([]string{"bugzilla", "devtest"})
	require.False(t, ok)
}

func TestLookupAction_CaseInsensitive(t *testing.T) {
	reg := action.NewRegistry([]action.Action{
		{WhiteboardTag: "DevTest"},
	})

	tag, act, ok := reg.LookupAction([]string{"bugzilla", "devtest"})
	require.True(t, ok)
	require.Equal(t, "devtest", tag)
	require.Equal(t, "DevTest", act.WhiteboardTag)
}

func TestStepsForGroup_DefaultsWhenUnconfigured(t *testing.T) {
	act := &action.Action{WhiteboardTag: "devtest", Parameters: action.DefaultParams()}
	got := action.StepsForGroup(act, "new")
	require.Equal(t, action.DefaultSteps["new"], got)
}
