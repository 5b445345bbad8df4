package action

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	trackererrors "github.com/tombee/trackerbridge/pkg/errors"
)

// KnownStepNames is the closed table of step names the step library
// implements. Configuration naming any other step fails validation loudly
// at load, per the "dynamic step names -> tagged dispatch" design note.
var KnownStepNames = map[string]struct{}{
	"create_issue":                  {},
	"add_link_to_bugzilla":         {},
	"add_link_to_jira":             {},
	"maybe_delete_duplicate":       {},
	"update_issue_summary":         {},
	"create_comment":               {},
	"add_jira_comments_for_changes": {},
	"maybe_assign_jira_user":       {},
	"maybe_update_issue_status":    {},
	"maybe_update_issue_resolution": {},
}

// knownStepGroups is the closed set of operation-group keys an action's
// steps mapping may use.
var knownStepGroups = map[string]struct{}{
	"new":      {},
	"existing": {},
	"comment":  {},
}

// DefaultSteps are the step lists used when an action doesn't configure a
// given group.
var DefaultSteps = map[string][]string{
	"new":      {"create_issue", "maybe_delete_duplicate", "add_link_to_bugzilla", "add_link_to_jira"},
	"existing": {"update_issue_summary", "add_jira_comments_for_changes"},
	"comment":  {"create_comment"},
}

// Registry is the immutable, load-once table of configured actions.
type Registry struct {
	actions []Action
}

// NewRegistry wraps an already-validated action list. Prefer Load for
// reading configuration from disk.
func NewRegistry(actions []Action) *Registry {
	return &Registry{actions: actions}
}

// LookupAction returns the first configured action whose whiteboard tag
// matches one of tags case-insensitively. Tags are checked in
// Bug.Tags()'s deterministic order (bracket-stripped before bracketed).
func (r *Registry) LookupAction(tags []string) (matchedTag string, act *Action, ok bool) {
	for _, tag := range tags {
		lower := strings.ToLower(tag)
		for i := range r.actions {
			if strings.ToLower(r.actions[i].WhiteboardTag) == lower {
				return tag, &r.actions[i], true
			}
		}
	}
	return "", nil, false
}

// configFile is the on-disk shape of the action registry YAML file.
type configFile struct {
	Actions []configAction `yaml:"actions"`
}

type configAction struct {
	WhiteboardTag  string              `yaml:"whiteboard_tag"`
	JiraProjectKey string              `yaml:"jira_project_key"`
	AllowPrivate   bool                `yaml:"allow_private"`
	SyncWhiteboardLabels *bool         `yaml:"sync_whiteboard_labels"`
	StatusMap      map[string]string   `yaml:"status_map"`
	ResolutionMap  map[string]string   `yaml:"resolution_map"`
	JiraComponents struct {
		SetCustomComponents []string `yaml:"set_custom_components"`
	} `yaml:"jira_components"`
	Steps map[string][]string `yaml:"steps"`
}

// Load reads and validates the action registry from a YAML file at path.
// Every failure is a *errors.ConfigError naming the offending key, and is
// fatal: the registry is immutable after startup, so a bad file must not
// start the service.
func Load(path string) (*Registry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, &trackererrors.ConfigError{Key: path, Reason: "reading action config file", Cause: err}
	}

	var parsed configFile
	if err := yaml.Unmarshal(raw, &parsed); err != nil {
		return nil, &trackererrors.ConfigError{Key: path, Reason: "parsing action config yaml", Cause: err}
	}

	actions := make([]Action, 0, len(parsed.Actions))
	for _, ca := range parsed.Actions {
		act, err := fromConfig(ca)
		if err != nil {
			return nil, err
		}
		actions = append(actions, act)
	}

	return NewRegistry(actions), nil
}

func fromConfig(ca configAction) (Action, error) {
	if ca.WhiteboardTag == "" {
		return Action{}, &trackererrors.ConfigError{Key: "whiteboard_tag", Reason: "must be non-empty"}
	}

	for group := range ca.Steps {
		if _, ok := knownStepGroups[group]; !ok {
			return Action{}, &trackererrors.ConfigError{
				Key:    fmt.Sprintf("actions[%s].steps", ca.WhiteboardTag),
				Reason: fmt.Sprintf("unknown step group %q, must be one of new/existing/comment", group),
			}
		}
		for _, name := range ca.Steps[group] {
			if _, ok := KnownStepNames[name]; !ok {
				return Action{}, &trackererrors.ConfigError{
					Key:    fmt.Sprintf("actions[%s].steps[%s]", ca.WhiteboardTag, group),
					Reason: fmt.Sprintf("unknown step name %q", name),
				}
			}
		}
	}

	params := DefaultParams()
	params.JiraProjectKey = ca.JiraProjectKey
	if ca.SyncWhiteboardLabels != nil {
		params.SyncWhiteboardLabels = *ca.SyncWhiteboardLabels
	}
	if ca.StatusMap != nil {
		params.StatusMap = ca.StatusMap
	}
	if ca.ResolutionMap != nil {
		params.ResolutionMap = ca.ResolutionMap
	}
	params.JiraComponents = JiraComponents{SetCustomComponents: ca.JiraComponents.SetCustomComponents}
	params.AllowPrivate = ca.AllowPrivate
	params.Steps = ca.Steps

	return Action{
		WhiteboardTag:  ca.WhiteboardTag,
		JiraProjectKey: ca.JiraProjectKey,
		AllowPrivate:   ca.AllowPrivate,
		Parameters:     params,
	}, nil
}

// StepsForGroup returns the action's configured steps for group, falling
// back to DefaultSteps when the action doesn't specify that group.
func StepsForGroup(act *Action, group string) []string {
	if names, ok := act.StepsFor(group); ok {
		return names
	}
	return DefaultSteps[group]
}
