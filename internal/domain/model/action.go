package model

import "fmt"

// Action is one of the lifecycle operations.
type Action string

const (
	ActionDownload Action = "download"
	ActionDeploy   Action = "deploy"
	ActionUpgrade  Action = "upgrade"
	ActionRollback Action = "rollback"
	ActionStop     Action = "stop"
)

// TakesRevision reports whether the action needs a repository and ref.
func (a Action) TakesRevision() bool {
	return a == ActionDownload || a == ActionDeploy || a == ActionUpgrade
}

// ParseAction converts s to an Action.
func ParseAction(s string) (Action, error) {
	switch a := Action(s); a {
	case ActionDownload, ActionDeploy, ActionUpgrade, ActionRollback, ActionStop:
		return a, nil
	}
	return "", fmt.Errorf("unknown action %q", s)
}
