package template

// ActionType identifies the typed step a workflow node performs.
type ActionType string

const (
	// Triggers
	ActionWebhookTrigger  ActionType = "trigger.webhook"
	ActionScheduleTrigger ActionType = "trigger.schedule"
	ActionManualTrigger   ActionType = "trigger.manual"

	// Transforms
	ActionTransform ActionType = "action.transform"
	ActionFilter    ActionType = "action.filter"
	ActionMerge     ActionType = "action.merge"
	ActionDelay     ActionType = "action.delay"

	// Side effects
	ActionHTTP     ActionType = "action.http"
	ActionEmail    ActionType = "action.email"
	ActionDatabase ActionType = "action.database"

	// Known but disallowed integrations. These appear in community and
	// generated graphs; the pipeline substitutes an approved equivalent.
	ActionSlack    ActionType = "action.slack"
	ActionDiscord  ActionType = "action.discord"
	ActionTelegram ActionType = "action.telegram"
	ActionShell    ActionType = "action.shell"
)

// Approved reports whether the action type is on the deployment allow-list.
func (t ActionType) Approved() bool {
	switch t {
	case ActionWebhookTrigger, ActionScheduleTrigger, ActionManualTrigger,
		ActionTransform, ActionFilter, ActionMerge, ActionDelay,
		ActionHTTP, ActionEmail, ActionDatabase:
		return true
	case ActionSlack, ActionDiscord, ActionTelegram, ActionShell:
		return false
	default:
		return false
	}
}

// IsTrigger reports whether the action type starts a workflow.
func (t ActionType) IsTrigger() bool {
	switch t {
	case ActionWebhookTrigger, ActionScheduleTrigger, ActionManualTrigger:
		return true
	default:
		return false
	}
}

// SideEffecting reports whether the action type produces an observable
// effect outside the workflow (sends, writes, calls out).
func (t ActionType) SideEffecting() bool {
	switch t {
	case ActionHTTP, ActionEmail, ActionDatabase:
		return true
	default:
		return false
	}
}

// Substitute returns the approved equivalent for a disallowed action type.
// A blocked chat integration becomes a generic HTTP call against the
// service's inbound-webhook API.
func Substitute(t ActionType) (ActionType, bool) {
	switch t {
	case ActionSlack, ActionDiscord, ActionTelegram:
		return ActionHTTP, true
	case ActionShell:
		return ActionTransform, true
	default:
		return "", false
	}
}

// RequiredParams returns the parameter keys a node of this type must carry
// to be deployable.
func RequiredParams(t ActionType) []string {
	switch t {
	case ActionHTTP:
		return []string{"url", "method"}
	case ActionEmail:
		return []string{"to", "subject"}
	case ActionDatabase:
		return []string{"operation", "table"}
	case ActionScheduleTrigger:
		return []string{"cron"}
	case ActionDelay:
		return []string{"duration"}
	default:
		return nil
	}
}

// PlaceholderValue returns a safe default for a missing required parameter.
// Placeholders keep a repaired graph deployable; the user replaces them
// through the editor afterwards.
func PlaceholderValue(t ActionType, param string) any {
	switch t {
	case ActionHTTP:
		switch param {
		case "url":
			return "https://example.com/hook"
		case "method":
			return "POST"
		}
	case ActionEmail:
		switch param {
		case "to":
			return "{{ $json.userEmail }}"
		case "subject":
			return "Workflow notification"
		}
	case ActionDatabase:
		switch param {
		case "operation":
			return "insert"
		case "table":
			return "events"
		}
	case ActionScheduleTrigger:
		if param == "cron" {
			return "0 9 * * *"
		}
	case ActionDelay:
		if param == "duration" {
			return "5m"
		}
	}
	return ""
}
