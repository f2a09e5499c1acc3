package rampart

import "strings"

// ActionClass is the coarse mutation class of a requested action.
type ActionClass int

const (
	// ActionRead does not mutate state.
	ActionRead ActionClass = iota

	// ActionWrite mutates state.
	ActionWrite

	// ActionDestructive removes or irreversibly alters state.
	ActionDestructive
)

// String returns the wire name of the class.
func (c ActionClass) String() string {
	switch c {
	case ActionWrite:
		return "write"
	case ActionDestructive:
		return "destructive"
	default:
		return "read"
	}
}

var destructiveActions = []string{
	"delete", "destroy", "remove", "purge", "revoke", "wipe", "drop",
}

var writeActions = []string{
	"write", "create", "update", "edit", "modify", "upload", "transfer",
	"grant", "assign", "set", "rotate", "publish", "admin",
}

// classifyAction buckets a requested action name into read, write, or
// destructive. Action names may be namespaced ("document:delete") or
// globbed ("admin:*"); classification considers the last segment and
// falls back to substring matching for compound names.
func classifyAction(action string) ActionClass {
	name := strings.ToLower(action)
	// "admin:*" classifies by the namespace, not the glob.
	name = strings.TrimRight(name, "*:")
	if i := strings.LastIndex(name, ":"); i >= 0 {
		name = name[i+1:]
	}

	for _, d := range destructiveActions {
		if name == d || matchGlob(d+"*", name) {
			return ActionDestructive
		}
	}
	for _, w := range writeActions {
		if name == w || matchGlob(w+"*", name) {
			return ActionWrite
		}
	}
	return ActionRead
}

// matchGlob checks if a pattern matches a value with simple glob
// support. Supports a trailing '*' (e.g., "delete*" matches
// "delete_all").
func matchGlob(pattern, value string) bool {
	if pattern == "*" {
		return true
	}
	if pattern == value {
		return true
	}
	if strings.HasSuffix(pattern, "*") {
		return strings.HasPrefix(value, strings.TrimSuffix(pattern, "*"))
	}
	return false
}
