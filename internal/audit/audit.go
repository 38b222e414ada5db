// Package audit keeps a queryable trail of fleet mutations.
package audit

import "time"

// Action describes what was done. Values match the cluster's action names.
type Action string

const (
	ActionDroidStarted       Action = "droid_started"
	ActionDroidRemoved       Action = "droid_removed"
	ActionDroidDisconnected  Action = "droid_disconnected"
	ActionDroidReloaded      Action = "droid_reloaded"
	ActionExtensionInstalled Action = "extension_installed"
	ActionExtensionRemoved   Action = "extension_removed"
	ActionKeyAdded           Action = "key_added"
	ActionKeyRemoved         Action = "key_removed"
)

// ActorSystem is recorded when no actor is attached to the context.
const ActorSystem = "system"

// Entry is a single audit trail record.
type Entry struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Actor     string    `json:"actor"`
	Action    Action    `json:"action"`
	Droid     string    `json:"droid"`
	Summary   string    `json:"summary"`
}
