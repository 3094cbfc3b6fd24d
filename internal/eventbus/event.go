// Package eventbus implements a publish-subscribe fabric that couples
// the Health Monitor, Recovery Manager, and Provider Lifecycle without
// any of them holding a direct reference to another.
package eventbus

import "time"

// Type is the closed taxonomy of events carried on the bus. New kinds
// are added here, never inferred from payload shape.
type Type string

const (
	ProviderRestart      Type = "provider_restart"
	ProviderRestarted    Type = "provider_restarted"
	ProviderReconfigure  Type = "provider_reconfigure"
	SubsystemHealthCheck Type = "subsystem_health_check"
	RecoveryStarted      Type = "recovery_started"
	RecoveryCompleted    Type = "recovery_completed"
	RecoveryExhausted    Type = "recovery_exhausted"
	ConfigReloaded       Type = "config_reloaded"
	Shutdown             Type = "shutdown"
	Reload               Type = "reload"
	Respawn              Type = "respawn"
	CacheClear           Type = "cache_clear"
	IndexRebuild         Type = "index_rebuild"
	IndexClear           Type = "index_clear"
	IndexOptimize        Type = "index_optimize"
	BackupCreate         Type = "backup_create"
	BackupRestore        Type = "backup_restore"
	SyncCompleted        Type = "sync_completed"
)

// Event is the envelope carried over the bus. Payload holds the
// variant-specific fields named in the taxonomy (e.g. provider_type,
// provider_id, retry_attempt) as a flat string-keyed map so both the
// in-process and NATS backends can move it without a type switch.
type Event struct {
	Type      Type              `json:"type"`
	Payload   map[string]string `json:"payload,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// New builds an Event with the given type and payload. CreatedAt is
// stamped by Bus.Publish at send time.
func New(typ Type, payload map[string]string) Event {
	return Event{Type: typ, Payload: payload}
}
