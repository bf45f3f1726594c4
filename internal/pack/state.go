package pack

// State is a pack orchestrator state.
type State string

const (
	StateInit           State = "init"
	StateConfigParsed   State = "config_parsed"
	StateRegistryLoaded State = "registry_loaded"
	StateCacheResolved  State = "cache_resolved"
	StateMaterialized   State = "materialized"
	StatePacking        State = "packing"
	StateDone           State = "done"
	StateFailed         State = "failed"
)

// Terminal reports whether no further transition follows s.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}
