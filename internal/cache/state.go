package cache

// EntityState is the change state of an entity.
type EntityState int

const (
	Detached EntityState = iota
	Added
	Unchanged
	Modified
	Deleted
)

var stateNames = [...]string{
	Detached:  "Detached",
	Added:     "Added",
	Unchanged: "Unchanged",
	Modified:  "Modified",
	Deleted:   "Deleted",
}

// String returns the state name.
func (s EntityState) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "Unknown"
	}
	return stateNames[s]
}

// ParseEntityState parses a state name as produced by String.
func ParseEntityState(name string) (EntityState, bool) {
	for i, n := range stateNames {
		if n == name {
			return EntityState(i), true
		}
	}
	return Detached, false
}

// IsDeletedOrDetached reports whether the entity is on its way out of, or
// already outside, the cache.
func (s EntityState) IsDeletedOrDetached() bool {
	return s == Deleted || s == Detached
}

// IsAddedModifiedOrDeleted reports whether the entity has pending changes.
func (s EntityState) IsAddedModifiedOrDeleted() bool {
	return s == Added || s == Modified || s == Deleted
}

// MergeStrategy resolves a collision between an incoming entity and a
// resident one sharing its key.
type MergeStrategy int

const (
	// Disallowed fails the attach with DUPLICATE_IDENTITY.
	Disallowed MergeStrategy = iota
	// PreserveChanges overwrites an Unchanged resident and keeps a dirty one.
	PreserveChanges
	// OverwriteChanges always copies incoming values onto the resident.
	OverwriteChanges
	// SkipMerge returns the resident untouched.
	SkipMerge
)

var mergeNames = [...]string{
	Disallowed:       "Disallowed",
	PreserveChanges:  "PreserveChanges",
	OverwriteChanges: "OverwriteChanges",
	SkipMerge:        "SkipMerge",
}

// String returns the strategy name.
func (m MergeStrategy) String() string {
	if m < 0 || int(m) >= len(mergeNames) {
		return "Unknown"
	}
	return mergeNames[m]
}

// ParseMergeStrategy parses a strategy name as produced by String.
func ParseMergeStrategy(name string) (MergeStrategy, bool) {
	for i, n := range mergeNames {
		if n == name {
			return MergeStrategy(i), true
		}
	}
	return Disallowed, false
}
