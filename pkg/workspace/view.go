package workspace

import "sync"

// ActiveView holds the view a request acts through. Only the first
// SetViewID call of a request has any effect, including a call with "",
// so the delegated-access context cannot change once established.
type ActiveView struct {
	mu  sync.Mutex
	set bool
	id  string
}

// NewActiveView returns an unset view context
func NewActiveView() *ActiveView {
	return &ActiveView{}
}

// SetViewID sets the view id unless one was set before. It reports whether
// the call took effect.
func (v *ActiveView) SetViewID(id string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.set {
		return false
	}
	v.set = true
	v.id = id
	return true
}

// ViewID returns the active view id, or "" when none is active
func (v *ActiveView) ViewID() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.id
}

// IsSet reports whether SetViewID has been called
func (v *ActiveView) IsSet() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.set
}
