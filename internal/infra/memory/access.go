package memory

import (
	"context"
	"sync"
)

// StaticAccessControl grants admin rights from a fixed list. Global admins
// administer every conversation.
type StaticAccessControl struct {
	mu     sync.RWMutex
	global map[string]struct{}
	byConv map[string]map[string]struct{}
}

func NewStaticAccessControl(globalAdmins []string) *StaticAccessControl {
	a := &StaticAccessControl{
		global: make(map[string]struct{}, len(globalAdmins)),
		byConv: make(map[string]map[string]struct{}),
	}
	for _, id := range globalAdmins {
		a.global[id] = struct{}{}
	}
	return a
}

// Grant makes userID an admin of conversationID.
func (a *StaticAccessControl) Grant(conversationID, userID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	admins, ok := a.byConv[conversationID]
	if !ok {
		admins = make(map[string]struct{})
		a.byConv[conversationID] = admins
	}
	admins[userID] = struct{}{}
}

func (a *StaticAccessControl) IsAdmin(_ context.Context, conversationID, userID string) (bool, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if _, ok := a.global[userID]; ok {
		return true, nil
	}
	_, ok := a.byConv[conversationID][userID]
	return ok, nil
}
