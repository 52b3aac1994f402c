// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package identity

import (
	"sync"

	"github.com/AccelByte/extend-session-matchmaker/pkg/constants"
)

// Identity resolves the player on whose behalf a component runs.
type Identity interface {
	LocalPlayerID() string
}

// Friends answers friendship queries against a named friends list.
type Friends interface {
	IsFriend(localPlayerID, friendID, listName string) bool
}

// LocalPlayer is a fixed Identity.
type LocalPlayer string

func (p LocalPlayer) LocalPlayerID() string {
	return string(p)
}

// StaticFriends is an in-memory, symmetric friends graph.
type StaticFriends struct {
	mu    sync.RWMutex
	lists map[string]map[string]map[string]struct{}
}

func NewStaticFriends() *StaticFriends {
	return &StaticFriends{lists: make(map[string]map[string]map[string]struct{})}
}

// Befriend links two players on the default list.
func (f *StaticFriends) Befriend(a, b string) {
	f.BefriendOn(constants.DefaultFriendsList, a, b)
}

// BefriendOn links two players on the named list.
func (f *StaticFriends) BefriendOn(listName, a, b string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.link(listName, a, b)
	f.link(listName, b, a)
}

func (f *StaticFriends) link(listName, from, to string) {
	list, ok := f.lists[listName]
	if !ok {
		list = make(map[string]map[string]struct{})
		f.lists[listName] = list
	}
	friends, ok := list[from]
	if !ok {
		friends = make(map[string]struct{})
		list[from] = friends
	}
	friends[to] = struct{}{}
}

// Unfriend removes the link between two players on every list.
func (f *StaticFriends) Unfriend(a, b string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, list := range f.lists {
		delete(list[a], b)
		delete(list[b], a)
	}
}

func (f *StaticFriends) IsFriend(localPlayerID, friendID, listName string) bool {
	if listName == "" {
		listName = constants.DefaultFriendsList
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	_, ok := f.lists[listName][localPlayerID][friendID]
	return ok
}
