package basket

import "sync"

// userLocker hands out one mutex per user: a checkout must not interleave
// with any other mutation on the same basket, and the underlying stores do
// not serialize across calls by themselves.
type userLocker struct {
	mutex sync.Mutex
	locks map[string]*sync.Mutex
}

func newUserLocker() *userLocker {
	return &userLocker{
		locks: map[string]*sync.Mutex{},
	}
}

// lock acquires the mutex of the user and returns the matching unlock.
func (l *userLocker) lock(userID string) func() {
	l.mutex.Lock()
	userMutex, found := l.locks[userID]
	if !found {
		userMutex = &sync.Mutex{}
		l.locks[userID] = userMutex
	}
	l.mutex.Unlock()

	userMutex.Lock()

	return userMutex.Unlock
}
