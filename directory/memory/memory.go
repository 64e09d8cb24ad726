// Package memory is an in-process goAccount.UserDirectory. Lookups by
// username and email are case-insensitive. An identifier containing @ is
// looked up as an email, anything else as a username.
package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"

	goAccount "github.com/MrEthical07/goAccount"
)

// Directory is safe for concurrent use.
type Directory struct {
	mu      sync.RWMutex
	users   map[string]goAccount.UserRecord
	byName  map[string]string
	byEmail map[string]string
}

func New() *Directory {
	return &Directory{
		users:   make(map[string]goAccount.UserRecord),
		byName:  make(map[string]string),
		byEmail: make(map[string]string),
	}
}

func fold(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func (d *Directory) GetByIdentifier(_ context.Context, identifier string) (goAccount.UserRecord, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	key := fold(identifier)
	index := d.byName
	if strings.Contains(key, "@") {
		index = d.byEmail
	}
	id, ok := index[key]
	if !ok {
		return goAccount.UserRecord{}, goAccount.ErrUserNotFound
	}
	return d.users[id], nil
}

func (d *Directory) GetByID(_ context.Context, userID string) (goAccount.UserRecord, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	user, ok := d.users[userID]
	if !ok {
		return goAccount.UserRecord{}, goAccount.ErrUserNotFound
	}
	return user, nil
}

func (d *Directory) GetByEmail(_ context.Context, email string) (goAccount.UserRecord, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	id, ok := d.byEmail[fold(email)]
	if !ok {
		return goAccount.UserRecord{}, goAccount.ErrUserNotFound
	}
	return d.users[id], nil
}

// Create stores user. A username or email already taken, ignoring case,
// yields goAccount.ErrConflict. Usernames may not contain @.
func (d *Directory) Create(_ context.Context, user goAccount.UserRecord) (goAccount.UserRecord, error) {
	name, email := fold(user.Username), fold(user.Email)
	if strings.Contains(name, "@") {
		return goAccount.UserRecord{}, fmt.Errorf("%w: username must not contain @", goAccount.ErrBadRequest)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.users[user.UserID]; ok {
		return goAccount.UserRecord{}, goAccount.ErrConflict
	}
	if _, ok := d.byName[name]; ok {
		return goAccount.UserRecord{}, goAccount.ErrConflict
	}
	if _, ok := d.byEmail[email]; ok {
		return goAccount.UserRecord{}, goAccount.ErrConflict
	}

	d.users[user.UserID] = user
	d.byName[name] = user.UserID
	d.byEmail[email] = user.UserID
	return user, nil
}

func (d *Directory) UpdatePasswordHash(_ context.Context, userID, hash string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	user, ok := d.users[userID]
	if !ok {
		return goAccount.ErrUserNotFound
	}
	user.PasswordHash = hash
	d.users[userID] = user
	return nil
}

// Len returns the number of stored users.
func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.users)
}
