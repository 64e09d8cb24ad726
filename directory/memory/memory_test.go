package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"

	goAccount "github.com/MrEthical07/goAccount"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ goAccount.UserDirectory = (*Directory)(nil)

func alice() goAccount.UserRecord {
	return goAccount.UserRecord{
		UserID:       "4f7b0c1e-0000-4000-8000-000000000001",
		Username:     "Alice",
		Email:        "Alice@Example.com",
		PasswordHash: "$argon2id$stub",
		Role:         goAccount.RoleDeveloper,
	}
}

func TestCreateAndLookup(t *testing.T) {
	d := New()
	ctx := context.Background()

	_, err := d.Create(ctx, alice())
	require.NoError(t, err)

	for _, id := range []string{"alice", "ALICE", "alice@example.com"} {
		got, err := d.GetByIdentifier(ctx, id)
		require.NoError(t, err, id)
		assert.Equal(t, alice().UserID, got.UserID)
	}

	got, err := d.GetByEmail(ctx, "alice@EXAMPLE.com")
	require.NoError(t, err)
	assert.Equal(t, goAccount.RoleDeveloper, got.Role)

	got, err = d.GetByID(ctx, alice().UserID)
	require.NoError(t, err)
	assert.Equal(t, "Alice", got.Username)
}

func TestNotFound(t *testing.T) {
	d := New()
	ctx := context.Background()

	_, err := d.GetByIdentifier(ctx, "ghost")
	assert.ErrorIs(t, err, goAccount.ErrUserNotFound)
	_, err = d.GetByID(ctx, "nope")
	assert.ErrorIs(t, err, goAccount.ErrUserNotFound)
	_, err = d.GetByEmail(ctx, "ghost@example.com")
	assert.ErrorIs(t, err, goAccount.ErrUserNotFound)
	assert.ErrorIs(t, d.UpdatePasswordHash(ctx, "nope", "h"), goAccount.ErrUserNotFound)
}

func TestCreateConflicts(t *testing.T) {
	d := New()
	ctx := context.Background()
	_, err := d.Create(ctx, alice())
	require.NoError(t, err)

	sameName := alice()
	sameName.UserID = "other-1"
	sameName.Email = "new@example.com"
	_, err = d.Create(ctx, sameName)
	assert.ErrorIs(t, err, goAccount.ErrConflict)

	sameEmail := alice()
	sameEmail.UserID = "other-2"
	sameEmail.Username = "alice2"
	sameEmail.Email = "ALICE@example.com"
	_, err = d.Create(ctx, sameEmail)
	assert.ErrorIs(t, err, goAccount.ErrConflict)

	assert.Equal(t, 1, d.Len())
}

func TestIdentifierNamespacesAreSeparate(t *testing.T) {
	d := New()
	ctx := context.Background()
	_, err := d.Create(ctx, alice())
	require.NoError(t, err)

	squatter := goAccount.UserRecord{
		UserID:   "other-3",
		Username: "alice@example.com",
		Email:    "mallory@example.com",
	}
	_, err = d.Create(ctx, squatter)
	assert.ErrorIs(t, err, goAccount.ErrBadRequest)

	got, err := d.GetByIdentifier(ctx, "ALICE@example.com")
	require.NoError(t, err)
	assert.Equal(t, alice().UserID, got.UserID)

	// A username never matches the email index and vice versa.
	_, err = d.GetByIdentifier(ctx, "example.com")
	assert.ErrorIs(t, err, goAccount.ErrUserNotFound)
}

func TestUpdatePasswordHash(t *testing.T) {
	d := New()
	ctx := context.Background()
	_, err := d.Create(ctx, alice())
	require.NoError(t, err)

	require.NoError(t, d.UpdatePasswordHash(ctx, alice().UserID, "new-hash"))
	got, err := d.GetByID(ctx, alice().UserID)
	require.NoError(t, err)
	assert.Equal(t, "new-hash", got.PasswordHash)
}

func TestConcurrentCreateSameUsername(t *testing.T) {
	d := New()
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			u := alice()
			u.UserID = fmt.Sprintf("id-%d", i)
			u.Email = fmt.Sprintf("a%d@example.com", i)
			_, err := d.Create(ctx, u)
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	ok := 0
	for err := range errs {
		if err == nil {
			ok++
		} else {
			assert.ErrorIs(t, err, goAccount.ErrConflict)
		}
	}
	assert.Equal(t, 1, ok)
}
