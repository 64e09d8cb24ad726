package goAccount

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		err  error
		want ErrorKind
	}{
		{nil, KindInternal},
		{errors.New("boom"), KindInternal},
		{ErrStoreUnavailable, KindInternal},
		{ErrIssuance, KindInternal},
		{ErrDeliveryFailed, KindInternal},
		{ErrBadRequest, KindBadRequest},
		{fmt.Errorf("%w: empty_email", ErrBadRequest), KindBadRequest},
		{ErrRoleInvalid, KindBadRequest},
		{ErrInvalidOrExpiredCode, KindBadRequest},
		{ErrResetAttemptsExceeded, KindBadRequest},
		{ErrUnauthenticated, KindUnauthenticated},
		{ErrInvalidCredentials, KindUnauthenticated},
		{fmt.Errorf("%w: signature", ErrInvalidToken), KindInvalidToken},
		{ErrUserNotFound, KindNotFound},
		{ErrConflict, KindConflict},
		{ErrResetWindowExpired, KindTimeout},
		{ErrRateLimited, KindRateLimited},
		{errors.Join(ErrSessionInvalidationFailed, errors.New("redis down")), KindInternal},
	}
	for _, tt := range tests {
		if got := KindOf(tt.err); got != tt.want {
			t.Fatalf("KindOf(%v) = %s, want %s", tt.err, got, tt.want)
		}
	}
}

func TestErrorKindString(t *testing.T) {
	if KindRateLimited.String() != "rate_limited" || KindInternal.String() != "internal" {
		t.Fatal("unexpected kind names")
	}
}
