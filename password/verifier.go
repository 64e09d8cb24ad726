package password

import "strings"

// Verifier checks candidates against argon2id or legacy bcrypt hashes and
// hashes new passwords with argon2id.
type Verifier struct {
	argon *Argon2
}

// NewVerifier wraps an argon2id hasher.
func NewVerifier(a *Argon2) *Verifier {
	return &Verifier{argon: a}
}

// Hash always produces an argon2id PHC string.
func (v *Verifier) Hash(password string) (string, error) {
	return v.argon.Hash(password)
}

// Verify dispatches on the hash prefix. A wrong password is (false, nil);
// only an unrecognized or corrupt hash is an error.
func (v *Verifier) Verify(storedHash, candidate string) (bool, error) {
	switch {
	case strings.HasPrefix(storedHash, argon2Prefix):
		return v.argon.Verify(candidate, storedHash)
	case isBcrypt(storedHash):
		return verifyBcrypt(candidate, storedHash)
	default:
		return false, ErrMalformedHash
	}
}

// NeedsRehash reports whether storedHash should be replaced on the next
// successful login. Every bcrypt hash qualifies.
func (v *Verifier) NeedsRehash(storedHash string) bool {
	if isBcrypt(storedHash) {
		return true
	}
	upgrade, err := v.argon.NeedsUpgrade(storedHash)
	return err == nil && upgrade
}
