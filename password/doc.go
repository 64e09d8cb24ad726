// Package password hashes and verifies account passwords.
//
// New hashes are argon2id in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// [Verifier] also accepts bcrypt hashes ($2a$, $2b$, $2y$) carried over from
// older deployments and reports them through [Verifier.NeedsRehash] so the
// engine can upgrade them after a successful login.
//
// The package never stores or logs plaintext and imports nothing else from
// this module.
package password
