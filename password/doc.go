// Package password hashes and verifies account passwords.
//
// New hashes are argon2id in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// Hashes imported from older deployments may be bcrypt ($2a$, $2b$, $2y$). They verify normally
// and [Hasher.NeedsRehash] reports true for them, as it does for argon2id hashes made with
// weaker parameters, so the caller can re-hash after the next successful login.
//
// Length policy is enforced by the caller; this package only caps input size.
package password
