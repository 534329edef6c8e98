// Package accounts implements the account and authentication core of the
// veilnote backend: credential hashing and PII encryption, role-scoped
// access/refresh token issuance and verification, a revocation ledger
// consulted on every authenticated request, the confirm/freeze/restore/delete
// account lifecycle, and the identity operations that compose them.
//
// Account lifecycle:
//
//	unconfirmed -> active   (email confirmation)
//	active      -> frozen   (self service or admin, records the freezer)
//	frozen      -> active   (only the recorded freezer)
//	frozen      -> deleted  (terminal)
//
// Lifecycle writes are conditional updates guarded by the account revision
// counter so concurrent transitions resolve deterministically.
package accounts
