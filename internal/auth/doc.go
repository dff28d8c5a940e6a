// Package auth signs and verifies the state parameter of the Slack
// OAuth install flow.
//
// Slack redirects users through an authorize page and back to this
// service with a code and the state it was handed. The state is an
// HS256 JWT carrying a unique nonce and a short expiry:
//
//	signer := auth.NewStateSigner(secret)
//	state, err := signer.Issue(auth.StateTTL)
//	// ... redirect to Slack, then on callback:
//	err = signer.Verify(callbackState)
//
// Verification failures split into ErrExpiredState (the install link
// sat unused past its TTL) and ErrInvalidState (signature mismatch or
// malformed token, i.e. a forged or corrupted callback).
package auth
