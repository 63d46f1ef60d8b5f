// Package auth stores the secrets conflictmap needs: a Mapbox access token
// for tile URLs with an {accessToken} placeholder, and an optional ACLED API
// key with its registered email.
//
// Manager tries the system keyring first, then an AES-GCM encrypted file
// whose key is derived with PBKDF2, then read-only environment variables.
package auth
