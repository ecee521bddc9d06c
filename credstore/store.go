package credstore

import "context"

// Pair is the access/refresh token pair issued for one authenticated
// session. It is the only data this package ever persists.
type Pair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// Store persists the token pair for the active session. Read returns
// (nil, nil) when no pair is held. Clear removes every persisted key and is
// idempotent: clearing an empty store is not an error.
//
// Only the auth engine writes to a Store; every other component receives
// token values, never the store itself.
type Store interface {
	Save(ctx context.Context, pair Pair) error
	Read(ctx context.Context) (*Pair, error)
	Clear(ctx context.Context) error
}
