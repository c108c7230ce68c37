package domain

import "github.com/google/uuid"

// BuildPurchaseIdempotencyKey scopes a client-supplied key to the buyer so two
// users can never collide on the same key.
func BuildPurchaseIdempotencyKey(buyerID uuid.UUID, clientKey string) string {
	return buyerID.String() + ":purchase:" + clientKey
}
