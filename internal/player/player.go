package player

import (
	"time"

	"github.com/google/uuid"
)

// Player is the identity a registration points at. ID is the stable user id
// issued by the auth provider.
type Player struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Username  string    `db:"username" json:"username"`
	Rating    int       `db:"rating" json:"rating"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
