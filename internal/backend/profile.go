package backend

import (
	"context"

	"github.com/Vovarama1992/portal-desk/internal/auth"
)

// Profile looks up the signed-in user's portal profile; used when the
// identity token carries no role claim.
func (c *Client) Profile(ctx context.Context) (auth.Profile, error) {
	body, err := c.get(ctx, "/users/me", nil)
	if err != nil {
		return auth.Profile{}, err
	}

	var p auth.Profile
	if err := decodeObject(body, &p); err != nil {
		return auth.Profile{}, err
	}
	return p, nil
}
