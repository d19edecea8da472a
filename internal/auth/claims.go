package auth

import (
	"github.com/golang-jwt/jwt/v5"
)

// RoleFromToken reads the portal role from custom claims. The signature is
// not checked here: the backend verifies every token it receives, the role
// only drives which endpoints this process exposes.
func RoleFromToken(token string) (Role, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return RoleNone, false
	}

	if r, ok := claims["app_role"].(string); ok && Role(r).Valid() {
		return Role(r), true
	}
	// "role" is usually "authenticated" on GoTrue; only portal roles count
	if r, ok := claims["role"].(string); ok && Role(r).Valid() {
		return Role(r), true
	}
	if meta, ok := claims["app_metadata"].(map[string]any); ok {
		if r, ok := meta["role"].(string); ok && Role(r).Valid() {
			return Role(r), true
		}
	}
	if admin, ok := claims["admin"].(bool); ok && admin {
		return RoleAdmin, true
	}
	return RoleNone, false
}
