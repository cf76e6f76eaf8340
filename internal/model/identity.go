package model

// Identity is the signed-in user as exposed by the session provider.
type Identity struct {
	ID          string `json:"id"`
	Role        Role   `json:"role"`
	DisplayName string `json:"display_name"`
}
