package auth

// Principal is the authenticated caller as carried by an access token.
// Tokens are issued by the HRIS backend; this module only verifies them.
type Principal struct {
	UserID string
	Name   string
}

// PrincipalFromClaims reads the identity claims of a verified token.
func PrincipalFromClaims(claims map[string]interface{}) (Principal, error) {
	userID, ok := claims["user_id"].(string)
	if !ok || userID == "" {
		return Principal{}, ErrMissingIdentity
	}
	name, _ := claims["name"].(string)
	return Principal{UserID: userID, Name: name}, nil
}
