package entity

// UserLoginData is the identity taken from a verified access token.
type UserLoginData struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}
