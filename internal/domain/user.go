package domain

// User is an identity that may call the API
type User struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	APIToken string `json:"api_token"`
	Disabled bool   `json:"disabled"`
}
