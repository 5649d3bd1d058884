package users

// credentialsRequest signs up or signs in a user
type credentialsRequest struct {
	User struct {
		Email    string `json:"email" example:"owner@example.com"`
		Password string `json:"password" example:"password"`
	} `json:"user"`
}
