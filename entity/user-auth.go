package entity

// UserAuth is an authenticated user profile as resolved from an API
// token.
type UserAuth struct {
	Username string `json:"username" bson:"username" validate:"required"`
	Name     string `json:"name" bson:"name" validate:"omitempty"`
	Photo    string `json:"photo" bson:"photo" validate:"omitempty"`
	Token    string `json:"token" bson:"token" validate:"required,min=1"`
}
