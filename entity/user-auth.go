package entity

// UserAuth identifies a caller of the admin api.
type UserAuth struct {
	Username string `json:"username" bson:"username" validate:"required"`
	Token    string `json:"token" bson:"token" validate:"required,min=1"`
}
