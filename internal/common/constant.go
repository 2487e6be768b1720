package common

// AuthorizationHeader carries the bearer access token on HTTP requests.
const (
	AuthorizationHeader = "Authorization"
	BearerPrefix        = "Bearer "
)

// Roles a user account can hold.
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)
