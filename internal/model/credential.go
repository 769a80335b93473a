package model

// Role identifies the kind of account the backend issued a token for.
type Role string

const (
	RoleStudent Role = "student"
	RoleTeacher Role = "teacher"
	RoleParent  Role = "parent"
	RoleAdmin   Role = "admin"
)

// Subject is the identity an access token was issued for.
type Subject struct {
	// ID is the backend's numeric account id.
	ID int64 `json:"id"`

	// Name is the display name shown in the UI.
	Name string `json:"name"`

	// Role is the account kind.
	Role Role `json:"role"`
}

// Credential is a bearer token together with the identity it belongs to.
// A credential is either fully populated or absent; a token without a
// subject (or the reverse) is never constructed or persisted.
type Credential struct {
	Token   string  `json:"token"`
	Subject Subject `json:"subject"`
}

// Valid reports whether the credential is fully populated.
func (c Credential) Valid() bool {
	return c.Token != "" && c.Subject.ID != 0 && c.Subject.Name != ""
}
