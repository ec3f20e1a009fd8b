package user

// User is a registered account. HashedPassword never leaves the process.
type User struct {
	Username       string
	Email          string
	FullName       string
	Disabled       bool
	HashedPassword string
}

// Public is the JSON view of a user.
type Public struct {
	Username string  `json:"username"`
	Email    *string `json:"email"`
	FullName *string `json:"full_name"`
	Disabled bool    `json:"disabled"`
}

// Public strips the password hash; empty optional fields serialize as null.
func (u User) Public() Public {
	return Public{
		Username: u.Username,
		Email:    optional(u.Email),
		FullName: optional(u.FullName),
		Disabled: u.Disabled,
	}
}

// Registered is the JSON view returned by registration; it carries no disabled flag.
type Registered struct {
	Username string  `json:"username"`
	Email    *string `json:"email"`
	FullName *string `json:"full_name"`
}

func (u User) Registered() Registered {
	return Registered{
		Username: u.Username,
		Email:    optional(u.Email),
		FullName: optional(u.FullName),
	}
}

func optional(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
