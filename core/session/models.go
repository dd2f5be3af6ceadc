package session

import (
	"strconv"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/lms/core"
)

// User is the identity of the signed-in account as reported by the backend.
type User struct {
	ID         int64  `json:"id"`
	Username   string `json:"username"`
	Email      string `json:"email"`
	FirstName  string `json:"firstName" validate:"omitempty,max=50"`
	LastName   string `json:"lastName" validate:"omitempty,max=50"`
	Role       Role   `json:"role"`
	IsApproved bool   `json:"isApproved"`
}

var _ core.Person = User{}

func (u User) PersonID() string       { return strconv.FormatInt(u.ID, 10) }
func (u User) PersonUsername() string { return u.Username }
func (u User) PersonEmail() string    { return u.Email }

func (u User) FullName() string {
	switch {
	case u.FirstName == "":
		return u.LastName
	case u.LastName == "":
		return u.FirstName
	default:
		return u.FirstName + " " + u.LastName
	}
}

// Session is the signed-in User and their access token. A Session always has a token.
type Session struct {
	User
	Token string `json:"-"`
}

// Credentials are the login form.
type Credentials struct {
	UsernameOrEmail string `json:"usernameOrEmail" validate:"notblank"`
	Password        string `json:"password" validate:"required"`
}

func (c *Credentials) Validate(validate *validator.Validate) error {
	c.UsernameOrEmail = core.CleanString(c.UsernameOrEmail)
	return validate.Struct(c)
}

// NewAccount is the signup form.
type NewAccount struct {
	FirstName       string `json:"firstName" validate:"notblank,max=50"`
	LastName        string `json:"lastName" validate:"notblank,max=50"`
	Username        string `json:"username" validate:"required,min=3,max=20,alphanum_"`
	Email           string `json:"email" validate:"required,email,max=100"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"passwordConfirm,omitempty" validate:"required,eqfield=Password"`
	Role            string `json:"role,omitempty" validate:"omitempty,signuprole"`
}

func (na *NewAccount) Validate(validate *validator.Validate) error {
	na.FirstName = core.CleanString(na.FirstName)
	na.LastName = core.CleanString(na.LastName)
	na.Username = core.CleanString(na.Username, true /* lower */)
	na.Email = core.CleanString(na.Email, true /* lower */)
	na.Role = core.CleanString(na.Role)
	if na.Role == "" {
		na.Role = RoleStudent.String()
	}
	return validate.Struct(na)
}

// SignInResult is what the backend returns on a successful login.
type SignInResult struct {
	Token string
	User  User
}

// AuthError is a login or signup failure with a message fit for display.
type AuthError struct {
	Message string
	Err     error
}

func (err *AuthError) Error() string { return err.Message }
func (err *AuthError) Unwrap() error { return err.Err }
