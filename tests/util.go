package testutil

import (
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"

	"github.com/trezcool/lms/core/session"
)

// Claims are the claims of the tokens minted by Backend.
type Claims struct {
	jwt.StandardClaims
	Username string `json:"username,omitempty"`
	Role     string `json:"role,omitempty"`
}

// MintToken signs an HS256 token for usr expiring at exp.
func MintToken(t testing.TB, secret []byte, usr session.User, exp time.Time) string {
	t.Helper()
	token, err := signToken(secret, usr, exp)
	if err != nil {
		t.Fatalf("MintToken() failed: %v", err)
	}
	return token
}

func signToken(secret []byte, usr session.User, exp time.Time) (string, error) {
	claims := &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    "lms-test-backend",
			Subject:   usr.Username,
			ExpiresAt: exp.Unix(),
			IssuedAt:  time.Now().Unix(),
		},
		Username: usr.Username,
		Role:     usr.Role.String(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// Student, Instructor and Admin are ready-made accounts; their password is Password.
var (
	Password = "Pa$$w0rd!"

	Student    = session.User{Username: "student", Email: "student@lms.test", FirstName: "Stu", LastName: "Dent", Role: session.RoleStudent, IsApproved: true}
	Instructor = session.User{Username: "teacher", Email: "teacher@lms.test", FirstName: "Tea", LastName: "Cher", Role: session.RoleInstructor, IsApproved: true}
	Admin      = session.User{Username: "admin", Email: "admin@lms.test", FirstName: "Ad", LastName: "Min", Role: session.RoleAdmin, IsApproved: true}
)
