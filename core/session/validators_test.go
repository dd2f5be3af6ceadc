package session

import (
	"testing"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/lms/core"
)

func TestNewAccount_Validate(t *testing.T) {
	translator := core.NewTranslator()
	validate := core.NewValidator(translator)
	InitValidators(validate, translator)

	valid := func() NewAccount {
		return NewAccount{
			FirstName:       " Awe ",
			LastName:        "Some",
			Username:        " AWE_01 ",
			Email:           "Awe@Test.CD",
			Password:        "Tr0ub4dor&3",
			PasswordConfirm: "Tr0ub4dor&3",
		}
	}

	tests := []struct {
		name      string
		mutate    func(na *NewAccount)
		wantField string
		wantMsg   string
	}{
		{name: "valid", mutate: func(*NewAccount) {}},
		{name: "instructor", mutate: func(na *NewAccount) { na.Role = "instructor" }},
		{name: "admin not allowed", mutate: func(na *NewAccount) { na.Role = "ADMIN" }, wantField: "role", wantMsg: signupRoleText},
		{name: "blank first name", mutate: func(na *NewAccount) { na.FirstName = "  " }, wantField: "firstName", wantMsg: "this field cannot be blank"},
		{name: "bad email", mutate: func(na *NewAccount) { na.Email = "lol" }, wantField: "email", wantMsg: "email must be a valid email address"},
		{
			name:      "confirmation mismatch",
			mutate:    func(na *NewAccount) { na.PasswordConfirm = "Tr0ub4dor&4" },
			wantField: "passwordConfirm",
		},
		{
			name:      "too short",
			mutate:    func(na *NewAccount) { na.Password, na.PasswordConfirm = "Ab1!", "Ab1!" },
			wantField: "password", wantMsg: pwdMinLenText,
		},
		{
			name:      "whitespace",
			mutate:    func(na *NewAccount) { na.Password, na.PasswordConfirm = "Tr0ub 4dor&3", "Tr0ub 4dor&3" },
			wantField: "password", wantMsg: pwdNoSpaceText,
		},
		{
			name:      "all numeric",
			mutate:    func(na *NewAccount) { na.Password, na.PasswordConfirm = "1234567890", "1234567890" },
			wantField: "password", wantMsg: pwdNotAllNumText,
		},
		{
			name:      "not complex",
			mutate:    func(na *NewAccount) { na.Password, na.PasswordConfirm = "troubadour3", "troubadour3" },
			wantField: "password", wantMsg: pwdComplexityText,
		},
		{
			name:      "similar to username",
			mutate:    func(na *NewAccount) { na.Password, na.PasswordConfirm = "Awe_01!x", "Awe_01!x" },
			wantField: "password", wantMsg: pwdAttrSimText,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			na := valid()
			tt.mutate(&na)
			err := na.Validate(validate)
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("Validate() unexpected error = %v", err)
				}
				if na.Username != "awe_01" || na.Email != "awe@test.cd" || na.FirstName != "Awe" {
					t.Errorf("Validate() did not clean fields: %+v", na)
				}
				return
			}
			vErrs, ok := err.(validator.ValidationErrors)
			if !ok {
				t.Fatalf("Validate() error = %v; want validator.ValidationErrors", err)
			}
			fields := core.TranslateValidationErrors(vErrs, translator)
			msg, ok := fields[tt.wantField]
			if !ok {
				t.Fatalf("Validate() fields = %v; want error on %q", fields, tt.wantField)
			}
			if tt.wantMsg != "" && msg != tt.wantMsg {
				t.Errorf("Validate() %s = %q; want %q", tt.wantField, msg, tt.wantMsg)
			}
		})
	}
}

func TestNewAccount_DefaultRole(t *testing.T) {
	translator := core.NewTranslator()
	validate := core.NewValidator(translator)
	InitValidators(validate, translator)

	na := NewAccount{FirstName: "A", LastName: "B", Username: "abc", Email: "a@b.cd", Password: "Tr0ub4dor&3", PasswordConfirm: "Tr0ub4dor&3"}
	if err := na.Validate(validate); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if na.Role != "STUDENT" {
		t.Errorf("Role = %q; want STUDENT", na.Role)
	}
}

func TestCredentials_Validate(t *testing.T) {
	validate := core.NewValidator(core.NewTranslator())

	creds := Credentials{UsernameOrEmail: "  awe  ", Password: "pwd"}
	if err := creds.Validate(validate); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if creds.UsernameOrEmail != "awe" {
		t.Errorf("UsernameOrEmail = %q", creds.UsernameOrEmail)
	}

	if err := (&Credentials{UsernameOrEmail: " "}).Validate(validate); err == nil {
		t.Error("Validate() error = nil; want error")
	}
}
