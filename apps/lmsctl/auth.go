package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/trezcool/lms/core/session"
)

func (cli *commandLine) loginCmd() *cobra.Command {
	var login string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in; the password is prompted",
		Args:  cobra.NoArgs,
	}
	cmd.Flags().StringVarP(&login, "user", "u", "", "Username or email")
	_ = cmd.MarkFlagRequired("user")

	cmd.RunE = cli.unauthenticated(func(cmd *cobra.Command, args []string) error {
		pwd, err := cli.readPassword("Enter password:")
		if err != nil {
			return err
		}
		creds := session.Credentials{UsernameOrEmail: login, Password: pwd}
		if err = creds.Validate(cli.validate); err != nil {
			return err
		}
		if err = cli.store.Login(cmd.Context(), creds); err != nil {
			return err
		}
		sess := cli.store.Current()
		fmt.Fprintf(cli.out, "Signed in as %s (%s)\n", sess.Username, sess.Role)
		return nil
	})
	return cmd
}

func (cli *commandLine) signupCmd() *cobra.Command {
	var acct session.NewAccount

	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account; the password is prompted",
		Args:  cobra.NoArgs,
	}
	flags := cmd.Flags()
	flags.StringVar(&acct.FirstName, "first-name", "", "First name")
	flags.StringVar(&acct.LastName, "last-name", "", "Last name")
	flags.StringVar(&acct.Username, "username", "", "Username")
	flags.StringVar(&acct.Email, "email", "", "Email")
	flags.StringVar(&acct.Role, "role", session.RoleStudent.String(), "STUDENT or INSTRUCTOR")

	cmd.RunE = cli.unauthenticated(func(cmd *cobra.Command, args []string) error {
		var err error
		if acct.Password, err = cli.readPassword("Enter password:"); err != nil {
			return err
		}
		if acct.PasswordConfirm, err = cli.readPassword("Confirm password:"); err != nil {
			return err
		}
		if err = acct.Validate(cli.validate); err != nil {
			return err
		}
		usr, err := cli.store.Signup(cmd.Context(), acct)
		if err != nil {
			return err
		}
		fmt.Fprintf(cli.out, "Account %s created. Sign in with: lmsctl login --user %s\n", usr.Username, usr.Username)
		return nil
	})
	return cmd
}

func (cli *commandLine) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cli.store.Logout(cmd.Context())
			fmt.Fprintln(cli.out, "Signed out")
			return nil
		},
	}
}

func (cli *commandLine) whoamiCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		Args:  cobra.NoArgs,
	}
	cmd.RunE = cli.authenticated(func(cmd *cobra.Command, args []string) error {
		sess := cli.store.Current()
		fmt.Fprintf(cli.out, "%s <%s>\n%s\nrole: %s\n", sess.Username, sess.Email, sess.FullName(), sess.Role)
		return nil
	})
	return cmd
}
