package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/trezcool/lms/core"
	"github.com/trezcool/lms/core/guard"
	"github.com/trezcool/lms/core/session"
	"github.com/trezcool/lms/core/settings"
	"github.com/trezcool/lms/services/lmsapi"
	logsvc "github.com/trezcool/lms/services/logger"
	localstore "github.com/trezcool/lms/storage/local"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp           = errors.New("help provided")
	errNoPassword     = errors.New("no password given")
	errNotSignedIn    = errors.New("not signed in: run `lmsctl login --user USERNAME|EMAIL`")
	errSessionExpired = errors.New("session expired: run `lmsctl login` again")
)

type commandLine struct {
	conf       *core.Config
	out        io.Writer
	httpClient *http.Client
	translator ut.Translator
	validate   *validator.Validate

	// set up by open
	logger *logsvc.RollbarLogger
	store  *session.Store
	api    *lmsapi.Client
	themes *settings.Themes
}

func newCommandLine(conf *core.Config, out io.Writer) *commandLine {
	translator := core.NewTranslator()
	validate := core.NewValidator(translator)
	session.InitValidators(validate, translator)

	return &commandLine{
		conf:       conf,
		out:        out,
		httpClient: &http.Client{Timeout: conf.Backend.Timeout},
		translator: translator,
		validate:   validate,
	}
}

func (cli *commandLine) run(args []string) error {
	root := cli.rootCmd()
	root.SetArgs(args[1:])
	root.SetOut(cli.out)
	root.SetErr(cli.out)

	err := root.Execute()
	if cli.logger != nil {
		_ = cli.logger.Sync()
	}

	var vErrs validator.ValidationErrors
	if errors.As(err, &vErrs) {
		return formError(core.TranslateValidationErrors(vErrs, cli.translator))
	}
	return err
}

func (cli *commandLine) rootCmd() *cobra.Command {
	var (
		statePath  string
		backendURL string
		verbose    bool
	)

	cmd := &cobra.Command{
		Use:           "lmsctl",
		Short:         "Terminal client of the LMS",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd == cmd.Root() || cmd.Name() == "help" {
				return nil
			}
			return cli.open(cmd.Context(), statePath, backendURL, verbose)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			_ = cmd.Help()
			return errHelp
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&statePath, "state", "", "State file (default ~/.lmsctl/state.json)")
	flags.StringVar(&backendURL, "backend", cli.conf.Backend.BaseURL, "Base URL of the LMS API")
	flags.BoolVarP(&verbose, "verbose", "v", false, "Log to stderr")

	cmd.AddCommand(
		cli.loginCmd(),
		cli.signupCmd(),
		cli.logoutCmd(),
		cli.whoamiCmd(),
		cli.coursesCmd(),
		cli.enrollCmd(),
		cli.unenrollCmd(),
		cli.myCoursesCmd(),
		cli.themeCmd(),
	)
	return cmd
}

// open restores the session from the state file, once per invocation.
func (cli *commandLine) open(ctx context.Context, statePath, backendURL string, verbose bool) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if statePath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return errors.Wrap(err, "finding home directory")
		}
		statePath = filepath.Join(home, ".lmsctl", "state.json")
	}

	zl := zap.NewNop()
	if verbose {
		var err error
		if zl, err = zap.NewDevelopment(); err != nil {
			return errors.Wrap(err, "setting up zap")
		}
	}
	cli.logger = logsvc.NewRollbarLogger(zl.Named("LMSCTL"), cli.conf)
	cli.logger.Enable(false)

	storage, err := localstore.NewFile(statePath)
	if err != nil {
		return err
	}
	backend, err := lmsapi.New(backendURL, cli.httpClient)
	if err != nil {
		return err
	}

	cli.store = session.NewStore(backend, storage, cli.logger)
	cli.api = backend.WithToken(cli.store)
	cli.themes = settings.NewThemes(storage)
	cli.store.Restore(ctx)
	return nil
}

type runFunc func(cmd *cobra.Command, args []string) error

// authenticated runs fn for signed-in users with one of roles (any role if empty).
// A token rejected by the backend signs the user out.
func (cli *commandLine) authenticated(fn runFunc, roles ...session.Role) runFunc {
	return func(cmd *cobra.Command, args []string) error {
		switch d := guard.Authenticated(cli.store.State(), roles...); {
		case d.Outcome == guard.Render:
		case d.Location == guard.LoginPath:
			return errNotSignedIn
		default:
			return errors.New("permission denied")
		}

		err := fn(cmd, args)
		if lmsapi.IsUnauthorized(err) {
			cli.store.Logout(cmd.Context())
			return errSessionExpired
		}
		return err
	}
}

// unauthenticated runs fn when nobody is signed in.
func (cli *commandLine) unauthenticated(fn runFunc) runFunc {
	return func(cmd *cobra.Command, args []string) error {
		if d := guard.Unauthenticated(cli.store.State()); d.Outcome != guard.Render {
			return errors.Errorf("already signed in as %s: run `lmsctl logout` first", cli.store.Current().Username)
		}
		return fn(cmd, args)
	}
}

func (cli *commandLine) readPassword(prompt string) (string, error) {
	fmt.Fprint(cli.out, prompt)
	pwd, err := readPasswordFunc(int(os.Stdin.Fd()))
	fmt.Fprintln(cli.out)
	if err != nil {
		return "", errors.Wrap(err, "reading password")
	}
	if len(pwd) == 0 {
		return "", errNoPassword
	}
	return string(pwd), nil
}

// formError lists the invalid fields of a form.
type formError map[string]string

func (err formError) Error() string {
	fields := make([]string, 0, len(err))
	for fld := range err {
		fields = append(fields, fld)
	}
	sort.Strings(fields)

	msgs := make([]string, len(fields))
	for i, fld := range fields {
		msgs[i] = fld + ": " + err[fld]
	}
	return "invalid input: " + strings.Join(msgs, "; ")
}
