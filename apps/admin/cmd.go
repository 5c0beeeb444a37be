package main

import (
	"database/sql"
	"flag"
	"fmt"
	"io"
	"syscall"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"golang.org/x/term"

	"github.com/trezcool/hostelmess/core/mess"
	"github.com/trezcool/hostelmess/core/user"
	"github.com/trezcool/hostelmess/storage/database"
)

var (
	readPasswordFunc = term.ReadPassword // mockable
	migrateFunc      = database.Migrate  // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	db       *sql.DB
	validate *validator.Validate
	usrSvc   user.ServiceInterface
	messSvc  mess.ServiceInterface
	out      io.Writer
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  adduser -name NAME -username USERNAME -email EMAIL [-role ROLE] [-room ROOM] - create a user")
	fmt.Fprintln(cli.out, "  resetpassword -username USERNAME|EMAIL - reset user's password")
	fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS...] - run database migrations (up, down, status, ...)")
	fmt.Fprintln(cli.out, "  syncattendance [-date YYYY-MM-DD] - record the day's attendance from preferences")
	fmt.Fprintln(cli.out, "  adjustment -username USERNAME|EMAIL [-from YYYY-MM-DD] [-to YYYY-MM-DD] - print a user's adjustment")
	fmt.Fprintln(cli.out, "  wastage [-from YYYY-MM-DD] [-to YYYY-MM-DD] - print the food wastage report")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addUserCmd := flag.NewFlagSet("adduser", flag.ContinueOnError)
	addUserName := addUserCmd.String("name", "", "The user's full name.")
	addUserUname := addUserCmd.String("username", "", "The user's username.")
	addUserEmail := addUserCmd.String("email", "", "The user's email.")
	addUserRole := addUserCmd.String("role", string(user.RoleStudent), "One of student, warden or admin.")
	addUserRoom := addUserCmd.String("room", "", "The user's hostel room.")

	resetPasswordCmd := flag.NewFlagSet("resetpassword", flag.ContinueOnError)
	resetPasswordUname := resetPasswordCmd.String("username", "", "The user's username or email. The password will be prompted next.")

	syncCmd := flag.NewFlagSet("syncattendance", flag.ContinueOnError)
	syncDate := syncCmd.String("date", "", "The day to sync; defaults to today.")

	adjustmentCmd := flag.NewFlagSet("adjustment", flag.ContinueOnError)
	adjustmentUname := adjustmentCmd.String("username", "", "The user's username or email.")
	adjustmentFrom := adjustmentCmd.String("from", "", "First day of the period; defaults to the 1st of the month.")
	adjustmentTo := adjustmentCmd.String("to", "", "Last day of the period; defaults to today.")

	wastageCmd := flag.NewFlagSet("wastage", flag.ContinueOnError)
	wastageFrom := wastageCmd.String("from", "", "First day of the period; defaults to the 1st of the month.")
	wastageTo := wastageCmd.String("to", "", "Last day of the period; defaults to today.")

	for _, fs := range []*flag.FlagSet{addUserCmd, resetPasswordCmd, syncCmd, adjustmentCmd, wastageCmd} {
		fs.SetOutput(cli.out)
	}

	switch args[1] {
	case "adduser":
		if err := addUserCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *addUserName == "" || (*addUserUname == "" && *addUserEmail == "") {
			addUserCmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword()
		if err != nil {
			return err
		}
		if pwd == "" {
			addUserCmd.Usage()
			return errHelp
		}
		return cli.addUser(user.NewUser{
			Name:            *addUserName,
			Username:        *addUserUname,
			Email:           *addUserEmail,
			Role:            user.Role(*addUserRole),
			Room:            *addUserRoom,
			Password:        pwd,
			PasswordConfirm: pwd,
		})

	case "resetpassword":
		if err := resetPasswordCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *resetPasswordUname == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword()
		if err != nil {
			return err
		}
		if pwd == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		return cli.resetPassword(*resetPasswordUname, pwd)

	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])

	case "syncattendance":
		if err := syncCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		return cli.syncAttendance(*syncDate)

	case "adjustment":
		if err := adjustmentCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *adjustmentUname == "" {
			adjustmentCmd.Usage()
			return errHelp
		}
		rng, err := parseRange(*adjustmentFrom, *adjustmentTo)
		if err != nil {
			return err
		}
		return cli.adjustment(*adjustmentUname, rng)

	case "wastage":
		if err := wastageCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		rng, err := parseRange(*wastageFrom, *wastageTo)
		if err != nil {
			return err
		}
		return cli.wastage(rng)

	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) promptPassword() (string, error) {
	fmt.Fprint(cli.out, "Enter password:")
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	fmt.Fprintln(cli.out)
	if err != nil {
		return "", errors.Wrap(err, "reading password")
	}
	return string(pwd), nil
}

// parseRange parses the `from` & `to` flags; without both, it defaults to the current month so far.
func parseRange(from, to string) (mess.DateRange, error) {
	if from == "" && to == "" {
		today := mess.Today()
		return mess.NewDateRange(mess.NewDate(today.Year(), today.Month(), 1), today)
	}

	var (
		rng mess.DateRange
		err error
	)
	if rng.Start, err = mess.ParseDate(from); err != nil {
		return mess.DateRange{}, errors.Wrap(err, "-from")
	}
	if rng.End, err = mess.ParseDate(to); err != nil {
		return mess.DateRange{}, errors.Wrap(err, "-to")
	}
	return mess.NewDateRange(rng.Start, rng.End)
}
