package main

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/trezcool/hostelmess/core/user"
)

func (cli *commandLine) addUser(nu user.NewUser) error {
	if err := nu.Validate(cli.validate, cli.usrSvc); err != nil {
		return err
	}
	usr, err := cli.usrSvc.Create(context.Background(), nu)
	if err != nil {
		return errors.Wrap(err, "creating user")
	}
	fmt.Fprintf(cli.out, "%s %q created (%s)\n", usr.Role, usr.Username, usr.ID)
	return nil
}
