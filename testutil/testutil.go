// Package testutil holds the fixtures shared by the package tests.
package testutil

import (
	"context"
	"io"
	"log"
	"os"
	"testing"
	"time"

	"github.com/trezcool/hostelmess/core"
	"github.com/trezcool/hostelmess/core/user"
	logsvc "github.com/trezcool/hostelmess/services/logger"
)

// Password satisfies the password policy.
const Password = "Xk9#mLq2!vT"

// NewLogger returns a Logger that reports nowhere; set TEST_VERBOSE to print.
func NewLogger() core.Logger {
	var w io.Writer = io.Discard
	if os.Getenv("TEST_VERBOSE") != "" {
		w = os.Stdout
	}
	return logsvc.NewRollbarLogger(log.New(w, "TEST : ", log.LstdFlags), core.NewTestConfig())
}

// CreateUser stores an active User whose password is Password.
func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email string,
	role user.Role,
	room string,
	createdAt ...time.Time,
) user.User {
	t.Helper()

	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Name:      name,
		Username:  uname,
		Email:     email,
		Role:      role,
		Room:      room,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	usr.SetActive(true)
	if err := usr.SetPassword(Password); err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}
