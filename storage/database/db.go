package database

import (
	"context"
	"database/sql"
	"net/url"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/pressly/goose/v3"

	"github.com/trezcool/hostelmess/core"
	appfs "github.com/trezcool/hostelmess/fs"
)

const (
	migrationsDir   = "migrations"
	maintenanceDB   = "postgres"
	pingMaxAttempts = 30
	setUpTimeout    = time.Minute
)

var (
	gooseRunFunc = goose.Run  // mockable
	sleepFunc    = time.Sleep // mockable
)

// dataSourceName builds the postgres URL of database `dbName`, as the admin user when `admin` is set
// and one is configured.
func dataSourceName(conf *core.Config, dbName string, admin bool) string {
	dbc := conf.Database
	creds := url.UserPassword(dbc.User, dbc.Password)
	if admin && dbc.AdminUser != "" {
		creds = url.UserPassword(dbc.AdminUser, dbc.AdminPassword)
	}

	q := url.Values{"timezone": {"utc"}, "sslmode": {"require"}}
	if dbc.DisableTLS {
		q.Set("sslmode", "disable")
	}
	u := url.URL{Scheme: dbc.Engine, User: creds, Host: dbc.Address(), Path: dbName, RawQuery: q.Encode()}
	return u.String()
}

func connect(ctx context.Context, conf *core.Config, dbName string, admin bool) (*sqlx.DB, error) {
	db, err := sqlx.Open(conf.Database.Engine, dataSourceName(conf, dbName, admin))
	if err != nil {
		return nil, errors.Wrapf(err, "opening database %s", dbName)
	}
	if err = waitReady(ctx, db.DB); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// waitReady pings db until it answers, backing off 100ms more after each failed attempt.
func waitReady(ctx context.Context, db *sql.DB) error {
	var err error
	for attempt := 1; attempt <= pingMaxAttempts; attempt++ {
		if err = db.PingContext(ctx); err == nil {
			return nil
		}
		if ctx.Err() != nil {
			break
		}
		sleepFunc(time.Duration(attempt) * 100 * time.Millisecond)
	}
	return errors.Wrap(err, "database not ready")
}

// Open connects to the app database and waits for it to be ready.
func Open(conf *core.Config) (*sqlx.DB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), setUpTimeout)
	defer cancel()
	return connect(ctx, conf, conf.Database.Name, false)
}

// ensure runs `create` unless `existsQuery`, called with `name`, finds the object.
func ensure(ctx context.Context, db *sqlx.DB, existsQuery, name, create string) error {
	var exists bool
	if err := db.GetContext(ctx, &exists, existsQuery, name); err != nil {
		return errors.Wrapf(err, "looking up %s", name)
	}
	if exists {
		return nil
	}
	if _, err := db.ExecContext(ctx, create); err != nil {
		return errors.Wrapf(err, "creating %s", name)
	}
	return nil
}

// CreateIfNotExist creates the app role (as the admin user) and the app database (as the app role)
// when they are missing.
func CreateIfNotExist(conf *core.Config) error {
	ctx, cancel := context.WithTimeout(context.Background(), setUpTimeout)
	defer cancel()
	dbc := conf.Database

	if dbc.User != "" {
		adminDB, err := connect(ctx, conf, maintenanceDB, true)
		if err != nil {
			return err
		}
		defer func() { _ = adminDB.Close() }()

		createRole := "CREATE ROLE " + pq.QuoteIdentifier(dbc.User) +
			" LOGIN CREATEDB ENCRYPTED PASSWORD " + pq.QuoteLiteral(dbc.Password)
		if err = ensure(ctx, adminDB, "SELECT EXISTS (SELECT 1 FROM pg_roles WHERE rolname = $1)", dbc.User, createRole); err != nil {
			return errors.Wrap(err, "app role")
		}
	}

	appDB, err := connect(ctx, conf, maintenanceDB, false)
	if err != nil {
		return err
	}
	defer func() { _ = appDB.Close() }()

	createDB := "CREATE DATABASE " + pq.QuoteIdentifier(dbc.Name)
	if err = ensure(ctx, appDB, "SELECT EXISTS (SELECT 1 FROM pg_database WHERE datname = $1)", dbc.Name, createDB); err != nil {
		return errors.Wrap(err, "app database")
	}
	return nil
}

// Setup creates the app database if needed, connects to it and applies the pending migrations.
func Setup(conf *core.Config) (*sqlx.DB, error) {
	if err := CreateIfNotExist(conf); err != nil {
		return nil, err
	}
	db, err := Open(conf)
	if err != nil {
		return nil, err
	}
	if err = Migrate(db.DB, "up"); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// Migrate runs the goose command `cmd` (up, down, status, ...) against the embedded migrations.
func Migrate(db *sql.DB, cmd string, args ...string) error {
	goose.SetBaseFS(appfs.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		return errors.Wrap(err, "setting goose dialect")
	}
	if err := gooseRunFunc(cmd, db, migrationsDir, args...); err != nil {
		return errors.Wrapf(err, "running migrations %s", cmd)
	}
	return nil
}
