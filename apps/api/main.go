package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof" // /debug/pprof on the default mux

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"

	dig_container "github.com/trezcool/hostelmess/apps/api/di/dig"
	echoapi "github.com/trezcool/hostelmess/apps/api/echo"
	"github.com/trezcool/hostelmess/core"
	"github.com/trezcool/hostelmess/core/mess"
	"github.com/trezcool/hostelmess/core/user"
	logsvc "github.com/trezcool/hostelmess/services/logger"
)

type app struct {
	conf     *core.Config
	logger   core.Logger
	dbLogger core.Logger
	db       *sqlx.DB
	tariff   mess.Tariff
	server   *echoapi.Server
}

func main() {
	c := dig_container.New()

	must(c.Invoke(func(
		conf *core.Config,
		logger core.Logger,
		dbLoggerParam dig_container.DBLoggerParam,
		db *sqlx.DB,
		validate *validator.Validate,
		translator ut.Translator,
		tariff mess.Tariff,
		server *echoapi.Server,
	) {
		a := app{conf: conf, logger: logger, dbLogger: dbLoggerParam.Logger, db: db, tariff: tariff, server: server}
		defer a.close()

		a.init(validate, translator)
		a.serveDebug()
		go a.server.Start()
		a.waitForShutdown()
	}))
}

// init registers the validators and loads the embedded assets.
func (a *app) init(validate *validator.Validate, translator ut.Translator) {
	a.logger.Info(fmt.Sprintf("Application initializing : %s", a.conf))
	a.logger.Info(fmt.Sprintf("Mess tariff : breakfast %d, lunch %d, dinner %d", a.tariff.Breakfast, a.tariff.Lunch, a.tariff.Dinner))

	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	mess.InitValidators(validate, translator)
	core.ParseEmailTemplates(a.logger)
	user.LoadCommonPasswords(a.logger)
}

// serveDebug exposes /debug/pprof and /debug/vars on the debug host.
func (a *app) serveDebug() {
	expvar.NewString("build").Set(a.conf.Build)
	expvar.NewString("env").Set(a.conf.Env)
	expvar.Publish("tariff", expvar.Func(func() interface{} { return a.tariff }))

	go func() {
		if err := http.ListenAndServe(a.conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			a.logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()
}

// waitForShutdown blocks until the server fails or a shutdown signal arrives,
// then gives in-flight requests until the shutdown timeout to complete.
func (a *app) waitForShutdown() {
	select {
	case err := <-a.server.Errors():
		a.logger.Fatal(fmt.Sprintf("server error: %v", err), err)

	case sig := <-a.server.ShutdownSignal():
		a.logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		ctx, cancel := context.WithTimeout(context.Background(), a.conf.Server.ShutdownTimeout)
		defer cancel()

		if err := a.server.Shutdown(ctx); err != nil {
			a.logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)
			if err = a.server.Close(); err != nil {
				a.logger.Fatal(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}

func (a *app) close() {
	if err := a.db.Close(); err != nil {
		a.dbLogger.Error("closing database", err)
	}
	a.logger.Info("Application stopped")
	if rl, ok := a.logger.(*logsvc.RollbarLogger); ok {
		rl.Close()
	}
}

func must(err error) {
	if err != nil {
		log.Fatal(err)
	}
}
