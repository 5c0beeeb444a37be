package main

import (
	"log"
	"os"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/hostelmess/core"
	"github.com/trezcool/hostelmess/core/mess"
	"github.com/trezcool/hostelmess/core/user"
	emailsvc "github.com/trezcool/hostelmess/services/email"
	logsvc "github.com/trezcool/hostelmess/services/logger"
	"github.com/trezcool/hostelmess/storage/database"
	sqlxrepos "github.com/trezcool/hostelmess/storage/database/sqlx"
)

func main() {
	conf := core.NewConfig()
	std := log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(std, conf)
	defer logger.Close()

	// set up DB
	if err := database.CreateIfNotExist(conf); err != nil {
		logger.Fatal("setting up database", err)
	}
	db, err := database.Open(conf)
	if err != nil {
		logger.Fatal("opening database", err)
	}
	defer func() { _ = db.Close() }()

	// set up services
	validate := validator.New()
	_en := en.New()
	translator, _ := ut.New(_en, _en).GetTranslator("en")
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	mess.InitValidators(validate, translator)
	core.ParseEmailTemplates(logger)
	user.LoadCommonPasswords(logger)

	tariff, err := mess.ConfiguredTariff(conf.Mess)
	if err != nil {
		logger.Fatal("loading tariff", err)
	}

	usrSvc := user.NewService(sqlxrepos.NewUserRepository(db))
	mailSvc := emailsvc.NewConsoleService(log.New(os.Stdout, "EMAIL : ", log.LstdFlags), logger, conf)
	messSvc := mess.NewService(sqlxrepos.NewMessRepository(db), usrSvc, mailSvc, logger, tariff)

	// start CLI
	cli := commandLine{
		db:       db.DB,
		validate: validate,
		usrSvc:   usrSvc,
		messSvc:  messSvc,
		out:      os.Stdout,
	}
	if err = cli.run(os.Args); err != nil {
		if err != errHelp {
			std.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}
