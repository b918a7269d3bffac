package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	echoapi "github.com/elimulab/elimu/apps/api/echo"
	"github.com/elimulab/elimu/core"
	"github.com/elimulab/elimu/core/certificate"
	"github.com/elimulab/elimu/core/course"
	"github.com/elimulab/elimu/core/progress"
	"github.com/elimulab/elimu/core/user"
	emailsvc "github.com/elimulab/elimu/services/email"
	logsvc "github.com/elimulab/elimu/services/logger"
	"github.com/elimulab/elimu/storage/database"
	sqlxrepos "github.com/elimulab/elimu/storage/database/sqlx"
)

const shutdownTimeout = 20 * time.Second

func main() {
	conf := core.Conf

	// set up logger
	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)

	// set up DB
	if err := database.CreateIfNotExist(conf); err != nil {
		logger.Fatal(fmt.Sprintf("creating database: %v", err), err)
	}
	db, err := database.Open(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("opening database: %v", err), err)
	}
	defer db.Close()
	if err = database.Migrate(db.DB); err != nil {
		logger.Fatal(fmt.Sprintf("migrating database: %v", err), err)
	}

	// set up services
	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService()
	} else {
		mailSvc = emailsvc.NewSendgridService(logger)
	}

	usrRepo := sqlxrepos.NewUserRepository(db)
	usrSvc := user.NewService(usrRepo, mailSvc, conf)
	courseSvc := course.NewService(sqlxrepos.NewCourseRepository(db))
	certSvc := certificate.NewService(sqlxrepos.NewCertificateRepository(db), courseSvc, usrRepo, mailSvc, conf)
	progressSvc := progress.NewService(sqlxrepos.NewProgressRepository(db), courseSvc, usrRepo, certSvc, logger)

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	// start API server
	server := echoapi.NewServer(&echoapi.Options{
		Address:        conf.Server.Addr,
		UserSvc:        usrSvc,
		CourseSvc:      courseSvc,
		ProgressSvc:    progressSvc,
		CertificateSvc: certSvc,
		Logger:         logger,
	})

	go server.Start()

	// block until an OS signal or an internal shutdown request, then drain
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigs:
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))
	case <-server.ShutdownSignal():
		logger.Info("internal shutdown request: Start shutdown...")
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Stop(ctx); err != nil {
		logger.Fatal(fmt.Sprintf("could not stop server gracefully: %v", err), err)
	}
}
