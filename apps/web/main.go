package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof"

	echoweb "github.com/trezcool/lms/apps/web/echo"
	"github.com/trezcool/lms/core"
	"github.com/trezcool/lms/core/quiz"
	"github.com/trezcool/lms/core/session"
	"github.com/trezcool/lms/services/lmsapi"
	logsvc "github.com/trezcool/lms/services/logger"
	localstore "github.com/trezcool/lms/storage/local"
)

func main() {
	// =========================================================================
	// Set up Dependencies

	conf, err := core.NewConfig()
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	// set up logger
	zl, err := logsvc.NewZap(conf)
	if err != nil {
		log.Fatalf("setting up zap: %v", err)
	}
	logger := logsvc.NewRollbarLogger(zl.Named("WEB"), conf)
	logger.Enable(!conf.Debug)
	defer func() { _ = logger.Sync() }()

	// set up storage
	storage, closeStorage, err := localstore.Open(context.Background(), conf.Storage, conf.WorkDir)
	if err != nil {
		logger.Fatal(fmt.Sprintf("opening %s storage: %v", conf.Storage.Driver, err), err)
	}
	defer func() {
		if err = closeStorage(); err != nil {
			logger.Error("closing storage", err)
		}
	}()

	// set up backend client
	metrics := echoweb.NewMetrics()
	backend, err := lmsapi.New(conf.Backend.BaseURL, &http.Client{
		Timeout:   conf.Backend.Timeout,
		Transport: metrics.InstrumentTransport(nil),
	})
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up backend client: %v", err), err)
	}

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	translator := core.NewTranslator()
	validate := core.NewValidator(translator)
	session.InitValidators(validate, translator)

	bank, err := quiz.LoadBank(conf.Quiz.BankPath, validate)
	if err != nil {
		logger.Fatal(fmt.Sprintf("loading quiz bank: %v", err), err)
	}

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)
	expvar.NewString("backend").Set(conf.Backend.BaseURL)

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugAddress, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start Web Service

	server := echoweb.NewServer(
		echoweb.ServerDeps{
			Conf:       conf,
			Logger:     logger,
			Backend:    backend,
			Storage:    storage,
			Bank:       bank,
			Validate:   validate,
			Translator: translator,
			Metrics:    metrics,
		},
	)

	go func() {
		server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err = <-server.Errors():
		logger.Fatal(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		// asking listener to shutdown and shed load
		if err = server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Fatal(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}
