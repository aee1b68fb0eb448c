package app

import (
	"context"
	"crypto/tls"
	"expvar"
	"flag"
	"net"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	metrics_util "github.com/apologystake/stake-server/pkg/metrics"
	"github.com/apologystake/stake-server/pkg/osutil"
)

const (
	healthPath = "/healthz"

	debugServerRetryDelay = 5 * time.Second
)

// App is a long lived application that serves HTTP and runs background
// workers. Its lifecycle is tied to the process: Init runs before the HTTP
// server accepts connections and Stop runs after it stops serving.
type App interface {
	// Init blocks until the application can receive requests.
	Init(config Config, metricsProvider *newrelic.Application) error

	// RegisterWithHTTP installs the application's routes.
	RegisterWithHTTP(router *mux.Router)

	// ShutdownChan is closed when the application stops on its own, which
	// also shuts down the HTTP server.
	ShutdownChan() <-chan struct{}

	// Stop releases the application's resources. It must be idempotent.
	Stop()
}

var (
	configPath = flag.String("config", "config.yaml", "configuration file path")

	osSigCh = make(chan os.Signal, 1)
)

func init() {
	signal.Notify(osSigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT, syscall.SIGHUP)
}

// Run hosts app until the process is asked to stop. Startup failures exit
// the process; the returned error reports a shutdown that exceeded the
// grace period.
func Run(app App, options ...Option) error {
	flag.Parse()

	logger := logrus.StandardLogger().WithField("type", "app")
	fatal := func(err error, msg string) {
		logger.WithError(err).Error(msg)
		os.Exit(1)
	}

	if err := useConfigFile(*configPath); err != nil {
		fatal(err, "failed to check config file")
	}

	config, err := loadConfig()
	if err != nil {
		fatal(err, "failed to load config")
	}

	metricsProvider, err := newMetricsProvider(config)
	if err != nil {
		fatal(err, "failed to connect to new relic")
	}
	configureLogger(config, metricsProvider)

	if config.EnableExpvar || config.EnablePprof {
		go serveDebug(logger, config)
	}

	var ballast []byte
	if config.EnableBallast {
		ballast = make([]byte, ballastSize(config.BallastCapacity, osutil.GetTotalMemory()))
	}

	restartCh := make(chan struct{})
	if config.EnableMemoryLeakCron {
		scheduler, err := scheduleRestart(config.MemoryLeakCronSchedule, restartCh)
		if err != nil {
			fatal(err, "failed to schedule restart")
		}
		defer scheduler.Stop()
	}

	lis, err := listen(config)
	if err != nil {
		fatal(err, "failed to listen")
	}

	var o opts
	for _, option := range options {
		option(&o)
	}

	if err := app.Init(config.AppConfig, metricsProvider); err != nil {
		fatal(err, "failed to initialize application")
	}

	router := newRouter(o.middleware...)
	app.RegisterWithHTTP(router)

	server := &http.Server{
		Handler:      router,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}

	serverDone := make(chan struct{})
	go func() {
		defer close(serverDone)

		if err := server.Serve(lis); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("http server failed")
		}
	}()

	select {
	case sig := <-osSigCh:
		logger.WithField("signal", sig.String()).Info("signal received, shutting down")
	case <-serverDone:
		logger.Info("http server stopped")
	case <-restartCh:
		logger.Info("scheduled restart")
	case <-app.ShutdownChan():
		logger.Info("app shutdown")
	}

	ctx, cancel := context.WithTimeout(context.Background(), config.ShutdownGracePeriod)
	defer cancel()

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)

		if err := server.Shutdown(ctx); err != nil {
			logger.WithError(err).Warn("failed to shut down http server")
		}
		app.Stop()
	}()

	select {
	case <-stopped:
		// Keep the ballast reachable for the lifetime of the process
		if len(ballast) > 0 {
			ballast[0] = 1
		}
		return nil
	case <-ctx.Done():
		return errors.Errorf("failed to stop the application within %v", config.ShutdownGracePeriod)
	}
}

// useConfigFile points viper at path if it exists. A missing file leaves
// configuration to defaults and the environment.
func useConfigFile(path string) error {
	_, err := os.Stat(path)
	switch {
	case err == nil:
		viper.SetConfigFile(path)
		return nil
	case os.IsNotExist(err):
		return nil
	default:
		return err
	}
}

func newMetricsProvider(config BaseConfig) (*newrelic.Application, error) {
	if config.NewRelicLicenseKey == "" {
		return nil, nil
	}

	return newrelic.NewApplication(
		newrelic.ConfigFromEnvironment(),
		newrelic.ConfigAppName(config.AppName),
		newrelic.ConfigLicense(config.NewRelicLicenseKey),
		newrelic.ConfigDistributedTracerEnabled(true),
		newrelic.ConfigAppLogForwardingEnabled(true),
	)
}

func configureLogger(config BaseConfig, metricsProvider *newrelic.Application) {
	var formatter logrus.Formatter = &logrus.JSONFormatter{}
	if metricsProvider != nil {
		formatter = metrics_util.NewLogFormatter(metricsProvider, formatter)
	}
	logrus.SetFormatter(formatter)
	logrus.SetOutput(os.Stdout)

	level, err := logrus.ParseLevel(strings.ToLower(config.LogLevel))
	if err != nil {
		logrus.WithField("log_level", config.LogLevel).Warn("unknown log level, ignoring")
		return
	}
	logrus.SetLevel(level)
}

func listen(config BaseConfig) (net.Listener, error) {
	lis, err := net.Listen("tcp", config.ListenAddress)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to listen on %s", config.ListenAddress)
	}

	if config.TLSCertificate == "" {
		return lis, nil
	}

	tlsConfig, err := loadTLSConfig(config.TLSCertificate, config.TLSKey)
	if err != nil {
		lis.Close()
		return nil, err
	}
	return tls.NewListener(lis, tlsConfig), nil
}

func loadTLSConfig(certificateURL, keyURL string) (*tls.Config, error) {
	if keyURL == "" {
		return nil, errors.New("tls key must be provided with the certificate")
	}

	certPEM, err := LoadFile(certificateURL)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load tls certificate")
	}
	keyPEM, err := LoadFile(keyURL)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load tls key")
	}

	cert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return nil, errors.Wrap(err, "invalid certificate/private key")
	}

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}, nil
}

// serveDebug serves pprof and expvar on their own listener, retrying until
// the process exits.
func serveDebug(logger *logrus.Entry, config BaseConfig) {
	handler := newDebugMux(config)
	for {
		err := http.ListenAndServe(config.DebugListenAddress, handler)
		logger.WithError(err).Warnf("debug http server failed, retrying in %v", debugServerRetryDelay)
		time.Sleep(debugServerRetryDelay)
	}
}

func newDebugMux(config BaseConfig) *http.ServeMux {
	m := http.NewServeMux()
	if config.EnableExpvar {
		m.Handle("/debug/vars", expvar.Handler())
	}
	if config.EnablePprof {
		m.HandleFunc("/debug/pprof/", pprof.Index)
		m.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		m.HandleFunc("/debug/pprof/profile", pprof.Profile)
		m.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		m.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}
	return m
}

// ballastSize returns the ballast allocation for the configured capacity,
// capped at half of the total memory
func ballastSize(capacity float32, totalMemory uint64) uint64 {
	switch {
	case capacity < 0:
		capacity = 0
	case capacity > 0.5:
		capacity = 0.5
	}
	return uint64(capacity * float32(totalMemory))
}

// scheduleRestart closes restartCh the first time schedule fires
func scheduleRestart(schedule string, restartCh chan struct{}) (*cron.Cron, error) {
	scheduler := cron.New(cron.WithLocation(time.Local))

	var once sync.Once
	_, err := scheduler.AddFunc(schedule, func() {
		once.Do(func() { close(restartCh) })
	})
	if err != nil {
		return nil, errors.Wrapf(err, "invalid cron schedule %q", schedule)
	}

	scheduler.Start()
	return scheduler, nil
}

func newRouter(middleware ...mux.MiddlewareFunc) *mux.Router {
	router := mux.NewRouter()
	router.Use(middleware...)
	router.HandleFunc(healthPath, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}).Methods(http.MethodGet)
	return router
}
