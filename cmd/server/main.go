package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/MarkoPoloResearchLab/offerfeed/internal/feed"
	"github.com/MarkoPoloResearchLab/offerfeed/internal/httpapi"
	"github.com/MarkoPoloResearchLab/offerfeed/internal/importer"
	"github.com/MarkoPoloResearchLab/offerfeed/internal/mapping"
	"github.com/MarkoPoloResearchLab/offerfeed/internal/storage"
	"github.com/MarkoPoloResearchLab/offerfeed/internal/task"
)

const (
	commandUseName               = "server"
	commandShortDescription      = "Run the offer feed import service"
	commandLongDescription       = "Serve the import template API and run scheduled feed imports"
	missingConfigurationMessage  = "missing required configuration"
	loggerCreationErrorMessage   = "logger"
	unexpectedArgumentsMessage   = "unexpected command arguments"
	commandInitializationFailure = "failed to configure command"
	flagNotDefinedMessage        = "flag %s not defined"
	environmentConfigurationErr  = "failed to apply environment configuration"
	environmentFileErrorMessage  = "failed to load environment file"
	defaultEnvironmentFile       = ".env"

	flagNameApplicationAddress     = "app-addr"
	flagNameDatabaseDriver         = "db-driver"
	flagNameDatabaseDataSourceName = "db-dsn"
	flagNameAdminBearerToken       = "admin-bearer-token"
	flagNameAliasConfig            = "alias-config"
	flagNameNATSURL                = "nats-url"
	flagNameNATSSubject            = "nats-subject"
	flagNameImportSchedule         = "import-schedule"
	flagNameImportInterval         = "import-interval"
	flagNameFeedTimeout            = "feed-timeout"
	flagNameFeedMaxBytes           = "feed-max-bytes"

	environmentKeyApplicationAddress = "APP_ADDR"
	environmentKeyDatabaseDriver     = "DB_DRIVER"
	environmentKeyDatabaseDataSource = "DB_DSN"
	environmentKeyAdminBearerToken   = "ADMIN_BEARER_TOKEN"
	environmentKeyAliasConfig        = "ALIAS_CONFIG"
	environmentKeyNATSURL            = "NATS_URL"
	environmentKeyNATSSubject        = "NATS_SUBJECT"
	environmentKeyImportSchedule     = "IMPORT_SCHEDULE"
	environmentKeyImportInterval     = "IMPORT_INTERVAL"
	environmentKeyFeedTimeout        = "FEED_TIMEOUT"
	environmentKeyFeedMaxBytes       = "FEED_MAX_BYTES"

	defaultApplicationAddress = ":8080"
	defaultDatabaseDriver     = storage.DriverNamePostgres
	defaultImportInterval     = 15 * time.Minute

	logEventListening         = "listening"
	logEventShutdown          = "shutdown"
	logEventImportsDisabled   = "imports_disabled"
	logEventImportsScheduled  = "imports_scheduled"
	logFieldAddress           = "addr"
	logFieldSchedule          = "schedule"
	loggerContextOpenDatabase = "open_db"
	loggerContextAutoMigrate  = "migrate"
	loggerContextAliasConfig  = "alias_config"
	loggerContextConnectNATS  = "connect_nats"
	loggerContextSchedule     = "import_schedule"
	loggerContextServer       = "server"
	readHeaderTimeoutSeconds  = 5
	shutdownTimeout           = 10 * time.Second
	flagUsageApplicationAddr  = "address for the HTTP server to listen on"
	flagUsageDatabaseDriver   = "database driver (postgres or sqlite)"
	flagUsageDatabaseDSN      = "database connection string"
	flagUsageAdminBearerToken = "bearer token required for API access"
	flagUsageAliasConfig      = "path to a YAML alias table overriding the built-in aliases"
	flagUsageNATSURL          = "NATS server URL; scheduled imports are disabled when empty"
	flagUsageNATSSubject      = "NATS subject imported offers are published to"
	flagUsageImportSchedule   = "cron expression for scheduled imports; overrides the interval"
	flagUsageImportInterval   = "interval between scheduled imports when no cron expression is set"
	flagUsageFeedTimeout      = "timeout for a single feed download"
	flagUsageFeedMaxBytes     = "maximum accepted feed size in bytes"
)

// ServerConfig captures configuration needed to run the server.
type ServerConfig struct {
	ApplicationAddress     string
	DatabaseDriver         string
	DatabaseDataSourceName string
	AdminBearerToken       string
	AliasConfigPath        string
	NATSURL                string
	NATSSubject            string
	ImportSchedule         string
	ImportInterval         time.Duration
	FeedTimeout            time.Duration
	FeedMaxBytes           int64
}

// DatabaseOpener opens a database connection using the provided configuration.
type DatabaseOpener func(storage.Config) (*gorm.DB, error)

type flagBinding struct {
	flagName       string
	environmentKey string
	register       func(*pflag.FlagSet)
}

// ServerApplication constructs and executes the server command.
type ServerApplication struct {
	configurationLoader *viper.Viper
	databaseOpener      DatabaseOpener
}

// NewServerApplication creates a ServerApplication with default dependencies.
func NewServerApplication() *ServerApplication {
	return &ServerApplication{
		configurationLoader: viper.New(),
		databaseOpener:      storage.OpenDatabase,
	}
}

// WithDatabaseOpener overrides the database opener dependency.
func (application *ServerApplication) WithDatabaseOpener(databaseOpener DatabaseOpener) *ServerApplication {
	application.databaseOpener = databaseOpener
	return application
}

// Command builds the Cobra command for the server.
func (application *ServerApplication) Command() (*cobra.Command, error) {
	rootCommand := &cobra.Command{
		Use:   commandUseName,
		Short: commandShortDescription,
		Long:  commandLongDescription,
		RunE:  application.runCommand,
	}

	if configurationErr := application.configureCommand(rootCommand); configurationErr != nil {
		return nil, configurationErr
	}

	return rootCommand, nil
}

func flagBindings() []flagBinding {
	return []flagBinding{
		{flagNameApplicationAddress, environmentKeyApplicationAddress, func(flagSet *pflag.FlagSet) {
			flagSet.String(flagNameApplicationAddress, defaultApplicationAddress, flagUsageApplicationAddr)
		}},
		{flagNameDatabaseDriver, environmentKeyDatabaseDriver, func(flagSet *pflag.FlagSet) {
			flagSet.String(flagNameDatabaseDriver, defaultDatabaseDriver, flagUsageDatabaseDriver)
		}},
		{flagNameDatabaseDataSourceName, environmentKeyDatabaseDataSource, func(flagSet *pflag.FlagSet) {
			flagSet.String(flagNameDatabaseDataSourceName, "", flagUsageDatabaseDSN)
		}},
		{flagNameAdminBearerToken, environmentKeyAdminBearerToken, func(flagSet *pflag.FlagSet) {
			flagSet.String(flagNameAdminBearerToken, "", flagUsageAdminBearerToken)
		}},
		{flagNameAliasConfig, environmentKeyAliasConfig, func(flagSet *pflag.FlagSet) {
			flagSet.String(flagNameAliasConfig, "", flagUsageAliasConfig)
		}},
		{flagNameNATSURL, environmentKeyNATSURL, func(flagSet *pflag.FlagSet) {
			flagSet.String(flagNameNATSURL, "", flagUsageNATSURL)
		}},
		{flagNameNATSSubject, environmentKeyNATSSubject, func(flagSet *pflag.FlagSet) {
			flagSet.String(flagNameNATSSubject, importer.DefaultOfferSubject, flagUsageNATSSubject)
		}},
		{flagNameImportSchedule, environmentKeyImportSchedule, func(flagSet *pflag.FlagSet) {
			flagSet.String(flagNameImportSchedule, "", flagUsageImportSchedule)
		}},
		{flagNameImportInterval, environmentKeyImportInterval, func(flagSet *pflag.FlagSet) {
			flagSet.Duration(flagNameImportInterval, defaultImportInterval, flagUsageImportInterval)
		}},
		{flagNameFeedTimeout, environmentKeyFeedTimeout, func(flagSet *pflag.FlagSet) {
			flagSet.Duration(flagNameFeedTimeout, feed.DefaultTimeout, flagUsageFeedTimeout)
		}},
		{flagNameFeedMaxBytes, environmentKeyFeedMaxBytes, func(flagSet *pflag.FlagSet) {
			flagSet.Int64(flagNameFeedMaxBytes, feed.DefaultMaxBytes, flagUsageFeedMaxBytes)
		}},
	}
}

func (application *ServerApplication) configureCommand(command *cobra.Command) error {
	application.configurationLoader.AutomaticEnv()

	commandFlags := command.Flags()
	for _, binding := range flagBindings() {
		binding.register(commandFlags)
		if bindErr := application.bindFlag(commandFlags, binding.environmentKey, binding.flagName); bindErr != nil {
			return bindErr
		}
		if environmentErr := application.applyEnvironmentConfiguration(commandFlags, binding.environmentKey, binding.flagName); environmentErr != nil {
			return environmentErr
		}
	}

	if markErr := command.MarkFlagRequired(flagNameDatabaseDataSourceName); markErr != nil {
		return markErr
	}

	if markErr := command.MarkFlagRequired(flagNameAdminBearerToken); markErr != nil {
		return markErr
	}

	return nil
}

func (application *ServerApplication) bindFlag(flagSet *pflag.FlagSet, environmentKey string, flagName string) error {
	flag := flagSet.Lookup(flagName)
	if flag == nil {
		return fmt.Errorf(flagNotDefinedMessage, flagName)
	}

	return application.configurationLoader.BindPFlag(environmentKey, flag)
}

func (application *ServerApplication) applyEnvironmentConfiguration(flagSet *pflag.FlagSet, environmentKey string, flagName string) error {
	environmentValue, environmentFound := os.LookupEnv(environmentKey)
	if !environmentFound {
		return nil
	}

	if setErr := flagSet.Set(flagName, environmentValue); setErr != nil {
		return fmt.Errorf("%s: %s: %w", environmentConfigurationErr, environmentKey, setErr)
	}

	return nil
}

func (application *ServerApplication) loadServerConfig() ServerConfig {
	loader := application.configurationLoader
	return ServerConfig{
		ApplicationAddress:     strings.TrimSpace(loader.GetString(environmentKeyApplicationAddress)),
		DatabaseDriver:         strings.TrimSpace(loader.GetString(environmentKeyDatabaseDriver)),
		DatabaseDataSourceName: strings.TrimSpace(loader.GetString(environmentKeyDatabaseDataSource)),
		AdminBearerToken:       strings.TrimSpace(loader.GetString(environmentKeyAdminBearerToken)),
		AliasConfigPath:        strings.TrimSpace(loader.GetString(environmentKeyAliasConfig)),
		NATSURL:                strings.TrimSpace(loader.GetString(environmentKeyNATSURL)),
		NATSSubject:            strings.TrimSpace(loader.GetString(environmentKeyNATSSubject)),
		ImportSchedule:         strings.TrimSpace(loader.GetString(environmentKeyImportSchedule)),
		ImportInterval:         loader.GetDuration(environmentKeyImportInterval),
		FeedTimeout:            loader.GetDuration(environmentKeyFeedTimeout),
		FeedMaxBytes:           loader.GetInt64(environmentKeyFeedMaxBytes),
	}
}

func (application *ServerApplication) runCommand(command *cobra.Command, arguments []string) error {
	if len(arguments) > 0 {
		return fmt.Errorf("%s: %s", unexpectedArgumentsMessage, strings.Join(arguments, " "))
	}

	serverConfig := application.loadServerConfig()
	if validationErr := application.ensureRequiredConfiguration(serverConfig); validationErr != nil {
		return validationErr
	}

	logger, loggerErr := zap.NewProduction()
	if loggerErr != nil {
		return fmt.Errorf("%s: %w", loggerCreationErrorMessage, loggerErr)
	}
	defer func() {
		_ = logger.Sync()
	}()

	database, databaseErr := application.databaseOpener(storage.Config{
		DriverName:     serverConfig.DatabaseDriver,
		DataSourceName: serverConfig.DatabaseDataSourceName,
	})
	if databaseErr != nil {
		logger.Fatal(loggerContextOpenDatabase, zap.Error(databaseErr))
	}

	if migrateErr := storage.AutoMigrate(database); migrateErr != nil {
		logger.Fatal(loggerContextAutoMigrate, zap.Error(migrateErr))
	}

	aliasTable, aliasErr := loadAliasTable(serverConfig.AliasConfigPath)
	if aliasErr != nil {
		logger.Fatal(loggerContextAliasConfig, zap.Error(aliasErr))
	}

	runtimeContext, stopSignals := signal.NotifyContext(command.Context(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	templateStore := storage.NewImportTemplateStore(database)
	feedFetcher := feed.NewFetcher(feed.Config{Timeout: serverConfig.FeedTimeout, MaxBytes: serverConfig.FeedMaxBytes})

	var importTrigger httpapi.ImportTrigger
	if serverConfig.NATSURL == "" {
		logger.Info(logEventImportsDisabled)
	} else {
		natsConnection, connectErr := importer.ConnectNATS(serverConfig.NATSURL, logger)
		if connectErr != nil {
			logger.Fatal(loggerContextConnectNATS, zap.Error(connectErr))
		}
		defer natsConnection.Close()

		schedule, scheduleErr := task.ParseSchedule(serverConfig.ImportSchedule, serverConfig.ImportInterval)
		if scheduleErr != nil {
			logger.Fatal(loggerContextSchedule, zap.Error(scheduleErr))
		}
		offerImporter := importer.New(templateStore, feedFetcher, importer.NewNATSPublisher(natsConnection, serverConfig.NATSSubject), logger)
		scheduler := task.NewScheduler(schedule, offerImporter.RunAndLog)
		scheduler.Start(runtimeContext)
		defer scheduler.Stop()
		importTrigger = scheduler
		logger.Info(logEventImportsScheduled, zap.String(logFieldSchedule, describeSchedule(serverConfig)))
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(httpapi.RequestLogger(logger))
	registerRoutes(router, routeHandlers{
		templates:  httpapi.NewImportTemplateHandlers(templateStore, logger),
		mappings:   httpapi.NewMappingHandlers(mapping.NewSuggester(aliasTable), feedFetcher, logger),
		importRuns: httpapi.NewImportRunHandlers(importTrigger, logger),
	}, serverConfig.AdminBearerToken)

	httpServer := &http.Server{
		Addr:              serverConfig.ApplicationAddress,
		Handler:           router,
		ReadHeaderTimeout: readHeaderTimeoutSeconds * time.Second,
	}

	serveErrors := make(chan error, 1)
	go func() {
		logger.Info(logEventListening, zap.String(logFieldAddress, serverConfig.ApplicationAddress))
		serveErrors <- httpServer.ListenAndServe()
	}()

	select {
	case serveErr := <-serveErrors:
		if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			logger.Fatal(loggerContextServer, zap.Error(serveErr))
		}
	case <-runtimeContext.Done():
		logger.Info(logEventShutdown)
		shutdownContext, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if shutdownErr := httpServer.Shutdown(shutdownContext); shutdownErr != nil {
			logger.Warn(loggerContextServer, zap.Error(shutdownErr))
		}
	}

	return nil
}

func (application *ServerApplication) ensureRequiredConfiguration(configuration ServerConfig) error {
	var missingParameters []string

	if configuration.DatabaseDataSourceName == "" {
		missingParameters = append(missingParameters, flagNameDatabaseDataSourceName)
	}

	if configuration.AdminBearerToken == "" {
		missingParameters = append(missingParameters, flagNameAdminBearerToken)
	}

	if len(missingParameters) == 0 {
		return nil
	}

	return fmt.Errorf("%s: %s", missingConfigurationMessage, strings.Join(missingParameters, ", "))
}

func loadAliasTable(path string) (mapping.AliasTable, error) {
	if path == "" {
		return mapping.DefaultAliasTable(), nil
	}
	return mapping.LoadAliasTable(path)
}

func describeSchedule(configuration ServerConfig) string {
	if configuration.ImportSchedule != "" {
		return configuration.ImportSchedule
	}
	return "@every " + configuration.ImportInterval.String()
}

// loadEnvironmentFile exports variables from path without overriding the process environment.
func loadEnvironmentFile(path string) error {
	loadErr := godotenv.Load(path)
	if loadErr == nil || errors.Is(loadErr, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("%s: %w", environmentFileErrorMessage, loadErr)
}

func main() {
	if environmentErr := loadEnvironmentFile(defaultEnvironmentFile); environmentErr != nil {
		fmt.Fprintln(os.Stderr, environmentErr)
		os.Exit(1)
	}

	application := NewServerApplication()
	rootCommand, commandErr := application.Command()
	if commandErr != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", commandInitializationFailure, commandErr)
		os.Exit(1)
	}

	if executeErr := rootCommand.Execute(); executeErr != nil {
		os.Exit(1)
	}
}
