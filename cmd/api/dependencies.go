package api

import (
	"fmt"
	"log/slog"

	billinggateway "github.com/FACorreiaa/billing-intake/internal/domain/billing/gateway"
	billinghandler "github.com/FACorreiaa/billing-intake/internal/domain/billing/handler"
	billingrepo "github.com/FACorreiaa/billing-intake/internal/domain/billing/repository"
	billingservice "github.com/FACorreiaa/billing-intake/internal/domain/billing/service"
	"github.com/FACorreiaa/billing-intake/internal/domain/import/assembler"
	"github.com/FACorreiaa/billing-intake/internal/domain/import/extract"
	importhandler "github.com/FACorreiaa/billing-intake/internal/domain/import/handler"
	"github.com/FACorreiaa/billing-intake/internal/domain/import/parser"
	importrepo "github.com/FACorreiaa/billing-intake/internal/domain/import/repository"
	importservice "github.com/FACorreiaa/billing-intake/internal/domain/import/service"

	"github.com/FACorreiaa/billing-intake/pkg/config"
	"github.com/FACorreiaa/billing-intake/pkg/db"
)

// Dependencies holds all application dependencies
type Dependencies struct {
	Config *config.Config
	DB     *db.DB
	Logger *slog.Logger

	// Repositories
	ImportRepo  importrepo.ParseJobRepository
	BillingRepo billingrepo.BillingModelRepository

	// External collaborators, nil when not configured
	Stripe billinggateway.Gateway
	OCR    extract.Recognizer

	// Services
	ImportService  *importservice.ImportService
	BillingService *billingservice.BillingService

	// Handlers
	ImportHandler  *importhandler.ImportHandler
	BillingHandler *billinghandler.BillingHandler
}

// InitDependencies initializes all application dependencies
func InitDependencies(cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	// Initialize database
	if err := deps.initDatabase(); err != nil {
		return nil, fmt.Errorf("failed to init database: %w", err)
	}

	// Initialize repositories
	deps.initRepositories()

	// Initialize external clients
	if err := deps.initClients(); err != nil {
		deps.Cleanup()
		return nil, fmt.Errorf("failed to init clients: %w", err)
	}

	// Initialize services
	deps.initServices()

	// Initialize handlers
	deps.initHandlers()

	logger.Info("all dependencies initialized successfully")

	return deps, nil
}

// initDatabase initializes the database connection and runs migrations
func (d *Dependencies) initDatabase() error {
	database, err := db.New(db.Config{
		DSN:             d.Config.Database.DSN(),
		MaxConns:        d.Config.Database.MaxConns,
		MinConns:        d.Config.Database.MinConns,
		MaxConnLifetime: d.Config.Database.MaxConnLifetime,
		MaxConnIdleTime: d.Config.Database.MaxConnIdleTime,
	}, d.Logger)
	if err != nil {
		return err
	}

	d.DB = database

	// Run migrations
	if err := d.DB.RunMigrations(); err != nil {
		d.DB.Close()
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	d.Logger.Info("database connected and migrations completed successfully")
	return nil
}

// initRepositories initializes all repository layer dependencies
func (d *Dependencies) initRepositories() {
	d.ImportRepo = importrepo.NewPostgresParseJobRepository(d.DB.Pool)
	d.BillingRepo = billingrepo.NewPostgresBillingModelRepository(d.DB.Pool)

	d.Logger.Info("repositories initialized")
}

// initClients builds the Stripe and OCR clients that are configured
func (d *Dependencies) initClients() error {
	if d.Config.Stripe.Enabled() {
		gw, err := billinggateway.NewStripeGateway(billinggateway.Config{
			SecretKey: d.Config.Stripe.SecretKey,
			APIURL:    d.Config.Stripe.APIURL,
			Timeout:   d.Config.Stripe.Timeout,
		}, d.Logger)
		if err != nil {
			return err
		}
		d.Stripe = gw
		d.Logger.Info("stripe client configured")
	} else {
		d.Logger.Warn("STRIPE_SECRET_KEY not set; billing model creation is disabled")
	}

	if d.Config.OCR.Endpoint != "" {
		d.OCR = extract.NewOCRClient(d.Config.OCR.Endpoint, d.Config.OCR.APIKey, d.Logger)
		d.Logger.Info("ocr client configured", "endpoint", d.Config.OCR.Endpoint)
	}

	return nil
}

// initServices initializes all service layer dependencies
func (d *Dependencies) initServices() {
	p := parser.New(parser.Options{
		Defaults: assembler.Defaults{Currency: d.Config.Import.DefaultCurrency},
	})
	extractor := extract.New(d.OCR, d.Config.Import.MaxFileBytes)

	d.ImportService = importservice.NewImportService(d.ImportRepo, p, extractor, d.Logger)
	d.BillingService = billingservice.NewBillingService(d.BillingRepo, d.Stripe, d.Logger)

	d.Logger.Info("services initialized")
}

// initHandlers initializes all handler dependencies
func (d *Dependencies) initHandlers() {
	d.ImportHandler = importhandler.NewImportHandler(d.ImportService, d.Logger)
	d.BillingHandler = billinghandler.NewBillingHandler(d.BillingService, d.Logger)

	d.Logger.Info("handlers initialized")
}

// Cleanup closes all resources
func (d *Dependencies) Cleanup() {
	if d.DB != nil {
		d.DB.Close()
	}
	d.Logger.Info("cleanup completed")
}
