package main

import (
	"saas-admin/internal/directory"
	"saas-admin/internal/handler"
	"saas-admin/internal/middleware"
	"saas-admin/internal/model"
	"saas-admin/internal/provision"
	"saas-admin/pkg/config"
	"saas-admin/pkg/database"
	"saas-admin/pkg/jwtutil"
	"saas-admin/pkg/logger"
	"saas-admin/pkg/session"
	"saas-admin/prometheus"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

func main() {
	// Load configuration from .env file and environment variables
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger with config
	logger.InitLogger(cfg)
	log := logger.GetLogger()
	log.Info("Starting SaaS administration service...", cfg.LogConfig()...)

	// Initialize database and migrate the global tables
	if err := database.InitDB(cfg); err != nil {
		log.Fatal("Failed to initialize database", zap.Error(err))
	}
	log.Info("Database connection established")

	// Bootstrap diagnostics: an empty system_users table means nobody can
	// log into the system domain yet
	var systemUsers int64
	if err := database.GetDB().Model(&model.SystemUser{}).Count(&systemUsers).Error; err == nil && systemUsers == 0 {
		log.Warn("No system users exist yet; seed one before using the system domain")
	}
	if count, err := directory.CountActive(database.GetDB()); err == nil {
		prometheus.UpdateActiveTenants(count)
	}

	// Initialize JWT utility with the per-domain secret pairs
	jwtutil.Initialize(&cfg.JWT)
	log.Info("JWT utility initialized")

	// Connect the optional session registry
	session.Initialize(cfg)

	// Build the schema provisioner; the seed admin password is hashed once
	// here and reused for every schema it creates
	sqlDB, err := database.SQLDB()
	if err != nil {
		log.Fatal("Failed to get database handle", zap.Error(err))
	}
	adminHash, err := provision.HashSeedPassword(cfg.Seed.AdminPassword)
	if err != nil {
		log.Fatal("Failed to hash seed admin password", zap.Error(err))
	}
	handler.SetProvisioner(provision.New(provision.NewConn(sqlDB), cfg.Seed.AdminUsername, adminHash))
	log.Info("Schema provisioner ready")

	// Initialize Echo framework
	e := echo.New()

	// Apply global middleware - order matters
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORS())
	e.Use(middleware.RequestIDMiddleware)
	e.Use(logger.Middleware(log))
	e.Use(prometheus.MetricsMiddleware())

	// Public routes - no authentication required
	e.GET("/health", handler.HealthCheck)
	e.GET("/metrics", handler.MetricsHandler)

	// Unauthenticated tenant discovery: the one endpoint allowed to read a
	// client-supplied tenant hint
	e.GET("/tenants/lookup", handler.LookupTenant)

	// Authentication routes, one group per domain
	authSystem := e.Group("/auth/system")
	authSystem.POST("/login", handler.SystemLogin)
	authSystem.POST("/refresh", handler.SystemRefresh)
	authSystem.POST("/logout", handler.SystemLogout, middleware.RequireDomain(jwtutil.DomainSystem))
	authSystem.GET("/profile", handler.SystemProfile, middleware.RequireDomain(jwtutil.DomainSystem))

	authTenant := e.Group("/auth/tenant")
	authTenant.POST("/login", handler.TenantLogin)
	authTenant.POST("/refresh", handler.TenantRefresh)
	authTenant.POST("/logout", handler.TenantLogout, middleware.RequireDomain(jwtutil.DomainTenant))
	authTenant.GET("/profile", handler.TenantProfile, middleware.RequireDomain(jwtutil.DomainTenant))

	// End-user routes carry the schema in the path; for authenticated ones
	// the path must agree with the schema claim in the verified token
	authUser := e.Group("/auth/user/:schemaName")
	authUser.POST("/login", handler.UserLogin)
	authUser.POST("/refresh", handler.UserRefresh)

	userScoped := e.Group("/auth/user/:schemaName",
		middleware.RequireDomain(jwtutil.DomainUser), middleware.MatchSchemaParam)
	userScoped.POST("/logout", handler.UserLogout)
	userScoped.GET("/profile", handler.UserProfile)
	userScoped.PUT("/profile", handler.UpdateUserProfile)
	userScoped.POST("/change-password", handler.ChangePassword)
	userScoped.PUT("/preferences", handler.UpdatePreferences)

	// System administration API
	system := e.Group("/api/system", middleware.RequireDomain(jwtutil.DomainSystem))

	tenants := system.Group("/tenants")
	tenants.GET("", handler.ListTenants)
	tenants.POST("", handler.CreateTenant)
	tenants.GET("/:id", handler.GetTenant)
	tenants.PATCH("/:id", handler.UpdateTenant)
	tenants.DELETE("/:id", handler.DeleteTenant)
	tenants.POST("/:id/provision", handler.ProvisionTenant)
	tenants.GET("/:id/modules", handler.ListTenantModules)
	tenants.PUT("/:id/modules/:moduleId", handler.ActivateTenantModule)

	packages := system.Group("/packages")
	packages.GET("", handler.ListPackages)
	packages.POST("", handler.CreatePackage)
	packages.GET("/:id", handler.GetPackage)
	packages.PATCH("/:id", handler.UpdatePackage)
	packages.DELETE("/:id", handler.DeletePackage)

	modules := system.Group("/modules")
	modules.GET("", handler.ListModules)
	modules.POST("", handler.CreateModule)
	modules.GET("/:id", handler.GetModule)
	modules.PATCH("/:id", handler.UpdateModule)
	modules.DELETE("/:id", handler.DeleteModule)

	// Tenant administration API
	tenantAPI := e.Group("/api/tenant", middleware.RequireDomain(jwtutil.DomainTenant))
	tenantAPI.GET("/users", handler.ListTenantUsers)
	tenantAPI.POST("/users", handler.CreateTenantUser)
	tenantAPI.DELETE("/users/:id", handler.DeleteTenantUser)
	tenantAPI.GET("/roles", handler.ListTenantRoles)
	tenantAPI.PUT("/users/:id/roles", handler.SetTenantUserRoles)

	// Start server
	port := cfg.Server.Port
	log.Info("Starting server", zap.String("port", port))
	if err := e.Start(":" + port); err != nil {
		log.Fatal("Failed to start server", zap.Error(err))
	}
}
