package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"fintrack/internal/config"
	_ "fintrack/internal/docs" // Import swagger docs
	"fintrack/internal/events"
	"fintrack/internal/handlers"
	"fintrack/internal/middleware"
	"fintrack/internal/services"
	"fintrack/internal/store"
)

// newRouter wires services and handlers over ledger and registers every route.
func newRouter(appConfig *config.Config, ledger *store.Ledger, publisher events.Publisher) *gin.Engine {
	// Initialize services
	gate := services.NewConsistencyGate()
	auditService := services.NewAuditService(ledger)
	userService := services.NewUserService(ledger)
	categoryService := services.NewCategoryService(ledger)
	budgetService := services.NewBudgetService(ledger)
	allocationService := services.NewAllocationService(ledger, publisher)
	transactionService := services.NewTransactionService(ledger, gate, publisher)
	billService := services.NewBillService(ledger, gate, publisher)
	goalService := services.NewSavingsGoalService(ledger, gate, publisher)
	projectionService := services.NewProjectionService(ledger)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(userService, auditService)
	categoryHandler := handlers.NewCategoryHandler(categoryService, auditService)
	budgetHandler := handlers.NewBudgetHandler(budgetService, allocationService, projectionService, auditService)
	transactionHandler := handlers.NewTransactionHandler(transactionService, projectionService, auditService)
	billHandler := handlers.NewBillHandler(billService, projectionService, auditService)
	goalHandler := handlers.NewSavingsGoalHandler(goalService, projectionService, auditService)
	reportHandler := handlers.NewReportHandler(projectionService, userService)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogging())
	router.Use(middleware.ErrorHandler())

	// CORS middleware
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-API-Key, X-Request-ID")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	router.GET("/api/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := router.Group("/api/v1")

	// Public routes
	auth := v1.Group("/auth")
	auth.POST("/register", authHandler.Register)
	auth.POST("/login", authHandler.Login)

	// Service-to-service routes
	internal := v1.Group("/internal")
	internal.Use(middleware.ServiceKeyMiddleware(appConfig.ServiceAPIKey))
	internal.POST("/bills/sweep", billHandler.SweepOverdue)

	// Protected routes
	protected := v1.Group("/")
	protected.Use(middleware.AuthMiddleware())

	protected.GET("/profile", authHandler.GetProfile)
	protected.PUT("/profile/preferences", authHandler.UpdatePreferences)
	protected.DELETE("/profile", authHandler.DeleteProfile)
	protected.GET("/profile/audit-logs", authHandler.GetAuditLogs)

	categories := protected.Group("/categories")
	categories.POST("", categoryHandler.CreateCategory)
	categories.GET("", categoryHandler.GetCategories)
	categories.GET("/:id", categoryHandler.GetCategory)
	categories.PUT("/:id", categoryHandler.UpdateCategory)
	categories.DELETE("/:id", categoryHandler.DeleteCategory)
	categories.POST("/:id/reassign", categoryHandler.ReassignCategory)

	budgets := protected.Group("/budgets")
	budgets.POST("", budgetHandler.CreateBudget)
	budgets.GET("", budgetHandler.GetBudgets)
	budgets.GET("/:id", budgetHandler.GetBudget)
	budgets.PUT("/:id", budgetHandler.UpdateBudget)
	budgets.DELETE("/:id", budgetHandler.DeleteBudget)
	budgets.GET("/:id/allocations", budgetHandler.GetAllocations)
	budgets.PUT("/:id/allocations/:categoryId", budgetHandler.UpsertAllocation)
	budgets.DELETE("/:id/allocations/:categoryId", budgetHandler.RemoveAllocation)
	budgets.GET("/:id/utilization", budgetHandler.GetUtilization)

	transactions := protected.Group("/transactions")
	transactions.POST("", transactionHandler.CreateTransaction)
	transactions.GET("", transactionHandler.GetTransactions)
	transactions.GET("/stats", transactionHandler.GetTransactionStats)
	transactions.GET("/:id", transactionHandler.GetTransaction)
	transactions.PUT("/:id", transactionHandler.UpdateTransaction)
	transactions.DELETE("/:id", transactionHandler.DeleteTransaction)

	bills := protected.Group("/bills")
	bills.POST("", billHandler.CreateBill)
	bills.GET("", billHandler.GetBills)
	bills.GET("/:id", billHandler.GetBill)
	bills.PUT("/:id", billHandler.UpdateBill)
	bills.DELETE("/:id", billHandler.DeleteBill)
	bills.GET("/:id/status", billHandler.GetBillStatus)

	goals := protected.Group("/goals")
	goals.POST("", goalHandler.CreateGoal)
	goals.GET("", goalHandler.GetGoals)
	goals.GET("/:id", goalHandler.GetGoal)
	goals.PUT("/:id", goalHandler.UpdateGoal)
	goals.DELETE("/:id", goalHandler.DeleteGoal)
	goals.POST("/:id/contributions", goalHandler.Contribute)
	goals.GET("/:id/progress", goalHandler.GetProgress)

	reports := protected.Group("/reports")
	reports.GET("/spending", reportHandler.GetSpending)
	reports.GET("/overview", reportHandler.GetOverview)

	return router
}
