package router

import (
	"github.com/cuttothechaseo/ai-finance-sub001/internal/api/handler"
	"github.com/gin-gonic/gin"
)

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *handler.Dependencies, allowedOrigins []string) *gin.Engine {
	r := gin.New()

	// Middleware
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(CORSMiddleware(allowedOrigins))

	healthHandler := handler.NewHealthHandler(deps)
	analysisHandler := handler.NewAnalysisHandler(deps)
	resumeHandler := handler.NewResumeHandler(deps)
	interviewHandler := handler.NewInterviewHandler(deps)
	networkingHandler := handler.NewNetworkingHandler(deps)
	paymentHandler := handler.NewPaymentHandler(deps)

	r.GET("/health", healthHandler.Health)

	requireUser := AuthMiddleware(deps.Verifier, deps.Logger)

	api := r.Group("/api")
	{
		// Service-to-service
		api.POST("/trigger-job-processing", APIKeyMiddleware(deps.TriggerAPIKey), analysisHandler.TriggerJobProcessing)
		api.POST("/parse-resume-pdf", UserOrInternalMiddleware(deps.Verifier, deps.InternalSecret, deps.Logger), resumeHandler.ParseResume)

		// Signed by the payment provider
		api.POST("/payments/webhook", paymentHandler.Webhook)

		user := api.Group("", requireUser)
		{
			user.POST("/create-analysis-job", analysisHandler.CreateAnalysisJob)
			user.GET("/get-analysis-status", analysisHandler.GetAnalysisStatus)
			user.GET("/analysis-jobs", analysisHandler.ListAnalysisJobs)
			user.GET("/analysis-jobs/export", analysisHandler.ExportAnalysisJobs)

			user.POST("/interviews/generate", interviewHandler.GenerateInterview)
			user.POST("/interviews/sessions", interviewHandler.StartSession)
			user.POST("/interviews/analyze", interviewHandler.AnalyzeInterview)

			user.POST("/networking/generate", networkingHandler.GenerateMessage)

			user.POST("/payments/checkout", paymentHandler.CreateCheckout)
		}
	}

	return r
}
