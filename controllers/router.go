package controllers

import (
	"html/template"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"options-signal/metrics"
)

const (
	requestIDKey    = "request_id"
	requestIDHeader = "X-Request-ID"
)

// NewRouter wires the HTTP routes
func NewRouter(sc *SignalController, m *metrics.Metrics, logger *logrus.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestID(), requestLogger(logger))
	router.SetHTMLTemplate(template.Must(template.New(dashboardTemplateName).Funcs(templateFuncs).Parse(dashboardTemplate)))

	router.GET("/health", sc.HandleHealth)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})))

	router.GET("/", sc.HandleDashboardPage)
	router.GET("/dashboard/:symbol", sc.HandleDashboardPage)

	v1 := router.Group("/api/v1")
	{
		v1.GET("/tickers", sc.HandleListTickers)
		v1.GET("/signal/:symbol", sc.HandleGetSignal)
		v1.GET("/options/:symbol", sc.HandleGetOptions)
	}

	return router
}

// requestID tags every request with an ID, reusing the caller's when present
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func requestLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.WithFields(logrus.Fields{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     c.Writer.Status(),
			"latency":    time.Since(start),
			"request_id": c.GetString(requestIDKey),
		}).Debug("Request handled")
	}
}
