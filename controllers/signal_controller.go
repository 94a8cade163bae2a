package controllers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"options-signal/interfaces"
	"options-signal/services"
)

const evaluateTimeout = 30 * time.Second

// SignalController handles signal and options table requests
type SignalController struct {
	signalService interfaces.SignalEvaluator
	defaultMaxIV  float64
	logger        *logrus.Logger
}

// NewSignalController creates a new signal controller
func NewSignalController(signalService interfaces.SignalEvaluator, defaultMaxIV float64, logger *logrus.Logger) *SignalController {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}
	if services.ValidateMaxIV(defaultMaxIV) != nil {
		defaultMaxIV = services.DefaultIVFilter
	}

	return &SignalController{
		signalService: signalService,
		defaultMaxIV:  defaultMaxIV,
		logger:        logger,
	}
}

// HandleHealth reports liveness
// GET /health
func (sc *SignalController) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

// HandleListTickers lists the selectable tickers
// GET /api/v1/tickers
func (sc *SignalController) HandleListTickers(c *gin.Context) {
	tickers := sc.signalService.Tickers()

	c.JSON(http.StatusOK, gin.H{
		"count":   len(tickers),
		"tickers": tickers,
	})
}

// HandleGetSignal computes the dashboard snapshot for a ticker
// GET /api/v1/signal/:symbol
func (sc *SignalController) HandleGetSignal(c *gin.Context) {
	snapshot, reqErr := sc.evaluate(c, c.Param("symbol"))
	if reqErr != nil {
		reqErr.writeJSON(c)
		return
	}

	c.JSON(http.StatusOK, snapshot)
}

// HandleGetOptions returns the nearest expiration's calls below an IV ceiling
// GET /api/v1/options/:symbol?max_iv=0.6
func (sc *SignalController) HandleGetOptions(c *gin.Context) {
	maxIV, reqErr := sc.parseMaxIV(c)
	if reqErr != nil {
		reqErr.writeJSON(c)
		return
	}

	snapshot, reqErr := sc.evaluate(c, c.Param("symbol"))
	if reqErr != nil {
		reqErr.writeJSON(c)
		return
	}

	calls := services.FilterCallsByMaxIV(snapshot.OptionChain, maxIV)

	c.JSON(http.StatusOK, gin.H{
		"symbol":     snapshot.Symbol,
		"expiration": snapshot.Expiration,
		"max_iv":     maxIV,
		"count":      len(calls),
		"calls":      calls,
	})
}

// HandleDashboardPage renders the single page view.
// Failures render the page with an error banner instead of a JSON body.
// GET /  and  GET /dashboard/:symbol
func (sc *SignalController) HandleDashboardPage(c *gin.Context) {
	tickers := sc.signalService.Tickers()

	symbol := c.Param("symbol")
	if symbol == "" {
		symbol = c.Query("symbol")
	}
	if symbol == "" && len(tickers) > 0 {
		symbol = tickers[0]
	}

	maxIV, reqErr := sc.parseMaxIV(c)
	if reqErr != nil {
		c.HTML(reqErr.status, dashboardTemplateName, NewErrorView(symbol, tickers, sc.defaultMaxIV, reqErr.Error()))
		return
	}

	snapshot, reqErr := sc.evaluate(c, symbol)
	if reqErr != nil {
		c.HTML(reqErr.status, dashboardTemplateName, NewErrorView(symbol, tickers, maxIV, reqErr.Error()))
		return
	}

	c.HTML(http.StatusOK, dashboardTemplateName, NewDashboardView(snapshot, tickers, maxIV))
}

// requestError is a failed request's status and message
type requestError struct {
	status  int
	message string
	details string
}

func (e *requestError) Error() string {
	return e.message + ": " + e.details
}

func (e *requestError) writeJSON(c *gin.Context) {
	c.JSON(e.status, gin.H{
		"error":   e.message,
		"details": e.details,
	})
}

func (sc *SignalController) evaluate(c *gin.Context, symbol string) (*interfaces.DashboardSnapshot, *requestError) {
	// Add timeout to prevent indefinite hangs
	ctx, cancel := context.WithTimeout(c.Request.Context(), evaluateTimeout)
	defer cancel()

	snapshot, err := sc.signalService.Evaluate(ctx, symbol)
	if err != nil {
		if errors.Is(err, services.ErrInvalidTicker) {
			return nil, &requestError{
				status:  http.StatusBadRequest,
				message: "Invalid symbol",
				details: err.Error(),
			}
		}

		sc.logger.WithError(err).WithFields(logrus.Fields{
			"symbol":     symbol,
			"request_id": c.GetString(requestIDKey),
		}).Error("Failed to evaluate signal")
		return nil, &requestError{
			status:  http.StatusBadGateway,
			message: "Failed to fetch market data",
			details: err.Error(),
		}
	}

	return snapshot, nil
}

func (sc *SignalController) parseMaxIV(c *gin.Context) (float64, *requestError) {
	raw := c.Query("max_iv")
	if raw == "" {
		return sc.defaultMaxIV, nil
	}

	maxIV, err := strconv.ParseFloat(raw, 64)
	if err == nil {
		err = services.ValidateMaxIV(maxIV)
	}
	if err != nil {
		return 0, &requestError{
			status:  http.StatusBadRequest,
			message: "Invalid max_iv",
			details: "max_iv must be a number between 0.1 and 1.0",
		}
	}
	return maxIV, nil
}
