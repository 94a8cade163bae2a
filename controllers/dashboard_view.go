package controllers

import (
	"fmt"
	"html/template"
	"math"
	"strings"

	"options-signal/interfaces"
	"options-signal/services"
)

const (
	chartWidth  = 640.0
	chartHeight = 220.0
)

// DashboardView is the presentation model for the dashboard page and CLI output
type DashboardView struct {
	Symbol       string
	Tickers      []string
	LatestRSI    string
	AverageIV    string
	SignalLabel  string
	IsBuy        bool
	Insufficient bool
	Expiration   string
	NoOptions    bool
	RSIThreshold float64
	IVThreshold  float64
	MaxIV        float64
	Calls        []*interfaces.OptionContract
	ChartPoints  string
	ThresholdY   float64
	ChartWidth   float64
	ChartHeight  float64
	FirstDate    string
	LastDate     string
	GeneratedAt  string
	Error        string
}

// NewDashboardView formats a snapshot for display
func NewDashboardView(s *interfaces.DashboardSnapshot, tickers []string, maxIV float64) *DashboardView {
	v := &DashboardView{
		Symbol:       s.Symbol,
		Tickers:      tickers,
		LatestRSI:    "n/a",
		AverageIV:    FormatPercent(s.AverageIV),
		SignalLabel:  SignalLabel(s),
		RSIThreshold: s.Thresholds.RSIThreshold,
		IVThreshold:  s.Thresholds.IVThreshold,
		MaxIV:        maxIV,
		Calls:        services.FilterCallsByMaxIV(s.OptionChain, maxIV),
		NoOptions:    s.OptionChain.Empty(),
		ChartWidth:   chartWidth,
		ChartHeight:  chartHeight,
		ThresholdY:   rsiToY(s.Thresholds.RSIThreshold),
		GeneratedAt:  s.GeneratedAt.Format("2006-01-02 15:04:05 MST"),
	}

	if s.LatestRSI != nil {
		v.LatestRSI = fmt.Sprintf("%.2f", *s.LatestRSI)
	}
	if s.Signal != nil {
		v.IsBuy = *s.Signal == interfaces.SignalBuyCall
	}
	v.Insufficient = s.Status == interfaces.StatusInsufficientData
	if s.Expiration != nil {
		v.Expiration = s.Expiration.Format("2006-01-02")
	}
	if len(s.Bars) > 0 {
		v.FirstDate = s.Bars[0].Timestamp.Format("2006-01-02")
		v.LastDate = s.Bars[len(s.Bars)-1].Timestamp.Format("2006-01-02")
	}
	v.ChartPoints = chartPoints(s.RSISeries)

	return v
}

// NewErrorView keeps the selector usable when a page request fails
func NewErrorView(symbol string, tickers []string, maxIV float64, message string) *DashboardView {
	return &DashboardView{
		Symbol:  symbol,
		Tickers: tickers,
		MaxIV:   maxIV,
		Error:   message,
	}
}

// SignalLabel renders the signal the way both the page and the CLI show it
func SignalLabel(s *interfaces.DashboardSnapshot) string {
	if s.Status == interfaces.StatusInsufficientData || s.Signal == nil {
		return "Insufficient data"
	}
	if *s.Signal == interfaces.SignalBuyCall {
		return "BUY CALL"
	}
	return "No Signal"
}

// FormatPercent formats a fractional value such as implied volatility
func FormatPercent(v float64) string {
	return fmt.Sprintf("%.2f%%", v*100)
}

// chartPoints maps defined RSI entries onto an SVG polyline
func chartPoints(series interfaces.RSISeries) string {
	if len(series) < 2 {
		return ""
	}
	step := chartWidth / float64(len(series)-1)

	var b strings.Builder
	for i, value := range series {
		if math.IsNaN(value) {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%.1f,%.1f", float64(i)*step, rsiToY(value))
	}
	return b.String()
}

func rsiToY(value float64) float64 {
	return chartHeight - value/100*chartHeight
}

var templateFuncs = template.FuncMap{
	"percent": FormatPercent,
	"price": func(v float64) string {
		return fmt.Sprintf("%.2f", v)
	},
}
