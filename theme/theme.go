// Package theme maps each presentation theme to a fixed set of display labels. Themes only
// change text and colors, never computed results.
package theme

import (
	"errors"
	"fmt"
	"strings"
)

var ErrUnknownTheme = errors.New("unknown theme")

// Theme is a closed set of presentation themes. None is the unthemed landing state.
type Theme int

const (
	None Theme = iota
	FinancialShinobi
	TechnoExchange
	ImperialWealthClub
)

// All lists the selectable themes
var All = []Theme{FinancialShinobi, TechnoExchange, ImperialWealthClub}

func (t Theme) String() string {
	switch t {
	case FinancialShinobi:
		return "Financial Shinobi"
	case TechnoExchange:
		return "Techno Exchange"
	case ImperialWealthClub:
		return "Imperial Wealth Club"
	default:
		return "None"
	}
}

// Slug returns a lower snake case identifier, e.g. financial_shinobi
func (t Theme) Slug() string {
	return strings.ReplaceAll(strings.ToLower(t.String()), " ", "_")
}

// Parse accepts a display name or slug, case insensitive
func Parse(s string) (Theme, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	for _, t := range All {
		if norm == strings.ToLower(t.String()) || norm == t.Slug() {
			return t, nil
		}
	}
	return None, fmt.Errorf("%q, %w", s, ErrUnknownTheme)
}

func (t Theme) MarshalText() ([]byte, error) {
	return []byte(t.Slug()), nil
}

func (t *Theme) UnmarshalText(b []byte) error {
	if len(b) == 0 || strings.EqualFold(string(b), "none") {
		*t = None
		return nil
	}
	parsed, err := Parse(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Labels is the display text and chart styling for one theme
type Labels struct {
	Title        string    `json:"title"`
	SidebarTitle string    `json:"sidebar_title"`
	Stages       [8]string `json:"stages"`

	// Echarts is the ECharts theme name used when rendering charts
	Echarts string `json:"echarts"`

	PriceChart       string `json:"price_chart"`
	VolumeChart      string `json:"volume_chart"`
	CorrelationChart string `json:"correlation_chart"`
	ScatterChart     string `json:"scatter_chart"`
	ResidualChart    string `json:"residual_chart"`
	HistogramChart   string `json:"histogram_chart"`
	ComparisonChart  string `json:"comparison_chart"`
	PerfectLine      string `json:"perfect_line"`

	Actual    string `json:"actual"`
	Predicted string `json:"predicted"`
	Scaling   string `json:"scaling"`
}

var defaultLabels = Labels{
	Title:        "Market Master",
	SidebarTitle: "Pipeline",
	Stages: [8]string{
		"Welcome", "Load Data", "Preprocess", "Feature Engineering",
		"Train/Test Split", "Train Models", "Evaluate", "Results",
	},
	Echarts:          "white",
	PriceChart:       "Close Price",
	VolumeChart:      "Volume",
	CorrelationChart: "Feature Correlation",
	ScatterChart:     "Actual vs Predicted",
	ResidualChart:    "Residuals",
	HistogramChart:   "Residual Distribution",
	ComparisonChart:  "Model Comparison",
	PerfectLine:      "Perfect Prediction",
	Actual:           "Actual",
	Predicted:        "Predicted",
	Scaling:          "Standardize Features",
}

var labels = map[Theme]Labels{
	FinancialShinobi: {
		Title:        "FINANCIAL SHINOBI",
		SidebarTitle: "Training Stages",
		Stages: [8]string{
			"Begin Journey", "Gather Data", "Cleanse Data", "Forge Features",
			"Split Forces", "Train Model", "Test Powers", "Reveal Results",
		},
		Echarts:          "chalk",
		PriceChart:       "Blood Price Chronicle",
		VolumeChart:      "Chaos Frenzy Scroll",
		CorrelationChart: "Jutsu Blood Matrix",
		ScatterChart:     "Actual vs Prophesied Seals",
		ResidualChart:    "Residual Clash",
		HistogramChart:   "Prophecy Error Storm",
		ComparisonChart:  "Final Prophecy Showdown",
		PerfectLine:      "Sacred Seal",
		Actual:           "Actual Seal",
		Predicted:        "Prophesied Seal",
		Scaling:          "Apply Jutsu Scaling",
	},
	TechnoExchange: {
		Title:        "TECHNO EXCHANGE PROTOCOL",
		SidebarTitle: "Protocol Steps",
		Stages: [8]string{
			"Boot Protocol", "Upload Data Stream", "Clean Data Matrix", "Engineer Quantum Features",
			"Split Data Grid", "Train AI Node", "Evaluate Output", "Visualize Insights",
		},
		Echarts:          "westeros",
		PriceChart:       "Neon Price Stream",
		VolumeChart:      "Signal Volume",
		CorrelationChart: "Quantum Correlation Grid",
		ScatterChart:     "Actual vs Predicted Values",
		ResidualChart:    "Residual Plot",
		HistogramChart:   "Residual Distribution",
		ComparisonChart:  "Final Model Comparison",
		PerfectLine:      "Perfect Prediction",
		Actual:           "Actual Value",
		Predicted:        "Predicted Value",
		Scaling:          "Normalize Data Streams",
	},
	ImperialWealthClub: {
		Title:        "IMPERIAL WEALTH CLUB",
		SidebarTitle: "Club Ledger",
		Stages: [8]string{
			"Open the Ledger", "Record Entry", "Audit Accounts", "Calculate Dividends",
			"Partition Holdings", "Train the Banker", "Review the Ledger", "Reveal the Treasury",
		},
		Echarts:          "vintage",
		PriceChart:       "Wealth Over Time",
		VolumeChart:      "Volume of Trades",
		CorrelationChart: "Correlation of Holdings",
		ScatterChart:     "Actual vs Forecasted Entries",
		ResidualChart:    "Residual Ledger",
		HistogramChart:   "Error Distribution",
		ComparisonChart:  "Ledger Forecast Comparison",
		PerfectLine:      "True Ledger",
		Actual:           "Actual Entry",
		Predicted:        "Forecasted Entry",
		Scaling:          "Standardize Holdings",
	},
}

// Lookup returns the labels of a theme. None and unknown values use the plain labels.
func Lookup(t Theme) Labels {
	if l, exists := labels[t]; exists {
		return l
	}
	return defaultLabels
}

// Labels is shorthand for Lookup(t)
func (t Theme) Labels() Labels {
	return Lookup(t)
}
