package sink

import (
	"comparison-controller/internal/compare"
	"comparison-controller/internal/errs"
)

// Report is the JSON summary of a run that the CLIs print and the worker
// sends back to the controller.
type Report struct {
	OverlayURL    string  `json:"overlayURL,omitempty"`
	DiffURL       string  `json:"diffURL,omitempty"`
	MismatchCount int64   `json:"mismatchCount"`
	DiffAmount    float64 `json:"diffAmount"`
	Width         int     `json:"width,omitempty"`
	Height        int     `json:"height,omitempty"`
	Error         string  `json:"error,omitempty"`
	ErrorSource   string  `json:"errorSource,omitempty"`
}

func NewReport(result *compare.Result, locations *Locations) *Report {
	report := &Report{
		MismatchCount: result.MismatchCount,
		DiffAmount:    result.DiffAmount,
		Width:         result.Width,
		Height:        result.Height,
	}
	if locations != nil {
		report.OverlayURL = locations.Overlay
		report.DiffURL = locations.Diff
	}
	return report
}

func ErrorReport(err error) *Report {
	return &Report{
		Error:       err.Error(),
		ErrorSource: errs.SourceOf(err),
	}
}
