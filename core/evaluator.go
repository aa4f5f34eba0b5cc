package core

import "github.com/signalsfoundry/geolocator/model"

// Decision reasons, also used as the decision label on sample metrics.
const (
	ReasonFirst     = "first"
	ReasonThreshold = "threshold"
	ReasonImproved  = "improved"
	ReasonTie       = "tie"
	ReasonWorse     = "worse"
)

// Decision is the outcome of evaluating one candidate sample.
type Decision struct {
	Accept bool
	Reason string
}

// Evaluate decides whether candidate replaces best. A candidate is accepted
// when there is no best yet, when it is strictly more accurate, or when it
// reaches the desired accuracy that best does not. Equal accuracy is
// rejected so the earlier sample is kept.
func Evaluate(best *model.Sample, candidate model.Sample, desiredAccuracyMeters float64) Decision {
	switch {
	case best == nil:
		return Decision{Accept: true, Reason: ReasonFirst}
	case candidate.AccuracyMeters <= desiredAccuracyMeters && best.AccuracyMeters > desiredAccuracyMeters:
		return Decision{Accept: true, Reason: ReasonThreshold}
	case candidate.AccuracyMeters < best.AccuracyMeters:
		return Decision{Accept: true, Reason: ReasonImproved}
	case candidate.AccuracyMeters == best.AccuracyMeters:
		return Decision{Accept: false, Reason: ReasonTie}
	default:
		return Decision{Accept: false, Reason: ReasonWorse}
	}
}
