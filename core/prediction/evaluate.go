package prediction

import (
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"
)

// Residual compares one prediction with the crossing later observed.
type Residual struct {
	JourneyID string        `json:"journey_id"`
	Now       time.Time     `json:"now"`
	Predicted time.Time     `json:"predicted"`
	Actual    time.Time     `json:"actual"`
	Error     time.Duration `json:"error"`
	Lead      time.Duration `json:"lead"`
}

// Summary aggregates residual errors, in seconds.
type Summary struct {
	Count          int     `json:"count"`
	MeanError      float64 `json:"mean_error_s"`
	StdDev         float64 `json:"stddev_s"`
	MeanAbsError   float64 `json:"mean_abs_error_s"`
	MedianAbsError float64 `json:"median_abs_error_s"`
	P90AbsError    float64 `json:"p90_abs_error_s"`
	MaxAbsError    float64 `json:"max_abs_error_s"`
}

// Evaluation is the scoring of a Series against observed crossings.
type Evaluation struct {
	Residuals []Residual `json:"residuals"`
	Summary   Summary    `json:"summary"`
}

// Evaluate scores every prediction of the series whose journey was later seen
// crossing. Error is predicted minus actual on the upstream clock; Lead is how
// long before the observed crossing the prediction was made.
func Evaluate(s Series) Evaluation {
	var ev Evaluation
	for i, now := range s.Nows {
		if i >= len(s.Predictions) {
			break
		}
		ids := make([]string, 0, len(s.Predictions[i]))
		for id := range s.Predictions[i] {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			actual, ok := s.Actual[id]
			if !ok {
				continue
			}
			pred := s.Predictions[i][id]
			ev.Residuals = append(ev.Residuals, Residual{
				JourneyID: id,
				Now:       now,
				Predicted: pred,
				Actual:    actual.UpdatedAt(),
				Error:     pred.Sub(actual.UpdatedAt()),
				Lead:      actual.ObservedAt().Sub(now),
			})
		}
	}
	ev.Summary = summarize(ev.Residuals)
	return ev
}

func summarize(res []Residual) Summary {
	if len(res) == 0 {
		return Summary{}
	}
	errs := make([]float64, len(res))
	abs := make([]float64, len(res))
	for i, r := range res {
		errs[i] = r.Error.Seconds()
		abs[i] = math.Abs(errs[i])
	}
	sort.Float64s(abs)
	mean, std := stat.MeanStdDev(errs, nil)
	if len(errs) < 2 {
		std = 0
	}
	return Summary{
		Count:          len(res),
		MeanError:      mean,
		StdDev:         std,
		MeanAbsError:   stat.Mean(abs, nil),
		MedianAbsError: stat.Quantile(0.5, stat.Empirical, abs, nil),
		P90AbsError:    stat.Quantile(0.9, stat.Empirical, abs, nil),
		MaxAbsError:    abs[len(abs)-1],
	}
}
