// Package export writes prediction series and back-test evaluations as JSON,
// CSV or YAML.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kilianp07/bustrack/core/prediction"
)

// Format is an output encoding.
type Format string

const (
	JSON Format = "json"
	CSV  Format = "csv"
	YAML Format = "yaml"
)

// ParseFormat accepts json, csv, yaml or yml, case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "json":
		return JSON, nil
	case "csv":
		return CSV, nil
	case "yaml", "yml":
		return YAML, nil
	default:
		return "", fmt.Errorf("unknown export format %q", s)
	}
}

// SeriesRow is one (now, journey) prediction of a series.
type SeriesRow struct {
	Now       time.Time  `json:"now" yaml:"now"`
	JourneyID string     `json:"journey_id" yaml:"journey_id"`
	Predicted time.Time  `json:"predicted" yaml:"predicted"`
	Actual    *time.Time `json:"actual,omitempty" yaml:"actual,omitempty"`
}

// SeriesRows flattens s in now order, then journey id.
func SeriesRows(s prediction.Series) []SeriesRow {
	var rows []SeriesRow
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
			row := SeriesRow{Now: now, JourneyID: id, Predicted: s.Predictions[i][id]}
			if c, ok := s.Actual[id]; ok {
				at := c.UpdatedAt()
				row.Actual = &at
			}
			rows = append(rows, row)
		}
	}
	return rows
}

type residualDoc struct {
	JourneyID string    `yaml:"journey_id"`
	Now       time.Time `yaml:"now"`
	Predicted time.Time `yaml:"predicted"`
	Actual    time.Time `yaml:"actual"`
	ErrorS    float64   `yaml:"error_s"`
	LeadS     float64   `yaml:"lead_s"`
}

type summaryDoc struct {
	Count          int     `yaml:"count"`
	MeanError      float64 `yaml:"mean_error_s"`
	StdDev         float64 `yaml:"stddev_s"`
	MeanAbsError   float64 `yaml:"mean_abs_error_s"`
	MedianAbsError float64 `yaml:"median_abs_error_s"`
	P90AbsError    float64 `yaml:"p90_abs_error_s"`
	MaxAbsError    float64 `yaml:"max_abs_error_s"`
}

type evaluationDoc struct {
	Summary   summaryDoc    `yaml:"summary"`
	Residuals []residualDoc `yaml:"residuals"`
}

// WriteSeries encodes s to w.
func WriteSeries(w io.Writer, f Format, s prediction.Series) error {
	rows := SeriesRows(s)
	switch f {
	case JSON:
		return json.NewEncoder(w).Encode(rows)
	case YAML:
		return writeYAML(w, rows)
	case CSV:
		cw := csv.NewWriter(w)
		if err := cw.Write([]string{"now", "journey_id", "predicted", "actual"}); err != nil {
			return err
		}
		for _, r := range rows {
			actual := ""
			if r.Actual != nil {
				actual = r.Actual.Format(time.RFC3339)
			}
			if err := cw.Write([]string{r.Now.Format(time.RFC3339), r.JourneyID, r.Predicted.Format(time.RFC3339), actual}); err != nil {
				return err
			}
		}
		cw.Flush()
		return cw.Error()
	default:
		return fmt.Errorf("unknown export format %q", f)
	}
}

// WriteEvaluation encodes ev to w. CSV carries the residuals only.
func WriteEvaluation(w io.Writer, f Format, ev prediction.Evaluation) error {
	switch f {
	case JSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(ev)
	case YAML:
		doc := evaluationDoc{Summary: summaryDoc(ev.Summary), Residuals: make([]residualDoc, len(ev.Residuals))}
		for i, r := range ev.Residuals {
			doc.Residuals[i] = residualDoc{
				JourneyID: r.JourneyID, Now: r.Now, Predicted: r.Predicted, Actual: r.Actual,
				ErrorS: r.Error.Seconds(), LeadS: r.Lead.Seconds(),
			}
		}
		return writeYAML(w, doc)
	case CSV:
		cw := csv.NewWriter(w)
		if err := cw.Write([]string{"journey_id", "now", "predicted", "actual", "error_s", "lead_s"}); err != nil {
			return err
		}
		for _, r := range ev.Residuals {
			rec := []string{
				r.JourneyID,
				r.Now.Format(time.RFC3339),
				r.Predicted.Format(time.RFC3339),
				r.Actual.Format(time.RFC3339),
				strconv.FormatFloat(r.Error.Seconds(), 'f', -1, 64),
				strconv.FormatFloat(r.Lead.Seconds(), 'f', -1, 64),
			}
			if err := cw.Write(rec); err != nil {
				return err
			}
		}
		cw.Flush()
		return cw.Error()
	default:
		return fmt.Errorf("unknown export format %q", f)
	}
}

func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}
