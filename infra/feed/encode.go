package feed

import (
	"encoding/xml"
	"io"
	"strconv"
	"time"

	"github.com/kilianp07/bustrack/core/model"
)

// Encode writes reports as a getbuses response, timestamps in loc. Parse
// reads the output back.
func Encode(w io.Writer, reports []model.VehicleReport, loc *time.Location) error {
	if loc == nil {
		loc = time.UTC
	}
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	root := xml.StartElement{Name: xml.Name{Local: "Result"}}
	if err := enc.EncodeToken(root); err != nil {
		return err
	}
	ts := func(t time.Time) string { return t.In(loc).Format(TimeLayout) }
	for _, r := range reports {
		vals := []string{
			strconv.FormatInt(r.ID, 10), r.Name, ts(r.UpdatedAt), strconv.Itoa(r.DelaySeconds),
			strconv.FormatFloat(r.Lat, 'f', -1, 64), strconv.FormatFloat(r.Lon, 'f', -1, 64),
			r.JourneyID, strconv.Itoa(r.Distance), r.Line,
			strconv.FormatInt(r.StartStation, 10), strconv.FormatInt(r.EndStation, 10),
			r.StartName, r.EndName, ts(r.StartTime), ts(r.EndTime), r.DirectionText,
		}
		el := xml.StartElement{Name: xml.Name{Local: "Bus"}, Attr: make([]xml.Attr, len(vals))}
		for i, v := range vals {
			el.Attr[i] = xml.Attr{Name: xml.Name{Local: model.ReportFields[i]}, Value: v}
		}
		if err := enc.EncodeToken(el); err != nil {
			return err
		}
		if err := enc.EncodeToken(el.End()); err != nil {
			return err
		}
	}
	if err := enc.EncodeToken(root.End()); err != nil {
		return err
	}
	return enc.Flush()
}
