package feed

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strconv"
	"time"

	"github.com/kilianp07/bustrack/core/model"
)

// TimeLayout is the upstream timestamp format.
const TimeLayout = "2006-01-02 15:04:05"

type xmlResult struct {
	XMLName xml.Name
	Buses   []xmlBus `xml:",any"`
}

type xmlBus struct {
	XMLName xml.Name
	Attrs   []xml.Attr `xml:",any,attr"`
}

// Parse decodes a getbuses response. The root element must be Result and
// every child a Bus carrying exactly model.ReportFields; timestamps are read
// in loc.
func Parse(data []byte, loc *time.Location) ([]model.VehicleReport, error) {
	if loc == nil {
		loc = time.UTC
	}
	var res xmlResult
	dec := xml.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&res); err != nil {
		return nil, fmt.Errorf("decode feed: %w", err)
	}
	if res.XMLName.Local != "Result" {
		return nil, fmt.Errorf("decode feed: root element %q, want Result", res.XMLName.Local)
	}
	out := make([]model.VehicleReport, 0, len(res.Buses))
	for i, b := range res.Buses {
		if b.XMLName.Local != "Bus" {
			return nil, fmt.Errorf("decode feed: element %d is %q, want Bus", i, b.XMLName.Local)
		}
		r, err := parseBus(b.Attrs, loc)
		if err != nil {
			return nil, fmt.Errorf("bus %d: %w", i, err)
		}
		out = append(out, r)
	}
	return out, nil
}

func parseBus(attrs []xml.Attr, loc *time.Location) (model.VehicleReport, error) {
	names := make([]string, len(attrs))
	vals := make(map[string]string, len(attrs))
	for i, a := range attrs {
		names[i] = a.Name.Local
		vals[a.Name.Local] = a.Value
	}
	if err := model.CheckFields(model.ReportFields, names); err != nil {
		return model.VehicleReport{}, err
	}
	p := fieldParser{vals: vals, loc: loc}
	r := model.VehicleReport{
		ID:            p.integer("Id"),
		Name:          vals["Name"],
		UpdatedAt:     p.timestamp("Updated"),
		DelaySeconds:  int(p.integer("Delay")),
		Lat:           p.decimal("Lat"),
		Lon:           p.decimal("Lon"),
		JourneyID:     vals["JourneyId"],
		Distance:      int(p.integer("Distance")),
		Line:          vals["Line"],
		StartStation:  p.integer("StartStation"),
		EndStation:    p.integer("EndStation"),
		StartName:     vals["StartName"],
		EndName:       vals["EndName"],
		StartTime:     p.timestamp("StartTime"),
		EndTime:       p.timestamp("EndTime"),
		DirectionText: vals["DirectionText"],
	}
	return r, p.err
}

// fieldParser keeps the first conversion error.
type fieldParser struct {
	vals map[string]string
	loc  *time.Location
	err  error
}

func (p *fieldParser) fail(name string, err error) {
	if p.err == nil {
		p.err = fmt.Errorf("attribute %s=%q: %w", name, p.vals[name], err)
	}
}

func (p *fieldParser) integer(name string) int64 {
	v, err := strconv.ParseInt(p.vals[name], 10, 64)
	if err != nil {
		p.fail(name, err)
	}
	return v
}

func (p *fieldParser) decimal(name string) float64 {
	v, err := strconv.ParseFloat(p.vals[name], 64)
	if err != nil {
		p.fail(name, err)
	}
	return v
}

func (p *fieldParser) timestamp(name string) time.Time {
	v, err := time.ParseInLocation(TimeLayout, p.vals[name], p.loc)
	if err != nil {
		p.fail(name, err)
	}
	return v
}
