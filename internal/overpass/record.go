package overpass

import (
	"github.com/robert-malhotra/overpass-proxy/internal/predict"
	"github.com/robert-malhotra/overpass-proxy/internal/timezone"
)

// Record is the overpass prediction of one satellite at one point.
//
// A satellite without acquisitions, or whose fetch failed, has empty time and
// date fields; a failure is reported through Error and ErrorKind.
type Record struct {
	Satellite string `json:"satellite"`
	Name      string `json:"name,omitempty"`

	// TimeUTC is the HH:mm:ss of the latest acquisition.
	TimeUTC   string              `json:"timeUTC"`
	TimeLocal *timezone.LocalTime `json:"timeLocal"`

	PastDatesUTC   predict.DateSet `json:"pastDatesUTC"`
	PastDatesLocal predict.DateSet `json:"pastDatesLocal"`

	PredictedDatesUTC   predict.DateSet `json:"predictedDatesUTC"`
	PredictedDatesLocal predict.DateSet `json:"predictedDatesLocal"`

	// AllDates are the predicted dates followed by the past dates.
	AllDatesUTC   predict.DateSet `json:"allDatesUTC"`
	AllDatesLocal predict.DateSet `json:"allDatesLocal"`

	Error     string `json:"error,omitempty"`
	ErrorKind string `json:"errorKind,omitempty"`
}

// Failed reports whether the record carries an error.
func (r *Record) Failed() bool {
	return r.Error != ""
}

// emptyRecord returns a record with every date list set to an empty array.
func emptyRecord(satellite, name string) Record {
	return Record{
		Satellite:           satellite,
		Name:                name,
		PastDatesUTC:        predict.DateSet{},
		PastDatesLocal:      predict.DateSet{},
		PredictedDatesUTC:   predict.DateSet{},
		PredictedDatesLocal: predict.DateSet{},
		AllDatesUTC:         predict.DateSet{},
		AllDatesLocal:       predict.DateSet{},
	}
}

func failedRecord(satellite, name string, err error) Record {
	rec := emptyRecord(satellite, name)
	rec.Error = err.Error()
	rec.ErrorKind = ErrorKind(err)
	return rec
}

// concat joins two descending sets whose ranges do not overlap.
func concat(first, second predict.DateSet) predict.DateSet {
	out := make(predict.DateSet, 0, len(first)+len(second))
	out = append(out, first...)
	return append(out, second...)
}

// CombinedDates is the flat view across satellites.
type CombinedDates struct {
	DatesUTC   predict.DateSet `json:"datesUTC"`
	DatesLocal predict.DateSet `json:"datesLocal"`
}

// Combine unions the all-dates lists of every record without an error.
func Combine(records []Record) CombinedDates {
	combined := CombinedDates{
		DatesUTC:   predict.DateSet{},
		DatesLocal: predict.DateSet{},
	}
	for _, rec := range records {
		if rec.Failed() {
			continue
		}
		combined.DatesUTC = combined.DatesUTC.Union(rec.AllDatesUTC)
		combined.DatesLocal = combined.DatesLocal.Union(rec.AllDatesLocal)
	}
	return combined
}
