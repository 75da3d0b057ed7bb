package api

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/robert-malhotra/overpass-proxy/internal/overpass"
)

var validate = validator.New()

// pointQuery holds the lat/lon query parameters shared by most endpoints.
type pointQuery struct {
	Lat string `validate:"required,latitude"`
	Lon string `validate:"required,longitude"`
}

func parsePointQuery(q url.Values) (overpass.GeoPoint, error) {
	pq := pointQuery{
		Lat: strings.TrimSpace(q.Get("lat")),
		Lon: strings.TrimSpace(q.Get("lon")),
	}
	if err := validate.Struct(pq); err != nil {
		return overpass.GeoPoint{}, validationError(err)
	}
	return pq.toPoint()
}

func (pq pointQuery) toPoint() (overpass.GeoPoint, error) {
	lat, err := strconv.ParseFloat(pq.Lat, 64)
	if err != nil {
		return overpass.GeoPoint{}, fmt.Errorf("lat: %w", err)
	}
	lon, err := strconv.ParseFloat(pq.Lon, 64)
	if err != nil {
		return overpass.GeoPoint{}, fmt.Errorf("lon: %w", err)
	}
	return overpass.GeoPoint{Lat: lat, Lon: lon}, nil
}

// acquisitionsQuery holds the parameters of the acquisitions endpoint.
type acquisitionsQuery struct {
	Point    pointQuery
	Limit    string `validate:"omitempty,number"`
	Datetime string
}

func (a *acquisitionsQuery) bind(q url.Values) {
	a.Point = pointQuery{
		Lat: strings.TrimSpace(q.Get("lat")),
		Lon: strings.TrimSpace(q.Get("lon")),
	}
	a.Limit = strings.TrimSpace(q.Get("limit"))
	a.Datetime = strings.TrimSpace(q.Get("datetime"))
}

// timezoneQuery holds the parameters of the timezone endpoint.
type timezoneQuery struct {
	Date string `validate:"omitempty,datetime=2006-01-02"`
	Time string `validate:"omitempty,datetime=15:04:05"`
}

// predictQuery holds the parameters of the predict endpoint.
type predictQuery struct {
	Start      []string `validate:"required,min=1,max=100,dive,datetime=2006-01-02"`
	Cycle      int      `validate:"min=1,max=366"`
	Iterations int      `validate:"min=1,max=1000"`
}

func (p *predictQuery) bind(q url.Values, defaultCycle, defaultIterations int) error {
	for _, raw := range q["start"] {
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				p.Start = append(p.Start, part)
			}
		}
	}

	var err error
	if p.Cycle, err = intParam(q, "cycle", defaultCycle); err != nil {
		return err
	}
	if p.Iterations, err = intParam(q, "iterations", defaultIterations); err != nil {
		return err
	}
	return nil
}

func intParam(q url.Values, name string, def int) (int, error) {
	raw := strings.TrimSpace(q.Get(name))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", name)
	}
	return v, nil
}

// validationError turns validator errors into a readable message.
func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.ToLower(fe.Field())
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, field+" is required")
		case "latitude":
			msgs = append(msgs, field+" must be a latitude in [-90, 90]")
		case "longitude":
			msgs = append(msgs, field+" must be a longitude in [-180, 180]")
		case "datetime":
			msgs = append(msgs, fmt.Sprintf("%s must match %s", field, fe.Param()))
		default:
			if fe.Param() != "" {
				msgs = append(msgs, fmt.Sprintf("%s failed %s=%s", field, fe.Tag(), fe.Param()))
			} else {
				msgs = append(msgs, fmt.Sprintf("%s failed %s", field, fe.Tag()))
			}
		}
	}
	return errors.New(strings.Join(msgs, "; "))
}
