package types

import (
	"errors"
	"math"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the calendar date format accepted for record dates.
const DateLayout = time.DateOnly

type Metric string

const (
	MetricTemperature Metric = "temperature"
	MetricHumidity    Metric = "humidity"
	MetricWindSpeed   Metric = "wind_speed"

	DefaultMetric = MetricTemperature
)

// Metrics lists every metric eligible for aggregation.
var Metrics = []Metric{MetricTemperature, MetricHumidity, MetricWindSpeed}

// Valid reports whether m is one of the known metrics.
func (m Metric) Valid() bool {
	switch m {
	case MetricTemperature, MetricHumidity, MetricWindSpeed:
		return true
	}
	return false
}

// Number is a finite float that decodes from either a JSON number or a
// numeric JSON string.
type Number float64

var errNotANumber = errors.New("not a finite number")

func (n *Number) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		return nil
	}
	if unq, err := strconv.Unquote(s); err == nil {
		s = strings.TrimSpace(unq)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return errNotANumber
	}
	*n = Number(f)
	return nil
}

// ObservationRequest is the payload accepted by the submit operation over
// both HTTP and MQTT.
type ObservationRequest struct {
	City        string  `json:"city" validate:"required"`
	Date        string  `json:"date" validate:"required,datetime=2006-01-02"`
	Temperature *Number `json:"temperature" validate:"required"`
	Humidity    *Number `json:"humidity" validate:"required"`
	WindSpeed   *Number `json:"windSpeed" validate:"required"`
}

// NewObservation is a validated observation ready to be stored.
type NewObservation struct {
	City        string
	Date        string
	Temperature float64
	Humidity    float64
	WindSpeed   float64
}

// Decimal2 marshals as a JSON number with exactly two decimal places.
type Decimal2 float64

func (d Decimal2) MarshalJSON() ([]byte, error) {
	return strconv.AppendFloat(nil, float64(d), 'f', 2, 64), nil
}

type CityAverage struct {
	CityName     string   `json:"city_name"`
	AverageValue Decimal2 `json:"average_value"`
}

type HistoryEntry struct {
	RecordID    int64     `json:"record_id"`
	CityName    string    `json:"city_name"`
	RecordDate  string    `json:"record_date"`
	Temperature float64   `json:"temperature"`
	Humidity    float64   `json:"humidity"`
	WindSpeed   float64   `json:"wind_speed"`
	RecordedAt  time.Time `json:"recorded_at"`
}
