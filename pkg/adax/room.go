package adax

import (
	"fmt"
	"math"
	"strconv"
)

// Room is a single heating zone, as returned by the content endpoint.
//
// Temperatures are encoded in hundredths of a degree Celsius. Fields the API did not return are nil.
type Room struct {
	ID                int     `json:"id"`
	Name              *string `json:"name,omitempty"`
	Temperature       *int    `json:"temperature,omitempty"`
	TargetTemperature *int    `json:"targetTemperature,omitempty"`
}

// GetName returns the room's name, or a default name if the API didn't provide one.
// An empty name is a name: it's returned as is.
func (r Room) GetName() string {
	if r.Name != nil {
		return *r.Name
	}
	return "Adax Element " + strconv.Itoa(r.ID)
}

// CurrentCelsius returns the current temperature in degrees Celsius.
func (r Room) CurrentCelsius() (float64, bool) {
	return fromHundredths(r.Temperature)
}

// TargetCelsius returns the target temperature in degrees Celsius.
func (r Room) TargetCelsius() (float64, bool) {
	return fromHundredths(r.TargetTemperature)
}

func fromHundredths(value *int) (float64, bool) {
	if value == nil {
		return 0, false
	}
	return float64(*value) / 100, true
}

// ToHundredths converts a temperature in degrees Celsius to the API's encoding, rounded to the nearest integer.
// Returns ErrInvalidTemperature if the temperature is not a finite number, or doesn't fit the API's integer range.
func ToHundredths(celsius float64) (int, error) {
	if math.IsNaN(celsius) || math.IsInf(celsius, 0) {
		return 0, fmt.Errorf("%w: %v", ErrInvalidTemperature, celsius)
	}
	hundredths := math.Round(celsius * 100)
	if hundredths > math.MaxInt32 || hundredths < math.MinInt32 {
		return 0, fmt.Errorf("%w: %v out of range", ErrInvalidTemperature, celsius)
	}
	return int(hundredths), nil
}

type content struct {
	Rooms []Room `json:"rooms"`
}

type control struct {
	Rooms []roomTarget `json:"rooms"`
}

type roomTarget struct {
	ID                int `json:"id"`
	TargetTemperature int `json:"targetTemperature"`
}
