package tryfi

import (
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"
)

// Pet is the vendor's pet profile including its collar.
type Pet struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Gender string  `json:"gender"`
	Weight float64 `json:"weight"`
	Breed  *struct {
		Name string `json:"name"`
	} `json:"breed"`
	Device *Device `json:"device"`
}

// BreedName returns the breed or "Unknown".
func (p Pet) BreedName() string {
	if p.Breed == nil || strings.TrimSpace(p.Breed.Name) == "" {
		return "Unknown"
	}
	return p.Breed.Name
}

// Device is the collar. Info is an untyped JSON blob on the vendor side.
type Device struct {
	ID                  string         `json:"id"`
	ModuleID            string         `json:"moduleId"`
	Info                map[string]any `json:"info"`
	BatteryPercentField *float64       `json:"batteryPercent"`
	LastConnectionState *struct {
		Typename string `json:"__typename"`
		Date     string `json:"date"`
	} `json:"lastConnectionState"`
	LastHeardFromDevice string `json:"lastHeardFromDevice"`
}

// BatteryPercent reads the battery level from whichever field the vendor populated.
func (d *Device) BatteryPercent() int {
	if d == nil {
		return 0
	}
	if d.BatteryPercentField != nil {
		return int(*d.BatteryPercentField + 0.5)
	}
	switch v := d.Info["batteryPercent"].(type) {
	case float64:
		return int(v + 0.5)
	case string:
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			return int(parsed + 0.5)
		}
	}
	return 0
}

// LastSeen returns the last time the collar reported in, if known.
func (d *Device) LastSeen() *string {
	if d == nil {
		return nil
	}
	if d.LastConnectionState != nil && d.LastConnectionState.Date != "" {
		v := d.LastConnectionState.Date
		return &v
	}
	if d.LastHeardFromDevice != "" {
		v := d.LastHeardFromDevice
		return &v
	}
	return nil
}

// DailySteps is one day inside an ActivitySummary.
type DailySteps struct {
	Date       string `json:"date"`
	TotalSteps int    `json:"totalSteps"`
	StepGoal   int    `json:"stepGoal"`
}

// ActivitySummary is a daily or weekly step summary. The vendor has used
// several field names over time; all known aliases are accepted.
type ActivitySummary struct {
	Start                string
	End                  string
	TotalSteps           int
	StepGoal             int
	TotalDistance        float64
	TotalActivitySeconds int
	DailySteps           []DailySteps
}

// UnmarshalJSON accepts totalSteps|steps, stepGoal|dailyGoal and
// totalDistance|distance.
func (a *ActivitySummary) UnmarshalJSON(data []byte) error {
	var raw struct {
		Start                 string       `json:"start"`
		End                   string       `json:"end"`
		TotalSteps            *float64     `json:"totalSteps"`
		Steps                 *float64     `json:"steps"`
		StepGoal              *float64     `json:"stepGoal"`
		DailyGoal             *float64     `json:"dailyGoal"`
		TotalDistance         *float64     `json:"totalDistance"`
		Distance              *float64     `json:"distance"`
		TotalActivityDuration *float64     `json:"totalActivityDuration"`
		DailySteps            []DailySteps `json:"dailySteps"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*a = ActivitySummary{
		Start:                raw.Start,
		End:                  raw.End,
		TotalSteps:           int(firstNumber(raw.TotalSteps, raw.Steps)),
		StepGoal:             int(firstNumber(raw.StepGoal, raw.DailyGoal)),
		TotalDistance:        firstNumber(raw.TotalDistance, raw.Distance),
		TotalActivitySeconds: int(firstNumber(raw.TotalActivityDuration)),
		DailySteps:           raw.DailySteps,
	}
	return nil
}

func firstNumber(values ...*float64) float64 {
	for _, v := range values {
		if v != nil {
			return *v
		}
	}
	return 0
}

// SleepAmount is one named stage inside a rest summary. Duration is in seconds.
type SleepAmount struct {
	Type     string `json:"type"`
	Duration int    `json:"duration"`
}

// RestSummary is one day of rest/sleep data.
type RestSummary struct {
	Start string `json:"start"`
	End   string `json:"end"`
	Data  *struct {
		Typename     string        `json:"__typename"`
		SleepAmounts []SleepAmount `json:"sleepAmounts"`
	} `json:"data"`
}

// Amounts returns the sleep stages or nil.
func (r RestSummary) Amounts() []SleepAmount {
	if r.Data == nil {
		return nil
	}
	return r.Data.SleepAmounts
}

// Position is a latitude/longitude pair.
type Position struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Place is a named location the owner registered with the vendor.
type Place struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Address  string    `json:"address"`
	Radius   float64   `json:"radius"`
	Position *Position `json:"position"`
}

// LocationPoint is one sample along a walk's path.
type LocationPoint struct {
	Date        string    `json:"date"`
	ErrorRadius float64   `json:"errorRadius"`
	Location    *Position `json:"location"`
}

// ParseTime accepts the timestamp layouts the vendor has been seen to emit and
// keeps the offset they carry.
func ParseTime(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.000Z0700", "2006-01-02T15:04:05Z0700", "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// vendorDate reduces a vendor date or timestamp to YYYY-MM-DD.
func vendorDate(value string) (string, bool) {
	t, ok := ParseTime(value)
	if !ok {
		return "", false
	}
	return t.Format("2006-01-02"), true
}
