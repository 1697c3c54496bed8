package tryfi

import (
	"math"
	"strings"
	"time"
)

// UnknownLocation is reported when neither a place nor an area name is known.
const UnknownLocation = "Unknown"

// caloriesPerStep is the rough estimate the dashboard has always shown.
const caloriesPerStep = 0.04

// Inputs are the raw query results for one sync.
type Inputs struct {
	Pet     Pet
	Daily   *ActivitySummary
	Weekly  *ActivitySummary
	Ongoing OngoingActivity
	Rest    []RestSummary
	Now     time.Time
}

// SleepStage is one named sleep stage with its duration.
type SleepStage struct {
	Type    string `json:"type"`
	Minutes int    `json:"minutes"`
}

// SleepSummary is the most recent rest summary, flattened.
type SleepSummary struct {
	Start  string       `json:"start"`
	End    string       `json:"end"`
	Stages []SleepStage `json:"stages"`
}

// Snapshot is the flat record produced from the vendor's nested responses.
type Snapshot struct {
	PetID          string        `json:"petId"`
	PetName        string        `json:"petName"`
	Breed          string        `json:"breed"`
	Date           string        `json:"date"`
	Steps          int           `json:"steps"`
	DailyGoal      int           `json:"dailyGoal"`
	GoalPercent    int           `json:"goalPercent"`
	GoalAchieved   bool          `json:"goalAchieved"`
	DistanceMeters float64       `json:"distanceMeters"`
	Calories       int           `json:"calories"`
	ActiveMinutes  int           `json:"activeMinutes"`
	RestMinutes    int           `json:"restMinutes"`
	NapMinutes     int           `json:"napMinutes"`
	WeeklySteps    int           `json:"weeklySteps"`
	WeeklyGoal     int           `json:"weeklyGoal"`
	History        []DailySteps  `json:"history"`
	Battery        int           `json:"battery"`
	LastDeviceSync *string       `json:"lastDeviceSync"`
	Activity       string        `json:"currentActivity"`
	ActivityStart  *string       `json:"activityStart"`
	Location       string        `json:"location"`
	Latitude       *float64      `json:"latitude"`
	Longitude      *float64      `json:"longitude"`
	Sleep          *SleepSummary `json:"sleep"`
	SyncedAt       time.Time     `json:"syncedAt"`
}

// GoalPercent is round(steps/goal*100), or 0 when goal <= 0. While steps < goal
// the result is held at 99, so a percent of 100 or more always means
// GoalAchieved is true. 13499 of 13500 steps reports 99, not the rounded 100.
func GoalPercent(steps, goal int) int {
	if goal <= 0 {
		return 0
	}
	pct := int(math.Round(float64(steps) / float64(goal) * 100))
	if steps < goal && pct >= 100 {
		return 99
	}
	return pct
}

// GoalAchieved reports steps >= goal for a positive goal.
func GoalAchieved(steps, goal int) bool {
	return goal > 0 && steps >= goal
}

// CalorieEstimate converts steps into an approximate kcal figure.
func CalorieEstimate(steps int) int {
	return int(math.Round(float64(steps) * caloriesPerStep))
}

// Normalize flattens the query results. Missing optional data falls back to
// zero values, nil or UnknownLocation.
func Normalize(in Inputs) Snapshot {
	now := in.Now
	if now.IsZero() {
		now = time.Now()
	}
	now = now.UTC()

	snap := Snapshot{
		PetID:          in.Pet.ID,
		PetName:        in.Pet.Name,
		Breed:          in.Pet.BreedName(),
		Date:           now.Format("2006-01-02"),
		Battery:        in.Pet.Device.BatteryPercent(),
		LastDeviceSync: in.Pet.Device.LastSeen(),
		Location:       UnknownLocation,
		History:        []DailySteps{},
		SyncedAt:       now,
	}

	if d := in.Daily; d != nil {
		if date, ok := vendorDate(d.Start); ok {
			snap.Date = date
		}
		snap.Steps = d.TotalSteps
		snap.DailyGoal = d.StepGoal
		snap.DistanceMeters = d.TotalDistance
		snap.ActiveMinutes = d.TotalActivitySeconds / 60
	}
	snap.GoalPercent = GoalPercent(snap.Steps, snap.DailyGoal)
	snap.GoalAchieved = GoalAchieved(snap.Steps, snap.DailyGoal)
	snap.Calories = CalorieEstimate(snap.Steps)

	if w := in.Weekly; w != nil {
		snap.WeeklySteps = w.TotalSteps
		snap.WeeklyGoal = w.StepGoal
		for _, day := range w.DailySteps {
			date, ok := vendorDate(day.Date)
			if !ok {
				continue
			}
			day.Date = date
			snap.History = append(snap.History, day)
		}
	}

	applyOngoing(&snap, in.Ongoing)

	if len(in.Rest) > 0 {
		latest := mostRecentRest(in.Rest)
		snap.Sleep = &SleepSummary{Start: latest.Start, End: latest.End, Stages: []SleepStage{}}
		for _, amount := range latest.Amounts() {
			minutes := amount.Duration / 60
			snap.Sleep.Stages = append(snap.Sleep.Stages, SleepStage{Type: amount.Type, Minutes: minutes})
			switch strings.ToUpper(amount.Type) {
			case "NAP":
				snap.NapMinutes += minutes
			case "AWAKE":
			default:
				snap.RestMinutes += minutes
			}
		}
	}

	return snap
}

func applyOngoing(snap *Snapshot, activity OngoingActivity) {
	if activity == nil {
		return
	}
	common := activity.Common()
	snap.Activity = ActivityKind(activity)
	if common.Start != "" {
		start := common.Start
		snap.ActivityStart = &start
	}

	switch a := activity.(type) {
	case *OngoingRest:
		if a.Place != nil {
			if name := strings.TrimSpace(a.Place.Name); name != "" {
				snap.Location = name
			} else if addr := strings.TrimSpace(a.Place.Address); addr != "" {
				snap.Location = addr
			}
		}
		if snap.Location == UnknownLocation && common.AreaName != nil && strings.TrimSpace(*common.AreaName) != "" {
			snap.Location = *common.AreaName
		}
		if a.Position != nil {
			lat, lng := a.Position.Latitude, a.Position.Longitude
			snap.Latitude, snap.Longitude = &lat, &lng
		}
	case *OngoingWalk:
		if common.AreaName != nil && strings.TrimSpace(*common.AreaName) != "" {
			snap.Location = *common.AreaName
		}
	}
}

// mostRecentRest picks the summary with the latest start. Unparseable starts
// lose to parseable ones; ties keep the vendor's order.
func mostRecentRest(summaries []RestSummary) RestSummary {
	best := summaries[0]
	bestAt, bestOK := ParseTime(best.Start)
	for _, s := range summaries[1:] {
		at, ok := ParseTime(s.Start)
		if !ok {
			continue
		}
		if !bestOK || at.After(bestAt) {
			best, bestAt, bestOK = s, at, true
		}
	}
	return best
}

// SleepIntervalType maps a vendor sleep stage onto the stored interval type.
func SleepIntervalType(stage string) string {
	switch strings.ToUpper(stage) {
	case "NAP":
		return "nap"
	case "SLEEP":
		return "deep"
	default:
		return "rest"
	}
}
