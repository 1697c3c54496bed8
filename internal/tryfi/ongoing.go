package tryfi

import (
	"bytes"
	"fmt"

	json "github.com/goccy/go-json"
)

// OngoingActivity is the vendor's union of what the dog is doing right now.
// The only implementations are *OngoingWalk and *OngoingRest.
type OngoingActivity interface {
	Common() OngoingCommon
	isOngoing()
}

// OngoingCommon holds the fields shared by every variant.
type OngoingCommon struct {
	Typename            string  `json:"__typename"`
	Start               string  `json:"start"`
	AreaName            *string `json:"areaName"`
	LastReportTimestamp string  `json:"lastReportTimestamp"`
	TotalSteps          int     `json:"totalSteps"`
}

// OngoingWalk exposes a path, never a single point.
type OngoingWalk struct {
	OngoingCommon
	Distance  float64         `json:"distance"`
	Positions []LocationPoint `json:"positions"`
}

// OngoingRest exposes a static position and, when known, a named place.
type OngoingRest struct {
	OngoingCommon
	Position *Position `json:"position"`
	Place    *Place    `json:"place"`
}

func (w *OngoingWalk) Common() OngoingCommon { return w.OngoingCommon }
func (r *OngoingRest) Common() OngoingCommon { return r.OngoingCommon }
func (*OngoingWalk) isOngoing() {}
func (*OngoingRest) isOngoing() {}

// DecodeOngoingActivity picks the variant from the __typename discriminator.
// A JSON null decodes to a nil activity.
func DecodeOngoingActivity(raw []byte) (OngoingActivity, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}

	var head struct {
		Typename string `json:"__typename"`
	}
	if err := json.Unmarshal(trimmed, &head); err != nil {
		return nil, fmt.Errorf("decode ongoing activity: %w", err)
	}

	switch head.Typename {
	case "OngoingWalk", "Walk":
		var walk OngoingWalk
		if err := json.Unmarshal(trimmed, &walk); err != nil {
			return nil, fmt.Errorf("decode ongoing walk: %w", err)
		}
		return &walk, nil
	case "OngoingRest", "Rest":
		var rest OngoingRest
		if err := json.Unmarshal(trimmed, &rest); err != nil {
			return nil, fmt.Errorf("decode ongoing rest: %w", err)
		}
		return &rest, nil
	default:
		return nil, fmt.Errorf("unsupported ongoing activity type %q", head.Typename)
	}
}

// ActivityKind returns "Walk", "Rest" or "" for a nil activity.
func ActivityKind(a OngoingActivity) string {
	switch a.(type) {
	case *OngoingWalk:
		return "Walk"
	case *OngoingRest:
		return "Rest"
	default:
		return ""
	}
}
