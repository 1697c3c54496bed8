package tryfi

import (
	"sort"
	"strings"
)

// Operation is a GraphQL document ready to send.
type Operation struct {
	Name     string
	Document string
}

type fragment struct {
	body string
	uses []string
}

var fragments = map[string]fragment{
	"PositionCoordinates": {body: `fragment PositionCoordinates on Location {
  __typename
  latitude
  longitude
}`},
	"PlaceDetails": {body: `fragment PlaceDetails on Place {
  __typename
  id
  name
  address
  radius
  position { ...PositionCoordinates }
}`, uses: []string{"PositionCoordinates"}},
	"LocationPoint": {body: `fragment LocationPoint on LocationPoint {
  __typename
  date
  errorRadius
  location { ...PositionCoordinates }
}`, uses: []string{"PositionCoordinates"}},
	"OngoingActivityDetails": {body: `fragment OngoingActivityDetails on OngoingActivity {
  __typename
  start
  areaName
  lastReportTimestamp
  totalSteps
  ... on OngoingWalk {
    distance
    positions { ...LocationPoint }
  }
  ... on OngoingRest {
    position { ...PositionCoordinates }
    place { ...PlaceDetails }
  }
}`, uses: []string{"LocationPoint", "PositionCoordinates", "PlaceDetails"}},
	"ActivitySummaryDetails": {body: `fragment ActivitySummaryDetails on ActivitySummary {
  __typename
  start
  end
  totalSteps
  stepGoal
  totalDistance
  dailySteps {
    __typename
    date
    totalSteps
    stepGoal
  }
}`},
	"RestSummaryDetails": {body: `fragment RestSummaryDetails on RestSummary {
  __typename
  start
  end
  data {
    __typename
    ... on ConcreteRestSummaryData {
      sleepAmounts {
        __typename
        type
        duration
      }
    }
  }
}`},
	"DeviceDetails": {body: `fragment DeviceDetails on Device {
  __typename
  id
  moduleId
  info
  nextLocationUpdateExpectedBy
  lastConnectionState {
    __typename
    date
  }
}`},
	"PetProfile": {body: `fragment PetProfile on Pet {
  __typename
  id
  name
  gender
  weight
  breed {
    __typename
    name
  }
  device { ...DeviceDetails }
}`, uses: []string{"DeviceDetails"}},
}

// assemble appends every fragment reachable from roots to the operation body.
// Fragments are emitted once each, in name order.
func assemble(body string, roots ...string) string {
	needed := make(map[string]struct{})
	var visit func(name string)
	visit = func(name string) {
		if _, ok := needed[name]; ok {
			return
		}
		frag, ok := fragments[name]
		if !ok {
			panic("tryfi: unknown fragment " + name)
		}
		needed[name] = struct{}{}
		for _, dep := range frag.uses {
			visit(dep)
		}
	}
	for _, root := range roots {
		visit(root)
	}

	names := make([]string, 0, len(needed))
	for name := range needed {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString(strings.TrimSpace(body))
	for _, name := range names {
		b.WriteString("\n\n")
		b.WriteString(fragments[name].body)
	}
	return b.String()
}

var (
	opPets = Operation{Name: "Pets", Document: assemble(`query Pets {
  currentUser {
    __typename
    userHouseholds {
      __typename
      household {
        __typename
        pets { ...PetProfile }
      }
    }
  }
}`, "PetProfile")}

	opPetProfile = Operation{Name: "PetProfile", Document: assemble(`query PetProfile($petId: ID!) {
  pet(id: $petId) { ...PetProfile }
}`, "PetProfile")}

	opActivity = Operation{Name: "PetActivity", Document: assemble(`query PetActivity($petId: ID!) {
  pet(id: $petId) {
    __typename
    dailyStat: currentActivitySummary(period: DAILY) { ...ActivitySummaryDetails }
    weeklyStat: currentActivitySummary(period: WEEKLY) { ...ActivitySummaryDetails }
  }
}`, "ActivitySummaryDetails")}

	opLocation = Operation{Name: "PetLocation", Document: assemble(`query PetLocation($petId: ID!) {
  pet(id: $petId) {
    __typename
    ongoingActivity { ...OngoingActivityDetails }
  }
}`, "OngoingActivityDetails")}

	opRest = Operation{Name: "PetRest", Document: assemble(`query PetRest($petId: ID!, $limit: Int!) {
  pet(id: $petId) {
    __typename
    restSummaryFeed(cursor: null, period: DAILY, limit: $limit) {
      __typename
      restSummaries { ...RestSummaryDetails }
    }
  }
}`, "RestSummaryDetails")}
)
