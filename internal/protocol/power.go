package protocol

import "github.com/nerrad567/classroom-core/internal/room"

// Nominal loads in watts used by the aggregator's energy accounting.
const (
	multimediaOnWatts      = 450.0
	multimediaStandbyWatts = 0.5
	lightWatts             = 100.0
)

// acWatts maps mode and level to the nominal draw.
var acWatts = map[room.ACMode]map[int]float64{
	room.ACCool: {1: 800, 2: 3000, 3: 6200},
	room.ACHeat: {1: 800, 2: 4000, 3: 8400},
}

// EstimatePower returns the nominal power draw of the room's actuators in watts.
func EstimatePower(snap room.Snapshot) float64 {
	var total float64

	switch snap.Multimedia {
	case room.MultimediaOn:
		total += multimediaOnWatts
	case room.MultimediaStandby:
		total += multimediaStandbyWatts
	}

	for _, on := range snap.Lights {
		if on {
			total += lightWatts
		}
	}

	if snap.AirConditioner.On {
		total += acWatts[snap.AirConditioner.Mode][snap.AirConditioner.Level]
	}

	return total
}
