package web

import (
	"encoding/json"

	"periph.io/x/conn/v3/analog"

	ranalog "github.com/sweeney/room-sensor/internal/analog"
)

// RoomJSON is the body of the room endpoint.
type RoomJSON struct {
	Room RoomInner `json:"room"`
}

// RoomInner holds the current readings.
type RoomInner struct {
	Door  bool      `json:"door"`
	Light LightJSON `json:"light"`
}

// LightJSON is the light sensor reading. Voltage is in millivolts and is
// omitted when the converter is not calibrated.
type LightJSON struct {
	Raw     int  `json:"raw"`
	Voltage *int `json:"voltage,omitempty"`
}

func formatRoom(door bool, s analog.Sample, calibrated bool) []byte {
	light := LightJSON{Raw: int(s.Raw)}
	if calibrated {
		mv := ranalog.Millivolts(s.V)
		light.Voltage = &mv
	}
	data, _ := json.Marshal(RoomJSON{Room: RoomInner{Door: door, Light: light}})
	return data
}
