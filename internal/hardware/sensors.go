package hardware

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"

	"github.com/nerrad567/classroom-core/internal/room"
)

// sensorDocument is the sampler's output format.
type sensorDocument struct {
	Temp     *float64 `json:"temp"`
	Humidity *float64 `json:"humidity"`
	Lux      *float64 `json:"lux"`

	// Person is 1 when the presence sensor detects someone.
	Person *int `json:"person"`
}

// SensorFile reads readings from a JSON document on disk.
type SensorFile struct {
	path string
}

// NewSensorFile creates a reader for path.
func NewSensorFile(path string) *SensorFile {
	return &SensorFile{path: path}
}

// ReadSensors parses the document. All four fields are required.
// Illumination is rounded to two decimals.
func (s *SensorFile) ReadSensors(ctx context.Context) (room.Readings, error) {
	if err := ctx.Err(); err != nil {
		return room.Readings{}, err
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return room.Readings{}, fmt.Errorf("%w: %w", ErrRead, err)
	}
	return parseSensorDocument(data)
}

func parseSensorDocument(data []byte) (room.Readings, error) {
	var doc sensorDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return room.Readings{}, fmt.Errorf("%w: %w", ErrRead, err)
	}
	if doc.Temp == nil || doc.Humidity == nil || doc.Lux == nil || doc.Person == nil {
		return room.Readings{}, fmt.Errorf("%w: incomplete sensor document", ErrRead)
	}

	return room.Readings{
		Temperature:  *doc.Temp,
		Humidity:     *doc.Humidity,
		Illumination: math.Round(*doc.Lux*100) / 100,
		Occupied:     *doc.Person != 0,
	}, nil
}
