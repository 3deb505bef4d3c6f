package slam

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/turtlelab/localize/logging"
	"github.com/turtlelab/localize/ros"
	"github.com/turtlelab/localize/utils"
)

// Service fetches the map on demand.
type Service interface {
	GetMap(ctx context.Context) (*Map, error)
}

type mapService struct {
	bus     ros.Bus
	timeout time.Duration
	logger  logging.Logger
}

// NewMapService returns a Service that calls the static map service on bus, waiting at most
// timeout for a response.
func NewMapService(bus ros.Bus, timeout time.Duration, logger logging.Logger) Service {
	return &mapService{bus: bus, timeout: timeout, logger: logger}
}

// GetMap calls the static map service and builds the Map from its response.
func (ms *mapService) GetMap(ctx context.Context) (*Map, error) {
	ctx, cancel := context.WithTimeout(ctx, ms.timeout)
	defer cancel()

	resp, err := ms.bus.Call(ctx, ros.ServiceStaticMap, ros.Empty{})
	if err != nil {
		return nil, errors.Wrapf(err, "calling %s", ros.ServiceStaticMap)
	}
	var grid ros.OccupancyGrid
	switch r := resp.(type) {
	case ros.GetMapResponse:
		grid = r.Map
	case *ros.GetMapResponse:
		grid = r.Map
	default:
		return nil, utils.NewUnexpectedTypeError[ros.GetMapResponse](resp)
	}
	m, err := NewMap(grid)
	if err != nil {
		return nil, err
	}
	width, height := m.Size()
	ms.logger.Debugw("map received", "width", width, "height", height, "resolution", m.Resolution())
	return m, nil
}

// ServeMap registers grid as the static map service on bus and publishes it once on the map
// topic.
func ServeMap(ctx context.Context, bus ros.Bus, grid ros.OccupancyGrid) error {
	bus.RegisterService(ros.ServiceStaticMap, func(ctx context.Context, req interface{}) (interface{}, error) {
		return ros.GetMapResponse{Map: grid}, nil
	})
	return bus.Publisher(ros.TopicMap).Publish(ctx, grid)
}
