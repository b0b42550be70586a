// GTFS-realtime vehicle-position snapshot of the consist registry, built
// the way tidbyt-gtfs's parse/realtime.go reads the same wire format, here
// used to write rather than read a FeedMessage.
package server

import (
	"net/http"
	"strconv"

	gtfsproto "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"google.golang.org/protobuf/proto"

	"github.com/shivirity/busimulator/engine"
	"github.com/shivirity/busimulator/model"
)

func (s *Server) handleVehiclePositions(w http.ResponseWriter, r *http.Request) {
	eng := engine.New(s.Scenario, s.Line.Clone(), model.ClonePassengers(s.Arrivals), s.DepCount, s.DepDuration)
	ticks := make(chan engine.Tick, 1)
	stop := make(chan struct{})
	go eng.RunStreaming(stop, ticks)

	var last engine.Tick
	for tick := range ticks {
		last = tick
		close(stop)
		break
	}

	feed := buildFeed(last)
	b, err := proto.Marshal(feed)
	if err != nil {
		http.Error(w, "marshalling feed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/x-protobuf")
	_, _ = w.Write(b)
}

func buildFeed(tick engine.Tick) *gtfsproto.FeedMessage {
	timestamp := uint64(tick.Time)
	incrementality := gtfsproto.FeedHeader_FULL_DATASET
	version := "2.0"
	header := &gtfsproto.FeedHeader{
		GtfsRealtimeVersion: &version,
		Incrementality:      &incrementality,
		Timestamp:           &timestamp,
	}

	entities := make([]*gtfsproto.FeedEntity, 0, len(tick.Consists))
	for _, c := range tick.Consists {
		id := strconv.Itoa(c.ID)
		vehicleID := id
		position := &gtfsproto.Position{}
		vp := &gtfsproto.VehiclePosition{
			Vehicle: &gtfsproto.VehicleDescriptor{Id: &vehicleID},
			Position: position,
		}
		entities = append(entities, &gtfsproto.FeedEntity{
			Id:              &id,
			VehiclePosition: vp,
		})
	}

	return &gtfsproto.FeedMessage{Header: header, Entity: entities}
}
