package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/net/websocket"

	"github.com/mirclinic/clinic-core/internal/reservation"
	"github.com/mirclinic/clinic-core/internal/schedule"
	"github.com/mirclinic/clinic-core/internal/viewsync"
	"github.com/mirclinic/clinic-core/internal/visit"
)

// Station names accepted by the live-feed endpoint. These are the only
// sanctioned filter/ordering pairs; station clients cannot subscribe to
// arbitrary queries.
const (
	StationFrontDesk    = "front-desk"
	StationBilling      = "billing"
	StationDocuments    = "documents"
	StationAppointments = "appointments"
)

// frontDeskStatuses is every in-progress state the waiting-room board shows.
var frontDeskStatuses = []visit.Status{
	visit.StatusReception,
	visit.StatusConsulting,
	visit.StatusTreatment,
	visit.StatusTesting,
}

// StationFeed streams full replacement snapshots of a station's live view
// over a websocket. One message per underlying change; the client re-renders
// entirely from each message.
type StationFeed struct {
	hub          *viewsync.Hub
	visits       *visit.Service
	reservations *reservation.Service
}

func NewStationFeed(hub *viewsync.Hub, visits *visit.Service, reservations *reservation.Service) *StationFeed {
	return &StationFeed{
		hub:          hub,
		visits:       visits,
		reservations: reservations,
	}
}

type SnapshotMessage struct {
	Station string `json:"station"`
	Records any    `json:"records"`
}

func (f *StationFeed) Handle(w http.ResponseWriter, r *http.Request) {
	websocket.Handler(func(conn *websocket.Conn) {
		f.serve(conn, r)
	}).ServeHTTP(w, r)
}

func (f *StationFeed) serve(conn *websocket.Conn, r *http.Request) {
	defer conn.Close()

	station := r.URL.Query().Get("station")
	collection, fetch, err := f.view(station, r.URL.Query().Get("date"))
	if err != nil {
		_ = websocket.JSON.Send(conn, ErrorResponse{Error: "invalid_station", Details: err.Error()})
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	sub, err := f.hub.Subscribe(ctx, collection, fetch)
	if err != nil {
		_ = websocket.JSON.Send(conn, ErrorResponse{Error: "store_unavailable", Details: "temporary failure, please try again shortly"})
		return
	}
	defer sub.Close()

	// Drain the client side only to observe disconnects.
	go func() {
		for {
			var discard string
			if err := websocket.Message.Receive(conn, &discard); err != nil {
				cancel()
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-sub.Done():
			return
		case snapshot := <-sub.Updates():
			msg := SnapshotMessage{Station: station, Records: snapshot}
			if err := websocket.JSON.Send(conn, msg); err != nil {
				return
			}
		}
	}
}

// view resolves a station name to its collection and fetch closure.
func (f *StationFeed) view(station, dateParam string) (string, viewsync.FetchFunc, error) {
	switch station {
	case StationFrontDesk:
		return visit.Collection, f.visitFetch(frontDeskStatuses), nil
	case StationBilling:
		return visit.Collection, f.visitFetch([]visit.Status{visit.StatusCompleted}), nil
	case StationDocuments:
		return visit.Collection, f.visitFetch([]visit.Status{visit.StatusPaid}), nil
	case StationAppointments:
		date, err := time.Parse(schedule.DateLayout, dateParam)
		if err != nil {
			return "", nil, fmt.Errorf("appointments station requires date=YYYY-MM-DD")
		}
		fetch := func(ctx context.Context) (any, error) {
			reservations, err := f.reservations.ListByDate(ctx, date)
			if err != nil {
				return nil, err
			}
			return toReservationResponses(reservations), nil
		}
		return reservation.Collection, fetch, nil
	default:
		return "", nil, fmt.Errorf("unknown station %q", station)
	}
}

func (f *StationFeed) visitFetch(statuses []visit.Status) viewsync.FetchFunc {
	return func(ctx context.Context) (any, error) {
		visits, err := f.visits.Queue(ctx, statuses)
		if err != nil {
			return nil, err
		}
		return toVisitResponses(visits), nil
	}
}
