package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/submitflow/submitflow/events"
	"github.com/submitflow/submitflow/store"
)

// EventsHandler streams run progress events over a websocket, one connection
// per observed job.
type EventsHandler struct {
	store  store.Store
	bus    events.Bus
	logger *zap.Logger
}

// NewEventsHandler creates an EventsHandler.
func NewEventsHandler(st store.Store, bus events.Bus, logger *zap.Logger) *EventsHandler {
	return &EventsHandler{store: st, bus: bus, logger: logger}
}

const eventWriteTimeout = 5 * time.Second

// HandleJobEvents upgrades to a websocket and forwards the job's events until
// the client disconnects or the bus closes.
func (h *EventsHandler) HandleJobEvents(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, h.logger)
	if !ok {
		return
	}
	if _, err := h.store.GetJob(r.Context(), id); err != nil {
		WriteError(w, err, h.logger)
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket accept failed", zap.Error(err))
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	h.logger.Info("event stream opened", zap.String("job_id", id.String()))
	h.stream(r.Context(), conn, id)
}

func (h *EventsHandler) stream(ctx context.Context, conn *websocket.Conn, jobID uuid.UUID) {
	ch, cancel := h.bus.Subscribe()
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case e, open := <-ch:
			if !open {
				return
			}
			if e.JobID != jobID {
				continue
			}
			writeCtx, cancelWrite := context.WithTimeout(ctx, eventWriteTimeout)
			err := wsjson.Write(writeCtx, conn, e)
			cancelWrite()
			if err != nil {
				h.logger.Debug("event stream closed", zap.Error(err))
				return
			}
		}
	}
}
