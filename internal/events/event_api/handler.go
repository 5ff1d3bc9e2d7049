package event_api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"ms-events/internal/catalog"
	"ms-events/internal/dbresult"
	"ms-events/internal/logger"
	"ms-events/internal/models"
	"ms-events/internal/utils"
)

type EventStore interface {
	Create(ctx context.Context, in models.CreateEventInput) dbresult.Result[models.EventView]
	Update(ctx context.Context, in models.UpdateEventInput) dbresult.Result[models.EventView]
	Delete(ctx context.Context, id int64) dbresult.Result[struct{}]
	List(ctx context.Context, filters models.EventFilters) dbresult.Result[[]models.EventView]
	Get(ctx context.Context, id int64) dbresult.Result[models.EventView]
}

type VenueLister interface {
	List(ctx context.Context) dbresult.Result[[]models.Venue]
}

// Publisher announces committed changes. Failures are logged only.
type Publisher interface {
	PublishEventCreated(ctx context.Context, event models.EventView) error
	PublishEventUpdated(ctx context.Context, event models.EventView) error
	PublishEventDeleted(ctx context.Context, id int64) error
}

type Handler struct {
	Events    EventStore
	Venues    VenueLister
	Sports    *catalog.Catalog
	Publisher Publisher
	Logger    *logger.Logger
}

// NewHandler wires the API. publisher may be nil.
func NewHandler(events EventStore, venues VenueLister, sports *catalog.Catalog, publisher Publisher, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.Discard()
	}
	return &Handler{
		Events:    events,
		Venues:    venues,
		Sports:    sports,
		Publisher: publisher,
		Logger:    log,
	}
}

// RegisterRoutes mounts the API. requireAuth wraps the mutating routes.
func (h *Handler) RegisterRoutes(r chi.Router, requireAuth func(http.Handler) http.Handler) {
	r.Get("/health", h.Health)

	r.Route("/api", func(r chi.Router) {
		r.Get("/sports", h.ListSports)
		r.Get("/venues", h.ListVenues)

		r.Route("/events", func(r chi.Router) {
			r.Get("/", h.ListEvents)
			r.Get("/{eventId}", h.GetEvent)

			r.Group(func(r chi.Router) {
				if requireAuth != nil {
					r.Use(requireAuth)
				}
				r.Post("/", h.CreateEvent)
				r.Put("/{eventId}", h.UpdateEvent)
				r.Delete("/{eventId}", h.DeleteEvent)
			})
		})
	})
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, utils.SuccessResponse("OK", map[string]string{"status": "up"}))
}

func (h *Handler) ListSports(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, utils.SuccessResponse("Sports retrieved", h.Sports.All()))
}

func (h *Handler) ListVenues(w http.ResponseWriter, r *http.Request) {
	res := h.Venues.List(r.Context())
	respond(h, w, "ListVenues", res, "Venues retrieved", "Failed to fetch venues", http.StatusOK)
}

func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filters := models.EventFilters{Search: query.Get("search")}

	if raw := query.Get("sportTypeId"); raw != "" {
		id, err := strconv.Atoi(raw)
		if err != nil {
			h.Logger.Warn("API", fmt.Sprintf("ListEvents: invalid sportTypeId %q", raw))
			h.writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("Failed to fetch events", fmt.Sprintf("Invalid sportTypeId: %q", raw)))
			return
		}
		filters.SportTypeID = &id
	}

	h.Logger.Debug("API", fmt.Sprintf("ListEvents: search=%q sportTypeId=%q", filters.Search, query.Get("sportTypeId")))
	res := h.Events.List(r.Context(), filters)
	respond(h, w, "ListEvents", res, "Events retrieved", "Failed to fetch events", http.StatusOK)
}

func (h *Handler) GetEvent(w http.ResponseWriter, r *http.Request) {
	id, ok := h.eventID(w, r, "Failed to fetch event")
	if !ok {
		return
	}
	res := h.Events.Get(r.Context(), id)
	respond(h, w, "GetEvent", res, "Event retrieved", "Failed to fetch event", http.StatusOK)
}

func (h *Handler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var in models.CreateEventInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		h.Logger.Error("API", fmt.Sprintf("CreateEvent: failed to decode request body: %v", err))
		h.writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("Failed to create event", "Invalid request body: "+err.Error()))
		return
	}

	res := h.Events.Create(r.Context(), in)
	if respond(h, w, "CreateEvent", res, "Event created", "Failed to create event", http.StatusCreated) && h.Publisher != nil {
		if err := h.Publisher.PublishEventCreated(r.Context(), res.Data); err != nil {
			h.Logger.Warn("KAFKA", fmt.Sprintf("CreateEvent: notification for %d not sent: %v", res.Data.ID, err))
		}
	}
}

func (h *Handler) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	id, ok := h.eventID(w, r, "Failed to update event")
	if !ok {
		return
	}

	var in models.UpdateEventInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		h.Logger.Error("API", fmt.Sprintf("UpdateEvent: failed to decode request body: %v", err))
		h.writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("Failed to update event", "Invalid request body: "+err.Error()))
		return
	}
	if in.ID != 0 && in.ID != id {
		h.writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("Failed to update event", "Event id in body does not match the URL"))
		return
	}
	in.ID = id

	res := h.Events.Update(r.Context(), in)
	if respond(h, w, "UpdateEvent", res, "Event updated", "Failed to update event", http.StatusOK) && h.Publisher != nil {
		if err := h.Publisher.PublishEventUpdated(r.Context(), res.Data); err != nil {
			h.Logger.Warn("KAFKA", fmt.Sprintf("UpdateEvent: notification for %d not sent: %v", id, err))
		}
	}
}

func (h *Handler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	id, ok := h.eventID(w, r, "Failed to delete event")
	if !ok {
		return
	}

	res := h.Events.Delete(r.Context(), id)
	if !res.Success {
		respond(h, w, "DeleteEvent", res, "", "Failed to delete event", http.StatusOK)
		return
	}

	h.writeJSON(w, http.StatusOK, utils.SuccessResponse("Event deleted", models.EventDeleted{ID: id}))
	if h.Publisher != nil {
		if err := h.Publisher.PublishEventDeleted(r.Context(), id); err != nil {
			h.Logger.Warn("KAFKA", fmt.Sprintf("DeleteEvent: notification for %d not sent: %v", id, err))
		}
	}
}

func (h *Handler) eventID(w http.ResponseWriter, r *http.Request, message string) (int64, bool) {
	raw := chi.URLParam(r, "eventId")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		h.Logger.Warn("API", fmt.Sprintf("invalid eventId %q", raw))
		h.writeJSON(w, http.StatusBadRequest, utils.ErrorResponse(message, fmt.Sprintf("Invalid event id: %q", raw)))
		return 0, false
	}
	return id, true
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body utils.APIResponse) {
	if err := utils.WriteJSON(w, status, body); err != nil {
		h.Logger.Error("API", err.Error())
	}
}

// respond writes res and reports whether it succeeded.
func respond[T any](h *Handler, w http.ResponseWriter, op string, res dbresult.Result[T], okMessage, failMessage string, successStatus int) bool {
	message := okMessage
	if !res.Success {
		message = failMessage
		h.Logger.Error("API", fmt.Sprintf("%s: %s (%s)", op, res.Error, res.Kind))
	}
	status, body := utils.FromResult(res, message, successStatus)
	h.writeJSON(w, status, body)
	return res.Success
}
