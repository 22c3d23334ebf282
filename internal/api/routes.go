package api

import (
	"errors"
	"net/http"

	"github.com/asistentevial/eta-worker/internal/calculator"
	"github.com/asistentevial/eta-worker/internal/database"
	"github.com/asistentevial/eta-worker/internal/route"
)

// point is a coordinate as it arrives over the wire. Pointers let a 0.0
// latitude pass the required check.
type point struct {
	Latitude  *float64 `json:"latitude" validate:"required,latitude"`
	Longitude *float64 `json:"longitude" validate:"required,longitude"`
	Label     string   `json:"label,omitempty" validate:"max=100"`
}

func (p point) coordinate() calculator.Coordinate {
	return calculator.Coordinate{Latitude: *p.Latitude, Longitude: *p.Longitude}
}

func (p point) waypoint() route.Waypoint {
	return route.Waypoint{Coordinate: p.coordinate(), Label: p.Label}
}

func toRoute(points []point) route.Route {
	r := make(route.Route, len(points))
	for i, p := range points {
		r[i] = p.waypoint()
	}
	return r
}

type distanceRequest struct {
	Origin          point    `json:"origin"`
	Destination     point    `json:"destination"`
	AverageSpeedKMH *float64 `json:"average_speed_kmh,omitempty" validate:"omitempty,gt=0"`
}

type distanceResponse struct {
	DistanceKM               float64 `json:"distance_km"`
	Distance                 string  `json:"distance"`
	EstimatedDurationMinutes float64 `json:"estimated_duration_minutes"`
	Duration                 string  `json:"duration"`
	OriginGeohash            string  `json:"origin_geohash"`
	DestinationGeohash       string  `json:"destination_geohash"`
}

type summarizeRequest struct {
	Waypoints       []point  `json:"waypoints" validate:"required,min=1,dive"`
	AverageSpeedKMH *float64 `json:"average_speed_kmh,omitempty" validate:"omitempty,gt=0"`
}

type summaryResponse struct {
	route.Summary
	DistanceText string `json:"distance"`
	DurationText string `json:"duration"`
}

func newSummaryResponse(s route.Summary) summaryResponse {
	return summaryResponse{Summary: s, DistanceText: s.Distance(), DurationText: s.Duration()}
}

type saveRouteRequest struct {
	Name            string   `json:"name" validate:"required,max=100"`
	Waypoints       []point  `json:"waypoints" validate:"required,min=1,dive"`
	AverageSpeedKMH *float64 `json:"average_speed_kmh,omitempty" validate:"omitempty,gt=0"`
}

type savedRouteResponse struct {
	*database.SavedRoute
	Summary summaryResponse `json:"summary"`
}

func newSavedRouteResponse(r *database.SavedRoute) savedRouteResponse {
	return savedRouteResponse{SavedRoute: r, Summary: newSummaryResponse(r.Summary)}
}

func (h *Handler) speed(requested *float64) float64 {
	if requested != nil {
		return *requested
	}
	return h.averageSpeedKMH
}

func (h *Handler) handleDistance(w http.ResponseWriter, r *http.Request) {
	var req distanceRequest
	if !decode(w, r, &req) {
		return
	}

	origin, destination := req.Origin.coordinate(), req.Destination.coordinate()
	km := calculator.DistanceKM(origin, destination)
	minutes := calculator.EstimateDurationMinutes(km, h.speed(req.AverageSpeedKMH))

	respondWithSuccess(w, http.StatusOK, "Distancia calculada", distanceResponse{
		DistanceKM:               km,
		Distance:                 calculator.FormatDistanceKM(km),
		EstimatedDurationMinutes: minutes,
		Duration:                 calculator.FormatDuration(minutes * 60),
		OriginGeohash:            calculator.Geohash(origin, 9),
		DestinationGeohash:       calculator.Geohash(destination, 9),
	})
}

func (h *Handler) handleSummarize(w http.ResponseWriter, r *http.Request) {
	var req summarizeRequest
	if !decode(w, r, &req) {
		return
	}

	summary := route.Summarize(toRoute(req.Waypoints), h.speed(req.AverageSpeedKMH))
	respondWithSuccess(w, http.StatusOK, "Resumen de ruta", newSummaryResponse(summary))
}

func (h *Handler) handleSaveRoute(w http.ResponseWriter, r *http.Request) {
	var req saveRouteRequest
	if !decode(w, r, &req) {
		return
	}

	saved := &database.SavedRoute{
		Name:            req.Name,
		Waypoints:       toRoute(req.Waypoints),
		AverageSpeedKMH: h.speed(req.AverageSpeedKMH),
	}

	if err := h.store.Save(r.Context(), saved); err != nil {
		if errors.Is(err, database.ErrInvalidRoute) {
			respondWithError(w, http.StatusBadRequest, "Ruta inválida", []string{err.Error()})
			return
		}
		h.logger.Error().Err(err).Msg("Failed to save route")
		respondWithError(w, http.StatusInternalServerError, "No se pudo guardar la ruta", nil)
		return
	}

	h.logger.Info().Str("route_id", saved.ID).Int("stops", saved.Summary.TotalStops).Msg("Route saved")
	respondWithSuccess(w, http.StatusCreated, "Ruta guardada", newSavedRouteResponse(saved))
}

func (h *Handler) handleListRoutes(w http.ResponseWriter, r *http.Request) {
	limit, offset, errs := pagination(r)
	if len(errs) > 0 {
		respondWithError(w, http.StatusBadRequest, "Validation failed", errs)
		return
	}

	routes, err := h.store.List(r.Context(), limit, offset)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list routes")
		respondWithError(w, http.StatusInternalServerError, "No se pudieron obtener las rutas", nil)
		return
	}

	out := make([]savedRouteResponse, len(routes))
	for i := range routes {
		out[i] = newSavedRouteResponse(&routes[i])
	}
	respondWithSuccess(w, http.StatusOK, "Rutas guardadas", out)
}

func (h *Handler) handleGetRoute(w http.ResponseWriter, r *http.Request) {
	saved, err := h.store.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.respondWithStoreError(w, err)
		return
	}
	respondWithSuccess(w, http.StatusOK, "Ruta guardada", newSavedRouteResponse(saved))
}

func (h *Handler) handleDeleteRoute(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Delete(r.Context(), r.PathValue("id")); err != nil {
		h.respondWithStoreError(w, err)
		return
	}
	respondWithSuccess(w, http.StatusOK, "Ruta eliminada", nil)
}

func (h *Handler) respondWithStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, database.ErrNotFound) {
		respondWithError(w, http.StatusNotFound, "La ruta no existe", nil)
		return
	}
	h.logger.Error().Err(err).Msg("Route store failed")
	respondWithError(w, http.StatusInternalServerError, "Ocurrió un error inesperado.", nil)
}
