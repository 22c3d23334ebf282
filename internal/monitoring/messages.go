package monitoring

import (
	"errors"

	"github.com/asistentevial/eta-worker/internal/calculator"
	"github.com/asistentevial/eta-worker/internal/simulator"
)

// Localized user-facing messages
const (
	MsgRoutingUnavailable = "No se pudo calcular la ruta. Intenta de nuevo en unos momentos."
	MsgSessionNotFound    = "La sesión de asistencia no existe o ya terminó."
	MsgTooManySessions    = "Hay demasiadas asistencias activas. Intenta más tarde."
	MsgInvalidLocation    = "La ubicación proporcionada no es válida."
	MsgServiceRestarting  = "El servicio se está reiniciando. Intenta de nuevo en unos momentos."
	MsgUnexpected         = "Ocurrió un error inesperado."
)

// UserMessage maps an error from this package to a short localized message.
// Every failure reaches the user as one of these.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrRoutingUnavailable), errors.Is(err, simulator.ErrInvalidSimulationInput):
		return MsgRoutingUnavailable
	case errors.Is(err, ErrSessionNotFound):
		return MsgSessionNotFound
	case errors.Is(err, ErrTooManySessions):
		return MsgTooManySessions
	case errors.Is(err, ErrShuttingDown):
		return MsgServiceRestarting
	case errors.Is(err, calculator.ErrInvalidCoordinate):
		return MsgInvalidLocation
	default:
		return MsgUnexpected
	}
}
