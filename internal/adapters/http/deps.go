package http

import (
	"github.com/nats-io/nats.go"
	"github.com/vgarrido/rutasur/internal/adapters/postgres"
	"github.com/vgarrido/rutasur/internal/adapters/valkey"
	"github.com/vgarrido/rutasur/internal/core/ports"
	"github.com/vgarrido/rutasur/internal/core/usecases"
)

// Dependencies holds all services needed by HTTP handlers.
type Dependencies struct {
	Availability  *usecases.AvailabilityService
	Fares         *usecases.FareService
	Bookings      *usecases.BookingService
	Opportunities *usecases.OpportunityService
	Fleet         ports.FleetRepository
	Destinations  ports.DestinationRepository
	FareRules     ports.FareRuleRepository
	NATS          *nats.Conn
	DB            *postgres.DB
	Cache         *valkey.Cache
}
