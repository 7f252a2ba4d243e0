package http

import (
	"github.com/testiflow-api/internal/application/account"
	"github.com/testiflow-api/internal/application/auth"
	fileapp "github.com/testiflow-api/internal/application/file"
	"github.com/testiflow-api/internal/application/insight"
	"github.com/testiflow-api/internal/application/space"
	appmiddleware "github.com/testiflow-api/internal/transport/http/middleware"
)

// Deps holds the application services the router exposes. main constructs
// them with their infrastructure collaborators.
type Deps struct {
	Auth    auth.Service
	Account account.Service
	Space   space.Service
	Insight insight.Service
	File    fileapp.Service
	Metrics *appmiddleware.Metrics
	// PublicLimiter throttles unauthenticated endpoints; nil uses a 5 req/s limiter.
	PublicLimiter *appmiddleware.RateLimiter
}
