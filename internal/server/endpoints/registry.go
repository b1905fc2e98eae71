package endpoints

import (
	"github.com/jackzampolin/invoicex/internal/api"
)

// All returns all endpoint instances.
func All() []api.Endpoint {
	return []api.Endpoint{
		&HealthEndpoint{},
		&ExtractEndpoint{},
		&SwaggerEndpoint{},
	}
}
