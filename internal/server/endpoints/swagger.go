package endpoints

import (
	"net/http"

	"github.com/spf13/cobra"
	"github.com/swaggo/swag"

	"github.com/jackzampolin/invoicex/internal/api"
)

// SwaggerEndpoint serves the registered OpenAPI document.
type SwaggerEndpoint struct {
	// InstanceName selects the swag registration (default: swag.Name).
	InstanceName string
}

func (e *SwaggerEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/swagger.json", e.handler
}

func (e *SwaggerEndpoint) Protected() bool { return false }

func (e *SwaggerEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	name := e.InstanceName
	if name == "" {
		name = swag.Name
	}

	doc, err := swag.ReadDoc(name)
	if err != nil {
		WriteError(w, http.StatusNotFound, "swagger.json not found")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Write([]byte(doc))
}

func (e *SwaggerEndpoint) Command(newClient func() *api.Client) *cobra.Command {
	return &cobra.Command{
		Use:   "swagger",
		Short: "Fetch the OpenAPI document from the server",
		RunE: func(cmd *cobra.Command, args []string) error {
			var doc map[string]any
			if err := newClient().Get(cmd.Context(), "/swagger.json", &doc); err != nil {
				return err
			}
			return api.Output(doc)
		},
	}
}
