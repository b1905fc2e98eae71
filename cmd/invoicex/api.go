package main

import (
	"github.com/jackzampolin/invoicex/internal/api"
	"github.com/jackzampolin/invoicex/internal/server/endpoints"
)

var (
	serverURL string
	apiKey    string
)

// newAPIClient builds a client at runtime (after flag parsing). Without
// --api-key the configured server key is used.
func newAPIClient() *api.Client {
	key := apiKey
	if key == "" && cfgManager != nil {
		key = cfgManager.Get().Server.ResolvedAPIKey()
	}
	return api.NewClient(serverURL, key)
}

func init() {
	registry := api.NewRegistry()
	for _, ep := range endpoints.All() {
		registry.Register(ep)
	}

	apiCmd := registry.BuildCommands(newAPIClient)
	apiCmd.PersistentFlags().StringVar(
		&serverURL, "server", "http://127.0.0.1:8000", "Server URL",
	)
	apiCmd.PersistentFlags().StringVar(
		&apiKey, "api-key", "", "API key for protected routes (default: server.api_key)",
	)

	rootCmd.AddCommand(apiCmd)
}
