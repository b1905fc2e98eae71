// Package docs provides generated OpenAPI documentation.
//
// invoicex API
//
//	@title			invoicex API
//	@version		1.0
//	@description	Extracts invoice date, reference and net/VAT/total amounts from PDF invoices.
//
//	@contact.name	API Support
//	@contact.url	https://github.com/jackzampolin/invoicex
//
//	@license.name	MIT
//	@license.url	https://opensource.org/licenses/MIT
//
//	@host		localhost:8000
//	@BasePath	/
//
//	@schemes	http https
//
//	@securityDefinitions.apikey	ApiKeyAuth
//	@in							header
//	@name						X-API-Key
package docs

//go:generate swag init -g ../cmd/invoicex/serve.go -o . --outputTypes go --parseDependency --parseInternal
