// Package api contains transport adapters over the voting service.
//
// The rest subpackage exposes the service over HTTP. Handlers translate
// requests into service calls and map domain error codes to HTTP statuses;
// all authorization and state-machine rules live in the service layer.
package api
