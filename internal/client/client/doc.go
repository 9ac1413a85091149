// Package client talks to the gophauth HTTP API and bootstraps the CLI's
// local SQLite store.
//
// HTTPClient implements Client. Failure envelopes from the server surface as
// *APIError (match codes with IsCode); transport failures wrap
// ErrUnavailable. InitDatabase and RunMigrations prepare the local database
// with the embedded goose migrations.
package client
