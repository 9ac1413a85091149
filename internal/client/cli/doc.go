// Package cli provides the interactive gophauth command-line client.
//
// It wires configuration, the local token store, the API client and an
// interactive REPL. Passwords are read from the terminal without echo.
//
// Commands:
//   - signup / login     open a session and store its tokens
//   - me                 show the signed-in profile
//   - sessions [limit]   show the session history
//   - refresh            exchange the refresh token for a new pair
//   - logout             close every session and forget the tokens
//   - help / exit
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
package cli
