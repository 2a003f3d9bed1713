// Package cli provides the interactive registry command-line client.
//
// It wires configuration, the local SQLite database, the API client, the
// offline store and a connectivity watcher, then runs a REPL. Writes made
// in the REPL are applied locally at once and reach the server through the
// store's queue, so the client keeps working while offline.
//
// Commands:
//   - login [email] / logout / whoami
//   - users [refresh], attendance <user> [refresh], transactions <user> [refresh]
//   - mark <user> <date|today> <status> [note...]
//   - contribute <user> <amount> [date|today] [description...]
//   - adduser <first> <last> <email> [role] [voice], setrole <user> <role>
//   - export [from] [to]
//   - queue, sync
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
package cli
