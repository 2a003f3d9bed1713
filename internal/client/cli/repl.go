package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	isLoggedIn() bool
	Login(ctx context.Context, args []string) error
	Logout(ctx context.Context, args []string) error
	WhoAmI(ctx context.Context, args []string) error
	Users(ctx context.Context, args []string) error
	Attendance(ctx context.Context, args []string) error
	Transactions(ctx context.Context, args []string) error
	Mark(ctx context.Context, args []string) error
	Contribute(ctx context.Context, args []string) error
	AddUser(ctx context.Context, args []string) error
	SetRole(ctx context.Context, args []string) error
	Export(ctx context.Context, args []string) error
	Queue(ctx context.Context, args []string) error
	Sync(ctx context.Context, args []string) error
}

type command func(execIface, context.Context, []string) error

// commands lists what a signed-in user can run.
var commands = map[string]command{
	"logout":       execIface.Logout,
	"whoami":       execIface.WhoAmI,
	"users":        execIface.Users,
	"attendance":   execIface.Attendance,
	"transactions": execIface.Transactions,
	"mark":         execIface.Mark,
	"contribute":   execIface.Contribute,
	"adduser":      execIface.AddUser,
	"setrole":      execIface.SetRole,
	"export":       execIface.Export,
	"queue":        execIface.Queue,
	"sync":         execIface.Sync,
}

const (
	helpSignedOut = "Available commands: login [email], exit"
	helpSignedIn  = "Available commands: users [refresh], attendance <user> [refresh], transactions <user> [refresh], " +
		"mark <user> <date|today> <status> [note], contribute <user> <amount> [date] [description], " +
		"adduser <first> <last> <email> [role] [voice], setrole <user> <role>, export [from] [to], " +
		"queue, sync, whoami, logout, exit"
)

// runREPL starts a simple read–eval–print loop.
//
// It reads a line from reader, parses the first token as the command, and
// dispatches to methods on a with the remaining tokens. The loop exits on
// EOF or when the user types "exit" or "quit". Errors returned by handlers
// are printed and the loop goes on.
func runREPL(ctx context.Context, a execIface, statusFn func() string, reader *bufio.Reader) {
	for {
		printlnFn(fmt.Sprintf("choir %s> ", statusFn()))
		line, err := readLine(reader)
		if err != nil {
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		switch cmd {
		case "help":
			if a.isLoggedIn() {
				printlnFn(helpSignedIn)
			} else {
				printlnFn(helpSignedOut)
			}
			continue

		case "login":
			report(a.Login(ctx, args))
			continue

		case "exit", "quit":
			printlnFn("Bye!")
			return
		}

		run, ok := commands[cmd]
		if !ok {
			printlnFn("Unknown command:", cmd)
			continue
		}
		if !a.isLoggedIn() {
			printlnFn("Please log in first")
			continue
		}
		report(run(a, ctx, args))
	}
}

func report(err error) {
	if err != nil {
		printlnFn("Error:", err)
	}
}
