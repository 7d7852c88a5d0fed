package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	isLoggedIn() bool

	Register(ctx context.Context) error
	Login(ctx context.Context) error
	Logout(ctx context.Context) error
	Status(ctx context.Context) error

	New(ctx context.Context) error
	Edit(ctx context.Context, id string) error
	List(ctx context.Context) error
	Show(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
	Open(ctx context.Context, id string) error
	Current(ctx context.Context) error

	Categories(ctx context.Context) error
	Category(ctx context.Context, args []string) error

	Sync(ctx context.Context) error
	Recover(ctx context.Context, args []string) error
	Share(ctx context.Context, id string) error
	Export(ctx context.Context, id, path string) error
	Import(ctx context.Context, path string) error
}

const (
	helpGuest = "Available commands: register, login, status, new, edit <id>, list, show <id>, " +
		"delete <id>, open <id>, current, categories, category add|rename|delete, " +
		"recover [accept|discard <n>], export <id> <file>, import <file|link>, exit"
	helpSession = "Available commands: status, new, edit <id>, (l)ist, show <id>, delete <id>, " +
		"open <id>, current, categories, category add|rename|delete, sync, " +
		"recover [accept|discard <n>], share <id>, export <id> <file>, import <file|link>, logout, exit"
)

// runREPL starts a simple read–eval–print loop for the docsync CLI.
//
// It reads a line from the provided scanner, parses the first token as the
// command and the rest as arguments, and dispatches to methods on 'a'.
// Documents can be edited with or without a session; the account, sync and
// share commands depend on it. The loop exits on scanner EOF or when the
// user types "exit" or "quit".
//
// Errors returned by handlers are printed and the loop continues.
func runREPL(ctx context.Context, a execIface, statusFn func() string, scanner *bufio.Scanner) {
	for {
		printlnFn(fmt.Sprintf("docs> %s > ", statusFn()))
		if !scanner.Scan() {
			return
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		var err error
		switch cmd {
		case "help":
			if a.isLoggedIn() {
				printlnFn(helpSession)
			} else {
				printlnFn(helpGuest)
			}

		case "register":
			err = a.Register(ctx)
		case "login":
			err = a.Login(ctx)
		case "logout":
			err = a.Logout(ctx)
		case "status":
			err = a.Status(ctx)

		case "new":
			err = a.New(ctx)
		case "edit":
			err = withID(args, func(id string) error { return a.Edit(ctx, id) })
		case "l", "list":
			err = a.List(ctx)
		case "show":
			err = withID(args, func(id string) error { return a.Show(ctx, id) })
		case "delete":
			err = withID(args, func(id string) error { return a.Delete(ctx, id) })
		case "open":
			err = withID(args, func(id string) error { return a.Open(ctx, id) })
		case "current":
			err = a.Current(ctx)

		case "categories":
			err = a.Categories(ctx)
		case "category":
			err = a.Category(ctx, args)

		case "sync":
			err = a.Sync(ctx)
		case "recover":
			err = a.Recover(ctx, args)
		case "share":
			err = withID(args, func(id string) error { return a.Share(ctx, id) })
		case "export":
			if len(args) != 2 {
				err = errors.New("usage: export <id> <file>")
				break
			}
			err = a.Export(ctx, args[0], args[1])
		case "import":
			if len(args) != 1 {
				err = errors.New("usage: import <file|link>")
				break
			}
			err = a.Import(ctx, args[0])

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}

		if err != nil {
			printlnFn("Error:", err)
		}
	}
}

func withID(args []string, fn func(id string) error) error {
	if len(args) != 1 {
		return errors.New("usage: <command> <id>")
	}
	return fn(args[0])
}
