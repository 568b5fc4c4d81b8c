package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

// execIface is the command surface the REPL dispatches to. App satisfies it;
// tests provide a stub.
type execIface interface {
	Login(ctx context.Context, args []string) error
	Logout(ctx context.Context) error
	Post(ctx context.Context, args []string) error
	Drafts(ctx context.Context, args []string) error
	Delete(ctx context.Context, args []string) error
	Stories(ctx context.Context, args []string) error
	Subscribe(ctx context.Context) error
	Unsubscribe(ctx context.Context) error
	PushTest(ctx context.Context, args []string) error
	Status(ctx context.Context) error
}

const helpText = `Available commands:
  post [text]        queue a story (prompts when text is omitted)
  drafts [-a|-z] [filter]
                     list queued drafts, optionally filtered or sorted by text
  delete <id>        drop a queued draft
  stories [page]     list recent stories
  login | logout     store or forget the bearer token
  subscribe          register the worker for push notifications
  unsubscribe        stop push notifications
  pushtest [title]   ask the worker to show a test notification
  status             show connectivity and queue state
  exit | quit        leave`

// runREPL reads commands from scanner until EOF, "exit" or "quit".
// Handler errors are reported by the handlers themselves.
func runREPL(ctx context.Context, a execIface, statusFn func() string, scanner *bufio.Scanner, out io.Writer) {
	for {
		if ctx.Err() != nil {
			return
		}
		fmt.Fprintf(out, "sq (%s)> ", statusFn())
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		switch cmd {
		case "help", "?":
			fmt.Fprintln(out, helpText)
		case "login":
			_ = a.Login(ctx, args)
		case "logout":
			_ = a.Logout(ctx)
		case "post", "p":
			_ = a.Post(ctx, args)
		case "drafts", "d":
			_ = a.Drafts(ctx, args)
		case "delete", "rm":
			_ = a.Delete(ctx, args)
		case "stories", "l":
			_ = a.Stories(ctx, args)
		case "subscribe":
			_ = a.Subscribe(ctx)
		case "unsubscribe":
			_ = a.Unsubscribe(ctx)
		case "pushtest":
			_ = a.PushTest(ctx, args)
		case "status":
			_ = a.Status(ctx)
		case "exit", "quit":
			fmt.Fprintln(out, "Bye!")
			return
		default:
			fmt.Fprintln(out, "Unknown command:", cmd)
		}
	}
}
