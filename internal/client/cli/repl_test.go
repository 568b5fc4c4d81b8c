package cli

import (
	"bufio"
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeExec struct {
	calls []string
	args  [][]string
}

func (f *fakeExec) record(name string, args []string) error {
	f.calls = append(f.calls, name)
	f.args = append(f.args, args)
	return nil
}

func (f *fakeExec) Login(_ context.Context, args []string) error { return f.record("login", args) }
func (f *fakeExec) Logout(context.Context) error { return f.record("logout", nil) }
func (f *fakeExec) Post(_ context.Context, args []string) error { return f.record("post", args) }
func (f *fakeExec) Drafts(_ context.Context, args []string) error { return f.record("drafts", args) }
func (f *fakeExec) Delete(_ context.Context, args []string) error { return f.record("delete", args) }
func (f *fakeExec) Stories(_ context.Context, args []string) error {
	return f.record("stories", args)
}
func (f *fakeExec) Subscribe(context.Context) error { return f.record("subscribe", nil) }
func (f *fakeExec) Unsubscribe(context.Context) error { return f.record("unsubscribe", nil) }
func (f *fakeExec) PushTest(_ context.Context, args []string) error {
	return f.record("pushtest", args)
}
func (f *fakeExec) Status(context.Context) error { return f.record("status", nil) }

func TestRunREPL_Dispatch(t *testing.T) {
	input := strings.Join([]string{
		"help",
		"",
		"login",
		"post hello   world",
		"drafts -a pie",
		"delete 3",
		"stories 2",
		"sync",
		"subscribe",
		"unsubscribe",
		"pushtest Hi there",
		"status",
		"logout",
		"foobar",
		"exit",
		"drafts",
	}, "\n")

	exec := &fakeExec{}
	var out bytes.Buffer
	runREPL(context.Background(), exec, func() string { return "offline" }, bufio.NewScanner(strings.NewReader(input)), &out)

	assert.Equal(t, []string{
		"login", "post", "drafts", "delete", "stories", "subscribe", "unsubscribe", "pushtest", "status", "logout",
	}, exec.calls)
	assert.Equal(t, []string{"hello", "world"}, exec.args[1])
	assert.Equal(t, []string{"-a", "pie"}, exec.args[2])
	assert.Equal(t, []string{"3"}, exec.args[3])
	assert.Equal(t, []string{"Hi", "there"}, exec.args[7])

	s := out.String()
	assert.Contains(t, s, "sq (offline)> ")
	assert.Contains(t, s, "Available commands:")
	assert.Contains(t, s, "Unknown command: foobar")
	assert.Contains(t, s, "Unknown command: sync", "syncing is left to the connectivity monitor")
	assert.Contains(t, s, "Bye!")
}

func TestRunREPL_StopsOnEOFAndCancel(t *testing.T) {
	exec := &fakeExec{}
	var out bytes.Buffer
	runREPL(context.Background(), exec, func() string { return "online" }, bufio.NewScanner(strings.NewReader("status")), &out)
	assert.Equal(t, []string{"status"}, exec.calls)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	exec = &fakeExec{}
	runREPL(ctx, exec, func() string { return "online" }, bufio.NewScanner(strings.NewReader("status\n")), &out)
	assert.Empty(t, exec.calls)
}
