package msgclient

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

const (
	defaultStatePath = "msgctl-state.json"
	defaultBaseURL   = "http://localhost:8000"
)

// State is what login leaves behind for the other commands.
type State struct {
	BaseURL     string `json:"base_url"`
	AccessToken string `json:"access_token"`
	UserID      uint   `json:"user_id"`
	Username    string `json:"username"`

	path string
}

type cli struct {
	stdin  io.Reader
	stdout io.Writer
}

func RunCLI(prog string, args []string, stderr io.Writer) error {
	return run(prog, args, os.Stdin, os.Stdout, stderr)
}

func run(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	if len(args) < 1 {
		return UsageError{Program: prog}
	}
	c := cli{stdin: stdin, stdout: stdout}
	cmd := args[0]
	rest := args[1:]
	var err error
	switch cmd {
	case "login":
		err = c.runLogin(rest)
	case "whoami":
		err = c.runWhoami(rest)
	case "send":
		err = c.runSend(rest)
	case "conversations":
		err = c.runConversations(rest)
	case "listen":
		err = c.runListen(rest)
	default:
		return UsageError{Program: prog}
	}
	if err != nil {
		if stderr == nil {
			stderr = os.Stderr
		}
		fmt.Fprintf(stderr, "error: %v\n", err)
	}
	return err
}

type UsageError struct {
	Program string
}

func (u UsageError) Error() string {
	if u.Program == "" {
		u.Program = "msgctl"
	}
	return fmt.Sprintf("Usage: %s <command> [options]", u.Program)
}

func (UsageError) UsageLines() []string {
	return []string{
		"Commands:",
		"  login          Log in and store the access token",
		"  whoami         Show the logged in account",
		"  send           Send a message to another user",
		"  conversations  List conversation partners",
		"  listen         Connect to the realtime channel and print events",
	}
}

func (c cli) runLogin(args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	statePath := fs.String("state", getenv("MSGCTL_STATE_PATH", defaultStatePath), "state file path")
	baseURL := fs.String("url", getenv("MSGCTL_URL", defaultBaseURL), "server base URL")
	email := fs.String("email", getenv("MSGCTL_EMAIL", ""), "account email")
	password := fs.String("password", getenv("MSGCTL_PASSWORD", ""), "account password")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*email) == "" || *password == "" {
		return fmt.Errorf("email and password are required")
	}

	client := New(*baseURL, "")
	resp, err := client.Login(context.Background(), *email, *password)
	if err != nil {
		return err
	}
	state := &State{
		BaseURL:     client.BaseURL,
		AccessToken: resp.AccessToken,
		UserID:      resp.User.ID,
		Username:    resp.User.Username,
		path:        *statePath,
	}
	if err := state.save(); err != nil {
		return err
	}
	fmt.Fprintf(c.stdout, "logged in: user=%d username=%s\n", state.UserID, state.Username)
	return nil
}

func (c cli) runWhoami(args []string) error {
	state, err := c.loadFromFlags("whoami", args)
	if err != nil {
		return err
	}
	me, err := New(state.BaseURL, state.AccessToken).Me(context.Background())
	if err != nil {
		return err
	}
	fmt.Fprintf(c.stdout, "%d %s %s %s\n", me.ID, me.Username, me.Email, me.Role)
	return nil
}

func (c cli) runSend(args []string) error {
	fs := flag.NewFlagSet("send", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	statePath := fs.String("state", getenv("MSGCTL_STATE_PATH", defaultStatePath), "state file path")
	to := fs.String("to", "", "recipient user id")
	message := fs.String("message", "", "message text (if empty, read stdin)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*to) == "" {
		return fmt.Errorf("recipient user id is required")
	}
	toID, err := strconv.ParseUint(*to, 10, 32)
	if err != nil || toID == 0 {
		return fmt.Errorf("invalid recipient user id %q", *to)
	}
	content, err := c.resolveContent(*message)
	if err != nil {
		return err
	}
	if strings.TrimSpace(content) == "" {
		return fmt.Errorf("message must not be empty")
	}
	state, err := loadState(*statePath)
	if err != nil {
		return err
	}

	msg, err := New(state.BaseURL, state.AccessToken).Send(context.Background(), uint(toID), content)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.stdout, "message sent: id=%d\n", msg.ID)
	return nil
}

func (c cli) runConversations(args []string) error {
	state, err := c.loadFromFlags("conversations", args)
	if err != nil {
		return err
	}
	partners, err := New(state.BaseURL, state.AccessToken).Conversations(context.Background())
	if err != nil {
		return err
	}
	for _, p := range partners {
		online := ""
		if p.IsOnline {
			online = " (online)"
		}
		last := ""
		if p.LastMessage != nil {
			last = *p.LastMessage
		}
		fmt.Fprintf(c.stdout, "%d %s%s unread=%d %s\n", p.UserID, p.Username, online, p.UnreadCount, last)
	}
	return nil
}

func (c cli) runListen(args []string) error {
	state, err := c.loadFromFlags("listen", args)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := New(state.BaseURL, state.AccessToken)
	fmt.Fprintf(c.stdout, "listening as user %d\n", state.UserID)
	err = client.Listen(ctx, state.UserID, func(ev Event) error {
		_, err := fmt.Fprintf(c.stdout, "%s %s\n", ev.Type, ev.Payload)
		return err
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (c cli) loadFromFlags(name string, args []string) (*State, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	statePath := fs.String("state", getenv("MSGCTL_STATE_PATH", defaultStatePath), "state file path")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return loadState(*statePath)
}

func (c cli) resolveContent(arg string) (string, error) {
	if arg != "" {
		return arg, nil
	}
	data, err := io.ReadAll(c.stdin)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func loadState(path string) (*State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("no state at %s, run login first", path)
		}
		return nil, err
	}
	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("decode state: %w", err)
	}
	if state.AccessToken == "" {
		return nil, fmt.Errorf("state at %s has no access token", path)
	}
	state.path = path
	return &state, nil
}

func (s *State) save() error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(s.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return err
		}
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
