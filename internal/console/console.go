// Package console is a terminal front end for the chat core: it turns typed
// commands into Directory and Session calls and prints every view change.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/loopmarked/dashboard/internal/chat"
)

// ErrQuit is returned by Run when the user asks to leave.
var ErrQuit = errors.New("quit")

const helpText = `commands:
  /list                      show your conversations
  /open <n|conversation-id>  open a conversation from the last /list
  /new <listing> <seller>    contact a seller about a listing
  /offer <amount>            send an offer
  /retry                     resend failed messages
  /discard                   drop failed messages
  /close                     leave the open conversation
  /help                      show this help
  /quit                      exit
anything else is sent as a message`

// Config configures a Console.
type Config struct {
	UserID       string
	HistoryLimit int
}

// Console drives one Directory and one Session from line-oriented input.
type Console struct {
	userID  string
	dir     *chat.Directory
	session *chat.Session
	log     *zerolog.Logger

	outMu   sync.Mutex
	out     io.Writer
	printer *printer

	mu        sync.Mutex
	summaries []chat.Summary
}

// New builds a console for cfg.UserID over backend, writing to out.
func New(backend chat.Backend, cfg Config, out io.Writer, logger *zerolog.Logger) *Console {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	c := &Console{
		userID:  cfg.UserID,
		dir:     chat.NewDirectory(backend, logger),
		log:     logger,
		out:     out,
		printer: newPrinter(),
	}
	c.session = chat.NewSession(backend, chat.SessionConfig{
		UserID:       cfg.UserID,
		HistoryLimit: cfg.HistoryLimit,
		OnChange:     c.render,
	}, logger)
	return c
}

// Session exposes the underlying session.
func (c *Console) Session() *chat.Session {
	return c.session
}

// Run reads commands from in until EOF, ctx cancellation or /quit. The
// session is released before Run returns.
func (c *Console) Run(ctx context.Context, in io.Reader) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer c.session.Release()

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	c.println(helpText)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if err := c.Execute(ctx, line); err != nil {
				if errors.Is(err, ErrQuit) {
					return nil
				}
				c.printError(err)
			}
		}
	}
}

// Execute runs one input line.
func (c *Console) Execute(ctx context.Context, line string) error {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}
	if !strings.HasPrefix(line, "/") {
		return c.session.Send(ctx, line)
	}

	fields := strings.Fields(line)
	cmd, args := fields[0], fields[1:]
	switch cmd {
	case "/quit", "/exit":
		return ErrQuit
	case "/help":
		c.println(helpText)
		return nil
	case "/list":
		return c.list(ctx)
	case "/open":
		if len(args) != 1 {
			return fmt.Errorf("usage: /open <n|conversation-id>")
		}
		return c.open(ctx, args[0])
	case "/new":
		if len(args) != 2 {
			return fmt.Errorf("usage: /new <listing> <seller>")
		}
		id, err := c.dir.EnsureConversation(ctx, args[0], c.userID, args[1])
		if err != nil {
			return err
		}
		return c.selectConversation(ctx, id)
	case "/offer":
		if len(args) != 1 {
			return fmt.Errorf("usage: /offer <amount>")
		}
		amount, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return fmt.Errorf("offer amount %q is not a number", args[0])
		}
		return c.session.SendOffer(ctx, amount)
	case "/retry":
		return c.retryFailed(ctx)
	case "/discard":
		for _, m := range c.failed() {
			c.session.Discard(m.ClientRef)
		}
		return nil
	case "/close":
		c.session.Reset()
		return nil
	default:
		return fmt.Errorf("unknown command %s, try /help", cmd)
	}
}

func (c *Console) list(ctx context.Context) error {
	summaries, err := c.dir.List(ctx, c.userID)
	c.mu.Lock()
	c.summaries = summaries
	c.mu.Unlock()

	c.outMu.Lock()
	writeSummaries(c.out, summaries)
	c.outMu.Unlock()
	return err
}

func (c *Console) open(ctx context.Context, arg string) error {
	id := arg
	if n, err := strconv.Atoi(arg); err == nil {
		c.mu.Lock()
		if n < 1 || n > len(c.summaries) {
			c.mu.Unlock()
			return fmt.Errorf("no conversation %d in the last /list", n)
		}
		id = c.summaries[n-1].Conversation.ID
		c.mu.Unlock()
	}
	return c.selectConversation(ctx, id)
}

func (c *Console) selectConversation(ctx context.Context, id string) error {
	c.outMu.Lock()
	c.printer.reset()
	c.outMu.Unlock()

	if err := c.session.Select(ctx, id); err != nil {
		if errors.Is(err, chat.ErrSuperseded) {
			return nil
		}
		return err
	}
	c.log.Debug().Str("conversation_id", id).Msg("conversation opened")
	return nil
}

func (c *Console) failed() []chat.DisplayMessage {
	return lo.Filter(c.session.Messages(), func(m chat.DisplayMessage, _ int) bool {
		return m.Status == chat.StatusFailed
	})
}

func (c *Console) retryFailed(ctx context.Context) error {
	var errs []error
	for _, m := range c.failed() {
		if err := c.session.Retry(ctx, m.ClientRef); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// render is the session's OnChange callback.
func (c *Console) render(v chat.View) {
	c.outMu.Lock()
	defer c.outMu.Unlock()
	c.printer.print(c.out, v)
}

func (c *Console) println(s string) {
	c.outMu.Lock()
	defer c.outMu.Unlock()
	fmt.Fprintln(c.out, s)
}

func (c *Console) printError(err error) {
	c.outMu.Lock()
	defer c.outMu.Unlock()
	if code := chat.Code(err); code != "" {
		fmt.Fprintln(c.out, errorStyle.Sprintf("error (%s): %v", code, err))
		return
	}
	fmt.Fprintln(c.out, errorStyle.Sprintf("error: %v", err))
}
