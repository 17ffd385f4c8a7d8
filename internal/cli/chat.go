package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"chatwindow/internal/contextmgr"
	"chatwindow/internal/profilewatch"
	"chatwindow/internal/provider"
	"chatwindow/internal/session"
	"chatwindow/internal/storage"
	"chatwindow/pkg/logger"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

type chatOptions struct {
	conversationID string
	model          string
	title          string
	newChat        bool
}

// NewChatCmd creates the chat command.
func NewChatCmd() *cobra.Command {
	var opts chatOptions

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with a local model",
		Long: `Start an interactive chat with a model served by Ollama.

The conversation is stored locally and resumed on the next run. When the
history grows past the model's context budget, older messages are summarized
and only the summary plus the most recent messages are sent.

Type /help inside the chat for the available commands. Ctrl-C cancels a reply
that is still streaming; Ctrl-D or /quit ends the chat.`,
		Example: `  # Resume the last conversation
  chatwindow chat

  # Start a new conversation on another model
  chatwindow chat --new --model qwen2.5:0.5b --title "Go questions"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.conversationID, "conversation", "", "conversation ID to resume")
	cmd.Flags().StringVarP(&opts.model, "model", "m", "", "model to use (default: conversation or config model)")
	cmd.Flags().StringVarP(&opts.title, "title", "t", "", "title of a new conversation")
	cmd.Flags().BoolVarP(&opts.newChat, "new", "n", false, "start a new conversation instead of resuming")

	return cmd
}

func runChat(cmd *cobra.Command, opts chatOptions) error {
	cliCtx := GetCLIContext(cmd)
	cfg := cliCtx.Config
	log := cliCtx.Log()

	db, err := cliCtx.GetStorage()
	if err != nil {
		return err
	}
	prov, err := cliCtx.Provider()
	if err != nil {
		return err
	}
	profiles, err := cliCtx.Profiles()
	if err != nil {
		return err
	}
	compactor := contextmgr.NewCompactor(profiles)

	if cfg.Metrics.Addr != "" {
		stop, err := serveMetrics(cfg.Metrics.Addr, compactor, log)
		if err != nil {
			return err
		}
		defer stop()
	}

	if path := cfg.Context.ProfilesFile; path != "" {
		w, err := profilewatch.New(path, cfg.ProfileEntries(), profiles, logger.Component("profilewatch"))
		if err != nil {
			log.Warn().Err(err).Str("path", path).Msg("profiles file will not be reloaded")
		} else {
			defer w.Close()
		}
	}

	ctx := cmd.Context()
	if err := prov.Ping(ctx); err != nil {
		log.Warn().Err(err).Msg("ollama is not reachable, replies will fail until it is")
	}

	sess := session.New(db, prov, compactor, session.Options{
		Model:        cfg.Ollama.Model,
		SystemPrompt: cfg.Chat.SystemPrompt,
		Temperature:  cfg.Chat.Temperature,
		MaxTokens:    cfg.Chat.MaxTokens,
		Summary: provider.SummaryOptions{
			Temperature: cfg.Context.SummaryTemperature,
			MaxTokens:   cfg.Context.SummaryMaxTokens,
		},
	})

	if err := openConversation(sess, db, opts); err != nil {
		return err
	}
	if opts.model != "" {
		if err := sess.SetModel(opts.model); err != nil {
			return err
		}
	}

	in := cmd.InOrStdin()
	r := newREPL(sess, in, cmd.OutOrStdout())
	if f, ok := in.(*os.File); ok {
		r.interactive = isTerminal(f)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	defer signal.Stop(sigCh)
	go func() {
		for range sigCh {
			r.interrupt()
		}
	}()

	return r.run(ctx)
}

// openConversation resumes the requested or last used conversation, or
// creates one.
func openConversation(sess *session.Session, db *storage.DB, opts chatOptions) error {
	if opts.newChat {
		_, err := sess.Create(opts.title)
		return err
	}

	id := opts.conversationID
	if id == "" {
		last, err := db.KVGet(storage.KeyLastConversation)
		switch {
		case err == nil:
			id = last
		case !errors.Is(err, storage.ErrNotFound):
			return err
		}
	}

	if id != "" {
		_, err := sess.Open(id)
		if err == nil {
			return nil
		}
		if opts.conversationID != "" || !errors.Is(err, storage.ErrNotFound) {
			return err
		}
	}

	_, err := sess.Create(opts.title)
	return err
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// repl reads user input line by line and runs one turn per line.
type repl struct {
	sess        *session.Session
	in          *bufio.Reader
	out         io.Writer
	interactive bool
}

func newREPL(sess *session.Session, in io.Reader, out io.Writer) *repl {
	return &repl{
		sess: sess,
		in:   bufio.NewReader(in),
		out:  out,
	}
}

// interrupt cancels the running turn, or prints a hint when idle.
func (r *repl) interrupt() {
	if r.sess.Cancel() {
		return
	}
	fmt.Fprintln(r.out, "\n(use /quit or Ctrl-D to exit)")
	r.prompt()
}

func (r *repl) prompt() {
	if r.interactive {
		fmt.Fprint(r.out, "You: ")
	}
}

func (r *repl) banner() {
	conv := r.sess.Conversation()
	if conv == nil {
		return
	}
	title := conv.Title
	if title == "" {
		title = "untitled"
	}
	fmt.Fprintf(r.out, "Conversation %s (%s), model %s, %d messages\n", conv.ID, title, conv.Model, conv.MessageCount)
	fmt.Fprintf(r.out, "Context: %s\n", formatStatus(r.sess.Status()))
	if r.interactive {
		fmt.Fprintln(r.out, "Type /help for commands.")
	}
	fmt.Fprintln(r.out)
}

func (r *repl) run(ctx context.Context) error {
	r.banner()

	for {
		r.prompt()
		line, err := r.in.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("read input: %w", err)
		}
		eof := errors.Is(err, io.EOF)

		text := strings.TrimSpace(line)
		switch {
		case text == "":
		case strings.HasPrefix(text, "/"):
			quit, cmdErr := r.command(text)
			if cmdErr != nil {
				fmt.Fprintf(r.out, "Error: %v\n", cmdErr)
			}
			if quit {
				return nil
			}
		default:
			r.turn(ctx, text)
		}

		if eof {
			if r.interactive {
				fmt.Fprintln(r.out)
			}
			return nil
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

func (r *repl) turn(ctx context.Context, text string) {
	if r.interactive {
		fmt.Fprint(r.out, "Assistant: ")
	}

	res, err := r.sess.Send(ctx, text, func(delta string) {
		fmt.Fprint(r.out, delta)
	})
	fmt.Fprintln(r.out)

	switch {
	case errors.Is(err, session.ErrTurnAbandoned):
		fmt.Fprintln(r.out, "[cancelled]")
		return
	case err != nil:
		fmt.Fprintf(r.out, "Error: %s\n", describeError(err))
		return
	}

	switch res.Prepared.Outcome {
	case contextmgr.OutcomeSummarized:
		fmt.Fprintln(r.out, "(older messages were summarized to fit the context window)")
	case contextmgr.OutcomeFallback:
		fmt.Fprintln(r.out, "(summarization failed, only recent messages were sent)")
	}
	if res.Status.IsNearLimit {
		fmt.Fprintf(r.out, "(context %s)\n", formatStatus(res.Status))
	}
	fmt.Fprintln(r.out)
}

// describeError adds a hint to provider errors that have an obvious fix.
func describeError(err error) string {
	switch provider.CodeOf(err) {
	case provider.ErrCodeNetworkError:
		return err.Error() + " (is `ollama serve` running?)"
	case provider.ErrCodeModelNotFound:
		return err.Error() + " (try `ollama pull <model>` or /model)"
	}
	if provider.IsRetryable(err) {
		return err.Error() + " (temporary, send the message again)"
	}
	return err.Error()
}

const replHelp = `Commands:
  /status          show context window usage
  /summary         show the last summary of this conversation
  /model [id]      show or switch the model
  /new [title]     start a new conversation
  /open <id>       switch to a stored conversation
  /export <file>   write the conversation as JSON
  /help            show this help
  /quit, /exit     leave the chat`

// command runs a slash command and reports whether the REPL should exit.
func (r *repl) command(line string) (bool, error) {
	name, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch name {
	case "/quit", "/exit":
		return true, nil

	case "/help":
		fmt.Fprintln(r.out, replHelp)

	case "/status":
		conv := r.sess.Conversation()
		if conv == nil {
			return false, session.ErrNoConversation
		}
		fmt.Fprintf(r.out, "Model %s, %d messages, %s\n", conv.Model, conv.MessageCount, formatStatus(r.sess.Status()))

	case "/summary":
		summary, ok := r.sess.LastSummary()
		if !ok {
			fmt.Fprintln(r.out, "No summary yet.")
			break
		}
		fmt.Fprintln(r.out, summary)

	case "/model":
		if arg == "" {
			fmt.Fprintln(r.out, r.sess.Model())
			break
		}
		if err := r.sess.SetModel(arg); err != nil {
			return false, err
		}
		fmt.Fprintf(r.out, "Model set to %s (%s)\n", arg, formatStatus(r.sess.Status()))

	case "/new":
		conv, err := r.sess.Create(arg)
		if err != nil {
			return false, err
		}
		fmt.Fprintf(r.out, "Started conversation %s\n", conv.ID)

	case "/open":
		if arg == "" {
			return false, errors.New("usage: /open <id>")
		}
		if _, err := r.sess.Open(arg); err != nil {
			return false, err
		}
		r.banner()

	case "/export":
		if arg == "" {
			return false, errors.New("usage: /export <file>")
		}
		snap, err := r.sess.Snapshot()
		if err != nil {
			return false, err
		}
		data, err := snap.JSON()
		if err != nil {
			return false, err
		}
		if err := os.WriteFile(arg, append(data, '\n'), 0o644); err != nil {
			return false, fmt.Errorf("write export: %w", err)
		}
		fmt.Fprintf(r.out, "Exported %d messages to %s\n", snap.MessageCount, arg)

	default:
		return false, fmt.Errorf("unknown command %s (try /help)", name)
	}
	return false, nil
}
