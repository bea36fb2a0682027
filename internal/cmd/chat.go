package cmd

import (
	"bufio"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/Iron-Ham/image2video/internal/attachment"
	"github.com/Iron-Ham/image2video/internal/logging"
	"github.com/Iron-Ham/image2video/internal/orchestrator"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Drive the chat workflow from the terminal",
	Long: `Run an interactive conversation against the real image host and video API.

Plain lines are sent as text messages. Commands:
  /image <path|base64>  send an image (a file path is read and encoded)
  /user <id>            switch the simulated user (default "local")
  /phase                show the current user's phase
  /quit                 exit

Logs go to logging.file when set and are discarded otherwise.`,
	RunE: runChat,
}

var chatUser string

func init() {
	chatCmd.Flags().StringVar(&chatUser, "user", "local", "user id to send messages as")
}

var (
	replyStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444")).Bold(true)
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	promptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#7C3AED")).Bold(true)
)

func runChat(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger := logging.NopLogger()
	if cfg.Logging.File != "" {
		if logger, err = newLogger(cfg); err != nil {
			return err
		}
	}

	ctx := cmd.Context()
	a, err := newApp(ctx, cfg, appOptions{Logger: logger, Attachments: attachment.Inline{}})
	if err != nil {
		return err
	}
	defer a.close(context.Background())

	r := &chatREPL{
		orch:   a.orch,
		in:     cmd.InOrStdin(),
		out:    cmd.OutOrStdout(),
		userID: chatUser,
		styled: isTerminal(cmd.OutOrStdout()),
	}
	return r.run(ctx)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// chatREPL reads lines from in and renders replies to out.
type chatREPL struct {
	orch   *orchestrator.Orchestrator
	in     io.Reader
	out    io.Writer
	userID string
	styled bool
}

func (r *chatREPL) render(style lipgloss.Style, s string) string {
	if !r.styled {
		return s
	}
	return style.Render(s)
}

func (r *chatREPL) run(ctx context.Context) error {
	fmt.Fprintf(r.out, "Send %q to begin. /quit to exit.\n", r.orch.Trigger())

	scanner := bufio.NewScanner(r.in)
	// Inline base64 images can be long.
	scanner.Buffer(make([]byte, 0, 64*1024), 32*1024*1024)

	for {
		fmt.Fprint(r.out, r.render(promptStyle, r.userID+"> "))
		if !scanner.Scan() {
			fmt.Fprintln(r.out)
			return scanner.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		msg, done, err := r.parse(ctx, line)
		if done {
			return nil
		}
		if err != nil {
			fmt.Fprintln(r.out, r.render(errorStyle, err.Error()))
			continue
		}
		if msg == nil {
			continue
		}

		reply, err := r.orch.HandleEvent(ctx, *msg)
		if err != nil {
			fmt.Fprintln(r.out, r.render(errorStyle, err.Error()))
			continue
		}
		r.print(reply)
	}
}

// parse turns a line into a message. Commands that are handled locally
// return a nil message.
func (r *chatREPL) parse(ctx context.Context, line string) (msg *orchestrator.Message, done bool, err error) {
	if !strings.HasPrefix(line, "/") {
		return &orchestrator.Message{UserID: r.userID, Type: orchestrator.MessageText, Content: line}, false, nil
	}

	name, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch name {
	case "/quit", "/exit":
		return nil, true, nil
	case "/user":
		if arg == "" {
			return nil, false, fmt.Errorf("usage: /user <id>")
		}
		r.userID = arg
		fmt.Fprintln(r.out, r.render(mutedStyle, "now chatting as "+arg))
		return nil, false, nil
	case "/phase":
		phase, err := r.orch.Phase(ctx, r.userID)
		if err != nil {
			return nil, false, err
		}
		fmt.Fprintln(r.out, r.render(mutedStyle, string(phase)))
		return nil, false, nil
	case "/image":
		if arg == "" {
			return nil, false, fmt.Errorf("usage: /image <path|base64>")
		}
		data, err := imageArg(arg)
		if err != nil {
			return nil, false, err
		}
		return &orchestrator.Message{UserID: r.userID, Type: orchestrator.MessageImage, Attachment: data}, false, nil
	default:
		return nil, false, fmt.Errorf("unknown command %s", name)
	}
}

// imageArg reads arg as a file when one exists and encodes it; anything else
// is passed through as inline base64.
func imageArg(arg string) (string, error) {
	info, err := os.Stat(arg)
	if err != nil || !info.Mode().IsRegular() {
		return arg, nil
	}
	raw, err := os.ReadFile(arg)
	if err != nil {
		return "", fmt.Errorf("failed to read image: %w", err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

func (r *chatREPL) print(reply orchestrator.Reply) {
	switch {
	case !reply.Handled:
		fmt.Fprintln(r.out, r.render(mutedStyle, "(no reply)"))
	case reply.Kind == orchestrator.ReplyError:
		fmt.Fprintln(r.out, r.render(errorStyle, reply.Text))
	default:
		fmt.Fprintln(r.out, r.render(replyStyle, reply.Text))
	}
}
