package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/getmockd/frontd/pkg/cli/internal/output"
	"github.com/getmockd/frontd/pkg/cli/internal/parse"
)

// wsFlags are shared by every ws subcommand.
type wsFlags struct {
	headers     []string
	subprotocol string
	timeout     time.Duration
}

func (f *wsFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringArrayVarP(&f.headers, "header", "H", nil, "Custom headers (key:value), repeatable")
	cmd.Flags().StringVar(&f.subprotocol, "subprotocol", "", "WebSocket subprotocol")
	cmd.Flags().DurationVarP(&f.timeout, "timeout", "t", 30*time.Second, "Connection timeout")
}

func (f *wsFlags) dial(ctx context.Context, url string) (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: f.timeout}
	if f.subprotocol != "" {
		dialer.Subprotocols = []string{f.subprotocol}
	}

	conn, resp, err := dialer.DialContext(ctx, url, parse.Header(f.headers))
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("connection failed: %w (HTTP %d)", err, resp.StatusCode)
		}
		return nil, fmt.Errorf("connection failed: %w", err)
	}
	return conn, nil
}

// closeGracefully sends a normal-closure frame and closes conn.
func closeGracefully(conn *websocket.Conn) {
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	_ = conn.Close()
}

// messageTypeString returns a human-readable message type.
func messageTypeString(t int) string {
	switch t {
	case websocket.TextMessage:
		return "text"
	case websocket.BinaryMessage:
		return "binary"
	case websocket.CloseMessage:
		return "close"
	case websocket.PingMessage:
		return "ping"
	case websocket.PongMessage:
		return "pong"
	default:
		return "unknown"
	}
}

func isNormalClose(err error) bool {
	return websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway)
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

var wsCmd = &cobra.Command{
	Use:     "ws",
	Aliases: []string{"websocket"},
	Short:   "Interact with WebSocket endpoints",
}

func init() {
	wsCmd.AddCommand(newWSConnectCmd(), newWSSendCmd(), newWSListenCmd())
	rootCmd.AddCommand(wsCmd)
}

// ============================================================================
// connect
// ============================================================================

func newWSConnectCmd() *cobra.Command {
	f := &wsFlags{}
	cmd := &cobra.Command{
		Use:   "connect <url>",
		Short: "Interactive WebSocket client (REPL mode)",
		Long: `Start an interactive WebSocket client session.
Type messages and press Enter to send. Ctrl+C to exit.`,
		Example: `  frontd ws connect ws://localhost:8080/websocket
  frontd ws connect -H "Authorization:Bearer token" ws://localhost:8080/websocket`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) < 1 {
				return ErrMissingURL
			}
			return runWSConnect(cmd, f, args[0])
		},
	}
	f.register(cmd)
	return cmd
}

func runWSConnect(cmd *cobra.Command, f *wsFlags, url string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	fmt.Fprintf(cmd.ErrOrStderr(), "Connecting to %s...\n", url)
	conn, err := f.dial(ctx, url)
	if err != nil {
		return err
	}
	defer closeGracefully(conn)
	fmt.Fprintln(cmd.ErrOrStderr(), "Connected. Type messages and press Enter to send. Ctrl+C to exit.")

	errc := make(chan error, 1)
	go func() {
		for {
			typ, msg, err := conn.ReadMessage()
			if err != nil {
				errc <- err
				return
			}
			if jsonOutput {
				output.Line(out, output.NewEvent("received", messageTypeString(typ), string(msg)))
			} else {
				fmt.Fprintf(out, "< %s\n", msg)
			}
		}
	}()

	input := make(chan string)
	go func() {
		scanner := bufio.NewScanner(cmd.InOrStdin())
		for scanner.Scan() {
			select {
			case input <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		close(input)
	}()

	for {
		select {
		case <-ctx.Done():
			fmt.Fprintln(cmd.ErrOrStderr(), "\nDisconnecting...")
			return nil
		case err := <-errc:
			if isNormalClose(err) {
				fmt.Fprintln(cmd.ErrOrStderr(), "Connection closed by server")
				return nil
			}
			return fmt.Errorf("read error: %w", err)
		case line, ok := <-input:
			if !ok {
				return nil
			}
			if line == "" {
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, []byte(line)); err != nil {
				return fmt.Errorf("send error: %w", err)
			}
			if jsonOutput {
				output.Line(out, output.NewEvent("sent", "text", line))
			} else {
				fmt.Fprintf(out, "> %s\n", line)
			}
		}
	}
}

// ============================================================================
// send
// ============================================================================

func newWSSendCmd() *cobra.Command {
	f := &wsFlags{}
	var wait time.Duration
	cmd := &cobra.Command{
		Use:   "send <url> <message>",
		Short: "Send a single message and exit",
		Long: `Send one message to a WebSocket endpoint. A message starting with @ is read
from the named file. With --wait, replies arriving within that time are printed.`,
		Example: `  frontd ws send ws://localhost:8080/websocket "hello"
  frontd ws send --wait 1s ws://localhost:8080/websocket /who
  frontd ws send ws://localhost:8080/websocket @message.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) < 2 {
				return fmt.Errorf("%w and message are required", ErrMissingURL)
			}
			return runWSSend(cmd, f, args[0], args[1], wait)
		},
	}
	f.register(cmd)
	cmd.Flags().DurationVarP(&wait, "wait", "w", 0, "Print replies received within this duration")
	return cmd
}

func runWSSend(cmd *cobra.Command, f *wsFlags, url, message string, wait time.Duration) error {
	if len(message) > 0 && message[0] == '@' {
		data, err := os.ReadFile(message[1:])
		if err != nil {
			return fmt.Errorf("failed to read message file: %w", err)
		}
		message = string(data)
	}

	conn, err := f.dial(cmd.Context(), url)
	if err != nil {
		return err
	}
	defer closeGracefully(conn)

	if err := conn.WriteMessage(websocket.TextMessage, []byte(message)); err != nil {
		return fmt.Errorf("send error: %w", err)
	}

	out := cmd.OutOrStdout()
	var replies []string
	if wait > 0 {
		replies, err = readUntil(conn, time.Now().Add(wait))
		if err != nil {
			return err
		}
	}

	if jsonOutput {
		return output.JSON(out, map[string]any{
			"success":   true,
			"url":       url,
			"message":   message,
			"replies":   replies,
			"timestamp": time.Now().Format(time.RFC3339),
		})
	}

	fmt.Fprintf(out, "Sent to %s: %s\n", url, message)
	for _, r := range replies {
		fmt.Fprintf(out, "< %s\n", r)
	}
	return nil
}

// readUntil collects messages until deadline or a normal close.
func readUntil(conn *websocket.Conn, deadline time.Time) ([]string, error) {
	if err := conn.SetReadDeadline(deadline); err != nil {
		return nil, err
	}
	var msgs []string
	for {
		_, msg, err := conn.ReadMessage()
		switch {
		case err == nil:
			msgs = append(msgs, string(msg))
		case isTimeout(err), isNormalClose(err):
			return msgs, nil
		default:
			return msgs, fmt.Errorf("read error: %w", err)
		}
	}
}

// ============================================================================
// listen
// ============================================================================

func newWSListenCmd() *cobra.Command {
	f := &wsFlags{}
	var count int
	cmd := &cobra.Command{
		Use:   "listen <url>",
		Short: "Stream incoming messages",
		Example: `  frontd ws listen ws://localhost:8080/websocket
  frontd ws listen -n 10 --json ws://localhost:8080/websocket`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) < 1 {
				return ErrMissingURL
			}
			return runWSListen(cmd, f, args[0], count)
		},
	}
	f.register(cmd)
	cmd.Flags().IntVarP(&count, "count", "n", 0, "Number of messages to receive (0 = unlimited)")
	return cmd
}

func runWSListen(cmd *cobra.Command, f *wsFlags, url string, count int) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, err := f.dial(ctx, url)
	if err != nil {
		return err
	}
	defer closeGracefully(conn)

	// Unblock ReadMessage when interrupted.
	go func() {
		<-ctx.Done()
		_ = conn.SetReadDeadline(time.Now())
	}()

	return listen(ctx, conn, cmd.OutOrStdout(), count)
}

func listen(ctx context.Context, conn *websocket.Conn, out io.Writer, count int) error {
	received := 0
	for count == 0 || received < count {
		typ, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || isNormalClose(err) {
				return nil
			}
			return fmt.Errorf("read error: %w", err)
		}

		if jsonOutput {
			ev := output.NewEvent("", messageTypeString(typ), string(msg))
			ev.Index = received
			output.Line(out, ev)
		} else {
			fmt.Fprintln(out, string(msg))
		}
		received++
	}
	return nil
}
