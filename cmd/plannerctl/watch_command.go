package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gorilla/websocket"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/forgo/planner/api/internal/model"
	"github.com/forgo/planner/api/internal/watch"
)

var errJobNotFound = errors.New("job not found")

func newWatchCommand(ctx *commandContext) *cobra.Command {
	var server string

	cmd := &cobra.Command{
		Use:   "watch <job-id>",
		Short: "Follow a job live",
		Long: "Connects to the server's websocket and follows a job until it finishes.\n" +
			"Frames are printed as JSON lines when stdout is not a terminal.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if server == "" {
				cfg, err := ctx.ensureConfig()
				if err != nil {
					return err
				}
				server = "http://localhost:" + cfg.Server.Port
			}
			target, err := socketURL(server, args[0])
			if err != nil {
				return err
			}

			conn, _, err := websocket.DefaultDialer.DialContext(cmd.Context(), target, nil)
			if err != nil {
				return fmt.Errorf("connect to %s: %w", target, err)
			}
			defer conn.Close()

			out := cmd.OutOrStdout()
			if !isTerminal(out) {
				return streamFrames(cmd.Context(), conn, out)
			}
			return runWatchUI(conn, args[0])
		},
	}

	cmd.Flags().StringVar(&server, "server", "", "API base URL (default http://localhost:<server port>)")
	return cmd
}

// socketURL maps an http(s) base URL to the job's websocket endpoint
func socketURL(server, jobID string) (string, error) {
	u, err := url.Parse(strings.TrimRight(server, "/"))
	if err != nil {
		return "", fmt.Errorf("invalid server url %q: %w", server, err)
	}
	switch u.Scheme {
	case "http", "ws", "":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported server scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("invalid server url %q: missing host", server)
	}
	u.Path = u.Path + "/ws/jobs/" + jobID + "/"
	return u.String(), nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// streamFrames copies frames to w, one JSON document per line, until the job
// finishes or the server closes the connection
func streamFrames(ctx context.Context, conn *websocket.Conn, w io.Writer) error {
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return closeReason(err)
		}
		if _, err := fmt.Fprintln(w, strings.TrimSpace(string(data))); err != nil {
			return err
		}

		var frame watch.Frame
		if json.Unmarshal(data, &frame) == nil && frame.Terminal() {
			return nil
		}
	}
}

func runWatchUI(conn *websocket.Conn, jobID string) error {
	var writeMu sync.Mutex
	send := func(kind model.ClientMessageType) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		return conn.WriteJSON(map[string]string{"type": string(kind)})
	}

	program := tea.NewProgram(watch.New(jobID, send))

	go func() {
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				program.Send(watch.ClosedMsg{Err: closeReason(err)})
				return
			}
			var frame watch.Frame
			if err := json.Unmarshal(data, &frame); err != nil {
				continue
			}
			program.Send(watch.FrameMsg(frame))
		}
	}()

	final, err := program.Run()
	if err != nil {
		return err
	}
	if m, ok := final.(watch.Model); ok {
		return m.Err()
	}
	return nil
}

// closeReason turns a read error into the command's result. Normal closes
// end the command quietly.
func closeReason(err error) error {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		switch ce.Code {
		case websocket.CloseNormalClosure, websocket.CloseGoingAway:
			return nil
		case model.CloseJobNotFound:
			return errJobNotFound
		}
		return fmt.Errorf("connection closed: %d %s", ce.Code, ce.Text)
	}
	return err
}
