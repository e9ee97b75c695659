package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/benreceveur/memdex/internal/config"
	"github.com/benreceveur/memdex/internal/rpc"
)

// serveRequest is one line of input in serve mode.
type serveRequest struct {
	Command string          `json:"command"`
	Payload json.RawMessage `json:"payload"`
}

// serveCmd runs a long-lived request loop over stdin/stdout.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve requests over stdin/stdout",
	Long: `Run a long-lived loop reading newline-delimited requests from stdin
and writing one JSON response per line to stdout:

  {"command": "search", "payload": {"indexPath": "...", "model": "...", "query": "..."}}

Stores, embedding services, and the search cache persist across requests,
so repeated searches skip the cache rebuild while the store is unchanged.
The loop exits cleanly on EOF.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

// runServe processes requests until stdin closes or the context ends.
func runServe(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	handler := rpc.NewHandler(config.Get())
	defer handler.Close()

	log.Info("memdex serving on stdin/stdout")

	reader := bufio.NewReader(os.Stdin)
	writer := os.Stdout

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line, err := reader.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				log.Info("Received EOF, shutting down")
				return nil
			}
			log.Error("Failed to read from stdin", "error", err)
			continue
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		var req serveRequest
		if err := json.Unmarshal([]byte(line), &req); err != nil {
			send(writer, rpc.Errorf(fmt.Sprintf("invalid request: %v", err)))
			continue
		}
		if req.Command == "" {
			send(writer, rpc.Errorf("command required"))
			continue
		}

		send(writer, handler.Dispatch(ctx, req.Command, req.Payload))
	}
}

// send writes one JSON response line.
func send(w io.Writer, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Error("Failed to marshal response", "error", err)
		return
	}
	fmt.Fprintln(w, string(data))
}
