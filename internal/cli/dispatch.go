package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/benreceveur/memdex/internal/config"
	"github.com/benreceveur/memdex/internal/rpc"
)

// readPayload reads the whole JSON payload from stdin. An empty stdin is
// treated as an empty object so missing-field validation reports cleanly.
func readPayload() ([]byte, error) {
	raw, err := io.ReadAll(os.Stdin)
	if err != nil {
		return nil, fmt.Errorf("failed to read payload: %w", err)
	}
	if len(raw) == 0 {
		raw = []byte("{}")
	}
	return raw, nil
}

// writeResponse marshals a response to stdout, one JSON document per line.
func writeResponse(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal response: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

// dispatchStdin runs one command against a payload read from stdin and
// prints the JSON response. The process exits zero even for error
// responses: the caller reads status from the JSON, not the exit code.
func dispatchStdin(command string) (any, error) {
	raw, err := readPayload()
	if err != nil {
		return nil, err
	}

	handler := rpc.NewHandler(config.Get())
	defer handler.Close()

	return handler.Dispatch(context.Background(), command, raw), nil
}
