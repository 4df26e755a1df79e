package workflowapi

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"

	"github.com/BaSui01/flowcanvas/types"
)

// streamSSE reads "data: {...}" lines from body into ch and closes both.
// It returns the error that ended the stream, if any.
func streamSSE(ctx context.Context, body io.ReadCloser, ch chan<- StreamChunk) error {
	defer body.Close()
	defer close(ch)

	send := func(chunk StreamChunk) bool {
		select {
		case <-ctx.Done():
			return false
		case ch <- chunk:
			return true
		}
	}

	reader := bufio.NewReader(body)
	for {
		line, err := reader.ReadString('\n')
		if line = strings.TrimSpace(line); strings.HasPrefix(line, "data:") {
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if data != "" && data != "[DONE]" {
				var chunk StreamChunk
				if jerr := json.Unmarshal([]byte(data), &chunk); jerr != nil {
					serr := types.NewUpstreamError(upstreamName, "malformed stream event").WithCause(jerr)
					send(StreamChunk{Err: serr})
					return serr
				}
				if !send(chunk) {
					return ctx.Err()
				}
				if chunk.Done {
					return nil
				}
				if chunk.Error != "" {
					return types.NewUpstreamError(upstreamName, chunk.Error)
				}
			} else if data == "[DONE]" {
				send(StreamChunk{Done: true})
				return nil
			}
		}

		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			if ctx.Err() != nil {
				return transportError(ctx, ctx.Err())
			}
			serr := types.NewUpstreamError(upstreamName, "stream interrupted").WithCause(err)
			send(StreamChunk{Err: serr})
			return serr
		}
	}
}
