package stream

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/casewire/casewire/internal/logger"
)

const readChunkSize = 4096

// TextFunc receives each extracted text fragment as it arrives. Returning
// an error aborts the stream.
type TextFunc func(text string) error

// Client consumes a live analysis stream over HTTP and feeds the decoded
// text to a callback. It has no dependency on the session layer.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewClient creates a stream client for the given analysis base URL
func NewClient(baseURL string) *Client {
	return &Client{
		httpClient: &http.Client{
			// No overall timeout: the response is open-ended. Connection
			// setup still gets a bound.
			Transport: &http.Transport{
				ResponseHeaderTimeout: 30 * time.Second,
			},
		},
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}
}

// Stream opens the analysis stream for caseID and invokes fn for every
// non-empty text fragment until the stream ends, the [DONE] marker
// arrives, fn returns an error, or ctx is cancelled.
func (c *Client) Stream(ctx context.Context, caseID string, fn TextFunc) error {
	url := fmt.Sprintf("%s/cases/%s/analysis/stream", c.baseURL, caseID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to build analysis request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("analysis stream failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("analysis stream failed: status %d: %s",
			resp.StatusCode, strings.TrimSpace(string(body)))
	}

	logger.Debug("Analysis stream connected for case %s", caseID)

	buf := make([]byte, readChunkSize)
	partial := ""
	eventCount := 0

	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			var events []Event
			events, partial = Decode(partial, string(buf[:n]))
			for _, ev := range events {
				eventCount++
				if strings.TrimSpace(ev.Data) == DoneMarker {
					logger.Debug("Analysis stream for case %s finished after %d events", caseID, eventCount)
					return nil
				}
				if text := ExtractText(ev); text != "" {
					if err := fn(text); err != nil {
						return err
					}
				}
			}
		}

		if readErr == io.EOF {
			// An unterminated trailing segment is discarded; the upstream
			// either sent [DONE] or was cut off mid-event.
			logger.Debug("Analysis stream for case %s closed after %d events", caseID, eventCount)
			return nil
		}
		if readErr != nil {
			return fmt.Errorf("analysis stream read failed: %w", readErr)
		}
	}
}
