package aicontext

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

const DefaultTimeout = 40 * time.Second

// Client relays an assembled prompt to the conversational AI upstream and
// returns the upstream body as decoded JSON or a raw string.
type Client interface {
	Send(ctx context.Context, prompt string) (any, error)
}

type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (c *HTTPClient) Send(ctx context.Context, prompt string) (any, error) {
	bodyRaw, err := json.Marshal(map[string]string{"message": prompt})
	if err != nil {
		return nil, err
	}

	request, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		c.baseURL+"/chat/ai",
		bytes.NewReader(bodyRaw),
	)
	if err != nil {
		return nil, errors.Join(ErrUpstreamUnreachable, err)
	}
	request.Header.Set("Content-Type", "application/json")
	request.Header.Set("Accept", "application/json")

	response, err := c.httpClient.Do(request)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	defer response.Body.Close()

	responseBody, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, classifyTransportError(err)
	}

	payload := decodePayload(responseBody)
	if response.StatusCode >= http.StatusInternalServerError {
		return nil, &UpstreamError{StatusCode: response.StatusCode, Body: payload}
	}
	return payload, nil
}

func classifyTransportError(err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return errors.Join(ErrUpstreamTimeout, err)
	}
	return errors.Join(ErrUpstreamUnreachable, err)
}

// decodePayload keeps JSON bodies structured and falls back to the raw text.
func decodePayload(body []byte) any {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil
	}
	if json.Valid(trimmed) {
		return json.RawMessage(trimmed)
	}
	return string(trimmed)
}

// EchoClient answers locally with the prompt it was given. It stands in for
// the upstream when APP_ENV=local and no AI_API_URL is configured.
type EchoClient struct{}

func (EchoClient) Send(_ context.Context, prompt string) (any, error) {
	return map[string]any{
		"reply":  "Local echo: no AI upstream configured.",
		"prompt": prompt,
	}, nil
}
