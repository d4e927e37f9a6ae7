package notify

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/input-output-hk/catalyst-forge-release/errors"
	"github.com/input-output-hk/catalyst-forge-release/internal/httpstatus"
)

// Matrix sends m.room.message events through the client-server API.
type Matrix struct {
	homeserver string
	token      string
	client     *http.Client
	logger     *slog.Logger
}

// MatrixOption configures a Matrix notifier.
type MatrixOption func(*Matrix)

// WithMatrixHTTPClient sets the HTTP client.
func WithMatrixHTTPClient(client *http.Client) MatrixOption {
	return func(m *Matrix) {
		if client != nil {
			m.client = client
		}
	}
}

// WithMatrixLogger sets the logger.
func WithMatrixLogger(logger *slog.Logger) MatrixOption {
	return func(m *Matrix) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewMatrix returns a Matrix notifier for homeserver using an access token.
func NewMatrix(homeserver, token string, opts ...MatrixOption) *Matrix {
	m := &Matrix{
		homeserver: strings.TrimRight(homeserver, "/"),
		token:      token,
		client:     &http.Client{Timeout: 30 * time.Second},
		logger:     slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Name implements Notifier.
func (m *Matrix) Name() string {
	return "matrix"
}

type matrixEvent struct {
	MsgType string `json:"msgtype"`
	Body    string `json:"body"`
}

type matrixSendResponse struct {
	EventID string `json:"event_id"`
}

// Notify sends msg.Text to the room msg.Channel. The transaction id is
// derived from msg.Key, so the homeserver drops a repeated send.
func (m *Matrix) Notify(ctx context.Context, msg Message) error {
	if m.homeserver == "" || m.token == "" {
		return errors.New(errors.CodeInvalidConfig, "matrix homeserver and token are required")
	}
	if msg.Channel == "" {
		return errors.New(errors.CodeInvalidInput, "matrix room is required")
	}

	payload, err := json.Marshal(matrixEvent{MsgType: "m.text", Body: msg.Text})
	if err != nil {
		return errors.Wrap(err, errors.CodeInternal, "failed to marshal matrix event")
	}

	txn := TransactionID(msg)
	endpoint := fmt.Sprintf("%s/_matrix/client/v3/rooms/%s/send/m.room.message/%s",
		m.homeserver, url.PathEscape(msg.Channel), url.PathEscape(txn))
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, endpoint, bytes.NewReader(payload))
	if err != nil {
		return errors.Wrap(err, errors.CodeInvalidConfig, "invalid matrix homeserver")
	}
	req.Header.Set("Authorization", "Bearer "+m.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return errors.Wrap(err, errors.CodeNetwork, "failed to send matrix message")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return httpstatus.Error(resp, errors.CodeNotifyFailed, "matrix send")
	}

	var out matrixSendResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return errors.Wrap(err, errors.CodeNotifyFailed, "invalid matrix response")
	}
	m.logger.Info("sent matrix message", "room", msg.Channel, "event_id", out.EventID, "txn", txn)
	return nil
}

// TransactionID returns the Matrix transaction id for msg. Messages without
// a key get a random id.
func TransactionID(msg Message) string {
	if msg.Key == "" {
		return uuid.NewString()
	}
	sum := sha256.Sum256([]byte(msg.Key + "\x00" + msg.Channel))
	return "forge-release-" + hex.EncodeToString(sum[:16])
}
