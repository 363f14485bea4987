// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package transport

import (
	"context"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/Thermoquad/chargeport/pkg/charger"
	"github.com/gorilla/websocket"
)

// WebSocketPort sends each command as one binary CBOR message to a
// serial-to-websocket bridge
type WebSocketPort struct {
	name string
	conn *websocket.Conn

	mu     sync.Mutex
	closed bool
}

// WriteCommand encodes the command as CBOR and sends it
func (w *WebSocketPort) WriteCommand(cmd charger.Command) error {
	data, err := charger.EncodeCBOR(cmd)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrPortClosed
	}
	if err := w.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
		return fmt.Errorf("websocket write failed: %w", err)
	}
	return nil
}

// Close sends a close frame and closes the connection
func (w *WebSocketPort) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	deadline := time.Now().Add(time.Second)
	handshakeErr := w.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
	if err := w.conn.Close(); err != nil {
		return fmt.Errorf("websocket close failed: %w", err)
	}
	if handshakeErr != nil {
		return fmt.Errorf("websocket close handshake failed: %w", handshakeErr)
	}
	return nil
}

// Name returns the device label the port was opened with
func (w *WebSocketPort) Name() string {
	return w.name
}

// WebSocketOpener dials a websocket bridge. The name passed to Open labels
// the charger behind the bridge; the speed is ignored.
type WebSocketOpener struct {
	URL           string
	Username      string
	Password      string
	SkipSSLVerify bool
}

// Open dials the bridge with HTTP Basic auth
func (o WebSocketOpener) Open(name string, speed Baud) (Port, error) {
	u, err := url.Parse(o.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}

	switch u.Scheme {
	case "ws", "wss":
	default:
		return nil, fmt.Errorf("unsupported URL scheme: %s (use ws:// or wss://)", u.Scheme)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}
	if u.Scheme == "wss" {
		dialer.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: o.SkipSSLVerify,
		}
	}

	headers := http.Header{}
	if o.Username != "" && o.Password != "" {
		credentials := base64.StdEncoding.EncodeToString([]byte(o.Username + ":" + o.Password))
		headers.Set("Authorization", "Basic "+credentials)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	conn, resp, err := dialer.DialContext(ctx, o.URL, headers)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("WebSocket connection failed (HTTP %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("WebSocket connection failed: %w", err)
	}

	return &WebSocketPort{name: name, conn: conn}, nil
}
