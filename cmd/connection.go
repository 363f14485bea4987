// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/Thermoquad/chargeport/pkg/config"
	"github.com/Thermoquad/chargeport/pkg/dispatch"
	"github.com/Thermoquad/chargeport/pkg/transport"
	"golang.org/x/term"
)

// GetPassword retrieves password from environment or prompts user
func GetPassword() (string, error) {
	// First check environment variable
	if pw := os.Getenv("CHARGEPORT_PASSWORD"); pw != "" {
		return pw, nil
	}

	// Prompt user for password (hide input)
	fmt.Fprint(os.Stderr, "Password: ")

	// Read password without echo
	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		// Fallback to regular input if terminal functions fail
		reader := bufio.NewReader(os.Stdin)
		password, err := reader.ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("failed to read password: %v", err)
		}
		fmt.Fprintln(os.Stderr) // newline after password
		return strings.TrimSpace(password), nil
	}

	fmt.Fprintln(os.Stderr) // newline after password
	return string(passwordBytes), nil
}

// newOpener returns the transport opener for the configured link
func newOpener(c *config.Config) (transport.Opener, error) {
	if c.Transport.Kind != config.TransportWebSocket {
		return transport.SerialOpener{}, nil
	}

	ws := c.Transport.WebSocket
	password := ""
	if ws.Username != "" {
		var err error
		password, err = GetPassword()
		if err != nil {
			return nil, err
		}
	}

	return transport.WebSocketOpener{
		URL:           ws.URL,
		Username:      ws.Username,
		Password:      password,
		SkipSSLVerify: ws.SkipSSLVerify,
	}, nil
}

// openPool creates a dispatch pool and binds it to the configured link
func openPool(c *config.Config) (*dispatch.Pool, error) {
	opener, err := newOpener(c)
	if err != nil {
		return nil, err
	}

	pool := dispatch.New(opener, dispatch.WithLogger(logger))
	if err := pool.Init(c.Transport.Port, c.Baud()); err != nil {
		return nil, err
	}
	return pool, nil
}

// newSender returns a sender draining pool onto its port
func newSender(c *config.Config, pool *dispatch.Pool) *transport.Sender {
	return &transport.Sender{
		Source:   pool,
		Port:     pool.Port(),
		Interval: c.Sender.Interval(),
		Logger:   logger,
	}
}
