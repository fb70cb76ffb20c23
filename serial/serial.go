// SPDX-License-Identifier: MIT
//
// Copyright © 2020 Kent Gibson <warthog618@gmail.com>.

// Package serial provides the io.ReadWriter connection between the modem
// package and the physical WiFi modem, defaulting to the platform's usual
// port at the 115200 8N1 the AT dialect requires.
package serial

import (
	"github.com/tarm/serial"
)

// Config holds the serial port parameters. The zero value is not useful;
// build one with the platform's defaultConfig and the With* options.
type Config struct {
	port string
	baud int
}

// Option modifies a Config built by New.
type Option func(*Config)

// WithPort overrides the default platform-specific port.
func WithPort(port string) Option {
	return func(c *Config) {
		c.port = port
	}
}

// WithBaud overrides the default baud rate of 115200.
func WithBaud(baud int) Option {
	return func(c *Config) {
		c.baud = baud
	}
}

// New opens the serial port, applying any options over the platform
// default (defaultConfig, defined per-OS).
func New(options ...Option) (*serial.Port, error) {
	cfg := defaultConfig
	for _, option := range options {
		option(&cfg)
	}
	sc := &serial.Config{Name: cfg.port, Baud: cfg.baud}
	return serial.OpenPort(sc)
}
