// SPDX-License-Identifier: GPL-3.0-or-later
package config

import (
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/CrawX/go-imap-backup/domain"
	"github.com/CrawX/go-imap-backup/log"

	"github.com/BurntSushi/toml"
)

const (
	DefaultFilename = "imapbackup.toml"

	DefaultPort    = 143
	DefaultTLSPort = 993
)

var DefaultExcludeFolders = []string{`\[Gmail\]/`}

type Config struct {
	// Server is the host name, optionally followed by :port.
	Server   string
	Port     int
	User     string
	Password string

	UseTLS   bool
	StartTLS bool
	Insecure bool
	KeyFile  string
	CertFile string

	Compression       string
	Overwrite         bool
	OutputDir         string
	ExcludeFolders    []string
	MessageIdWarnings bool
	// Compress enables the IMAP COMPRESS=DEFLATE extension.
	Compress bool

	Loglevel *string
}

func Default() *Config {
	return &Config{
		Compression:    string(domain.CompressionNone),
		OutputDir:      ".",
		ExcludeFolders: append([]string{}, DefaultExcludeFolders...),
	}
}

// ReadConfig decodes a TOML file over the defaults. A missing file is only an
// error if required is set. The result still needs to be validated.
func ReadConfig(filename string, required bool) (*Config, error) {
	config := Default()

	_, err := toml.DecodeFile(filename, config)
	if errors.Is(err, os.ErrNotExist) && !required {
		return config, nil
	}
	if err != nil {
		return nil, fmt.Errorf("could not read config file: %w", err)
	}

	return config, nil
}

// Validate checks the configuration for consistency and resolves the port.
// Combinations that work but are probably unintended are logged as warnings.
func (c *Config) Validate() error {
	l := log.Logger(log.LOG_CONFIG)

	compression, err := domain.ParseCompression(c.Compression)
	if err != nil {
		return err
	}
	c.Compression = string(compression)

	if compression == domain.CompressionBzip2 && !c.Overwrite {
		return fmt.Errorf("%w: cannot append new messages to mbox.bz2 files, enable Overwrite", domain.ErrConfigurationConflict)
	}

	if err := validateNonEmptyStringField(c.Server, "Server must not be empty, set to host or host:port of the imap server"); err != nil {
		return err
	}

	if err := validateNonEmptyStringField(c.User, "User must not be empty, set to username on the imap server"); err != nil {
		return err
	}

	if (len(c.KeyFile) > 0) != (len(c.CertFile) > 0) {
		return fmt.Errorf("KeyFile and CertFile must be set together")
	}
	if len(c.KeyFile) > 0 && !c.UseTLS {
		return fmt.Errorf("KeyFile and CertFile require UseTLS")
	}
	if c.UseTLS && c.StartTLS {
		return fmt.Errorf("UseTLS and StartTLS cannot be used at the same time")
	}

	if err := c.splitServer(); err != nil {
		return err
	}

	if err := validateNonEmptyStringField(c.OutputDir, "OutputDir must not be empty"); err != nil {
		return err
	}

	for _, p := range c.ExcludeFolders {
		if _, err := regexp.Compile(p); err != nil {
			return fmt.Errorf("invalid exclude pattern %q: %w", p, err)
		}
	}

	if compression == domain.CompressionGzip && !c.Overwrite {
		l.Warn("Appending new messages to mbox.gz files is very slow, consider overwriting and compressing the files yourself with gzip -9 *.mbox")
	}
	if c.Overwrite {
		l.Warn("Existing mbox files will be overwritten!")
	}

	return nil
}

// splitServer separates an optional port from Server. IPv6 literals are
// accepted bare (::1) or in brackets, with a port only in brackets ([::1]:993).
func (c *Config) splitServer() error {
	host, port, err := net.SplitHostPort(c.Server)
	if err != nil {
		host, port = strings.TrimSuffix(strings.TrimPrefix(c.Server, "["), "]"), ""
		if strings.Contains(host, ":") && net.ParseIP(host) == nil {
			return fmt.Errorf("invalid server %q, use host, host:port, an IPv6 address or [IPv6]:port", c.Server)
		}
	}
	c.Server = host

	if len(port) > 0 {
		p, err := strconv.Atoi(port)
		if err != nil {
			return fmt.Errorf("invalid port %q, port must be an integer between 0 and 65535", port)
		}
		c.Port = p
	}

	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d, port must be an integer between 0 and 65535", c.Port)
	}

	if c.Port == 0 {
		c.Port = DefaultPort
		if c.UseTLS {
			c.Port = DefaultTLSPort
		}
	}

	return nil
}

// Address is the host:port to dial, valid after Validate.
func (c *Config) Address() string {
	return net.JoinHostPort(c.Server, strconv.Itoa(c.Port))
}

// TLSConfig builds the client TLS settings, loading the client certificate if
// one is configured.
func (c *Config) TLSConfig() (*tls.Config, error) {
	tlsConfig := &tls.Config{
		ServerName:         c.Server,
		InsecureSkipVerify: c.Insecure,
	}

	if len(c.KeyFile) > 0 {
		cert, err := tls.LoadX509KeyPair(c.CertFile, c.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("could not load client certificate: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}

	return tlsConfig, nil
}

func validateNonEmptyStringField(field string, err string) error {
	if len(strings.TrimSpace(field)) == 0 {
		return errors.New(err)
	}

	return nil
}
