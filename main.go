// SPDX-License-Identifier: GPL-3.0-or-later
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/CrawX/go-imap-backup/backup"
	"github.com/CrawX/go-imap-backup/config"
	"github.com/CrawX/go-imap-backup/domain"
	"github.com/CrawX/go-imap-backup/imapconnection"
	"github.com/CrawX/go-imap-backup/log"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

const (
	exitConfig      = 2
	exitLookup      = 3
	exitConnect     = 4
	exitProtocol    = 5
	exitInterrupted = 130
)

type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	return e.err.Error()
}

func (e *exitError) Unwrap() error {
	return e.err
}

func exitWith(code int, err error) error {
	return &exitError{code: code, err: err}
}

type options struct {
	configFile string

	server   string
	user     string
	password string

	useTLS   bool
	startTLS bool
	insecure bool
	keyFile  string
	certFile string

	appendMboxes    bool
	overwriteMboxes bool
	noCompression   bool
	gzip            bool
	bzip2           bool
	compression     string

	outputDir         string
	exclude           []string
	messageIdWarnings bool
	imapCompress      bool
	loglevel          string
}

func main() {
	log.InitLogging("info")
	log.SetOutput(os.Stderr)
	logger := log.Logger(log.LOG_MAIN)

	o := &options{}
	rootCmd := &cobra.Command{
		Use:   "imapbackup",
		Short: "Incrementally back up IMAP folders to mbox files",
		Long: "Backs up every folder of an IMAP account to an mbox file per folder.\n" +
			"Messages are identified by their Message-Id, only messages missing\n" +
			"from the local mbox are downloaded.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, o)
		},
	}
	addFlags(rootCmd, o)

	err := rootCmd.ExecuteContext(context.Background())
	if err == nil {
		return
	}

	var exit *exitError
	if !errors.As(err, &exit) {
		exit = &exitError{code: exitConfig, err: err}
	}

	if exit.code == exitInterrupted {
		fmt.Fprintln(os.Stderr)
		logger.Warn("Interrupted")
	} else {
		logger.WithField("error", exit.err).Error("Backup failed")
	}
	os.Exit(exit.code)
}

func addFlags(cmd *cobra.Command, o *options) {
	f := cmd.Flags()
	f.StringVar(&o.configFile, "config", config.DefaultFilename, "TOML configuration file, command line flags take precedence")

	f.StringVarP(&o.server, "server", "s", "", "IMAP server, host or host:port")
	f.StringVarP(&o.user, "user", "u", "", "IMAP username")
	f.StringVarP(&o.password, "pass", "p", "", "IMAP password, prompted for if not set")

	f.BoolVarP(&o.useTLS, "ssl", "e", false, "Use implicit TLS, port 993 unless given")
	f.BoolVar(&o.startTLS, "starttls", false, "Upgrade the plain connection with STARTTLS")
	f.BoolVar(&o.insecure, "insecure", false, "Skip TLS certificate verification")
	f.StringVarP(&o.keyFile, "keyfile", "k", "", "PEM private key of a TLS client certificate")
	f.StringVarP(&o.certFile, "certfile", "c", "", "PEM TLS client certificate chain")

	f.BoolVarP(&o.appendMboxes, "append-to-mboxes", "a", false, "Append new messages to existing mbox files (default)")
	f.BoolVarP(&o.overwriteMboxes, "yes-overwrite-mboxes", "y", false, "Overwrite existing mbox files")
	f.BoolVarP(&o.noCompression, "no-compression", "n", false, "Do not compress mbox files (default)")
	f.BoolVarP(&o.gzip, "gzip", "z", false, "Compress mbox files with gzip")
	f.BoolVarP(&o.bzip2, "bzip2", "b", false, "Compress mbox files with bzip2, requires -y")
	f.StringVar(&o.compression, "compress", "", "Compression of mbox files: none, gzip or bzip2")

	f.StringVarP(&o.outputDir, "output-dir", "o", "", "Directory for the mbox files (default \".\")")
	f.StringArrayVar(&o.exclude, "exclude", nil, "Regex of folders to skip, can be repeated (default \"\\[Gmail\\]/\")")
	f.BoolVar(&o.messageIdWarnings, "message-id-warnings", false, "Warn about every stored message without a usable Message-Id")
	f.BoolVar(&o.imapCompress, "imap-compress", false, "Enable the IMAP COMPRESS=DEFLATE extension if supported")
	f.StringVar(&o.loglevel, "loglevel", "", "Log level: trace, debug, info, warn or error")

	cmd.MarkFlagsMutuallyExclusive("append-to-mboxes", "yes-overwrite-mboxes")
	cmd.MarkFlagsMutuallyExclusive("no-compression", "gzip", "bzip2", "compress")
}

// loadConfig reads the configuration file and applies the flags given on the
// command line on top of it.
func loadConfig(cmd *cobra.Command, o *options) (*config.Config, error) {
	f := cmd.Flags()
	conf, err := config.ReadConfig(o.configFile, f.Changed("config"))
	if err != nil {
		return nil, err
	}

	if conf.Loglevel != nil {
		log.SetLogLevel(*conf.Loglevel)
	}
	if f.Changed("loglevel") {
		conf.Loglevel = &o.loglevel
		log.SetLogLevel(o.loglevel)
	}

	setString := func(name, value string, target *string) {
		if f.Changed(name) {
			*target = value
		}
	}
	setBool := func(name string, value bool, target *bool) {
		if f.Changed(name) {
			*target = value
		}
	}

	setString("server", o.server, &conf.Server)
	setString("user", o.user, &conf.User)
	setString("pass", o.password, &conf.Password)
	setBool("ssl", o.useTLS, &conf.UseTLS)
	setBool("starttls", o.startTLS, &conf.StartTLS)
	setBool("insecure", o.insecure, &conf.Insecure)
	setString("keyfile", o.keyFile, &conf.KeyFile)
	setString("certfile", o.certFile, &conf.CertFile)
	setString("output-dir", o.outputDir, &conf.OutputDir)
	setBool("message-id-warnings", o.messageIdWarnings, &conf.MessageIdWarnings)
	setBool("imap-compress", o.imapCompress, &conf.Compress)

	if f.Changed("append-to-mboxes") && o.appendMboxes {
		conf.Overwrite = false
	}
	if f.Changed("yes-overwrite-mboxes") && o.overwriteMboxes {
		conf.Overwrite = true
	}

	switch {
	case o.noCompression:
		conf.Compression = string(domain.CompressionNone)
	case o.gzip:
		conf.Compression = string(domain.CompressionGzip)
	case o.bzip2:
		conf.Compression = string(domain.CompressionBzip2)
	case f.Changed("compress"):
		conf.Compression = o.compression
	}

	if f.Changed("exclude") {
		conf.ExcludeFolders = o.exclude
	}

	return conf, nil
}

func run(cmd *cobra.Command, o *options) error {
	logger := log.Logger(log.LOG_MAIN)

	conf, err := loadConfig(cmd, o)
	if err != nil {
		return exitWith(exitConfig, err)
	}
	if err := conf.Validate(); err != nil {
		return exitWith(exitConfig, err)
	}

	engineConfig := []backup.ConfigFunc{
		backup.WithCompression(domain.Compression(conf.Compression)),
		backup.OutputDir(conf.OutputDir),
		backup.ExcludeFolders(conf.ExcludeFolders...),
	}
	if conf.Overwrite {
		engineConfig = append(engineConfig, backup.Overwrite())
	}
	if conf.MessageIdWarnings {
		engineConfig = append(engineConfig, backup.MessageIdWarnings())
	}
	if term.IsTerminal(int(os.Stdout.Fd())) {
		engineConfig = append(engineConfig, backup.WithProgress(newProgressBar(os.Stdout)))
	}

	// fail on conflicting options before connecting
	if _, err := backup.New(nil, engineConfig...); err != nil {
		return exitWith(exitConfig, err)
	}

	if len(conf.Password) == 0 {
		conf.Password, err = readPassword()
		if err != nil {
			return exitWith(exitConfig, err)
		}
	}

	session, err := connect(conf)
	if err != nil {
		return err
	}

	var closeOnce sync.Once
	closeSession := func() {
		closeOnce.Do(func() {
			if err := session.Close(); err != nil {
				logger.WithField("error", err).Debug("Could not log out")
			}
		})
	}
	defer closeSession()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		// unblocks a pending command
		closeSession()
	}()

	b, err := backup.New(session, engineConfig...)
	if err != nil {
		return exitWith(exitConfig, err)
	}

	summary, err := b.Run(ctx, func(result backup.FolderResult) {
		fmt.Fprintln(os.Stdout, summaryLine(result))
	})
	if ctx.Err() != nil {
		return exitWith(exitInterrupted, ctx.Err())
	}
	if err != nil {
		return exitWith(exitProtocol, err)
	}

	logger.WithFields(logrus.Fields{
		"folders":   summary.Completed,
		"skipped":   summary.Skipped,
		"new":       summary.New,
		"size":      summary.TotalBytes,
		"malformed": summary.MalformedLocal,
	}).Info("Backup finished")
	return nil
}

func readPassword() (string, error) {
	fmt.Fprint(os.Stderr, "Password: ")
	b, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("could not read password: %w", err)
	}
	return string(b), nil
}

func connect(conf *config.Config) (*imapconnection.ImapConnection, error) {
	logger := log.Logger(log.LOG_MAIN)

	opts := imapconnection.Options{
		UseTLS:   conf.UseTLS,
		StartTLS: conf.StartTLS,
		Compress: conf.Compress,
	}
	if conf.UseTLS || conf.StartTLS {
		tlsConfig, err := conf.TLSConfig()
		if err != nil {
			return nil, exitWith(exitConnect, err)
		}
		opts.TLSConfig = tlsConfig
	}
	if conf.Loglevel != nil && strings.EqualFold(*conf.Loglevel, "trace") {
		opts.Debug = log.Logger(log.LOG_IMAP).WriterLevel(logrus.TraceLevel)
	}

	logger.WithFields(logrus.Fields{
		"server":   conf.Address(),
		"tls":      conf.UseTLS,
		"starttls": conf.StartTLS,
		"user":     conf.User,
	}).Info("Connecting")

	session, err := imapconnection.NewImapConnection(conf.Address(), conf.User, conf.Password, opts)
	if err != nil {
		var dnsErr *net.DNSError
		var opErr *net.OpError
		switch {
		case errors.As(err, &dnsErr):
			return nil, exitWith(exitLookup, err)
		case errors.As(err, &opErr):
			return nil, exitWith(exitConnect, err)
		}
		return nil, exitWith(exitProtocol, err)
	}

	return session, nil
}
