// Command ax25link is a small demo client for package ax25link: it
// connects to a peer station over a KISS TNC, then either sends stdin to
// the peer or echoes whatever the peer sends to stdout, depending on
// which of --send/--listen is given. Its flag layout and "hostname/port of
// TCP KISS TNC" framing follow kissutil.go, the teacher's own minimal
// KISS TNC client utility; --timestamp-format follows direwolf's own flag
// of the same name for timestamping received frames.
package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/lestrrat-go/strftime"
	"github.com/spf13/pflag"

	"github.com/w1fq/ax25link/ax25cfg"
	"github.com/w1fq/ax25link/ax25link"
	"github.com/w1fq/ax25link/kissnet"
)

func main() {
	configFile := pflag.StringP("config", "c", "", "YAML config file (see ax25cfg.File)")
	send := pflag.Bool("send", false, "Read stdin and send it to the peer, then disconnect")
	listen := pflag.Bool("listen", false, "Print whatever the peer sends to stdout")
	timestampFormat := pflag.StringP("timestamp-format", "T", "", "Precede received frames with this strftime format timestamp")
	flags := ax25cfg.RegisterFlags(pflag.CommandLine)
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "%s - minimal ax25link client over a KISS TNC.\n\n", os.Args[0])
		pflag.PrintDefaults()
	}
	pflag.Parse()

	logger := log.Default()
	if *flags.Verbose {
		logger.SetLevel(log.DebugLevel)
	}

	var ts *strftime.Strftime
	if *timestampFormat != "" {
		f, err := strftime.New(*timestampFormat)
		if err != nil {
			logger.Fatal("parse timestamp format", "err", err)
		}
		ts = f
	}

	var file ax25cfg.File
	if *configFile != "" {
		f, path, err := ax25cfg.Load(*configFile)
		if err != nil {
			logger.Fatal("load config", "err", err)
		}
		logger.Info("loaded config", "path", path)
		file = f
	}

	resolved, err := ax25cfg.Resolve(file, flags)
	if err != nil {
		logger.Fatal("resolve config", "err", err)
	}

	if !*send && !*listen {
		logger.Fatal("one of --send or --listen is required")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	ch, err := kissnet.Dial(ctx, resolved.TNC)
	if err != nil {
		logger.Fatal("dial TNC", "tnc", resolved.TNC, "err", err)
	}
	defer ch.Close()

	sink := &cliSink{logger: logger, out: os.Stdout, timestamp: ts}
	session := ax25link.New(resolved.Config, ch, resolved.Local, resolved.Peer, nil, sink)
	go session.Run()
	defer session.Close()

	logger.Info("connecting", "local", resolved.Local, "peer", resolved.Peer, "tnc", resolved.TNC)
	if err := session.Connect(ctx); err != nil {
		logger.Fatal("connect", "err", err)
	}
	logger.Info("connected")

	if *send {
		runSend(ctx, session, logger)
	}
	if *listen {
		runListen(ctx, logger)
	}

	if err := session.Disconnect(ctx); err != nil {
		logger.Warn("disconnect", "err", err)
	}
}

func runSend(ctx context.Context, session *ax25link.Session, logger *log.Logger) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if err := session.Send(ctx, scanner.Bytes()); err != nil {
			logger.Error("send", "err", err)
			return
		}
	}
	if err := scanner.Err(); err != nil && err != io.EOF {
		logger.Error("read stdin", "err", err)
	}
}

func runListen(ctx context.Context, logger *log.Logger) {
	<-ctx.Done()
	logger.Info("interrupted, disconnecting")
}

// cliSink prints delivered payloads to out and logs state transitions,
// matching kissutil.go's verbose-dump-to-stdout behavior for received
// frames.
type cliSink struct {
	logger    *log.Logger
	out       io.Writer
	timestamp *strftime.Strftime
}

func (s *cliSink) StateChanged(state ax25link.State, reason ax25link.Reason) {
	s.logger.Info("state change", "state", state, "reason", reason)
}

func (s *cliSink) DataReceived(data []byte) {
	if s.timestamp != nil {
		fmt.Fprint(s.out, s.timestamp.FormatString(time.Now()), " ")
	}
	fmt.Fprintf(s.out, "%s\n", data)
}

func (s *cliSink) Traced(format string, args ...any) {
	s.logger.Debug(fmt.Sprintf(format, args...))
}
