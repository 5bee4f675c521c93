// Command plexusd serves the example activation tree over both
// transports: the tool-call transport on stdio (or a TCP listener) and
// the subscription transport on an HTTP websocket endpoint.
package main

import (
	"context"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"goa.design/clue/log"

	"github.com/plexuskit/plexus"
	"github.com/plexuskit/plexus/example/echo"
	"github.com/plexuskit/plexus/example/interactive"
	"github.com/plexuskit/plexus/runtime/activation"
	"github.com/plexuskit/plexus/runtime/telemetry"
	"github.com/plexuskit/plexus/transport/subscribe"
	"github.com/plexuskit/plexus/transport/toolcall"
)

func main() {
	var (
		configF = flag.String("config", "", "path to YAML config file")
		stdioF  = flag.Bool("stdio", false, "serve the tool-call transport on stdio instead of TCP")
	)
	flag.Parse()

	cfg, err := loadConfig(*configF)
	if err != nil {
		os.Stderr.WriteString("plexusd: " + err.Error() + "\n")
		os.Exit(1)
	}

	format := log.FormatJSON
	if log.IsTerminal() {
		format = log.FormatTerminal
	}
	ctx := log.Context(context.Background(), log.WithFormat(format))
	if cfg.Debug {
		ctx = log.Context(ctx, log.WithDebug())
		log.Debugf(ctx, "debug logs enabled")
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	root := buildTree()
	log.Print(ctx, log.KV{K: "msg", V: "serving"}, log.KV{K: "hash", V: plexus.Hash(root)})

	sink := telemetry.Clue()
	subSrv := subscribe.NewServer(root, subscribe.WithTelemetry(sink))

	errc := make(chan error, 2)
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/subscribe", subSrv.Handler())
		log.Print(ctx, log.KV{K: "msg", V: "http listening"}, log.KV{K: "addr", V: cfg.HTTPAddr})
		errc <- http.ListenAndServe(cfg.HTTPAddr, mux)
	}()

	if *stdioF {
		go func() {
			srv := toolcall.NewServer(root, toolcall.WithTelemetry(sink),
				toolcall.WithProgressRate(cfg.ProgressRate, cfg.ProgressBurst))
			errc <- srv.Serve(ctx, stdioConn{})
		}()
	} else {
		go func() { errc <- serveTCP(ctx, cfg, root, sink) }()
	}

	select {
	case err := <-errc:
		if err != nil {
			log.Errorf(ctx, err, "server failed")
			os.Exit(1)
		}
	case <-ctx.Done():
		log.Print(ctx, log.KV{K: "msg", V: "shutting down"})
	}
}

func buildTree() activation.Hub {
	echoAct, err := echo.NewEchoActivation(&echo.EchoHandler{})
	if err != nil {
		panic(err)
	}
	interAct, err := interactive.NewInteractiveActivation(&interactive.InteractiveHandler{})
	if err != nil {
		panic(err)
	}
	return plexus.NewRoot(activation.WithChildren(echoAct, interAct))
}

func serveTCP(ctx context.Context, cfg Config, root activation.Hub, sink telemetry.Sink) error {
	ln, err := net.Listen("tcp", cfg.TCPAddr)
	if err != nil {
		return err
	}
	defer ln.Close()
	go func() {
		<-ctx.Done()
		ln.Close()
	}()
	log.Print(ctx, log.KV{K: "msg", V: "tcp listening"}, log.KV{K: "addr", V: cfg.TCPAddr})
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		go func() {
			defer conn.Close()
			srv := toolcall.NewServer(root, toolcall.WithTelemetry(sink),
				toolcall.WithProgressRate(cfg.ProgressRate, cfg.ProgressBurst))
			if err := srv.Serve(ctx, conn); err != nil {
				log.Errorf(ctx, err, "connection failed")
			}
		}()
	}
}

// stdioConn joins os.Stdin and os.Stdout into one io.ReadWriter.
type stdioConn struct{}

func (stdioConn) Read(p []byte) (int, error)  { return os.Stdin.Read(p) }
func (stdioConn) Write(p []byte) (int, error) { return os.Stdout.Write(p) }
