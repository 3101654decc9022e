// calc-server serves the calculator interface over TCP. Each accepted
// connection gets its own full-duplex engine; a transport failure tears that
// connection down without disturbing the others.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"crpc/calc"
	"crpc/connection"
	"crpc/marshal"
	"crpc/middleware"
	"crpc/rpcerr"
	"crpc/transport"
)

func main() {
	app := &cli.App{
		Name:  "calc-server",
		Usage: "serve the calculator RPC interface over TCP",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "listen",
				Value: "127.0.0.1:9021",
				Usage: "address to listen on",
			},
			&cli.Float64Flag{
				Name:  "rate",
				Usage: "per-connection calls per second (0 disables limiting)",
			},
			&cli.DurationFlag{
				Name:  "call-timeout",
				Value: 30 * time.Second,
				Usage: "per-call handler deadline",
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "verbose logging",
			},
		},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	logger, err := newLogger(c.Bool("debug"))
	if err != nil {
		return err
	}
	defer logger.Sync()

	l, err := transport.ListenTCP(c.String("listen"))
	if err != nil {
		return err
	}
	logger.Info("listening", zap.String("addr", l.Addr().String()))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-ctx.Done()
		return l.Close()
	})
	g.Go(func() error {
		for {
			stream, err := l.Accept()
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
			if err := serve(c, logger, stream); err != nil {
				logger.Warn("connection rejected", zap.Error(err))
				stream.Close()
			}
		}
	})
	return g.Wait()
}

// serve binds one accepted stream to its own connection engine. The engine
// reaps itself through the error hook when the peer goes away.
func serve(c *cli.Context, logger *zap.Logger, stream *transport.Stream) error {
	peer := stream.RemoteAddr().String()
	log := logger.With(zap.String("peer", peer))

	srv, err := marshal.NewServer(calc.NewService(log))
	if err != nil {
		return err
	}
	mws := []middleware.Middleware{
		middleware.Recovery(log),
		middleware.Logging(log),
		middleware.Timeout(c.Duration("call-timeout")),
	}
	if rate := c.Float64("rate"); rate > 0 {
		mws = append(mws, middleware.RateLimit(rate, int(rate)+1))
	}
	srv.Use(mws...)

	conn := connection.New(
		connection.WithServer(srv),
		connection.WithLogger(log),
	)
	conn.OnError(func(code rpcerr.Code, phase connection.Phase) {
		log.Info("connection closed",
			zap.Stringer("code", code),
			zap.Stringer("phase", phase))
		go conn.Stop()
	})
	log.Info("peer connected")
	return conn.Start(stream)
}

func newLogger(debug bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if debug {
		cfg = zap.NewDevelopmentConfig()
	}
	return cfg.Build()
}
