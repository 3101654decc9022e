// calc-client connects to a calc-server and runs the calculator interface
// end to end, issuing the calls concurrently over one connection.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"crpc/calc"
	"crpc/connection"
	"crpc/marshal"
	"crpc/rpcerr"
	"crpc/transport"
)

func main() {
	app := &cli.App{
		Name:  "calc-client",
		Usage: "exercise a calc-server over TCP",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Value: "127.0.0.1:9021",
				Usage: "server address",
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Value: 10 * time.Second,
				Usage: "overall deadline",
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
	logger := zap.NewNop()
	if c.Bool("debug") {
		var err error
		if logger, err = zap.NewDevelopment(); err != nil {
			return err
		}
		defer logger.Sync()
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.Duration("timeout"))
	defer cancel()

	stream, err := transport.DialTCP(ctx, c.String("addr"))
	if err != nil {
		return err
	}
	conn := connection.New(
		connection.WithLogger(logger),
		connection.WithOnError(func(code rpcerr.Code, phase connection.Phase) {
			logger.Warn("connection error",
				zap.Stringer("code", code),
				zap.Stringer("phase", phase))
		}),
	)
	if err := conn.Start(stream); err != nil {
		return err
	}
	defer conn.Stop()

	client := marshal.BindClient[calc.Calculator](conn)
	client.SendTelemetry(calc.TelemetryInfo{
		Kind:    calc.EventStartup,
		At:      time.Now(),
		Details: "client session started",
	})

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		sum, err := client.SimpleSum(ctx, 17, 42)
		if err != nil {
			return fmt.Errorf("SimpleSum: %w", err)
		}
		fmt.Printf("SimpleSum(17, 42) = %d\n", sum)
		return nil
	})
	g.Go(func() error {
		sum, err := client.ArraySum(ctx, []int32{17, 42, 33, -956})
		if err != nil {
			return fmt.Errorf("ArraySum: %w", err)
		}
		fmt.Printf("ArraySum([17 42 33 -956]) = %d\n", sum)
		return nil
	})
	g.Go(func() error {
		s, err := client.StringConcat(ctx, "Hello ", "World!")
		if err != nil {
			return fmt.Errorf("StringConcat: %w", err)
		}
		fmt.Printf("StringConcat(\"Hello \", \"World!\") = %q\n", s)
		return nil
	})
	g.Go(func() error {
		for _, pair := range []struct{ a, b calc.Term }{
			{calc.Num(42), calc.Num(33)},
			{calc.Str("Hello "), calc.Str("World!")},
			{calc.Num(42), calc.Str("Hello World!")},
		} {
			sum, err := client.UniversalAdd(ctx, pair.a, pair.b)
			if err != nil {
				return fmt.Errorf("UniversalAdd: %w", err)
			}
			fmt.Printf("UniversalAdd -> %s\n", describeSum(sum))
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	client.SendTelemetry(calc.TelemetryInfo{
		Kind:    calc.EventShutdown,
		At:      time.Now(),
		Details: "client session finished",
	})
	return nil
}

func describeSum(s calc.Sum) string {
	if n, ok := s.A(); ok {
		return fmt.Sprintf("number %d", n)
	}
	if str, ok := s.B(); ok {
		return fmt.Sprintf("string %q", str)
	}
	ce, _ := s.C()
	return fmt.Sprintf("error %q (code %d)", ce.Description, ce.Code)
}
