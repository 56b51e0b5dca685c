// Command sstdemo exercises a minimal two-member group end to end: each
// member publishes a value into its own row, syncs it to the other
// member, and both are checked to agree. It is a self-contained demo and
// smoke test, not a deployable node — by default it runs both group
// members as goroutines in one process over the loopback provider in
// sstest, since standing up real RDMA/libfabric hardware is out of scope
// for a demo binary (§1). With -peers it instead runs a single member
// (see runStandaloneMember).
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/relab/sst"
	"github.com/relab/sst/internal/version"
	"github.com/relab/sst/sstest"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("sstdemo", flag.ContinueOnError)
	verbose := fs.Bool("v", false, "enable debug logging")
	timeout := fs.Duration("timeout", 5*time.Second, "overall demo timeout")
	printVersion := fs.Bool("version", false, "print the module version and exit")
	peersFlag := fs.String("peers", "", `comma-separated "id=host:port" pairs; when set, both members must be launched separately at their own id (advanced use, see -local-id)`)
	localID := fs.Uint("local-id", 0, "this process's peer id, used only together with -peers")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintln(os.Stderr, "sstdemo:", err)
		return -1
	}

	if *printVersion {
		fmt.Println(version.String())
		return 0
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if *peersFlag != "" {
		peers, err := parsePeers(*peersFlag)
		if err != nil {
			fmt.Fprintln(os.Stderr, "sstdemo:", err)
			return -1
		}
		if err := runStandaloneMember(ctx, logger, uint32(*localID), peers); err != nil {
			logger.Error("sstdemo: member failed", "err", err)
			return -1
		}
		return 0
	}

	if err := runScenario(ctx, logger); err != nil {
		logger.Error("sstdemo: scenario failed", "err", err)
		return -1
	}
	logger.Info("sstdemo: scenario succeeded")
	return 0
}

// parsePeers parses a "id=host:port,id=host:port,..." address book.
func parsePeers(s string) (map[uint32]string, error) {
	peers := make(map[uint32]string)
	for _, pair := range strings.Split(s, ",") {
		id, addr, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("malformed peer entry %q, want id=host:port", pair)
		}
		n, err := strconv.ParseUint(id, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("parsing peer id %q: %w", id, err)
		}
		peers[uint32(n)] = addr
	}
	return peers, nil
}

// runStandaloneMember runs this process as a single, real group member,
// using real TCP for the Memory Region rendezvous; the loopback stand-in
// provider's Dial opens no network connection of its own. It has
// no verified counterpart process to compare against, so success just
// means the table came up and one sync round completed.
func runStandaloneMember(ctx context.Context, logger *slog.Logger, localID uint32, peers map[uint32]string) error {
	cfg := sst.NewConfig(
		sst.WithLocalID(localID),
		sst.WithPeers(peers),
		sst.WithLogger(logger),
	)
	provider := sstest.NewProvider(sstest.NewRegistry(), localID)
	tc := sst.NewTransportContext(cfg, provider)
	defer tc.Close()

	layout, err := sst.NewRowLayout(sst.WithHeartbeat(
		sst.Field{Name: "value", Kind: sst.FieldUint64, Size: 8},
	)...)
	if err != nil {
		return fmt.Errorf("building row layout: %w", err)
	}
	table, err := sst.NewTable(ctx, tc, layout)
	if err != nil {
		return fmt.Errorf("constructing table: %w", err)
	}
	defer table.Close()

	if err := table.PutUint64("value", uint64(localID)*100); err != nil {
		return fmt.Errorf("put: %w", err)
	}
	if err := table.PutWithCompletion(ctx, "value"); err != nil {
		return fmt.Errorf("put with completion: %w", err)
	}
	if err := table.SyncWithMembers(ctx); err != nil {
		return fmt.Errorf("sync: %w", err)
	}
	logger.Info("sstdemo: sync complete", "local_id", localID)
	return nil
}

func runScenario(ctx context.Context, logger *slog.Logger) error {
	const memberA, memberB uint32 = 0, 1
	addrA, addrB := "127.0.0.1:18821", "127.0.0.1:18822"

	registry := sstest.NewRegistry()

	layout, err := sst.NewRowLayout(sst.WithHeartbeat(
		sst.Field{Name: "value", Kind: sst.FieldUint64, Size: 8},
	)...)
	if err != nil {
		return fmt.Errorf("building row layout: %w", err)
	}

	peers := map[uint32]string{memberA: addrA, memberB: addrB}

	type outcome struct {
		table *sst.Table
		tc    *sst.TransportContext
		err   error
	}
	results := make(chan outcome, 2)

	start := func(local uint32, value uint64) {
		cfg := sst.NewConfig(
			sst.WithLocalID(local),
			sst.WithPeers(peers),
			sst.WithLogger(logger.With("member", local)),
		)
		provider := sstest.NewProvider(registry, local)
		tc := sst.NewTransportContext(cfg, provider)

		table, err := sst.NewTable(ctx, tc, layout)
		if err != nil {
			results <- outcome{err: fmt.Errorf("member %d: constructing table: %w", local, err)}
			return
		}
		if err := table.PutUint64("value", value); err != nil {
			results <- outcome{err: fmt.Errorf("member %d: put: %w", local, err)}
			return
		}
		if err := table.PutWithCompletion(ctx, "value"); err != nil {
			results <- outcome{err: fmt.Errorf("member %d: put with completion: %w", local, err)}
			return
		}
		if err := table.SyncWithMembers(ctx); err != nil {
			results <- outcome{err: fmt.Errorf("member %d: sync: %w", local, err)}
			return
		}
		results <- outcome{table: table, tc: tc}
	}

	go start(memberA, 100)
	go start(memberB, 200)

	var a, b outcome
	for i := 0; i < 2; i++ {
		o := <-results
		if o.err != nil {
			return o.err
		}
		switch o.table.GetLocalIndex() {
		case int(memberA):
			a = o
		default:
			b = o
		}
	}
	defer a.tc.Close()
	defer b.tc.Close()
	defer a.table.Close()
	defer b.table.Close()

	gotFromB, err := a.table.GetUint64(memberB, "value")
	if err != nil {
		return fmt.Errorf("member %d reading member %d's row: %w", memberA, memberB, err)
	}
	if gotFromB != 200 {
		return fmt.Errorf("member %d saw value %d from member %d, want 200", memberA, gotFromB, memberB)
	}

	gotFromA, err := b.table.GetUint64(memberA, "value")
	if err != nil {
		return fmt.Errorf("member %d reading member %d's row: %w", memberB, memberA, err)
	}
	if gotFromA != 100 {
		return fmt.Errorf("member %d saw value %d from member %d, want 100", memberB, gotFromA, memberA)
	}

	return nil
}
