package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/go-kit/kit/log"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/erewok/multifaustus/clock"
	"github.com/erewok/multifaustus/config"
	"github.com/erewok/multifaustus/logutil"
	"github.com/erewok/multifaustus/mailbox"
	"github.com/erewok/multifaustus/messages"
	"github.com/erewok/multifaustus/metrics"
	"github.com/erewok/multifaustus/paxos"
	"github.com/erewok/multifaustus/persistence"
	"github.com/erewok/multifaustus/scheduler"
	"github.com/erewok/multifaustus/status"
	"github.com/erewok/multifaustus/transport"
	"github.com/erewok/multifaustus/types"
)

const serverVersion = "0.1.0"

func main() {
	logger := log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr))
	logger = log.With(logger, "ts", log.DefaultTimestampUTC)

	logger.Log("product", "multifaustus", "version", serverVersion, "args", fmt.Sprint(os.Args))

	if err := run(logger); err != nil {
		logger.Log("msg", "fatal error", "error", err)
		flag.Usage()
		os.Exit(1)
	}
}

func run(logger log.Logger) error {
	var configFile string
	var ticks int
	var statusOnExit bool

	flag.StringVar(&configFile, "config", "", "`Path` to a cluster configuration file. If empty, a five-node in-process demo cluster is used.")
	flag.IntVar(&ticks, "ticks", 200, "Number of scheduler rounds to run the demo cluster for.")
	flag.BoolVar(&statusOnExit, "status", false, "Print every actor's status before exiting.")
	flag.Parse()

	var cfg types.Config
	var err error
	if configFile != "" {
		cfg, err = config.LoadFromPath(configFile)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
	} else {
		cfg = demoConfig()
	}

	addrs := make([]types.Address, 0, len(cfg.IdAddressMap))
	for _, addr := range cfg.IdAddressMap {
		addrs = append(addrs, addr)
	}
	tr := transport.Transport(transport.NewLoopback(addrs))
	tr = transport.NewLogging(tr, logger)

	reg := prometheus.NewRegistry()
	sched := scheduler.New(tr, logger)

	for id := range cfg.Replicas {
		addr, _ := cfg.GetAddress(id.NodeId())
		box := mailbox.New()
		m := metrics.NewReplicaMetrics(reg, id.String())
		replica, err := paxos.NewReplica(id, cfg, box, clock.NewWall(), m, logger)
		if err != nil {
			return fmt.Errorf("constructing %s: %w", id, err)
		}
		replica.StartPeriodicChecks()
		sched.Register(addr, replica)
	}
	for id := range cfg.Acceptors {
		addr, _ := cfg.GetAddress(id.NodeId())
		box := mailbox.New()
		m := metrics.NewAcceptorMetrics(reg, id.String())
		acceptor, err := paxos.NewAcceptor(id, cfg, box, clock.NewWall(), persistence.NoopHook{}, m, logger)
		if err != nil {
			return fmt.Errorf("constructing %s: %w", id, err)
		}
		acceptor.StartPeriodicChecks()
		sched.Register(addr, acceptor)
	}
	for id := range cfg.Leaders {
		addr, _ := cfg.GetAddress(id.NodeId())
		box := mailbox.New()
		m := metrics.NewLeaderMetrics(reg, id.String())
		leader, err := paxos.NewLeader(id, cfg, box, clock.NewWall(), persistence.NoopHook{}, m, logger)
		if err != nil {
			return fmt.Errorf("constructing %s: %w", id, err)
		}
		sched.Register(addr, leader)
	}

	for _, rep := range cfg.ReplicaIds() {
		addr, _ := cfg.GetAddress(rep.NodeId())
		env := messages.Envelope{
			Src: addr,
			Dst: addr,
			Payload: messages.Request{
				Src:     addr,
				Command: types.NewOpCommand(types.NodeId(99), 1, []byte("hello")),
			},
		}
		if err := tr.Send(env); err != nil {
			return err
		}
		break
	}

	logger.Log("msg", "running scheduler", "ticks", ticks)
	rounds := sched.Run(ticks)
	logger.Log("msg", "scheduler settled", "rounds", rounds)

	if statusOnExit {
		sc := status.NewConsumer()
		sched.Status(sc)
		_, werr := fmt.Println(sc.String())
		logutil.CheckWarn(werr, logger)
	}
	return nil
}

// demoConfig builds a minimal 1 replica / 3 acceptor / 1 leader cluster
// for running without a -config file.
func demoConfig() types.Config {
	replicas := []types.ReplicaId{types.NewReplicaId(1)}
	acceptors := []types.AcceptorId{types.NewAcceptorId(2), types.NewAcceptorId(3), types.NewAcceptorId(4)}
	leaders := []types.LeaderId{types.NewLeaderId(5)}

	addrs := map[types.NodeId]types.Address{
		types.NodeId(1): types.NewAddress("127.0.0.1", 9001),
		types.NodeId(2): types.NewAddress("127.0.0.1", 9002),
		types.NodeId(3): types.NewAddress("127.0.0.1", 9003),
		types.NodeId(4): types.NewAddress("127.0.0.1", 9004),
		types.NodeId(5): types.NewAddress("127.0.0.1", 9005),
	}
	return types.NewConfig(replicas, acceptors, leaders, addrs, types.DefaultTimeoutConfig())
}
