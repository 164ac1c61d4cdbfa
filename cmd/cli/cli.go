package cli

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/canopy-network/shardnode/cmd/rpc"
	"github.com/canopy-network/shardnode/committee"
	"github.com/canopy-network/shardnode/controller"
	"github.com/canopy-network/shardnode/lib"
	"github.com/canopy-network/shardnode/lib/crypto"
	"github.com/canopy-network/shardnode/store"
	"github.com/cenkalti/backoff/v4"
	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// defaultShardCount is the shard count of the committee written for a fresh data directory
const defaultShardCount = 10

var rootCmd = &cobra.Command{
	Use:   "shardnode",
	Short: "the shardnode storage node software",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		config, nodeKey = InitializeDataDirectory(DataDir, lib.NewDefaultLogger())
		l = lib.NewLogger(lib.LoggerConfig{
			Level:     config.GetLogLevel(),
			MaxSizeMB: config.LogMaxSizeMB,
		}, config.DataDirPath)
		client = rpc.NewClient(config.RPCUrl, time.Duration(config.TimeoutS)*time.Second, config.MaxResponseBytes)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(rpc.SoftwareVersion)
	},
}

var (
	client, config, l = &rpc.Client{}, lib.Config{}, lib.LoggerI(nil)
	DataDir, nodeKey  = "", crypto.PrivateKeyI(nil)
)

func init() {
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(committeeCmd)
	rootCmd.AddCommand(adminCmd)
	rootCmd.PersistentFlags().StringVar(&DataDir, "data-dir", lib.DefaultDataDirPath(), "custom data directory location")
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "start the storage node",
	Run: func(cmd *cobra.Command, args []string) {
		Start()
	},
}

// Start() is the entrypoint of the application
func Start() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	// initialize the metrics server
	metrics := lib.NewMetricsServer(config.MetricsConfig, l)
	// create a new database object from the config
	db, err := store.New(config, metrics, l)
	if err != nil {
		l.Fatal(err.Error())
	}
	// log the node identity
	l.Infof("Using identity: PublicKey: %s", nodeKey.PublicKey().String())
	// build the committee service from the configured lookup source
	lookup := newCommitteeLookup()
	service, err := buildCommitteeService(ctx, lookup, metrics)
	if err != nil {
		l.Fatal(err.Error())
	}
	// the controller drives the epoch changes
	app, err := controller.New(service, lookup, db, nodeKey, config.CommitteeServiceConfig, l)
	if err != nil {
		l.Fatal(err.Error())
	}
	// initialize the rpc server
	rpcServer := rpc.NewServer(service, db, nodeKey, config, l)
	// start the metrics server
	metrics.Start()
	// start the rpc server
	rpcServer.Start()
	// start the epoch change driver
	app.Start(ctx)
	// block until a kill signal is received
	waitForKill()
	// gracefully stop the app
	app.Stop()
	stopCtx, stopCancel := context.WithTimeout(ctx, 5*time.Second)
	defer stopCancel()
	if e := rpcServer.Stop(stopCtx); e != nil {
		l.Error(e.Error())
	}
	// gracefully stop the metrics server
	metrics.Stop()
	if err = db.Close(); err != nil {
		l.Error(err.Error())
	}
}

// newCommitteeLookup() returns the committee lookup source selected by the config
func newCommitteeLookup() lib.CommitteeLookupI {
	switch config.CommitteeSource {
	case "file":
		return committee.NewFileLookup(config.DataDirPath)
	case "rootChain":
		return rpc.NewClient(config.RootChainUrl, time.Duration(config.TimeoutS)*time.Second, config.MaxResponseBytes)
	default:
		l.Fatalf("unknown committee source %q, expected 'file' or 'rootChain'", config.CommitteeSource)
		return nil
	}
}

// buildCommitteeService() builds the committee service, retrying while the lookup source is unreachable
func buildCommitteeService(ctx context.Context, lookup lib.CommitteeLookupI, metrics *lib.Metrics) (service *committee.Service, err lib.ErrorI) {
	builder := committee.NewBuilder().
		WithNodeServiceFactory(rpc.NewNodeServiceFactory(config.RPCConfig)).
		WithLocalIdentity(nodeKey.PublicKey().Bytes()).
		WithConfig(config.CommitteeServiceConfig).
		WithLogger(l).
		WithMetrics(metrics)
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = lib.MSToDuration(config.RetryInitialMS)
	b.MaxInterval = lib.MSToDuration(config.RetryMaxMS)
	b.MaxElapsedTime = 0
	_ = backoff.RetryNotify(func() error {
		service, err = builder.Build(ctx, lookup)
		return err
	}, backoff.WithContext(backoff.WithMaxRetries(b, config.MaxRetries), ctx), func(e error, wait time.Duration) {
		l.Warnf("building the committee service failed, retrying in %s: %s", wait, e.Error())
	})
	return
}

// waitForKill() blocks until a kill signal is received
func waitForKill() {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGQUIT, syscall.SIGTERM, syscall.SIGABRT)
	// block until kill signal is received
	s := <-stop
	l.Infof("Exit command %s received", s)
}

// InitializeDataDirectory() populates the data directory with configuration and data files if missing
func InitializeDataDirectory(dataDirPath string, log lib.LoggerI) (c lib.Config, privateKey crypto.PrivateKeyI) {
	// make the data dir if missing
	if err := os.MkdirAll(dataDirPath, os.ModePerm); err != nil {
		log.Fatal(err.Error())
	}
	// make the config.json file if missing
	configFilePath := filepath.Join(dataDirPath, lib.ConfigFilePath)
	if _, err := os.Stat(configFilePath); errors.Is(err, os.ErrNotExist) {
		log.Infof("Creating %s file", lib.ConfigFilePath)
		defaultConfig := lib.DefaultConfig()
		defaultConfig.DataDirPath = dataDirPath
		if err = defaultConfig.WriteToFile(configFilePath); err != nil {
			log.Fatal(err.Error())
		}
	}
	// make the private key file if missing
	nodeKeyPath := filepath.Join(dataDirPath, lib.NodeKeyPath)
	if _, err := os.Stat(nodeKeyPath); errors.Is(err, os.ErrNotExist) {
		pk, e := crypto.NewEd25519PrivateKey()
		if e != nil {
			log.Fatal(e.Error())
		}
		log.Infof("Creating %s file", lib.NodeKeyPath)
		if err = crypto.SavePrivateKeyToFile(pk, nodeKeyPath); err != nil {
			log.Fatal(err.Error())
		}
	}
	privateKey, err := crypto.PrivateKeyFromFile(nodeKeyPath)
	if err != nil {
		log.Fatal(err.Error())
	}
	c, err = lib.NewConfigFromFile(configFilePath)
	if err != nil {
		log.Fatal(err.Error())
	}
	c.DataDirPath = dataDirPath
	// make a single member committee file if there is no committee source yet
	if c.CommitteeSource == "file" && !fileExists(dataDirPath, lib.CommitteesFilePath) && !fileExists(dataDirPath, lib.CommitteesTOMLFilePath) {
		log.Infof("Creating %s file", lib.CommitteesFilePath)
		if e := WriteDefaultCommitteesFile(privateKey, c, dataDirPath, 0, defaultShardCount); e != nil {
			log.Fatal(e.Error())
		}
	}
	return
}

// WriteDefaultCommitteesFile() writes a committee window where this node owns every shard
func WriteDefaultCommitteesFile(pk crypto.PrivateKeyI, c lib.Config, dataDirPath string, epoch lib.Epoch, nShards uint16) lib.ErrorI {
	shards := make([]lib.ShardIndex, nShards)
	for i := range shards {
		shards[i] = lib.ShardIndex(i)
	}
	current, err := lib.NewCommittee(epoch, nShards, []*lib.Member{{
		PublicKey:  pk.PublicKey().Bytes(),
		NetAddress: c.RPCUrl,
		Name:       "local",
		Shards:     shards,
	}})
	if err != nil {
		return err
	}
	committees, err := lib.NewActiveCommittees(current, nil, nil)
	if err != nil {
		return err
	}
	return committee.NewFileLookup(dataDirPath).Write(committees)
}

func fileExists(dataDirPath, fileName string) bool {
	_, err := os.Stat(filepath.Join(dataDirPath, fileName))
	return err == nil
}

func writeToConsole(a any, err error) {
	if err != nil {
		l.Fatal(err.Error())
	}
	switch a.(type) {
	case int, uint32, uint64, lib.Epoch:
		p := message.NewPrinter(language.English)
		if _, err := p.Printf("%d\n", a); err != nil {
			l.Fatal(err.Error())
		}
	case *string:
		fmt.Println(*a.(*string))
	case string:
		fmt.Println(a)
	default:
		s, err := lib.MarshalJSONIndentString(a)
		if err != nil {
			l.Fatal(err.Error())
		}
		fmt.Println(s)
	}
}
