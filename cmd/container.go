// cmd/container.go
//
// Root composition root. Owns infrastructure (Redis, chain RPC) and wires
// the queue pair, worker, monitor and API. This is the only place that
// knows about ALL modules.
package main

import (
	"context"
	"fmt"

	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/redis/go-redis/v9"

	"github.com/raffleport/relay/pkg/chain"
	"github.com/raffleport/relay/pkg/config"
	"github.com/raffleport/relay/pkg/jobx"
	"github.com/raffleport/relay/pkg/jobx/jobxredis"
	"github.com/raffleport/relay/pkg/logx"
	"github.com/raffleport/relay/pkg/notifx"
	"github.com/raffleport/relay/pkg/notifx/notifxconsole"
	"github.com/raffleport/relay/pkg/notifx/notifxses"
	"github.com/raffleport/relay/pkg/relay"
	"github.com/raffleport/relay/pkg/relay/relayapi"
)

// Container holds shared infrastructure and the composed relay modules.
type Container struct {
	Config *config.Config

	// Infrastructure
	Redis *redis.Client
	Chain *chain.Client

	// Queue machinery
	Queue *jobxredis.RedisQueue
	Jobs  *jobx.Client

	// Relay modules
	Executor *relay.Executor
	Worker   *relay.Worker
	Monitor  *relay.Monitor
	Notifier *notifx.Client
	API      *relayapi.Service
}

func NewContainer(cfg *config.Config) *Container {
	logx.Info("🔧 Initializing relay container...")

	c := &Container{Config: cfg}

	c.initInfrastructure()
	c.initModules()

	logx.Info("✅ Relay container initialized")
	return c
}

// ---------------------------------------------------------------------------
// Infrastructure — Redis, chain RPC
// ---------------------------------------------------------------------------

func (c *Container) initInfrastructure() {
	logx.Info("🏗️ Initializing infrastructure...")

	// 1. Redis
	c.Redis = redis.NewClient(&redis.Options{
		Addr:     c.Config.Redis.Addr,
		Password: c.Config.Redis.Password,
		DB:       c.Config.Redis.DB,
	})
	if _, err := c.Redis.Ping(context.Background()).Result(); err != nil {
		logx.Fatalf("Failed to connect to Redis: %v (Redis is required)", err)
	}
	logx.Info("  ✅ Redis connected")

	// 2. Chain RPC and signer
	chainClient, err := chain.Dial(context.Background(), chain.Config{
		RPCURL:          c.Config.Chain.RPCURL,
		ContractAddress: c.Config.Chain.ContractAddress,
		PrivateKey:      c.Config.Chain.PrivateKey,
		ChainID:         c.Config.Chain.ChainID,
	})
	if err != nil {
		logx.Fatalf("Failed to connect to chain RPC: %v", err)
	}
	c.Chain = chainClient
	logx.Info("  ✅ Chain client connected")

	logx.Info("✅ Infrastructure initialized")
}

// ---------------------------------------------------------------------------
// Module composition
// ---------------------------------------------------------------------------

func (c *Container) initModules() {
	logx.Info("📦 Initializing modules...")

	queues := relay.QueueNames{
		Main:  c.Config.Queue.MainQueue,
		Retry: c.Config.Queue.RetryQueue,
	}

	// Queue backend. The main queue keeps a small completed window and no
	// failed entries (failures hand off to the retry queue instead); the
	// retry queue keeps its failures for post-mortems.
	c.Queue = jobxredis.NewRedisQueue(c.Redis,
		jobxredis.WithRetention(queues.Main, jobxredis.Retention{
			Completed: c.Config.Queue.MainCompletedKeep,
		}),
		jobxredis.WithRetention(queues.Retry, jobxredis.Retention{
			Completed: c.Config.Queue.RetryCompletedKeep,
			Failed:    c.Config.Queue.RetryFailedKeep,
		}),
	)

	c.Jobs = jobx.NewClient(c.Queue,
		jobx.WithQueues(queues.Main, queues.Retry),
		jobx.WithConcurrency(c.Config.Jobx.Concurrency),
		jobx.WithPollInterval(c.Config.Jobx.PollInterval),
		jobx.WithShutdownTimeout(c.Config.Jobx.ShutdownTimeout),
		jobx.WithDequeueTimeout(c.Config.Jobx.DequeueTimeout),
		jobx.WithJobTimeout(c.Config.Jobx.JobTimeout),
		jobx.WithLeaseDuration(c.Config.Jobx.LeaseDuration),
		jobx.WithRetryBackoff(jobx.ExponentialBackoff{
			Base:   c.Config.Queue.RetryBackoffBase,
			Factor: 2,
		}),
	)
	logx.Infof("  ✅ Queue pair ready (main=%s retry=%s)", queues.Main, queues.Retry)

	c.initNotifier()

	c.Monitor = relay.NewMonitor(c.Queue, queues, c.alertSink())

	c.Executor = relay.NewExecutor(c.Chain, relay.ExecutorConfig{
		TokenDecimals: int32(c.Config.Chain.TokenDecimals),
		GasMargin:     c.Config.Chain.GasMargin,
	})

	c.Worker = relay.NewWorker(c.Jobs, c.Executor, c.Monitor, relay.WorkerConfig{
		Queues:            queues,
		RetryInitialDelay: c.Config.Queue.RetryInitialDelay,
		RetryMaxAttempts:  c.Config.Queue.RetryMaxAttempts,
	})

	c.API = relayapi.NewService(c.Jobs, c.Monitor, c.Chain, queues.Main, int32(c.Config.Chain.TokenDecimals))

	logx.Info("✅ Modules initialized")
}

func (c *Container) initNotifier() {
	switch c.Config.Notifx.Provider {
	case "ses":
		awsCfg, err := awsConfig.LoadDefaultConfig(context.TODO(),
			awsConfig.WithRegion(c.Config.Notifx.AWSRegion))
		if err != nil {
			logx.Fatalf("Unable to load AWS SDK config: %v", err)
		}
		provider := notifxses.NewSESProvider(ses.NewFromConfig(awsCfg), c.Config.Notifx.FromAddress)
		c.Notifier = notifx.NewClient(provider)
		logx.Infof("  ✅ SES notifier configured (region: %s)", c.Config.Notifx.AWSRegion)

	case "console":
		c.Notifier = notifx.NewClient(notifxconsole.NewConsoleProvider())
		logx.Info("  ✅ Console notifier configured")

	default:
		logx.Fatalf("Unknown NOTIFX_PROVIDER: %s (use 'console' or 'ses')", c.Config.Notifx.Provider)
	}
}

// emailAlertSink delivers monitor alerts through the notifier.
type emailAlertSink struct {
	notifier *notifx.Client
	from     string
	to       []string
}

func (s *emailAlertSink) Alert(ctx context.Context, subject, body string) error {
	return s.notifier.SendEmail(ctx, notifx.EmailMessage{
		From:     s.from,
		To:       s.to,
		Subject:  subject,
		TextBody: body,
	})
}

func (c *Container) alertSink() relay.AlertSink {
	from := c.Config.Notifx.FromAddress
	if c.Config.Notifx.FromName != "" {
		from = fmt.Sprintf("%s <%s>", c.Config.Notifx.FromName, c.Config.Notifx.FromAddress)
	}
	to := c.Config.Notifx.AlertTo
	if len(to) == 0 {
		to = []string{c.Config.Notifx.FromAddress}
	}
	return &emailAlertSink{notifier: c.Notifier, from: from, to: to}
}

// ---------------------------------------------------------------------------
// Lifecycle
// ---------------------------------------------------------------------------

func (c *Container) StartBackgroundServices(ctx context.Context) {
	logx.Info("🔄 Starting background services...")

	events := c.Jobs.Subscribe(64)
	go c.Monitor.Run(ctx, events)

	go func() {
		if err := c.Worker.Run(ctx); err != nil && ctx.Err() == nil {
			logx.Errorf("Worker stopped: %v", err)
		}
	}()

	logx.Info("  ✅ Worker and monitor running")
}

func (c *Container) Cleanup() {
	logx.Info("🧹 Cleaning up resources...")

	if c.Chain != nil {
		c.Chain.Close()
		logx.Info("  ✅ Chain client closed")
	}

	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			logx.Errorf("Error closing Redis: %v", err)
		} else {
			logx.Info("  ✅ Redis connection closed")
		}
	}

	logx.Info("✅ Cleanup complete")
}
