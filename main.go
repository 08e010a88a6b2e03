// Copyright The RBAC Platform Authors.
// SPDX-License-Identifier: MIT

// The relations-sync service.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	nats "github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/rbac-platform/relations-sync/pkg/constants"
	"github.com/rbac-platform/relations-sync/pkg/rbac"
	"github.com/rbac-platform/relations-sync/pkg/seeds"
)

const (
	errKey            = "error"
	defaultListenPort = "8080"
	// gracefulShutdownSeconds should be higher than NATS client
	// request timeout, and lower than the pod or liveness probe's
	// terminationGracePeriodSeconds.
	gracefulShutdownSeconds = 25
)

var (
	logger          *slog.Logger
	environment     constants.Environment
	natsURL         string
	natsConn        *nats.Conn
	jetstreamConn   jetstream.JetStream
	cacheBucketName string
	cacheBucket     jetstream.KeyValue
	rbacDBPath      string
	handlerService  *HandlerService
)

func init() {
	natsURL = os.Getenv("NATS_URL")
	if natsURL == "" {
		natsURL = "nats://nats:4222"
	}
	cacheBucketName = os.Getenv("CACHE_BUCKET")
	if cacheBucketName == "" {
		cacheBucketName = constants.KVBucketNameSyncCache
	}
	rbacDBPath = os.Getenv("RBAC_DB")
	if rbacDBPath == "" {
		rbacDBPath = "relations-sync.db"
	}
	environment = constants.ParseEnvironment(os.Getenv("ENVIRONMENT"))
}

// main parses optional flags and starts the NATS subscribers.
func main() {
	// Allow overriding the port by environmental variable as well as command
	// line argument.
	defaultPort := os.Getenv("PORT")
	if defaultPort == "" {
		defaultPort = defaultListenPort
	}
	var debug = flag.Bool("d", false, "enable debug logging")
	var port = flag.String("p", defaultPort, "health checks port")
	var bind = flag.String("bind", "*", "interface to bind on")
	var seedFile = flag.String("seed", "", "seed system roles from a JSON task file, then exit")

	flag.Usage = func() {
		flag.PrintDefaults()
		os.Exit(2)
	}
	flag.Parse()

	logOptions := &slog.HandlerOptions{}

	// Optional debug logging.
	if os.Getenv("DEBUG") != "" || *debug {
		logOptions.Level = slog.LevelDebug
		logOptions.AddSource = true
	}

	logger = slog.New(slog.NewJSONHandler(os.Stdout, logOptions))
	slog.SetDefault(logger)

	// Create an OpenFGA client.
	fgaClient, err := connectFga()
	if err != nil {
		logger.With(errKey, err).Error("error creating OpenFGA client")
		os.Exit(1)
	}

	logger.With("url", os.Getenv("FGA_API_URL")).Info("OpenFGA client created")

	// Open the permission-model store.
	rbacStore, err := rbac.OpenSQLStore(rbacDBPath)
	if err != nil {
		logger.With(errKey, err).Error("error opening RBAC store")
		os.Exit(1)
	}

	// Support GET/POST monitoring "ping".
	http.HandleFunc("/livez", func(w http.ResponseWriter, _ *http.Request) {
		// This always returns as long as the service is still running. As this
		// endpoint is expected to be used as a Kubernetes liveness check, this
		// service must likewise self-detect non-recoverable errors and
		// self-terminate.
		_, err := fmt.Fprintf(w, "OK\n")
		if err != nil {
			logger.With(errKey, err).Error("error writing to response writer")
		}
	})

	// Basic health check.
	http.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		if natsConn == nil {
			http.Error(w, "no NATS connection", http.StatusServiceUnavailable)
			return
		}
		if !natsConn.IsConnected() || natsConn.IsDraining() {
			http.Error(w, "NATS connection not ready", http.StatusServiceUnavailable)
			return
		}
		_, err := fmt.Fprintf(w, "OK\n")
		if err != nil {
			logger.With(errKey, err).Error("error writing to response writer")
		}
	})

	// Add an http listener for health checks. This server does NOT participate
	// in the graceful shutdown process; we want it to stay up until the process
	// is killed, to avoid liveness checks failing during the graceful shutdown.
	var addr string
	if *bind == "*" {
		addr = ":" + *port
	} else {
		addr = *bind + ":" + *port
	}
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           http.DefaultServeMux,
		ReadHeaderTimeout: 3 * time.Second,
	}
	go func() {
		logger.Info("starting HTTP server", "addr", addr)
		err := httpServer.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			logger.With(errKey, err).Error("http listener error")
			os.Exit(1)
		}
	}()

	// Create a wait group which is used to wait while draining (gracefully
	// closing) a connection.
	gracefulCloseWG := sync.WaitGroup{}

	// Support graceful shutdown.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	// Create NATS connection.
	gracefulCloseWG.Add(1)
	natsConn, err = nats.Connect(
		natsURL,
		nats.DrainTimeout(gracefulShutdownSeconds*time.Second),
		nats.ErrorHandler(func(_ *nats.Conn, s *nats.Subscription, err error) {
			if s != nil {
				logger.With(errKey, err, "subject", s.Subject, "queue", s.Queue).Error("async NATS error")
			} else {
				logger.With(errKey, err).Error("async NATS error outside subscription")
			}
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			if ctx.Err() != nil {
				// If our parent background context has already been canceled, this is
				// a graceful shutdown. Decrement the wait group but do not exit, to
				// allow other graceful shutdown steps to complete.
				gracefulCloseWG.Done()
				return
			}
			// Otherwise, this handler means that max reconnect attempts have been
			// exhausted.
			logger.Error("NATS max-reconnects exhausted; connection closed")
			// Send a synthetic interrupt and give any graceful-shutdown tasks 5
			// seconds to clean up.
			done <- os.Interrupt
			time.Sleep(5 * time.Second)
			// Exit with an error instead of decrementing the wait group.
			os.Exit(1)
		}),
	)
	if err != nil {
		logger.With(errKey, err).Error("error creating NATS client")
		os.Exit(1)
	}
	logger.With("url", natsURL).Info("NATS client created")

	jetstreamConn, err = jetstream.New(natsConn)
	if err != nil {
		logger.With(errKey, err).Error("error creating JetStream client")
		os.Exit(1)
	}
	cacheBucket, err = jetstreamConn.KeyValue(context.Background(), cacheBucketName)
	if err != nil {
		logger.With(errKey, err).Error("error binding to cache bucket")
		os.Exit(1)
	}

	handlerService = &HandlerService{
		fgaService: FgaService{
			client:      fgaClient,
			cacheBucket: cacheBucket,
		},
		rbacStore: rbacStore,
	}

	// One-shot seeding mode for deploy jobs.
	if *seedFile != "" {
		if err := runSeeds(ctx, *seedFile, rbacStore); err != nil {
			logger.With(errKey, err).Error("seeding failed")
			os.Exit(1)
		}
		logger.Info("seeding complete")
		return
	}

	if err = createQueueSubscriptions(); err != nil {
		logger.With(errKey, err).Error("error creating queue subscriptions")
		os.Exit(1)
	}

	// This next line blocks until SIGINT or SIGTERM is received, or NATS disconnects.
	<-done

	// Cancel the background context.
	cancel()

	// Drain the connection, which will drain all subscriptions, then close the
	// connection when complete.
	if !natsConn.IsClosed() && !natsConn.IsDraining() {
		logger.Info("draining NATS connections")
		if err := natsConn.Drain(); err != nil {
			logger.With(errKey, err).Error("error draining NATS connection")
			os.Exit(1)
		}
	}

	// Wait for the graceful shutdown steps to complete.
	gracefulCloseWG.Wait()

	// Immediately close the HTTP server after graceful shutdown has finished.
	if err = httpServer.Close(); err != nil {
		logger.With(errKey, err).Error("http listener error on close")
	}
}

// seedTaskFile is the on-disk format consumed by the -seed flag.
type seedTaskFile struct {
	Tenants []tenantStub `json:"tenants"`
	Roles   []struct {
		Name        string   `json:"name"`
		Permissions []string `json:"permissions"`
	} `json:"roles"`
	Groups []struct {
		Name       string   `json:"name"`
		Principals []string `json:"principals"`
	} `json:"groups"`
}

// runSeeds materializes the system roles for every tenant in the task file.
func runSeeds(ctx context.Context, path string, store rbac.Store) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var taskFile seedTaskFile
	if err := json.Unmarshal(data, &taskFile); err != nil {
		return err
	}

	var tenants []rbac.Tenant
	for _, tenant := range taskFile.Tenants {
		tenants = append(tenants, tenant.toTenant())
	}
	var seedSet seeds.Seeds
	for _, role := range taskFile.Roles {
		seedSet.Roles = append(seedSet.Roles, seeds.SystemRoleSeed{
			Name:        role.Name,
			Permissions: role.Permissions,
		})
	}
	for _, group := range taskFile.Groups {
		seedSet.Groups = append(seedSet.Groups, seeds.SystemGroupSeed{
			Name:       group.Name,
			Principals: group.Principals,
		})
	}

	seeder := seeds.NewSeeder(store, handlerService.fgaService, logger)
	if concurrency, err := strconv.Atoi(os.Getenv("SEED_CONCURRENCY")); err == nil && concurrency > 0 {
		seeder.Concurrency = concurrency
	}
	return seeder.Run(ctx, tenants, seedSet)
}

// createQueueSubscriptions creates queue subscriptions for the NATS subjects.
func createQueueSubscriptions() (err error) {
	subscriptions := []struct {
		subject string
		handler func(INatsMsg) error
	}{
		{constants.RoleCreatedSubject, handlerService.roleCreatedHandler},
		{constants.RoleUpdatedSubject, handlerService.roleUpdatedHandler},
		{constants.RoleDeletedSubject, handlerService.roleDeletedHandler},
		{constants.GroupMembershipSubject, handlerService.groupMembershipHandler},
		{constants.PolicyBindingSubject, handlerService.policyBindingHandler},
	}

	for _, subscription := range subscriptions {
		subject := fmt.Sprintf("%s.%s", environment, subscription.subject)
		handler := subscription.handler
		if _, err = natsConn.QueueSubscribe(subject, constants.RelationsSyncQueue, func(msg *nats.Msg) {
			// Errors are already logged and, when an inbox was provided,
			// reported to the requester.
			_ = handler(&NatsMsg{Msg: msg})
		}); err != nil {
			logger.With(errKey, err, "subject", subject).Error("error subscribing to NATS subject")
			return err
		}
		logger.With("subject", subject).Info("subscribed to NATS subject")
	}

	return nil
}
