// Command siouxd runs the pub/sub server: spec components D (subscription
// root), F/G (HTTP connection state machine and pub/sub response), plus
// the admin HTTP API and audit log this implementation adds on top.
//
// Wiring style grounded on Resin's cmd/resin/main.go: load env config,
// construct services bottom-up, start background workers in dependency
// order, then block on a signal/error channel before a staged shutdown.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/sioux/pubsub/internal/audit"
	"github.com/sioux/pubsub/internal/config"
	"github.com/sioux/pubsub/internal/json"
	"github.com/sioux/pubsub/internal/pubsub"
	"github.com/sioux/pubsub/internal/pubsubhttp"
	"github.com/sioux/pubsub/internal/server"
	"github.com/sioux/pubsub/internal/taskqueue"

	"github.com/sioux/pubsub/internal/adminapi"
)

func main() {
	envCfg, err := config.LoadEnvConfig()
	if err != nil {
		fatalf("%v", err)
	}
	runtimeCfg := config.NewDefaultRuntimeConfig()

	if err := os.MkdirAll(envCfg.StateDir, 0o755); err != nil {
		fatalf("state dir: %v", err)
	}

	queue := taskqueue.NewPool(envCfg.TaskQueueSize, envCfg.TaskQueueWorkers)
	log.Println("Task queue started")

	configs := pubsub.NewConfigurationList(pubsub.Configuration{
		AuthorizationRequired: runtimeCfg.AuthorizationRequired,
		MaxUpdateSize:         runtimeCfg.MaxUpdateSize,
		KeepAliveTimeout:      runtimeCfg.KeepAliveTimeout.Std(),
		IOTimeout:             runtimeCfg.IOTimeout.Std(),
		MaxIdleTime:           runtimeCfg.MaxIdleTime.Std(),
	})

	root := pubsub.NewRoot(newPermissiveAdapter(), queue, configs, envCfg.MaxHistoryBytes)
	log.Println("Subscription root initialized")

	evictor, err := pubsub.NewGraceEvictor(root, envCfg.GracePeriod, envCfg.GraceSweepSpec, 4096)
	if err != nil {
		fatalf("grace evictor: %v", err)
	}
	evictor.Start()
	log.Println("Grace evictor started")

	auditRepo, err := audit.NewRepo(filepath.Join(envCfg.StateDir, "audit.db"))
	if err != nil {
		fatalf("audit repo: %v", err)
	}
	auditSvc := audit.NewService(audit.ServiceConfig{
		Repo:          auditRepo,
		QueueSize:     envCfg.AuditQueueSize,
		FlushBatch:    envCfg.AuditFlushBatch,
		FlushInterval: envCfg.AuditFlushInterval,
	})
	auditSvc.Start()
	root.SetAuditHook(func(e pubsub.AuditEvent) {
		auditSvc.Emit(audit.Event{
			Time:         time.Now(),
			Kind:         audit.Kind(e.Kind),
			NodeName:     e.NodeName,
			SubscriberID: e.SubscriberID,
		})
	})
	log.Println("Audit log started")

	registry := server.NewRegistry()
	factory := pubsubhttp.NewFactory(root)
	listenCfg := server.ListenConfig{
		MaxRequestBytes:  envCfg.MaxRequestBytes,
		KeepAliveTimeout: envCfg.KeepAliveTimeout,
		IOTimeout:        envCfg.IOTimeout,
	}

	serverErrCh := make(chan error, 2)
	reportServerErr := func(name string, err error) {
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return
		}
		wrapped := fmt.Errorf("%s: %w", name, err)
		select {
		case serverErrCh <- wrapped:
		default:
		}
	}

	pubsubAddr := fmt.Sprintf("%s:%d", envCfg.ListenAddress, envCfg.PubSubPort)
	go func() {
		log.Printf("Pub/sub server starting on %s", pubsubAddr)
		reportServerErr("pubsub server", server.ListenAndServe(pubsubAddr, factory, listenCfg, registry))
	}()

	adminAddr := fmt.Sprintf("%s:%d", envCfg.ListenAddress, envCfg.AdminPort)
	adminSrv := adminapi.NewServer(adminAddr, envCfg.AdminToken, root, configs, registry)
	go func() {
		log.Printf("Admin API starting on %s", adminAddr)
		reportServerErr("admin api", adminSrv.ListenAndServe())
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	var runtimeErr error
	select {
	case sig := <-quit:
		log.Printf("Received signal %s, shutting down...", sig)
	case err := <-serverErrCh:
		runtimeErr = err
		log.Printf("Received server runtime error (%v), shutting down...", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := adminSrv.Shutdown(ctx); err != nil {
		log.Printf("Admin API shutdown error: %v", err)
	}
	log.Println("Admin API stopped")

	// The pub/sub listener has no graceful-drain handle (spec §4.E names
	// no shutdown behavior); its accept loop and live connections end
	// with the process below.

	evictor.Stop()
	log.Println("Grace evictor stopped")

	auditSvc.Stop()
	if err := auditRepo.Close(); err != nil {
		log.Printf("Audit repo close error: %v", err)
	}
	log.Println("Audit log stopped")

	queue.Stop()
	log.Println("Task queue stopped")

	if runtimeErr != nil {
		fatalf("runtime server error: %v", runtimeErr)
	}
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "fatal: "+format+"\n", args...)
	os.Exit(1)
}

// permissiveAdapter is the built-in default Adapter: every node name is
// valid, every subscriber is authorized, and a node's initial value is an
// empty object. SPEC_FULL names no concrete validity/authorization/data
// source (those are left to the embedder per the original spec's Adapter
// interface) — a real deployment is expected to supply its own Adapter;
// this one only exists so siouxd runs standalone out of the box.
type permissiveAdapter struct{}

func newPermissiveAdapter() pubsub.Adapter { return permissiveAdapter{} }

func (permissiveAdapter) ValidNode(name pubsub.Name, cb *pubsub.ValidationCallback) {
	cb.IsValid()
}

func (permissiveAdapter) Authorize(s pubsub.Subscriber, name pubsub.Name, cb *pubsub.AuthorizationCallback) {
	cb.IsAuthorized()
}

func (permissiveAdapter) NodeInit(name pubsub.Name, cb *pubsub.InitializationCallback) {
	cb.InitialValue(json.NewObject())
}

func (permissiveAdapter) InvalidNodeSubscription(pubsub.Name, pubsub.Subscriber)  {}
func (permissiveAdapter) UnauthorizedSubscription(pubsub.Name, pubsub.Subscriber) {}
func (permissiveAdapter) InitializationFailed(pubsub.Name, pubsub.Subscriber)     {}
