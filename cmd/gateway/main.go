package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/halcyon-wallet/gateway/internal/approval"
	"github.com/halcyon-wallet/gateway/internal/auth"
	"github.com/halcyon-wallet/gateway/internal/chain"
	cfgpkg "github.com/halcyon-wallet/gateway/internal/config"
	"github.com/halcyon-wallet/gateway/internal/gateway"
	"github.com/halcyon-wallet/gateway/internal/ratelimit"
	"github.com/halcyon-wallet/gateway/internal/server"
	"github.com/halcyon-wallet/gateway/internal/session"
	"github.com/halcyon-wallet/gateway/internal/store"
	"github.com/halcyon-wallet/gateway/internal/walletcore"
)

func main() {
	cfg := cfgpkg.Load()

	db := store.OpenSQLite(cfg.Database.SQLiteDSN)
	store.AutoMigrate(db)
	store.EnsureOperator(db, cfg.Auth.OperatorUsername, cfg.Auth.OperatorPassword)
	store.EnsureDefaultNetworks(db)
	repo := store.NewRepository(db)

	authSvc := auth.NewService(cfg.Auth, repo)
	hub := server.NewEventHub(authSvc.RedeemWSTicket, log.New(log.Writer(), "events: ", log.LstdFlags))

	rpcURL := cfg.Chain.RPCURL
	if rpcURL == "" {
		active, err := repo.GetActiveNetwork(context.Background())
		if err != nil || active == nil {
			log.Fatalf("no active network and no CHAIN_RPC_URL override")
		}
		rpcURL = active.RPCURL
	}
	chainClient, err := chain.Dial(rpcURL, log.New(log.Writer(), "chain: ", log.LstdFlags))
	if err != nil {
		log.Fatalf("failed to connect chain rpc: %v", err)
	}
	defer chainClient.Close()

	ops := store.NewOps(repo, log.New(log.Writer(), "wallet: ", log.LstdFlags))
	ops.OnSwitch(func(n store.Network) {
		if err := chainClient.Switch(n.RPCURL); err != nil {
			log.Printf("switch to %s failed, keeping old endpoint: %v", n.RPCURL, err)
			return
		}
		hub.Publish("network.switched", n)
	})

	queue := approval.NewQueue(log.New(log.Writer(), "approvals: ", log.LstdFlags))
	queue.OnEnqueue(hub.PublishApprovalPending)
	audit := store.NewApprovalAuditor(repo, log.New(log.Writer(), "audit: ", log.LstdFlags))
	queue.OnResolve(func(req approval.Request, out approval.Outcome) {
		audit(req, out)
		hub.PublishApprovalResolved(req, out)
	})

	sessions := session.NewManager(log.New(log.Writer(), "sessions: ", log.LstdFlags))
	limiter := ratelimit.New(ratelimit.DefaultMethodConfigs(), log.New(log.Writer(), "ratelimit: ", log.LstdFlags))

	trusted := func(origin string) bool {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		ok, err := repo.IsTrustedOrigin(ctx, origin)
		if err != nil {
			log.Printf("trusted origin lookup failed: %v", err)
			return false
		}
		return ok
	}

	gw := gateway.New(gateway.Deps{
		Limiter:   limiter,
		Sessions:  sessions,
		Approvals: queue,
		// The signing core attaches over its own channel once the vault is
		// unlocked; until then every signing call fails cleanly.
		Core:          walletcore.Detached{},
		Chain:         chainClient,
		Ops:           ops,
		TrustedOrigin: trusted,
		Logger:        log.New(log.Writer(), "gateway: ", log.LstdFlags),
	})

	r := server.NewRouter(cfg, authSvc, gw, queue, sessions, repo, hub, log.New(log.Writer(), "http: ", log.LstdFlags))
	srv := server.NewHTTP(cfg.Server.HTTPAddr, r)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})
	g.Go(func() error {
		return queue.Run(gctx)
	})
	g.Go(func() error {
		// Session janitor: idle windows lose their session and any prompts
		// still pending for them.
		ticker := time.NewTicker(cfg.Gateway.SessionSweep)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				for _, windowID := range sessions.RemoveIdle(cfg.Gateway.SessionMaxIdle) {
					queue.CancelWindow(windowID)
					hub.Publish("session.removed", map[string]string{"windowId": windowID})
				}
			}
		}
	})
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	<-ctx.Done()
	shutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(shutdown)
	_ = g.Wait()
}
