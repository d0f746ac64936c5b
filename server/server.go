package server

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"

	"github.com/swarmnet/arbiter/audit"
	"github.com/swarmnet/arbiter/challenge"
	"github.com/swarmnet/arbiter/dispatch"
	"github.com/swarmnet/arbiter/ledger"
	"github.com/swarmnet/arbiter/logging"
	"github.com/swarmnet/arbiter/scheduler"
	"github.com/swarmnet/arbiter/trust"
)

type Server struct {
	cfg    Config
	sched  *scheduler.Scheduler
	store  *trust.Store
	audits *audit.Store
	hub    *dispatch.Hub

	restListener net.Listener

	privateKey ed25519.PrivateKey
}

func New(ctx context.Context, cfg Config) (*Server, error) {
	// Resolve the REST listener
	addr, err := net.ResolveTCPAddr("tcp", cfg.RawRESTListener)
	if err != nil {
		return nil, err
	}
	restListener, err := net.Listen(addr.Network(), addr.String())
	if err != nil {
		return nil, fmt.Errorf("failed to listen: %v", err)
	}

	if _, err := os.Stat(cfg.DataDir); os.IsNotExist(err) {
		if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
			return nil, err
		}
	}

	s, err := loadOrCreateState(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("loading state: %w", err)
	}
	privateKey := ed25519.PrivateKey(s.PrivKey)

	catalog := challenge.DefaultCatalog()
	if cfg.Capabilities != "" {
		catalog, err = challenge.LoadCatalog(cfg.Capabilities)
		if err != nil {
			return nil, fmt.Errorf("loading capability catalog: %w", err)
		}
	}

	store, err := trust.NewStore(filepath.Join(cfg.DbDir, "trust"), cfg.Scheduler.TrustAlpha)
	if err != nil {
		return nil, fmt.Errorf("opening trust store: %w", err)
	}

	var ledgerClient ledger.Client
	if cfg.Ledger.URL != "" {
		ledgerClient = ledger.NewHTTP(cfg.Ledger.URL, nil)
	} else {
		logging.FromContext(ctx).Info("no ledger URL configured - running standalone")
		participants := make([]dispatch.Participant, len(cfg.Ledger.Participants))
		for i, p := range cfg.Ledger.Participants {
			participants[i] = dispatch.Participant(p)
		}
		ledgerClient = ledger.NewInMemory(participants...)
	}
	ledgerClient = ledger.NewRetrying(
		ledgerClient,
		cfg.Ledger.PublishRetries,
		cfg.Ledger.PublishBackoff,
		cfg.Ledger.BackoffMultiplier,
	)

	hub := dispatch.NewHub()

	opts := []scheduler.Option{scheduler.WithPrivateKey(privateKey)}
	var audits *audit.Store
	if !cfg.DisableAudit {
		audits, err = audit.OpenStore(filepath.Join(cfg.DataDir, "audit"))
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("opening audit store: %w", err)
		}
		opts = append(opts, scheduler.WithAuditStore(audits))
	}

	sched, err := scheduler.New(ctx, cfg.Scheduler, catalog, store, hub, ledgerClient, opts...)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("creating scheduler: %w", err)
	}

	return &Server{
		cfg:          cfg,
		sched:        sched,
		store:        store,
		audits:       audits,
		hub:          hub,
		restListener: restListener,
		privateKey:   privateKey,
	}, nil
}

func (s *Server) Close() error {
	var result *multierror.Error
	result = multierror.Append(result, s.store.Close())
	if s.audits != nil {
		result = multierror.Append(result, s.audits.Close())
	}
	return result.ErrorOrNil()
}

// RestAddr returns the address that the operator API is listening on.
func (s *Server) RestAddr() net.Addr {
	return s.restListener.Addr()
}

func (s *Server) PublicKey() ed25519.PublicKey {
	return s.privateKey.Public().(ed25519.PublicKey)
}

// Start runs the scheduler and the operator API until ctx is canceled.
func (s *Server) Start(ctx context.Context) error {
	ctx, stop := context.WithCancel(ctx)
	defer stop()
	serverGroup, ctx := errgroup.WithContext(ctx)

	logger := logging.FromContext(ctx)

	logger.Info("starting round scheduler")
	serverGroup.Go(func() error {
		return s.sched.RunForever(ctx)
	})

	server := &http.Server{Handler: s.operatorMux(ctx), ReadHeaderTimeout: time.Second * 5}
	serverGroup.Go(func() error {
		logger.Sugar().Infof("operator API listening on %s", s.restListener.Addr())
		err := server.Serve(s.restListener)
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})

	// Wait for the server to shut down gracefully
	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Sugar().Errorf("failed to shutdown server: %s", err)
	}
	if err := serverGroup.Wait(); err != nil {
		logger.Sugar().Errorf("error when waiting to shutdown servers: %s", err)
	}
	return nil
}
