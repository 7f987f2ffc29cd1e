package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/layer-3/beatauth/adapters/store"
	"github.com/layer-3/beatauth/adapters/wallet"
	"github.com/layer-3/beatauth/core"
	"github.com/layer-3/beatauth/pkg/logger"
	"github.com/layer-3/beatauth/ports"
	"github.com/layer-3/beatauth/service"
)

type demoOptions struct {
	redisURL   string
	superAdmin bool
	logLevel   string
}

func newDemoCmd() *cobra.Command {
	opts := demoOptions{}
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Walk a generated wallet through sign-in, gating, restore and sign-out",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return demo(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}
	cmd.Flags().StringVar(&opts.redisURL, "redis-url", "", "persist challenges and the session in Redis instead of memory")
	cmd.Flags().BoolVar(&opts.superAdmin, "super-admin", false, "put the generated wallet on the super-admin allowlist")
	cmd.Flags().StringVar(&opts.logLevel, "log-level", "warn", "log level")
	return cmd
}

var demoRequirements = []struct {
	name string
	req  service.Requirement
}{
	{"browse (wallet)", service.WalletRequired()},
	{"library (signed in)", service.AuthenticationRequired()},
	{"upload (beats:upload)", service.PermissionRequired(core.PermBeatsUpload)},
	{"admin panel (admin|super_admin)", service.AnyRoleRequired(core.RoleAdmin, core.RoleSuperAdmin)},
}

func demo(ctx context.Context, out io.Writer, opts demoOptions) error {
	log := logger.New(logger.Options{Level: opts.logLevel, Pretty: true, Service: "beatauth-demo"})

	w, err := wallet.Generate()
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "wallet %s\n", w.Address())

	var (
		challenges ports.ChallengeStore = store.NewMemoryChallengeStore(nil)
		sessions   ports.SessionStore   = store.NewMemorySessionStore()
	)
	if opts.redisURL != "" {
		client, err := store.ConnectRedis(ctx, opts.redisURL, connectTimeout)
		if err != nil {
			return err
		}
		defer client.Close()
		challenges = store.NewRedisChallengeStore(client)
		sessions = store.NewRedisSessionStore(client, "demo-"+uuid.NewString(), 24*time.Hour)
	}

	var allowlist core.Allowlist
	if opts.superAdmin {
		allowlist = core.NewAllowlist(w.Address())
	}

	cfg := service.SessionConfig{
		Domain:     "localhost:3000",
		URI:        "http://localhost:3000",
		Statement:  "Sign in to the beat marketplace.",
		ChainID:    1,
		NonceTTL:   5 * time.Minute,
		SessionTTL: 24 * time.Hour,
	}
	deps := service.SessionDeps{
		Issuer:     service.NewChallengeIssuer(challenges, cfg.NonceTTL, log),
		Verifier:   service.NewSignatureVerifier(challenges, service.VerifierConfig{Domain: cfg.Domain, NonceTTL: cfg.NonceTTL}, log),
		Identities: store.NewMemoryIdentityStore(),
		Resolver:   service.NewRoleResolver(allowlist, log),
		Wallet:     w,
		Sessions:   sessions,
	}

	newManager := func() *service.SessionManager {
		m := service.NewSessionManager(cfg, deps, log)
		m.OnTransition(func(t core.Transition) {
			fmt.Fprintf(out, "  %-16s -> %-16s (%s)\n", t.From, t.To, t.Reason)
		})
		return m
	}
	gates := func(m *service.SessionManager) {
		for _, r := range demoRequirements {
			d := m.Authorize(ctx, r.req)
			fmt.Fprintf(out, "  gate %-32s %s\n", r.name, d.Outcome)
		}
	}

	m := newManager()
	fmt.Fprintln(out, "before connecting:")
	gates(m)

	fmt.Fprintln(out, "connect wallet:")
	m.Apply(ctx, core.WalletEvent{Kind: core.WalletEventConnected, Address: w.Address()})
	gates(m)

	fmt.Fprintln(out, "sign in:")
	snap, err := m.SignIn(ctx)
	if err != nil {
		return fmt.Errorf("sign-in: %w", err)
	}
	fmt.Fprintf(out, "  role %s, permissions %s\n", snap.Role, joinPermissions(snap.Permissions))
	gates(m)

	fmt.Fprintln(out, "restart and restore:")
	m = newManager()
	m.Apply(ctx, core.WalletEvent{Kind: core.WalletEventConnected, Address: w.Address()})
	if _, err := m.Restore(ctx); err != nil {
		return fmt.Errorf("restore: %w", err)
	}

	other, err := wallet.Generate()
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "switch account to %s:\n", other.Address())
	m.Apply(ctx, core.WalletEvent{Kind: core.WalletEventAddressChanged, Address: other.Address()})
	gates(m)

	fmt.Fprintln(out, "sign out twice:")
	m.SignOut(ctx)
	m.SignOut(ctx)

	fmt.Fprintln(out, "disconnect:")
	m.Apply(ctx, core.WalletEvent{Kind: core.WalletEventDisconnected})
	return nil
}

func joinPermissions(set core.PermissionSet) string {
	perms := set.Sorted()
	names := make([]string, len(perms))
	for i, p := range perms {
		names[i] = string(p)
	}
	return strings.Join(names, ", ")
}
