// Command storefront runs the client side sync once: it cleans the local
// cache, migrates legacy data, loads every collection and prints the state.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/joho/godotenv"

	"github.com/ariefcatur/go-storefront/internal/accounts"
	"github.com/ariefcatur/go-storefront/internal/config"
	"github.com/ariefcatur/go-storefront/internal/localcache"
	"github.com/ariefcatur/go-storefront/internal/remote"
	"github.com/ariefcatur/go-storefront/internal/storefront"
	"github.com/ariefcatur/go-storefront/internal/syncer"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	images := flag.Bool("images", false, "load full product payloads")
	drain := flag.Bool("drain", false, "retry queued writes before printing")
	email := flag.String("login", "", "sign in as this email after loading")
	password := flag.String("password", "", "password for -login")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	client, err := remote.New(cfg.RemoteBaseURL,
		remote.WithTimeout(cfg.RemoteTimeout),
		remote.WithRetryDelay(cfg.RemoteRetryDelay),
		remote.WithLogger(log.Default()),
	)
	if err != nil {
		log.Fatalf("remote: %v", err)
	}
	cache, err := localcache.NewFile(osfs.New(cfg.CacheDir), cfg.CacheCapacity)
	if err != nil {
		log.Fatalf("cache: %v", err)
	}

	accountOpts := []syncer.AccountsOption{syncer.WithAutoProvision(cfg.AuthAutoProvision)}
	if cfg.AuthMode == "bcrypt" {
		accountOpts = append(accountOpts,
			syncer.WithVerifier(accounts.BcryptVerifier{}),
			syncer.WithAuthenticator(client),
		)
	}

	app, err := storefront.New(storefront.Deps{
		Remote:          client,
		Cache:           cache,
		Journal:         syncer.NewFileJournal(osfs.New(cfg.OutboxDir), ""),
		Log:             log.Default(),
		AccountOptions:  accountOpts,
		AdminPassword:   cfg.AdminPassword,
		AdminSessionKey: cfg.AdminSessionKey,
		AdminSessionTTL: cfg.AdminSessionTTL,
		LoadImages:      *images,
	})
	if err != nil {
		log.Fatalf("storefront: %v", err)
	}

	rep := app.Start(ctx)
	log.Printf("start: hygiene=%+v migration=%+v cart=%d drained=%d",
		rep.Hygiene, rep.Migration, rep.CartRows, rep.Drain.Sent)

	if *email != "" {
		if _, err := app.Accounts.Login(ctx, *email, *password); err != nil {
			log.Printf("login %s: %v", *email, err)
		}
	}
	if *drain {
		d := app.Outbox.Drain(ctx)
		log.Printf("drain: sent=%d dropped=%d remaining=%d err=%v", d.Sent, d.Dropped, d.Remaining, d.Err)
	}

	st := app.State()
	st.Sources = rep.Sources
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(st); err != nil {
		log.Fatalf("encode: %v", err)
	}
}
