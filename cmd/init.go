package main

import (
	"context"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadsync/internal/config"
	"github.com/sells-group/leadsync/internal/enrich"
	"github.com/sells-group/leadsync/internal/notify"
	"github.com/sells-group/leadsync/internal/store"
	"github.com/sells-group/leadsync/pkg/nationalize"
	sfpkg "github.com/sells-group/leadsync/pkg/salesforce"
)

const defaultSQLitePath = "leads.db"

// openStore connects to the configured backend and applies the schema.
func openStore(ctx context.Context, c *config.Config) (store.Store, error) {
	var (
		st  store.Store
		err error
	)
	switch c.Store.Driver {
	case "sqlite":
		dsn := c.Store.DatabaseURL
		if dsn == "" {
			dsn = defaultSQLitePath
		}
		st, err = store.NewSQLite(dsn)
	case "postgres":
		st, err = store.NewPostgres(ctx, c.Store.DatabaseURL, &store.PoolConfig{MaxConns: c.Store.MaxConns})
	case "mongo":
		st, err = store.NewMongo(ctx, c.Store.DatabaseURL, c.Store.Database)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", c.Store.Driver)
	}
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}
	zap.L().Debug("store ready", zap.String("driver", c.Store.Driver))
	return st, nil
}

// initNotifier builds the configured downstream notifier. The returned
// close func is never nil.
func initNotifier(c *config.Config) (notify.Notifier, func() error, error) {
	noop := func() error { return nil }

	switch c.Notify.Driver {
	case "", "log":
		return notify.NewLog(nil), noop, nil
	case "salesforce":
		pemData, err := os.ReadFile(c.Salesforce.KeyPath)
		if err != nil {
			return nil, noop, eris.Wrap(err, "read salesforce JWT private key")
		}
		client, err := sfpkg.Connect(sfpkg.Creds{
			LoginURL: c.Salesforce.LoginURL,
			Username: c.Salesforce.Username,
			ClientID: c.Salesforce.ClientID,
			KeyPEM:   string(pemData),
		}, sfpkg.WithRateLimit(c.Salesforce.RateLimit))
		if err != nil {
			return nil, noop, err
		}
		return notify.NewSalesforce(client), noop, nil
	case "amqp":
		n, err := notify.DialAMQP(c.AMQP.URL, c.AMQP.Exchange)
		if err != nil {
			return nil, noop, err
		}
		return n, n.Close, nil
	default:
		return nil, noop, eris.Errorf("unsupported notify driver: %s", c.Notify.Driver)
	}
}

// newProcessor wires the Nationalize client into a batch processor.
func newProcessor(c *config.Config) *enrich.Processor {
	client := nationalize.NewClient(
		nationalize.WithBaseURL(c.Nationalize.BaseURL),
		nationalize.WithAPIKey(c.Nationalize.APIKey),
		nationalize.WithRateLimit(c.Nationalize.RateLimit),
	)
	enricher := enrich.NewEnricher(client,
		enrich.WithTimeout(time.Duration(c.Nationalize.TimeoutSecs)*time.Second),
	)
	return enrich.NewProcessor(enricher, c.Nationalize.MaxConcurrency)
}
