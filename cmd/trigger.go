package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/robfig/cron"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/leadsync/internal/api"
)

var triggerCmd = &cobra.Command{
	Use:   "trigger",
	Short: "Call the sync endpoint now and then on a schedule",
	Long:  "Runs one sync immediately, then POSTs /sync on sync.schedule until interrupted. Requires sync.secret (CRON_SECRET).",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("trigger"); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		t := &syncTrigger{
			client: &http.Client{Timeout: 30 * time.Second},
			apiURL: cfg.Sync.APIURL,
			secret: cfg.Sync.Secret,
		}

		zap.L().Info("sync trigger started",
			zap.String("api_url", t.apiURL),
			zap.String("schedule", cfg.Sync.Schedule),
		)

		t.fire(ctx)

		c := cron.New()
		if err := c.AddFunc(cfg.Sync.Schedule, func() { t.fire(ctx) }); err != nil {
			return eris.Wrapf(err, "trigger: invalid schedule %q", cfg.Sync.Schedule)
		}
		c.Start()
		defer c.Stop()

		<-ctx.Done()
		zap.L().Info("sync trigger stopping")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(triggerCmd)
}

// syncTrigger calls the sync endpoint of a running server.
type syncTrigger struct {
	client *http.Client
	apiURL string
	secret string
}

type triggerResponse struct {
	Success bool   `json:"success"`
	Synced  int    `json:"synced"`
	Message string `json:"message"`
	Error   string `json:"error"`
	Details string `json:"details"`
}

// fire runs one sync call and logs the outcome. Failures never stop the
// schedule.
func (t *syncTrigger) fire(ctx context.Context) {
	n, err := t.post(ctx)
	if err != nil {
		zap.L().Error("sync trigger failed", zap.Error(err))
		return
	}
	zap.L().Info("sync trigger complete", zap.Int("synced", n))
}

// post calls POST {apiURL}/sync with the shared secret and returns the
// number of leads synced.
func (t *syncTrigger) post(ctx context.Context) (int, error) {
	endpoint := strings.TrimRight(t.apiURL, "/") + "/sync"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return 0, eris.Wrap(err, "trigger: create request")
	}
	req.Header.Set(api.SecretHeader, t.secret)

	resp, err := t.client.Do(req)
	if err != nil {
		return 0, eris.Wrap(err, "trigger: request failed")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return 0, eris.Wrap(err, "trigger: read response")
	}

	var out triggerResponse
	_ = json.Unmarshal(body, &out)

	if resp.StatusCode != http.StatusOK {
		msg := out.Error
		if msg == "" {
			msg = strings.TrimSpace(string(body))
		}
		if out.Details != "" {
			msg = fmt.Sprintf("%s: %s", msg, out.Details)
		}
		return 0, eris.Errorf("trigger: status %d: %s", resp.StatusCode, msg)
	}
	if !out.Success {
		return 0, eris.Errorf("trigger: unexpected response: %s", strings.TrimSpace(string(body)))
	}
	return out.Synced, nil
}
