package offline

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// Doer abstracts the HTTP client; tests substitute a fake.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Replayer drains the command queue against the live API. Replay is
// at-least-once: a command counts as delivered once the server produced
// any HTTP response, including a 4xx or 5xx. Rejections will not succeed
// by retrying the identical request, and replaying an already-applied
// transition is a server-side no-op, so both outcomes retire the command.
// Only a transport failure keeps a command queued.
type Replayer struct {
	queue   *Queue
	client  Doer
	baseURL string
	token   string
	logger  *zap.Logger
}

// NewReplayer constructs the replayer. token may be empty for
// unauthenticated endpoints.
func NewReplayer(queue *Queue, client Doer, baseURL, token string, logger *zap.Logger) *Replayer {
	return &Replayer{
		queue:   queue,
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		logger:  logger,
	}
}

// Result summarizes one replay pass.
type Result struct {
	Attempted int
	Synced    int
	Remaining int
}

// Replay fires pending commands strictly in enqueue order. The first
// transport failure stops the pass; everything after the failed command
// stays queued so order is preserved across triggers. Delivered commands
// are purged at the end of the pass.
func (r *Replayer) Replay(ctx context.Context) (Result, error) {
	pending, err := r.queue.Pending(ctx)
	if err != nil {
		return Result{}, err
	}
	var res Result
	res.Remaining = len(pending)

	for i := range pending {
		cmd := &pending[i]
		if ctx.Err() != nil {
			break
		}
		res.Attempted++

		req, err := http.NewRequestWithContext(ctx, cmd.Method, r.baseURL+cmd.Target, bytes.NewReader(cmd.Body))
		if err != nil {
			// Malformed command; it can never succeed, retire it.
			r.logger.Error("dropping unreplayable command", zap.Int64("id", cmd.ID), zap.Error(err))
			if err := r.queue.MarkSynced(ctx, cmd.ID); err != nil {
				return res, err
			}
			res.Synced++
			res.Remaining--
			continue
		}
		req.Header.Set("Content-Type", "application/json")
		if r.token != "" {
			req.Header.Set("Authorization", "Bearer "+r.token)
		}

		resp, err := r.client.Do(req)
		if err != nil {
			r.logger.Warn("replay stopped, network unavailable",
				zap.Int64("id", cmd.ID),
				zap.String("action", cmd.Action),
				zap.Error(err))
			break
		}
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		if resp.StatusCode >= 400 {
			r.logger.Warn("replayed command rejected by server",
				zap.Int64("id", cmd.ID),
				zap.String("action", cmd.Action),
				zap.Int("status", resp.StatusCode))
		}
		if err := r.queue.MarkSynced(ctx, cmd.ID); err != nil {
			return res, err
		}
		res.Synced++
		res.Remaining--
	}

	if res.Synced > 0 {
		if _, err := r.queue.PurgeSynced(ctx); err != nil {
			return res, err
		}
	}
	return res, nil
}
