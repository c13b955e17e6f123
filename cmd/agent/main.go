// Command agent is the field technician's command-line client. Lifecycle
// commands that fail because the server is unreachable are stored in a
// local durable queue and replayed, in order, on the next `sync`. Reads
// fall back to the last snapshot while offline.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/fieldforcemrser2026/syntoniqa/internal/offline"
)

const usage = `usage: agent [flags] <command> [args]

commands:
  create <problem>                      open a new ticket
  transition <kind> <id> <state>        move a ticket or intervention
  assign <ticket-id> <technician-id>    dispatch a ticket
  list                                  list open tickets (snapshot fallback)
  sync                                  replay queued commands
`

func main() {
	var (
		server    = pflag.String("server", "http://localhost:8080", "API base URL")
		token     = pflag.String("token", os.Getenv("AGENT_TOKEN"), "bearer token")
		queuePath = pflag.String("queue", defaultQueuePath(), "offline queue database path")
		priority  = pflag.String("priority", "medium", "priority for create")
		date      = pflag.String("date", "", "scheduled date for assign (YYYY-MM-DD)")
		note      = pflag.String("note", "", "note for transition")
		verbose   = pflag.Bool("verbose", false, "verbose logging")
	)
	pflag.Parse()
	args := pflag.Args()
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	logger := zap.NewNop()
	if *verbose {
		var err error
		if logger, err = zap.NewDevelopment(); err != nil {
			fatal(err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(*queuePath), 0o755); err != nil {
		fatal(err)
	}
	queue, err := offline.OpenQueue(*queuePath, logger)
	if err != nil {
		fatal(err)
	}
	defer queue.Close()

	agent := &agent{
		queue:   queue,
		client:  &http.Client{Timeout: 15 * time.Second},
		baseURL: strings.TrimRight(*server, "/"),
		token:   *token,
		logger:  logger,
	}

	switch args[0] {
	case "create":
		if len(args) < 2 {
			fatal(fmt.Errorf("create needs a problem description"))
		}
		err = agent.create(strings.Join(args[1:], " "), *priority)
	case "transition":
		if len(args) != 4 {
			fatal(fmt.Errorf("transition needs <kind> <id> <state>"))
		}
		err = agent.transition(args[1], args[2], args[3], *note)
	case "assign":
		if len(args) != 3 {
			fatal(fmt.Errorf("assign needs <ticket-id> <technician-id>"))
		}
		err = agent.assign(args[1], args[2], *date)
	case "list":
		err = agent.listOpenTickets()
	case "sync":
		err = agent.sync()
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		fatal(err)
	}
}

type agent struct {
	queue   *offline.Queue
	client  *http.Client
	baseURL string
	token   string
	logger  *zap.Logger
}

func (a *agent) create(problem, priority string) error {
	body, _ := json.Marshal(map[string]any{"problem": problem, "priority": priority})
	return a.send(offline.ActionTicketCreate, http.MethodPost, "/api/tickets", body)
}

func (a *agent) transition(kind, id, state, note string) error {
	var action, target string
	switch kind {
	case "ticket":
		action = offline.ActionTicketTransition
		target = "/api/tickets/" + id + "/transition"
	case "intervention":
		action = offline.ActionInterventionTransition
		target = "/api/interventions/" + id + "/transition"
	default:
		return fmt.Errorf("unknown kind %q (want ticket or intervention)", kind)
	}
	body, _ := json.Marshal(map[string]any{"target": state, "note": note})
	return a.send(action, http.MethodPost, target, body)
}

func (a *agent) assign(ticketID, technicianID, date string) error {
	payload := map[string]any{"technician_id": technicianID}
	if date != "" {
		parsed, err := time.Parse("2006-01-02", date)
		if err != nil {
			return fmt.Errorf("bad --date: %w", err)
		}
		payload["scheduled_date"] = parsed
	}
	body, _ := json.Marshal(payload)
	return a.send(offline.ActionTicketAssign, http.MethodPost, "/api/tickets/"+ticketID+"/assign", body)
}

// send fires the request live; a transport failure on a queueable action
// enqueues it instead. The queued acknowledgment is worded differently
// from a server acknowledgment on purpose.
func (a *agent) send(action, method, target string, body []byte) error {
	resp, err := a.do(method, target, body)
	if err != nil {
		if !offline.Queueable(action) {
			return fmt.Errorf("server unreachable: %w", err)
		}
		if _, qerr := a.queue.Enqueue(context.Background(), action, method, target, body); qerr != nil {
			return qerr
		}
		fmt.Println("saved locally, will sync when back online")
		return nil
	}
	defer resp.Body.Close()
	out, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		return fmt.Errorf("server rejected request (%d): %s", resp.StatusCode, strings.TrimSpace(string(out)))
	}
	fmt.Println("confirmed by server")
	if len(out) > 0 {
		fmt.Println(string(out))
	}
	return nil
}

func (a *agent) listOpenTickets() error {
	resp, err := a.do(http.MethodGet, "/api/tickets?state=open,assigned,scheduled,in_progress", nil)
	if err != nil {
		payload, updatedAt, ok, serr := a.queue.LoadSnapshot(context.Background(), offline.SnapshotOpenTickets)
		if serr != nil {
			return serr
		}
		if !ok {
			return fmt.Errorf("offline and no snapshot available: %w", err)
		}
		fmt.Printf("offline snapshot from %s:\n%s\n", updatedAt.Format(time.RFC3339), payload)
		return nil
	}
	defer resp.Body.Close()
	out, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("server rejected request (%d)", resp.StatusCode)
	}
	if err := a.queue.SaveSnapshot(context.Background(), offline.SnapshotOpenTickets, out); err != nil {
		a.logger.Warn("saving snapshot failed", zap.Error(err))
	}
	fmt.Println(string(out))
	return nil
}

func (a *agent) sync() error {
	replayer := offline.NewReplayer(a.queue, a.client, a.baseURL, a.token, a.logger)
	res, err := replayer.Replay(context.Background())
	if err != nil {
		return err
	}
	fmt.Printf("synced %d of %d queued commands, %d remaining\n", res.Synced, res.Attempted, res.Remaining)
	return nil
}

func (a *agent) do(method, target string, body []byte) (*http.Response, error) {
	req, err := http.NewRequest(method, a.baseURL+target, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if a.token != "" {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}
	return a.client.Do(req)
}

func defaultQueuePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "agent-queue.db"
	}
	return filepath.Join(home, ".syntoniqa", "queue.db")
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "error:", err)
	os.Exit(1)
}
