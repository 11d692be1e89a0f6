// Package cli implements inventoryctl, a command-line front end over the
// products and categories collections.
package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"github.com/fairyhunter13/inventory-manager/internal/client"
	"github.com/fairyhunter13/inventory-manager/internal/collection"
	"github.com/fairyhunter13/inventory-manager/internal/config"
	"github.com/fairyhunter13/inventory-manager/internal/inventory"
	"github.com/fairyhunter13/inventory-manager/internal/model"
	"github.com/fairyhunter13/inventory-manager/internal/obs"
)

const (
	ExitSuccess           = 0
	ExitRemoteFailure     = 1
	ExitInvalidInvocation = 2
)

const usage = `usage: inventoryctl [flags] <command> <resource> [args]

commands:
  list   <resource>
  get    <resource> <id>
  create <resource> <json>
  update <resource> <id> <json>
  delete <resource> <id>

resources: products, categories
`

// InvocationError reports a malformed command line.
type InvocationError struct {
	Message string
}

func (e *InvocationError) Error() string { return e.Message }

func invalidf(format string, args ...any) error {
	return &InvocationError{Message: fmt.Sprintf(format, args...)}
}

// Invocation is a parsed command line.
type Invocation struct {
	APIURL    string
	Timeout   time.Duration
	RequestID string
	LogLevel  string
	Command   string
	Resource  string
	ID        string
	Payload   *model.Document
}

// ParseInvocation parses args over defaults taken from cfg.
func ParseInvocation(args []string, cfg config.Config) (Invocation, error) {
	fs := flag.NewFlagSet("inventoryctl", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	inv := Invocation{}
	fs.StringVar(&inv.APIURL, "api-url", cfg.APIBaseURL, "API base URL")
	fs.DurationVar(&inv.Timeout, "timeout", cfg.ClientTimeout, "per-request timeout")
	fs.StringVar(&inv.RequestID, "request-id", "", "X-Request-Id sent with every request")
	fs.StringVar(&inv.LogLevel, "log-level", "error", "log level for diagnostics on stderr")
	if err := fs.Parse(args); err != nil {
		return Invocation{}, invalidf("%v", err)
	}
	rest := fs.Args()
	if len(rest) < 2 {
		return Invocation{}, invalidf("missing command or resource")
	}
	inv.Command, inv.Resource = rest[0], rest[1]
	if inv.Resource != model.ResourceProducts && inv.Resource != model.ResourceCategories {
		return Invocation{}, invalidf("unknown resource %q", inv.Resource)
	}
	if inv.APIURL == "" {
		return Invocation{}, invalidf("-api-url or API_URL is required")
	}
	operands := rest[2:]
	want := map[string]int{"list": 0, "get": 1, "create": 1, "update": 2, "delete": 1}
	n, ok := want[inv.Command]
	if !ok {
		return Invocation{}, invalidf("unknown command %q", inv.Command)
	}
	if len(operands) != n {
		return Invocation{}, invalidf("%s expects %d argument(s), got %d", inv.Command, n, len(operands))
	}
	switch inv.Command {
	case "get", "update", "delete":
		inv.ID = operands[0]
		if strings.TrimSpace(inv.ID) == "" {
			return Invocation{}, invalidf("empty id")
		}
	}
	switch inv.Command {
	case "create":
		doc, err := parsePayload(operands[0])
		if err != nil {
			return Invocation{}, err
		}
		inv.Payload = doc
	case "update":
		doc, err := parsePayload(operands[1])
		if err != nil {
			return Invocation{}, err
		}
		inv.Payload = doc
	}
	return inv, nil
}

func parsePayload(s string) (*model.Document, error) {
	v, err := model.Decode([]byte(s))
	if err != nil {
		return nil, invalidf("payload: %v", err)
	}
	doc, ok := v.(*model.Document)
	if !ok {
		return nil, invalidf("payload must be a JSON object")
	}
	return doc, nil
}

// Run executes args and returns the process exit code.
func Run(ctx context.Context, args []string, cfg config.Config, stdout, stderr io.Writer) int {
	inv, err := ParseInvocation(args, cfg)
	if err != nil {
		fmt.Fprintln(stderr, err)
		fmt.Fprint(stderr, usage)
		return ExitInvalidInvocation
	}
	obs.InitLoggerTo(stderr, inv.LogLevel)

	c := client.New(inv.APIURL, client.WithTimeout(inv.Timeout))
	app := inventory.New(c)
	coll, err := app.Resource(inv.Resource)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return ExitInvalidInvocation
	}
	if inv.RequestID != "" {
		ctx = client.WithRequestID(ctx, inv.RequestID)
	}

	out, err := execute(ctx, inv, coll)
	if err != nil {
		fmt.Fprintln(stderr, describe(err))
		return ExitRemoteFailure
	}
	b, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		fmt.Fprintln(stderr, err)
		return ExitRemoteFailure
	}
	fmt.Fprintln(stdout, string(b))
	return ExitSuccess
}

var errNotListed = errors.New("not found")

func execute(ctx context.Context, inv Invocation, coll *collection.Collection) (any, error) {
	switch inv.Command {
	case "list":
		if err := coll.Load(ctx); err != nil {
			return nil, err
		}
		return coll.List(), nil
	case "get":
		if err := coll.Load(ctx); err != nil {
			return nil, err
		}
		doc, ok := coll.Find(inv.ID)
		if !ok {
			return nil, fmt.Errorf("%s %s: %w", inv.Resource, inv.ID, errNotListed)
		}
		return doc, nil
	case "create":
		doc, err := coll.Create(ctx, inv.Payload)
		if err != nil {
			return nil, err
		}
		if doc == nil {
			return coll.List(), nil
		}
		return doc, nil
	case "update":
		doc, err := coll.Update(ctx, inv.ID, inv.Payload)
		if err != nil {
			return nil, err
		}
		if doc == nil {
			return coll.List(), nil
		}
		return doc, nil
	case "delete":
		if _, err := coll.Remove(ctx, inv.ID); err != nil {
			return nil, err
		}
		return model.DocumentOf("deleted", inv.ID), nil
	}
	return nil, invalidf("unknown command %q", inv.Command)
}

func describe(err error) string {
	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		return fmt.Sprintf("error: server answered %d: %s", apiErr.Status, apiErr.Message)
	}
	return "error: " + err.Error()
}
