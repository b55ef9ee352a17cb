// Command subscribe drives one platform adapter from a shell:
//
//	subscribe -platform brevo -email jo@example.com
//	subscribe -platform mailjet -unsubscribe -email jo@example.com
//	subscribe -platform brevo -template 12 -to "Jo <jo@example.com>" -var CODE=X
//	subscribe -platforms
//
// Credentials come from -key/-secret/-list or SUBSCRIBEME_<PLATFORM>_API_KEY,
// _API_SECRET and _LIST_ID (a .env file is honored).
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/mail"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/rezozero/subscribeme/internal/pkg/httpretry"
	"github.com/rezozero/subscribeme/internal/pkg/logger"
	"github.com/rezozero/subscribeme/pkg/subscriber"
)

type listFlag []string

func (l *listFlag) String() string { return strings.Join(*l, ",") }

func (l *listFlag) Set(v string) error {
	*l = append(*l, v)
	return nil
}

type options struct {
	platform    string
	email       string
	key         string
	secret      string
	list        string
	unsubscribe bool
	template    string
	to          listFlag
	vars        listFlag
	opts        listFlag
	listNames   bool
	timeout     time.Duration
}

func parseOptions(args []string, stderr io.Writer) (*options, error) {
	fs := flag.NewFlagSet("subscribe", flag.ContinueOnError)
	fs.SetOutput(stderr)

	o := &options{}
	fs.StringVar(&o.platform, "platform", "", "platform name (see -platforms)")
	fs.StringVar(&o.email, "email", "", "address to subscribe or unsubscribe")
	fs.StringVar(&o.key, "key", "", "API key")
	fs.StringVar(&o.secret, "secret", "", "API secret")
	fs.StringVar(&o.list, "list", "", "contact list id")
	fs.BoolVar(&o.unsubscribe, "unsubscribe", false, "remove -email instead of adding it")
	fs.StringVar(&o.template, "template", "", "send this transactional template instead of subscribing")
	fs.Var(&o.to, "to", "transactional recipient, repeatable (\"Name <email>\" or email)")
	fs.Var(&o.vars, "var", "template variable KEY=VALUE, repeatable")
	fs.Var(&o.opts, "opt", "subscribe option KEY=VALUE, repeatable")
	fs.BoolVar(&o.listNames, "platforms", false, "list supported platform names and exit")
	fs.DurationVar(&o.timeout, "timeout", 30*time.Second, "overall timeout")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if o.listNames {
		return o, nil
	}
	if o.platform == "" {
		return nil, errors.New("-platform is required")
	}
	if o.template == "" && o.email == "" {
		return nil, errors.New("-email is required")
	}
	if o.template != "" && len(o.to) == 0 {
		return nil, errors.New("-to is required with -template")
	}
	return o, nil
}

// applyEnv fills unset credentials from SUBSCRIBEME_<PLATFORM>_*.
func (o *options) applyEnv() {
	prefix := "SUBSCRIBEME_" + strings.ToUpper(strings.ReplaceAll(o.platform, "-", "_")) + "_"
	if o.key == "" {
		o.key = os.Getenv(prefix + "API_KEY")
	}
	if o.secret == "" {
		o.secret = os.Getenv(prefix + "API_SECRET")
	}
	if o.list == "" {
		o.list = os.Getenv(prefix + "LIST_ID")
	}
}

func keyValues(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]any, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("expected KEY=VALUE, got %q", p)
		}
		out[k] = v
	}
	return out, nil
}

func recipients(raw []string) ([]subscriber.EmailAddress, error) {
	out := make([]subscriber.EmailAddress, 0, len(raw))
	for _, r := range raw {
		addr, err := mail.ParseAddress(r)
		if err != nil {
			return nil, fmt.Errorf("recipient %q: %w", r, err)
		}
		ea, err := subscriber.NewEmailAddress(addr.Address, addr.Name)
		if err != nil {
			return nil, err
		}
		out = append(out, ea)
	}
	return out, nil
}

func run(ctx context.Context, o *options, doer subscriber.HTTPDoer, stdout io.Writer) error {
	if o.listNames {
		for _, name := range subscriber.Platforms() {
			fmt.Fprintln(stdout, name)
		}
		return nil
	}

	s, err := subscriber.NewFactory(doer).CreateFor(o.platform)
	if err != nil {
		return err
	}
	s.SetAPIKey(o.key).SetAPISecret(o.secret).SetContactListID(o.list)

	runID := uuid.New().String()
	logger.Debug("running", "run_id", runID, "platform", s.Platform())

	switch {
	case o.template != "":
		to, err := recipients(o.to)
		if err != nil {
			return err
		}
		vars, err := keyValues(o.vars)
		if err != nil {
			return err
		}
		body, err := s.SendTransactionalEmail(ctx, to, o.template, vars)
		if err != nil {
			return err
		}
		fmt.Fprintln(stdout, body)

	case o.unsubscribe:
		removed, err := s.Unsubscribe(ctx, o.email)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "removed=%t\n", removed)

	default:
		extra, err := keyValues(o.opts)
		if err != nil {
			return err
		}
		result, err := s.Subscribe(ctx, o.email, extra)
		if err != nil {
			return err
		}
		if result.HasContactID() {
			fmt.Fprintf(stdout, "subscribed=true contact_id=%d\n", result.ContactID)
		} else {
			fmt.Fprintf(stdout, "subscribed=%t\n", result.Subscribed)
		}
	}
	logger.Debug("done", "run_id", runID)
	return nil
}

func main() {
	_ = godotenv.Load()
	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		logger.SetLevel(logger.ParseLevel(lvl))
	}

	o, err := parseOptions(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "subscribe: %v\n", err)
		os.Exit(2)
	}
	o.applyEnv()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	doer := httpretry.NewRetryClient(nil, httpretry.Options{Timeout: o.timeout})
	if err := run(ctx, o, doer, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "subscribe: %v\n", err)
		os.Exit(1)
	}
}
