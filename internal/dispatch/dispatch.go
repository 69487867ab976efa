// Package dispatch turns inbound command text into exactly one reply.
package dispatch

import (
	"context"
	"errors"

	"github.com/hfi/postlink-bot/internal/command"
	"github.com/hfi/postlink-bot/internal/metrics"
	"github.com/rs/zerolog"
)

// Command outcomes recorded in logs and metrics.
const (
	OutcomeStart      = "start"
	OutcomeResolved   = "resolved"
	OutcomeOutOfRange = "out_of_range"
	OutcomeDenied     = "denied"
	OutcomeUsage      = "usage"
	OutcomeSaved      = "saved"
	OutcomeSaveFailed = "save_failed"
)

// Request is one inbound message.
type Request struct {
	CallerID int64
	Text     string
}

// Response is the single outbound reply to a Request.
type Response struct {
	Text    string
	Outcome string
}

// Parser parses command text
type Parser interface {
	Parse(text string) command.Command
}

// Authorizer gates privileged commands
type Authorizer interface {
	IsAuthorized(caller int64) bool
}

// Resolver answers link lookups
type Resolver interface {
	Resolve(n int) string
}

// LinkWriter registers overrides
type LinkWriter interface {
	Set(ctx context.Context, n int, url string) error
}

// Dispatcher ties parsing, authorization and the link store together.
// It keeps no state between requests.
type Dispatcher struct {
	parser   Parser
	auth     Authorizer
	resolver Resolver
	links    LinkWriter
	maxPost  int
	logger   zerolog.Logger
}

// New creates a dispatcher accepting post numbers in 1..maxPost.
func New(parser Parser, auth Authorizer, resolver Resolver, links LinkWriter, maxPost int, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		parser:   parser,
		auth:     auth,
		resolver: resolver,
		links:    links,
		maxPost:  maxPost,
		logger:   logger.With().Str("component", "dispatch").Logger(),
	}
}

// Handle processes one request. The bool result is false when the text is
// not a recognized command and nothing should be sent back.
func (d *Dispatcher) Handle(ctx context.Context, req Request) (Response, bool) {
	cmd := d.parser.Parse(req.Text)

	var resp Response
	switch cmd.Kind {
	case command.Start:
		resp = Response{Text: StartMessage, Outcome: OutcomeStart}
	case command.Lookup:
		resp = d.lookup(cmd)
	case command.Upload:
		resp = d.upload(ctx, req.CallerID, cmd)
	default:
		metrics.IgnoredMessagesTotal.Inc()
		return Response{}, false
	}

	metrics.RecordCommand(cmd.Kind.String(), resp.Outcome)
	d.logger.Info().
		Int64("caller", req.CallerID).
		Str("command", cmd.Kind.String()).
		Str("outcome", resp.Outcome).
		Msg("command handled")

	return resp, true
}

func (d *Dispatcher) lookup(cmd command.Command) Response {
	if !d.inRange(cmd.PostNumber) {
		return Response{Text: BoundsMessage(d.maxPost), Outcome: OutcomeOutOfRange}
	}
	return Response{Text: d.resolver.Resolve(cmd.PostNumber), Outcome: OutcomeResolved}
}

func (d *Dispatcher) upload(ctx context.Context, caller int64, cmd command.Command) Response {
	if !d.auth.IsAuthorized(caller) {
		return Response{Text: UnauthorizedMessage, Outcome: OutcomeDenied}
	}

	switch {
	case errors.Is(cmd.Err, command.ErrNotDigits):
		return Response{Text: NotDigitsMessage, Outcome: OutcomeUsage}
	case cmd.Err != nil:
		return Response{Text: UsageMessage, Outcome: OutcomeUsage}
	}

	if !d.inRange(cmd.PostNumber) {
		return Response{Text: BoundsMessage(d.maxPost), Outcome: OutcomeOutOfRange}
	}

	if err := d.links.Set(ctx, cmd.PostNumber, cmd.URL); err != nil {
		d.logger.Error().Err(err).Int64("caller", caller).Int("post", cmd.PostNumber).Msg("override not saved")
		return Response{Text: SaveFailedMessage(cmd.PostNumber), Outcome: OutcomeSaveFailed}
	}

	return Response{Text: SavedMessage(cmd.PostNumber), Outcome: OutcomeSaved}
}

func (d *Dispatcher) inRange(n int) bool {
	return n >= 1 && n <= d.maxPost
}
