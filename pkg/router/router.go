// Package router turns platform events into command and session handler
// calls. Invocations are looked up in the command registry and gated; component
// events are decoded from their correlation token and routed by kind.
package router

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/sagebot/sage/pkg/capability"
	"github.com/sagebot/sage/pkg/commands"
	"github.com/sagebot/sage/pkg/interaction"
	"github.com/sagebot/sage/pkg/logger"
	"github.com/sagebot/sage/pkg/ratelimit"
	"github.com/sagebot/sage/pkg/token"
)

type Outcome int

const (
	// OutcomeHandled means a handler ran and returned without error.
	OutcomeHandled Outcome = iota
	// OutcomeRejected means the invocation was refused before dispatch.
	OutcomeRejected
	// OutcomeDiscarded means a component event was dropped without reply.
	OutcomeDiscarded
	// OutcomeFailed means the handler returned an error or panicked.
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeHandled:
		return "handled"
	case OutcomeRejected:
		return "rejected"
	case OutcomeDiscarded:
		return "discarded"
	case OutcomeFailed:
		return "failed"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Result describes what happened to one event.
type Result struct {
	Outcome Outcome
	Command string
	// Reason is a short machine-friendly rejection or discard cause.
	Reason string
	Err    error
}

// Denial and failure replies.
const (
	MsgUnknownCommand = "I don't know that command."
	MsgDisabled       = "This command is currently disabled."
	MsgGuildOnly      = "This command can only be used in a server."
	MsgForbidden      = "You don't have permission to use this command."
	MsgRateLimited    = "Slow down! Try again in a moment."
	MsgFailure        = "Something went wrong while running that command."
)

// ComponentHandler serves component events for one token kind.
type ComponentHandler func(ctx context.Context, tok token.Token, ev interaction.Component) error

// Router dispatches invocations and component events. It is safe for
// concurrent use.
type Router struct {
	reg     *commands.Registry
	limiter *ratelimit.Limiter

	mu         sync.RWMutex
	components map[token.Kind]ComponentHandler
}

// New creates a router over reg. limiter may be nil.
func New(reg *commands.Registry, limiter *ratelimit.Limiter) *Router {
	return &Router{
		reg:        reg,
		limiter:    limiter,
		components: make(map[token.Kind]ComponentHandler),
	}
}

// RegisterComponentHandler routes component events of kind to h, replacing
// any previous handler.
func (r *Router) RegisterComponentHandler(kind token.Kind, h ComponentHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.components[kind] = h
}

func (r *Router) componentHandler(kind token.Kind) (ComponentHandler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.components[kind]
	return h, ok
}

// HandleInvocation gates and dispatches a slash-command invocation. Every
// rejection is answered exactly once with an ephemeral reply.
func (r *Router) HandleInvocation(ctx context.Context, inv interaction.Invocation) Result {
	eventID := uuid.NewString()
	name := inv.CommandName()
	actor := inv.Actor()

	fields := map[string]any{
		"event_id": eventID,
		"command":  name,
		"user_id":  actor.ID,
	}

	desc, ok := r.reg.Find(name)
	if !ok {
		return r.reject(ctx, inv, fields, "unknown_command", MsgUnknownCommand)
	}
	if !desc.Enabled {
		return r.reject(ctx, inv, fields, "disabled", MsgDisabled)
	}
	if desc.GuildOnly && inv.GuildID() == "" {
		return r.reject(ctx, inv, fields, "guild_only", MsgGuildOnly)
	}
	if !capability.CanInvoke(inv.Capabilities(), desc.RequiredRoles) {
		return r.reject(ctx, inv, fields, "forbidden", MsgForbidden)
	}
	if !r.limiter.Allow(actor.ID) {
		return r.reject(ctx, inv, fields, "rate_limited", MsgRateLimited)
	}
	if desc.Handler == nil {
		return r.reject(ctx, inv, fields, "no_handler", MsgUnknownCommand)
	}

	logger.DebugCF("router", "Dispatching command", fields)

	tracked := &trackedInvocation{Invocation: inv}
	err := safeCall(func() error { return desc.Handler(ctx, tracked) })
	if err == nil {
		return Result{Outcome: OutcomeHandled, Command: name}
	}

	logger.ErrorCF("router", "Command handler failed", failureFields(fields, err))

	reply := inv.Reply
	if tracked.replied.Load() {
		reply = inv.FollowUp
	}
	if rerr := reply(ctx, interaction.Ephemeral(MsgFailure)); rerr != nil {
		logger.WarnCF("router", "Failed to report command failure", map[string]any{
			"event_id": eventID,
			"error":    rerr.Error(),
		})
	}
	return Result{Outcome: OutcomeFailed, Command: name, Err: err}
}

func (r *Router) reject(
	ctx context.Context,
	inv interaction.Invocation,
	fields map[string]any,
	reason, message string,
) Result {
	fields["reason"] = reason
	logger.InfoCF("router", "Command rejected", fields)

	res := Result{Outcome: OutcomeRejected, Command: inv.CommandName(), Reason: reason}
	if err := inv.Reply(ctx, interaction.Ephemeral(message)); err != nil {
		logger.WarnCF("router", "Failed to send rejection", map[string]any{
			"event_id": fields["event_id"],
			"error":    err.Error(),
		})
		res.Err = err
	}
	return res
}

// HandleComponent decodes the event's correlation token and hands it to the
// handler registered for its kind. Undecodable or unroutable events are
// dropped silently.
func (r *Router) HandleComponent(ctx context.Context, ev interaction.Component) Result {
	eventID := uuid.NewString()
	fields := map[string]any{
		"event_id":  eventID,
		"custom_id": ev.CustomID(),
		"user_id":   ev.Actor().ID,
	}

	tok, err := token.Decode(ev.CustomID())
	if err != nil {
		fields["error"] = err.Error()
		logger.DebugCF("router", "Discarding component event", fields)
		return Result{Outcome: OutcomeDiscarded, Reason: "undecodable", Err: err}
	}

	kind := string(tok.Kind)
	fields["kind"] = kind

	h, ok := r.componentHandler(tok.Kind)
	if !ok {
		logger.DebugCF("router", "No handler for component kind", fields)
		return Result{Outcome: OutcomeDiscarded, Command: kind, Reason: "no_handler"}
	}

	tracked := &trackedComponent{Component: ev}
	err = safeCall(func() error { return h(ctx, tok, tracked) })
	if err == nil {
		return Result{Outcome: OutcomeHandled, Command: kind}
	}

	logger.ErrorCF("router", "Component handler failed", failureFields(fields, err))

	if !tracked.responded.Load() {
		if rerr := ev.Reply(ctx, interaction.Ephemeral(MsgFailure)); rerr != nil {
			logger.WarnCF("router", "Failed to report component failure", map[string]any{
				"event_id": eventID,
				"error":    rerr.Error(),
			})
		}
	}
	return Result{Outcome: OutcomeFailed, Command: kind, Err: err}
}

// PanicError is returned in a Result when a handler panicked.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("handler panic: %v", e.Value)
}

// safeCall runs fn and converts a panic into a *PanicError.
func safeCall(fn func() error) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = &PanicError{Value: rec, Stack: debug.Stack()}
		}
	}()
	return fn()
}

func failureFields(fields map[string]any, err error) map[string]any {
	fields["error"] = err.Error()
	var pe *PanicError
	if errors.As(err, &pe) {
		fields["stack"] = string(pe.Stack)
	}
	return fields
}

// trackedInvocation records whether the handler already sent its initial
// reply, which decides how a failure is reported.
type trackedInvocation struct {
	interaction.Invocation
	replied atomic.Bool
}

func (t *trackedInvocation) Reply(ctx context.Context, resp interaction.Response) error {
	err := t.Invocation.Reply(ctx, resp)
	if err == nil {
		t.replied.Store(true)
	}
	return err
}

// trackedComponent records whether the event itself was answered. Editing the
// original message goes through the channel and does not count.
type trackedComponent struct {
	interaction.Component
	responded atomic.Bool
}

func (t *trackedComponent) Reply(ctx context.Context, resp interaction.Response) error {
	err := t.Component.Reply(ctx, resp)
	if err == nil {
		t.responded.Store(true)
	}
	return err
}

func (t *trackedComponent) Acknowledge(ctx context.Context) error {
	err := t.Component.Acknowledge(ctx)
	if err == nil {
		t.responded.Store(true)
	}
	return err
}
