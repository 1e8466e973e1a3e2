// Package server runs the line-delimited message loop: it announces the
// server's capabilities, then answers each function call on its input
// with exactly one response carrying the caller's id.
package server

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/bdubs00/pscale-context-server/internal/audit"
	"github.com/bdubs00/pscale-context-server/internal/backend"
	"github.com/bdubs00/pscale-context-server/internal/catalog"
	"github.com/bdubs00/pscale-context-server/internal/policy"
	"github.com/bdubs00/pscale-context-server/internal/protocol"
)

const maxLineSize = 16 * 1024 * 1024

// UnsupportedMessage is the error text for any inbound non-call payload.
const UnsupportedMessage = "Unsupported message type"

// Options configures a Server. Zero values are usable.
type Options struct {
	Name        string
	Description string
	Engine      *policy.Engine
	Audit       *audit.Logger
	Logger      *zap.Logger
	DryRun      bool // evaluate the policy but run denied calls anyway
}

// Server dispatches function calls to a backend, one line at a time.
type Server struct {
	backend backend.Backend
	engine  *policy.Engine
	audit   *audit.Logger
	logger  *zap.Logger
	dryRun  bool
	caps    catalog.Capabilities
	calls   int
}

// New creates a Server over b.
func New(b backend.Backend, opts Options) *Server {
	engine := opts.Engine
	if engine == nil {
		engine = policy.NewEngine(nil)
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		backend: b,
		engine:  engine,
		audit:   opts.Audit,
		logger:  logger,
		dryRun:  opts.DryRun,
		caps:    catalog.NewCapabilities(opts.Name, opts.Description, engine.Advertised(catalog.Operations())),
	}
}

// Capabilities returns the payload of the startup announcement.
func (s *Server) Capabilities() catalog.Capabilities {
	return s.caps
}

// Calls reports how many function calls have been dispatched.
func (s *Server) Calls() int {
	return s.calls
}

// Serve announces capabilities on w, then processes r line by line until
// end of input, which returns nil. Read, write and encode failures are
// returned. ctx is checked between lines and passed to the backend.
func (s *Server) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	if err := send(w, protocol.NewResponse(protocol.ServerID, s.caps)); err != nil {
		return fmt.Errorf("sending capabilities: %w", err)
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		resp, ok := s.handleLine(ctx, scanner.Bytes())
		if !ok {
			continue
		}
		if err := send(w, resp); err != nil {
			return fmt.Errorf("sending response %q: %w", resp.ID, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading input: %w", err)
	}
	return nil
}

// handleLine decodes and dispatches one line. ok is false when the line
// could not be decoded and no response is owed.
func (s *Server) handleLine(ctx context.Context, line []byte) (resp protocol.Message, ok bool) {
	msg, err := protocol.ParseMessage(line)
	if err != nil {
		s.logger.Warn("failed to parse message", zap.Error(err))
		return protocol.Message{}, false
	}

	if call, isCall := msg.Content.(protocol.FunctionCall); isCall {
		return s.handleCall(ctx, msg.ID, call), true
	}
	s.logger.Debug("rejected non-call message",
		zap.String("id", msg.ID),
		zap.String("type", string(msg.Content.Type())),
	)
	return protocol.NewError(msg.ID, UnsupportedMessage), true
}

// handleCall runs one function call and wraps its outcome.
func (s *Server) handleCall(ctx context.Context, id string, call protocol.FunctionCall) protocol.Message {
	s.calls++
	start := time.Now()
	event := audit.CallEvent{
		RequestID: id,
		Function:  call.Name,
		Arguments: call.Arguments,
	}

	result, err := s.invoke(ctx, call, &event)

	event.DurationMs = time.Since(start).Milliseconds()
	if err != nil {
		event.Error = err.Error()
		if event.Outcome == "" {
			event.Outcome = audit.OutcomeError
		}
	} else {
		event.Outcome = audit.OutcomeOK
	}
	if s.audit != nil {
		s.audit.LogCall(event)
	}

	if err != nil {
		return protocol.NewError(id, err.Error())
	}
	return protocol.NewResponse(id, result)
}

// invoke looks up, validates, authorizes and executes call, recording the
// policy decision on event.
func (s *Server) invoke(ctx context.Context, call protocol.FunctionCall, event *audit.CallEvent) (any, error) {
	op, ok := catalog.Lookup(call.Name)
	if !ok {
		return nil, &catalog.UnknownFunctionError{Name: call.Name}
	}

	args, err := op.Validate(call)
	if err != nil {
		return nil, err
	}

	decision := s.engine.Evaluate(op.Name, args)
	event.Decision = "deny"
	if decision.Allow {
		event.Decision = "allow"
	}
	event.Rule = decision.MatchedRule
	event.Reason = decision.Reason

	if !decision.Allow && !s.dryRun {
		event.Outcome = audit.OutcomeDeny
		return nil, &DeniedError{Function: op.Name, Reason: decision.Reason}
	}

	result, err := s.backend.Execute(ctx, op.Name, args)
	if err != nil {
		s.logger.Warn("backend call failed",
			zap.String("function", op.Name),
			zap.Error(err),
		)
		return nil, err
	}
	return result, nil
}

// DeniedError is returned when the access policy rejects a call.
type DeniedError struct {
	Function string
	Reason   string
}

func (e *DeniedError) Error() string {
	return e.Function + " denied by policy: " + e.Reason
}

func send(w io.Writer, msg protocol.Message) error {
	line, err := protocol.Encode(msg)
	if err != nil {
		return err
	}
	_, err = w.Write(line)
	return err
}
