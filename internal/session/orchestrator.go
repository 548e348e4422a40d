package session

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/brifyai/pautapro/internal/document"
	"github.com/brifyai/pautapro/internal/extract"
	"github.com/brifyai/pautapro/internal/intent"
	"github.com/brifyai/pautapro/internal/model"
	"github.com/brifyai/pautapro/internal/monitoring"
	"github.com/brifyai/pautapro/internal/order"
	"github.com/brifyai/pautapro/internal/resolve"
	"github.com/brifyai/pautapro/internal/store"
)

// EntityResolver maps extracted names to persisted records.
type EntityResolver interface {
	ResolveOrderEntities(ctx context.Context, e model.ExtractedEntities, s model.OrderStructure) (model.ResolutionOutcome, error)
}

// Notifier delivers operator alerts.
type Notifier interface {
	Notify(ctx context.Context, a monitoring.Alert)
}

// Config bounds the backend stages of a turn. Zero means no timeout.
type Config struct {
	ResolveTimeout  time.Duration
	CommitTimeout   time.Duration
	DocumentTimeout time.Duration
}

// Deps are the collaborators of an Orchestrator. Metrics and Alerts are
// optional.
type Deps struct {
	Extractor  *extract.Extractor
	Classifier *intent.Classifier
	Resolver   EntityResolver
	Store      store.RecordStore
	Documents  document.Generator
	Metrics    *monitoring.Metrics
	Alerts     Notifier
}

// Orchestrator drives sessions through the order flow.
type Orchestrator struct {
	extractor  *extract.Extractor
	classifier *intent.Classifier
	resolver   EntityResolver
	store      store.RecordStore
	docs       document.Generator
	metrics    *monitoring.Metrics
	alerts     Notifier
	cfg        Config
	now        func() time.Time
}

// NewOrchestrator wires an orchestrator. A nil Extractor or Classifier is
// replaced by the default one.
func NewOrchestrator(d Deps, cfg Config) *Orchestrator {
	if d.Extractor == nil {
		d.Extractor = extract.New()
	}
	if d.Classifier == nil {
		d.Classifier = intent.NewClassifier(intent.DefaultLexicon())
	}
	return &Orchestrator{
		extractor:  d.Extractor,
		classifier: d.Classifier,
		resolver:   d.Resolver,
		store:      d.Store,
		docs:       d.Documents,
		metrics:    d.Metrics,
		alerts:     d.Alerts,
		cfg:        cfg,
		now:        time.Now,
	}
}

// Reply is the outcome of one turn.
type Reply struct {
	SessionID   string              `json:"session_id"`
	Intent      intent.Intent       `json:"intent"`
	State       State               `json:"state"`
	Message     string              `json:"message"`
	Instruction *InstructionResult  `json:"instruction,omitempty"`
	Pending     *model.PendingOrder `json:"pending,omitempty"`
	Commit      *CommitResult       `json:"commit,omitempty"`
}

// InstructionResult is the extraction and validation view of one
// instruction. Structure is set only when the instruction is valid.
type InstructionResult struct {
	Success    bool                    `json:"success"`
	Entities   model.ExtractedEntities `json:"entities"`
	Structure  *model.OrderStructure   `json:"structure,omitempty"`
	Validation model.ValidationResult  `json:"validation"`
	Confidence int                     `json:"confidence"`
	Message    string                  `json:"message"`
}

// ProcessInstruction extracts and validates text without touching the
// store. It never fails: an incomplete instruction yields Success=false
// and a message with one suggestion per missing field.
func (o *Orchestrator) ProcessInstruction(text string) InstructionResult {
	e := o.extractor.Extract(text)
	v := extract.Validate(e)

	res := InstructionResult{
		Success:    v.Valid,
		Entities:   e,
		Validation: v,
		Confidence: v.Confidence,
		Message:    extractionMessage(v, e),
	}
	if v.Valid {
		s := order.Build(e, o.now())
		res.Structure = &s
	}
	return res
}

// Handle runs one turn of s. While an order is pending the text is read as
// a decision; anything that is neither a confirmation nor a cancellation
// re-prompts and keeps the order. Otherwise the ordered intent rules pick
// the action.
func (o *Orchestrator) Handle(ctx context.Context, s *Session, text string) Reply {
	s.turn.Lock()
	defer s.turn.Unlock()
	s.touch(o.now())

	var r Reply
	if s.peekPending() != nil {
		r = o.decide(ctx, s, text)
	} else {
		r = o.dispatch(ctx, s, text)
	}

	r.SessionID = s.ID
	r.State = s.State()
	if r.Pending == nil {
		r.Pending = s.Pending()
	}
	o.metrics.RecordTurn(string(r.Intent))
	zap.L().Debug("session: turn handled",
		zap.String("session_id", s.ID),
		zap.String("intent", string(r.Intent)),
		zap.String("state", string(r.State)),
	)
	return r
}

func (o *Orchestrator) decide(ctx context.Context, s *Session, text string) Reply {
	switch o.classifier.Decide(text) {
	case intent.DecisionConfirm:
		c := o.execute(ctx, s)
		return Reply{Intent: intent.Confirm, Message: c.Message, Commit: &c}
	case intent.DecisionCancel:
		return Reply{Intent: intent.Cancel, Message: o.cancel(s)}
	default:
		return Reply{Intent: intent.Unknown, Message: MsgSlotOccupied}
	}
}

func (o *Orchestrator) dispatch(ctx context.Context, s *Session, text string) Reply {
	switch in := o.classifier.Classify(text); in {
	case intent.CreateOrder:
		if !o.classifier.LooksComplete(text) {
			// The gate is a cheap heuristic; fall back to real extraction
			// before asking for more detail.
			res := o.ProcessInstruction(text)
			if !res.Success {
				s.setState(StateIdle)
				return Reply{Intent: in, Message: res.Message, Instruction: &res}
			}
		}
		return o.processComplex(ctx, s, text)
	case intent.Confirm:
		s.setState(StateIdle)
		return Reply{Intent: in, Message: MsgNothingPending}
	case intent.Cancel:
		s.setState(StateIdle)
		return Reply{Intent: in, Message: MsgNothingToCancel}
	case intent.Help:
		s.setState(StateIdle)
		return Reply{Intent: in, Message: MsgHelp}
	default:
		s.setState(StateIdle)
		return Reply{Intent: intent.Unknown, Message: MsgUnknown}
	}
}

// ProcessComplexOrder runs extraction, validation and resolution and, when
// everything resolves, stores the prepared order in the session's slot. It
// refuses to run while an order is already pending.
func (o *Orchestrator) ProcessComplexOrder(ctx context.Context, s *Session, text string) Reply {
	s.turn.Lock()
	defer s.turn.Unlock()
	s.touch(o.now())

	r := o.processComplex(ctx, s, text)
	r.SessionID = s.ID
	r.State = s.State()
	return r
}

func (o *Orchestrator) processComplex(ctx context.Context, s *Session, text string) Reply {
	if s.peekPending() != nil {
		return Reply{Intent: intent.CreateOrder, Message: MsgSlotOccupied, Pending: s.Pending()}
	}

	s.setState(StateExtracting)
	res := o.ProcessInstruction(text)
	if !res.Success {
		s.setState(StateIdle)
		return Reply{Intent: intent.CreateOrder, Message: res.Message, Instruction: &res}
	}

	s.setState(StateResolving)
	rctx, cancel := withTimeout(ctx, o.cfg.ResolveTimeout)
	start := o.now()
	outcome, err := o.resolver.ResolveOrderEntities(rctx, res.Entities, *res.Structure)
	timedOut := errors.Is(rctx.Err(), context.DeadlineExceeded)
	cancel()

	if err != nil {
		o.metrics.ObserveResolve("fault", o.now().Sub(start))
		stage := "resolve"
		var be *resolve.BackendError
		if errors.As(err, &be) {
			stage = be.Stage
		}
		o.metrics.RecordBackendFault(stage)
		o.notify(ctx, monitoring.BackendFault(stage, s.ID, err))
		zap.L().Error("session: resolution failed",
			zap.String("session_id", s.ID),
			zap.String("stage", stage),
			zap.Bool("timed_out", timedOut),
			zap.Error(err),
		)
		s.setState(StateIdle)
		msg := resolve.MsgBackendFault
		if timedOut {
			msg = MsgResolveTimedOut
		}
		return Reply{Intent: intent.CreateOrder, Message: msg, Instruction: &res}
	}

	if !outcome.OK() {
		o.metrics.ObserveResolve("not_found", o.now().Sub(start))
		s.setState(StateIdle)
		return Reply{Intent: intent.CreateOrder, Message: resolutionMessage(outcome.Errors), Instruction: &res}
	}
	o.metrics.ObserveResolve("ok", o.now().Sub(start))

	p := &model.PendingOrder{
		Structure: resolve.PrepareOrderStructure(*res.Structure, outcome),
		Entities:  res.Entities,
		Resolved:  outcome,
		CreatedAt: o.now().UTC(),
	}
	s.setPending(p)

	zap.L().Info("session: order awaiting confirmation",
		zap.String("session_id", s.ID),
		zap.Int64("cliente_id", outcome.Cliente.ID),
		zap.Int64("campana_id", outcome.Campana.ID),
		zap.Bool("campana_created", outcome.Campana.Created),
	)
	return Reply{Intent: intent.CreateOrder, Message: pendingSummary(p), Instruction: &res}
}

// CancelPendingOrder clears the slot without writing to the store.
func (o *Orchestrator) CancelPendingOrder(s *Session) string {
	s.turn.Lock()
	defer s.turn.Unlock()
	s.touch(o.now())
	return o.cancel(s)
}

func (o *Orchestrator) cancel(s *Session) string {
	if s.peekPending() == nil {
		return MsgNothingToCancel
	}
	s.clearPending(StateCancelled)
	o.metrics.RecordOrder("cancelled")
	zap.L().Info("session: pending order cancelled", zap.String("session_id", s.ID))
	return MsgCancelled
}

// notify sends an alert detached from the turn's cancellation.
func (o *Orchestrator) notify(ctx context.Context, a monitoring.Alert) {
	if o.alerts == nil {
		return
	}
	o.alerts.Notify(context.WithoutCancel(ctx), a)
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
