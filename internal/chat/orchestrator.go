package chat

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/smarterpayouts/mint/internal/intent"
	"github.com/smarterpayouts/mint/internal/modal"
	"github.com/smarterpayouts/mint/internal/queue"
	"github.com/smarterpayouts/mint/internal/sched"
)

// DefaultTypingDelay is the simulated typing pause before each scripted
// assistant message.
const DefaultTypingDelay = 900 * time.Millisecond

// notifyTimeout bounds the out-of-band hand-off notification.
const notifyTimeout = 5 * time.Second

// ErrSessionClosed is returned by operations invoked after Close.
var ErrSessionClosed = errors.New("chat session is closed")

// Config configures an Orchestrator for one session.
type Config struct {
	// SessionID is the caller-supplied opaque session identifier. Generated
	// when empty.
	SessionID string

	// UserName is forwarded to the notification boundary on hand-off.
	UserName string

	// TypingDelay is the pause modeled before each scripted message.
	// Defaults to DefaultTypingDelay.
	TypingDelay time.Duration

	// MatchThreshold overrides the intent matcher threshold. Defaults to
	// intent.DefaultThreshold.
	MatchThreshold float64

	// Streaming selects the streaming completion path.
	Streaming bool

	// Queue configures the live-chat hand-off machine. Callbacks set here
	// are overridden by the orchestrator.
	Queue queue.Config
}

// Deps carries the orchestrator's collaborators. Store and Completer are
// required; the rest default sensibly when nil.
type Deps struct {
	Store     Store
	Completer Completer
	Notifier  Notifier
	Matcher   *intent.Matcher
	Scheduler sched.Scheduler
	Modals    *modal.Manager
	Logger    *zap.Logger

	// NewID generates message ids. Injected explicitly so sessions never
	// share generator state. Defaults to uuid.NewString.
	NewID func() string
}

// Orchestrator is the top-level conversation state machine for one session.
// It owns the message list and session context exclusively.
type Orchestrator struct {
	cfg       Config
	store     Store
	completer Completer
	notifier  Notifier
	matcher   *intent.Matcher
	scheduler sched.Scheduler
	modals    *modal.Manager
	logger    *zap.Logger
	newID     func() string

	// ctx spans the session; Close cancels it, abandoning any in-flight
	// completion call and pending typing delays.
	ctx    context.Context
	cancel context.CancelFunc

	// revealMu serializes scripted reveals so concurrent choice submissions
	// queue instead of interleaving.
	revealMu sync.Mutex

	mu       sync.Mutex
	messages []Message
	sctx     Context
	machine  *queue.Machine
	onTyping func(bool)
	closed   bool
}

// NewOrchestrator creates an orchestrator. Call Start to run the welcome
// script, and always Close when the chat surface goes away.
func NewOrchestrator(cfg Config, deps Deps) (*Orchestrator, error) {
	if deps.Store == nil {
		return nil, errors.New("transcript store is required")
	}
	if deps.Completer == nil {
		return nil, errors.New("completion service is required")
	}
	if cfg.SessionID == "" {
		cfg.SessionID = uuid.NewString()
	}
	if cfg.TypingDelay <= 0 {
		cfg.TypingDelay = DefaultTypingDelay
	}
	if cfg.MatchThreshold <= 0 {
		cfg.MatchThreshold = intent.DefaultThreshold
	}
	if deps.Scheduler == nil {
		deps.Scheduler = sched.New()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Matcher == nil {
		deps.Matcher = intent.NewMatcher(nil, deps.Logger)
	}
	if deps.Modals == nil {
		deps.Modals = modal.NewManager(deps.Logger)
	}
	if deps.NewID == nil {
		deps.NewID = uuid.NewString
	}

	ctx, cancel := context.WithCancel(context.Background())
	o := &Orchestrator{
		cfg:       cfg,
		store:     deps.Store,
		completer: deps.Completer,
		notifier:  deps.Notifier,
		matcher:   deps.Matcher,
		scheduler: deps.Scheduler,
		modals:    deps.Modals,
		logger:    deps.Logger.With(zap.String("session_id", cfg.SessionID)),
		newID:     deps.NewID,
		ctx:       ctx,
		cancel:    cancel,
		sctx:      NewContext(cfg.SessionID, deps.Scheduler.Now()),
	}
	return o, nil
}

// Start reveals the welcome script and presents the top-level choices.
func (o *Orchestrator) Start() error {
	o.revealMu.Lock()
	defer o.revealMu.Unlock()
	if o.isClosed() {
		return ErrSessionClosed
	}
	if err := o.reveal(greetingLines, greetingPrompt, &topLevelChoices); err != nil {
		return err
	}
	o.transition(StageChoice)
	return nil
}

// Messages returns a copy of the transcript so far.
func (o *Orchestrator) Messages() []Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]Message, len(o.messages))
	copy(out, o.messages)
	return out
}

// SessionContext returns a snapshot of the conversation context.
func (o *Orchestrator) SessionContext() Context {
	o.mu.Lock()
	defer o.mu.Unlock()
	snapshot := o.sctx
	snapshot.Collected = make(map[string]string, len(o.sctx.Collected))
	for k, v := range o.sctx.Collected {
		snapshot.Collected[k] = v
	}
	return snapshot
}

// OnTyping registers a callback toggled while the assistant is "typing"
// (awaiting the completion service).
func (o *Orchestrator) OnTyping(fn func(bool)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.onTyping = fn
}

// SubmitChoice handles one of the fixed top-level choices. The scripted
// branch is revealed strictly sequentially with a modeled typing delay
// before each message; the branch's final step is an interactive affordance.
// Unknown choice ids are logged and ignored, never surfaced as an error.
//
// Concurrent calls on the same session are serialized: a submission arriving
// while another is still revealing queues behind it.
func (o *Orchestrator) SubmitChoice(choiceID string) error {
	s, ok := choiceScripts[choiceID]
	if !ok {
		o.logger.Warn("unknown choice id, ignoring", zap.String("choice_id", choiceID))
		return nil
	}

	// The user echo, stage transition, and reveal form one serialized unit:
	// a submission arriving mid-reveal waits here rather than injecting its
	// echo or transition into the running branch.
	o.revealMu.Lock()
	defer o.revealMu.Unlock()

	if o.isClosed() {
		return ErrSessionClosed
	}

	o.appendMessage(SenderUser, KindText, choiceID, nil)
	o.transition(s.stage)

	if err := o.reveal(s.lines, channelAffordancePrompt, s.affordance); err != nil {
		return err
	}

	// Branch done; loop back so the user can pick again.
	o.transition(StageChoice)
	return nil
}

// SubmitFreeText handles arbitrary user input. The intent matcher runs
// first; a confident match answers from the canned category answer without
// touching the completion service. Otherwise the sanitized history is
// forwarded to the completion boundary. Service failures produce a single
// retry-free fallback message, never an error to the user.
func (o *Orchestrator) SubmitFreeText(ctx context.Context, text string) (Message, error) {
	if o.isClosed() {
		return Message{}, ErrSessionClosed
	}

	o.appendMessage(SenderUser, KindText, text, nil)

	if cat, ok := o.matcher.MatchWithThreshold(text, o.cfg.MatchThreshold); ok {
		o.logger.Debug("intent matched, answering locally", zap.String("category", cat.Name))
		return o.appendMessage(SenderAssistant, KindText, cat.Answer, nil), nil
	}

	history := o.completionHistory()

	o.setTyping(true)
	defer o.setTyping(false)

	// Completion is abandoned when the session ends, not just when the
	// caller gives up.
	cctx, cancelCompletion := context.WithCancel(o.ctx)
	defer cancelCompletion()
	stop := context.AfterFunc(ctx, cancelCompletion)
	defer stop()

	var reply string
	var err error
	if o.cfg.Streaming {
		reply, err = o.completer.CompleteStream(cctx, history, nil)
	} else {
		reply, err = o.completer.Complete(cctx, history)
	}
	if err != nil {
		o.logger.Error("completion service failed, sending fallback",
			zap.Error(err),
			zap.Int("history_len", len(history)),
		)
		return o.appendMessage(SenderAssistant, KindText, fallbackReply, nil), nil
	}

	return o.appendMessage(SenderAssistant, KindText, reply, nil), nil
}

// RequestHandoff routes the conversation to a human-mediated channel. The
// hand-off request is persisted before any user-visible confirmation; a
// persistence failure is reported to the operator log but never blocks the
// user-visible flow.
func (o *Orchestrator) RequestHandoff(ctx context.Context, channel Channel) error {
	if o.isClosed() {
		return ErrSessionClosed
	}

	confirmation, ok := handoffConfirmations[channel]
	if !ok {
		o.logger.Warn("unknown handoff channel, ignoring", zap.String("channel", string(channel)))
		return nil
	}

	o.transition(StageHandoff)

	now := o.scheduler.Now()
	redacted := redactMessages(o.Messages())
	req := HandOffRequest{
		ChatID:     o.cfg.SessionID,
		Timestamp:  now,
		Transcript: redacted,
	}

	// Persist before any confirmation is shown. Failures degrade
	// gracefully: the user still gets a local confirmation.
	if err := o.store.LogHandOffRequest(ctx, req); err != nil {
		o.logger.Error("failed to log handoff request",
			zap.String("chat_id", o.cfg.SessionID),
			zap.Error(err),
		)
	}
	if err := o.store.SaveTranscript(ctx, o.cfg.SessionID, redacted); err != nil {
		o.logger.Error("failed to save transcript on handoff",
			zap.String("chat_id", o.cfg.SessionID),
			zap.Error(err),
		)
	}

	if o.notifier != nil {
		notification := Notification{
			ChatID:    o.cfg.SessionID,
			UserName:  o.cfg.UserName,
			Timestamp: now,
		}
		go func() {
			nctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
			defer cancel()
			if err := o.notifier.NotifyHandOff(nctx, notification); err != nil {
				o.logger.Error("handoff notification failed",
					zap.String("chat_id", notification.ChatID),
					zap.Error(err),
				)
			}
		}()
	}

	o.appendMessage(SenderAssistant, KindText, confirmation, nil)

	if channel == ChannelLiveChat {
		o.startQueue()
		return nil
	}

	if err := o.modals.Open(modalChannel(channel)); err != nil {
		o.logger.Warn("failed to open modal channel", zap.Error(err))
	}
	return nil
}

// QueueState reports the live-chat queue snapshot, if a queue is running.
func (o *Orchestrator) QueueState() (queue.State, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.machine == nil {
		return queue.State{}, false
	}
	return o.machine.State(), true
}

// ModalChannel reports which modal surface is open.
func (o *Orchestrator) ModalChannel() modal.Channel {
	return o.modals.Current()
}

// Close tears the session down: pending timers are cancelled, the queue
// machine (if any) stops, in-flight completion calls are abandoned, and the
// transcript is persisted best-effort. Close is idempotent.
func (o *Orchestrator) Close(ctx context.Context) error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return nil
	}
	o.closed = true
	machine := o.machine
	o.machine = nil
	o.mu.Unlock()

	o.cancel()
	if machine != nil {
		machine.Teardown()
	}
	o.modals.Close()

	if err := o.store.SaveTranscript(ctx, o.cfg.SessionID, redactMessages(o.Messages())); err != nil {
		o.logger.Error("failed to persist transcript on close",
			zap.String("chat_id", o.cfg.SessionID),
			zap.Error(err),
		)
	}

	o.transition(StageTerminal)
	o.logger.Info("chat session closed")
	return nil
}

// startQueue spins up the hand-off stage machine for live chat.
func (o *Orchestrator) startQueue() {
	o.mu.Lock()
	if o.machine != nil {
		o.mu.Unlock()
		o.logger.Warn("handoff queue already running, ignoring duplicate request")
		return
	}
	cfg := o.cfg.Queue
	cfg.OnUpdate = nil
	cfg.OnAssigned = o.handleAssigned
	machine := queue.NewMachine(cfg, o.scheduler, o.logger)
	o.machine = machine
	o.mu.Unlock()

	machine.Start()
}

// handleAssigned runs when the queue machine connects a specialist. A
// late delivery racing Close is dropped so nothing lands after the final
// transcript save.
func (o *Orchestrator) handleAssigned(agent string) {
	if o.isClosed() {
		return
	}
	o.appendMessage(SenderAssistant, KindText,
		"You're connected with "+agent+". They can see your conversation so far.", nil)
	o.appendMessage(SenderSystem, KindSystemNotice, "specialist assigned",
		SystemNoticeMeta{Code: "handoff_assigned"})
	o.transition(StageGeneral)
}

// reveal appends assistant messages strictly sequentially, awaiting the
// modeled typing delay before each append. Message N+1 never appears before
// message N. Aborts silently if the session closes mid-reveal. Callers hold
// revealMu.
func (o *Orchestrator) reveal(lines []string, prompt string, affordance *QuickReplyMeta) error {
	for _, line := range lines {
		if err := o.wait(o.cfg.TypingDelay); err != nil {
			return err
		}
		o.appendMessage(SenderAssistant, KindText, line, nil)
	}
	if affordance != nil {
		if err := o.wait(o.cfg.TypingDelay); err != nil {
			return err
		}
		o.appendMessage(SenderAssistant, KindQuickReply, prompt, *affordance)
	}
	return nil
}

// wait blocks for d via the scheduler, returning early if the session ends.
func (o *Orchestrator) wait(d time.Duration) error {
	fired := make(chan struct{})
	t := o.scheduler.AfterFunc(d, func() { close(fired) })
	select {
	case <-fired:
		return nil
	case <-o.ctx.Done():
		t.Stop()
		return ErrSessionClosed
	}
}

// completionHistory builds the message list for the completion boundary:
// system messages are stripped and consecutive duplicate content is
// collapsed, so the generative context is never polluted.
func (o *Orchestrator) completionHistory() []CompletionMessage {
	msgs := o.Messages()
	history := make([]CompletionMessage, 0, len(msgs))
	for _, m := range msgs {
		if m.Sender == SenderSystem || m.Kind == KindSystemNotice {
			continue
		}
		if m.Content == "" {
			continue
		}
		if len(history) > 0 && history[len(history)-1].Content == m.Content {
			continue
		}
		history = append(history, CompletionMessage{Role: m.Sender, Content: m.Content})
	}
	return history
}

// appendMessage appends one immutable message to the transcript and bumps
// the session's last-activity time.
func (o *Orchestrator) appendMessage(sender Sender, kind MessageKind, content string, meta Metadata) Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	msg := Message{
		ID:        o.newID(),
		Content:   content,
		Sender:    sender,
		Timestamp: o.scheduler.Now(),
		Kind:      kind,
		Meta:      meta,
	}
	o.messages = append(o.messages, msg)
	o.sctx.LastActivityAt = msg.Timestamp
	return msg
}

// transition moves the session context, logging illegal jumps instead of
// surfacing them: stage errors are programming bugs, not user failures.
func (o *Orchestrator) transition(next Stage) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.sctx.Transition(next); err != nil {
		o.logger.Warn("stage transition rejected", zap.Error(err))
	}
}

func (o *Orchestrator) isClosed() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.closed
}

func (o *Orchestrator) setTyping(on bool) {
	o.mu.Lock()
	fn := o.onTyping
	o.mu.Unlock()
	if fn != nil {
		fn(on)
	}
}

// modalChannel maps a hand-off channel to its modal surface.
func modalChannel(ch Channel) modal.Channel {
	switch ch {
	case ChannelSMS:
		return modal.ChannelSMS
	case ChannelPhoneCall:
		return modal.ChannelPhone
	case ChannelAppointment:
		return modal.ChannelAppointment
	default:
		return modal.ChannelMessage
	}
}
