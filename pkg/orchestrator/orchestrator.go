// Package orchestrator owns the only mutation path into the message store
// and the conversation directory. One user submission plus its optional AI
// reply is a turn; turns within a conversation are serialized through a
// per-conversation worker so the user's message is always visible before
// its reply and at most one completion call is in flight per conversation.
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"chatcore/pkg/assist"
	"chatcore/pkg/directory"
	"chatcore/pkg/logger"
	"chatcore/pkg/metrics"
	"chatcore/pkg/models"
	"chatcore/pkg/store"
	"chatcore/pkg/utils"
)

// State is the transient per-conversation typing state. It is never
// persisted.
type State string

const (
	StateIdle       State = "idle"
	StateAwaitingAI State = "awaiting_ai_reply"
)

// TurnResult is the settled outcome of one turn.
type TurnResult struct {
	UserMessage models.Message
	// AIMessage is set when the assistant replied. Nil for conversations
	// without the assistant and for failed roundtrips.
	AIMessage *models.Message
	// Err carries assist.ErrUpstreamUnavailable when the roundtrip failed.
	// The user message stands regardless.
	Err error
}

type userOutcome struct {
	msg models.Message
	err error
}

// Turn is the caller's handle to an accepted submission.
type Turn struct {
	userCh chan userOutcome
	doneCh chan TurnResult
}

// UserMessage blocks until the user's message has been appended (or the
// append failed) and returns it. Queued turns settle in FIFO order.
func (t *Turn) UserMessage(ctx context.Context) (models.Message, error) {
	select {
	case out := <-t.userCh:
		return out.msg, out.err
	case <-ctx.Done():
		return models.Message{}, ctx.Err()
	}
}

// Wait blocks until the whole turn settled, including the assistant
// roundtrip when one was due.
func (t *Turn) Wait(ctx context.Context) (TurnResult, error) {
	select {
	case res := <-t.doneCh:
		return res, nil
	case <-ctx.Done():
		return TurnResult{}, ctx.Err()
	}
}

// Options configures an Orchestrator.
type Options struct {
	// HistoryWindow bounds the messages sent with each completion request.
	HistoryWindow int
	// Timeout bounds one completion roundtrip.
	Timeout time.Duration
	// QueueCapacity bounds each conversation's pending submissions.
	QueueCapacity int
}

// Orchestrator routes submissions through per-conversation workers.
type Orchestrator struct {
	responder assist.Responder
	opts      Options

	mu      sync.Mutex
	workers map[string]*convQueue
	closed  bool
	wg      sync.WaitGroup
	stop    chan struct{}

	typingMu sync.RWMutex
	typing   map[string]State
	onTyping func(convID string, s State)
}

// New builds an orchestrator over the given responder.
func New(responder assist.Responder, opts Options) *Orchestrator {
	if opts.HistoryWindow <= 0 {
		opts.HistoryWindow = 10
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.QueueCapacity <= 0 {
		opts.QueueCapacity = 64
	}
	return &Orchestrator{
		responder: responder,
		opts:      opts,
		workers:   make(map[string]*convQueue),
		typing:    make(map[string]State),
		stop:      make(chan struct{}),
	}
}

// SetTypingListener registers a callback invoked on every typing-state
// transition. Must be called before the first Submit.
func (o *Orchestrator) SetTypingListener(fn func(convID string, s State)) {
	o.onTyping = fn
}

// TypingState reports the transient state for a conversation.
func (o *Orchestrator) TypingState(convID string) State {
	o.typingMu.RLock()
	defer o.typingMu.RUnlock()
	if s, ok := o.typing[convID]; ok {
		return s
	}
	return StateIdle
}

func (o *Orchestrator) setTyping(convID string, s State) {
	o.typingMu.Lock()
	if s == StateIdle {
		delete(o.typing, convID)
	} else {
		o.typing[convID] = s
	}
	o.typingMu.Unlock()
	if o.onTyping != nil {
		o.onTyping(convID, s)
	}
}

// SubmitText validates and queues a text turn for a conversation.
// Validation failures are rejected before any mutation. The returned handle
// resolves in FIFO order relative to other turns of the same conversation;
// turns for different conversations proceed independently.
func (o *Orchestrator) SubmitText(convID, senderID, content string) (*Turn, error) {
	return o.submit(convID, senderID, models.KindText, content, "", "", "")
}

// SubmitTextReply queues a text turn referencing an earlier message of the
// same conversation.
func (o *Orchestrator) SubmitTextReply(convID, senderID, content, replyTo string) (*Turn, error) {
	return o.submit(convID, senderID, models.KindText, content, "", "", replyTo)
}

// SubmitFile queues an image or file turn. File turns never trigger the
// assistant.
func (o *Orchestrator) SubmitFile(convID, senderID string, kind models.Kind, fileURL, fileName string) (*Turn, error) {
	return o.submit(convID, senderID, kind, "", fileURL, fileName, "")
}

func (o *Orchestrator) submit(convID, senderID string, kind models.Kind, content, fileURL, fileName, replyTo string) (*Turn, error) {
	conv, err := store.GetConversation(convID)
	if err != nil {
		return nil, err
	}
	if !conv.HasMember(senderID) {
		return nil, fmt.Errorf("%w: sender %s is not a member of %s", models.ErrValidation, senderID, convID)
	}
	// construct once to fail fast on content-variant violations; the worker
	// rebuilds with definitive id and timestamp
	if kind == models.KindText {
		if _, err := models.NewTextMessage(convID, senderID, content); err != nil {
			return nil, err
		}
	} else {
		if _, err := models.NewFileMessage(convID, senderID, kind, fileURL, fileName); err != nil {
			return nil, err
		}
	}

	h := &Turn{
		userCh: make(chan userOutcome, 1),
		doneCh: make(chan TurnResult, 1),
	}
	sub := newSubmission(senderID, kind, content, fileURL, fileName, replyTo, h)

	q, err := o.queueFor(convID)
	if err != nil {
		sub.release()
		return nil, err
	}
	if err := q.tryEnqueue(sub); err != nil {
		metrics.TurnsDropped.Inc()
		return nil, err
	}
	return h, nil
}

func (o *Orchestrator) queueFor(convID string) (*convQueue, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return nil, fmt.Errorf("orchestrator closed")
	}
	if q, ok := o.workers[convID]; ok {
		return q, nil
	}
	q := newConvQueue(o.opts.QueueCapacity)
	o.workers[convID] = q
	o.wg.Add(1)
	go o.runWorker(convID, q)
	return q, nil
}

// Close stops all workers after their queued turns drain.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.closed = true
	for _, q := range o.workers {
		close(q.ch)
	}
	o.mu.Unlock()
	o.wg.Wait()
}

func (o *Orchestrator) runWorker(convID string, q *convQueue) {
	defer o.wg.Done()
	for sub := range q.ch {
		o.processTurn(convID, sub)
		sub.release()
	}
}

// processTurn is the state machine for one turn: append the user message,
// update the summary, and when the conversation includes the assistant,
// hold AwaitingAIReply across the roundtrip and merge the reply.
func (o *Orchestrator) processTurn(convID string, sub *submission) {
	userMsg, err := o.appendUserMessage(convID, sub)
	if err != nil {
		sub.handle.userCh <- userOutcome{err: err}
		sub.handle.doneCh <- TurnResult{Err: err}
		return
	}
	sub.handle.userCh <- userOutcome{msg: userMsg}

	conv, err := store.GetConversation(convID)
	if err != nil {
		sub.handle.doneCh <- TurnResult{UserMessage: userMsg, Err: err}
		return
	}
	if !conv.HasAssistant() || userMsg.Kind != models.KindText {
		sub.handle.doneCh <- TurnResult{UserMessage: userMsg}
		return
	}

	o.setTyping(convID, StateAwaitingAI)
	reply, err := o.completeTurn(convID, userMsg)
	o.setTyping(convID, StateIdle)

	if err != nil {
		// conversation is left exactly as after the user's message
		logger.Log.Warn("turn_ai_failed", zap.String("conversation", convID), zap.Error(err))
		sub.handle.doneCh <- TurnResult{UserMessage: userMsg, Err: err}
		return
	}
	sub.handle.doneCh <- TurnResult{UserMessage: userMsg, AIMessage: reply}
}

func (o *Orchestrator) appendUserMessage(convID string, sub *submission) (models.Message, error) {
	var (
		msg models.Message
		err error
	)
	if sub.kind == models.KindText {
		msg, err = models.NewTextMessage(convID, sub.sender, sub.text())
	} else {
		msg, err = models.NewFileMessage(convID, sub.sender, sub.kind, sub.fileURL, sub.fileName)
	}
	if err != nil {
		return models.Message{}, err
	}
	msg.ID = utils.GenMessageID()
	msg.TS = time.Now().UTC().UnixNano()
	msg.ReplyTo = sub.replyTo
	if err := store.AppendMessage(&msg); err != nil {
		return models.Message{}, err
	}
	if _, err := directory.UpsertSummary(convID, msg); err != nil {
		return models.Message{}, err
	}
	metrics.MessagesAppended.WithLabelValues("user").Inc()
	o.touchSender(sub.sender)
	logger.Log.Info("turn_user_message",
		zap.String("conversation", convID),
		zap.String("sender", sub.sender),
		zap.String("msg_id", msg.ID))
	return msg, nil
}

// completeTurn runs the assistant roundtrip and appends the reply. The
// history window is read after the user message landed, so it includes it;
// the new message itself is carried separately on the wire.
func (o *Orchestrator) completeTurn(convID string, userMsg models.Message) (*models.Message, error) {
	msgs, err := store.ListMessages(convID)
	if err != nil {
		return nil, err
	}
	// window covers messages before the one being answered
	var prior []models.Message
	for _, m := range msgs {
		if m.ID == userMsg.ID {
			break
		}
		prior = append(prior, m)
	}
	history := assist.HistoryWindow(prior, o.opts.HistoryWindow)

	ctx, cancel := context.WithTimeout(context.Background(), o.opts.Timeout)
	defer cancel()
	text, err := o.responder.Complete(ctx, history, userMsg.Content)
	if err != nil {
		return nil, err
	}

	reply, err := models.NewTextMessage(convID, models.AssistantID, text)
	if err != nil {
		return nil, err
	}
	reply.ID = utils.GenMessageID()
	reply.TS = time.Now().UTC().UnixNano()
	reply.AIGenerated = true
	if err := store.AppendMessage(&reply); err != nil {
		return nil, err
	}
	if _, err := directory.UpsertSummary(convID, reply); err != nil {
		return nil, err
	}
	metrics.MessagesAppended.WithLabelValues("assistant").Inc()
	logger.Log.Info("turn_ai_reply", zap.String("conversation", convID), zap.String("msg_id", reply.ID))
	return &reply, nil
}

// touchSender refreshes the sender's presence. Best effort: a missing
// profile is not an error.
func (o *Orchestrator) touchSender(senderID string) {
	p, err := store.GetProfile(senderID)
	if err != nil {
		return
	}
	p.LastActiveTS = time.Now().UTC().UnixNano()
	p.Status = models.StatusOnline
	_ = store.SaveProfile(p)
}
