// Package dialogue drives the multi-step conversations that create job
// postings and subscriptions and run searches.
package dialogue

import (
	"context"
	"fmt"
	"strings"

	"jobboard-bot/internal/bot/utils"
	"jobboard-bot/internal/clock"
	"jobboard-bot/internal/models"

	"go.uber.org/zap"
)

// Reply is what the bot answers to one message.
type Reply struct {
	Text     string
	Keyboard utils.Keyboard
}

// Store is the part of the criteria store the dialogue writes to.
type Store interface {
	SaveJob(ctx context.Context, job *models.JobPosting) error
	SaveSubscription(ctx context.Context, sub *models.Subscription) error
	QueryJobs(ctx context.Context, filter models.JobFilter) ([]models.JobPosting, error)
}

type stateKey struct {
	flow models.Flow
	step models.Step
}

// stepHandler consumes one message at a step. It mutates the session in
// place; a session left idle is deleted afterwards.
type stepHandler func(ctx context.Context, s *models.Session, text string) (Reply, error)

type Machine struct {
	store    Store
	sessions SessionStore
	clock    clock.Clock
	logger   *zap.Logger

	handlers     map[stateKey]stepHandler
	onJobCreated func(ctx context.Context, job *models.JobPosting)
}

func New(store Store, sessions SessionStore, clk clock.Clock, logger *zap.Logger) *Machine {
	m := &Machine{
		store:    store,
		sessions: sessions,
		clock:    clk,
		logger:   logger,
	}

	m.handlers = map[stateKey]stepHandler{
		{models.FlowCreatingJob, models.StepTitle}:       m.jobTitle,
		{models.FlowCreatingJob, models.StepCompany}:     m.jobCompany,
		{models.FlowCreatingJob, models.StepLocation}:    m.jobLocation,
		{models.FlowCreatingJob, models.StepSalary}:      m.jobSalary,
		{models.FlowCreatingJob, models.StepDescription}: m.jobDescription,
		{models.FlowCreatingJob, models.StepConfirm}:     m.jobConfirm,

		{models.FlowCreatingSubscription, models.StepName}:      m.subName,
		{models.FlowCreatingSubscription, models.StepKeywords}:  m.subKeywords,
		{models.FlowCreatingSubscription, models.StepLocation}:  m.subLocation,
		{models.FlowCreatingSubscription, models.StepSalary}:    m.subSalary,
		{models.FlowCreatingSubscription, models.StepExclude}:   m.subExclude,
		{models.FlowCreatingSubscription, models.StepFrequency}: m.subFrequency,
		{models.FlowCreatingSubscription, models.StepConfirm}:   m.subConfirm,

		{models.FlowSearching, models.StepQuery}: m.searchQuery,
	}

	return m
}

// OnJobCreated registers fn to run after a job posting is persisted.
func (m *Machine) OnJobCreated(fn func(ctx context.Context, job *models.JobPosting)) {
	m.onJobCreated = fn
}

// HandleInput routes one text message. The returned Reply is always safe
// to send, including when err is non-nil.
func (m *Machine) HandleInput(ctx context.Context, userID int64, text string) (Reply, error) {
	text = strings.TrimSpace(text)

	if isCancel(text) {
		return m.Cancel(ctx, userID)
	}

	if flow, ok := enteringFlow(text); ok {
		return m.begin(ctx, userID, flow)
	}

	session, err := m.sessions.Get(ctx, userID)
	if err != nil {
		return failureReply, fmt.Errorf("load session: %w", err)
	}

	if session.Idle() {
		return menuReply(), nil
	}

	handler, ok := m.handlers[stateKey{session.Flow, session.Step}]
	if !ok {
		stateErr := fmt.Errorf("%w: no handler for %s@%s", models.ErrState, session.Flow, session.Step)
		m.logger.Warn("resetting dialogue",
			zap.Int64("user_id", userID),
			zap.Error(stateErr),
		)
		if err := m.sessions.Delete(ctx, userID); err != nil {
			stateErr = fmt.Errorf("%w (reset: %v)", stateErr, err)
		}
		return Reply{
			Text:     "🤔 Не удалось продолжить диалог. Начните заново.\n\n" + utils.FormatMainMenu(),
			Keyboard: utils.KeyboardMainMenu,
		}, stateErr
	}

	reply, handleErr := handler(ctx, session, text)

	if err := m.save(ctx, session); err != nil {
		return failureReply, err
	}

	return reply, handleErr
}

// Cancel discards the user's session from any state.
func (m *Machine) Cancel(ctx context.Context, userID int64) (Reply, error) {
	session, err := m.sessions.Get(ctx, userID)
	if err != nil {
		return failureReply, fmt.Errorf("load session: %w", err)
	}

	if err := m.sessions.Delete(ctx, userID); err != nil {
		return failureReply, fmt.Errorf("delete session: %w", err)
	}

	if session.Idle() {
		return Reply{Text: "Нечего отменять.\n\n" + utils.FormatMainMenu(), Keyboard: utils.KeyboardMainMenu}, nil
	}

	m.logger.Debug("dialogue cancelled",
		zap.Int64("user_id", userID),
		zap.String("flow", string(session.Flow)),
		zap.String("step", string(session.Step)),
	)

	return Reply{Text: "❌ Действие отменено", Keyboard: utils.KeyboardMainMenu}, nil
}

// begin starts flow, replacing whatever session the user had.
func (m *Machine) begin(ctx context.Context, userID int64, flow models.Flow) (Reply, error) {
	session := &models.Session{UserID: userID, Flow: flow}

	var reply Reply
	switch flow {
	case models.FlowCreatingJob:
		session.Step = models.StepTitle
		session.Job = &models.JobPosting{EmployerID: userID}
		reply = Reply{Text: "➕ Новая вакансия\n\n" + promptJobTitle, Keyboard: utils.KeyboardCancel}
	case models.FlowCreatingSubscription:
		session.Step = models.StepName
		session.Subscription = models.NewSubscription(userID, "", models.FrequencyDaily)
		reply = Reply{Text: "🔔 Новая подписка\n\n" + promptSubName, Keyboard: utils.KeyboardCancel}
	case models.FlowSearching:
		session.Step = models.StepQuery
		reply = Reply{Text: promptSearch, Keyboard: utils.KeyboardCancel}
	}

	if err := m.save(ctx, session); err != nil {
		return failureReply, err
	}

	m.logger.Debug("dialogue started",
		zap.Int64("user_id", userID),
		zap.String("flow", string(flow)),
	)

	return reply, nil
}

func (m *Machine) save(ctx context.Context, session *models.Session) error {
	if session.Idle() {
		if err := m.sessions.Delete(ctx, session.UserID); err != nil {
			return fmt.Errorf("delete session: %w", err)
		}
		return nil
	}

	session.UpdatedAt = m.clock.Now()
	if err := m.sessions.Put(ctx, session); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func finish(s *models.Session) {
	s.Flow = models.FlowNone
	s.Step = models.StepNone
	s.Job = nil
	s.Subscription = nil
}

var failureReply = Reply{
	Text:     "😔 Произошла ошибка. Попробуйте ещё раз позже.",
	Keyboard: utils.KeyboardMainMenu,
}

func menuReply() Reply {
	return Reply{Text: utils.FormatMainMenu(), Keyboard: utils.KeyboardMainMenu}
}

// command strips a "@botname" suffix from a slash command.
func command(text string) string {
	if !strings.HasPrefix(text, "/") {
		return text
	}
	if i := strings.IndexByte(text, '@'); i > 0 {
		return text[:i]
	}
	return text
}

func enteringFlow(text string) (models.Flow, bool) {
	switch command(text) {
	case "/newjob", utils.BtnNewJob:
		return models.FlowCreatingJob, true
	case "/subscribe", utils.BtnNewSubscription:
		return models.FlowCreatingSubscription, true
	case "/search", utils.BtnSearch:
		return models.FlowSearching, true
	}
	return "", false
}

func isCancel(text string) bool {
	return command(text) == "/cancel" || text == utils.BtnCancel || strings.EqualFold(text, "отмена")
}

func isConfirm(text string) bool {
	return command(text) == "/confirm" || text == utils.BtnConfirm || strings.EqualFold(text, "да")
}

func isSkip(text string) bool {
	return text == "-" || text == utils.BtnSkip || command(text) == "/skip"
}
