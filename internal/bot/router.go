// Update routing. One inbound event is dispatched to exactly one of: an
// active dialogue flow, a command, a menu button, a project selection, or an
// inline callback. Every path starts by registering/normalizing the user so
// the allow-list role coercion runs on each contact.
package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/finishworks/crewbot/internal/chat"
	"github.com/finishworks/crewbot/internal/dialogue"
	"github.com/finishworks/crewbot/internal/domain"
	"github.com/finishworks/crewbot/internal/materials"
	"github.com/finishworks/crewbot/internal/services"
	"github.com/finishworks/crewbot/internal/storage"
)

const (
	msgNoAccess       = "⛔ У вас нет доступа к этой команде."
	msgGenericFailure = "❌ Произошла ошибка. Попробуйте еще раз."
	msgFlowBusy       = "⏳ Сначала завершите текущее действие или нажмите «🔙 Назад»."
	msgMainMenu       = "🏠 Главное меню"
	msgCancelled      = "🚫 Текущее действие отменено."
)

// pendingLink is a calculation waiting for an optional project choice.
type pendingLink struct {
	CalcID uint
	Result string
}

// Router dispatches inbound chat events.
type Router struct {
	engine     *dialogue.Engine
	sender     chat.Sender
	downloader chat.Downloader
	files      *storage.FileStore
	menus      Menus
	calculator materials.Calculator

	access     *services.AccessService
	projects   *services.ProjectService
	calcs      *services.CalculationService
	messages   *services.MessageService
	broadcasts *services.BroadcastService

	// Secondary, non-blocking choices parked between interactions.
	mu               sync.Mutex
	pendingBroadcast map[int64]string
	pendingLinks     map[int64]pendingLink
}

// Deps bundles the router's collaborators.
type Deps struct {
	Sender     chat.Sender
	Downloader chat.Downloader
	Files      *storage.FileStore
	Calculator materials.Calculator

	Access     *services.AccessService
	Projects   *services.ProjectService
	Calcs      *services.CalculationService
	Messages   *services.MessageService
	Broadcasts *services.BroadcastService
}

// New constructs a Router with all three flows registered.
func New(d Deps) *Router {
	r := &Router{
		engine:           dialogue.NewEngine(),
		sender:           d.Sender,
		downloader:       d.Downloader,
		files:            d.Files,
		calculator:       d.Calculator,
		access:           d.Access,
		projects:         d.Projects,
		calcs:            d.Calcs,
		messages:         d.Messages,
		broadcasts:       d.Broadcasts,
		pendingBroadcast: make(map[int64]string),
		pendingLinks:     make(map[int64]pendingLink),
	}
	r.engine.Register(r.projectIntakeFlow())
	r.engine.Register(r.broadcastFlow())
	r.engine.Register(r.calculatorFlow())
	return r
}

// HandleUpdate processes one inbound event end to end. All failures are
// reported to the user generically and logged with detail; nothing here is
// allowed to crash the process over a single bad interaction.
func (r *Router) HandleUpdate(ctx context.Context, in chat.Inbound) {
	u, err := r.access.EnsureUser(ctx, in.UserID, in.Username, in.FirstName, in.LastName)
	if err != nil {
		log.Error().Err(err).Int64("user_id", in.UserID).Msg("failed to register user")
		r.reply(ctx, in.UserID, msgGenericFailure, nil)
		return
	}

	if in.Callback != "" {
		// Inline presses also close the one-shot link offer window.
		r.dropPendingLink(u.ID)
		r.handleCallback(ctx, u, in.Callback)
		return
	}

	text := strings.TrimSpace(in.Text)

	// Cancellation wins over everything, including active flows.
	if text == btnBack || text == "/cancel" {
		r.handleCancel(ctx, u, text == "/cancel")
		return
	}

	if r.engine.Active(u.ID) {
		r.advanceFlow(ctx, u, in)
		return
	}

	// The link offer after a calculation is one-shot: it is consumed by the
	// very next interaction or dropped, leaving the calculation unlinked.
	if !strings.HasPrefix(text, projectButtonPrefix) {
		r.dropPendingLink(u.ID)
	}

	switch {
	case text == "/start" || text == "":
		r.sendWelcome(ctx, u)
	case text == "/help":
		r.reply(ctx, u.ID, helpText, nil)
	case strings.HasPrefix(text, "/message"):
		r.handleMessageCommand(ctx, u, strings.TrimSpace(strings.TrimPrefix(text, "/message")))
	case text == btnRequestAccess:
		r.handleRequestAccess(ctx, u)
	case text == btnCalculator:
		r.startCalculator(ctx, u)
	case text == btnProjects:
		r.handleProjectsButton(ctx, u)
	case text == btnWorkers:
		r.handleWorkersButton(ctx, u)
	case text == btnBroadcast:
		r.startBroadcast(ctx, u)
	case text == btnMessages:
		r.showInbox(ctx, u)
	case strings.HasPrefix(text, projectButtonPrefix):
		r.handleProjectSelection(ctx, u, strings.TrimPrefix(text, projectButtonPrefix))
	default:
		// Unrecognized input falls back to the main menu.
		r.sendWelcome(ctx, u)
	}
}

// ---- commands & menu buttons ----

const helpText = "ℹ️ Список доступных команд:\n\n" +
	"/start - Главное меню\n" +
	"/help - Эта справка\n" +
	"/message [текст] - Отправить сообщение администратору (для работников)\n\n" +
	"📊 Калькулятор материалов - расчет необходимого количества материалов\n" +
	"🏗 Проекты - просмотр текущих проектов\n" +
	"👥 Работники - управление доступом (для администраторов)\n" +
	"📢 Рассылка - отправить сообщение всем работникам (для администраторов)\n" +
	"📩 Сообщения - просмотр полученных сообщений"

func (r *Router) sendWelcome(ctx context.Context, u *domain.User) {
	text := fmt.Sprintf(
		"👋 Добро пожаловать, %s!\n\n"+
			"🏗 Это бот для компании по внутренней отделке помещений.\n"+
			"Здесь вы можете рассчитывать материалы, просматривать проекты и общаться с коллегами.",
		u.FirstName,
	)
	r.reply(ctx, u.ID, text, r.menus.MainMenu(u.Role))
}

func (r *Router) handleCancel(ctx context.Context, u *domain.User, explicit bool) {
	r.engine.Cancel(ctx, u.ID)
	r.clearPending(u.ID)
	text := msgMainMenu
	if explicit {
		text = msgCancelled
	}
	r.reply(ctx, u.ID, text, r.menus.MainMenu(u.Role))
}

func (r *Router) handleRequestAccess(ctx context.Context, u *domain.User) {
	err := r.access.RequestAccess(ctx, u)
	if errors.Is(err, services.ErrAlreadyProcessed) {
		r.reply(ctx, u.ID, "⏳ Ваш запрос уже обрабатывается. Пожалуйста, дождитесь ответа администратора.", nil)
		return
	}
	if err != nil {
		log.Error().Err(err).Int64("user_id", u.ID).Msg("access request failed")
		r.reply(ctx, u.ID, msgGenericFailure, nil)
		return
	}
	r.reply(ctx, u.ID, "✅ Ваш запрос на доступ отправлен администратору. Ожидайте подтверждения.", nil)
}

func (r *Router) handleMessageCommand(ctx context.Context, u *domain.User, text string) {
	if !r.isAuthenticated(u) {
		r.reply(ctx, u.ID, msgNoAccess, nil)
		return
	}
	err := r.messages.SendToAdmins(ctx, u, text)
	if errors.Is(err, services.ErrEmptyMessage) {
		r.reply(ctx, u.ID, "❌ Использование: /message ваш текст сообщения", nil)
		return
	}
	if err != nil {
		log.Error().Err(err).Int64("user_id", u.ID).Msg("failed to store message to admins")
		r.reply(ctx, u.ID, msgGenericFailure, nil)
		return
	}
	r.reply(ctx, u.ID, "✅ Ваше сообщение отправлено администратору.", nil)
}

func (r *Router) startCalculator(ctx context.Context, u *domain.User) {
	if !r.isAuthenticated(u) {
		r.reply(ctx, u.ID, msgNoAccess, nil)
		return
	}
	if !r.startFlow(ctx, u, flowCalculator) {
		return
	}
	r.reply(ctx, u.ID, "🧮 Выберите материал:", materialsMenu())
}

// handleProjectsButton preserves the original split: the projects button
// opens intake for admins and the listing for workers.
func (r *Router) handleProjectsButton(ctx context.Context, u *domain.User) {
	switch u.Role {
	case domain.RoleAdmin:
		if !r.startFlow(ctx, u, flowProjectIntake) {
			return
		}
		r.reply(ctx, u.ID, "🏗 Введите адрес объекта:", backMenu())
	case domain.RoleWorker:
		r.showProjectsList(ctx, u)
	default:
		r.reply(ctx, u.ID, msgNoAccess, nil)
	}
}

func (r *Router) handleWorkersButton(ctx context.Context, u *domain.User) {
	if u.Role != domain.RoleAdmin {
		r.reply(ctx, u.ID, msgNoAccess, nil)
		return
	}
	r.reply(ctx, u.ID, "👥 Управление работниками", workersManagementMenu())
}

func (r *Router) startBroadcast(ctx context.Context, u *domain.User) {
	if u.Role != domain.RoleAdmin {
		r.reply(ctx, u.ID, msgNoAccess, nil)
		return
	}
	if !r.startFlow(ctx, u, flowBroadcast) {
		return
	}
	r.reply(ctx, u.ID, "📢 Введите сообщение для рассылки всем работникам:", backMenu())
}

func (r *Router) showInbox(ctx context.Context, u *domain.User) {
	if !r.isAuthenticated(u) {
		r.reply(ctx, u.ID, msgNoAccess, nil)
		return
	}
	msgs, err := r.messages.Inbox(ctx, u.ID, 5)
	if err != nil {
		log.Error().Err(err).Int64("user_id", u.ID).Msg("failed to load inbox")
		r.reply(ctx, u.ID, msgGenericFailure, nil)
		return
	}
	if len(msgs) == 0 {
		r.reply(ctx, u.ID, "📭 У вас нет новых сообщений.", nil)
		return
	}
	for _, m := range msgs {
		r.reply(ctx, u.ID, fmt.Sprintf("📩 От %s:\n\n%s", m.Sender.FirstName, m.Text), nil)
	}
}

func (r *Router) showProjectsList(ctx context.Context, u *domain.User) {
	projects, err := r.projects.List(ctx)
	if err != nil {
		log.Error().Err(err).Msg("failed to list projects")
		r.reply(ctx, u.ID, msgGenericFailure, nil)
		return
	}
	if len(projects) == 0 {
		r.reply(ctx, u.ID, "📭 Нет добавленных проектов.", nil)
		return
	}
	r.reply(ctx, u.ID, "🏗 Выберите проект:", projectsMenu(projects))
}

// handleProjectSelection resolves a "🏠 <address>" press. A parked
// calculation link consumes the selection; otherwise it shows details.
func (r *Router) handleProjectSelection(ctx context.Context, u *domain.User, address string) {
	if !r.isAuthenticated(u) {
		r.reply(ctx, u.ID, msgNoAccess, nil)
		return
	}
	if link, ok := r.takePendingLink(u.ID); ok {
		r.linkCalculation(ctx, u, link, address)
		return
	}
	r.showProjectDetails(ctx, u, address)
}

func (r *Router) linkCalculation(ctx context.Context, u *domain.User, link pendingLink, address string) {
	p, err := r.projects.FindByAddress(ctx, address)
	if err != nil {
		if errors.Is(err, services.ErrProjectNotFound) {
			r.reply(ctx, u.ID, "📭 Проект не найден.", r.menus.MainMenu(u.Role))
			return
		}
		log.Error().Err(err).Str("address", address).Msg("project lookup failed")
		r.reply(ctx, u.ID, msgGenericFailure, r.menus.MainMenu(u.Role))
		return
	}
	if err := r.calcs.Link(ctx, link.CalcID, p.ID); err != nil {
		log.Error().Err(err).Uint("calc_id", link.CalcID).Uint("project_id", p.ID).Msg("failed to link calculation")
		r.reply(ctx, u.ID, msgGenericFailure, r.menus.MainMenu(u.Role))
		return
	}
	r.reply(ctx, u.ID,
		fmt.Sprintf("%s\n\n✅ Расчет привязан к проекту: %s", link.Result, p.Address),
		r.menus.MainMenu(u.Role))
}

func (r *Router) showProjectDetails(ctx context.Context, u *domain.User, address string) {
	p, err := r.projects.FindByAddress(ctx, address)
	if errors.Is(err, services.ErrProjectNotFound) {
		r.reply(ctx, u.ID, "📭 Проект не найден.", nil)
		return
	}
	if err != nil {
		log.Error().Err(err).Str("address", address).Msg("project lookup failed")
		r.reply(ctx, u.ID, msgGenericFailure, nil)
		return
	}
	text := fmt.Sprintf(
		"🏠 Адрес: %s\n📅 Дата создания: %s\n👤 Ответственный: %s\n📝 Описание: %s",
		p.Address,
		p.CreatedAt.Format("02.01.2006 15:04"),
		p.Creator.DisplayName(),
		p.Description,
	)
	r.reply(ctx, u.ID, text, projectDetailsMenu(p.ID))
}

// ---- inline callbacks ----

func (r *Router) handleCallback(ctx context.Context, u *domain.User, data string) {
	switch {
	case data == "pending_workers":
		r.showPendingWorkers(ctx, u)
	case data == "workers_list":
		r.showWorkersList(ctx, u)
	case strings.HasPrefix(data, "approve_") || strings.HasPrefix(data, "reject_"):
		r.resolveAccess(ctx, u, data)
	case strings.HasPrefix(data, "broadcast_"):
		r.resolveBroadcast(ctx, u, strings.TrimPrefix(data, "broadcast_"))
	case strings.HasPrefix(data, "design_") || strings.HasPrefix(data, "lock_") || strings.HasPrefix(data, "calculations_"):
		r.projectDetailsAction(ctx, u, data)
	default:
		log.Warn().Str("data", data).Msg("unrecognized callback")
	}
}

func (r *Router) showPendingWorkers(ctx context.Context, u *domain.User) {
	if u.Role != domain.RoleAdmin {
		r.edit(ctx, u.ID, msgNoAccess, nil)
		return
	}
	pending, err := r.access.ListPending(ctx)
	if err != nil {
		log.Error().Err(err).Msg("failed to list pending users")
		r.edit(ctx, u.ID, msgGenericFailure, nil)
		return
	}
	if len(pending) == 0 {
		r.edit(ctx, u.ID, "📭 Нет новых заявок на доступ.", nil)
		return
	}
	// One request at a time; the approve/reject callback advances the queue.
	w := pending[0]
	r.edit(ctx, u.ID,
		fmt.Sprintf("👤 %s\n📧 @%s\n🆔 ID: %d", w.DisplayName(), w.Username, w.ID),
		services.ApprovalMenu(w.ID))
}

func (r *Router) showWorkersList(ctx context.Context, u *domain.User) {
	if u.Role != domain.RoleAdmin {
		r.edit(ctx, u.ID, msgNoAccess, nil)
		return
	}
	workers, err := r.access.ListWorkers(ctx)
	if err != nil {
		log.Error().Err(err).Msg("failed to list workers")
		r.edit(ctx, u.ID, msgGenericFailure, nil)
		return
	}
	if len(workers) == 0 {
		r.edit(ctx, u.ID, "👷 Нет зарегистрированных работников.", nil)
		return
	}
	lines := make([]string, 0, len(workers))
	for _, w := range workers {
		lines = append(lines, fmt.Sprintf("👤 %s (@%s) - 🆔 %d", w.DisplayName(), w.Username, w.ID))
	}
	r.edit(ctx, u.ID, "👷 Список работников:\n\n"+strings.Join(lines, "\n"), nil)
}

func (r *Router) resolveAccess(ctx context.Context, u *domain.User, data string) {
	action, idStr, ok := strings.Cut(data, "_")
	if !ok {
		return
	}
	targetID, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		return
	}
	approve := action == "approve"

	target, err := r.access.Resolve(ctx, u, targetID, approve)
	if errors.Is(err, services.ErrNoAccess) {
		r.edit(ctx, u.ID, msgNoAccess, nil)
		return
	}
	if err != nil {
		log.Error().Err(err).Int64("target_id", targetID).Msg("failed to resolve access request")
		r.edit(ctx, u.ID, msgGenericFailure, nil)
		return
	}
	if approve {
		r.edit(ctx, u.ID, fmt.Sprintf("✅ Пользователь @%s одобрен.", target.Username), nil)
	} else {
		r.edit(ctx, u.ID, fmt.Sprintf("❌ Пользователь @%s отклонен.", target.Username), nil)
	}
}

func (r *Router) resolveBroadcast(ctx context.Context, u *domain.User, action string) {
	if u.Role != domain.RoleAdmin {
		r.edit(ctx, u.ID, msgNoAccess, nil)
		return
	}
	text, ok := r.takePendingBroadcast(u.ID)
	if !ok {
		r.edit(ctx, u.ID, "📭 Нет сообщения для рассылки.", nil)
		return
	}

	switch action {
	case "confirm":
		workers, err := r.access.ListWorkers(ctx)
		if err != nil {
			log.Error().Err(err).Msg("failed to list broadcast recipients")
			r.edit(ctx, u.ID, msgGenericFailure, nil)
			return
		}
		sent, failed := r.broadcasts.Broadcast(ctx, "📢 Сообщение от администратора:\n\n"+text, workers)
		r.edit(ctx, u.ID, fmt.Sprintf("✅ Сообщение отправлено %d работникам.\nНе удалось отправить: %d", sent, failed), nil)
	case "edit":
		if !r.startFlow(ctx, u, flowBroadcast) {
			return
		}
		r.edit(ctx, u.ID, "📢 Введите новое сообщение для рассылки:", nil)
	default: // cancel
		r.edit(ctx, u.ID, "❌ Рассылка отменена.", nil)
	}
}

func (r *Router) projectDetailsAction(ctx context.Context, u *domain.User, data string) {
	if !r.isAuthenticated(u) {
		r.edit(ctx, u.ID, msgNoAccess, nil)
		return
	}
	action, idStr, ok := strings.Cut(data, "_")
	if !ok {
		return
	}
	id64, err := strconv.ParseUint(idStr, 10, 32)
	if err != nil {
		return
	}
	p, err := r.projects.Get(ctx, uint(id64))
	if errors.Is(err, services.ErrProjectNotFound) {
		r.edit(ctx, u.ID, "📭 Проект не найден.", nil)
		return
	}
	if err != nil {
		log.Error().Err(err).Uint64("project_id", id64).Msg("project lookup failed")
		r.edit(ctx, u.ID, msgGenericFailure, nil)
		return
	}

	switch action {
	case "design":
		if p.DesignPDFPath == "" {
			r.edit(ctx, u.ID, "📭 Дизайн-проект не прикреплен.", nil)
			return
		}
		caption := fmt.Sprintf("📄 Дизайн-проект для %s", p.Address)
		if err := r.sender.SendDocument(ctx, u.ID, p.DesignPDFPath, caption); err != nil {
			log.Error().Err(err).Str("path", p.DesignPDFPath).Msg("failed to send design file")
			r.edit(ctx, u.ID, "❌ Ошибка при загрузке файла.", nil)
		}
	case "lock":
		r.edit(ctx, u.ID, fmt.Sprintf("🔑 Код замка для %s: %s", p.Address, p.LockCode), nil)
	case "calculations":
		// Designed scoping rule: admins review what the project owner linked
		// to the project, workers see their own numbers.
		scope := u.ID
		header := fmt.Sprintf("📊 Ваши расчеты для %s:", p.Address)
		if u.Role == domain.RoleAdmin {
			scope = p.CreatedBy
			header = fmt.Sprintf("📊 Расчеты для %s:", p.Address)
		}
		calcs, err := r.calcs.ListForProject(ctx, p.ID, scope)
		if err != nil {
			log.Error().Err(err).Uint("project_id", p.ID).Msg("failed to list calculations")
			r.edit(ctx, u.ID, msgGenericFailure, nil)
			return
		}
		if len(calcs) == 0 {
			r.edit(ctx, u.ID, "📭 Нет расчетов для этого проекта.", nil)
			return
		}
		r.edit(ctx, u.ID, header+"\n\n"+services.FormatList(calcs), nil)
	}
}

// ---- flow plumbing ----

// startFlow begins a flow, translating the conflict policy into a user
// message. The caller sends the entry prompt on success.
func (r *Router) startFlow(ctx context.Context, u *domain.User, name string) bool {
	err := r.engine.StartFlow(u.ID, name)
	if errors.Is(err, dialogue.ErrFlowActive) {
		r.reply(ctx, u.ID, msgFlowBusy, nil)
		return false
	}
	if err != nil {
		log.Error().Err(err).Str("flow", name).Msg("failed to start flow")
		r.reply(ctx, u.ID, msgGenericFailure, nil)
		return false
	}
	return true
}

func (r *Router) advanceFlow(ctx context.Context, u *domain.User, in chat.Inbound) {
	replies, _, err := r.engine.Advance(ctx, u.ID, in)
	if err != nil {
		log.Error().Err(err).Int64("user_id", u.ID).Msg("flow step failed")
		r.reply(ctx, u.ID, msgGenericFailure, nil)
		return
	}
	for _, rep := range replies {
		r.reply(ctx, u.ID, rep.Text, rep.Menu)
	}
}

// ---- pending choices ----

func (r *Router) setPendingBroadcast(userID int64, text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pendingBroadcast[userID] = text
}

func (r *Router) takePendingBroadcast(userID int64) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	text, ok := r.pendingBroadcast[userID]
	delete(r.pendingBroadcast, userID)
	return text, ok
}

func (r *Router) setPendingLink(userID int64, link pendingLink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pendingLinks[userID] = link
}

func (r *Router) takePendingLink(userID int64) (pendingLink, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	link, ok := r.pendingLinks[userID]
	delete(r.pendingLinks, userID)
	return link, ok
}

func (r *Router) dropPendingLink(userID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.pendingLinks, userID)
}

func (r *Router) clearPending(userID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.pendingBroadcast, userID)
	delete(r.pendingLinks, userID)
}

// ---- helpers ----

func (r *Router) isAuthenticated(u *domain.User) bool {
	return u.Role == domain.RoleWorker || u.Role == domain.RoleAdmin
}

// roleOf re-reads the user's effective role; falls back to pending when the
// lookup fails (only the menu shape is affected).
func (r *Router) roleOf(ctx context.Context, userID int64) domain.Role {
	u, err := r.access.EnsureUser(ctx, userID, "", "", "")
	if err != nil {
		return domain.RolePending
	}
	return u.Role
}

func (r *Router) reply(ctx context.Context, userID int64, text string, menu chat.Menu) {
	if err := r.sender.SendText(ctx, userID, text, menu); err != nil {
		log.Warn().Err(err).Int64("user_id", userID).Msg("failed to send reply")
	}
}

func (r *Router) edit(ctx context.Context, userID int64, text string, menu chat.Menu) {
	if err := r.sender.EditLast(ctx, userID, text, menu); err != nil {
		log.Warn().Err(err).Int64("user_id", userID).Msg("failed to edit message")
	}
}
