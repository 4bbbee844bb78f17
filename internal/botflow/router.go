package botflow

import (
	"context"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"gitlab.com/atividade/api/wa-frontdesk/internal/apperrors"
	"gitlab.com/atividade/api/wa-frontdesk/internal/cache"
	"gitlab.com/atividade/api/wa-frontdesk/internal/messaging"
	"gitlab.com/atividade/api/wa-frontdesk/internal/model"
	"gitlab.com/atividade/api/wa-frontdesk/internal/storage"
	"gitlab.com/atividade/api/wa-frontdesk/internal/usecase"
	"gitlab.com/atividade/api/wa-frontdesk/pkg/logger"
	"gitlab.com/atividade/api/wa-frontdesk/pkg/utils"
)

// Router drives the menu conversation. It reads menu content from the
// config cache snapshot and delegates every queue transition to the
// engine, so the flow itself stays stateless between messages; the
// durable position lives on the conversation row.
type Router struct {
	svc          *usecase.QueueService
	catalog      *cache.ConfigCache
	sender       usecase.Sender
	interactions storage.InteractionRepo
}

// NewRouter creates a message router
func NewRouter(svc *usecase.QueueService, catalog *cache.ConfigCache, sender usecase.Sender, interactions storage.InteractionRepo) *Router {
	return &Router{
		svc:          svc,
		catalog:      catalog,
		sender:       sender,
		interactions: interactions,
	}
}

var _ messaging.MessageHandler = (*Router)(nil)

// HandleInbound processes one user message through the menu flow.
func (r *Router) HandleInbound(ctx context.Context, evt messaging.InboundEvent) error {
	log := logger.FromContext(ctx)
	text := normalize(evt.Text)

	conv, created, err := r.svc.EnsureConversation(ctx, evt.UserID)
	if err != nil {
		return err
	}

	r.recordInteraction(ctx, evt.UserID, model.InteractionMessageReceived, map[string]interface{}{
		"text":      evt.Text,
		"push_name": evt.PushName,
	})

	if err := r.svc.Touch(ctx, evt.UserID); err != nil {
		return err
	}
	if err := r.svc.TouchConversation(ctx, conv); err != nil {
		return err
	}

	if created {
		r.reply(ctx, evt.UserID, msgGreeting+"\n"+rootMenu(r.catalog.Units()))
		return nil
	}

	if isResetCommand(text) {
		return r.handleReset(ctx, conv)
	}

	switch conv.MenuState {
	case model.MenuStateRoot:
		return r.handleRootMenu(ctx, conv, text)
	case model.MenuStateUnit:
		return r.handleUnitMenu(ctx, conv, text)
	case model.MenuStatePrices:
		// Any message after the price list returns to the unit options.
		return r.backToUnitMenu(ctx, conv)
	case model.MenuStateDepartment:
		return r.handleDepartmentMenu(ctx, conv, text)
	case model.MenuStateSellers:
		return r.handleSellerMenu(ctx, conv, text)
	case model.MenuStateQueued:
		// The engine owns messaging while the user waits; replying here
		// would race the throttled position notifications.
		return nil
	default:
		log.Warn("Unknown menu state, resetting to root",
			zap.String("user_id", conv.UserID),
			zap.String("menu_state", conv.MenuState))
		return r.handleReset(ctx, conv)
	}
}

func (r *Router) handleReset(ctx context.Context, conv *model.Conversation) error {
	abandoned, err := r.svc.AbandonByUser(ctx, conv.UserID)
	if err != nil {
		return err
	}
	if err := r.svc.ResetToRoot(ctx, conv); err != nil {
		return err
	}
	if abandoned != nil {
		r.reply(ctx, conv.UserID, msgLeftQueue)
	}
	r.reply(ctx, conv.UserID, rootMenu(r.catalog.Units()))
	return nil
}

func (r *Router) handleRootMenu(ctx context.Context, conv *model.Conversation, text string) error {
	units := r.catalog.Units()
	idx, ok := parseOption(text, len(units))
	if !ok {
		r.reply(ctx, conv.UserID, msgInvalidOption+"\n"+rootMenu(units))
		return nil
	}
	unit := units[idx]

	if err := r.svc.SetMenuState(ctx, conv, model.MenuStateUnit, unit.ID); err != nil {
		return err
	}
	r.recordInteraction(ctx, conv.UserID, model.InteractionUnitSelected, map[string]interface{}{
		"unit_id": unit.ID,
	})
	r.reply(ctx, conv.UserID, unitMenu(&unit))
	return nil
}

func (r *Router) handleUnitMenu(ctx context.Context, conv *model.Conversation, text string) error {
	unit, ok := r.catalog.FindUnit(conv.UnitID)
	if !ok {
		// The unit was deactivated since the user picked it.
		return r.handleReset(ctx, conv)
	}

	switch text {
	case "1":
		r.recordInteraction(ctx, conv.UserID, model.InteractionAddressViewed, map[string]interface{}{
			"unit_id": unit.ID,
		})
		r.reply(ctx, conv.UserID, unit.Address+"\n"+msgBackToMenu)
		return nil
	case "2":
		r.recordInteraction(ctx, conv.UserID, model.InteractionPricesViewed, map[string]interface{}{
			"unit_id": unit.ID,
		})
		if err := r.svc.SetMenuState(ctx, conv, model.MenuStatePrices, unit.ID); err != nil {
			return err
		}
		r.reply(ctx, conv.UserID, priceList(unit, r.catalog.Prices(unit.ID)))
		return nil
	case "3":
		depts := r.catalog.Departments(unit.ID)
		if len(depts) == 0 {
			r.reply(ctx, conv.UserID, msgNoDepartments)
			return nil
		}
		if err := r.svc.SetMenuState(ctx, conv, model.MenuStateDepartment, unit.ID); err != nil {
			return err
		}
		r.reply(ctx, conv.UserID, departmentMenu(depts))
		return nil
	case "4":
		sellers := r.catalog.Sellers(unit.ID)
		if len(sellers) == 0 {
			r.reply(ctx, conv.UserID, msgNoSellers)
			return nil
		}
		if err := r.svc.SetMenuState(ctx, conv, model.MenuStateSellers, unit.ID); err != nil {
			return err
		}
		r.reply(ctx, conv.UserID, sellerMenu(sellers))
		return nil
	default:
		r.reply(ctx, conv.UserID, msgInvalidOption+"\n"+unitMenu(unit))
		return nil
	}
}

func (r *Router) handleDepartmentMenu(ctx context.Context, conv *model.Conversation, text string) error {
	depts := r.catalog.Departments(conv.UnitID)
	idx, ok := parseOption(text, len(depts))
	if !ok {
		r.reply(ctx, conv.UserID, msgInvalidOption+"\n"+departmentMenu(depts))
		return nil
	}
	dept := depts[idx]

	_, _, err := r.svc.EnterQueue(ctx, conv.UserID, conv.UnitID, dept.ID)
	if err != nil {
		switch {
		case apperrors.IsConflictError(err):
			r.reply(ctx, conv.UserID, msgAlreadyQueued)
			return nil
		case apperrors.IsBadRequestError(err) || apperrors.IsNotFoundError(err):
			r.reply(ctx, conv.UserID, msgQueueClosedNow)
			return nil
		default:
			return err
		}
	}
	// EnterQueue already messaged the user (their position, or that it is
	// their turn) and moved the conversation along with the queue entry.
	return nil
}

func (r *Router) handleSellerMenu(ctx context.Context, conv *model.Conversation, text string) error {
	sellers := r.catalog.Sellers(conv.UnitID)
	idx, ok := parseOption(text, len(sellers))
	if !ok {
		r.reply(ctx, conv.UserID, msgInvalidOption+"\n"+sellerMenu(sellers))
		return nil
	}
	seller := sellers[idx]

	r.recordInteraction(ctx, conv.UserID, model.InteractionSellerHandoff, map[string]interface{}{
		"unit_id":   conv.UnitID,
		"seller_id": seller.ID,
	})
	r.reply(ctx, conv.UserID, sellerContact(&seller))
	return r.backToUnitMenu(ctx, conv)
}

func (r *Router) backToUnitMenu(ctx context.Context, conv *model.Conversation) error {
	unit, ok := r.catalog.FindUnit(conv.UnitID)
	if !ok {
		return r.handleReset(ctx, conv)
	}
	if err := r.svc.SetMenuState(ctx, conv, model.MenuStateUnit, unit.ID); err != nil {
		return err
	}
	r.reply(ctx, conv.UserID, unitMenu(unit))
	return nil
}

func (r *Router) reply(ctx context.Context, userID, text string) {
	if err := r.sender.Send(ctx, userID, text); err != nil {
		logger.FromContext(ctx).Error("Failed to send reply",
			zap.String("user_id", userID),
			zap.Error(err))
	}
}

func (r *Router) recordInteraction(ctx context.Context, userID, kind string, payload map[string]interface{}) {
	interaction := &model.Interaction{
		UserID:    userID,
		Kind:      kind,
		CreatedAt: utils.Now(),
	}
	if payload != nil {
		interaction.Payload = datatypes.JSON(utils.MustMarshalJSON(payload))
	}
	if err := r.interactions.Save(ctx, interaction); err != nil {
		logger.FromContext(ctx).Warn("Failed to record interaction",
			zap.String("user_id", userID),
			zap.String("kind", kind),
			zap.Error(err))
	}
}

// normalize lowercases and trims the text so "Menu " and "menu" route
// the same way.
func normalize(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}

func isResetCommand(text string) bool {
	switch text {
	case "menu", "inicio", "início", "voltar":
		return true
	}
	return false
}

// parseOption turns a numbered menu choice into a zero-based index.
func parseOption(text string, options int) (int, bool) {
	n, err := strconv.Atoi(text)
	if err != nil || n < 1 || n > options {
		return 0, false
	}
	return n - 1, true
}
