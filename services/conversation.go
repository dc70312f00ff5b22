package services

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"rental-scout/models"
	"rental-scout/storage"
	"rental-scout/utils"
)

// Cities offered as one-tap choices on the welcome screen.
var Cities = []string{
	"Paris", "Lyon", "Marseille", "Toulouse", "Nice", "Nantes", "Strasbourg",
	"Montpellier", "Bordeaux", "Lille", "Rennes", "Reims", "Grenoble",
	"Rouen", "Dijon", "Le Havre", "Saint-Étienne", "Toulon", "Angers", "Amiens",
}

// minCityLen is the shortest free-text city accepted.
const minCityLen = 2

// ReplyKind tells the transport which kind of answer to render.
type ReplyKind int

const (
	ReplyNoSession ReplyKind = iota
	ReplyWelcome
	ReplyPrompt
	ReplyInvalidInput
	ReplyPreferenceSaved
	ReplyFilters
	ReplyFiltersReset
	ReplyAlertsEnabled
	ReplyAlertsDisabled
	ReplySearchCompleted
	ReplySearchRejected
	ReplyError
)

var replyKindNames = map[ReplyKind]string{
	ReplyNoSession:       "no_session",
	ReplyWelcome:         "welcome",
	ReplyPrompt:          "prompt",
	ReplyInvalidInput:    "invalid_input",
	ReplyPreferenceSaved: "preference_saved",
	ReplyFilters:         "filters",
	ReplyFiltersReset:    "filters_reset",
	ReplyAlertsEnabled:   "alerts_enabled",
	ReplyAlertsDisabled:  "alerts_disabled",
	ReplySearchCompleted: "search_completed",
	ReplySearchRejected:  "search_rejected",
	ReplyError:           "error",
}

func (k ReplyKind) String() string {
	if s, ok := replyKindNames[k]; ok {
		return s
	}
	return "unknown"
}

// Reply is the structured outcome of one inbound event. Which fields are set
// depends on Kind.
type Reply struct {
	Kind        ReplyKind
	Step        models.Step
	Field       models.PreferenceField
	Value       string
	Location    string
	Listings    []models.ListingRecord
	Summary     models.SearchSummary
	Preferences models.UserPreferences
	Options     []string
	Err         error
}

// SessionStore is the part of session.Store the conversation needs.
type SessionStore interface {
	CreateOrReplace(ctx context.Context, chatID int64, step models.Step, payload map[string]any) error
	Get(ctx context.Context, chatID int64) (models.ConversationSession, bool)
	Clear(ctx context.Context, chatID int64) error
}

// Searcher runs an admission-gated search.
type Searcher interface {
	Search(ctx context.Context, location string, filter models.SearchFilter) ([]models.ListingRecord, error)
	Active() int64
	Ceiling() int64
}

var filterSteps = map[models.PreferenceField]models.Step{
	models.PrefPriceMin:     models.StepAwaitingPriceMin,
	models.PrefPriceMax:     models.StepAwaitingPriceMax,
	models.PrefSurfaceMin:   models.StepAwaitingSurfaceMin,
	models.PrefSurfaceMax:   models.StepAwaitingSurfaceMax,
	models.PrefPropertyType: models.StepAwaitingPropertyType,
}

var stepFields = map[models.Step]models.PreferenceField{
	models.StepAwaitingPriceMin:   models.PrefPriceMin,
	models.StepAwaitingPriceMax:   models.PrefPriceMax,
	models.StepAwaitingSurfaceMin: models.PrefSurfaceMin,
	models.StepAwaitingSurfaceMax: models.PrefSurfaceMax,
}

// Conversation drives the per-user state machine. Every method returns a
// Reply for the transport to render; none of them fail the caller.
type Conversation struct {
	sessions SessionStore
	users    storage.UserRepository
	searches storage.SearchLog
	searcher Searcher
	logger   *utils.Logger

	startedAt time.Time
	now       func() time.Time
}

// NewConversation wires the conversation to its collaborators.
func NewConversation(sessions SessionStore, users storage.UserRepository, searches storage.SearchLog, searcher Searcher, logger *utils.Logger) *Conversation {
	return &Conversation{
		sessions:  sessions,
		users:     users,
		searches:  searches,
		searcher:  searcher,
		logger:    logger.With("component", "conversation"),
		startedAt: time.Now(),
		now:       time.Now,
	}
}

// Start registers the user, drops any pending step and offers the city list.
func (c *Conversation) Start(ctx context.Context, chatID int64) Reply {
	c.touch(ctx, chatID)
	if err := c.sessions.Clear(ctx, chatID); err != nil {
		c.logger.Warn("session clear failed", "chat_id", chatID, "err", err)
	}
	if err := c.users.EnsureUser(ctx, chatID); err != nil {
		c.logger.Error("user registration failed", err, "chat_id", chatID)
		return Reply{Kind: ReplyError, Err: err}
	}
	return Reply{Kind: ReplyWelcome, Options: Cities}
}

// BeginSearch asks for a city.
func (c *Conversation) BeginSearch(ctx context.Context, chatID int64) Reply {
	c.touch(ctx, chatID)
	return c.enter(ctx, chatID, models.StepAwaitingCity)
}

// BeginAlerts asks for an alert email, or "off".
func (c *Conversation) BeginAlerts(ctx context.Context, chatID int64) Reply {
	c.touch(ctx, chatID)
	return c.enter(ctx, chatID, models.StepAwaitingEmail)
}

// Filters returns the stored preferences so the transport can present the
// filter menu.
func (c *Conversation) Filters(ctx context.Context, chatID int64) Reply {
	c.touch(ctx, chatID)
	prefs, err := c.users.Preferences(ctx, chatID)
	if err != nil {
		c.logger.Error("load preferences failed", err, "chat_id", chatID)
		return Reply{Kind: ReplyError, Err: err}
	}
	return Reply{Kind: ReplyFilters, Preferences: prefs}
}

// BeginFilter asks for a new value of field.
func (c *Conversation) BeginFilter(ctx context.Context, chatID int64, field models.PreferenceField) Reply {
	c.touch(ctx, chatID)
	step, ok := filterSteps[field]
	if !ok {
		return Reply{Kind: ReplyInvalidInput, Field: field}
	}
	r := c.enter(ctx, chatID, step)
	r.Field = field
	if step == models.StepAwaitingPropertyType {
		r.Options = models.PropertyTypes
	}
	return r
}

// ResetFilters clears every stored search preference.
func (c *Conversation) ResetFilters(ctx context.Context, chatID int64) Reply {
	c.touch(ctx, chatID)
	if err := c.users.ResetPreferences(ctx, chatID); err != nil {
		c.logger.Error("reset preferences failed", err, "chat_id", chatID)
		return Reply{Kind: ReplyError, Err: err}
	}
	return Reply{Kind: ReplyFiltersReset}
}

// ChooseCity searches city with the stored preferences without touching the
// session.
func (c *Conversation) ChooseCity(ctx context.Context, chatID int64, city string) Reply {
	c.touch(ctx, chatID)
	return c.searchWithPreferences(ctx, chatID, city)
}

// OnSearchRequest searches directly, bypassing session state.
func (c *Conversation) OnSearchRequest(ctx context.Context, chatID int64, location string, filter models.SearchFilter) Reply {
	c.touch(ctx, chatID)
	return c.search(ctx, chatID, location, filter)
}

// OnFreeText interprets text against the user's current step.
func (c *Conversation) OnFreeText(ctx context.Context, chatID int64, text string) Reply {
	sess, ok := c.sessions.Get(ctx, chatID)
	if !ok {
		return Reply{Kind: ReplyNoSession}
	}
	text = strings.TrimSpace(text)

	var (
		reply Reply
		err   error
	)
	switch sess.Step {
	case models.StepAwaitingCity:
		reply, err = c.onCity(ctx, chatID, text)
	case models.StepAwaitingEmail:
		reply, err = c.onEmail(ctx, chatID, text)
	case models.StepAwaitingPriceMin, models.StepAwaitingPriceMax,
		models.StepAwaitingSurfaceMin, models.StepAwaitingSurfaceMax:
		reply, err = c.onNumber(ctx, chatID, stepFields[sess.Step], sess.Step, text)
	case models.StepAwaitingPropertyType:
		reply, err = c.onPropertyType(ctx, chatID, text)
	default:
		c.clear(ctx, chatID)
		return Reply{Kind: ReplyNoSession}
	}

	if err != nil {
		c.logger.Error("free text handling failed", err, "chat_id", chatID, "step", sess.Step)
		c.clear(ctx, chatID)
		return Reply{Kind: ReplyError, Err: err}
	}
	return reply
}

// Stats returns the usage snapshot for chatID.
func (c *Conversation) Stats(ctx context.Context, chatID int64) (models.Stats, error) {
	c.touch(ctx, chatID)

	mine, err := c.searches.CountUserSearches(ctx, chatID)
	if err != nil {
		return models.Stats{}, err
	}
	users, err := c.users.CountUsers(ctx)
	if err != nil {
		return models.Stats{}, err
	}
	total, err := c.searches.CountSearches(ctx)
	if err != nil {
		return models.Stats{}, err
	}
	return models.Stats{
		UserSearches:   mine,
		TotalUsers:     users,
		TotalSearches:  total,
		ActiveSearches: c.searcher.Active(),
		MaxConcurrent:  c.searcher.Ceiling(),
		Uptime:         c.now().Sub(c.startedAt),
	}, nil
}

func (c *Conversation) onCity(ctx context.Context, chatID int64, city string) (Reply, error) {
	if len([]rune(city)) < minCityLen {
		return Reply{Kind: ReplyInvalidInput, Step: models.StepAwaitingCity}, nil
	}
	c.clear(ctx, chatID)
	return c.searchWithPreferences(ctx, chatID, city), nil
}

func (c *Conversation) onEmail(ctx context.Context, chatID int64, text string) (Reply, error) {
	switch {
	case strings.EqualFold(text, "off"):
		if err := c.users.SetAlerts(ctx, chatID, "", false); err != nil {
			return Reply{}, err
		}
		c.clear(ctx, chatID)
		return Reply{Kind: ReplyAlertsDisabled}, nil
	case utils.ValidateEmail(text):
		if err := c.users.SetAlerts(ctx, chatID, text, true); err != nil {
			return Reply{}, err
		}
		c.clear(ctx, chatID)
		return Reply{Kind: ReplyAlertsEnabled, Value: text}, nil
	default:
		return Reply{Kind: ReplyInvalidInput, Step: models.StepAwaitingEmail}, nil
	}
}

func (c *Conversation) onNumber(ctx context.Context, chatID int64, field models.PreferenceField, step models.Step, text string) (Reply, error) {
	n, ok := utils.ParseNonNegativeInt(text)
	if !ok {
		return Reply{Kind: ReplyInvalidInput, Step: step, Field: field}, nil
	}
	if err := c.users.SetPreference(ctx, chatID, field, n); err != nil {
		return Reply{}, err
	}
	c.clear(ctx, chatID)
	return Reply{Kind: ReplyPreferenceSaved, Field: field, Value: strconv.Itoa(n)}, nil
}

func (c *Conversation) onPropertyType(ctx context.Context, chatID int64, text string) (Reply, error) {
	for _, pt := range models.PropertyTypes {
		if !strings.EqualFold(pt, text) {
			continue
		}
		if err := c.users.SetPreference(ctx, chatID, models.PrefPropertyType, pt); err != nil {
			return Reply{}, err
		}
		c.clear(ctx, chatID)
		return Reply{Kind: ReplyPreferenceSaved, Field: models.PrefPropertyType, Value: pt}, nil
	}
	return Reply{
		Kind:    ReplyInvalidInput,
		Step:    models.StepAwaitingPropertyType,
		Field:   models.PrefPropertyType,
		Options: models.PropertyTypes,
	}, nil
}

func (c *Conversation) searchWithPreferences(ctx context.Context, chatID int64, city string) Reply {
	prefs, err := c.users.Preferences(ctx, chatID)
	if err != nil {
		c.logger.Warn("preferences unavailable, searching without filters", "chat_id", chatID, "err", err)
		prefs = models.UserPreferences{ChatID: chatID}
	}
	return c.search(ctx, chatID, city, prefs.Filter(city))
}

func (c *Conversation) search(ctx context.Context, chatID int64, location string, filter models.SearchFilter) Reply {
	listings, err := c.searcher.Search(ctx, location, filter)
	if errors.Is(err, ErrConcurrencyLimitExceeded) {
		c.logger.Warn("search rejected", "chat_id", chatID, "location", location, "err", err)
		return Reply{Kind: ReplySearchRejected, Location: location, Err: err}
	}
	if err != nil {
		c.logger.Error("search failed", err, "chat_id", chatID, "location", location)
		return Reply{Kind: ReplyError, Location: location, Err: err}
	}

	ev := models.SearchEvent{
		ID:        uuid.New(),
		ChatID:    chatID,
		Query:     location,
		Results:   len(listings),
		CreatedAt: c.now(),
	}
	if err := c.searches.AppendSearch(ctx, ev); err != nil {
		c.logger.Warn("search log append failed", "chat_id", chatID, "err", err)
	}
	if err := c.users.SetPreference(ctx, chatID, models.PrefLocation, location); err != nil {
		c.logger.Warn("last location not saved", "chat_id", chatID, "err", err)
	}

	return Reply{
		Kind:     ReplySearchCompleted,
		Location: location,
		Listings: listings,
		Summary:  Summarize(listings),
	}
}

// enter moves the user to step. A failed write is logged and the prompt is
// still returned.
func (c *Conversation) enter(ctx context.Context, chatID int64, step models.Step) Reply {
	if err := c.sessions.CreateOrReplace(ctx, chatID, step, nil); err != nil {
		c.logger.Warn("session write failed, continuing without state", "chat_id", chatID, "step", step, "err", err)
	}
	return Reply{Kind: ReplyPrompt, Step: step}
}

func (c *Conversation) clear(ctx context.Context, chatID int64) {
	if err := c.sessions.Clear(ctx, chatID); err != nil {
		c.logger.Warn("session clear failed", "chat_id", chatID, "err", err)
	}
}

func (c *Conversation) touch(ctx context.Context, chatID int64) {
	if err := c.users.TouchUser(ctx, chatID); err != nil {
		c.logger.Debug("activity not recorded", "chat_id", chatID, "err", err)
	}
}
