// Package dispatcher implements the conversation state machine.
//
// Inbound events (commands, free text, button callbacks) arrive from the
// transport adapter, already serialized per chat. The dispatcher reads and
// writes the session store, calls the completion client, and renders
// results through the Transport interface. No error escapes a handler: a
// failed completion degrades to an apology message and the session is left
// untouched so the user can retry.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"

	"github.com/okravets/zapytai/internal/assets"
	"github.com/okravets/zapytai/internal/completion"
	"github.com/okravets/zapytai/internal/config"
	"github.com/okravets/zapytai/internal/logging"
	"github.com/okravets/zapytai/internal/persona"
	"github.com/okravets/zapytai/internal/session"
)

// Format defines how a message is rendered by the transport
type Format string

const (
	FormatPlain    Format = "plain"
	FormatMarkdown Format = "markdown"
)

// Button is one inline button: an opaque callback payload plus a label
type Button struct {
	ID    string
	Label string
}

// Outbound is a message to send or edit
type Outbound struct {
	Text    string
	Format  Format
	Buttons [][]Button
}

// Command is one entry of the bot command menu
type Command struct {
	Name        string
	Description string
}

// Transport is the outbound side of the chat platform. Implemented by the
// telegram adapter; replaced with a recorder in tests.
type Transport interface {
	// Send delivers a message and returns its message ID, which is only
	// consumed to later delete placeholder notices.
	Send(chatID int64, msg *Outbound) (int, error)

	// Edit replaces an existing message in place
	Edit(chatID int64, messageID int, msg *Outbound) error

	// Delete removes a message
	Delete(chatID int64, messageID int) error

	// SendImage sends a named image
	SendImage(chatID int64, name string, data []byte) error

	// SetCommands publishes the bot command menu
	SetCommands(commands []Command) error
}

// Config wires the dispatcher's collaborators
type Config struct {
	Sessions  *session.Store
	Client    completion.Client
	Assets    *assets.Library
	Personas  *persona.Manager
	Transport Transport
	Logger    *logging.Logger
	Languages []config.Language
}

// Dispatcher routes inbound events to conversation flows
type Dispatcher struct {
	sessions  *session.Store
	client    completion.Client
	assets    *assets.Library
	personas  *persona.Manager
	transport Transport
	logger    *logging.Logger
	languages []config.Language

	// pick selects the fallback response; swapped out in tests
	pick func(n int) int
}

// New creates a dispatcher
func New(cfg Config) *Dispatcher {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.New()
	}
	personas := cfg.Personas
	if personas == nil {
		personas = persona.NewManager()
	}
	return &Dispatcher{
		sessions:  cfg.Sessions,
		client:    cfg.Client,
		assets:    cfg.Assets,
		personas:  personas,
		transport: cfg.Transport,
		logger:    logger,
		languages: cfg.Languages,
		pick:      rand.Intn,
	}
}

// RequiredPrompts lists the prompt keys the dispatcher depends on.
// The entry point verifies them against the asset library at startup.
func RequiredPrompts() []string {
	return []string{"gpt", "random", "recommend"}
}

// RequiredMessages lists the message keys the dispatcher depends on
func RequiredMessages() []string {
	return []string{"start"}
}

// MenuCommands returns the bot command menu
func MenuCommands() []Command {
	return []Command{
		{Name: "start", Description: textStartLabel},
		{Name: "random", Description: textRandomLabel},
		{Name: "gpt", Description: textGptLabel},
		{Name: "talk", Description: textTalkLabel},
		{Name: "translate", Description: textTranslateLabel},
		{Name: "recommend", Description: textRecommendLabel},
	}
}

// -----------------------------------------------------------------------------
// Event entry points
// -----------------------------------------------------------------------------

// HandleCommand processes a /command
func (d *Dispatcher) HandleCommand(ctx context.Context, chatID int64, command string) {
	defer d.recoverHandler(chatID, "command "+command)

	switch command {
	case "start":
		d.startFlow(chatID)
	case "random":
		d.randomFlow(ctx, chatID)
	case "gpt":
		d.gptFlow(chatID)
	case "talk":
		d.talkMenu(chatID)
	case "translate":
		d.translateMenu(chatID)
	case "recommend":
		d.recommendMenu(chatID)
	default:
		d.logger.Debug("Ignoring unknown command", "chat_id", chatID, "command", command)
	}
}

// HandleText processes a free-text message according to the active state
func (d *Dispatcher) HandleText(ctx context.Context, chatID int64, text string) {
	defer d.recoverHandler(chatID, "text")

	sess := d.sessions.Get(chatID)

	switch sess.State {
	case session.StateTranslating:
		d.translateText(ctx, chatID, sess, text)
	case session.StatePickingGenre:
		d.recommendGenre(ctx, chatID, sess, text)
	case session.StateAskingGPT:
		d.gptText(ctx, chatID, sess, text)
	case session.StateTalking:
		d.talkText(ctx, chatID, sess, text)
	default:
		d.fallback(ctx, chatID, text)
	}
}

// HandleCallback processes a button click. messageID identifies the message
// carrying the clicked button, for in-place edits.
func (d *Dispatcher) HandleCallback(ctx context.Context, chatID int64, messageID int, data string) {
	defer d.recoverHandler(chatID, "callback "+data)

	switch {
	case data == "start":
		d.startFlow(chatID)
	case data == "random":
		d.randomFlow(ctx, chatID)
	case strings.HasPrefix(data, "talk_"):
		d.selectPersona(chatID, data)
	case strings.HasPrefix(data, "lang_"):
		d.selectLanguage(chatID, messageID, strings.TrimPrefix(data, "lang_"))
	case strings.HasPrefix(data, "change_"):
		d.changeLanguage(chatID, messageID, strings.TrimPrefix(data, "change_"))
	case data == "finish_translate":
		d.finishTranslate(chatID, messageID)
	case data == "rec_dislike":
		d.recommendDislike(ctx, chatID, messageID)
	case strings.HasPrefix(data, "rec_"):
		d.selectCategory(chatID, messageID, data)
	default:
		d.logger.Debug("Ignoring unknown callback", "chat_id", chatID, "data", data)
	}
}

// recoverHandler keeps a panicking handler from taking the process down
func (d *Dispatcher) recoverHandler(chatID int64, event string) {
	if r := recover(); r != nil {
		d.logger.Error("Handler panic", "chat_id", chatID, "event", event, "panic", r)
	}
}

// -----------------------------------------------------------------------------
// Top-level flows
// -----------------------------------------------------------------------------

// startFlow resets the session and shows the main menu
func (d *Dispatcher) startFlow(chatID int64) {
	d.sessions.Reset(chatID)
	d.sendImage(chatID, "start")

	greeting, err := d.assets.Message("start")
	if err != nil {
		d.logger.Error("Failed to load start message", "error", err)
	} else {
		d.send(chatID, greeting)
	}

	if err := d.transport.SetCommands(MenuCommands()); err != nil {
		d.logger.Warn("Failed to set command menu", "error", err)
	}
}

// randomFlow asks for one random fact. Stateless: it does not touch the
// session, so it can be re-entered via the "another one" button.
func (d *Dispatcher) randomFlow(ctx context.Context, chatID int64) {
	d.sendImage(chatID, "random")

	d.withPlaceholder(ctx, chatID, textRandomWait, textRandomError, func(ctx context.Context) error {
		prompt, err := d.assets.Prompt("random")
		if err != nil {
			return err
		}

		fact, err := completion.Ask(ctx, d.client, prompt, textRandomQuestion)
		if err != nil {
			return err
		}

		_, err = d.transport.Send(chatID, &Outbound{
			Text: fact,
			Buttons: [][]Button{
				{{ID: "random", Label: textRandomAgain}},
				{{ID: "start", Label: textFinish}},
			},
		})
		return err
	})
}

// gptFlow enters free-form Q&A mode
func (d *Dispatcher) gptFlow(chatID int64) {
	d.sessions.Reset(chatID)
	d.sendImage(chatID, "gpt")

	prompt, err := d.assets.Prompt("gpt")
	if err != nil {
		d.logger.Error("Failed to load gpt prompt", "error", err)
		d.send(chatID, textGptError)
		return
	}

	sess := d.sessions.Get(chatID)
	sess.State = session.StateAskingGPT
	sess.Conversation = completion.NewConversation(prompt)

	d.send(chatID, textAskQuestion)
}

// talkMenu shows the persona selection menu
func (d *Dispatcher) talkMenu(chatID int64) {
	d.sessions.Reset(chatID)
	d.sendImage(chatID, "talk")

	var rows [][]Button
	for _, p := range d.personas.List() {
		rows = append(rows, []Button{{ID: p.ID, Label: p.Label}})
	}
	rows = append(rows, []Button{{ID: "start", Label: textFinish}})

	if _, err := d.transport.Send(chatID, &Outbound{Text: textTalkMenu, Buttons: rows}); err != nil {
		d.logger.Error("Failed to send talk menu", "error", err)
	}
}

// translateMenu shows the target language grid
func (d *Dispatcher) translateMenu(chatID int64) {
	d.sessions.Reset(chatID)
	d.sendImage(chatID, "start")

	msg := &Outbound{
		Text:    textTranslateMenu,
		Format:  FormatMarkdown,
		Buttons: d.languageRows("", "lang_"),
	}
	if _, err := d.transport.Send(chatID, msg); err != nil {
		d.logger.Error("Failed to send translate menu", "error", err)
	}
}

// recommendMenu shows the category menu
func (d *Dispatcher) recommendMenu(chatID int64) {
	d.sessions.Reset(chatID)
	d.sendImage(chatID, "start")

	var rows [][]Button
	for _, id := range recommendCategoryOrder {
		rows = append(rows, []Button{{ID: id, Label: recommendCategoryLabels[id]}})
	}
	rows = append(rows, []Button{{ID: "start", Label: textFinishCross}})

	msg := &Outbound{Text: textRecommendMenu, Format: FormatMarkdown, Buttons: rows}
	if _, err := d.transport.Send(chatID, msg); err != nil {
		d.logger.Error("Failed to send recommend menu", "error", err)
	}
}

// -----------------------------------------------------------------------------
// Callback branches
// -----------------------------------------------------------------------------

// selectPersona starts a dialogue with the clicked persona
func (d *Dispatcher) selectPersona(chatID int64, id string) {
	p, err := d.personas.Get(id)
	if err != nil {
		d.logger.Warn("Unknown persona selected", "chat_id", chatID, "persona", id)
		return
	}

	d.sessions.Reset(chatID)
	sess := d.sessions.Get(chatID)
	sess.State = session.StateTalking
	sess.Personality = p.ID
	sess.Conversation = completion.NewConversation(p.SystemPrompt)

	d.sendImage(chatID, p.ID)

	msg := &Outbound{
		Text:    fmt.Sprintf(textTalkGreetingFmt, p.Name),
		Buttons: [][]Button{{{ID: "start", Label: textFinish}}},
	}
	if _, err := d.transport.Send(chatID, msg); err != nil {
		d.logger.Error("Failed to send persona greeting", "error", err)
	}
}

// selectLanguage enters translation mode with the clicked language
func (d *Dispatcher) selectLanguage(chatID int64, messageID int, code string) {
	sess := d.sessions.Get(chatID)
	sess.State = session.StateTranslating
	sess.TargetLanguage = code

	d.edit(chatID, messageID, &Outbound{
		Text:   fmt.Sprintf(textTranslateChosenFmt, d.languageName(code)),
		Format: FormatMarkdown,
	})
}

// changeLanguage switches the target language, staying in translation mode
func (d *Dispatcher) changeLanguage(chatID int64, messageID int, code string) {
	sess := d.sessions.Get(chatID)
	sess.TargetLanguage = code

	d.edit(chatID, messageID, &Outbound{
		Text:   fmt.Sprintf(textTranslateChangedFmt, d.languageName(code)),
		Format: FormatMarkdown,
	})
}

// finishTranslate leaves translation mode, resetting the session to defaults
func (d *Dispatcher) finishTranslate(chatID int64, messageID int) {
	d.sessions.Reset(chatID)
	d.edit(chatID, messageID, &Outbound{Text: textTranslateFinished})
}

// selectCategory stores the recommendation category and asks for a genre
func (d *Dispatcher) selectCategory(chatID int64, messageID int, data string) {
	category, ok := recommendCategories[data]
	if !ok {
		d.logger.Debug("Ignoring unknown category callback", "chat_id", chatID, "data", data)
		return
	}

	sess := d.sessions.Get(chatID)
	sess.State = session.StatePickingGenre
	sess.RecCategory = category

	d.edit(chatID, messageID, &Outbound{
		Text:   fmt.Sprintf(textRecommendChosenFmt, recommendCategoryEmoji[data], category),
		Format: FormatMarkdown,
	})
}

// recommendDislike repeats the recommendation request, excluding everything
// shown so far in this session
func (d *Dispatcher) recommendDislike(ctx context.Context, chatID int64, messageID int) {
	sess := d.sessions.Get(chatID)
	if sess.RecCategory == "" || sess.RecGenre == "" {
		d.edit(chatID, messageID, &Outbound{Text: textRecommendLost})
		return
	}

	// Progress note replaces the clicked message
	d.edit(chatID, messageID, &Outbound{Text: textRecommendDislikeWait})

	reply, err := d.requestRecommendation(ctx, sess)
	if err != nil {
		d.logger.Error("Recommendation failed", "chat_id", chatID, "error", err)
		d.edit(chatID, messageID, &Outbound{Text: textRecommendError})
		return
	}

	sess.Rejected = append(sess.Rejected, parseRecommendationTitle(reply))

	d.edit(chatID, messageID, &Outbound{
		Text:   fmt.Sprintf(textRecommendResultFmt, sess.RecCategory, reply),
		Format: FormatMarkdown,
	})
	if _, err := d.transport.Send(chatID, &Outbound{
		Text:    textRecommendPickAction,
		Buttons: recommendActionButtons(),
	}); err != nil {
		d.logger.Error("Failed to send recommendation actions", "error", err)
	}
}

// -----------------------------------------------------------------------------
// Free-text branches
// -----------------------------------------------------------------------------

// translateText translates one message into the selected target language
func (d *Dispatcher) translateText(ctx context.Context, chatID int64, sess *session.Session, text string) {
	if sess.TargetLanguage == "" {
		d.send(chatID, textTranslateNoLang)
		return
	}

	target := sess.TargetLanguage
	d.withPlaceholder(ctx, chatID, textTranslateWait, textTranslateError, func(ctx context.Context) error {
		instruction := fmt.Sprintf(translatePromptFmt, d.languageName(target))

		translation, err := completion.Ask(ctx, d.client, instruction, text)
		if err != nil {
			return err
		}

		rows := d.languageRows(target, "change_")
		rows = append(rows, []Button{{ID: "finish_translate", Label: textFinishCross}})

		_, err = d.transport.Send(chatID, &Outbound{
			Text:    fmt.Sprintf(textTranslateResultFmt, d.languageName(target), translation),
			Format:  FormatMarkdown,
			Buttons: rows,
		})
		return err
	})
}

// recommendGenre treats the message as the genre and requests the first
// recommendation of the session
func (d *Dispatcher) recommendGenre(ctx context.Context, chatID int64, sess *session.Session, text string) {
	if sess.RecCategory == "" {
		d.send(chatID, textRecommendNoCategory)
		return
	}

	sess.RecGenre = strings.TrimSpace(text)
	sess.Rejected = nil

	d.withPlaceholder(ctx, chatID, textRecommendWait, textRecommendError, func(ctx context.Context) error {
		reply, err := d.requestRecommendation(ctx, sess)
		if err != nil {
			return err
		}

		sess.Rejected = append(sess.Rejected, parseRecommendationTitle(reply))

		_, err = d.transport.Send(chatID, &Outbound{
			Text:    fmt.Sprintf(textRecommendResultFmt, sess.RecCategory, reply),
			Format:  FormatMarkdown,
			Buttons: recommendActionButtons(),
		})
		return err
	})
}

// gptText forwards one question in free-form Q&A mode
func (d *Dispatcher) gptText(ctx context.Context, chatID int64, sess *session.Session, text string) {
	conv := sess.Conversation
	if conv == nil {
		// Session predates a restart of the flow; start a fresh exchange.
		prompt, err := d.assets.Prompt("gpt")
		if err != nil {
			d.logger.Error("Failed to load gpt prompt", "error", err)
			d.send(chatID, textGptError)
			return
		}
		conv = completion.NewConversation(prompt)
		sess.Conversation = conv
	}

	d.withPlaceholder(ctx, chatID, textThinkingWait, textGptError, func(ctx context.Context) error {
		answer, err := conv.Continue(ctx, d.client, text)
		if err != nil {
			return err
		}
		_, err = d.transport.Send(chatID, &Outbound{Text: answer})
		return err
	})
}

// talkText forwards one dialogue turn to the selected persona
func (d *Dispatcher) talkText(ctx context.Context, chatID int64, sess *session.Session, text string) {
	if sess.Personality == "" {
		d.send(chatID, textTalkNoPersona)
		return
	}

	p, err := d.personas.Get(sess.Personality)
	if err != nil {
		d.logger.Error("Session references unknown persona", "chat_id", chatID, "persona", sess.Personality)
		d.send(chatID, textTalkNoPersona)
		return
	}

	conv := sess.Conversation
	if conv == nil {
		conv = completion.NewConversation(p.SystemPrompt)
		sess.Conversation = conv
	}

	d.withPlaceholder(ctx, chatID, textThinkingWait, textTalkError, func(ctx context.Context) error {
		answer, err := conv.Continue(ctx, d.client, text)
		if err != nil {
			return err
		}
		_, err = d.transport.Send(chatID, &Outbound{
			Text:    fmt.Sprintf("%s: %s", p.Name, answer),
			Buttons: [][]Button{{{ID: "start", Label: textFinish}}},
		})
		return err
	})
}

// fallback runs keyword sniffing over idle free text
func (d *Dispatcher) fallback(ctx context.Context, chatID int64, text string) {
	switch sniffIntent(text) {
	case intentRandom:
		d.send(chatID, textSniffRandom)
		d.randomFlow(ctx, chatID)
	case intentGPT:
		d.send(chatID, textSniffGpt)
		d.gptFlow(chatID)
	case intentTalk:
		d.send(chatID, textSniffTalk)
		d.talkMenu(chatID)
	default:
		response := fallbackResponses[d.pick(len(fallbackResponses))]
		d.send(chatID, response+"\n"+textCommandHints)
	}
}

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

// withPlaceholder brackets a blocking flow with a transient "please wait"
// message: sent once before fn runs and deleted exactly once on every exit
// path, including a panic inside fn. A failing fn degrades to errText.
func (d *Dispatcher) withPlaceholder(ctx context.Context, chatID int64, waitText, errText string, fn func(ctx context.Context) error) {
	placeholderID, err := d.transport.Send(chatID, &Outbound{Text: waitText})
	if err != nil {
		d.logger.Warn("Failed to send placeholder", "chat_id", chatID, "error", err)
		placeholderID = 0
	}

	defer func() {
		if placeholderID == 0 {
			return
		}
		if err := d.transport.Delete(chatID, placeholderID); err != nil {
			d.logger.Warn("Failed to delete placeholder", "chat_id", chatID, "error", err)
		}
	}()

	if err := fn(ctx); err != nil {
		if !errors.Is(err, completion.ErrCompletion) {
			d.logger.Error("Flow failed", "chat_id", chatID, "error", err)
		} else {
			d.logger.Error("Completion failed", "chat_id", chatID, "error", err)
		}
		d.send(chatID, errText)
	}
}

// requestRecommendation asks for one recommendation, excluding titles
// already rejected in this session
func (d *Dispatcher) requestRecommendation(ctx context.Context, sess *session.Session) (string, error) {
	base, err := d.assets.Prompt("recommend")
	if err != nil {
		return "", err
	}

	exclude := ""
	if len(sess.Rejected) > 0 {
		exclude = fmt.Sprintf(recommendExcludeFmt, strings.Join(sess.Rejected, ", "))
	}

	prompt := fmt.Sprintf(recommendPromptFmt, base, sess.RecCategory, sess.RecGenre, exclude)
	return completion.Ask(ctx, d.client, prompt, "")
}

// parseRecommendationTitle extracts the title from the model's reply: the
// first line with the leading marker glyph stripped. Empty replies yield a
// literal "Unknown".
func parseRecommendationTitle(reply string) string {
	if strings.TrimSpace(reply) == "" {
		return "Unknown"
	}
	first := strings.SplitN(reply, "\n", 2)[0]
	return strings.TrimSpace(strings.ReplaceAll(first, "📌", ""))
}

// recommendActionButtons returns the dislike/finish button rows
func recommendActionButtons() [][]Button {
	return [][]Button{
		{{ID: "rec_dislike", Label: textRecommendDislike}},
		{{ID: "start", Label: textFinishCross}},
	}
}

// languageRows builds the language grid, two buttons per row, skipping the
// excluded code. Payloads are prefix+code.
func (d *Dispatcher) languageRows(exclude, prefix string) [][]Button {
	var buttons []Button
	for _, l := range d.languages {
		if l.Code == exclude {
			continue
		}
		buttons = append(buttons, Button{ID: prefix + l.Code, Label: l.Name})
	}
	return chunkRows(buttons, 2)
}

// chunkRows splits buttons into rows of at most perRow
func chunkRows(buttons []Button, perRow int) [][]Button {
	if perRow < 1 {
		perRow = 1
	}
	var rows [][]Button
	for len(buttons) > 0 {
		n := perRow
		if len(buttons) < n {
			n = len(buttons)
		}
		rows = append(rows, buttons[:n])
		buttons = buttons[n:]
	}
	return rows
}

func (d *Dispatcher) languageName(code string) string {
	for _, l := range d.languages {
		if l.Code == code {
			return l.Name
		}
	}
	return code
}

// send delivers a plain text message, logging failures
func (d *Dispatcher) send(chatID int64, text string) {
	if _, err := d.transport.Send(chatID, &Outbound{Text: text}); err != nil {
		d.logger.Error("Failed to send message", "chat_id", chatID, "error", err)
	}
}

// edit replaces a message in place, logging failures
func (d *Dispatcher) edit(chatID int64, messageID int, msg *Outbound) {
	if err := d.transport.Edit(chatID, messageID, msg); err != nil {
		d.logger.Error("Failed to edit message", "chat_id", chatID, "error", err)
	}
}

// sendImage sends a named image; a missing image only logs
func (d *Dispatcher) sendImage(chatID int64, name string) {
	data, err := d.assets.Image(name)
	if err != nil {
		d.logger.Warn("Image unavailable", "name", name, "error", err)
		return
	}
	if err := d.transport.SendImage(chatID, name, data); err != nil {
		d.logger.Error("Failed to send image", "name", name, "error", err)
	}
}
