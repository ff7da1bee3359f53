package dispatcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okravets/zapytai/internal/assets"
	"github.com/okravets/zapytai/internal/completion"
	"github.com/okravets/zapytai/internal/config"
	"github.com/okravets/zapytai/internal/session"
)

// -----------------------------------------------------------------------------
// Fakes
// -----------------------------------------------------------------------------

type sentMessage struct {
	chatID int64
	id     int
	msg    Outbound
}

type editCall struct {
	chatID    int64
	messageID int
	msg       Outbound
}

type deleteCall struct {
	chatID    int64
	messageID int
}

// fakeTransport records every outbound call
type fakeTransport struct {
	nextID   int
	sent     []sentMessage
	edits    []editCall
	deletes  []deleteCall
	images   []string
	commands [][]Command
}

func (t *fakeTransport) Send(chatID int64, msg *Outbound) (int, error) {
	t.nextID++
	t.sent = append(t.sent, sentMessage{chatID: chatID, id: t.nextID, msg: *msg})
	return t.nextID, nil
}

func (t *fakeTransport) Edit(chatID int64, messageID int, msg *Outbound) error {
	t.edits = append(t.edits, editCall{chatID: chatID, messageID: messageID, msg: *msg})
	return nil
}

func (t *fakeTransport) Delete(chatID int64, messageID int) error {
	t.deletes = append(t.deletes, deleteCall{chatID: chatID, messageID: messageID})
	return nil
}

func (t *fakeTransport) SendImage(chatID int64, name string, _ []byte) error {
	t.images = append(t.images, name)
	return nil
}

func (t *fakeTransport) SetCommands(commands []Command) error {
	t.commands = append(t.commands, commands)
	return nil
}

// sentTexts returns the text of every sent message for a chat
func (t *fakeTransport) sentTexts(chatID int64) []string {
	var texts []string
	for _, s := range t.sent {
		if s.chatID == chatID {
			texts = append(texts, s.msg.Text)
		}
	}
	return texts
}

// lastSent returns the most recent message sent to a chat
func (t *fakeTransport) lastSent(chatID int64) *sentMessage {
	for i := len(t.sent) - 1; i >= 0; i-- {
		if t.sent[i].chatID == chatID {
			return &t.sent[i]
		}
	}
	return nil
}

// completion request as recorded by the fake client
type recordedRequest struct {
	systemPrompt string
	turns        []completion.Turn
}

// fakeClient returns scripted answers and records every request
type fakeClient struct {
	answers  []string
	err      error
	requests []recordedRequest
}

func (c *fakeClient) Complete(_ context.Context, systemPrompt string, turns []completion.Turn) (string, error) {
	recorded := make([]completion.Turn, len(turns))
	copy(recorded, turns)
	c.requests = append(c.requests, recordedRequest{systemPrompt: systemPrompt, turns: recorded})

	if c.err != nil {
		return "", c.err
	}
	answer := "default answer"
	if len(c.answers) > 0 {
		answer = c.answers[0]
		if len(c.answers) > 1 {
			c.answers = c.answers[1:]
		}
	}
	return answer, nil
}

// -----------------------------------------------------------------------------
// Harness
// -----------------------------------------------------------------------------

type harness struct {
	d        *Dispatcher
	tr       *fakeTransport
	client   *fakeClient
	sessions *session.Store
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "prompts"), 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "messages"), 0755))
	prompts := map[string]string{
		"gpt":       "You are ChatGPT, answer helpfully.",
		"random":    "You tell surprising true facts.",
		"recommend": "You are a recommendation engine.",
	}
	for name, content := range prompts {
		require.NoError(t, os.WriteFile(filepath.Join(root, "prompts", name+".txt"), []byte(content), 0644))
	}
	require.NoError(t, os.WriteFile(filepath.Join(root, "messages", "start.txt"), []byte("Вітаю!"), 0644))

	tr := &fakeTransport{}
	client := &fakeClient{}
	sessions := session.NewStore()

	d := New(Config{
		Sessions:  sessions,
		Client:    client,
		Assets:    assets.New(root),
		Transport: tr,
		Languages: config.DefaultLanguages(),
	})

	return &harness{d: d, tr: tr, client: client, sessions: sessions}
}

const chat = int64(100)

// -----------------------------------------------------------------------------
// Session lifecycle
// -----------------------------------------------------------------------------

func TestStartResetsSessionToDefaults(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	// Put the session into the middle of a flow
	h.d.HandleCommand(ctx, chat, "translate")
	h.d.HandleCallback(ctx, chat, 1, "lang_fr")
	sess := h.sessions.Get(chat)
	require.Equal(t, session.StateTranslating, sess.State)
	require.Equal(t, "fr", sess.TargetLanguage)

	h.d.HandleCommand(ctx, chat, "start")

	assert.Equal(t, session.StateIdle, sess.State)
	assert.Empty(t, sess.TargetLanguage)
	assert.Empty(t, sess.Personality)
	assert.Empty(t, sess.RecCategory)
	assert.Nil(t, sess.Rejected)
	assert.Nil(t, sess.Conversation)

	// Main menu: greeting text plus the command menu
	assert.Contains(t, h.tr.sentTexts(chat), "Вітаю!")
	require.NotEmpty(t, h.tr.commands)
	assert.Len(t, h.tr.commands[len(h.tr.commands)-1], 6)
}

func TestStartingDifferentFlowResetsPreviousOne(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.d.HandleCommand(ctx, chat, "translate")
	h.d.HandleCallback(ctx, chat, 1, "lang_de")

	h.d.HandleCommand(ctx, chat, "gpt")

	sess := h.sessions.Get(chat)
	assert.Equal(t, session.StateAskingGPT, sess.State)
	assert.Empty(t, sess.TargetLanguage, "previous flow's selection must be wiped")
}

// -----------------------------------------------------------------------------
// Placeholder discipline
// -----------------------------------------------------------------------------

// countPlaceholder returns how many times waitText was sent and how many of
// those sends were later deleted.
func countPlaceholder(tr *fakeTransport, chatID int64, waitText string) (sends, deletions int) {
	ids := map[int]bool{}
	for _, s := range tr.sent {
		if s.chatID == chatID && s.msg.Text == waitText {
			sends++
			ids[s.id] = true
		}
	}
	for _, del := range tr.deletes {
		if del.chatID == chatID && ids[del.messageID] {
			deletions++
		}
	}
	return sends, deletions
}

func TestGptTextPlaceholderDeletedOnSuccess(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.d.HandleCommand(ctx, chat, "gpt")
	h.client.answers = []string{"the answer"}
	h.d.HandleText(ctx, chat, "a question")

	sends, deletions := countPlaceholder(h.tr, chat, textThinkingWait)
	assert.Equal(t, 1, sends, "exactly one placeholder send")
	assert.Equal(t, 1, deletions, "exactly one placeholder delete")
	assert.Contains(t, h.tr.sentTexts(chat), "the answer")
}

func TestGptTextPlaceholderDeletedOnFailure(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.d.HandleCommand(ctx, chat, "gpt")
	h.client.err = fmt.Errorf("%w: boom", completion.ErrCompletion)
	h.d.HandleText(ctx, chat, "a question")

	sends, deletions := countPlaceholder(h.tr, chat, textThinkingWait)
	assert.Equal(t, 1, sends)
	assert.Equal(t, 1, deletions)
	assert.Contains(t, h.tr.sentTexts(chat), textGptError)

	// State and transcript untouched so the user can retry
	sess := h.sessions.Get(chat)
	assert.Equal(t, session.StateAskingGPT, sess.State)
	assert.Empty(t, sess.Conversation.Turns)
}

func TestTalkTextPlaceholderDeletedExactlyOnceOnFailure(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.d.HandleCommand(ctx, chat, "talk")
	h.d.HandleCallback(ctx, chat, 1, "talk_linus_torvalds")

	h.client.err = fmt.Errorf("%w: boom", completion.ErrCompletion)
	h.d.HandleText(ctx, chat, "hello")

	// Regression guard: the error path must not delete the placeholder a
	// second time on its way out.
	sends, deletions := countPlaceholder(h.tr, chat, textThinkingWait)
	assert.Equal(t, 1, sends)
	assert.Equal(t, 1, deletions)
	assert.Len(t, h.tr.deletes, 1)
	assert.Contains(t, h.tr.sentTexts(chat), textTalkError)
}

// -----------------------------------------------------------------------------
// Transcript isolation
// -----------------------------------------------------------------------------

func TestTranscriptsOfConcurrentSessionsNeverInterleave(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	chatA := int64(1)
	chatB := int64(2)

	h.d.HandleCommand(ctx, chatA, "talk")
	h.d.HandleCallback(ctx, chatA, 1, "talk_linus_torvalds")
	h.d.HandleCommand(ctx, chatB, "gpt")

	h.client.answers = []string{"a1", "b1", "a2"}
	h.d.HandleText(ctx, chatA, "alpha question")
	h.d.HandleText(ctx, chatB, "beta question")
	h.d.HandleText(ctx, chatA, "alpha followup")

	require.Len(t, h.client.requests, 3)

	// Chat B's request carries only chat B's turns
	beta := h.client.requests[1]
	require.Len(t, beta.turns, 1)
	assert.Equal(t, "beta question", beta.turns[0].Content)
	assert.NotContains(t, beta.systemPrompt, "Linus")

	// Chat A's second request carries A's full history and nothing of B's
	alpha := h.client.requests[2]
	require.Len(t, alpha.turns, 3)
	assert.Equal(t, "alpha question", alpha.turns[0].Content)
	assert.Equal(t, "a1", alpha.turns[1].Content)
	assert.Equal(t, "alpha followup", alpha.turns[2].Content)
	for _, turn := range alpha.turns {
		assert.NotEqual(t, "beta question", turn.Content)
	}
}

// -----------------------------------------------------------------------------
// Talk flow
// -----------------------------------------------------------------------------

func TestTalkPersonaSelection(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.d.HandleCommand(ctx, chat, "talk")

	// Selection menu: three personas and a finish row, one per row
	menu := h.tr.lastSent(chat)
	require.NotNil(t, menu)
	require.Len(t, menu.msg.Buttons, 4)

	h.d.HandleCallback(ctx, chat, 1, "talk_guido_van_rossum")

	sess := h.sessions.Get(chat)
	assert.Equal(t, session.StateTalking, sess.State)
	assert.Equal(t, "talk_guido_van_rossum", sess.Personality)
	require.NotNil(t, sess.Conversation)
	assert.Contains(t, sess.Conversation.SystemPrompt, "Guido van Rossum")

	greeting := h.tr.lastSent(chat)
	assert.Contains(t, greeting.msg.Text, "Guido Van Rossum")
}

func TestTalkReplyIsPrefixedWithPersonaName(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.d.HandleCommand(ctx, chat, "talk")
	h.d.HandleCallback(ctx, chat, 1, "talk_linus_torvalds")

	h.client.answers = []string{"Talk is cheap. Show me the code."}
	h.d.HandleText(ctx, chat, "any advice?")

	reply := h.tr.lastSent(chat)
	assert.Equal(t, "Linus Torvalds: Talk is cheap. Show me the code.", reply.msg.Text)
	require.Len(t, reply.msg.Buttons, 1)
	assert.Equal(t, "start", reply.msg.Buttons[0][0].ID)
}

func TestTalkWithoutPersonaAsksToChoose(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	sess := h.sessions.Get(chat)
	sess.State = session.StateTalking

	h.d.HandleText(ctx, chat, "hello?")

	assert.Contains(t, h.tr.sentTexts(chat), textTalkNoPersona)
	assert.Empty(t, h.client.requests, "no completion call without a persona")
}

// -----------------------------------------------------------------------------
// Translation flow
// -----------------------------------------------------------------------------

func TestTranslateRequiresLanguageFirst(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	sess := h.sessions.Get(chat)
	sess.State = session.StateTranslating

	h.d.HandleText(ctx, chat, "bonjour")

	assert.Contains(t, h.tr.sentTexts(chat), textTranslateNoLang)
	assert.Empty(t, h.client.requests)
	assert.Equal(t, session.StateTranslating, sess.State, "no state change")
}

func TestTranslateFlow(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.d.HandleCommand(ctx, chat, "translate")

	// Language grid: 7 languages, two per row
	menu := h.tr.lastSent(chat)
	require.NotNil(t, menu)
	require.Len(t, menu.msg.Buttons, 4)
	assert.Len(t, menu.msg.Buttons[0], 2)
	assert.Len(t, menu.msg.Buttons[3], 1)
	assert.Equal(t, "lang_en", menu.msg.Buttons[0][0].ID)

	h.d.HandleCallback(ctx, chat, 1, "lang_fr")
	sess := h.sessions.Get(chat)
	assert.Equal(t, session.StateTranslating, sess.State)
	assert.Equal(t, "fr", sess.TargetLanguage)

	h.client.answers = []string{"Bonjour"}
	h.d.HandleText(ctx, chat, "Добрий день")

	// The instruction embeds the display name of the target language
	require.Len(t, h.client.requests, 1)
	assert.Contains(t, h.client.requests[0].systemPrompt, "🇫🇷 Французька")
	require.Len(t, h.client.requests[0].turns, 1)
	assert.Equal(t, "Добрий день", h.client.requests[0].turns[0].Content)

	// Result: translation, switch grid without the current language, finish row
	result := h.tr.lastSent(chat)
	assert.Contains(t, result.msg.Text, "Bonjour")
	require.Len(t, result.msg.Buttons, 4)
	for _, row := range result.msg.Buttons[:3] {
		for _, btn := range row {
			assert.NotEqual(t, "change_fr", btn.ID, "current language must be excluded")
			assert.True(t, strings.HasPrefix(btn.ID, "change_"))
		}
	}
	lastRow := result.msg.Buttons[3]
	require.Len(t, lastRow, 1)
	assert.Equal(t, "finish_translate", lastRow[0].ID)

	sends, deletions := countPlaceholder(h.tr, chat, textTranslateWait)
	assert.Equal(t, 1, sends)
	assert.Equal(t, 1, deletions)
}

func TestTranslateLanguageSwitch(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.d.HandleCommand(ctx, chat, "translate")
	h.d.HandleCallback(ctx, chat, 1, "lang_fr")

	h.d.HandleCallback(ctx, chat, 2, "change_es")

	sess := h.sessions.Get(chat)
	assert.Equal(t, "es", sess.TargetLanguage)
	assert.Equal(t, session.StateTranslating, sess.State, "switch keeps translating state")

	// Confirmation is an in-place edit
	require.NotEmpty(t, h.tr.edits)
	lastEdit := h.tr.edits[len(h.tr.edits)-1]
	assert.Equal(t, 2, lastEdit.messageID)
	assert.Contains(t, lastEdit.msg.Text, "🇪🇸 Іспанська")

	// The next message translates into Spanish
	h.d.HandleText(ctx, chat, "hello")
	require.Len(t, h.client.requests, 1)
	assert.Contains(t, h.client.requests[0].systemPrompt, "🇪🇸 Іспанська")
}

func TestFinishTranslateResetsToIdle(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.d.HandleCommand(ctx, chat, "translate")
	h.d.HandleCallback(ctx, chat, 1, "lang_pl")

	h.d.HandleCallback(ctx, chat, 2, "finish_translate")

	sess := h.sessions.Get(chat)
	assert.Equal(t, session.StateIdle, sess.State)
	assert.Empty(t, sess.TargetLanguage)

	require.NotEmpty(t, h.tr.edits)
	assert.Contains(t, h.tr.edits[len(h.tr.edits)-1].msg.Text, "завершено")
}

// -----------------------------------------------------------------------------
// Recommendation flow
// -----------------------------------------------------------------------------

func TestRecommendFlow(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.d.HandleCommand(ctx, chat, "recommend")
	h.d.HandleCallback(ctx, chat, 1, "rec_movies")

	sess := h.sessions.Get(chat)
	assert.Equal(t, session.StatePickingGenre, sess.State)
	assert.Equal(t, "фільми", sess.RecCategory)

	h.client.answers = []string{"📌 Назва Фільму\nКороткий опис."}
	h.d.HandleText(ctx, chat, "комедія")

	require.Len(t, h.client.requests, 1)
	prompt := h.client.requests[0].systemPrompt
	assert.Contains(t, prompt, `"фільми"`)
	assert.Contains(t, prompt, `"комедія"`)
	assert.NotContains(t, prompt, "НЕ рекомендуй", "first request has no exclusion list")

	// Title extracted and remembered
	assert.Equal(t, []string{"Назва Фільму"}, sess.Rejected)

	result := h.tr.lastSent(chat)
	assert.Contains(t, result.msg.Text, "Назва Фільму")
	require.Len(t, result.msg.Buttons, 2)
	assert.Equal(t, "rec_dislike", result.msg.Buttons[0][0].ID)
}

func TestRecommendDislikeAccumulatesExclusions(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.d.HandleCommand(ctx, chat, "recommend")
	h.d.HandleCallback(ctx, chat, 1, "rec_books")

	h.client.answers = []string{"📌 Перша Книга\nОпис.", "📌 Друга Книга\nОпис.", "📌 Третя Книга\nОпис."}
	h.d.HandleText(ctx, chat, "фантастика")

	h.d.HandleCallback(ctx, chat, 5, "rec_dislike")
	h.d.HandleCallback(ctx, chat, 5, "rec_dislike")

	require.Len(t, h.client.requests, 3)

	// Second request excludes the first title
	assert.Contains(t, h.client.requests[1].systemPrompt, "Перша Книга")

	// Third request excludes both prior titles
	third := h.client.requests[2].systemPrompt
	assert.Contains(t, third, "Перша Книга")
	assert.Contains(t, third, "Друга Книга")

	sess := h.sessions.Get(chat)
	assert.Equal(t, []string{"Перша Книга", "Друга Книга", "Третя Книга"}, sess.Rejected)
}

func TestRecommendGenreWithoutCategory(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	sess := h.sessions.Get(chat)
	sess.State = session.StatePickingGenre

	h.d.HandleText(ctx, chat, "джаз")

	assert.Contains(t, h.tr.sentTexts(chat), textRecommendNoCategory)
	assert.Empty(t, h.client.requests)
}

func TestRecommendDislikeWithLostState(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.d.HandleCallback(ctx, chat, 3, "rec_dislike")

	require.NotEmpty(t, h.tr.edits)
	assert.Equal(t, textRecommendLost, h.tr.edits[0].msg.Text)
	assert.Empty(t, h.client.requests)
}

// -----------------------------------------------------------------------------
// Fallback intent sniffing
// -----------------------------------------------------------------------------

func TestFallbackFactsBeatQuestions(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	// Contains both a fact keyword ("цікав") and question-ish phrasing;
	// the facts family is checked first and must win.
	h.client.answers = []string{"a fact"}
	h.d.HandleText(ctx, chat, "ти можеш розказати цікавий факт?")

	texts := h.tr.sentTexts(chat)
	assert.Contains(t, texts, textSniffRandom)
	assert.Contains(t, texts, "a fact")

	sends, deletions := countPlaceholder(h.tr, chat, textRandomWait)
	assert.Equal(t, 1, sends)
	assert.Equal(t, 1, deletions)
}

func TestFallbackQuestionRoutesToGpt(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.d.HandleText(ctx, chat, "маю питання до тебе")

	assert.Contains(t, h.tr.sentTexts(chat), textSniffGpt)
	sess := h.sessions.Get(chat)
	assert.Equal(t, session.StateAskingGPT, sess.State)
}

func TestFallbackUnrecognizedSendsCannedResponse(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.d.pick = func(int) int { return 3 }
	h.d.HandleText(ctx, chat, "щось абсолютно беззмістовне")

	last := h.tr.lastSent(chat)
	require.NotNil(t, last)
	assert.Contains(t, last.msg.Text, fallbackResponses[3])
	assert.Contains(t, last.msg.Text, "/start")
	assert.Empty(t, h.client.requests)
}

// -----------------------------------------------------------------------------
// Units
// -----------------------------------------------------------------------------

func TestParseRecommendationTitle(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  string
	}{
		{"marker stripped", "📌 Дюна\nЕпічна фантастика.", "Дюна"},
		{"no marker", "Дюна\nОпис", "Дюна"},
		{"single line", "📌 Дюна", "Дюна"},
		{"empty reply", "", "Unknown"},
		{"whitespace only", "   \n  ", "Unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parseRecommendationTitle(tt.reply))
		})
	}
}

func TestChunkRows(t *testing.T) {
	buttons := []Button{{ID: "a"}, {ID: "b"}, {ID: "c"}, {ID: "d"}, {ID: "e"}}

	rows := chunkRows(buttons, 2)
	require.Len(t, rows, 3)
	assert.Len(t, rows[0], 2)
	assert.Len(t, rows[1], 2)
	assert.Len(t, rows[2], 1)
	assert.Equal(t, "e", rows[2][0].ID)

	assert.Nil(t, chunkRows(nil, 2))
	assert.Len(t, chunkRows(buttons, 0), 5, "perRow below 1 falls back to 1")
}
