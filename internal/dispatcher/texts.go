package dispatcher

// All user-facing copy. The bot speaks Ukrainian; persona greetings are
// English like the personas themselves.

const (
	textStartLabel     = "Головне меню"
	textRandomLabel    = "Дізнатися випадковий факт"
	textGptLabel       = "Запитати ChatGPT"
	textTalkLabel      = "Діалог з відомою особистістю"
	textTranslateLabel = "Перекладач текстів"
	textRecommendLabel = "Рекомендації від GPT"

	textRandomWait     = "Шукаю випадковий факт ..."
	textRandomQuestion = "Розкажи про випадковий факт"
	textRandomAgain    = "Хочу ще один факт"
	textRandomError    = "Помилка при отриманні випадкового факту."

	textFinish       = "Закінчити"
	textFinishCross  = "❌ Закінчити"
	textAskQuestion  = "Задайте питання ..."
	textThinkingWait = "..."
	textGptError     = "Виникла помилка при обробці вашого повідомлення."

	textTalkMenu        = "Оберіть особистість для спілкування ..."
	textTalkError       = "Виникла помилка при отриманні відповіді!"
	textTalkNoPersona   = "Спочатку оберіть особистість для розмови!"
	textTalkGreetingFmt = "Hello, I`m %s.\nI heard you wanted to ask me something. \nYou can ask questions in your native language."

	textTranslateMenu       = "🌍 *Режим перекладача*\n\nОберіть мову, на яку хочете перекладати тексти:"
	textTranslateChosenFmt  = "✅ Обрано мову: *%s*\n\nТепер надішліть мені текст для перекладу."
	textTranslateChangedFmt = "✅ Мову змінено на: *%s*\n\nНадішліть текст для перекладу."
	textTranslateFinished   = "✅ Режим перекладу завершено.\n\nВикористовуйте /translate, щоб почати знову."
	textTranslateNoLang     = "Спочатку оберіть мову для перекладу!"
	textTranslateWait       = "⏳ Перекладаю..."
	textTranslateError      = "❌ Помилка при перекладі. Спробуйте ще раз."
	textTranslateResultFmt  = "📝 *Переклад (%s):*\n\n%s\n\n━━━━━━━━━━━━━━━\nНадішліть інший текст або оберіть дію:"

	// The translation instruction is sent to the model in English.
	translatePromptFmt = "You are a professional translator. Translate the following text to %s. Provide only the translation without any additional comments."

	textRecommendMenu        = "🎯 *Рекомендації від GPT*\n\nОберіть категорію для отримання рекомендацій:"
	textRecommendChosenFmt   = "%s Ви обрали: *%s*\n\nТепер введіть жанр, який вас цікавить.\nНаприклад: _комедія, фантастика, детектив, рок, джаз..._"
	textRecommendNoCategory  = "Помилка: категорія не обрана. Використайте /recommend"
	textRecommendWait        = "⏳ Шукаю найкращі рекомендації..."
	textRecommendDislikeWait = "⏳ Шукаю нові рекомендації..."
	textRecommendError       = "❌ Виникла помилка при отриманні рекомендації."
	textRecommendLost        = "Помилка: дані втрачено. Використайте /recommend для початку."
	textRecommendResultFmt   = "🎯 *Рекомендація (%s):*\n\n%s"
	textRecommendDislike     = "👎 Не подобається"
	textRecommendPickAction  = "Оберіть дію:"

	recommendPromptFmt = `%s

Порекомендуй одну річ у категорії "%s" в жанрі "%s".
Дай ОДНУ конкретну рекомендацію з коротким описом (2-3 речення).%s

Формат відповіді:
📌 Назва
Короткий опис чому це круто.`
	recommendExcludeFmt = "\n\nНЕ рекомендуй ці варіанти (вони вже не сподобались): %s"

	textSniffRandom = "Схоже, ви цікавитесь випадковими фактами! Зараз покажу вам один..."
	textSniffGpt    = "Схоже, у вас є питання! Переходимо до режиму спілкування з ChatGPT..."
	textSniffTalk   = "Схоже, ви хочете поговорити з відомою особистістю! Зараз покажу вам доступні варіанти..."

	textCommandHints = `
    - Не знаєте, що обрати? Почніть з /start,
    - Спробуйте команду /gpt, щоб задати питання,
    `
)

// fallbackResponses are cycled randomly when free text matches no intent
var fallbackResponses = []string{
	"Хмм... Цікаво, але я не зрозумів, що саме ви хочете. Може спробуєте одну з команд з меню?",
	"Дуже цікаве повідомлення! Але мені потрібні чіткіші інструкції. Ось доступні команди:",
	"Ой, здається, ви мене застали зненацька! Я вмію багато чого, але мені потрібна конкретна команда:",
	"Вибачте, мої алгоритми не розпізнали це як команду. Ось що я точно вмію:",
	"Це повідомлення таке ж загадкове, як єдиноріг у дикій природі! Спробуйте одну з цих команд:",
	"Я намагаюся зрозуміти ваше повідомлення... Але краще скористайтесь однією з команд:",
	"О! Випадкове повідомлення! Я теж вмію бути випадковим, але краще використовуйте команди:",
	"Гм, не спрацювало. Може спробуємо ці команди?",
	"Це повідомлення прекрасне, як веселка! Але для повноцінного спілкування спробуйте:",
	"Згідно з моїми розрахунками, це повідомлення не відповідає жодній з моїх команд. Ось вони:",
}

// recommendation categories, keyed by callback payload
var recommendCategories = map[string]string{
	"rec_movies": "фільми",
	"rec_books":  "книги",
	"rec_music":  "музику",
}

var recommendCategoryEmoji = map[string]string{
	"rec_movies": "🎬",
	"rec_books":  "📚",
	"rec_music":  "🎵",
}

var recommendCategoryLabels = map[string]string{
	"rec_movies": "🎬 Фільми",
	"rec_books":  "📚 Книги",
	"rec_music":  "🎵 Музика",
}

// recommendCategoryOrder fixes menu ordering (maps do not)
var recommendCategoryOrder = []string{"rec_movies", "rec_books", "rec_music"}
