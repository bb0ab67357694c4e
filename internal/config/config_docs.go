package config

// ///////////////////////////////////////////////
// Documentation Types
// ///////////////////////////////////////////////

// FieldDoc holds documentation and alternative examples for a single config field.
// The genconfig tool uses [FieldDoc] values to annotate the generated config.default.toml.
type FieldDoc struct {
	// Comment is shown as a header comment above the field in the example config.
	Comment string

	// Alternatives are shown as commented-out lines below the active value.
	Alternatives []string
}

// ///////////////////////////////////////////////
// Field Documentation Map
// ///////////////////////////////////////////////

// ConfigDocs maps TOML field paths (dot-separated, e.g. "timer.reset_on_stop")
// to their [FieldDoc] entries. Every field of [Config] must have an entry;
// TestConfigDocsComplete enforces that.
var ConfigDocs = map[string]FieldDoc{
	// ── Root ──────────────────────────────────────────────────────
	"version": {
		Comment: "Config schema version. Do not edit.",
	},

	// ── Telegram ─────────────────────────────────────────────────
	"telegram": {
		Comment: "Telegram Bot API settings.\nSecrets are best supplied through the environment:\n  STIB_BOT_SECRET or STIB_BOT_SECRET_FILE  (bot token)\n  STIB_CHAT_ID                             (your chat id)",
	},
	"telegram.chat_id": {
		Comment: "Chat that receives reminders and lifecycle notices. Overridden by STIB_CHAT_ID.",
	},
	"telegram.bot_token": {
		Comment: "Bot token from @BotFather. Overridden by STIB_BOT_SECRET.",
		Alternatives: []string{
			`bot_token = "123456:ABC-DEF..."`,
		},
	},
	"telegram.bot_token_file": {
		Comment: "File containing the bot token (checked before bot_token).",
		Alternatives: []string{
			`bot_token_file = "/run/secrets/stib_token"`,
		},
	},
	"telegram.api_endpoint": {
		Comment: "Bot API URL format. The first %s is the token, the second the method.",
	},
	"telegram.poll_timeout_seconds": {
		Comment: "Long-poll timeout for receiving commands (seconds).",
	},
	"telegram.retry_max": {
		Comment: "How many times a failed API request is retried before giving up.",
	},
	"telegram.allow_other_chats": {
		Comment: "Accept /start, /stop, ... from chats other than chat_id.",
	},

	// ── Timer ────────────────────────────────────────────────────
	"timer": {
		Comment: "Screen time clock and reminder throttling.\nA reminder is sent once elapsed > notification_threshold and\nelapsed - last reminder > notification_timeout (both in ticks).",
	},
	"timer.notification_threshold": {
		Comment: "Screen time (ticks) that must be exceeded before the first reminder.",
	},
	"timer.notification_timeout": {
		Comment: "Minimum gap (ticks) between two reminders.",
	},
	"timer.tick_interval_ms": {
		Comment: "Length of one clock tick in milliseconds.",
	},
	"timer.poll_interval_ms": {
		Comment: "How often the reminder check runs, in milliseconds.\nKeep this below tick_interval_ms so reminders are not delayed.",
	},
	"timer.reset_on_stop": {
		Comment: "Reset screen time to zero on /stop.\n  false: time accumulates across sessions (cumulative daily screen time)\n  true:  every /start begins a fresh session",
		Alternatives: []string{
			`reset_on_stop = true`,
		},
	},
	"timer.advance_on_failure": {
		Comment: "When a reminder fails to send, still wait a full notification_timeout\nbefore the next one (true) or retry on the next check (false).",
		Alternatives: []string{
			`advance_on_failure = false`,
		},
	},

	// ── Messages ─────────────────────────────────────────────────
	"messages": {
		Comment: "Everything STiB says.",
	},
	"messages.greeting": {
		Comment: "Sent when STiB comes online.",
	},
	"messages.shutting_down": {
		Comment: "Sent when a graceful shutdown begins. Empty disables it.",
	},
	"messages.critical": {
		Comment: "Sent when STiB hits an internal error.",
	},
	"messages.farewell": {
		Comment: "Sent every time STiB goes offline.",
	},
	"messages.started": {
		Comment: "Reply to /start.",
	},
	"messages.stopped": {
		Comment: "Reply to /stop. {elapsed} is replaced with HH:MM:SS.",
	},
	"messages.status": {
		Comment: "Reply to /status. Variables: {state} (running/paused), {elapsed}.",
	},
	"messages.help": {
		Comment: "Reply to /help.",
	},
	"messages.prompts": {
		Comment: "Reminder pool; one is picked at random for every reminder.",
	},

	// ── Log ──────────────────────────────────────────────────────
	"log": {
		Comment: "Logging configuration",
	},
	"log.level": {
		Comment: "Minimum log level. Options: \"trace\", \"debug\", \"info\", \"warn\", \"error\"\n  trace logs every clock tick.",
		Alternatives: []string{
			`level = "debug"`,
			`level = "trace"`,
		},
	},
	"log.max_size_mb": {
		Comment: "Maximum log file size in megabytes before rotation.",
	},
	"log.console": {
		Comment: "Mirror log lines to stderr.",
	},
}
