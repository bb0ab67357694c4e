package telegram

import (
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// UnknownReply answers any command without a registered handler.
const UnknownReply = "Unknown command. Try /help"

// Command is a parsed bot command such as "/stop now".
type Command struct {
	// Name is the command without its slash or @botname suffix.
	Name string
	// Args is the trimmed remainder of the message.
	Args   string
	ChatID int64
}

// HandlerFunc answers a command with the reply text. An empty reply sends
// nothing.
type HandlerFunc func(cmd Command) string

type route struct {
	description string
	handler     HandlerFunc
}

// Router maps command names to handlers.
type Router struct {
	routes map[string]route
	order  []string
}

// NewRouter returns an empty router.
func NewRouter() *Router {
	return &Router{routes: map[string]route{}}
}

// Handle registers h for /name. It panics if name is empty or already
// registered.
func (r *Router) Handle(name, description string, h HandlerFunc) {
	name = strings.TrimPrefix(strings.ToLower(name), "/")
	if name == "" || h == nil {
		panic("telegram: Handle needs a command name and handler")
	}
	if _, dup := r.routes[name]; dup {
		panic(fmt.Sprintf("telegram: command %q registered twice", name))
	}
	r.routes[name] = route{description: description, handler: h}
	r.order = append(r.order, name)
}

// Commands returns the registered commands in registration order, in the
// form setMyCommands expects.
func (r *Router) Commands() []tgbotapi.BotCommand {
	cmds := make([]tgbotapi.BotCommand, 0, len(r.order))
	for _, name := range r.order {
		cmds = append(cmds, tgbotapi.BotCommand{Command: name, Description: r.routes[name].description})
	}
	return cmds
}

// Dispatch runs the handler for cmd and returns its reply.
func (r *Router) Dispatch(cmd Command) string {
	rt, ok := r.routes[strings.ToLower(cmd.Name)]
	if !ok {
		return UnknownReply
	}
	return rt.handler(cmd)
}
