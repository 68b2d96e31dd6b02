package relay

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/nibras/valet/internal/merge"
	"github.com/nibras/valet/internal/staging"
)

// commandPrefix is the character that marks a message as a command.
const commandPrefix = "/"

// Router classifies inbound chat messages and routes them to the
// appropriate handler: file handler for file-moving commands and merge
// attachments, command handler for everything else, or ignore for
// bot/unknown messages.
type Router struct {
	cmds      *CommandHandler
	files     *FileHandler
	merges    *merge.Manager
	store     *staging.Store
	adapter   Adapter
	botUserID string // the bot's own user ID (to filter self-messages)
	out       io.Writer
}

// RouterOpts holds parameters for creating a Router.
type RouterOpts struct {
	CmdHandler  *CommandHandler
	FileHandler *FileHandler
	Merges      *merge.Manager
	Store       *staging.Store
	Adapter     Adapter
	BotUserID   string    // bot's user ID for self-message filtering
	Out         io.Writer // defaults to os.Stdout
}

// NewRouter creates a Router.
func NewRouter(opts RouterOpts) (*Router, error) {
	if opts.CmdHandler == nil {
		return nil, fmt.Errorf("relay: router: command handler is required")
	}
	if opts.FileHandler == nil {
		return nil, fmt.Errorf("relay: router: file handler is required")
	}
	if opts.Merges == nil {
		return nil, fmt.Errorf("relay: router: merge manager is required")
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("relay: router: store is required")
	}
	if opts.Adapter == nil {
		return nil, fmt.Errorf("relay: router: adapter is required")
	}
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	return &Router{
		cmds:      opts.CmdHandler,
		files:     opts.FileHandler,
		merges:    opts.Merges,
		store:     opts.Store,
		adapter:   opts.Adapter,
		botUserID: opts.BotUserID,
		out:       out,
	}, nil
}

// Handle classifies and routes a single inbound message. Routing paths:
//  1. Bot self-message → ignore
//  2. "/" command → file handler (file commands) or command handler
//  3. Bare attachment while a merge session is collecting → merge add
//  4. Everything else → ignore
func (r *Router) Handle(ctx context.Context, msg InboundMessage) {
	// 1. Filter bot self-messages.
	if r.isSelfMessage(msg) {
		return
	}

	conv := resolveConversation(msg.ChannelID, msg.ThreadID)
	text := strings.TrimSpace(msg.Text)
	fmt.Fprintf(r.out, "relay: router: recv [conv=%s user=%s files=%d] %q\n",
		conv, msg.UserName, len(msg.Attachments), truncate(text, 80))

	// 2. Commands.
	if cmd, args, ok := parseCommand(text); ok {
		if r.files.Handles(cmd) {
			fmt.Fprintf(r.out, "relay: router: → file command /%s\n", cmd)
			r.deliver(ctx, msg, r.files.Execute(ctx, conv, msg, cmd, args))
			return
		}
		fmt.Fprintf(r.out, "relay: router: → command /%s\n", cmd)
		reply := r.cmds.Execute(ctx, conv, msg.UserName, cmd, args)
		r.deliver(ctx, msg, Reply{Text: reply})
		return
	}

	// 3. Bare attachment during an open merge session.
	if len(msg.Attachments) > 0 && r.merges.State(conv) == merge.StateCollecting {
		fmt.Fprintf(r.out, "relay: router: → merge add [conv=%s]\n", conv)
		r.deliver(ctx, msg, r.files.AddToMerge(ctx, conv, msg))
		return
	}

	// 4. Not for us.
	fmt.Fprintf(r.out, "relay: router: → ignore\n")
}

// deliver sends a handler reply back to the originating channel and
// releases the staged output once the platform has it.
func (r *Router) deliver(ctx context.Context, msg InboundMessage, reply Reply) {
	if reply.Text == "" && reply.File == nil {
		return
	}
	out := OutboundMessage{
		ChannelID: msg.ChannelID,
		ThreadID:  msg.ThreadID,
		Text:      reply.Text,
	}
	if reply.File != nil {
		out.File = &File{Name: reply.File.Name, Path: reply.File.Path}
		defer func() {
			if err := r.store.Release(reply.File); err != nil {
				log.Printf("relay: router: release %s: %v", reply.File.Name, err)
			}
		}()
	}
	if err := r.adapter.Send(ctx, out); err != nil {
		log.Printf("relay: router: send reply: %v", err)
	}
}

// isSelfMessage returns true if the message is from the bot itself.
func (r *Router) isSelfMessage(msg InboundMessage) bool {
	return r.botUserID != "" && msg.UserID == r.botUserID
}

// parseCommand splits "/cmd rest of args" into its parts. Returns ok=false
// when the text is not a command.
func parseCommand(text string) (cmd, args string, ok bool) {
	if !strings.HasPrefix(text, commandPrefix) || len(text) <= len(commandPrefix) {
		return "", "", false
	}
	body := text[len(commandPrefix):]
	parts := strings.SplitN(body, " ", 2)
	cmd = strings.ToLower(parts[0])
	if cmd == "" {
		return "", "", false
	}
	if len(parts) == 2 {
		args = strings.TrimSpace(parts[1])
	}
	return cmd, args, true
}

// resolveConversation returns the scope key for per-conversation state.
// Top-level channel messages (no thread) use the channel ID so follow-ups
// in the same channel share the scope.
func resolveConversation(channelID, threadID string) string {
	if threadID == "" {
		return channelID
	}
	return channelID + ":" + threadID
}

// truncate returns s truncated to maxLen with "..." appended if needed.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
