package chat

import "github.com/marmos91/bonfire/internal/protocol/packet"

// MessageOfTheDay returns a plugin sending text to each client right after its
// handshake.
func MessageOfTheDay(text string) Plugin {
	return Plugin{
		Name: "motd",
		HandshakeFinished: func(ctx *Context, ev *HandshakeFinishedEvent) {
			ctx.Send(ev.Session.ID(), packet.LogMessage{
				Timestamp: packet.Timestamp(ctx.Now()),
				Body:      text,
			})
		},
	}
}

// Recall returns a plugin replaying the recall buffer to new clients.
//
// Each author is announced before their first message. Authors whose identity
// is no longer held under the same name are then reported as gone, since the
// client would otherwise consider them present.
func Recall() Plugin {
	return Plugin{
		Name:              "recall",
		HandshakeFinished: replayRecall,
	}
}

func replayRecall(ctx *Context, ev *HandshakeFinishedEvent) {
	entries := ctx.Recall()
	if len(entries) == 0 {
		return
	}

	var order []uint8
	lastName := make(map[uint8]string)

	for _, e := range entries {
		author := e.Message.Author
		if _, seen := lastName[author]; !seen {
			order = append(order, author)
		}
		lastName[author] = e.AuthorName

		ev.Announce(ctx, author, e.AuthorName)
		ctx.Send(ev.Session.ID(), e.Message)
	}

	for _, id := range order {
		if s, ok := ctx.Session(id); ok && s.Active() && s.Name() == lastName[id] {
			continue
		}
		ctx.Send(ev.Session.ID(), packet.UserLeft{ID: id})
		ev.forget(id)
	}
}

// introducePeers announces every other active session to the newcomer,
// skipping pairs the handshake hooks already announced.
func introducePeers(ctx *Context, ev *HandshakeFinishedEvent) {
	for _, s := range ctx.Sessions() {
		if s == ev.Session || !s.Active() {
			continue
		}
		ev.Announce(ctx, s.ID(), s.Name())
	}
}
