package inbox

import (
	"sort"

	"github.com/counselhub/inbox-sync/internal/model"
)

// ConversationKey returns the grouping key for a message: the server id
// when present, otherwise a synthetic key derived from the counterpart
// identity so messages about the same counterpart coalesce before the
// server assigns a canonical id.
func ConversationKey(m *model.Message, selfID string) string {
	if m.ConversationID != "" {
		return m.ConversationID
	}
	counterpart := m.SenderID
	if m.AuthoredBy(selfID) {
		counterpart = m.RecipientID
	}
	if counterpart == "" {
		counterpart = string(model.RoleSystem)
	}
	return "peer:" + counterpart
}

// Aggregate groups visible messages into ordered conversations. It is a
// pure function of its input: identical input yields identical output, and
// every input message lands in exactly one conversation.
func Aggregate(msgs []model.Message, vis Visibility) []model.Conversation {
	type group struct {
		key  string
		msgs []model.Message
	}

	byKey := make(map[string]*group)
	var order []*group
	for i := range msgs {
		key := ConversationKey(&msgs[i], vis.SelfID)
		g, ok := byKey[key]
		if !ok {
			g = &group{key: key}
			byKey[key] = g
			order = append(order, g)
		}
		g.msgs = append(g.msgs, msgs[i])
	}

	convs := make([]model.Conversation, 0, len(order))
	for _, g := range order {
		sortThread(g.msgs)
		last := g.msgs[len(g.msgs)-1]

		conv := model.Conversation{
			ID:            g.key,
			LastMessage:   last.Content,
			LastTimestamp: last.CreatedAt,
			MessageCount:  len(g.msgs),
		}
		resolvePeer(&conv, g.msgs, vis)
		for i := range g.msgs {
			if g.msgs[i].IsUnread {
				conv.UnreadCount++
			}
		}
		convs = append(convs, conv)
	}

	// Unread first, then most recent activity; stable so ties keep their
	// prior relative order.
	sort.SliceStable(convs, func(i, j int) bool {
		if convs[i].UnreadCount != convs[j].UnreadCount {
			return convs[i].UnreadCount > convs[j].UnreadCount
		}
		return convs[i].LastTimestamp.After(convs[j].LastTimestamp)
	})

	return convs
}

// Thread returns the ordered messages of one conversation.
func Thread(msgs []model.Message, vis Visibility, conversationID string) []model.Message {
	var out []model.Message
	for i := range msgs {
		if ConversationKey(&msgs[i], vis.SelfID) == conversationID {
			out = append(out, msgs[i])
		}
	}
	sortThread(out)
	return out
}

// sortThread orders a thread by createdAt ascending, ties broken by
// insertion index via the stable sort.
func sortThread(msgs []model.Message) {
	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
	})
}

// resolvePeer fills the conversation's peer identity: any peer-authored
// message wins, then the recipient recorded on an outbound message, then
// the role-generic placeholder. The peer name is never empty.
func resolvePeer(conv *model.Conversation, msgs []model.Message, vis Visibility) {
	for i := range msgs {
		m := &msgs[i]
		if m.SenderKind != model.RoleSystem && !m.AuthoredBy(vis.SelfID) && vis.IsPeer(m.SenderKind) {
			conv.PeerID = m.SenderID
			conv.PeerName = m.SenderName
			conv.PeerAvatar = m.SenderAvatar
			break
		}
	}
	if conv.PeerID == "" {
		for i := range msgs {
			m := &msgs[i]
			if m.AuthoredBy(vis.SelfID) && m.RecipientID != "" {
				conv.PeerID = m.RecipientID
				break
			}
		}
	}
	if conv.PeerName == "" {
		conv.PeerName = vis.Placeholder()
	}
}
