package api

import "github.com/GetStream/teamchat/chat"

// A Message is a message decorated with its author and reaction summaries.
type Message struct {
	chat.MessageView
	Reactions map[string]chat.EmojiSummary `json:"reactions"`
}

// A Reaction is the aggregated state of one emoji on a message.
type Reaction = chat.EmojiSummary
