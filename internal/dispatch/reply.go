package dispatch

// OutboundReply is either a TextReply or an AudioReply.
type OutboundReply interface {
	isOutboundReply()
}

// TextReply is sent as text unless audio output turns it into a voice note.
type TextReply struct {
	Text string
	// Voice asks for a voice note even when audio-only mode is off.
	Voice bool
	// TextOnly keeps the reply as text regardless of audio settings.
	TextOnly bool
}

// AudioReply carries audio that is already encoded. Transcript is recorded in
// the chat history.
type AudioReply struct {
	Audio      []byte
	Transcript string
}

func (TextReply) isOutboundReply()  {}
func (AudioReply) isOutboundReply() {}
