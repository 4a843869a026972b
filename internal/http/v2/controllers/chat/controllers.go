package chat

// Controllers agrupa los controllers del dominio chat.
type Controllers struct {
	Chat *ChatController
}

func NewControllers(service Replier) *Controllers {
	return &Controllers{Chat: NewChatController(service)}
}
