package relay

import "github.com/BioHazard786/Warpcall/internal/signaling"

// inbound is a decoded message together with the client that sent it.
type inbound struct {
	client *Client
	msg    signaling.Message
}

func errorMessage(text string) *signaling.Message {
	return &signaling.Message{Type: signaling.EventError, Payload: signaling.Payload{Error: text}}
}
