package dispatch

import (
	"context"
	"fmt"
)

const channelErrorTemplateConstant = "dispatch via %s: %v"

// Payload is the rendered report handed to every channel.
type Payload struct {
	Subject string
	Body    string
}

// Channel delivers a payload to one destination.
type Channel interface {
	Name() string
	Send(executionContext context.Context, payload Payload) error
}

// ChannelError attributes a delivery failure to its channel.
type ChannelError struct {
	Channel string
	Err     error
}

// Error describes the failed delivery.
func (channelError *ChannelError) Error() string {
	return fmt.Sprintf(channelErrorTemplateConstant, channelError.Channel, channelError.Err)
}

// Unwrap exposes the underlying failure.
func (channelError *ChannelError) Unwrap() error {
	return channelError.Err
}
