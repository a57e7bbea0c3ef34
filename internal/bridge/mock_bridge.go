package bridge

import (
	"context"
	"errors"
)

// MockBridge is a hand-rolled test double, in the same style as storage.MockSink.
type MockBridge struct {
	ShouldFail   bool
	FailAfter    int
	callCount    int
	LastFire     *FireCommand
	LastClose    *CloseCommand
	Ticket       string
}

func (m *MockBridge) Dispatch(_ context.Context, cmd FireCommand) (*Ack, error) {
	m.callCount++
	m.LastFire = &cmd
	if m.ShouldFail && m.callCount > m.FailAfter {
		return nil, errors.New("mock bridge dispatch error")
	}
	ticket := m.Ticket
	if ticket == "" {
		ticket = "TCK-1"
	}
	return &Ack{BrokerTicket: ticket, Confirmed: true}, nil
}

func (m *MockBridge) ClosePosition(_ context.Context, cmd CloseCommand) (*Ack, error) {
	m.callCount++
	m.LastClose = &cmd
	if m.ShouldFail && m.callCount > m.FailAfter {
		return nil, errors.New("mock bridge close error")
	}
	return &Ack{BrokerTicket: cmd.BrokerTicket, Confirmed: true}, nil
}

func (m *MockBridge) ModifyPosition(_ context.Context, _ ModifyCommand) (*Ack, error) {
	m.callCount++
	if m.ShouldFail && m.callCount > m.FailAfter {
		return nil, errors.New("mock bridge modify error")
	}
	return &Ack{Confirmed: true}, nil
}
