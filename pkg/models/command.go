package models

import (
	"fmt"
	"time"
)

// Command lifecycle states. An operator creates a command in StateNew; the
// vessel moves it through dispatch, receipt and completion by confirming
// updated copies back.
const (
	StateNew        = "new"
	StateDispatched = "dispatched"
	StateReceived   = "received"
	StateCompleted  = "completed"
	StateFailed     = "failed"
)

// Command is a remote instruction addressed to a flight, optionally
// narrowed to one part. The timestamps trace its lifecycle; Response is
// filled by the vessel on completion.
type Command struct {
	ID              string     `bson:"_id" json:"id"`
	CommandType     string     `bson:"command_type" json:"command_type"`
	PartID          *string    `bson:"part_id" json:"part_id"`
	State           string     `bson:"state" json:"state"`
	CreateTime      time.Time  `bson:"create_time" json:"create_time"`
	DispatchTime    *time.Time `bson:"dispatch_time" json:"dispatch_time"`
	ReceiveTime     *time.Time `bson:"receive_time" json:"receive_time"`
	CompleteTime    *time.Time `bson:"complete_time" json:"complete_time"`
	Payload         any        `bson:"command_payload" json:"command_payload"`
	Response        any        `bson:"response" json:"response"`
	ResponseMessage string     `bson:"response_message,omitempty" json:"response_message,omitempty"`
}

func validState(s string) bool {
	switch s {
	case StateNew, StateDispatched, StateReceived, StateCompleted, StateFailed:
		return true
	}
	return false
}

// ValidateDispatch checks a command an operator submits for dispatch. Only
// pristine commands qualify: state new, creation stamped, no lifecycle
// timestamps and no response yet.
func ValidateDispatch(c *Command) error {
	if c.State != StateNew {
		return fmt.Errorf("%w: command state must be %q", ErrInvalidInput, StateNew)
	}
	if c.CreateTime.IsZero() {
		return fmt.Errorf("%w: command create_time is required", ErrInvalidInput)
	}
	if c.DispatchTime != nil || c.ReceiveTime != nil || c.CompleteTime != nil {
		return fmt.Errorf("%w: lifecycle timestamps must be unset on dispatch", ErrInvalidInput)
	}
	if c.Response != nil {
		return fmt.Errorf("%w: response must be unset on dispatch", ErrInvalidInput)
	}
	return nil
}

// ValidateConfirm checks a command copy the vessel reports back. The vessel
// only ever advances commands, so a confirmation in state new is rejected.
func ValidateConfirm(c *Command) error {
	if !validState(c.State) {
		return fmt.Errorf("%w: unknown command state %q", ErrInvalidInput, c.State)
	}
	if c.State == StateNew {
		return fmt.Errorf("%w: confirmed commands cannot be in state %q", ErrInvalidInput, StateNew)
	}
	if c.CreateTime.IsZero() {
		return fmt.Errorf("%w: command create_time is required", ErrInvalidInput)
	}
	return nil
}

// Terminal reports whether the command reached a final state.
func (c *Command) Terminal() bool {
	return c.State == StateCompleted || c.State == StateFailed
}
