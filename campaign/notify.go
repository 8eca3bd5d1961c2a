package campaign

import (
	"github.com/tendermint/tendermint/libs/log"
)

// Notification reports the outcome of an attempt to whoever shows it to the user. Quiet
// notifications need no prompt, the user caused them.
type Notification struct {
	Action      Action
	MilestoneID uint64
	State       State
	Kind        Kind
	Message     string
	Reference   string
	Quiet       bool
}

type Notifier interface {
	Notify(notification Notification)
}

type NotifierFunc func(notification Notification)

func (f NotifierFunc) Notify(notification Notification) {
	f(notification)
}

type LogNotifier struct {
	Logger log.Logger
}

func (n LogNotifier) Notify(notification Notification) {
	keyvals := []interface{}{
		"action", notification.Action,
		"milestone", notification.MilestoneID,
		"state", notification.State,
	}
	if notification.Reference != "" {
		keyvals = append(keyvals, "tx", notification.Reference)
	}
	if notification.State == StateFailed && !notification.Quiet {
		keyvals = append(keyvals, "kind", notification.Kind)
		n.Logger.Error(notification.Message, keyvals...)
		return
	}
	n.Logger.Info(notification.Message, keyvals...)
}
