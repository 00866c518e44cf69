package hub

import (
	"errors"
	"sync"

	"code.cryptopower.dev/group/communityhub/libwallet/utils"
)

// NotificationListener receives hub state changes. Callbacks run on the
// goroutine that caused the change and must not block.
type NotificationListener interface {
	OnProposalsRefreshed(proposals []Proposal)
	OnTransactionStateChanged(tx PendingTransaction)
	OnConnectionStateChanged(state ConnectionState)
}

type notifier struct {
	notificationListenersMu sync.RWMutex
	notificationListeners   map[string]NotificationListener
}

func newNotifier() *notifier {
	return &notifier{notificationListeners: make(map[string]NotificationListener)}
}

func (n *notifier) AddNotificationListener(notificationListener NotificationListener, uniqueIdentifier string) error {
	n.notificationListenersMu.Lock()
	defer n.notificationListenersMu.Unlock()

	if _, ok := n.notificationListeners[uniqueIdentifier]; ok {
		return errors.New(utils.ErrListenerAlreadyExist)
	}

	n.notificationListeners[uniqueIdentifier] = notificationListener
	return nil
}

func (n *notifier) RemoveNotificationListener(uniqueIdentifier string) {
	n.notificationListenersMu.Lock()
	defer n.notificationListenersMu.Unlock()

	delete(n.notificationListeners, uniqueIdentifier)
}

func (n *notifier) publishProposalsRefreshed(proposals []Proposal) {
	if n == nil {
		return
	}
	n.notificationListenersMu.RLock()
	defer n.notificationListenersMu.RUnlock()

	for _, notificationListener := range n.notificationListeners {
		notificationListener.OnProposalsRefreshed(proposals)
	}
}

func (n *notifier) publishTransactionState(tx *PendingTransaction) {
	if n == nil {
		return
	}
	n.notificationListenersMu.RLock()
	defer n.notificationListenersMu.RUnlock()

	for _, notificationListener := range n.notificationListeners {
		notificationListener.OnTransactionStateChanged(*tx)
	}
}

func (n *notifier) publishConnectionState(state ConnectionState) {
	if n == nil {
		return
	}
	n.notificationListenersMu.RLock()
	defer n.notificationListenersMu.RUnlock()

	for _, notificationListener := range n.notificationListeners {
		notificationListener.OnConnectionStateChanged(state)
	}
}
