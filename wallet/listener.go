package wallet

import (
	"sync"

	"code.cryptopower.dev/group/communityhub/libwallet/hub"
)

// UpdateType identifies what changed in the session.
type UpdateType int

const (
	// ProposalsRefreshed indicates the proposal list was reloaded
	ProposalsRefreshed UpdateType = iota

	// TransactionStateChanged indicates a write moved to another state
	TransactionStateChanged

	// ConnectionStateChanged indicates the identity or network changed
	ConnectionStateChanged
)

// Update represents a session change delivered to the app.
type Update struct {
	Type        UpdateType
	Proposals   []hub.Proposal
	Transaction hub.PendingTransaction
	Connection  hub.ConnectionState
}

// Listener forwards hub notifications as Updates. Updates are dropped when
// nobody drains the channel so that the hub never blocks on the app.
type Listener struct {
	mu      sync.Mutex
	closed  bool
	updates chan Update
}

var _ hub.NotificationListener = (*Listener)(nil)

func NewListener(buffer int) *Listener {
	return &Listener{updates: make(chan Update, buffer)}
}

// Updates returns the channel updates are delivered on. It is closed by
// Close.
func (l *Listener) Updates() <-chan Update {
	return l.updates
}

func (l *Listener) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.closed {
		l.closed = true
		close(l.updates)
	}
}

func (l *Listener) send(u Update) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	select {
	case l.updates <- u:
	default:
	}
}

func (l *Listener) OnProposalsRefreshed(proposals []hub.Proposal) {
	l.send(Update{Type: ProposalsRefreshed, Proposals: proposals})
}

func (l *Listener) OnTransactionStateChanged(tx hub.PendingTransaction) {
	l.send(Update{Type: TransactionStateChanged, Transaction: tx})
}

func (l *Listener) OnConnectionStateChanged(state hub.ConnectionState) {
	l.send(Update{Type: ConnectionStateChanged, Connection: state})
}
