package hub_test

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"code.cryptopower.dev/group/communityhub/libwallet/hub"
	"code.cryptopower.dev/group/communityhub/libwallet/utils"
)

var _ = Describe("NetworkGuard", func() {
	var (
		ctx    context.Context
		target *utils.ChainParams
	)

	BeforeEach(func() {
		ctx = context.Background()
		target = utils.UnstableParams.Copy()
	})

	It("does nothing on the designated network", func() {
		p := newFakeProvider(target.ChainID, identityX)
		guard := hub.NewNetworkGuard(p, target)

		ok, current, err := guard.VerifyNetwork(ctx)
		Expect(err).To(BeNil())
		Expect(ok).To(BeTrue())
		Expect(current.Cmp(target.ChainID)).To(Equal(0))

		Expect(guard.EnsureNetwork(ctx)).To(Succeed())
		switches, adds := p.counts()
		Expect(switches).To(Equal(0))
		Expect(adds).To(Equal(0))
	})

	It("switches to a known network", func() {
		p := newFakeProvider(big.NewInt(1), identityX)
		p.known[target.ChainID.String()] = true
		guard := hub.NewNetworkGuard(p, target)

		Expect(guard.EnsureNetwork(ctx)).To(Succeed())
		switches, adds := p.counts()
		Expect(switches).To(Equal(1))
		Expect(adds).To(Equal(0))
	})

	It("registers an unknown network and retries the switch once", func() {
		p := newFakeProvider(big.NewInt(1), identityX)
		guard := hub.NewNetworkGuard(p, target)

		Expect(guard.EnsureNetwork(ctx)).To(Succeed())
		switches, adds := p.counts()
		Expect(switches).To(Equal(2))
		Expect(adds).To(Equal(1))

		ok, _, err := guard.VerifyNetwork(ctx)
		Expect(err).To(BeNil())
		Expect(ok).To(BeTrue())
	})

	It("fails with NetworkUnavailable when registration fails", func() {
		p := newFakeProvider(big.NewInt(1), identityX)
		p.failAdd = true
		guard := hub.NewNetworkGuard(p, target)

		err := guard.EnsureNetwork(ctx)
		Expect(hub.KindOf(err)).To(Equal(hub.NetworkUnavailable))
		switches, _ := p.counts()
		Expect(switches).To(Equal(1))
	})

	It("fails with NetworkSwitchRejected when the user declines", func() {
		p := newFakeProvider(big.NewInt(1), identityX)
		p.known[target.ChainID.String()] = true
		p.declineSwitch = true
		guard := hub.NewNetworkGuard(p, target)

		Expect(hub.KindOf(guard.EnsureNetwork(ctx))).To(Equal(hub.NetworkSwitchRejected))
	})

	It("fails with ProviderMissing without a provider", func() {
		guard := hub.NewNetworkGuard(nil, target)
		Expect(hub.KindOf(guard.EnsureNetwork(ctx))).To(Equal(hub.ProviderMissing))
	})
})

var _ = Describe("ConnectionManager", func() {
	var (
		ctx      context.Context
		target   *utils.ChainParams
		p        *fakeProvider
		ledger   *fakeLedger
		h        *hub.Hub
		listener *recordingListener
	)

	newHub := func() {
		var err error
		h, err = hub.New(&hub.Config{
			Provider: p,
			Ledger:   ledger,
			Network:  target,
			Range:    hub.Range{From: 1, To: 100},
		})
		Expect(err).To(BeNil())
		listener = &recordingListener{}
		Expect(h.AddNotificationListener(listener, "test")).To(Succeed())
	}

	BeforeEach(func() {
		ctx = context.Background()
		target = utils.UnstableParams.Copy()
		p = newFakeProvider(target.ChainID, identityX)
		ledger = newFakeLedger()
		h = nil
	})

	AfterEach(func() {
		if h != nil {
			h.Close()
		}
	})

	It("stays disconnected when nothing is authorized", func() {
		newHub()
		state := h.Start(ctx)
		Expect(state.IsConnected()).To(BeFalse())
		Expect(state.String()).To(Equal("disconnected"))
	})

	It("silently adopts an authorized identity", func() {
		p.authorized = []common.Address{identityX}
		newHub()

		state := h.Start(ctx)
		Expect(state.IsConnected()).To(BeTrue())
		Expect(state.Address).To(Equal(identityX))
		Expect(state.WrongNetwork).To(BeFalse())
	})

	It("flags the wrong network on silent connect without dropping the identity", func() {
		p.authorized = []common.Address{identityX}
		p.chainID = big.NewInt(1)
		newHub()

		state := h.Start(ctx)
		Expect(state.IsConnected()).To(BeTrue())
		Expect(state.WrongNetwork).To(BeTrue())
	})

	It("connects after the user authorizes", func() {
		newHub()
		h.Start(ctx)

		state, err := h.Connection.Connect(ctx)
		Expect(err).To(BeNil())
		Expect(state.Address).To(Equal(identityX))

		addr, ok := h.Connection.Address()
		Expect(ok).To(BeTrue())
		Expect(addr).To(Equal(identityX))
	})

	It("stays disconnected when the switch at connect time is declined", func() {
		p.chainID = big.NewInt(1)
		p.known[target.ChainID.String()] = true
		p.declineSwitch = true
		newHub()
		h.Start(ctx)

		state, err := h.Connection.Connect(ctx)
		Expect(hub.KindOf(err)).To(Equal(hub.NetworkSwitchRejected))
		Expect(state.IsConnected()).To(BeFalse())
		Expect(h.Connection.State().IsConnected()).To(BeFalse())
	})

	It("reports a declined authorization as UserRejectedConnection", func() {
		p.declineConnect = true
		newHub()
		h.Start(ctx)

		_, err := h.Connection.Connect(ctx)
		Expect(hub.KindOf(err)).To(Equal(hub.UserRejectedConnection))
		Expect(h.Connection.State().IsConnected()).To(BeFalse())
	})

	It("fails with ProviderMissing without a provider", func() {
		var err error
		h, err = hub.New(&hub.Config{Network: target, Range: hub.Range{From: 1, To: 10}})
		Expect(err).To(BeNil())
		h.Start(ctx)

		_, err = h.Connection.Connect(ctx)
		Expect(hub.KindOf(err)).To(Equal(hub.ProviderMissing))

		_, err = h.Repository.Refresh(ctx)
		Expect(hub.KindOf(err)).To(Equal(hub.ProviderMissing))
	})

	It("follows account changes and drops cached vote statuses", func() {
		p.authorized = []common.Address{identityX}
		ledger.votes[1] = map[common.Address]hub.VoteStatus{identityX: hub.VoteYes}
		newHub()
		h.Start(ctx)

		Expect(h.VoteStatus(ctx, 1)).To(Equal(hub.VoteYes))

		p.emitAccounts(identityZ)
		Eventually(func() common.Address {
			addr, _ := h.Connection.Address()
			return addr
		}).Should(Equal(identityZ))
		Expect(h.VoteStatus(ctx, 1)).To(Equal(hub.VoteNone))

		p.emitAccounts()
		Eventually(func() bool {
			return h.Connection.State().IsConnected()
		}).Should(BeFalse())
		Expect(h.VoteStatus(ctx, 1)).To(Equal(hub.VoteNone))
	})

	It("re-checks the network when the provider reports a change", func() {
		p.authorized = []common.Address{identityX}
		newHub()
		h.Start(ctx)

		p.emitChain(big.NewInt(1))
		Eventually(func() bool {
			return h.Connection.State().WrongNetwork
		}).Should(BeTrue())
		Expect(h.Connection.State().Address).To(Equal(identityX))

		p.emitChain(target.ChainID)
		Eventually(func() bool {
			return h.Connection.State().WrongNetwork
		}).Should(BeFalse())
	})

	It("flags the wrong network when an account is authorized elsewhere", func() {
		newHub()
		h.Start(ctx)

		p.emitChain(big.NewInt(1))
		Eventually(func() *big.Int {
			return h.Connection.State().ChainID
		}).ShouldNot(BeNil())
		Expect(h.Connection.State().WrongNetwork).To(BeFalse())

		p.emitAccounts(identityX)
		Eventually(func() bool {
			return h.Connection.State().IsConnected()
		}).Should(BeTrue())
		Expect(h.Connection.State().WrongNetwork).To(BeTrue())
	})

	It("reads the chain id when an account arrives before any chain event", func() {
		p.chainID = big.NewInt(1)
		newHub()
		h.Start(ctx)

		p.emitAccounts(identityX)
		Eventually(func() bool {
			return h.Connection.State().IsConnected()
		}).Should(BeTrue())
		state := h.Connection.State()
		Expect(state.WrongNetwork).To(BeTrue())
		Expect(state.ChainID.Int64()).To(Equal(int64(1)))
	})

	It("stops following the provider once closed", func() {
		p.authorized = []common.Address{identityX}
		newHub()
		h.Start(ctx)
		h.Close()

		p.emitAccounts(identityZ)
		Consistently(func() common.Address {
			addr, _ := h.Connection.Address()
			return addr
		}, "100ms").Should(Equal(identityX))
	})
})
