package provider_test

import (
	"context"
	"math/big"
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"code.cryptopower.dev/group/communityhub/libwallet/provider"
	"code.cryptopower.dev/group/communityhub/libwallet/utils"
)

type testApprover struct {
	declineConnect bool
	declineSwitch  bool
	declineTx      bool
	passphrase     string
	txRequests     []*provider.TxRequest
}

func (a *testApprover) ApproveConnection(_ context.Context, candidates []common.Address) (common.Address, error) {
	if a.declineConnect {
		return common.Address{}, provider.ErrDeclined
	}
	return candidates[0], nil
}

func (a *testApprover) ApproveNetworkSwitch(context.Context, *utils.ChainParams) error {
	if a.declineSwitch {
		return provider.ErrDeclined
	}
	return nil
}

func (a *testApprover) ApproveNetworkAddition(context.Context, *utils.ChainParams) error {
	return nil
}

func (a *testApprover) ApproveTransaction(_ context.Context, req *provider.TxRequest) (string, error) {
	a.txRequests = append(a.txRequests, req)
	if a.declineTx {
		return "", provider.ErrDeclined
	}
	return a.passphrase, nil
}

func rpcCode(err error) int {
	rpcErr, ok := err.(*provider.RPCError)
	Expect(ok).To(BeTrue(), "expected a provider error, got %v", err)
	return rpcErr.Code
}

var _ = Describe("KeystoreProvider", func() {
	var (
		ctx      context.Context
		rootDir  string
		approver *testApprover
		p        *provider.KeystoreProvider
	)

	const passphrase = "hub-pass"

	open := func() *provider.KeystoreProvider {
		kp, err := provider.NewKeystoreProvider(&provider.Config{
			KeystoreDir: filepath.Join(rootDir, "keystore"),
			DBPath:      filepath.Join(rootDir, "provider.db"),
			Networks:    []*utils.ChainParams{utils.UnstableParams},
			Approver:    approver,
			ScryptN:     keystore.LightScryptN,
			ScryptP:     keystore.LightScryptP,
		})
		Expect(err).To(BeNil())
		return kp
	}

	BeforeEach(func() {
		var err error
		ctx = context.Background()
		rootDir, err = os.MkdirTemp("", "provider_test")
		Expect(err).To(BeNil())
		approver = &testApprover{passphrase: passphrase}
		p = open()
	})

	AfterEach(func() {
		if p != nil {
			p.Close()
		}
		os.RemoveAll(rootDir)
	})

	It("activates the first preset network", func() {
		chainID, err := p.ChainID(ctx)
		Expect(err).To(BeNil())
		Expect(chainID.Int64()).To(Equal(int64(8080)))
	})

	It("has no authorized accounts before a connection", func() {
		accts, err := p.Accounts(ctx)
		Expect(err).To(BeNil())
		Expect(accts).To(BeEmpty())

		_, err = p.RequestAccounts(ctx)
		Expect(err).ToNot(BeNil())
	})

	Describe("authorization", func() {
		var addr common.Address

		BeforeEach(func() {
			var err error
			addr, err = p.NewAccount(passphrase)
			Expect(err).To(BeNil())
		})

		It("authorizes the approved account and announces it", func() {
			events := make(chan provider.Event, 4)
			sub := p.SubscribeEvents(events)
			defer sub.Unsubscribe()

			accts, err := p.RequestAccounts(ctx)
			Expect(err).To(BeNil())
			Expect(accts).To(Equal([]common.Address{addr}))

			var ev provider.Event
			Eventually(events).Should(Receive(&ev))
			Expect(ev.Type).To(Equal(provider.AccountsChanged))
			Expect(ev.Accounts).To(Equal([]common.Address{addr}))

			accts, err = p.Accounts(ctx)
			Expect(err).To(BeNil())
			Expect(accts).To(Equal([]common.Address{addr}))
		})

		It("reports a declined connection with the user rejected code", func() {
			approver.declineConnect = true
			_, err := p.RequestAccounts(ctx)
			Expect(rpcCode(err)).To(Equal(provider.CodeUserRejected))
		})

		It("forgets a revoked account", func() {
			_, err := p.RequestAccounts(ctx)
			Expect(err).To(BeNil())
			Expect(p.RevokeAuthorization(addr)).To(Succeed())

			accts, err := p.Accounts(ctx)
			Expect(err).To(BeNil())
			Expect(accts).To(BeEmpty())
		})

		It("keeps authorizations and the active network across restarts", func() {
			_, err := p.RequestAccounts(ctx)
			Expect(err).To(BeNil())
			Expect(p.AddChain(ctx, utils.LocalnetParams)).To(Succeed())
			Expect(p.SwitchChain(ctx, utils.LocalnetParams.ChainID)).To(Succeed())
			Expect(p.Close()).To(Succeed())

			p = open()
			accts, err := p.Accounts(ctx)
			Expect(err).To(BeNil())
			Expect(accts).To(Equal([]common.Address{addr}))

			chainID, err := p.ChainID(ctx)
			Expect(err).To(BeNil())
			Expect(chainID.Int64()).To(Equal(int64(31337)))
		})
	})

	Describe("networks", func() {
		It("refuses to switch to an unknown network", func() {
			err := p.SwitchChain(ctx, big.NewInt(31337))
			Expect(rpcCode(err)).To(Equal(provider.CodeUnrecognizedChain))
		})

		It("switches to an added network and announces it", func() {
			events := make(chan provider.Event, 4)
			sub := p.SubscribeEvents(events)
			defer sub.Unsubscribe()

			Expect(p.AddChain(ctx, utils.LocalnetParams)).To(Succeed())
			Expect(p.SwitchChain(ctx, big.NewInt(31337))).To(Succeed())

			var ev provider.Event
			Eventually(events).Should(Receive(&ev))
			Expect(ev.Type).To(Equal(provider.ChainChanged))
			Expect(ev.ChainID.Int64()).To(Equal(int64(31337)))
		})

		It("reports a declined switch with the user rejected code", func() {
			Expect(p.AddChain(ctx, utils.LocalnetParams)).To(Succeed())
			approver.declineSwitch = true

			err := p.SwitchChain(ctx, big.NewInt(31337))
			Expect(rpcCode(err)).To(Equal(provider.CodeUserRejected))

			chainID, _ := p.ChainID(ctx)
			Expect(chainID.Int64()).To(Equal(int64(8080)))
		})

		It("rejects incomplete network parameters", func() {
			err := p.AddChain(ctx, &utils.ChainParams{ChainID: big.NewInt(5)})
			Expect(err).ToNot(BeNil())
		})
	})

	Describe("signing", func() {
		var (
			addr common.Address
			tx   *types.Transaction
		)

		BeforeEach(func() {
			var err error
			addr, err = p.NewAccount(passphrase)
			Expect(err).To(BeNil())

			to := common.HexToAddress("0xd927807767655E6e818af8EBbCf6cf41890E253c")
			tx = types.NewTx(&types.LegacyTx{
				Nonce:    1,
				To:       &to,
				Value:    big.NewInt(25),
				Gas:      21000,
				GasPrice: big.NewInt(1),
			})
		})

		It("refuses accounts that were never authorized", func() {
			_, err := p.Transactor(ctx, addr)
			Expect(rpcCode(err)).To(Equal(provider.CodeUnauthorized))
		})

		It("signs for the active network after approval", func() {
			_, err := p.RequestAccounts(ctx)
			Expect(err).To(BeNil())

			opts, err := p.Transactor(ctx, addr)
			Expect(err).To(BeNil())
			Expect(opts.From).To(Equal(addr))

			signed, err := opts.Signer(addr, tx)
			Expect(err).To(BeNil())

			sender, err := types.Sender(types.LatestSignerForChainID(big.NewInt(8080)), signed)
			Expect(err).To(BeNil())
			Expect(sender).To(Equal(addr))

			Expect(approver.txRequests).To(HaveLen(1))
			Expect(approver.txRequests[0].Value.Int64()).To(Equal(int64(25)))
		})

		It("maps a declined signature and a wrong passphrase to provider codes", func() {
			_, err := p.RequestAccounts(ctx)
			Expect(err).To(BeNil())
			opts, err := p.Transactor(ctx, addr)
			Expect(err).To(BeNil())

			approver.declineTx = true
			_, err = opts.Signer(addr, tx)
			Expect(rpcCode(err)).To(Equal(provider.CodeUserRejected))

			approver.declineTx = false
			approver.passphrase = "wrong"
			_, err = opts.Signer(addr, tx)
			Expect(rpcCode(err)).To(Equal(provider.CodeUnauthorized))
		})

		It("refuses to sign once the network changed", func() {
			_, err := p.RequestAccounts(ctx)
			Expect(err).To(BeNil())
			opts, err := p.Transactor(ctx, addr)
			Expect(err).To(BeNil())

			Expect(p.AddChain(ctx, utils.LocalnetParams)).To(Succeed())
			Expect(p.SwitchChain(ctx, utils.LocalnetParams.ChainID)).To(Succeed())

			_, err = opts.Signer(addr, tx)
			Expect(rpcCode(err)).To(Equal(provider.CodeChainDisconnected))
		})
	})
})
