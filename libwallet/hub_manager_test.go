package libwallet_test

import (
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"code.cryptopower.dev/group/communityhub/libwallet"
	"code.cryptopower.dev/group/communityhub/libwallet/hub"
	"code.cryptopower.dev/group/communityhub/libwallet/provider"
	"code.cryptopower.dev/group/communityhub/libwallet/utils"
)

var _ = Describe("HubManager", func() {
	var (
		rootDir string
		params  *libwallet.InitParams
	)

	BeforeEach(func() {
		var err error
		rootDir, err = os.MkdirTemp("", "hubmanager")
		Expect(err).To(BeNil())

		params = &libwallet.InitParams{
			RootDir:  rootDir,
			NetType:  utils.Unstable,
			Approver: &provider.AutoApprover{Passphrase: "secret"},
			ScryptN:  keystore.LightScryptN,
			ScryptP:  keystore.LightScryptP,
		}
	})

	AfterEach(func() {
		os.RemoveAll(rootDir)
	})

	It("rejects an unknown network type", func() {
		params.NetType = utils.ToNetworkType("mainnet")
		_, err := libwallet.NewHubManager(params)
		Expect(err).To(Equal(utils.ErrInvalidNet))
	})

	It("requires a contract address where no deployment is known", func() {
		params.NetType = utils.Localnet
		_, err := libwallet.NewHubManager(params)
		Expect(err).ToNot(BeNil())
	})

	It("rejects a malformed contract address", func() {
		params.ContractAddress = "0x1234"
		_, err := libwallet.NewHubManager(params)
		Expect(err).ToNot(BeNil())
	})

	Context("on the default network", func() {
		var mgr *libwallet.HubManager

		BeforeEach(func() {
			var err error
			mgr, err = libwallet.NewHubManager(params)
			Expect(err).To(BeNil())
		})

		AfterEach(func() {
			mgr.Shutdown()
		})

		It("lays out its data under the network directory", func() {
			Expect(mgr.NetType()).To(Equal(utils.Unstable))
			Expect(mgr.LogDir()).To(Equal(filepath.Join(rootDir, "unstable", utils.LogFileName)))
			Expect(mgr.Network().ChainID.Int64()).To(Equal(int64(8080)))
			Expect(mgr.Ledger.Address()).To(Equal(utils.DefaultContractAddresses[utils.Unstable]))
			Expect(mgr.Hub.Repository.Range()).To(Equal(libwallet.DefaultRange))

			_, err := os.Stat(filepath.Join(rootDir, "unstable", "provider.db"))
			Expect(err).To(BeNil())
		})

		It("starts disconnected until an account is authorized", func() {
			state, err := mgr.Start(false)
			Expect(err).To(BeNil())
			Expect(state.IsConnected()).To(BeFalse())

			addr, err := mgr.NewAccount("secret")
			Expect(err).To(BeNil())
			Expect(mgr.ListAccounts()).To(Equal([]common.Address{addr}))

			state, err = mgr.Connect()
			Expect(err).To(BeNil())
			Expect(state.Address).To(Equal(addr))
			Expect(state.WrongNetwork).To(BeFalse())
		})

		It("validates writes before touching the network", func() {
			mgr.Start(false)

			_, err := mgr.Vote(0, true)
			Expect(hub.KindOf(err)).To(Equal(hub.InvalidInput))

			_, err = mgr.Vote(1, true)
			Expect(hub.KindOf(err)).To(Equal(hub.NotConnected))
		})

		It("tolerates repeated shutdowns", func() {
			mgr.Start(false)
			mgr.Shutdown()

			done := make(chan struct{})
			go func() {
				mgr.Shutdown()
				close(done)
			}()
			Eventually(done).Should(BeClosed())
		})
	})
})
