package hub_test

import (
	"errors"
	"fmt"
	"io"
	"net/url"

	"github.com/ethereum/go-ethereum/core/types"
	. "github.com/onsi/ginkgo"
	"github.com/onsi/ginkgo/extensions/table"
	. "github.com/onsi/gomega"

	"code.cryptopower.dev/group/communityhub/libwallet/hub"
	"code.cryptopower.dev/group/communityhub/libwallet/provider"
)

var _ = Describe("Classify", func() {
	table.DescribeTable("maps raw failures to one kind",
		func(err error, want hub.Kind) {
			Expect(hub.Classify(hub.ActionVote, err).Kind).To(Equal(want))
		},
		table.Entry("provider decline code", &provider.RPCError{Code: 4001, Message: "nope"}, hub.UserRejected),
		table.Entry("decline message", errors.New("MetaMask Tx Signature: User denied transaction signature."), hub.UserRejected),
		table.Entry("declined sentinel", fmt.Errorf("sign: %w", provider.ErrDeclined), hub.UserRejected),
		table.Entry("chain disconnected", &provider.RPCError{Code: 4901, Message: "network changed while signing"}, hub.NetworkMismatch),
		table.Entry("signer chain id", fmt.Errorf("sign: %w", types.ErrInvalidChainId), hub.NetworkMismatch),
		table.Entry("internal error code", &provider.RPCError{Code: -32603, Message: "Internal JSON-RPC error."}, hub.ContractRejected),
		table.Entry("revert message", errors.New("execution reverted"), hub.ContractRejected),
		table.Entry("reverted receipt", hub.ErrTransactionReverted, hub.ContractRejected),
		table.Entry("refused connection", &url.Error{Op: "Post", URL: "http://127.0.0.1:8545", Err: errors.New("connection refused")}, hub.TransportFailure),
		table.Entry("truncated response", io.ErrUnexpectedEOF, hub.TransportFailure),
		table.Entry("anything else", errors.New("gas required exceeds allowance"), hub.Unknown),
	)

	It("prefers a user rejection over a revert", func() {
		err := &provider.RPCError{Code: 4001, Message: "user rejected: execution reverted"}
		Expect(hub.Classify(hub.ActionVote, err).Kind).To(Equal(hub.UserRejected))
	})

	It("prefers a revert over a transport failure", func() {
		err := fmt.Errorf("execution reverted: %w", io.EOF)
		Expect(hub.Classify(hub.ActionVote, err).Kind).To(Equal(hub.ContractRejected))
	})

	It("keeps the revert reason supplied by the node", func() {
		classified := hub.Classify(hub.ActionVote, revertError("Already voted"))
		Expect(classified.Kind).To(Equal(hub.ContractRejected))
		Expect(classified.Detail).To(Equal("Already voted"))
	})

	It("names the likely causes when no reason is given", func() {
		classified := hub.Classify(hub.ActionClose, errors.New("execution reverted"))
		Expect(classified.Detail).To(ContainSubstring("creator"))

		classified = hub.Classify(hub.ActionVote, errors.New("execution reverted"))
		Expect(classified.Detail).To(Equal("already voted, proposal closed, or no voting power"))
	})

	It("keeps the raw message of unknown failures", func() {
		raw := errors.New("nonce too low")
		classified := hub.Classify(hub.ActionDonate, raw)
		Expect(classified.Detail).To(Equal("nonce too low"))
		Expect(errors.Is(classified, raw)).To(BeTrue())
		Expect(classified.Error()).To(Equal("donate: unexpected error: nonce too low"))
	})

	It("passes classified errors through", func() {
		classified := hub.Classify(hub.ActionVote, errors.New("execution reverted"))
		Expect(hub.Classify(hub.ActionDonate, fmt.Errorf("wrapped: %w", classified))).To(BeIdenticalTo(classified))
		Expect(hub.KindOf(classified)).To(Equal(hub.ContractRejected))
		Expect(hub.KindOf(errors.New("plain"))).To(Equal(hub.Unknown))
	})

	It("labels a copy of a classified error that names no action", func() {
		shared := &hub.Error{Kind: hub.NetworkMismatch}

		labelled := hub.Classify(hub.ActionConnect, shared)
		Expect(labelled).NotTo(BeIdenticalTo(shared))
		Expect(labelled.Kind).To(Equal(hub.NetworkMismatch))
		Expect(labelled.Action).To(Equal(hub.ActionConnect))
		Expect(shared.Action).To(BeEmpty())

		Expect(hub.Classify(hub.ActionVote, shared).Action).To(Equal(hub.ActionVote))
	})
})
