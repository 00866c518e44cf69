package provider

import (
	"math/big"
	"sort"
	"time"

	"decred.org/dcrwallet/v2/errors"
	"github.com/asdine/storm"
	"github.com/ethereum/go-ethereum/common"
	bolt "go.etcd.io/bbolt"

	"code.cryptopower.dev/group/communityhub/libwallet/utils"
)

const (
	configDBBkt          = "provider_config"
	activeChainConfigKey = "active_chain_id"
)

type authorizedAccount struct {
	Address      string `storm:"id"`
	AuthorizedAt int64
}

type registeredNetwork struct {
	ChainID string `storm:"id"`
	Params  utils.ChainParams
}

// registry persists the wallet's own state: which accounts the client was
// allowed to see, which networks are known and which one is active.
type registry struct {
	db *storm.DB
}

func openRegistry(path string) (*registry, error) {
	const op errors.Op = "provider.openRegistry"

	db, err := storm.Open(path)
	if err != nil {
		log.Errorf("Error opening provider database: %s", err.Error())
		if err == bolt.ErrTimeout {
			// timeout error occurs if storm fails to acquire a lock on the database file
			return nil, errors.E(op, errors.IO, utils.ErrProviderDatabaseInUse)
		}
		return nil, errors.E(op, errors.IO, err)
	}

	for _, data := range []interface{}{&authorizedAccount{}, &registeredNetwork{}} {
		if err = db.Init(data); err != nil {
			db.Close()
			return nil, errors.E(op, errors.IO, err)
		}
	}

	return &registry{db: db}, nil
}

func (r *registry) close() error {
	return r.db.Close()
}

func (r *registry) authorized() ([]common.Address, error) {
	var records []authorizedAccount
	if err := r.db.All(&records); err != nil && err != storm.ErrNotFound {
		return nil, err
	}

	// most recently authorized first, that is the selected account
	sort.Slice(records, func(i, j int) bool {
		return records[i].AuthorizedAt > records[j].AuthorizedAt
	})

	addrs := make([]common.Address, 0, len(records))
	for _, rec := range records {
		addrs = append(addrs, common.HexToAddress(rec.Address))
	}
	return addrs, nil
}

func (r *registry) authorize(addr common.Address) error {
	return r.db.Save(&authorizedAccount{
		Address:      addr.Hex(),
		AuthorizedAt: time.Now().UnixNano(),
	})
}

func (r *registry) revoke(addr common.Address) error {
	err := r.db.DeleteStruct(&authorizedAccount{Address: addr.Hex()})
	if err == storm.ErrNotFound {
		return nil
	}
	return err
}

func (r *registry) networks() ([]*utils.ChainParams, error) {
	var records []registeredNetwork
	if err := r.db.All(&records); err != nil && err != storm.ErrNotFound {
		return nil, err
	}

	params := make([]*utils.ChainParams, 0, len(records))
	for i := range records {
		params = append(params, &records[i].Params)
	}
	return params, nil
}

func (r *registry) saveNetwork(params *utils.ChainParams) error {
	return r.db.Save(&registeredNetwork{
		ChainID: params.ChainID.String(),
		Params:  *params,
	})
}

func (r *registry) activeChainID() *big.Int {
	var id string
	err := r.db.Get(configDBBkt, activeChainConfigKey, &id)
	if err != nil {
		if err != storm.ErrNotFound {
			log.Errorf("error reading config value for key: %s, error: %v", activeChainConfigKey, err)
		}
		return nil
	}

	chainID, ok := new(big.Int).SetString(id, 10)
	if !ok {
		return nil
	}
	return chainID
}

func (r *registry) setActiveChainID(chainID *big.Int) {
	id := chainID.String()
	if err := r.db.Set(configDBBkt, activeChainConfigKey, &id); err != nil {
		log.Errorf("error setting config value for key: %s, error: %v", activeChainConfigKey, err)
	}
}
