package persistence

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/status-im/dapp-connector/kvstore"
	"github.com/status-im/dapp-connector/services/connector/chain"
	"github.com/status-im/dapp-connector/services/connector/origin"
)

var (
	testOrigin = origin.Origin{Title: "DApp", URL: "https://dapp.example/app", FaviconURL: "https://dapp.example/favicon.ico"}
	testEvm    = chain.Wallet{Address: "0x6d0aa2a774b74bb1d36f97700315adf962c69fcb", PublicKey: "0x6d0aa2a774b74bb1d36f97700315adf962c69fcb", Type: chain.WalletTypeEOA, Family: chain.Evm}
	testSafe   = chain.Wallet{Address: "0x1111111111111111111111111111111111111111", Type: chain.WalletTypeMultisig, Family: chain.Evm, SupportedChainIDs: []int64{1}}
	testSol    = chain.Wallet{Address: "9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM", PublicKey: "9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM", Type: chain.WalletTypeEOA, Family: chain.Solana}
)

func setupTestDB(t *testing.T) *Database {
	db := NewDatabase(kvstore.NewMemoryStore(), 3)
	require.NoError(t, db.SetSessionData(NewSessionRecord(&User{ID: "user-1"})))
	return db
}

func TestNoSession(t *testing.T) {
	db := NewDatabase(kvstore.NewMemoryStore(), 3)

	session, err := db.GetSessionData()
	require.NoError(t, err)
	require.Nil(t, session)

	sites, err := db.GetConnectedSites()
	require.NoError(t, err)
	require.Empty(t, sites)

	require.ErrorIs(t, db.AddConnectedSite(testOrigin, chain.Evm, testEvm, 1), ErrNoSession)
	require.ErrorIs(t, db.SelectWallet(chain.Evm, testEvm), ErrNoSession)
}

func TestAddConnectedSiteThenConnection(t *testing.T) {
	db := setupTestDB(t)

	for _, f := range chain.Families() {
		for _, id := range []int64{1, 10, -239} {
			w := testEvm
			w.Family = f
			require.NoError(t, db.AddConnectedSite(testOrigin, f, w, id))

			conn, err := db.Connection(testOrigin.Key(), f)
			require.NoError(t, err)
			require.NotNil(t, conn)
			require.Equal(t, id, conn.ChainID)
			require.Equal(t, w.Address, conn.Wallet.Address)
		}
	}

	sites, err := db.GetConnectedSites()
	require.NoError(t, err)
	require.Len(t, sites, 1)
	record := sites["https://dapp.example"]
	require.Equal(t, "DApp", record.Title)
	require.Equal(t, testOrigin.FaviconURL, record.ImageURL)
	require.Len(t, record.Connections, 3)
}

func TestAddConnectedSiteRequiresURL(t *testing.T) {
	db := setupTestDB(t)
	require.ErrorIs(t, db.AddConnectedSite(origin.Origin{Title: "x"}, chain.Evm, testEvm, 1), origin.ErrMissingURL)
}

func TestRemoveConnectedSite(t *testing.T) {
	db := setupTestDB(t)
	key := testOrigin.Key()

	require.NoError(t, db.AddConnectedSite(testOrigin, chain.Evm, testEvm, 1))
	require.NoError(t, db.AddConnectedSite(testOrigin, chain.Solana, testSol, 101))

	// one family only
	require.NoError(t, db.RemoveConnectedSite(key, chain.Evm))
	conn, err := db.Connection(key, chain.Evm)
	require.NoError(t, err)
	require.Nil(t, conn)
	conn, err = db.Connection(key, chain.Solana)
	require.NoError(t, err)
	require.NotNil(t, conn)

	// removing the last family drops the record
	require.NoError(t, db.RemoveConnectedSite(key, chain.Solana))
	sites, err := db.GetConnectedSites()
	require.NoError(t, err)
	require.NotContains(t, sites, key)

	// no family removes everything
	require.NoError(t, db.AddConnectedSite(testOrigin, chain.Evm, testEvm, 1))
	require.NoError(t, db.AddConnectedSite(testOrigin, chain.Solana, testSol, 101))
	require.NoError(t, db.RemoveConnectedSite(key))
	sites, err = db.GetConnectedSites()
	require.NoError(t, err)
	require.Empty(t, sites)

	// unknown origin is a no-op
	require.NoError(t, db.RemoveConnectedSite("https://unknown.example"))
}

func TestSelectWallet(t *testing.T) {
	db := setupTestDB(t)

	w, err := db.SelectedWallet(chain.Evm)
	require.NoError(t, err)
	require.Nil(t, w)

	require.NoError(t, db.SelectWallet(chain.Evm, testEvm))
	require.NoError(t, db.SelectWallet(chain.Solana, testSol))

	w, err = db.SelectedWallet(chain.Evm)
	require.NoError(t, err)
	require.Equal(t, testEvm.Address, w.Address)

	session, err := db.GetSessionData()
	require.NoError(t, err)
	require.Equal(t, testSol.Address, session.SelectedWallet.Latest.Address)
	require.Nil(t, session.SelectedWallet.Tvm)
}

func TestUpdateChainID(t *testing.T) {
	db := setupTestDB(t)
	key := testOrigin.Key()

	require.NoError(t, db.SelectWallet(chain.Evm, testEvm))
	require.NoError(t, db.AddConnectedSite(testOrigin, chain.Evm, testEvm, 1))
	require.NoError(t, db.UpdateChainID(key, chain.Evm, 10))

	conn, err := db.Connection(key, chain.Evm)
	require.NoError(t, err)
	require.Equal(t, int64(10), conn.ChainID)
	require.Equal(t, int64(10), conn.Wallet.ChainID)

	w, err := db.SelectedWallet(chain.Evm)
	require.NoError(t, err)
	require.Equal(t, int64(10), w.ChainID)
}

func TestUpdateWallets(t *testing.T) {
	db := setupTestDB(t)
	other := origin.Origin{URL: "https://other.example"}

	require.NoError(t, db.SelectWallet(chain.Evm, testSafe))
	require.NoError(t, db.AddConnectedSite(testOrigin, chain.Evm, testSafe, 1))
	require.NoError(t, db.AddConnectedSite(other, chain.Evm, testEvm, 1))

	updated := testSafe
	updated.Name = "Treasury"
	updated.SupportedChainIDs = []int64{1, 10}
	require.NoError(t, db.UpdateWallets(chain.Evm, []chain.Wallet{updated}))

	conn, err := db.Connection(testOrigin.Key(), chain.Evm)
	require.NoError(t, err)
	require.Equal(t, "Treasury", conn.Wallet.Name)
	require.Equal(t, []int64{1, 10}, conn.Wallet.SupportedChainIDs)
	require.Equal(t, int64(1), conn.ChainID)

	untouched, err := db.Connection(other.Key(), chain.Evm)
	require.NoError(t, err)
	require.Equal(t, testEvm.Address, untouched.Wallet.Address)

	w, err := db.SelectedWallet(chain.Evm)
	require.NoError(t, err)
	require.Equal(t, "Treasury", w.Name)
}

func TestBrowserHistory(t *testing.T) {
	db := setupTestDB(t)

	for i := 0; i < 4; i++ {
		require.NoError(t, db.AddBrowserHistory(origin.Origin{URL: fmt.Sprintf("https://d%d.example", i)}))
	}
	// re-visiting moves the entry to the end
	require.NoError(t, db.SetCurrentTab(&origin.Origin{URL: "https://d2.example"}))

	history, err := db.BrowserHistory()
	require.NoError(t, err)
	require.Len(t, history, 3)
	require.Equal(t, "https://d1.example", history[0].URL)
	require.Equal(t, "https://d3.example", history[1].URL)
	require.Equal(t, "https://d2.example", history[2].URL)

	tab, err := db.CurrentTab()
	require.NoError(t, err)
	require.Equal(t, "https://d2.example", tab.URL)

	require.NoError(t, db.SetCurrentTab(nil))
	tab, err = db.CurrentTab()
	require.NoError(t, err)
	require.Nil(t, tab)
}

func TestSetConnectedSites(t *testing.T) {
	db := setupTestDB(t)
	require.NoError(t, db.AddConnectedSite(testOrigin, chain.Evm, testEvm, 1))

	require.NoError(t, db.SetConnectedSites(nil))
	sites, err := db.GetConnectedSites()
	require.NoError(t, err)
	require.Empty(t, sites)

	require.NoError(t, db.DeleteSessionData())
	session, err := db.GetSessionData()
	require.NoError(t, err)
	require.Nil(t, session)
}
