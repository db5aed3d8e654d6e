package server

import (
	"bytes"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vesplit/vesplit/common"
	"github.com/vesplit/vesplit/common/log"
	"github.com/vesplit/vesplit/engine"
	"github.com/vesplit/vesplit/module"
	"github.com/vesplit/vesplit/store"
)

const genesisTS = int64(1_700_000_000)

type stubEscrow struct {
	nextID module.PositionID
}

func (f *stubEscrow) Lock(principal *big.Int) (module.PositionID, error) {
	f.nextID++
	return f.nextID, nil
}

func (f *stubEscrow) Merge(src, dst module.PositionID) error { return nil }

func (f *stubEscrow) Split(id module.PositionID, amount *big.Int) (module.PositionID, error) {
	f.nextID++
	return f.nextID, nil
}

func (f *stubEscrow) IsPermanentUnvoted(id module.PositionID) bool { return true }

func (f *stubEscrow) ClaimRebaseGrowth(id module.PositionID) (*big.Int, error) {
	return new(big.Int), nil
}

func (f *stubEscrow) Principal(id module.PositionID) *big.Int { return new(big.Int) }

type stubRouter struct{}

func (stubRouter) MaxPoolsPerCall() int { return 8 }
func (stubRouter) BucketCapable() bool  { return true }
func (stubRouter) SubmitVotes(pools []common.Address, weights []*big.Int) error {
	return nil
}

type stubVault struct{}

func (stubVault) Balance(token common.Address) *big.Int { return new(big.Int) }
func (stubVault) Transfer(token, to common.Address, amount *big.Int) error {
	return nil
}

type stubOracle struct{}

func (stubOracle) Verify(claim *module.ClaimDescriptor, proof []byte) bool { return true }

func holderAddr() *common.Address {
	a := new(common.Address)
	a[common.AddressBytes-1] = 1
	return a
}

func newTestServer(t *testing.T, st *store.Store) (*Server, *common.Address) {
	cfg := engine.DefaultConfig(genesisTS)
	cfg.VoteUnit = big.NewInt(1000)
	require.NoError(t, cfg.Seal())
	timer := &common.TestClock{}
	timer.SetTime(time.Unix(genesisTS, 0))
	e, err := engine.New(cfg, timer, &stubEscrow{}, stubRouter{}, stubVault{}, stubOracle{},
		log.GlobalLogger())
	require.NoError(t, err)

	holder := holderAddr()
	_, _, _, err = e.Deposit(holder, big.NewInt(10000))
	require.NoError(t, err)
	return New(e, st, "127.0.0.1:0", log.GlobalLogger()), holder
}

func get(s *Server, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	dec := json.NewDecoder(bytes.NewReader(rec.Body.Bytes()))
	dec.UseNumber()
	var body map[string]interface{}
	require.NoError(t, dec.Decode(&body))
	return body
}

func TestServer_Status(t *testing.T) {
	s, _ := newTestServer(t, nil)
	rec := get(s, "/status")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	assert.Equal(t, json.Number("0"), body["epoch"])
	assert.Equal(t, json.Number("9000"), body["voting_supply"])
	assert.Equal(t, "Normal", body["liquidation_phase"])
}

func TestServer_Holder(t *testing.T) {
	s, holder := newTestServer(t, nil)
	rec := get(s, "/holder/"+holder.String())
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	assert.Equal(t, json.Number("9000"), body["voting"])
	assert.Equal(t, json.Number("900"), body["capital"])

	rec = get(s, "/holder/not-an-address")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_BribeSnapshotNotFound(t *testing.T) {
	s, holder := newTestServer(t, nil)
	rec := get(s, "/holder/"+holder.String()+"/bribes/0")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = get(s, "/holder/"+holder.String()+"/bribes/abc")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_Snapshots(t *testing.T) {
	// without a store the endpoints answer 404
	s, _ := newTestServer(t, nil)
	assert.Equal(t, http.StatusNotFound, get(s, "/snapshots/latest").Code)

	st, err := store.Open(t.TempDir(), log.GlobalLogger())
	require.NoError(t, err)
	defer st.Close()
	s, _ = newTestServer(t, st)
	require.NoError(t, st.PutSnapshot(s.engine.Snapshot()))

	rec := get(s, "/snapshots/latest")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "9000", body["voting_supply"])

	assert.Equal(t, http.StatusNotFound, get(s, "/snapshots/9").Code)
}
