package store

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/halcyon-wallet/gateway/internal/approval"
)

func newTestRepo(t *testing.T) (*Repository, *DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db := OpenSQLite(dsn)
	AutoMigrate(db)
	return NewRepository(db), db
}

func TestEnsureOperatorSeedsOnce(t *testing.T) {
	repo, db := newTestRepo(t)
	EnsureOperator(db, "admin", "s3cret")
	EnsureOperator(db, "admin", "other") // second call must not overwrite

	op, err := repo.GetOperatorByUsername(context.Background(), "admin")
	if err != nil {
		t.Fatalf("get operator: %v", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(op.PassHash), []byte("s3cret")); err != nil {
		t.Fatalf("password hash mismatch: %v", err)
	}
	if _, err := repo.GetOperatorByUsername(context.Background(), "ghost"); err != ErrNotFound {
		t.Fatalf("missing operator err = %v, want ErrNotFound", err)
	}
}

func TestDefaultNetworksSeedOnce(t *testing.T) {
	repo, db := newTestRepo(t)
	EnsureDefaultNetworks(db)
	EnsureDefaultNetworks(db)

	nets, err := repo.ListNetworks(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(nets) != 2 {
		t.Fatalf("networks = %d, want 2", len(nets))
	}
	active, err := repo.GetActiveNetwork(context.Background())
	if err != nil || active == nil || active.ChainID != 1 {
		t.Fatalf("active = %+v, %v; want mainnet", active, err)
	}
}

func TestSetActiveNetworkFlipsSingleFlag(t *testing.T) {
	repo, db := newTestRepo(t)
	EnsureDefaultNetworks(db)
	ctx := context.Background()

	if err := repo.SetActiveNetwork(ctx, 11155111); err != nil {
		t.Fatalf("set active: %v", err)
	}
	active, _ := repo.GetActiveNetwork(ctx)
	if active == nil || active.ChainID != 11155111 {
		t.Fatalf("active = %+v", active)
	}
	nets, _ := repo.ListNetworks(ctx)
	count := 0
	for _, n := range nets {
		if n.Active {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("active rows = %d, want 1", count)
	}

	if err := repo.SetActiveNetwork(ctx, 424242); err != ErrNotFound {
		t.Fatalf("unknown chain err = %v, want ErrNotFound", err)
	}
}

func TestDeleteNetworkRefusesActive(t *testing.T) {
	repo, db := newTestRepo(t)
	EnsureDefaultNetworks(db)
	ctx := context.Background()

	if err := repo.DeleteNetwork(ctx, 1); err != ErrNotFound {
		t.Fatalf("delete active = %v, want ErrNotFound", err)
	}
	if err := repo.DeleteNetwork(ctx, 11155111); err != nil {
		t.Fatalf("delete inactive: %v", err)
	}
}

func TestUpsertNetworkUpdatesInPlace(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	if err := repo.UpsertNetwork(ctx, &Network{ChainID: 137, Name: "Polygon", RPCURL: "https://a"}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := repo.UpsertNetwork(ctx, &Network{ChainID: 137, Name: "Polygon PoS", RPCURL: "https://b"}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	n, err := repo.GetNetworkByChainID(ctx, 137)
	if err != nil || n == nil {
		t.Fatalf("get: %+v, %v", n, err)
	}
	if n.Name != "Polygon PoS" || n.RPCURL != "https://b" {
		t.Fatalf("network = %+v", n)
	}
	if n, _ := repo.GetNetworkByChainID(ctx, 999); n != nil {
		t.Fatalf("missing network = %+v, want nil", n)
	}
}

func TestAssetsUpsertNormalizesAndDedupes(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	mixed := "0x00000000000000000000000000000000000000C3"
	if err := repo.UpsertAsset(ctx, &WatchedAsset{ChainID: 1, Address: mixed, Symbol: "USDC", Decimals: 6}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := repo.UpsertAsset(ctx, &WatchedAsset{ChainID: 1, Address: strings.ToLower(mixed), Symbol: "USDC.e", Decimals: 6}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	assets, err := repo.ListAssets(ctx, 1)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(assets) != 1 || assets[0].Symbol != "USDC.e" {
		t.Fatalf("assets = %+v", assets)
	}
	if assets[0].Address != strings.ToLower(mixed) {
		t.Fatalf("address not normalized: %s", assets[0].Address)
	}

	if err := repo.DeleteAsset(ctx, 1, mixed); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := repo.DeleteAsset(ctx, 1, mixed); err != ErrNotFound {
		t.Fatalf("second delete = %v, want ErrNotFound", err)
	}

	if err := repo.UpsertAsset(ctx, &WatchedAsset{ChainID: 1, Address: "0xnothex", Symbol: "BAD"}); err == nil {
		t.Fatal("upsert accepted a malformed address")
	}
}

func TestTrustedDapps(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	if err := repo.UpsertTrustedDapp(ctx, &TrustedDapp{Origin: "https://app.example", Name: "App"}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	ok, err := repo.IsTrustedOrigin(ctx, "https://app.example")
	if err != nil || !ok {
		t.Fatalf("trusted = %v, %v", ok, err)
	}
	ok, _ = repo.IsTrustedOrigin(ctx, "https://evil.example")
	if ok {
		t.Fatal("unknown origin reported trusted")
	}
	if err := repo.DeleteTrustedDapp(ctx, "https://app.example"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := repo.DeleteTrustedDapp(ctx, "https://app.example"); err != ErrNotFound {
		t.Fatalf("second delete = %v, want ErrNotFound", err)
	}
}

func TestApprovalAuditorWritesRows(t *testing.T) {
	repo, _ := newTestRepo(t)
	audit := NewApprovalAuditor(repo, nil)

	audit(approval.Request{
		ID:       "req-1",
		Origin:   "https://app.example",
		WindowID: "w1",
		Kind:     approval.KindTransaction,
		Transaction: &approval.TransactionPayload{
			From: "0xa1", To: "0xb2", Value: "1", ValueEther: "0.000000000000000001",
		},
	}, approval.Outcome{Decision: approval.DecisionApproved})

	logs, err := repo.ListApprovalLogs(context.Background(), 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(logs) != 1 {
		t.Fatalf("logs = %d, want 1", len(logs))
	}
	if logs[0].Decision != "approved" || logs[0].Kind != "transaction" {
		t.Fatalf("log = %+v", logs[0])
	}
	if !strings.Contains(logs[0].Summary, `"from":"0xa1"`) {
		t.Fatalf("summary = %s", logs[0].Summary)
	}
}

func TestOpsSwitchNetwork(t *testing.T) {
	repo, db := newTestRepo(t)
	EnsureDefaultNetworks(db)
	ops := NewOps(repo, nil)

	var switched *Network
	ops.OnSwitch(func(n Network) { switched = &n })

	ctx := context.Background()
	if err := ops.SwitchNetwork(ctx, 11155111); err != nil {
		t.Fatalf("switch: %v", err)
	}
	if switched == nil || switched.ChainID != 11155111 {
		t.Fatalf("switch hook = %+v", switched)
	}
	if err := ops.SwitchNetwork(ctx, 424242); err == nil {
		t.Fatal("expected error for unregistered chain")
	}
}

func TestOpsWatchAssetUsesActiveNetwork(t *testing.T) {
	repo, db := newTestRepo(t)
	EnsureDefaultNetworks(db)
	ops := NewOps(repo, nil)
	ctx := context.Background()

	err := ops.WatchAsset(ctx, approval.WatchAssetPayload{
		AssetType: "ERC20",
		Address:   "0x00000000000000000000000000000000000000c3",
		Symbol:    "USDC",
		Decimals:  6,
	})
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	assets, _ := repo.ListAssets(ctx, 1)
	if len(assets) != 1 || assets[0].Symbol != "USDC" {
		t.Fatalf("assets = %+v", assets)
	}
}

func TestOpsAddNetwork(t *testing.T) {
	repo, _ := newTestRepo(t)
	ops := NewOps(repo, nil)
	ctx := context.Background()

	err := ops.AddNetwork(ctx, approval.AddNetworkPayload{
		ChainID: 8453, ChainName: "Base", RPCURL: "https://mainnet.base.org", CurrencySymbol: "ETH",
	})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	n, _ := repo.GetNetworkByChainID(ctx, 8453)
	if n == nil || n.Name != "Base" {
		t.Fatalf("network = %+v", n)
	}
}
