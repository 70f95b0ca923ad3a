package indexer

import (
	"bytes"
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/xssnick/tonutils-go/address"
	"github.com/xssnick/tonutils-go/tvm/cell"

	"github.com/vietddude/poolwatch/internal/core/checkpoint"
	"github.com/vietddude/poolwatch/internal/core/domain"
	"github.com/vietddude/poolwatch/internal/indexing/deferred"
	"github.com/vietddude/poolwatch/internal/indexing/fetcher"
	"github.com/vietddude/poolwatch/internal/indexing/handler"
	"github.com/vietddude/poolwatch/internal/indexing/parser"
	"github.com/vietddude/poolwatch/internal/indexing/recovery"
	"github.com/vietddude/poolwatch/internal/indexing/throttle"
	"github.com/vietddude/poolwatch/internal/infra/chain"
	"github.com/vietddude/poolwatch/internal/infra/chain/chaintest"
	"github.com/vietddude/poolwatch/internal/infra/storage/memory"
	"github.com/vietddude/poolwatch/internal/protocols/stonfi"
	"github.com/vietddude/poolwatch/internal/service/conversion"
)

const (
	testNetwork = "testnet"
	poolAddr    = "EQpool"
)

var errWriteFailed = errors.New("write failed")

// recordingWriter wraps the memory repo, records call order and can fail
// the n-th stat insert once.
type recordingWriter struct {
	*memory.PoolsRepo
	calls      []string
	statCalls  int
	failStatAt int
}

func (w *recordingWriter) InsertLiquidityPool(ctx context.Context, pool *domain.LiquidityPool) error {
	w.calls = append(w.calls, "pool:"+pool.PoolAddress)
	return w.PoolsRepo.InsertLiquidityPool(ctx, pool)
}

func (w *recordingWriter) InsertPoolsStatsTradingVolume(ctx context.Context, stat *domain.PoolStatsTradingVolume) error {
	w.statCalls++
	if w.statCalls == w.failStatAt {
		w.failStatAt = 0
		return errWriteFailed
	}
	w.calls = append(w.calls, "stat:"+stat.PoolAddress)
	return w.PoolsRepo.InsertPoolsStatsTradingVolume(ctx, stat)
}

type harness struct {
	client   *chaintest.Client
	cp       *checkpoint.Checkpoint
	pc       *parser.Context
	writer   *recordingWriter
	failed   *memory.FailedRepo
	pipeline *Pipeline
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	store := memory.NewMemoryStorage()
	h := &harness{
		client: chaintest.New(),
		cp:     checkpoint.New(),
		pc:     parser.NewContext(),
		writer: &recordingWriter{PoolsRepo: memory.NewPoolsRepo(store)},
		failed: memory.NewFailedRepo(store),
	}

	f := fetcher.New(h.client, fetcher.Config{
		Workers:       2,
		PageSize:      10,
		RetryAttempts: 1,
		RetryBase:     time.Millisecond,
	}, testNetwork)
	t.Cleanup(f.Close)

	stonfiParser := stonfi.NewParser(h.client, conversion.New()).
		WithClock(func() time.Time { return time.Date(2024, 3, 5, 14, 30, 0, 0, time.UTC) })

	h.pipeline = NewPipeline(Config{
		Network:      testNetwork,
		Client:       h.client,
		Checkpoint:   h.cp,
		Fetcher:      f,
		Parsers:      parser.NewRegistry(stonfiParser),
		ParseContext: h.pc,
		Handlers: handler.NewRegistry(
			handler.NewPoolCreatedHandler(h.writer),
			handler.NewTradingStatHandler(h.writer),
		),
		Executor: deferred.NewExecutor(),
		Recorder: recovery.NewRecorder(h.failed, &recovery.ExponentialBackoff{
			InitialDelay: time.Millisecond,
			MaxDelay:     time.Millisecond,
		}, testNetwork),
		ScanInterval: 5 * time.Millisecond,
	})
	return h
}

func testAddr(b byte) *address.Address {
	return address.NewAddress(0, 0, bytes.Repeat([]byte{b}, 32))
}

func addrSlice(a *address.Address) *cell.Slice {
	return cell.BeginCell().MustStoreAddr(a).EndCell().BeginParse()
}

// scriptPool makes poolAddr resolvable through its get-methods.
func (h *harness) scriptPool() {
	wallet0, wallet1 := testAddr(0x01), testAddr(0x02)
	h.client.SetMethod(poolAddr, "get_pool_data", &chain.ExecutionResult{Stack: []any{
		int64(1000), int64(2000), addrSlice(wallet0), addrSlice(wallet1),
	}})
	h.client.SetMethod(wallet0.String(), "get_wallet_data", &chain.ExecutionResult{Stack: []any{
		int64(0), addrSlice(testAddr(0xaa)), addrSlice(testAddr(0x11)),
	}})
	h.client.SetMethod(wallet1.String(), "get_wallet_data", &chain.ExecutionResult{Stack: []any{
		int64(0), addrSlice(testAddr(0xaa)), addrSlice(testAddr(0x12)),
	}})
}

func swapTx(lt uint64) *domain.RawTransaction {
	body := cell.BeginCell().
		MustStoreUInt(uint64(stonfi.SwapOpCode), 32).
		MustStoreUInt(lt, 64).
		EndCell()
	return &domain.RawTransaction{
		Account: poolAddr,
		LT:      lt,
		Hash:    []byte{byte(lt)},
		InMsg:   &domain.Message{Source: "EQrouter", Destination: poolAddr, Body: body},
	}
}

// chainWithSwaps lays out masters 101 (shard baseline) and 102 (shard block
// holding txs) with the checkpoint at 100.
func (h *harness) chainWithSwaps(txs ...*domain.RawTransaction) {
	h.cp.InitMaster(100)
	h.client.SetTip(102)
	h.client.AddMaster(101, chaintest.Shard(domain.ShardAll, 5))
	shardBlock := chaintest.Shard(domain.ShardAll, 6)
	h.client.AddMaster(102, shardBlock)
	h.client.AddTransactions(shardBlock, txs...)
}

func (h *harness) mustProcess(t *testing.T, want bool) {
	t.Helper()
	processed, err := h.pipeline.processNextBlock(context.Background())
	if err != nil {
		t.Fatalf("processNextBlock failed: %v", err)
	}
	if processed != want {
		t.Fatalf("expected processed=%v, got %v", want, processed)
	}
}

func (h *harness) master(t *testing.T) uint64 {
	t.Helper()
	m, ok := h.cp.Master()
	if !ok {
		t.Fatal("checkpoint not initialized")
	}
	return m
}

func (h *harness) stats(t *testing.T) []*domain.PoolStatsTradingVolume {
	t.Helper()
	stats, err := h.writer.SelectPoolsStatsTradingVolume(context.Background(), domain.ProtocolStonfiV1, 0, math.MaxInt64)
	if err != nil {
		t.Fatalf("select stats: %v", err)
	}
	return stats
}

func TestPipeline_InitializesCheckpointAtTip(t *testing.T) {
	h := newHarness(t)
	h.client.SetTip(500)

	h.mustProcess(t, false)

	if got := h.master(t); got != 500 {
		t.Errorf("expected checkpoint 500, got %d", got)
	}
	if n := h.client.Calls("LookupBlock"); n != 0 {
		t.Errorf("expected no block lookup, got %d", n)
	}
}

func TestPipeline_IdleAtTip(t *testing.T) {
	h := newHarness(t)
	h.cp.InitMaster(100)
	h.client.SetTip(100)

	h.mustProcess(t, false)

	if n := h.client.Calls("LookupBlock"); n != 0 {
		t.Errorf("expected no block lookup, got %d", n)
	}
	if n := h.client.Calls("GetShards"); n != 0 {
		t.Errorf("expected no fetch, got %d", n)
	}
	if got := h.master(t); got != 100 {
		t.Errorf("checkpoint moved to %d", got)
	}
}

func TestPipeline_SwapOnUnseenPool(t *testing.T) {
	h := newHarness(t)
	h.scriptPool()
	h.chainWithSwaps(swapTx(10))

	// 101 only sets the shard baseline.
	h.mustProcess(t, true)
	if got := h.master(t); got != 101 {
		t.Fatalf("expected checkpoint 101, got %d", got)
	}
	if seq, ok := h.cp.Shard(domain.ShardID{Workchain: 0, Shard: domain.ShardAll}); !ok || seq != 5 {
		t.Fatalf("expected shard baseline 5, got %d (%v)", seq, ok)
	}

	h.mustProcess(t, true)
	if got := h.master(t); got != 102 {
		t.Fatalf("expected checkpoint 102, got %d", got)
	}

	pools, err := h.writer.SelectAllLiquidityPools(context.Background())
	if err != nil {
		t.Fatalf("select pools: %v", err)
	}
	if len(pools) != 1 || pools[0].PoolAddress != poolAddr {
		t.Fatalf("expected pool %s, got %+v", poolAddr, pools)
	}
	if !h.pc.Known(domain.ProtocolStonfiV1).Contains(poolAddr) {
		t.Error("pool should be known after commit")
	}

	stats := h.stats(t)
	if len(stats) != 1 {
		t.Fatalf("expected 1 stat row, got %d", len(stats))
	}
	if stats[0].TradingDate != 2024030514 || stats[0].InteractionCount != 1 {
		t.Errorf("unexpected stat row %+v", stats[0])
	}
	if stats[0].UsdVolumeAmount.IntPart() != 100 {
		t.Errorf("expected volume 100, got %s", stats[0].UsdVolumeAmount)
	}

	want := []string{"pool:" + poolAddr, "stat:" + poolAddr}
	if strings.Join(h.writer.calls, ",") != strings.Join(want, ",") {
		t.Errorf("expected calls %v, got %v", want, h.writer.calls)
	}

	// caught up
	h.mustProcess(t, false)
}

func TestPipeline_ActionFailureRetriesCleanly(t *testing.T) {
	h := newHarness(t)
	h.scriptPool()
	h.chainWithSwaps(swapTx(10), swapTx(11))
	h.mustProcess(t, true)

	// second stat insert fails, first one is compensated
	h.writer.failStatAt = 2
	_, err := h.pipeline.processNextBlock(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, errWriteFailed) {
		t.Errorf("expected write error, got %v", err)
	}
	if stage := recovery.Classify(err); stage != domain.FailureTypeApply {
		t.Errorf("expected apply stage, got %s", stage)
	}
	var execErr *deferred.ExecError
	if !errors.As(err, &execErr) {
		t.Errorf("expected *deferred.ExecError, got %T", err)
	}
	h.pipeline.handleError(context.Background(), err)

	if got := h.master(t); got != 101 {
		t.Fatalf("checkpoint moved to %d after failure", got)
	}
	if h.pc.Known(domain.ProtocolStonfiV1).Contains(poolAddr) {
		t.Error("known set should be rolled back")
	}
	if seq, _ := h.cp.Shard(domain.ShardID{Workchain: 0, Shard: domain.ShardAll}); seq != 5 {
		t.Errorf("shard checkpoint moved to %d", seq)
	}
	if n, _ := h.failed.Count(context.Background(), testNetwork); n != 1 {
		t.Errorf("expected 1 pending failed block, got %d", n)
	}
	if st := h.pipeline.GetStatus(); st.LastError == "" || st.PendingBlock == nil || st.PendingBlock.MasterSeqNo != 102 {
		t.Errorf("status should report the failure, got %+v", st)
	}

	h.mustProcess(t, true)

	pools, _ := h.writer.SelectAllLiquidityPools(context.Background())
	if len(pools) != 1 {
		t.Errorf("expected 1 pool after retry, got %d", len(pools))
	}
	stats := h.stats(t)
	if len(stats) != 1 {
		t.Fatalf("expected 1 stat row, got %d", len(stats))
	}
	if stats[0].InteractionCount != 2 || stats[0].UsdVolumeAmount.IntPart() != 200 {
		t.Errorf("expected 2 swaps worth 200, got %d / %s", stats[0].InteractionCount, stats[0].UsdVolumeAmount)
	}
	if n, _ := h.failed.Count(context.Background(), testNetwork); n != 0 {
		t.Errorf("failed block should be resolved, %d pending", n)
	}
	if st := h.pipeline.GetStatus(); st.LastError != "" || st.PendingBlock != nil {
		t.Errorf("status should be clear, got %+v", st)
	}
}

func TestPipeline_TipCacheDuringCatchUp(t *testing.T) {
	h := newHarness(t)
	h.pipeline.cfg.Tips = throttle.NewTipCache(h.client, time.Hour)
	h.chainWithSwaps()

	h.mustProcess(t, true)
	h.mustProcess(t, true)
	if n := h.client.Calls("GetChainTip"); n != 1 {
		t.Errorf("expected tip fetched once while catching up, got %d", n)
	}

	h.mustProcess(t, false)
	if n := h.client.Calls("GetChainTip"); n != 2 {
		t.Errorf("expected fresh tip at checkpoint, got %d calls", n)
	}
	if got := h.master(t); got != 102 {
		t.Errorf("expected checkpoint 102, got %d", got)
	}
}

func TestPipeline_ChainErrorLeavesCheckpoint(t *testing.T) {
	h := newHarness(t)
	h.chainWithSwaps()
	h.client.FailNext("LookupBlock", errors.New("lite server timeout"))

	_, err := h.pipeline.processNextBlock(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if stage := recovery.Classify(err); stage != domain.FailureTypeChain {
		t.Errorf("expected chain stage, got %s", stage)
	}
	if delay := h.pipeline.handleError(context.Background(), err); delay != time.Millisecond {
		t.Errorf("expected backoff delay, got %s", delay)
	}
	if got := h.master(t); got != 100 {
		t.Errorf("checkpoint moved to %d", got)
	}

	all, _ := h.failed.GetAll(context.Background(), testNetwork)
	if len(all) != 1 || all[0].MasterSeqNo != 101 || all[0].FailureType != domain.FailureTypeChain {
		t.Errorf("unexpected failed blocks %+v", all)
	}

	h.mustProcess(t, true)
	if got := h.master(t); got != 101 {
		t.Errorf("expected checkpoint 101, got %d", got)
	}
}

func TestPipeline_StartStop(t *testing.T) {
	h := newHarness(t)
	h.scriptPool()
	h.chainWithSwaps(swapTx(10))

	done := make(chan error, 1)
	go func() { done <- h.pipeline.Start(context.Background()) }()

	deadline := time.After(2 * time.Second)
	for {
		if m, _ := h.cp.Master(); m == 102 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("pipeline did not catch up")
		case <-time.After(time.Millisecond):
		}
	}

	st := h.pipeline.GetStatus()
	if st.ChainTip != 102 || st.Lag != 0 || st.MasterSeqNo == nil || *st.MasterSeqNo != 102 {
		t.Errorf("unexpected status %+v", st)
	}

	if err := h.pipeline.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	// second stop is a no-op
	_ = h.pipeline.Stop()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("start returned %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("pipeline did not stop")
	}
}

func TestPipeline_StartCancelled(t *testing.T) {
	h := newHarness(t)
	h.client.SetTip(1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := h.pipeline.Start(ctx); err != nil {
		t.Fatalf("expected clean exit, got %v", err)
	}
	if h.pipeline.GetStatus().Running {
		t.Error("pipeline should not be running")
	}
}
