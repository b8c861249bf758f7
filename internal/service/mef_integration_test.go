//go:build integration

package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/PascalRepond/rero-mef/internal/cache"
	"github.com/PascalRepond/rero-mef/internal/model"
	"github.com/PascalRepond/rero-mef/internal/repository"
	"github.com/PascalRepond/rero-mef/internal/testutil"
)

func TestIntegrationMEFService_SaveAgentWithViaf(t *testing.T) {
	ctx, repo, svc := newMEFTestEnv(t)

	cluster := testutil.NewTestViafCluster(t, "100000002", "118540238", "069774331", "")
	if err := repo.Records(model.EntityViaf).Create(ctx, cluster); err != nil {
		t.Fatalf("create viaf: %v", err)
	}

	agent := testutil.NewTestAgent(t, "118540238")
	action, mefAction, err := svc.SaveAgent(ctx, model.EntityGnd, agent)
	if err != nil {
		t.Fatalf("SaveAgent failed: %v", err)
	}
	if action != model.ActionCreate || mefAction != model.ActionCreate {
		t.Errorf("actions = %q/%q, want create/create", action, mefAction)
	}

	mefRec, err := repo.FindMEFByAgent(ctx, model.EntityGnd, "118540238")
	if err != nil {
		t.Fatalf("FindMEFByAgent failed: %v", err)
	}
	mef, err := model.MEFFromRecord(mefRec)
	if err != nil {
		t.Fatalf("parse mef: %v", err)
	}
	if mef.ViafPid != "100000002" {
		t.Errorf("viaf_pid = %q", mef.ViafPid)
	}
	if mef.Gnd == nil || model.PidFromRef(mef.Gnd) != "118540238" {
		t.Errorf("gnd ref = %v", mef.Gnd)
	}

	// The second member of the cluster must land on the same MEF record.
	idref := testutil.NewTestAgent(t, "069774331")
	if _, _, err := svc.SaveAgent(ctx, model.EntityIdref, idref); err != nil {
		t.Fatalf("SaveAgent (idref) failed: %v", err)
	}
	mefRec2, err := repo.FindMEFByAgent(ctx, model.EntityIdref, "069774331")
	if err != nil {
		t.Fatalf("FindMEFByAgent (idref) failed: %v", err)
	}
	if mefRec2.Pid() != mefRec.Pid() {
		t.Errorf("idref landed on mef %q, want %q", mefRec2.Pid(), mefRec.Pid())
	}

	// Saving the identical agent again changes nothing.
	again := testutil.NewTestAgent(t, "118540238")
	action, mefAction, err = svc.SaveAgent(ctx, model.EntityGnd, again)
	if err != nil {
		t.Fatalf("SaveAgent (again) failed: %v", err)
	}
	if action != model.ActionUpToDate || mefAction != model.ActionUpToDate {
		t.Errorf("repeat actions = %q/%q, want uptodate/uptodate", action, mefAction)
	}
}

func TestIntegrationMEFService_SaveAgentWithoutViaf(t *testing.T) {
	ctx, repo, svc := newMEFTestEnv(t)

	agent := testutil.NewTestAgent(t, "A012345678")
	if _, _, err := svc.SaveAgent(ctx, model.EntityRero, agent); err != nil {
		t.Fatalf("SaveAgent failed: %v", err)
	}

	mefRec, err := repo.FindMEFByAgent(ctx, model.EntityRero, "A012345678")
	if err != nil {
		t.Fatalf("FindMEFByAgent failed: %v", err)
	}
	mef, _ := model.MEFFromRecord(mefRec)
	if mef.ViafPid != "" {
		t.Errorf("viaf_pid = %q, want empty", mef.ViafPid)
	}
}

func TestIntegrationMEFService_DeletedAgent(t *testing.T) {
	ctx, repo, svc := newMEFTestEnv(t)

	agent := testutil.NewTestAgent(t, "gone1")
	agent["deleted"] = "2024-05-01T00:00:00Z"
	if _, _, err := svc.SaveAgent(ctx, model.EntityGnd, agent); err != nil {
		t.Fatalf("SaveAgent failed: %v", err)
	}

	mefRec, err := repo.FindMEFByAgent(ctx, model.EntityGnd, "gone1")
	if err != nil {
		t.Fatalf("FindMEFByAgent failed: %v", err)
	}
	if !mefRec.Deleted() {
		t.Error("mef record must carry the deletion")
	}
}

func TestIntegrationMEFService_Reconcile(t *testing.T) {
	ctx, repo, svc := newMEFTestEnv(t)

	for _, pid := range []string{"g1", "g2"} {
		if err := repo.Records(model.EntityGnd).Create(ctx, testutil.NewTestAgent(t, pid)); err != nil {
			t.Fatalf("create gnd %s: %v", pid, err)
		}
	}
	if err := repo.Records(model.EntityIdref).Create(ctx, testutil.NewTestAgent(t, "i1")); err != nil {
		t.Fatalf("create idref: %v", err)
	}

	// Initial cluster: gnd g1 + idref i1.
	first := testutil.NewTestViafCluster(t, "500", "g1", "i1", "")
	if _, err := svc.Reconcile(ctx, first); err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	mefRec, err := repo.FindMEFByViaf(ctx, "500")
	if err != nil {
		t.Fatalf("FindMEFByViaf failed: %v", err)
	}
	mef, _ := model.MEFFromRecord(mefRec)
	if len(mef.Sources()) != 2 {
		t.Fatalf("sources = %v", mef.Sources())
	}

	// VIAF moves the cluster to gnd g2, keeps idref i1 and claims a
	// rero pid that was never loaded.
	second := testutil.NewTestViafCluster(t, "500", "g2", "i1", "rUnknown")
	actions, err := svc.Reconcile(ctx, second)
	if err != nil {
		t.Fatalf("Reconcile (2) failed: %v", err)
	}
	if actions["idref:i1"] != model.ActionUpToDate {
		t.Errorf("idref action = %q", actions["idref:i1"])
	}
	if actions["gnd:g1"] != model.ActionDiscard {
		t.Errorf("g1 action = %q", actions["gnd:g1"])
	}
	if actions["rero:rUnknown"] != model.ActionDiscard {
		t.Errorf("unknown rero action = %q", actions["rero:rUnknown"])
	}

	mefRec, err = repo.FindMEFByViaf(ctx, "500")
	if err != nil {
		t.Fatalf("FindMEFByViaf (2) failed: %v", err)
	}
	mef, _ = model.MEFFromRecord(mefRec)
	if model.PidFromRef(mef.Gnd) != "g2" {
		t.Errorf("gnd ref = %v", mef.Gnd)
	}

	// The dropped agent g1 has a MEF record of its own now.
	ownRec, err := repo.FindMEFByAgent(ctx, model.EntityGnd, "g1")
	if err != nil {
		t.Fatalf("FindMEFByAgent (g1) failed: %v", err)
	}
	if ownRec.Pid() == mefRec.Pid() {
		t.Error("g1 must not share the cluster's mef record")
	}
}

func TestIntegrationMEFService_DeleteViaf(t *testing.T) {
	ctx, repo, svc := newMEFTestEnv(t)

	for _, e := range []model.Entity{model.EntityGnd, model.EntityIdref} {
		if err := repo.Records(e).Create(ctx, testutil.NewTestAgent(t, "m1")); err != nil {
			t.Fatalf("create %s: %v", e, err)
		}
	}
	cluster := testutil.NewTestViafCluster(t, "700", "m1", "m1", "")
	if _, err := svc.Reconcile(ctx, cluster); err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}

	if err := svc.DeleteViaf(ctx, "700"); err != nil {
		t.Fatalf("DeleteViaf failed: %v", err)
	}

	if _, err := repo.Records(model.EntityViaf).Get(ctx, "700"); !errors.Is(err, repository.ErrRecordNotFound) {
		t.Errorf("viaf record must be gone, got: %v", err)
	}
	if _, err := repo.FindMEFByViaf(ctx, "700"); !errors.Is(err, repository.ErrRecordNotFound) {
		t.Errorf("no mef record may reference viaf 700 anymore, got: %v", err)
	}

	// Both agents keep MEF records, now separate ones.
	gndMEF, err := repo.FindMEFByAgent(ctx, model.EntityGnd, "m1")
	if err != nil {
		t.Fatalf("FindMEFByAgent (gnd) failed: %v", err)
	}
	idrefMEF, err := repo.FindMEFByAgent(ctx, model.EntityIdref, "m1")
	if err != nil {
		t.Fatalf("FindMEFByAgent (idref) failed: %v", err)
	}
	if gndMEF.Pid() == idrefMEF.Pid() {
		t.Error("agents must not share a mef record after viaf deletion")
	}
}

func TestIntegrationMEFService_GetLatest(t *testing.T) {
	ctx, repo, svc := newMEFTestEnv(t)

	// old -> new via the successor's redirect_from relation. The old
	// pid never had a record of its own.
	newAgent := testutil.NewTestAgent(t, "new1")
	newAgent.SetRelation(model.RelationPid{Value: "old1", Type: "redirect_from"})
	if _, _, err := svc.SaveAgent(ctx, model.EntityIdref, newAgent); err != nil {
		t.Fatalf("SaveAgent failed: %v", err)
	}

	latest, err := svc.GetLatest(ctx, model.EntityIdref, "old1")
	if err != nil {
		t.Fatalf("GetLatest failed: %v", err)
	}
	mef, _ := model.MEFFromRecord(latest)
	if model.PidFromRef(mef.Idref) != "new1" {
		t.Errorf("latest mef references %q, want new1", model.PidFromRef(mef.Idref))
	}

	// redirect_to on the queried record itself.
	redirecting := testutil.NewTestAgent(t, "merged1")
	redirecting.SetRelation(model.RelationPid{Value: "new1", Type: "redirect_to"})
	if err := repo.Records(model.EntityIdref).Create(ctx, redirecting); err != nil {
		t.Fatalf("create redirecting agent: %v", err)
	}
	latest, err = svc.GetLatest(ctx, model.EntityIdref, "merged1")
	if err != nil {
		t.Fatalf("GetLatest (redirect_to) failed: %v", err)
	}
	mef, _ = model.MEFFromRecord(latest)
	if model.PidFromRef(mef.Idref) != "new1" {
		t.Errorf("latest mef references %q, want new1", model.PidFromRef(mef.Idref))
	}

	if _, err := svc.GetLatest(ctx, model.EntityIdref, "unknown"); !errors.Is(err, ErrRecordNotFound) {
		t.Errorf("Expected ErrRecordNotFound, got: %v", err)
	}
}

func TestIntegrationMEFService_SaveAgentInvalidatesCache(t *testing.T) {
	ctx, repo, _ := newMEFTestEnv(t)

	redisURL := testutil.RequireEnv(t, "REDIS_URL")
	recordCache, err := cache.New(ctx, redisURL)
	if err != nil {
		t.Fatalf("connect redis: %v", err)
	}
	t.Cleanup(func() { _ = recordCache.Close() })
	if err := testutil.FlushRedis(ctx, recordCache.Client()); err != nil {
		t.Fatalf("flush redis: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewMEFService(repo, nil, recordCache, nil, nil, logger, "https://mef.test.rero.ch")

	agent := testutil.NewTestAgent(t, "c1")
	if _, _, err := svc.SaveAgent(ctx, model.EntityGnd, agent); err != nil {
		t.Fatalf("SaveAgent failed: %v", err)
	}

	// A read puts the stored document in the cache.
	stored, err := repo.Records(model.EntityGnd).Get(ctx, "c1")
	if err != nil {
		t.Fatalf("get agent: %v", err)
	}
	if err := recordCache.SetRecord(ctx, model.EntityGnd, "c1", stored); err != nil {
		t.Fatalf("cache agent: %v", err)
	}

	// Saving a changed document must drop the cached copy.
	changed := testutil.NewTestAgent(t, "c1")
	changed["preferred_name"] = "Agent, Renamed"
	if _, _, err := svc.SaveAgent(ctx, model.EntityGnd, changed); err != nil {
		t.Fatalf("SaveAgent (changed) failed: %v", err)
	}
	if _, err := recordCache.GetRecord(ctx, model.EntityGnd, "c1"); !errors.Is(err, cache.ErrCacheMiss) {
		t.Errorf("cached record must be gone, got: %v", err)
	}

	// An unchanged save leaves the cache alone.
	if err := recordCache.SetRecord(ctx, model.EntityGnd, "c1", stored); err != nil {
		t.Fatalf("cache agent again: %v", err)
	}
	again := testutil.NewTestAgent(t, "c1")
	again["preferred_name"] = "Agent, Renamed"
	if _, _, err := svc.SaveAgent(ctx, model.EntityGnd, again); err != nil {
		t.Fatalf("SaveAgent (again) failed: %v", err)
	}
	if _, err := recordCache.GetRecord(ctx, model.EntityGnd, "c1"); err != nil {
		t.Errorf("unchanged save must keep the cache, got: %v", err)
	}
}

// ============================================================================
// Test Environment Setup
// ============================================================================

func newMEFTestEnv(t *testing.T) (context.Context, *repository.Repository, *MEFService) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration tests in short mode")
	}

	ctx := context.Background()
	dbURL := testutil.RequireEnv(t, "DATABASE_URL")

	repo, err := repository.New(ctx, dbURL)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	t.Cleanup(repo.Close)

	unlock, err := testutil.AcquireDBLock(ctx, repo.Pool())
	if err != nil {
		t.Fatalf("acquire db lock: %v", err)
	}
	t.Cleanup(func() {
		_ = unlock()
	})

	if err := testutil.ResetSchema(ctx, repo.Pool()); err != nil {
		t.Fatalf("reset schema: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewMEFService(repo, nil, nil, nil, nil, logger, "https://mef.test.rero.ch")
	return ctx, repo, svc
}
