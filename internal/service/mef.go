package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/PascalRepond/rero-mef/internal/cache"
	"github.com/PascalRepond/rero-mef/internal/metrics"
	"github.com/PascalRepond/rero-mef/internal/model"
	"github.com/PascalRepond/rero-mef/internal/repository"
	"github.com/PascalRepond/rero-mef/internal/viaf"
)

// MEFService maintains the merged MEF records over the agent and VIAF
// stores. All aggregation rules live here: agents never write MEF
// records directly.
type MEFService struct {
	repo    *repository.Repository
	viaf    *viaf.Client
	cache   *cache.Cache
	queue   IndexQueue
	metrics metrics.Recorder
	logger  *slog.Logger
	baseURL string
}

// NewMEFService creates a new MEFService. viafClient may be nil when
// online lookups are disabled, recordCache when the read cache is.
func NewMEFService(repo *repository.Repository, viafClient *viaf.Client, recordCache *cache.Cache, queue IndexQueue, recorder metrics.Recorder, logger *slog.Logger, baseURL string) *MEFService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	if queue == nil {
		queue = NewNoopQueue()
	}
	return &MEFService{
		repo:    repo,
		viaf:    viafClient,
		cache:   recordCache,
		queue:   queue,
		metrics: recorder,
		logger:  logger,
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}
}

// SaveAgent stores a transformed agent document and keeps the MEF
// aggregation in step. Returns the agent action and the MEF action.
func (s *MEFService) SaveAgent(ctx context.Context, e model.Entity, doc model.Record) (model.Action, model.Action, error) {
	if !e.IsAgent() {
		return model.ActionError, model.ActionError,
			fmt.Errorf("%w: %q is not an agent", model.ErrUnknownEntity, e)
	}

	rec, action, err := s.repo.Records(e).CreateOrUpdate(ctx, doc)
	if err != nil {
		return model.ActionError, model.ActionError, err
	}
	s.metrics.IncRecordSaved(string(e), string(action))
	s.enqueueIndex(ctx, e, rec.Pid())

	mefAction := model.ActionUpToDate
	if action != model.ActionUpToDate {
		s.invalidate(ctx, e, rec.Pid())
		_, mefAction, err = s.CreateOrUpdateFor(ctx, e, rec)
		if err != nil {
			return action, model.ActionError, err
		}
	}
	return action, mefAction, nil
}

// CreateOrUpdateFor finds or creates the MEF record referencing an
// agent and brings its viaf_pid and $ref in step with the stores.
func (s *MEFService) CreateOrUpdateFor(ctx context.Context, e model.Entity, agent model.Record) (*model.MEFRecord, model.Action, error) {
	pid := agent.Pid()
	if pid == "" {
		return nil, model.ActionError, repository.ErrRecordNoPid
	}

	viafRec, err := s.findViaf(ctx, e, pid)
	if err != nil {
		return nil, model.ActionError, err
	}

	mef, err := s.findMEF(ctx, e, pid, viafRec)
	if err != nil {
		return nil, model.ActionError, err
	}

	if mef == nil {
		mef, err = s.newMEF(ctx)
		if err != nil {
			return nil, model.ActionError, err
		}
	}
	if viafRec != nil {
		mef.ViafPid = viafRec.Pid()
	}
	mef.SetSourceRef(e, &model.Ref{Ref: model.RefURL(s.baseURL, e, pid)})
	if agent.Deleted() {
		deleted, _ := agent["deleted"].(string)
		mef.Deleted = deleted
	}

	action, err := s.saveMEF(ctx, mef)
	if err != nil {
		return nil, model.ActionError, err
	}
	return mef, action, nil
}

// Reconcile brings the MEF aggregation in step with a VIAF cluster:
// unchanged members are kept, members the cluster dropped get MEF
// records of their own, new members move their reference under this
// cluster's MEF record.
func (s *MEFService) Reconcile(ctx context.Context, cluster model.Record) (map[string]model.Action, error) {
	viafPid := cluster.Pid()
	if viafPid == "" {
		return nil, repository.ErrRecordNoPid
	}
	actions := map[string]model.Action{}

	if _, action, err := s.repo.Records(model.EntityViaf).CreateOrUpdate(ctx, cluster); err != nil {
		return nil, err
	} else if action != model.ActionUpToDate {
		s.invalidate(ctx, model.EntityViaf, viafPid)
		s.enqueueIndex(ctx, model.EntityViaf, viafPid)
	}

	mef, err := s.mefByViaf(ctx, viafPid)
	if err != nil {
		return nil, err
	}

	clusterPids := map[model.Entity]string{}
	for _, e := range model.AgentEntities {
		if p := viaf.AgentPid(cluster, e); p != "" {
			clusterPids[e] = p
		}
	}
	mefPids := map[model.Entity]string{}
	if mef != nil {
		for _, e := range mef.Sources() {
			mefPids[e] = model.PidFromRef(mef.SourceRef(e))
		}
	}

	// Members present on both sides with the same pid are settled.
	for _, e := range model.AgentEntities {
		if clusterPids[e] != "" && clusterPids[e] == mefPids[e] {
			actions[refKey(e, clusterPids[e])] = model.ActionUpToDate
			delete(clusterPids, e)
			delete(mefPids, e)
		}
	}

	// Members the cluster no longer claims leave this MEF record and
	// get their own afterwards.
	var dropped []droppedMember
	for e, pid := range mefPids {
		mef.SetSourceRef(e, nil)
		dropped = append(dropped, droppedMember{entity: e, pid: pid})
		actions[refKey(e, pid)] = model.ActionDiscard
	}
	if mef != nil && len(dropped) > 0 {
		if _, err := s.saveMEF(ctx, mef); err != nil {
			return nil, err
		}
	}

	// New members: detach from whatever MEF record held them before,
	// then attach here. Members without a loaded record are discarded.
	for e, pid := range clusterPids {
		known, err := s.repo.Records(e).Exists(ctx, pid)
		if err != nil {
			return nil, err
		}
		if !known {
			actions[refKey(e, pid)] = model.ActionDiscard
			continue
		}
		if err := s.detachFromOtherMEF(ctx, e, pid, viafPid); err != nil {
			return nil, err
		}
		if mef == nil {
			mef, err = s.newMEF(ctx)
			if err != nil {
				return nil, err
			}
			mef.ViafPid = viafPid
		}
		mef.SetSourceRef(e, &model.Ref{Ref: model.RefURL(s.baseURL, e, pid)})
		action, err := s.saveMEF(ctx, mef)
		if err != nil {
			return nil, err
		}
		actions[refKey(e, pid)] = action
	}

	// Dropped members get fresh MEF records.
	for _, d := range dropped {
		agent, err := s.repo.Records(d.entity).Get(ctx, d.pid)
		if err != nil {
			if errors.Is(err, repository.ErrRecordNotFound) {
				continue
			}
			return nil, err
		}
		if _, _, err := s.CreateOrUpdateFor(ctx, d.entity, agent); err != nil {
			return nil, err
		}
	}

	return actions, nil
}

type droppedMember struct {
	entity model.Entity
	pid    string
}

// DeleteViaf removes a VIAF cluster. The MEF record built from it
// loses its viaf_pid and keeps only its first member; the remaining
// members get MEF records of their own.
func (s *MEFService) DeleteViaf(ctx context.Context, viafPid string) error {
	if err := s.repo.Records(model.EntityViaf).Purge(ctx, viafPid); err != nil {
		if !errors.Is(err, repository.ErrRecordNotFound) {
			return err
		}
	} else {
		s.invalidate(ctx, model.EntityViaf, viafPid)
		s.enqueueDelete(ctx, model.EntityViaf, viafPid)
	}

	mef, err := s.mefByViaf(ctx, viafPid)
	if err != nil || mef == nil {
		return err
	}

	mef.ViafPid = ""
	var rest []droppedMember
	if sources := mef.Sources(); len(sources) > 1 {
		for _, e := range sources[1:] {
			rest = append(rest, droppedMember{
				entity: e,
				pid:    model.PidFromRef(mef.SourceRef(e)),
			})
			mef.SetSourceRef(e, nil)
		}
	}
	if _, err := s.saveMEF(ctx, mef); err != nil {
		return err
	}

	for _, d := range rest {
		agent, err := s.repo.Records(d.entity).Get(ctx, d.pid)
		if err != nil {
			if errors.Is(err, repository.ErrRecordNotFound) {
				continue
			}
			return err
		}
		if _, _, err := s.CreateOrUpdateFor(ctx, d.entity, agent); err != nil {
			return err
		}
	}
	return nil
}

// GetLatest resolves the current MEF document for a possibly outdated
// source pid, following redirect_to and redirect_from relations.
func (s *MEFService) GetLatest(ctx context.Context, e model.Entity, pid string) (model.Record, error) {
	if !e.IsAgent() {
		return nil, fmt.Errorf("%w: %q is not an agent", model.ErrUnknownEntity, e)
	}
	seen := map[string]bool{}
	for {
		if seen[pid] {
			return nil, ErrRedirectLoop
		}
		seen[pid] = true

		agent, err := s.repo.Records(e).Get(ctx, pid)
		if err != nil && !errors.Is(err, repository.ErrRecordNotFound) {
			return nil, err
		}

		if agent != nil {
			if rel := agent.Relation(); rel != nil && rel.Type == "redirect_to" {
				pid = rel.Value
				continue
			}
			mefRec, err := s.repo.FindMEFByAgent(ctx, e, pid)
			if err == nil {
				return mefRec, nil
			}
			if !errors.Is(err, repository.ErrRecordNotFound) {
				return nil, err
			}
		}

		// The pid may have been superseded: look for the record whose
		// relation_pid redirects from it.
		successor, err := s.repo.FindAgentByRelation(ctx, e, pid)
		if err != nil {
			if errors.Is(err, repository.ErrRecordNotFound) {
				return nil, ErrRecordNotFound
			}
			return nil, err
		}
		pid = successor.Pid()
	}
}

// detachFromOtherMEF removes an agent's reference from any MEF record
// built for a different VIAF cluster.
func (s *MEFService) detachFromOtherMEF(ctx context.Context, e model.Entity, pid, viafPid string) error {
	rec, err := s.repo.FindMEFByAgent(ctx, e, pid)
	if err != nil {
		if errors.Is(err, repository.ErrRecordNotFound) {
			return nil
		}
		return err
	}
	old, err := model.MEFFromRecord(rec)
	if err != nil {
		return err
	}
	if old.ViafPid == viafPid {
		return nil
	}
	old.SetSourceRef(e, nil)
	_, err = s.saveMEF(ctx, old)
	return err
}

// findViaf looks the agent up in the local VIAF store, falling back
// to the online service when configured.
func (s *MEFService) findViaf(ctx context.Context, e model.Entity, pid string) (model.Record, error) {
	rec, err := s.repo.FindViafByAgent(ctx, e, pid)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, repository.ErrRecordNotFound) {
		return nil, err
	}
	if s.viaf == nil {
		return nil, nil
	}
	rec, err = s.viaf.GetByAgent(ctx, e, pid)
	if err != nil || rec == nil {
		return nil, err
	}
	if _, _, err := s.repo.Records(model.EntityViaf).CreateOrUpdate(ctx, rec); err != nil {
		return nil, err
	}
	s.invalidate(ctx, model.EntityViaf, rec.Pid())
	s.enqueueIndex(ctx, model.EntityViaf, rec.Pid())
	return rec, nil
}

func (s *MEFService) findMEF(ctx context.Context, e model.Entity, pid string, viafRec model.Record) (*model.MEFRecord, error) {
	rec, err := s.repo.FindMEFByAgent(ctx, e, pid)
	if err == nil {
		return model.MEFFromRecord(rec)
	}
	if !errors.Is(err, repository.ErrRecordNotFound) {
		return nil, err
	}
	if viafRec == nil {
		return nil, nil
	}
	return s.mefByViaf(ctx, viafRec.Pid())
}

func (s *MEFService) mefByViaf(ctx context.Context, viafPid string) (*model.MEFRecord, error) {
	rec, err := s.repo.FindMEFByViaf(ctx, viafPid)
	if err != nil {
		if errors.Is(err, repository.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.MEFFromRecord(rec)
}

func (s *MEFService) newMEF(ctx context.Context) (*model.MEFRecord, error) {
	pid, err := s.repo.NextMEFPid(ctx)
	if err != nil {
		return nil, err
	}
	return &model.MEFRecord{
		Schema: model.MEFSchemaURL(s.baseURL),
		Pid:    pid,
	}, nil
}

// saveMEF persists a MEF record and enqueues it for indexing.
func (s *MEFService) saveMEF(ctx context.Context, mef *model.MEFRecord) (model.Action, error) {
	mef.MD5 = ""
	rec, err := mef.ToRecord()
	if err != nil {
		return model.ActionError, err
	}
	_, action, err := s.repo.Records(model.EntityMef).CreateOrUpdate(ctx, rec)
	if err != nil {
		return model.ActionError, err
	}
	if action != model.ActionUpToDate {
		s.metrics.IncRecordSaved(string(model.EntityMef), string(action))
		s.invalidate(ctx, model.EntityMef, mef.Pid)
		s.enqueueIndex(ctx, model.EntityMef, mef.Pid)
	}
	return action, nil
}

// invalidate drops the cached copy of a record after a write, so the
// read API never serves a stale document for the cache TTL.
func (s *MEFService) invalidate(ctx context.Context, e model.Entity, pid string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteRecord(ctx, e, pid); err != nil {
		s.logger.Warn("failed to invalidate cached record",
			slog.String("entity", string(e)),
			slog.String("pid", pid),
			slog.String("error", err.Error()),
		)
	}
}

func (s *MEFService) enqueueIndex(ctx context.Context, e model.Entity, pid string) {
	if err := s.queue.EnqueueIndex(ctx, e, pid); err != nil {
		s.metrics.IncIndexPublished("dropped")
		s.logger.Warn("failed to enqueue record for indexing",
			slog.String("entity", string(e)),
			slog.String("pid", pid),
			slog.String("error", err.Error()),
		)
		return
	}
	s.metrics.IncIndexPublished("success")
}

func (s *MEFService) enqueueDelete(ctx context.Context, e model.Entity, pid string) {
	if err := s.queue.EnqueueDelete(ctx, e, pid); err != nil {
		s.metrics.IncIndexPublished("dropped")
		s.logger.Warn("failed to enqueue record deletion for indexing",
			slog.String("entity", string(e)),
			slog.String("pid", pid),
			slog.String("error", err.Error()),
		)
		return
	}
	s.metrics.IncIndexPublished("success")
}

func refKey(e model.Entity, pid string) string {
	return fmt.Sprintf("%s:%s", e, pid)
}
