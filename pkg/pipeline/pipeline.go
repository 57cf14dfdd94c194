// Package pipeline orchestrates a match request end to end: blacklist
// assembly, cache consult, filter compilation, retrieval, reranking,
// explanation, and response assembly.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"jobmatch/pkg/blacklist"
	"jobmatch/pkg/cache"
	"jobmatch/pkg/config"
	"jobmatch/pkg/explain"
	"jobmatch/pkg/filter"
	"jobmatch/pkg/model"
	"jobmatch/pkg/retriever"
	"jobmatch/pkg/scorer"
)

// Retriever fetches candidates for a compiled request.
type Retriever interface {
	Retrieve(ctx context.Context, embedding []float32, f *filter.Compiled, limit, offset int) (*retriever.Result, error)
}

// BlacklistStore loads the applied and cooled job-ID sets.
type BlacklistStore interface {
	Fetch(ctx context.Context, userID string) (applied, cooled []string, err error)
}

// Reranker reorders matches by cross-encoder relevance. Errors are soft.
type Reranker interface {
	Rerank(ctx context.Context, query string, matches []model.JobMatch) ([]model.JobMatch, error)
}

// Pipeline wires the stages together. The reranker may be nil, which
// disables reranking outright.
type Pipeline struct {
	cfg        *config.Config
	log        *zap.Logger
	retriever  Retriever
	blacklists BlacklistStore
	reranker   Reranker
	explainer  *explain.Explainer
	cache      *cache.Cache
	validate   *validator.Validate
}

// New builds a Pipeline.
func New(cfg *config.Config, log *zap.Logger, r Retriever, b BlacklistStore, rr Reranker, ex *explain.Explainer, c *cache.Cache) *Pipeline {
	return &Pipeline{
		cfg:        cfg,
		log:        log,
		retriever:  r,
		blacklists: b,
		reranker:   rr,
		explainer:  ex,
		cache:      c,
		validate:   validator.New(),
	}
}

// Match runs the full pipeline for one request.
func (p *Pipeline) Match(ctx context.Context, req *model.MatchRequest) (*model.MatchResponse, error) {
	start := time.Now()

	if req.Limit == 0 {
		req.Limit = p.cfg.Pipeline.TopKFinal
	}
	if err := p.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrValidation, err)
	}

	// A resume without a usable embedding cannot be ranked. This is an
	// empty result, not an error: the caller's request was well-formed.
	if len(req.Resume.Embedding) != p.cfg.Embedding.Dimension {
		p.log.Warn("resume embedding unusable, returning empty result",
			zap.String("resume_id", req.Resume.ID),
			zap.Int("dimension", len(req.Resume.Embedding)),
			zap.Int("want", p.cfg.Embedding.Dimension))
		return &model.MatchResponse{Jobs: []model.JobMatch{}}, nil
	}

	applied, cooled, err := p.blacklists.Fetch(ctx, req.Resume.UserID)
	if err != nil {
		return nil, err
	}
	excluded := blacklist.Union(applied, cooled)

	key := cache.Fingerprint(req, applied, cooled)
	if req.UseCache {
		if resp := p.cache.Get(key); resp != nil {
			p.log.Info("match served from cache",
				zap.String("resume_id", req.Resume.ID),
				zap.String("fingerprint", key[:12]),
				zap.Int64("duration_ms", time.Since(start).Milliseconds()))
			return resp, nil
		}
	}

	compiled, err := filter.Compile(filter.Filters{
		Location:   req.Location,
		Keywords:   req.Keywords,
		Experience: req.Experience,
		Blacklist:  excluded,
	})
	if err != nil {
		return nil, err
	}

	rerankWanted := req.EnableRerank && p.cfg.Pipeline.EnableRerank && p.reranker != nil
	fetchLimit := req.Limit
	if rerankWanted {
		fetchLimit = p.cfg.Pipeline.TopKRetrieve
	}

	retrieveStart := time.Now()
	result, err := p.retriever.Retrieve(ctx, req.Resume.Embedding, compiled, fetchLimit, req.Offset)
	if err != nil {
		return nil, err
	}
	retrieveDur := time.Since(retrieveStart)

	matches := scorer.Project(result.Rows, p.log)

	reranked := false
	if rerankWanted && len(matches) > p.cfg.Pipeline.TopKFinal {
		if retrieveDur > p.cfg.Pipeline.RetrievalBudget.Std() {
			p.log.Warn("retrieval exceeded budget, skipping rerank",
				zap.Duration("retrieval", retrieveDur),
				zap.Duration("budget", p.cfg.Pipeline.RetrievalBudget.Std()))
		} else if blended, err := p.reranker.Rerank(ctx, rerankQuery(&req.Resume), matches); err != nil {
			p.log.Warn("rerank failed, keeping retrieval order", zap.Error(err))
		} else {
			matches = blended
			reranked = true
		}
		if len(matches) > p.cfg.Pipeline.TopKFinal {
			matches = matches[:p.cfg.Pipeline.TopKFinal]
		}
	}
	if len(matches) > req.Limit {
		matches = matches[:req.Limit]
	}

	explainWanted := req.EnableExplain && p.cfg.Pipeline.EnableExplain && p.explainer != nil
	if explainWanted {
		for i := range matches {
			matches[i].Explanation = p.explainer.Explain(&req.Resume, &matches[i])
		}
	}

	resp := &model.MatchResponse{Jobs: matches}
	if req.IncludeTotalCount {
		total := result.Total
		resp.TotalCount = &total
	}

	if req.SaveToCache {
		p.cache.Set(key, resp)
	}

	p.log.Info("match completed",
		zap.String("resume_id", req.Resume.ID),
		zap.Int("pool", result.Total),
		zap.Int("returned", len(matches)),
		zap.Bool("fell_back", result.FellBack),
		zap.Bool("reranked", reranked),
		zap.Int64("retrieve_ms", retrieveDur.Milliseconds()),
		zap.Int64("duration_ms", time.Since(start).Milliseconds()))
	return resp, nil
}

// rerankQuery builds the cross-encoder query text from the resume.
func rerankQuery(r *model.Resume) string {
	if r.Headline != "" {
		if len(r.Skills) > 0 {
			return r.Headline + ". Skills: " + strings.Join(r.Skills, ", ")
		}
		return r.Headline
	}
	return strings.Join(r.Skills, ", ")
}
