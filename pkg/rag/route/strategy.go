package route

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"campus-rag-be/internal/config"
	"campus-rag-be/internal/constant"
	"campus-rag-be/internal/repository/contract"
	"campus-rag-be/pkg/rag/retrieval"
	"campus-rag-be/pkg/store"
)

// ErrPolicyViolation marks a request whose mandatory identity or
// department filter could not be bound from the authenticated context.
// Such requests are rejected before any index call.
var ErrPolicyViolation = errors.New("policy violation")

// filterBuilder derives an attribute filter from the authenticated user
// context. An error means the mandatory identity is absent.
type filterBuilder func(user store.UserContext) (map[string]string, error)

// searchGroup is one recall fan-out: a set of collections queried with one
// shared filter and per-collection top-k.
type searchGroup struct {
	collections []string
	topK        int
	filter      filterBuilder
}

// Strategy is the tagged routing variant for one access tier: which
// collections to recall from, how to scope them, how far to narrow, and
// which prompt governs synthesis.
type Strategy struct {
	Tier           string
	FinalK         int
	PromptTemplate string
	// FAQProbe enables the canonical-answer short circuit before retrieval.
	FAQProbe bool

	groups []searchGroup
}

// Retrieve binds filters from the user context, fans the recall searches
// out, and fuses the flattened candidates down to FinalK.
func (s *Strategy) Retrieve(
	ctx context.Context,
	engine *retrieval.Engine,
	query string,
	user store.UserContext,
) ([]store.Document, error) {

	var candidates []store.Document
	for _, group := range s.groups {
		var filter map[string]string
		if group.filter != nil {
			bound, err := group.filter(user)
			if err != nil {
				return nil, err
			}
			filter = bound
		}
		candidates = append(candidates, engine.SearchMany(ctx, query, group.collections, group.topK, filter)...)
	}

	// Each group comes back sorted internally; the merged set must be
	// re-ranked by raw similarity so the final list never depends on group
	// order (fusion without keywords truncates in place).
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})
	return engine.Fuse(query, candidates, s.FinalK), nil
}

// NewRegistry builds the per-tier strategy table.
func NewRegistry(cfg config.RagConfig) map[string]*Strategy {
	return map[string]*Strategy{
		constant.TierPublic: {
			Tier:           constant.TierPublic,
			FinalK:         4,
			PromptTemplate: constant.PromptTemplatePublic,
			FAQProbe:       true,
			groups: []searchGroup{
				{collections: []string{cfg.CollectionStandard}, topK: 15},
			},
		},
		constant.TierAcademic: {
			Tier:           constant.TierAcademic,
			FinalK:         6,
			PromptTemplate: constant.PromptTemplateAcademic,
			groups: []searchGroup{
				{collections: []string{cfg.CollectionStandard, cfg.CollectionResearch}, topK: 20},
			},
		},
		constant.TierInternal: {
			Tier:           constant.TierInternal,
			FinalK:         5,
			PromptTemplate: constant.PromptTemplateInternal,
			groups: []searchGroup{
				{collections: []string{cfg.CollectionStandard, cfg.CollectionResearch}, topK: 10},
				{collections: []string{cfg.CollectionInternal}, topK: 10, filter: deptFilter},
			},
		},
		constant.TierPersonal: {
			Tier:           constant.TierPersonal,
			FinalK:         5,
			PromptTemplate: constant.PromptTemplatePersonal,
			groups: []searchGroup{
				{collections: []string{cfg.CollectionPersonal}, topK: 10, filter: ownerFilter},
			},
		},
	}
}

// deptFilter scopes internal notices to the caller's department. Users
// without a department see only explicitly unassigned notices.
func deptFilter(user store.UserContext) (map[string]string, error) {
	dept := user.DeptID
	if dept == "" {
		dept = "unknown"
	}
	return map[string]string{contract.FilterDeptId: dept}, nil
}

// ownerFilter scopes personal records to the caller. A missing user id is
// a hard error, never a fallback to unfiltered search.
func ownerFilter(user store.UserContext) (map[string]string, error) {
	if user.UserID == "" {
		return nil, fmt.Errorf("%w: user id required for personal retrieval", ErrPolicyViolation)
	}
	return map[string]string{contract.FilterUserId: user.UserID}, nil
}
