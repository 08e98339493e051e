// Package account manages the chart of accounts: a forest of coded accounts
// whose codes and depths are derived from their position in the tree.
package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tinoosan/bizledger/internal/errs"
	"github.com/tinoosan/bizledger/internal/ledger"
	"github.com/tinoosan/bizledger/internal/lock"
	"github.com/tinoosan/bizledger/internal/meta"
)

type Repo interface {
	ListAccounts(ctx context.Context) ([]ledger.Account, error)
	GetAccount(ctx context.Context, id uuid.UUID) (ledger.Account, error)
	// ChildrenOf returns the direct children of parentID, or the roots when parentID is nil.
	ChildrenOf(ctx context.Context, parentID *uuid.UUID) ([]ledger.Account, error)
	AccountHasEntries(ctx context.Context, id uuid.UUID) (bool, error)
}

type Writer interface {
	CreateAccount(ctx context.Context, a ledger.Account) (ledger.Account, error)
	// UpdateAccounts replaces all given accounts in one atomic step.
	UpdateAccounts(ctx context.Context, accounts []ledger.Account) error
	DeleteAccount(ctx context.Context, id uuid.UUID) error
}

// CreateInput carries the caller-chosen fields of a new account.
type CreateInput struct {
	Name     string
	Type     ledger.AccountType
	Subtype  ledger.Subtype
	ParentID *uuid.UUID
	// Nature applies to roots only; empty selects the type's default.
	Nature   ledger.Nature
	Metadata meta.Metadata
}

// UpdateInput is a partial update; nil fields are left untouched.
type UpdateInput struct {
	Name    *string
	Subtype *ledger.Subtype
	Nature  *ledger.Nature
	Active  *bool
	// Metadata is merged into the current attributes; an empty value removes a key.
	Metadata map[string]string
	// ParentSet marks ParentID as present in the patch; a nil ParentID then moves the account to the top level.
	ParentSet bool
	ParentID  *uuid.UUID
}

// Node is an account with its children, ordered by code.
type Node struct {
	Account  ledger.Account
	Children []Node
}

type Service interface {
	ComputeDepth(ctx context.Context, parentID *uuid.UUID) (int, error)
	NextCode(ctx context.Context, parentID *uuid.UUID) (string, error)
	Create(ctx context.Context, in CreateInput) (ledger.Account, error)
	Update(ctx context.Context, id uuid.UUID, patch UpdateInput) (ledger.Account, error)
	ListEligibleParents(ctx context.Context, forID *uuid.UUID) ([]ledger.Account, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Get(ctx context.Context, id uuid.UUID) (ledger.Account, error)
	List(ctx context.Context, activeOnly bool) ([]ledger.Account, error)
	Tree(ctx context.Context) ([]Node, error)
	PostingAccounts(ctx context.Context) ([]ledger.Account, error)
	EnsurePostable(ctx context.Context, id uuid.UUID) (ledger.Account, error)
}

type service struct {
	repo   Repo
	writer Writer
	locker lock.Locker
	log    *slog.Logger
	now    func() time.Time
}

// New builds the account service. A nil locker falls back to an in-process lock.
func New(repo Repo, writer Writer, locker lock.Locker, logger *slog.Logger) Service {
	if locker == nil {
		locker = lock.NewLocal()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &service{repo: repo, writer: writer, locker: locker, log: logger, now: func() time.Time { return time.Now().UTC() }}
}

func (s *service) ComputeDepth(ctx context.Context, parentID *uuid.UUID) (int, error) {
	if parentID == nil {
		return 1, nil
	}
	parent, err := s.parent(ctx, *parentID)
	if err != nil {
		return 0, err
	}
	return parent.Depth + 1, nil
}

func (s *service) NextCode(ctx context.Context, parentID *uuid.UUID) (string, error) {
	if parentID == nil {
		roots, err := s.repo.ChildrenOf(ctx, nil)
		if err != nil {
			return "", err
		}
		return nextRootCode(roots), nil
	}
	parent, err := s.parent(ctx, *parentID)
	if err != nil {
		return "", err
	}
	children, err := s.repo.ChildrenOf(ctx, parentID)
	if err != nil {
		return "", err
	}
	return nextChildCode(parent.Code, children), nil
}

// nextRootCode is the highest numeric root code plus one. Gaps are not reused.
func nextRootCode(roots []ledger.Account) string {
	max := 0
	for _, r := range roots {
		if strings.Contains(r.Code, ".") {
			continue
		}
		n, err := strconv.Atoi(r.Code)
		if err != nil {
			continue
		}
		if n > max {
			max = n
		}
	}
	return strconv.Itoa(max + 1)
}

// nextChildCode is parentCode.k for the smallest k >= 1 not taken by a sibling.
func nextChildCode(parentCode string, children []ledger.Account) string {
	used := make(map[string]struct{}, len(children))
	for _, c := range children {
		used[c.Code] = struct{}{}
	}
	for k := 1; ; k++ {
		code := parentCode + "." + strconv.Itoa(k)
		if _, ok := used[code]; !ok {
			return code
		}
	}
}

func (s *service) Create(ctx context.Context, in CreateInput) (ledger.Account, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := validateCreate(in); err != nil {
		return ledger.Account{}, err
	}
	if in.Metadata == nil {
		in.Metadata = meta.New(nil)
	}
	if err := in.Metadata.Validate(); err != nil {
		return ledger.Account{}, fmt.Errorf("%w: %v", errs.ErrInvalid, err)
	}

	var created ledger.Account
	err := s.withTreeLock(ctx, func(ctx context.Context) ([]string, error) {
		if in.ParentID == nil {
			return []string{lock.RootsKey}, nil
		}
		root, err := s.rootOf(ctx, *in.ParentID)
		if err != nil {
			return nil, err
		}
		return []string{lock.RootKey(root)}, nil
	}, func(ctx context.Context) error {
		a := ledger.Account{
			ID:       uuid.New(),
			Name:     in.Name,
			Type:     in.Type,
			Subtype:  in.Subtype,
			Nature:   in.Nature,
			Active:   true,
			Metadata: in.Metadata.Clone(),
		}
		if in.ParentID != nil {
			parent, err := s.parent(ctx, *in.ParentID)
			if err != nil {
				return err
			}
			if !parent.Subtype.Synthetic() {
				return errs.ErrParentNotSynthetic
			}
			pid := parent.ID
			a.ParentID = &pid
			a.Type = parent.Type
			a.Nature = parent.Nature
		} else if a.Nature == "" {
			a.Nature = ledger.DefaultNature(a.Type)
		}
		code, err := s.NextCode(ctx, a.ParentID)
		if err != nil {
			return err
		}
		depth, err := s.ComputeDepth(ctx, a.ParentID)
		if err != nil {
			return err
		}
		a.Code, a.Depth = code, depth
		a.CreatedAt = s.now()
		a.UpdatedAt = a.CreatedAt
		created, err = s.writer.CreateAccount(ctx, a)
		return err
	})
	if err != nil {
		return ledger.Account{}, err
	}
	s.log.Info("account created", "account_id", created.ID, "code", created.Code, "depth", created.Depth)
	return created, nil
}

func validateCreate(in CreateInput) error {
	if in.Name == "" {
		return fmt.Errorf("%w: name is required", errs.ErrInvalid)
	}
	if (in.ParentID == nil || in.Type != "") && !in.Type.Valid() {
		return fmt.Errorf("%w: invalid account type", errs.ErrInvalid)
	}
	if !in.Subtype.Valid() {
		return fmt.Errorf("%w: invalid subtype", errs.ErrInvalid)
	}
	if in.Nature != "" && !in.Nature.Valid() {
		return fmt.Errorf("%w: invalid nature", errs.ErrInvalid)
	}
	return nil
}

func (s *service) Update(ctx context.Context, id uuid.UUID, patch UpdateInput) (ledger.Account, error) {
	if id == uuid.Nil {
		return ledger.Account{}, errs.ErrInvalid
	}
	if err := validatePatch(patch); err != nil {
		return ledger.Account{}, err
	}

	var updated ledger.Account
	err := s.withTreeLock(ctx, func(ctx context.Context) ([]string, error) {
		return s.updateKeys(ctx, id, patch)
	}, func(ctx context.Context) error {
		current, err := s.repo.GetAccount(ctx, id)
		if err != nil {
			return err
		}
		next := current
		next.Metadata = current.Metadata.Clone()
		if patch.Name != nil {
			next.Name = strings.TrimSpace(*patch.Name)
		}
		if patch.Active != nil {
			next.Active = *patch.Active
		}
		if patch.Metadata != nil {
			next.Metadata = current.Metadata.Patch(patch.Metadata)
			if err := next.Metadata.Validate(); err != nil {
				return fmt.Errorf("%w: %v", errs.ErrInvalid, err)
			}
		}
		if patch.Subtype != nil && *patch.Subtype != current.Subtype {
			if patch.Subtype.Postable() {
				children, err := s.repo.ChildrenOf(ctx, &current.ID)
				if err != nil {
					return err
				}
				if len(children) > 0 {
					return errs.ErrHasChildren
				}
			}
			next.Subtype = *patch.Subtype
		}
		if patch.ParentSet && !sameParent(current.ParentID, patch.ParentID) {
			if err := s.reparent(ctx, &next, patch.ParentID); err != nil {
				return err
			}
		}
		if patch.Nature != nil && *patch.Nature != next.Nature {
			if !next.IsRoot() {
				return fmt.Errorf("%w: nature follows the parent account", errs.ErrInvalid)
			}
			next.Nature = *patch.Nature
		}
		next.UpdatedAt = s.now()

		changed := []ledger.Account{next}
		if cascades(current, next) {
			descendants, err := s.descendants(ctx, current.ID)
			if err != nil {
				return err
			}
			for _, d := range descendants {
				changed = append(changed, rebase(d, current, next, next.UpdatedAt))
			}
		}
		if err := s.writer.UpdateAccounts(ctx, changed); err != nil {
			return err
		}
		if len(changed) > 1 {
			s.log.Info("account subtree updated", "account_id", id, "code", next.Code, "moved", len(changed)-1)
		}
		updated = next
		return nil
	})
	if err != nil {
		return ledger.Account{}, err
	}
	return updated, nil
}

func validatePatch(p UpdateInput) error {
	if p.Name != nil && strings.TrimSpace(*p.Name) == "" {
		return fmt.Errorf("%w: name is required", errs.ErrInvalid)
	}
	if p.Subtype != nil && !p.Subtype.Valid() {
		return fmt.Errorf("%w: invalid subtype", errs.ErrInvalid)
	}
	if p.Nature != nil && !p.Nature.Valid() {
		return fmt.Errorf("%w: invalid nature", errs.ErrInvalid)
	}
	return nil
}

// reparent moves next under parentID (nil for the top level), re-deriving
// code and depth and inheriting type and nature from the new parent.
func (s *service) reparent(ctx context.Context, next *ledger.Account, parentID *uuid.UUID) error {
	if parentID == nil {
		roots, err := s.repo.ChildrenOf(ctx, nil)
		if err != nil {
			return err
		}
		next.ParentID = nil
		next.Code = nextRootCode(roots)
		next.Depth = 1
		return nil
	}
	if *parentID == next.ID {
		return errs.ErrCycle
	}
	parent, err := s.parent(ctx, *parentID)
	if err != nil {
		return err
	}
	if err := s.checkCycle(ctx, next.ID, parent); err != nil {
		return err
	}
	if !parent.Subtype.Synthetic() {
		return errs.ErrParentNotSynthetic
	}
	children, err := s.repo.ChildrenOf(ctx, &parent.ID)
	if err != nil {
		return err
	}
	pid := parent.ID
	next.ParentID = &pid
	next.Code = nextChildCode(parent.Code, children)
	next.Depth = parent.Depth + 1
	next.Type = parent.Type
	next.Nature = parent.Nature
	return nil
}

// checkCycle walks from the proposed parent up to its root and fails if id is on the way.
func (s *service) checkCycle(ctx context.Context, id uuid.UUID, parent ledger.Account) error {
	seen := map[uuid.UUID]struct{}{}
	cur := parent
	for {
		if cur.ID == id {
			return errs.ErrCycle
		}
		if _, ok := seen[cur.ID]; ok {
			return errs.ErrCycle
		}
		seen[cur.ID] = struct{}{}
		if cur.ParentID == nil {
			return nil
		}
		next, err := s.repo.GetAccount(ctx, *cur.ParentID)
		if err != nil {
			return err
		}
		cur = next
	}
}

func sameParent(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func cascades(before, after ledger.Account) bool {
	return before.Code != after.Code || before.Depth != after.Depth || before.Type != after.Type || before.Nature != after.Nature
}

// rebase carries a move or nature change of an ancestor down to a descendant.
func rebase(d, before, after ledger.Account, at time.Time) ledger.Account {
	if strings.HasPrefix(d.Code, before.Code+".") {
		d.Code = after.Code + strings.TrimPrefix(d.Code, before.Code)
	}
	d.Depth = d.Depth - before.Depth + after.Depth
	d.Type = after.Type
	d.Nature = after.Nature
	d.UpdatedAt = at
	return d
}

// descendants returns every account below id, parents before children.
func (s *service) descendants(ctx context.Context, id uuid.UUID) ([]ledger.Account, error) {
	all, err := s.repo.ListAccounts(ctx)
	if err != nil {
		return nil, err
	}
	byParent := make(map[uuid.UUID][]ledger.Account)
	for _, a := range all {
		if a.ParentID != nil {
			byParent[*a.ParentID] = append(byParent[*a.ParentID], a)
		}
	}
	var out []ledger.Account
	queue := []uuid.UUID{id}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, c := range byParent[cur] {
			out = append(out, c)
			queue = append(queue, c.ID)
		}
	}
	return out, nil
}

func (s *service) ListEligibleParents(ctx context.Context, forID *uuid.UUID) ([]ledger.Account, error) {
	all, err := s.repo.ListAccounts(ctx)
	if err != nil {
		return nil, err
	}
	var self *ledger.Account
	if forID != nil {
		for i := range all {
			if all[i].ID == *forID {
				self = &all[i]
				break
			}
		}
		if self == nil {
			return nil, errs.ErrNotFound
		}
	}
	out := make([]ledger.Account, 0, len(all))
	for _, a := range all {
		if !a.Subtype.Synthetic() {
			continue
		}
		if self != nil && (a.ID == self.ID || a.InSubtreeOf(self.Code)) {
			continue
		}
		out = append(out, a)
	}
	sortByCode(out)
	return out, nil
}

func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return errs.ErrInvalid
	}
	err := s.withTreeLock(ctx, func(ctx context.Context) ([]string, error) {
		a, err := s.repo.GetAccount(ctx, id)
		if err != nil {
			return nil, err
		}
		root, err := s.rootOf(ctx, id)
		if err != nil {
			return nil, err
		}
		keys := []string{lock.RootKey(root)}
		if a.IsRoot() {
			keys = append(keys, lock.RootsKey)
		}
		return keys, nil
	}, func(ctx context.Context) error {
		children, err := s.repo.ChildrenOf(ctx, &id)
		if err != nil {
			return err
		}
		if len(children) > 0 {
			return errs.ErrHasChildren
		}
		used, err := s.repo.AccountHasEntries(ctx, id)
		if err != nil {
			return err
		}
		if used {
			return errs.ErrInUse
		}
		return s.writer.DeleteAccount(ctx, id)
	})
	if err != nil {
		return err
	}
	s.log.Info("account deleted", "account_id", id)
	return nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (ledger.Account, error) {
	if id == uuid.Nil {
		return ledger.Account{}, errs.ErrInvalid
	}
	return s.repo.GetAccount(ctx, id)
}

func (s *service) List(ctx context.Context, activeOnly bool) ([]ledger.Account, error) {
	all, err := s.repo.ListAccounts(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]ledger.Account, 0, len(all))
	for _, a := range all {
		if activeOnly && !a.Active {
			continue
		}
		out = append(out, a)
	}
	sortByCode(out)
	return out, nil
}

func (s *service) Tree(ctx context.Context) ([]Node, error) {
	all, err := s.List(ctx, false)
	if err != nil {
		return nil, err
	}
	byParent := make(map[uuid.UUID][]ledger.Account)
	var roots []ledger.Account
	for _, a := range all {
		if a.ParentID == nil {
			roots = append(roots, a)
			continue
		}
		byParent[*a.ParentID] = append(byParent[*a.ParentID], a)
	}
	var build func(list []ledger.Account) []Node
	build = func(list []ledger.Account) []Node {
		nodes := make([]Node, 0, len(list))
		for _, a := range list {
			nodes = append(nodes, Node{Account: a, Children: build(byParent[a.ID])})
		}
		return nodes
	}
	return build(roots), nil
}

func (s *service) PostingAccounts(ctx context.Context) ([]ledger.Account, error) {
	all, err := s.List(ctx, true)
	if err != nil {
		return nil, err
	}
	out := make([]ledger.Account, 0, len(all))
	for _, a := range all {
		if a.Postable() {
			out = append(out, a)
		}
	}
	return out, nil
}

// EnsurePostable returns the account when ledger lines may target it.
func (s *service) EnsurePostable(ctx context.Context, id uuid.UUID) (ledger.Account, error) {
	a, err := s.Get(ctx, id)
	if err != nil {
		return ledger.Account{}, err
	}
	if !a.Postable() {
		return ledger.Account{}, errs.ErrNotPostable
	}
	return a, nil
}

func (s *service) parent(ctx context.Context, id uuid.UUID) (ledger.Account, error) {
	p, err := s.repo.GetAccount(ctx, id)
	if errors.Is(err, errs.ErrNotFound) {
		return ledger.Account{}, errs.ErrParentNotFound
	}
	return p, err
}

// rootOf walks parent links from id to the top of its tree.
func (s *service) rootOf(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	seen := map[uuid.UUID]struct{}{}
	cur, err := s.parent(ctx, id)
	if err != nil {
		return uuid.Nil, err
	}
	for cur.ParentID != nil {
		if _, ok := seen[cur.ID]; ok {
			return uuid.Nil, errs.ErrCycle
		}
		seen[cur.ID] = struct{}{}
		if cur, err = s.parent(ctx, *cur.ParentID); err != nil {
			return uuid.Nil, err
		}
	}
	return cur.ID, nil
}

func (s *service) updateKeys(ctx context.Context, id uuid.UUID, patch UpdateInput) ([]string, error) {
	a, err := s.repo.GetAccount(ctx, id)
	if err != nil {
		return nil, err
	}
	root, err := s.rootOf(ctx, id)
	if err != nil {
		return nil, err
	}
	keys := []string{lock.RootKey(root)}
	if patch.ParentSet && !sameParent(a.ParentID, patch.ParentID) {
		if a.IsRoot() || patch.ParentID == nil {
			keys = append(keys, lock.RootsKey)
		}
		if patch.ParentID != nil {
			target, err := s.rootOf(ctx, *patch.ParentID)
			if err != nil {
				return nil, err
			}
			keys = append(keys, lock.RootKey(target))
		}
	}
	return keys, nil
}

// withTreeLock takes the locks named by keysFn and runs fn. When the keys
// change while waiting (the subtree moved), the locks are retaken.
func (s *service) withTreeLock(ctx context.Context, keysFn func(context.Context) ([]string, error), fn func(context.Context) error) error {
	for attempt := 0; attempt < 3; attempt++ {
		keys, err := keysFn(ctx)
		if err != nil {
			return err
		}
		release, err := s.locker.Acquire(ctx, keys...)
		if err != nil {
			return fmt.Errorf("acquire tree lock: %w", err)
		}
		again, err := keysFn(ctx)
		if err != nil {
			release()
			return err
		}
		if !sameKeys(keys, again) {
			release()
			continue
		}
		err = fn(ctx)
		release()
		return err
	}
	return errs.ErrConflict
}

func sameKeys(a, b []string) bool {
	a, b = slices.Clone(a), slices.Clone(b)
	slices.Sort(a)
	slices.Sort(b)
	return slices.Equal(slices.Compact(a), slices.Compact(b))
}

func sortByCode(list []ledger.Account) {
	slices.SortStableFunc(list, func(a, b ledger.Account) int { return ledger.CompareCodes(a.Code, b.Code) })
}
